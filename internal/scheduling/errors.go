package scheduling

import "errors"

// Business outcomes are explicit error values, never panics, so every
// caller handles the specific kind. Anything not listed here that comes
// out of the service is a persistence failure.
var (
	ErrPatientNotFound     = errors.New("patient not found")
	ErrProviderNotFound    = errors.New("provider not found")
	ErrAppointmentNotFound = errors.New("appointment not found")

	// ErrSlotUnavailable: the label is not in the provider's vocabulary.
	ErrSlotUnavailable = errors.New("slot not offered by this provider")

	// ErrSlotConflict: a non-cancelled appointment already holds the
	// (provider, date, slot) tuple. The expected outcome of a lost race,
	// distinct from system failure.
	ErrSlotConflict = errors.New("slot already booked")

	ErrDuplicateNationalID = errors.New("national id already registered")
	ErrDuplicateLicense    = errors.New("license code already registered")

	ErrPatientHasAppointments = errors.New("patient has active appointments")
	ErrInvalidStatus          = errors.New("invalid appointment status")
)

var rejections = []error{
	ErrPatientNotFound,
	ErrProviderNotFound,
	ErrAppointmentNotFound,
	ErrSlotUnavailable,
	ErrSlotConflict,
	ErrDuplicateNationalID,
	ErrDuplicateLicense,
	ErrPatientHasAppointments,
	ErrInvalidStatus,
}

// IsRejection reports whether err is a business rejection rather than a
// persistence failure. Rejections are surfaced to users verbatim;
// failures get a generic message while the cause is logged.
func IsRejection(err error) bool {
	for _, r := range rejections {
		if errors.Is(err, r) {
			return true
		}
	}
	return false
}
