// Package scheduling books appointments between patients and providers
// with a guarantee that no two bookings ever claim the same
// provider/date/slot tuple, even under concurrent callers.
package scheduling

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/clinicdesk/appointment-scheduling/internal/cache"
	"github.com/clinicdesk/appointment-scheduling/internal/storage"
)

// Store is the persistence surface the service needs. *storage.Store
// satisfies it; tests substitute failing implementations.
type Store interface {
	Load(collection string) ([]storage.Record, error)
	Append(collection string, rec storage.Record) error
	Update(collection, id string, rec storage.Record) error
	Delete(collection, id string) error
	FindByID(collection, id string) (storage.Record, error)
}

// Service orchestrates storage and cache. Reads go through the cache
// and populate it on miss; every mutation writes through to storage and
// invalidates the affected cache pattern.
type Service struct {
	store  Store
	cache  *cache.Cache
	locker Locker

	now func() time.Time
}

func NewService(store Store, c *cache.Cache, locker Locker) *Service {
	return &Service{
		store:  store,
		cache:  c,
		locker: locker,
		now:    time.Now,
	}
}

// Stats aggregates entity counts, per-status appointment counts, and
// cache effectiveness.
type Stats struct {
	TotalPatients        int            `json:"total_patients"`
	TotalProviders       int            `json:"total_providers"`
	TotalAppointments    int            `json:"total_appointments"`
	AppointmentsByStatus map[Status]int `json:"appointments_by_status"`
	Cache                cache.Stats    `json:"cache"`
}

// ---- patients ----

func (s *Service) CreatePatient(name, nationalID, phone, email string) (*Patient, error) {
	patients, err := s.ListPatients()
	if err != nil {
		return nil, err
	}
	for _, p := range patients {
		if p.NationalID == nationalID {
			return nil, ErrDuplicateNationalID
		}
	}

	patient := Patient{
		ID:           NewPatientID(),
		Name:         name,
		NationalID:   nationalID,
		Phone:        phone,
		Email:        email,
		RegisteredAt: s.now(),
	}
	if err := s.store.Append(CollectionPatients, patientRecord(patient)); err != nil {
		return nil, fmt.Errorf("save patient: %w", err)
	}

	s.cache.InvalidatePattern(CollectionPatients)
	log.Printf("event=patient_created id=%s", patient.ID)
	return &patient, nil
}

func (s *Service) ListPatients() ([]Patient, error) {
	records, err := s.cachedList(CollectionPatients)
	if err != nil {
		return nil, err
	}
	patients := make([]Patient, 0, len(records))
	for _, r := range records {
		patients = append(patients, patientFromRecord(r))
	}
	return patients, nil
}

func (s *Service) GetPatient(id string) (*Patient, error) {
	rec, err := s.cachedByID(CollectionPatients, "patient:"+id, id, ErrPatientNotFound)
	if err != nil {
		return nil, err
	}
	p := patientFromRecord(rec)
	return &p, nil
}

func (s *Service) UpdatePatient(id, name, nationalID, phone, email string) (*Patient, error) {
	patient, err := s.GetPatient(id)
	if err != nil {
		return nil, err
	}

	others, err := s.ListPatients()
	if err != nil {
		return nil, err
	}
	for _, p := range others {
		if p.ID != id && p.NationalID == nationalID {
			return nil, ErrDuplicateNationalID
		}
	}

	patient.Name = name
	patient.NationalID = nationalID
	patient.Phone = phone
	patient.Email = email

	if err := s.store.Update(CollectionPatients, id, patientRecord(*patient)); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrPatientNotFound
		}
		return nil, fmt.Errorf("update patient: %w", err)
	}

	s.cache.Delete("patient:" + id)
	s.cache.InvalidatePattern(CollectionPatients)
	log.Printf("event=patient_updated id=%s", id)
	return patient, nil
}

// DeletePatient removes a patient, rejected while any appointment of
// theirs is neither cancelled nor completed.
func (s *Service) DeletePatient(id string) error {
	appointments, err := s.ListAppointmentsByPatient(id)
	if err != nil {
		return err
	}
	for _, a := range appointments {
		if a.Status != StatusCancelled && a.Status != StatusCompleted {
			return ErrPatientHasAppointments
		}
	}

	if err := s.store.Delete(CollectionPatients, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrPatientNotFound
		}
		return fmt.Errorf("delete patient: %w", err)
	}

	s.cache.Delete("patient:" + id)
	s.cache.InvalidatePattern(CollectionPatients)
	log.Printf("event=patient_deleted id=%s", id)
	return nil
}

// ---- providers ----

func (s *Service) CreateProvider(name, licenseCode, specialty string, slots []string) (*Provider, error) {
	providers, err := s.ListProviders()
	if err != nil {
		return nil, err
	}
	for _, p := range providers {
		if p.LicenseCode == licenseCode {
			return nil, ErrDuplicateLicense
		}
	}

	provider := Provider{
		ID:           NewProviderID(),
		Name:         name,
		LicenseCode:  licenseCode,
		Specialty:    specialty,
		Slots:        slots,
		RegisteredAt: s.now(),
	}
	if err := s.store.Append(CollectionProviders, providerRecord(provider)); err != nil {
		return nil, fmt.Errorf("save provider: %w", err)
	}

	s.cache.InvalidatePattern(CollectionProviders)
	log.Printf("event=provider_created id=%s", provider.ID)
	return &provider, nil
}

func (s *Service) ListProviders() ([]Provider, error) {
	records, err := s.cachedList(CollectionProviders)
	if err != nil {
		return nil, err
	}
	providers := make([]Provider, 0, len(records))
	for _, r := range records {
		providers = append(providers, providerFromRecord(r))
	}
	return providers, nil
}

func (s *Service) GetProvider(id string) (*Provider, error) {
	rec, err := s.cachedByID(CollectionProviders, "provider:"+id, id, ErrProviderNotFound)
	if err != nil {
		return nil, err
	}
	p := providerFromRecord(rec)
	return &p, nil
}

// AddProviderSlot adds a slot label to the provider's vocabulary.
// Adding an existing label is a no-op.
func (s *Service) AddProviderSlot(id, slot string) (*Provider, error) {
	provider, err := s.GetProvider(id)
	if err != nil {
		return nil, err
	}
	if provider.HasSlot(slot) {
		return provider, nil
	}
	provider.Slots = append(provider.Slots, slot)
	return s.saveProvider(provider)
}

// RemoveProviderSlot removes a slot label. Removing an absent label is
// a no-op; existing appointments on the slot are untouched.
func (s *Service) RemoveProviderSlot(id, slot string) (*Provider, error) {
	provider, err := s.GetProvider(id)
	if err != nil {
		return nil, err
	}
	kept := provider.Slots[:0]
	for _, sl := range provider.Slots {
		if sl != slot {
			kept = append(kept, sl)
		}
	}
	provider.Slots = kept
	return s.saveProvider(provider)
}

func (s *Service) saveProvider(provider *Provider) (*Provider, error) {
	if err := s.store.Update(CollectionProviders, provider.ID, providerRecord(*provider)); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrProviderNotFound
		}
		return nil, fmt.Errorf("update provider: %w", err)
	}
	s.cache.Delete("provider:" + provider.ID)
	s.cache.InvalidatePattern(CollectionProviders)
	return provider, nil
}

// DeleteProvider removes a provider. Deliberately unconstrained: unlike
// patients there is no active-appointment check.
func (s *Service) DeleteProvider(id string) error {
	if err := s.store.Delete(CollectionProviders, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrProviderNotFound
		}
		return fmt.Errorf("delete provider: %w", err)
	}
	s.cache.Delete("provider:" + id)
	s.cache.InvalidatePattern(CollectionProviders)
	log.Printf("event=provider_deleted id=%s", id)
	return nil
}

// ---- appointments ----

// Book schedules an appointment. The whole resolve-check-append
// sequence runs under the booking lock: only one caller is inside at a
// time, so of two concurrent bookings for the same (provider, date,
// slot) exactly one succeeds and the other observes ErrSlotConflict.
func (s *Service) Book(patientID, providerID, date, slot, notes string) (*Appointment, error) {
	var booked *Appointment

	err := s.locker.WithBookingLock(func() error {
		if _, err := s.GetPatient(patientID); err != nil {
			return err
		}

		provider, err := s.GetProvider(providerID)
		if err != nil {
			return err
		}
		if !provider.HasSlot(slot) {
			return ErrSlotUnavailable
		}

		conflict, err := s.CheckConflict(providerID, date, slot, "")
		if err != nil {
			return err
		}
		if conflict {
			log.Printf("event=booking_conflict provider=%s date=%s slot=%s", providerID, date, slot)
			return ErrSlotConflict
		}

		now := s.now()
		appt := Appointment{
			ID:         NewAppointmentID(),
			PatientID:  patientID,
			ProviderID: providerID,
			Date:       date,
			Slot:       slot,
			Notes:      notes,
			Status:     StatusScheduled,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := s.store.Append(CollectionAppointments, appointmentRecord(appt)); err != nil {
			return fmt.Errorf("save appointment: %w", err)
		}

		s.cache.InvalidatePattern(CollectionAppointments)
		booked = &appt
		log.Printf("event=appointment_booked id=%s provider=%s date=%s slot=%s", appt.ID, providerID, date, slot)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return booked, nil
}

// CheckConflict reports whether a non-cancelled appointment already
// holds (providerID, date, slot). excludeID skips one appointment so a
// reschedule does not conflict with itself.
func (s *Service) CheckConflict(providerID, date, slot, excludeID string) (bool, error) {
	appointments, err := s.ListAppointments()
	if err != nil {
		return false, err
	}
	for _, a := range appointments {
		if excludeID != "" && a.ID == excludeID {
			continue
		}
		if a.Status == StatusCancelled {
			continue
		}
		if a.ProviderID == providerID && a.Date == date && a.Slot == slot {
			return true, nil
		}
	}
	return false, nil
}

func (s *Service) ListAppointments() ([]Appointment, error) {
	records, err := s.cachedList(CollectionAppointments)
	if err != nil {
		return nil, err
	}
	appointments := make([]Appointment, 0, len(records))
	for _, r := range records {
		appointments = append(appointments, appointmentFromRecord(r))
	}
	return appointments, nil
}

func (s *Service) ListAppointmentsByPatient(patientID string) ([]Appointment, error) {
	return s.filterAppointments(func(a Appointment) bool { return a.PatientID == patientID })
}

func (s *Service) ListAppointmentsByProvider(providerID string) ([]Appointment, error) {
	return s.filterAppointments(func(a Appointment) bool { return a.ProviderID == providerID })
}

func (s *Service) filterAppointments(keep func(Appointment) bool) ([]Appointment, error) {
	appointments, err := s.ListAppointments()
	if err != nil {
		return nil, err
	}
	out := make([]Appointment, 0, len(appointments))
	for _, a := range appointments {
		if keep(a) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *Service) GetAppointment(id string) (*Appointment, error) {
	rec, err := s.store.FindByID(CollectionAppointments, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrAppointmentNotFound
		}
		return nil, fmt.Errorf("load appointment: %w", err)
	}
	a := appointmentFromRecord(rec)
	return &a, nil
}

// UpdateAppointmentStatus moves an appointment to any of the four
// statuses (no transition is forbidden) and refreshes the update
// timestamp.
func (s *Service) UpdateAppointmentStatus(id string, status Status) (*Appointment, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	appt, err := s.GetAppointment(id)
	if err != nil {
		return nil, err
	}

	appt.Status = status
	appt.UpdatedAt = s.now()

	if err := s.store.Update(CollectionAppointments, id, appointmentRecord(*appt)); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrAppointmentNotFound
		}
		return nil, fmt.Errorf("update appointment: %w", err)
	}

	s.cache.InvalidatePattern(CollectionAppointments)
	log.Printf("event=appointment_status id=%s status=%s", id, status)
	return appt, nil
}

func (s *Service) CancelAppointment(id string) (*Appointment, error) {
	return s.UpdateAppointmentStatus(id, StatusCancelled)
}

func (s *Service) ConfirmAppointment(id string) (*Appointment, error) {
	return s.UpdateAppointmentStatus(id, StatusConfirmed)
}

// ---- stats ----

func (s *Service) GetStats() (Stats, error) {
	patients, err := s.ListPatients()
	if err != nil {
		return Stats{}, err
	}
	providers, err := s.ListProviders()
	if err != nil {
		return Stats{}, err
	}
	appointments, err := s.ListAppointments()
	if err != nil {
		return Stats{}, err
	}

	byStatus := map[Status]int{
		StatusScheduled: 0,
		StatusConfirmed: 0,
		StatusCompleted: 0,
		StatusCancelled: 0,
	}
	for _, a := range appointments {
		byStatus[a.Status]++
	}

	return Stats{
		TotalPatients:        len(patients),
		TotalProviders:       len(providers),
		TotalAppointments:    len(appointments),
		AppointmentsByStatus: byStatus,
		Cache:                s.cache.Stats(),
	}, nil
}

// ---- read-through helpers ----

func (s *Service) cachedList(collection string) ([]storage.Record, error) {
	key := collection + ":all"
	if v, ok := s.cache.Get(key); ok {
		if records, ok := v.([]storage.Record); ok {
			return records, nil
		}
	}

	records, err := s.store.Load(collection)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", collection, err)
	}
	s.cache.Set(key, records)
	return records, nil
}

func (s *Service) cachedByID(collection, key, id string, notFound error) (storage.Record, error) {
	if v, ok := s.cache.Get(key); ok {
		if rec, ok := v.(storage.Record); ok {
			return rec, nil
		}
	}

	rec, err := s.store.FindByID(collection, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, notFound
		}
		return nil, fmt.Errorf("find %s/%s: %w", collection, id, err)
	}
	s.cache.Set(key, rec)
	return rec, nil
}
