package scheduling

import (
	"time"

	"github.com/google/uuid"

	"github.com/clinicdesk/appointment-scheduling/internal/storage"
)

// Collection names, one persisted file each.
const (
	CollectionPatients     = "patients"
	CollectionProviders    = "providers"
	CollectionAppointments = "appointments"
)

type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusConfirmed Status = "confirmed"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

func (s Status) Valid() bool {
	switch s {
	case StatusScheduled, StatusConfirmed, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

type Patient struct {
	ID           string
	Name         string
	NationalID   string // unique business key
	Phone        string
	Email        string
	RegisteredAt time.Time
}

type Provider struct {
	ID           string
	Name         string
	LicenseCode  string // unique business key
	Specialty    string
	Slots        []string // bookable time-slot labels, e.g. "09:00"
	RegisteredAt time.Time
}

type Appointment struct {
	ID         string
	PatientID  string
	ProviderID string
	Date       string // ISO date, YYYY-MM-DD
	Slot       string
	Notes      string
	Status     Status
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// HasSlot reports whether the label is in the provider's vocabulary.
func (p *Provider) HasSlot(slot string) bool {
	for _, s := range p.Slots {
		if s == slot {
			return true
		}
	}
	return false
}

// IDs carry a one-letter prefix so a provider id is distinguishable
// from a patient id at a glance.
func newID(prefix string) string {
	return prefix + uuid.NewString()[:8]
}

func NewPatientID() string     { return newID("P") }
func NewProviderID() string    { return newID("D") }
func NewAppointmentID() string { return newID("A") }

// Record conversion. Entities persist as flat key-value records with
// RFC3339 timestamps; values come back from JSON as strings or []any.

func patientRecord(p Patient) storage.Record {
	return storage.Record{
		"id":            p.ID,
		"name":          p.Name,
		"national_id":   p.NationalID,
		"phone":         p.Phone,
		"email":         p.Email,
		"registered_at": p.RegisteredAt.Format(time.RFC3339),
	}
}

func patientFromRecord(r storage.Record) Patient {
	return Patient{
		ID:           recString(r, "id"),
		Name:         recString(r, "name"),
		NationalID:   recString(r, "national_id"),
		Phone:        recString(r, "phone"),
		Email:        recString(r, "email"),
		RegisteredAt: recTime(r, "registered_at"),
	}
}

func providerRecord(p Provider) storage.Record {
	slots := p.Slots
	if slots == nil {
		slots = []string{}
	}
	return storage.Record{
		"id":            p.ID,
		"name":          p.Name,
		"license_code":  p.LicenseCode,
		"specialty":     p.Specialty,
		"slots":         slots,
		"registered_at": p.RegisteredAt.Format(time.RFC3339),
	}
}

func providerFromRecord(r storage.Record) Provider {
	return Provider{
		ID:           recString(r, "id"),
		Name:         recString(r, "name"),
		LicenseCode:  recString(r, "license_code"),
		Specialty:    recString(r, "specialty"),
		Slots:        recStrings(r, "slots"),
		RegisteredAt: recTime(r, "registered_at"),
	}
}

func appointmentRecord(a Appointment) storage.Record {
	return storage.Record{
		"id":          a.ID,
		"patient_id":  a.PatientID,
		"provider_id": a.ProviderID,
		"date":        a.Date,
		"slot":        a.Slot,
		"notes":       a.Notes,
		"status":      string(a.Status),
		"created_at":  a.CreatedAt.Format(time.RFC3339),
		"updated_at":  a.UpdatedAt.Format(time.RFC3339),
	}
}

func appointmentFromRecord(r storage.Record) Appointment {
	return Appointment{
		ID:         recString(r, "id"),
		PatientID:  recString(r, "patient_id"),
		ProviderID: recString(r, "provider_id"),
		Date:       recString(r, "date"),
		Slot:       recString(r, "slot"),
		Notes:      recString(r, "notes"),
		Status:     Status(recString(r, "status")),
		CreatedAt:  recTime(r, "created_at"),
		UpdatedAt:  recTime(r, "updated_at"),
	}
}

func recString(r storage.Record, key string) string {
	s, _ := r[key].(string)
	return s
}

func recTime(r storage.Record, key string) time.Time {
	t, _ := time.Parse(time.RFC3339, recString(r, key))
	return t
}

func recStrings(r storage.Record, key string) []string {
	switch v := r[key].(type) {
	case []string:
		out := make([]string, len(v))
		copy(out, v)
		return out
	case []any:
		out := make([]string, 0, len(v))
		for _, e := range v {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return []string{}
}
