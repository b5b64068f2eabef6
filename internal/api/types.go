package api

import "time"

type CreatePatientRequest struct {
	Name       string `json:"name"`
	NationalID string `json:"national_id"`
	Phone      string `json:"phone"`
	Email      string `json:"email"`
}

type PatientResponse struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	NationalID   string    `json:"national_id"`
	Phone        string    `json:"phone"`
	Email        string    `json:"email"`
	RegisteredAt time.Time `json:"registered_at"`
}

type CreateProviderRequest struct {
	Name        string   `json:"name"`
	LicenseCode string   `json:"license_code"`
	Specialty   string   `json:"specialty"`
	Slots       []string `json:"slots"`
}

type ProviderResponse struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	LicenseCode  string    `json:"license_code"`
	Specialty    string    `json:"specialty"`
	Slots        []string  `json:"slots"`
	RegisteredAt time.Time `json:"registered_at"`
}

type SlotRequest struct {
	Slot string `json:"slot"`
}

type BookAppointmentRequest struct {
	PatientID  string `json:"patient_id"`
	ProviderID string `json:"provider_id"`
	Date       string `json:"date"`
	Slot       string `json:"slot"`
	Notes      string `json:"notes"`
}

type AppointmentResponse struct {
	ID         string    `json:"id"`
	PatientID  string    `json:"patient_id"`
	ProviderID string    `json:"provider_id"`
	Date       string    `json:"date"`
	Slot       string    `json:"slot"`
	Notes      string    `json:"notes,omitempty"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type UpdateStatusRequest struct {
	Status string `json:"status"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
