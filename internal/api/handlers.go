package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/clinicdesk/appointment-scheduling/internal/cache"
	"github.com/clinicdesk/appointment-scheduling/internal/report"
	"github.com/clinicdesk/appointment-scheduling/internal/scheduling"
	"github.com/clinicdesk/appointment-scheduling/internal/storage"
)

type handler struct {
	svc       *scheduling.Service
	store     *storage.Store
	cache     *cache.Cache
	reports   *report.Service
	backupDir string
}

// ---- patients ----

func (h *handler) createPatient(w http.ResponseWriter, r *http.Request) {
	var req CreatePatientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return
	}

	patient, err := h.svc.CreatePatient(req.Name, req.NationalID, req.Phone, req.Email)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, patientResponse(*patient))
}

func (h *handler) listPatients(w http.ResponseWriter, r *http.Request) {
	patients, err := h.svc.ListPatients()
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	out := make([]PatientResponse, 0, len(patients))
	for _, p := range patients {
		out = append(out, patientResponse(p))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handler) getPatient(w http.ResponseWriter, r *http.Request) {
	patient, err := h.svc.GetPatient(chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, patientResponse(*patient))
}

func (h *handler) updatePatient(w http.ResponseWriter, r *http.Request) {
	var req CreatePatientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return
	}

	patient, err := h.svc.UpdatePatient(chi.URLParam(r, "id"), req.Name, req.NationalID, req.Phone, req.Email)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, patientResponse(*patient))
}

func (h *handler) deletePatient(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeletePatient(chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ---- providers ----

func (h *handler) createProvider(w http.ResponseWriter, r *http.Request) {
	var req CreateProviderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return
	}

	provider, err := h.svc.CreateProvider(req.Name, req.LicenseCode, req.Specialty, req.Slots)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, providerResponse(*provider))
}

func (h *handler) listProviders(w http.ResponseWriter, r *http.Request) {
	providers, err := h.svc.ListProviders()
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	out := make([]ProviderResponse, 0, len(providers))
	for _, p := range providers {
		out = append(out, providerResponse(p))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handler) getProvider(w http.ResponseWriter, r *http.Request) {
	provider, err := h.svc.GetProvider(chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, providerResponse(*provider))
}

func (h *handler) deleteProvider(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteProvider(chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) addProviderSlot(w http.ResponseWriter, r *http.Request) {
	var req SlotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Slot == "" {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "slot is required")
		return
	}

	provider, err := h.svc.AddProviderSlot(chi.URLParam(r, "id"), req.Slot)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, providerResponse(*provider))
}

func (h *handler) removeProviderSlot(w http.ResponseWriter, r *http.Request) {
	slot := r.URL.Query().Get("slot")
	if slot == "" {
		writeError(w, http.StatusBadRequest, "missing_slot", "slot query parameter is required")
		return
	}

	provider, err := h.svc.RemoveProviderSlot(chi.URLParam(r, "id"), slot)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, providerResponse(*provider))
}

// ---- appointments ----

func (h *handler) bookAppointment(w http.ResponseWriter, r *http.Request) {
	var req BookAppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return
	}
	if req.PatientID == "" || req.ProviderID == "" || req.Date == "" || req.Slot == "" {
		writeError(w, http.StatusBadRequest, "missing_fields", "patient_id, provider_id, date, and slot are required")
		return
	}

	appt, err := h.svc.Book(req.PatientID, req.ProviderID, req.Date, req.Slot, req.Notes)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, appointmentResponse(*appt))
}

func (h *handler) listAppointments(w http.ResponseWriter, r *http.Request) {
	var (
		appointments []scheduling.Appointment
		err          error
	)

	switch {
	case r.URL.Query().Get("patient_id") != "":
		appointments, err = h.svc.ListAppointmentsByPatient(r.URL.Query().Get("patient_id"))
	case r.URL.Query().Get("provider_id") != "":
		appointments, err = h.svc.ListAppointmentsByProvider(r.URL.Query().Get("provider_id"))
	default:
		appointments, err = h.svc.ListAppointments()
	}
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	out := make([]AppointmentResponse, 0, len(appointments))
	for _, a := range appointments {
		out = append(out, appointmentResponse(a))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handler) getAppointment(w http.ResponseWriter, r *http.Request) {
	appt, err := h.svc.GetAppointment(chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, appointmentResponse(*appt))
}

func (h *handler) updateAppointmentStatus(w http.ResponseWriter, r *http.Request) {
	var req UpdateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return
	}

	appt, err := h.svc.UpdateAppointmentStatus(chi.URLParam(r, "id"), scheduling.Status(req.Status))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, appointmentResponse(*appt))
}

func (h *handler) confirmAppointment(w http.ResponseWriter, r *http.Request) {
	appt, err := h.svc.ConfirmAppointment(chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, appointmentResponse(*appt))
}

func (h *handler) cancelAppointment(w http.ResponseWriter, r *http.Request) {
	appt, err := h.svc.CancelAppointment(chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, appointmentResponse(*appt))
}

// ---- stats and cache ----

func (h *handler) stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.GetStats()
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *handler) cacheStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.cache.Stats())
}

func (h *handler) cacheClear(w http.ResponseWriter, _ *http.Request) {
	h.cache.Clear()
	writeJSON(w, http.StatusOK, map[string]any{"cleared": true})
}

// ---- backups ----

func (h *handler) createBackup(w http.ResponseWriter, r *http.Request) {
	collection := chi.URLParam(r, "collection")
	name, err := h.store.Backup(collection, h.backupDir)
	if err != nil {
		log.Printf("event=backup_failed collection=%s request_id=%s err=%v",
			collection, requestIDFrom(r.Context()), err)
		writeError(w, http.StatusInternalServerError, "backup_failed", "operation failed")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"backup": name})
}

func (h *handler) listBackups(w http.ResponseWriter, r *http.Request) {
	names, err := storage.ListBackups(h.backupDir, r.URL.Query().Get("collection"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "operation failed")
		return
	}
	writeJSON(w, http.StatusOK, names)
}

// ---- reports ----

func (h *handler) generateReport(w http.ResponseWriter, r *http.Request) {
	var (
		name string
		err  error
	)

	switch kind := chi.URLParam(r, "kind"); kind {
	case "appointments":
		name, err = h.appointmentsReport()
	case "patients":
		var patients []scheduling.Patient
		if patients, err = h.svc.ListPatients(); err == nil {
			name, err = h.reports.PatientsCSV(patients)
		}
	case "providers":
		var providers []scheduling.Provider
		if providers, err = h.svc.ListProviders(); err == nil {
			name, err = h.reports.ProvidersCSV(providers)
		}
	default:
		writeError(w, http.StatusNotFound, "unknown_report", "report kind must be appointments, patients, or providers")
		return
	}
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"report": name})
}

func (h *handler) appointmentsReport() (string, error) {
	appointments, err := h.svc.ListAppointments()
	if err != nil {
		return "", err
	}
	patients, err := h.svc.ListPatients()
	if err != nil {
		return "", err
	}
	providers, err := h.svc.ListProviders()
	if err != nil {
		return "", err
	}

	patientsByID := make(map[string]scheduling.Patient, len(patients))
	for _, p := range patients {
		patientsByID[p.ID] = p
	}
	providersByID := make(map[string]scheduling.Provider, len(providers))
	for _, p := range providers {
		providersByID[p.ID] = p
	}

	return h.reports.AppointmentsCSV(appointments, patientsByID, providersByID)
}

func (h *handler) listReports(w http.ResponseWriter, _ *http.Request) {
	names, err := h.reports.List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "operation failed")
		return
	}
	writeJSON(w, http.StatusOK, names)
}

// ---- response helpers ----

func patientResponse(p scheduling.Patient) PatientResponse {
	return PatientResponse{
		ID:           p.ID,
		Name:         p.Name,
		NationalID:   p.NationalID,
		Phone:        p.Phone,
		Email:        p.Email,
		RegisteredAt: p.RegisteredAt,
	}
}

func providerResponse(p scheduling.Provider) ProviderResponse {
	return ProviderResponse{
		ID:           p.ID,
		Name:         p.Name,
		LicenseCode:  p.LicenseCode,
		Specialty:    p.Specialty,
		Slots:        p.Slots,
		RegisteredAt: p.RegisteredAt,
	}
}

func appointmentResponse(a scheduling.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:         a.ID,
		PatientID:  a.PatientID,
		ProviderID: a.ProviderID,
		Date:       a.Date,
		Slot:       a.Slot,
		Notes:      a.Notes,
		Status:     string(a.Status),
		CreatedAt:  a.CreatedAt,
		UpdatedAt:  a.UpdatedAt,
	}
}

// writeServiceError maps business rejections to their HTTP codes;
// anything else is a persistence failure, logged with its cause and
// reported to the caller generically.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, scheduling.ErrPatientNotFound):
		writeError(w, http.StatusNotFound, "patient_not_found", err.Error())
	case errors.Is(err, scheduling.ErrProviderNotFound):
		writeError(w, http.StatusNotFound, "provider_not_found", err.Error())
	case errors.Is(err, scheduling.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.Is(err, scheduling.ErrSlotUnavailable):
		writeError(w, http.StatusUnprocessableEntity, "slot_unavailable", err.Error())
	case errors.Is(err, scheduling.ErrSlotConflict):
		writeError(w, http.StatusConflict, "slot_already_booked", err.Error())
	case errors.Is(err, scheduling.ErrDuplicateNationalID):
		writeError(w, http.StatusConflict, "duplicate_national_id", err.Error())
	case errors.Is(err, scheduling.ErrDuplicateLicense):
		writeError(w, http.StatusConflict, "duplicate_license_code", err.Error())
	case errors.Is(err, scheduling.ErrPatientHasAppointments):
		writeError(w, http.StatusConflict, "patient_has_appointments", err.Error())
	case errors.Is(err, scheduling.ErrInvalidStatus):
		writeError(w, http.StatusUnprocessableEntity, "invalid_status", err.Error())
	default:
		log.Printf("event=persistence_failure request_id=%s err=%v", requestIDFrom(r.Context()), err)
		writeError(w, http.StatusInternalServerError, "internal_error", "operation failed")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("event=write_response_failed err=%v", err)
	}
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}
