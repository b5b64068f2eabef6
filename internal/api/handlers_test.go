package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicdesk/appointment-scheduling/internal/cache"
	"github.com/clinicdesk/appointment-scheduling/internal/report"
	"github.com/clinicdesk/appointment-scheduling/internal/scheduling"
	"github.com/clinicdesk/appointment-scheduling/internal/storage"
)

type testEnv struct {
	router http.Handler
	svc    *scheduling.Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store := storage.NewStore(t.TempDir())
	entityCache := cache.New(100, 5*time.Minute)
	svc := scheduling.NewService(store, entityCache, scheduling.NewMutexLocker())

	router := NewRouter(RouterConfig{
		Service:   svc,
		Store:     store,
		Cache:     entityCache,
		Reports:   report.NewService(t.TempDir()),
		DataDir:   t.TempDir(),
		BackupDir: t.TempDir(),
		Env:       "test",
		Version:   "test",
	})
	return &testEnv{router: router, svc: svc}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	return v
}

func (e *testEnv) createPatient(t *testing.T, nationalID string) PatientResponse {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/patients", CreatePatientRequest{
		Name:       "Ada",
		NationalID: nationalID,
		Phone:      "555-0100",
		Email:      "ada@example.com",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[PatientResponse](t, rec)
}

func (e *testEnv) createProvider(t *testing.T, license string, slots ...string) ProviderResponse {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/providers", CreateProviderRequest{
		Name:        "Dr. Ril",
		LicenseCode: license,
		Specialty:   "Dermatology",
		Slots:       slots,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[ProviderResponse](t, rec)
}

// ---- health ----

func TestHealthEndpoints(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/health/live", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/health/ready", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	ready := decode[ReadinessResponse](t, rec)
	assert.Equal(t, "ok", ready.Dependencies["data_dir"])
}

// ---- patients ----

func TestCreatePatientEndpoint(t *testing.T) {
	env := newTestEnv(t)

	p := env.createPatient(t, "111222333")
	assert.NotEmpty(t, p.ID)
	assert.Equal(t, "Ada", p.Name)

	rec := env.do(t, http.MethodGet, "/patients/"+p.ID, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCreatePatientInvalidBody(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodPost, "/patients", strings.NewReader("{broken"))
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_request_body", decode[ErrorResponse](t, rec).Error)
}

func TestCreatePatientDuplicateConflict(t *testing.T) {
	env := newTestEnv(t)
	env.createPatient(t, "111222333")

	rec := env.do(t, http.MethodPost, "/patients", CreatePatientRequest{
		Name:       "Impostor",
		NationalID: "111222333",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "duplicate_national_id", decode[ErrorResponse](t, rec).Error)
}

func TestGetPatientNotFoundEndpoint(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/patients/P404", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "patient_not_found", decode[ErrorResponse](t, rec).Error)
}

func TestDeletePatientWithActiveAppointment(t *testing.T) {
	env := newTestEnv(t)
	patient := env.createPatient(t, "111222333")
	provider := env.createProvider(t, "L-1", "09:00")

	rec := env.do(t, http.MethodPost, "/appointments", BookAppointmentRequest{
		PatientID:  patient.ID,
		ProviderID: provider.ID,
		Date:       "2026-09-01",
		Slot:       "09:00",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = env.do(t, http.MethodDelete, "/patients/"+patient.ID, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "patient_has_appointments", decode[ErrorResponse](t, rec).Error)
}

// ---- providers ----

func TestProviderSlotEndpoints(t *testing.T) {
	env := newTestEnv(t)
	provider := env.createProvider(t, "L-1", "09:00")

	rec := env.do(t, http.MethodPost, "/providers/"+provider.ID+"/slots", SlotRequest{Slot: "10:00"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, decode[ProviderResponse](t, rec).Slots, "10:00")

	rec = env.do(t, http.MethodPost, "/providers/"+provider.ID+"/slots", SlotRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodDelete, "/providers/"+provider.ID+"/slots?slot=09:00", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, decode[ProviderResponse](t, rec).Slots, "09:00")

	rec = env.do(t, http.MethodDelete, "/providers/"+provider.ID+"/slots", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteProviderEndpoint(t *testing.T) {
	env := newTestEnv(t)
	provider := env.createProvider(t, "L-1", "09:00")

	rec := env.do(t, http.MethodDelete, "/providers/"+provider.ID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, http.MethodGet, "/providers/"+provider.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// ---- appointments ----

func TestBookAppointmentEndpoint(t *testing.T) {
	env := newTestEnv(t)
	patient := env.createPatient(t, "111222333")
	provider := env.createProvider(t, "L-1", "09:00")

	rec := env.do(t, http.MethodPost, "/appointments", BookAppointmentRequest{
		PatientID:  patient.ID,
		ProviderID: provider.ID,
		Date:       "2026-09-01",
		Slot:       "09:00",
		Notes:      "first visit",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	appt := decode[AppointmentResponse](t, rec)
	assert.Equal(t, "scheduled", appt.Status)
	assert.Equal(t, "first visit", appt.Notes)
}

func TestBookAppointmentMissingFields(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/appointments", BookAppointmentRequest{
		PatientID: "P1",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "missing_fields", decode[ErrorResponse](t, rec).Error)
}

func TestBookAppointmentStatusMapping(t *testing.T) {
	env := newTestEnv(t)
	patient := env.createPatient(t, "111222333")
	provider := env.createProvider(t, "L-1", "09:00")

	book := func(patientID, slot string) *httptest.ResponseRecorder {
		return env.do(t, http.MethodPost, "/appointments", BookAppointmentRequest{
			PatientID:  patientID,
			ProviderID: provider.ID,
			Date:       "2026-09-01",
			Slot:       slot,
		})
	}

	rec := book("P404", "09:00")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = book(patient.ID, "13:00")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "slot_unavailable", decode[ErrorResponse](t, rec).Error)

	require.Equal(t, http.StatusCreated, book(patient.ID, "09:00").Code)

	rec = book(patient.ID, "09:00")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "slot_already_booked", decode[ErrorResponse](t, rec).Error)
}

func TestAppointmentLifecycleEndpoints(t *testing.T) {
	env := newTestEnv(t)
	patient := env.createPatient(t, "111222333")
	provider := env.createProvider(t, "L-1", "09:00")

	rec := env.do(t, http.MethodPost, "/appointments", BookAppointmentRequest{
		PatientID:  patient.ID,
		ProviderID: provider.ID,
		Date:       "2026-09-01",
		Slot:       "09:00",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	appt := decode[AppointmentResponse](t, rec)

	rec = env.do(t, http.MethodPost, "/appointments/"+appt.ID+"/confirm", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "confirmed", decode[AppointmentResponse](t, rec).Status)

	rec = env.do(t, http.MethodPost, "/appointments/"+appt.ID+"/status", UpdateStatusRequest{Status: "completed"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "completed", decode[AppointmentResponse](t, rec).Status)

	rec = env.do(t, http.MethodPost, "/appointments/"+appt.ID+"/status", UpdateStatusRequest{Status: "teleported"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "invalid_status", decode[ErrorResponse](t, rec).Error)

	rec = env.do(t, http.MethodPost, "/appointments/"+appt.ID+"/cancel", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "cancelled", decode[AppointmentResponse](t, rec).Status)
}

func TestListAppointmentsFilterEndpoint(t *testing.T) {
	env := newTestEnv(t)
	a := env.createPatient(t, "111222333")
	b := env.createPatient(t, "444555666")
	provider := env.createProvider(t, "L-1", "09:00", "10:00")

	for _, req := range []BookAppointmentRequest{
		{PatientID: a.ID, ProviderID: provider.ID, Date: "2026-09-01", Slot: "09:00"},
		{PatientID: b.ID, ProviderID: provider.ID, Date: "2026-09-01", Slot: "10:00"},
	} {
		require.Equal(t, http.StatusCreated, env.do(t, http.MethodPost, "/appointments", req).Code)
	}

	rec := env.do(t, http.MethodGet, "/appointments", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]AppointmentResponse](t, rec), 2)

	rec = env.do(t, http.MethodGet, "/appointments?patient_id="+a.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[[]AppointmentResponse](t, rec)
	require.Len(t, got, 1)
	assert.Equal(t, a.ID, got[0].PatientID)
}

func TestGetAppointmentNotFoundEndpoint(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/appointments/A404", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "appointment_not_found", decode[ErrorResponse](t, rec).Error)
}

// ---- stats, cache, backups, reports ----

func TestStatsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.createPatient(t, "111222333")

	rec := env.do(t, http.MethodGet, "/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	stats := decode[scheduling.Stats](t, rec)
	assert.Equal(t, 1, stats.TotalPatients)
	assert.Equal(t, 100, stats.Cache.Capacity)
}

func TestCacheEndpoints(t *testing.T) {
	env := newTestEnv(t)
	env.createPatient(t, "111222333")

	rec := env.do(t, http.MethodGet, "/cache/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPost, "/cache/clear", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/cache/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, decode[cache.Stats](t, rec).Size)
}

func TestBackupEndpoints(t *testing.T) {
	env := newTestEnv(t)
	env.createPatient(t, "111222333")

	rec := env.do(t, http.MethodPost, "/backups/patients", nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[map[string]string](t, rec)
	assert.NotEmpty(t, created["backup"])

	rec = env.do(t, http.MethodGet, "/backups?collection=patients", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	names := decode[[]string](t, rec)
	require.Len(t, names, 1)
	assert.Equal(t, created["backup"], names[0])
}

func TestBackupMissingCollectionEndpoint(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/backups/patients", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestReportEndpoints(t *testing.T) {
	env := newTestEnv(t)
	patient := env.createPatient(t, "111222333")
	provider := env.createProvider(t, "L-1", "09:00")

	rec := env.do(t, http.MethodPost, "/appointments", BookAppointmentRequest{
		PatientID:  patient.ID,
		ProviderID: provider.ID,
		Date:       "2026-09-01",
		Slot:       "09:00",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	for _, kind := range []string{"appointments", "patients", "providers"} {
		rec = env.do(t, http.MethodPost, "/reports/"+kind, nil)
		require.Equal(t, http.StatusCreated, rec.Code, "kind=%s body=%s", kind, rec.Body.String())
		assert.NotEmpty(t, decode[map[string]string](t, rec)["report"])
	}

	rec = env.do(t, http.MethodPost, "/reports/unicorns", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "unknown_report", decode[ErrorResponse](t, rec).Error)

	rec = env.do(t, http.MethodGet, "/reports", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]string](t, rec), 3)
}

func TestRequestIDPropagated(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	assert.Equal(t, "abc-123", rec.Header().Get("X-Request-ID"))
}
