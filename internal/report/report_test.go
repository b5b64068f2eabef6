package report

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicdesk/appointment-scheduling/internal/scheduling"
)

func readCSV(t *testing.T, dir, name string) [][]string {
	t.Helper()
	f, err := os.Open(filepath.Join(dir, name))
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestAppointmentsCSV(t *testing.T) {
	dir := t.TempDir()
	svc := NewService(dir)

	appointments := []scheduling.Appointment{
		{
			ID:         "A1",
			PatientID:  "P1",
			ProviderID: "D1",
			Date:       "2026-09-01",
			Slot:       "09:00",
			Notes:      "first visit",
			Status:     scheduling.StatusScheduled,
		},
		{
			ID:         "A2",
			PatientID:  "P404", // deleted patient, joined as unknown
			ProviderID: "D1",
			Date:       "2026-09-02",
			Slot:       "10:00",
			Status:     scheduling.StatusCancelled,
		},
	}
	patients := map[string]scheduling.Patient{
		"P1": {ID: "P1", Name: "Ada", NationalID: "111222333"},
	}
	providers := map[string]scheduling.Provider{
		"D1": {ID: "D1", Name: "Dr. Ril", Specialty: "Dermatology"},
	}

	name, err := svc.AppointmentsCSV(appointments, patients, providers)
	require.NoError(t, err)
	assert.Regexp(t, `^appointments_\d{8}_\d{6}\.csv$`, name)

	rows := readCSV(t, dir, name)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"ID", "Patient", "National ID", "Provider", "Specialty", "Date", "Slot", "Status", "Notes"}, rows[0])
	assert.Equal(t, []string{"A1", "Ada", "111222333", "Dr. Ril", "Dermatology", "2026-09-01", "09:00", "scheduled", "first visit"}, rows[1])
	assert.Equal(t, []string{"A2", "unknown", "-", "Dr. Ril", "Dermatology", "2026-09-02", "10:00", "cancelled", "-"}, rows[2])
}

func TestPatientsCSV(t *testing.T) {
	dir := t.TempDir()
	svc := NewService(dir)

	name, err := svc.PatientsCSV([]scheduling.Patient{{
		ID:           "P1",
		Name:         "Ada",
		NationalID:   "111222333",
		Phone:        "555-0100",
		Email:        "ada@example.com",
		RegisteredAt: time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC),
	}})
	require.NoError(t, err)

	rows := readCSV(t, dir, name)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"P1", "Ada", "111222333", "555-0100", "ada@example.com", "2026-08-01"}, rows[1])
}

func TestProvidersCSV(t *testing.T) {
	dir := t.TempDir()
	svc := NewService(dir)

	name, err := svc.ProvidersCSV([]scheduling.Provider{{
		ID:           "D1",
		Name:         "Dr. Ril",
		LicenseCode:  "L-1",
		Specialty:    "Dermatology",
		Slots:        []string{"09:00", "10:00"},
		RegisteredAt: time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC),
	}})
	require.NoError(t, err)

	rows := readCSV(t, dir, name)
	require.Len(t, rows, 2)
	assert.Equal(t, "09:00 10:00", rows[1][4])
}

func TestEmptyReportHasHeaderOnly(t *testing.T) {
	dir := t.TempDir()
	svc := NewService(dir)

	name, err := svc.PatientsCSV(nil)
	require.NoError(t, err)

	rows := readCSV(t, dir, name)
	assert.Len(t, rows, 1)
}

func TestList(t *testing.T) {
	dir := t.TempDir()
	svc := NewService(dir)

	names, err := svc.List()
	require.NoError(t, err)
	assert.Empty(t, names)

	for _, name := range []string{
		"patients_20260101_090000.csv",
		"patients_20260102_090000.csv",
		"notes.txt",
	} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("ID\n"), 0o644))
	}

	names, err = svc.List()
	require.NoError(t, err)
	assert.Equal(t, []string{
		"patients_20260102_090000.csv",
		"patients_20260101_090000.csv",
	}, names)
}

func TestListMissingDir(t *testing.T) {
	svc := NewService(filepath.Join(t.TempDir(), "nope"))

	names, err := svc.List()
	require.NoError(t, err)
	assert.Empty(t, names)
}
