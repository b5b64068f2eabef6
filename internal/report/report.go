// Package report generates CSV exports from the scheduling read APIs.
package report

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/natefinch/atomic"

	"github.com/clinicdesk/appointment-scheduling/internal/scheduling"
)

const stampLayout = "20060102_150405"

type Service struct {
	dir string
}

func NewService(dir string) *Service {
	return &Service{dir: dir}
}

// AppointmentsCSV writes an appointment report joined against patient
// and provider names. Returns the generated filename.
func (s *Service) AppointmentsCSV(
	appointments []scheduling.Appointment,
	patients map[string]scheduling.Patient,
	providers map[string]scheduling.Provider,
) (string, error) {
	rows := [][]string{{"ID", "Patient", "National ID", "Provider", "Specialty", "Date", "Slot", "Status", "Notes"}}

	for _, a := range appointments {
		patientName, nationalID := "unknown", "-"
		if p, ok := patients[a.PatientID]; ok {
			patientName, nationalID = p.Name, p.NationalID
		}
		providerName, specialty := "unknown", "-"
		if p, ok := providers[a.ProviderID]; ok {
			providerName, specialty = p.Name, p.Specialty
		}
		notes := a.Notes
		if notes == "" {
			notes = "-"
		}
		rows = append(rows, []string{
			a.ID, patientName, nationalID, providerName, specialty,
			a.Date, a.Slot, string(a.Status), notes,
		})
	}

	return s.write("appointments", rows)
}

// PatientsCSV writes a patient roster report.
func (s *Service) PatientsCSV(patients []scheduling.Patient) (string, error) {
	rows := [][]string{{"ID", "Name", "National ID", "Phone", "Email", "Registered"}}
	for _, p := range patients {
		rows = append(rows, []string{
			p.ID, p.Name, p.NationalID, p.Phone, p.Email,
			p.RegisteredAt.Format("2006-01-02"),
		})
	}
	return s.write("patients", rows)
}

// ProvidersCSV writes a provider roster report.
func (s *Service) ProvidersCSV(providers []scheduling.Provider) (string, error) {
	rows := [][]string{{"ID", "Name", "License", "Specialty", "Slots", "Registered"}}
	for _, p := range providers {
		rows = append(rows, []string{
			p.ID, p.Name, p.LicenseCode, p.Specialty,
			strings.Join(p.Slots, " "),
			p.RegisteredAt.Format("2006-01-02"),
		})
	}
	return s.write("providers", rows)
}

func (s *Service) write(kind string, rows [][]string) (string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("report dir: %w", err)
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.WriteAll(rows); err != nil {
		return "", fmt.Errorf("write csv: %w", err)
	}

	name := fmt.Sprintf("%s_%s.csv", kind, time.Now().Format(stampLayout))
	if err := atomic.WriteFile(filepath.Join(s.dir, name), &buf); err != nil {
		return "", fmt.Errorf("write report %s: %w", name, err)
	}

	log.Printf("event=report_generated file=%s rows=%d", name, len(rows)-1)
	return name, nil
}

// List returns generated report filenames, newest first.
func (s *Service) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("list reports: %w", err)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".csv") {
			names = append(names, e.Name())
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(names)))
	return names, nil
}
