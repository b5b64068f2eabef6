package main

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/brianvoe/gofakeit/v6"

	"github.com/clinicdesk/appointment-scheduling/internal/cache"
	"github.com/clinicdesk/appointment-scheduling/internal/config"
	"github.com/clinicdesk/appointment-scheduling/internal/scheduling"
	"github.com/clinicdesk/appointment-scheduling/internal/storage"
)

const (
	providerCount = 20
	patientCount  = 200
)

var specialties = []string{
	"Dermatology",
	"Cardiology",
	"General Practice",
	"Orthopedics",
	"Endocrinology",
	"Neurology",
	"Pediatrics",
	"Psychiatry",
	"Ophthalmology",
	"ENT",
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("seed starting")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}
	if err := cfg.EnsureDirs(); err != nil {
		log.Fatalf("directory setup error: %v", err)
	}

	store := storage.NewStore(cfg.DataDir)
	svc := scheduling.NewService(store,
		cache.New(cfg.CacheCapacity, cfg.CacheTTL), scheduling.NewMutexLocker())

	gofakeit.Seed(time.Now().UnixNano())

	if err := seedProviders(svc, providerCount); err != nil {
		log.Fatalf("seed providers: %v", err)
	}
	if err := seedPatients(svc, patientCount); err != nil {
		log.Fatalf("seed patients: %v", err)
	}

	log.Println("seed complete")
}

func seedProviders(svc *scheduling.Service, count int) error {
	log.Printf("seeding %d providers", count)

	for i := 0; i < count; i++ {
		slots := make([]string, 0, 8)
		for hour := 8; hour < 12; hour++ {
			slots = append(slots, fmt.Sprintf("%02d:00", hour))
		}
		for hour := 14; hour < 18; hour++ {
			slots = append(slots, fmt.Sprintf("%02d:00", hour))
		}

		license := fmt.Sprintf("%d-%s", gofakeit.Number(10000, 99999), gofakeit.LetterN(2))
		spec := specialties[gofakeit.Number(0, len(specialties)-1)]

		if _, err := svc.CreateProvider(gofakeit.Name(), license, spec, slots); err != nil {
			return err
		}
	}

	log.Println("providers seeded")
	return nil
}

func seedPatients(svc *scheduling.Service, count int) error {
	log.Printf("seeding %d patients", count)

	for i := 0; i < count; i++ {
		nationalID := fmt.Sprintf("%09d", gofakeit.Number(100000000, 999999999))

		_, err := svc.CreatePatient(gofakeit.Name(), nationalID, gofakeit.Phone(), gofakeit.Email())
		if err != nil {
			// Duplicate national ids from the generator are skipped,
			// everything else aborts the run.
			if errors.Is(err, scheduling.ErrDuplicateNationalID) {
				continue
			}
			return err
		}
	}

	log.Println("patients seeded")
	return nil
}
