// simulate fires concurrent booking traffic at a running api-server to
// demonstrate the booking guarantee under contention: many workers race
// for a narrow set of (provider, date, slot) tuples and every tuple is
// won at most once, the rest observing conflicts.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/clinicdesk/appointment-scheduling/internal/config"
	"github.com/clinicdesk/appointment-scheduling/internal/scheduling"
	"github.com/clinicdesk/appointment-scheduling/internal/storage"
)

type SimConfig struct {
	APIBaseURL   string
	Duration     time.Duration
	Workers      int
	BookingRatio float64
	Days         int // how many distinct dates bookings spread over
}

type DataPool struct {
	PatientIDs  []string
	ProviderIDs []string
	Slots       map[string][]string // provider id -> slot labels

	mu           sync.RWMutex
	appointments []string
}

func (dp *DataPool) AddAppointment(id string) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.appointments = append(dp.appointments, id)
}

func (dp *DataPool) RandomAppointment(rng *rand.Rand) (string, bool) {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	if len(dp.appointments) == 0 {
		return "", false
	}
	return dp.appointments[rng.Intn(len(dp.appointments))], true
}

type OperationMetrics struct {
	Total    int64
	Success  int64
	Conflict int64
	Error    int64

	mu        sync.Mutex
	latencies []time.Duration
}

func (om *OperationMetrics) Record(latency time.Duration, success, conflict bool) {
	atomic.AddInt64(&om.Total, 1)
	switch {
	case success:
		atomic.AddInt64(&om.Success, 1)
	case conflict:
		atomic.AddInt64(&om.Conflict, 1)
	default:
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.latencies = append(om.latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, p50, p95 time.Duration) {
	om.mu.Lock()
	defer om.mu.Unlock()

	if len(om.latencies) == 0 {
		return 0, 0, 0
	}

	latencies := make([]time.Duration, len(om.latencies))
	copy(latencies, om.latencies)
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}
	avg = sum / time.Duration(len(latencies))
	p50 = latencies[len(latencies)*50/100]
	p95 = latencies[min(len(latencies)*95/100, len(latencies)-1)]
	return avg, p50, p95
}

type Simulator struct {
	config  SimConfig
	pool    *DataPool
	client  *http.Client
	booking OperationMetrics
	confirm OperationMetrics
	reads   OperationMetrics
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("simulator starting")

	simCfg := loadSimConfig()
	log.Printf("config: duration=%s workers=%d booking=%.2f days=%d",
		simCfg.Duration, simCfg.Workers, simCfg.BookingRatio, simCfg.Days)

	baseCfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	pool, err := loadDataPool(storage.NewStore(baseCfg.DataDir))
	if err != nil {
		log.Fatalf("load data pool: %v", err)
	}
	log.Printf("loaded: %d patients, %d providers", len(pool.PatientIDs), len(pool.ProviderIDs))

	sim := &Simulator{
		config: simCfg,
		pool:   pool,
		client: &http.Client{Timeout: 10 * time.Second},
	}

	sim.Run()
	sim.PrintReport()
}

func loadSimConfig() SimConfig {
	cfg := SimConfig{
		APIBaseURL:   getEnv("SIM_API_BASE_URL", "http://localhost:8080"),
		Duration:     getDuration("SIM_DURATION", 30*time.Second),
		Workers:      getInt("SIM_WORKERS", 10),
		BookingRatio: getFloat("SIM_BOOKING_RATIO", 0.6),
		Days:         getInt("SIM_DAYS", 3),
	}
	if cfg.Workers <= 0 || cfg.Duration <= 0 {
		log.Fatal("SIM_WORKERS and SIM_DURATION must be > 0")
	}
	return cfg
}

// loadDataPool reads ids straight from the collection files; the
// simulator only talks HTTP once the run starts.
func loadDataPool(store *storage.Store) (*DataPool, error) {
	pool := &DataPool{Slots: make(map[string][]string)}

	patients, err := store.Load(scheduling.CollectionPatients)
	if err != nil {
		return nil, err
	}
	for _, rec := range patients {
		if id, ok := rec["id"].(string); ok {
			pool.PatientIDs = append(pool.PatientIDs, id)
		}
	}

	providers, err := store.Load(scheduling.CollectionProviders)
	if err != nil {
		return nil, err
	}
	for _, rec := range providers {
		id, ok := rec["id"].(string)
		if !ok {
			continue
		}
		var slots []string
		if raw, ok := rec["slots"].([]any); ok {
			for _, s := range raw {
				if label, ok := s.(string); ok {
					slots = append(slots, label)
				}
			}
		}
		if len(slots) > 0 {
			pool.ProviderIDs = append(pool.ProviderIDs, id)
			pool.Slots[id] = slots
		}
	}

	if len(pool.PatientIDs) == 0 || len(pool.ProviderIDs) == 0 {
		return nil, fmt.Errorf("empty data pool, run cmd/seed first")
	}
	return pool, nil
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	log.Printf("starting simulation for %s with %d workers", s.config.Duration, s.config.Workers)

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}
	wg.Wait()

	log.Println("simulation complete")
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))

	for {
		select {
		case <-ctx.Done():
			return
		default:
			r := rng.Float64()
			switch {
			case r < s.config.BookingRatio:
				s.doBooking(ctx, rng)
			case r < s.config.BookingRatio+0.15:
				s.doConfirm(ctx, rng)
			default:
				s.doRead(ctx, rng)
			}
		}
	}
}

func (s *Simulator) doBooking(ctx context.Context, rng *rand.Rand) {
	providerID := s.pool.ProviderIDs[rng.Intn(len(s.pool.ProviderIDs))]
	slots := s.pool.Slots[providerID]

	req := BookRequest{
		PatientID:  s.pool.PatientIDs[rng.Intn(len(s.pool.PatientIDs))],
		ProviderID: providerID,
		Date:       time.Now().AddDate(0, 0, 1+rng.Intn(s.config.Days)).Format("2006-01-02"),
		Slot:       slots[rng.Intn(len(slots))],
		Notes:      "simulated booking",
	}
	body, _ := json.Marshal(req)

	start := time.Now()
	resp, err := s.post(ctx, "/appointments", body)
	latency := time.Since(start)

	success, conflict := false, false
	if err == nil {
		func() {
			defer resp.Body.Close()

			switch resp.StatusCode {
			case http.StatusCreated:
				success = true
				var created struct {
					ID string `json:"id"`
				}
				raw, _ := io.ReadAll(resp.Body)
				if json.Unmarshal(raw, &created) == nil && created.ID != "" {
					s.pool.AddAppointment(created.ID)
				}
			case http.StatusConflict:
				conflict = true
			}
		}()
	}

	s.booking.Record(latency, success, conflict)
}

func (s *Simulator) doConfirm(ctx context.Context, rng *rand.Rand) {
	id, ok := s.pool.RandomAppointment(rng)
	if !ok {
		return
	}

	start := time.Now()
	resp, err := s.post(ctx, "/appointments/"+id+"/confirm", nil)
	latency := time.Since(start)

	success := false
	if err == nil {
		resp.Body.Close()
		success = resp.StatusCode == http.StatusOK
	}
	s.confirm.Record(latency, success, false)
}

func (s *Simulator) doRead(ctx context.Context, rng *rand.Rand) {
	path := "/appointments"
	if id, ok := s.pool.RandomAppointment(rng); ok && rng.Intn(2) == 0 {
		path += "/" + id
	}

	start := time.Now()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, s.config.APIBaseURL+path, nil)
	resp, err := s.client.Do(req)
	latency := time.Since(start)

	success := false
	if err == nil {
		resp.Body.Close()
		success = resp.StatusCode == http.StatusOK
	}
	s.reads.Record(latency, success, false)
}

type BookRequest struct {
	PatientID  string `json:"patient_id"`
	ProviderID string `json:"provider_id"`
	Date       string `json:"date"`
	Slot       string `json:"slot"`
	Notes      string `json:"notes"`
}

func (s *Simulator) post(ctx context.Context, path string, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.APIBaseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return s.client.Do(req)
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n================== SIMULATION REPORT ==================")
	fmt.Printf("Duration: %s  Workers: %d\n\n", s.config.Duration, s.config.Workers)

	printOperationReport("Booking", &s.booking)
	printOperationReport("Confirm", &s.confirm)
	printOperationReport("Reads", &s.reads)
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}

	success := atomic.LoadInt64(&om.Success)
	conflict := atomic.LoadInt64(&om.Conflict)
	errCount := atomic.LoadInt64(&om.Error)
	avg, p50, p95 := om.Stats()

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d\n", total)
	fmt.Printf("  Success: %d (%.1f%%)\n", success, float64(success)/float64(total)*100)
	if conflict > 0 {
		fmt.Printf("  Conflicts: %d (%.1f%%)\n", conflict, float64(conflict)/float64(total)*100)
	}
	if errCount > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", errCount, float64(errCount)/float64(total)*100)
	}
	fmt.Printf("  Latency: avg=%s p50=%s p95=%s\n\n",
		avg.Round(time.Millisecond), p50.Round(time.Millisecond), p95.Round(time.Millisecond))
}

// Helper functions

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}
