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
	"net/url"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/clinic-availability/internal/config"
	"github.com/hackgods/clinic-availability/internal/db"
	"github.com/hackgods/clinic-availability/internal/interval"
)

type SimConfig struct {
	APIBaseURL   string
	Duration     time.Duration
	Workers      int
	BookingRatio float64
	ChangeRatio  float64
	ReadRatio    float64
	DoctorLimit  int
	HotSlots     int // bookings pick among the first HotSlots free slots to force contention
	PostgresDSN  string
}

type DataPool struct {
	Doctors      []uuid.UUID
	Patients     []uuid.UUID
	mu           sync.RWMutex
	appointments []uuid.UUID
}

func (dp *DataPool) AddAppointment(id uuid.UUID) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.appointments = append(dp.appointments, id)
}

func (dp *DataPool) GetRandomAppointment(rng *rand.Rand) (uuid.UUID, bool) {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	if len(dp.appointments) == 0 {
		return uuid.Nil, false
	}
	return dp.appointments[rng.Intn(len(dp.appointments))], true
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
}

func (om *OperationMetrics) Record(latency time.Duration, success bool, conflict bool) {
	atomic.AddInt64(&om.Total, 1)
	if success {
		atomic.AddInt64(&om.Success, 1)
	} else if conflict {
		atomic.AddInt64(&om.Conflict, 1)
	} else {
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.Latencies = append(om.Latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, min, max, p50, p95 time.Duration) {
	om.mu.Lock()
	defer om.mu.Unlock()

	if len(om.Latencies) == 0 {
		return 0, 0, 0, 0, 0
	}

	latencies := make([]time.Duration, len(om.Latencies))
	copy(latencies, om.Latencies)

	sort.Slice(latencies, func(i, j int) bool {
		return latencies[i] < latencies[j]
	})

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}

	avg = sum / time.Duration(len(latencies))
	min = latencies[0]
	max = latencies[len(latencies)-1]
	p50 = latencies[percentileIndex(len(latencies), 50)]
	p95 = latencies[percentileIndex(len(latencies), 95)]

	return avg, min, max, p50, p95
}

func percentileIndex(n, p int) int {
	idx := n * p / 100
	if idx >= n {
		idx = n - 1
	}
	return idx
}

type Metrics struct {
	Slots      OperationMetrics
	Booking    OperationMetrics
	Confirm    OperationMetrics
	Cancel     OperationMetrics
	Reschedule OperationMetrics
	ReadByID   OperationMetrics
	ListByDoc  OperationMetrics
}

// Rejections by error code, e.g. overlap vs outside_window.
type rejectCounts struct {
	mu     sync.Mutex
	counts map[string]int
}

func (rc *rejectCounts) Add(code string) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	if rc.counts == nil {
		rc.counts = make(map[string]int)
	}
	rc.counts[code]++
}

type Simulator struct {
	config  SimConfig
	pool    *DataPool
	client  *http.Client
	metrics Metrics
	rejects rejectCounts
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("simulator starting")

	cfg := loadConfig()
	if err := validateConfig(cfg); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	log.Printf("config: duration=%s workers=%d booking=%.2f change=%.2f read=%.2f hot_slots=%d",
		cfg.Duration, cfg.Workers, cfg.BookingRatio, cfg.ChangeRatio, cfg.ReadRatio, cfg.HotSlots)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pgPool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN, db.PoolOptions{ApplicationName: "clinic-simulate"})
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pgPool.Close()

	dataPool, err := loadDataPool(ctx, pgPool, cfg)
	if err != nil {
		log.Fatalf("load data pool: %v", err)
	}

	log.Printf("loaded: %d doctors, %d patients", len(dataPool.Doctors), len(dataPool.Patients))

	sim := &Simulator{
		config: cfg,
		pool:   dataPool,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}

	sim.Run()
	sim.PrintReport()

	checkCtx, cancelCheck := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelCheck()
	overlaps, err := countOverlaps(checkCtx, pgPool, dataPool.Doctors)
	if err != nil {
		log.Fatalf("overlap check: %v", err)
	}
	fmt.Printf("Overlapping active appointments: %d\n", overlaps)
	if overlaps > 0 {
		os.Exit(1)
	}
}

func loadConfig() SimConfig {
	baseCfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load base config: %v", err)
	}

	cfg := SimConfig{
		APIBaseURL:   getEnv("SIM_API_BASE_URL", "http://localhost:8080"),
		Duration:     getDuration("SIM_DURATION", 30*time.Second),
		Workers:      getInt("SIM_WORKERS", 10),
		BookingRatio: getFloat("SIM_BOOKING_RATIO", 0.5),
		ChangeRatio:  getFloat("SIM_CHANGE_RATIO", 0.2),
		ReadRatio:    getFloat("SIM_READ_RATIO", 0.3),
		DoctorLimit:  getInt("SIM_DOCTOR_LIMIT", 20),
		HotSlots:     getInt("SIM_HOT_SLOTS", 3),
		PostgresDSN:  baseCfg.PostgresDSN,
	}

	// Normalize ratios
	total := cfg.BookingRatio + cfg.ChangeRatio + cfg.ReadRatio
	if total > 0 {
		cfg.BookingRatio /= total
		cfg.ChangeRatio /= total
		cfg.ReadRatio /= total
	}

	return cfg
}

func validateConfig(cfg SimConfig) error {
	if cfg.PostgresDSN == "" {
		return fmt.Errorf("POSTGRES_DSN is required (set in .env or environment)")
	}
	if cfg.Workers <= 0 {
		return fmt.Errorf("SIM_WORKERS must be > 0")
	}
	if cfg.Duration <= 0 {
		return fmt.Errorf("SIM_DURATION must be > 0")
	}
	if cfg.HotSlots <= 0 {
		return fmt.Errorf("SIM_HOT_SLOTS must be > 0")
	}
	return nil
}

func loadDataPool(ctx context.Context, pool *pgxpool.Pool, cfg SimConfig) (*DataPool, error) {
	dataPool := &DataPool{}

	rows, err := pool.Query(ctx, `
		SELECT doctor_id FROM availability_profiles
		ORDER BY updated_at DESC
		LIMIT $1
	`, cfg.DoctorLimit)
	if err != nil {
		return nil, fmt.Errorf("load doctors: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		dataPool.Doctors = append(dataPool.Doctors, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(dataPool.Doctors) == 0 {
		return nil, fmt.Errorf("no availability profiles loaded, run the seed first")
	}

	// patients live outside this service; invent a stable set
	faker := gofakeit.New(0)
	for i := 0; i < cfg.Workers*20; i++ {
		id, err := uuid.Parse(faker.UUID())
		if err != nil {
			return nil, err
		}
		dataPool.Patients = append(dataPool.Patients, id)
	}

	return dataPool, nil
}

// countOverlaps finds pairs of active appointments of the same doctor whose
// intervals intersect. Any hit means a double booking got through.
func countOverlaps(ctx context.Context, pool *pgxpool.Pool, doctors []uuid.UUID) (int, error) {
	var n int
	err := pool.QueryRow(ctx, `
		SELECT count(*)
		FROM appointments a
		JOIN appointments b
		  ON a.doctor_id = b.doctor_id
		 AND a.id < b.id
		 AND a.start_time < b.end_time
		 AND b.start_time < a.end_time
		WHERE a.doctor_id = ANY($1)
		  AND a.status IN ('pending', 'confirmed')
		  AND b.status IN ('pending', 'confirmed')
	`, doctors).Scan(&n)
	return n, err
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
			case r < s.config.BookingRatio+s.config.ChangeRatio:
				switch rng.Intn(3) {
				case 0:
					s.doTransition(ctx, rng, "confirm", &s.metrics.Confirm)
				case 1:
					s.doTransition(ctx, rng, "cancel", &s.metrics.Cancel)
				case 2:
					s.doReschedule(ctx, rng)
				}
			default:
				if rng.Intn(2) == 0 {
					s.doReadByID(ctx, rng)
				} else {
					s.doListByDoctor(ctx, rng)
				}
			}
		}
	}
}

func (s *Simulator) randomDoctor(rng *rand.Rand) uuid.UUID {
	return s.pool.Doctors[rng.Intn(len(s.pool.Doctors))]
}

func (s *Simulator) fetchSlots(ctx context.Context, doctorID uuid.UUID) ([]interval.Interval, error) {
	from := time.Now().UTC().Truncate(time.Hour).Add(time.Hour)
	q := url.Values{}
	q.Set("from", from.Format(time.RFC3339))
	q.Set("to", from.AddDate(0, 0, 7).Format(time.RFC3339))

	start := time.Now()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/availability/%s/slots?%s", s.config.APIBaseURL, doctorID, q.Encode()), nil)

	resp, err := s.client.Do(req)
	latency := time.Since(start)
	if err != nil {
		s.metrics.Slots.Record(latency, false, false)
		return nil, err
	}
	defer resp.Body.Close()

	var body struct {
		Slots []interval.Interval `json:"slots"`
	}
	ok := resp.StatusCode == http.StatusOK && json.NewDecoder(resp.Body).Decode(&body) == nil
	s.metrics.Slots.Record(latency, ok, false)
	if !ok {
		return nil, fmt.Errorf("slots: status %d", resp.StatusCode)
	}
	return body.Slots, nil
}

// pickHot chooses among the earliest slots so that workers collide.
func (s *Simulator) pickHot(rng *rand.Rand, slots []interval.Interval) (interval.Interval, bool) {
	if len(slots) == 0 {
		return interval.Interval{}, false
	}
	n := s.config.HotSlots
	if n > len(slots) {
		n = len(slots)
	}
	return slots[rng.Intn(n)], true
}

func (s *Simulator) doBooking(ctx context.Context, rng *rand.Rand) {
	doctorID := s.randomDoctor(rng)
	slots, err := s.fetchSlots(ctx, doctorID)
	if err != nil {
		return
	}
	slot, ok := s.pickHot(rng, slots)
	if !ok {
		return
	}

	body, _ := json.Marshal(map[string]any{
		"patientId": s.pool.Patients[rng.Intn(len(s.pool.Patients))].String(),
		"doctorId":  doctorID.String(),
		"startTime": slot.Start,
		"endTime":   slot.End,
	})

	start := time.Now()
	req, _ := http.NewRequestWithContext(ctx, http.MethodPost, s.config.APIBaseURL+"/appointments", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	latency := time.Since(start)

	success := false
	conflict := false

	if err == nil {
		defer resp.Body.Close()
		bodyBytes, _ := io.ReadAll(resp.Body)

		switch resp.StatusCode {
		case http.StatusCreated:
			success = true
			var apptResp struct {
				ID uuid.UUID `json:"id"`
			}
			if json.Unmarshal(bodyBytes, &apptResp) == nil && apptResp.ID != uuid.Nil {
				s.pool.AddAppointment(apptResp.ID)
			}
		case http.StatusConflict:
			conflict = true
			var errResp struct {
				Error string `json:"error"`
			}
			if json.Unmarshal(bodyBytes, &errResp) == nil {
				s.rejects.Add(errResp.Error)
			}
		}
	}

	s.metrics.Booking.Record(latency, success, conflict)
}

var cancelReasons = []string{"", "patient request", "doctor unavailable", "rebooked elsewhere"}

func (s *Simulator) doTransition(ctx context.Context, rng *rand.Rand, action string, om *OperationMetrics) {
	apptID, ok := s.pool.GetRandomAppointment(rng)
	if !ok {
		return
	}

	var body io.Reader
	if action == "cancel" {
		reason := cancelReasons[rng.Intn(len(cancelReasons))]
		body = strings.NewReader(fmt.Sprintf(`{"reason": %q}`, reason))
	}

	start := time.Now()
	req, _ := http.NewRequestWithContext(ctx, http.MethodPost,
		fmt.Sprintf("%s/appointments/%s/%s", s.config.APIBaseURL, apptID, action), body)

	resp, err := s.client.Do(req)
	latency := time.Since(start)

	success := false
	conflict := false

	if err == nil {
		defer resp.Body.Close()
		success = resp.StatusCode == http.StatusOK
		conflict = resp.StatusCode == http.StatusConflict
	}

	om.Record(latency, success, conflict)
}

func (s *Simulator) doReschedule(ctx context.Context, rng *rand.Rand) {
	apptID, ok := s.pool.GetRandomAppointment(rng)
	if !ok {
		return
	}

	appt, err := s.getAppointment(ctx, apptID)
	if err != nil || appt.Status == "cancelled" || appt.Status == "completed" {
		return
	}
	slots, err := s.fetchSlots(ctx, appt.DoctorID)
	if err != nil {
		return
	}
	slot, ok := s.pickHot(rng, slots)
	if !ok {
		return
	}

	body, _ := json.Marshal(map[string]any{"startTime": slot.Start, "endTime": slot.End})

	start := time.Now()
	req, _ := http.NewRequestWithContext(ctx, http.MethodPut,
		fmt.Sprintf("%s/appointments/%s", s.config.APIBaseURL, apptID), bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	latency := time.Since(start)

	success := false
	conflict := false

	if err == nil {
		defer resp.Body.Close()
		success = resp.StatusCode == http.StatusOK
		conflict = resp.StatusCode == http.StatusConflict
	}

	s.metrics.Reschedule.Record(latency, success, conflict)
}

type appointmentView struct {
	ID       uuid.UUID `json:"id"`
	DoctorID uuid.UUID `json:"doctorId"`
	Status   string    `json:"status"`
}

func (s *Simulator) getAppointment(ctx context.Context, id uuid.UUID) (*appointmentView, error) {
	start := time.Now()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/appointments/%s", s.config.APIBaseURL, id), nil)

	resp, err := s.client.Do(req)
	latency := time.Since(start)
	if err != nil {
		s.metrics.ReadByID.Record(latency, false, false)
		return nil, err
	}
	defer resp.Body.Close()

	var appt appointmentView
	ok := resp.StatusCode == http.StatusOK && json.NewDecoder(resp.Body).Decode(&appt) == nil
	s.metrics.ReadByID.Record(latency, ok, false)
	if !ok {
		return nil, fmt.Errorf("get appointment: status %d", resp.StatusCode)
	}
	return &appt, nil
}

func (s *Simulator) doReadByID(ctx context.Context, rng *rand.Rand) {
	apptID, ok := s.pool.GetRandomAppointment(rng)
	if !ok {
		return
	}
	_, _ = s.getAppointment(ctx, apptID)
}

func (s *Simulator) doListByDoctor(ctx context.Context, rng *rand.Rand) {
	doctorID := s.randomDoctor(rng)

	start := time.Now()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/appointments?doctorId=%s&limit=20", s.config.APIBaseURL, doctorID), nil)

	resp, err := s.client.Do(req)
	latency := time.Since(start)

	success := false
	if err == nil {
		defer resp.Body.Close()
		success = resp.StatusCode == http.StatusOK
	}

	s.metrics.ListByDoc.Record(latency, success, false)
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Duration: %s\n", s.config.Duration)
	fmt.Printf("Workers: %d\n", s.config.Workers)
	fmt.Println()

	printOperationReport("Slot query", &s.metrics.Slots)
	printOperationReport("Booking", &s.metrics.Booking)
	printOperationReport("Confirm", &s.metrics.Confirm)
	printOperationReport("Cancel", &s.metrics.Cancel)
	printOperationReport("Reschedule", &s.metrics.Reschedule)
	printOperationReport("Read by ID", &s.metrics.ReadByID)
	printOperationReport("List by doctor", &s.metrics.ListByDoc)

	s.rejects.mu.Lock()
	defer s.rejects.mu.Unlock()
	if len(s.rejects.counts) > 0 {
		codes := make([]string, 0, len(s.rejects.counts))
		for code := range s.rejects.counts {
			codes = append(codes, code)
		}
		sort.Strings(codes)
		fmt.Println("Booking rejections:")
		for _, code := range codes {
			fmt.Printf("  %s: %d\n", code, s.rejects.counts[code])
		}
		fmt.Println()
	}
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}

	success := atomic.LoadInt64(&om.Success)
	conflict := atomic.LoadInt64(&om.Conflict)
	failed := atomic.LoadInt64(&om.Error)

	avg, min, max, p50, p95 := om.Stats()

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d\n", total)
	fmt.Printf("  Success: %d (%.1f%%)\n", success, float64(success)/float64(total)*100)
	if conflict > 0 {
		fmt.Printf("  Conflicts: %d (%.1f%%)\n", conflict, float64(conflict)/float64(total)*100)
	}
	if failed > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", failed, float64(failed)/float64(total)*100)
	}
	fmt.Printf("  Latency: avg=%s min=%s max=%s p50=%s p95=%s\n",
		avg.Round(time.Millisecond), min.Round(time.Millisecond), max.Round(time.Millisecond),
		p50.Round(time.Millisecond), p95.Round(time.Millisecond))
	fmt.Println()
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
