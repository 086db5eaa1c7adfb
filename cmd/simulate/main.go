package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/hackgods/hospital-portal-scheduling/internal/api"
	"github.com/hackgods/hospital-portal-scheduling/internal/db"
	"github.com/hackgods/hospital-portal-scheduling/internal/logging"
	"github.com/hackgods/hospital-portal-scheduling/internal/policy"
	"github.com/hackgods/hospital-portal-scheduling/internal/schedule"
)

type SimConfig struct {
	APIBaseURL   string
	Duration     time.Duration
	Workers      int
	BookingRatio float64
	CancelRatio  float64
	ReadRatio    float64
	PatientLimit int
	Date         string
	DoctorID     int64
	HospitalID   int64
	PostgresDSN  string
	JWT          api.JWTConfig
}

// bookedRef is an appointment created during the run together with its owner.
type bookedRef struct {
	ID     int64
	UserID int64
}

type DataPool struct {
	Patients     []int64
	Slots        []string
	tokens       map[int64]string
	mu           sync.RWMutex
	appointments []bookedRef
}

func (dp *DataPool) AddAppointment(ref bookedRef) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.appointments = append(dp.appointments, ref)
}

// TakeRandomAppointment removes and returns a random booked appointment.
func (dp *DataPool) TakeRandomAppointment(rng *rand.Rand) (bookedRef, bool) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	if len(dp.appointments) == 0 {
		return bookedRef{}, false
	}
	idx := rng.Intn(len(dp.appointments))
	ref := dp.appointments[idx]
	dp.appointments[idx] = dp.appointments[len(dp.appointments)-1]
	dp.appointments = dp.appointments[:len(dp.appointments)-1]
	return ref, true
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
	Booking     OperationMetrics
	Cancel      OperationMetrics
	DaySchedule OperationMetrics
	History     OperationMetrics
}

type Simulator struct {
	config  SimConfig
	pool    *DataPool
	client  *http.Client
	metrics Metrics
	logger  zerolog.Logger
}

func main() {
	logger := logging.New("simulate", getEnv("APP_ENV", "dev"), getEnv("LOG_LEVEL", "info"))
	logger.Info().Msg("simulator starting")

	cfg := loadConfig()
	if err := validateConfig(cfg); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	logger.Info().
		Dur("duration", cfg.Duration).
		Int("workers", cfg.Workers).
		Float64("booking", cfg.BookingRatio).
		Float64("cancel", cfg.CancelRatio).
		Float64("read", cfg.ReadRatio).
		Str("date", cfg.Date).
		Msg("config")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	sim := &Simulator{
		config: cfg,
		client: &http.Client{Timeout: 10 * time.Second},
		logger: logger,
	}

	dataPool, err := sim.loadDataPool(ctx)
	if err != nil {
		logger.Fatal().Err(err).Msg("load data pool")
	}
	sim.pool = dataPool

	logger.Info().
		Int("patients", len(dataPool.Patients)).
		Int("slots", len(dataPool.Slots)).
		Int64("doctor_id", cfg.DoctorID).
		Int64("hospital_id", cfg.HospitalID).
		Msg("loaded")

	sim.Run()
	sim.PrintReport()
}

func loadConfig() SimConfig {
	cfg := SimConfig{
		APIBaseURL:   getEnv("SIM_API_BASE_URL", "http://localhost:8080"),
		Duration:     getDuration("SIM_DURATION", 30*time.Second),
		Workers:      getInt("SIM_WORKERS", 10),
		BookingRatio: getFloat("SIM_BOOKING_RATIO", 0.6),
		CancelRatio:  getFloat("SIM_CANCEL_RATIO", 0.1),
		ReadRatio:    getFloat("SIM_READ_RATIO", 0.3),
		PatientLimit: getInt("SIM_PATIENT_LIMIT", 200),
		Date:         getEnv("SIM_DATE", time.Now().AddDate(0, 0, 1).Format(schedule.DateLayout)),
		DoctorID:     int64(getInt("SIM_DOCTOR_ID", 0)),
		HospitalID:   int64(getInt("SIM_HOSPITAL_ID", 0)),
		PostgresDSN:  os.Getenv("POSTGRES_DSN"),
		JWT: api.JWTConfig{
			Secret: []byte(os.Getenv("JWT_SECRET")),
			Issuer: os.Getenv("JWT_ISSUER"),
		},
	}

	// Normalize ratios
	total := cfg.BookingRatio + cfg.CancelRatio + cfg.ReadRatio
	if total > 0 {
		cfg.BookingRatio /= total
		cfg.CancelRatio /= total
		cfg.ReadRatio /= total
	}

	return cfg
}

func validateConfig(cfg SimConfig) error {
	if len(cfg.JWT.Secret) == 0 {
		return fmt.Errorf("JWT_SECRET is required to mint simulator tokens")
	}
	if cfg.Workers <= 0 {
		return fmt.Errorf("SIM_WORKERS must be > 0")
	}
	if cfg.Duration <= 0 {
		return fmt.Errorf("SIM_DURATION must be > 0")
	}
	if cfg.PatientLimit <= 0 {
		return fmt.Errorf("SIM_PATIENT_LIMIT must be > 0")
	}
	if _, err := time.Parse(schedule.DateLayout, cfg.Date); err != nil {
		return fmt.Errorf("SIM_DATE must be YYYY-MM-DD")
	}
	return nil
}

// loadDataPool picks the patients and the doctor/hospital pair to hammer.
// With POSTGRES_DSN set they come from the database; otherwise patient ids
// 1..SIM_PATIENT_LIMIT are used and the availability window is created
// through the API as an admin.
func (s *Simulator) loadDataPool(ctx context.Context) (*DataPool, error) {
	dataPool := &DataPool{tokens: make(map[int64]string)}

	if s.config.PostgresDSN != "" {
		pgPool, err := db.ConnectPostgres(ctx, s.config.PostgresDSN, nil)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		defer pgPool.Close()

		if err := s.loadFromPostgres(ctx, pgPool, dataPool); err != nil {
			return nil, err
		}
	} else {
		if s.config.DoctorID == 0 {
			s.config.DoctorID = 1
		}
		if s.config.HospitalID == 0 {
			s.config.HospitalID = 1
		}
		for id := int64(1); id <= int64(s.config.PatientLimit); id++ {
			dataPool.Patients = append(dataPool.Patients, id)
		}
		if err := s.ensureAvailability(ctx); err != nil {
			return nil, err
		}
	}

	slots, err := s.fetchSlots(ctx)
	if err != nil {
		return nil, err
	}
	dataPool.Slots = slots

	for _, id := range dataPool.Patients {
		token, err := api.NewToken(s.config.JWT, policy.Actor{UserID: id, Role: policy.RolePatient}, s.config.Duration+time.Hour)
		if err != nil {
			return nil, fmt.Errorf("mint token: %w", err)
		}
		dataPool.tokens[id] = token
	}

	if len(dataPool.Patients) == 0 {
		return nil, fmt.Errorf("no patients loaded")
	}
	if len(dataPool.Slots) == 0 {
		return nil, fmt.Errorf("no slots loaded")
	}

	return dataPool, nil
}

func (s *Simulator) loadFromPostgres(ctx context.Context, pool *pgxpool.Pool, dataPool *DataPool) error {
	rows, err := pool.Query(ctx, `
		SELECT id FROM users WHERE role = 'Patient' ORDER BY id LIMIT $1
	`, s.config.PatientLimit)
	if err != nil {
		return fmt.Errorf("load patients: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return err
		}
		dataPool.Patients = append(dataPool.Patients, id)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	if s.config.DoctorID != 0 && s.config.HospitalID != 0 {
		return nil
	}

	err = pool.QueryRow(ctx, `
		SELECT doctor_id, hospital_id FROM hospital_doctor ORDER BY doctor_id, hospital_id LIMIT 1
	`).Scan(&s.config.DoctorID, &s.config.HospitalID)
	if err != nil {
		return fmt.Errorf("load doctor availability: %w", err)
	}
	return nil
}

// ensureAvailability sets a 09:00-17:00 window when the pair has none.
func (s *Simulator) ensureAvailability(ctx context.Context) error {
	token, err := api.NewToken(s.config.JWT, policy.Actor{UserID: 1, Role: policy.RoleAdmin}, time.Hour)
	if err != nil {
		return fmt.Errorf("mint admin token: %w", err)
	}

	path := fmt.Sprintf("/availability/hospitals/%d/doctors/%d", s.config.HospitalID, s.config.DoctorID)

	resp, err := s.send(ctx, http.MethodGet, path, token, nil)
	if err != nil {
		return fmt.Errorf("get availability: %w", err)
	}
	resp.Body.Close()
	if resp.StatusCode == http.StatusOK {
		return nil
	}

	resp, err = s.send(ctx, http.MethodPut, path, token, map[string]string{
		"availability_start_time": "09:00 AM",
		"availability_end_time":   "05:00 PM",
	})
	if err != nil {
		return fmt.Errorf("set availability: %w", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("set availability: unexpected status %d", resp.StatusCode)
	}
	return nil
}

// fetchSlots reads the pair's window and expands it into bookable times.
func (s *Simulator) fetchSlots(ctx context.Context) ([]string, error) {
	token, err := api.NewToken(s.config.JWT, policy.Actor{UserID: 1, Role: policy.RoleStaff}, time.Hour)
	if err != nil {
		return nil, fmt.Errorf("mint staff token: %w", err)
	}

	path := fmt.Sprintf("/availability/hospitals/%d/doctors/%d", s.config.HospitalID, s.config.DoctorID)
	resp, err := s.send(ctx, http.MethodGet, path, token, nil)
	if err != nil {
		return nil, fmt.Errorf("get availability: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("get availability: unexpected status %d", resp.StatusCode)
	}

	var avail api.AvailabilityResponse
	if err := json.NewDecoder(resp.Body).Decode(&avail); err != nil {
		return nil, fmt.Errorf("decode availability: %w", err)
	}

	start, err := schedule.ParseClock(avail.StartTime)
	if err != nil {
		return nil, err
	}
	end, err := schedule.ParseClock(avail.EndTime)
	if err != nil {
		return nil, err
	}

	var slots []string
	for _, t := range schedule.GenerateSlots(start, end) {
		slots = append(slots, t.Clock12())
	}
	return slots, nil
}

func (s *Simulator) send(ctx context.Context, method, path, token string, body any) (*http.Response, error) {
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.config.APIBaseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	return s.client.Do(req)
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	s.logger.Info().Dur("duration", s.config.Duration).Int("workers", s.config.Workers).Msg("starting simulation")

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}

	wg.Wait()
	s.logger.Info().Msg("simulation complete")
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))

	for {
		select {
		case <-ctx.Done():
			return
		default:
			r := rng.Float64()
			if r < s.config.BookingRatio {
				s.doBooking(ctx, rng)
			} else if r < s.config.BookingRatio+s.config.CancelRatio {
				s.doCancel(ctx, rng)
			} else if rng.Intn(2) == 0 {
				s.doDaySchedule(ctx, rng)
			} else {
				s.doHistory(ctx, rng)
			}
		}
	}
}

func (s *Simulator) randomPatient(rng *rand.Rand) int64 {
	return s.pool.Patients[rng.Intn(len(s.pool.Patients))]
}

// doBooking races for a random slot. A taken slot (400) and a held slot
// lock (409) both count as conflicts.
func (s *Simulator) doBooking(ctx context.Context, rng *rand.Rand) {
	patientID := s.randomPatient(rng)
	slot := s.pool.Slots[rng.Intn(len(s.pool.Slots))]

	start := time.Now()
	resp, err := s.send(ctx, http.MethodPost, "/appointments/book", s.pool.tokens[patientID], map[string]any{
		"doctor_id":        s.config.DoctorID,
		"hospital_id":      s.config.HospitalID,
		"appointment_date": s.config.Date,
		"appointment_time": slot,
	})
	latency := time.Since(start)

	success := false
	conflict := false

	if err == nil {
		defer resp.Body.Close()

		switch resp.StatusCode {
		case http.StatusCreated:
			success = true
			var booked api.BookAppointmentResponse
			if json.NewDecoder(resp.Body).Decode(&booked) == nil && booked.AppointmentID != 0 {
				s.pool.AddAppointment(bookedRef{ID: booked.AppointmentID, UserID: patientID})
			}
		case http.StatusConflict:
			conflict = true
		case http.StatusBadRequest:
			var apiErr api.ErrorResponse
			if json.NewDecoder(resp.Body).Decode(&apiErr) == nil && apiErr.Error == "slot_already_booked" {
				conflict = true
			}
		}
	}

	s.metrics.Booking.Record(latency, success, conflict)
}

func (s *Simulator) doCancel(ctx context.Context, rng *rand.Rand) {
	ref, ok := s.pool.TakeRandomAppointment(rng)
	if !ok {
		return
	}

	start := time.Now()
	resp, err := s.send(ctx, http.MethodDelete,
		fmt.Sprintf("/appointments/%d/cancel", ref.ID), s.pool.tokens[ref.UserID], nil)
	latency := time.Since(start)

	success := false
	conflict := false

	if err == nil {
		defer resp.Body.Close()
		if resp.StatusCode == http.StatusOK {
			success = true
		} else if resp.StatusCode == http.StatusBadRequest {
			conflict = true
		}
	}

	s.metrics.Cancel.Record(latency, success, conflict)
}

func (s *Simulator) doDaySchedule(ctx context.Context, rng *rand.Rand) {
	patientID := s.randomPatient(rng)

	start := time.Now()
	resp, err := s.send(ctx, http.MethodGet,
		fmt.Sprintf("/appointments/doctors/%d/appointments?hospital_id=%d&selected_date=%s",
			s.config.DoctorID, s.config.HospitalID, s.config.Date),
		s.pool.tokens[patientID], nil)
	latency := time.Since(start)

	success := false
	if err == nil {
		defer resp.Body.Close()
		success = resp.StatusCode == http.StatusOK
	}

	s.metrics.DaySchedule.Record(latency, success, false)
}

func (s *Simulator) doHistory(ctx context.Context, rng *rand.Rand) {
	patientID := s.randomPatient(rng)

	start := time.Now()
	resp, err := s.send(ctx, http.MethodGet, "/appointments/history", s.pool.tokens[patientID], nil)
	latency := time.Since(start)

	success := false
	if err == nil {
		defer resp.Body.Close()
		success = resp.StatusCode == http.StatusOK
	}

	s.metrics.History.Record(latency, success, false)
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n" + repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(repeat("=", 80))
	fmt.Printf("Duration: %s\n", s.config.Duration)
	fmt.Printf("Workers: %d\n", s.config.Workers)
	fmt.Printf("Target: doctor=%d hospital=%d date=%s slots=%d\n",
		s.config.DoctorID, s.config.HospitalID, s.config.Date, len(s.pool.Slots))
	fmt.Println()

	printOperationReport("Booking", &s.metrics.Booking)
	printOperationReport("Cancel", &s.metrics.Cancel)
	printOperationReport("Day schedule", &s.metrics.DaySchedule)
	printOperationReport("History", &s.metrics.History)

	booked := atomic.LoadInt64(&s.metrics.Booking.Success)
	cancelled := atomic.LoadInt64(&s.metrics.Cancel.Success)
	if held := booked - cancelled; held > int64(len(s.pool.Slots)) {
		fmt.Printf("WARNING: %d active bookings for %d slots, double booking detected\n", held, len(s.pool.Slots))
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

func repeat(s string, n int) string {
	return strings.Repeat(s, n)
}
