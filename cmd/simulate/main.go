package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/hackgods/dental-availability/internal/availability"
	"github.com/hackgods/dental-availability/internal/config"
	"github.com/hackgods/dental-availability/internal/db"
	"github.com/hackgods/dental-availability/internal/logging"
)

// SimConfig drives a load test that concentrates bookings on a few provider
// days so that the schedule locks and exclusion constraints are contended.
type SimConfig struct {
	APIBaseURL      string
	Duration        time.Duration
	Workers         int
	BookRatio       float64
	CheckRatio      float64
	RescheduleRatio float64
	StatusRatio     float64
	ProviderLimit   int
	PatientLimit    int
	Date            time.Time
	Location        *time.Location
	PostgresDSN     string
}

type DataPool struct {
	Providers []uuid.UUID
	Patients  []uuid.UUID
	Resources []uuid.UUID

	mu           sync.RWMutex
	appointments []uuid.UUID
}

func (dp *DataPool) AddAppointment(id uuid.UUID) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.appointments = append(dp.appointments, id)
}

func (dp *DataPool) RandomAppointment(rng *rand.Rand) (uuid.UUID, bool) {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	if len(dp.appointments) == 0 {
		return uuid.Nil, false
	}
	return dp.appointments[rng.Intn(len(dp.appointments))], true
}

type Simulator struct {
	config  SimConfig
	pool    *DataPool
	client  *http.Client
	metrics Metrics
	logger  zerolog.Logger
}

func main() {
	baseCfg, err := config.Load()
	if err != nil {
		bootLogger := logging.Setup("prod", "")
		bootLogger.Fatal().Err(err).Msg("failed to load base config")
	}
	logger := logging.Setup(baseCfg.Env, baseCfg.LogLevel).With().Str("service", "simulate").Logger()

	cfg, err := loadConfig(baseCfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	logger.Info().
		Dur("duration", cfg.Duration).
		Int("workers", cfg.Workers).
		Str("date", cfg.Date.Format(time.DateOnly)).
		Float64("book", cfg.BookRatio).
		Float64("check", cfg.CheckRatio).
		Float64("reschedule", cfg.RescheduleRatio).
		Float64("status", cfg.StatusRatio).
		Msg("simulator starting")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pgPool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect postgres")
	}
	defer pgPool.Close()

	dataPool, err := loadDataPool(ctx, pgPool, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("load data pool")
	}
	logger.Info().
		Int("providers", len(dataPool.Providers)).
		Int("patients", len(dataPool.Patients)).
		Int("resources", len(dataPool.Resources)).
		Msg("data pool loaded")

	sim := &Simulator{
		config: cfg,
		pool:   dataPool,
		client: &http.Client{Timeout: 10 * time.Second},
		logger: logger,
	}

	if err := sim.Run(context.Background()); err != nil {
		logger.Fatal().Err(err).Msg("simulation failed")
	}

	verifyCtx, cancelVerify := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelVerify()
	y, m, d := cfg.Date.Date()
	dayStart := time.Date(y, m, d, 0, 0, 0, 0, cfg.Location)
	violations, err := findOverlaps(verifyCtx, pgPool, availability.Interval{Start: dayStart, End: dayStart.AddDate(0, 0, 1)})
	if err != nil {
		logger.Fatal().Err(err).Msg("verify overlaps")
	}

	sim.PrintReport(violations)
	if len(violations) > 0 {
		os.Exit(1)
	}
}

func loadConfig(base config.Config) (SimConfig, error) {
	cfg := SimConfig{
		APIBaseURL:      getEnv("SIM_API_BASE_URL", "http://localhost:8080"),
		Duration:        getDuration("SIM_DURATION", 30*time.Second),
		Workers:         getInt("SIM_WORKERS", 20),
		BookRatio:       getFloat("SIM_BOOK_RATIO", 0.5),
		CheckRatio:      getFloat("SIM_CHECK_RATIO", 0.2),
		RescheduleRatio: getFloat("SIM_RESCHEDULE_RATIO", 0.1),
		StatusRatio:     getFloat("SIM_STATUS_RATIO", 0.1),
		ProviderLimit:   getInt("SIM_PROVIDER_LIMIT", 3),
		PatientLimit:    getInt("SIM_PATIENT_LIMIT", 2000),
		Location:        base.Location,
		PostgresDSN:     base.PostgresDSN,
	}

	cfg.Date = nextWeekday(time.Now().In(cfg.Location), time.Monday)
	if v := os.Getenv("SIM_DATE"); v != "" {
		d, err := time.ParseInLocation(time.DateOnly, v, cfg.Location)
		if err != nil {
			return cfg, fmt.Errorf("SIM_DATE must be YYYY-MM-DD: %w", err)
		}
		cfg.Date = d
	}

	if cfg.Workers <= 0 {
		return cfg, fmt.Errorf("SIM_WORKERS must be > 0")
	}
	if cfg.Duration <= 0 {
		return cfg, fmt.Errorf("SIM_DURATION must be > 0")
	}

	// The remainder goes to slot listing.
	total := cfg.BookRatio + cfg.CheckRatio + cfg.RescheduleRatio + cfg.StatusRatio
	if total > 1 {
		cfg.BookRatio /= total
		cfg.CheckRatio /= total
		cfg.RescheduleRatio /= total
		cfg.StatusRatio /= total
	}

	return cfg, nil
}

func nextWeekday(from time.Time, wd time.Weekday) time.Time {
	days := (int(wd) - int(from.Weekday()) + 7) % 7
	if days == 0 {
		days = 7
	}
	y, m, d := from.AddDate(0, 0, days).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, from.Location())
}

func loadIDs(ctx context.Context, pool *pgxpool.Pool, query string, limit int) ([]uuid.UUID, error) {
	rows, err := pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func loadDataPool(ctx context.Context, pool *pgxpool.Pool, cfg SimConfig) (*DataPool, error) {
	dp := &DataPool{}
	var err error

	dp.Providers, err = loadIDs(ctx, pool, `
		SELECT p.id FROM providers p
		JOIN working_hours w ON w.provider_id = p.id AND w.weekday = `+strconv.Itoa(int(cfg.Date.Weekday()))+`
		ORDER BY p.created_at
		LIMIT $1
	`, cfg.ProviderLimit)
	if err != nil {
		return nil, fmt.Errorf("load providers: %w", err)
	}
	dp.Patients, err = loadIDs(ctx, pool, `SELECT id FROM patients LIMIT $1`, cfg.PatientLimit)
	if err != nil {
		return nil, fmt.Errorf("load patients: %w", err)
	}
	dp.Resources, err = loadIDs(ctx, pool, `SELECT id FROM resources WHERE available LIMIT $1`, 4)
	if err != nil {
		return nil, fmt.Errorf("load resources: %w", err)
	}

	if len(dp.Providers) == 0 {
		return nil, fmt.Errorf("no providers work on %s", cfg.Date.Weekday())
	}
	if len(dp.Patients) == 0 {
		return nil, fmt.Errorf("no patients loaded")
	}

	return dp, nil
}

func (s *Simulator) Run(parent context.Context) error {
	ctx, cancel := context.WithTimeout(parent, s.config.Duration)
	defer cancel()

	s.logger.Info().Dur("duration", s.config.Duration).Int("workers", s.config.Workers).Msg("starting simulation")

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < s.config.Workers; i++ {
		workerID := i
		g.Go(func() error {
			s.worker(gctx, workerID)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	s.logger.Info().Msg("simulation complete")
	return nil
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))

	for ctx.Err() == nil {
		r := rng.Float64()
		switch {
		case r < s.config.BookRatio:
			s.doBook(ctx, rng)
		case r < s.config.BookRatio+s.config.CheckRatio:
			s.doCheck(ctx, rng)
		case r < s.config.BookRatio+s.config.CheckRatio+s.config.RescheduleRatio:
			s.doReschedule(ctx, rng)
		case r < s.config.BookRatio+s.config.CheckRatio+s.config.RescheduleRatio+s.config.StatusRatio:
			s.doStatus(ctx, rng)
		default:
			s.doSlots(ctx, rng)
		}
	}
}

// randomInterval picks a quarter-hour start between 07:00 and 17:45 so that
// some requests land outside working hours or on breaks.
func (s *Simulator) randomInterval(rng *rand.Rand) (time.Time, time.Time) {
	minute := 7*60 + rng.Intn(44)*15
	start := availability.Clock(minute).On(s.config.Date)
	length := time.Duration(15*(1+rng.Intn(4))) * time.Minute
	return start, start.Add(length)
}

func (s *Simulator) randomResource(rng *rand.Rand) *string {
	if len(s.pool.Resources) == 0 || rng.Intn(3) != 0 {
		return nil
	}
	id := s.pool.Resources[rng.Intn(len(s.pool.Resources))].String()
	return &id
}

func (s *Simulator) send(ctx context.Context, method, path string, body any) (int, []byte, time.Duration) {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, method, s.config.APIBaseURL+path, &buf)
	if err != nil {
		return 0, nil, 0
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	latency := time.Since(start)
	if err != nil {
		return 0, nil, latency
	}
	defer resp.Body.Close()

	var out bytes.Buffer
	_, _ = out.ReadFrom(resp.Body)
	return resp.StatusCode, out.Bytes(), latency
}

func rejected(code int) bool {
	return code == http.StatusConflict || code == http.StatusUnprocessableEntity
}

func (s *Simulator) doBook(ctx context.Context, rng *rand.Rand) {
	start, end := s.randomInterval(rng)
	code, body, latency := s.send(ctx, http.MethodPost, "/appointments", map[string]any{
		"provider_id": s.pool.Providers[rng.Intn(len(s.pool.Providers))].String(),
		"patient_id":  s.pool.Patients[rng.Intn(len(s.pool.Patients))].String(),
		"resource_id": s.randomResource(rng),
		"start":       start.Format(time.RFC3339),
		"end":         end.Format(time.RFC3339),
	})
	if ctx.Err() != nil {
		return
	}

	if code == http.StatusCreated {
		var resp struct {
			ID uuid.UUID `json:"id"`
		}
		if json.Unmarshal(body, &resp) == nil && resp.ID != uuid.Nil {
			s.pool.AddAppointment(resp.ID)
		}
	}
	s.metrics.Book.Record(latency, code == http.StatusCreated, rejected(code))
}

func (s *Simulator) doCheck(ctx context.Context, rng *rand.Rand) {
	start, end := s.randomInterval(rng)
	code, _, latency := s.send(ctx, http.MethodPost, "/availability/check", map[string]any{
		"provider_id": s.pool.Providers[rng.Intn(len(s.pool.Providers))].String(),
		"resource_id": s.randomResource(rng),
		"start":       start.Format(time.RFC3339),
		"end":         end.Format(time.RFC3339),
	})
	if ctx.Err() != nil {
		return
	}
	s.metrics.Check.Record(latency, code == http.StatusOK, false)
}

func (s *Simulator) doReschedule(ctx context.Context, rng *rand.Rand) {
	id, ok := s.pool.RandomAppointment(rng)
	if !ok {
		return
	}
	start, end := s.randomInterval(rng)
	code, _, latency := s.send(ctx, http.MethodPut, "/appointments/"+id.String()+"/schedule", map[string]any{
		"start": start.Format(time.RFC3339),
		"end":   end.Format(time.RFC3339),
	})
	if ctx.Err() != nil {
		return
	}
	s.metrics.Reschedule.Record(latency, code == http.StatusOK, rejected(code))
}

var statusMoves = []availability.Status{
	availability.StatusConfirmed,
	availability.StatusCancelled,
	availability.StatusCheckedIn,
}

func (s *Simulator) doStatus(ctx context.Context, rng *rand.Rand) {
	id, ok := s.pool.RandomAppointment(rng)
	if !ok {
		return
	}
	code, _, latency := s.send(ctx, http.MethodPost, "/appointments/"+id.String()+"/status", map[string]any{
		"status": statusMoves[rng.Intn(len(statusMoves))],
	})
	if ctx.Err() != nil {
		return
	}
	s.metrics.Status.Record(latency, code == http.StatusOK, code == http.StatusConflict)
}

func (s *Simulator) doSlots(ctx context.Context, rng *rand.Rand) {
	provider := s.pool.Providers[rng.Intn(len(s.pool.Providers))]
	path := fmt.Sprintf("/providers/%s/slots?date=%s&duration=%d",
		provider, s.config.Date.Format(time.DateOnly), 15*(1+rng.Intn(4)))
	code, _, latency := s.send(ctx, http.MethodGet, path, nil)
	if ctx.Err() != nil {
		return
	}
	s.metrics.Slots.Record(latency, code == http.StatusOK, false)
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
