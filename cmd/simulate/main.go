package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/hackgods/workshop-scheduling/internal/auth"
	"github.com/hackgods/workshop-scheduling/internal/config"
	"github.com/hackgods/workshop-scheduling/internal/db"
	"github.com/hackgods/workshop-scheduling/internal/logging"
)

type SimConfig struct {
	APIBaseURL   string
	Duration     time.Duration
	Workers      int
	Days         int
	BookingRatio float64
	StatusRatio  float64
	ReadRatio    float64
	ClientLimit  int
}

type client struct {
	token    string
	vehicles []uuid.UUID
}

type DataPool struct {
	Clients   []client
	Mechanics []string
	Secretary string
	Dates     []string
	Times     []string

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
	return dp.appointments[rng.IntN(len(dp.appointments))], true
}

type Simulator struct {
	config  SimConfig
	pool    *DataPool
	client  *http.Client
	log     *slog.Logger
	metrics Metrics
}

func main() {
	baseCfg, err := config.Load()
	if err != nil {
		slog.Error("config load error", slog.Any("err", err))
		os.Exit(1)
	}
	log := logging.Setup(baseCfg.LogLevel, baseCfg.LogFormat)

	cfg := loadConfig()
	if err := validateConfig(cfg); err != nil {
		log.Error("invalid simulator config", slog.Any("err", err))
		os.Exit(1)
	}
	log.Info("simulator starting",
		slog.Duration("duration", cfg.Duration),
		slog.Int("workers", cfg.Workers),
		slog.Int("days", cfg.Days),
		slog.Float64("booking", cfg.BookingRatio),
		slog.Float64("status", cfg.StatusRatio),
		slog.Float64("read", cfg.ReadRatio),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pgPool, err := db.ConnectPostgres(ctx, baseCfg.PostgresDSN, 0)
	if err != nil {
		log.Error("connect postgres", slog.Any("err", err))
		os.Exit(1)
	}
	defer pgPool.Close()

	tokens := auth.NewTokenManager(baseCfg.JWTSecret, baseCfg.TokenTTL)
	dataPool, err := loadDataPool(ctx, pgPool, tokens, cfg)
	if err != nil {
		log.Error("load data pool", slog.Any("err", err))
		os.Exit(1)
	}
	log.Info("data pool loaded",
		slog.Int("clients", len(dataPool.Clients)),
		slog.Int("mechanics", len(dataPool.Mechanics)),
		slog.Any("dates", dataPool.Dates),
	)

	sim := &Simulator{
		config: cfg,
		pool:   dataPool,
		client: &http.Client{Timeout: 10 * time.Second},
		log:    log,
	}

	if err := sim.Run(context.Background()); err != nil {
		log.Error("simulation failed", slog.Any("err", err))
		os.Exit(1)
	}
	writeReport(os.Stdout, cfg, &sim.metrics)

	auditCtx, cancelAudit := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelAudit()

	overlaps, err := db.FindOverlaps(auditCtx, pgPool)
	if err != nil {
		log.Error("overlap audit", slog.Any("err", err))
		os.Exit(1)
	}
	if len(overlaps) > 0 {
		for _, o := range overlaps {
			log.Error("double-booked mechanic",
				slog.String("mechanic_id", o.MechanicID.String()),
				slog.String("date", o.Date.Format(time.DateOnly)),
				slog.String("first", o.FirstID.String()),
				slog.String("second", o.SecondID.String()),
			)
		}
		os.Exit(1)
	}
	log.Info("overlap audit passed")
}

func loadConfig() SimConfig {
	cfg := SimConfig{
		APIBaseURL:   getEnv("SIM_API_BASE_URL", "http://localhost:8080"),
		Duration:     getDuration("SIM_DURATION", 30*time.Second),
		Workers:      getInt("SIM_WORKERS", 10),
		Days:         getInt("SIM_DAYS", 2),
		BookingRatio: getFloat("SIM_BOOKING_RATIO", 0.5),
		StatusRatio:  getFloat("SIM_STATUS_RATIO", 0.2),
		ReadRatio:    getFloat("SIM_READ_RATIO", 0.3),
		ClientLimit:  getInt("SIM_CLIENT_LIMIT", 500),
	}

	total := cfg.BookingRatio + cfg.StatusRatio + cfg.ReadRatio
	if total > 0 {
		cfg.BookingRatio /= total
		cfg.StatusRatio /= total
		cfg.ReadRatio /= total
	}

	return cfg
}

func validateConfig(cfg SimConfig) error {
	if cfg.Workers <= 0 {
		return errors.New("SIM_WORKERS must be > 0")
	}
	if cfg.Duration <= 0 {
		return errors.New("SIM_DURATION must be > 0")
	}
	if cfg.Days <= 0 {
		return errors.New("SIM_DAYS must be > 0")
	}
	return nil
}

func loadDataPool(ctx context.Context, pool *pgxpool.Pool, tokens *auth.TokenManager, cfg SimConfig) (*DataPool, error) {
	dp := &DataPool{
		Dates: bookingDates(time.Now(), cfg.Days),
		Times: slotTimes(),
	}

	rows, err := pool.Query(ctx, `
		SELECT u.id, u.username, array_agg(v.id)
		FROM users u
		JOIN vehicles v ON v.owner_id = u.id
		WHERE u.role = 'client' AND u.is_active
		GROUP BY u.id, u.username
		LIMIT $1
	`, cfg.ClientLimit)
	if err != nil {
		return nil, fmt.Errorf("load clients: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var p auth.Principal
		var vehicles []uuid.UUID
		if err := rows.Scan(&p.ID, &p.Username, &vehicles); err != nil {
			return nil, err
		}
		p.Role, p.Active = auth.RoleClient, true

		token, err := tokens.Issue(p)
		if err != nil {
			return nil, err
		}
		dp.Clients = append(dp.Clients, client{token: token, vehicles: vehicles})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	staff, err := pool.Query(ctx, `
		SELECT id, username, role FROM users
		WHERE role IN ('mechanic', 'secretary') AND is_active
	`)
	if err != nil {
		return nil, fmt.Errorf("load staff: %w", err)
	}
	defer staff.Close()

	for staff.Next() {
		p := auth.Principal{Active: true}
		if err := staff.Scan(&p.ID, &p.Username, &p.Role); err != nil {
			return nil, err
		}

		token, err := tokens.Issue(p)
		if err != nil {
			return nil, err
		}
		switch p.Role {
		case auth.RoleMechanic:
			dp.Mechanics = append(dp.Mechanics, token)
		case auth.RoleSecretary:
			dp.Secretary = token
		}
	}
	if err := staff.Err(); err != nil {
		return nil, err
	}

	if len(dp.Clients) == 0 {
		return nil, errors.New("no clients with vehicles loaded, run cmd/seed first")
	}
	if len(dp.Mechanics) == 0 {
		return nil, errors.New("no active mechanics loaded")
	}
	if dp.Secretary == "" {
		return nil, errors.New("no active secretary loaded")
	}

	return dp, nil
}

// bookingDates returns the next n working days after from, skipping Sundays.
func bookingDates(from time.Time, n int) []string {
	dates := make([]string, 0, n)
	d := from
	for len(dates) < n {
		d = d.AddDate(0, 0, 1)
		if d.Weekday() == time.Sunday {
			continue
		}
		dates = append(dates, d.Format(time.DateOnly))
	}
	return dates
}

// slotTimes lists every half-hour start the workshop accepts.
func slotTimes() []string {
	var times []string
	for m := 8 * 60; m <= 16*60; m += 30 {
		times = append(times, fmt.Sprintf("%02d:%02d", m/60, m%60))
	}
	return times
}

func (s *Simulator) Run(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.config.Duration)
	defer cancel()

	s.log.Info("starting simulation", slog.Int("workers", s.config.Workers))

	g, ctx := errgroup.WithContext(ctx)
	for i := range s.config.Workers {
		g.Go(func() error {
			s.worker(ctx, uint64(i))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	s.log.Info("simulation complete")
	return nil
}

func (s *Simulator) worker(ctx context.Context, workerID uint64) {
	rng := rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), workerID))

	for ctx.Err() == nil {
		r := rng.Float64()
		switch {
		case r < s.config.BookingRatio:
			s.doBooking(ctx, rng)
		case r < s.config.BookingRatio+s.config.StatusRatio:
			s.doStatusUpdate(ctx, rng)
		default:
			switch rng.IntN(3) {
			case 0:
				s.doListMine(ctx, rng)
			case 1:
				s.doListAssigned(ctx, rng)
			case 2:
				s.doAvailability(ctx, rng)
			}
		}
	}
}

func (s *Simulator) doBooking(ctx context.Context, rng *rand.Rand) {
	c := s.pool.Clients[rng.IntN(len(s.pool.Clients))]

	body := map[string]string{
		"vehicle_id":   c.vehicles[rng.IntN(len(c.vehicles))].String(),
		"date":         s.pool.Dates[rng.IntN(len(s.pool.Dates))],
		"start_time":   s.pool.Times[rng.IntN(len(s.pool.Times))],
		"service_type": "service",
	}
	if rng.IntN(2) == 0 {
		body["service_type"] = "repair"
		body["problem_description"] = "Warning light on the dashboard"
	}

	var created struct {
		ID         uuid.UUID  `json:"id"`
		MechanicID *uuid.UUID `json:"mechanic_id"`
	}
	latency, status, err := s.call(ctx, http.MethodPost, "/appointments", c.token, body, &created)
	o := classify(status, err, http.StatusCreated)
	if o == outcomeSuccess {
		s.pool.AddAppointment(created.ID)
		if created.MechanicID == nil {
			s.metrics.Unassigned.Add(1)
		}
	}
	s.metrics.Booking.Record(latency, o)
}

func (s *Simulator) doStatusUpdate(ctx context.Context, rng *rand.Rand) {
	id, ok := s.pool.RandomAppointment(rng)
	if !ok {
		return
	}

	targets := []string{"IN_PROGRESS", "COMPLETED", "CANCELLED"}
	body := map[string]string{"status": targets[rng.IntN(len(targets))]}

	latency, status, err := s.call(ctx, http.MethodPatch, "/appointments/"+id.String()+"/status", s.pool.Secretary, body, nil)
	s.metrics.Status.Record(latency, classify(status, err, http.StatusOK))
}

func (s *Simulator) doListMine(ctx context.Context, rng *rand.Rand) {
	c := s.pool.Clients[rng.IntN(len(s.pool.Clients))]

	latency, status, err := s.call(ctx, http.MethodGet, "/appointments/mine?limit=20", c.token, nil, nil)
	s.metrics.ListMine.Record(latency, classify(status, err, http.StatusOK))
}

func (s *Simulator) doListAssigned(ctx context.Context, rng *rand.Rand) {
	token := s.pool.Mechanics[rng.IntN(len(s.pool.Mechanics))]

	latency, status, err := s.call(ctx, http.MethodGet, "/appointments/assigned?limit=20", token, nil, nil)
	s.metrics.Assigned.Record(latency, classify(status, err, http.StatusOK))
}

func (s *Simulator) doAvailability(ctx context.Context, rng *rand.Rand) {
	q := url.Values{}
	q.Set("date", s.pool.Dates[rng.IntN(len(s.pool.Dates))])
	q.Set("time", s.pool.Times[rng.IntN(len(s.pool.Times))])

	latency, status, err := s.call(ctx, http.MethodGet, "/availability?"+q.Encode(), s.pool.Secretary, nil, nil)
	s.metrics.Available.Record(latency, classify(status, err, http.StatusOK))
}

func (s *Simulator) call(ctx context.Context, method, path, token string, body, out any) (time.Duration, int, error) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return 0, 0, err
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.config.APIBaseURL+path, reader)
	if err != nil {
		return 0, 0, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := s.client.Do(req)
	latency := time.Since(start)
	if err != nil {
		return latency, 0, err
	}
	defer resp.Body.Close()

	if out != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return latency, resp.StatusCode, err
		}
	} else {
		_, _ = io.Copy(io.Discard, resp.Body)
	}
	return latency, resp.StatusCode, nil
}

// classify counts a 409 as a conflict: either the mechanic-day lock was
// contended or the status transition was no longer allowed.
func classify(status int, err error, want int) outcome {
	switch {
	case err != nil:
		return outcomeError
	case status == want:
		return outcomeSuccess
	case status == http.StatusConflict:
		return outcomeConflict
	default:
		return outcomeError
	}
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
