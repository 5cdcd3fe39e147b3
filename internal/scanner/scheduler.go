package scanner

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// SchedulerConfig holds the schedule for the hourly scan and the daily sweep.
type SchedulerConfig struct {
	// Timezone for scheduling (e.g. "Asia/Kolkata").
	Timezone string
	// ScanMinute is the minute (0-59) of every hour when the scan runs.
	ScanMinute int
	// SweepHour is the hour (0-23) when the retention sweep runs.
	SweepHour int
	// CheckInterval is how often to check if it's time to run.
	CheckInterval time.Duration
}

// DefaultSchedulerConfig returns the default schedule: scan at minute 0 of
// every hour, sweep at 03:00, both in IST.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		Timezone:      "Asia/Kolkata",
		ScanMinute:    0,
		SweepHour:     3,
		CheckInterval: 30 * time.Second,
	}
}

// Scheduler drives the scan and sweep on their fixed-timezone schedule. Each
// run is deduplicated by hour (scan) or date (sweep), so a missed tick inside
// the firing minute cannot double-run and a failed run is not retried until
// the next slot.
type Scheduler struct {
	config        SchedulerConfig
	service       *Service
	location      *time.Location
	logger        *zerolog.Logger
	mu            sync.Mutex
	lastScanHour  string // YYYY-MM-DDTHH of last scan
	lastSweepDate string // YYYY-MM-DD of last sweep
	running       bool
	stopCh        chan struct{}
}

// NewScheduler creates a scheduler for the given service.
func NewScheduler(config SchedulerConfig, service *Service, logger *zerolog.Logger) (*Scheduler, error) {
	loc, err := time.LoadLocation(config.Timezone)
	if err != nil {
		return nil, err
	}
	if config.CheckInterval <= 0 {
		config.CheckInterval = 30 * time.Second
	}
	return &Scheduler{
		config:   config,
		service:  service,
		location: loc,
		logger:   logger,
		stopCh:   make(chan struct{}),
	}, nil
}

// Location returns the scheduler's timezone.
func (s *Scheduler) Location() *time.Location {
	return s.location
}

// Start begins the scheduler loop and blocks until the context is done or
// Stop is called.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	s.logger.Info().
		Str("timezone", s.config.Timezone).
		Int("scan_minute", s.config.ScanMinute).
		Int("sweep_hour", s.config.SweepHour).
		Msg("reminder scheduler started")

	ticker := time.NewTicker(s.config.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("reminder scheduler stopped by context")
			return
		case <-s.stopCh:
			s.logger.Info().Msg("reminder scheduler stopped")
			return
		case <-ticker.C:
			s.checkAndRun(ctx)
		}
	}
}

// Stop stops the scheduler.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.running {
		s.running = false
		close(s.stopCh)
	}
	s.mu.Unlock()
}

func (s *Scheduler) checkAndRun(ctx context.Context) {
	s.checkAndRunAt(ctx, time.Now().In(s.location))
}

func (s *Scheduler) checkAndRunAt(ctx context.Context, now time.Time) {
	hourKey := now.Format("2006-01-02T15")
	s.mu.Lock()
	scanDue := now.Minute() == s.config.ScanMinute && s.lastScanHour != hourKey
	if scanDue {
		s.lastScanHour = hourKey
	}
	s.mu.Unlock()

	if scanDue {
		if err := s.service.RunAt(ctx, now); err != nil {
			s.logger.Error().Err(err).Msg("scan run failed")
		}
	}

	dateKey := now.Format("2006-01-02")
	s.mu.Lock()
	sweepDue := now.Hour() == s.config.SweepHour && s.lastSweepDate != dateKey
	if sweepDue {
		s.lastSweepDate = dateKey
	}
	s.mu.Unlock()

	if sweepDue {
		if err := s.service.Sweep(ctx); err != nil {
			s.logger.Error().Err(err).Msg("sweep run failed")
		}
	}
}

// RunNow forces an immediate scan and sweep, outside the schedule.
func (s *Scheduler) RunNow(ctx context.Context) {
	s.logger.Info().Msg("manual reminder run triggered")
	if err := s.service.RunAt(ctx, time.Now().In(s.location)); err != nil {
		s.logger.Error().Err(err).Msg("manual scan failed")
	}
	if err := s.service.Sweep(ctx); err != nil {
		s.logger.Error().Err(err).Msg("manual sweep failed")
	}
}

// IsRunning reports whether the scheduler loop is active.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}
