package scanner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"moments/internal/model"
	"moments/internal/push"
)

// DefaultTitle is the push title used for every reminder notification.
const DefaultTitle = "Moments Reminder 🎉"

// Config holds scan behavior knobs.
type Config struct {
	// Title is the notification title. Default: DefaultTitle.
	Title string

	// MaxAttempts bounds how many scan runs may re-attempt a reminder whose
	// sends all failed. A record with Status "failed" below this budget does
	// not suppress another attempt; at or over it, it does.
	MaxAttempts int

	// RetryDelays are the in-run backoff delays for transient per-token send
	// failures. len(RetryDelays)+1 sends are attempted per token.
	RetryDelays []time.Duration

	// Retention is how long sent records are kept before the daily sweep
	// deletes them.
	Retention time.Duration
}

// DefaultConfig returns the defaults: 3 attempts, 1s/5s/30s backoff, 30 days
// retention.
func DefaultConfig() Config {
	return Config{
		Title:       DefaultTitle,
		MaxAttempts: 3,
		RetryDelays: []time.Duration{time.Second, 5 * time.Second, 30 * time.Second},
		Retention:   30 * 24 * time.Hour,
	}
}

// Service runs the hourly reminder scan and the daily retention sweep.
type Service struct {
	config   Config
	users    Directory
	settings SettingsSource
	events   EventSource
	sent     SentLog
	pusher   Pusher
	location *time.Location
	metrics  *Metrics
	logger   *zerolog.Logger
}

// NewService creates a scan service. metrics may be nil.
func NewService(
	config Config,
	users Directory,
	settings SettingsSource,
	events EventSource,
	sent SentLog,
	pusher Pusher,
	location *time.Location,
	metrics *Metrics,
	logger *zerolog.Logger,
) *Service {
	if config.Title == "" {
		config.Title = DefaultTitle
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 3
	}
	if config.Retention <= 0 {
		config.Retention = 30 * 24 * time.Hour
	}
	return &Service{
		config:   config,
		users:    users,
		settings: settings,
		events:   events,
		sent:     sent,
		pusher:   pusher,
		location: location,
		metrics:  metrics,
		logger:   logger,
	}
}

// Run executes one full scan for the current hour.
func (s *Service) Run(ctx context.Context) error {
	return s.RunAt(ctx, time.Now())
}

// RunAt executes one full scan as of the given instant. For every user, every
// enabled reminder and every event it checks whether the reminder's trigger
// falls in now's hour, sends to each device token independently, prunes dead
// tokens in one batched update, and records the attempt. A failure listing
// users or a user's events aborts the run; everything else is logged and
// skipped.
func (s *Service) RunAt(ctx context.Context, now time.Time) error {
	start := time.Now()
	now = now.In(s.location)

	s.logger.Info().
		Time("now", now).
		Str("zone", s.location.String()).
		Msg("reminder scan started")

	users, err := s.users.ListUsers(ctx)
	if err != nil {
		s.observeScan("error", start)
		return fmt.Errorf("scan: %w", err)
	}

	stats := struct {
		users   int
		sent    int
		failed  int
		skipped int
	}{users: len(users)}

	for i := range users {
		if err := ctx.Err(); err != nil {
			s.observeScan("error", start)
			return err
		}

		u := &users[i]
		if len(u.FCMTokens) == 0 {
			continue
		}

		settings, err := s.settings.GetSettings(ctx, u.ID)
		if err != nil {
			s.logger.Error().Err(err).Str("user_id", u.ID).Msg("failed to get user settings")
			// Use default settings on error
			settings = model.DefaultSettings()
		}
		if !settings.Enabled {
			continue
		}

		events, err := s.events.ListEvents(ctx, u.ID)
		if err != nil {
			s.observeScan("error", start)
			return fmt.Errorf("scan user %s: %w", u.ID, err)
		}

		for j := range events {
			e := &events[j]
			month, day, err := e.MonthDay()
			if err != nil {
				s.logger.Warn().Err(err).Str("user_id", u.ID).Msg("skipping event")
				continue
			}
			occurrence := NextOccurrence(month, day, now)

			for _, r := range settings.Reminders {
				if r.Hours < 0 {
					continue
				}
				if !DueNow(TriggerTime(occurrence, r.Hours), now) {
					continue
				}
				switch s.fire(ctx, u, e, r, now) {
				case fireSent:
					stats.sent++
				case fireFailed:
					stats.failed++
				case fireSkipped:
					stats.skipped++
				}
			}
		}
	}

	s.observeScan("ok", start)
	s.logger.Info().
		Int("users", stats.users).
		Int("sent", stats.sent).
		Int("failed", stats.failed).
		Int("skipped", stats.skipped).
		Dur("duration", time.Since(start)).
		Msg("reminder scan completed")
	return nil
}

type fireResult int

const (
	fireSent fireResult = iota
	fireFailed
	fireSkipped
)

// fire handles one due (user, event, reminder): idempotency check, per-token
// delivery, token pruning, record write. Per-item failures never abort the
// scan.
func (s *Service) fire(ctx context.Context, u *model.User, e *model.Event, r model.Reminder, now time.Time) fireResult {
	key := model.SentKey(u.ID, e.ID, r.ID, now.UTC().Year())

	prev, err := s.sent.GetSent(ctx, key)
	if err != nil {
		// Can't verify the guard; skip rather than risk a duplicate.
		s.logger.Error().Err(err).Str("key", key).Msg("failed to read sent record")
		return fireSkipped
	}
	attempts := 0
	if prev != nil {
		if prev.Status == model.SentStatusSent || prev.Attempts >= s.config.MaxAttempts {
			s.logger.Debug().Str("key", key).Msg("already sent, skipping")
			return fireSkipped
		}
		attempts = prev.Attempts
	}

	payload := push.Payload{
		Title:      s.config.Title,
		Body:       Message(e.Name, e.Label(), r.Hours),
		Tag:        "moment-" + e.ID,
		PersonID:   e.ID,
		PersonName: e.Name,
	}

	delivered := 0
	var invalid []string
	for _, token := range u.FCMTokens {
		err := s.sendWithRetry(ctx, token, payload)
		switch {
		case err == nil:
			delivered++
		case errors.Is(err, push.ErrTokenInvalid):
			invalid = append(invalid, token)
			s.logger.Info().Str("user_id", u.ID).Msg("pruning dead token")
		default:
			s.logger.Error().Err(err).Str("user_id", u.ID).Msg("send failed")
		}
	}

	if len(invalid) > 0 {
		if err := s.users.RemoveTokens(ctx, u.ID, invalid); err != nil {
			s.logger.Error().Err(err).Str("user_id", u.ID).Msg("failed to remove tokens")
		} else if s.metrics != nil {
			s.metrics.AddTokensPruned(len(invalid))
		}
	}

	status := model.SentStatusFailed
	if delivered > 0 {
		status = model.SentStatusSent
	}
	rec := model.SentRecord{
		UserID:     u.ID,
		EventID:    e.ID,
		ReminderID: r.ID,
		Status:     status,
		Attempts:   attempts + 1,
		Delivered:  delivered,
		SentAt:     time.Now().UTC(),
	}
	if err := s.sent.PutSent(ctx, key, rec); err != nil {
		s.logger.Error().Err(err).Str("key", key).Msg("failed to write sent record")
	}

	if s.metrics != nil {
		s.metrics.IncNotification(status)
	}
	s.logger.Info().
		Str("user_id", u.ID).
		Str("event", e.Name).
		Str("reminder", r.Label).
		Str("status", status).
		Int("delivered", delivered).
		Int("tokens", len(u.FCMTokens)).
		Msg("reminder processed")

	if status == model.SentStatusSent {
		return fireSent
	}
	return fireFailed
}

// sendWithRetry sends to one token, backing off on transient errors.
// Permanent token errors fail fast so pruning happens immediately.
func (s *Service) sendWithRetry(ctx context.Context, token string, p push.Payload) error {
	var lastErr error
	for attempt := 0; attempt <= len(s.config.RetryDelays); attempt++ {
		err := s.pusher.Send(ctx, token, p)
		if err == nil {
			return nil
		}
		if errors.Is(err, push.ErrTokenInvalid) {
			return err
		}
		lastErr = err

		if attempt < len(s.config.RetryDelays) {
			delay := s.config.RetryDelays[attempt]
			s.logger.Debug().
				Int("attempt", attempt+1).
				Dur("delay", delay).
				Err(err).
				Msg("retrying send")
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return lastErr
}

// Sweep deletes sent records older than the retention horizon. Idempotent;
// a failure is fatal to this invocation and retried on the next schedule.
func (s *Service) Sweep(ctx context.Context) error {
	cutoff := time.Now().UTC().Add(-s.config.Retention)
	deleted, err := s.sent.DeleteSentBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("sweep: %w", err)
	}
	if s.metrics != nil {
		s.metrics.AddSweepDeleted(deleted)
	}
	s.logger.Info().
		Int("deleted", deleted).
		Time("cutoff", cutoff).
		Msg("sent-record sweep completed")
	return nil
}

func (s *Service) observeScan(result string, start time.Time) {
	if s.metrics == nil {
		return
	}
	s.metrics.IncScan(result)
	s.metrics.ObserveScanDuration(time.Since(start).Seconds())
}
