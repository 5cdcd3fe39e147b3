package settings

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"moments/internal/model"
)

var (
	// ErrDuplicateReminder is returned when a reminder with the same hours
	// offset already exists.
	ErrDuplicateReminder = errors.New("settings: reminder already exists")

	// ErrInvalidHours is returned when a custom offset does not parse to a
	// non-negative integer.
	ErrInvalidHours = errors.New("settings: hours must be a non-negative integer")

	// ErrLastReminder is returned when deletion would leave zero reminders.
	ErrLastReminder = errors.New("settings: must have at least one reminder")

	// ErrReminderNotFound is returned when deleting an unknown reminder id.
	ErrReminderNotFound = errors.New("settings: reminder not found")
)

// Cache is the fast local copy of the user's settings. Load returns nil when
// nothing was ever cached.
type Cache interface {
	Load() (*model.Settings, error)
	Save(model.Settings) error
}

// Repository is the authoritative remote copy. LookupSettings returns nil
// when the user never saved settings remotely.
type Repository interface {
	LookupSettings(ctx context.Context, userID string) (*model.Settings, error)
	SaveSettings(ctx context.Context, userID string, settings model.Settings) error
}

// Permissioner asks the platform for permission to display notifications.
type Permissioner interface {
	RequestPermission(ctx context.Context) error
}

// Store is the single source of truth for one user's reminder configuration,
// synchronized between the local cache and the remote profile. Every mutation
// persists to the cache synchronously and to the remote best-effort, then
// notifies the render callback with the sorted reminder list.
type Store struct {
	mu       sync.Mutex
	current  model.Settings
	userID   string
	cache    Cache
	remote   Repository
	perms    Permissioner
	onChange func([]model.Reminder)
	logger   *zerolog.Logger
}

// NewStore creates a settings store for one user. remote and perms may be nil
// (no session / no platform notification support); onChange may be nil.
func NewStore(userID string, cache Cache, remote Repository, perms Permissioner, onChange func([]model.Reminder), logger *zerolog.Logger) *Store {
	return &Store{
		current:  model.DefaultSettings(),
		userID:   userID,
		cache:    cache,
		remote:   remote,
		perms:    perms,
		onChange: onChange,
		logger:   logger,
	}
}

// Load initializes from the local cache and kicks off the asynchronous remote
// refresh. The cached copy renders first; the remote copy, once it arrives,
// wins and re-renders.
func (s *Store) Load(ctx context.Context) {
	cached, err := s.cache.Load()
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to load cached settings")
	}

	s.mu.Lock()
	if cached != nil && len(cached.Reminders) > 0 {
		s.current = *cached
	}
	s.mu.Unlock()
	s.notify()

	if s.remote != nil && s.userID != "" {
		go s.RefreshRemote(ctx)
	}
}

// RefreshRemote overwrites the in-memory settings with the remote copy when
// one exists. Remote is authoritative once available.
func (s *Store) RefreshRemote(ctx context.Context) {
	stored, err := s.remote.LookupSettings(ctx, s.userID)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to load remote settings")
		return
	}
	if stored == nil {
		return
	}

	s.mu.Lock()
	s.current = *stored
	s.mu.Unlock()
	s.notify()
}

// Enabled reports whether notifications are enabled.
func (s *Store) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current.Enabled
}

// SetEnabled flips the enabled flag and persists. Turning notifications on
// requests platform permission to display them.
func (s *Store) SetEnabled(ctx context.Context, enabled bool) error {
	s.mu.Lock()
	s.current.Enabled = enabled
	s.mu.Unlock()

	if err := s.persist(ctx); err != nil {
		return err
	}
	if enabled && s.perms != nil {
		if err := s.perms.RequestPermission(ctx); err != nil {
			s.logger.Error().Err(err).Msg("notification permission request failed")
		}
	}
	return nil
}

// AddPreset adds a reminder with a predefined label.
func (s *Store) AddPreset(ctx context.Context, hours int, label string) (model.Reminder, error) {
	return s.add(ctx, hours, label)
}

// AddCustom parses a user-entered hours value and adds a reminder with an
// auto-generated label.
func (s *Store) AddCustom(ctx context.Context, rawHours string) (model.Reminder, error) {
	hours, err := strconv.Atoi(rawHours)
	if err != nil || hours < 0 {
		return model.Reminder{}, ErrInvalidHours
	}
	return s.add(ctx, hours, model.ReminderLabel(hours))
}

func (s *Store) add(ctx context.Context, hours int, label string) (model.Reminder, error) {
	s.mu.Lock()
	for _, r := range s.current.Reminders {
		if r.Hours == hours {
			s.mu.Unlock()
			return model.Reminder{}, ErrDuplicateReminder
		}
	}
	reminder := model.Reminder{
		ID:    uuid.New().String(),
		Label: label,
		Hours: hours,
	}
	s.current.Reminders = append(s.current.Reminders, reminder)
	s.mu.Unlock()

	if err := s.persist(ctx); err != nil {
		return model.Reminder{}, err
	}
	return reminder, nil
}

// Delete removes a reminder by id. The last remaining reminder cannot be
// deleted; the list is left unchanged and ErrLastReminder is returned.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	if len(s.current.Reminders) <= 1 {
		s.mu.Unlock()
		return ErrLastReminder
	}
	kept := s.current.Reminders[:0:0]
	found := false
	for _, r := range s.current.Reminders {
		if r.ID == id {
			found = true
			continue
		}
		kept = append(kept, r)
	}
	if !found {
		s.mu.Unlock()
		return ErrReminderNotFound
	}
	s.current.Reminders = kept
	s.mu.Unlock()

	return s.persist(ctx)
}

// Reminders returns the configured reminders sorted ascending by hours.
func (s *Store) Reminders() []model.Reminder {
	s.mu.Lock()
	out := make([]model.Reminder, len(s.current.Reminders))
	copy(out, s.current.Reminders)
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Hours < out[j].Hours })
	return out
}

// Settings returns a copy of the current settings object.
func (s *Store) Settings() model.Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.current
	out.Reminders = append([]model.Reminder(nil), s.current.Reminders...)
	return out
}

// persist saves to the local cache synchronously and to the remote profile
// asynchronously. Remote failures are logged, never surfaced: the settings
// stay usable locally and sync on the next mutation.
func (s *Store) persist(ctx context.Context) error {
	snapshot := s.Settings()

	if err := s.cache.Save(snapshot); err != nil {
		return err
	}

	if s.remote != nil && s.userID != "" {
		go func() {
			if err := s.remote.SaveSettings(ctx, s.userID, snapshot); err != nil {
				s.logger.Error().Err(err).Msg("failed to save remote settings")
			}
		}()
	}

	s.notify()
	return nil
}

func (s *Store) notify() {
	if s.onChange != nil {
		s.onChange(s.Reminders())
	}
}
