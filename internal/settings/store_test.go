package settings

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"moments/internal/model"
)

// MockCache implements Cache in memory.
type MockCache struct {
	mu      sync.Mutex
	stored  *model.Settings
	loadErr error
	saveErr error
	saves   int
}

func (m *MockCache) Load() (*model.Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	if m.stored == nil {
		return nil, nil
	}
	cp := *m.stored
	return &cp, nil
}

func (m *MockCache) Save(s model.Settings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.stored = &s
	m.saves++
	return nil
}

func (m *MockCache) Stored() *model.Settings {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stored == nil {
		return nil
	}
	cp := *m.stored
	return &cp
}

// MockRepository implements Repository; SaveSettings signals saveCh so tests
// can wait for the asynchronous write.
type MockRepository struct {
	mu     sync.Mutex
	stored *model.Settings
	err    error
	saveCh chan model.Settings
}

func NewMockRepository() *MockRepository {
	return &MockRepository{saveCh: make(chan model.Settings, 8)}
}

func (m *MockRepository) LookupSettings(ctx context.Context, userID string) (*model.Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	if m.stored == nil {
		return nil, nil
	}
	cp := *m.stored
	return &cp, nil
}

func (m *MockRepository) SaveSettings(ctx context.Context, userID string, settings model.Settings) error {
	m.mu.Lock()
	m.stored = &settings
	m.mu.Unlock()
	m.saveCh <- settings
	return nil
}

func (m *MockRepository) WaitForSave(t *testing.T) model.Settings {
	t.Helper()
	select {
	case s := <-m.saveCh:
		return s
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for remote save")
		return model.Settings{}
	}
}

// MockPermissioner counts permission requests.
type MockPermissioner struct {
	mu       sync.Mutex
	requests int
	err      error
}

func (m *MockPermissioner) RequestPermission(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests++
	return m.err
}

func (m *MockPermissioner) Requests() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requests
}

func newTestStore(cache Cache, remote Repository, perms Permissioner) *Store {
	logger := zerolog.Nop()
	return NewStore("u1", cache, remote, perms, nil, &logger)
}

func TestLoadUsesCachedSettings(t *testing.T) {
	cache := &MockCache{stored: &model.Settings{
		Enabled: true,
		Reminders: []model.Reminder{
			{ID: "r24", Label: "1 day before", Hours: 24},
		},
	}}
	s := newTestStore(cache, nil, nil)

	s.Load(context.Background())

	got := s.Settings()
	assert.True(t, got.Enabled)
	require.Len(t, got.Reminders, 1)
	assert.Equal(t, 24, got.Reminders[0].Hours)
}

func TestLoadFallsBackToDefaults(t *testing.T) {
	s := newTestStore(&MockCache{}, nil, nil)

	s.Load(context.Background())

	got := s.Settings()
	assert.True(t, got.Enabled)
	require.Len(t, got.Reminders, 1)
	assert.Equal(t, "default", got.Reminders[0].ID)
	assert.Equal(t, 0, got.Reminders[0].Hours)
}

func TestLoadSurvivesCacheError(t *testing.T) {
	cache := &MockCache{loadErr: errors.New("disk gone")}
	s := newTestStore(cache, nil, nil)

	s.Load(context.Background())

	require.Len(t, s.Reminders(), 1, "defaults must remain usable")
}

func TestRemoteSettingsWin(t *testing.T) {
	cache := &MockCache{stored: &model.Settings{
		Enabled:   false,
		Reminders: []model.Reminder{{ID: "local", Label: "Day of (12 AM)", Hours: 0}},
	}}
	remote := NewMockRepository()
	remote.stored = &model.Settings{
		Enabled: true,
		Reminders: []model.Reminder{
			{ID: "remote-0", Label: "Day of (12 AM)", Hours: 0},
			{ID: "remote-48", Label: "2 days before", Hours: 48},
		},
	}
	s := newTestStore(cache, remote, nil)

	s.Load(context.Background())
	s.RefreshRemote(context.Background())

	got := s.Settings()
	assert.True(t, got.Enabled)
	assert.Len(t, got.Reminders, 2)
}

func TestRemoteAbsenceKeepsLocal(t *testing.T) {
	cache := &MockCache{stored: &model.Settings{
		Enabled:   true,
		Reminders: []model.Reminder{{ID: "local", Label: "Day of (12 AM)", Hours: 0}},
	}}
	s := newTestStore(cache, NewMockRepository(), nil)

	s.Load(context.Background())
	s.RefreshRemote(context.Background())

	got := s.Settings()
	require.Len(t, got.Reminders, 1)
	assert.Equal(t, "local", got.Reminders[0].ID)
}

func TestAddCustomValidation(t *testing.T) {
	s := newTestStore(&MockCache{}, nil, nil)

	_, err := s.AddCustom(context.Background(), "soon")
	assert.ErrorIs(t, err, ErrInvalidHours)

	_, err = s.AddCustom(context.Background(), "-4")
	assert.ErrorIs(t, err, ErrInvalidHours)

	r, err := s.AddCustom(context.Background(), "6")
	require.NoError(t, err)
	assert.Equal(t, 6, r.Hours)
	assert.Equal(t, "6 hours before", r.Label)
	assert.NotEmpty(t, r.ID)
}

func TestAddDuplicateHoursRejected(t *testing.T) {
	s := newTestStore(&MockCache{}, nil, nil)

	_, err := s.AddPreset(context.Background(), 24, "1 day before")
	require.NoError(t, err)

	_, err = s.AddPreset(context.Background(), 24, "1 day before")
	assert.ErrorIs(t, err, ErrDuplicateReminder)

	// The default day-of reminder already occupies hours=0.
	_, err = s.AddCustom(context.Background(), "0")
	assert.ErrorIs(t, err, ErrDuplicateReminder)
}

func TestDeleteLastReminderRefused(t *testing.T) {
	s := newTestStore(&MockCache{}, nil, nil)

	before := s.Reminders()
	require.Len(t, before, 1)

	err := s.Delete(context.Background(), before[0].ID)
	assert.ErrorIs(t, err, ErrLastReminder)
	assert.Equal(t, before, s.Reminders(), "list must be unchanged")
}

func TestDeleteUnknownReminder(t *testing.T) {
	s := newTestStore(&MockCache{}, nil, nil)
	_, err := s.AddPreset(context.Background(), 24, "1 day before")
	require.NoError(t, err)

	err = s.Delete(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrReminderNotFound)
	assert.Len(t, s.Reminders(), 2)
}

func TestDeleteRemovesReminder(t *testing.T) {
	s := newTestStore(&MockCache{}, nil, nil)
	r, err := s.AddPreset(context.Background(), 24, "1 day before")
	require.NoError(t, err)

	require.NoError(t, s.Delete(context.Background(), r.ID))

	got := s.Reminders()
	require.Len(t, got, 1)
	assert.Equal(t, 0, got[0].Hours)
}

func TestRemindersSortedByHours(t *testing.T) {
	s := newTestStore(&MockCache{}, nil, nil)
	for _, h := range []int{48, 6, 24} {
		_, err := s.AddPreset(context.Background(), h, model.ReminderLabel(h))
		require.NoError(t, err)
	}

	got := s.Reminders()
	require.Len(t, got, 4)
	hours := []int{got[0].Hours, got[1].Hours, got[2].Hours, got[3].Hours}
	assert.Equal(t, []int{0, 6, 24, 48}, hours)
}

func TestSetEnabledRequestsPermission(t *testing.T) {
	perms := &MockPermissioner{}
	s := newTestStore(&MockCache{}, nil, perms)

	require.NoError(t, s.SetEnabled(context.Background(), true))
	assert.Equal(t, 1, perms.Requests())
	assert.True(t, s.Enabled())

	require.NoError(t, s.SetEnabled(context.Background(), false))
	assert.Equal(t, 1, perms.Requests(), "disabling must not request permission")
	assert.False(t, s.Enabled())
}

func TestPermissionDenialDoesNotRevertEnable(t *testing.T) {
	perms := &MockPermissioner{err: errors.New("denied")}
	s := newTestStore(&MockCache{}, nil, perms)

	require.NoError(t, s.SetEnabled(context.Background(), true))
	assert.True(t, s.Enabled())
}

func TestMutationsPersistLocallyAndRemotely(t *testing.T) {
	cache := &MockCache{}
	remote := NewMockRepository()
	s := newTestStore(cache, remote, nil)

	r, err := s.AddPreset(context.Background(), 24, "1 day before")
	require.NoError(t, err)

	stored := cache.Stored()
	require.NotNil(t, stored, "cache write is synchronous")
	assert.Len(t, stored.Reminders, 2)

	saved := remote.WaitForSave(t)
	require.Len(t, saved.Reminders, 2)
	assert.Equal(t, 24, r.Hours)
}

func TestCacheSaveFailureSurfaces(t *testing.T) {
	cache := &MockCache{saveErr: errors.New("disk full")}
	s := newTestStore(cache, nil, nil)

	_, err := s.AddPreset(context.Background(), 24, "1 day before")
	assert.Error(t, err)
}

func TestOnChangeReceivesSortedReminders(t *testing.T) {
	var (
		mu   sync.Mutex
		last []model.Reminder
	)
	logger := zerolog.Nop()
	s := NewStore("u1", &MockCache{}, nil, nil, func(rs []model.Reminder) {
		mu.Lock()
		last = rs
		mu.Unlock()
	}, &logger)

	_, err := s.AddPreset(context.Background(), 48, "2 days before")
	require.NoError(t, err)
	_, err = s.AddPreset(context.Background(), 6, "6 hours before")
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, last, 3)
	assert.Equal(t, 0, last[0].Hours)
	assert.Equal(t, 6, last[1].Hours)
	assert.Equal(t, 48, last[2].Hours)
}
