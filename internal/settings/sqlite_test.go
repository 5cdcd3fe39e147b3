package settings

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"moments/internal/model"
)

func openTestCache(t *testing.T) *SQLiteCache {
	t.Helper()
	cache, err := OpenSQLiteCache(filepath.Join(t.TempDir(), "settings.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = cache.Close() })
	return cache
}

func TestSQLiteCacheEmptyLoad(t *testing.T) {
	cache := openTestCache(t)

	got, err := cache.Load()
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSQLiteCacheRoundTrip(t *testing.T) {
	cache := openTestCache(t)

	want := model.Settings{
		Enabled: true,
		Reminders: []model.Reminder{
			{ID: "default", Label: "Day of (12 AM)", Hours: 0},
			{ID: "r24", Label: "1 day before", Hours: 24},
		},
	}
	require.NoError(t, cache.Save(want))

	got, err := cache.Load()
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, want, *got)
}

func TestSQLiteCacheSaveOverwrites(t *testing.T) {
	cache := openTestCache(t)

	require.NoError(t, cache.Save(model.DefaultSettings()))
	updated := model.Settings{
		Enabled:   false,
		Reminders: []model.Reminder{{ID: "r6", Label: "6 hours before", Hours: 6}},
	}
	require.NoError(t, cache.Save(updated))

	got, err := cache.Load()
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.False(t, got.Enabled)
	require.Len(t, got.Reminders, 1)
	assert.Equal(t, 6, got.Reminders[0].Hours)
}
