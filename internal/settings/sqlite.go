package settings

import (
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"moments/internal/model"
)

// StorageKey is the fixed key the serialized settings object lives under.
const StorageKey = "notification-settings"

// SQLiteCache is the on-device settings cache: a single-row key-value table
// holding the serialized settings JSON.
type SQLiteCache struct {
	db *sql.DB
}

// OpenSQLiteCache opens (or creates) the cache database at path.
func OpenSQLiteCache(path string) (*SQLiteCache, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open settings cache: %w", err)
	}
	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS kv (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init settings cache: %w", err)
	}
	return &SQLiteCache{db: db}, nil
}

// Load returns the cached settings, or nil when nothing was cached yet.
func (c *SQLiteCache) Load() (*model.Settings, error) {
	var raw string
	err := c.db.QueryRow(`SELECT value FROM kv WHERE key = ?`, StorageKey).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read settings cache: %w", err)
	}
	var s model.Settings
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return nil, fmt.Errorf("decode settings cache: %w", err)
	}
	return &s, nil
}

// Save overwrites the cached settings.
func (c *SQLiteCache) Save(s model.Settings) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	_, err = c.db.Exec(`
		INSERT INTO kv (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = CURRENT_TIMESTAMP`,
		StorageKey, string(raw))
	if err != nil {
		return fmt.Errorf("write settings cache: %w", err)
	}
	return nil
}

// Close releases the database handle.
func (c *SQLiteCache) Close() error {
	return c.db.Close()
}
