// ABOUTME: SQLite-backed settings persisted between runs
// ABOUTME: Stores the receiver application id and the last joined route
package settings

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/Sendspin/sendspin-cast/pkg/cast"

	_ "modernc.org/sqlite"
)

const (
	keyAppID     = "app_id"
	keyLastRoute = "last_route"
)

// Store wraps the settings database
type Store struct {
	db   *sql.DB
	path string
	mu   sync.RWMutex
}

var _ cast.Store = (*Store)(nil)

// Open opens or creates the settings database in the given directory
func Open(configDir string) (*Store, error) {
	dbPath := filepath.Join(configDir, "settings.db")

	// Ensure directory exists
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return nil, fmt.Errorf("create config dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec(`
		PRAGMA journal_mode = WAL;
		PRAGMA busy_timeout = 5000;
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("configure database: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS _meta (
			key   TEXT PRIMARY KEY,
			value TEXT
		);
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create meta table: %w", err)
	}

	return &Store{db: db, path: dbPath}, nil
}

// Path returns the database file path
func (s *Store) Path() string {
	return s.path
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

// Get returns the value stored under key, or "" when unset
func (s *Store) Get(key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var value sql.NullString
	err := s.db.QueryRow(`SELECT value FROM _meta WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read %s: %w", key, err)
	}
	return value.String, nil
}

// Set stores value under key
func (s *Store) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO _meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

// AppID returns the stored receiver application id
func (s *Store) AppID() (string, error) {
	return s.Get(keyAppID)
}

// SetAppID stores the receiver application id
func (s *Store) SetAppID(appID string) error {
	return s.Set(keyAppID, appID)
}

// LastRoute returns the id of the route joined most recently
func (s *Store) LastRoute() (string, error) {
	return s.Get(keyLastRoute)
}

// SetLastRoute remembers the route joined most recently
func (s *Store) SetLastRoute(routeID string) error {
	return s.Set(keyLastRoute, routeID)
}
