// Package schemacache persists a server's raw schema attributes
// (attributeTypes/objectClasses, keyed by server URL) across connection
// manager restarts, so a process does not re-run the root-DSE round trip
// on every startup.
package schemacache

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"

	"github.com/smarzola/ldaptoolkit/pkg/config"
)

// Cache is a SQLite-backed implementation of conn.SchemaCache.
type Cache struct {
	db  *sql.DB
	cfg config.SchemaCacheConfig
}

// New returns a Cache. Call Open before using it.
func New(cfg config.SchemaCacheConfig) *Cache {
	return &Cache{cfg: cfg}
}

// Open creates the cache directory if needed, opens the database, and
// runs migrations.
func (c *Cache) Open(ctx context.Context) error {
	dir := filepath.Dir(c.cfg.Path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("failed to create schema cache directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", c.cfg.Path)
	if err != nil {
		return fmt.Errorf("failed to open schema cache database: %w", err)
	}

	db.SetMaxOpenConns(c.cfg.MaxOpenConns)
	db.SetMaxIdleConns(c.cfg.MaxIdleConns)
	db.SetConnMaxLifetime(time.Duration(c.cfg.ConnMaxLifetime) * time.Second)

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to connect to schema cache database: %w", err)
	}
	c.db = db

	srcDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create schema cache migration source: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", srcDriver, fmt.Sprintf("sqlite://%s", c.cfg.Path))
	if err != nil {
		return fmt.Errorf("failed to initialize schema cache migrations: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to run schema cache migrations: %w", err)
	}

	slog.Info("schema cache ready", "path", c.cfg.Path)
	return nil
}

// Close closes the underlying database handle.
func (c *Cache) Close() error {
	if c.db == nil {
		return nil
	}
	return c.db.Close()
}

// Load satisfies conn.SchemaCache: it returns the raw schema attributes
// last stored for serverURL, if any.
func (c *Cache) Load(serverURL string) (map[string][]string, bool, error) {
	var rawJSON string
	err := c.db.QueryRow(`SELECT raw_json FROM schema_cache WHERE server_url = ?`, serverURL).Scan(&rawJSON)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to load cached schema for %s: %w", serverURL, err)
	}

	raw := make(map[string][]string)
	if err := json.Unmarshal([]byte(rawJSON), &raw); err != nil {
		return nil, false, fmt.Errorf("failed to decode cached schema for %s: %w", serverURL, err)
	}
	return raw, true, nil
}

// Store satisfies conn.SchemaCache: it upserts raw's schema attributes
// for serverURL.
func (c *Cache) Store(serverURL string, raw map[string][]string) error {
	rawJSON, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("failed to encode schema for %s: %w", serverURL, err)
	}

	_, err = c.db.Exec(
		`INSERT INTO schema_cache (server_url, raw_json, fetched_at) VALUES (?, ?, ?)
		 ON CONFLICT(server_url) DO UPDATE SET raw_json = excluded.raw_json, fetched_at = excluded.fetched_at`,
		serverURL, string(rawJSON), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to store schema for %s: %w", serverURL, err)
	}
	return nil
}
