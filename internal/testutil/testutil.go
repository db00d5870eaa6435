// Package testutil provides testing utilities for integration tests.
package testutil

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/curatarr/curatarr/internal/database"
)

// TestDB wraps a migrated test database connection.
type TestDB struct {
	DB     *database.DB
	Conn   *sql.DB
	Logger zerolog.Logger
}

// NewTestDB creates a migrated database in t.TempDir and closes it on cleanup.
func NewTestDB(t *testing.T) *TestDB {
	t.Helper()

	logger := NewTestLogger(t)

	db, err := database.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	if _, err := db.Migrate(context.Background()); err != nil {
		db.Close()
		t.Fatalf("Failed to run migrations: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return &TestDB{
		DB:     db,
		Conn:   db.Conn(),
		Logger: logger,
	}
}

// NewTestLogger creates a test logger that outputs to t.Log.
func NewTestLogger(t *testing.T) zerolog.Logger {
	t.Helper()
	return zerolog.New(zerolog.NewTestWriter(t)).Level(zerolog.DebugLevel)
}
