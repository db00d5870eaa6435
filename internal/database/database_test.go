package database

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(filepath.Join(t.TempDir(), "nested", "curatarr.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestMigrate_AppliesOnce(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	applied, err := db.Migrate(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, applied)

	applied, err = db.Migrate(ctx)
	require.NoError(t, err)
	assert.Empty(t, applied)

	version, err := db.SchemaVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), version)

	for _, table := range []string{"rule_groups", "rules", "collections", "collection_media", "exclusions", "collection_logs"} {
		var name string
		err := db.Conn().QueryRow(`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&name)
		assert.NoError(t, err, table)
	}
}

func TestNew_ForeignKeysEnabled(t *testing.T) {
	db := openTestDB(t)
	var on int
	require.NoError(t, db.Conn().QueryRow(`PRAGMA foreign_keys`).Scan(&on))
	assert.Equal(t, 1, on)
}

func TestWithTx_RollsBackOnError(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	_, err := db.Conn().Exec(`CREATE TABLE t (v INTEGER)`)
	require.NoError(t, err)

	boom := errors.New("boom")
	err = WithTx(ctx, db.Conn(), func(tx *sql.Tx) error {
		if _, err := tx.Exec(`INSERT INTO t (v) VALUES (1)`); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	require.NoError(t, WithTx(ctx, db.Conn(), func(tx *sql.Tx) error {
		_, err := tx.Exec(`INSERT INTO t (v) VALUES (2)`)
		return err
	}))

	var count int
	require.NoError(t, db.Conn().QueryRow(`SELECT COUNT(*) FROM t`).Scan(&count))
	assert.Equal(t, 1, count)
}
