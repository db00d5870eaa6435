package collections

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/curatarr/curatarr/internal/database"
	"github.com/curatarr/curatarr/internal/plex"
)

var (
	ErrNotFound       = errors.New("collection not found")
	ErrMemberNotFound = errors.New("collection member not found")
	ErrInvalid        = errors.New("invalid collection request")
)

// Querier is satisfied by *sql.DB and *sql.Tx.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store persists collections, members, exclusions and logs.
type Store struct {
	db *sql.DB
}

// NewStore creates a store on db.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

const collectionColumns = `id, title, description, library_id, plex_collection_key, type, arr_action,
	delete_after_days, list_exclusions, force_request_sync, manual_collection, manual_collection_name,
	is_active, handled_media_count, last_duration_ms, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanCollection(row scanner) (*Collection, error) {
	var (
		c   Collection
		key sql.NullString
		typ string
		act string
	)
	err := row.Scan(&c.ID, &c.Title, &c.Description, &c.LibraryID, &key, &typ, &act,
		&c.DeleteAfterDays, &c.ListExclusions, &c.ForceRequestSync, &c.ManualCollection, &c.ManualCollectionName,
		&c.IsActive, &c.HandledMediaCount, &c.LastDurationMs, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	c.PlexCollectionKey = key.String
	c.Type = plex.MediaType(typ)
	c.ArrAction = Action(act)
	return &c, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// InsertCollection inserts c using q and sets its ID and timestamps.
func InsertCollection(ctx context.Context, q Querier, c *Collection) error {
	if c.ArrAction == "" {
		c.ArrAction = ActionDoNothing
	}
	now := time.Now().UTC()
	res, err := q.ExecContext(ctx, `INSERT INTO collections (title, description, library_id, plex_collection_key, type,
		arr_action, delete_after_days, list_exclusions, force_request_sync, manual_collection, manual_collection_name,
		is_active, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.Title, c.Description, c.LibraryID, nullString(c.PlexCollectionKey), string(c.Type),
		string(c.ArrAction), c.DeleteAfterDays, c.ListExclusions, c.ForceRequestSync, c.ManualCollection,
		c.ManualCollectionName, c.IsActive, now, now)
	if err != nil {
		return fmt.Errorf("insert collection: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	c.ID = id
	c.CreatedAt = now
	c.UpdatedAt = now
	return nil
}

// UpdateCollection writes the editable settings of c using q.
func UpdateCollection(ctx context.Context, q Querier, c *Collection) error {
	c.UpdatedAt = time.Now().UTC()
	res, err := q.ExecContext(ctx, `UPDATE collections SET title = ?, description = ?, library_id = ?, type = ?,
		arr_action = ?, delete_after_days = ?, list_exclusions = ?, force_request_sync = ?, manual_collection = ?,
		manual_collection_name = ?, is_active = ?, updated_at = ? WHERE id = ?`,
		c.Title, c.Description, c.LibraryID, string(c.Type), string(c.ArrAction), c.DeleteAfterDays,
		c.ListExclusions, c.ForceRequestSync, c.ManualCollection, c.ManualCollectionName, c.IsActive,
		c.UpdatedAt, c.ID)
	if err != nil {
		return fmt.Errorf("update collection: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Create inserts a standalone collection.
func (s *Store) Create(ctx context.Context, c *Collection) error {
	return InsertCollection(ctx, s.db, c)
}

// Update saves the editable settings of c.
func (s *Store) Update(ctx context.Context, c *Collection) error {
	return UpdateCollection(ctx, s.db, c)
}

// Get returns a collection by id.
func (s *Store) Get(ctx context.Context, id int64) (*Collection, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+collectionColumns+` FROM collections WHERE id = ?`, id)
	c, err := scanCollection(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get collection %d: %w", id, err)
	}
	return c, nil
}

// List returns every collection ordered by id.
func (s *Store) List(ctx context.Context) ([]*Collection, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+collectionColumns+` FROM collections ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	defer rows.Close()

	var out []*Collection
	for rows.Next() {
		c, err := scanCollection(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Delete removes a collection. Members, logs and the owning rule group
// cascade.
func (s *Store) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM collections WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete collection: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// SetPlexCollectionKey records (or clears, with "") the mirrored Plex collection.
func (s *Store) SetPlexCollectionKey(ctx context.Context, id int64, key string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE collections SET plex_collection_key = ?, updated_at = ? WHERE id = ?`,
		nullString(key), time.Now().UTC(), id)
	return err
}

// RecordRun stores the duration of the last rule run.
func (s *Store) RecordRun(ctx context.Context, id int64, d time.Duration) error {
	_, err := s.db.ExecContext(ctx, `UPDATE collections SET last_duration_ms = ? WHERE id = ?`, d.Milliseconds(), id)
	return err
}

// IncrementHandled adds n to the handled media counter.
func (s *Store) IncrementHandled(ctx context.Context, id int64, n int) error {
	_, err := s.db.ExecContext(ctx, `UPDATE collections SET handled_media_count = handled_media_count + ? WHERE id = ?`, n, id)
	return err
}

// Members returns the members of a collection ordered by add date.
func (s *Store) Members(ctx context.Context, collectionID int64) ([]Member, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, collection_id, plex_id, tmdb_id, tvdb_id, add_date, is_manual
		FROM collection_media WHERE collection_id = ? ORDER BY add_date, id`, collectionID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	var out []Member
	for rows.Next() {
		var (
			m      Member
			tmdbID sql.NullInt64
			tvdbID sql.NullInt64
		)
		if err := rows.Scan(&m.ID, &m.CollectionID, &m.PlexID, &tmdbID, &tvdbID, &m.AddDate, &m.IsManual); err != nil {
			return nil, err
		}
		m.TmdbID = int(tmdbID.Int64)
		m.TvdbID = int(tvdbID.Int64)
		out = append(out, m)
	}
	return out, rows.Err()
}

// AddMembers inserts members that are not yet in the collection. Existing
// members keep their original add date.
func (s *Store) AddMembers(ctx context.Context, collectionID int64, members []Member) (int, error) {
	if len(members) == 0 {
		return 0, nil
	}
	added := 0
	err := database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		for _, m := range members {
			if m.AddDate.IsZero() {
				m.AddDate = time.Now().UTC()
			}
			res, err := tx.ExecContext(ctx, `INSERT INTO collection_media
				(collection_id, plex_id, tmdb_id, tvdb_id, add_date, is_manual) VALUES (?, ?, ?, ?, ?, ?)
				ON CONFLICT (collection_id, plex_id) DO NOTHING`,
				collectionID, m.PlexID, nullInt(m.TmdbID), nullInt(m.TvdbID), m.AddDate.UTC(), m.IsManual)
			if err != nil {
				return fmt.Errorf("add member %s: %w", m.PlexID, err)
			}
			if n, _ := res.RowsAffected(); n > 0 {
				added++
			}
		}
		return nil
	})
	return added, err
}

// SetManual pins or unpins an existing member.
func (s *Store) SetManual(ctx context.Context, collectionID int64, plexID string, manual bool) error {
	res, err := s.db.ExecContext(ctx, `UPDATE collection_media SET is_manual = ? WHERE collection_id = ? AND plex_id = ?`,
		manual, collectionID, plexID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrMemberNotFound
	}
	return nil
}

// RemoveMembers deletes the given plex ids from the collection.
func (s *Store) RemoveMembers(ctx context.Context, collectionID int64, plexIDs []string) (int, error) {
	if len(plexIDs) == 0 {
		return 0, nil
	}
	args := make([]any, 0, len(plexIDs)+1)
	args = append(args, collectionID)
	for _, id := range plexIDs {
		args = append(args, id)
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM collection_media WHERE collection_id = ? AND plex_id IN (`+
		placeholders(len(plexIDs))+`)`, args...)
	if err != nil {
		return 0, fmt.Errorf("remove members: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func nullInt(v int) sql.NullInt64 {
	return sql.NullInt64{Int64: int64(v), Valid: v != 0}
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

const exclusionColumns = `id, plex_id, parent_plex_id, rule_group_id, created_at`

func scanExclusion(row scanner) (Exclusion, error) {
	var (
		e      Exclusion
		parent sql.NullString
		group  sql.NullInt64
	)
	if err := row.Scan(&e.ID, &e.PlexID, &parent, &group, &e.CreatedAt); err != nil {
		return e, err
	}
	e.ParentPlexID = parent.String
	if group.Valid {
		id := group.Int64
		e.RuleGroupID = &id
	}
	return e, nil
}

func (s *Store) queryExclusions(ctx context.Context, query string, args ...any) ([]Exclusion, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list exclusions: %w", err)
	}
	defer rows.Close()

	var out []Exclusion
	for rows.Next() {
		e, err := scanExclusion(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Exclusions returns every exclusion.
func (s *Store) Exclusions(ctx context.Context) ([]Exclusion, error) {
	return s.queryExclusions(ctx, `SELECT `+exclusionColumns+` FROM exclusions ORDER BY id`)
}

// ExclusionsForGroup returns the exclusions that apply to a rule group,
// including global ones.
func (s *Store) ExclusionsForGroup(ctx context.Context, ruleGroupID int64) ([]Exclusion, error) {
	return s.queryExclusions(ctx, `SELECT `+exclusionColumns+` FROM exclusions
		WHERE rule_group_id = ? OR rule_group_id IS NULL ORDER BY id`, ruleGroupID)
}

// ExclusionsForCollection returns the exclusions that apply to the rule
// group owning a collection, including global ones.
func (s *Store) ExclusionsForCollection(ctx context.Context, collectionID int64) ([]Exclusion, error) {
	return s.queryExclusions(ctx, `SELECT `+exclusionColumns+` FROM exclusions
		WHERE rule_group_id IS NULL OR rule_group_id IN (SELECT id FROM rule_groups WHERE collection_id = ?)
		ORDER BY id`, collectionID)
}

// RuleGroupIDForCollection returns the id of the rule group owning a
// collection, or 0 if none does.
func (s *Store) RuleGroupIDForCollection(ctx context.Context, collectionID int64) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `SELECT id FROM rule_groups WHERE collection_id = ?`, collectionID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return id, err
}

// AddExclusion stores e and sets its ID. Adding the same item twice for
// the same scope is a no-op.
func (s *Store) AddExclusion(ctx context.Context, e *Exclusion) error {
	var group sql.NullInt64
	if e.RuleGroupID != nil {
		group = sql.NullInt64{Int64: *e.RuleGroupID, Valid: true}
	}
	var existing int64
	err := s.db.QueryRowContext(ctx, `SELECT id FROM exclusions WHERE plex_id = ? AND rule_group_id IS ?`,
		e.PlexID, group).Scan(&existing)
	if err == nil {
		e.ID = existing
		return nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return err
	}

	e.CreatedAt = time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `INSERT INTO exclusions (plex_id, parent_plex_id, rule_group_id, created_at)
		VALUES (?, ?, ?, ?)`, e.PlexID, nullString(e.ParentPlexID), group, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("add exclusion: %w", err)
	}
	e.ID, err = res.LastInsertId()
	return err
}

// RemoveExclusion deletes an exclusion by id.
func (s *Store) RemoveExclusion(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM exclusions WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// AddLog appends a log line to a collection.
func (s *Store) AddLog(ctx context.Context, collectionID int64, typ LogType, message string) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO collection_logs (id, collection_id, timestamp, message, type)
		VALUES (?, ?, ?, ?, ?)`, uuid.NewString(), collectionID, time.Now().UTC(), message, string(typ))
	return err
}

// Logs returns the newest log lines of a collection, newest first.
func (s *Store) Logs(ctx context.Context, collectionID int64, limit int) ([]LogEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, collection_id, timestamp, message, type FROM collection_logs
		WHERE collection_id = ? ORDER BY timestamp DESC LIMIT ?`, collectionID, limit)
	if err != nil {
		return nil, fmt.Errorf("list logs: %w", err)
	}
	defer rows.Close()

	var out []LogEntry
	for rows.Next() {
		var (
			l   LogEntry
			typ string
		)
		if err := rows.Scan(&l.ID, &l.CollectionID, &l.Timestamp, &l.Message, &typ); err != nil {
			return nil, err
		}
		l.Type = LogType(typ)
		out = append(out, l)
	}
	return out, rows.Err()
}
