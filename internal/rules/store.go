package rules

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/curatarr/curatarr/internal/collections"
	"github.com/curatarr/curatarr/internal/database"
	"github.com/curatarr/curatarr/internal/plex"
)

var ErrNotFound = errors.New("rule group not found")

// Store persists rule groups and their rules.
type Store struct {
	db *sql.DB
}

// NewStore creates a store on db.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

const groupColumns = `id, name, description, library_id, data_type, is_active, use_rules, collection_id`

func scanGroup(row interface{ Scan(...any) error }) (*RuleGroup, error) {
	var (
		g  RuleGroup
		dt string
	)
	if err := row.Scan(&g.ID, &g.Name, &g.Description, &g.LibraryID, &dt, &g.IsActive, &g.UseRules, &g.CollectionID); err != nil {
		return nil, err
	}
	g.DataType = plex.MediaType(dt)
	return &g, nil
}

// Create inserts col and a rule group feeding it in one transaction.
func (s *Store) Create(ctx context.Context, g *RuleGroup, col *collections.Collection) error {
	return database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		if err := collections.InsertCollection(ctx, tx, col); err != nil {
			return err
		}
		g.CollectionID = col.ID

		now := time.Now().UTC()
		res, err := tx.ExecContext(ctx, `INSERT INTO rule_groups
			(name, description, library_id, data_type, is_active, use_rules, collection_id, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			g.Name, g.Description, g.LibraryID, string(g.DataType), g.IsActive, g.UseRules, g.CollectionID, now, now)
		if err != nil {
			return fmt.Errorf("insert rule group: %w", err)
		}
		if g.ID, err = res.LastInsertId(); err != nil {
			return err
		}
		return insertRules(ctx, tx, g.ID, g.Rules)
	})
}

// Update saves g, replacing its rules, and col when it is not nil.
func (s *Store) Update(ctx context.Context, g *RuleGroup, col *collections.Collection) error {
	return database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE rule_groups SET name = ?, description = ?, library_id = ?,
			data_type = ?, is_active = ?, use_rules = ?, updated_at = ? WHERE id = ?`,
			g.Name, g.Description, g.LibraryID, string(g.DataType), g.IsActive, g.UseRules, time.Now().UTC(), g.ID)
		if err != nil {
			return fmt.Errorf("update rule group: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrNotFound
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM rules WHERE rule_group_id = ?`, g.ID); err != nil {
			return fmt.Errorf("clear rules: %w", err)
		}
		if err := insertRules(ctx, tx, g.ID, g.Rules); err != nil {
			return err
		}
		if col != nil {
			return collections.UpdateCollection(ctx, tx, col)
		}
		return nil
	})
}

func insertRules(ctx context.Context, tx *sql.Tx, groupID int64, rules []Rule) error {
	for i, r := range rules {
		data, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("encode rule %d: %w", i, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO rules (rule_group_id, position, section, rule_json)
			VALUES (?, ?, ?, ?)`, groupID, i, r.Section, string(data)); err != nil {
			return fmt.Errorf("insert rule %d: %w", i, err)
		}
	}
	return nil
}

// Get returns a rule group with its rules.
func (s *Store) Get(ctx context.Context, id int64) (*RuleGroup, error) {
	return s.getWhere(ctx, "id = ?", id)
}

// GetByCollection returns the rule group feeding a collection.
func (s *Store) GetByCollection(ctx context.Context, collectionID int64) (*RuleGroup, error) {
	return s.getWhere(ctx, "collection_id = ?", collectionID)
}

func (s *Store) getWhere(ctx context.Context, where string, arg any) (*RuleGroup, error) {
	g, err := scanGroup(s.db.QueryRowContext(ctx, `SELECT `+groupColumns+` FROM rule_groups WHERE `+where, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get rule group: %w", err)
	}
	if g.Rules, err = s.loadRules(ctx, g.ID); err != nil {
		return nil, err
	}
	return g, nil
}

// List returns every rule group with its rules.
func (s *Store) List(ctx context.Context) ([]*RuleGroup, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+groupColumns+` FROM rule_groups ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list rule groups: %w", err)
	}
	var groups []*RuleGroup
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		groups = append(groups, g)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Rules are loaded after the cursor is closed; the pool has one connection.
	for _, g := range groups {
		if g.Rules, err = s.loadRules(ctx, g.ID); err != nil {
			return nil, err
		}
	}
	return groups, nil
}

func (s *Store) loadRules(ctx context.Context, groupID int64) ([]Rule, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT section, rule_json FROM rules WHERE rule_group_id = ? ORDER BY position`, groupID)
	if err != nil {
		return nil, fmt.Errorf("load rules: %w", err)
	}
	defer rows.Close()

	var out []Rule
	for rows.Next() {
		var (
			section int
			data    string
			r       Rule
		)
		if err := rows.Scan(&section, &data); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(data), &r); err != nil {
			return nil, fmt.Errorf("decode rule of group %d: %w", groupID, err)
		}
		r.Section = section
		out = append(out, r)
	}
	return out, rows.Err()
}

// Delete removes a rule group together with its collection.
func (s *Store) Delete(ctx context.Context, id int64) error {
	g, err := scanGroup(s.db.QueryRowContext(ctx, `SELECT `+groupColumns+` FROM rule_groups WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	// The group cascades from its collection.
	_, err = s.db.ExecContext(ctx, `DELETE FROM collections WHERE id = ?`, g.CollectionID)
	return err
}
