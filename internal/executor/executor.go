// Package executor runs rule groups against their library and reconciles
// the matching items with the group's collection.
package executor

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/curatarr/curatarr/internal/collections"
	"github.com/curatarr/curatarr/internal/metrics"
	"github.com/curatarr/curatarr/internal/plex"
	"github.com/curatarr/curatarr/internal/rules"
)

// LibrarySource pages through a library.
type LibrarySource interface {
	GetLibraryPage(ctx context.Context, libraryID string, offset, size int, typ plex.MediaType) (*plex.Page, error)
}

// Evaluator evaluates a rule group against a batch of items.
type Evaluator interface {
	Evaluate(ctx context.Context, group *rules.RuleGroup, items []plex.Metadata, withStats bool) rules.Result
}

// GroupSource lists rule groups.
type GroupSource interface {
	List(ctx context.Context) ([]*rules.RuleGroup, error)
}

// Result summarizes one rule group run.
type Result struct {
	GroupID   int64         `json:"groupId"`
	Evaluated int           `json:"evaluated"`
	Matched   int           `json:"matched"`
	Excluded  int           `json:"excluded"`
	Added     int           `json:"added"`
	Removed   int           `json:"removed"`
	Synced    int           `json:"synced"`
	Skipped   bool          `json:"skipped"`
	Duration  time.Duration `json:"duration"`
}

// Executor runs rule groups.
type Executor struct {
	library     LibrarySource
	evaluator   Evaluator
	groups      GroupSource
	collections *collections.Service
	pageSize    int
	now         func() time.Time
	logger      zerolog.Logger
}

// New creates an executor reading pageSize items per library request.
func New(library LibrarySource, evaluator Evaluator, groups GroupSource, cols *collections.Service, pageSize int, logger zerolog.Logger) *Executor {
	if pageSize <= 0 {
		pageSize = 50
	}
	return &Executor{
		library:     library,
		evaluator:   evaluator,
		groups:      groups,
		collections: cols,
		pageSize:    pageSize,
		now:         time.Now,
		logger:      logger.With().Str("component", "executor").Logger(),
	}
}

// ExecuteAll runs every active rule group in turn. A failing group does
// not stop the others; their errors are joined.
func (e *Executor) ExecuteAll(ctx context.Context) error {
	groups, err := e.groups.List(ctx)
	if err != nil {
		return fmt.Errorf("list rule groups: %w", err)
	}

	var errs []error
	for _, g := range groups {
		if err := ctx.Err(); err != nil {
			return err
		}
		res, err := e.Execute(ctx, g)
		if err != nil {
			e.logger.Error().Err(err).Int64("groupId", g.ID).Str("name", g.Name).Msg("Rule group run failed")
			errs = append(errs, fmt.Errorf("rule group %d: %w", g.ID, err))
			continue
		}
		if !res.Skipped {
			e.logger.Info().Int64("groupId", g.ID).Str("name", g.Name).
				Int("evaluated", res.Evaluated).Int("matched", res.Matched).
				Int("added", res.Added).Int("removed", res.Removed).
				Dur("duration", res.Duration).Msg("Rule group run complete")
		}
	}
	return errors.Join(errs...)
}

// Execute runs one rule group and reconciles its collection. Members that
// were added by hand are never removed. A library read failure aborts the
// run before any membership change.
func (e *Executor) Execute(ctx context.Context, group *rules.RuleGroup) (*Result, error) {
	start := e.now()
	res := &Result{GroupID: group.ID}

	col, err := e.collections.Get(ctx, group.CollectionID)
	if err != nil {
		return nil, fmt.Errorf("load collection: %w", err)
	}
	if !group.IsActive || !col.IsActive {
		res.Skipped = true
		metrics.RecordRuleRunSkipped()
		return res, nil
	}

	log := e.logger.With().Int64("groupId", group.ID).Str("name", group.Name).Logger()

	var matched []plex.Metadata
	if group.UseRules {
		matched, res.Evaluated, err = e.evaluateLibrary(ctx, group)
		if err != nil {
			metrics.RecordRuleRun(e.now().Sub(start), res.Evaluated, err)
			return nil, err
		}
		res.Matched = len(matched)

		excluded, err := e.exclusionSet(ctx, group.ID)
		if err != nil {
			return nil, err
		}
		matched, res.Excluded = filterExcluded(matched, excluded)

		members, err := e.collections.Members(ctx, col.ID)
		if err != nil {
			return nil, fmt.Errorf("load members: %w", err)
		}
		toAdd, toRemove := diff(matched, members, e.now().UTC())

		if res.Added, err = e.collections.Add(ctx, col, toAdd); err != nil {
			return nil, fmt.Errorf("add members: %w", err)
		}
		if res.Removed, err = e.collections.Remove(ctx, col, toRemove); err != nil {
			return nil, fmt.Errorf("remove members: %w", err)
		}
	}

	synced, err := e.collections.SyncManual(ctx, col)
	if err != nil {
		log.Warn().Err(err).Msg("Manual collection sync failed")
	}
	res.Synced = synced.Added + synced.Removed

	res.Duration = e.now().Sub(start)
	e.collections.Log(ctx, col.ID, collections.LogRuleRun, "Rules evaluated %d items: %d added, %d removed",
		res.Evaluated, res.Added, res.Removed)
	e.collections.RecordRun(ctx, col, res.Added+synced.Added, res.Removed+synced.Removed, res.Duration)
	metrics.RecordRuleRun(res.Duration, res.Evaluated, nil)
	return res, nil
}

// evaluateLibrary pages through the group's library and evaluates every
// page on its own. Returns the union of matches and the number of items
// read.
func (e *Executor) evaluateLibrary(ctx context.Context, group *rules.RuleGroup) ([]plex.Metadata, int, error) {
	var (
		matched []plex.Metadata
		seen    = map[string]bool{}
		offset  int
	)
	for {
		if err := ctx.Err(); err != nil {
			return nil, offset, err
		}
		page, err := e.library.GetLibraryPage(ctx, group.LibraryID, offset, e.pageSize, group.DataType)
		if err != nil {
			return nil, offset, fmt.Errorf("read library %s at %d: %w", group.LibraryID, offset, err)
		}
		if len(page.Items) == 0 {
			break
		}

		res := e.evaluator.Evaluate(ctx, group, page.Items, false)
		for _, it := range res.Matched {
			if !seen[it.RatingKey] {
				seen[it.RatingKey] = true
				matched = append(matched, it)
			}
		}

		offset += len(page.Items)
		if page.TotalSize > 0 && offset >= page.TotalSize {
			break
		}
		if len(page.Items) < e.pageSize {
			break
		}
	}
	return matched, offset, nil
}

func (e *Executor) exclusionSet(ctx context.Context, groupID int64) (map[string]bool, error) {
	exclusions, err := e.collections.Store().ExclusionsForGroup(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("load exclusions: %w", err)
	}
	set := make(map[string]bool, len(exclusions))
	for _, ex := range exclusions {
		set[ex.PlexID] = true
	}
	return set, nil
}

// filterExcluded drops items excluded directly or through their show or
// season.
func filterExcluded(items []plex.Metadata, excluded map[string]bool) ([]plex.Metadata, int) {
	if len(excluded) == 0 {
		return items, 0
	}
	out := items[:0:0]
	for _, it := range items {
		if excluded[it.RatingKey] || excluded[it.ParentRatingKey] || excluded[it.GrandparentRatingKey] {
			continue
		}
		out = append(out, it)
	}
	return out, len(items) - len(out)
}

// diff returns the matched items that are not members yet and the
// rule-derived members that no longer match.
func diff(matched []plex.Metadata, members []collections.Member, now time.Time) ([]collections.Member, []string) {
	current := make(map[string]bool, len(members))
	for _, m := range members {
		current[m.PlexID] = true
	}
	want := make(map[string]bool, len(matched))

	var toAdd []collections.Member
	for _, it := range matched {
		want[it.RatingKey] = true
		if current[it.RatingKey] {
			continue
		}
		m := collections.Member{PlexID: it.RatingKey, AddDate: now}
		// Season and episode guids name the child, not the show.
		if t := plex.MediaType(it.Type); t == plex.TypeMovie || t == plex.TypeShow {
			m.TmdbID = atoi(it.ExternalID("tmdb"))
			m.TvdbID = atoi(it.ExternalID("tvdb"))
		}
		toAdd = append(toAdd, m)
	}

	var toRemove []string
	for _, m := range members {
		if !want[m.PlexID] && !m.IsManual {
			toRemove = append(toRemove, m.PlexID)
		}
	}
	return toAdd, toRemove
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
