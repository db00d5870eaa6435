// Package worker handles collection members whose grace period has run
// out.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/curatarr/curatarr/internal/actions"
	"github.com/curatarr/curatarr/internal/collections"
	"github.com/curatarr/curatarr/internal/plex"
)

const availabilitySyncTimeout = 2 * time.Minute

// ActionHandler applies a collection's action to one member.
type ActionHandler interface {
	Handle(ctx context.Context, col *collections.Collection, member collections.Member) (actions.Outcome, error)
}

// RequestManager is an Overseerr or Jellyseerr instance.
type RequestManager interface {
	Name() string
	IsConfigured() bool
	RemoveRequest(ctx context.Context, movie bool, tmdbID int, season *int) error
	TriggerAvailabilitySync(ctx context.Context) error
}

// MetadataSource loads Plex items.
type MetadataSource interface {
	GetMetadata(ctx context.Context, ratingKey string) (*plex.Metadata, error)
}

// TmdbResolver maps Plex items to the TMDB id of their movie or show.
type TmdbResolver interface {
	TmdbID(ctx context.Context, item *plex.Metadata) (int, error)
}

// Config controls request cleanup after an item is handled.
type Config struct {
	// ForceRequestSync removes requests for every collection, not only
	// collections that ask for it.
	ForceRequestSync      bool
	AvailabilitySyncDelay time.Duration
}

// Result summarizes one pass.
type Result struct {
	Handled     int `json:"handled"`
	Failed      int `json:"failed"`
	Unsupported int `json:"unsupported"`
}

// Worker runs the collection handler.
type Worker struct {
	collections *collections.Service
	handler     ActionHandler
	requests    []RequestManager
	library     MetadataSource
	ids         TmdbResolver
	cfg         Config
	logger      zerolog.Logger

	now       func() time.Time
	afterFunc func(time.Duration, func())

	// pending guards the delayed availability sync so at most one is
	// queued at a time.
	mu      sync.Mutex
	pending bool
}

// New creates a Worker.
func New(cols *collections.Service, handler ActionHandler, requests []RequestManager, library MetadataSource, ids TmdbResolver, cfg Config, logger zerolog.Logger) *Worker {
	return &Worker{
		collections: cols,
		handler:     handler,
		requests:    requests,
		library:     library,
		ids:         ids,
		cfg:         cfg,
		logger:      logger.With().Str("component", "collection-worker").Logger(),
		now:         time.Now,
		afterFunc: func(d time.Duration, f func()) {
			time.AfterFunc(d, f)
		},
	}
}

// Execute handles every due member of every active collection. A member
// whose action was not taken stays in its collection for the next pass.
func (w *Worker) Execute(ctx context.Context) (*Result, error) {
	cols, err := w.collections.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}

	res := &Result{}
	var errs []error
	for _, col := range cols {
		if !col.IsActive || col.ArrAction == collections.ActionDoNothing {
			continue
		}
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if err := w.handleCollection(ctx, col, res); err != nil {
			w.logger.Error().Err(err).Int64("collectionId", col.ID).Msg("Collection handling failed")
			errs = append(errs, fmt.Errorf("collection %d: %w", col.ID, err))
		}
	}

	if res.Handled > 0 {
		w.scheduleAvailabilitySync()
	}
	w.logger.Info().Int("handled", res.Handled).Int("failed", res.Failed).
		Int("unsupported", res.Unsupported).Msg("Collection handler finished")
	return res, errors.Join(errs...)
}

func (w *Worker) handleCollection(ctx context.Context, col *collections.Collection, res *Result) error {
	members, err := w.collections.Members(ctx, col.ID)
	if err != nil {
		return err
	}
	exclusions, err := w.collections.Store().ExclusionsForCollection(ctx, col.ID)
	if err != nil {
		return err
	}
	excluded := make(map[string]bool, len(exclusions))
	for _, ex := range exclusions {
		excluded[ex.PlexID] = true
	}

	syncRequests := w.cfg.ForceRequestSync || col.ForceRequestSync
	now := w.now()
	handled := 0
	for _, m := range members {
		if !m.Due(col.DeleteAfterDays, now) || excluded[m.PlexID] {
			continue
		}
		log := w.logger.With().Int64("collectionId", col.ID).Str("plexId", m.PlexID).Logger()

		// Seasons and episodes are also excluded through their show or
		// season. Resolve before acting; a Plex fallback delete removes
		// the item.
		var item *plex.Metadata
		if isChild(col.Type) && len(excluded) > 0 {
			if item, err = w.library.GetMetadata(ctx, m.PlexID); err != nil {
				log.Warn().Err(err).Msg("Skipping member, exclusions of its show could not be checked")
				continue
			}
			if excluded[item.ParentRatingKey] || excluded[item.GrandparentRatingKey] {
				log.Debug().Msg("Skipping member excluded through its parent")
				continue
			}
		}

		var req *requestTarget
		if syncRequests {
			if req, err = w.requestTarget(ctx, col, m, item); err != nil {
				log.Info().Err(err).Msg("Request cleanup skipped, item could not be resolved")
			}
		}

		outcome, err := w.handler.Handle(ctx, col, m)
		switch {
		case err != nil:
			res.Failed++
			continue
		case outcome == actions.OutcomeUnsupported:
			res.Unsupported++
			continue
		case !outcome.Done():
			continue
		}

		if _, err := w.collections.Remove(ctx, col, []string{m.PlexID}); err != nil {
			log.Error().Err(err).Msg("Failed to remove handled member")
			res.Failed++
			continue
		}
		if req != nil {
			w.removeRequests(ctx, req)
		}

		handled++
		res.Handled++
		w.collections.Log(ctx, col.ID, collections.LogMediaHandled, "Handled %s: %s (%s)", m.PlexID, col.ArrAction, outcome)
	}

	if handled > 0 {
		if err := w.collections.Store().IncrementHandled(ctx, col.ID, handled); err != nil {
			return err
		}
	}
	return nil
}

type requestTarget struct {
	movie  bool
	tmdbID int
	season *int
}

func isChild(t plex.MediaType) bool {
	return t == plex.TypeSeason || t == plex.TypeEpisode
}

// requestTarget finds the movie or show a member was requested as. Seasons
// map to their season; episodes produce no target. item may be nil.
func (w *Worker) requestTarget(ctx context.Context, col *collections.Collection, m collections.Member, item *plex.Metadata) (*requestTarget, error) {
	switch col.Type {
	case plex.TypeEpisode:
		return nil, nil
	case plex.TypeMovie, plex.TypeShow:
		if m.TmdbID != 0 {
			return &requestTarget{movie: col.Type == plex.TypeMovie, tmdbID: m.TmdbID}, nil
		}
	}

	if item == nil {
		var err error
		if item, err = w.library.GetMetadata(ctx, m.PlexID); err != nil {
			return nil, err
		}
	}
	tmdbID, err := w.ids.TmdbID(ctx, item)
	if err != nil {
		return nil, err
	}
	t := &requestTarget{movie: col.Type == plex.TypeMovie, tmdbID: tmdbID}
	if col.Type == plex.TypeSeason {
		season := item.Index
		t.season = &season
	}
	return t, nil
}

func (w *Worker) removeRequests(ctx context.Context, t *requestTarget) {
	for _, rm := range w.requests {
		if !rm.IsConfigured() {
			continue
		}
		if err := rm.RemoveRequest(ctx, t.movie, t.tmdbID, t.season); err != nil {
			w.logger.Warn().Err(err).Str("app", rm.Name()).Int("tmdbId", t.tmdbID).Msg("Failed to remove request")
		}
	}
}

// scheduleAvailabilitySync asks the request managers to re-check media
// availability after the configured delay. It returns immediately.
func (w *Worker) scheduleAvailabilitySync() {
	w.mu.Lock()
	if w.pending {
		w.mu.Unlock()
		return
	}
	w.pending = true
	w.mu.Unlock()

	w.afterFunc(w.cfg.AvailabilitySyncDelay, func() {
		w.mu.Lock()
		w.pending = false
		w.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), availabilitySyncTimeout)
		defer cancel()
		for _, rm := range w.requests {
			if !rm.IsConfigured() {
				continue
			}
			if err := rm.TriggerAvailabilitySync(ctx); err != nil {
				w.logger.Warn().Err(err).Str("app", rm.Name()).Msg("Availability sync failed")
				continue
			}
			w.logger.Debug().Str("app", rm.Name()).Msg("Availability sync started")
		}
	})
}
