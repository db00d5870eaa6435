package actions

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/curatarr/curatarr/internal/arr"
	"github.com/curatarr/curatarr/internal/collections"
)

// MovieManager is the Radarr surface used by RadarrHandler.
type MovieManager interface {
	IsConfigured() bool
	GetMovieByTmdbID(ctx context.Context, tmdbID int) (*arr.Movie, error)
	DeleteMovie(ctx context.Context, id int, deleteFiles, addExclusion bool) error
	UnmonitorMovie(ctx context.Context, id int, deleteFiles bool) error
}

// RadarrHandler applies collection actions to movies.
type RadarrHandler struct {
	radarr  MovieManager
	library Library
	ids     IDResolver
	logger  zerolog.Logger
}

// NewRadarrHandler creates a RadarrHandler.
func NewRadarrHandler(radarr MovieManager, library Library, ids IDResolver, logger zerolog.Logger) *RadarrHandler {
	return &RadarrHandler{
		radarr:  radarr,
		library: library,
		ids:     ids,
		logger:  logger.With().Str("handler", "radarr").Logger(),
	}
}

// Handle applies col's action to the movie member.
func (h *RadarrHandler) Handle(ctx context.Context, col *collections.Collection, member collections.Member) (Outcome, error) {
	// Without the manager there is no Plex fallback; the member is kept.
	if !h.radarr.IsConfigured() {
		return OutcomeFailed, arr.ErrNotConfigured
	}

	tmdbID := member.TmdbID
	if tmdbID == 0 {
		item, err := h.library.GetMetadata(ctx, member.PlexID)
		if err != nil {
			return OutcomeFailed, fmt.Errorf("load %s: %w", member.PlexID, err)
		}
		if tmdbID, err = h.ids.TmdbID(ctx, item); err != nil {
			return OutcomeFailed, err
		}
	}

	movie, err := h.radarr.GetMovieByTmdbID(ctx, tmdbID)
	if err != nil {
		return OutcomeFailed, fmt.Errorf("look up tmdb %d: %w", tmdbID, err)
	}
	if movie == nil {
		if col.ArrAction == collections.ActionUnmonitor {
			return OutcomeNotManaged, nil
		}
		h.logger.Info().Int("tmdbId", tmdbID).Str("plexId", member.PlexID).Msg("Movie not in Radarr, deleting from Plex")
		return deleteFromLibrary(ctx, h.library, member.PlexID)
	}

	switch col.ArrAction {
	case collections.ActionDelete, collections.ActionUnmonitorDeleteExisting:
		err = h.radarr.DeleteMovie(ctx, movie.ID, true, col.ListExclusions)
	case collections.ActionUnmonitor:
		err = h.radarr.UnmonitorMovie(ctx, movie.ID, false)
	case collections.ActionUnmonitorDeleteAll:
		err = h.radarr.UnmonitorMovie(ctx, movie.ID, true)
	default:
		return OutcomeUnsupported, nil
	}
	if err != nil {
		return OutcomeFailed, fmt.Errorf("radarr %s movie %d: %w", col.ArrAction, movie.ID, err)
	}
	return OutcomeHandled, nil
}
