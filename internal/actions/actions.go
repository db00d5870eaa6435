// Package actions applies a collection's action to a member in Radarr or
// Sonarr, falling back to deleting from Plex when the manager does not
// know the item.
package actions

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/curatarr/curatarr/internal/collections"
	"github.com/curatarr/curatarr/internal/metrics"
	"github.com/curatarr/curatarr/internal/plex"
)

var (
	// ErrUnsupported is returned for action and media type combinations
	// that have no handler.
	ErrUnsupported = errors.New("unsupported action")
)

// Outcome is what a handler did with a member.
type Outcome string

const (
	// OutcomeHandled means the manager applied the action.
	OutcomeHandled Outcome = "handled"
	// OutcomeLibraryDeleted means the manager did not know the item and it
	// was deleted from Plex instead.
	OutcomeLibraryDeleted Outcome = "library_deleted"
	// OutcomeNotManaged means the manager did not know the item and the
	// action has no Plex equivalent.
	OutcomeNotManaged Outcome = "not_managed"
	// OutcomeUnsupported means no handler exists; nothing was called.
	OutcomeUnsupported Outcome = "unsupported"
	// OutcomeNothing is the result of the do_nothing action.
	OutcomeNothing Outcome = "nothing"
	// OutcomeFailed means a call failed; the error says which.
	OutcomeFailed Outcome = "failed"
)

// Done reports whether the member can leave the collection.
func (o Outcome) Done() bool {
	return o == OutcomeHandled || o == OutcomeLibraryDeleted || o == OutcomeNotManaged
}

// Library is the Plex surface used by handlers.
type Library interface {
	GetMetadata(ctx context.Context, ratingKey string) (*plex.Metadata, error)
	DeleteItem(ctx context.Context, ratingKey string) error
}

// IDResolver maps Plex items to manager ids.
type IDResolver interface {
	TmdbID(ctx context.Context, item *plex.Metadata) (int, error)
	TvdbID(ctx context.Context, item *plex.Metadata) (int, error)
}

// Handler routes members to the Radarr or Sonarr handler by collection
// type.
type Handler struct {
	radarr *RadarrHandler
	sonarr *SonarrHandler
	logger zerolog.Logger
}

// NewHandler creates a Handler.
func NewHandler(radarr *RadarrHandler, sonarr *SonarrHandler, logger zerolog.Logger) *Handler {
	return &Handler{radarr: radarr, sonarr: sonarr, logger: logger.With().Str("component", "actions").Logger()}
}

// Handle applies col's action to member.
func (h *Handler) Handle(ctx context.Context, col *collections.Collection, member collections.Member) (Outcome, error) {
	if col.ArrAction == collections.ActionDoNothing {
		return OutcomeNothing, nil
	}

	var (
		app     string
		outcome Outcome
		err     error
	)
	switch col.Type {
	case plex.TypeMovie:
		app = "radarr"
		outcome, err = h.radarr.Handle(ctx, col, member)
	case plex.TypeShow, plex.TypeSeason, plex.TypeEpisode:
		app = "sonarr"
		outcome, err = h.sonarr.Handle(ctx, col, member)
	default:
		return OutcomeUnsupported, fmt.Errorf("%w: collection type %q", ErrUnsupported, col.Type)
	}
	if err != nil && outcome == "" {
		outcome = OutcomeFailed
	}
	metrics.RecordMediaAction(app, string(col.ArrAction), string(outcome))

	log := h.logger.With().Int64("collectionId", col.ID).Str("plexId", member.PlexID).
		Str("action", string(col.ArrAction)).Str("outcome", string(outcome)).Logger()
	switch {
	case err != nil:
		log.Warn().Err(err).Msg("Media action not taken")
	case outcome == OutcomeUnsupported:
		log.Warn().Str("type", string(col.Type)).Msg("Action is not supported for this media type")
	default:
		log.Info().Msg("Media action applied")
	}
	return outcome, err
}

// deleteFromLibrary is the fallback for items the manager does not know.
func deleteFromLibrary(ctx context.Context, lib Library, plexID string) (Outcome, error) {
	if err := lib.DeleteItem(ctx, plexID); err != nil {
		return OutcomeFailed, fmt.Errorf("delete %s from Plex: %w", plexID, err)
	}
	return OutcomeLibraryDeleted, nil
}
