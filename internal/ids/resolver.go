// Package ids translates Plex library items into the TMDB and TVDB ids the
// downstream managers key on.
package ids

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/curatarr/curatarr/internal/metadata/tmdb"
	"github.com/curatarr/curatarr/internal/plex"
)

// ErrTranslationFailure means no source could produce the requested id.
var ErrTranslationFailure = errors.New("id translation failed")

// MetadataSource loads Plex items by rating key.
type MetadataSource interface {
	GetMetadata(ctx context.Context, ratingKey string) (*plex.Metadata, error)
}

// ExternalIDSource is the TMDB cross-reference API.
type ExternalIDSource interface {
	IsConfigured() bool
	FindByExternalID(ctx context.Context, id string, source tmdb.Source) (*tmdb.FindResult, error)
	GetTVExternalIDs(ctx context.Context, tmdbID int) (*tmdb.ExternalIDs, error)
}

// step is one source in a resolution pipeline. It returns 0 when it has no
// answer.
type step struct {
	name string
	fn   func(ctx context.Context, md *plex.Metadata) (int, error)
}

// Resolver maps library items to external ids.
type Resolver struct {
	plex   MetadataSource
	tmdb   ExternalIDSource
	logger zerolog.Logger
}

// NewResolver creates a resolver. tmdb may be nil.
func NewResolver(plexSource MetadataSource, tmdbSource ExternalIDSource, logger zerolog.Logger) *Resolver {
	return &Resolver{
		plex:   plexSource,
		tmdb:   tmdbSource,
		logger: logger.With().Str("component", "ids").Logger(),
	}
}

// Show returns the show an item belongs to. Movies and shows return their
// own full metadata.
func (r *Resolver) Show(ctx context.Context, item *plex.Metadata) (*plex.Metadata, error) {
	key := item.RatingKey
	switch plex.MediaType(item.Type) {
	case plex.TypeSeason:
		key = item.ParentRatingKey
	case plex.TypeEpisode:
		key = item.GrandparentRatingKey
	}
	if key == "" {
		return nil, fmt.Errorf("%w: %s %s has no parent key", ErrTranslationFailure, item.Type, item.RatingKey)
	}
	md, err := r.plex.GetMetadata(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", key, err)
	}
	return md, nil
}

// TmdbID returns the TMDB id of a movie, or of the show a season or
// episode belongs to.
func (r *Resolver) TmdbID(ctx context.Context, item *plex.Metadata) (int, error) {
	target, err := r.target(ctx, item)
	if err != nil {
		return 0, err
	}
	steps := []step{
		{"plex guid", guidStep("tmdb")},
		{"tmdb find by tvdb", r.findStep("tvdb", tmdb.SourceTVDB)},
		{"tmdb find by imdb", r.findStep("imdb", tmdb.SourceIMDb)},
	}
	return r.run(ctx, "tmdb", target, steps)
}

// TvdbID returns the TVDB id of the show an item belongs to.
func (r *Resolver) TvdbID(ctx context.Context, item *plex.Metadata) (int, error) {
	target, err := r.target(ctx, item)
	if err != nil {
		return 0, err
	}
	steps := []step{
		{"plex guid", guidStep("tvdb")},
		{"tmdb external ids", r.tvExternalIDsStep},
	}
	return r.run(ctx, "tvdb", target, steps)
}

func (r *Resolver) target(ctx context.Context, item *plex.Metadata) (*plex.Metadata, error) {
	if plex.MediaType(item.Type) == plex.TypeMovie || plex.MediaType(item.Type) == plex.TypeShow {
		if len(item.Guids) > 0 || item.GUID != "" {
			return item, nil
		}
	}
	show, err := r.Show(ctx, item)
	if err != nil {
		return nil, errors.Join(ErrTranslationFailure, err)
	}
	return show, nil
}

func (r *Resolver) run(ctx context.Context, want string, md *plex.Metadata, steps []step) (int, error) {
	for _, s := range steps {
		id, err := s.fn(ctx, md)
		if err != nil {
			r.logger.Debug().Err(err).
				Str("ratingKey", md.RatingKey).
				Str("want", want).
				Str("source", s.name).
				Msg("Id source failed")
			continue
		}
		if id > 0 {
			return id, nil
		}
	}
	return 0, fmt.Errorf("%w: no %s id for %q (%s)", ErrTranslationFailure, want, md.Title, md.RatingKey)
}

func guidStep(agent string) func(context.Context, *plex.Metadata) (int, error) {
	return func(_ context.Context, md *plex.Metadata) (int, error) {
		raw := md.ExternalID(agent)
		if raw == "" {
			return 0, nil
		}
		id, err := strconv.Atoi(raw)
		if err != nil {
			return 0, fmt.Errorf("parse %s guid %q: %w", agent, raw, err)
		}
		return id, nil
	}
}

func (r *Resolver) findStep(agent string, source tmdb.Source) func(context.Context, *plex.Metadata) (int, error) {
	return func(ctx context.Context, md *plex.Metadata) (int, error) {
		if r.tmdb == nil || !r.tmdb.IsConfigured() {
			return 0, nil
		}
		ext := md.ExternalID(agent)
		if ext == "" {
			return 0, nil
		}
		found, err := r.tmdb.FindByExternalID(ctx, ext, source)
		if err != nil {
			return 0, err
		}
		if plex.MediaType(md.Type) == plex.TypeMovie {
			if len(found.MovieResults) > 0 {
				return found.MovieResults[0].ID, nil
			}
			return 0, nil
		}
		if len(found.TVResults) > 0 {
			return found.TVResults[0].ID, nil
		}
		return 0, nil
	}
}

func (r *Resolver) tvExternalIDsStep(ctx context.Context, md *plex.Metadata) (int, error) {
	if r.tmdb == nil || !r.tmdb.IsConfigured() {
		return 0, nil
	}
	tmdbID, err := guidStep("tmdb")(ctx, md)
	if err != nil || tmdbID == 0 {
		return 0, err
	}
	ext, err := r.tmdb.GetTVExternalIDs(ctx, tmdbID)
	if err != nil {
		return 0, err
	}
	return ext.TVDbID, nil
}
