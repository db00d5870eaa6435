// Package getters resolves rule operands against Plex and the external
// services that know about a library item.
package getters

import (
	"context"
	"errors"
	"sort"

	"github.com/rs/zerolog"

	"github.com/curatarr/curatarr/internal/ids"
	"github.com/curatarr/curatarr/internal/plex"
	"github.com/curatarr/curatarr/internal/rules"
)

// Source reads the properties of one application.
type Source interface {
	Get(ctx context.Context, property int, item *plex.Metadata, group *rules.RuleGroup) rules.Value
}

// IDResolver maps library items to the ids the managers key on.
type IDResolver interface {
	TmdbID(ctx context.Context, item *plex.Metadata) (int, error)
	TvdbID(ctx context.Context, item *plex.Metadata) (int, error)
}

// Dispatcher routes operands to the Source of their application. It
// implements rules.ValueGetter.
type Dispatcher struct {
	sources map[rules.Application]Source
	logger  zerolog.Logger
}

// NewDispatcher creates a dispatcher over sources. Applications without a
// source resolve to Null.
func NewDispatcher(sources map[rules.Application]Source, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		sources: sources,
		logger:  logger.With().Str("component", "getters").Logger(),
	}
}

// Get resolves loc for item.
func (d *Dispatcher) Get(ctx context.Context, loc rules.Location, item *plex.Metadata, group *rules.RuleGroup) rules.Value {
	src, ok := d.sources[loc.App]
	if !ok {
		d.logger.Debug().Int("application", int(loc.App)).Msg("No getter for application")
		return rules.Null()
	}
	return src.Get(ctx, loc.Property, item, group)
}

// failed logs a lookup error and returns Unknown. Translation failures are
// expected for items the managers do not track and log at Debug.
func failed(logger zerolog.Logger, err error, property int, item *plex.Metadata) rules.Value {
	ev := logger.Warn()
	if errors.Is(err, ids.ErrTranslationFailure) {
		ev = logger.Debug()
	}
	ev.Err(err).Int("property", property).Str("ratingKey", item.RatingKey).Str("title", item.Title).
		Msg("Property lookup failed")
	return rules.Unknown()
}

func unknownProperty(logger zerolog.Logger, property int) rules.Value {
	logger.Warn().Int("property", property).Msg("Unknown property")
	return rules.Null()
}

// seasonNumber returns the season an item belongs to, or -1 for movies and
// shows.
func seasonNumber(item *plex.Metadata) int {
	switch plex.MediaType(item.Type) {
	case plex.TypeSeason:
		return item.Index
	case plex.TypeEpisode:
		return item.ParentIndex
	}
	return -1
}

// nameSet is a set of names rendered sorted.
type nameSet map[string]bool

func (s nameSet) add(name string) {
	if name != "" {
		s[name] = true
	}
}

func (s nameSet) sorted() []string {
	out := make([]string, 0, len(s))
	for n := range s {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
