package getters

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/curatarr/curatarr/internal/overseerr"
	"github.com/curatarr/curatarr/internal/plex"
	"github.com/curatarr/curatarr/internal/rules"
)

// SeerrSource is the subset of an Overseerr or Jellyseerr client read by
// rules.
type SeerrSource interface {
	Name() string
	IsConfigured() bool
	GetMovie(ctx context.Context, tmdbID int) (*overseerr.Movie, error)
	GetShow(ctx context.Context, tmdbID int) (*overseerr.Show, error)
}

// SeerrGetter reads request properties. One instance serves Overseerr and
// another Jellyseerr.
type SeerrGetter struct {
	client SeerrSource
	ids    IDResolver
	logger zerolog.Logger
}

// NewSeerrGetter creates a request-manager getter.
func NewSeerrGetter(client SeerrSource, resolver IDResolver, logger zerolog.Logger) *SeerrGetter {
	return &SeerrGetter{client: client, ids: resolver, logger: logger.With().Str("getter", client.Name()).Logger()}
}

// requestScope is what the request manager knows about an item.
type requestScope struct {
	releaseDate string
	media       *overseerr.MediaInfo
	requests    []overseerr.Request
}

// Get implements Source.
func (g *SeerrGetter) Get(ctx context.Context, property int, item *plex.Metadata, _ *rules.RuleGroup) rules.Value {
	if !g.client.IsConfigured() {
		return failed(g.logger, overseerr.ErrNotConfigured, property, item)
	}
	tmdbID, err := g.ids.TmdbID(ctx, item)
	if err != nil {
		return failed(g.logger, err, property, item)
	}
	sc, err := g.scope(ctx, tmdbID, item)
	if errors.Is(err, overseerr.ErrNotFound) {
		sc, err = &requestScope{}, nil
	}
	if err != nil {
		return failed(g.logger, err, property, item)
	}
	return g.get(property, sc)
}

func (g *SeerrGetter) scope(ctx context.Context, tmdbID int, item *plex.Metadata) (*requestScope, error) {
	if plex.MediaType(item.Type) == plex.TypeMovie {
		m, err := g.client.GetMovie(ctx, tmdbID)
		if err != nil {
			return nil, err
		}
		sc := &requestScope{releaseDate: m.ReleaseDate, media: m.MediaInfo}
		if m.MediaInfo != nil {
			sc.requests = m.MediaInfo.Requests
		}
		return sc, nil
	}

	show, err := g.client.GetShow(ctx, tmdbID)
	if err != nil {
		return nil, err
	}
	sc := &requestScope{releaseDate: show.FirstAirDate, media: show.MediaInfo}
	season := seasonNumber(item)
	if season >= 0 {
		sc.releaseDate = ""
		for _, s := range show.Seasons {
			if s.SeasonNumber == season {
				sc.releaseDate = s.AirDate
			}
		}
	}
	if show.MediaInfo == nil {
		return sc, nil
	}
	for _, r := range show.MediaInfo.Requests {
		// Seasons and episodes only count requests that include them.
		if season >= 0 && !r.HasSeason(season) {
			continue
		}
		sc.requests = append(sc.requests, r)
	}
	return sc, nil
}

func (g *SeerrGetter) get(property int, sc *requestScope) rules.Value {
	switch property {
	case rules.SeerrIsRequested:
		return rules.Bool(len(sc.requests) > 0)
	case rules.SeerrAmountRequested:
		return rules.Int(len(sc.requests))
	case rules.SeerrReleaseDate:
		t, err := time.Parse("2006-01-02", sc.releaseDate)
		if err != nil {
			return rules.Null()
		}
		return rules.Date(t)
	case rules.SeerrMediaAddedAt:
		if sc.media == nil {
			return rules.Null()
		}
		return rules.DatePtr(sc.media.MediaAddedAt)
	case rules.SeerrRequestedBy:
		users := nameSet{}
		for _, r := range sc.requests {
			if r.RequestedBy != nil {
				users.add(r.RequestedBy.Name())
			}
		}
		return rules.List(users.sorted())
	case rules.SeerrRequestDate:
		var first time.Time
		for _, r := range sc.requests {
			if first.IsZero() || r.CreatedAt.Before(first) {
				first = r.CreatedAt
			}
		}
		return rules.DateOrNull(first)
	case rules.SeerrApprovalDate:
		var first time.Time
		for _, r := range sc.requests {
			if r.Status != overseerr.RequestApproved {
				continue
			}
			if first.IsZero() || r.UpdatedAt.Before(first) {
				first = r.UpdatedAt
			}
		}
		return rules.DateOrNull(first)
	}
	return unknownProperty(g.logger, property)
}
