package getters

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/curatarr/curatarr/internal/arr"
	"github.com/curatarr/curatarr/internal/plex"
	"github.com/curatarr/curatarr/internal/rules"
)

// RadarrSource is the subset of the Radarr client read by rules.
type RadarrSource interface {
	IsConfigured() bool
	GetMovieByTmdbID(ctx context.Context, tmdbID int) (*arr.Movie, error)
	TagLabels(ctx context.Context, ids []int) ([]string, error)
	QualityProfileName(ctx context.Context, id int) (string, error)
}

const bytesPerMB = 1 << 20

// RadarrGetter reads movie properties from Radarr.
type RadarrGetter struct {
	radarr RadarrSource
	ids    IDResolver
	logger zerolog.Logger
}

// NewRadarrGetter creates a Radarr getter.
func NewRadarrGetter(radarr RadarrSource, resolver IDResolver, logger zerolog.Logger) *RadarrGetter {
	return &RadarrGetter{radarr: radarr, ids: resolver, logger: logger.With().Str("getter", "radarr").Logger()}
}

// Get implements Source.
func (g *RadarrGetter) Get(ctx context.Context, property int, item *plex.Metadata, _ *rules.RuleGroup) rules.Value {
	if !g.radarr.IsConfigured() {
		return failed(g.logger, arr.ErrNotConfigured, property, item)
	}
	tmdbID, err := g.ids.TmdbID(ctx, item)
	if err != nil {
		return failed(g.logger, err, property, item)
	}
	movie, err := g.radarr.GetMovieByTmdbID(ctx, tmdbID)
	if err != nil {
		return failed(g.logger, err, property, item)
	}
	if movie == nil {
		return rules.Null()
	}
	v, err := g.get(ctx, property, movie)
	if err != nil {
		return failed(g.logger, err, property, item)
	}
	return v
}

func (g *RadarrGetter) get(ctx context.Context, property int, m *arr.Movie) (rules.Value, error) {
	switch property {
	case rules.RadarrAddDate:
		return rules.DateOrNull(m.Added), nil
	case rules.RadarrFileDate:
		if m.MovieFile == nil {
			return rules.Null(), nil
		}
		return rules.DateOrNull(m.MovieFile.DateAdded), nil
	case rules.RadarrTags:
		labels, err := g.radarr.TagLabels(ctx, m.Tags)
		if err != nil {
			return rules.Unknown(), err
		}
		return rules.List(labels), nil
	case rules.RadarrProfile:
		name, err := g.radarr.QualityProfileName(ctx, m.QualityProfileID)
		if err != nil {
			return rules.Unknown(), err
		}
		return rules.Text(name), nil
	case rules.RadarrReleaseDate:
		// The earliest home release, falling back to the cinema date.
		switch {
		case m.PhysicalRelease != nil && m.DigitalRelease != nil:
			if m.DigitalRelease.Before(*m.PhysicalRelease) {
				return rules.DatePtr(m.DigitalRelease), nil
			}
			return rules.DatePtr(m.PhysicalRelease), nil
		case m.PhysicalRelease != nil:
			return rules.DatePtr(m.PhysicalRelease), nil
		case m.DigitalRelease != nil:
			return rules.DatePtr(m.DigitalRelease), nil
		}
		return rules.DatePtr(m.InCinemas), nil
	case rules.RadarrMonitored:
		return rules.Bool(m.Monitored), nil
	case rules.RadarrInCinemas:
		return rules.DatePtr(m.InCinemas), nil
	case rules.RadarrDigitalRelease:
		return rules.DatePtr(m.DigitalRelease), nil
	case rules.RadarrPhysicalRelease:
		return rules.DatePtr(m.PhysicalRelease), nil
	case rules.RadarrFileSizeMB:
		if m.MovieFile == nil {
			return rules.Null(), nil
		}
		return rules.Int(int(m.MovieFile.Size / bytesPerMB)), nil
	case rules.RadarrAudioChannels:
		if m.MovieFile == nil || m.MovieFile.MediaInfo == nil {
			return rules.Null(), nil
		}
		return rules.Number(m.MovieFile.MediaInfo.AudioChannels), nil
	case rules.RadarrFileQuality:
		if m.MovieFile == nil {
			return rules.Null(), nil
		}
		return rules.Text(m.MovieFile.Quality.Quality.Name), nil
	case rules.RadarrFilePath:
		if m.MovieFile == nil {
			return rules.Null(), nil
		}
		return rules.Text(m.MovieFile.Path), nil
	case rules.RadarrRuntime:
		return rules.Int(m.Runtime), nil
	case rules.RadarrOriginalLanguage:
		if m.OriginalLanguage == nil {
			return rules.Null(), nil
		}
		return rules.Text(m.OriginalLanguage.Name), nil
	case rules.RadarrRatingIMDb:
		if m.Ratings.IMDb == nil {
			return rules.Null(), nil
		}
		return rules.Number(m.Ratings.IMDb.Value), nil
	}
	return unknownProperty(g.logger, property), nil
}
