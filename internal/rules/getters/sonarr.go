package getters

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/curatarr/curatarr/internal/arr"
	"github.com/curatarr/curatarr/internal/plex"
	"github.com/curatarr/curatarr/internal/rules"
)

// SonarrSource is the subset of the Sonarr client read by rules.
type SonarrSource interface {
	IsConfigured() bool
	GetSeriesByTvdbID(ctx context.Context, tvdbID int) (*arr.Series, error)
	GetEpisodes(ctx context.Context, seriesID int, season *int) ([]arr.Episode, error)
	GetEpisodeFiles(ctx context.Context, seriesID int) ([]arr.EpisodeFile, error)
	TagLabels(ctx context.Context, ids []int) ([]string, error)
	QualityProfileName(ctx context.Context, id int) (string, error)
}

const bytesPerGB = 1 << 30

// SonarrGetter reads series properties from Sonarr. Season and episode
// items read the values of their own season or episode.
type SonarrGetter struct {
	sonarr SonarrSource
	ids    IDResolver
	logger zerolog.Logger
}

// NewSonarrGetter creates a Sonarr getter.
func NewSonarrGetter(sonarr SonarrSource, resolver IDResolver, logger zerolog.Logger) *SonarrGetter {
	return &SonarrGetter{sonarr: sonarr, ids: resolver, logger: logger.With().Str("getter", "sonarr").Logger()}
}

// seriesScope is the series record plus the season/episode an item
// points at.
type seriesScope struct {
	series  *arr.Series
	season  int // -1 for shows
	episode int // -1 unless the item is an episode
}

// Get implements Source.
func (g *SonarrGetter) Get(ctx context.Context, property int, item *plex.Metadata, _ *rules.RuleGroup) rules.Value {
	if !g.sonarr.IsConfigured() {
		return failed(g.logger, arr.ErrNotConfigured, property, item)
	}
	tvdbID, err := g.ids.TvdbID(ctx, item)
	if err != nil {
		return failed(g.logger, err, property, item)
	}
	series, err := g.sonarr.GetSeriesByTvdbID(ctx, tvdbID)
	if err != nil {
		return failed(g.logger, err, property, item)
	}
	if series == nil {
		return rules.Null()
	}

	scope := seriesScope{series: series, season: seasonNumber(item), episode: -1}
	if plex.MediaType(item.Type) == plex.TypeEpisode {
		scope.episode = item.Index
	}
	v, err := g.get(ctx, property, scope)
	if err != nil {
		return failed(g.logger, err, property, item)
	}
	return v
}

func (g *SonarrGetter) get(ctx context.Context, property int, sc seriesScope) (rules.Value, error) {
	s := sc.series
	season, hasSeason := s.Season(sc.season)
	var stats *arr.SeasonStatistics
	if hasSeason {
		stats = season.Statistics
	}

	switch property {
	case rules.SonarrAddDate:
		return rules.DateOrNull(s.Added), nil
	case rules.SonarrTags:
		labels, err := g.sonarr.TagLabels(ctx, s.Tags)
		if err != nil {
			return rules.Unknown(), err
		}
		return rules.List(labels), nil
	case rules.SonarrProfile:
		name, err := g.sonarr.QualityProfileName(ctx, s.QualityProfileID)
		if err != nil {
			return rules.Unknown(), err
		}
		return rules.Text(name), nil
	case rules.SonarrStatus:
		return rules.Text(s.Status), nil
	case rules.SonarrEnded:
		return rules.Bool(s.Ended), nil
	case rules.SonarrOriginalLanguage:
		if s.OriginalLanguage == nil {
			return rules.Null(), nil
		}
		return rules.Text(s.OriginalLanguage.Name), nil

	case rules.SonarrDiskSizeGB:
		switch {
		case sc.episode >= 0:
			file, err := g.episodeFile(ctx, sc)
			if err != nil || file == nil {
				return rules.Null(), err
			}
			return rules.Number(float64(file.Size) / bytesPerGB), nil
		case sc.season >= 0:
			if stats == nil {
				return rules.Null(), nil
			}
			return rules.Number(float64(stats.SizeOnDisk) / bytesPerGB), nil
		}
		if s.Statistics == nil {
			return rules.Null(), nil
		}
		return rules.Number(float64(s.Statistics.SizeOnDisk) / bytesPerGB), nil

	case rules.SonarrFirstAirDate:
		if sc.season < 0 {
			return rules.DatePtr(s.FirstAired), nil
		}
		episodes, err := g.episodes(ctx, sc)
		if err != nil {
			return rules.Unknown(), err
		}
		var first *time.Time
		for _, ep := range episodes {
			if ep.AirDateUtc != nil && (first == nil || ep.AirDateUtc.Before(*first)) {
				first = ep.AirDateUtc
			}
		}
		return rules.DatePtr(first), nil

	case rules.SonarrSeasons:
		if sc.season >= 0 {
			if stats == nil {
				return rules.Null(), nil
			}
			return rules.Int(stats.TotalEpisodeCount), nil
		}
		if s.Statistics != nil {
			return rules.Int(s.Statistics.SeasonCount), nil
		}
		return rules.Int(len(s.Seasons)), nil

	case rules.SonarrMonitored:
		switch {
		case sc.episode >= 0:
			episodes, err := g.episodes(ctx, sc)
			if err != nil {
				return rules.Unknown(), err
			}
			if len(episodes) == 0 {
				return rules.Null(), nil
			}
			return rules.Bool(episodes[0].Monitored), nil
		case sc.season >= 0:
			if !hasSeason {
				return rules.Null(), nil
			}
			return rules.Bool(season.Monitored), nil
		}
		return rules.Bool(s.Monitored), nil

	case rules.SonarrUnairedEpisodes:
		if sc.season >= 0 {
			return rules.Bool(stats != nil && stats.NextAiring != nil), nil
		}
		for _, se := range s.Seasons {
			if se.Statistics != nil && se.Statistics.NextAiring != nil {
				return rules.Bool(true), nil
			}
		}
		return rules.Bool(s.NextAiring != nil), nil

	case rules.SonarrPartOfLatestSeason:
		if sc.season < 0 {
			return rules.Null(), nil
		}
		return rules.Bool(sc.season == latestAiredSeason(s)), nil

	case rules.SonarrEpisodeFileCount:
		if sc.season >= 0 {
			if stats == nil {
				return rules.Null(), nil
			}
			return rules.Int(stats.EpisodeFileCount), nil
		}
		if s.Statistics == nil {
			return rules.Null(), nil
		}
		return rules.Int(s.Statistics.EpisodeFileCount), nil

	case rules.SonarrNextAiring:
		if sc.season >= 0 {
			if stats == nil {
				return rules.Null(), nil
			}
			return rules.DatePtr(stats.NextAiring), nil
		}
		return rules.DatePtr(s.NextAiring), nil
	}
	return unknownProperty(g.logger, property), nil
}

// episodes returns the episodes of the scoped season, narrowed to the
// scoped episode when there is one.
func (g *SonarrGetter) episodes(ctx context.Context, sc seriesScope) ([]arr.Episode, error) {
	season := sc.season
	all, err := g.sonarr.GetEpisodes(ctx, sc.series.ID, &season)
	if err != nil {
		return nil, err
	}
	if sc.episode < 0 {
		return all, nil
	}
	for _, ep := range all {
		if ep.EpisodeNumber == sc.episode {
			return []arr.Episode{ep}, nil
		}
	}
	return nil, nil
}

func (g *SonarrGetter) episodeFile(ctx context.Context, sc seriesScope) (*arr.EpisodeFile, error) {
	episodes, err := g.episodes(ctx, sc)
	if err != nil || len(episodes) == 0 || !episodes[0].HasFile {
		return nil, err
	}
	files, err := g.sonarr.GetEpisodeFiles(ctx, sc.series.ID)
	if err != nil {
		return nil, err
	}
	for i := range files {
		if files[i].ID == episodes[0].EpisodeFileID {
			return &files[i], nil
		}
	}
	return nil, nil
}

// latestAiredSeason is the highest season that has aired or is airing.
func latestAiredSeason(s *arr.Series) int {
	latest := -1
	for _, se := range s.Seasons {
		if se.Statistics == nil || (se.Statistics.PreviousAiring == nil && se.Statistics.NextAiring == nil) {
			continue
		}
		latest = max(latest, se.SeasonNumber)
	}
	if latest < 0 {
		return s.LatestSeason()
	}
	return latest
}
