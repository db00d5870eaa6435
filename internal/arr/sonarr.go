package arr

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/curatarr/curatarr/internal/cache"
	"github.com/curatarr/curatarr/internal/config"
)

// SeasonSelector picks which seasons UnmonitorSeasons touches.
type SeasonSelector struct {
	all      bool
	existing bool
	number   int
}

var (
	// AllSeasons selects every season.
	AllSeasons = SeasonSelector{all: true}
	// ExistingSeasons selects the seasons that have at least one episode file.
	ExistingSeasons = SeasonSelector{existing: true}
)

// SingleSeason selects one season by number.
func SingleSeason(n int) SeasonSelector {
	return SeasonSelector{number: n}
}

func (s SeasonSelector) matches(season Season) bool {
	switch {
	case s.all:
		return true
	case s.existing:
		return season.Statistics != nil && season.Statistics.EpisodeFileCount > 0
	default:
		return season.SeasonNumber == s.number
	}
}

func (s SeasonSelector) String() string {
	switch {
	case s.all:
		return "all"
	case s.existing:
		return "existing"
	default:
		return strconv.Itoa(s.number)
	}
}

// SonarrClient talks to a Sonarr instance.
type SonarrClient struct {
	client
}

// NewSonarrClient creates a Sonarr client. The cache may be nil.
func NewSonarrClient(cfg config.ArrConfig, c *cache.Cache, logger zerolog.Logger) *SonarrClient {
	return &SonarrClient{client: newClient("sonarr", cfg, c, logger)}
}

// IsConfigured returns true if the URL and API key are set.
func (s *SonarrClient) IsConfigured() bool {
	return s.configured()
}

// GetSeriesByTvdbID returns the series with the given TVDB id, or nil if
// Sonarr does not know it.
func (s *SonarrClient) GetSeriesByTvdbID(ctx context.Context, tvdbID int) (*Series, error) {
	key := "sonarr:series:tvdb:" + strconv.Itoa(tvdbID)
	return cache.Fetch(ctx, s.cache, key, func(ctx context.Context) (*Series, error) {
		var series []Series
		query := url.Values{"tvdbId": {strconv.Itoa(tvdbID)}}
		if err := s.do(ctx, http.MethodGet, "/series", query, nil, &series); err != nil {
			return nil, err
		}
		if len(series) == 0 {
			return nil, nil
		}
		return &series[0], nil
	})
}

// GetSeries returns a series by Sonarr id.
func (s *SonarrClient) GetSeries(ctx context.Context, id int) (*Series, error) {
	var series Series
	if err := s.do(ctx, http.MethodGet, "/series/"+strconv.Itoa(id), nil, nil, &series); err != nil {
		return nil, err
	}
	return &series, nil
}

// UpdateSeries saves a series record.
func (s *SonarrClient) UpdateSeries(ctx context.Context, series *Series) error {
	defer s.invalidate()
	return s.do(ctx, http.MethodPut, "/series/"+strconv.Itoa(series.ID), nil, series, nil)
}

// DeleteSeries removes a series, optionally with its files and an import
// list exclusion.
func (s *SonarrClient) DeleteSeries(ctx context.Context, id int, deleteFiles, addExclusion bool) error {
	defer s.invalidate()
	query := url.Values{}
	query.Set("deleteFiles", strconv.FormatBool(deleteFiles))
	query.Set("addImportListExclusion", strconv.FormatBool(addExclusion))
	if err := s.do(ctx, http.MethodDelete, "/series/"+strconv.Itoa(id), query, nil, nil); err != nil {
		return fmt.Errorf("delete series %d: %w", id, err)
	}
	s.logger.Info().Int("seriesId", id).Bool("deleteFiles", deleteFiles).Msg("Deleted series")
	return nil
}

// GetEpisodes lists the episodes of a series, optionally limited to a season.
func (s *SonarrClient) GetEpisodes(ctx context.Context, seriesID int, season *int) ([]Episode, error) {
	query := url.Values{"seriesId": {strconv.Itoa(seriesID)}}
	if season != nil {
		query.Set("seasonNumber", strconv.Itoa(*season))
	}
	var episodes []Episode
	if err := s.do(ctx, http.MethodGet, "/episode", query, nil, &episodes); err != nil {
		return nil, err
	}
	return episodes, nil
}

// GetEpisodeFiles lists the episode files of a series.
func (s *SonarrClient) GetEpisodeFiles(ctx context.Context, seriesID int) ([]EpisodeFile, error) {
	var files []EpisodeFile
	query := url.Values{"seriesId": {strconv.Itoa(seriesID)}}
	if err := s.do(ctx, http.MethodGet, "/episodefile", query, nil, &files); err != nil {
		return nil, err
	}
	return files, nil
}

// SetEpisodesMonitored changes the monitored flag of several episodes.
func (s *SonarrClient) SetEpisodesMonitored(ctx context.Context, episodeIDs []int, monitored bool) error {
	if len(episodeIDs) == 0 {
		return nil
	}
	defer s.invalidate()
	body := struct {
		EpisodeIDs []int `json:"episodeIds"`
		Monitored  bool  `json:"monitored"`
	}{episodeIDs, monitored}
	return s.do(ctx, http.MethodPut, "/episode/monitor", nil, body, nil)
}

// DeleteEpisodeFile removes a single episode file.
func (s *SonarrClient) DeleteEpisodeFile(ctx context.Context, fileID int) error {
	defer s.invalidate()
	return s.do(ctx, http.MethodDelete, "/episodefile/"+strconv.Itoa(fileID), nil, nil, nil)
}

// UnmonitorSeasons unmonitors the selected seasons and all of their
// episodes, optionally deleting the episode files. It returns the updated
// series.
func (s *SonarrClient) UnmonitorSeasons(ctx context.Context, seriesID int, sel SeasonSelector, deleteFiles bool) (*Series, error) {
	series, err := s.GetSeries(ctx, seriesID)
	if err != nil {
		return nil, fmt.Errorf("unmonitor seasons of %d: %w", seriesID, err)
	}

	selected := make(map[int]bool)
	for i := range series.Seasons {
		if sel.matches(series.Seasons[i]) {
			series.Seasons[i].Monitored = false
			selected[series.Seasons[i].SeasonNumber] = true
		}
	}
	if err := s.UpdateSeries(ctx, series); err != nil {
		return nil, fmt.Errorf("unmonitor seasons of %d: %w", seriesID, err)
	}

	episodes, err := s.GetEpisodes(ctx, seriesID, nil)
	if err != nil {
		return nil, fmt.Errorf("list episodes of %d: %w", seriesID, err)
	}
	var ids []int
	var files []int
	for _, ep := range episodes {
		if !selected[ep.SeasonNumber] {
			continue
		}
		ids = append(ids, ep.ID)
		if ep.HasFile && ep.EpisodeFileID > 0 {
			files = append(files, ep.EpisodeFileID)
		}
	}
	if err := s.SetEpisodesMonitored(ctx, ids, false); err != nil {
		return nil, fmt.Errorf("unmonitor episodes of %d: %w", seriesID, err)
	}
	if deleteFiles {
		if err := s.deleteFiles(ctx, files); err != nil {
			return nil, err
		}
	}

	s.logger.Info().
		Int("seriesId", seriesID).
		Str("seasons", sel.String()).
		Bool("deleteFiles", deleteFiles).
		Msg("Unmonitored seasons")
	return series, nil
}

// UnmonitorEpisodes unmonitors episodes of one season, optionally deleting
// their files. A nil episode list selects every episode of the season that
// has a file. The season record itself is left untouched.
func (s *SonarrClient) UnmonitorEpisodes(ctx context.Context, seriesID, season int, episodeNumbers []int, deleteFiles bool) error {
	episodes, err := s.GetEpisodes(ctx, seriesID, &season)
	if err != nil {
		return fmt.Errorf("list episodes of %d season %d: %w", seriesID, season, err)
	}

	wanted := make(map[int]bool, len(episodeNumbers))
	for _, n := range episodeNumbers {
		wanted[n] = true
	}

	var ids []int
	var files []int
	for _, ep := range episodes {
		if ep.SeasonNumber != season {
			continue
		}
		if episodeNumbers == nil && !ep.HasFile {
			continue
		}
		if episodeNumbers != nil && !wanted[ep.EpisodeNumber] {
			continue
		}
		ids = append(ids, ep.ID)
		if ep.HasFile && ep.EpisodeFileID > 0 {
			files = append(files, ep.EpisodeFileID)
		}
	}

	if err := s.SetEpisodesMonitored(ctx, ids, false); err != nil {
		return fmt.Errorf("unmonitor episodes of %d: %w", seriesID, err)
	}
	if deleteFiles {
		if err := s.deleteFiles(ctx, files); err != nil {
			return err
		}
	}

	s.logger.Info().
		Int("seriesId", seriesID).
		Int("season", season).
		Ints("episodes", episodeNumbers).
		Bool("deleteFiles", deleteFiles).
		Msg("Unmonitored episodes")
	return nil
}

func (s *SonarrClient) deleteFiles(ctx context.Context, fileIDs []int) error {
	seen := make(map[int]bool, len(fileIDs))
	for _, id := range fileIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		if err := s.DeleteEpisodeFile(ctx, id); err != nil {
			return fmt.Errorf("delete episode file %d: %w", id, err)
		}
	}
	return nil
}
