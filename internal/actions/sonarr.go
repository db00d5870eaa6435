package actions

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/curatarr/curatarr/internal/arr"
	"github.com/curatarr/curatarr/internal/collections"
	"github.com/curatarr/curatarr/internal/plex"
)

// SeriesManager is the Sonarr surface used by SonarrHandler.
type SeriesManager interface {
	IsConfigured() bool
	GetSeriesByTvdbID(ctx context.Context, tvdbID int) (*arr.Series, error)
	UpdateSeries(ctx context.Context, series *arr.Series) error
	DeleteSeries(ctx context.Context, id int, deleteFiles, addExclusion bool) error
	UnmonitorSeasons(ctx context.Context, seriesID int, sel arr.SeasonSelector, deleteFiles bool) (*arr.Series, error)
	UnmonitorEpisodes(ctx context.Context, seriesID, season int, episodeNumbers []int, deleteFiles bool) error
}

// seriesTarget is the series, season and episode a member points at.
type seriesTarget struct {
	series         *arr.Series
	season         int
	episode        int
	listExclusions bool
}

type seriesStep func(ctx context.Context, sonarr SeriesManager, t seriesTarget) error

type seriesKey struct {
	granularity plex.MediaType
	action      collections.Action
}

// seriesActions maps every granularity and action pair to its calls. A nil
// step marks a pair with no handler.
var seriesActions = map[seriesKey]seriesStep{
	{plex.TypeShow, collections.ActionDelete}: func(ctx context.Context, s SeriesManager, t seriesTarget) error {
		return s.DeleteSeries(ctx, t.series.ID, true, t.listExclusions)
	},
	{plex.TypeShow, collections.ActionUnmonitor}: func(ctx context.Context, s SeriesManager, t seriesTarget) error {
		return unmonitorShow(ctx, s, t, false)
	},
	{plex.TypeShow, collections.ActionUnmonitorDeleteAll}: func(ctx context.Context, s SeriesManager, t seriesTarget) error {
		return unmonitorShow(ctx, s, t, true)
	},
	{plex.TypeShow, collections.ActionUnmonitorDeleteExisting}: func(ctx context.Context, s SeriesManager, t seriesTarget) error {
		_, err := s.UnmonitorSeasons(ctx, t.series.ID, arr.ExistingSeasons, true)
		return err
	},

	{plex.TypeSeason, collections.ActionDelete}: func(ctx context.Context, s SeriesManager, t seriesTarget) error {
		_, err := s.UnmonitorSeasons(ctx, t.series.ID, arr.SingleSeason(t.season), true)
		return err
	},
	{plex.TypeSeason, collections.ActionUnmonitor}: func(ctx context.Context, s SeriesManager, t seriesTarget) error {
		_, err := s.UnmonitorSeasons(ctx, t.series.ID, arr.SingleSeason(t.season), false)
		return err
	},
	{plex.TypeSeason, collections.ActionUnmonitorDeleteExisting}: func(ctx context.Context, s SeriesManager, t seriesTarget) error {
		return s.UnmonitorEpisodes(ctx, t.series.ID, t.season, nil, true)
	},
	{plex.TypeSeason, collections.ActionUnmonitorDeleteAll}: nil,

	{plex.TypeEpisode, collections.ActionDelete}:                  unmonitorEpisode(true),
	{plex.TypeEpisode, collections.ActionUnmonitorDeleteExisting}: unmonitorEpisode(true),
	{plex.TypeEpisode, collections.ActionUnmonitor}:               unmonitorEpisode(false),
	{plex.TypeEpisode, collections.ActionUnmonitorDeleteAll}:      nil,
}

// unmonitorShow unmonitors every season, then the series record.
func unmonitorShow(ctx context.Context, s SeriesManager, t seriesTarget, deleteFiles bool) error {
	series, err := s.UnmonitorSeasons(ctx, t.series.ID, arr.AllSeasons, deleteFiles)
	if err != nil {
		return err
	}
	series.Monitored = false
	return s.UpdateSeries(ctx, series)
}

func unmonitorEpisode(deleteFiles bool) seriesStep {
	return func(ctx context.Context, s SeriesManager, t seriesTarget) error {
		return s.UnmonitorEpisodes(ctx, t.series.ID, t.season, []int{t.episode}, deleteFiles)
	}
}

// SonarrHandler applies collection actions to shows, seasons and episodes.
type SonarrHandler struct {
	sonarr  SeriesManager
	library Library
	ids     IDResolver
	logger  zerolog.Logger
}

// NewSonarrHandler creates a SonarrHandler.
func NewSonarrHandler(sonarr SeriesManager, library Library, ids IDResolver, logger zerolog.Logger) *SonarrHandler {
	return &SonarrHandler{
		sonarr:  sonarr,
		library: library,
		ids:     ids,
		logger:  logger.With().Str("handler", "sonarr").Logger(),
	}
}

// Handle applies col's action to the member at the collection's
// granularity.
func (h *SonarrHandler) Handle(ctx context.Context, col *collections.Collection, member collections.Member) (Outcome, error) {
	step, ok := seriesActions[seriesKey{col.Type, col.ArrAction}]
	if !ok {
		return OutcomeUnsupported, fmt.Errorf("%w: %s on %s", ErrUnsupported, col.ArrAction, col.Type)
	}
	if step == nil {
		return OutcomeUnsupported, nil
	}
	// Without the manager there is no Plex fallback; the member is kept.
	if !h.sonarr.IsConfigured() {
		return OutcomeFailed, arr.ErrNotConfigured
	}

	target, err := h.resolve(ctx, col, member)
	if err != nil {
		return OutcomeFailed, err
	}
	if target.series == nil {
		if col.ArrAction == collections.ActionUnmonitor {
			return OutcomeNotManaged, nil
		}
		h.logger.Info().Str("plexId", member.PlexID).Msg("Series not in Sonarr, deleting from Plex")
		return deleteFromLibrary(ctx, h.library, member.PlexID)
	}

	if err := step(ctx, h.sonarr, target); err != nil {
		return OutcomeFailed, fmt.Errorf("sonarr %s %s of series %d: %w", col.ArrAction, col.Type, target.series.ID, err)
	}
	return OutcomeHandled, nil
}

// resolve walks the member up to its show, then looks the show up in
// Sonarr. A nil series means Sonarr does not know it.
func (h *SonarrHandler) resolve(ctx context.Context, col *collections.Collection, member collections.Member) (seriesTarget, error) {
	t := seriesTarget{listExclusions: col.ListExclusions}

	tvdbID := 0
	if col.Type == plex.TypeShow {
		tvdbID = member.TvdbID
	}
	if tvdbID == 0 || col.Type != plex.TypeShow {
		item, err := h.library.GetMetadata(ctx, member.PlexID)
		if err != nil {
			return t, fmt.Errorf("load %s: %w", member.PlexID, err)
		}
		switch col.Type {
		case plex.TypeSeason:
			t.season = item.Index
		case plex.TypeEpisode:
			t.season = item.ParentIndex
			t.episode = item.Index
		}
		if tvdbID == 0 {
			if tvdbID, err = h.ids.TvdbID(ctx, item); err != nil {
				return t, err
			}
		}
	}

	series, err := h.sonarr.GetSeriesByTvdbID(ctx, tvdbID)
	if err != nil {
		return t, fmt.Errorf("look up tvdb %d: %w", tvdbID, err)
	}
	t.series = series
	return t, nil
}
