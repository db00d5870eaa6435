package actions

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/curatarr/curatarr/internal/arr"
	"github.com/curatarr/curatarr/internal/collections"
	"github.com/curatarr/curatarr/internal/ids"
	"github.com/curatarr/curatarr/internal/metrics"
	"github.com/curatarr/curatarr/internal/plex"
	testlog "github.com/curatarr/curatarr/internal/testutil"
)

type fakeLibrary struct {
	items   map[string]*plex.Metadata
	deleted []string
	loads   int
}

func (f *fakeLibrary) GetMetadata(_ context.Context, key string) (*plex.Metadata, error) {
	f.loads++
	if md, ok := f.items[key]; ok {
		return md, nil
	}
	return nil, plex.ErrNotFound
}

func (f *fakeLibrary) DeleteItem(_ context.Context, key string) error {
	f.deleted = append(f.deleted, key)
	return nil
}

type fakeResolver struct {
	tmdb map[string]int
	tvdb map[string]int
}

func (f *fakeResolver) TmdbID(_ context.Context, item *plex.Metadata) (int, error) {
	if id, ok := f.tmdb[item.RatingKey]; ok {
		return id, nil
	}
	return 0, fmt.Errorf("%w: tmdb for %s", ids.ErrTranslationFailure, item.RatingKey)
}

func (f *fakeResolver) TvdbID(_ context.Context, item *plex.Metadata) (int, error) {
	if id, ok := f.tvdb[item.RatingKey]; ok {
		return id, nil
	}
	return 0, fmt.Errorf("%w: tvdb for %s", ids.ErrTranslationFailure, item.RatingKey)
}

type fakeRadarr struct {
	movies       map[int]*arr.Movie
	err          error
	calls        []string
	unconfigured bool
}

func (f *fakeRadarr) IsConfigured() bool { return !f.unconfigured }

func (f *fakeRadarr) GetMovieByTmdbID(_ context.Context, tmdbID int) (*arr.Movie, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.movies[tmdbID], nil
}

func (f *fakeRadarr) DeleteMovie(_ context.Context, id int, deleteFiles, addExclusion bool) error {
	f.calls = append(f.calls, fmt.Sprintf("DeleteMovie %d files=%t excl=%t", id, deleteFiles, addExclusion))
	return nil
}

func (f *fakeRadarr) UnmonitorMovie(_ context.Context, id int, deleteFiles bool) error {
	f.calls = append(f.calls, fmt.Sprintf("UnmonitorMovie %d files=%t", id, deleteFiles))
	return nil
}

type fakeSonarr struct {
	series       map[int]*arr.Series
	calls        []string
	unconfigured bool
}

func (f *fakeSonarr) IsConfigured() bool { return !f.unconfigured }

func (f *fakeSonarr) GetSeriesByTvdbID(_ context.Context, tvdbID int) (*arr.Series, error) {
	return f.series[tvdbID], nil
}

func (f *fakeSonarr) UpdateSeries(_ context.Context, s *arr.Series) error {
	f.calls = append(f.calls, fmt.Sprintf("UpdateSeries %d monitored=%t", s.ID, s.Monitored))
	return nil
}

func (f *fakeSonarr) DeleteSeries(_ context.Context, id int, deleteFiles, addExclusion bool) error {
	f.calls = append(f.calls, fmt.Sprintf("DeleteSeries %d files=%t excl=%t", id, deleteFiles, addExclusion))
	return nil
}

func (f *fakeSonarr) UnmonitorSeasons(_ context.Context, id int, sel arr.SeasonSelector, deleteFiles bool) (*arr.Series, error) {
	f.calls = append(f.calls, fmt.Sprintf("UnmonitorSeasons %d %s files=%t", id, sel, deleteFiles))
	return &arr.Series{ID: id, Monitored: true}, nil
}

func (f *fakeSonarr) UnmonitorEpisodes(_ context.Context, id, season int, episodes []int, deleteFiles bool) error {
	f.calls = append(f.calls, fmt.Sprintf("UnmonitorEpisodes %d s%d %v files=%t", id, season, episodes, deleteFiles))
	return nil
}

func newLibrary() *fakeLibrary {
	return &fakeLibrary{items: map[string]*plex.Metadata{
		"m1":   {RatingKey: "m1", Type: "movie"},
		"show": {RatingKey: "show", Type: "show"},
		"s2":   {RatingKey: "s2", Type: "season", ParentRatingKey: "show", Index: 2},
		"e5":   {RatingKey: "e5", Type: "episode", GrandparentRatingKey: "show", ParentIndex: 2, Index: 5},
	}}
}

func newResolver() *fakeResolver {
	return &fakeResolver{
		tmdb: map[string]int{"m1": 603},
		tvdb: map[string]int{"show": 81189, "s2": 81189, "e5": 81189},
	}
}

func TestSonarrHandler_DecisionTable(t *testing.T) {
	tests := []struct {
		typ     plex.MediaType
		action  collections.Action
		plexID  string
		outcome Outcome
		calls   []string
	}{
		{plex.TypeShow, collections.ActionDelete, "show", OutcomeHandled,
			[]string{"DeleteSeries 7 files=true excl=true"}},
		{plex.TypeShow, collections.ActionUnmonitor, "show", OutcomeHandled,
			[]string{"UnmonitorSeasons 7 all files=false", "UpdateSeries 7 monitored=false"}},
		{plex.TypeShow, collections.ActionUnmonitorDeleteAll, "show", OutcomeHandled,
			[]string{"UnmonitorSeasons 7 all files=true", "UpdateSeries 7 monitored=false"}},
		{plex.TypeShow, collections.ActionUnmonitorDeleteExisting, "show", OutcomeHandled,
			[]string{"UnmonitorSeasons 7 existing files=true"}},

		{plex.TypeSeason, collections.ActionDelete, "s2", OutcomeHandled,
			[]string{"UnmonitorSeasons 7 2 files=true"}},
		{plex.TypeSeason, collections.ActionUnmonitor, "s2", OutcomeHandled,
			[]string{"UnmonitorSeasons 7 2 files=false"}},
		{plex.TypeSeason, collections.ActionUnmonitorDeleteExisting, "s2", OutcomeHandled,
			[]string{"UnmonitorEpisodes 7 s2 [] files=true"}},
		{plex.TypeSeason, collections.ActionUnmonitorDeleteAll, "s2", OutcomeUnsupported, nil},

		{plex.TypeEpisode, collections.ActionDelete, "e5", OutcomeHandled,
			[]string{"UnmonitorEpisodes 7 s2 [5] files=true"}},
		{plex.TypeEpisode, collections.ActionUnmonitorDeleteExisting, "e5", OutcomeHandled,
			[]string{"UnmonitorEpisodes 7 s2 [5] files=true"}},
		{plex.TypeEpisode, collections.ActionUnmonitor, "e5", OutcomeHandled,
			[]string{"UnmonitorEpisodes 7 s2 [5] files=false"}},
		{plex.TypeEpisode, collections.ActionUnmonitorDeleteAll, "e5", OutcomeUnsupported, nil},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s/%s", tt.typ, tt.action), func(t *testing.T) {
			sonarr := &fakeSonarr{series: map[int]*arr.Series{81189: {ID: 7, Monitored: true}}}
			lib := newLibrary()
			h := NewSonarrHandler(sonarr, lib, newResolver(), testlog.NewTestLogger(t))

			col := &collections.Collection{Type: tt.typ, ArrAction: tt.action, ListExclusions: true}
			outcome, err := h.Handle(context.Background(), col, collections.Member{PlexID: tt.plexID})
			require.NoError(t, err)
			assert.Equal(t, tt.outcome, outcome)
			assert.Equal(t, tt.calls, sonarr.calls)
			assert.Empty(t, lib.deleted)
		})
	}
}

func TestSonarrHandler_TableCoversEveryPair(t *testing.T) {
	actions := []collections.Action{
		collections.ActionDelete,
		collections.ActionUnmonitor,
		collections.ActionUnmonitorDeleteExisting,
		collections.ActionUnmonitorDeleteAll,
	}
	for _, typ := range []plex.MediaType{plex.TypeShow, plex.TypeSeason, plex.TypeEpisode} {
		for _, a := range actions {
			_, ok := seriesActions[seriesKey{typ, a}]
			assert.True(t, ok, "%s/%s has no entry", typ, a)
		}
	}
	assert.Len(t, seriesActions, 12)
}

func TestSonarrHandler_AbsentSeriesFallsBackToPlex(t *testing.T) {
	sonarr := &fakeSonarr{}
	lib := newLibrary()
	h := NewSonarrHandler(sonarr, lib, newResolver(), testlog.NewTestLogger(t))

	col := &collections.Collection{Type: plex.TypeSeason, ArrAction: collections.ActionDelete}
	outcome, err := h.Handle(context.Background(), col, collections.Member{PlexID: "s2"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeLibraryDeleted, outcome)
	assert.Equal(t, []string{"s2"}, lib.deleted)
	assert.Empty(t, sonarr.calls)
}

func TestSonarrHandler_AbsentSeriesUnmonitorDoesNothing(t *testing.T) {
	lib := newLibrary()
	h := NewSonarrHandler(&fakeSonarr{}, lib, newResolver(), testlog.NewTestLogger(t))

	col := &collections.Collection{Type: plex.TypeShow, ArrAction: collections.ActionUnmonitor}
	outcome, err := h.Handle(context.Background(), col, collections.Member{PlexID: "show"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeNotManaged, outcome)
	assert.Empty(t, lib.deleted)
}

func TestSonarrHandler_TranslationFailureSkips(t *testing.T) {
	sonarr := &fakeSonarr{series: map[int]*arr.Series{81189: {ID: 7}}}
	lib := newLibrary()
	h := NewSonarrHandler(sonarr, lib, &fakeResolver{}, testlog.NewTestLogger(t))

	col := &collections.Collection{Type: plex.TypeEpisode, ArrAction: collections.ActionDelete}
	outcome, err := h.Handle(context.Background(), col, collections.Member{PlexID: "e5"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ids.ErrTranslationFailure)
	assert.Equal(t, OutcomeFailed, outcome)
	assert.Empty(t, sonarr.calls)
	assert.Empty(t, lib.deleted)
}

func TestSonarrHandler_ShowUsesStoredTvdbID(t *testing.T) {
	sonarr := &fakeSonarr{series: map[int]*arr.Series{81189: {ID: 7}}}
	lib := newLibrary()
	h := NewSonarrHandler(sonarr, lib, &fakeResolver{}, testlog.NewTestLogger(t))

	col := &collections.Collection{Type: plex.TypeShow, ArrAction: collections.ActionDelete}
	outcome, err := h.Handle(context.Background(), col, collections.Member{PlexID: "show", TvdbID: 81189})
	require.NoError(t, err)
	assert.Equal(t, OutcomeHandled, outcome)
	assert.Zero(t, lib.loads)
	assert.Equal(t, []string{"DeleteSeries 7 files=true excl=false"}, sonarr.calls)
}

func TestRadarrHandler_Actions(t *testing.T) {
	tests := []struct {
		action collections.Action
		calls  []string
	}{
		{collections.ActionDelete, []string{"DeleteMovie 42 files=true excl=true"}},
		{collections.ActionUnmonitorDeleteExisting, []string{"DeleteMovie 42 files=true excl=true"}},
		{collections.ActionUnmonitor, []string{"UnmonitorMovie 42 files=false"}},
		{collections.ActionUnmonitorDeleteAll, []string{"UnmonitorMovie 42 files=true"}},
	}
	for _, tt := range tests {
		t.Run(string(tt.action), func(t *testing.T) {
			radarr := &fakeRadarr{movies: map[int]*arr.Movie{603: {ID: 42}}}
			h := NewRadarrHandler(radarr, newLibrary(), newResolver(), testlog.NewTestLogger(t))

			col := &collections.Collection{Type: plex.TypeMovie, ArrAction: tt.action, ListExclusions: true}
			outcome, err := h.Handle(context.Background(), col, collections.Member{PlexID: "m1", TmdbID: 603})
			require.NoError(t, err)
			assert.Equal(t, OutcomeHandled, outcome)
			assert.Equal(t, tt.calls, radarr.calls)
		})
	}
}

func TestRadarrHandler_ResolvesMissingTmdbID(t *testing.T) {
	radarr := &fakeRadarr{movies: map[int]*arr.Movie{603: {ID: 42}}}
	lib := newLibrary()
	h := NewRadarrHandler(radarr, lib, newResolver(), testlog.NewTestLogger(t))

	col := &collections.Collection{Type: plex.TypeMovie, ArrAction: collections.ActionDelete}
	_, err := h.Handle(context.Background(), col, collections.Member{PlexID: "m1"})
	require.NoError(t, err)
	assert.Equal(t, 1, lib.loads)
	assert.Equal(t, []string{"DeleteMovie 42 files=true excl=false"}, radarr.calls)
}

func TestRadarrHandler_AbsentMovie(t *testing.T) {
	ctx := context.Background()
	member := collections.Member{PlexID: "m1", TmdbID: 603}

	lib := newLibrary()
	h := NewRadarrHandler(&fakeRadarr{}, lib, newResolver(), testlog.NewTestLogger(t))
	outcome, err := h.Handle(ctx, &collections.Collection{Type: plex.TypeMovie, ArrAction: collections.ActionDelete}, member)
	require.NoError(t, err)
	assert.Equal(t, OutcomeLibraryDeleted, outcome)
	assert.Equal(t, []string{"m1"}, lib.deleted)

	lib = newLibrary()
	h = NewRadarrHandler(&fakeRadarr{}, lib, newResolver(), testlog.NewTestLogger(t))
	outcome, err = h.Handle(ctx, &collections.Collection{Type: plex.TypeMovie, ArrAction: collections.ActionUnmonitor}, member)
	require.NoError(t, err)
	assert.Equal(t, OutcomeNotManaged, outcome)
	assert.Empty(t, lib.deleted)
}

func TestRadarrHandler_LookupFailureTakesNoAction(t *testing.T) {
	lib := newLibrary()
	radarr := &fakeRadarr{err: arr.ErrAPIError}
	h := NewRadarrHandler(radarr, lib, newResolver(), testlog.NewTestLogger(t))

	col := &collections.Collection{Type: plex.TypeMovie, ArrAction: collections.ActionDelete}
	outcome, err := h.Handle(context.Background(), col, collections.Member{PlexID: "m1", TmdbID: 603})
	require.Error(t, err)
	assert.True(t, errors.Is(err, arr.ErrAPIError))
	assert.Equal(t, OutcomeFailed, outcome)
	assert.False(t, outcome.Done())
	assert.Empty(t, lib.deleted)
	assert.Empty(t, radarr.calls)
}

func TestHandlers_UnconfiguredManagerKeepsMember(t *testing.T) {
	ctx := context.Background()

	lib := newLibrary()
	radarr := &fakeRadarr{unconfigured: true}
	rh := NewRadarrHandler(radarr, lib, newResolver(), testlog.NewTestLogger(t))
	outcome, err := rh.Handle(ctx, &collections.Collection{Type: plex.TypeMovie, ArrAction: collections.ActionDelete},
		collections.Member{PlexID: "m1", TmdbID: 603})
	assert.ErrorIs(t, err, arr.ErrNotConfigured)
	assert.Equal(t, OutcomeFailed, outcome)

	sonarr := &fakeSonarr{unconfigured: true}
	sh := NewSonarrHandler(sonarr, lib, newResolver(), testlog.NewTestLogger(t))
	outcome, err = sh.Handle(ctx, &collections.Collection{Type: plex.TypeShow, ArrAction: collections.ActionDelete},
		collections.Member{PlexID: "show", TvdbID: 81189})
	assert.ErrorIs(t, err, arr.ErrNotConfigured)
	assert.Equal(t, OutcomeFailed, outcome)

	// No Plex-only delete: the manager would download the item again.
	assert.Empty(t, lib.deleted)
	assert.Empty(t, radarr.calls)
	assert.Empty(t, sonarr.calls)
}

func TestHandler_RoutesAndRecords(t *testing.T) {
	radarr := &fakeRadarr{movies: map[int]*arr.Movie{603: {ID: 42}}}
	sonarr := &fakeSonarr{series: map[int]*arr.Series{81189: {ID: 7}}}
	lib := newLibrary()
	logger := testlog.NewTestLogger(t)
	h := NewHandler(
		NewRadarrHandler(radarr, lib, newResolver(), logger),
		NewSonarrHandler(sonarr, lib, newResolver(), logger),
		logger,
	)
	ctx := context.Background()
	handled := testutil.ToFloat64(metrics.MediaActions.WithLabelValues("radarr", "delete", "handled"))
	unsupported := testutil.ToFloat64(metrics.MediaActions.WithLabelValues("sonarr", "unmonitor_delete_all", "unsupported"))

	outcome, err := h.Handle(ctx, &collections.Collection{Type: plex.TypeMovie, ArrAction: collections.ActionDelete},
		collections.Member{PlexID: "m1", TmdbID: 603})
	require.NoError(t, err)
	assert.True(t, outcome.Done())

	outcome, err = h.Handle(ctx, &collections.Collection{Type: plex.TypeSeason, ArrAction: collections.ActionUnmonitorDeleteAll},
		collections.Member{PlexID: "s2"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeUnsupported, outcome)
	assert.False(t, outcome.Done())

	outcome, err = h.Handle(ctx, &collections.Collection{Type: plex.TypeShow, ArrAction: collections.ActionDoNothing},
		collections.Member{PlexID: "show"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeNothing, outcome)

	assert.Equal(t, handled+1, testutil.ToFloat64(metrics.MediaActions.WithLabelValues("radarr", "delete", "handled")))
	assert.Equal(t, unsupported+1, testutil.ToFloat64(metrics.MediaActions.WithLabelValues("sonarr", "unmonitor_delete_all", "unsupported")))
	assert.Equal(t, []string{"DeleteMovie 42 files=true excl=false"}, radarr.calls)
	assert.Empty(t, sonarr.calls)
}
