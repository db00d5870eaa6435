package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/curatarr/curatarr/internal/actions"
	"github.com/curatarr/curatarr/internal/collections"
	"github.com/curatarr/curatarr/internal/plex"
	"github.com/curatarr/curatarr/internal/testutil"
)

type fakeHandler struct {
	outcomes map[string]actions.Outcome
	errs     map[string]error
	handled  []string
}

func (f *fakeHandler) Handle(_ context.Context, _ *collections.Collection, m collections.Member) (actions.Outcome, error) {
	f.handled = append(f.handled, m.PlexID)
	if err := f.errs[m.PlexID]; err != nil {
		return actions.OutcomeFailed, err
	}
	if o, ok := f.outcomes[m.PlexID]; ok {
		return o, nil
	}
	return actions.OutcomeHandled, nil
}

type removal struct {
	movie  bool
	tmdbID int
	season *int
}

type fakeRequests struct {
	name       string
	configured bool
	removals   []removal
	syncs      int
}

func (f *fakeRequests) Name() string { return f.name }
func (f *fakeRequests) IsConfigured() bool { return f.configured }

func (f *fakeRequests) RemoveRequest(_ context.Context, movie bool, tmdbID int, season *int) error {
	f.removals = append(f.removals, removal{movie, tmdbID, season})
	return nil
}

func (f *fakeRequests) TriggerAvailabilitySync(context.Context) error {
	f.syncs++
	return nil
}

type fakeLibrary map[string]*plex.Metadata

func (f fakeLibrary) GetMetadata(_ context.Context, key string) (*plex.Metadata, error) {
	if md, ok := f[key]; ok {
		return md, nil
	}
	return nil, plex.ErrNotFound
}

type fakeResolver map[string]int

func (f fakeResolver) TmdbID(_ context.Context, item *plex.Metadata) (int, error) {
	if id, ok := f[item.RatingKey]; ok {
		return id, nil
	}
	return 0, errors.New("no tmdb id")
}

type fixture struct {
	worker    *Worker
	cols      *collections.Service
	handler   *fakeHandler
	overseerr *fakeRequests
	jelly     *fakeRequests
	library   fakeLibrary
	delays    []time.Duration
	now       time.Time
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	tdb := testutil.NewTestDB(t)
	cols := collections.NewService(collections.NewStore(tdb.Conn), nil, tdb.Logger)

	f := &fixture{
		cols:      cols,
		handler:   &fakeHandler{outcomes: map[string]actions.Outcome{}, errs: map[string]error{}},
		overseerr: &fakeRequests{name: "overseerr", configured: true},
		jelly:     &fakeRequests{name: "jellyseerr"},
		now:       time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC),
	}
	f.library = fakeLibrary{
		"s2": {RatingKey: "s2", Type: "season", ParentRatingKey: "show", Index: 2},
	}
	f.worker = New(cols, f.handler, []RequestManager{f.overseerr, f.jelly}, f.library, fakeResolver{"s2": 1399}, cfg, tdb.Logger)
	f.worker.now = func() time.Time { return f.now }
	f.worker.afterFunc = func(d time.Duration, fn func()) {
		f.delays = append(f.delays, d)
		fn()
	}
	return f
}

func (f *fixture) collection(t *testing.T, col *collections.Collection, members ...collections.Member) *collections.Collection {
	t.Helper()
	ctx := context.Background()
	if col.Title == "" {
		col.Title = "Leaving soon"
	}
	col.LibraryID = "1"
	col.IsActive = true
	require.NoError(t, f.cols.Store().Create(ctx, col))
	_, err := f.cols.Store().AddMembers(ctx, col.ID, members)
	require.NoError(t, err)
	return col
}

func (f *fixture) daysAgo(n int) time.Time {
	return f.now.Add(-time.Duration(n) * 24 * time.Hour)
}

func (f *fixture) memberIDs(t *testing.T, colID int64) []string {
	t.Helper()
	members, err := f.cols.Members(context.Background(), colID)
	require.NoError(t, err)
	var out []string
	for _, m := range members {
		out = append(out, m.PlexID)
	}
	return out
}

func TestExecute_HandlesDueMembers(t *testing.T) {
	f := newFixture(t, Config{AvailabilitySyncDelay: 7 * time.Minute})
	col := f.collection(t, &collections.Collection{Type: plex.TypeMovie, ArrAction: collections.ActionDelete, DeleteAfterDays: 30},
		collections.Member{PlexID: "old", TmdbID: 603, AddDate: f.daysAgo(31)},
		collections.Member{PlexID: "edge", TmdbID: 604, AddDate: f.daysAgo(30)},
		collections.Member{PlexID: "new", TmdbID: 605, AddDate: f.daysAgo(29)},
	)

	res, err := f.worker.Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Handled)
	assert.ElementsMatch(t, []string{"old", "edge"}, f.handler.handled)
	assert.Equal(t, []string{"new"}, f.memberIDs(t, col.ID))

	got, err := f.cols.Get(context.Background(), col.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.HandledMediaCount)

	logs, err := f.cols.Logs(context.Background(), col.ID, 20)
	require.NoError(t, err)
	handledLogs := 0
	for _, l := range logs {
		if l.Type == collections.LogMediaHandled {
			handledLogs++
		}
	}
	assert.Equal(t, 2, handledLogs)
}

func TestExecute_FailedActionKeepsMember(t *testing.T) {
	f := newFixture(t, Config{})
	f.handler.errs["down"] = errors.New("radarr unavailable")
	f.handler.outcomes["odd"] = actions.OutcomeUnsupported
	col := f.collection(t, &collections.Collection{Type: plex.TypeMovie, ArrAction: collections.ActionDelete},
		collections.Member{PlexID: "down", AddDate: f.daysAgo(1)},
		collections.Member{PlexID: "odd", AddDate: f.daysAgo(1)},
	)

	res, err := f.worker.Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, 1, res.Unsupported)
	assert.Zero(t, res.Handled)
	assert.ElementsMatch(t, []string{"down", "odd"}, f.memberIDs(t, col.ID))
	assert.Empty(t, f.delays, "no availability sync without changes")
}

func TestExecute_SkipsExcludedAndIdleCollections(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()
	active := f.collection(t, &collections.Collection{Type: plex.TypeMovie, ArrAction: collections.ActionDelete},
		collections.Member{PlexID: "kept", AddDate: f.daysAgo(5)},
		collections.Member{PlexID: "gone", AddDate: f.daysAgo(5)},
	)
	f.collection(t, &collections.Collection{Title: "Watch list", Type: plex.TypeMovie, ArrAction: collections.ActionDoNothing},
		collections.Member{PlexID: "idle", AddDate: f.daysAgo(5)},
	)
	require.NoError(t, f.cols.Store().AddExclusion(ctx, &collections.Exclusion{PlexID: "kept"}))

	res, err := f.worker.Execute(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Handled)
	assert.Equal(t, []string{"gone"}, f.handler.handled)
	assert.Equal(t, []string{"kept"}, f.memberIDs(t, active.ID))
}

func TestExecute_RemovesRequestsWhenForced(t *testing.T) {
	f := newFixture(t, Config{AvailabilitySyncDelay: time.Minute})
	f.collection(t, &collections.Collection{Type: plex.TypeMovie, ArrAction: collections.ActionDelete, ForceRequestSync: true},
		collections.Member{PlexID: "m1", TmdbID: 603, AddDate: f.daysAgo(1)},
	)
	f.collection(t, &collections.Collection{Title: "Seasons", Type: plex.TypeSeason, ArrAction: collections.ActionDelete, ForceRequestSync: true},
		collections.Member{PlexID: "s2", AddDate: f.daysAgo(1)},
	)

	_, err := f.worker.Execute(context.Background())
	require.NoError(t, err)

	require.Len(t, f.overseerr.removals, 2)
	assert.Equal(t, removal{movie: true, tmdbID: 603}, f.overseerr.removals[0])
	assert.False(t, f.overseerr.removals[1].movie)
	assert.Equal(t, 1399, f.overseerr.removals[1].tmdbID)
	require.NotNil(t, f.overseerr.removals[1].season)
	assert.Equal(t, 2, *f.overseerr.removals[1].season)
	assert.Empty(t, f.jelly.removals, "unconfigured manager is not called")

	assert.Equal(t, []time.Duration{time.Minute}, f.delays)
	assert.Equal(t, 1, f.overseerr.syncs)
	assert.Zero(t, f.jelly.syncs)
}

func TestExecute_NoRequestCleanupByDefault(t *testing.T) {
	f := newFixture(t, Config{})
	f.collection(t, &collections.Collection{Type: plex.TypeMovie, ArrAction: collections.ActionDelete},
		collections.Member{PlexID: "m1", TmdbID: 603, AddDate: f.daysAgo(1)},
	)

	_, err := f.worker.Execute(context.Background())
	require.NoError(t, err)
	assert.Empty(t, f.overseerr.removals)
	assert.Len(t, f.delays, 1)
}

func TestExecute_GlobalForceRequestSync(t *testing.T) {
	f := newFixture(t, Config{ForceRequestSync: true})
	f.collection(t, &collections.Collection{Type: plex.TypeShow, ArrAction: collections.ActionDelete},
		collections.Member{PlexID: "show", TmdbID: 1399, AddDate: f.daysAgo(1)},
	)

	_, err := f.worker.Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []removal{{movie: false, tmdbID: 1399}}, f.overseerr.removals)
}

func TestExecute_SkipsMembersExcludedThroughParent(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()
	f.library["s3"] = &plex.Metadata{RatingKey: "s3", Type: "season", ParentRatingKey: "other", Index: 3}
	f.library["e5"] = &plex.Metadata{RatingKey: "e5", Type: "episode", ParentRatingKey: "s9", GrandparentRatingKey: "show"}

	seasons := f.collection(t, &collections.Collection{Type: plex.TypeSeason, ArrAction: collections.ActionDelete, DeleteAfterDays: 30},
		collections.Member{PlexID: "s2", AddDate: f.daysAgo(40), IsManual: true},
		collections.Member{PlexID: "s3", AddDate: f.daysAgo(40)},
	)
	episodes := f.collection(t, &collections.Collection{Title: "Old episodes", Type: plex.TypeEpisode, ArrAction: collections.ActionDelete, DeleteAfterDays: 30},
		collections.Member{PlexID: "e5", AddDate: f.daysAgo(40)},
	)
	require.NoError(t, f.cols.AddExclusion(ctx, &collections.Exclusion{PlexID: "show"}))

	res, err := f.worker.Execute(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Handled)
	assert.Equal(t, []string{"s3"}, f.handler.handled)
	assert.Equal(t, []string{"s2"}, f.memberIDs(t, seasons.ID))
	assert.Equal(t, []string{"e5"}, f.memberIDs(t, episodes.ID))
}

func TestExecute_SkipsChildWhenParentUnknown(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()

	col := f.collection(t, &collections.Collection{Type: plex.TypeEpisode, ArrAction: collections.ActionDelete, DeleteAfterDays: 30},
		collections.Member{PlexID: "gone", AddDate: f.daysAgo(40)},
	)
	require.NoError(t, f.cols.AddExclusion(ctx, &collections.Exclusion{PlexID: "show"}))

	res, err := f.worker.Execute(ctx)
	require.NoError(t, err)
	assert.Zero(t, res.Handled)
	assert.Empty(t, f.handler.handled)
	assert.Equal(t, []string{"gone"}, f.memberIDs(t, col.ID))
}
