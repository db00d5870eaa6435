package arr

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/curatarr/curatarr/internal/cache"
	"github.com/curatarr/curatarr/internal/config"
)

type recorded struct {
	Method string
	Path   string
	Query  string
	Body   string
}

type fakeServer struct {
	mu     sync.Mutex
	calls  []recorded
	routes map[string]string
}

func (f *fakeServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.calls = append(f.calls, recorded{r.Method, r.URL.Path, r.URL.RawQuery, string(body)})
	f.mu.Unlock()

	if r.Header.Get("X-Api-Key") != "key" {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	if resp, ok := f.routes[r.Method+" "+r.URL.Path]; ok {
		_, _ = w.Write([]byte(resp))
		return
	}
	if r.Method == http.MethodGet {
		w.WriteHeader(http.StatusNotFound)
	}
}

func (f *fakeServer) find(method, path string) []recorded {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []recorded
	for _, c := range f.calls {
		if c.Method == method && c.Path == path {
			out = append(out, c)
		}
	}
	return out
}

func newFake(t *testing.T, routes map[string]string) (*fakeServer, config.ArrConfig) {
	t.Helper()
	f := &fakeServer{routes: routes}
	server := httptest.NewServer(f)
	t.Cleanup(server.Close)
	return f, config.ArrConfig{URL: server.URL, APIKey: "key", Timeout: 5}
}

func TestRadarr_GetMovieByTmdbID(t *testing.T) {
	f, cfg := newFake(t, map[string]string{
		"GET /api/v3/movie": `[{"id":3,"title":"Heat","tmdbId":949,"monitored":true,"tags":[1]}]`,
		"GET /api/v3/tag":   `[{"id":1,"label":"keep"},{"id":2,"label":"kids"}]`,
	})
	r := NewRadarrClient(cfg, cache.New(cache.Config{}), zerolog.Nop())

	movie, err := r.GetMovieByTmdbID(context.Background(), 949)
	require.NoError(t, err)
	require.NotNil(t, movie)
	assert.Equal(t, 3, movie.ID)
	assert.Equal(t, "tmdbId=949", f.find(http.MethodGet, "/api/v3/movie")[0].Query)

	labels, err := r.TagLabels(context.Background(), movie.Tags)
	require.NoError(t, err)
	assert.Equal(t, []string{"keep"}, labels)

	_, err = r.GetMovieByTmdbID(context.Background(), 949)
	require.NoError(t, err)
	assert.Len(t, f.find(http.MethodGet, "/api/v3/movie"), 1, "second lookup served from cache")
}

func TestRadarr_MovieMissing(t *testing.T) {
	_, cfg := newFake(t, map[string]string{"GET /api/v3/movie": `[]`})
	r := NewRadarrClient(cfg, nil, zerolog.Nop())

	movie, err := r.GetMovieByTmdbID(context.Background(), 1)
	require.NoError(t, err)
	assert.Nil(t, movie)
}

func TestRadarr_DeleteMovie(t *testing.T) {
	f, cfg := newFake(t, nil)
	r := NewRadarrClient(cfg, nil, zerolog.Nop())

	require.NoError(t, r.DeleteMovie(context.Background(), 3, true, true))
	calls := f.find(http.MethodDelete, "/api/v3/movie/3")
	require.Len(t, calls, 1)
	assert.Equal(t, "addImportExclusion=true&deleteFiles=true", calls[0].Query)
}

func TestRadarr_UnmonitorMovieDeletesFile(t *testing.T) {
	f, cfg := newFake(t, map[string]string{
		"GET /api/v3/movie/3": `{"id":3,"monitored":true,"movieFile":{"id":77}}`,
	})
	r := NewRadarrClient(cfg, nil, zerolog.Nop())

	require.NoError(t, r.UnmonitorMovie(context.Background(), 3, true))

	puts := f.find(http.MethodPut, "/api/v3/movie/3")
	require.Len(t, puts, 1)
	var saved Movie
	require.NoError(t, json.Unmarshal([]byte(puts[0].Body), &saved))
	assert.False(t, saved.Monitored)
	assert.Len(t, f.find(http.MethodDelete, "/api/v3/moviefile/77"), 1)
}

func TestRadarr_NotConfigured(t *testing.T) {
	r := NewRadarrClient(config.ArrConfig{}, nil, zerolog.Nop())
	assert.False(t, r.IsConfigured())
	_, err := r.GetMovieByTmdbID(context.Background(), 1)
	assert.ErrorIs(t, err, ErrNotConfigured)
}

const seriesJSON = `{"id":9,"title":"Severance","tvdbId":371980,"monitored":true,"seasons":[
	{"seasonNumber":1,"monitored":true,"statistics":{"episodeFileCount":9}},
	{"seasonNumber":2,"monitored":true,"statistics":{"episodeFileCount":0}}]}`

const episodesJSON = `[
	{"id":101,"seasonNumber":1,"episodeNumber":1,"hasFile":true,"episodeFileId":501},
	{"id":102,"seasonNumber":1,"episodeNumber":2,"hasFile":true,"episodeFileId":502},
	{"id":201,"seasonNumber":2,"episodeNumber":1,"hasFile":false}]`

func TestSonarr_UnmonitorAllSeasonsWithoutFiles(t *testing.T) {
	f, cfg := newFake(t, map[string]string{
		"GET /api/v3/series/9": seriesJSON,
		"GET /api/v3/episode":  episodesJSON,
	})
	s := NewSonarrClient(cfg, nil, zerolog.Nop())

	series, err := s.UnmonitorSeasons(context.Background(), 9, AllSeasons, false)
	require.NoError(t, err)
	for _, season := range series.Seasons {
		assert.False(t, season.Monitored)
	}

	monitor := f.find(http.MethodPut, "/api/v3/episode/monitor")
	require.Len(t, monitor, 1)
	assert.JSONEq(t, `{"episodeIds":[101,102,201],"monitored":false}`, monitor[0].Body)
	assert.Empty(t, f.find(http.MethodDelete, "/api/v3/episodefile/501"))
}

func TestSonarr_UnmonitorExistingSeasonsDeletesFiles(t *testing.T) {
	f, cfg := newFake(t, map[string]string{
		"GET /api/v3/series/9": seriesJSON,
		"GET /api/v3/episode":  episodesJSON,
	})
	s := NewSonarrClient(cfg, nil, zerolog.Nop())

	series, err := s.UnmonitorSeasons(context.Background(), 9, ExistingSeasons, true)
	require.NoError(t, err)
	s1, _ := series.Season(1)
	s2, _ := series.Season(2)
	assert.False(t, s1.Monitored)
	assert.True(t, s2.Monitored)

	assert.Len(t, f.find(http.MethodDelete, "/api/v3/episodefile/501"), 1)
	assert.Len(t, f.find(http.MethodDelete, "/api/v3/episodefile/502"), 1)
}

func TestSonarr_UnmonitorSingleEpisode(t *testing.T) {
	f, cfg := newFake(t, map[string]string{
		"GET /api/v3/episode": episodesJSON,
	})
	s := NewSonarrClient(cfg, nil, zerolog.Nop())

	require.NoError(t, s.UnmonitorEpisodes(context.Background(), 9, 1, []int{2}, true))

	monitor := f.find(http.MethodPut, "/api/v3/episode/monitor")
	require.Len(t, monitor, 1)
	assert.JSONEq(t, `{"episodeIds":[102],"monitored":false}`, monitor[0].Body)
	assert.Len(t, f.find(http.MethodDelete, "/api/v3/episodefile/502"), 1)
	assert.Empty(t, f.find(http.MethodDelete, "/api/v3/episodefile/501"))
	assert.Empty(t, f.find(http.MethodPut, "/api/v3/series/9"), "season record untouched")
}

func TestSonarr_DeleteSeries(t *testing.T) {
	f, cfg := newFake(t, nil)
	s := NewSonarrClient(cfg, nil, zerolog.Nop())

	require.NoError(t, s.DeleteSeries(context.Background(), 9, true, false))
	calls := f.find(http.MethodDelete, "/api/v3/series/9")
	require.Len(t, calls, 1)
	assert.Equal(t, "addImportListExclusion=false&deleteFiles=true", calls[0].Query)
}

func TestSeasonSelector(t *testing.T) {
	withFiles := Season{SeasonNumber: 1, Statistics: &SeasonStatistics{EpisodeFileCount: 2}}
	empty := Season{SeasonNumber: 2}

	assert.True(t, AllSeasons.matches(empty))
	assert.True(t, ExistingSeasons.matches(withFiles))
	assert.False(t, ExistingSeasons.matches(empty))
	assert.True(t, SingleSeason(2).matches(empty))
	assert.False(t, SingleSeason(2).matches(withFiles))
	assert.Equal(t, "2", SingleSeason(2).String())
}
