package overseerr

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/curatarr/curatarr/internal/config"
)

type call struct {
	method, path, body string
}

func newTestClient(t *testing.T, routes map[string]string) (*Client, *[]call) {
	t.Helper()
	var mu sync.Mutex
	calls := &[]call{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		*calls = append(*calls, call{r.Method, r.URL.Path, string(body)})
		mu.Unlock()
		assert.Equal(t, "key", r.Header.Get("X-Api-Key"))
		if resp, ok := routes[r.Method+" "+r.URL.Path]; ok {
			_, _ = w.Write([]byte(resp))
			return
		}
		if r.Method == http.MethodGet {
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(server.Close)
	return NewClient("overseerr", config.SeerrConfig{URL: server.URL, APIKey: "key"}, nil, zerolog.Nop()), calls
}

func has(calls []call, method, path string) bool {
	for _, c := range calls {
		if c.method == method && c.path == path {
			return true
		}
	}
	return false
}

func TestClient_GetMovie(t *testing.T) {
	c, _ := newTestClient(t, map[string]string{
		"GET /api/v1/movie/949": `{"id":949,"releaseDate":"1995-12-15","mediaInfo":{"id":4,"requests":[
			{"id":1,"status":2,"createdAt":"2024-01-02T03:04:05Z","requestedBy":{"id":1,"plexUsername":"alice"}}]}}`,
	})

	movie, err := c.GetMovie(context.Background(), 949)
	require.NoError(t, err)
	require.NotNil(t, movie.MediaInfo)
	require.Len(t, movie.MediaInfo.Requests, 1)
	assert.Equal(t, "alice", movie.MediaInfo.Requests[0].RequestedBy.Name())
}

func TestClient_RemoveRequestMovieClearsMedia(t *testing.T) {
	c, calls := newTestClient(t, map[string]string{
		"GET /api/v1/movie/949": `{"id":949,"mediaInfo":{"id":4,"requests":[{"id":1}]}}`,
	})

	require.NoError(t, c.RemoveRequest(context.Background(), true, 949, nil))
	assert.True(t, has(*calls, http.MethodDelete, "/api/v1/media/4"))
}

func TestClient_RemoveRequestSeason(t *testing.T) {
	c, calls := newTestClient(t, map[string]string{
		"GET /api/v1/tv/95396": `{"id":95396,"mediaInfo":{"id":8,"requests":[
			{"id":1,"seasons":[{"seasonNumber":2}]},
			{"id":2,"seasons":[{"seasonNumber":1},{"seasonNumber":2}]},
			{"id":3,"seasons":[{"seasonNumber":3}]}]}}`,
	})

	season := 2
	require.NoError(t, c.RemoveRequest(context.Background(), false, 95396, &season))

	assert.True(t, has(*calls, http.MethodDelete, "/api/v1/request/1"))
	assert.False(t, has(*calls, http.MethodDelete, "/api/v1/request/3"))
	assert.False(t, has(*calls, http.MethodDelete, "/api/v1/media/8"))
	for _, cl := range *calls {
		if cl.method == http.MethodPut {
			assert.Equal(t, "/api/v1/request/2", cl.path)
			assert.JSONEq(t, `{"mediaType":"tv","seasons":[1]}`, cl.body)
		}
	}
}

func TestClient_RemoveRequestWithoutMediaInfo(t *testing.T) {
	c, calls := newTestClient(t, map[string]string{
		"GET /api/v1/movie/1": `{"id":1}`,
	})

	require.NoError(t, c.RemoveRequest(context.Background(), true, 1, nil))
	assert.Len(t, *calls, 1)
}

func TestClient_TriggerAvailabilitySync(t *testing.T) {
	c, calls := newTestClient(t, nil)
	require.NoError(t, c.TriggerAvailabilitySync(context.Background()))
	assert.True(t, has(*calls, http.MethodPost, "/api/v1/settings/jobs/availability-sync/run"))
}

func TestUser_Name(t *testing.T) {
	assert.Equal(t, "bob", (&User{DisplayName: "Bob B", Username: "bob"}).Name())
	assert.Equal(t, "a@b.c", (&User{Email: "a@b.c"}).Name())
}
