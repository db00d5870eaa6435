package tmdb

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"github.com/curatarr/curatarr/internal/config"
)

func newTestClient(server *httptest.Server) *Client {
	cfg := config.TMDBConfig{
		APIKey:  "test-api-key",
		BaseURL: server.URL,
		Timeout: 5,
	}
	return NewClient(cfg, nil, zerolog.Nop())
}

func TestClient_IsConfigured(t *testing.T) {
	tests := []struct {
		name   string
		apiKey string
		want   bool
	}{
		{"with key", "abc123", true},
		{"without key", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := NewClient(config.TMDBConfig{APIKey: tt.apiKey}, nil, zerolog.Nop())
			if got := client.IsConfigured(); got != tt.want {
				t.Errorf("IsConfigured() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClient_FindByExternalID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/find/371980" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("external_source"); got != "tvdb_id" {
			t.Errorf("external_source = %q", got)
		}
		if got := r.URL.Query().Get("api_key"); got != "test-api-key" {
			t.Errorf("api_key = %q", got)
		}
		_, _ = w.Write([]byte(`{"movie_results":[],"tv_results":[{"id":95396}]}`))
	}))
	defer server.Close()

	result, err := newTestClient(server).FindByExternalID(context.Background(), "371980", SourceTVDB)
	if err != nil {
		t.Fatalf("FindByExternalID() error = %v", err)
	}
	if len(result.TVResults) != 1 || result.TVResults[0].ID != 95396 {
		t.Errorf("TVResults = %+v", result.TVResults)
	}
}

func TestClient_GetTVExternalIDs(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/tv/95396/external_ids" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"id":95396,"imdb_id":"tt11280740","tvdb_id":371980}`))
	}))
	defer server.Close()

	ids, err := newTestClient(server).GetTVExternalIDs(context.Background(), 95396)
	if err != nil {
		t.Fatalf("GetTVExternalIDs() error = %v", err)
	}
	if ids.TVDbID != 371980 || ids.IMDbID != "tt11280740" {
		t.Errorf("ids = %+v", ids)
	}
}

func TestClient_ErrorMapping(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusNotFound, ErrNotFound},
		{http.StatusTooManyRequests, ErrRateLimited},
		{http.StatusUnauthorized, ErrAPIError},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"status_code":34,"status_message":"nope"}`))
			}))
			defer server.Close()

			_, err := newTestClient(server).GetMovieExternalIDs(context.Background(), 1)
			if !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestClient_NoAPIKey(t *testing.T) {
	client := NewClient(config.TMDBConfig{}, nil, zerolog.Nop())
	_, err := client.FindByExternalID(context.Background(), "tt1", SourceIMDb)
	if !errors.Is(err, ErrAPIKeyMissing) {
		t.Errorf("error = %v, want %v", err, ErrAPIKeyMissing)
	}
}
