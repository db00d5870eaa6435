// Package tmdb resolves cross-references between TMDB, TVDB and IMDb ids.
package tmdb

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/curatarr/curatarr/internal/cache"
	"github.com/curatarr/curatarr/internal/config"
	"github.com/curatarr/curatarr/internal/httpclient"
)

var (
	ErrAPIKeyMissing = errors.New("TMDB API key is not configured")
	ErrNotFound      = errors.New("TMDB item not found")
	ErrAPIError      = errors.New("TMDB API error")
	ErrRateLimited   = errors.New("TMDB API rate limited")
)

// Source names an external id namespace accepted by the find endpoint.
type Source string

const (
	SourceIMDb Source = "imdb_id"
	SourceTVDB Source = "tvdb_id"
)

// ExternalIDs holds the cross-references of a movie or show.
type ExternalIDs struct {
	ID     int    `json:"id"`
	IMDbID string `json:"imdb_id"`
	TVDbID int    `json:"tvdb_id"`
}

// FindItem is one match of a /find lookup.
type FindItem struct {
	ID int `json:"id"`
}

// FindResult is the response of /find.
type FindResult struct {
	MovieResults []FindItem `json:"movie_results"`
	TVResults    []FindItem `json:"tv_results"`
}

type errorResponse struct {
	StatusCode    int    `json:"status_code"`
	StatusMessage string `json:"status_message"`
}

// Client is a TMDB API client.
type Client struct {
	httpClient *http.Client
	config     config.TMDBConfig
	cache      *cache.Cache
	logger     zerolog.Logger
}

// NewClient creates a new TMDB client. The cache may be nil.
func NewClient(cfg config.TMDBConfig, c *cache.Cache, logger zerolog.Logger) *Client {
	log := logger.With().Str("component", "tmdb").Logger()
	return &Client{
		httpClient: httpclient.New(httpclient.Options{
			Timeout:  time.Duration(cfg.Timeout) * time.Second,
			RetryMax: 2,
			Logger:   log,
		}),
		config: cfg,
		cache:  c,
		logger: log,
	}
}

// IsConfigured returns true if the API key is set.
func (c *Client) IsConfigured() bool {
	return c.config.APIKey != ""
}

// FindByExternalID looks up TMDB entries by an IMDb or TVDB id.
func (c *Client) FindByExternalID(ctx context.Context, id string, source Source) (*FindResult, error) {
	key := fmt.Sprintf("tmdb:find:%s:%s", source, id)
	return cache.Fetch(ctx, c.cache, key, func(ctx context.Context) (*FindResult, error) {
		params := url.Values{}
		params.Set("external_source", string(source))

		var result FindResult
		if err := c.doRequest(ctx, "/find/"+url.PathEscape(id), params, &result); err != nil {
			return nil, err
		}
		return &result, nil
	})
}

// GetMovieExternalIDs returns the external ids of a movie.
func (c *Client) GetMovieExternalIDs(ctx context.Context, tmdbID int) (*ExternalIDs, error) {
	return c.externalIDs(ctx, "movie", tmdbID)
}

// GetTVExternalIDs returns the external ids of a show.
func (c *Client) GetTVExternalIDs(ctx context.Context, tmdbID int) (*ExternalIDs, error) {
	return c.externalIDs(ctx, "tv", tmdbID)
}

func (c *Client) externalIDs(ctx context.Context, kind string, tmdbID int) (*ExternalIDs, error) {
	key := fmt.Sprintf("tmdb:%s:%d:external_ids", kind, tmdbID)
	return cache.Fetch(ctx, c.cache, key, func(ctx context.Context) (*ExternalIDs, error) {
		var result ExternalIDs
		if err := c.doRequest(ctx, "/"+kind+"/"+strconv.Itoa(tmdbID)+"/external_ids", nil, &result); err != nil {
			return nil, err
		}
		return &result, nil
	})
}

// doRequest performs an HTTP GET request and decodes the JSON response.
func (c *Client) doRequest(ctx context.Context, path string, params url.Values, result any) error {
	if !c.IsConfigured() {
		return ErrAPIKeyMissing
	}
	if params == nil {
		params = url.Values{}
	}
	params.Set("api_key", c.config.APIKey)
	reqURL := strings.TrimRight(c.config.BaseURL, "/") + path + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error().Err(err).Str("path", path).Msg("HTTP request failed")
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var errResp errorResponse
		if err := json.NewDecoder(resp.Body).Decode(&errResp); err == nil && errResp.StatusMessage != "" {
			c.logger.Debug().
				Int("status", resp.StatusCode).
				Str("message", errResp.StatusMessage).
				Msg("TMDB API error")
		}

		switch resp.StatusCode {
		case http.StatusNotFound:
			return ErrNotFound
		case http.StatusUnauthorized:
			return fmt.Errorf("%w: invalid API key", ErrAPIError)
		case http.StatusTooManyRequests:
			return ErrRateLimited
		default:
			return fmt.Errorf("%w: status %d", ErrAPIError, resp.StatusCode)
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
