// Package overseerr is a client for Overseerr and its Jellyseerr fork, which
// share the same v1 API.
package overseerr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
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
	ErrNotConfigured = errors.New("request manager is not configured")
	ErrNotFound      = errors.New("request manager item not found")
	ErrAPIError      = errors.New("request manager API error")
)

// Client talks to an Overseerr or Jellyseerr instance.
type Client struct {
	name       string
	httpClient *http.Client
	breaker    *httpclient.Breaker
	baseURL    string
	apiKey     string
	cache      *cache.Cache
	logger     zerolog.Logger
}

// NewClient creates a client. name is "overseerr" or "jellyseerr" and is
// used for logging and cache keys.
func NewClient(name string, cfg config.SeerrConfig, c *cache.Cache, logger zerolog.Logger) *Client {
	log := logger.With().Str("component", name).Logger()
	return &Client{
		name: name,
		httpClient: httpclient.New(httpclient.Options{
			Timeout:  30 * time.Second,
			RetryMax: 2,
			Logger:   log,
		}),
		breaker: httpclient.NewBreaker(name, 0, log),
		baseURL: strings.TrimRight(cfg.URL, "/"),
		apiKey:  cfg.APIKey,
		cache:   c,
		logger:  log,
	}
}

// Name returns the configured instance name.
func (c *Client) Name() string {
	return c.name
}

// IsConfigured returns true if the URL and API key are set.
func (c *Client) IsConfigured() bool {
	return c.baseURL != "" && c.apiKey != ""
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	if !c.IsConfigured() {
		return ErrNotConfigured
	}
	reqURL := c.baseURL + "/api/v1" + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	var payload io.Reader = http.NoBody
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		payload = bytes.NewReader(data)
	}

	return c.breaker.Do(func() error {
		req, err := http.NewRequestWithContext(ctx, method, reqURL, payload)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("X-Api-Key", c.apiKey)
		req.Header.Set("Accept", "application/json")
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("request failed: %w", err)
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusNotFound:
			return ErrNotFound
		case resp.StatusCode < 200 || resp.StatusCode >= 300:
			return fmt.Errorf("%w: %s %s returned %d", ErrAPIError, method, path, resp.StatusCode)
		}
		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode %s: %w", path, err)
		}
		return nil
	})
}

// GetMovie returns movie details including request information. A movie
// unknown to TMDB yields ErrNotFound.
func (c *Client) GetMovie(ctx context.Context, tmdbID int) (*Movie, error) {
	key := fmt.Sprintf("%s:movie:%d", c.name, tmdbID)
	return cache.Fetch(ctx, c.cache, key, func(ctx context.Context) (*Movie, error) {
		var movie Movie
		if err := c.do(ctx, http.MethodGet, "/movie/"+strconv.Itoa(tmdbID), nil, nil, &movie); err != nil {
			return nil, err
		}
		return &movie, nil
	})
}

// GetShow returns TV details including request information.
func (c *Client) GetShow(ctx context.Context, tmdbID int) (*Show, error) {
	key := fmt.Sprintf("%s:tv:%d", c.name, tmdbID)
	return cache.Fetch(ctx, c.cache, key, func(ctx context.Context) (*Show, error) {
		var show Show
		if err := c.do(ctx, http.MethodGet, "/tv/"+strconv.Itoa(tmdbID), nil, nil, &show); err != nil {
			return nil, err
		}
		return &show, nil
	})
}

// GetUsers lists every user.
func (c *Client) GetUsers(ctx context.Context) ([]User, error) {
	return cache.Fetch(ctx, c.cache, c.name+":users", func(ctx context.Context) ([]User, error) {
		var resp struct {
			Results []User `json:"results"`
		}
		query := url.Values{"take": {"1000"}}
		if err := c.do(ctx, http.MethodGet, "/user", query, nil, &resp); err != nil {
			return nil, err
		}
		return resp.Results, nil
	})
}

// DeleteRequest deletes one request.
func (c *Client) DeleteRequest(ctx context.Context, requestID int) error {
	return c.do(ctx, http.MethodDelete, "/request/"+strconv.Itoa(requestID), nil, nil, nil)
}

// DeleteMedia clears the media record, which also drops its requests.
func (c *Client) DeleteMedia(ctx context.Context, mediaID int) error {
	return c.do(ctx, http.MethodDelete, "/media/"+strconv.Itoa(mediaID), nil, nil, nil)
}

// updateRequestSeasons replaces the seasons of a TV request.
func (c *Client) updateRequestSeasons(ctx context.Context, requestID int, seasons []int) error {
	body := struct {
		MediaType string `json:"mediaType"`
		Seasons   []int  `json:"seasons"`
	}{"tv", seasons}
	return c.do(ctx, http.MethodPut, "/request/"+strconv.Itoa(requestID), nil, body, nil)
}

// RemoveRequest removes what was requested for a movie or show. Without a
// season the whole media record is cleared. With a season, requests that
// only cover that season are deleted and the season is dropped from the
// others.
func (c *Client) RemoveRequest(ctx context.Context, movie bool, tmdbID int, season *int) error {
	defer c.cache.DeletePrefix(c.name + ":")

	var info *MediaInfo
	if movie {
		m, err := c.GetMovie(ctx, tmdbID)
		if err != nil {
			return fmt.Errorf("remove request for movie %d: %w", tmdbID, err)
		}
		info = m.MediaInfo
	} else {
		s, err := c.GetShow(ctx, tmdbID)
		if err != nil {
			return fmt.Errorf("remove request for show %d: %w", tmdbID, err)
		}
		info = s.MediaInfo
	}
	if info == nil {
		return nil
	}

	if season == nil || movie {
		if err := c.DeleteMedia(ctx, info.ID); err != nil {
			return fmt.Errorf("clear media %d: %w", info.ID, err)
		}
		c.logger.Info().Int("tmdbId", tmdbID).Msg("Removed media and its requests")
		return nil
	}

	for _, req := range info.Requests {
		if !req.HasSeason(*season) {
			continue
		}
		var rest []int
		for _, s := range req.Seasons {
			if s.SeasonNumber != *season {
				rest = append(rest, s.SeasonNumber)
			}
		}
		var err error
		if len(rest) == 0 {
			err = c.DeleteRequest(ctx, req.ID)
		} else {
			err = c.updateRequestSeasons(ctx, req.ID, rest)
		}
		if err != nil {
			return fmt.Errorf("remove season %d from request %d: %w", *season, req.ID, err)
		}
	}
	c.logger.Info().Int("tmdbId", tmdbID).Int("season", *season).Msg("Removed season from requests")
	return nil
}

// TriggerAvailabilitySync starts the availability-sync job.
func (c *Client) TriggerAvailabilitySync(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/settings/jobs/availability-sync/run", nil, nil, nil)
}

// Test verifies connectivity.
func (c *Client) Test(ctx context.Context) error {
	var status struct {
		Version string `json:"version"`
	}
	return c.do(ctx, http.MethodGet, "/status", nil, nil, &status)
}
