// Package arr contains clients for the Radarr and Sonarr v3 APIs.
package arr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/curatarr/curatarr/internal/cache"
	"github.com/curatarr/curatarr/internal/config"
	"github.com/curatarr/curatarr/internal/httpclient"
)

var (
	ErrNotConfigured = errors.New("arr client is not configured")
	ErrNotFound      = errors.New("arr item not found")
	ErrAPIError      = errors.New("arr API error")
)

// client is the transport shared by Radarr and Sonarr.
type client struct {
	name       string
	httpClient *http.Client
	breaker    *httpclient.Breaker
	baseURL    string
	apiKey     string
	cache      *cache.Cache
	logger     zerolog.Logger
}

func newClient(name string, cfg config.ArrConfig, c *cache.Cache, logger zerolog.Logger) client {
	log := logger.With().Str("component", name).Logger()
	return client{
		name: name,
		httpClient: httpclient.New(httpclient.Options{
			Timeout:  time.Duration(cfg.Timeout) * time.Second,
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

func (c *client) configured() bool {
	return c.baseURL != "" && c.apiKey != ""
}

// do sends a request to /api/v3{path}. A nil body sends no payload; a nil
// out discards the response.
func (c *client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	if !c.configured() {
		return ErrNotConfigured
	}

	reqURL := c.baseURL + "/api/v3" + path
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

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read response: %w", err)
		}

		switch {
		case resp.StatusCode == http.StatusNotFound:
			return ErrNotFound
		case resp.StatusCode < 200 || resp.StatusCode >= 300:
			return fmt.Errorf("%w: %s %s returned %d: %s", ErrAPIError, method, path, resp.StatusCode, truncate(data, 200))
		}

		if out == nil || len(data) == 0 {
			return nil
		}
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("failed to decode %s: %w", path, err)
		}
		return nil
	})
}

// invalidate drops every cached response of this client.
func (c *client) invalidate() {
	c.cache.DeletePrefix(c.name + ":")
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n]) + "..."
	}
	return string(b)
}

// Tag is an arr tag.
type Tag struct {
	ID    int    `json:"id"`
	Label string `json:"label"`
}

// QualityProfile is an arr quality profile.
type QualityProfile struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

func (c *client) tags(ctx context.Context) ([]Tag, error) {
	return cache.Fetch(ctx, c.cache, c.name+":tags", func(ctx context.Context) ([]Tag, error) {
		var tags []Tag
		err := c.do(ctx, http.MethodGet, "/tag", nil, nil, &tags)
		return tags, err
	})
}

func (c *client) qualityProfiles(ctx context.Context) ([]QualityProfile, error) {
	return cache.Fetch(ctx, c.cache, c.name+":qualityprofiles", func(ctx context.Context) ([]QualityProfile, error) {
		var profiles []QualityProfile
		err := c.do(ctx, http.MethodGet, "/qualityprofile", nil, nil, &profiles)
		return profiles, err
	})
}

// TagLabels maps tag ids to their labels.
func (c *client) TagLabels(ctx context.Context, ids []int) ([]string, error) {
	tags, err := c.tags(ctx)
	if err != nil {
		return nil, err
	}
	byID := make(map[int]string, len(tags))
	for _, t := range tags {
		byID[t.ID] = t.Label
	}
	labels := make([]string, 0, len(ids))
	for _, id := range ids {
		if l, ok := byID[id]; ok {
			labels = append(labels, l)
		}
	}
	return labels, nil
}

// QualityProfileName returns the name of a quality profile.
func (c *client) QualityProfileName(ctx context.Context, id int) (string, error) {
	profiles, err := c.qualityProfiles(ctx)
	if err != nil {
		return "", err
	}
	for _, p := range profiles {
		if p.ID == id {
			return p.Name, nil
		}
	}
	return "", ErrNotFound
}

// Test verifies connectivity via /system/status.
func (c *client) Test(ctx context.Context) error {
	var status struct {
		AppName string `json:"appName"`
	}
	return c.do(ctx, http.MethodGet, "/system/status", nil, nil, &status)
}
