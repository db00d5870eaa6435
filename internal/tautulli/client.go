// Package tautulli reads watch statistics from Tautulli's API v2.
package tautulli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"

	"github.com/curatarr/curatarr/internal/cache"
	"github.com/curatarr/curatarr/internal/config"
	"github.com/curatarr/curatarr/internal/httpclient"
)

var (
	ErrNotConfigured = errors.New("tautulli is not configured")
	ErrAPIError      = errors.New("tautulli API error")
)

// Scope selects which rating key field a history query filters on.
type Scope string

const (
	ScopeItem        Scope = "rating_key"
	ScopeParent      Scope = "parent_rating_key"
	ScopeGrandparent Scope = "grandparent_rating_key"
)

// HistoryEntry is one playback record.
type HistoryEntry struct {
	UserID               int
	User                 string
	RatingKey            string
	ParentRatingKey      string
	GrandparentRatingKey string
	MediaType            string
	Started              time.Time
	Stopped              time.Time
	PercentComplete      int
	Watched              bool
}

// User is a Tautulli user.
type User struct {
	UserID       int
	Username     string
	FriendlyName string
}

// Metadata is the subset of get_metadata used by rules.
type Metadata struct {
	RatingKey string
	MediaType string
	AddedAt   time.Time
	Title     string
}

// Client talks to Tautulli.
type Client struct {
	httpClient *http.Client
	breaker    *httpclient.Breaker
	baseURL    string
	apiKey     string
	cache      *cache.Cache
	logger     zerolog.Logger
}

// NewClient creates a Tautulli client. The cache may be nil.
func NewClient(cfg config.TautulliConfig, c *cache.Cache, logger zerolog.Logger) *Client {
	log := logger.With().Str("component", "tautulli").Logger()
	return &Client{
		httpClient: httpclient.New(httpclient.Options{Timeout: 30 * time.Second, RetryMax: 2, Logger: log}),
		breaker:    httpclient.NewBreaker("tautulli", 0, log),
		baseURL:    strings.TrimRight(cfg.URL, "/"),
		apiKey:     cfg.APIKey,
		cache:      c,
		logger:     log,
	}
}

// IsConfigured returns true if the URL and API key are set.
func (c *Client) IsConfigured() bool {
	return c.baseURL != "" && c.apiKey != ""
}

// call runs a command and returns response.data after checking the
// response.result envelope.
func (c *Client) call(ctx context.Context, cmd string, params url.Values) (gjson.Result, error) {
	if !c.IsConfigured() {
		return gjson.Result{}, ErrNotConfigured
	}
	if params == nil {
		params = url.Values{}
	}
	params.Set("apikey", c.apiKey)
	params.Set("cmd", cmd)
	reqURL := c.baseURL + "/api/v2?" + params.Encode()

	var data gjson.Result
	err := c.breaker.Do(func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("request failed: %w", err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read response: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("%w: %s returned %d", ErrAPIError, cmd, resp.StatusCode)
		}
		if !gjson.ValidBytes(body) {
			return fmt.Errorf("%w: %s returned invalid JSON", ErrAPIError, cmd)
		}

		envelope := gjson.GetBytes(body, "response")
		if result := envelope.Get("result").String(); result != "success" {
			return fmt.Errorf("%w: %s: %s", ErrAPIError, cmd, envelope.Get("message").String())
		}
		data = envelope.Get("data")
		return nil
	})
	return data, err
}

// GetHistory returns every playback record for a rating key, interpreted
// according to scope.
func (c *Client) GetHistory(ctx context.Context, scope Scope, ratingKey string) ([]HistoryEntry, error) {
	key := fmt.Sprintf("tautulli:history:%s:%s", scope, ratingKey)
	return cache.Fetch(ctx, c.cache, key, func(ctx context.Context) ([]HistoryEntry, error) {
		params := url.Values{}
		params.Set(string(scope), ratingKey)
		params.Set("length", "10000")
		params.Set("grouping", "0")
		params.Set("order_column", "started")
		params.Set("order_dir", "desc")

		data, err := c.call(ctx, "get_history", params)
		if err != nil {
			return nil, err
		}

		rows := data.Get("data").Array()
		entries := make([]HistoryEntry, 0, len(rows))
		for _, row := range rows {
			entries = append(entries, HistoryEntry{
				UserID:               int(row.Get("user_id").Int()),
				User:                 row.Get("friendly_name").String(),
				RatingKey:            row.Get("rating_key").String(),
				ParentRatingKey:      row.Get("parent_rating_key").String(),
				GrandparentRatingKey: row.Get("grandparent_rating_key").String(),
				MediaType:            row.Get("media_type").String(),
				Started:              unix(row.Get("started").Int()),
				Stopped:              unix(row.Get("stopped").Int()),
				PercentComplete:      int(row.Get("percent_complete").Int()),
				Watched:              row.Get("watched_status").Float() >= 1,
			})
		}
		return entries, nil
	})
}

// GetMetadata returns item metadata as Tautulli knows it.
func (c *Client) GetMetadata(ctx context.Context, ratingKey string) (*Metadata, error) {
	return cache.Fetch(ctx, c.cache, "tautulli:metadata:"+ratingKey, func(ctx context.Context) (*Metadata, error) {
		data, err := c.call(ctx, "get_metadata", url.Values{"rating_key": {ratingKey}})
		if err != nil {
			return nil, err
		}
		if !data.Get("rating_key").Exists() {
			return nil, nil
		}
		return &Metadata{
			RatingKey: data.Get("rating_key").String(),
			MediaType: data.Get("media_type").String(),
			AddedAt:   unix(data.Get("added_at").Int()),
			Title:     data.Get("title").String(),
		}, nil
	})
}

// GetUsers lists the users Tautulli tracks.
func (c *Client) GetUsers(ctx context.Context) ([]User, error) {
	return cache.Fetch(ctx, c.cache, "tautulli:users", func(ctx context.Context) ([]User, error) {
		data, err := c.call(ctx, "get_users", nil)
		if err != nil {
			return nil, err
		}
		var users []User
		data.ForEach(func(_, u gjson.Result) bool {
			users = append(users, User{
				UserID:       int(u.Get("user_id").Int()),
				Username:     u.Get("username").String(),
				FriendlyName: u.Get("friendly_name").String(),
			})
			return true
		})
		return users, nil
	})
}

// Test verifies connectivity.
func (c *Client) Test(ctx context.Context) error {
	_, err := c.call(ctx, "arnold", nil)
	return err
}

func unix(sec int64) time.Time {
	if sec <= 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0)
}
