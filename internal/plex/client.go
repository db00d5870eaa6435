package plex

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"

	"github.com/curatarr/curatarr/internal/cache"
	"github.com/curatarr/curatarr/internal/config"
	"github.com/curatarr/curatarr/internal/httpclient"
)

const product = "Curatarr"

var (
	ErrNotConfigured = errors.New("plex is not configured")
	ErrNotFound      = errors.New("plex item not found")
	ErrAPIError      = errors.New("plex API error")
)

// Client talks to a Plex Media Server.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	clientID   string
	cache      *cache.Cache
	logger     zerolog.Logger

	machineMu sync.Mutex
	machineID string
}

// NewClient creates a Plex client. The cache may be nil.
func NewClient(cfg config.PlexConfig, c *cache.Cache, logger zerolog.Logger) *Client {
	log := logger.With().Str("component", "plex").Logger()
	return &Client{
		httpClient: httpclient.New(httpclient.Options{
			Timeout:  time.Duration(cfg.Timeout) * time.Second,
			RetryMax: 3,
			Logger:   log,
		}),
		baseURL:  strings.TrimRight(cfg.URL, "/"),
		token:    cfg.Token,
		clientID: uuid.New().String(),
		cache:    c,
		logger:   log,
	}
}

// IsConfigured returns true if a server URL and token are set.
func (c *Client) IsConfigured() bool {
	return c.baseURL != "" && c.token != ""
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("X-Plex-Token", c.token)
	req.Header.Set("X-Plex-Client-Identifier", c.clientID)
	req.Header.Set("X-Plex-Product", product)
	req.Header.Set("X-Plex-Platform", runtime.GOOS)
	req.Header.Set("Accept", "application/json")
}

// do sends a request and returns the body of a 2xx response.
func (c *Client) do(ctx context.Context, method, path string, query url.Values) ([]byte, error) {
	if !c.IsConfigured() {
		return nil, ErrNotConfigured
	}

	reqURL := c.baseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, fmt.Errorf("%w: %s %s returned %d", ErrAPIError, method, path, resp.StatusCode)
	}
	return body, nil
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	body, err := c.do(ctx, http.MethodGet, path, query)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return nil
}

// MachineIdentifier returns the server's machine id, needed to build item URIs.
func (c *Client) MachineIdentifier(ctx context.Context) (string, error) {
	c.machineMu.Lock()
	defer c.machineMu.Unlock()
	if c.machineID != "" {
		return c.machineID, nil
	}

	body, err := c.do(ctx, http.MethodGet, "/", nil)
	if err != nil {
		return "", err
	}
	id := gjson.GetBytes(body, "MediaContainer.machineIdentifier").String()
	if id == "" {
		return "", fmt.Errorf("%w: missing machineIdentifier", ErrAPIError)
	}
	c.machineID = id
	return id, nil
}

// Test verifies connectivity.
func (c *Client) Test(ctx context.Context) error {
	_, err := c.MachineIdentifier(ctx)
	return err
}

// GetAccounts lists the server's user accounts.
func (c *Client) GetAccounts(ctx context.Context) ([]Account, error) {
	return cache.Fetch(ctx, c.cache, "plex:accounts", func(ctx context.Context) ([]Account, error) {
		var resp mediaContainer[Account]
		if err := c.getJSON(ctx, "/accounts", nil, &resp); err != nil {
			return nil, err
		}
		return resp.MediaContainer.Account, nil
	})
}

// AccountNames maps account ids to names.
func (c *Client) AccountNames(ctx context.Context) (map[int]string, error) {
	accounts, err := c.GetAccounts(ctx)
	if err != nil {
		return nil, err
	}
	names := make(map[int]string, len(accounts))
	for _, a := range accounts {
		names[a.ID] = a.Name
	}
	return names, nil
}

func itoa(i int) string { return strconv.Itoa(i) }

func decode(body []byte, out any) error {
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
