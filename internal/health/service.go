package health

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/curatarr/curatarr/internal/metrics"
)

// Connection is an external application that can be probed.
type Connection interface {
	IsConfigured() bool
	Test(ctx context.Context) error
}

// Service tracks the reachability of external applications.
// All state is in-memory and resets on restart.
type Service struct {
	mu     sync.RWMutex
	conns  map[string]Connection
	items  map[string]*Item
	now    func() time.Time
	logger zerolog.Logger
}

// NewService creates a new health service.
func NewService(logger zerolog.Logger) *Service {
	return &Service{
		conns:  make(map[string]Connection),
		items:  make(map[string]*Item),
		now:    time.Now,
		logger: logger.With().Str("component", "health").Logger(),
	}
}

// Register adds a connection to health tracking. Configured connections
// start as OK until the first check says otherwise.
func (s *Service) Register(name string, conn Connection) {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := StatusOK
	if !conn.IsConfigured() {
		status = StatusUnconfigured
	}
	s.conns[name] = conn
	s.items[name] = &Item{Name: name, Status: status}
	s.logger.Debug().Str("name", name).Str("status", string(status)).Msg("registered connection")
}

// Check probes a single connection and records the result.
func (s *Service) Check(ctx context.Context, name string) (Item, bool) {
	s.mu.RLock()
	conn, ok := s.conns[name]
	s.mu.RUnlock()
	if !ok {
		return Item{}, false
	}

	if !conn.IsConfigured() {
		s.setStatus(name, StatusUnconfigured, "")
		item, _ := s.Get(name)
		return item, true
	}

	if err := conn.Test(ctx); err != nil {
		s.setStatus(name, StatusError, err.Error())
	} else {
		s.setStatus(name, StatusOK, "")
	}
	item, _ := s.Get(name)
	return item, true
}

// CheckAll probes every registered connection and returns the number that
// failed.
func (s *Service) CheckAll(ctx context.Context) int {
	failed := 0
	for _, name := range s.names() {
		if ctx.Err() != nil {
			break
		}
		item, _ := s.Check(ctx, name)
		if item.Status == StatusError {
			failed++
		}
	}
	return failed
}

func (s *Service) setStatus(name string, status Status, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[name]
	if !ok {
		return
	}

	now := s.now()
	item.LastChecked = &now
	metrics.SetConnectionUp(name, status == StatusOK)

	if item.Status == status && item.Message == message {
		return
	}

	old := item.Status
	item.Status = status
	item.Message = message
	if status == StatusError {
		item.Since = &now
	} else {
		item.Since = nil
	}

	evt := s.logger.Info()
	if status == StatusError {
		evt = s.logger.Warn()
	}
	evt.Str("name", name).
		Str("oldStatus", string(old)).
		Str("newStatus", string(status)).
		Str("message", message).
		Msg("connection status changed")
}

// Get returns a copy of a tracked item.
func (s *Service) Get(name string) (Item, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.items[name]
	if !ok {
		return Item{}, false
	}
	return *item, true
}

// IsHealthy reports whether a connection is configured and reachable.
func (s *Service) IsHealthy(name string) bool {
	item, ok := s.Get(name)
	return ok && item.Status == StatusOK
}

// List returns all tracked items sorted by name.
func (s *Service) List() []Item {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]Item, 0, len(s.items))
	for _, item := range s.items {
		items = append(items, *item)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Name < items[j].Name })
	return items
}

// Summary counts items per status.
func (s *Service) Summary() Summary {
	var sum Summary
	for _, item := range s.List() {
		switch item.Status {
		case StatusOK:
			sum.OK++
		case StatusError:
			sum.Error++
		case StatusUnconfigured:
			sum.Unconfigured++
		}
	}
	sum.HasIssues = sum.Error > 0
	return sum
}

func (s *Service) names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.conns))
	for name := range s.conns {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
