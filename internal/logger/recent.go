package logger

import (
	"sync"

	"github.com/goccy/go-json"
)

// Entry is a parsed log line kept for the logs API.
type Entry struct {
	Timestamp string         `json:"timestamp"`
	Level     string         `json:"level"`
	Component string         `json:"component,omitempty"`
	Message   string         `json:"message"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// Recent is an io.Writer that keeps the last N zerolog JSON entries.
type Recent struct {
	mu    sync.RWMutex
	buf   []Entry
	head  int
	count int
}

// NewRecent creates a buffer holding up to size entries.
func NewRecent(size int) *Recent {
	return &Recent{buf: make([]Entry, size)}
}

// Write implements io.Writer. Malformed lines are dropped.
func (r *Recent) Write(p []byte) (int, error) {
	var raw map[string]any
	if err := json.Unmarshal(p, &raw); err != nil {
		return len(p), nil //nolint:nilerr // never fail the log pipeline
	}

	e := Entry{Fields: make(map[string]any)}
	e.Timestamp, _ = raw["time"].(string)
	e.Level, _ = raw["level"].(string)
	e.Component, _ = raw["component"].(string)
	e.Message, _ = raw["message"].(string)
	for k, v := range raw {
		switch k {
		case "time", "level", "component", "message":
		default:
			e.Fields[k] = v
		}
	}

	r.mu.Lock()
	r.buf[(r.head+r.count)%len(r.buf)] = e
	if r.count < len(r.buf) {
		r.count++
	} else {
		r.head = (r.head + 1) % len(r.buf)
	}
	r.mu.Unlock()

	return len(p), nil
}

// Entries returns the buffered entries from oldest to newest.
func (r *Recent) Entries() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Entry, r.count)
	for i := 0; i < r.count; i++ {
		out[i] = r.buf[(r.head+i)%len(r.buf)]
	}
	return out
}
