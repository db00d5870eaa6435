package health

import (
	"time"

	"github.com/goccy/go-json"
)

// Status represents the health state of a connection.
type Status string

const (
	StatusOK           Status = "ok"
	StatusError        Status = "error"
	StatusUnconfigured Status = "unconfigured"
)

// Item is a single tracked external application.
type Item struct {
	Name        string     `json:"name"`
	Status      Status     `json:"status"`
	Message     string     `json:"message,omitempty"`
	Since       *time.Time `json:"since,omitempty"`
	LastChecked *time.Time `json:"lastChecked,omitempty"`
}

// MarshalJSON omits the message and timestamp of healthy items.
func (i Item) MarshalJSON() ([]byte, error) {
	type alias Item
	a := alias(i)
	if i.Status == StatusOK {
		a.Message = ""
		a.Since = nil
	}
	return json.Marshal(a)
}

// Summary counts items per status.
type Summary struct {
	OK           int  `json:"ok"`
	Error        int  `json:"error"`
	Unconfigured int  `json:"unconfigured"`
	HasIssues    bool `json:"hasIssues"`
}
