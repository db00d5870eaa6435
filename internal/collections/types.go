// Package collections persists rule-derived collections, their members and
// exclusions, and mirrors membership into Plex collections.
package collections

import (
	"fmt"
	"time"

	"github.com/curatarr/curatarr/internal/plex"
)

// Action is what happens to a member once it has been in the collection
// for DeleteAfterDays.
type Action string

const (
	ActionDelete                  Action = "delete"
	ActionUnmonitor               Action = "unmonitor"
	ActionUnmonitorDeleteExisting Action = "unmonitor_delete_existing"
	ActionUnmonitorDeleteAll      Action = "unmonitor_delete_all"
	ActionDoNothing               Action = "do_nothing"
)

// Valid reports whether a is a known action.
func (a Action) Valid() bool {
	switch a {
	case ActionDelete, ActionUnmonitor, ActionUnmonitorDeleteExisting, ActionUnmonitorDeleteAll, ActionDoNothing:
		return true
	}
	return false
}

// Collection is the durable set of items a rule group selected.
type Collection struct {
	ID                   int64          `json:"id"`
	Title                string         `json:"title"`
	Description          string         `json:"description"`
	LibraryID            string         `json:"libraryId"`
	PlexCollectionKey    string         `json:"plexCollectionKey,omitempty"`
	Type                 plex.MediaType `json:"type"`
	ArrAction            Action         `json:"arrAction"`
	DeleteAfterDays      int            `json:"deleteAfterDays"`
	ListExclusions       bool           `json:"listExclusions"`
	ForceRequestSync     bool           `json:"forceRequestSync"`
	ManualCollection     bool           `json:"manualCollection"`
	ManualCollectionName string         `json:"manualCollectionName,omitempty"`
	IsActive             bool           `json:"isActive"`
	HandledMediaCount    int            `json:"handledMediaCount"`
	LastDurationMs       int64          `json:"lastDurationMs"`
	CreatedAt            time.Time      `json:"createdAt"`
	UpdatedAt            time.Time      `json:"updatedAt"`
}

// Validate checks the settings a user can edit.
func (c *Collection) Validate() error {
	switch {
	case c.Title == "":
		return fmt.Errorf("%w: title is required", ErrInvalid)
	case c.LibraryID == "":
		return fmt.Errorf("%w: library is required", ErrInvalid)
	case !c.ArrAction.Valid():
		return fmt.Errorf("%w: unknown action %q", ErrInvalid, c.ArrAction)
	case c.DeleteAfterDays < 0:
		return fmt.Errorf("%w: deleteAfterDays must not be negative", ErrInvalid)
	case c.ManualCollection && c.ManualCollectionName == "":
		return fmt.Errorf("%w: manual collection requires a name", ErrInvalid)
	}
	return nil
}

// PlexTitle is the name of the mirrored Plex collection.
func (c *Collection) PlexTitle() string {
	if c.ManualCollection && c.ManualCollectionName != "" {
		return c.ManualCollectionName
	}
	return c.Title
}

// Member is an item in a collection.
type Member struct {
	ID           int64     `json:"id"`
	CollectionID int64     `json:"collectionId"`
	PlexID       string    `json:"plexId"`
	TmdbID       int       `json:"tmdbId,omitempty"`
	TvdbID       int       `json:"tvdbId,omitempty"`
	AddDate      time.Time `json:"addDate"`
	IsManual     bool      `json:"isManual"`
}

// Due reports whether the member has been in the collection for at least
// days at now.
func (m *Member) Due(days int, now time.Time) bool {
	return !now.Before(m.AddDate.Add(time.Duration(days) * 24 * time.Hour))
}

// Exclusion keeps an item out of a rule group's collection. A nil
// RuleGroupID excludes the item from every group.
type Exclusion struct {
	ID           int64     `json:"id"`
	PlexID       string    `json:"plexId"`
	ParentPlexID string    `json:"parentPlexId,omitempty"`
	RuleGroupID  *int64    `json:"ruleGroupId,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// LogType classifies collection log entries.
type LogType string

const (
	LogMediaAdded   LogType = "media_added"
	LogMediaRemoved LogType = "media_removed"
	LogMediaHandled LogType = "media_handled"
	LogRuleRun      LogType = "rule_run"
)

// LogEntry is one line of a collection's history.
type LogEntry struct {
	ID           string    `json:"id"`
	CollectionID int64     `json:"collectionId"`
	Timestamp    time.Time `json:"timestamp"`
	Message      string    `json:"message"`
	Type         LogType   `json:"type"`
}
