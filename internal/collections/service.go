package collections

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/curatarr/curatarr/internal/metrics"
	"github.com/curatarr/curatarr/internal/plex"
)

// PlexCollections is the subset of the Plex client used to mirror
// membership.
type PlexCollections interface {
	IsConfigured() bool
	FindCollection(ctx context.Context, libraryID, title string) (*plex.Collection, error)
	CreateCollection(ctx context.Context, libraryID, title string, typ plex.MediaType) (*plex.Collection, error)
	GetCollectionChildren(ctx context.Context, collectionKey string) ([]plex.Metadata, error)
	AddToCollection(ctx context.Context, collectionKey, ratingKey string) error
	RemoveFromCollection(ctx context.Context, collectionKey, ratingKey string) error
	DeleteCollection(ctx context.Context, collectionKey string) error
}

// Service manages collection membership and keeps the Plex collection in
// step with it.
type Service struct {
	store  *Store
	plex   PlexCollections
	logger zerolog.Logger

	// pending holds Plex writes that failed, per collection and item. The
	// manual sync retries them instead of reading the stale Plex state as
	// a user edit.
	mu      sync.Mutex
	pending map[int64]map[string]mirrorOp
}

type mirrorOp int

const (
	mirrorAdd mirrorOp = iota + 1
	mirrorRemove
)

// NewService creates a new collection service.
func NewService(store *Store, plexClient PlexCollections, logger zerolog.Logger) *Service {
	return &Service{
		store:   store,
		plex:    plexClient,
		logger:  logger.With().Str("component", "collections").Logger(),
		pending: make(map[int64]map[string]mirrorOp),
	}
}

// Store returns the underlying store.
func (s *Service) Store() *Store {
	return s.store
}

// Get returns a collection by id.
func (s *Service) Get(ctx context.Context, id int64) (*Collection, error) {
	return s.store.Get(ctx, id)
}

// List returns every collection.
func (s *Service) List(ctx context.Context) ([]*Collection, error) {
	return s.store.List(ctx)
}

// Update saves the editable settings of a collection.
func (s *Service) Update(ctx context.Context, c *Collection) error {
	if err := c.Validate(); err != nil {
		return err
	}
	return s.store.Update(ctx, c)
}

// Members returns the members of a collection.
func (s *Service) Members(ctx context.Context, id int64) ([]Member, error) {
	return s.store.Members(ctx, id)
}

// Add inserts members into c and mirrors them into Plex. Members already
// present are left untouched. Returns the number of new members.
func (s *Service) Add(ctx context.Context, c *Collection, members []Member) (int, error) {
	if len(members) == 0 {
		return 0, nil
	}
	added, err := s.store.AddMembers(ctx, c.ID, members)
	if err != nil {
		return 0, err
	}

	key, err := s.ensurePlexCollection(ctx, c)
	if err != nil {
		s.logger.Warn().Err(err).Int64("collectionId", c.ID).Msg("Plex collection unavailable, membership saved locally")
	}
	for _, m := range members {
		if key != "" {
			if err := s.plex.AddToCollection(ctx, key, m.PlexID); err != nil {
				s.logger.Warn().Err(err).Str("plexId", m.PlexID).Msg("Failed to add item to Plex collection")
				s.setPending(c.ID, m.PlexID, mirrorAdd)
			} else {
				s.clearPending(c.ID, m.PlexID)
			}
		} else if s.plexConfigured() {
			s.setPending(c.ID, m.PlexID, mirrorAdd)
		}
		s.log(ctx, c.ID, LogMediaAdded, "Added %s to collection", m.PlexID)
	}
	return added, nil
}

// Remove deletes members from c and from the Plex collection. An emptied
// Plex collection is deleted unless it is a manually named one.
func (s *Service) Remove(ctx context.Context, c *Collection, plexIDs []string) (int, error) {
	if len(plexIDs) == 0 {
		return 0, nil
	}
	removed, err := s.store.RemoveMembers(ctx, c.ID, plexIDs)
	if err != nil {
		return 0, err
	}

	for _, id := range plexIDs {
		// An item whose Plex add never landed has nothing to remove there.
		neverMirrored := s.pendingOp(c.ID, id) == mirrorAdd
		s.clearPending(c.ID, id)
		if c.PlexCollectionKey != "" && s.plexConfigured() && !neverMirrored {
			if err := s.plex.RemoveFromCollection(ctx, c.PlexCollectionKey, id); err != nil {
				s.logger.Warn().Err(err).Str("plexId", id).Msg("Failed to remove item from Plex collection")
				s.setPending(c.ID, id, mirrorRemove)
			}
		}
		s.log(ctx, c.ID, LogMediaRemoved, "Removed %s from collection", id)
	}

	if err := s.dropEmptyPlexCollection(ctx, c); err != nil {
		s.logger.Warn().Err(err).Int64("collectionId", c.ID).Msg("Failed to delete empty Plex collection")
	}
	return removed, nil
}

// AddManual pins an item in the collection. The member is never removed by
// rule runs.
func (s *Service) AddManual(ctx context.Context, collectionID int64, plexID string) error {
	c, err := s.store.Get(ctx, collectionID)
	if err != nil {
		return err
	}
	if _, err := s.Add(ctx, c, []Member{{PlexID: plexID, IsManual: true}}); err != nil {
		return err
	}
	// The item may already have been a rule-derived member.
	return s.store.SetManual(ctx, collectionID, plexID, true)
}

// RemoveManual takes an item out of the collection and excludes it from
// the owning rule group so the next run does not add it back.
func (s *Service) RemoveManual(ctx context.Context, collectionID int64, plexID string) error {
	c, err := s.store.Get(ctx, collectionID)
	if err != nil {
		return err
	}
	n, err := s.Remove(ctx, c, []string{plexID})
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrMemberNotFound
	}

	groupID, err := s.store.RuleGroupIDForCollection(ctx, collectionID)
	if err != nil {
		return err
	}
	if groupID == 0 {
		return nil
	}
	return s.store.AddExclusion(ctx, &Exclusion{PlexID: plexID, RuleGroupID: &groupID})
}

// SyncResult counts the changes made by a manual sync.
type SyncResult struct {
	Added   int `json:"added"`
	Removed int `json:"removed"`
}

// SyncManual reconciles the Plex collection with the store after a user
// edited it by hand. Items present in Plex but not in the store become
// manual members. Members missing from Plex are removed; rule-derived ones
// are also excluded from the owning rule group so the next run does not add
// them back.
func (s *Service) SyncManual(ctx context.Context, c *Collection) (SyncResult, error) {
	var res SyncResult
	if !s.plexConfigured() || c.PlexCollectionKey == "" {
		return res, nil
	}
	children, err := s.plex.GetCollectionChildren(ctx, c.PlexCollectionKey)
	if errors.Is(err, plex.ErrNotFound) {
		// Deleted in Plex; recreated on the next add.
		c.PlexCollectionKey = ""
		return res, s.store.SetPlexCollectionKey(ctx, c.ID, "")
	}
	if err != nil {
		return res, fmt.Errorf("list Plex collection: %w", err)
	}

	members, err := s.store.Members(ctx, c.ID)
	if err != nil {
		return res, err
	}
	known := make(map[string]bool, len(members))
	for _, m := range members {
		known[m.PlexID] = true
	}
	inPlex := make(map[string]bool, len(children))
	var missing []Member
	for _, child := range children {
		inPlex[child.RatingKey] = true
		if known[child.RatingKey] {
			continue
		}
		if s.pendingOp(c.ID, child.RatingKey) == mirrorRemove {
			s.retryMirror(ctx, c, child.RatingKey, mirrorRemove)
			continue
		}
		missing = append(missing, Member{PlexID: child.RatingKey, IsManual: true})
	}

	var gone []Member
	for _, m := range members {
		if inPlex[m.PlexID] {
			s.clearPending(c.ID, m.PlexID)
			continue
		}
		if s.pendingOp(c.ID, m.PlexID) == mirrorAdd {
			s.retryMirror(ctx, c, m.PlexID, mirrorAdd)
			continue
		}
		gone = append(gone, m)
	}

	if len(missing) > 0 {
		if res.Added, err = s.store.AddMembers(ctx, c.ID, missing); err != nil {
			return res, err
		}
		for _, m := range missing {
			s.log(ctx, c.ID, LogMediaAdded, "Added %s from Plex collection", m.PlexID)
		}
	}

	if len(gone) > 0 {
		if res.Removed, err = s.removeUnlisted(ctx, c, gone); err != nil {
			return res, err
		}
	}
	return res, nil
}

// removeUnlisted drops members a user took out of the Plex collection.
func (s *Service) removeUnlisted(ctx context.Context, c *Collection, gone []Member) (int, error) {
	ids := make([]string, 0, len(gone))
	for _, m := range gone {
		ids = append(ids, m.PlexID)
	}
	removed, err := s.store.RemoveMembers(ctx, c.ID, ids)
	if err != nil {
		return 0, err
	}

	groupID, err := s.store.RuleGroupIDForCollection(ctx, c.ID)
	if err != nil {
		return removed, err
	}
	for _, m := range gone {
		s.log(ctx, c.ID, LogMediaRemoved, "Removed %s, no longer in Plex collection", m.PlexID)
		if m.IsManual || groupID == 0 {
			continue
		}
		if err := s.store.AddExclusion(ctx, &Exclusion{PlexID: m.PlexID, RuleGroupID: &groupID}); err != nil {
			return removed, err
		}
	}
	return removed, nil
}

func (s *Service) retryMirror(ctx context.Context, c *Collection, plexID string, op mirrorOp) {
	var err error
	if op == mirrorAdd {
		err = s.plex.AddToCollection(ctx, c.PlexCollectionKey, plexID)
	} else {
		err = s.plex.RemoveFromCollection(ctx, c.PlexCollectionKey, plexID)
	}
	if err != nil {
		s.logger.Warn().Err(err).Str("plexId", plexID).Msg("Failed to update Plex collection")
		return
	}
	s.clearPending(c.ID, plexID)
}

func (s *Service) setPending(collectionID int64, plexID string, op mirrorOp) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending[collectionID] == nil {
		s.pending[collectionID] = make(map[string]mirrorOp)
	}
	s.pending[collectionID][plexID] = op
}

func (s *Service) clearPending(collectionID int64, plexID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending[collectionID], plexID)
}

func (s *Service) pendingOp(collectionID int64, plexID string) mirrorOp {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending[collectionID][plexID]
}

// Exclusions returns every exclusion.
func (s *Service) Exclusions(ctx context.Context) ([]Exclusion, error) {
	return s.store.Exclusions(ctx)
}

// AddExclusion excludes an item from a rule group, or from every group
// when e.RuleGroupID is nil. Existing members are removed from the
// affected collections.
func (s *Service) AddExclusion(ctx context.Context, e *Exclusion) error {
	if e.PlexID == "" {
		return fmt.Errorf("%w: exclusion requires a plex id", ErrInvalid)
	}
	if err := s.store.AddExclusion(ctx, e); err != nil {
		return err
	}

	cols, err := s.store.List(ctx)
	if err != nil {
		return err
	}
	for _, c := range cols {
		if e.RuleGroupID != nil {
			groupID, err := s.store.RuleGroupIDForCollection(ctx, c.ID)
			if err != nil || groupID != *e.RuleGroupID {
				continue
			}
		}
		if _, err := s.Remove(ctx, c, []string{e.PlexID}); err != nil {
			s.logger.Warn().Err(err).Int64("collectionId", c.ID).Msg("Failed to remove excluded item")
		}
	}
	return nil
}

// RemoveExclusion deletes an exclusion by id.
func (s *Service) RemoveExclusion(ctx context.Context, id int64) error {
	return s.store.RemoveExclusion(ctx, id)
}

// Logs returns the newest log lines of a collection.
func (s *Service) Logs(ctx context.Context, collectionID int64, limit int) ([]LogEntry, error) {
	return s.store.Logs(ctx, collectionID, limit)
}

// Log appends a log line to a collection. Failures are only logged.
func (s *Service) Log(ctx context.Context, collectionID int64, typ LogType, format string, args ...any) {
	s.log(ctx, collectionID, typ, format, args...)
}

// RecordRun stores the duration of a rule run and refreshes the size gauge.
func (s *Service) RecordRun(ctx context.Context, c *Collection, added, removed int, d time.Duration) {
	if err := s.store.RecordRun(ctx, c.ID, d); err != nil {
		s.logger.Error().Err(err).Int64("collectionId", c.ID).Msg("Failed to record run duration")
	}
	size := 0
	if members, err := s.store.Members(ctx, c.ID); err == nil {
		size = len(members)
	}
	metrics.RecordMembership(c.Title, added, removed, size)
}

func (s *Service) log(ctx context.Context, collectionID int64, typ LogType, format string, args ...any) {
	if err := s.store.AddLog(ctx, collectionID, typ, fmt.Sprintf(format, args...)); err != nil {
		s.logger.Error().Err(err).Int64("collectionId", collectionID).Msg("Failed to write collection log")
	}
}

func (s *Service) plexConfigured() bool {
	return s.plex != nil && s.plex.IsConfigured()
}

// ensurePlexCollection returns the key of the mirrored Plex collection,
// finding or creating it when needed.
func (s *Service) ensurePlexCollection(ctx context.Context, c *Collection) (string, error) {
	if !s.plexConfigured() {
		return "", nil
	}
	if c.PlexCollectionKey != "" {
		return c.PlexCollectionKey, nil
	}

	pc, err := s.plex.FindCollection(ctx, c.LibraryID, c.PlexTitle())
	if errors.Is(err, plex.ErrNotFound) {
		pc, err = s.plex.CreateCollection(ctx, c.LibraryID, c.PlexTitle(), c.Type)
	}
	if err != nil {
		return "", err
	}
	if err := s.store.SetPlexCollectionKey(ctx, c.ID, pc.RatingKey); err != nil {
		return "", err
	}
	c.PlexCollectionKey = pc.RatingKey
	return pc.RatingKey, nil
}

// DeletePlexCollection removes the mirrored Plex collection of c, if any.
func (s *Service) DeletePlexCollection(ctx context.Context, c *Collection) error {
	if c.PlexCollectionKey == "" || !s.plexConfigured() {
		return nil
	}
	if err := s.plex.DeleteCollection(ctx, c.PlexCollectionKey); err != nil && !errors.Is(err, plex.ErrNotFound) {
		return err
	}
	c.PlexCollectionKey = ""
	return nil
}

func (s *Service) dropEmptyPlexCollection(ctx context.Context, c *Collection) error {
	if c.PlexCollectionKey == "" || c.ManualCollection || !s.plexConfigured() {
		return nil
	}
	members, err := s.store.Members(ctx, c.ID)
	if err != nil || len(members) > 0 {
		return err
	}
	if err := s.plex.DeleteCollection(ctx, c.PlexCollectionKey); err != nil && !errors.Is(err, plex.ErrNotFound) {
		return err
	}
	c.PlexCollectionKey = ""
	return s.store.SetPlexCollectionKey(ctx, c.ID, "")
}
