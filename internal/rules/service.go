package rules

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/curatarr/curatarr/internal/collections"
	"github.com/curatarr/curatarr/internal/plex"
)

// ItemSource loads a single library item.
type ItemSource interface {
	GetMetadata(ctx context.Context, ratingKey string) (*plex.Metadata, error)
}

// SaveInput is a rule group together with the settings of the collection
// it feeds.
type SaveInput struct {
	Name                 string             `json:"name"`
	Description          string             `json:"description"`
	LibraryID            string             `json:"libraryId"`
	DataType             plex.MediaType     `json:"dataType"`
	IsActive             bool               `json:"isActive"`
	UseRules             bool               `json:"useRules"`
	Rules                []Rule             `json:"rules"`
	ArrAction            collections.Action `json:"arrAction"`
	DeleteAfterDays      int                `json:"deleteAfterDays"`
	ListExclusions       bool               `json:"listExclusions"`
	ForceRequestSync     bool               `json:"forceRequestSync"`
	ManualCollection     bool               `json:"manualCollection"`
	ManualCollectionName string             `json:"manualCollectionName"`
}

func (in SaveInput) applyGroup(g *RuleGroup) {
	g.Name = in.Name
	g.Description = in.Description
	g.LibraryID = in.LibraryID
	g.DataType = in.DataType
	g.IsActive = in.IsActive
	g.UseRules = in.UseRules
	g.Rules = in.Rules
}

func (in SaveInput) applyCollection(c *collections.Collection) {
	c.Title = in.Name
	c.Description = in.Description
	c.LibraryID = in.LibraryID
	c.Type = in.DataType
	c.IsActive = in.IsActive
	c.ArrAction = in.ArrAction
	if c.ArrAction == "" {
		c.ArrAction = collections.ActionDoNothing
	}
	c.DeleteAfterDays = in.DeleteAfterDays
	c.ListExclusions = in.ListExclusions
	c.ForceRequestSync = in.ForceRequestSync
	c.ManualCollection = in.ManualCollection
	c.ManualCollectionName = in.ManualCollectionName
}

// TestResult is the outcome of evaluating a group against one item.
type TestResult struct {
	Matched bool      `json:"matched"`
	Stats   ItemStats `json:"stats"`
}

// Service manages rule groups.
type Service struct {
	store       *Store
	collections *collections.Service
	comparator  *Comparator
	items       ItemSource
	logger      zerolog.Logger
}

// NewService creates a new rule group service.
func NewService(store *Store, cols *collections.Service, comparator *Comparator, items ItemSource, logger zerolog.Logger) *Service {
	return &Service{
		store:       store,
		collections: cols,
		comparator:  comparator,
		items:       items,
		logger:      logger.With().Str("component", "rules").Logger(),
	}
}

// Get returns a rule group.
func (s *Service) Get(ctx context.Context, id int64) (*RuleGroup, error) {
	return s.store.Get(ctx, id)
}

// GetByCollection returns the rule group feeding a collection.
func (s *Service) GetByCollection(ctx context.Context, collectionID int64) (*RuleGroup, error) {
	return s.store.GetByCollection(ctx, collectionID)
}

// List returns every rule group.
func (s *Service) List(ctx context.Context) ([]*RuleGroup, error) {
	return s.store.List(ctx)
}

// Create validates and stores a new rule group and its collection.
func (s *Service) Create(ctx context.Context, in SaveInput) (*RuleGroup, error) {
	g := &RuleGroup{}
	in.applyGroup(g)
	if err := Validate(g); err != nil {
		return nil, err
	}
	col := &collections.Collection{}
	in.applyCollection(col)
	if err := col.Validate(); err != nil {
		return nil, err
	}

	if err := s.store.Create(ctx, g, col); err != nil {
		return nil, err
	}
	s.logger.Info().Int64("id", g.ID).Str("name", g.Name).Int("rules", len(g.Rules)).Msg("Created rule group")
	return g, nil
}

// Update validates and saves a rule group and its collection settings.
func (s *Service) Update(ctx context.Context, id int64, in SaveInput) (*RuleGroup, error) {
	g, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	in.applyGroup(g)
	if err := Validate(g); err != nil {
		return nil, err
	}
	col, err := s.collections.Get(ctx, g.CollectionID)
	if err != nil {
		return nil, err
	}
	in.applyCollection(col)
	if err := col.Validate(); err != nil {
		return nil, err
	}

	if err := s.store.Update(ctx, g, col); err != nil {
		return nil, err
	}
	s.logger.Info().Int64("id", g.ID).Str("name", g.Name).Msg("Updated rule group")
	return g, nil
}

// Delete removes a rule group, its collection and the mirrored Plex
// collection.
func (s *Service) Delete(ctx context.Context, id int64) error {
	g, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	col, err := s.collections.Get(ctx, g.CollectionID)
	if err == nil && !col.ManualCollection {
		if err := s.collections.DeletePlexCollection(ctx, col); err != nil {
			s.logger.Warn().Err(err).Int64("collectionId", col.ID).Msg("Failed to delete Plex collection")
		}
	}
	return s.store.Delete(ctx, id)
}

// Test evaluates a stored rule group against one library item and returns
// the per-rule trace.
func (s *Service) Test(ctx context.Context, groupID int64, plexID string) (*TestResult, error) {
	g, err := s.store.Get(ctx, groupID)
	if err != nil {
		return nil, err
	}
	item, err := s.items.GetMetadata(ctx, plexID)
	if err != nil {
		return nil, fmt.Errorf("load item %s: %w", plexID, err)
	}

	res := s.comparator.Evaluate(ctx, g, []plex.Metadata{*item}, true)
	out := &TestResult{Matched: len(res.Matched) > 0}
	if len(res.Stats) > 0 {
		out.Stats = res.Stats[0]
	}
	return out, nil
}
