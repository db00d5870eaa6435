package getters

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/curatarr/curatarr/internal/plex"
	"github.com/curatarr/curatarr/internal/rules"
	"github.com/curatarr/curatarr/internal/tautulli"
)

// TautulliSource is the subset of the Tautulli client read by rules.
type TautulliSource interface {
	IsConfigured() bool
	GetHistory(ctx context.Context, scope tautulli.Scope, ratingKey string) ([]tautulli.HistoryEntry, error)
	GetMetadata(ctx context.Context, ratingKey string) (*tautulli.Metadata, error)
}

// LeafSource lists the episodes below a show or season.
type LeafSource interface {
	GetAllLeaves(ctx context.Context, ratingKey string) ([]plex.Metadata, error)
}

// TautulliGetter reads watch statistics from Tautulli. Tautulli keys on
// Plex rating keys, so no id translation is needed.
type TautulliGetter struct {
	tautulli TautulliSource
	leaves   LeafSource
	logger   zerolog.Logger
}

// NewTautulliGetter creates a Tautulli getter.
func NewTautulliGetter(client TautulliSource, leaves LeafSource, logger zerolog.Logger) *TautulliGetter {
	return &TautulliGetter{tautulli: client, leaves: leaves, logger: logger.With().Str("getter", "tautulli").Logger()}
}

// Get implements Source.
func (g *TautulliGetter) Get(ctx context.Context, property int, item *plex.Metadata, _ *rules.RuleGroup) rules.Value {
	if !g.tautulli.IsConfigured() {
		return failed(g.logger, tautulli.ErrNotConfigured, property, item)
	}
	v, err := g.get(ctx, property, item)
	if err != nil {
		return failed(g.logger, err, property, item)
	}
	return v
}

func historyScope(item *plex.Metadata) tautulli.Scope {
	switch plex.MediaType(item.Type) {
	case plex.TypeShow:
		return tautulli.ScopeGrandparent
	case plex.TypeSeason:
		return tautulli.ScopeParent
	}
	return tautulli.ScopeItem
}

func (g *TautulliGetter) get(ctx context.Context, property int, item *plex.Metadata) (rules.Value, error) {
	if property == rules.TautulliAddDate {
		md, err := g.tautulli.GetMetadata(ctx, item.RatingKey)
		if err != nil {
			return rules.Unknown(), err
		}
		if md == nil {
			return rules.Null(), nil
		}
		return rules.DateOrNull(md.AddedAt), nil
	}

	history, err := g.tautulli.GetHistory(ctx, historyScope(item), item.RatingKey)
	if err != nil {
		return rules.Unknown(), err
	}

	switch property {
	case rules.TautulliSeenBy:
		users := nameSet{}
		for _, h := range history {
			if h.Watched {
				users.add(h.User)
			}
		}
		return rules.List(users.sorted()), nil

	case rules.TautulliWatchers:
		users := nameSet{}
		for _, h := range history {
			users.add(h.User)
		}
		return rules.List(users.sorted()), nil

	case rules.TautulliLastViewedAt:
		var latest time.Time
		for _, h := range history {
			if h.Stopped.After(latest) {
				latest = h.Stopped
			}
		}
		return rules.DateOrNull(latest), nil

	case rules.TautulliViewCount, rules.TautulliAmountOfViews:
		n := 0
		for _, h := range history {
			if h.Watched {
				n++
			}
		}
		return rules.Int(n), nil

	case rules.TautulliViewedEpisodes:
		episodes := nameSet{}
		for _, h := range history {
			if h.Watched {
				episodes.add(h.RatingKey)
			}
		}
		return rules.Int(len(episodes)), nil

	case rules.TautulliAllEpisodesSeenBy:
		leaves, err := g.leaves.GetAllLeaves(ctx, item.RatingKey)
		if err != nil {
			return rules.Unknown(), err
		}
		if len(leaves) == 0 {
			return rules.List(nil), nil
		}
		watched := map[string]nameSet{}
		for _, h := range history {
			if !h.Watched {
				continue
			}
			if watched[h.User] == nil {
				watched[h.User] = nameSet{}
			}
			watched[h.User].add(h.RatingKey)
		}
		users := nameSet{}
		for user, episodes := range watched {
			all := true
			for _, ep := range leaves {
				if !episodes[ep.RatingKey] {
					all = false
					break
				}
			}
			if all {
				users.add(user)
			}
		}
		return rules.List(users.sorted()), nil
	}
	return unknownProperty(g.logger, property), nil
}
