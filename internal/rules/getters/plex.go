package getters

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/curatarr/curatarr/internal/plex"
	"github.com/curatarr/curatarr/internal/rules"
)

// PlexSource is the subset of the Plex client read by rules.
type PlexSource interface {
	GetMetadata(ctx context.Context, ratingKey string) (*plex.Metadata, error)
	GetAllLeaves(ctx context.Context, ratingKey string) ([]plex.Metadata, error)
	GetWatchHistory(ctx context.Context, ratingKey string) ([]plex.ViewRecord, error)
	AccountNames(ctx context.Context) (map[int]string, error)
	GetPlaylists(ctx context.Context) ([]plex.Playlist, error)
	GetPlaylistItems(ctx context.Context, playlistKey string) ([]plex.Metadata, error)
}

// PlexGetter reads properties from the media server.
type PlexGetter struct {
	plex   PlexSource
	logger zerolog.Logger
}

// NewPlexGetter creates a Plex getter.
func NewPlexGetter(source PlexSource, logger zerolog.Logger) *PlexGetter {
	return &PlexGetter{plex: source, logger: logger.With().Str("getter", "plex").Logger()}
}

// Get implements Source.
func (g *PlexGetter) Get(ctx context.Context, property int, item *plex.Metadata, group *rules.RuleGroup) rules.Value {
	v, err := g.get(ctx, property, item, group)
	if err != nil {
		return failed(g.logger, err, property, item)
	}
	return v
}

func (g *PlexGetter) get(ctx context.Context, property int, item *plex.Metadata, group *rules.RuleGroup) (rules.Value, error) {
	switch property {
	case rules.PlexAddDate:
		return rules.DateOrNull(item.AddedTime()), nil
	case rules.PlexReleaseDate:
		if t, ok := item.ReleaseDate(); ok {
			return rules.Date(t), nil
		}
		return rules.Null(), nil
	case rules.PlexUserRating:
		return ratingOrNull(item.UserRating), nil
	case rules.PlexCriticRating:
		return ratingOrNull(item.Rating), nil
	case rules.PlexAudienceRating:
		return ratingOrNull(item.AudienceRating), nil
	case rules.PlexViewCount:
		return rules.Int(item.ViewCount), nil
	case rules.PlexLastViewedAt:
		return rules.DateOrNull(item.LastViewedTime()), nil
	case rules.PlexVideoResolution:
		if len(item.Media) == 0 {
			return rules.Null(), nil
		}
		return rules.Text(item.Media[0].VideoResolution), nil
	case rules.PlexVideoCodec:
		if len(item.Media) == 0 {
			return rules.Null(), nil
		}
		return rules.Text(item.Media[0].VideoCodec), nil
	case rules.PlexBitrate:
		if len(item.Media) == 0 {
			return rules.Null(), nil
		}
		return rules.Int(item.Media[0].Bitrate), nil
	case rules.PlexEpisodes:
		return rules.Int(item.LeafCount), nil
	case rules.PlexViewedEpisodes:
		return rules.Int(item.ViewedLeafCount), nil
	case rules.PlexTitle:
		return rules.Text(item.Title), nil
	case rules.PlexYear:
		if item.Year == 0 {
			return rules.Null(), nil
		}
		return rules.Int(item.Year), nil

	case rules.PlexGenre, rules.PlexPeople, rules.PlexLabels:
		md, err := g.plex.GetMetadata(ctx, item.RatingKey)
		if err != nil {
			return rules.Unknown(), err
		}
		switch property {
		case rules.PlexGenre:
			return rules.List(plex.Tags(md.Genre)), nil
		case rules.PlexPeople:
			return rules.List(plex.Tags(md.Role)), nil
		default:
			return rules.List(plex.Tags(md.Label)), nil
		}

	case rules.PlexCollections, rules.PlexCollectionNames:
		names, err := g.collectionNames(ctx, item, group)
		if err != nil {
			return rules.Unknown(), err
		}
		if property == rules.PlexCollections {
			return rules.Int(len(names)), nil
		}
		return rules.List(names), nil

	case rules.PlexPlaylists, rules.PlexPlaylistNames:
		names, err := g.playlistNames(ctx, item)
		if err != nil {
			return rules.Unknown(), err
		}
		if property == rules.PlexPlaylists {
			return rules.Int(len(names)), nil
		}
		return rules.List(names), nil

	case rules.PlexSeenBy, rules.PlexWatchers:
		views, err := g.history(ctx, item)
		if err != nil {
			return rules.Unknown(), err
		}
		names, err := g.plex.AccountNames(ctx)
		if err != nil {
			return rules.Unknown(), err
		}
		users := nameSet{}
		for _, v := range views {
			users.add(names[v.AccountID])
		}
		return rules.List(users.sorted()), nil

	case rules.PlexLastWatched:
		views, err := g.history(ctx, item)
		if err != nil {
			return rules.Unknown(), err
		}
		var latest int64
		for _, v := range views {
			latest = max(latest, v.ViewedAt)
		}
		if latest == 0 {
			return rules.Null(), nil
		}
		return rules.Date(time.Unix(latest, 0)), nil

	case rules.PlexAmountOfViews:
		views, err := g.history(ctx, item)
		if err != nil {
			return rules.Unknown(), err
		}
		return rules.Int(len(views)), nil

	case rules.PlexAllEpisodesSeenBy:
		return g.allEpisodesSeenBy(ctx, item)

	case rules.PlexLastEpisodeAddedAt:
		leaves, err := g.plex.GetAllLeaves(ctx, item.RatingKey)
		if err != nil {
			return rules.Unknown(), err
		}
		var latest int64
		for _, ep := range leaves {
			latest = max(latest, ep.AddedAt)
		}
		if latest == 0 {
			return rules.Null(), nil
		}
		return rules.Date(time.Unix(latest, 0)), nil
	}
	return unknownProperty(g.logger, property), nil
}

func ratingOrNull(r float64) rules.Value {
	if r <= 0 {
		return rules.Null()
	}
	return rules.Number(r)
}

// history returns the plays that belong to item only. The server reports
// every play below a show, so season history is filtered to the season.
func (g *PlexGetter) history(ctx context.Context, item *plex.Metadata) ([]plex.ViewRecord, error) {
	key := item.RatingKey
	if plex.MediaType(item.Type) == plex.TypeSeason && item.ParentRatingKey != "" {
		key = item.ParentRatingKey
	}
	views, err := g.plex.GetWatchHistory(ctx, key)
	if err != nil {
		return nil, err
	}

	out := views[:0:0]
	for _, v := range views {
		switch plex.MediaType(item.Type) {
		case plex.TypeSeason:
			if v.ParentRatingKey != item.RatingKey {
				continue
			}
		case plex.TypeShow:
			if v.GrandparentRatingKey != item.RatingKey {
				continue
			}
		default:
			if v.RatingKey != item.RatingKey {
				continue
			}
		}
		out = append(out, v)
	}
	return out, nil
}

func (g *PlexGetter) allEpisodesSeenBy(ctx context.Context, item *plex.Metadata) (rules.Value, error) {
	leaves, err := g.plex.GetAllLeaves(ctx, item.RatingKey)
	if err != nil {
		return rules.Unknown(), err
	}
	if len(leaves) == 0 {
		return rules.List(nil), nil
	}
	views, err := g.history(ctx, item)
	if err != nil {
		return rules.Unknown(), err
	}
	names, err := g.plex.AccountNames(ctx)
	if err != nil {
		return rules.Unknown(), err
	}

	seen := map[int]map[string]bool{}
	for _, v := range views {
		if seen[v.AccountID] == nil {
			seen[v.AccountID] = map[string]bool{}
		}
		seen[v.AccountID][v.RatingKey] = true
	}

	users := nameSet{}
	for account, episodes := range seen {
		all := true
		for _, ep := range leaves {
			if !episodes[ep.RatingKey] {
				all = false
				break
			}
		}
		if all {
			users.add(names[account])
		}
	}
	return rules.List(users.sorted()), nil
}

// collectionNames returns the collections the item or its ancestors are
// in, excluding the group's own collection.
func (g *PlexGetter) collectionNames(ctx context.Context, item *plex.Metadata, group *rules.RuleGroup) ([]string, error) {
	keys := []string{item.RatingKey}
	if item.ParentRatingKey != "" {
		keys = append(keys, item.ParentRatingKey)
	}
	if item.GrandparentRatingKey != "" {
		keys = append(keys, item.GrandparentRatingKey)
	}

	names := nameSet{}
	for _, key := range keys {
		md, err := g.plex.GetMetadata(ctx, key)
		if err != nil {
			return nil, err
		}
		for _, c := range md.Collection {
			if group != nil && c.Tag == group.Name {
				continue
			}
			names.add(c.Tag)
		}
	}
	return names.sorted(), nil
}

// playlistNames returns the playlists containing the item, or for shows
// and seasons, any of their episodes.
func (g *PlexGetter) playlistNames(ctx context.Context, item *plex.Metadata) ([]string, error) {
	playlists, err := g.plex.GetPlaylists(ctx)
	if err != nil {
		return nil, err
	}
	names := nameSet{}
	for _, pl := range playlists {
		entries, err := g.plex.GetPlaylistItems(ctx, pl.RatingKey)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			if e.RatingKey == item.RatingKey || e.ParentRatingKey == item.RatingKey || e.GrandparentRatingKey == item.RatingKey {
				names.add(pl.Title)
				break
			}
		}
	}
	return names.sorted(), nil
}
