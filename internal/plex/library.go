package plex

import (
	"context"
	"net/http"
	"net/url"
)

// GetLibraries lists the library sections.
func (c *Client) GetLibraries(ctx context.Context) ([]Library, error) {
	var resp mediaContainer[Library]
	if err := c.getJSON(ctx, "/library/sections", nil, &resp); err != nil {
		return nil, err
	}
	return resp.MediaContainer.Directory, nil
}

// GetLibraryPage returns size items of a library starting at offset.
// An empty media type lists the section's default type.
func (c *Client) GetLibraryPage(ctx context.Context, libraryID string, offset, size int, typ MediaType) (*Page, error) {
	query := url.Values{}
	query.Set("X-Plex-Container-Start", itoa(offset))
	query.Set("X-Plex-Container-Size", itoa(size))
	query.Set("includeGuids", "1")
	if n := typ.TypeNumber(); n > 0 {
		query.Set("type", itoa(n))
	}

	var resp mediaContainer[Metadata]
	if err := c.getJSON(ctx, "/library/sections/"+libraryID+"/all", query, &resp); err != nil {
		return nil, err
	}
	return &Page{
		Items:     resp.MediaContainer.Metadata,
		Offset:    offset,
		TotalSize: resp.MediaContainer.TotalSize,
	}, nil
}

// GetMetadata returns a single item.
func (c *Client) GetMetadata(ctx context.Context, ratingKey string) (*Metadata, error) {
	return fetchCached(ctx, c, "plex:metadata:"+ratingKey, func(ctx context.Context) (*Metadata, error) {
		var resp mediaContainer[Metadata]
		query := url.Values{"includeGuids": {"1"}}
		if err := c.getJSON(ctx, "/library/metadata/"+ratingKey, query, &resp); err != nil {
			return nil, err
		}
		if len(resp.MediaContainer.Metadata) == 0 {
			return nil, ErrNotFound
		}
		return &resp.MediaContainer.Metadata[0], nil
	})
}

// GetChildren returns the direct children (seasons of a show, episodes of a season).
func (c *Client) GetChildren(ctx context.Context, ratingKey string) ([]Metadata, error) {
	return fetchCached(ctx, c, "plex:children:"+ratingKey, func(ctx context.Context) ([]Metadata, error) {
		var resp mediaContainer[Metadata]
		if err := c.getJSON(ctx, "/library/metadata/"+ratingKey+"/children", nil, &resp); err != nil {
			return nil, err
		}
		return resp.MediaContainer.Metadata, nil
	})
}

// GetAllLeaves returns all episodes below a show or season.
func (c *Client) GetAllLeaves(ctx context.Context, ratingKey string) ([]Metadata, error) {
	return fetchCached(ctx, c, "plex:leaves:"+ratingKey, func(ctx context.Context) ([]Metadata, error) {
		var resp mediaContainer[Metadata]
		if err := c.getJSON(ctx, "/library/metadata/"+ratingKey+"/allLeaves", nil, &resp); err != nil {
			return nil, err
		}
		return resp.MediaContainer.Metadata, nil
	})
}

// GetWatchHistory returns every recorded play of an item. For shows and
// seasons Plex includes the plays of their episodes.
func (c *Client) GetWatchHistory(ctx context.Context, ratingKey string) ([]ViewRecord, error) {
	return fetchCached(ctx, c, "plex:history:"+ratingKey, func(ctx context.Context) ([]ViewRecord, error) {
		query := url.Values{}
		query.Set("sort", "viewedAt:desc")
		query.Set("metadataItemID", ratingKey)

		var resp mediaContainer[ViewRecord]
		if err := c.getJSON(ctx, "/status/sessions/history/all", query, &resp); err != nil {
			return nil, err
		}
		return resp.MediaContainer.Metadata, nil
	})
}

// GetPlaylists lists the server owner's video playlists.
func (c *Client) GetPlaylists(ctx context.Context) ([]Playlist, error) {
	return fetchCached(ctx, c, "plex:playlists", func(ctx context.Context) ([]Playlist, error) {
		var resp mediaContainer[Playlist]
		if err := c.getJSON(ctx, "/playlists", url.Values{"playlistType": {"video"}}, &resp); err != nil {
			return nil, err
		}
		return resp.MediaContainer.Metadata, nil
	})
}

// GetPlaylistItems lists the items of a playlist.
func (c *Client) GetPlaylistItems(ctx context.Context, playlistKey string) ([]Metadata, error) {
	return fetchCached(ctx, c, "plex:playlist:"+playlistKey, func(ctx context.Context) ([]Metadata, error) {
		var resp mediaContainer[Metadata]
		if err := c.getJSON(ctx, "/playlists/"+playlistKey+"/items", nil, &resp); err != nil {
			return nil, err
		}
		return resp.MediaContainer.Metadata, nil
	})
}

// DeleteItem removes an item and its files from the server.
func (c *Client) DeleteItem(ctx context.Context, ratingKey string) error {
	_, err := c.do(ctx, http.MethodDelete, "/library/metadata/"+ratingKey, nil)
	if err != nil {
		return err
	}
	c.cache.DeletePrefix("plex:")
	c.logger.Info().Str("ratingKey", ratingKey).Msg("Deleted item from Plex")
	return nil
}
