package plex

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/curatarr/curatarr/internal/cache"
)

// GetCollections lists the collections of a library.
func (c *Client) GetCollections(ctx context.Context, libraryID string) ([]Collection, error) {
	var resp mediaContainer[Collection]
	if err := c.getJSON(ctx, "/library/sections/"+libraryID+"/collections", nil, &resp); err != nil {
		return nil, err
	}
	return resp.MediaContainer.Metadata, nil
}

// FindCollection returns the library collection with the given title.
func (c *Client) FindCollection(ctx context.Context, libraryID, title string) (*Collection, error) {
	cols, err := c.GetCollections(ctx, libraryID)
	if err != nil {
		return nil, err
	}
	for i := range cols {
		if cols[i].Title == title {
			return &cols[i], nil
		}
	}
	return nil, ErrNotFound
}

// CreateCollection creates an empty collection in a library.
func (c *Client) CreateCollection(ctx context.Context, libraryID, title string, typ MediaType) (*Collection, error) {
	query := url.Values{}
	query.Set("type", itoa(typ.TypeNumber()))
	query.Set("title", title)
	query.Set("smart", "0")
	query.Set("sectionId", libraryID)

	body, err := c.do(ctx, http.MethodPost, "/library/collections", query)
	if err != nil {
		return nil, err
	}
	var resp mediaContainer[Collection]
	if err := decode(body, &resp); err != nil {
		return nil, err
	}
	if len(resp.MediaContainer.Metadata) == 0 {
		return nil, fmt.Errorf("%w: create collection returned no metadata", ErrAPIError)
	}
	c.logger.Info().Str("title", title).Str("libraryId", libraryID).Msg("Created Plex collection")
	return &resp.MediaContainer.Metadata[0], nil
}

// GetCollectionChildren lists the items in a collection.
func (c *Client) GetCollectionChildren(ctx context.Context, collectionKey string) ([]Metadata, error) {
	var resp mediaContainer[Metadata]
	if err := c.getJSON(ctx, "/library/collections/"+collectionKey+"/children", nil, &resp); err != nil {
		return nil, err
	}
	return resp.MediaContainer.Metadata, nil
}

// AddToCollection adds an item to a collection.
func (c *Client) AddToCollection(ctx context.Context, collectionKey, ratingKey string) error {
	machineID, err := c.MachineIdentifier(ctx)
	if err != nil {
		return err
	}
	query := url.Values{}
	query.Set("uri", fmt.Sprintf("server://%s/com.plexapp.plugins.library/library/metadata/%s", machineID, ratingKey))

	_, err = c.do(ctx, http.MethodPut, "/library/collections/"+collectionKey+"/items", query)
	return err
}

// RemoveFromCollection removes an item from a collection.
func (c *Client) RemoveFromCollection(ctx context.Context, collectionKey, ratingKey string) error {
	_, err := c.do(ctx, http.MethodDelete, "/library/collections/"+collectionKey+"/items/"+ratingKey, nil)
	return err
}

// DeleteCollection deletes a collection (not its items).
func (c *Client) DeleteCollection(ctx context.Context, collectionKey string) error {
	_, err := c.do(ctx, http.MethodDelete, "/library/collections/"+collectionKey, nil)
	return err
}

func fetchCached[T any](ctx context.Context, c *Client, key string, load func(ctx context.Context) (T, error)) (T, error) {
	return cache.Fetch(ctx, c.cache, key, load)
}
