package arr

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/curatarr/curatarr/internal/cache"
	"github.com/curatarr/curatarr/internal/config"
)

// RadarrClient talks to a Radarr instance.
type RadarrClient struct {
	client
}

// NewRadarrClient creates a Radarr client. The cache may be nil.
func NewRadarrClient(cfg config.ArrConfig, c *cache.Cache, logger zerolog.Logger) *RadarrClient {
	return &RadarrClient{client: newClient("radarr", cfg, c, logger)}
}

// IsConfigured returns true if the URL and API key are set.
func (r *RadarrClient) IsConfigured() bool {
	return r.configured()
}

// GetMovieByTmdbID returns the movie with the given TMDB id, or nil if
// Radarr does not know it.
func (r *RadarrClient) GetMovieByTmdbID(ctx context.Context, tmdbID int) (*Movie, error) {
	key := "radarr:movie:tmdb:" + strconv.Itoa(tmdbID)
	return cache.Fetch(ctx, r.cache, key, func(ctx context.Context) (*Movie, error) {
		var movies []Movie
		query := url.Values{"tmdbId": {strconv.Itoa(tmdbID)}}
		if err := r.do(ctx, http.MethodGet, "/movie", query, nil, &movies); err != nil {
			return nil, err
		}
		if len(movies) == 0 {
			return nil, nil
		}
		return &movies[0], nil
	})
}

// GetMovie returns a movie by Radarr id.
func (r *RadarrClient) GetMovie(ctx context.Context, id int) (*Movie, error) {
	var movie Movie
	if err := r.do(ctx, http.MethodGet, "/movie/"+strconv.Itoa(id), nil, nil, &movie); err != nil {
		return nil, err
	}
	return &movie, nil
}

// UpdateMovie saves a movie record.
func (r *RadarrClient) UpdateMovie(ctx context.Context, movie *Movie) error {
	defer r.invalidate()
	return r.do(ctx, http.MethodPut, "/movie/"+strconv.Itoa(movie.ID), nil, movie, nil)
}

// DeleteMovie removes a movie, optionally with its files and an import
// exclusion so lists do not add it back.
func (r *RadarrClient) DeleteMovie(ctx context.Context, id int, deleteFiles, addExclusion bool) error {
	defer r.invalidate()
	query := url.Values{}
	query.Set("deleteFiles", strconv.FormatBool(deleteFiles))
	query.Set("addImportExclusion", strconv.FormatBool(addExclusion))
	if err := r.do(ctx, http.MethodDelete, "/movie/"+strconv.Itoa(id), query, nil, nil); err != nil {
		return fmt.Errorf("delete movie %d: %w", id, err)
	}
	r.logger.Info().Int("movieId", id).Bool("deleteFiles", deleteFiles).Msg("Deleted movie")
	return nil
}

// DeleteMovieFile removes a single movie file.
func (r *RadarrClient) DeleteMovieFile(ctx context.Context, fileID int) error {
	defer r.invalidate()
	return r.do(ctx, http.MethodDelete, "/moviefile/"+strconv.Itoa(fileID), nil, nil, nil)
}

// UnmonitorMovie sets monitored=false and optionally deletes the movie's
// file. The movie record stays in Radarr.
func (r *RadarrClient) UnmonitorMovie(ctx context.Context, id int, deleteFiles bool) error {
	movie, err := r.GetMovie(ctx, id)
	if err != nil {
		return fmt.Errorf("unmonitor movie %d: %w", id, err)
	}
	movie.Monitored = false
	if err := r.UpdateMovie(ctx, movie); err != nil {
		return fmt.Errorf("unmonitor movie %d: %w", id, err)
	}
	if deleteFiles && movie.MovieFile != nil {
		if err := r.DeleteMovieFile(ctx, movie.MovieFile.ID); err != nil {
			return fmt.Errorf("delete file of movie %d: %w", id, err)
		}
	}
	r.logger.Info().Int("movieId", id).Bool("deleteFiles", deleteFiles).Msg("Unmonitored movie")
	return nil
}
