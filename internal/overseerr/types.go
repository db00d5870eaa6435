package overseerr

import "time"

// Request statuses.
const (
	RequestPending  = 1
	RequestApproved = 2
	RequestDeclined = 3
)

// User is a request-manager user.
type User struct {
	ID           int    `json:"id"`
	Email        string `json:"email,omitempty"`
	DisplayName  string `json:"displayName,omitempty"`
	PlexUsername string `json:"plexUsername,omitempty"`
	Username     string `json:"username,omitempty"`
	JellyfinName string `json:"jellyfinUsername,omitempty"`
}

// Name returns the best available user name.
func (u *User) Name() string {
	for _, n := range []string{u.PlexUsername, u.JellyfinName, u.Username, u.DisplayName, u.Email} {
		if n != "" {
			return n
		}
	}
	return ""
}

// SeasonRequest is one season inside a TV request.
type SeasonRequest struct {
	ID           int `json:"id"`
	SeasonNumber int `json:"seasonNumber"`
	Status       int `json:"status"`
}

// Request is a media request.
type Request struct {
	ID          int             `json:"id"`
	Status      int             `json:"status"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
	Is4K        bool            `json:"is4k"`
	RequestedBy *User           `json:"requestedBy,omitempty"`
	ModifiedBy  *User           `json:"modifiedBy,omitempty"`
	Seasons     []SeasonRequest `json:"seasons,omitempty"`
}

// HasSeason reports whether the request includes the season.
func (r *Request) HasSeason(n int) bool {
	for _, s := range r.Seasons {
		if s.SeasonNumber == n {
			return true
		}
	}
	return false
}

// MediaInfo is the request manager's record of a media item.
type MediaInfo struct {
	ID           int        `json:"id"`
	TmdbID       int        `json:"tmdbId"`
	TvdbID       int        `json:"tvdbId,omitempty"`
	Status       int        `json:"status"`
	MediaAddedAt *time.Time `json:"mediaAddedAt,omitempty"`
	Requests     []Request  `json:"requests"`
}

// Movie is the movie detail response.
type Movie struct {
	ID          int        `json:"id"`
	Title       string     `json:"title"`
	ReleaseDate string     `json:"releaseDate"`
	MediaInfo   *MediaInfo `json:"mediaInfo,omitempty"`
}

// ShowSeason is a season in the TV detail response.
type ShowSeason struct {
	SeasonNumber int    `json:"seasonNumber"`
	AirDate      string `json:"airDate"`
	EpisodeCount int    `json:"episodeCount"`
}

// Show is the TV detail response.
type Show struct {
	ID           int          `json:"id"`
	Name         string       `json:"name"`
	FirstAirDate string       `json:"firstAirDate"`
	Seasons      []ShowSeason `json:"seasons"`
	MediaInfo    *MediaInfo   `json:"mediaInfo,omitempty"`
}
