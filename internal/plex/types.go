package plex

import (
	"strings"
	"time"
)

// MediaType is the Plex item type used for filtering library listings.
type MediaType string

const (
	TypeMovie   MediaType = "movie"
	TypeShow    MediaType = "show"
	TypeSeason  MediaType = "season"
	TypeEpisode MediaType = "episode"
)

// TypeNumber returns the numeric type id Plex expects in `type=` filters.
func (t MediaType) TypeNumber() int {
	switch t {
	case TypeMovie:
		return 1
	case TypeShow:
		return 2
	case TypeSeason:
		return 3
	case TypeEpisode:
		return 4
	default:
		return 0
	}
}

// Tag is a Plex tag entry (genre, role, label, collection).
type Tag struct {
	Tag string `json:"tag"`
}

// GUID is an external agent id like "tmdb://603".
type GUID struct {
	ID string `json:"id"`
}

// Part is a media file part.
type Part struct {
	File string `json:"file"`
	Size int64  `json:"size"`
}

// Media describes one version of an item.
type Media struct {
	VideoResolution string `json:"videoResolution"`
	VideoCodec      string `json:"videoCodec"`
	Bitrate         int    `json:"bitrate"`
	Width           int    `json:"width"`
	Height          int    `json:"height"`
	Part            []Part `json:"Part"`
}

// Metadata is a Plex library item: movie, show, season or episode.
type Metadata struct {
	RatingKey             string  `json:"ratingKey"`
	ParentRatingKey       string  `json:"parentRatingKey,omitempty"`
	GrandparentRatingKey  string  `json:"grandparentRatingKey,omitempty"`
	Type                  string  `json:"type"`
	Title                 string  `json:"title"`
	ParentTitle           string  `json:"parentTitle,omitempty"`
	GrandparentTitle      string  `json:"grandparentTitle,omitempty"`
	LibrarySectionID      int     `json:"librarySectionID,omitempty"`
	Index                 int     `json:"index,omitempty"`
	ParentIndex           int     `json:"parentIndex,omitempty"`
	Year                  int     `json:"year,omitempty"`
	GUID                  string  `json:"guid,omitempty"`
	AddedAt               int64   `json:"addedAt,omitempty"`
	UpdatedAt             int64   `json:"updatedAt,omitempty"`
	LastViewedAt          int64   `json:"lastViewedAt,omitempty"`
	ViewCount             int     `json:"viewCount,omitempty"`
	LeafCount             int     `json:"leafCount,omitempty"`
	ViewedLeafCount       int     `json:"viewedLeafCount,omitempty"`
	ChildCount            int     `json:"childCount,omitempty"`
	OriginallyAvailableAt string  `json:"originallyAvailableAt,omitempty"`
	Rating                float64 `json:"rating,omitempty"`
	AudienceRating        float64 `json:"audienceRating,omitempty"`
	UserRating            float64 `json:"userRating,omitempty"`
	Guids                 []GUID  `json:"Guid,omitempty"`
	Genre                 []Tag   `json:"Genre,omitempty"`
	Role                  []Tag   `json:"Role,omitempty"`
	Label                 []Tag   `json:"Label,omitempty"`
	Collection            []Tag   `json:"Collection,omitempty"`
	Media                 []Media `json:"Media,omitempty"`
}

// ExternalID returns the id for the given agent ("tmdb", "tvdb", "imdb").
func (m *Metadata) ExternalID(agent string) string {
	prefix := agent + "://"
	for _, g := range m.Guids {
		if strings.HasPrefix(g.ID, prefix) {
			return strings.TrimPrefix(g.ID, prefix)
		}
	}
	// Legacy agents put the id in the main guid, e.g.
	// com.plexapp.agents.themoviedb://603?lang=en
	legacy := map[string]string{
		"tmdb": "themoviedb://",
		"tvdb": "thetvdb://",
		"imdb": "imdb://",
	}
	if p, ok := legacy[agent]; ok {
		if i := strings.Index(m.GUID, p); i >= 0 {
			id := m.GUID[i+len(p):]
			if j := strings.IndexAny(id, "?/"); j >= 0 {
				id = id[:j]
			}
			return id
		}
	}
	return ""
}

// AddedTime returns addedAt as a time, or the zero time.
func (m *Metadata) AddedTime() time.Time {
	return unixOrZero(m.AddedAt)
}

// LastViewedTime returns lastViewedAt as a time, or the zero time.
func (m *Metadata) LastViewedTime() time.Time {
	return unixOrZero(m.LastViewedAt)
}

// ReleaseDate parses originallyAvailableAt.
func (m *Metadata) ReleaseDate() (time.Time, bool) {
	if m.OriginallyAvailableAt == "" {
		return time.Time{}, false
	}
	t, err := time.Parse("2006-01-02", m.OriginallyAvailableAt)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Tags flattens a tag slice to its names.
func Tags(tags []Tag) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		out = append(out, t.Tag)
	}
	return out
}

func unixOrZero(sec int64) time.Time {
	if sec <= 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0)
}

// Library is a library section.
type Library struct {
	Key   string `json:"key"`
	Title string `json:"title"`
	Type  string `json:"type"`
}

// Page is one page of a library listing.
type Page struct {
	Items     []Metadata
	Offset    int
	TotalSize int
}

// ViewRecord is one play in the server's watch history.
type ViewRecord struct {
	HistoryKey           string `json:"historyKey"`
	RatingKey            string `json:"ratingKey"`
	ParentRatingKey      string `json:"parentRatingKey,omitempty"`
	GrandparentRatingKey string `json:"grandparentRatingKey,omitempty"`
	Type                 string `json:"type"`
	ViewedAt             int64  `json:"viewedAt"`
	AccountID            int    `json:"accountID"`
	Index                int    `json:"index,omitempty"`
	ParentIndex          int    `json:"parentIndex,omitempty"`
}

// Account is a server user account.
type Account struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Playlist is a user playlist.
type Playlist struct {
	RatingKey string `json:"ratingKey"`
	Title     string `json:"title"`
	LeafCount int    `json:"leafCount"`
}

// Collection is a Plex collection.
type Collection struct {
	RatingKey  string `json:"ratingKey"`
	Title      string `json:"title"`
	ChildCount int    `json:"childCount,omitempty"`
	Smart      bool   `json:"smart,omitempty"`
}

type mediaContainer[T any] struct {
	MediaContainer struct {
		Size              int    `json:"size"`
		TotalSize         int    `json:"totalSize"`
		Offset            int    `json:"offset"`
		MachineIdentifier string `json:"machineIdentifier,omitempty"`
		Metadata          []T    `json:"Metadata"`
		Directory         []T    `json:"Directory"`
		Account           []T    `json:"Account"`
	} `json:"MediaContainer"`
}
