package arr

import "time"

// Movie is a Radarr movie.
type Movie struct {
	ID               int        `json:"id"`
	Title            string     `json:"title"`
	Year             int        `json:"year"`
	TmdbID           int        `json:"tmdbId"`
	ImdbID           string     `json:"imdbId,omitempty"`
	Monitored        bool       `json:"monitored"`
	HasFile          bool       `json:"hasFile"`
	QualityProfileID int        `json:"qualityProfileId"`
	Tags             []int      `json:"tags"`
	Path             string     `json:"path"`
	Added            time.Time  `json:"added"`
	InCinemas        *time.Time `json:"inCinemas,omitempty"`
	PhysicalRelease  *time.Time `json:"physicalRelease,omitempty"`
	DigitalRelease   *time.Time `json:"digitalRelease,omitempty"`
	Runtime          int        `json:"runtime"`
	OriginalLanguage *Language  `json:"originalLanguage,omitempty"`
	Ratings          Ratings    `json:"ratings"`
	MovieFile        *MovieFile `json:"movieFile,omitempty"`
}

// Language is an arr language reference.
type Language struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Ratings holds third-party ratings reported by Radarr.
type Ratings struct {
	IMDb *Rating `json:"imdb,omitempty"`
	TMDb *Rating `json:"tmdb,omitempty"`
}

// Rating is a single rating source.
type Rating struct {
	Votes int     `json:"votes"`
	Value float64 `json:"value"`
}

// MovieFile is a Radarr movie file.
type MovieFile struct {
	ID           int       `json:"id"`
	RelativePath string    `json:"relativePath"`
	Path         string    `json:"path"`
	Size         int64     `json:"size"`
	DateAdded    time.Time `json:"dateAdded"`
	Quality      struct {
		Quality struct {
			Name       string `json:"name"`
			Resolution int    `json:"resolution"`
		} `json:"quality"`
	} `json:"quality"`
	MediaInfo *struct {
		AudioChannels float64 `json:"audioChannels"`
		VideoCodec    string  `json:"videoCodec"`
	} `json:"mediaInfo,omitempty"`
}

// Series is a Sonarr series.
type Series struct {
	ID               int               `json:"id"`
	Title            string            `json:"title"`
	TvdbID           int               `json:"tvdbId"`
	TmdbID           int               `json:"tmdbId,omitempty"`
	ImdbID           string            `json:"imdbId,omitempty"`
	Status           string            `json:"status"`
	Ended            bool              `json:"ended"`
	Monitored        bool              `json:"monitored"`
	QualityProfileID int               `json:"qualityProfileId"`
	Tags             []int             `json:"tags"`
	Path             string            `json:"path"`
	Added            time.Time         `json:"added"`
	FirstAired       *time.Time        `json:"firstAired,omitempty"`
	NextAiring       *time.Time        `json:"nextAiring,omitempty"`
	PreviousAiring   *time.Time        `json:"previousAiring,omitempty"`
	OriginalLanguage *Language         `json:"originalLanguage,omitempty"`
	Seasons          []Season          `json:"seasons"`
	Statistics       *SeriesStatistics `json:"statistics,omitempty"`
}

// Season is a season entry of a Sonarr series.
type Season struct {
	SeasonNumber int               `json:"seasonNumber"`
	Monitored    bool              `json:"monitored"`
	Statistics   *SeasonStatistics `json:"statistics,omitempty"`
}

// SeasonStatistics are per-season counters.
type SeasonStatistics struct {
	EpisodeFileCount  int        `json:"episodeFileCount"`
	EpisodeCount      int        `json:"episodeCount"`
	TotalEpisodeCount int        `json:"totalEpisodeCount"`
	SizeOnDisk        int64      `json:"sizeOnDisk"`
	NextAiring        *time.Time `json:"nextAiring,omitempty"`
	PreviousAiring    *time.Time `json:"previousAiring,omitempty"`
}

// SeriesStatistics are whole-series counters.
type SeriesStatistics struct {
	SeasonCount       int   `json:"seasonCount"`
	EpisodeFileCount  int   `json:"episodeFileCount"`
	EpisodeCount      int   `json:"episodeCount"`
	TotalEpisodeCount int   `json:"totalEpisodeCount"`
	SizeOnDisk        int64 `json:"sizeOnDisk"`
}

// Season returns the season with the given number.
func (s *Series) Season(number int) (*Season, bool) {
	for i := range s.Seasons {
		if s.Seasons[i].SeasonNumber == number {
			return &s.Seasons[i], true
		}
	}
	return nil, false
}

// LatestSeason returns the highest season number.
func (s *Series) LatestSeason() int {
	latest := 0
	for _, season := range s.Seasons {
		if season.SeasonNumber > latest {
			latest = season.SeasonNumber
		}
	}
	return latest
}

// Episode is a Sonarr episode.
type Episode struct {
	ID            int        `json:"id"`
	SeriesID      int        `json:"seriesId"`
	SeasonNumber  int        `json:"seasonNumber"`
	EpisodeNumber int        `json:"episodeNumber"`
	Title         string     `json:"title"`
	AirDateUtc    *time.Time `json:"airDateUtc,omitempty"`
	Monitored     bool       `json:"monitored"`
	HasFile       bool       `json:"hasFile"`
	EpisodeFileID int        `json:"episodeFileId"`
}

// EpisodeFile is a Sonarr episode file.
type EpisodeFile struct {
	ID           int       `json:"id"`
	SeriesID     int       `json:"seriesId"`
	SeasonNumber int       `json:"seasonNumber"`
	RelativePath string    `json:"relativePath"`
	Size         int64     `json:"size"`
	DateAdded    time.Time `json:"dateAdded"`
}
