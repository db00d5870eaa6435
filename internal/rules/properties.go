package rules

import (
	"slices"
	"strings"

	"github.com/curatarr/curatarr/internal/plex"
)

// Property is an addressable value of an application.
type Property struct {
	App       Application      `json:"application"`
	ID        int              `json:"id"`
	Name      string           `json:"name"`
	HumanName string           `json:"humanName"`
	Type      ValueType        `json:"type"`
	Operators []Operator       `json:"operators"`
	DataTypes []plex.MediaType `json:"dataTypes"`
}

// Location returns the property's address.
func (p Property) Location() Location {
	return Location{App: p.App, Property: p.ID}
}

// Key returns "App.name", the form used in YAML rule files.
func (p Property) Key() string {
	return p.App.String() + "." + p.Name
}

// Supports reports whether op may be applied to the property.
func (p Property) Supports(op Operator) bool {
	return slices.Contains(p.Operators, op)
}

// AllowsDataType reports whether the property can be read for items of dt.
func (p Property) AllowsDataType(dt plex.MediaType) bool {
	return slices.Contains(p.DataTypes, dt)
}

var operatorsByType = map[ValueType][]Operator{
	TypeNumber: {OpBigger, OpSmaller, OpEquals, OpNotEquals},
	TypeDate:   {OpEquals, OpNotEquals, OpBefore, OpAfter, OpInLast, OpInNext},
	TypeText: {OpEquals, OpNotEquals, OpContains, OpNotContains,
		OpContainsPartial, OpNotContainsPartial},
	TypeBool: {OpEquals, OpNotEquals},
	TypeTextList: {OpEquals, OpNotEquals, OpContains, OpNotContains,
		OpContainsPartial, OpNotContainsPartial, OpContainsAll, OpNotContainsAll,
		OpCountEquals, OpCountNotEquals, OpCountBigger, OpCountSmaller},
}

var (
	allTypes     = []plex.MediaType{plex.TypeMovie, plex.TypeShow, plex.TypeSeason, plex.TypeEpisode}
	movieOnly    = []plex.MediaType{plex.TypeMovie}
	seriesTypes  = []plex.MediaType{plex.TypeShow, plex.TypeSeason, plex.TypeEpisode}
	showOrSeason = []plex.MediaType{plex.TypeShow, plex.TypeSeason}
	movieOrShow  = []plex.MediaType{plex.TypeMovie, plex.TypeShow}
)

func prop(app Application, id int, name, human string, t ValueType, dataTypes []plex.MediaType) Property {
	ops := append([]Operator{}, operatorsByType[t]...)
	ops = append(ops, OpIsNull, OpIsNotNull)
	return Property{App: app, ID: id, Name: name, HumanName: human, Type: t, Operators: ops, DataTypes: dataTypes}
}

// Plex property ids.
const (
	PlexAddDate = iota
	PlexSeenBy
	PlexReleaseDate
	PlexUserRating
	PlexPeople
	PlexViewCount
	PlexCollections
	PlexLastViewedAt
	PlexVideoResolution
	PlexBitrate
	PlexVideoCodec
	PlexGenre
	PlexAllEpisodesSeenBy
	PlexLastWatched
	PlexEpisodes
	PlexViewedEpisodes
	PlexLastEpisodeAddedAt
	PlexAmountOfViews
	PlexWatchers
	PlexCollectionNames
	PlexPlaylists
	PlexPlaylistNames
	PlexCriticRating
	PlexAudienceRating
	PlexLabels
	PlexTitle
	PlexYear
)

// Radarr property ids.
const (
	RadarrAddDate = iota
	RadarrFileDate
	RadarrTags
	RadarrProfile
	RadarrReleaseDate
	RadarrMonitored
	RadarrInCinemas
	RadarrFileSizeMB
	RadarrAudioChannels
	RadarrFileQuality
	RadarrRuntime
	RadarrFilePath
	RadarrDigitalRelease
	RadarrPhysicalRelease
	RadarrOriginalLanguage
	RadarrRatingIMDb
)

// Sonarr property ids.
const (
	SonarrAddDate = iota
	SonarrDiskSizeGB
	SonarrTags
	SonarrProfile
	SonarrFirstAirDate
	SonarrSeasons
	SonarrStatus
	SonarrEnded
	SonarrMonitored
	SonarrUnairedEpisodes
	SonarrPartOfLatestSeason
	SonarrEpisodeFileCount
	SonarrNextAiring
	SonarrOriginalLanguage
)

// Overseerr and Jellyseerr property ids.
const (
	SeerrRequestedBy = iota
	SeerrRequestDate
	SeerrReleaseDate
	SeerrApprovalDate
	SeerrMediaAddedAt
	SeerrAmountRequested
	SeerrIsRequested
)

// Tautulli property ids.
const (
	TautulliSeenBy = iota
	TautulliLastViewedAt
	TautulliViewCount
	TautulliAllEpisodesSeenBy
	TautulliWatchers
	TautulliViewedEpisodes
	TautulliAmountOfViews
	TautulliAddDate
)

func seerrProperties(app Application) []Property {
	return []Property{
		prop(app, SeerrRequestedBy, "addUser", "Requested by (username)", TypeTextList, allTypes),
		prop(app, SeerrRequestDate, "requestDate", "Request date", TypeDate, allTypes),
		prop(app, SeerrReleaseDate, "releaseDate", "Release date", TypeDate, allTypes),
		prop(app, SeerrApprovalDate, "approvalDate", "Approval date", TypeDate, allTypes),
		prop(app, SeerrMediaAddedAt, "mediaAddedAt", "Media downloaded date", TypeDate, allTypes),
		prop(app, SeerrAmountRequested, "amountRequested", "Amount of requests", TypeNumber, allTypes),
		prop(app, SeerrIsRequested, "isRequested", "Requested in request manager", TypeBool, allTypes),
	}
}

var registry = func() []Property {
	props := []Property{
		prop(AppPlex, PlexAddDate, "addDate", "Date added", TypeDate, allTypes),
		prop(AppPlex, PlexSeenBy, "seenBy", "Viewed by (username)", TypeTextList, []plex.MediaType{plex.TypeMovie, plex.TypeEpisode}),
		prop(AppPlex, PlexReleaseDate, "releaseDate", "Release date", TypeDate, allTypes),
		prop(AppPlex, PlexUserRating, "rating_user", "User rating (scale 1-10)", TypeNumber, allTypes),
		prop(AppPlex, PlexPeople, "people", "People involved", TypeTextList, movieOrShow),
		prop(AppPlex, PlexViewCount, "viewCount", "Times viewed", TypeNumber, []plex.MediaType{plex.TypeMovie, plex.TypeEpisode}),
		prop(AppPlex, PlexCollections, "collections", "Present in amount of other collections", TypeNumber, allTypes),
		prop(AppPlex, PlexLastViewedAt, "lastViewedAt", "Last view date", TypeDate, []plex.MediaType{plex.TypeMovie, plex.TypeEpisode}),
		prop(AppPlex, PlexVideoResolution, "fileVideoResolution", "Video resolution", TypeText, []plex.MediaType{plex.TypeMovie, plex.TypeEpisode}),
		prop(AppPlex, PlexBitrate, "fileBitrate", "Bitrate", TypeNumber, []plex.MediaType{plex.TypeMovie, plex.TypeEpisode}),
		prop(AppPlex, PlexVideoCodec, "fileVideoCodec", "Video codec", TypeText, []plex.MediaType{plex.TypeMovie, plex.TypeEpisode}),
		prop(AppPlex, PlexGenre, "genre", "List of genres", TypeTextList, movieOrShow),
		prop(AppPlex, PlexAllEpisodesSeenBy, "sw_allEpisodesSeenBy", "Users that saw all available episodes", TypeTextList, showOrSeason),
		prop(AppPlex, PlexLastWatched, "sw_lastWatched", "Newest episode view date", TypeDate, showOrSeason),
		prop(AppPlex, PlexEpisodes, "sw_episodes", "Amount of available episodes", TypeNumber, showOrSeason),
		prop(AppPlex, PlexViewedEpisodes, "sw_viewedEpisodes", "Amount of watched episodes", TypeNumber, showOrSeason),
		prop(AppPlex, PlexLastEpisodeAddedAt, "sw_lastEpisodeAddedAt", "Last episode added at", TypeDate, showOrSeason),
		prop(AppPlex, PlexAmountOfViews, "sw_amountOfViews", "Total views", TypeNumber, showOrSeason),
		prop(AppPlex, PlexWatchers, "sw_watchers", "Users that watch the show/season/episode", TypeTextList, seriesTypes),
		prop(AppPlex, PlexCollectionNames, "collection_names", "Collections media is present in (titles)", TypeTextList, allTypes),
		prop(AppPlex, PlexPlaylists, "playlists", "Present in amount of playlists", TypeNumber, []plex.MediaType{plex.TypeMovie, plex.TypeEpisode, plex.TypeShow, plex.TypeSeason}),
		prop(AppPlex, PlexPlaylistNames, "playlist_names", "Playlists media is present in (titles)", TypeTextList, allTypes),
		prop(AppPlex, PlexCriticRating, "rating_critics", "Critics rating (scale 1-10)", TypeNumber, movieOrShow),
		prop(AppPlex, PlexAudienceRating, "rating_audience", "Audience rating (scale 1-10)", TypeNumber, movieOrShow),
		prop(AppPlex, PlexLabels, "labels", "Labels", TypeTextList, allTypes),
		prop(AppPlex, PlexTitle, "title", "Title", TypeText, allTypes),
		prop(AppPlex, PlexYear, "year", "Year", TypeNumber, allTypes),

		prop(AppRadarr, RadarrAddDate, "addDate", "Date added", TypeDate, movieOnly),
		prop(AppRadarr, RadarrFileDate, "fileDate", "Date file downloaded", TypeDate, movieOnly),
		prop(AppRadarr, RadarrTags, "tags", "Tags", TypeTextList, movieOnly),
		prop(AppRadarr, RadarrProfile, "profile", "Quality profile", TypeText, movieOnly),
		prop(AppRadarr, RadarrReleaseDate, "releaseDate", "Release date", TypeDate, movieOnly),
		prop(AppRadarr, RadarrMonitored, "monitored", "Is monitored", TypeBool, movieOnly),
		prop(AppRadarr, RadarrInCinemas, "inCinemas", "In cinemas date", TypeDate, movieOnly),
		prop(AppRadarr, RadarrFileSizeMB, "fileSize", "File size in MB", TypeNumber, movieOnly),
		prop(AppRadarr, RadarrAudioChannels, "fileAudioChannels", "Audio channels", TypeNumber, movieOnly),
		prop(AppRadarr, RadarrFileQuality, "fileQuality", "File quality", TypeText, movieOnly),
		prop(AppRadarr, RadarrRuntime, "runTime", "Runtime in minutes", TypeNumber, movieOnly),
		prop(AppRadarr, RadarrFilePath, "filePath", "File path", TypeText, movieOnly),
		prop(AppRadarr, RadarrDigitalRelease, "digitalRelease", "Digital release date", TypeDate, movieOnly),
		prop(AppRadarr, RadarrPhysicalRelease, "physicalRelease", "Physical release date", TypeDate, movieOnly),
		prop(AppRadarr, RadarrOriginalLanguage, "originalLanguage", "Original language", TypeText, movieOnly),
		prop(AppRadarr, RadarrRatingIMDb, "rating_imdb", "IMDb rating (scale 1-10)", TypeNumber, movieOnly),

		prop(AppSonarr, SonarrAddDate, "addDate", "Date added", TypeDate, seriesTypes),
		prop(AppSonarr, SonarrDiskSizeGB, "diskSizeEntireShow", "Files - Disk size in GB", TypeNumber, seriesTypes),
		prop(AppSonarr, SonarrTags, "tags", "Tags (show)", TypeTextList, seriesTypes),
		prop(AppSonarr, SonarrProfile, "qualityProfileId", "Quality profile", TypeText, seriesTypes),
		prop(AppSonarr, SonarrFirstAirDate, "firstAirDate", "First air date", TypeDate, seriesTypes),
		prop(AppSonarr, SonarrSeasons, "seasons", "Number of seasons / episodes", TypeNumber, showOrSeason),
		prop(AppSonarr, SonarrStatus, "status", "Status (continuing, ended, upcoming)", TypeText, seriesTypes),
		prop(AppSonarr, SonarrEnded, "ended", "Show ended", TypeBool, seriesTypes),
		prop(AppSonarr, SonarrMonitored, "monitored", "Is monitored", TypeBool, seriesTypes),
		prop(AppSonarr, SonarrUnairedEpisodes, "unaired_episodes", "Has unaired episodes", TypeBool, showOrSeason),
		prop(AppSonarr, SonarrPartOfLatestSeason, "part_of_latest_season", "Is (part of) latest aired or airing season", TypeBool, []plex.MediaType{plex.TypeSeason, plex.TypeEpisode}),
		prop(AppSonarr, SonarrEpisodeFileCount, "episodeFileCount", "Amount of downloaded episodes", TypeNumber, showOrSeason),
		prop(AppSonarr, SonarrNextAiring, "nextAiring", "Next air date", TypeDate, showOrSeason),
		prop(AppSonarr, SonarrOriginalLanguage, "originalLanguage", "Original language", TypeText, seriesTypes),

		prop(AppTautulli, TautulliSeenBy, "seenBy", "Viewed by (username)", TypeTextList, []plex.MediaType{plex.TypeMovie, plex.TypeEpisode}),
		prop(AppTautulli, TautulliLastViewedAt, "lastViewedAt", "Last view date", TypeDate, allTypes),
		prop(AppTautulli, TautulliViewCount, "viewCount", "Times viewed", TypeNumber, []plex.MediaType{plex.TypeMovie, plex.TypeEpisode}),
		prop(AppTautulli, TautulliAllEpisodesSeenBy, "sw_allEpisodesSeenBy", "Users that saw all available episodes", TypeTextList, showOrSeason),
		prop(AppTautulli, TautulliWatchers, "sw_watchers", "Users that watch the show/season", TypeTextList, showOrSeason),
		prop(AppTautulli, TautulliViewedEpisodes, "sw_viewedEpisodes", "Amount of watched episodes", TypeNumber, showOrSeason),
		prop(AppTautulli, TautulliAmountOfViews, "sw_amountOfViews", "Total views", TypeNumber, showOrSeason),
		prop(AppTautulli, TautulliAddDate, "addDate", "Date added", TypeDate, allTypes),
	}
	props = append(props, seerrProperties(AppOverseerr)...)
	props = append(props, seerrProperties(AppJellyseerr)...)
	return props
}()

// Properties returns the full catalog.
func Properties() []Property {
	return slices.Clone(registry)
}

// LookupProperty returns the property at loc.
func LookupProperty(loc Location) (Property, bool) {
	for _, p := range registry {
		if p.App == loc.App && p.ID == loc.Property {
			return p, true
		}
	}
	return Property{}, false
}

// PropertyByKey returns the property named "App.name".
func PropertyByKey(key string) (Property, bool) {
	for _, p := range registry {
		if strings.EqualFold(p.Key(), key) {
			return p, true
		}
	}
	return Property{}, false
}
