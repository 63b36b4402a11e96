package music

import (
	"context"
	"time"
)

// Source is a per-guild streaming source preference for plain-text queries.
type Source string

const (
	SourceAuto         Source = "auto"
	SourceYouTube      Source = "youtube"
	SourceYouTubeMusic Source = "youtubemusic"
	SourceSoundCloud   Source = "soundcloud"
	SourceYandexMusic  Source = "yandexmusic"
)

// ParseSource maps user input to a Source; unknown values fall back to auto.
func ParseSource(value string) Source {
	switch Source(value) {
	case SourceYouTube, SourceYouTubeMusic, SourceSoundCloud, SourceYandexMusic:
		return Source(value)
	default:
		return SourceAuto
	}
}

// Track is an immutable playable item. Display fields may come from an
// external catalog that overrides the engine's own metadata; Encoded is
// always the engine's playable reference and is never rewritten.
type Track struct {
	Encoded    string
	Title      string
	Author     string
	SourceName string
	URL        string
	Duration   time.Duration
	Seekable   bool
}

// WithDisplay returns a copy of the track with non-empty display fields
// replaced. The final value is built before it is committed anywhere.
func (t Track) WithDisplay(title, author, sourceName, url string) Track {
	if title != "" {
		t.Title = title
	}
	if author != "" {
		t.Author = author
	}
	if sourceName != "" {
		t.SourceName = sourceName
	}
	if url != "" {
		t.URL = url
	}
	return t
}

// LoadType classifies an engine load response.
type LoadType string

const (
	LoadTypeTrack    LoadType = "track"
	LoadTypePlaylist LoadType = "playlist"
	LoadTypeSearch   LoadType = "search"
	LoadTypeEmpty    LoadType = "empty"
	LoadTypeError    LoadType = "error"
)

// LoadResult is the engine's answer to a load request.
type LoadResult struct {
	Type         LoadType
	Tracks       []Track
	PlaylistName string
	ErrMessage   string
	ErrCause     string
}

// EndReason is why the engine reported a track end.
type EndReason string

const (
	EndReasonFinished   EndReason = "finished"
	EndReasonLoadFailed EndReason = "loadFailed"
	EndReasonStopped    EndReason = "stopped"
	EndReasonReplaced   EndReason = "replaced"
	EndReasonCleanup    EndReason = "cleanup"
)

// Engine is the external audio backend (Lavalink). Implementations perform
// network round trips; callers pass a context on every operation.
type Engine interface {
	LoadTracks(ctx context.Context, identifier string) (LoadResult, error)
	Play(ctx context.Context, guildID string, encoded string, volume int) error
	SetPaused(ctx context.Context, guildID string, paused bool) error
	Seek(ctx context.Context, guildID string, position time.Duration) error
	SetVolume(ctx context.Context, guildID string, volume int) error
	StopTrack(ctx context.Context, guildID string) error
	Position(ctx context.Context, guildID string) (time.Duration, error)
	DestroyPlayer(ctx context.Context, guildID string) error
	IsConnected() bool
}

// Voice is the gateway-side voice transport.
type Voice interface {
	Join(guildID, channelID string) error
	Leave(guildID string) error
	BotChannelID(guildID string) string
}

// Like is a persisted liked track.
type Like struct {
	ID         int64
	TrackURL   string
	Title      string
	Author     string
	SourceName string
	Duration   time.Duration
	AddedAt    time.Time
}

// LikeStore persists per-user liked tracks. Enabled reports whether a
// backing database is configured; when false every other method degrades
// to "no likes" rather than erroring.
type LikeStore interface {
	Enabled() bool
	Add(ctx context.Context, guildID, userID string, track Track) (added bool, err error)
	Remove(ctx context.Context, guildID, userID string, trackURL string) (removed bool, err error)
	List(ctx context.Context, guildID, userID string, limit, offset int) ([]Like, error)
	ByIndex(ctx context.Context, guildID, userID string, index int) (*Like, error)
	Random(ctx context.Context, guildID, userID string, exclude []string) (*Like, error)
	Count(ctx context.Context, guildID, userID string) (int, error)
}

// SourcePrefs resolves and stores the per-guild preferred streaming source.
type SourcePrefs interface {
	Get(ctx context.Context, guildID string) Source
	Set(ctx context.Context, guildID string, source Source) error
}

// CatalogTrack is a track as known to the external music catalog, before
// its audio has been resolved through the engine.
type CatalogTrack struct {
	ID      string
	Title   string
	Artists []string
	AlbumID string
}

// Catalog is the external music catalog provider (Yandex Music).
type Catalog interface {
	Enabled() bool
	SearchTracks(ctx context.Context, query string, limit int) ([]CatalogTrack, error)
	TrackByID(ctx context.Context, trackID string) (*CatalogTrack, error)
	Playlist(ctx context.Context, owner, kind string) (title string, tracks []CatalogTrack, err error)
	DownloadURL(ctx context.Context, track CatalogTrack) (string, error)
	TrackURL(track CatalogTrack) string
}

// Result is the single outcome of a mutating operation, shown to the user.
type Result struct {
	OK      bool
	Message string
}

func failure(message string) Result {
	return Result{OK: false, Message: message}
}

func success(message string) Result {
	return Result{OK: true, Message: message}
}
