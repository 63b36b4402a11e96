package music

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
)

var ErrResolveFailed = errors.New("failed to resolve track")

const (
	// maxPlaylistTracks caps how many playlist entries are ingested at once.
	maxPlaylistTracks = 50

	// yandexPlaylistConcurrency bounds parallel download-url/engine lookups
	// while ingesting a Yandex Music playlist.
	yandexPlaylistConcurrency = 3

	// maxErrorDetailLength truncates engine error text before display.
	maxErrorDetailLength = 1800

	yandexSourceName = "Yandex Music"

	// genericEngineError is the engine's placeholder message; when seen, the
	// underlying cause is more useful to surface.
	genericEngineError = "Something went wrong while looking up the track."
)

// ResolutionKind classifies what a play request resolved to.
type ResolutionKind int

const (
	ResolvedError ResolutionKind = iota
	ResolvedEmpty
	ResolvedTrack
	ResolvedPlaylist
)

// Resolution is the outcome of resolving a free-form play request.
type Resolution struct {
	Kind         ResolutionKind
	Tracks       []Track
	PlaylistName string
	// TotalTracks is the pre-cap playlist size; greater than len(Tracks)
	// when the playlist was truncated.
	TotalTracks int
	ErrMessage  string
}

// Resolver turns a free-form request (plain text, URL, or an explicit
// search identifier) into zero or more playable tracks, routing Yandex
// Music inputs through the catalog provider and everything else through
// the engine's load operation.
type Resolver struct {
	engine  Engine
	catalog Catalog
	prefs   SourcePrefs
}

func NewResolver(engine Engine, catalog Catalog, prefs SourcePrefs) *Resolver {
	return &Resolver{engine: engine, catalog: catalog, prefs: prefs}
}

// Resolve runs the full pipeline for a play request issued in a guild.
func (r *Resolver) Resolve(ctx context.Context, guildID, query string) Resolution {
	query = strings.TrimSpace(query)
	if query == "" {
		return Resolution{Kind: ResolvedError, ErrMessage: "Provide a query or URL."}
	}

	parsedURL := parseAbsoluteURL(query)
	isExplicit := isSearchIdentifier(query)
	isPlainText := parsedURL == nil && !isExplicit

	if parsedURL != nil {
		query = normalizeYouTubeURL(parsedURL, query)
	}

	identifier := query
	primary := SourceAuto
	if isPlainText {
		if r.prefs != nil {
			primary = r.prefs.Get(ctx, guildID)
		}
		identifier = buildSearchIdentifier(query, primary)
	}

	// Yandex Music inputs bypass the generic engine search: metadata comes
	// from the catalog and the engine only loads the download url.
	if strings.HasPrefix(strings.ToLower(identifier), "ymsearch:") {
		return r.resolveYandexSearch(ctx, identifier[len("ymsearch:"):])
	}
	if parsedURL != nil && isYandexHost(parsedURL.Host) {
		return r.resolveYandexURL(ctx, parsedURL)
	}

	result, err := r.engine.LoadTracks(ctx, identifier)
	if err != nil {
		return Resolution{Kind: ResolvedError, ErrMessage: truncateDetail("Track load failed: " + err.Error())}
	}

	// Plain-text queries under the auto preference get exactly one retry
	// against SoundCloud before the error is surfaced.
	triedFallback := false
	usedFallback := false
	if result.Type == LoadTypeError && isPlainText && primary == SourceAuto {
		triedFallback = true
		fallbackIdentifier := "scsearch:" + query
		if fallback, ferr := r.engine.LoadTracks(ctx, fallbackIdentifier); ferr == nil &&
			fallback.Type != LoadTypeError && fallback.Type != LoadTypeEmpty && len(fallback.Tracks) > 0 {
			usedFallback = true
			identifier = fallbackIdentifier
			result = fallback
		}
	}

	if result.Type == LoadTypeError {
		return Resolution{
			Kind:       ResolvedError,
			ErrMessage: shapeEngineError(result, identifier, parsedURL, triedFallback, usedFallback),
		}
	}

	if result.Type == LoadTypeEmpty || len(result.Tracks) == 0 {
		return Resolution{Kind: ResolvedEmpty}
	}

	if result.Type == LoadTypePlaylist {
		tracks := result.Tracks
		total := len(tracks)
		if len(tracks) > maxPlaylistTracks {
			tracks = tracks[:maxPlaylistTracks]
		}
		return Resolution{
			Kind:         ResolvedPlaylist,
			Tracks:       tracks,
			PlaylistName: result.PlaylistName,
			TotalTracks:  total,
		}
	}

	return Resolution{Kind: ResolvedTrack, Tracks: result.Tracks[:1]}
}

// LoadSingle loads one playable track for a known identifier (liked-track
// URLs, Yandex download links). It never falls back or reshapes errors.
func (r *Resolver) LoadSingle(ctx context.Context, identifier string) (Track, error) {
	result, err := r.engine.LoadTracks(ctx, identifier)
	if err != nil {
		return Track{}, fmt.Errorf("%w: %v", ErrResolveFailed, err)
	}

	switch {
	case result.Type == LoadTypeError:
		detail := strings.TrimSpace(result.ErrMessage)
		if detail == "" {
			detail = strings.TrimSpace(result.ErrCause)
		}
		if detail == "" {
			detail = "engine error"
		}
		return Track{}, fmt.Errorf("%w: %s", ErrResolveFailed, detail)
	case result.Type == LoadTypeEmpty || len(result.Tracks) == 0:
		return Track{}, fmt.Errorf("%w: nothing found", ErrResolveFailed)
	default:
		return result.Tracks[0], nil
	}
}

func (r *Resolver) resolveYandexSearch(ctx context.Context, query string) Resolution {
	if r.catalog == nil || !r.catalog.Enabled() {
		return Resolution{Kind: ResolvedError, ErrMessage: "Yandex Music is not configured. Set YANDEX_MUSIC_TOKEN."}
	}

	query = strings.TrimSpace(query)
	found, err := r.catalog.SearchTracks(ctx, query, 1)
	if err != nil || len(found) == 0 {
		return Resolution{Kind: ResolvedEmpty}
	}

	track, err := r.loadCatalogTrack(ctx, found[0])
	if err != nil {
		return Resolution{Kind: ResolvedError, ErrMessage: truncateDetail("Could not load the Yandex Music track: " + err.Error())}
	}
	return Resolution{Kind: ResolvedTrack, Tracks: []Track{track}}
}

func (r *Resolver) resolveYandexURL(ctx context.Context, u *url.URL) Resolution {
	if r.catalog == nil || !r.catalog.Enabled() {
		return Resolution{Kind: ResolvedError, ErrMessage: "Yandex Music is not configured. Set YANDEX_MUSIC_TOKEN."}
	}

	if owner, kind, ok := parseYandexPlaylistPath(u.Path); ok {
		return r.resolveYandexPlaylist(ctx, owner, kind)
	}

	trackID := parseYandexTrackID(u.Path)
	if trackID == "" {
		return Resolution{Kind: ResolvedEmpty}
	}

	catalogTrack, err := r.catalog.TrackByID(ctx, trackID)
	if err != nil || catalogTrack == nil {
		return Resolution{Kind: ResolvedError, ErrMessage: "Could not access the track on Yandex Music."}
	}

	track, err := r.loadCatalogTrack(ctx, *catalogTrack)
	if err != nil {
		return Resolution{Kind: ResolvedError, ErrMessage: "Could not access the track on Yandex Music."}
	}
	return Resolution{Kind: ResolvedTrack, Tracks: []Track{track}}
}

// resolveYandexPlaylist resolves every playlist entry (download url lookup
// plus engine load) with bounded parallelism. Individual failures drop the
// track; order is preserved for the survivors.
func (r *Resolver) resolveYandexPlaylist(ctx context.Context, owner, kind string) Resolution {
	title, catalogTracks, err := r.catalog.Playlist(ctx, owner, kind)
	if err != nil || len(catalogTracks) == 0 {
		return Resolution{Kind: ResolvedError, ErrMessage: "Could not fetch the Yandex Music playlist."}
	}

	total := len(catalogTracks)
	if len(catalogTracks) > maxPlaylistTracks {
		catalogTracks = catalogTracks[:maxPlaylistTracks]
	}

	resolved := make([]*Track, len(catalogTracks))
	sem := make(chan struct{}, yandexPlaylistConcurrency)
	var wg sync.WaitGroup

	for i, ct := range catalogTracks {
		wg.Add(1)
		go func(i int, ct CatalogTrack) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			track, err := r.loadCatalogTrack(ctx, ct)
			if err != nil {
				return
			}
			resolved[i] = &track
		}(i, ct)
	}
	wg.Wait()

	tracks := make([]Track, 0, len(resolved))
	for _, t := range resolved {
		if t != nil {
			tracks = append(tracks, *t)
		}
	}

	if len(tracks) == 0 {
		return Resolution{Kind: ResolvedError, ErrMessage: "Could not load any track from the Yandex Music playlist."}
	}

	return Resolution{
		Kind:         ResolvedPlaylist,
		Tracks:       tracks,
		PlaylistName: title,
		TotalTracks:  total,
	}
}

// loadCatalogTrack resolves a catalog entry to a playable track: download
// url, engine load, then the catalog metadata overlaid on the final value.
func (r *Resolver) loadCatalogTrack(ctx context.Context, ct CatalogTrack) (Track, error) {
	downloadURL, err := r.catalog.DownloadURL(ctx, ct)
	if err != nil || strings.TrimSpace(downloadURL) == "" {
		return Track{}, fmt.Errorf("%w: no download url", ErrResolveFailed)
	}

	track, err := r.LoadSingle(ctx, downloadURL)
	if err != nil {
		return Track{}, err
	}

	author := yandexSourceName
	if len(ct.Artists) > 0 {
		author = strings.Join(ct.Artists, ", ")
	}
	return track.WithDisplay(ct.Title, author, yandexSourceName, r.catalog.TrackURL(ct)), nil
}

func isSearchIdentifier(query string) bool {
	lower := strings.ToLower(query)
	return strings.HasPrefix(lower, "ytsearch:") ||
		strings.HasPrefix(lower, "ytmsearch:") ||
		strings.HasPrefix(lower, "scsearch:") ||
		strings.HasPrefix(lower, "ymsearch:")
}

func buildSearchIdentifier(query string, source Source) string {
	switch source {
	case SourceSoundCloud:
		return "scsearch:" + query
	case SourceYouTubeMusic:
		return "ytmsearch:" + query
	case SourceYandexMusic:
		return "ymsearch:" + query
	default:
		return "ytsearch:" + query
	}
}

func parseAbsoluteURL(value string) *url.URL {
	if !strings.HasPrefix(value, "http://") && !strings.HasPrefix(value, "https://") {
		return nil
	}
	u, err := url.Parse(value)
	if err != nil || u.Host == "" {
		return nil
	}
	return u
}

func isYandexHost(host string) bool {
	return strings.Contains(strings.ToLower(host), "music.yandex")
}

// normalizeYouTubeURL rewrites watch and short-link urls to the canonical
// watch form, stripping tracking parameters. Anything unrecognized passes
// through untouched.
func normalizeYouTubeURL(u *url.URL, original string) string {
	host := strings.ToLower(u.Host)

	if strings.Contains(host, "youtube.com") {
		if strings.EqualFold(u.Path, "/watch") {
			if videoID := u.Query().Get("v"); strings.TrimSpace(videoID) != "" {
				return "https://www.youtube.com/watch?v=" + videoID
			}
		}
		return original
	}

	if host == "youtu.be" {
		if videoID := strings.Trim(u.Path, "/"); videoID != "" {
			return "https://www.youtube.com/watch?v=" + videoID
		}
	}

	return original
}

// parseYandexPlaylistPath matches /users/<owner>/playlists/<kind>.
func parseYandexPlaylistPath(path string) (owner, kind string, ok bool) {
	if !strings.Contains(strings.ToLower(path), "/playlists/") {
		return "", "", false
	}

	segments := strings.FieldsFunc(path, func(r rune) bool { return r == '/' })
	usersIdx, playlistsIdx := -1, -1
	for i, seg := range segments {
		switch strings.ToLower(seg) {
		case "users":
			if usersIdx < 0 {
				usersIdx = i
			}
		case "playlists":
			if playlistsIdx < 0 {
				playlistsIdx = i
			}
		}
	}

	if usersIdx < 0 || playlistsIdx < 0 || usersIdx+1 >= len(segments) || playlistsIdx+1 >= len(segments) {
		return "", "", false
	}
	return segments[usersIdx+1], segments[playlistsIdx+1], true
}

// parseYandexTrackID extracts the id from a .../track/<id> path.
func parseYandexTrackID(path string) string {
	idx := strings.LastIndex(path, "/track/")
	if idx < 0 {
		return ""
	}
	id := path[idx+len("/track/"):]
	if cut := strings.IndexAny(id, "/?"); cut >= 0 {
		id = id[:cut]
	}
	return strings.TrimSpace(id)
}

// shapeEngineError builds the user-facing message for an engine load error:
// prefer the human-readable clause over the machine cause, note a failed
// SoundCloud fallback, hint at switching sources for YouTube queries, and
// truncate to the display limit.
func shapeEngineError(result LoadResult, identifier string, parsedURL *url.URL, triedFallback, usedFallback bool) string {
	message := strings.TrimSpace(result.ErrMessage)
	cause := strings.TrimSpace(result.ErrCause)

	details := message
	if details == "" || strings.EqualFold(details, genericEngineError) || strings.EqualFold(details, cause) {
		details = cause
	}
	if details == "" {
		details = "The audio engine returned an error while loading the track."
	}

	if triedFallback && !usedFallback {
		details += "\n\nAlso tried SoundCloud (`scsearch:`) and found nothing."
	}

	if isYouTubeQuery(identifier, parsedURL) {
		details += "\n\nIf YouTube is temporarily failing, switch the default source: `/source soundcloud` (or back to auto: `/source auto`)."
	}

	return truncateDetail(details)
}

func isYouTubeQuery(identifier string, parsedURL *url.URL) bool {
	lower := strings.ToLower(identifier)
	if strings.HasPrefix(lower, "ytsearch:") || strings.HasPrefix(lower, "ytmsearch:") {
		return true
	}
	if parsedURL == nil {
		return false
	}
	host := strings.ToLower(parsedURL.Host)
	return strings.Contains(host, "youtube") || strings.Contains(host, "youtu.be")
}

func truncateDetail(details string) string {
	if len(details) > maxErrorDetailLength {
		return details[:maxErrorDetailLength] + "..."
	}
	return details
}
