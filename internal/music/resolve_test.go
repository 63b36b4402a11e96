package music

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCatalog struct {
	enabled   bool
	tracks    map[string]CatalogTrack
	title     string
	playlist  []CatalogTrack
	searches  map[string][]CatalogTrack
	downloads map[string]string
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		enabled:   true,
		tracks:    make(map[string]CatalogTrack),
		searches:  make(map[string][]CatalogTrack),
		downloads: make(map[string]string),
	}
}

func (c *fakeCatalog) Enabled() bool { return c.enabled }

func (c *fakeCatalog) SearchTracks(_ context.Context, query string, _ int) ([]CatalogTrack, error) {
	return c.searches[query], nil
}

func (c *fakeCatalog) TrackByID(_ context.Context, trackID string) (*CatalogTrack, error) {
	if track, ok := c.tracks[trackID]; ok {
		return &track, nil
	}
	return nil, errors.New("not found")
}

func (c *fakeCatalog) Playlist(context.Context, string, string) (string, []CatalogTrack, error) {
	return c.title, c.playlist, nil
}

func (c *fakeCatalog) DownloadURL(_ context.Context, track CatalogTrack) (string, error) {
	if u, ok := c.downloads[track.ID]; ok {
		return u, nil
	}
	return "", errors.New("no download")
}

func (c *fakeCatalog) TrackURL(track CatalogTrack) string {
	return "https://music.yandex.ru/track/" + track.ID
}

func TestResolvePlainTextDefaultsToYouTubeSearch(t *testing.T) {
	engine := newFakeEngine()
	engine.addTrack("ytsearch:some song", Track{Encoded: "e1", Title: "Some Song"})
	r := NewResolver(engine, nil, nil)

	res := r.Resolve(context.Background(), "g", "some song")

	require.Equal(t, ResolvedTrack, res.Kind)
	assert.Equal(t, []string{"ytsearch:some song"}, engine.loadCallsSnapshot())
}

func TestResolvePlainTextUsesPreferredSource(t *testing.T) {
	engine := newFakeEngine()
	engine.addTrack("scsearch:some song", Track{Encoded: "e1"})
	r := NewResolver(engine, nil, newFakePrefs(SourceSoundCloud))

	res := r.Resolve(context.Background(), "g", "some song")

	require.Equal(t, ResolvedTrack, res.Kind)
	assert.Equal(t, []string{"scsearch:some song"}, engine.loadCallsSnapshot())
}

func TestResolveExplicitIdentifierBypassesPreference(t *testing.T) {
	engine := newFakeEngine()
	engine.addTrack("scsearch:tune", Track{Encoded: "e1"})
	r := NewResolver(engine, nil, newFakePrefs(SourceYouTube))

	res := r.Resolve(context.Background(), "g", "scsearch:tune")

	require.Equal(t, ResolvedTrack, res.Kind)
	assert.Equal(t, []string{"scsearch:tune"}, engine.loadCallsSnapshot())
}

func TestResolveFallsBackToSoundCloudOnce(t *testing.T) {
	engine := newFakeEngine()
	engine.loads["ytsearch:rare song"] = LoadResult{Type: LoadTypeError, ErrMessage: "boom"}
	engine.addTrack("scsearch:rare song", Track{Encoded: "sc1", Title: "Rare Song"})
	r := NewResolver(engine, nil, nil)

	res := r.Resolve(context.Background(), "g", "rare song")

	require.Equal(t, ResolvedTrack, res.Kind)
	assert.Equal(t, "sc1", res.Tracks[0].Encoded)
	assert.Equal(t, []string{"ytsearch:rare song", "scsearch:rare song"}, engine.loadCallsSnapshot())
}

func TestResolveNoFallbackForExplicitPreference(t *testing.T) {
	engine := newFakeEngine()
	engine.loads["ytsearch:rare song"] = LoadResult{Type: LoadTypeError, ErrMessage: "boom"}
	r := NewResolver(engine, nil, newFakePrefs(SourceYouTube))

	res := r.Resolve(context.Background(), "g", "rare song")

	require.Equal(t, ResolvedError, res.Kind)
	assert.Equal(t, []string{"ytsearch:rare song"}, engine.loadCallsSnapshot())
}

func TestResolveErrorShaping(t *testing.T) {
	engine := newFakeEngine()
	engine.loads["ytsearch:bad"] = LoadResult{
		Type:       LoadTypeError,
		ErrMessage: "Something went wrong while looking up the track.",
		ErrCause:   "java.net.SocketTimeoutException: timed out",
	}
	r := NewResolver(engine, nil, nil)

	res := r.Resolve(context.Background(), "g", "bad")

	require.Equal(t, ResolvedError, res.Kind)
	// Generic engine text is replaced by the underlying cause.
	assert.Contains(t, res.ErrMessage, "timed out")
	assert.NotContains(t, res.ErrMessage, "Something went wrong")
	assert.Contains(t, res.ErrMessage, "Also tried SoundCloud")
	assert.Contains(t, res.ErrMessage, "/source soundcloud")
}

func TestResolveErrorTruncation(t *testing.T) {
	engine := newFakeEngine()
	engine.loads["ytsearch:bad"] = LoadResult{
		Type:       LoadTypeError,
		ErrMessage: strings.Repeat("x", 5000),
	}
	r := NewResolver(engine, nil, newFakePrefs(SourceYouTube))

	res := r.Resolve(context.Background(), "g", "bad")

	require.Equal(t, ResolvedError, res.Kind)
	assert.LessOrEqual(t, len(res.ErrMessage), maxErrorDetailLength+3)
	assert.True(t, strings.HasSuffix(res.ErrMessage, "..."))
}

func TestResolvePlaylistCapped(t *testing.T) {
	tracks := make([]Track, 60)
	for i := range tracks {
		tracks[i] = Track{Encoded: fmt.Sprintf("e%d", i)}
	}

	engine := newFakeEngine()
	engine.loads["https://example.com/playlist"] = LoadResult{
		Type:         LoadTypePlaylist,
		Tracks:       tracks,
		PlaylistName: "Big Mix",
	}
	r := NewResolver(engine, nil, nil)

	res := r.Resolve(context.Background(), "g", "https://example.com/playlist")

	require.Equal(t, ResolvedPlaylist, res.Kind)
	assert.Len(t, res.Tracks, maxPlaylistTracks)
	assert.Equal(t, 60, res.TotalTracks)
	assert.Equal(t, "Big Mix", res.PlaylistName)
}

func TestResolveEmptyQuery(t *testing.T) {
	r := NewResolver(newFakeEngine(), nil, nil)
	res := r.Resolve(context.Background(), "g", "   ")
	assert.Equal(t, ResolvedError, res.Kind)
}

func TestResolveYandexWithoutCatalog(t *testing.T) {
	r := NewResolver(newFakeEngine(), nil, nil)

	res := r.Resolve(context.Background(), "g", "https://music.yandex.ru/album/1/track/2")

	require.Equal(t, ResolvedError, res.Kind)
	assert.Contains(t, res.ErrMessage, "YANDEX_MUSIC_TOKEN")
}

func TestResolveYandexTrackURL(t *testing.T) {
	engine := newFakeEngine()
	engine.addTrack("https://dl.example/2.mp3", Track{Encoded: "enc2", Title: "raw"})

	catalog := newFakeCatalog()
	catalog.tracks["2"] = CatalogTrack{ID: "2", Title: "Nice Tune", Artists: []string{"Someone"}}
	catalog.downloads["2"] = "https://dl.example/2.mp3"

	r := NewResolver(engine, catalog, nil)
	res := r.Resolve(context.Background(), "g", "https://music.yandex.ru/album/1/track/2")

	require.Equal(t, ResolvedTrack, res.Kind)
	track := res.Tracks[0]
	assert.Equal(t, "enc2", track.Encoded)
	assert.Equal(t, "Nice Tune", track.Title)
	assert.Equal(t, "Someone", track.Author)
	assert.Equal(t, "Yandex Music", track.SourceName)
	assert.Equal(t, "https://music.yandex.ru/track/2", track.URL)
}

func TestResolveYandexPlaylistDropsFailures(t *testing.T) {
	engine := newFakeEngine()
	engine.addTrack("https://dl.example/1.mp3", Track{Encoded: "enc1"})
	engine.addTrack("https://dl.example/3.mp3", Track{Encoded: "enc3"})

	catalog := newFakeCatalog()
	catalog.title = "My Mix"
	catalog.playlist = []CatalogTrack{
		{ID: "1", Title: "One"},
		{ID: "2", Title: "Two"},
		{ID: "3", Title: "Three"},
	}
	catalog.downloads["1"] = "https://dl.example/1.mp3"
	catalog.downloads["3"] = "https://dl.example/3.mp3"

	r := NewResolver(engine, catalog, nil)
	res := r.Resolve(context.Background(), "g", "https://music.yandex.ru/users/me/playlists/7")

	require.Equal(t, ResolvedPlaylist, res.Kind)
	require.Len(t, res.Tracks, 2)
	assert.Equal(t, "enc1", res.Tracks[0].Encoded)
	assert.Equal(t, "enc3", res.Tracks[1].Encoded)
	assert.Equal(t, "My Mix", res.PlaylistName)
	assert.Equal(t, 3, res.TotalTracks)
}

func TestNormalizeYouTubeURL(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"https://www.youtube.com/watch?v=abc123&list=xyz", "https://www.youtube.com/watch?v=abc123"},
		{"https://music.youtube.com/watch?v=abc123", "https://www.youtube.com/watch?v=abc123"},
		{"https://youtu.be/abc123?t=30", "https://www.youtube.com/watch?v=abc123"},
		{"https://www.youtube.com/playlist?list=xyz", "https://www.youtube.com/playlist?list=xyz"},
		{"https://soundcloud.com/artist/track", "https://soundcloud.com/artist/track"},
	}

	for _, tc := range cases {
		u, err := url.Parse(tc.in)
		require.NoError(t, err)
		assert.Equal(t, tc.want, normalizeYouTubeURL(u, tc.in), tc.in)
	}
}

func TestIsSearchIdentifier(t *testing.T) {
	assert.True(t, isSearchIdentifier("ytsearch:abc"))
	assert.True(t, isSearchIdentifier("YTMSearch:abc"))
	assert.True(t, isSearchIdentifier("scsearch:abc"))
	assert.True(t, isSearchIdentifier("ymsearch:abc"))
	assert.False(t, isSearchIdentifier("plain text"))
	assert.False(t, isSearchIdentifier("https://youtu.be/x"))
}

func TestParseYandexPaths(t *testing.T) {
	owner, kind, ok := parseYandexPlaylistPath("/users/alice/playlists/1002")
	require.True(t, ok)
	assert.Equal(t, "alice", owner)
	assert.Equal(t, "1002", kind)

	_, _, ok = parseYandexPlaylistPath("/album/5/track/6")
	assert.False(t, ok)

	assert.Equal(t, "42", parseYandexTrackID("/album/5/track/42"))
	assert.Equal(t, "42", parseYandexTrackID("/track/42?lang=en"))
	assert.Equal(t, "", parseYandexTrackID("/album/5"))
}
