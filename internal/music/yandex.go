package music

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

var ErrYandexResolveFailed = errors.New("failed to resolve yandex music track")

const (
	yandexAPIBase = "https://api.music.yandex.net"

	// yandexDownloadSalt signs direct download urls; the api rejects
	// unsigned paths.
	yandexDownloadSalt = "XGRlBW9FXlekgbPrRHuSiA"
)

// YandexClient talks to the Yandex Music API. A zero token disables the
// client; every caller is expected to check Enabled first.
type YandexClient struct {
	Token      string
	HTTPClient *http.Client
}

func NewYandexClient(token string) *YandexClient {
	return &YandexClient{
		Token:      strings.TrimSpace(token),
		HTTPClient: &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *YandexClient) Enabled() bool {
	return c != nil && c.Token != ""
}

func (c *YandexClient) SearchTracks(ctx context.Context, query string, limit int) ([]CatalogTrack, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: empty query", ErrYandexResolveFailed)
	}
	if limit <= 0 {
		limit = 1
	}
	if limit > 10 {
		limit = 10
	}

	params := url.Values{}
	params.Set("text", query)
	params.Set("type", "track")
	params.Set("page", "0")

	var payload struct {
		Result struct {
			Tracks struct {
				Results []yandexTrack `json:"results"`
			} `json:"tracks"`
		} `json:"result"`
	}
	if err := c.getJSON(ctx, "/search?"+params.Encode(), &payload); err != nil {
		return nil, err
	}

	results := payload.Result.Tracks.Results
	if len(results) > limit {
		results = results[:limit]
	}

	tracks := make([]CatalogTrack, 0, len(results))
	for _, t := range results {
		tracks = append(tracks, t.toCatalogTrack())
	}
	return tracks, nil
}

func (c *YandexClient) TrackByID(ctx context.Context, trackID string) (*CatalogTrack, error) {
	trackID = strings.TrimSpace(trackID)
	if trackID == "" {
		return nil, fmt.Errorf("%w: empty track id", ErrYandexResolveFailed)
	}

	var payload struct {
		Result []yandexTrack `json:"result"`
	}
	if err := c.getJSON(ctx, "/tracks/"+url.PathEscape(trackID), &payload); err != nil {
		return nil, err
	}
	if len(payload.Result) == 0 {
		return nil, fmt.Errorf("%w: track %s not found", ErrYandexResolveFailed, trackID)
	}

	track := payload.Result[0].toCatalogTrack()
	return &track, nil
}

func (c *YandexClient) Playlist(ctx context.Context, owner, kind string) (string, []CatalogTrack, error) {
	if owner == "" || kind == "" {
		return "", nil, fmt.Errorf("%w: incomplete playlist reference", ErrYandexResolveFailed)
	}

	var payload struct {
		Result struct {
			Title  string `json:"title"`
			Tracks []struct {
				Track yandexTrack `json:"track"`
			} `json:"tracks"`
		} `json:"result"`
	}
	endpoint := "/users/" + url.PathEscape(owner) + "/playlists/" + url.PathEscape(kind)
	if err := c.getJSON(ctx, endpoint, &payload); err != nil {
		return "", nil, err
	}

	tracks := make([]CatalogTrack, 0, len(payload.Result.Tracks))
	for _, entry := range payload.Result.Tracks {
		if entry.Track.ID == "" {
			continue
		}
		tracks = append(tracks, entry.Track.toCatalogTrack())
	}
	return payload.Result.Title, tracks, nil
}

// DownloadURL resolves a signed direct mp3 url for the track. The url is
// short-lived and must be loaded through the engine promptly.
func (c *YandexClient) DownloadURL(ctx context.Context, track CatalogTrack) (string, error) {
	var info struct {
		Result []struct {
			Codec           string `json:"codec"`
			BitrateInKbps   int    `json:"bitrateInKbps"`
			DownloadInfoURL string `json:"downloadInfoUrl"`
		} `json:"result"`
	}
	if err := c.getJSON(ctx, "/tracks/"+url.PathEscape(track.ID)+"/download-info", &info); err != nil {
		return "", err
	}

	infoURL := ""
	bestBitrate := -1
	for _, entry := range info.Result {
		if entry.Codec != "mp3" {
			continue
		}
		if entry.BitrateInKbps > bestBitrate {
			bestBitrate = entry.BitrateInKbps
			infoURL = entry.DownloadInfoURL
		}
	}
	if infoURL == "" {
		return "", fmt.Errorf("%w: no mp3 download info for track %s", ErrYandexResolveFailed, track.ID)
	}

	var details struct {
		Host string `json:"host"`
		Path string `json:"path"`
		TS   string `json:"ts"`
		S    string `json:"s"`
	}
	if err := c.getJSONAbsolute(ctx, infoURL+"&format=json", &details); err != nil {
		return "", err
	}
	if details.Host == "" || details.Path == "" {
		return "", fmt.Errorf("%w: incomplete download info for track %s", ErrYandexResolveFailed, track.ID)
	}

	sum := md5.Sum([]byte(yandexDownloadSalt + details.Path[1:] + details.S))
	sign := hex.EncodeToString(sum[:])
	return fmt.Sprintf("https://%s/get-mp3/%s/%s%s", details.Host, sign, details.TS, details.Path), nil
}

// TrackURL builds the public track page, used as the display url.
func (c *YandexClient) TrackURL(track CatalogTrack) string {
	if track.AlbumID != "" {
		return fmt.Sprintf("https://music.yandex.ru/album/%s/track/%s", track.AlbumID, track.ID)
	}
	return "https://music.yandex.ru/track/" + track.ID
}

func (c *YandexClient) getJSON(ctx context.Context, endpoint string, out any) error {
	return c.getJSONAbsolute(ctx, yandexAPIBase+endpoint, out)
}

func (c *YandexClient) getJSONAbsolute(ctx context.Context, fullURL string, out any) error {
	if !c.Enabled() {
		return fmt.Errorf("%w: missing yandex music token", ErrYandexResolveFailed)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "OAuth "+c.Token)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: yandex api status %d", ErrYandexResolveFailed, resp.StatusCode)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

type yandexTrack struct {
	ID      json.Number `json:"id"`
	Title   string      `json:"title"`
	Artists []struct {
		Name string `json:"name"`
	} `json:"artists"`
	Albums []struct {
		ID json.Number `json:"id"`
	} `json:"albums"`
}

func (t yandexTrack) toCatalogTrack() CatalogTrack {
	artists := make([]string, 0, len(t.Artists))
	for _, a := range t.Artists {
		if a.Name != "" {
			artists = append(artists, a.Name)
		}
	}

	albumID := ""
	if len(t.Albums) > 0 {
		albumID = t.Albums[0].ID.String()
	}

	return CatalogTrack{
		ID:      t.ID.String(),
		Title:   strings.TrimSpace(t.Title),
		Artists: artists,
		AlbumID: albumID,
	}
}
