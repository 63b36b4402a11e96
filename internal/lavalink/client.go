package lavalink

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/avask/chorus/internal/music"
)

var ErrNotConnected = errors.New("lavalink node is not connected")

const (
	handshakeTimeout = 10 * time.Second
	reconnectDelay   = 5 * time.Second
	clientName       = "chorus/1.0"
)

// Client is a single-node Lavalink v4 client. Playback commands go over
// REST; track lifecycle events arrive on the websocket and are forwarded
// to the handler.
type Client struct {
	config  Config
	userID  string
	handler EventHandler
	http    *http.Client

	mu        sync.Mutex
	conn      *websocket.Conn
	sessionID string
	closed    bool
}

func NewClient(config Config, userID string, handler EventHandler) *Client {
	return &Client{
		config:  config,
		userID:  userID,
		handler: handler,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

// SetHandler installs the event handler; call before Connect.
func (c *Client) SetHandler(handler EventHandler) {
	c.handler = handler
}

// Connect dials the node websocket and keeps redialing in the background
// until Close is called. It returns after the first dial attempt; callers
// that need a live session should poll IsConnected.
func (c *Client) Connect() {
	go c.run()
}

func (c *Client) run() {
	for {
		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return
		}
		c.mu.Unlock()

		if err := c.dial(); err != nil {
			log.Printf("[lavalink] connect to %s failed: %v", c.config.Host, err)
			time.Sleep(reconnectDelay)
			continue
		}

		c.readLoop()

		c.mu.Lock()
		closed := c.closed
		c.conn = nil
		c.sessionID = ""
		c.mu.Unlock()
		if closed {
			return
		}

		log.Printf("[lavalink] disconnected from %s, reconnecting", c.config.Host)
		time.Sleep(reconnectDelay)
	}
}

func (c *Client) dial() error {
	scheme := "ws"
	if c.config.Secure {
		scheme = "wss"
	}
	endpoint := fmt.Sprintf("%s://%s:%s/v4/websocket", scheme, c.config.Host, c.config.Port)

	headers := http.Header{}
	headers.Set("Authorization", c.config.Password)
	headers.Set("User-Id", c.userID)
	headers.Set("Client-Name", clientName)

	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	conn, _, err := dialer.Dial(endpoint, headers)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	return nil
}

func (c *Client) readLoop() {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			conn.Close()
			return
		}

		var msg wsMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		c.handleMessage(msg)
	}
}

func (c *Client) handleMessage(msg wsMessage) {
	switch msg.Op {
	case "ready":
		c.mu.Lock()
		c.sessionID = msg.SessionID
		c.mu.Unlock()
		log.Printf("[lavalink] session ready (resumed=%v)", msg.Resumed)

	case "event":
		if c.handler == nil {
			return
		}
		switch msg.Type {
		case "TrackStartEvent":
			go c.handler.HandleTrackStart(msg.GuildID)
		case "TrackEndEvent":
			ended := ""
			if msg.Track != nil {
				ended = msg.Track.Encoded
			}
			go c.handler.HandleTrackEnd(msg.GuildID, ended, music.EndReason(msg.Reason))
		case "TrackExceptionEvent":
			log.Printf("[lavalink] track exception in guild %s", msg.GuildID)
		case "TrackStuckEvent":
			log.Printf("[lavalink] track stuck in guild %s", msg.GuildID)
		case "WebSocketClosedEvent":
			log.Printf("[lavalink] voice websocket closed for guild %s", msg.GuildID)
		}
	}
}

// Close stops the reconnect loop and drops the websocket.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.sessionID = ""
}

// IsConnected reports whether the node handed out a session id.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID != ""
}

// VoiceUpdate forwards Discord voice credentials so the node can open the
// voice connection for a guild.
func (c *Client) VoiceUpdate(ctx context.Context, guildID, token, endpoint, sessionID string) error {
	return c.updatePlayer(ctx, guildID, playerUpdate{
		Voice: &voiceState{Token: token, Endpoint: endpoint, SessionID: sessionID},
	})
}

func (c *Client) LoadTracks(ctx context.Context, identifier string) (music.LoadResult, error) {
	endpoint := "/v4/loadtracks?identifier=" + url.QueryEscape(identifier)

	var payload loadResponse
	if err := c.rest(ctx, http.MethodGet, endpoint, nil, &payload); err != nil {
		return music.LoadResult{}, err
	}

	switch payload.LoadType {
	case "track":
		var track wireTrack
		if err := json.Unmarshal(payload.Data, &track); err != nil {
			return music.LoadResult{}, err
		}
		return music.LoadResult{Type: music.LoadTypeTrack, Tracks: []music.Track{track.toTrack()}}, nil

	case "playlist":
		var playlist wirePlaylist
		if err := json.Unmarshal(payload.Data, &playlist); err != nil {
			return music.LoadResult{}, err
		}
		tracks := make([]music.Track, 0, len(playlist.Tracks))
		for _, t := range playlist.Tracks {
			tracks = append(tracks, t.toTrack())
		}
		return music.LoadResult{Type: music.LoadTypePlaylist, Tracks: tracks, PlaylistName: playlist.Info.Name}, nil

	case "search":
		var found []wireTrack
		if err := json.Unmarshal(payload.Data, &found); err != nil {
			return music.LoadResult{}, err
		}
		if len(found) == 0 {
			return music.LoadResult{Type: music.LoadTypeEmpty}, nil
		}
		tracks := make([]music.Track, 0, len(found))
		for _, t := range found {
			tracks = append(tracks, t.toTrack())
		}
		return music.LoadResult{Type: music.LoadTypeSearch, Tracks: tracks}, nil

	case "error":
		var exc wireException
		if err := json.Unmarshal(payload.Data, &exc); err != nil {
			return music.LoadResult{}, err
		}
		return music.LoadResult{Type: music.LoadTypeError, ErrMessage: exc.Message, ErrCause: exc.Cause}, nil

	default:
		return music.LoadResult{Type: music.LoadTypeEmpty}, nil
	}
}

func (c *Client) Play(ctx context.Context, guildID string, encoded string, volume int) error {
	track := &encoded
	return c.updatePlayer(ctx, guildID, playerUpdate{
		EncodedTrack: &track,
		Volume:       &volume,
	})
}

func (c *Client) SetPaused(ctx context.Context, guildID string, paused bool) error {
	return c.updatePlayer(ctx, guildID, playerUpdate{Paused: &paused})
}

func (c *Client) Seek(ctx context.Context, guildID string, position time.Duration) error {
	ms := position.Milliseconds()
	return c.updatePlayer(ctx, guildID, playerUpdate{Position: &ms})
}

func (c *Client) SetVolume(ctx context.Context, guildID string, volume int) error {
	return c.updatePlayer(ctx, guildID, playerUpdate{Volume: &volume})
}

// StopTrack clears the playing track; the node reports the end with
// reason "stopped".
func (c *Client) StopTrack(ctx context.Context, guildID string) error {
	var track *string
	return c.updatePlayer(ctx, guildID, playerUpdate{EncodedTrack: &track})
}

func (c *Client) Position(ctx context.Context, guildID string) (time.Duration, error) {
	sessionID, err := c.session()
	if err != nil {
		return 0, err
	}

	var player wirePlayer
	endpoint := "/v4/sessions/" + sessionID + "/players/" + guildID
	if err := c.rest(ctx, http.MethodGet, endpoint, nil, &player); err != nil {
		return 0, err
	}
	return time.Duration(player.State.Position) * time.Millisecond, nil
}

func (c *Client) DestroyPlayer(ctx context.Context, guildID string) error {
	sessionID, err := c.session()
	if err != nil {
		return err
	}
	endpoint := "/v4/sessions/" + sessionID + "/players/" + guildID
	return c.rest(ctx, http.MethodDelete, endpoint, nil, nil)
}

func (c *Client) updatePlayer(ctx context.Context, guildID string, update playerUpdate) error {
	sessionID, err := c.session()
	if err != nil {
		return err
	}
	endpoint := "/v4/sessions/" + sessionID + "/players/" + guildID + "?noReplace=false"
	return c.rest(ctx, http.MethodPatch, endpoint, update, nil)
}

func (c *Client) session() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sessionID == "" {
		return "", ErrNotConnected
	}
	return c.sessionID, nil
}

func (c *Client) rest(ctx context.Context, method, endpoint string, body, out any) error {
	scheme := "http"
	if c.config.Secure {
		scheme = "https"
	}
	fullURL := fmt.Sprintf("%s://%s:%s%s", scheme, c.config.Host, c.config.Port, endpoint)

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", c.config.Password)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("lavalink %s %s: status %d: %s", method, endpoint, resp.StatusCode, bytes.TrimSpace(detail))
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
