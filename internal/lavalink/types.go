package lavalink

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/avask/chorus/internal/music"
)

// Config locates a Lavalink v4 node.
type Config struct {
	Host     string
	Port     string
	Password string
	Secure   bool
}

type wireTrackInfo struct {
	Identifier string `json:"identifier"`
	IsSeekable bool   `json:"isSeekable"`
	Author     string `json:"author"`
	Length     int64  `json:"length"`
	IsStream   bool   `json:"isStream"`
	Title      string `json:"title"`
	URI        string `json:"uri"`
	SourceName string `json:"sourceName"`
}

type wireTrack struct {
	Encoded string        `json:"encoded"`
	Info    wireTrackInfo `json:"info"`
}

func (t wireTrack) toTrack() music.Track {
	return music.Track{
		Encoded:    t.Encoded,
		Title:      strings.TrimSpace(t.Info.Title),
		Author:     strings.TrimSpace(t.Info.Author),
		SourceName: t.Info.SourceName,
		URL:        t.Info.URI,
		Duration:   time.Duration(t.Info.Length) * time.Millisecond,
		Seekable:   t.Info.IsSeekable && !t.Info.IsStream,
	}
}

// loadResponse is the /v4/loadtracks envelope; Data is shaped by LoadType.
type loadResponse struct {
	LoadType string          `json:"loadType"`
	Data     json.RawMessage `json:"data"`
}

type wirePlaylist struct {
	Info struct {
		Name string `json:"name"`
	} `json:"info"`
	Tracks []wireTrack `json:"tracks"`
}

type wireException struct {
	Message  string `json:"message"`
	Severity string `json:"severity"`
	Cause    string `json:"cause"`
}

type wirePlayerState struct {
	Time      int64 `json:"time"`
	Position  int64 `json:"position"`
	Connected bool  `json:"connected"`
}

type wirePlayer struct {
	GuildID string          `json:"guildId"`
	Track   *wireTrack      `json:"track"`
	Volume  int             `json:"volume"`
	Paused  bool            `json:"paused"`
	State   wirePlayerState `json:"state"`
}

// playerUpdate is the PATCH body for /v4/sessions/{id}/players/{guild}.
// Pointer fields are omitted when unset; EncodedTrack uses a double pointer
// so an explicit null (stop) survives marshalling.
type playerUpdate struct {
	EncodedTrack **string               `json:"encodedTrack,omitempty"`
	Position     *int64                 `json:"position,omitempty"`
	Volume       *int                   `json:"volume,omitempty"`
	Paused       *bool                  `json:"paused,omitempty"`
	Voice        *voiceState            `json:"voice,omitempty"`
	UserData     map[string]interface{} `json:"userData,omitempty"`
}

type voiceState struct {
	Token     string `json:"token"`
	Endpoint  string `json:"endpoint"`
	SessionID string `json:"sessionId"`
}

// wsMessage is the websocket envelope; event fields are only set for
// op "event".
type wsMessage struct {
	Op        string `json:"op"`
	Resumed   bool   `json:"resumed"`
	SessionID string `json:"sessionId"`

	Type    string     `json:"type"`
	GuildID string     `json:"guildId"`
	Track   *wireTrack `json:"track"`
	Reason  string     `json:"reason"`
}

// EventHandler receives playback lifecycle events from the node. End
// events name the track that ended so a late duplicate can be told apart
// from the track playing now.
type EventHandler interface {
	HandleTrackStart(guildID string)
	HandleTrackEnd(guildID, endedTrack string, reason music.EndReason)
}
