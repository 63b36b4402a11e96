package bot

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/avask/chorus/internal/lavalink"
)

// voiceGateway drives the Discord side of voice connections. The audio
// itself flows through the engine node, so joins are gateway-only and
// deafened.
type voiceGateway struct {
	session *discordgo.Session
}

func (g *voiceGateway) Join(guildID, channelID string) error {
	return g.session.ChannelVoiceJoinManual(guildID, channelID, false, true)
}

func (g *voiceGateway) Leave(guildID string) error {
	return g.session.ChannelVoiceJoinManual(guildID, "", false, true)
}

func (g *voiceGateway) BotChannelID(guildID string) string {
	state := g.session.State
	if state == nil || state.User == nil {
		return ""
	}
	vs, err := state.VoiceState(guildID, state.User.ID)
	if err != nil || vs == nil {
		return ""
	}
	return vs.ChannelID
}

type voiceCreds struct {
	sessionID string
	token     string
	endpoint  string
}

// voiceRelay pairs the bot's voice state update (session id) with the
// voice server update (token and endpoint) and forwards the complete set
// to the engine. Discord delivers the two events in either order.
type voiceRelay struct {
	engine *lavalink.Client
	userID string

	mu      sync.Mutex
	pending map[string]*voiceCreds
}

func newVoiceRelay(engine *lavalink.Client, userID string) *voiceRelay {
	return &voiceRelay{
		engine:  engine,
		userID:  userID,
		pending: make(map[string]*voiceCreds),
	}
}

func (r *voiceRelay) onVoiceStateUpdate(s *discordgo.Session, v *discordgo.VoiceStateUpdate) {
	if v.UserID != r.userID {
		return
	}

	r.mu.Lock()
	if v.ChannelID == "" {
		delete(r.pending, v.GuildID)
		r.mu.Unlock()
		return
	}
	creds := r.creds(v.GuildID)
	creds.sessionID = v.SessionID
	ready := creds.complete()
	snapshot := *creds
	r.mu.Unlock()

	if ready {
		r.forward(v.GuildID, snapshot)
	}
}

func (r *voiceRelay) onVoiceServerUpdate(s *discordgo.Session, v *discordgo.VoiceServerUpdate) {
	r.mu.Lock()
	creds := r.creds(v.GuildID)
	creds.token = v.Token
	creds.endpoint = v.Endpoint
	ready := creds.complete()
	snapshot := *creds
	r.mu.Unlock()

	if ready {
		r.forward(v.GuildID, snapshot)
	}
}

func (r *voiceRelay) creds(guildID string) *voiceCreds {
	if c, ok := r.pending[guildID]; ok {
		return c
	}
	c := &voiceCreds{}
	r.pending[guildID] = c
	return c
}

func (c *voiceCreds) complete() bool {
	return c.sessionID != "" && c.token != "" && c.endpoint != ""
}

func (r *voiceRelay) forward(guildID string, creds voiceCreds) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := r.engine.VoiceUpdate(ctx, guildID, creds.token, creds.endpoint, creds.sessionID); err != nil {
		log.Printf("failed to forward voice credentials for guild %s: %v", guildID, err)
	}
}
