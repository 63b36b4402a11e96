package commands

import (
	"log"
	"sync"

	"github.com/bwmarrin/discordgo"
)

// announcer posts a message to the guild's command channel whenever the
// playing track changes. It tracks the last announced track per guild so
// pause/volume updates stay silent.
type announcer struct {
	mu   sync.Mutex
	last map[string]string
}

// NewAnnouncer returns a playback subscriber bound to the session.
func NewAnnouncer(s *discordgo.Session) func(guildID string) {
	a := &announcer{last: make(map[string]string)}

	return func(guildID string) {
		track, _ := manager.NowPlaying(guildID)
		channelID := manager.TextChannel(guildID)

		key := ""
		if track != nil {
			key = track.Encoded
		}

		a.mu.Lock()
		changed := a.last[guildID] != key
		a.last[guildID] = key
		a.mu.Unlock()

		if !changed || track == nil || channelID == "" {
			return
		}

		if _, err := s.ChannelMessageSend(channelID, "Now playing: "+formatTrackLine(*track)); err != nil {
			log.Printf("failed to announce track in guild %s: %v", guildID, err)
		}
	}
}
