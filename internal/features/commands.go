package commands

import (
	"fmt"
	"log"

	"github.com/bwmarrin/discordgo"

	"github.com/avask/chorus/internal/features/shared"
	"github.com/avask/chorus/internal/music"
)

// manager is set once at startup via Configure before any handler runs.
var manager *music.Manager

func Configure(m *music.Manager) {
	manager = m
}

var (
	minVolume = float64(0)
	maxVolume = float64(100)
	minIndex  = float64(1)

	CommandList = []*discordgo.ApplicationCommand{
		{
			Name:        "play",
			Description: "Play a track by name, URL, or search prefix",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "query",
					Description: "Track name, URL, or ytsearch:/scsearch:/ymsearch: query",
					Required:    true,
				},
			},
		},
		{
			Name:        "join",
			Description: "Join your voice channel",
		},
		{
			Name:        "leave",
			Description: "Leave the voice channel and clear playback state",
		},
		{
			Name:        "skip",
			Description: "Skip the current track",
		},
		{
			Name:        "previous",
			Description: "Play the previous track from history",
		},
		{
			Name:        "pause",
			Description: "Pause or resume playback",
		},
		{
			Name:        "stop",
			Description: "Stop playback and clear the queue",
		},
		{
			Name:        "volume",
			Description: "Set the playback volume",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "level",
					Description: "Volume from 0 to 100",
					Required:    true,
					MinValue:    &minVolume,
					MaxValue:    maxVolume,
				},
			},
		},
		{
			Name:        "queue",
			Description: "Show the queue, or jump to a queued track",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "select",
					Description: "Queue position to play now",
					Required:    false,
					MinValue:    &minIndex,
				},
			},
		},
		{
			Name:        "history",
			Description: "Show played tracks, or replay one of them",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "select",
					Description: "History position to play now (1 is the most recent)",
					Required:    false,
					MinValue:    &minIndex,
				},
			},
		},
		{
			Name:        "nowplaying",
			Description: "Show the current track",
		},
		{
			Name:        "like",
			Description: "Save the current track to your liked list",
		},
		{
			Name:        "unlike",
			Description: "Remove the current track from your liked list",
		},
		{
			Name:        "likes",
			Description: "List your liked tracks",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "page",
					Description: "Page to show",
					Required:    false,
					MinValue:    &minIndex,
				},
			},
		},
		{
			Name:        "playliked",
			Description: "Play a track from your liked list",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "position",
					Description: "Position in your liked list",
					Required:    true,
					MinValue:    &minIndex,
				},
			},
		},
		{
			Name:        "shuffle",
			Description: "Toggle autoplay from your liked tracks",
		},
		{
			Name:        "source",
			Description: "Set the default source for plain-text searches",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "source",
					Description: "Where plain-text queries are searched",
					Required:    true,
					Choices: []*discordgo.ApplicationCommandOptionChoice{
						{Name: "Auto (YouTube with SoundCloud fallback)", Value: string(music.SourceAuto)},
						{Name: "YouTube", Value: string(music.SourceYouTube)},
						{Name: "YouTube Music", Value: string(music.SourceYouTubeMusic)},
						{Name: "SoundCloud", Value: string(music.SourceSoundCloud)},
						{Name: "Yandex Music", Value: string(music.SourceYandexMusic)},
					},
				},
			},
		},
	}

	commandHandlers = map[string]func(s *discordgo.Session, i *discordgo.InteractionCreate){
		"play":       Play,
		"join":       Join,
		"leave":      Leave,
		"skip":       Skip,
		"previous":   Previous,
		"pause":      Pause,
		"stop":       Stop,
		"volume":     Volume,
		"queue":      Queue,
		"history":    HistoryCmd,
		"nowplaying": NowPlaying,
		"like":       Like,
		"unlike":     Unlike,
		"likes":      Likes,
		"playliked":  PlayLiked,
		"shuffle":    Shuffle,
		"source":     SetSource,
	}
)

func RegisterCommands(s *discordgo.Session, appID string, guildID string) ([]*discordgo.ApplicationCommand, error) {
	scope := "global"
	if guildID != "" {
		scope = fmt.Sprintf("guild:%s", guildID)
	}

	log.Printf("Registering %d commands (%s)", len(CommandList), scope)

	cmds, err := s.ApplicationCommandBulkOverwrite(appID, guildID, CommandList)
	if err != nil {
		return nil, fmt.Errorf("cannot bulk overwrite commands: %w", err)
	}
	return cmds, nil
}

func AddHandlers(s *discordgo.Session) {
	s.AddHandler(func(s *discordgo.Session, i *discordgo.InteractionCreate) {
		if i.Type != discordgo.InteractionApplicationCommand {
			return
		}

		if i.GuildID == "" {
			shared.RespondEphemeral(s, i, "This command only works in a server.")
			return
		}

		data := i.ApplicationCommandData()
		if handler, ok := commandHandlers[data.Name]; ok {
			handler(s, i)
		}
	})
}
