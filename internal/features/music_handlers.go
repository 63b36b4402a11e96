package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/avask/chorus/internal/features/shared"
	"github.com/avask/chorus/internal/music"
)

const (
	commandTimeout = 10 * time.Second

	// playTimeout covers engine wait plus playlist resolution.
	playTimeout = 30 * time.Second

	listPageSize = 10
)

func Play(s *discordgo.Session, i *discordgo.InteractionCreate) {
	query := strings.TrimSpace(shared.GetOptionString(i.ApplicationCommandData().Options, "query"))
	if query == "" {
		shared.RespondEphemeral(s, i, "Tell me what to play.")
		return
	}

	userID := shared.GetInteractionUserID(i)
	voiceChannelID := shared.FindUserVoiceChannel(s, i.GuildID, userID)
	if manager.VoiceChannel(i.GuildID) == "" && voiceChannelID == "" {
		shared.RespondEphemeral(s, i, "Join a voice channel first.")
		return
	}

	// Resolution can involve several network round trips.
	if !shared.Defer(s, i) {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), playTimeout)
	defer cancel()

	res := manager.Play(ctx, i.GuildID, voiceChannelID, i.ChannelID, query)
	shared.FollowUp(s, i, res.Message)
}

func Join(s *discordgo.Session, i *discordgo.InteractionCreate) {
	userID := shared.GetInteractionUserID(i)
	voiceChannelID := shared.FindUserVoiceChannel(s, i.GuildID, userID)
	if voiceChannelID == "" {
		shared.RespondEphemeral(s, i, "Join a voice channel first.")
		return
	}

	if !shared.Defer(s, i) {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	res := manager.Join(ctx, i.GuildID, voiceChannelID, i.ChannelID)
	shared.FollowUp(s, i, res.Message)
}

func Leave(s *discordgo.Session, i *discordgo.InteractionCreate) {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	res := manager.Leave(ctx, i.GuildID)
	respondResult(s, i, res)
}

func Skip(s *discordgo.Session, i *discordgo.InteractionCreate) {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	res := manager.Skip(ctx, i.GuildID)
	respondResult(s, i, res)
}

func Previous(s *discordgo.Session, i *discordgo.InteractionCreate) {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	res := manager.Previous(ctx, i.GuildID)
	respondResult(s, i, res)
}

func Pause(s *discordgo.Session, i *discordgo.InteractionCreate) {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	res := manager.TogglePause(ctx, i.GuildID)
	respondResult(s, i, res)
}

func Stop(s *discordgo.Session, i *discordgo.InteractionCreate) {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	res := manager.Stop(ctx, i.GuildID)
	respondResult(s, i, res)
}

func Volume(s *discordgo.Session, i *discordgo.InteractionCreate) {
	level := shared.GetOptionInt(i.ApplicationCommandData().Options, "level")

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	res := manager.SetVolume(ctx, i.GuildID, level)
	respondResult(s, i, res)
}

func Queue(s *discordgo.Session, i *discordgo.InteractionCreate) {
	position := shared.GetOptionInt(i.ApplicationCommandData().Options, "select")
	if position > 0 {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()

		res := manager.SelectQueue(ctx, i.GuildID, position)
		respondResult(s, i, res)
		return
	}

	tracks := manager.QueueSnapshot(i.GuildID)
	if len(tracks) == 0 {
		shared.RespondEphemeral(s, i, "The queue is empty.")
		return
	}

	shared.RespondEphemeral(s, i, formatTrackList("Up next:", tracks))
}

func HistoryCmd(s *discordgo.Session, i *discordgo.InteractionCreate) {
	position := shared.GetOptionInt(i.ApplicationCommandData().Options, "select")
	if position > 0 {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()

		res := manager.SelectHistory(ctx, i.GuildID, position)
		respondResult(s, i, res)
		return
	}

	tracks := manager.HistorySnapshot(i.GuildID)
	if len(tracks) == 0 {
		shared.RespondEphemeral(s, i, "The playback history is empty.")
		return
	}

	shared.RespondEphemeral(s, i, formatTrackList("Recently played (newest first):", tracks))
}

func NowPlaying(s *discordgo.Session, i *discordgo.InteractionCreate) {
	track, paused := manager.NowPlaying(i.GuildID)
	if track == nil {
		shared.RespondEphemeral(s, i, "Nothing is playing.")
		return
	}

	line := "Now playing: " + formatTrackLine(*track)
	if paused {
		line += " (paused)"
	}
	line += fmt.Sprintf("\nVolume: %d%%", manager.Volume(i.GuildID))
	if owner := manager.ShuffleOwner(i.GuildID); owner != "" {
		line += "\nLiked shuffle is on."
	}
	shared.RespondEphemeral(s, i, line)
}

func Shuffle(s *discordgo.Session, i *discordgo.InteractionCreate) {
	userID := shared.GetInteractionUserID(i)

	if !shared.Defer(s, i) {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), playTimeout)
	defer cancel()

	res := manager.ToggleLikedShuffle(ctx, i.GuildID, userID)
	shared.FollowUp(s, i, res.Message)
}

func SetSource(s *discordgo.Session, i *discordgo.InteractionCreate) {
	raw := shared.GetOptionString(i.ApplicationCommandData().Options, "source")

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	res := manager.SetPreferredSource(ctx, i.GuildID, music.ParseSource(raw))
	respondResult(s, i, res)
}

func respondResult(s *discordgo.Session, i *discordgo.InteractionCreate, res music.Result) {
	if res.OK {
		shared.Respond(s, i, res.Message)
	} else {
		shared.RespondEphemeral(s, i, res.Message)
	}
}

func formatTrackList(header string, tracks []music.Track) string {
	var b strings.Builder
	b.WriteString(header)

	shown := tracks
	if len(shown) > listPageSize {
		shown = shown[:listPageSize]
	}
	for idx, track := range shown {
		b.WriteString(fmt.Sprintf("\n%d. %s", idx+1, formatTrackLine(track)))
	}
	if len(tracks) > len(shown) {
		b.WriteString(fmt.Sprintf("\n... and %d more.", len(tracks)-len(shown)))
	}
	return b.String()
}

func formatTrackLine(track music.Track) string {
	title := strings.TrimSpace(track.Title)
	if title == "" {
		title = "Unknown Title"
	}

	line := title
	if author := strings.TrimSpace(track.Author); author != "" {
		line += " by " + author
	}
	if track.Duration > 0 {
		line += " [" + formatDuration(track.Duration) + "]"
	}
	return line
}

func formatDuration(d time.Duration) string {
	total := int(d.Seconds())
	hours := total / 3600
	minutes := (total % 3600) / 60
	seconds := total % 60

	if hours > 0 {
		return fmt.Sprintf("%d:%02d:%02d", hours, minutes, seconds)
	}
	return fmt.Sprintf("%d:%02d", minutes, seconds)
}
