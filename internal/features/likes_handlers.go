package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/avask/chorus/internal/features/shared"
	"github.com/avask/chorus/internal/music"
)

func Like(s *discordgo.Session, i *discordgo.InteractionCreate) {
	userID := shared.GetInteractionUserID(i)

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	res := manager.LikeCurrent(ctx, i.GuildID, userID)
	respondResult(s, i, res)
}

func Unlike(s *discordgo.Session, i *discordgo.InteractionCreate) {
	userID := shared.GetInteractionUserID(i)

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	res := manager.UnlikeCurrent(ctx, i.GuildID, userID)
	respondResult(s, i, res)
}

func Likes(s *discordgo.Session, i *discordgo.InteractionCreate) {
	userID := shared.GetInteractionUserID(i)
	page := shared.GetOptionInt(i.ApplicationCommandData().Options, "page")
	if page < 1 {
		page = 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	likes, total, err := manager.ListLikes(ctx, i.GuildID, userID, listPageSize, (page-1)*listPageSize)
	if err != nil {
		shared.RespondEphemeral(s, i, "Could not load your liked tracks.")
		return
	}
	if total == 0 {
		shared.RespondEphemeral(s, i, "You have no liked tracks yet. Use /like while something plays.")
		return
	}
	if len(likes) == 0 {
		shared.RespondEphemeral(s, i, fmt.Sprintf("Page %d is empty. You have %d liked tracks.", page, total))
		return
	}

	var b strings.Builder
	pages := (total + listPageSize - 1) / listPageSize
	b.WriteString(fmt.Sprintf("Your liked tracks (page %d of %d):", page, pages))
	for idx, like := range likes {
		position := (page-1)*listPageSize + idx + 1
		b.WriteString(fmt.Sprintf("\n%d. %s", position, formatLikeLine(like)))
	}
	b.WriteString("\nPlay one with /playliked.")
	shared.RespondEphemeral(s, i, b.String())
}

func PlayLiked(s *discordgo.Session, i *discordgo.InteractionCreate) {
	userID := shared.GetInteractionUserID(i)
	position := shared.GetOptionInt(i.ApplicationCommandData().Options, "position")

	if !shared.Defer(s, i) {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), playTimeout)
	defer cancel()

	res := manager.PlayLikedByIndex(ctx, i.GuildID, userID, position)
	shared.FollowUp(s, i, res.Message)
}

func formatLikeLine(like music.Like) string {
	title := strings.TrimSpace(like.Title)
	if title == "" {
		title = like.TrackURL
	}

	line := title
	if author := strings.TrimSpace(like.Author); author != "" {
		line += " by " + author
	}
	if like.Duration > 0 {
		line += " [" + formatDuration(like.Duration) + "]"
	}
	return line
}
