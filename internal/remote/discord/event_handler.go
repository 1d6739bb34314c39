package discord

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rokbot/titlebot/internal/event"
)

const (
	colorSuccess = 0x57F287
	colorWarning = 0xFEE75C
	colorError   = 0xED4245
)

// Handle mirrors lifecycle events to the event webhook, or to the main channel
// when no webhook is configured.
func (b *Bot) Handle(ctx context.Context, e event.Event) error {
	embed := eventEmbed(e)
	if embed == nil {
		return nil
	}

	if b.webhook != nil {
		return b.webhook.SendEmbed(ctx, embed)
	}

	_, err := b.session.ChannelMessageSendEmbed(b.channelID, embed)
	return err
}

// eventEmbed returns nil for events that are not worth a message.
func eventEmbed(e event.Event) *discordgo.MessageEmbed {
	switch evt := e.(type) {
	case event.RequestFinishedEvent:
		color := colorSuccess
		switch evt.Reason {
		case event.FinishedTimedOut:
			color = colorWarning
		case event.FinishedError:
			color = colorError
		}
		return &discordgo.MessageEmbed{
			Title:       fmt.Sprintf("%s | Kingdom %s", evt.Request.Title, evt.Kingdom()),
			Description: fmt.Sprintf("Request by **%s** finished: %s", evt.Request.Username, evt.Reason),
			Color:       color,
			Timestamp:   evt.OccurredAt().Format(time.RFC3339),
		}
	case event.ConnectionLostEvent:
		return &discordgo.MessageEmbed{
			Title:       fmt.Sprintf("Connection lost | Kingdom %s", evt.Kingdom()),
			Description: fmt.Sprintf("While processing **%s** for %s", evt.Request.Title, evt.Request.Username),
			Color:       colorError,
		}
	case event.AppRefreshedEvent:
		return &discordgo.MessageEmbed{
			Title: fmt.Sprintf("App refresh | Kingdom %s", evt.Kingdom()),
			Color: colorWarning,
		}
	case event.NgrokTunnelEvent:
		return &discordgo.MessageEmbed{Description: evt.Message()}
	default:
		return nil
	}
}
