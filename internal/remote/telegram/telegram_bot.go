package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rokbot/titlebot/internal/event"
	"github.com/rokbot/titlebot/internal/queue"
)

// StatusSource exposes the queues. *queue.Registry satisfies it.
type StatusSource interface {
	Snapshot() []queue.Snapshot
}

// Bot mirrors request lifecycle events to one Telegram chat and answers a
// "status" message from that chat with the current queues.
type Bot struct {
	api    *tgbotapi.BotAPI
	chatID int64
	status StatusSource
	logger *slog.Logger
}

func (b *Bot) Start(ctx context.Context) error {
	offset, err := b.latestOffset()
	if err != nil {
		return err
	}

	u := tgbotapi.NewUpdate(offset)
	u.Timeout = 5
	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.close()
			for range updates {
			}
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message == nil || update.Message.Chat == nil || update.Message.Chat.ID != b.chatID {
				continue
			}
			switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(update.Message.Text), "/")) {
			case "status", "queue":
				if err := b.send(statusText(b.status.Snapshot())); err != nil {
					b.logger.Warn("Failed to answer telegram status", slog.Any("error", err))
				}
			}
		}
	}
}

// Handle forwards the events a chat member cares about.
func (b *Bot) Handle(_ context.Context, e event.Event) error {
	text := eventText(e)
	if text == "" {
		return nil
	}
	return b.send(text)
}

func (b *Bot) send(text string) error {
	_, err := b.api.Send(tgbotapi.NewMessage(b.chatID, text))
	return err
}

func (b *Bot) latestOffset() (int, error) {
	upds, err := b.api.GetUpdates(tgbotapi.NewUpdate(-1))
	if err != nil {
		return 0, err
	}
	if len(upds) == 0 {
		return 0, nil
	}
	return upds[0].UpdateID + 1, nil
}

func (b *Bot) close() {
	b.api.StopReceivingUpdates()
	if c, ok := b.api.Client.(*http.Client); ok && c != nil {
		if tr, ok := c.Transport.(*http.Transport); ok && tr != nil {
			tr.CloseIdleConnections()
		}
	}
}

func eventText(e event.Event) string {
	switch evt := e.(type) {
	case event.RequestQueuedEvent:
		return fmt.Sprintf("[%s] %s queued for %s (position %d)", evt.Kingdom(), evt.Request.Username, evt.Request.Title, evt.Position)
	case event.RequestFinishedEvent:
		return fmt.Sprintf("[%s] %s for %s finished: %s", evt.Kingdom(), evt.Request.Title, evt.Request.Username, evt.Reason)
	case event.ConnectionLostEvent:
		return fmt.Sprintf("[%s] connection lost while processing %s", evt.Kingdom(), evt.Request.Username)
	case event.AppRefreshedEvent:
		return fmt.Sprintf("[%s] game app restarted", evt.Kingdom())
	case event.NgrokTunnelEvent:
		return evt.Message()
	default:
		return ""
	}
}

func statusText(snapshots []queue.Snapshot) string {
	if len(snapshots) == 0 {
		return "No kingdom has seen a request yet."
	}

	var sb strings.Builder
	for _, s := range snapshots {
		fmt.Fprintf(&sb, "%s: %s, %d waiting", s.Kingdom, s.State, len(s.Pending))
		if s.Current != nil {
			fmt.Fprintf(&sb, ", serving %s (%s)", s.Current.Username, s.Current.Title)
		}
		sb.WriteString("\n")
	}
	return strings.TrimSpace(sb.String())
}
