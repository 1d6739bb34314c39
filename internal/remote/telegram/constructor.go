package telegram

import (
	"fmt"
	"log/slog"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const connectAttempts = 3

// NewBot connects to the Telegram API, retrying a few times because the first
// call to api.telegram.org occasionally fails with a connection reset.
func NewBot(token string, chatID int64, status StatusSource, logger *slog.Logger) (*Bot, error) {
	var (
		api *tgbotapi.BotAPI
		err error
	)

	delay := 2 * time.Second
	for attempt := 1; attempt <= connectAttempts; attempt++ {
		if api, err = tgbotapi.NewBotAPI(token); err == nil {
			break
		}
		if attempt == connectAttempts {
			return nil, fmt.Errorf("connecting to telegram after %d attempts: %w", connectAttempts, err)
		}
		logger.Warn("Telegram API connection failed, retrying",
			slog.Int("attempt", attempt),
			slog.Duration("retryIn", delay),
			slog.Any("error", err),
		)
		time.Sleep(delay)
		delay *= 2
	}

	return &Bot{api: api, chatID: chatID, status: status, logger: logger}, nil
}
