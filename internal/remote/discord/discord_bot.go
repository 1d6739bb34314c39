package discord

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rokbot/titlebot/internal/bot"
	"github.com/rokbot/titlebot/internal/queue"
	"github.com/rokbot/titlebot/internal/store"
	"github.com/rokbot/titlebot/internal/title"
)

// Submitter accepts title requests. *bot.Driver satisfies it.
type Submitter interface {
	Submit(ctx context.Context, req queue.Request) (bot.Ticket, error)
}

// ProfileStore is the persistence used by slash commands.
type ProfileStore interface {
	Profile(ctx context.Context, userID string) (store.Profile, error)
	UpsertProfile(ctx context.Context, p store.Profile) error
	SetLocked(ctx context.Context, t title.Title, kingdom string, locked bool, by string) error
	SetDuration(ctx context.Context, t title.Title, kingdom string, d time.Duration) error
}

// ReactionRouter receives reactions on bot messages. *watch.Watcher satisfies it.
type ReactionRouter interface {
	HandleReaction(messageID, userID, emoji string) bool
}

// StatusSource exposes the queues. *queue.Registry satisfies it.
type StatusSource interface {
	Snapshot() []queue.Snapshot
}

type Bot struct {
	session   *discordgo.Session
	appID     string
	guildID   string
	channelID string
	emoji     string
	webhook   *webhookClient
	logger    *slog.Logger

	submitter Submitter
	store     ProfileStore
	reactions ReactionRouter
	status    StatusSource

	ctx context.Context
}

func NewBot(token, appID, guildID, channelID, emoji, eventWebhookURL string, logger *slog.Logger) (*Bot, error) {
	dg, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("error creating Discord session: %w", err)
	}

	b := &Bot{
		session:   dg,
		appID:     appID,
		guildID:   guildID,
		channelID: channelID,
		emoji:     emoji,
		logger:    logger,
		ctx:       context.Background(),
	}
	if strings.TrimSpace(eventWebhookURL) != "" {
		b.webhook = newWebhookClient(eventWebhookURL)
	}

	return b, nil
}

// Bind connects the bot to the components it forwards commands and reactions to.
// It has to be called before Start.
func (b *Bot) Bind(submitter Submitter, profiles ProfileStore, reactions ReactionRouter, status StatusSource) {
	b.submitter = submitter
	b.store = profiles
	b.reactions = reactions
	b.status = status
}

func (b *Bot) Start(ctx context.Context) error {
	b.ctx = ctx

	b.session.AddHandler(b.onInteractionCreate)
	b.session.AddHandler(b.onReactionAdd)
	b.session.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMessages | discordgo.IntentsGuildMessageReactions
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("error opening connection: %w", err)
	}
	b.logger.Info("Discord bot connected", slog.String("user", b.session.State.User.Username))

	<-ctx.Done()

	return b.session.Close()
}

// Notify posts a plain message to a channel.
func (b *Bot) Notify(_ context.Context, channelID, text string) error {
	if channelID == "" {
		channelID = b.channelID
	}
	_, err := b.session.ChannelMessageSend(channelID, text)
	return err
}

// Prompt posts the acknowledgment prompt and pre-reacts with the acknowledgment
// emoji so the requester only has to click it.
func (b *Bot) Prompt(_ context.Context, channelID, _ string, text string) (string, error) {
	if channelID == "" {
		channelID = b.channelID
	}
	msg, err := b.session.ChannelMessageSend(channelID, text)
	if err != nil {
		return "", err
	}
	if err := b.session.MessageReactionAdd(channelID, msg.ID, b.emoji); err != nil {
		b.logger.Warn("Failed to add acknowledgment reaction", slog.String("message", msg.ID), slog.Any("error", err))
	}

	return msg.ID, nil
}

func (b *Bot) onReactionAdd(s *discordgo.Session, r *discordgo.MessageReactionAdd) {
	if s.State != nil && s.State.User != nil && r.UserID == s.State.User.ID {
		return
	}
	if b.reactions == nil {
		return
	}

	if b.reactions.HandleReaction(r.MessageID, r.UserID, r.Emoji.Name) {
		b.logger.Debug("Acknowledgment received", slog.String("user", r.UserID), slog.String("message", r.MessageID))
	}
}

func (b *Bot) onInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}

	data := i.ApplicationCommandData()
	switch data.Name {
	case cmdTitle:
		b.handleTitleRequest(s, i)
	case cmdTitles:
		b.respond(s, i, titlesText())
	case cmdMe:
		b.handleMeRequest(s, i)
	case cmdRegister:
		b.handleRegisterRequest(s, i)
	case cmdLockTitle:
		b.handleLockRequest(s, i, true)
	case cmdUnlockTitle:
		b.handleLockRequest(s, i, false)
	case cmdSetTimer:
		b.handleSetTimerRequest(s, i)
	case cmdQueue:
		b.handleQueueRequest(s, i)
	default:
		b.respond(s, i, fmt.Sprintf("Unknown command: `%s`.", data.Name))
	}
}

func (b *Bot) respond(s *discordgo.Session, i *discordgo.InteractionCreate, content string) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Content: content},
	})
	if err != nil {
		b.logger.Warn("Failed to respond to interaction", slog.Any("error", err))
	}
}

func (b *Bot) deferReply(s *discordgo.Session, i *discordgo.InteractionCreate) bool {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
	})
	if err != nil {
		b.logger.Warn("Failed to defer interaction", slog.Any("error", err))
		return false
	}
	return true
}

func (b *Bot) followUp(s *discordgo.Session, i *discordgo.InteractionCreate, content string) {
	if _, err := s.FollowupMessageCreate(i.Interaction, true, &discordgo.WebhookParams{Content: content}); err != nil {
		b.logger.Warn("Failed to send follow-up", slog.Any("error", err))
	}
}

func interactionUser(i *discordgo.InteractionCreate) *discordgo.User {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User
	}
	return i.User
}
