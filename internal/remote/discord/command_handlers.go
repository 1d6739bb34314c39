package discord

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rokbot/titlebot/internal/bot"
	"github.com/rokbot/titlebot/internal/config"
	"github.com/rokbot/titlebot/internal/queue"
	"github.com/rokbot/titlebot/internal/store"
	"github.com/rokbot/titlebot/internal/title"
)

type options map[string]*discordgo.ApplicationCommandInteractionDataOption

func optionMap(opts []*discordgo.ApplicationCommandInteractionDataOption) options {
	m := make(options, len(opts))
	for _, o := range opts {
		m[o.Name] = o
	}
	return m
}

func (o options) stringOpt(name string) (string, bool) {
	if opt, found := o[name]; found {
		return strings.TrimSpace(opt.StringValue()), true
	}
	return "", false
}

func (o options) intOpt(name string) (int, bool) {
	if opt, found := o[name]; found {
		return int(opt.IntValue()), true
	}
	return 0, false
}

// requestTarget fills kingdom and coordinates from the options, falling back to the
// registered profile for anything left out.
func requestTarget(opts options, lookup func() (store.Profile, error)) (kingdom string, x, y int, err error) {
	kingdom, hasKingdom := opts.stringOpt("kingdom")
	x, hasX := opts.intOpt("x")
	y, hasY := opts.intOpt("y")
	if hasKingdom && hasX && hasY {
		return kingdom, x, y, nil
	}

	p, err := lookup()
	if err != nil {
		return "", 0, 0, err
	}
	if !hasKingdom {
		kingdom = p.Kingdom
	}
	if !hasX {
		x = p.X
	}
	if !hasY {
		y = p.Y
	}
	return kingdom, x, y, nil
}

func submitErrorText(err error) string {
	switch {
	case errors.Is(err, store.ErrProfileNotFound):
		return "You are not registered yet. Use `/register` with your username, kingdom and coordinates first."
	case errors.Is(err, bot.ErrTitleLocked):
		return "That title is locked right now."
	case errors.Is(err, bot.ErrAlreadyQueued):
		return "You already have a title request in the queue for this kingdom."
	case errors.Is(err, bot.ErrUnknownKingdom):
		return "That kingdom is not served by this bot."
	case errors.Is(err, title.ErrUnknownTitle):
		return "Unknown title. Use `/titles` to see the available ones."
	default:
		return fmt.Sprintf("Could not queue your request: %s", err)
	}
}

func titlesText() string {
	var sb strings.Builder
	sb.WriteString("**Available titles**\n")
	for _, t := range title.All() {
		sb.WriteString(fmt.Sprintf("• **%s**: %s\n", t, t.Buff()))
	}
	return strings.TrimSpace(sb.String())
}

func profileText(p store.Profile) string {
	return fmt.Sprintf("**%s**\nKingdom: %s\nCoordinates: X %d, Y %d", p.Username, p.Kingdom, p.X, p.Y)
}

func queueText(snapshots []queue.Snapshot, kingdom string) string {
	var sb strings.Builder
	for _, s := range snapshots {
		if kingdom != "" && s.Kingdom != kingdom {
			continue
		}
		sb.WriteString(fmt.Sprintf("**Kingdom %s** (%s)\n", s.Kingdom, s.State))
		if s.Current != nil {
			sb.WriteString(fmt.Sprintf("▶ %s: %s\n", s.Current.Username, s.Current.Title))
		}
		for i, r := range s.Pending {
			sb.WriteString(fmt.Sprintf("%d. %s: %s\n", i+1, r.Username, r.Title))
		}
	}
	if sb.Len() == 0 {
		return "No title requests pending."
	}
	return strings.TrimSpace(sb.String())
}

func (b *Bot) handleTitleRequest(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if !b.deferReply(s, i) {
		return
	}

	opts := optionMap(i.ApplicationCommandData().Options)
	requester := interactionUser(i)
	target := requester
	if opt, found := opts["user"]; found {
		target = opt.UserValue(nil)
	}

	rawTitle, _ := opts.stringOpt("title")
	t, err := title.Parse(rawTitle)
	if err != nil {
		b.followUp(s, i, submitErrorText(err))
		return
	}

	username := target.Username
	kingdom, x, y, err := requestTarget(opts, func() (store.Profile, error) {
		p, err := b.store.Profile(b.ctx, target.ID)
		if err == nil && p.Username != "" {
			username = p.Username
		}
		return p, err
	})
	if err != nil {
		b.followUp(s, i, submitErrorText(err))
		return
	}

	req := queue.NewRequest(target.ID, username, t, kingdom, x, y, i.ChannelID)
	ticket, err := b.submitter.Submit(b.ctx, req)
	if err != nil {
		b.logger.Info("Title request rejected",
			slog.String("user", target.ID),
			slog.String("kingdom", kingdom),
			slog.Any("error", err))
		b.followUp(s, i, submitErrorText(err))
		return
	}

	b.followUp(s, i, ticket.Notice())
}

func (b *Bot) handleMeRequest(s *discordgo.Session, i *discordgo.InteractionCreate) {
	u := interactionUser(i)
	p, err := b.store.Profile(b.ctx, u.ID)
	if err != nil {
		b.respond(s, i, submitErrorText(err))
		return
	}
	b.respond(s, i, profileText(p))
}

func (b *Bot) handleRegisterRequest(s *discordgo.Session, i *discordgo.InteractionCreate) {
	opts := optionMap(i.ApplicationCommandData().Options)
	u := interactionUser(i)

	username, _ := opts.stringOpt("username")
	kingdom, _ := opts.stringOpt("kingdom")
	x, _ := opts.intOpt("x")
	y, _ := opts.intOpt("y")
	if !config.ValidKingdomID(kingdom) {
		b.respond(s, i, "Kingdom must be a 4 digit number.")
		return
	}

	p := store.Profile{UserID: u.ID, Username: username, Kingdom: kingdom, X: x, Y: y}
	if err := b.store.UpsertProfile(b.ctx, p); err != nil {
		b.logger.Error("Failed to save profile", slog.String("user", u.ID), slog.Any("error", err))
		b.respond(s, i, "Could not save your profile, try again later.")
		return
	}

	b.respond(s, i, fmt.Sprintf("Registered!\n%s", profileText(p)))
}

func (b *Bot) requireAdmin(s *discordgo.Session, i *discordgo.InteractionCreate) (*discordgo.User, bool) {
	u := interactionUser(i)
	if !config.Titlebot.IsBotAdmin(u.ID) {
		b.respond(s, i, "Only bot admins can use this command.")
		return nil, false
	}
	return u, true
}

func (b *Bot) handleLockRequest(s *discordgo.Session, i *discordgo.InteractionCreate, locked bool) {
	u, ok := b.requireAdmin(s, i)
	if !ok {
		return
	}

	opts := optionMap(i.ApplicationCommandData().Options)
	rawTitle, _ := opts.stringOpt("title")
	kingdom, _ := opts.stringOpt("kingdom")
	t, err := title.Parse(rawTitle)
	if err != nil {
		b.respond(s, i, submitErrorText(err))
		return
	}

	if err := b.store.SetLocked(b.ctx, t, kingdom, locked, u.ID); err != nil {
		b.logger.Error("Failed to update title lock", slog.String("title", string(t)), slog.Any("error", err))
		b.respond(s, i, "Could not update the title lock.")
		return
	}

	state := "unlocked"
	if locked {
		state = "locked"
	}
	b.respond(s, i, fmt.Sprintf("**%s** is now %s in kingdom %s.", t, state, kingdom))
}

func (b *Bot) handleSetTimerRequest(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if _, ok := b.requireAdmin(s, i); !ok {
		return
	}

	opts := optionMap(i.ApplicationCommandData().Options)
	rawTitle, _ := opts.stringOpt("title")
	kingdom, _ := opts.stringOpt("kingdom")
	seconds, _ := opts.intOpt("seconds")
	t, err := title.Parse(rawTitle)
	if err != nil {
		b.respond(s, i, submitErrorText(err))
		return
	}
	if seconds <= 0 {
		b.respond(s, i, "Seconds must be positive.")
		return
	}

	d := time.Duration(seconds) * time.Second
	if err := b.store.SetDuration(b.ctx, t, kingdom, d); err != nil {
		b.logger.Error("Failed to set title duration", slog.String("title", string(t)), slog.Any("error", err))
		b.respond(s, i, "Could not save the timer.")
		return
	}

	b.respond(s, i, fmt.Sprintf("**%s** in kingdom %s will now be held for %s.", t, kingdom, d))
}

func (b *Bot) handleQueueRequest(s *discordgo.Session, i *discordgo.InteractionCreate) {
	opts := optionMap(i.ApplicationCommandData().Options)
	kingdom, _ := opts.stringOpt("kingdom")
	b.respond(s, i, queueText(b.status.Snapshot(), kingdom))
}
