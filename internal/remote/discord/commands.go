package discord

import (
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/rokbot/titlebot/internal/title"
)

const (
	cmdTitle       = "title"
	cmdTitles      = "titles"
	cmdMe          = "me"
	cmdRegister    = "register"
	cmdLockTitle   = "locktitle"
	cmdUnlockTitle = "unlocktitle"
	cmdSetTimer    = "settimer"
	cmdQueue       = "queue"
)

func titleChoices() []*discordgo.ApplicationCommandOptionChoice {
	choices := make([]*discordgo.ApplicationCommandOptionChoice, 0, len(title.All()))
	for _, t := range title.All() {
		choices = append(choices, &discordgo.ApplicationCommandOptionChoice{Name: string(t), Value: string(t)})
	}
	return choices
}

func titleOption(description string) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionString,
		Name:        "title",
		Description: description,
		Required:    true,
		Choices:     titleChoices(),
	}
}

func kingdomOption(required bool) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionString,
		Name:        "kingdom",
		Description: "Kingdom number",
		Required:    required,
		MinLength:   intPtr(4),
		MaxLength:   4,
	}
}

func coordinateOption(name string, required bool) *discordgo.ApplicationCommandOption {
	zero := 0.0
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionInteger,
		Name:        name,
		Description: fmt.Sprintf("%s coordinate of the city", name),
		Required:    required,
		MinValue:    &zero,
	}
}

func intPtr(v int) *int {
	return &v
}

// Commands returns every slash command the bot answers.
func Commands() []*discordgo.ApplicationCommand {
	return []*discordgo.ApplicationCommand{
		{
			Name:        cmdTitle,
			Description: "Request a title",
			Options: []*discordgo.ApplicationCommandOption{
				titleOption("The title you want"),
				{
					Type:        discordgo.ApplicationCommandOptionUser,
					Name:        "user",
					Description: "Request on behalf of another user",
				},
				kingdomOption(false),
				coordinateOption("x", false),
				coordinateOption("y", false),
			},
		},
		{
			Name:        cmdTitles,
			Description: "Show all possible titles",
		},
		{
			Name:        cmdMe,
			Description: "Show your registered profile",
		},
		{
			Name:        cmdRegister,
			Description: "Register your username, kingdom and city coordinates",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "username",
					Description: "Your in-game name",
					Required:    true,
				},
				kingdomOption(true),
				coordinateOption("x", true),
				coordinateOption("y", true),
			},
		},
		{
			Name:        cmdLockTitle,
			Description: "Stop accepting requests for a title",
			Options:     []*discordgo.ApplicationCommandOption{titleOption("Title to lock"), kingdomOption(true)},
		},
		{
			Name:        cmdUnlockTitle,
			Description: "Accept requests for a title again",
			Options:     []*discordgo.ApplicationCommandOption{titleOption("Title to unlock"), kingdomOption(true)},
		},
		{
			Name:        cmdSetTimer,
			Description: "Set how long a title is held before moving on",
			Options: []*discordgo.ApplicationCommandOption{
				titleOption("Title to configure"),
				kingdomOption(true),
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "seconds",
					Description: "Seconds to wait for the done reaction",
					Required:    true,
					MinValue:    func() *float64 { v := 1.0; return &v }(),
				},
			},
		},
		{
			Name:        cmdQueue,
			Description: "Show pending title requests",
			Options:     []*discordgo.ApplicationCommandOption{kingdomOption(false)},
		},
	}
}

// RegisterCommands replaces the application's guild commands with Commands().
func RegisterCommands(token, appID, guildID string) ([]*discordgo.ApplicationCommand, error) {
	dg, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("error creating Discord session: %w", err)
	}

	registered, err := dg.ApplicationCommandBulkOverwrite(appID, guildID, Commands())
	if err != nil {
		return nil, fmt.Errorf("error registering commands: %w", err)
	}
	return registered, nil
}
