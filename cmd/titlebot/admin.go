package main

import (
	"errors"
	"fmt"

	"github.com/rokbot/titlebot/internal/config"
	"github.com/rokbot/titlebot/internal/remote/discord"
	"github.com/spf13/cobra"
)

func commandsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "commands",
		Short: "Manage Discord slash commands",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "register",
		Short: "Register the bot's slash commands in the configured guild",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.Load(); err != nil {
				return fmt.Errorf("error loading configuration: %w", err)
			}
			dc := config.Titlebot.Discord
			if dc.Token == "" || dc.AppID == "" {
				return errors.New("discord.token and discord.appId are required to register commands")
			}

			registered, err := discord.RegisterCommands(dc.Token, dc.AppID, dc.GuildID)
			if err != nil {
				return err
			}
			for _, c := range registered {
				fmt.Fprintf(cmd.OutOrStdout(), "registered /%s (%s)\n", c.Name, c.ID)
			}
			return nil
		},
	})

	return cmd
}

func kingdomCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "kingdom",
		Short: "Manage kingdom configurations",
	}

	var serial string
	add := &cobra.Command{
		Use:   "add <kingdom>",
		Short: "Create config/<kingdom> from config/template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.CreateFromTemplate(args[0], serial); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "kingdom %s created\n", args[0])
			return nil
		},
	}
	add.Flags().StringVar(&serial, "serial", "", "adb serial of the kingdom's emulator")
	cmd.AddCommand(add)

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List configured kingdoms",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.Load(); err != nil {
				return fmt.Errorf("error loading configuration: %w", err)
			}
			for _, id := range config.GetKingdoms() {
				k, _ := config.GetKingdom(id)
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", id, k.Device.Serial)
			}
			return nil
		},
	})

	return cmd
}
