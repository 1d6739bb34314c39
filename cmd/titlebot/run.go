package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	sloggger "github.com/rokbot/titlebot/cmd/titlebot/log"
	"github.com/rokbot/titlebot/internal/action"
	"github.com/rokbot/titlebot/internal/adb"
	"github.com/rokbot/titlebot/internal/bot"
	"github.com/rokbot/titlebot/internal/config"
	"github.com/rokbot/titlebot/internal/event"
	"github.com/rokbot/titlebot/internal/health"
	"github.com/rokbot/titlebot/internal/remote/discord"
	ngrokremote "github.com/rokbot/titlebot/internal/remote/ngrok"
	"github.com/rokbot/titlebot/internal/remote/telegram"
	"github.com/rokbot/titlebot/internal/server"
	"github.com/rokbot/titlebot/internal/store"
	"github.com/rokbot/titlebot/internal/vision"
	"github.com/rokbot/titlebot/internal/watch"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start the bot",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run()
		},
	}
}

func run() error {
	if err := config.Load(); err != nil {
		return fmt.Errorf("error loading configuration: %w", err)
	}
	cfg := config.Titlebot

	logger, err := sloggger.NewLogger(cfg.Debug.Log, cfg.LogSaveDirectory, "")
	if err != nil {
		return fmt.Errorf("error starting logger: %w", err)
	}
	defer sloggger.FlushAndClose()

	if !cfg.Discord.Enabled {
		return errors.New("discord must be enabled with a token and a channel, requests and acknowledgments go through it")
	}

	db, err := store.Open(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	eventListener := event.NewListener(logger)

	discordBot, err := discord.NewBot(
		cfg.Discord.Token,
		cfg.Discord.AppID,
		cfg.Discord.GuildID,
		cfg.Discord.ChannelID,
		cfg.Discord.AckEmoji,
		cfg.Discord.EventWebhookURL,
		logger,
	)
	if err != nil {
		return err
	}
	watcher := watch.NewWatcher(discordBot, cfg.Discord.AckEmoji, logger)

	driver, err := newDriver(cfg, logger)
	if err != nil {
		return err
	}
	driver.Completion = watcher
	driver.Notifier = discordBot
	driver.Store = db
	driver.Events = eventListener

	discordBot.Bind(driver, db, watcher, driver.Registry)
	eventListener.Register(discordBot.Handle)
	g.Go(wrapWithRecover(logger, func() error {
		return discordBot.Start(ctx)
	}))

	if cfg.Telegram.Enabled {
		telegramBot, err := telegram.NewBot(cfg.Telegram.Token, cfg.Telegram.ChatID, driver.Registry, logger)
		if err != nil {
			logger.Error("Telegram could not be initialized", slog.Any("error", err))
		} else {
			eventListener.Register(telegramBot.Handle)
			g.Go(wrapWithRecover(logger, func() error {
				return telegramBot.Start(ctx)
			}))
		}
	}

	var (
		srv    *server.HttpServer
		tunnel *ngrokremote.Tunnel
	)
	if cfg.Server.Enabled {
		srv = server.New(logger, driver.Registry, db)
		eventListener.Register(srv.Handle)
		g.Go(wrapWithRecover(logger, func() error {
			return srv.Listen(ctx, cfg.Server.Port)
		}))

		if cfg.Ngrok.Enabled {
			tunnel, err = ngrokremote.Start(ctx, ngrokremote.Options{
				LocalAddr:     fmt.Sprintf("http://localhost:%d", cfg.Server.Port),
				Authtoken:     cfg.Ngrok.Authtoken,
				Region:        cfg.Ngrok.Region,
				Domain:        cfg.Ngrok.Domain,
				BasicAuthUser: cfg.Ngrok.BasicAuthUser,
				BasicAuthPass: cfg.Ngrok.BasicAuthPass,
			}, logger)
			if err != nil {
				logger.Error("ngrok tunnel failed to start", slog.Any("error", err))
			} else {
				eventListener.Send(event.NgrokTunnel(tunnel.URL()))
			}
		}
	}

	g.Go(wrapWithRecover(logger, func() error {
		return eventListener.Listen(ctx)
	}))

	g.Go(wrapWithRecover(logger, func() error {
		<-ctx.Done()
		logger.Info("titlebot shutting down...")
		driver.Stop()

		var err error
		if srv != nil {
			if err = srv.Stop(); err != nil {
				logger.Error("error stopping local server", slog.Any("error", err))
			}
		}
		if tunnel != nil {
			if closeErr := tunnel.Close(); closeErr != nil {
				logger.Error("error stopping ngrok tunnel", slog.Any("error", closeErr))
			}
		}
		return err
	}))

	logger.Info("titlebot started",
		slog.String("version", config.Version),
		slog.Any("kingdoms", config.GetKingdoms()))

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Error running titlebot", slog.Any("error", err))
		return err
	}

	return nil
}

// newDriver builds the queue driver and its device automation from configuration.
func newDriver(cfg *config.TitlebotCfg, logger *slog.Logger) (*bot.Driver, error) {
	runner := adb.ExecRunner{}
	rec := cfg.Recognition

	driver := bot.NewDriver(logger)
	driver.Cfg = cfg
	driver.Kingdoms = config.Kingdoms
	driver.ADBPath = cfg.ADB.Path
	driver.Sequencer = action.NewSequencer(runner, cfg.StepDelay(), logger)
	driver.TitleCheck = vision.NewResolver(runner, rec.Interpreter, rec.TitleScript, rec.ScreenshotDir, "title", logger)
	driver.ConnCheck = vision.NewResolver(runner, rec.Interpreter, rec.ConnectionScript, rec.ScreenshotDir, "connection", logger)
	driver.HomeCheck = vision.NewResolver(runner, rec.Interpreter, rec.HomeScript, rec.ScreenshotDir, "home", logger)

	if cfg.ConnectionMonitor.Enabled {
		driver.Monitor = health.NewConnectionMonitor(logger,
			cfg.ConnectionMonitor.Threshold,
			time.Duration(cfg.ConnectionMonitor.WindowSeconds)*time.Second)
	}

	driver.KingdomLoggers = make(map[string]*slog.Logger, len(config.Kingdoms))
	for _, id := range config.GetKingdoms() {
		l, err := sloggger.NewLogger(cfg.Debug.Log, cfg.LogSaveDirectory, id)
		if err != nil {
			return nil, err
		}
		driver.KingdomLoggers[id] = l
	}

	return driver, nil
}
