package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rokbot/titlebot/internal/action"
	"github.com/rokbot/titlebot/internal/adb"
	"github.com/rokbot/titlebot/internal/config"
	"github.com/rokbot/titlebot/internal/event"
	"github.com/rokbot/titlebot/internal/queue"
	"github.com/rokbot/titlebot/internal/vision"
	"github.com/rokbot/titlebot/internal/watch"
)

var (
	// ErrCheckpointNotFound means neither the title checkpoint nor a recovery button was found.
	ErrCheckpointNotFound = errors.New("title checkpoint not found")
	// ErrConnectionLost means the game showed its lost-connection screen.
	ErrConnectionLost = errors.New("connection lost")
)

// visit tracks where one request left the device.
type visit struct {
	dev     *adb.Device
	kingdom *config.KingdomCfg
	// away is set once navigation moved off the city view. A relaunch clears it.
	away bool
}

// process runs one request to its terminal outcome. A nil error means the request
// reached the completion wait and the returned reason tells how it ended.
func (d *Driver) process(ctx context.Context, req queue.Request) (event.FinishReason, error) {
	k := d.Kingdoms[req.Kingdom]
	v := &visit{dev: adb.NewDevice(d.ADBPath, k.Device.Serial, k.Device.AppPackage), kingdom: k}
	dev := v.dev
	defer d.returnHome(v)

	d.setState(req, queue.Dispatching)
	if err := d.Sequencer.Run(ctx, action.NavigateTo(dev, k, req.X, req.Y)); err != nil {
		// The first step toggles the world view; if it failed the city view was never left.
		var stepErr *action.StepError
		v.away = !errors.As(err, &stepErr) || stepErr.Index > 0
		return event.FinishedError, fmt.Errorf("navigation: %w", err)
	}
	v.away = true

	d.setState(req, queue.AwaitingCheckpoint)
	if err := d.resolveCheckpoint(ctx, v, req); err != nil {
		return event.FinishedError, err
	}
	if d.Monitor != nil {
		d.Monitor.Reset(req.Kingdom)
	}

	d.setState(req, queue.AwaitingTitleAction)
	if err := action.Wait(ctx, d.Cfg.SettleDelay()); err != nil {
		return event.FinishedError, err
	}
	if err := d.Sequencer.Run(ctx, action.GrantTitle(dev, k, req.Title)); err != nil {
		if d.Cfg.Automation.TitleActionFailure != config.TitleActionContinue {
			return event.FinishedError, fmt.Errorf("title action: %w", err)
		}
		d.logger.Warn("Title action failed, waiting for completion anyway",
			slog.String("kingdom", req.Kingdom),
			slog.Any("error", err))
	}

	d.setState(req, queue.AwaitingCompletion)
	timeout := d.completionWindow(ctx, req)
	outcome, err := d.Completion.Watch(ctx, watch.Request{
		UserID:    req.UserID,
		ChannelID: req.ChannelID,
		Kingdom:   req.Kingdom,
		Title:     string(req.Title),
	}, timeout)
	if err != nil {
		return event.FinishedError, fmt.Errorf("completion: %w", err)
	}

	if outcome == watch.Acknowledged {
		d.notify(req.ChannelID, fmt.Sprintf("Thanks <@%s>, **%s** is free again.", req.UserID, req.Title))
		return event.FinishedAcknowledged, nil
	}

	d.notify(req.ChannelID, fmt.Sprintf("<@%s> no done reaction within %s, moving to the next request.", req.UserID, timeout))
	return event.FinishedTimedOut, nil
}

// resolveCheckpoint taps the title checkpoint. When it cannot be found the screen is
// checked for a lost connection; tapping its recovery button never rescues the request.
func (d *Driver) resolveCheckpoint(ctx context.Context, v *visit, req queue.Request) error {
	dev := v.dev
	outcome, err := d.TitleCheck.Resolve(ctx, dev)
	if err != nil {
		return fmt.Errorf("title check: %w", err)
	}
	if outcome.Kind == vision.Found {
		return d.Sequencer.Run(ctx, action.TapCheckpoint(dev, "Tapping title checkpoint", outcome.Point.X, outcome.Point.Y))
	}

	d.logger.Info("Title checkpoint not found, checking connection",
		slog.String("kingdom", req.Kingdom),
		slog.String("reason", outcome.Reason))

	conn, err := d.ConnCheck.Resolve(ctx, dev)
	if err != nil {
		return fmt.Errorf("connection check: %w", err)
	}
	if conn.Kind != vision.Found {
		return ErrCheckpointNotFound
	}

	if err := d.Sequencer.Run(ctx, action.TapCheckpoint(dev, "Tapping connection recovery button", conn.Point.X, conn.Point.Y)); err != nil {
		return fmt.Errorf("recovery tap: %w", err)
	}
	if !conn.LostConnection {
		return ErrCheckpointNotFound
	}

	d.notify(req.ChannelID, fmt.Sprintf("Connection lost in kingdom %s while processing <@%s>'s request.", req.Kingdom, req.UserID))
	d.publish(event.ConnectionLost(event.Text(req.Kingdom, "Connection lost"), req))

	if d.Monitor != nil && d.Monitor.RecordLoss(req.Kingdom) {
		d.refresh(ctx, v, req)
	}

	return ErrConnectionLost
}

func (d *Driver) refresh(ctx context.Context, v *visit, req queue.Request) {
	delay := time.Duration(d.Cfg.ConnectionMonitor.RelaunchDelaySeconds) * time.Second
	if err := action.RefreshApp(ctx, d.Sequencer, v.dev, delay); err != nil {
		d.logger.Error("App refresh failed", slog.String("kingdom", req.Kingdom), slog.Any("error", err))
		return
	}
	// The game relaunches into the city view.
	v.away = false

	d.notify(req.ChannelID, fmt.Sprintf("App refresh: the game was restarted in kingdom %s after repeated connection loss.", req.Kingdom))
	d.publish(event.AppRefreshed(event.Text(req.Kingdom, "App refreshed")))
}

// completionWindow prefers a stored per-kingdom duration over the configured one.
func (d *Driver) completionWindow(ctx context.Context, req queue.Request) time.Duration {
	custom, found, err := d.Store.CustomDuration(ctx, req.Title, req.Kingdom)
	if err != nil {
		d.logger.Warn("Failed to fetch custom duration", slog.String("kingdom", req.Kingdom), slog.Any("error", err))
	}
	if found && custom > 0 {
		return custom
	}
	if dur := d.Cfg.TitleDuration(req.Title); dur > 0 {
		return dur
	}
	return d.Cfg.CompletionTimeout()
}

// returnHome taps the home button when the request left the city view. The button
// toggles between city and world view, so with a HomeCheck configured the tap is
// skipped when the device is already home or its state cannot be read.
func (d *Driver) returnHome(v *visit) {
	if !v.away || d.ctx.Err() != nil {
		return
	}
	logger := d.loggerFor(v.kingdom.Kingdom)

	if d.HomeCheck != nil {
		outcome, err := d.HomeCheck.Resolve(d.ctx, v.dev)
		if err != nil {
			logger.Warn("Home check failed, leaving the device as it is", slog.Any("error", err))
			return
		}
		if outcome.Kind == vision.Found {
			logger.Debug("Already at home")
			return
		}
	}

	if err := d.Sequencer.Run(d.ctx, action.ReturnHome(v.dev, v.kingdom)); err != nil {
		logger.Debug("Return home failed", slog.Any("error", err))
	}
}
