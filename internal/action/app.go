package action

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rokbot/titlebot/internal/adb"
)

// RefreshApp force-stops the game and launches it again after relaunchDelay.
func RefreshApp(ctx context.Context, s *Sequencer, d *adb.Device, relaunchDelay time.Duration) error {
	s.logger.Info("Refreshing app", slog.String("device", d.Serial), slog.String("package", d.AppPackage))

	if err := s.Run(ctx, []adb.Command{d.ForceStop()}); err != nil {
		return fmt.Errorf("failed to stop app: %w", err)
	}
	if err := Wait(ctx, relaunchDelay); err != nil {
		return err
	}
	if err := s.Run(ctx, []adb.Command{d.Launch()}); err != nil {
		return fmt.Errorf("failed to restart app: %w", err)
	}

	s.logger.Info("App restarted successfully", slog.String("device", d.Serial))
	return nil
}
