package action

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rokbot/titlebot/internal/adb"
)

// StepError reports the first command of a sequence that failed. Commands after
// Index were never started.
type StepError struct {
	Index   int
	Command adb.Command
	Err     error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %d (%s) failed: %v", e.Index+1, e.Command.Description, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// Sequencer runs device commands strictly one after another with a fixed pause
// after each one.
type Sequencer struct {
	runner adb.Runner
	delay  time.Duration
	logger *slog.Logger
}

func NewSequencer(runner adb.Runner, delay time.Duration, logger *slog.Logger) *Sequencer {
	return &Sequencer{runner: runner, delay: delay, logger: logger}
}

// Run executes cmds in order. Command i+1 is not started before command i has
// exited and the delay has elapsed.
func (s *Sequencer) Run(ctx context.Context, cmds []adb.Command) error {
	for i, c := range cmds {
		s.logger.Debug("Executing", slog.String("step", c.Description), slog.Int("index", i))

		if err := adb.Execute(ctx, s.runner, c); err != nil {
			s.logger.Error("Device command failed",
				slog.String("step", c.Description),
				slog.Int("index", i),
				slog.Any("error", err),
			)
			return &StepError{Index: i, Command: c, Err: err}
		}

		if err := Wait(ctx, s.delay); err != nil {
			return &StepError{Index: i, Command: c, Err: err}
		}
	}

	return nil
}

// Wait sleeps for d or until ctx is done.
func Wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
