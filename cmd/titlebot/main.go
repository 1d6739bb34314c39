package main

import (
	"fmt"
	"log/slog"
	"os"
	"runtime/debug"

	sloggger "github.com/rokbot/titlebot/cmd/titlebot/log"
	"github.com/rokbot/titlebot/internal/config"
	"github.com/spf13/cobra"
)

var (
	buildID   string
	buildTime string
)

// wrapWithRecover wraps a function with panic recovery logic
func wrapWithRecover(logger *slog.Logger, f func() error) func() error {
	return func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error(fmt.Sprintf("panic recovered: %v\nStacktrace: %s", r, debug.Stack()))
				sloggger.FlushLog()
				err = fmt.Errorf("panic: %v", r)
			}
		}()
		return f()
	}
}

func main() {
	if buildID != "" {
		config.Version = buildID
	}

	rootCmd := &cobra.Command{
		Use:     "titlebot",
		Short:   "Rise of Kingdoms title assignment bot",
		Version: fmt.Sprintf("%s (built %s)", config.Version, buildTime),
		Long: `titlebot takes title requests from Discord, queues them per kingdom and
drives the kingdom's emulator over adb to hand the title out.`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&config.Dir, "config", config.Dir, "directory holding titlebot.yaml and one folder per kingdom")

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(commandsCmd())
	rootCmd.AddCommand(kingdomCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
