package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"

	"divtrack/internal/cli"
	"divtrack/internal/config"
	"divtrack/internal/errors"
	"divtrack/internal/logging"
)

func main() {
	cfg, err := config.Load(configDirFromArgs(os.Args[1:]))
	if err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("Error: %v", err))
		os.Exit(1)
	}

	logger := logging.NewLoggerWithConfig(cfg.LoggingConfig())
	rootCmd := cli.NewRootCmd(cfg, logger)

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		logger.Debug().Err(err).Msg("command failed")
		fmt.Fprintln(os.Stderr, color.RedString("Error: %s", errors.UserMessage(err)))
		os.Exit(1)
	}
}

// configDirFromArgs finds --config before cobra parses flags, since the
// config has to be loaded to build the command tree.
func configDirFromArgs(args []string) string {
	for i, arg := range args {
		switch {
		case arg == "--":
			return ""
		case arg == "--config" && i+1 < len(args):
			return args[i+1]
		case strings.HasPrefix(arg, "--config="):
			return strings.TrimPrefix(arg, "--config=")
		}
	}
	return ""
}
