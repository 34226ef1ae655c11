// Package cli implements the corohost command line.
package cli

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/me/corohost/internal/config"
	"github.com/me/corohost/internal/logging"

	// Engines register themselves with the engine package.
	_ "github.com/me/corohost/internal/jsvm"
	_ "github.com/me/corohost/internal/luavm"
)

// Version is set at build time with -ldflags.
var Version = "dev"

var (
	flagConfig    string
	flagDebug     bool
	flagLogLevel  string
	flagLogFormat string
	flagHistoryDB string

	cfg    config.HostConfig
	logger *slog.Logger
)

// NewRootCmd creates the root cobra command for the corohost CLI.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "corohost",
		Short: "corohost runs Lua and JavaScript scripts on a cooperative scheduler",
		Long: `corohost embeds a Lua or JavaScript runtime, exposes filesystem, I/O,
HTTP, JSON, process, console and task libraries to it, and runs the script
as a coroutine until every task it spawned has finished.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.Load(flagConfig)
			if err != nil {
				return err
			}
			cfg = loaded

			flags := cmd.Flags()
			if flags.Changed("log-level") {
				cfg.LogLevel = flagLogLevel
			}
			if flags.Changed("log-format") {
				cfg.LogFormat = flagLogFormat
			}
			if flags.Changed("history-db") {
				cfg.HistoryDB = flagHistoryDB
			}
			logger = logging.New(logging.Options{
				Level:  cfg.LogLevel,
				Format: cfg.LogFormat,
				Debug:  flagDebug,
				Writer: cmd.ErrOrStderr(),
			})
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&flagConfig, "config", "", "Config file (or "+config.EnvPath+" env)")
	root.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Enable debug logging")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&flagLogFormat, "log-format", "text", "Log format (text, json)")
	root.PersistentFlags().StringVar(&flagHistoryDB, "history-db", "", "SQLite file recording runs (empty disables history)")

	root.AddCommand(
		newRunCmd(),
		newEvalCmd(),
		newHistoryCmd(),
		newServeCmd(),
		newVersionCmd(),
	)

	return root
}
