package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/vango-dev/boardsync/internal/config"
	"github.com/vango-dev/boardsync/internal/errors"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath string
	logLevel   string
	logFormat  string
	noColor    bool
}

func main() {
	if !term.IsTerminal(int(os.Stderr.Fd())) {
		errors.DisableColors()
	}
	if err := newRootCmd().Execute(); err != nil {
		errors.Print(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:   "boardsync",
		Short: "Realtime client for collaborative boards",
		Long: `boardsync connects to a board collaboration server over WebSocket.

It keeps the channel alive with heartbeats, reconnects with exponential
backoff after unexpected closes, rejoins the current board, and can
archive everything it receives.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if g.noColor {
				errors.DisableColors()
			}
		},
	}

	rootCmd.PersistentFlags().StringVarP(&g.configPath, "config", "c", "", "Config file (default: nearest boardsync.json or boardsync.yaml)")
	rootCmd.PersistentFlags().StringVar(&g.logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&g.logFormat, "log-format", "text", "Log format: text or json")
	rootCmd.PersistentFlags().BoolVar(&g.noColor, "no-color", false, "Disable colored output")

	rootCmd.AddCommand(
		watchCmd(g),
		sendCmd(g),
		configCmd(g),
		transcriptCmd(),
		versionCmd(),
	)
	return rootCmd
}

// loadConfig reads --config or the nearest project file.
func (g *globalFlags) loadConfig() (*config.Config, error) {
	if g.configPath != "" {
		return config.LoadFile(g.configPath)
	}
	return config.LoadFromWorkingDir()
}

// logger builds the slog logger selected by --log-level and --log-format.
func (g *globalFlags) logger() (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(g.logLevel)); err != nil {
		return nil, errors.Newf(errors.CategoryCLI, "invalid --log-level %q", g.logLevel)
	}
	opts := &slog.HandlerOptions{Level: level}
	switch strings.ToLower(g.logFormat) {
	case "text":
		return slog.New(slog.NewTextHandler(os.Stderr, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(os.Stderr, opts)), nil
	default:
		return nil, errors.Newf(errors.CategoryCLI, "invalid --log-format %q", g.logFormat)
	}
}

// success prints a success message.
func success(format string, args ...any) {
	fmt.Printf("\033[32m✓\033[0m %s\n", fmt.Sprintf(format, args...))
}

// info prints an info message.
func info(format string, args ...any) {
	fmt.Printf("  %s\n", fmt.Sprintf(format, args...))
}
