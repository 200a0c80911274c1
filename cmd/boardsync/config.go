package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/vango-dev/boardsync/internal/config"
	"github.com/vango-dev/boardsync/internal/errors"
)

func configCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show, check or create the project file",
	}
	cmd.AddCommand(
		configShowCmd(g),
		configValidateCmd(g),
		configInitCmd(),
	)
	return cmd
}

func configShowCmd(g *globalFlags) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration with defaults applied",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			switch format {
			case "json":
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(cfg)
			case "yaml":
				enc := yaml.NewEncoder(out)
				enc.SetIndent(2)
				defer enc.Close()
				return enc.Encode(cfg)
			default:
				return errors.Newf(errors.CategoryCLI, "invalid --format %q (json or yaml)", format)
			}
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "json", "Output format: json or yaml")
	return cmd
}

func configValidateCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the project file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			success("%s is valid", cfg.Path())
			if _, ok := os.LookupEnv(cfg.Token.Env); !ok {
				info("note: %s is not set", cfg.Token.Env)
			}
			return nil
		},
	}
}

const starterJSON = `{
  // Realtime endpoint. http(s) URLs are mapped to ws(s).
  "url": %q,

  // The bearer token is read from this environment variable.
  "token": {"env": "BOARDSYNC_TOKEN"},

  "heartbeat": "30s",
  "reconnect": {"maxAttempts": 5, "baseDelay": "1s", "maxDelay": "1m", "jitter": 0.2},

  // Serves /metrics and /healthz while watching. "off" disables it.
  "metrics": {"listen": "127.0.0.1:9464"},

  // Uncomment to archive received envelopes.
  // "transcript": {"dir": "transcripts", "flushInterval": "1m"},
}
`

func configInitCmd() *cobra.Command {
	var (
		url    string
		asYAML bool
		force  bool
	)

	cmd := &cobra.Command{
		Use:   "init [DIR]",
		Short: "Write a starter project file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}
			name := config.FileNames[0]
			if asYAML {
				name = config.FileNames[1]
			}
			path := filepath.Join(dir, name)
			if !force && config.Exists(dir) {
				return errors.Newf(errors.CategoryCLI, "a project file already exists in %s", dir).
					WithSuggestion("Pass --force to overwrite it")
			}

			if asYAML {
				cfg := config.New()
				cfg.URL = url
				if err := cfg.SaveTo(path); err != nil {
					return err
				}
			} else if err := os.WriteFile(path, []byte(fmt.Sprintf(starterJSON, url)), 0o644); err != nil {
				return errors.New("BS102").Wrap(err)
			}
			success("wrote %s", path)
			return nil
		},
	}

	cmd.Flags().StringVar(&url, "url", "wss://localhost:8080/ws", "Realtime endpoint")
	cmd.Flags().BoolVar(&asYAML, "yaml", false, "Write boardsync.yaml instead of boardsync.json")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing project file")
	return cmd
}
