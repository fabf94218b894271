package main

import (
	"context"
	"fmt"
	"os"

	"github.com/aretw0/gokernel/internal/cli"
	"github.com/aretw0/gokernel/internal/config"
	"github.com/aretw0/gokernel/pkg/domain"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "gokernel",
	Short: "gokernel is an interactive code execution kernel",
	Long: `gokernel runs Go and Lua code incrementally: it buffers input until it forms
a complete unit, executes it, and reports every step as an event. Magic
commands such as %%time or %lsmagic work in every front-end: the REPL,
the HTTP API, the MCP server and Jupyter.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(domain.ExitCode(err))
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Configuration file (default: ./"+config.DefaultFile+" when present)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn or error (overrides the config)")
}

// loadEnv resolves the configuration and builds the shared wiring.
func loadEnv(cmd *cobra.Command) (*cli.Env, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if cmd.Flags().Changed("log-level") {
		cfg.LogLevel, _ = cmd.Flags().GetString("log-level")
	}
	return cli.NewEnv(cfg)
}

// language returns --lang when set, else the configured language.
func language(cmd *cobra.Command, env *cli.Env) string {
	if cmd.Flags().Changed("lang") {
		lang, _ := cmd.Flags().GetString("lang")
		return lang
	}
	return env.Config.Language
}
