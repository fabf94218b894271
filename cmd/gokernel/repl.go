package main

import (
	"github.com/aretw0/gokernel/internal/cli"
	"github.com/spf13/cobra"
)

var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Start an interactive session (default)",
	Long: `Starts an interactive session on stdin/stdout.

Without --session all languages are available and %%<language> switches
between them. With --session the session is persisted in the configured
store: every successful unit is recorded and replayed on the next start.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := loadEnv(cmd)
		if err != nil {
			return err
		}
		defer env.Close()

		sessionID, _ := cmd.Flags().GetString("session")
		jsonMode, _ := cmd.Flags().GetBool("json")
		noBanner, _ := cmd.Flags().GetBool("no-banner")

		// Ctrl-C belongs to the runner; only SIGTERM ends the session here.
		ctx := cli.NewSignalContext(cmd.Context(), false)
		defer ctx.Cancel()

		return cli.RunRepl(ctx, env, cli.ReplOptions{
			Language:  language(cmd, env),
			SessionID: sessionID,
			JSON:      jsonMode,
			NoBanner:  noBanner,
		})
	},
}

func init() {
	rootCmd.AddCommand(replCmd)

	replCmd.Flags().StringP("lang", "l", "", "Default language (go or lua)")
	replCmd.Flags().StringP("session", "s", "", "Persist and restore the session with this ID")
	replCmd.Flags().Bool("json", false, "Run in JSON mode (NDJSON input/output)")
	replCmd.Flags().Bool("no-banner", false, "Do not print the startup banner")

	rootCmd.Flags().AddFlagSet(replCmd.Flags())
	rootCmd.RunE = replCmd.RunE
}
