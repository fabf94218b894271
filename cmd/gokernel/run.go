package main

import (
	"github.com/aretw0/gokernel/internal/cli"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run <file>",
	Short: "Execute a file as one submission",
	Long: `Submits the contents of a file as a single submission on a fresh kernel.
The language follows the file extension unless --lang is given.
Exit codes: 1 generic failure, 2 configuration, 3 incomplete input,
4 evaluation failure, 5 routing failure, 6 unsupported command, 130 cancelled.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := loadEnv(cmd)
		if err != nil {
			return err
		}
		defer env.Close()

		watch, _ := cmd.Flags().GetBool("watch")
		lang := ""
		if cmd.Flags().Changed("lang") {
			lang, _ = cmd.Flags().GetString("lang")
		}

		ctx := cli.NewSignalContext(cmd.Context(), true)
		defer ctx.Cancel()

		return cli.RunFile(ctx, env, cli.RunOptions{
			Path:     args[0],
			Language: lang,
			Watch:    watch,
		})
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringP("lang", "l", "", "Language of the file (default: from the extension)")
	runCmd.Flags().BoolP("watch", "w", false, "Re-run the file whenever it changes")
}
