package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var sessionsCmd = &cobra.Command{
	Use:     "sessions",
	Aliases: []string{"session"},
	Short:   "Manage persistent sessions",
	Long:    `List and remove sessions stored in the configured session store.`,
}

var sessionsLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List all sessions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := loadEnv(cmd)
		if err != nil {
			return err
		}
		defer env.Close()

		ids, err := env.Sessions.List(cmd.Context())
		if err != nil {
			return fmt.Errorf("error listing sessions: %w", err)
		}

		out := cmd.OutOrStdout()
		if len(ids) == 0 {
			fmt.Fprintln(out, "No sessions found.")
			return nil
		}

		fmt.Fprintln(out, "Sessions:")
		for _, id := range ids {
			rec, err := env.Sessions.Load(cmd.Context(), id)
			if err != nil {
				fmt.Fprintf(out, "- %s (unreadable: %v)\n", id, err)
				continue
			}
			fmt.Fprintf(out, "- %s [%s] %d units, updated %s\n",
				id, rec.Language, len(rec.Units), rec.UpdatedAt.Format("2006-01-02 15:04:05"))
		}
		return nil
	},
}

var sessionsRmCmd = &cobra.Command{
	Use:   "rm <session-id>...",
	Short: "Remove one or more sessions",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := loadEnv(cmd)
		if err != nil {
			return err
		}
		defer env.Close()

		var errs []error
		for _, id := range args {
			if err := env.Sessions.Delete(cmd.Context(), id); err != nil {
				errs = append(errs, fmt.Errorf("error removing %q: %w", id, err))
				continue
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed session '%s'\n", id)
		}
		return errors.Join(errs...)
	},
}

func init() {
	rootCmd.AddCommand(sessionsCmd)
	sessionsCmd.AddCommand(sessionsLsCmd)
	sessionsCmd.AddCommand(sessionsRmCmd)
}
