package main

import (
	"fmt"
	"strings"

	"github.com/aretw0/gokernel"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of gokernel",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "gokernel version %s\n", strings.TrimSpace(gokernel.Version))
		fmt.Fprintf(cmd.OutOrStdout(), "languages: %s\n", strings.Join(gokernel.Languages(), ", "))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
