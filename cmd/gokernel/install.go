package main

import (
	"github.com/aretw0/gokernel/internal/cli"
	"github.com/spf13/cobra"
)

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Install Jupyter kernelspecs",
	Long: `Asks 'jupyter --paths' for the data directories and writes a kernelspec
(kernels/gokernel-<language>/kernel.json) into each one that exists.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := loadEnv(cmd)
		if err != nil {
			return err
		}
		defer env.Close()

		jupyterBin, _ := cmd.Flags().GetString("jupyter")
		return cli.Install(cmd.Context(), env, jupyterBin, cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(installCmd)

	installCmd.Flags().String("jupyter", "jupyter", "Jupyter executable")
}
