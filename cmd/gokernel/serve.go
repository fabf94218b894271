package main

import (
	"github.com/aretw0/gokernel/internal/cli"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Serves per-session kernels over HTTP: POST /sessions/{id}/submit runs code,
GET /sessions/{id}/events streams events (SSE) and GET /metrics exposes
Prometheus metrics. The API is described at /openapi.yaml.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := loadEnv(cmd)
		if err != nil {
			return err
		}
		defer env.Close()

		port := env.Config.HTTP.Port
		if cmd.Flags().Changed("port") {
			port, _ = cmd.Flags().GetInt("port")
		}

		ctx := cli.NewSignalContext(cmd.Context(), true)
		defer ctx.Cancel()

		return cli.ServeHTTP(ctx, env, language(cmd, env), port)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntP("port", "p", 8080, "Port to listen on (overrides http.port)")
	serveCmd.Flags().StringP("lang", "l", "", "Language of session kernels")
}
