package cmd

import (
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/stevehiehn/spren/internal/mcp"
)

var mcpSSEAddr string

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the MCP server (stdio by default)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		prof, err := profile()
		if err != nil {
			return err
		}
		srv := &mcp.Server{
			WorkDir:  workDir(),
			Profile:  prof,
			Patterns: cfg.Security.DangerousCommands,
			Logger:   logger,
			Version:  Version,
		}
		if cfg.Artifacts.Enabled {
			srv.ArtifactsDir = cfg.Artifacts.Dir
		}
		if pl, err := plannerFactory(prof); err == nil {
			srv.Planner = pl
		} else {
			logger.Info("plan.generate disabled", zap.Error(err))
		}

		if mcpSSEAddr != "" {
			return srv.ServeSSE(cmd.Context(), mcpSSEAddr)
		}
		return srv.Serve(cmd.Context(), os.Stdin, os.Stdout)
	},
}

func init() {
	mcpCmd.Flags().StringVar(&mcpSSEAddr, "sse", "", "Serve over SSE on this address (e.g. 127.0.0.1:8090) instead of stdio")
	rootCmd.AddCommand(mcpCmd)
}
