package cmd

import (
	"context"
	"os"
	"os/signal"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/agentkernel/society/internal/logging"
	"github.com/agentkernel/society/internal/mcpserver"
)

func mcpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the editor as MCP tools over stdio",
		Long: `Run an MCP server on stdin/stdout so an assistant can read and edit the
graph. Every change is written back to the workspace.

  {"mcpServers": {"society": {"command": "society", "args": ["mcp"]}}}`,
		Args: cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			cfg := loadConfig()
			log := logging.New(logging.Options{Level: cfg.Log.Level, Format: cfg.Log.Format})

			s := openSession(sessionOptions{logger: log})
			defer s.close()

			srv := mcpserver.New(s.ctl, mcpserver.Options{
				Persist: s.persist,
				Logger:  log,
				Version: version,
			})

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
			defer stop()

			log.Info("mcp server ready", "workspace", s.path)
			if err := srv.Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
				fail("MCP server: %v", err)
			}
		},
	}
}
