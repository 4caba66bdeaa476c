// Package mcpserver exposes the interaction controller as MCP tools.
package mcpserver

import (
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/agentkernel/society/internal/editor"
	"github.com/agentkernel/society/internal/logging"
)

// Options configures New.
type Options struct {
	// Persist runs after every tool call that changed the session.
	Persist func() error
	Logger  *slog.Logger
	Version string
}

// New creates an MCP server with every editor tool registered.
func New(ctl *editor.Controller, opts Options) *mcp.Server {
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	if opts.Version == "" {
		opts.Version = "dev"
	}
	t := &Tools{ctl: ctl, persist: opts.Persist, log: opts.Logger}

	srv := mcp.NewServer(&mcp.Implementation{
		Name:    "society",
		Version: opts.Version,
	}, nil)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "read_graph",
		Description: "Read every agent and relation with the selection, session state and summary stats",
	}, t.ReadGraph)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "add_agent",
		Description: "Add an agent near the canvas centre; omitted attributes take the defaults",
	}, t.AddAgent)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "update_agent",
		Description: "Merge attributes into an agent; personality traits merge individually",
	}, t.UpdateAgent)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "remove_agent",
		Description: "Remove an agent and every relation touching it",
	}, t.RemoveAgent)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "connect_agents",
		Description: "Create a directed relation from source to target (neutral, weight 0 unless given)",
	}, t.ConnectAgents)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "update_relation",
		Description: "Change the type or weight of a relation",
	}, t.UpdateRelation)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "remove_relation",
		Description: "Remove one relation",
	}, t.RemoveRelation)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "export_document",
		Description: "Serialize the graph as a versioned JSON or YAML document and mark the session clean",
	}, t.ExportDocument)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "import_document",
		Description: "Replace the graph with a JSON or YAML document; invalid documents change nothing",
	}, t.ImportDocument)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "save_document",
		Description: "Save the document to the panel config store under the configured name",
	}, t.SaveDocument)

	return srv
}
