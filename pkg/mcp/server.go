// Package mcp exposes the workflow engine over the Model Context Protocol:
// execute and resume workflows, query execution logs, and list stations.
package mcp

import (
	"context"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/rendis/conveyor/internal/engine"
	"github.com/rendis/conveyor/internal/expressions"
	"github.com/rendis/conveyor/internal/station"
	"github.com/rendis/conveyor/internal/store"
)

// ConveyorServerDeps holds the dependencies for creating a ConveyorServer.
type ConveyorServerDeps struct {
	Executor *engine.Executor
	Registry *station.Registry
	Store    store.LogStore
	JQ       *expressions.GoJQEngine
	Logger   *slog.Logger
}

// ConveyorServer wraps an MCP server with conveyor-specific tool handlers.
type ConveyorServer struct {
	executor  *engine.Executor
	registry  *station.Registry
	store     store.LogStore
	jq        *expressions.GoJQEngine
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// NewConveyorServer creates a ConveyorServer with all tools registered.
func NewConveyorServer(deps ConveyorServerDeps) *ConveyorServer {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	jq := deps.JQ
	if jq == nil {
		jq = expressions.NewGoJQEngine()
	}

	s := &ConveyorServer{
		executor: deps.Executor,
		registry: deps.Registry,
		store:    deps.Store,
		jq:       jq,
		logger:   logger,
	}

	mcpSrv := server.NewMCPServer(
		"conveyor",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithRecovery(),
		server.WithInstructions("Conveyor executes application workflows station by station with self-healing. Use conveyor.execute to run a workflow, conveyor.resume to answer an escalation or retry a failed run, conveyor.status for the execution log, conveyor.inspect to query a log with jq, and conveyor.stations to list registered stations."),
	)

	mcpSrv.AddTools(s.tools()...)
	s.mcpServer = mcpSrv
	return s
}

// Serve starts the stdio transport and blocks until ctx is cancelled or stdin closes.
func (s *ConveyorServer) Serve(ctx context.Context) error {
	stdio := server.NewStdioServer(s.mcpServer)
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}

// MCPServer returns the underlying MCPServer for testing or custom transports.
func (s *ConveyorServer) MCPServer() *server.MCPServer {
	return s.mcpServer
}

func (s *ConveyorServer) tools() []server.ServerTool {
	return []server.ServerTool{
		{Tool: executeTool(), Handler: s.handleExecute},
		{Tool: resumeTool(), Handler: s.handleResume},
		{Tool: statusTool(), Handler: s.handleStatus},
		{Tool: inspectTool(), Handler: s.handleInspect},
		{Tool: stationsTool(), Handler: s.handleStations},
	}
}

// --- Tool definitions ---

func executeTool() mcp.Tool {
	return mcp.NewTool("conveyor.execute",
		mcp.WithDescription("Execute a workflow against a new workflow context"),
		mcp.WithString("workflow", mcp.Description("Preset workflow name: create-app, add-feature, validate, iac (default: create-app)")),
		mcp.WithArray("stations", mcp.Description("Explicit station list; overrides the preset when given")),
		mcp.WithString("workspace_path", mcp.Required(), mcp.Description("Workspace root directory")),
		mcp.WithString("app_name", mcp.Required(), mcp.Description("Application name")),
		mcp.WithString("stack", mcp.Required(), mcp.Description("Technology stack, e.g. python-fastapi, java-springboot, rust-api")),
		mcp.WithObject("env", mcp.Description("Environment variables for stack commands")),
	)
}

func resumeTool() mcp.Tool {
	return mcp.NewTool("conveyor.resume",
		mcp.WithDescription("Resume a failed workflow, optionally answering an escalation"),
		mcp.WithString("workflow_id", mcp.Required(), mcp.Description("ID of the failed execution")),
		mcp.WithString("option", mcp.Enum("retry", "skip", "rescaffold", "help"),
			mcp.Description("Escalation answer (default: retry)")),
		mcp.WithString("help_text", mcp.Description("Operator remediation guidance; required with option=help")),
	)
}

func statusTool() mcp.Tool {
	return mcp.NewTool("conveyor.status",
		mcp.WithDescription("Get the execution log of a workflow run"),
		mcp.WithString("workflow_id", mcp.Required(), mcp.Description("ID of the execution to query")),
	)
}

func inspectTool() mcp.Tool {
	return mcp.NewTool("conveyor.inspect",
		mcp.WithDescription("Query an execution log with a jq expression"),
		mcp.WithString("workflow_id", mcp.Required(), mcp.Description("ID of the execution to query")),
		mcp.WithString("query", mcp.Required(), mcp.Description("jq expression evaluated over the log document, e.g. '.results[] | select(.result.status == \"failure\")'")),
	)
}

func stationsTool() mcp.Tool {
	return mcp.NewTool("conveyor.stations",
		mcp.WithDescription("List registered stations with their input/output manifests"),
	)
}
