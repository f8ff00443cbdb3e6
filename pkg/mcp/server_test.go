package mcp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConveyorServer(t *testing.T) {
	s := NewConveyorServer(ConveyorServerDeps{})
	require.NotNil(t, s)
	assert.NotNil(t, s.mcpServer)
	assert.NotNil(t, s.logger)
	assert.NotNil(t, s.jq)
}

func TestToolRegistration(t *testing.T) {
	s := NewConveyorServer(ConveyorServerDeps{})

	tools := s.mcpServer.ListTools()
	require.Len(t, tools, 5)

	expectedTools := []string{
		"conveyor.execute",
		"conveyor.resume",
		"conveyor.status",
		"conveyor.inspect",
		"conveyor.stations",
	}
	for _, name := range expectedTools {
		tool := s.mcpServer.GetTool(name)
		assert.NotNil(t, tool, "tool %s should be registered", name)
	}
}

func TestToolDefinitions(t *testing.T) {
	tests := []struct {
		name        string
		toolName    string
		description string
	}{
		{"execute", "conveyor.execute", "Execute a workflow against a new workflow context"},
		{"resume", "conveyor.resume", "Resume a failed workflow, optionally answering an escalation"},
		{"status", "conveyor.status", "Get the execution log of a workflow run"},
		{"inspect", "conveyor.inspect", "Query an execution log with a jq expression"},
		{"stations", "conveyor.stations", "List registered stations with their input/output manifests"},
	}

	s := NewConveyorServer(ConveyorServerDeps{})

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tool := s.mcpServer.GetTool(tc.toolName)
			require.NotNil(t, tool)
			assert.Equal(t, tc.description, tool.Tool.Description)
		})
	}
}

func TestMCPServerAccessor(t *testing.T) {
	s := NewConveyorServer(ConveyorServerDeps{})
	assert.Same(t, s.mcpServer, s.MCPServer())
}
