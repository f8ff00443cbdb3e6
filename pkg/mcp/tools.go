package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/rendis/conveyor/internal/engine"
	"github.com/rendis/conveyor/internal/healing"
	"github.com/rendis/conveyor/pkg/schema"
)

// handleExecute runs a workflow against a fresh context.
func (s *ConveyorServer) handleExecute(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	workspacePath, err := req.RequireString("workspace_path")
	if err != nil {
		return mcp.NewToolResultError("workspace_path is required"), nil
	}
	appName, err := req.RequireString("app_name")
	if err != nil {
		return mcp.NewToolResultError("app_name is required"), nil
	}
	stackName, err := req.RequireString("stack")
	if err != nil {
		return mcp.NewToolResultError("stack is required"), nil
	}
	stack := schema.StackType(stackName)
	if !stack.Known() {
		return mcp.NewToolResultError(fmt.Sprintf("unknown stack %q", stackName)), nil
	}

	wf, wfErr := s.resolveWorkflow(req)
	if wfErr != nil {
		return mcp.NewToolResultError(wfErr.Error()), nil
	}

	wctx := schema.NewWorkflowContext(workspacePath, appName, stack)
	if env := mcp.ParseStringMap(req, "env", nil); env != nil {
		for k, v := range env {
			if str, ok := v.(string); ok {
				wctx = wctx.WithEnv(k, str)
			}
		}
	}

	log, execErr := s.executor.Execute(ctx, wf, wctx)
	if execErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("execution failed: %v", execErr)), nil
	}
	return logResult(log)
}

// resolveWorkflow builds the workflow from an explicit station list or a
// preset name.
func (s *ConveyorServer) resolveWorkflow(req mcp.CallToolRequest) (*schema.Workflow, error) {
	if stations := stringSliceArg(req, "stations"); len(stations) > 0 {
		wf := schema.NewWorkflow("custom", "Custom Workflow")
		for _, name := range stations {
			wf = wf.Station(name)
		}
		return wf, nil
	}

	switch preset := req.GetString("workflow", "create-app"); preset {
	case "create-app":
		return schema.CreateAppWorkflow(), nil
	case "add-feature":
		return schema.AddFeatureWorkflow(), nil
	case "validate":
		return schema.ValidateWorkflow(), nil
	case "iac":
		return schema.IacWorkflow(), nil
	default:
		return nil, fmt.Errorf("unknown workflow preset %q", preset)
	}
}

// handleResume resumes a failed execution, optionally applying an escalation
// answer first.
func (s *ConveyorServer) handleResume(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	workflowID, err := req.RequireString("workflow_id")
	if err != nil {
		return mcp.NewToolResultError("workflow_id is required"), nil
	}
	option := schema.EscalationOption(req.GetString("option", string(schema.OptionRetry)))

	doc, readErr := s.store.Read(ctx, workflowID)
	if readErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("load execution log: %v", readErr)), nil
	}
	log, parseErr := engine.UnmarshalExecutionLog(doc)
	if parseErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("parse execution log: %v", parseErr)), nil
	}

	switch option {
	case schema.OptionRetry:
		// Straight resume; the failed station runs again with fresh healing
		// counters.

	case schema.OptionSkip:
		if err := log.SkipFailedStation(); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("skip failed station: %v", err)), nil
		}
		if err := s.persist(ctx, log); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("persist log: %v", err)), nil
		}
		if log.State == engine.StateCompleted {
			return logResult(log)
		}

	case schema.OptionRescaffold:
		if result, rerr := s.rescaffold(ctx, log); rerr != nil {
			return mcp.NewToolResultError(fmt.Sprintf("rescaffold: %v", rerr)), nil
		} else if result != nil {
			return result, nil
		}

	case schema.OptionHelp:
		helpText := req.GetString("help_text", "")
		if helpText == "" {
			return mcp.NewToolResultError("help_text is required with option=help"), nil
		}
		if log.Context == nil {
			return mcp.NewToolResultError("execution log has no context snapshot"), nil
		}
		if err := log.Context.SetMetadata(healing.HintKey, helpText); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("record help text: %v", err)), nil
		}

	default:
		return mcp.NewToolResultError(fmt.Sprintf("unknown option %q", option)), nil
	}

	resumed, resumeErr := s.executor.Resume(ctx, log)
	if resumeErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("resume failed: %v", resumeErr)), nil
	}
	return logResult(resumed)
}

// rescaffold regenerates the project from its template before the resume
// retries the failed station. Returns a non-nil result only on a scaffolding
// failure worth reporting directly.
func (s *ConveyorServer) rescaffold(ctx context.Context, log *engine.ExecutionLog) (*mcp.CallToolResult, error) {
	if log.Context == nil {
		return nil, fmt.Errorf("execution log has no context snapshot")
	}
	scaffold, err := s.registry.Get("scaffold")
	if err != nil {
		return nil, err
	}
	result, err := scaffold.Execute(ctx, log.Context)
	if err != nil {
		return nil, err
	}
	if !result.OK() {
		return mcp.NewToolResultError(fmt.Sprintf("rescaffold did not succeed: %s", result.Message)), nil
	}
	return nil, nil
}

// handleStatus returns the persisted execution log.
func (s *ConveyorServer) handleStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	workflowID, err := req.RequireString("workflow_id")
	if err != nil {
		return mcp.NewToolResultError("workflow_id is required"), nil
	}

	doc, readErr := s.store.Read(ctx, workflowID)
	if readErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("status query failed: %v", readErr)), nil
	}
	return mcp.NewToolResultJSON(json.RawMessage(doc))
}

// handleInspect evaluates a jq expression over the execution log document.
func (s *ConveyorServer) handleInspect(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	workflowID, err := req.RequireString("workflow_id")
	if err != nil {
		return mcp.NewToolResultError("workflow_id is required"), nil
	}
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError("query is required"), nil
	}

	doc, readErr := s.store.Read(ctx, workflowID)
	if readErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("load execution log: %v", readErr)), nil
	}

	out, queryErr := s.jq.QueryDocument(ctx, query, doc)
	if queryErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("query failed: %v", queryErr)), nil
	}
	return marshalResult(map[string]any{"workflow_id": workflowID, "result": out})
}

// handleStations lists the registered stations.
func (s *ConveyorServer) handleStations(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	type stationInfo struct {
		Name         string   `json:"name"`
		Description  string   `json:"description"`
		RequiredKeys []string `json:"required_keys,omitempty"`
		OptionalKeys []string `json:"optional_keys,omitempty"`
		ProducesKeys []string `json:"produces_keys,omitempty"`
		Dependencies []string `json:"dependencies,omitempty"`
	}

	var list []stationInfo
	for _, name := range s.registry.Names() {
		st, err := s.registry.Get(name)
		if err != nil {
			continue
		}
		in, out := st.Input(), st.Output()
		list = append(list, stationInfo{
			Name:         st.Name(),
			Description:  st.Description(),
			RequiredKeys: in.RequiredKeys,
			OptionalKeys: in.OptionalKeys,
			ProducesKeys: out.ProducesKeys,
			Dependencies: st.Dependencies(),
		})
	}
	return marshalResult(map[string]any{"stations": list})
}

// --- Helpers ---

func (s *ConveyorServer) persist(ctx context.Context, log *engine.ExecutionLog) error {
	doc, err := log.Marshal()
	if err != nil {
		return err
	}
	return s.store.Write(ctx, log.WorkflowID, doc)
}

// logResult serializes an execution log as the tool result.
func logResult(log *engine.ExecutionLog) (*mcp.CallToolResult, error) {
	doc, err := log.Marshal()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal log: %v", err)), nil
	}
	return mcp.NewToolResultJSON(json.RawMessage(doc))
}

// marshalResult converts a value to a JSON text tool result.
func marshalResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultJSON(json.RawMessage(data))
}

// stringSliceArg reads an array-of-strings argument.
func stringSliceArg(req mcp.CallToolRequest, key string) []string {
	args := req.GetArguments()
	raw, ok := args[key]
	if !ok {
		return nil
	}
	arr, ok := raw.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(arr))
	for _, item := range arr {
		if str, ok := item.(string); ok {
			out = append(out, str)
		}
	}
	return out
}
