package schema

import (
	"encoding/json"
	"path/filepath"

	"github.com/google/uuid"
)

// StackType identifies the technology stack of the application under assembly.
type StackType string

const (
	StackPythonFastapi   StackType = "python-fastapi"
	StackJavaSpringboot  StackType = "java-springboot"
	StackJavaQuarkus     StackType = "java-quarkus"
	StackDotnetWebapi    StackType = "dotnet-webapi"
	StackRustAPI         StackType = "rust-api"
	StackFrontendReact   StackType = "frontend-react"
	StackFrontendAngular StackType = "frontend-angular"
	StackFrontendVue     StackType = "frontend-vue"
	StackElectronApp     StackType = "electron-app"
)

func (s StackType) String() string { return string(s) }

// Known reports whether the stack is one of the catalog entries. Custom stack
// identifiers are allowed everywhere; stations that need stack-specific
// commands fall back to generic behavior for unknown stacks.
func (s StackType) Known() bool {
	switch s {
	case StackPythonFastapi, StackJavaSpringboot, StackJavaQuarkus, StackDotnetWebapi,
		StackRustAPI, StackFrontendReact, StackFrontendAngular, StackFrontendVue, StackElectronApp:
		return true
	}
	return false
}

// IacConfig is the optional infrastructure-as-code configuration.
type IacConfig struct {
	Enabled  bool   `json:"enabled"`
	Provider string `json:"provider,omitempty"`
	Cloud    string `json:"cloud,omitempty"`
}

// Terraform builds an enabled terraform IaC config for the given cloud.
func Terraform(cloud string) IacConfig {
	return IacConfig{Enabled: true, Provider: "terraform", Cloud: cloud}
}

// WorkflowContext is the mutable state threaded through one execution.
// It is owned by exactly one execution at a time and is never shared across
// concurrent workflow runs. Outputs written by one station are readable as
// inputs by later stations — the two maps share one string-keyed namespace
// via Get.
type WorkflowContext struct {
	ExecutionID   string                     `json:"execution_id"`
	WorkspacePath string                     `json:"workspace_path"`
	OutputPath    string                     `json:"output_path"`
	AppName       string                     `json:"app_name"`
	Stack         StackType                  `json:"stack"`
	Iac           IacConfig                  `json:"iac"`
	EnvVars       map[string]string          `json:"env_vars"`
	Inputs        map[string]json.RawMessage `json:"inputs"`
	Outputs       map[string]json.RawMessage `json:"outputs"`
	Metadata      map[string]json.RawMessage `json:"metadata"`
}

// NewWorkflowContext creates a context for one execution request.
// The output path defaults to <workspace>/workspaces/<app>.
func NewWorkflowContext(workspacePath, appName string, stack StackType) *WorkflowContext {
	return &WorkflowContext{
		ExecutionID:   uuid.New().String(),
		WorkspacePath: workspacePath,
		OutputPath:    filepath.Join(workspacePath, "workspaces", appName),
		AppName:       appName,
		Stack:         stack,
		EnvVars:       make(map[string]string),
		Inputs:        make(map[string]json.RawMessage),
		Outputs:       make(map[string]json.RawMessage),
		Metadata:      make(map[string]json.RawMessage),
	}
}

// WithOutputPath overrides the default output path.
func (c *WorkflowContext) WithOutputPath(path string) *WorkflowContext {
	c.OutputPath = path
	return c
}

// WithIac enables infrastructure-as-code generation.
func (c *WorkflowContext) WithIac(iac IacConfig) *WorkflowContext {
	c.Iac = iac
	return c
}

// WithEnv adds an environment variable override.
func (c *WorkflowContext) WithEnv(key, value string) *WorkflowContext {
	c.EnvVars[key] = value
	return c
}

// SetInput stores a value under key in the inputs map.
func (c *WorkflowContext) SetInput(key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return NewErrorf(ErrCodeSerialization, "marshal input %q: %s", key, err.Error()).WithCause(err)
	}
	c.Inputs[key] = raw
	return nil
}

// SetOutput stores a value under key in the outputs map; later stations read
// it back through Get.
func (c *WorkflowContext) SetOutput(key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return NewErrorf(ErrCodeSerialization, "marshal output %q: %s", key, err.Error()).WithCause(err)
	}
	c.Outputs[key] = raw
	return nil
}

// SetMetadata stores an arbitrary structured metadata value.
func (c *WorkflowContext) SetMetadata(key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return NewErrorf(ErrCodeSerialization, "marshal metadata %q: %s", key, err.Error()).WithCause(err)
	}
	c.Metadata[key] = raw
	return nil
}

// GetMetadata resolves key from the metadata map.
func (c *WorkflowContext) GetMetadata(key string, out any) bool {
	raw, ok := c.Metadata[key]
	if !ok {
		return false
	}
	return json.Unmarshal(raw, out) == nil
}

// Get resolves key from the shared namespace: outputs win over inputs so a
// station can refine a value set upstream.
func (c *WorkflowContext) Get(key string, out any) bool {
	raw, ok := c.Outputs[key]
	if !ok {
		raw, ok = c.Inputs[key]
	}
	if !ok {
		return false
	}
	return json.Unmarshal(raw, out) == nil
}

// Has reports whether key is present in the shared namespace.
func (c *WorkflowContext) Has(key string) bool {
	_, inOut := c.Outputs[key]
	_, inIn := c.Inputs[key]
	return inOut || inIn
}

// Snapshot returns a deep copy for persistence into the execution log.
func (c *WorkflowContext) Snapshot() *WorkflowContext {
	cp := *c
	cp.EnvVars = make(map[string]string, len(c.EnvVars))
	for k, v := range c.EnvVars {
		cp.EnvVars[k] = v
	}
	cp.Inputs = copyRawMap(c.Inputs)
	cp.Outputs = copyRawMap(c.Outputs)
	cp.Metadata = copyRawMap(c.Metadata)
	return &cp
}

// AsMap flattens the context into plain values for expression evaluation
// (CEL conditions, jq queries).
func (c *WorkflowContext) AsMap() map[string]any {
	m := map[string]any{
		"execution_id":   c.ExecutionID,
		"workspace_path": c.WorkspacePath,
		"output_path":    c.OutputPath,
		"app_name":       c.AppName,
		"stack":          string(c.Stack),
		"iac_enabled":    c.Iac.Enabled,
		"env_vars":       c.EnvVars,
		"inputs":         rawMapToAny(c.Inputs),
		"outputs":        rawMapToAny(c.Outputs),
		"metadata":       rawMapToAny(c.Metadata),
	}
	return m
}

func copyRawMap(src map[string]json.RawMessage) map[string]json.RawMessage {
	dst := make(map[string]json.RawMessage, len(src))
	for k, v := range src {
		cp := make(json.RawMessage, len(v))
		copy(cp, v)
		dst[k] = cp
	}
	return dst
}

func rawMapToAny(src map[string]json.RawMessage) map[string]any {
	dst := make(map[string]any, len(src))
	for k, v := range src {
		var out any
		if err := json.Unmarshal(v, &out); err == nil {
			dst[k] = out
		} else {
			dst[k] = string(v)
		}
	}
	return dst
}
