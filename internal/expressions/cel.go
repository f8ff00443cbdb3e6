// Package expressions hosts the expression engines used around the core:
// CEL for station run conditions and gojq for querying persisted documents.
package expressions

import (
	"sync"

	"github.com/google/cel-go/cel"

	"github.com/rendis/conveyor/pkg/schema"
)

// CELEngine evaluates station run conditions against the workflow context.
// Thread-safe: compiled programs are cached and reused across goroutines.
//
// The environment exposes the flattened context fields as top-level variables:
//   - app_name, stack, output_path, workspace_path: string
//   - iac_enabled: bool
//   - env_vars:  map(string, string)
//   - inputs, outputs, metadata: map(string, dyn)
type CELEngine struct {
	env *cel.Env

	mu    sync.RWMutex
	cache map[string]cel.Program
}

// NewCELEngine creates a CEL engine with the sandboxed conveyor environment.
func NewCELEngine() (*CELEngine, error) {
	mapType := cel.MapType(cel.StringType, cel.DynType)

	env, err := cel.NewEnv(
		cel.Variable("app_name", cel.StringType),
		cel.Variable("stack", cel.StringType),
		cel.Variable("output_path", cel.StringType),
		cel.Variable("workspace_path", cel.StringType),
		cel.Variable("execution_id", cel.StringType),
		cel.Variable("iac_enabled", cel.BoolType),
		cel.Variable("env_vars", cel.MapType(cel.StringType, cel.StringType)),
		cel.Variable("inputs", mapType),
		cel.Variable("outputs", mapType),
		cel.Variable("metadata", mapType),
	)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeValidation, "create CEL environment: %s", err.Error()).WithCause(err)
	}

	return &CELEngine{env: env, cache: make(map[string]cel.Program)}, nil
}

// EvalBool compiles (or fetches from cache) a CEL expression and evaluates it
// against the given activation data, requiring a boolean result.
func (e *CELEngine) EvalBool(expression string, data map[string]any) (bool, error) {
	if expression == "" {
		return false, schema.NewError(schema.ErrCodeValidation, "empty CEL expression")
	}

	prg, err := e.getOrCompile(expression)
	if err != nil {
		return false, err
	}

	out, _, err := prg.Eval(withDefaults(data))
	if err != nil {
		return false, schema.NewErrorf(schema.ErrCodeExecution,
			"CEL evaluation failed for %q: %s", expression, err.Error()).
			WithCause(err).
			WithDetails(map[string]any{"expression": expression})
	}

	b, ok := out.Value().(bool)
	if !ok {
		return false, schema.NewErrorf(schema.ErrCodeValidation,
			"CEL expression %q did not evaluate to a boolean", expression)
	}
	return b, nil
}

func (e *CELEngine) getOrCompile(expression string) (cel.Program, error) {
	e.mu.RLock()
	if prg, ok := e.cache[expression]; ok {
		e.mu.RUnlock()
		return prg, nil
	}
	e.mu.RUnlock()

	ast, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, schema.NewErrorf(schema.ErrCodeValidation,
			"CEL compile failed for %q: %s", expression, issues.Err().Error()).
			WithCause(issues.Err())
	}

	prg, err := e.env.Program(ast)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeValidation,
			"CEL program build failed for %q: %s", expression, err.Error()).WithCause(err)
	}

	e.mu.Lock()
	e.cache[expression] = prg
	e.mu.Unlock()
	return prg, nil
}

// withDefaults fills missing environment variables so evaluation never fails
// on an absent key.
func withDefaults(data map[string]any) map[string]any {
	out := make(map[string]any, len(data)+10)
	for _, k := range []string{"app_name", "stack", "output_path", "workspace_path", "execution_id"} {
		out[k] = ""
	}
	out["iac_enabled"] = false
	out["env_vars"] = map[string]string{}
	out["inputs"] = map[string]any{}
	out["outputs"] = map[string]any{}
	out["metadata"] = map[string]any{}
	for k, v := range data {
		out[k] = v
	}
	return out
}
