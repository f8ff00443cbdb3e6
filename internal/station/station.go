// Package station defines the unit-of-work contract executed by the engine
// and the registry that resolves station names to implementations.
package station

import (
	"context"

	"github.com/rendis/conveyor/pkg/schema"
)

// Station is one named unit of work in a workflow.
//
// Implementations must be stateless between invocations: anything that needs
// to survive a retry lives in the WorkflowContext (or, for self-healing
// stations, in a per-invocation healing session), never in the Station value.
// Stations must be safe for use from multiple workflow executions.
type Station interface {
	// Name is the unique identifier used in workflow definitions and the registry.
	Name() string

	// Description explains what the station does, for listings and prompts.
	Description() string

	// Input declares the context keys the station reads.
	Input() Input

	// Output declares the keys and artifacts the station promises to produce.
	Output() Output

	// Dependencies lists station names expected to have completed earlier in
	// the workflow. Informational — ordering is authored, not solved.
	Dependencies() []string

	// Execute performs the work, mutating ctx in place.
	// A failed unit of work is reported as a failure StationResult, not as an
	// error; the error return is reserved for engine-level faults.
	Execute(ctx context.Context, wctx *schema.WorkflowContext) (schema.StationResult, error)
}

// Input is a declarative manifest of the context keys a station reads.
// It documents and supports external validation; it does not gate execution.
type Input struct {
	RequiredKeys []string `json:"required_keys,omitempty"`
	OptionalKeys []string `json:"optional_keys,omitempty"`
}

// RequireKey appends a required key.
func (in Input) RequireKey(key string) Input {
	in.RequiredKeys = append(in.RequiredKeys, key)
	return in
}

// OptionalKey appends an optional key.
func (in Input) OptionalKey(key string) Input {
	in.OptionalKeys = append(in.OptionalKeys, key)
	return in
}

// Output is a declarative manifest of what a station promises to produce.
type Output struct {
	ProducesKeys      []string `json:"produces_keys,omitempty"`
	ProducesArtifacts []string `json:"produces_artifacts,omitempty"`
}

// ProducesKey appends a produced context key.
func (out Output) ProducesKey(key string) Output {
	out.ProducesKeys = append(out.ProducesKeys, key)
	return out
}

// ProducesArtifact appends a produced artifact identifier.
func (out Output) ProducesArtifact(name string) Output {
	out.ProducesArtifacts = append(out.ProducesArtifacts, name)
	return out
}

// Base provides the boilerplate for stations with empty manifests and no
// dependencies; embed it and override what the station actually declares.
type Base struct{}

func (Base) Input() Input           { return Input{} }
func (Base) Output() Output         { return Output{} }
func (Base) Dependencies() []string { return nil }
