// Package stations provides the built-in station set: scaffolding, manifest
// validation, committing, and the self-healing build/test/launch stations
// wrapped around the healing loop.
package stations

import (
	"context"
	"fmt"
	"os"

	"github.com/rendis/conveyor/internal/station"
	"github.com/rendis/conveyor/pkg/schema"
)

// Renderer produces a project's files on disk from the context's stack and
// variables. The template machinery behind it is the caller's concern.
type Renderer interface {
	Render(ctx context.Context, wctx *schema.WorkflowContext) ([]schema.Artifact, error)
}

// Scaffold generates the application skeleton into the context's output path.
type Scaffold struct {
	station.Base
	renderer Renderer
}

// NewScaffold creates the scaffold station over a renderer.
func NewScaffold(renderer Renderer) *Scaffold {
	return &Scaffold{renderer: renderer}
}

func (s *Scaffold) Name() string { return "scaffold" }

func (s *Scaffold) Description() string {
	return "Generates the application skeleton for the selected stack into the output path."
}

func (s *Scaffold) Output() station.Output {
	return station.Output{}.ProducesKey("app_path").ProducesArtifact("project")
}

func (s *Scaffold) Execute(ctx context.Context, wctx *schema.WorkflowContext) (schema.StationResult, error) {
	if !wctx.Stack.Known() {
		return schema.Failure(fmt.Sprintf("unknown stack %q", wctx.Stack)), nil
	}
	if err := os.MkdirAll(wctx.OutputPath, 0o755); err != nil {
		return schema.Failure(fmt.Sprintf("create output path %s: %s", wctx.OutputPath, err.Error())), nil
	}

	artifacts, err := s.renderer.Render(ctx, wctx)
	if err != nil {
		// Rendering failure is the station's work not succeeding, not an
		// engine fault.
		return schema.Failure(fmt.Sprintf("render %s project: %s", wctx.Stack, err.Error())), nil
	}

	if err := wctx.SetOutput("app_path", wctx.OutputPath); err != nil {
		return schema.StationResult{}, err
	}

	result := schema.Success(fmt.Sprintf("scaffolded %s application %q (%d artifacts)",
		wctx.Stack, wctx.AppName, len(artifacts))).WithProducedKeys("app_path")
	for _, a := range artifacts {
		result = result.WithArtifact(a)
	}
	return result, nil
}
