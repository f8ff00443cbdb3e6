package stations

import (
	"context"
	"fmt"

	"github.com/rendis/conveyor/internal/healing"
	"github.com/rendis/conveyor/internal/stacks"
	"github.com/rendis/conveyor/internal/station"
	"github.com/rendis/conveyor/pkg/schema"
)

// lifecyclePhase selects which stack command a healing station runs.
type lifecyclePhase string

const (
	phaseBuild  lifecyclePhase = "build"
	phaseTest   lifecyclePhase = "test"
	phaseLaunch lifecyclePhase = "launch"
)

// HealingStation runs one lifecycle command for the context's stack under
// the self-healing loop. The station's outcome is the loop's outcome:
// Success once an attempt passes, NeedsInput when the loop escalates.
type HealingStation struct {
	station.Base
	phase lifecyclePhase
	loop  *healing.Loop
}

// NewBuild creates the self-healing build station.
func NewBuild(loop *healing.Loop) *HealingStation {
	return &HealingStation{phase: phaseBuild, loop: loop}
}

// NewTest creates the self-healing test station.
func NewTest(loop *healing.Loop) *HealingStation {
	return &HealingStation{phase: phaseTest, loop: loop}
}

// NewLaunch creates the self-healing launch station.
func NewLaunch(loop *healing.Loop) *HealingStation {
	return &HealingStation{phase: phaseLaunch, loop: loop}
}

func (h *HealingStation) Name() string { return string(h.phase) }

func (h *HealingStation) Description() string {
	return fmt.Sprintf("Runs the stack's %s command under the self-healing loop.", h.phase)
}

func (h *HealingStation) Input() station.Input {
	return station.Input{}.OptionalKey("app_path").OptionalKey(healing.HintKey)
}

func (h *HealingStation) Dependencies() []string {
	switch h.phase {
	case phaseTest:
		return []string{"build"}
	case phaseLaunch:
		return []string{"build"}
	default:
		return []string{"scaffold"}
	}
}

func (h *HealingStation) Execute(ctx context.Context, wctx *schema.WorkflowContext) (schema.StationResult, error) {
	commands, ok := stacks.For(wctx.Stack)
	if !ok {
		return schema.Failure(fmt.Sprintf("unknown stack %q", wctx.Stack)), nil
	}

	var command string
	switch h.phase {
	case phaseBuild:
		command = commands.Build
	case phaseTest:
		command = commands.Test
	case phaseLaunch:
		command = commands.Launch
	}
	if command == "" {
		return schema.Failure(fmt.Sprintf("stack %s has no %s command", wctx.Stack, h.phase)), nil
	}

	appPath := wctx.OutputPath
	_ = wctx.Get("app_path", &appPath)

	return h.loop.Heal(ctx, healing.Spec{
		Command: command,
		Dir:     appPath,
		Env:     wctx.EnvVars,
	}, wctx)
}
