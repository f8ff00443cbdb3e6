package stations

import (
	"context"
	"fmt"
	"time"

	"github.com/rendis/conveyor/internal/healing"
	"github.com/rendis/conveyor/internal/station"
	"github.com/rendis/conveyor/pkg/schema"
)

const commitTimeout = 30 * time.Second

// Commit snapshots the generated project into git: init if needed, stage
// everything, commit.
type Commit struct {
	station.Base
	runner healing.CommandRunner
}

// NewCommit creates the commit station over a command runner.
func NewCommit(runner healing.CommandRunner) *Commit {
	return &Commit{runner: runner}
}

func (c *Commit) Name() string { return "commit" }

func (c *Commit) Description() string {
	return "Commits the generated project to a local git repository."
}

func (c *Commit) Input() station.Input {
	return station.Input{}.OptionalKey("app_path").OptionalKey("commit_message")
}

func (c *Commit) Execute(ctx context.Context, wctx *schema.WorkflowContext) (schema.StationResult, error) {
	appPath := wctx.OutputPath
	_ = wctx.Get("app_path", &appPath)

	message := fmt.Sprintf("Scaffold %s application %s", wctx.Stack, wctx.AppName)
	_ = wctx.Get("commit_message", &message)

	steps := []string{
		"git rev-parse --is-inside-work-tree 2>/dev/null || git init",
		"git add -A",
		fmt.Sprintf("git -c user.name=conveyor -c user.email=conveyor@localhost commit -m %q --allow-empty", message),
	}
	for _, cmd := range steps {
		res, err := c.runner.Run(ctx, healing.Spec{Command: cmd, Dir: appPath, Timeout: commitTimeout})
		if err != nil {
			return schema.StationResult{}, err
		}
		if !res.OK() {
			return schema.Failure(fmt.Sprintf("%s: exit %d: %s", cmd, res.ExitCode, res.Stderr)), nil
		}
	}
	return schema.Success(fmt.Sprintf("committed %q in %s", message, appPath)), nil
}
