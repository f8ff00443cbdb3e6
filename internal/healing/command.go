// Package healing implements the self-healing loop wrapped around externally
// executed commands: run, classify the failure, check guardrails, route to a
// specialist for remediation, retry, and escalate to the operator when the
// guardrails say the loop has earned no more attempts.
package healing

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"time"

	"github.com/rendis/conveyor/pkg/schema"
)

const (
	defaultCommandTimeout = 5 * time.Minute
	defaultMaxOutputSize  = 10 * 1024 * 1024 // 10MB
)

// Spec describes one command invocation.
type Spec struct {
	// Command is a shell line, run via /bin/sh -c.
	Command string
	Dir     string
	Env     map[string]string
	Timeout time.Duration
}

// Result is the captured outcome of one command invocation.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
	Duration time.Duration
	Killed   bool
}

// OK reports whether the command exited zero without being killed.
func (r Result) OK() bool { return r.ExitCode == 0 && !r.Killed }

// CombinedOutput joins stdout and stderr for classification.
func (r Result) CombinedOutput() string {
	if r.Stdout == "" {
		return r.Stderr
	}
	if r.Stderr == "" {
		return r.Stdout
	}
	return r.Stdout + "\n" + r.Stderr
}

// CommandRunner executes commands on behalf of healing stations and
// specialists. The error return covers spawn-level faults (command not
// found, context cancelled); a non-zero exit is reported in the Result.
type CommandRunner interface {
	Run(ctx context.Context, spec Spec) (Result, error)
}

// ExecRunner runs commands through /bin/sh with capped output capture and
// deadline-kill detection.
type ExecRunner struct {
	MaxOutputSize int64
}

// NewExecRunner creates an ExecRunner with the default output cap.
func NewExecRunner() *ExecRunner {
	return &ExecRunner{MaxOutputSize: defaultMaxOutputSize}
}

func (r *ExecRunner) Run(ctx context.Context, spec Spec) (Result, error) {
	if spec.Command == "" {
		return Result{}, schema.NewError(schema.ErrCodeValidation, "command is empty")
	}

	timeout := spec.Timeout
	if timeout <= 0 {
		timeout = defaultCommandTimeout
	}
	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(execCtx, "/bin/sh", "-c", spec.Command)
	if spec.Dir != "" {
		cmd.Dir = spec.Dir
	}
	if len(spec.Env) > 0 {
		cmd.Env = os.Environ()
		for k, v := range spec.Env {
			cmd.Env = append(cmd.Env, k+"="+v)
		}
	}

	limit := r.MaxOutputSize
	if limit <= 0 {
		limit = defaultMaxOutputSize
	}
	var stdoutBuf, stderrBuf bytes.Buffer
	cmd.Stdout = &limitedWriter{w: &stdoutBuf, limit: limit}
	cmd.Stderr = &limitedWriter{w: &stderrBuf, limit: limit}

	start := time.Now()
	runErr := cmd.Run()
	duration := time.Since(start)

	result := Result{
		Stdout:   stdoutBuf.String(),
		Stderr:   stderrBuf.String(),
		Duration: duration,
	}

	if runErr != nil {
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
		} else if execCtx.Err() == nil {
			// Spawn failure, not a command outcome.
			return Result{}, schema.NewErrorf(schema.ErrCodeExecution, "run %q: %s", spec.Command, runErr.Error()).WithCause(runErr)
		}
		switch execCtx.Err() {
		case context.DeadlineExceeded:
			result.Killed = true
			if result.ExitCode == 0 {
				result.ExitCode = -1
			}
		case context.Canceled:
			return Result{}, ctx.Err()
		}
	}
	return result, nil
}

// limitedWriter discards bytes beyond the limit while always reporting the
// full write consumed, so the subprocess never blocks on a full pipe.
type limitedWriter struct {
	w       io.Writer
	limit   int64
	written int64
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	total := len(p)
	remaining := lw.limit - lw.written
	if remaining <= 0 {
		return total, nil
	}
	if int64(len(p)) > remaining {
		p = p[:remaining]
	}
	n, err := lw.w.Write(p)
	lw.written += int64(n)
	if err != nil {
		return total, err
	}
	return total, nil
}
