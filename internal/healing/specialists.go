package healing

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/rendis/conveyor/internal/stacks"
	"github.com/rendis/conveyor/pkg/schema"
)

// DefaultSpecialists wires the built-in specialist set over a command runner.
func DefaultSpecialists(runner CommandRunner, logger *slog.Logger) map[Role]Specialist {
	if logger == nil {
		logger = slog.Default()
	}
	set := map[Role]Specialist{
		RoleImplementer: &implementerSpecialist{runner: runner, logger: logger},
		RoleDevOps:      &devopsSpecialist{runner: runner, logger: logger},
		RoleTester:      &testerSpecialist{logger: logger},
		RoleArchitect:   &architectSpecialist{logger: logger},
	}
	set[RoleFactory] = &factorySpecialist{runner: runner, logger: logger, delegates: set}
	return set
}

// --- Implementer: build errors ---

type implementerSpecialist struct {
	runner CommandRunner
	logger *slog.Logger
}

func (s *implementerSpecialist) Role() Role { return RoleImplementer }

func (s *implementerSpecialist) Fix(ctx context.Context, cl Classification, wctx *schema.WorkflowContext, hint string) (Remediation, error) {
	if hint != "" {
		return s.runHint(ctx, wctx, hint)
	}

	lower := strings.ToLower(cl.Message)

	// Damaged project layout is beyond a clean; rescaffolding is an
	// operator call.
	if strings.Contains(lower, "no such file") || strings.Contains(lower, "invalid path") {
		return NeedsHelp("Project structure appears damaged. Should I re-scaffold the project?"), nil
	}

	clean := stacks.CleanCommand(wctx.Stack)
	if clean == "" {
		return GaveUp(fmt.Sprintf("no clean command known for stack %s", wctx.Stack)), nil
	}

	if cl.File != "" {
		s.logger.InfoContext(ctx, "build error located",
			slog.String("file", cl.File), slog.Int("line", cl.Line))
	}

	// Corrupted or stale artifacts are the most common self-fixable cause.
	if _, err := s.runner.Run(ctx, Spec{Command: clean, Dir: wctx.OutputPath}); err != nil {
		return Remediation{}, err
	}
	return Fixed(fmt.Sprintf("cleaned build artifacts (%s)", clean)), nil
}

func (s *implementerSpecialist) runHint(ctx context.Context, wctx *schema.WorkflowContext, hint string) (Remediation, error) {
	res, err := s.runner.Run(ctx, Spec{Command: hint, Dir: wctx.OutputPath})
	if err != nil {
		return Remediation{}, err
	}
	if !res.OK() {
		return Partial(fmt.Sprintf("operator command %q exited %d", hint, res.ExitCode)), nil
	}
	return Fixed(fmt.Sprintf("applied operator command %q", hint)), nil
}

// --- DevOps: port conflicts, dependency errors, runtime errors ---

type devopsSpecialist struct {
	runner CommandRunner
	logger *slog.Logger
}

func (s *devopsSpecialist) Role() Role { return RoleDevOps }

func (s *devopsSpecialist) Fix(ctx context.Context, cl Classification, wctx *schema.WorkflowContext, hint string) (Remediation, error) {
	if hint != "" {
		res, err := s.runner.Run(ctx, Spec{Command: hint, Dir: wctx.OutputPath})
		if err != nil {
			return Remediation{}, err
		}
		if !res.OK() {
			return Partial(fmt.Sprintf("operator command %q exited %d", hint, res.ExitCode)), nil
		}
		return Fixed(fmt.Sprintf("applied operator command %q", hint)), nil
	}

	switch cl.Type {
	case PortInUse:
		return s.freePort(ctx, cl.Port)
	case DependencyError:
		return s.reinstallDeps(ctx, cl, wctx)
	default:
		return s.fixRuntime(ctx, cl)
	}
}

func (s *devopsSpecialist) freePort(ctx context.Context, port int) (Remediation, error) {
	// Double-tap: stubborn processes survive the first kill.
	for i := 0; i < 2; i++ {
		_, err := s.runner.Run(ctx, Spec{
			Command: fmt.Sprintf("fuser -k %d/tcp 2>/dev/null || lsof -ti:%d | xargs -r kill -9", port, port),
			Timeout: 10 * time.Second,
		})
		if err != nil {
			return Remediation{}, err
		}
	}
	return Fixed(fmt.Sprintf("freed port %d", port)), nil
}

func (s *devopsSpecialist) reinstallDeps(ctx context.Context, cl Classification, wctx *schema.WorkflowContext) (Remediation, error) {
	install := stacks.InstallCommand(wctx.Stack)
	if install == "" {
		return NeedsHelp(fmt.Sprintf(
			"Could not resolve dependency%s. What version or package is needed?", quoted(cl.Package))), nil
	}
	res, err := s.runner.Run(ctx, Spec{Command: install, Dir: wctx.OutputPath})
	if err != nil {
		return Remediation{}, err
	}
	if !res.OK() {
		return NeedsHelp(fmt.Sprintf(
			"Reinstalling dependencies failed%s. What version or package is needed?", quoted(cl.Package))), nil
	}
	return Fixed(fmt.Sprintf("reinstalled dependencies (%s)", install)), nil
}

func (s *devopsSpecialist) fixRuntime(ctx context.Context, cl Classification) (Remediation, error) {
	lower := strings.ToLower(cl.Message)

	if strings.Contains(lower, "out of memory") || strings.Contains(lower, "heap space") {
		return NeedsHelp("Application ran out of memory. Free up memory or raise the process limits, then retry."), nil
	}
	if strings.Contains(lower, "connection refused") || strings.Contains(lower, "cannot connect") {
		return Partial("connection to a dependent service refused; make sure databases or other services are running"), nil
	}

	// Generic runtime failure: clear the usual suspect ports and retry.
	for _, port := range []int{8080, 8000, 3000} {
		if _, err := s.runner.Run(ctx, Spec{
			Command: fmt.Sprintf("fuser -k %d/tcp 2>/dev/null || true", port),
			Timeout: 10 * time.Second,
		}); err != nil {
			return Remediation{}, err
		}
	}
	return Fixed("cleaned up stray processes, ready to restart"), nil
}

// --- Tester: test failures ---

type testerSpecialist struct {
	logger *slog.Logger
}

func (s *testerSpecialist) Role() Role { return RoleTester }

func (s *testerSpecialist) Fix(ctx context.Context, cl Classification, _ *schema.WorkflowContext, hint string) (Remediation, error) {
	if hint != "" {
		return Partial(fmt.Sprintf("retrying with operator guidance: %s", hint)), nil
	}

	lower := strings.ToLower(cl.Message)

	// Integration tests racing a slow service settle down on a delayed retry.
	if strings.Contains(lower, "connection") || strings.Contains(lower, "timeout") ||
		strings.Contains(lower, "refused") || strings.Contains(lower, "unreachable") {
		select {
		case <-time.After(3 * time.Second):
		case <-ctx.Done():
			return Remediation{}, ctx.Err()
		}
		return Fixed("waited for integration test dependencies to settle"), nil
	}

	if strings.Contains(lower, "flaky") || strings.Contains(lower, "intermittent") {
		return Partial("retrying potentially flaky test"), nil
	}

	// A real assertion failure means either the test or the code is wrong;
	// that judgement belongs to the operator.
	return NeedsHelp(fmt.Sprintf(
		"Test failure detected%s. Is the test checking the right behavior, or does the code need fixing?",
		quoted(cl.TestName))), nil
}

// --- Architect: configuration errors ---

type architectSpecialist struct {
	logger *slog.Logger
}

func (s *architectSpecialist) Role() Role { return RoleArchitect }

func (s *architectSpecialist) Fix(_ context.Context, cl Classification, _ *schema.WorkflowContext, hint string) (Remediation, error) {
	if hint != "" {
		return Partial(fmt.Sprintf("retrying with operator guidance: %s", hint)), nil
	}

	lower := strings.ToLower(cl.Message)

	if strings.Contains(lower, "profile") {
		return Partial("profile issue detected, will retry with the default profile"), nil
	}
	if strings.Contains(lower, "env") || strings.Contains(lower, "environment") {
		return NeedsHelp("Configuration requires environment variables. Which variables need to be set?"), nil
	}

	return Partial("configuration issue detected, will retry with defaults"), nil
}

// --- Factory: unknown errors ---

// factorySpecialist is the catch-all coordinator. It re-reads the output for
// a late classification and delegates; failing that it falls back to a
// general cleanup.
type factorySpecialist struct {
	runner    CommandRunner
	logger    *slog.Logger
	delegates map[Role]Specialist
}

func (s *factorySpecialist) Role() Role { return RoleFactory }

func (s *factorySpecialist) Fix(ctx context.Context, cl Classification, wctx *schema.WorkflowContext, hint string) (Remediation, error) {
	if hint != "" {
		res, err := s.runner.Run(ctx, Spec{Command: hint, Dir: wctx.OutputPath})
		if err != nil {
			return Remediation{}, err
		}
		if !res.OK() {
			return Partial(fmt.Sprintf("operator command %q exited %d", hint, res.ExitCode)), nil
		}
		return Fixed(fmt.Sprintf("applied operator command %q", hint)), nil
	}

	reclassified := classifyBuiltin(cl.Message)
	if reclassified.Type != Unknown {
		if delegate, ok := s.delegates[RouteFor(reclassified.Type)]; ok {
			s.logger.InfoContext(ctx, "reclassified unknown error",
				slog.String("as", string(reclassified.Type)))
			return delegate.Fix(ctx, reclassified, wctx, "")
		}
	}

	if clean := stacks.CleanCommand(wctx.Stack); clean != "" {
		if _, err := s.runner.Run(ctx, Spec{Command: clean, Dir: wctx.OutputPath}); err != nil {
			return Remediation{}, err
		}
		return Partial(fmt.Sprintf("general cleanup (%s), retrying", clean)), nil
	}
	return GaveUp("no recovery strategy for unrecognized error"), nil
}

func quoted(s string) string {
	if s == "" {
		return ""
	}
	return fmt.Sprintf(" in %q", s)
}
