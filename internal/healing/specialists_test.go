package healing

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/conveyor/pkg/schema"
)

type recordingRunner struct {
	commands []string
	results  []Result
	err      error
}

func (r *recordingRunner) Run(_ context.Context, spec Spec) (Result, error) {
	r.commands = append(r.commands, spec.Command)
	if r.err != nil {
		return Result{}, r.err
	}
	if len(r.results) > 0 {
		res := r.results[0]
		if len(r.results) > 1 {
			r.results = r.results[1:]
		}
		return res, nil
	}
	return Result{ExitCode: 0}, nil
}

func testContext() *schema.WorkflowContext {
	return schema.NewWorkflowContext("/work", "billing", schema.StackRustAPI)
}

func TestDefaultSpecialists_CoversAllRoles(t *testing.T) {
	set := DefaultSpecialists(&recordingRunner{}, slog.New(slog.DiscardHandler))

	for _, role := range []Role{RoleImplementer, RoleDevOps, RoleTester, RoleArchitect, RoleFactory} {
		sp, ok := set[role]
		require.True(t, ok, "missing specialist for %s", role)
		assert.Equal(t, role, sp.Role())
	}
}

func TestImplementer_CleansBuildArtifacts(t *testing.T) {
	runner := &recordingRunner{}
	sp := &implementerSpecialist{runner: runner, logger: slog.New(slog.DiscardHandler)}

	rem, err := sp.Fix(context.Background(), Classification{
		Type:    BuildError,
		Message: "error[E0425]: cannot find value `foo`",
	}, testContext(), "")
	require.NoError(t, err)
	assert.Equal(t, OutcomeFixed, rem.Outcome)
	require.Len(t, runner.commands, 1)
	assert.Equal(t, "cargo clean", runner.commands[0])
}

func TestImplementer_DamagedLayoutEscalates(t *testing.T) {
	sp := &implementerSpecialist{runner: &recordingRunner{}, logger: slog.New(slog.DiscardHandler)}

	rem, err := sp.Fix(context.Background(), Classification{
		Type:    BuildError,
		Message: "error: no such file or directory: src/main.rs",
	}, testContext(), "")
	require.NoError(t, err)
	assert.Equal(t, OutcomeNeedsHelp, rem.Outcome)
	assert.Contains(t, rem.Question, "re-scaffold")
}

func TestImplementer_HintRunsOperatorCommand(t *testing.T) {
	runner := &recordingRunner{}
	sp := &implementerSpecialist{runner: runner, logger: slog.New(slog.DiscardHandler)}

	rem, err := sp.Fix(context.Background(), Classification{Type: BuildError}, testContext(), "cargo update")
	require.NoError(t, err)
	assert.Equal(t, OutcomeFixed, rem.Outcome)
	assert.Equal(t, []string{"cargo update"}, runner.commands)
}

func TestDevOps_FreesPortTwice(t *testing.T) {
	runner := &recordingRunner{}
	sp := &devopsSpecialist{runner: runner, logger: slog.New(slog.DiscardHandler)}

	rem, err := sp.Fix(context.Background(), Classification{Type: PortInUse, Port: 8080}, testContext(), "")
	require.NoError(t, err)
	assert.Equal(t, OutcomeFixed, rem.Outcome)
	assert.Contains(t, rem.Description, "8080")
	// Double-tap.
	require.Len(t, runner.commands, 2)
	assert.Contains(t, runner.commands[0], "8080/tcp")
}

func TestDevOps_ReinstallsDependencies(t *testing.T) {
	runner := &recordingRunner{}
	sp := &devopsSpecialist{runner: runner, logger: slog.New(slog.DiscardHandler)}

	rem, err := sp.Fix(context.Background(), Classification{
		Type:    DependencyError,
		Package: "serde",
	}, testContext(), "")
	require.NoError(t, err)
	assert.Equal(t, OutcomeFixed, rem.Outcome)
	require.Len(t, runner.commands, 1)
	assert.Equal(t, "cargo fetch", runner.commands[0])
}

func TestDevOps_FailedReinstallAsksForVersion(t *testing.T) {
	runner := &recordingRunner{results: []Result{{ExitCode: 1}}}
	sp := &devopsSpecialist{runner: runner, logger: slog.New(slog.DiscardHandler)}

	rem, err := sp.Fix(context.Background(), Classification{
		Type:    DependencyError,
		Package: "serde",
	}, testContext(), "")
	require.NoError(t, err)
	assert.Equal(t, OutcomeNeedsHelp, rem.Outcome)
	assert.Contains(t, rem.Question, "serde")
}

func TestDevOps_OutOfMemoryEscalates(t *testing.T) {
	sp := &devopsSpecialist{runner: &recordingRunner{}, logger: slog.New(slog.DiscardHandler)}

	rem, err := sp.Fix(context.Background(), Classification{
		Type:    RuntimeError,
		Message: "java.lang.OutOfMemoryError: Java heap space",
	}, testContext(), "")
	require.NoError(t, err)
	assert.Equal(t, OutcomeNeedsHelp, rem.Outcome)
}

func TestDevOps_GenericRuntimeClearsPorts(t *testing.T) {
	runner := &recordingRunner{}
	sp := &devopsSpecialist{runner: runner, logger: slog.New(slog.DiscardHandler)}

	rem, err := sp.Fix(context.Background(), Classification{
		Type:    RuntimeError,
		Message: "panicked at 'unexpected state'",
	}, testContext(), "")
	require.NoError(t, err)
	assert.Equal(t, OutcomeFixed, rem.Outcome)
	assert.Len(t, runner.commands, 3)
}

func TestTester_AssertionFailureNeedsJudgement(t *testing.T) {
	sp := &testerSpecialist{logger: slog.New(slog.DiscardHandler)}

	rem, err := sp.Fix(context.Background(), Classification{
		Type:     TestFailure,
		Message:  "assertion failed: expected 200, got 500",
		TestName: "test_create_invoice",
	}, testContext(), "")
	require.NoError(t, err)
	assert.Equal(t, OutcomeNeedsHelp, rem.Outcome)
	assert.Contains(t, rem.Question, "test_create_invoice")
}

func TestTester_FlakyTestRetried(t *testing.T) {
	sp := &testerSpecialist{logger: slog.New(slog.DiscardHandler)}

	rem, err := sp.Fix(context.Background(), Classification{
		Type:    TestFailure,
		Message: "known flaky test timed out waiting for lock",
	}, testContext(), "")
	require.NoError(t, err)
	assert.Equal(t, OutcomePartial, rem.Outcome)
}

func TestArchitect_EnvironmentEscalates(t *testing.T) {
	sp := &architectSpecialist{logger: slog.New(slog.DiscardHandler)}

	rem, err := sp.Fix(context.Background(), Classification{
		Type:    ConfigError,
		Message: "missing environment variable DATABASE_URL",
	}, testContext(), "")
	require.NoError(t, err)
	assert.Equal(t, OutcomeNeedsHelp, rem.Outcome)
}

func TestArchitect_DefaultRetriesWithDefaults(t *testing.T) {
	sp := &architectSpecialist{logger: slog.New(slog.DiscardHandler)}

	rem, err := sp.Fix(context.Background(), Classification{
		Type:    ConfigError,
		Message: "invalid yaml in application config",
	}, testContext(), "")
	require.NoError(t, err)
	assert.Equal(t, OutcomePartial, rem.Outcome)
}

func TestFactory_ReclassifiesAndDelegates(t *testing.T) {
	runner := &recordingRunner{}
	set := DefaultSpecialists(runner, slog.New(slog.DiscardHandler))
	factory := set[RoleFactory]

	// The message carries a port conflict the first classifier pass missed.
	rem, err := factory.Fix(context.Background(), Classification{
		Type:    Unknown,
		Message: "error: address already in use :8080",
	}, testContext(), "")
	require.NoError(t, err)
	assert.Equal(t, OutcomeFixed, rem.Outcome)
	assert.Contains(t, rem.Description, "8080")
}

func TestFactory_FallsBackToCleanup(t *testing.T) {
	runner := &recordingRunner{}
	set := DefaultSpecialists(runner, slog.New(slog.DiscardHandler))
	factory := set[RoleFactory]

	rem, err := factory.Fix(context.Background(), Classification{
		Type:    Unknown,
		Message: "something completely inscrutable",
	}, testContext(), "")
	require.NoError(t, err)
	assert.Equal(t, OutcomePartial, rem.Outcome)
	require.Len(t, runner.commands, 1)
	assert.Equal(t, "cargo clean", runner.commands[0])
}

func TestFactory_GivesUpWithoutCleanCommand(t *testing.T) {
	runner := &recordingRunner{}
	set := DefaultSpecialists(runner, slog.New(slog.DiscardHandler))
	factory := set[RoleFactory]

	wctx := schema.NewWorkflowContext("/work", "billing", schema.StackType("cobol-cics"))
	rem, err := factory.Fix(context.Background(), Classification{
		Type:    Unknown,
		Message: "something completely inscrutable",
	}, wctx, "")
	require.NoError(t, err)
	assert.Equal(t, OutcomeGaveUp, rem.Outcome)
}
