package engine

import (
	"context"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/conveyor/internal/station"
	"github.com/rendis/conveyor/internal/store"
	"github.com/rendis/conveyor/pkg/schema"
)

// stubStation returns canned results in order and counts invocations.
type stubStation struct {
	station.Base
	name    string
	results []schema.StationResult
	err     error
	calls   int
}

func (s *stubStation) Name() string        { return s.name }
func (s *stubStation) Description() string { return "stub " + s.name }

func (s *stubStation) Execute(_ context.Context, _ *schema.WorkflowContext) (schema.StationResult, error) {
	s.calls++
	if s.err != nil {
		return schema.StationResult{}, s.err
	}
	i := s.calls - 1
	if i >= len(s.results) {
		i = len(s.results) - 1
	}
	return s.results[i], nil
}

func newTestExecutor(t *testing.T, stations ...*stubStation) (*Executor, *station.Registry, store.LogStore) {
	t.Helper()
	reg := station.NewRegistry()
	for _, s := range stations {
		require.NoError(t, reg.Register(s))
	}
	fs, err := store.NewFileStore(t.TempDir())
	require.NoError(t, err)
	logger := slog.New(slog.DiscardHandler)
	return NewExecutor(reg, fs, logger), reg, fs
}

func testWorkflow(stations ...string) *schema.Workflow {
	wf := schema.NewWorkflow("test-wf", "Test Workflow")
	for _, s := range stations {
		wf = wf.Station(s)
	}
	return wf
}

func testContext(t *testing.T) *schema.WorkflowContext {
	t.Helper()
	return schema.NewWorkflowContext(t.TempDir(), "demo", schema.StackPythonFastapi)
}

func TestExecuteAllSucceed(t *testing.T) {
	a := &stubStation{name: "scaffold", results: []schema.StationResult{schema.Success("ok")}}
	b := &stubStation{name: "validate", results: []schema.StationResult{schema.Success("ok")}}
	c := &stubStation{name: "commit", results: []schema.StationResult{schema.Success("ok")}}
	exec, _, _ := newTestExecutor(t, a, b, c)

	log, err := exec.Execute(context.Background(), testWorkflow("scaffold", "validate", "commit"), testContext(t))
	require.NoError(t, err)

	assert.Equal(t, StateCompleted, log.State)
	assert.Len(t, log.Results, 3)
	assert.Equal(t, 3, log.CurrentStationIndex)
	assert.NotNil(t, log.CompletedAt)
	for _, entry := range log.Results {
		assert.Equal(t, schema.ResultSuccess, entry.Result.Status)
	}
}

func TestExecuteFailureAtStationK(t *testing.T) {
	a := &stubStation{name: "scaffold", results: []schema.StationResult{schema.Success("ok")}}
	b := &stubStation{name: "validate", results: []schema.StationResult{schema.Failure("missing required file")}}
	c := &stubStation{name: "commit", results: []schema.StationResult{schema.Success("ok")}}
	exec, _, _ := newTestExecutor(t, a, b, c)

	log, err := exec.Execute(context.Background(), testWorkflow("scaffold", "validate", "commit"), testContext(t))
	require.NoError(t, err, "station failure is data, not an engine fault")

	assert.Equal(t, StateFailed, log.State)
	assert.Len(t, log.Results, 2)
	assert.Equal(t, 1, log.CurrentStationIndex)
	assert.Equal(t, "validate", log.FailedStation())
	assert.Equal(t, "missing required file", log.Error)
	assert.Zero(t, c.calls, "commit must not run after validate fails")
}

func TestExecuteNeedsInputBecomesFailed(t *testing.T) {
	a := &stubStation{name: "build", results: []schema.StationResult{schema.NeedsInput("pick an option")}}
	exec, _, _ := newTestExecutor(t, a)

	log, err := exec.Execute(context.Background(), testWorkflow("build"), testContext(t))
	require.NoError(t, err)

	assert.Equal(t, StateFailed, log.State)
	assert.Equal(t, "build", log.FailedStation())
	require.Len(t, log.Results, 1)
	assert.Equal(t, schema.ResultNeedsInput, log.Results[0].Result.Status)
	assert.Equal(t, schema.EscalationOptions(), log.Results[0].Result.Options)
	assert.True(t, log.CanResume())
}

func TestExecuteUnknownStationFailsFast(t *testing.T) {
	a := &stubStation{name: "scaffold", results: []schema.StationResult{schema.Success("ok")}}
	exec, _, fs := newTestExecutor(t, a)

	_, err := exec.Execute(context.Background(), testWorkflow("scaffold", "no-such-station"), testContext(t))
	require.Error(t, err)

	var cerr *schema.ConveyorError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, schema.ErrCodeStationNotFound, cerr.Code)
	assert.Zero(t, a.calls, "no station may run when any name is unresolvable")

	ids, lerr := fs.List(context.Background())
	require.NoError(t, lerr)
	assert.Empty(t, ids, "nothing is persisted for a rejected workflow")
}

func TestExecuteInvalidWorkflow(t *testing.T) {
	exec, _, _ := newTestExecutor(t)
	_, err := exec.Execute(context.Background(), schema.NewWorkflow("empty", "Empty"), testContext(t))
	require.Error(t, err)
}

func TestExecutePersistsAfterEveryStation(t *testing.T) {
	a := &stubStation{name: "scaffold", results: []schema.StationResult{schema.Success("ok")}}
	b := &stubStation{name: "validate", results: []schema.StationResult{schema.Failure("nope")}}
	exec, _, fs := newTestExecutor(t, a, b)

	ctx := context.Background()
	log, err := exec.Execute(ctx, testWorkflow("scaffold", "validate"), testContext(t))
	require.NoError(t, err)

	doc, err := fs.Read(ctx, log.WorkflowID)
	require.NoError(t, err)
	loaded, err := UnmarshalExecutionLog(doc)
	require.NoError(t, err)

	assert.Equal(t, log.State, loaded.State)
	assert.Equal(t, log.CurrentStationIndex, loaded.CurrentStationIndex)
	assert.Len(t, loaded.Results, 2)
	assert.Equal(t, "validate", loaded.FailedStation())
	require.NotNil(t, loaded.Context)
	assert.Equal(t, log.Context.ExecutionID, loaded.Context.ExecutionID)
}

func TestExecuteInternalRetryReinvokesSameStation(t *testing.T) {
	a := &stubStation{name: "build", results: []schema.StationResult{
		schema.InternalRetry("attempt 1"),
		schema.InternalRetry("attempt 2"),
		schema.Success("built"),
	}}
	exec, _, _ := newTestExecutor(t, a)

	log, err := exec.Execute(context.Background(), testWorkflow("build"), testContext(t))
	require.NoError(t, err)

	assert.Equal(t, StateCompleted, log.State)
	assert.Equal(t, 3, a.calls)
	assert.Len(t, log.Results, 1, "internal retries are never recorded as entries")
}

func TestExecuteInternalRetryExhaustion(t *testing.T) {
	a := &stubStation{name: "build", results: []schema.StationResult{schema.InternalRetry("spinning")}}
	exec, _, _ := newTestExecutor(t, a)

	log, err := exec.Execute(context.Background(), testWorkflow("build"), testContext(t))
	require.NoError(t, err)

	assert.Equal(t, StateFailed, log.State)
	assert.Equal(t, maxInternalRetries+1, a.calls)
	require.Len(t, log.Results, 1)
	assert.Equal(t, schema.ResultFailure, log.Results[0].Result.Status)
}

func TestExecuteStationErrorIsEngineFault(t *testing.T) {
	a := &stubStation{name: "boom", err: fmt.Errorf("disk on fire")}
	exec, _, fs := newTestExecutor(t, a)

	ctx := context.Background()
	log, err := exec.Execute(ctx, testWorkflow("boom"), testContext(t))
	require.Error(t, err)

	var cerr *schema.ConveyorError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, schema.ErrCodeExecution, cerr.Code)
	assert.Equal(t, "boom", cerr.Station)

	// The log still records what happened and is persisted.
	require.NotNil(t, log)
	assert.Equal(t, StateFailed, log.State)
	_, rerr := fs.Read(ctx, log.WorkflowID)
	assert.NoError(t, rerr)
}

func TestResumeRetriesOnlyFailedStation(t *testing.T) {
	a := &stubStation{name: "scaffold", results: []schema.StationResult{schema.Success("ok")}}
	b := &stubStation{name: "validate", results: []schema.StationResult{
		schema.Failure("missing required file"),
		schema.Success("fixed"),
	}}
	c := &stubStation{name: "commit", results: []schema.StationResult{schema.Success("ok")}}
	exec, _, _ := newTestExecutor(t, a, b, c)

	ctx := context.Background()
	log, err := exec.Execute(ctx, testWorkflow("scaffold", "validate", "commit"), testContext(t))
	require.NoError(t, err)
	require.Equal(t, StateFailed, log.State)
	require.True(t, log.CanResume())

	resumed, err := exec.Resume(ctx, log)
	require.NoError(t, err)

	assert.Equal(t, StateCompleted, resumed.State)
	assert.Len(t, resumed.Results, 3)
	assert.Equal(t, 1, a.calls, "stations before the failure are not re-run")
	assert.Equal(t, 2, b.calls)
	assert.Equal(t, 1, c.calls)
	assert.Equal(t, schema.ResultSuccess, resumed.Results[1].Result.Status)
}

func TestResumeAfterSkipContinuesWithNextStation(t *testing.T) {
	a := &stubStation{name: "scaffold", results: []schema.StationResult{schema.Success("ok")}}
	b := &stubStation{name: "validate", results: []schema.StationResult{schema.Failure("missing required file")}}
	c := &stubStation{name: "commit", results: []schema.StationResult{schema.Success("ok")}}
	exec, _, _ := newTestExecutor(t, a, b, c)

	ctx := context.Background()
	log, err := exec.Execute(ctx, testWorkflow("scaffold", "validate", "commit"), testContext(t))
	require.NoError(t, err)
	require.Equal(t, StateFailed, log.State)

	require.NoError(t, log.SkipFailedStation())
	require.False(t, log.CanResume(), "skip replaces the failure entry")

	resumed, err := exec.Resume(ctx, log)
	require.NoError(t, err)

	assert.Equal(t, StateCompleted, resumed.State)
	assert.Len(t, resumed.Results, 3)
	assert.Equal(t, 1, b.calls, "skipped station is not re-run")
	assert.Equal(t, 1, c.calls)
	assert.Equal(t, "skipped by operator", resumed.Results[1].Result.Message)
}

func TestResumeByID(t *testing.T) {
	a := &stubStation{name: "validate", results: []schema.StationResult{
		schema.Failure("bad manifest"),
		schema.Success("fixed"),
	}}
	exec, _, _ := newTestExecutor(t, a)

	ctx := context.Background()
	log, err := exec.Execute(ctx, testWorkflow("validate"), testContext(t))
	require.NoError(t, err)
	require.Equal(t, StateFailed, log.State)

	resumed, err := exec.ResumeByID(ctx, log.WorkflowID)
	require.NoError(t, err)
	assert.Equal(t, StateCompleted, resumed.State)
}

func TestResumeRejectsCompletedLog(t *testing.T) {
	a := &stubStation{name: "ok", results: []schema.StationResult{schema.Success("ok")}}
	exec, _, _ := newTestExecutor(t, a)

	ctx := context.Background()
	log, err := exec.Execute(ctx, testWorkflow("ok"), testContext(t))
	require.NoError(t, err)
	require.Equal(t, StateCompleted, log.State)

	_, err = exec.Resume(ctx, log)
	require.Error(t, err)
	var cerr *schema.ConveyorError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, schema.ErrCodeCannotResume, cerr.Code)
}

func TestResumeRejectsCorruptLog(t *testing.T) {
	exec, _, _ := newTestExecutor(t)

	// A hand-edited store document whose index points past the recorded
	// results must surface as an error, not a slice panic.
	log := failedLog(t, "a", "b", "c", "d")
	log.Append("a", schema.Failure("broken"))
	require.NoError(t, log.fail("broken"))
	log.CurrentStationIndex = 3

	_, err := exec.Resume(context.Background(), log)
	require.Error(t, err)
	var cerr *schema.ConveyorError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, schema.ErrCodeSerialization, cerr.Code)
	assert.Contains(t, cerr.Message, "malformed execution log")
}

func TestResumeByIDMissingLog(t *testing.T) {
	exec, _, _ := newTestExecutor(t)
	_, err := exec.ResumeByID(context.Background(), "does-not-exist")
	require.Error(t, err)
	var cerr *schema.ConveyorError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, schema.ErrCodeNotFound, cerr.Code)
}

func TestContextSnapshotTracksLastSuccess(t *testing.T) {
	writer := &funcStation{name: "writer", fn: func(_ context.Context, wctx *schema.WorkflowContext) (schema.StationResult, error) {
		if err := wctx.SetOutput("service_port", 8080); err != nil {
			return schema.StationResult{}, err
		}
		return schema.Success("wrote port").WithProducedKeys("service_port"), nil
	}}
	failer := &stubStation{name: "failer", results: []schema.StationResult{schema.Failure("later")}}
	exec, _, _ := newTestExecutor(t, failer)
	require.NoError(t, exec.registry.Register(writer))

	log, err := exec.Execute(context.Background(), testWorkflow("writer", "failer"), testContext(t))
	require.NoError(t, err)

	require.NotNil(t, log.Context)
	var port int
	require.True(t, log.Context.Get("service_port", &port), "snapshot carries the writer's output")
	assert.Equal(t, 8080, port)
}

// funcStation wraps a function as a Station.
type funcStation struct {
	station.Base
	name string
	fn   func(context.Context, *schema.WorkflowContext) (schema.StationResult, error)
}

func (s *funcStation) Name() string        { return s.name }
func (s *funcStation) Description() string { return "func " + s.name }
func (s *funcStation) Execute(ctx context.Context, wctx *schema.WorkflowContext) (schema.StationResult, error) {
	return s.fn(ctx, wctx)
}
