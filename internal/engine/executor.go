package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rendis/conveyor/internal/logging"
	"github.com/rendis/conveyor/internal/station"
	"github.com/rendis/conveyor/internal/store"
	"github.com/rendis/conveyor/pkg/schema"
)

// maxInternalRetries caps how many times a single station invocation may
// return internal_retry before the executor records it as a failure.
const maxInternalRetries = 5

// Executor runs workflows station by station, persisting the execution log
// after every station so a crash never loses a completed result.
type Executor struct {
	registry *station.Registry
	store    store.LogStore
	logger   *slog.Logger
}

// NewExecutor creates an Executor.
func NewExecutor(registry *station.Registry, logStore store.LogStore, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{registry: registry, store: logStore, logger: logger}
}

// Execute runs the workflow against the given context and returns the final
// execution log. A station failure is a normal terminal outcome recorded in
// the log, not an error; the error return covers engine faults only
// (invalid workflow, unresolvable station, storage failure).
func (e *Executor) Execute(ctx context.Context, wf *schema.Workflow, wctx *schema.WorkflowContext) (*ExecutionLog, error) {
	if err := wf.Validate(); err != nil {
		return nil, err
	}
	// Resolve every station up front so a typo fails before any work runs.
	for _, name := range wf.Stations {
		if _, err := e.registry.Get(name); err != nil {
			return nil, err
		}
	}

	log := NewExecutionLog(wf, wctx)
	if err := log.transition(StateRunning); err != nil {
		return nil, err
	}

	ctx = logging.WithWorkflowID(ctx, log.WorkflowID)
	ctx = logging.WithExecutionID(ctx, wctx.ExecutionID)
	e.logger.InfoContext(ctx, "workflow started",
		slog.String("workflow", wf.Name),
		slog.Int("stations", len(wf.Stations)))

	return e.run(ctx, log, wctx)
}

// Resume re-runs a Failed log starting at the station that failed. Recorded
// results from earlier stations are untouched. The context is reconstructed
// from the log's stored snapshot.
func (e *Executor) Resume(ctx context.Context, log *ExecutionLog) (*ExecutionLog, error) {
	if err := log.validate(); err != nil {
		return nil, err
	}
	if !log.resumable() {
		return nil, schema.NewErrorf(schema.ErrCodeCannotResume,
			"log %s is not resumable: state %s with %d results", log.WorkflowID, log.State, len(log.Results))
	}
	if log.Context == nil {
		return nil, schema.NewErrorf(schema.ErrCodeCannotResume,
			"log %s has no context snapshot", log.WorkflowID)
	}
	for _, name := range log.Stations[log.CurrentStationIndex:] {
		if _, err := e.registry.Get(name); err != nil {
			return nil, err
		}
	}

	// Drop the failed station's recorded failure; the retry writes a fresh entry.
	log.Results = log.Results[:log.CurrentStationIndex]
	log.Error = ""
	log.CompletedAt = nil
	if err := log.transition(StateRunning); err != nil {
		return nil, err
	}

	wctx := log.Context.Snapshot()

	ctx = logging.WithWorkflowID(ctx, log.WorkflowID)
	ctx = logging.WithExecutionID(ctx, wctx.ExecutionID)
	e.logger.InfoContext(ctx, "workflow resumed",
		slog.String("workflow", log.WorkflowName),
		slog.String("station", log.Stations[log.CurrentStationIndex]))

	return e.run(ctx, log, wctx)
}

// ResumeByID loads a persisted log from the store and resumes it.
func (e *Executor) ResumeByID(ctx context.Context, id string) (*ExecutionLog, error) {
	doc, err := e.store.Read(ctx, id)
	if err != nil {
		return nil, err
	}
	log, err := UnmarshalExecutionLog(doc)
	if err != nil {
		return nil, err
	}
	return e.Resume(ctx, log)
}

// run drives the station loop from the log's current index to the end.
func (e *Executor) run(ctx context.Context, log *ExecutionLog, wctx *schema.WorkflowContext) (*ExecutionLog, error) {
	for log.CurrentStationIndex < len(log.Stations) {
		name := log.Stations[log.CurrentStationIndex]
		st, err := e.registry.Get(name)
		if err != nil {
			return nil, err
		}

		sctx := logging.WithStation(ctx, name)
		e.logger.InfoContext(sctx, "station started",
			slog.Int("index", log.CurrentStationIndex))

		result, err := e.invoke(sctx, st, wctx)
		if err != nil {
			// A station returning a Go error is an engine fault, but the log
			// still records what happened before propagating.
			result = schema.Failure(fmt.Sprintf("station error: %s", err.Error()))
			log.Append(name, result)
			if ferr := log.fail(result.Message); ferr != nil {
				return nil, ferr
			}
			if perr := e.persist(sctx, log); perr != nil {
				return nil, perr
			}
			return log, schema.NewErrorf(schema.ErrCodeExecution, "station %s: %s", name, err.Error()).
				WithStation(name).WithCause(err)
		}

		log.Append(name, result)

		switch result.Status {
		case schema.ResultSuccess:
			log.Context = wctx.Snapshot()
			log.CurrentStationIndex++
			if err := e.persist(sctx, log); err != nil {
				return nil, err
			}
			e.logger.InfoContext(sctx, "station completed",
				slog.Duration("took", result.CompletedAt.Sub(result.StartedAt)))

		case schema.ResultFailure:
			if err := log.fail(result.Message); err != nil {
				return nil, err
			}
			if err := e.persist(sctx, log); err != nil {
				return nil, err
			}
			e.logger.WarnContext(sctx, "station failed", slog.String("reason", result.Message))
			return log, nil

		case schema.ResultNeedsInput:
			// Escalation is modeled as a failure requiring external resolution.
			if err := log.fail(result.Prompt); err != nil {
				return nil, err
			}
			if err := e.persist(sctx, log); err != nil {
				return nil, err
			}
			e.logger.WarnContext(sctx, "station escalated", slog.String("prompt", result.Prompt))
			return log, nil

		default:
			return nil, schema.NewErrorf(schema.ErrCodeExecution,
				"station %s returned non-terminal status %q", name, result.Status).WithStation(name)
		}
	}

	if err := log.complete(); err != nil {
		return nil, err
	}
	if err := e.persist(ctx, log); err != nil {
		return nil, err
	}
	e.logger.InfoContext(ctx, "workflow completed",
		slog.String("workflow", log.WorkflowName),
		slog.Int("stations", len(log.Results)))
	return log, nil
}

// invoke runs a single station, re-invoking while it asks for an internal
// retry, up to maxInternalRetries.
func (e *Executor) invoke(ctx context.Context, st station.Station, wctx *schema.WorkflowContext) (schema.StationResult, error) {
	started := time.Now().UTC()
	for attempt := 0; ; attempt++ {
		result, err := st.Execute(ctx, wctx)
		if err != nil {
			return schema.StationResult{}, err
		}
		if result.StartedAt.IsZero() {
			result.StartedAt = started
		}
		if result.CompletedAt.IsZero() {
			result.CompletedAt = time.Now().UTC()
		}
		if result.IsTerminal() {
			return result, nil
		}
		if attempt >= maxInternalRetries {
			exhausted := schema.Failure(fmt.Sprintf(
				"station %s still retrying after %d attempts: %s", st.Name(), attempt+1, result.Message))
			exhausted.StartedAt = started
			return exhausted, nil
		}
		e.logger.DebugContext(ctx, "station internal retry",
			slog.Int("attempt", attempt+1),
			slog.String("note", result.Message))
	}
}

func (e *Executor) persist(ctx context.Context, log *ExecutionLog) error {
	doc, err := log.Marshal()
	if err != nil {
		return err
	}
	if err := e.store.Write(ctx, log.WorkflowID, doc); err != nil {
		return err
	}
	return nil
}
