package engine

import (
	"encoding/json"
	"time"

	"github.com/rendis/conveyor/pkg/schema"
)

// LogEntry records one station invocation in execution order.
type LogEntry struct {
	Station string               `json:"station"`
	Result  schema.StationResult `json:"result"`
}

// ExecutionLog is the persisted record of one workflow run. It copies the
// workflow's station list at creation so past runs stay replayable even if
// the workflow definition changes later.
//
// Invariant while Running: len(Results) == CurrentStationIndex. On Failed the
// index points at the station that failed, and Results holds its failure
// entry as the last element.
type ExecutionLog struct {
	WorkflowID          string                  `json:"workflow_id"`
	WorkflowDefID       string                  `json:"workflow_def_id"`
	WorkflowName        string                  `json:"workflow_name"`
	State               ExecutionState          `json:"state"`
	Stations            []string                `json:"stations"`
	CurrentStationIndex int                     `json:"current_station_index"`
	Results             []LogEntry              `json:"results"`
	Error               string                  `json:"error,omitempty"`
	StartedAt           time.Time               `json:"started_at"`
	CompletedAt         *time.Time              `json:"completed_at,omitempty"`
	Context             *schema.WorkflowContext `json:"context"`
}

// NewExecutionLog creates a Pending log for the given workflow and context.
// The log is keyed by the context's execution ID.
func NewExecutionLog(wf *schema.Workflow, wctx *schema.WorkflowContext) *ExecutionLog {
	return &ExecutionLog{
		WorkflowID:    wctx.ExecutionID,
		WorkflowDefID: wf.ID,
		WorkflowName:  wf.Name,
		State:         StatePending,
		Stations:      append([]string(nil), wf.Stations...),
		Results:       []LogEntry{},
		StartedAt:     time.Now().UTC(),
		Context:       wctx.Snapshot(),
	}
}

// Append records a station result. Appending is the only way Results grows.
func (l *ExecutionLog) Append(station string, result schema.StationResult) {
	l.Results = append(l.Results, LogEntry{Station: station, Result: result})
}

// CanResume reports whether the log is a valid resume target: state Failed,
// at least one recorded result, and the last result a failure or an
// unanswered escalation.
func (l *ExecutionLog) CanResume() bool {
	if l.State != StateFailed || len(l.Results) == 0 {
		return false
	}
	if l.CurrentStationIndex >= len(l.Stations) {
		return false
	}
	last := l.Results[len(l.Results)-1].Result.Status
	return last == schema.ResultFailure || last == schema.ResultNeedsInput
}

// resumable additionally accepts a log whose failure entry was replaced by an
// operator skip: state Failed with recorded results aligned to the next
// station to run.
func (l *ExecutionLog) resumable() bool {
	if l.CanResume() {
		return true
	}
	return l.State == StateFailed &&
		l.CurrentStationIndex < len(l.Stations) &&
		len(l.Results) == l.CurrentStationIndex
}

// FailedStation returns the name of the station the run failed at, or ""
// when the log is not Failed.
func (l *ExecutionLog) FailedStation() string {
	if l.State != StateFailed {
		return ""
	}
	if l.CurrentStationIndex < 0 || l.CurrentStationIndex >= len(l.Stations) {
		return ""
	}
	return l.Stations[l.CurrentStationIndex]
}

// SkipFailedStation replaces the failed station's recorded failure with an
// operator-skip entry and advances past it, leaving the log resumable at the
// next station. Used when an escalation is answered with "skip".
func (l *ExecutionLog) SkipFailedStation() error {
	if !l.CanResume() {
		return schema.NewErrorf(schema.ErrCodeCannotResume,
			"cannot skip: log %s is not in a resumable failed state", l.WorkflowID)
	}
	station := l.Stations[l.CurrentStationIndex]
	skipped := schema.Success("skipped by operator")
	skipped.StartedAt = l.Results[len(l.Results)-1].Result.StartedAt
	skipped.CompletedAt = time.Now().UTC()
	l.Results[len(l.Results)-1] = LogEntry{Station: station, Result: skipped}
	l.CurrentStationIndex++
	l.Error = ""

	if l.CurrentStationIndex >= len(l.Stations) {
		// The skipped station was the last one; the run is over.
		if err := l.transition(StateRunning); err != nil {
			return err
		}
		return l.complete()
	}
	return nil
}

// complete marks the run finished successfully.
func (l *ExecutionLog) complete() error {
	if err := l.transition(StateCompleted); err != nil {
		return err
	}
	now := time.Now().UTC()
	l.CompletedAt = &now
	l.Error = ""
	return nil
}

// fail marks the run failed with a human-readable reason.
func (l *ExecutionLog) fail(reason string) error {
	if err := l.transition(StateFailed); err != nil {
		return err
	}
	now := time.Now().UTC()
	l.CompletedAt = &now
	l.Error = reason
	return nil
}

// Marshal serializes the log as its persisted JSON document.
func (l *ExecutionLog) Marshal() ([]byte, error) {
	doc, err := json.MarshalIndent(l, "", "  ")
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeSerialization, "marshal execution log: %s", err.Error()).WithCause(err)
	}
	return doc, nil
}

// UnmarshalExecutionLog parses a persisted log document and rejects documents
// that violate the log's structural invariants.
func UnmarshalExecutionLog(doc []byte) (*ExecutionLog, error) {
	var l ExecutionLog
	if err := json.Unmarshal(doc, &l); err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeSerialization, "unmarshal execution log: %s", err.Error()).WithCause(err)
	}
	if err := l.validate(); err != nil {
		return nil, err
	}
	return &l, nil
}

// validate checks the structural invariants a persisted log must hold:
// the station index stays within the run and never points past the recorded
// results. A document breaking them is corrupted, not merely failed.
func (l *ExecutionLog) validate() error {
	if l.CurrentStationIndex < 0 {
		return schema.NewErrorf(schema.ErrCodeSerialization,
			"malformed execution log %s: negative station index %d", l.WorkflowID, l.CurrentStationIndex)
	}
	if l.CurrentStationIndex > len(l.Stations) {
		return schema.NewErrorf(schema.ErrCodeSerialization,
			"malformed execution log %s: station index %d exceeds %d stations",
			l.WorkflowID, l.CurrentStationIndex, len(l.Stations))
	}
	if l.CurrentStationIndex > len(l.Results) {
		return schema.NewErrorf(schema.ErrCodeSerialization,
			"malformed execution log %s: station index %d exceeds %d recorded results",
			l.WorkflowID, l.CurrentStationIndex, len(l.Results))
	}
	return nil
}
