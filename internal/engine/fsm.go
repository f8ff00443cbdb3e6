package engine

import (
	"github.com/rendis/conveyor/pkg/schema"
)

// ExecutionState is the overall lifecycle state of an execution log.
type ExecutionState string

const (
	StatePending   ExecutionState = "pending"
	StateRunning   ExecutionState = "running"
	StateCompleted ExecutionState = "completed"
	StateFailed    ExecutionState = "failed"
)

// ValidExecutionTransitions defines the allowed lifecycle transitions.
// Failed -> Running covers resume; the terminal-for-a-run states are
// otherwise dead ends.
var ValidExecutionTransitions = map[ExecutionState][]ExecutionState{
	StatePending:   {StateRunning},
	StateRunning:   {StateCompleted, StateFailed},
	StateFailed:    {StateRunning},
	StateCompleted: {},
}

func isValidExecutionTransition(from, to ExecutionState) bool {
	allowed, ok := ValidExecutionTransitions[from]
	if !ok {
		return false
	}
	for _, a := range allowed {
		if a == to {
			return true
		}
	}
	return false
}

// transition validates and applies a lifecycle transition on the log.
func (l *ExecutionLog) transition(to ExecutionState) error {
	if !isValidExecutionTransition(l.State, to) {
		return schema.NewErrorf(schema.ErrCodeInvalidTransition,
			"invalid execution transition: %s -> %s", l.State, to).
			WithDetails(map[string]any{"workflow_id": l.WorkflowID, "from": string(l.State), "to": string(to)})
	}
	l.State = to
	return nil
}
