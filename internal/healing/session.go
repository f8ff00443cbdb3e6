package healing

import (
	"fmt"
	"time"
)

// Session tracks the bookkeeping of one healing run: counters the guardrails
// evaluate and the audit trail surfaced in the station result. A fresh
// Session is created per station invocation; nothing carries over.
type Session struct {
	Iterations          int
	AttemptsByType      map[ErrorType]int
	ConsecutiveFailures int
	StartedAt           time.Time

	ResolvedErrors []string
	ActionsTaken   []string

	// LastType is the previous iteration's classification; a change resets
	// the consecutive-failure counter.
	LastType ErrorType
}

// NewSession starts an empty session clocked from now.
func NewSession() *Session {
	return &Session{
		AttemptsByType: make(map[ErrorType]int),
		StartedAt:      time.Now(),
	}
}

// ShouldEscalate evaluates the guardrails for the given classification, in
// fixed order: elapsed time, total iterations, consecutive failures,
// per-classification attempts. It returns a human-readable reason when a
// limit is hit. Counters are checked before they are incremented for the
// next attempt, so the limits bound attempts actually made.
func (s *Session) ShouldEscalate(g Guardrails, errType ErrorType) (string, bool) {
	if elapsed := time.Since(s.StartedAt); elapsed >= g.MaxHealingTime {
		return fmt.Sprintf("healing time limit reached (%s elapsed, limit %s)",
			elapsed.Round(time.Second), g.MaxHealingTime), true
	}
	if s.Iterations >= g.MaxTotalIterations {
		return fmt.Sprintf("iteration limit reached (%d)", g.MaxTotalIterations), true
	}
	if s.ConsecutiveFailures >= g.MaxConsecutiveFailures {
		return fmt.Sprintf("%d consecutive failed fix attempts", s.ConsecutiveFailures), true
	}
	if s.AttemptsByType[errType] >= g.MaxAttemptsPerError {
		return fmt.Sprintf("attempt limit for %s reached (%d)", errType, g.MaxAttemptsPerError), true
	}
	return "", false
}

// RecordAttempt increments the counters for one remediation attempt at the
// given classification. A classification change resets the
// consecutive-failure counter: different error, fresh chances.
func (s *Session) RecordAttempt(errType ErrorType) {
	s.Iterations++
	s.AttemptsByType[errType]++
	if s.LastType != "" && s.LastType != errType {
		s.ConsecutiveFailures = 0
	}
	s.LastType = errType
}

// RecordOutcome updates the failure streak after a remediation attempt.
func (s *Session) RecordOutcome(applied bool) {
	if applied {
		s.ConsecutiveFailures = 0
	} else {
		s.ConsecutiveFailures++
	}
}

// Resolve logs an error the loop got past.
func (s *Session) Resolve(description string) {
	s.ResolvedErrors = append(s.ResolvedErrors, description)
}

// Act logs a remediation action for the audit trail.
func (s *Session) Act(description string) {
	s.ActionsTaken = append(s.ActionsTaken, description)
}
