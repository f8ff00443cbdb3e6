package healing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShouldEscalateOrdering(t *testing.T) {
	g := Guardrails{
		MaxAttemptsPerError:    1,
		MaxTotalIterations:     1,
		MaxHealingTime:         time.Hour,
		MaxConsecutiveFailures: 1,
	}

	s := NewSession()
	s.Iterations = 5
	s.ConsecutiveFailures = 5
	s.AttemptsByType[BuildError] = 5

	// All limits are exceeded; the iteration limit is reported because time
	// has not elapsed and iterations are checked next.
	reason, escalate := s.ShouldEscalate(g, BuildError)
	require.True(t, escalate)
	assert.Contains(t, reason, "iteration limit")

	// Time beats everything once elapsed.
	s.StartedAt = time.Now().Add(-2 * time.Hour)
	reason, escalate = s.ShouldEscalate(g, BuildError)
	require.True(t, escalate)
	assert.Contains(t, reason, "time limit")
}

func TestShouldEscalatePerErrorAttempts(t *testing.T) {
	g := DefaultGuardrails()
	s := NewSession()

	for i := 0; i < g.MaxAttemptsPerError; i++ {
		_, escalate := s.ShouldEscalate(g, BuildError)
		require.False(t, escalate, "attempt %d is within the limit", i+1)
		s.RecordAttempt(BuildError)
		s.RecordOutcome(true)
	}

	reason, escalate := s.ShouldEscalate(g, BuildError)
	require.True(t, escalate)
	assert.Contains(t, reason, "build_error")

	// A different classification still gets its attempts.
	_, escalate = s.ShouldEscalate(g, TestFailure)
	assert.False(t, escalate)
}

func TestShouldEscalateConsecutiveFailures(t *testing.T) {
	g := DefaultGuardrails()
	s := NewSession()

	s.RecordAttempt(Unknown)
	s.RecordOutcome(false)
	_, escalate := s.ShouldEscalate(g, Unknown)
	require.False(t, escalate)

	s.RecordAttempt(Unknown)
	s.RecordOutcome(false)
	reason, escalate := s.ShouldEscalate(g, Unknown)
	require.True(t, escalate)
	assert.Contains(t, reason, "consecutive")
}

func TestClassificationChangeResetsStreak(t *testing.T) {
	s := NewSession()
	s.RecordAttempt(BuildError)
	s.RecordOutcome(false)
	require.Equal(t, 1, s.ConsecutiveFailures)

	// Different error than last time: fresh chances.
	s.RecordAttempt(DependencyError)
	assert.Equal(t, 0, s.ConsecutiveFailures)
}

func TestSessionAuditTrail(t *testing.T) {
	s := NewSession()
	s.Act("cleaned build artifacts")
	s.Resolve("build_error: cleaned build artifacts")
	assert.Equal(t, []string{"cleaned build artifacts"}, s.ActionsTaken)
	assert.Equal(t, []string{"build_error: cleaned build artifacts"}, s.ResolvedErrors)
}
