package healing

import "time"

// Guardrails bound how long and how hard the healing loop may try before it
// escalates to the operator.
type Guardrails struct {
	MaxAttemptsPerError    int           `json:"max_attempts_per_error"`
	MaxTotalIterations     int           `json:"max_total_iterations"`
	MaxHealingTime         time.Duration `json:"max_healing_time"`
	MaxConsecutiveFailures int           `json:"max_consecutive_failures"`
}

// DefaultGuardrails is the baseline limit set.
func DefaultGuardrails() Guardrails {
	return Guardrails{
		MaxAttemptsPerError:    3,
		MaxTotalIterations:     10,
		MaxHealingTime:         2 * time.Minute,
		MaxConsecutiveFailures: 2,
	}
}

// BuildGuardrails is looser: build errors are the most often fixable class,
// and compiles are slow.
func BuildGuardrails() Guardrails {
	return Guardrails{
		MaxAttemptsPerError:    5,
		MaxTotalIterations:     15,
		MaxHealingTime:         5 * time.Minute,
		MaxConsecutiveFailures: 3,
	}
}
