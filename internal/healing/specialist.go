package healing

import (
	"context"

	"github.com/rendis/conveyor/pkg/schema"
)

// Role identifies the specialist responsible for a class of error.
type Role string

const (
	RoleImplementer Role = "implementer"
	RoleDevOps      Role = "devops"
	RoleTester      Role = "tester"
	RoleArchitect   Role = "architect"
	RoleFactory     Role = "factory"
)

// RouteFor maps an error classification to its specialist role.
func RouteFor(t ErrorType) Role {
	switch t {
	case BuildError:
		return RoleImplementer
	case DependencyError, RuntimeError, PortInUse:
		return RoleDevOps
	case TestFailure:
		return RoleTester
	case ConfigError:
		return RoleArchitect
	default:
		return RoleFactory
	}
}

// Outcome is the result category of a remediation attempt.
type Outcome string

const (
	// OutcomeFixed means a concrete change was applied; retry the command.
	OutcomeFixed Outcome = "fixed"
	// OutcomePartial means something was done but the specialist is not
	// confident; retry, but the failure streak keeps counting.
	OutcomePartial Outcome = "partial"
	// OutcomeNeedsHelp means the specialist wants operator input.
	OutcomeNeedsHelp Outcome = "needs_help"
	// OutcomeGaveUp means the specialist has nothing to try.
	OutcomeGaveUp Outcome = "gave_up"
)

// Remediation is what a specialist did (or could not do) about an error.
type Remediation struct {
	Outcome     Outcome
	Description string
	Question    string
}

// Fixed builds an applied remediation.
func Fixed(description string) Remediation {
	return Remediation{Outcome: OutcomeFixed, Description: description}
}

// Partial builds a best-effort remediation.
func Partial(description string) Remediation {
	return Remediation{Outcome: OutcomePartial, Description: description}
}

// NeedsHelp builds a remediation requesting operator input.
func NeedsHelp(question string) Remediation {
	return Remediation{Outcome: OutcomeNeedsHelp, Question: question}
}

// GaveUp builds an empty-handed remediation.
func GaveUp(description string) Remediation {
	return Remediation{Outcome: OutcomeGaveUp, Description: description}
}

// Specialist produces a remediation for one error classification.
// Hint carries operator-supplied guidance from a prior "help" escalation and
// is empty otherwise.
type Specialist interface {
	Role() Role
	Fix(ctx context.Context, cl Classification, wctx *schema.WorkflowContext, hint string) (Remediation, error)
}
