package healing

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rendis/conveyor/pkg/schema"
)

// HintKey is the context metadata key carrying operator-supplied remediation
// text from a prior "help" escalation. The loop consumes it on its first
// routing pass.
const HintKey = "healing_hint"

// Loop drives the self-healing state machine around one external command:
// attempt, classify the failure, check guardrails, route to a specialist,
// re-attempt; escalate when a guardrail trips or a specialist asks for help.
type Loop struct {
	runner      CommandRunner
	classifier  *Classifier
	guardrails  Guardrails
	specialists map[Role]Specialist
	logger      *slog.Logger
}

// NewLoop assembles a Loop. Nil classifier, empty specialists, or nil logger
// fall back to the defaults.
func NewLoop(runner CommandRunner, classifier *Classifier, g Guardrails, specialists map[Role]Specialist, logger *slog.Logger) *Loop {
	if logger == nil {
		logger = slog.Default()
	}
	if classifier == nil {
		classifier = NewClassifier()
	}
	if len(specialists) == 0 {
		specialists = DefaultSpecialists(runner, logger)
	}
	return &Loop{
		runner:      runner,
		classifier:  classifier,
		guardrails:  g,
		specialists: specialists,
		logger:      logger,
	}
}

// Heal runs the command under the healing state machine and returns the
// station-level outcome: Success once an attempt passes, NeedsInput when the
// loop escalates. The error return covers engine faults only.
//
// Each call starts a fresh Session; a resume after an escalation therefore
// restarts the loop with cleared counters, which is what the "retry"
// escalation option means.
func (l *Loop) Heal(ctx context.Context, spec Spec, wctx *schema.WorkflowContext) (schema.StationResult, error) {
	session := NewSession()

	var hint string
	if wctx.GetMetadata(HintKey, &hint) && hint != "" {
		// Consume the hint so a later invocation does not replay it.
		if err := wctx.SetMetadata(HintKey, ""); err != nil {
			return schema.StationResult{}, err
		}
	}

	for {
		// Attempting.
		result, err := l.runner.Run(ctx, spec)
		if err != nil {
			return schema.StationResult{}, err
		}
		if result.OK() {
			return l.succeed(session), nil
		}

		// Classifying. Best-effort: unrecognized output lands on Unknown,
		// never on an error.
		cl := l.classifier.Classify(result)
		l.logger.InfoContext(ctx, "attempt failed",
			slog.String("classified", string(cl.Type)),
			slog.Int("exit_code", result.ExitCode),
			slog.Int("iteration", session.Iterations))

		// GuardrailCheck runs before the counters grow, so escalation always
		// wins over one more attempt.
		if reason, escalate := session.ShouldEscalate(l.guardrails, cl.Type); escalate {
			return l.escalate(session, cl, reason), nil
		}
		session.RecordAttempt(cl.Type)

		// Routing.
		specialist, ok := l.specialists[RouteFor(cl.Type)]
		if !ok {
			specialist = l.specialists[RoleFactory]
		}
		if specialist == nil {
			return l.escalate(session, cl, "no specialist available"), nil
		}

		remediation, err := specialist.Fix(ctx, cl, wctx, hint)
		if err != nil {
			return schema.StationResult{}, err
		}
		hint = ""

		switch remediation.Outcome {
		case OutcomeFixed:
			session.Act(remediation.Description)
			session.Resolve(fmt.Sprintf("%s: %s", cl.Type, remediation.Description))
			session.RecordOutcome(true)
		case OutcomePartial:
			session.Act(remediation.Description)
			session.RecordOutcome(false)
		case OutcomeNeedsHelp:
			return l.escalate(session, cl, remediation.Question), nil
		default:
			return l.escalate(session, cl, remediation.Description), nil
		}
	}
}

func (l *Loop) succeed(session *Session) schema.StationResult {
	message := "command succeeded"
	if session.Iterations > 0 {
		message = fmt.Sprintf("command succeeded after %d healing iterations", session.Iterations)
	}
	result := schema.Success(message)
	result.ResolvedErrors = session.ResolvedErrors
	result.ActionsTaken = session.ActionsTaken
	result.StartedAt = session.StartedAt.UTC()
	return result
}

func (l *Loop) escalate(session *Session, cl Classification, reason string) schema.StationResult {
	prompt := fmt.Sprintf("Unresolved %s after %d healing iterations: %s",
		cl.Type, session.Iterations, reason)
	if cl.Message != "" {
		prompt += "\nLast output:\n" + cl.Message
	}
	result := schema.NeedsInput(prompt)
	result.ResolvedErrors = session.ResolvedErrors
	result.ActionsTaken = session.ActionsTaken
	result.StartedAt = session.StartedAt.UTC()
	return result
}
