package station

import (
	"context"
	"fmt"

	"github.com/rendis/conveyor/internal/expressions"
	"github.com/rendis/conveyor/pkg/schema"
)

// Conditional wraps a station with a CEL run condition evaluated against the
// workflow context. When the condition is false the wrapped station does not
// run and the result is a success marked as skipped, so the workflow advances.
type Conditional struct {
	inner     Station
	condition string
	cel       *expressions.CELEngine
}

// When wraps a station with a CEL run condition, e.g.
// `stack == "java-springboot" && iac_enabled`.
func When(inner Station, condition string, cel *expressions.CELEngine) *Conditional {
	return &Conditional{inner: inner, condition: condition, cel: cel}
}

func (c *Conditional) Name() string           { return c.inner.Name() }
func (c *Conditional) Description() string    { return c.inner.Description() }
func (c *Conditional) Input() Input           { return c.inner.Input() }
func (c *Conditional) Output() Output         { return c.inner.Output() }
func (c *Conditional) Dependencies() []string { return c.inner.Dependencies() }

func (c *Conditional) Execute(ctx context.Context, wctx *schema.WorkflowContext) (schema.StationResult, error) {
	ok, err := c.cel.EvalBool(c.condition, wctx.AsMap())
	if err != nil {
		// A broken condition is an authoring fault, not a station failure.
		return schema.StationResult{}, err
	}
	if !ok {
		return schema.Success(fmt.Sprintf("condition %q not met; skipped", c.condition)), nil
	}
	return c.inner.Execute(ctx, wctx)
}
