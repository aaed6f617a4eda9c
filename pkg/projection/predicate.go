package projection

import (
	"fmt"

	"github.com/expr-lang/expr"

	"github.com/ormasoftchile/runlens/pkg/runstate"
)

// Predicate is a boolean test over one stored step result, used to decide
// which way a gate went.
type Predicate func(runstate.StepResult) bool

// CompilePredicate compiles a gate expression into a Predicate. Expressions
// see three identifiers: summary (string), status (string) and outputs
// (map), e.g. `summary contains "NOT ELIGIBLE"` or `outputs.seats == 0`.
// A runtime evaluation error counts as false rather than crashing a render.
func CompilePredicate(src string) (Predicate, error) {
	program, err := expr.Compile(src, expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("compile gate predicate: %w", err)
	}
	return func(r runstate.StepResult) bool {
		env := map[string]any{
			"summary": r.Summary,
			"status":  string(r.Status),
			"outputs": r.Outputs,
		}
		out, err := expr.Run(program, env)
		if err != nil {
			return false
		}
		b, ok := out.(bool)
		return ok && b
	}, nil
}
