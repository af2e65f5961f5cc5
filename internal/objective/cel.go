// Package objective builds hyperopt objectives from configuration: a CEL
// expression evaluated in process, or an external command.
package objective

import (
	"context"
	"fmt"

	"github.com/google/cel-go/cel"

	"github.com/thalesfsp/hyperopt"
)

// CEL compiles expr into an objective. Every dimension of space is declared
// as a double variable named after the dimension, and the expression must
// evaluate to a double or an int, which becomes the loss. CEL has no
// implicit numeric conversion, so write float literals as 2.0, not 2.
//
// Usage example:
//
//	fn, err := objective.CEL("(x - 3.0) * (x - 3.0) + y", space)
func CEL(expr string, space hyperopt.Space) (hyperopt.ObjectiveFunc, error) {
	decls := make([]cel.EnvOption, 0, len(space))
	for _, dim := range space {
		decls = append(decls, cel.Variable(dim.Name, cel.DoubleType))
	}

	env, err := cel.NewEnv(decls...)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("CEL compile error in %q: %w", expr, issues.Err())
	}

	out := ast.OutputType()
	if !out.IsExactType(cel.DoubleType) && !out.IsExactType(cel.IntType) {
		return nil, fmt.Errorf("CEL expression %q must evaluate to double, got %s", expr, out)
	}

	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("CEL program creation failed for %q: %w", expr, err)
	}

	names := make([]string, 0, len(space))
	for _, dim := range space {
		names = append(names, dim.Name)
	}

	return func(ctx context.Context, params hyperopt.Params) (hyperopt.Result, error) {
		vars := make(map[string]any, len(names))
		for _, name := range names {
			v, ok := params[name]
			if !ok {
				return hyperopt.Result{}, fmt.Errorf("missing parameter %q", name)
			}

			vars[name] = v
		}

		val, _, err := prg.ContextEval(ctx, vars)
		if err != nil {
			return hyperopt.Result{}, fmt.Errorf("CEL evaluation error for %q: %w", expr, err)
		}

		switch v := val.Value().(type) {
		case float64:
			return hyperopt.Result{Loss: v}, nil
		case int64:
			return hyperopt.Result{Loss: float64(v)}, nil
		default:
			return hyperopt.Result{}, fmt.Errorf("CEL expression %q returned non-number: %T", expr, v)
		}
	}, nil
}
