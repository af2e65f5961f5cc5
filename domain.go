package hyperopt

import (
	"context"
	"fmt"
)

// Domain binds an objective to the search space it is defined over.
type Domain struct {
	objective ObjectiveFunc
	space     Space
}

// NewDomain returns a Domain for objective over space.
func NewDomain(objective ObjectiveFunc, space Space) *Domain {
	return &Domain{objective: objective, space: space}
}

// Space returns the bound search space.
func (d *Domain) Space() Space { return d.space }

// Evaluate runs the objective on params. A panic inside the objective is
// reported as an evaluation failure, not propagated.
func (d *Domain) Evaluate(ctx context.Context, params Params) (res Result, err error) {
	if d.objective == nil {
		return Result{}, ErrNilObjective
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("objective panicked: %v", r)
		}
	}()

	res, err = d.objective(ctx, params)
	if err != nil {
		return Result{}, err
	}

	if res.Status == "" {
		res.Status = "ok"
	}

	return res, nil
}
