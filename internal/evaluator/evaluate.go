package evaluator

import (
	"context"
	"fmt"
	"math"
	"strconv"

	"github.com/hashicorp/hcl/v2"
	"github.com/vk/paramfn/internal/ctxlog"
	"github.com/vk/paramfn/internal/model"
	"github.com/zclconf/go-cty/cty"
)

// EvaluationError reports a fault at one input value.
type EvaluationError struct {
	X   float64
	Err error
}

func (e *EvaluationError) Error() string {
	return fmt.Sprintf("evaluation failed at x=%s: %v", strconv.FormatFloat(e.X, 'g', -1, 64), e.Err)
}

func (e *EvaluationError) Unwrap() error { return e.Err }

// Is makes every EvaluationError match model.ErrEvaluation.
func (e *EvaluationError) Is(target error) bool {
	return target == model.ErrEvaluation
}

// MergeArgs builds the argument map for one computation. Overrides win over
// stored defaults. A stored default is used only when it is set and the
// parameter type is not "any": a degraded parameter defers to the default
// written in the source.
func MergeArgs(params []model.Parameter, overrides map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(params)+len(overrides))
	for _, p := range params {
		if p.Default != nil && p.Type != model.TypeAny {
			out[p.Name] = *p.Default
		}
	}
	for k, v := range overrides {
		out[k] = v
	}
	return out
}

// Evaluate calls the entry point once with the independent variable set to x.
// The returned error is always an *EvaluationError.
func (f *Function) Evaluate(x float64, args map[string]float64) (result float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			result, err = 0, &EvaluationError{X: x, Err: fmt.Errorf("%v", r)}
		}
	}()

	vars, err := f.variables(x, args)
	if err != nil {
		return 0, &EvaluationError{X: x, Err: err}
	}

	ectx := &hcl.EvalContext{Variables: vars, Functions: library}
	var val cty.Value
	for _, st := range f.statements {
		var diags hcl.Diagnostics
		val, diags = st.expr.Value(ectx)
		if diags.HasErrors() {
			return 0, &EvaluationError{X: x, Err: diags}
		}
		if st.local != "" {
			vars[st.local] = val
		}
	}

	result, err = numberOf(val)
	if err != nil {
		return 0, &EvaluationError{X: x, Err: err}
	}
	if math.IsInf(result, 0) || math.IsNaN(result) {
		return 0, &EvaluationError{X: x, Err: fmt.Errorf("result is not finite")}
	}
	return result, nil
}

// variables binds the independent variable and every parameter.
func (f *Function) variables(x float64, args map[string]float64) (map[string]cty.Value, error) {
	independent := f.Independent()
	for name, v := range args {
		switch {
		case name == independent:
			return nil, fmt.Errorf("'%s' is the independent variable and cannot be passed as a parameter", name)
		case !f.HasArg(name):
			return nil, fmt.Errorf("unexpected parameter '%s'", name)
		case math.IsNaN(v):
			return nil, fmt.Errorf("parameter '%s' is NaN", name)
		}
	}
	if math.IsNaN(x) {
		return nil, fmt.Errorf("'%s' is NaN", independent)
	}

	vars := globals()
	vars[independent] = cty.NumberFloatVal(x)
	for _, name := range f.args[1:] {
		v, ok := args[name]
		if !ok {
			v, ok = f.defaults[name]
		}
		if !ok {
			return nil, fmt.Errorf("missing value for parameter '%s'", name)
		}
		vars[name] = cty.NumberFloatVal(v)
	}
	return vars, nil
}

// Compute evaluates every x in order. The first fault aborts the batch and no
// partial results are returned. Cancellation is checked between points.
func (f *Function) Compute(ctx context.Context, xs []float64, args map[string]float64) ([]float64, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Computing batch.", "points", len(xs), "args", len(args))

	out := make([]float64, 0, len(xs))
	for _, x := range xs {
		if err := ctx.Err(); err != nil {
			return nil, &EvaluationError{X: x, Err: err}
		}
		y, err := f.Evaluate(x, args)
		if err != nil {
			logger.Debug("Batch aborted.", "x", x, "error", err)
			return nil, err
		}
		out = append(out, y)
	}
	return out, nil
}
