package policy

import (
	"fmt"
)

// Compile turns a clause into an expression tree over the Holds operator.
//
//	AND {a, b} -> And(Holds(a), Holds(b))
//	OR  {a, b} -> Or(Holds(a), Holds(b))
//	NOT {a, b} -> Not(Or(Holds(a), Holds(b)))
func Compile(clause Clause) (Expr, error) {
	holds := make([]Expr, 0, len(clause.SchemaIDs))
	for _, id := range clause.SchemaIDs {
		holds = append(holds, Expr{
			Operator: "Holds",
			Args:     []Expr{{Const: id}},
		})
	}

	switch clause.Logic {
	case AND:
		return Expr{Operator: "And", Args: holds}, nil
	case OR:
		return Expr{Operator: "Or", Args: holds}, nil
	case NOT:
		return Expr{
			Operator: "Not",
			Args:     []Expr{{Operator: "Or", Args: holds}},
		}, nil
	default:
		return Expr{}, fmt.Errorf("unknown clause logic: %q", clause.Logic)
	}
}

// SchemaIDs lists the distinct schema ids referenced by clauses in first-seen order.
func SchemaIDs(clauses []Clause) []uint64 {
	seen := make(map[uint64]bool)
	ids := make([]uint64, 0)
	for _, c := range clauses {
		for _, id := range c.SchemaIDs {
			if seen[id] {
				continue
			}
			seen[id] = true
			ids = append(ids, id)
		}
	}
	return ids
}

func EvaluateClause(ctx RequestContext, clause Clause) (ClauseResult, error) {
	expr, err := Compile(clause)
	if err != nil {
		return ClauseResult{Clause: clause}, err
	}

	trace, err := Eval(ctx, expr)
	if err != nil {
		return ClauseResult{Clause: clause, Trace: trace}, err
	}

	passed, ok := trace.Result.(bool)
	if !ok {
		return ClauseResult{Clause: clause, Trace: trace}, fmt.Errorf("clause did not evaluate to bool")
	}

	return ClauseResult{
		Clause: clause,
		Passed: passed,
		Trace:  trace,
	}, nil
}

// Evaluate checks every clause in order. Clauses are AND-ed: the first
// failing clause is returned and evaluation stops there. A nil clause with a
// nil error means the candidate is eligible.
func Evaluate(ctx RequestContext, clauses []Clause) (*Clause, error) {
	for i := range clauses {
		result, err := EvaluateClause(ctx, clauses[i])
		if err != nil {
			return nil, err
		}
		if !result.Passed {
			return &clauses[i], nil
		}
	}
	return nil, nil
}

func Eval(ctx RequestContext, expr Expr) (EvalResult, error) {

	if expr.Const != nil {
		return EvalResult{
			Operator: "Const",
			Result:   expr.Const,
		}, nil
	}

	args := make([]any, 0, len(expr.Args))
	traces := make([]EvalResult, 0, len(expr.Args))
	for _, arg := range expr.Args {
		result, err := Eval(ctx, arg)
		if err != nil {
			return EvalResult{
				Operator: expr.Operator,
				Args:     append(traces, result),
				Error:    err.Error(),
			}, err
		}
		args = append(args, result.Result)
		traces = append(traces, result)
	}

	if operatorFunc, exists := operators[expr.Operator]; exists {
		result, err := operatorFunc(ctx, args)
		result.Args = traces
		return result, err
	}

	err := fmt.Errorf("unknown operator: %s", expr.Operator)
	return EvalResult{
		Operator: expr.Operator,
		Error:    err.Error(),
	}, err
}
