package policy

import (
	"fmt"
	"reflect"
)

type Operator func(ctx RequestContext, args []any) (EvalResult, error)

var operators = make(map[string]Operator)

func init() {
	operators["And"] = opAnd
	operators["Or"] = opOr
	operators["Not"] = opNot
	operators["Holds"] = opHolds
}

func opAnd(ctx RequestContext, args []any) (EvalResult, error) {

	for i, arg := range args {
		evaluated, ok := arg.(bool)
		if !ok {
			err := fmt.Errorf("bad argument type for AND at index %d. Expected bool but got %s", i, reflect.TypeOf(arg))
			return EvalResult{
				Operator: "And",
				Error:    err.Error(),
			}, err
		}

		if !evaluated {
			return EvalResult{
				Operator: "And",
				Result:   false,
			}, nil
		}
	}

	return EvalResult{
		Operator: "And",
		Result:   true,
	}, nil
}

func opOr(ctx RequestContext, args []any) (EvalResult, error) {
	for i, arg := range args {
		evaluated, ok := arg.(bool)
		if !ok {
			err := fmt.Errorf("bad argument type for OR at index %d. Expected bool but got %s", i, reflect.TypeOf(arg))
			return EvalResult{
				Operator: "Or",
				Error:    err.Error(),
			}, err
		}

		if evaluated {
			return EvalResult{
				Operator: "Or",
				Result:   true,
			}, nil
		}
	}

	return EvalResult{
		Operator: "Or",
		Result:   false,
	}, nil
}

func opNot(ctx RequestContext, args []any) (EvalResult, error) {
	if len(args) != 1 {
		err := fmt.Errorf("bad argument length for NOT. Expected 1 but got %d", len(args))
		return EvalResult{
			Operator: "Not",
			Error:    err.Error(),
		}, err
	}

	evaluated, ok := args[0].(bool)
	if !ok {
		err := fmt.Errorf("bad argument type for NOT. Expected bool but got %s", reflect.TypeOf(args[0]))
		return EvalResult{
			Operator: "Not",
			Error:    err.Error(),
		}, err
	}

	return EvalResult{
		Operator: "Not",
		Result:   !evaluated,
	}, nil
}

func opHolds(ctx RequestContext, args []any) (EvalResult, error) {
	if len(args) != 1 {
		err := fmt.Errorf("bad argument length for HOLDS. Expected 1 but got %d", len(args))
		return EvalResult{
			Operator: "Holds",
			Error:    err.Error(),
		}, err
	}

	schemaID, ok := toSchemaID(args[0])
	if !ok {
		err := fmt.Errorf("bad argument type for HOLDS. Expected schema id but got %s", reflect.TypeOf(args[0]))
		return EvalResult{
			Operator: "Holds",
			Error:    err.Error(),
		}, err
	}

	held, known := ctx.Held[schemaID]
	if !known {
		err := fmt.Errorf("holding for schema %d was not resolved", schemaID)
		return EvalResult{
			Operator: "Holds",
			Error:    err.Error(),
		}, err
	}

	return EvalResult{
		Operator: "Holds",
		Result:   held,
	}, nil
}

// toSchemaID accepts the numeric shapes a Const can take after a JSON round trip.
func toSchemaID(v any) (uint64, bool) {
	switch n := v.(type) {
	case uint64:
		return n, true
	case int:
		if n < 0 {
			return 0, false
		}
		return uint64(n), true
	case int64:
		if n < 0 {
			return 0, false
		}
		return uint64(n), true
	case float64:
		if n < 0 || n != float64(uint64(n)) {
			return 0, false
		}
		return uint64(n), true
	default:
		return 0, false
	}
}
