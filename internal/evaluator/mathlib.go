package evaluator

import (
	"fmt"
	"math"
	"sort"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
	"github.com/zclconf/go-cty/cty/function/stdlib"
)

// mathNamespace is the variable through which math.pi and friends resolve.
const mathNamespace = "math"

// library is the complete set of functions a source may call. Nothing else
// is reachable from an expression.
var library = map[string]function.Function{
	"abs":     stdlib.AbsoluteFunc,
	"fabs":    stdlib.AbsoluteFunc,
	"ceil":    stdlib.CeilFunc,
	"floor":   stdlib.FloorFunc,
	"pow":     stdlib.PowFunc,
	"signum":  stdlib.SignumFunc,
	"min":     stdlib.MinFunc,
	"max":     stdlib.MaxFunc,
	"trunc":   unaryFunc(math.Trunc),
	"sqrt":    unaryFunc(math.Sqrt),
	"exp":     unaryFunc(math.Exp),
	"log10":   unaryFunc(math.Log10),
	"log2":    unaryFunc(math.Log2),
	"sin":     unaryFunc(math.Sin),
	"cos":     unaryFunc(math.Cos),
	"tan":     unaryFunc(math.Tan),
	"asin":    unaryFunc(math.Asin),
	"acos":    unaryFunc(math.Acos),
	"atan":    unaryFunc(math.Atan),
	"sinh":    unaryFunc(math.Sinh),
	"cosh":    unaryFunc(math.Cosh),
	"tanh":    unaryFunc(math.Tanh),
	"degrees": unaryFunc(func(v float64) float64 { return v * 180 / math.Pi }),
	"radians": unaryFunc(func(v float64) float64 { return v * math.Pi / 180 }),
	"atan2":   binaryFunc(math.Atan2),
	"hypot":   binaryFunc(math.Hypot),
	"log":     logFunc,
	"round":   roundFunc,
}

// constants are the values exposed under the math namespace.
var constants = map[string]cty.Value{
	"pi":  cty.NumberFloatVal(math.Pi),
	"e":   cty.NumberFloatVal(math.E),
	"tau": cty.NumberFloatVal(2 * math.Pi),
	"inf": cty.PositiveInfinity,
}

// globals returns a fresh variable table holding the names every source may
// reference besides its own arguments and locals.
func globals() map[string]cty.Value {
	return map[string]cty.Value{
		mathNamespace: cty.ObjectVal(constants),
		"pi":          constants["pi"],
	}
}

// isGlobal reports whether name resolves without an argument or a local.
func isGlobal(name string) bool {
	return name == mathNamespace || name == "pi"
}

func toFloat(v cty.Value) float64 {
	f, _ := v.AsBigFloat().Float64()
	return f
}

// finite converts a math result back into a cty number. A non-finite result
// for finite inputs is reported the way Python's math module does.
func finite(result float64, inputs ...float64) (cty.Value, error) {
	if math.IsNaN(result) {
		return cty.UnknownVal(cty.Number), fmt.Errorf("math domain error")
	}
	if math.IsInf(result, 0) {
		for _, in := range inputs {
			if math.IsInf(in, 0) {
				return cty.NumberFloatVal(result), nil
			}
		}
		return cty.UnknownVal(cty.Number), fmt.Errorf("math range error")
	}
	return cty.NumberFloatVal(result), nil
}

func unaryFunc(fn func(float64) float64) function.Function {
	return function.New(&function.Spec{
		Params: []function.Parameter{
			{Name: "num", Type: cty.Number},
		},
		Type: function.StaticReturnType(cty.Number),
		Impl: func(args []cty.Value, retType cty.Type) (cty.Value, error) {
			v := toFloat(args[0])
			return finite(fn(v), v)
		},
	})
}

func binaryFunc(fn func(float64, float64) float64) function.Function {
	return function.New(&function.Spec{
		Params: []function.Parameter{
			{Name: "a", Type: cty.Number},
			{Name: "b", Type: cty.Number},
		},
		Type: function.StaticReturnType(cty.Number),
		Impl: func(args []cty.Value, retType cty.Type) (cty.Value, error) {
			a, b := toFloat(args[0]), toFloat(args[1])
			return finite(fn(a, b), a, b)
		},
	})
}

// logFunc is log(x) for the natural logarithm and log(x, base) otherwise.
var logFunc = function.New(&function.Spec{
	Params: []function.Parameter{
		{Name: "num", Type: cty.Number},
	},
	VarParam: &function.Parameter{Name: "base", Type: cty.Number},
	Type:     function.StaticReturnType(cty.Number),
	Impl: func(args []cty.Value, retType cty.Type) (cty.Value, error) {
		v := toFloat(args[0])
		switch len(args) {
		case 1:
			return finite(math.Log(v), v)
		case 2:
			base := toFloat(args[1])
			return finite(math.Log(v)/math.Log(base), v, base)
		default:
			return cty.UnknownVal(cty.Number), fmt.Errorf("log takes at most 2 arguments, got %d", len(args))
		}
	},
})

// roundFunc rounds half to even, optionally to a number of decimal digits.
var roundFunc = function.New(&function.Spec{
	Params: []function.Parameter{
		{Name: "num", Type: cty.Number},
	},
	VarParam: &function.Parameter{Name: "digits", Type: cty.Number},
	Type:     function.StaticReturnType(cty.Number),
	Impl: func(args []cty.Value, retType cty.Type) (cty.Value, error) {
		v := toFloat(args[0])
		switch len(args) {
		case 1:
			return finite(math.RoundToEven(v), v)
		case 2:
			scale := math.Pow(10, math.Trunc(toFloat(args[1])))
			return finite(math.RoundToEven(v*scale)/scale, v)
		default:
			return cty.UnknownVal(cty.Number), fmt.Errorf("round takes at most 2 arguments, got %d", len(args))
		}
	},
})

// Library returns the sorted names of the callable functions.
func Library() []string {
	names := make([]string, 0, len(library))
	for name := range library {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
