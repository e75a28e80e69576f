package evaluator

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/paramfn/internal/model"
)

func floatPtr(v float64) *float64 { return &v }

func mustBind(t *testing.T, source string) *Function {
	t.Helper()
	fn, err := Bind(source)
	require.NoError(t, err)
	return fn
}

func TestCompute_LinearExample(t *testing.T) {
	// --- Arrange ---
	fn := mustBind(t, "def f(x, a=1, b=0):\n    return a*x + b")

	// --- Act ---
	got, err := fn.Compute(context.Background(), []float64{0, 1, 2}, map[string]float64{"a": 2, "b": 1})

	// --- Assert ---
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 3, 5}, got)
}

func TestCompute_HeaderDefaults(t *testing.T) {
	fn := mustBind(t, "def f(x, a=1, b=0):\n    return a*x + b")

	got, err := fn.Compute(context.Background(), []float64{0, 1, 2}, nil)

	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1, 2}, got)
	assert.Equal(t, map[string]float64{"a": 1, "b": 0}, fn.Defaults())
	assert.Equal(t, []string{"x", "a", "b"}, fn.Args())
	assert.Equal(t, "x", fn.Independent())
}

func TestBind_Accepts(t *testing.T) {
	testCases := []struct {
		name   string
		source string
		x      float64
		args   map[string]float64
		want   float64
	}{
		{
			name:   "single line",
			source: "def f(x): return 2*x",
			x:      3,
			want:   6,
		},
		{
			name:   "locals and comments",
			source: "import math\n\n# doubled then shifted\ndef f(x, k=2):\n    # scale\n    y = k*x\n\n    z = y + 1\n    return z\n",
			x:      4,
			want:   9,
		},
		{
			name:   "semicolons",
			source: "def f(t): y = t*t; return y - 1",
			x:      3,
			want:   8,
		},
		{
			name:   "bare final expression",
			source: "def f(x, c):\n    c - x",
			x:      1,
			args:   map[string]float64{"c": 10},
			want:   9,
		},
		{
			name:   "math namespace",
			source: "def f(x):\n    return math.floor(math.pi * x)",
			x:      2,
			want:   6,
		},
		{
			name:   "bare pi",
			source: "def f(x): return cos(pi * x)",
			x:      1,
			want:   -1,
		},
		{
			name:   "continued parentheses",
			source: "def f(x, a=3):\n    return max(\n        a,\n        x\n    )",
			x:      7,
			want:   7,
		},
		{
			name:   "conditional",
			source: "def f(x): return x < 0 ? -x : x",
			x:      -5,
			want:   5,
		},
		{
			name:   "default from the library",
			source: "def f(x, a=math.sqrt(16)): return a + x",
			x:      1,
			want:   5,
		},
		{
			name:   "two argument log",
			source: "def f(x): return log(x, 2)",
			x:      8,
			want:   3,
		},
		{
			name:   "round half to even",
			source: "def f(x): return round(x)",
			x:      2.5,
			want:   2,
		},
		{
			name:   "any keyword",
			source: "fn f(x, a=2): a*x",
			x:      4,
			want:   8,
		},
		{
			name:   "semicolon in trailing comment",
			source: "def f(x, a=2, b=1):\n    return a*x + b  # linear; simple",
			x:      3,
			want:   7,
		},
		{
			name:   "parentheses in trailing comments",
			source: "def f(x):\n    y = x  # (see below\n    y = y + 1  # done)\n    return y",
			x:      2,
			want:   3,
		},
		{
			name:   "commented out header",
			source: "# def f(x): return 0\ndef f(x): return x + 1",
			x:      1,
			want:   2,
		},
		{
			name:   "docstring",
			source: "def f(x, a=2):\n    \"\"\"Scale x.\n\n    # not a comment; (\n    \"\"\"\n    return a*x",
			x:      3,
			want:   6,
		},
		{
			name:   "single line docstring",
			source: "def f(x):\n    'doubles x'\n    return 2*x",
			x:      3,
			want:   6,
		},
		{
			name:   "power",
			source: "def f(x, a=2):\n    return a*x**2",
			x:      3,
			want:   18,
		},
		{
			name:   "power is right associative and binds before negation",
			source: "def f(x): return -x**2 + 2**3**2",
			x:      3,
			want:   503,
		},
		{
			name:   "power of groups and calls",
			source: "def f(x): return (x + 1)**2 + math.sqrt(x) ** -1",
			x:      4,
			want:   25.5,
		},
		{
			name:   "default with nested commas",
			source: "def f(x, a=max(1, 2)): return a*x",
			x:      3,
			want:   6,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			fn := mustBind(t, tc.source)

			got, err := fn.Evaluate(tc.x, tc.args)

			require.NoError(t, err)
			assert.InDelta(t, tc.want, got, 1e-9)
		})
	}
}

func TestBind_Rejects(t *testing.T) {
	testCases := []struct {
		name    string
		source  string
		wantMsg string
	}{
		{name: "empty source", source: "", wantMsg: "must define a function named 'f'"},
		{name: "wrong entry point", source: "def g(x): return x", wantMsg: "must define a function named 'f'"},
		{name: "no arguments", source: "def f(): return 1", wantMsg: "must accept the independent variable"},
		{name: "duplicate argument", source: "def f(x, x): return x", wantMsg: "declared more than once"},
		{name: "non identifier argument", source: "def f(1x): return 1", wantMsg: "not an identifier"},
		{name: "reserved argument", source: "def f(x, null): return x", wantMsg: "reserved word"},
		{name: "unknown name", source: "def f(x):\n    return y", wantMsg: "Unknown name"},
		{name: "unknown function", source: "def f(x): return open(x)", wantMsg: "Call to unknown function"},
		{name: "local used before assignment", source: "def f(x):\n    y = z\n    z = 1\n    return y", wantMsg: "Unknown name"},
		{name: "parse error", source: "def f(x): return x +", wantMsg: "line 1"},
		{name: "missing return", source: "def f(x):\n    y = x", wantMsg: "does not return a value"},
		{name: "empty return", source: "def f(x):\n    return", wantMsg: "return needs a value"},
		{name: "statement after return", source: "def f(x):\n    return x\n    y = 1", wantMsg: "statement after return"},
		{name: "nested definition", source: "def f(x):\n    def g(y): return y\n    return x", wantMsg: "only one function definition"},
		{name: "code before header", source: "print(1)\ndef f(x): return x", wantMsg: "unexpected text before the entry point"},
		{name: "default is not a number", source: "def f(x, a=foo): return a", wantMsg: "default for argument 'a'"},
		{name: "default references an argument", source: "def f(x, a=x): return a", wantMsg: "Unknown name"},
		{name: "default is a string", source: `def f(x, a="1"): return a`, wantMsg: "must return a number"},
		{name: "dangling power", source: "def f(x): return x **", wantMsg: "'**' needs an operand on both sides"},
		{name: "unterminated docstring", source: "def f(x):\n    \"\"\"never closed\n    return x", wantMsg: "line 2"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// --- Act ---
			fn, err := Bind(tc.source)

			// --- Assert ---
			require.Error(t, err)
			assert.Nil(t, fn)
			assert.ErrorIs(t, err, model.ErrInvalidDefinition)
			assert.Contains(t, err.Error(), tc.wantMsg)
		})
	}
}

func TestBind_ReportsLineNumbers(t *testing.T) {
	_, err := Bind("def f(x):\n    a = x\n\n    return b")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 4")
	assert.Contains(t, err.Error(), "'b'")
}

func TestEvaluate_Faults(t *testing.T) {
	testCases := []struct {
		name    string
		source  string
		x       float64
		args    map[string]float64
		wantMsg string
	}{
		{name: "unexpected parameter", source: "def f(x, a=1): return a*x", x: 1, args: map[string]float64{"c": 1}, wantMsg: "unexpected parameter 'c'"},
		{name: "independent variable as parameter", source: "def f(x, a=1): return a*x", x: 1, args: map[string]float64{"x": 1}, wantMsg: "independent variable"},
		{name: "missing parameter", source: "def f(x, a): return a*x", x: 1, wantMsg: "missing value for parameter 'a'"},
		{name: "nan input", source: "def f(x): return x", x: math.NaN(), wantMsg: "NaN"},
		{name: "nan parameter", source: "def f(x, a=1): return x", x: 1, args: map[string]float64{"a": math.NaN()}, wantMsg: "parameter 'a' is NaN"},
		{name: "boolean result", source: "def f(x): return x > 0", x: 1, wantMsg: "must return a number, got bool"},
		{name: "string result", source: `def f(x): return "x"`, x: 1, wantMsg: "must return a number, got string"},
		{name: "domain error", source: "def f(x): return sqrt(x)", x: -1, wantMsg: "math domain error"},
		{name: "range error", source: "def f(x): return log(x)", x: 0, wantMsg: "math range error"},
		{name: "non finite result", source: "def f(x): return math.inf", x: 0, wantMsg: "not finite"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			fn := mustBind(t, tc.source)

			_, err := fn.Evaluate(tc.x, tc.args)

			require.Error(t, err)
			assert.ErrorIs(t, err, model.ErrEvaluation)
			assert.Contains(t, err.Error(), tc.wantMsg)

			var evalErr *EvaluationError
			require.True(t, errors.As(err, &evalErr))
		})
	}
}

func TestCompute_FailFast(t *testing.T) {
	// --- Arrange ---
	fn := mustBind(t, "def f(x): return sqrt(x)")

	// --- Act ---
	got, err := fn.Compute(context.Background(), []float64{4, -1, 9}, nil)

	// --- Assert ---
	require.Error(t, err)
	assert.Nil(t, got)

	var evalErr *EvaluationError
	require.True(t, errors.As(err, &evalErr))
	assert.Equal(t, -1.0, evalErr.X)
	assert.Contains(t, err.Error(), "x=-1")
}

func TestCompute_EmptyInput(t *testing.T) {
	fn := mustBind(t, "def f(x): return x")

	got, err := fn.Compute(context.Background(), nil, nil)

	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Empty(t, got)
}

func TestCompute_Cancelled(t *testing.T) {
	fn := mustBind(t, "def f(x): return x")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	got, err := fn.Compute(ctx, []float64{1, 2}, nil)

	assert.Nil(t, got)
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, err, model.ErrEvaluation)
}

func TestMergeArgs(t *testing.T) {
	params := []model.Parameter{
		{Name: "a", Type: model.TypeFloat, Default: floatPtr(1)},
		{Name: "b", Type: model.TypeFloat},
		{Name: "c", Type: model.TypeAny, Default: floatPtr(0)},
	}

	testCases := []struct {
		name      string
		overrides map[string]float64
		want      map[string]float64
	}{
		{name: "defaults only", want: map[string]float64{"a": 1}},
		{name: "override wins", overrides: map[string]float64{"a": 5}, want: map[string]float64{"a": 5}},
		{name: "fills a parameter without default", overrides: map[string]float64{"b": 2}, want: map[string]float64{"a": 1, "b": 2}},
		{name: "any parameter takes overrides", overrides: map[string]float64{"c": 3}, want: map[string]float64{"a": 1, "c": 3}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := MergeArgs(params, tc.overrides)
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("merged args mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestMergeArgs_DegradedParameterUsesSourceDefault(t *testing.T) {
	// The extractor records a=math.pi as type "any" with default 0.
	fn := mustBind(t, "def f(x, a=math.pi): return a*x")
	params := []model.Parameter{{Name: "a", Type: model.TypeAny, Default: floatPtr(0)}}

	got, err := fn.Evaluate(1, MergeArgs(params, nil))

	require.NoError(t, err)
	assert.InDelta(t, math.Pi, got, 1e-12)
}

func TestFunction_Calls(t *testing.T) {
	fn := mustBind(t, "def f(x):\n    y = sin(x) + math.cos(x)\n    return sin(y)")

	assert.Equal(t, []string{"cos", "sin"}, fn.Calls())
}

func TestLibrary_IsSorted(t *testing.T) {
	names := Library()

	require.NotEmpty(t, names)
	assert.IsNonDecreasing(t, names)
	assert.Contains(t, names, "sqrt")
	assert.NotContains(t, names, "file")
}
