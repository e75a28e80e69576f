// Package evaluator compiles function source text into a bound, callable
// numeric function and evaluates it over batches of inputs.
//
// A source is a header `def f(x, a=1, b=0):` followed by a body of statements.
// Each statement is either a local binding `name = <expr>` or the final
// `return <expr>`. Expressions use HCL native syntax, and the only callable
// functions are the math library in mathlib.go. There are no loops, no
// recursion and no I/O, so every evaluation terminates.
package evaluator

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/vk/paramfn/internal/model"
	"github.com/vk/paramfn/internal/signature"
	"github.com/zclconf/go-cty/cty"
)

// EntryPoint is the name the source must define.
const EntryPoint = "f"

var (
	identPattern      = regexp.MustCompile(`^[A-Za-z_]\w*$`)
	assignPattern     = regexp.MustCompile(`^([A-Za-z_]\w*)\s*=([^=].*)$`)
	returnPattern     = regexp.MustCompile(`^return\b\s*(.*)$`)
	definitionPattern = regexp.MustCompile(`^[A-Za-z_]\w*\s+[A-Za-z_]\w*\s*\(`)
	importPattern     = regexp.MustCompile(`^(import\s+\S|from\s+\S+\s+import\s)`)

	// mathCallPattern lets math.sin(x) stand for sin(x).
	mathCallPattern = regexp.MustCompile(`\bmath\s*\.\s*([A-Za-z_]\w*)\s*\(`)
)

// reserved names cannot be used as arguments or locals because HCL reads them
// as literals.
var reserved = map[string]struct{}{"true": {}, "false": {}, "null": {}}

// statement is one compiled line of the body.
type statement struct {
	local string // empty for the return statement
	expr  hclsyntax.Expression
}

// Function is a bound entry point, ready to be evaluated.
type Function struct {
	args       []string
	defaults   map[string]float64
	statements []statement
}

// Args returns the entry-point arguments in declaration order. The first is
// the independent variable.
func (f *Function) Args() []string {
	return append([]string(nil), f.args...)
}

// Independent returns the name of the independent variable.
func (f *Function) Independent() string {
	return f.args[0]
}

// HasArg reports whether name is an argument of the entry point.
func (f *Function) HasArg(name string) bool {
	for _, a := range f.args {
		if a == name {
			return true
		}
	}
	return false
}

// Defaults returns a copy of the defaults declared in the header.
func (f *Function) Defaults() map[string]float64 {
	out := make(map[string]float64, len(f.defaults))
	for k, v := range f.defaults {
		out[k] = v
	}
	return out
}

// Calls returns the sorted names of the library functions the body uses.
func (f *Function) Calls() []string {
	seen := make(map[string]struct{})
	for _, st := range f.statements {
		for _, name := range calledFunctions(st.expr) {
			seen[name] = struct{}{}
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Bind compiles source into a Function. Every structural problem, including
// a missing entry point, is reported as model.ErrInvalidDefinition.
func Bind(source string) (*Function, error) {
	header, ok := signature.ParseHeader(source)
	if !ok {
		return nil, invalid("source must define a function named '%s'", EntryPoint)
	}

	if err := checkPreamble(header.Preamble(source)); err != nil {
		return nil, err
	}

	fn := &Function{defaults: make(map[string]float64)}
	if err := fn.bindArgs(header); err != nil {
		return nil, err
	}

	line := 1 + strings.Count(source[:header.End], "\n")
	if err := fn.compileBody(header.Body(source), line); err != nil {
		return nil, err
	}
	return fn, nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", model.ErrInvalidDefinition, fmt.Sprintf(format, args...))
}

func invalidDiags(what string, diags hcl.Diagnostics) error {
	return fmt.Errorf("%w: %s: %w", model.ErrInvalidDefinition, what, diags)
}

// checkPreamble accepts only blank lines, comments and import lines before
// the header.
func checkPreamble(preamble string) error {
	for i, line := range strings.Split(preamble, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") || importPattern.MatchString(line) {
			continue
		}
		return invalid("line %d: unexpected text before the entry point: %q", i+1, line)
	}
	return nil
}

func (f *Function) bindArgs(header *signature.Header) error {
	if len(header.Args) == 0 {
		return invalid("entry point '%s' must accept the independent variable", EntryPoint)
	}

	seen := make(map[string]struct{}, len(header.Args))
	for _, arg := range header.Args {
		if !identPattern.MatchString(arg.Name) {
			return invalid("argument %q is not an identifier", arg.Name)
		}
		if _, bad := reserved[arg.Name]; bad {
			return invalid("argument '%s' is a reserved word", arg.Name)
		}
		if _, dup := seen[arg.Name]; dup {
			return invalid("argument '%s' is declared more than once", arg.Name)
		}
		seen[arg.Name] = struct{}{}
		f.args = append(f.args, arg.Name)

		if !arg.HasDefault {
			continue
		}
		v, err := constantValue(arg.Default)
		if err != nil {
			return fmt.Errorf("default for argument '%s': %w", arg.Name, err)
		}
		f.defaults[arg.Name] = v
	}
	return nil
}

// constantValue evaluates a header default. Defaults may use the math library
// and constants but not other arguments.
func constantValue(text string) (float64, error) {
	expr, diags := parse(text, "default", hcl.InitialPos)
	if diags.HasErrors() {
		return 0, invalidDiags("invalid default", diags)
	}
	if diags := checkScope(expr, isGlobal); diags.HasErrors() {
		return 0, invalidDiags("invalid default", diags)
	}

	val, diags := expr.Value(&hcl.EvalContext{Variables: globals(), Functions: library})
	if diags.HasErrors() {
		return 0, invalidDiags("invalid default", diags)
	}
	v, err := numberOf(val)
	if err != nil {
		return 0, invalid("invalid default: %v", err)
	}
	return v, nil
}

func parse(text, filename string, pos hcl.Pos) (hclsyntax.Expression, hcl.Diagnostics) {
	text = mathCallPattern.ReplaceAllString(text, "${1}(")
	text, err := rewritePower(text)
	if err != nil {
		return nil, hcl.Diagnostics{{
			Severity: hcl.DiagError,
			Summary:  "Invalid power expression",
			Detail:   err.Error(),
			Subject:  &hcl.Range{Filename: filename, Start: pos, End: pos},
		}}
	}
	return hclsyntax.ParseExpression([]byte(text), filename, pos)
}

// compileBody splits the body into statements, parses each one and checks
// that every name it uses is in scope by the time it runs.
func (f *Function) compileBody(body string, firstLine int) error {
	scope := make(map[string]struct{}, len(f.args))
	for _, a := range f.args {
		scope[a] = struct{}{}
	}
	inScope := func(name string) bool {
		_, ok := scope[name]
		return ok || isGlobal(name)
	}

	returned := false
	for _, ln := range splitStatements(skipDocstring(body), firstLine) {
		if returned {
			return invalid("line %d: statement after return: %q", ln.line, ln.text)
		}
		if definitionPattern.MatchString(ln.text) {
			return invalid("line %d: only one function definition is supported: %q", ln.line, ln.text)
		}

		var st statement
		exprText := ln.text
		if m := returnPattern.FindStringSubmatch(ln.text); m != nil {
			exprText = strings.TrimSpace(m[1])
			if exprText == "" {
				return invalid("line %d: return needs a value", ln.line)
			}
			returned = true
		} else if m := assignPattern.FindStringSubmatch(ln.text); m != nil {
			st.local = m[1]
			exprText = strings.TrimSpace(m[2])
			if _, bad := reserved[st.local]; bad {
				return invalid("line %d: '%s' is a reserved word", ln.line, st.local)
			}
		} else {
			// A bare expression is only meaningful as the result.
			returned = true
		}

		expr, diags := parse(exprText, EntryPoint, hcl.Pos{Line: ln.line, Column: 1})
		if diags.HasErrors() {
			return invalidDiags(fmt.Sprintf("line %d", ln.line), diags)
		}
		if diags := checkScope(expr, inScope); diags.HasErrors() {
			return invalidDiags(fmt.Sprintf("line %d", ln.line), diags)
		}

		st.expr = expr
		f.statements = append(f.statements, st)
		if st.local != "" {
			scope[st.local] = struct{}{}
		}
	}

	if !returned {
		return invalid("entry point '%s' does not return a value", EntryPoint)
	}
	return nil
}

type sourceLine struct {
	line int
	text string
}

// splitStatements breaks the body on newlines and ';', dropping blank lines
// and '#' comments. A line with unbalanced parentheses continues on the next
// one.
func splitStatements(body string, firstLine int) []sourceLine {
	var out []sourceLine
	var pending strings.Builder
	pendingLine, depth := 0, 0

	for i, raw := range strings.Split(body, "\n") {
		for _, part := range strings.Split(signature.StripComment(raw), ";") {
			text := strings.TrimSpace(part)
			if text == "" {
				continue
			}
			if depth == 0 {
				pendingLine = firstLine + i
			} else {
				pending.WriteByte(' ')
			}
			pending.WriteString(text)
			depth += strings.Count(text, "(") - strings.Count(text, ")")
			if depth > 0 {
				continue
			}
			out = append(out, sourceLine{line: pendingLine, text: pending.String()})
			pending.Reset()
			depth = 0
		}
	}
	if pending.Len() > 0 {
		out = append(out, sourceLine{line: pendingLine, text: pending.String()})
	}
	return out
}

// skipDocstring blanks out a string literal that opens the body, keeping the
// line count intact. Anything else is returned unchanged.
func skipDocstring(body string) string {
	for start := 0; start < len(body); {
		end := strings.IndexByte(body[start:], '\n')
		if end < 0 {
			end = len(body)
		} else {
			end += start
		}
		line := body[start:end]
		text := strings.TrimSpace(line)
		if text == "" || strings.HasPrefix(text, "#") {
			start = end + 1
			continue
		}

		open := start + strings.Index(line, text)
		var stop int
		switch {
		case strings.HasPrefix(text, `"""`), strings.HasPrefix(text, "'''"):
			closing := strings.Index(body[open+3:], text[:3])
			if closing < 0 {
				return body
			}
			stop = open + 3 + closing + 3
		case text[0] == '"', text[0] == '\'':
			closing := strings.IndexByte(body[open+1:end], text[0])
			if closing < 0 {
				return body
			}
			stop = open + 1 + closing + 1
		default:
			return body
		}
		return body[:open] + strings.Map(func(r rune) rune {
			if r == '\n' {
				return r
			}
			return ' '
		}, body[open:stop]) + body[stop:]
	}
	return body
}

// rewritePower turns every `a ** b` into pow(a, b). The operator is right
// associative and binds tighter than a unary minus on its left, so the
// rightmost one is rewritten first and its base is a single operand.
func rewritePower(text string) (string, error) {
	for {
		i := strings.LastIndex(text, "**")
		if i < 0 {
			return text, nil
		}
		start, end := powerBase(text, i), powerExponent(text, i+2)
		if start < 0 || end < 0 {
			return "", fmt.Errorf("'**' needs an operand on both sides")
		}
		base := strings.TrimSpace(text[start:i])
		exponent := strings.TrimSpace(text[i+2 : end])
		text = text[:start] + "pow(" + base + ", " + exponent + ")" + text[end:]
	}
}

// powerBase returns where the operand ending before offset i starts, or -1.
func powerBase(text string, i int) int {
	j := i
	for j > 0 && isSpace(text[j-1]) {
		j--
	}
	if j > 0 && text[j-1] == ')' {
		depth := 0
		for j--; j >= 0; j-- {
			if text[j] == ')' {
				depth++
			} else if text[j] == '(' {
				depth--
				if depth == 0 {
					break
				}
			}
		}
		if j < 0 {
			return -1
		}
	} else if j == 0 || !isOperand(text[j-1]) {
		return -1
	}
	for j > 0 && isOperand(text[j-1]) {
		j--
	}
	return j
}

// powerExponent returns the offset just past the operand starting at or after
// offset j, or -1. A leading sign belongs to the exponent.
func powerExponent(text string, j int) int {
	for j < len(text) && isSpace(text[j]) {
		j++
	}
	if j < len(text) && (text[j] == '-' || text[j] == '+') {
		j++
		for j < len(text) && isSpace(text[j]) {
			j++
		}
	}
	k := j
	for k < len(text) && isOperand(text[k]) {
		k++
	}
	if k < len(text) && text[k] == '(' {
		return closingParen(text, k)
	}
	if k == j {
		return -1
	}
	return k
}

// closingParen returns the offset just past the parenthesis that closes the
// one at open, or -1.
func closingParen(text string, open int) int {
	depth := 0
	for k := open; k < len(text); k++ {
		switch text[k] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return k + 1
			}
		}
	}
	return -1
}

func isSpace(c byte) bool { return c == ' ' || c == '\t' }

func isOperand(c byte) bool {
	return c == '_' || c == '.' || '0' <= c && c <= '9' || 'a' <= c && c <= 'z' || 'A' <= c && c <= 'Z'
}

// numberOf converts an evaluation result into a float64.
func numberOf(val cty.Value) (float64, error) {
	switch {
	case !val.IsKnown():
		return 0, fmt.Errorf("result is unknown")
	case val.IsNull():
		return 0, fmt.Errorf("result is null")
	case !val.Type().Equals(cty.Number):
		return 0, fmt.Errorf("must return a number, got %s", val.Type().FriendlyName())
	}
	return toFloat(val), nil
}
