package evaluator

import (
	"fmt"
	"sort"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
)

// checkScope walks an expression and reports every call to a function outside
// the library and every reference to a name that is not in scope.
func checkScope(expr hclsyntax.Expression, inScope func(string) bool) hcl.Diagnostics {
	var diags hcl.Diagnostics

	for _, traversal := range expr.Variables() {
		root := traversal.RootName()
		if inScope(root) {
			continue
		}
		diags = append(diags, &hcl.Diagnostic{
			Severity: hcl.DiagError,
			Summary:  "Unknown name",
			Detail:   fmt.Sprintf("'%s' is not an argument, a local or a math constant.", root),
			Subject:  traversal.SourceRange().Ptr(),
		})
	}

	diags = append(diags, hclsyntax.VisitAll(expr, func(node hclsyntax.Node) hcl.Diagnostics {
		call, ok := node.(*hclsyntax.FunctionCallExpr)
		if !ok {
			return nil
		}
		if _, known := library[call.Name]; known {
			return nil
		}
		return hcl.Diagnostics{{
			Severity: hcl.DiagError,
			Summary:  "Call to unknown function",
			Detail:   fmt.Sprintf("'%s' is not available. Available functions: %s.", call.Name, strings.Join(Library(), ", ")),
			Subject:  call.NameRange.Ptr(),
		}}
	})...)

	return diags
}

// calledFunctions returns the sorted, unique names of the functions an
// expression calls.
func calledFunctions(expr hclsyntax.Expression) []string {
	seen := make(map[string]struct{})
	hclsyntax.VisitAll(expr, func(node hclsyntax.Node) hcl.Diagnostics {
		if call, ok := node.(*hclsyntax.FunctionCallExpr); ok {
			seen[call.Name] = struct{}{}
		}
		return nil
	})

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
