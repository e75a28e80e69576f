package registry

import (
	"fmt"
	"strings"

	"github.com/vk/paramfn/internal/evaluator"
	"github.com/vk/paramfn/internal/model"
)

// checkEntryPoint verifies that the declared input signature describes the
// bound entry point: the first entry is its first argument, and every entry is
// one of its arguments.
func checkEntryPoint(def *model.Definition, fn *evaluator.Function) error {
	var errs []string

	if got, want := def.Independent(), fn.Independent(); got != want {
		errs = append(errs, fmt.Sprintf("input_signature starts with '%s' but the entry point's first argument is '%s'", got, want))
	}
	for _, name := range def.InputSignature.Names() {
		if !fn.HasArg(name) {
			errs = append(errs, fmt.Sprintf("input_signature declares '%s' which is not an argument of the entry point (%s)",
				name, strings.Join(fn.Args(), ", ")))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: function '%s':\n- %s", model.ErrInvalidDefinition, def.Name, strings.Join(errs, "\n- "))
	}
	return nil
}
