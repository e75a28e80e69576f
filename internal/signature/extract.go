// Package signature derives input/output signatures and the parameter list of
// a function from its source text, for callers that register a function
// without supplying that metadata.
package signature

import (
	"context"
	"math"
	"strconv"

	"github.com/vk/paramfn/internal/ctxlog"
	"github.com/vk/paramfn/internal/model"
)

// Extract produces a best-effort signature for the entry point found in
// source. It never fails: a source without a header yields empty results, and
// a default literal that is not a finite number degrades the parameter to type
// "any" with a 0.0 default, which is logged.
func Extract(ctx context.Context, source string) (input model.Signature, output model.Signature, params []model.Parameter) {
	logger := ctxlog.FromContext(ctx)

	header, ok := ParseHeader(source)
	if !ok {
		logger.Debug("No entry-point header found, leaving signature empty.")
		return model.Signature{}, model.Signature{}, nil
	}
	if len(header.Args) == 0 {
		logger.Debug("Entry point declares no arguments, leaving signature empty.")
		return model.Signature{}, model.Signature{}, nil
	}

	input.Set(header.Args[0].Name, model.TypeFloat)

	params = make([]model.Parameter, 0, len(header.Args)-1)
	for _, arg := range header.Args[1:] {
		p := model.Parameter{Name: arg.Name, Type: model.TypeFloat}

		if arg.HasDefault {
			v, err := strconv.ParseFloat(arg.Default, 64)
			if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
				logger.Warn("Default is not a numeric literal, degrading parameter to type 'any' with default 0.",
					"parameter", arg.Name, "literal", arg.Default)
				v = 0
				p.Type = model.TypeAny
			}
			p.Default = &v
		}

		params = append(params, p)
		input.Set(p.Name, p.Type)
	}

	output.Set(model.ReturnKey, model.TypeFloat)

	logger.Debug("Signature extracted from source.", "input", input.String(), "parameters", len(params))
	return input, output, params
}
