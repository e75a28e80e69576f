// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
//
// This file defines Definition, the unit of record of the registry: one named
// function with its source text and the metadata describing its arguments.
package model

import (
	"fmt"
	"strings"
)

// Type tags used by the extractor. Callers may supply other non-empty tags.
const (
	TypeFloat = "float"
	TypeAny   = "any"

	// ReturnKey is the only key an output signature may hold.
	ReturnKey = "return"
)

// Parameter describes one argument after the independent variable.
type Parameter struct {
	Name    string   `json:"name"`
	Type    string   `json:"type"`
	Default *float64 `json:"default"`
}

// Definition is the full persisted record for one named function.
type Definition struct {
	Name            string      `json:"name"`
	Source          string      `json:"source"`
	Description     string      `json:"description"`
	InputSignature  Signature   `json:"input_signature"`
	OutputSignature Signature   `json:"output_signature"`
	Parameters      []Parameter `json:"parameters"`
}

// HasFullSignature reports whether the caller supplied all three pieces of
// signature metadata. Definitions without it go through extraction.
func (d *Definition) HasFullSignature() bool {
	return d.InputSignature.Len() > 0 && d.OutputSignature.Len() > 0 && len(d.Parameters) > 0
}

// Independent returns the name of the independent variable, or "" when the
// input signature is empty.
func (d *Definition) Independent() string {
	if d.InputSignature.Len() == 0 {
		return ""
	}
	return d.InputSignature.Entries()[0].Name
}

// Clone returns a deep copy of the definition.
func (d *Definition) Clone() *Definition {
	if d == nil {
		return nil
	}
	out := *d
	out.InputSignature = d.InputSignature.Clone()
	out.OutputSignature = d.OutputSignature.Clone()
	out.Parameters = CloneParameters(d.Parameters)
	return &out
}

// CloneParameters deep-copies a parameter list, including the default pointers.
func CloneParameters(params []Parameter) []Parameter {
	if params == nil {
		return nil
	}
	out := make([]Parameter, len(params))
	for i, p := range params {
		out[i] = p
		if p.Default != nil {
			v := *p.Default
			out[i].Default = &v
		}
	}
	return out
}

// Validate checks the structural invariants of a definition. It does not look
// at the source text; consistency with the entry point is checked by the
// registry once the source is bound.
func (d *Definition) Validate() error {
	var errs []string

	if strings.TrimSpace(d.Name) == "" {
		errs = append(errs, "name must not be empty")
	}

	if d.InputSignature.Len() != 1+len(d.Parameters) {
		errs = append(errs, fmt.Sprintf("input_signature has %d entries, expected %d (independent variable plus %d parameters)",
			d.InputSignature.Len(), 1+len(d.Parameters), len(d.Parameters)))
	}
	for _, e := range d.InputSignature.Entries() {
		if e.Type == "" {
			errs = append(errs, fmt.Sprintf("input_signature entry '%s' has an empty type", e.Name))
		}
	}

	independent := d.Independent()
	seen := make(map[string]struct{}, len(d.Parameters))
	for _, p := range d.Parameters {
		switch {
		case p.Name == "":
			errs = append(errs, "parameter with an empty name")
			continue
		case p.Name == independent:
			errs = append(errs, fmt.Sprintf("parameter '%s' shadows the independent variable", p.Name))
		case !d.InputSignature.Has(p.Name):
			errs = append(errs, fmt.Sprintf("parameter '%s' is not declared in input_signature", p.Name))
		}
		if _, dup := seen[p.Name]; dup {
			errs = append(errs, fmt.Sprintf("parameter '%s' is declared more than once", p.Name))
		}
		seen[p.Name] = struct{}{}
		if p.Type == "" {
			errs = append(errs, fmt.Sprintf("parameter '%s' has an empty type", p.Name))
		}
	}

	if d.OutputSignature.Len() != 1 || !d.OutputSignature.Has(ReturnKey) {
		errs = append(errs, fmt.Sprintf("output_signature must hold exactly the key '%s'", ReturnKey))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: function '%s':\n- %s", ErrInvalidDefinition, d.Name, strings.Join(errs, "\n- "))
	}
	return nil
}

// Patch carries the fields of an update request. Nil pointers mean the field
// is absent. A nil Parameters slice is absent; an empty one clears the list.
type Patch struct {
	Source          *string     `json:"source,omitempty"`
	Description     *string     `json:"description,omitempty"`
	InputSignature  *Signature  `json:"input_signature,omitempty"`
	OutputSignature *Signature  `json:"output_signature,omitempty"`
	Parameters      []Parameter `json:"parameters"`
}

// TouchesSignature reports whether the patch changes any signature metadata.
func (p *Patch) TouchesSignature() bool {
	return p.InputSignature != nil || p.OutputSignature != nil || p.Parameters != nil
}
