package registry

import (
	"context"
	"fmt"

	"github.com/vk/paramfn/internal/ctxlog"
	"github.com/vk/paramfn/internal/model"
)

// Update changes the named definition under one of two policies.
//
// When the patch carries a source, the entry is replaced: a fresh definition
// is built from the name, the new source, the patch's description (or the
// old one) and the patch's signature fields. Signature fields the patch omits
// are extracted from the new source, then the whole definition is bound and
// validated again.
//
// Without a source, only the fields present in the patch change and the
// unchanged source is not bound again. Structural checks still run when a
// signature or the parameters change.
//
// The entry keeps its position in the registry either way.
func (r *Registry) Update(ctx context.Context, name string, patch model.Patch) (*model.Definition, error) {
	logger := ctxlog.FromContext(ctx).With("function", name)

	r.mu.Lock()
	defer r.mu.Unlock()

	old, ok := r.entries[name]
	if !ok {
		return nil, notFound(name)
	}

	var (
		next *entry
		err  error
	)
	if patch.Source != nil {
		next, err = replace(ctx, old.def, patch)
		logger = logger.With("policy", "replace")
	} else {
		next, err = apply(old, patch)
		logger = logger.With("policy", "patch")
	}
	if err != nil {
		return nil, err
	}

	r.entries[name] = next
	if err := r.persist(ctx); err != nil {
		r.entries[name] = old
		return nil, err
	}

	logger.Info("Function updated.")
	return next.def.Clone(), nil
}

func replace(ctx context.Context, old *model.Definition, patch model.Patch) (*entry, error) {
	def := &model.Definition{
		Name:        old.Name,
		Source:      *patch.Source,
		Description: old.Description,
	}
	if patch.Description != nil {
		def.Description = *patch.Description
	}
	if patch.InputSignature != nil {
		def.InputSignature = patch.InputSignature.Clone()
	}
	if patch.OutputSignature != nil {
		def.OutputSignature = patch.OutputSignature.Clone()
	}
	if patch.Parameters != nil {
		def.Parameters = model.CloneParameters(patch.Parameters)
	}
	return prepare(ctx, def)
}

func apply(old *entry, patch model.Patch) (*entry, error) {
	def := old.def.Clone()
	if patch.Description != nil {
		def.Description = *patch.Description
	}
	if patch.InputSignature != nil {
		def.InputSignature = patch.InputSignature.Clone()
	}
	if patch.OutputSignature != nil {
		def.OutputSignature = patch.OutputSignature.Clone()
	}
	if patch.Parameters != nil {
		def.Parameters = model.CloneParameters(patch.Parameters)
	}

	if patch.TouchesSignature() {
		if err := def.Validate(); err != nil {
			return nil, fmt.Errorf("update rejected: %w", err)
		}
	}
	return &entry{def: def, fn: old.fn}, nil
}
