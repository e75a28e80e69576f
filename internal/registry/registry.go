package registry

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/vk/paramfn/internal/ctxlog"
	"github.com/vk/paramfn/internal/evaluator"
	"github.com/vk/paramfn/internal/model"
	"github.com/vk/paramfn/internal/signature"
	"github.com/vk/paramfn/internal/store"
)

// entry pairs a definition with its compiled entry point.
type entry struct {
	def *model.Definition
	fn  *evaluator.Function
}

// Registry is the in-memory set of definitions mirrored to a store.
//
// Concurrent callers are safe from data races, but there is no transaction
// discipline: concurrent mutations follow last-writer-wins.
type Registry struct {
	store store.Store

	mu      sync.RWMutex
	entries map[string]*entry
	order   []string
}

// New creates an empty registry persisted through st. Call Load to populate
// it from the store.
func New(st store.Store) *Registry {
	return &Registry{
		store:   st,
		entries: make(map[string]*entry),
	}
}

// Inspection is a definition together with what its bound entry point reveals.
type Inspection struct {
	Definition *model.Definition
	// Args are the entry-point arguments in declaration order.
	Args []string
	// Calls are the library functions the body uses.
	Calls []string
}

func notFound(name string) error {
	return fmt.Errorf("%w: '%s'", model.ErrNotFound, name)
}

// Create registers def. If the caller did not supply the input signature,
// output signature and parameters, all three are extracted from the source.
func (r *Registry) Create(ctx context.Context, def *model.Definition) (*model.Definition, error) {
	if def == nil || strings.TrimSpace(def.Name) == "" {
		return nil, fmt.Errorf("%w: name must not be empty", model.ErrInvalidDefinition)
	}
	logger := ctxlog.FromContext(ctx).With("function", def.Name)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[def.Name]; exists {
		return nil, fmt.Errorf("%w: '%s'", model.ErrAlreadyExists, def.Name)
	}

	e, err := prepare(ctx, def.Clone())
	if err != nil {
		return nil, err
	}

	r.entries[def.Name] = e
	r.order = append(r.order, def.Name)
	if err := r.persist(ctx); err != nil {
		delete(r.entries, def.Name)
		r.order = r.order[:len(r.order)-1]
		return nil, err
	}

	logger.Info("Function created.", "input_signature", e.def.InputSignature.String())
	return e.def.Clone(), nil
}

// Get returns a copy of the named definition.
func (r *Registry) Get(ctx context.Context, name string) (*model.Definition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[name]
	if !ok {
		return nil, notFound(name)
	}
	return e.def.Clone(), nil
}

// Inspect returns the named definition with details of its entry point.
func (r *Registry) Inspect(ctx context.Context, name string) (*Inspection, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[name]
	if !ok {
		return nil, notFound(name)
	}
	return &Inspection{
		Definition: e.def.Clone(),
		Args:       e.fn.Args(),
		Calls:      e.fn.Calls(),
	}, nil
}

// List returns copies of every definition in insertion order.
func (r *Registry) List(ctx context.Context) []*model.Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*model.Definition, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.entries[name].def.Clone())
	}
	return out
}

// Len returns the number of registered definitions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Delete removes the named definition.
func (r *Registry) Delete(ctx context.Context, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[name]
	if !ok {
		return notFound(name)
	}
	index := slices.Index(r.order, name)

	delete(r.entries, name)
	r.order = slices.Delete(r.order, index, index+1)
	if err := r.persist(ctx); err != nil {
		r.entries[name] = e
		r.order = slices.Insert(r.order, index, name)
		return err
	}

	ctxlog.FromContext(ctx).Info("Function deleted.", "function", name)
	return nil
}

// Compute evaluates the named function at every x, in order. Overrides win
// over the stored parameter defaults. The first failing point aborts the
// batch and no partial results are returned.
func (r *Registry) Compute(ctx context.Context, name string, xs []float64, overrides map[string]float64) ([]float64, error) {
	r.mu.RLock()
	e, ok := r.entries[name]
	r.mu.RUnlock()
	if !ok {
		return nil, notFound(name)
	}

	args := evaluator.MergeArgs(e.def.Parameters, overrides)
	ys, err := e.fn.Compute(ctxlog.With(ctx, "function", name), xs, args)
	if err != nil {
		return nil, fmt.Errorf("function '%s': %w", name, err)
	}
	return ys, nil
}

// Flush rewrites the store with the current contents.
func (r *Registry) Flush(ctx context.Context) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.persist(ctx)
}

// persist saves every definition in order. The caller holds the lock.
func (r *Registry) persist(ctx context.Context) error {
	defs := make([]*model.Definition, 0, len(r.order))
	for _, name := range r.order {
		defs = append(defs, r.entries[name].def)
	}

	if err := r.store.Save(ctx, defs); err != nil {
		ctxlog.FromContext(ctx).Error("Failed to persist the registry, change rolled back.", "error", err)
		if !errors.Is(err, model.ErrSerialization) {
			err = fmt.Errorf("%w: %w", model.ErrSerialization, err)
		}
		return err
	}
	return nil
}

// discarded names the supplied signature fields of def that differ from the
// extracted ones.
func discarded(def *model.Definition, input, output model.Signature, params []model.Parameter) []string {
	var fields []string
	if def.InputSignature.Len() > 0 && def.InputSignature.String() != input.String() {
		fields = append(fields, "input_signature")
	}
	if def.OutputSignature.Len() > 0 && def.OutputSignature.String() != output.String() {
		fields = append(fields, "output_signature")
	}
	if len(def.Parameters) > 0 && !slices.EqualFunc(def.Parameters, params, sameParameter) {
		fields = append(fields, "parameters")
	}
	return fields
}

func sameParameter(a, b model.Parameter) bool {
	if a.Name != b.Name || a.Type != b.Type || (a.Default == nil) != (b.Default == nil) {
		return false
	}
	return a.Default == nil || *a.Default == *b.Default
}

// prepare completes def and binds it. It extracts the signature when any part
// of it is missing, then checks the result against the entry point.
func prepare(ctx context.Context, def *model.Definition) (*entry, error) {
	if !def.HasFullSignature() {
		input, output, params := signature.Extract(ctx, def.Source)
		if params == nil {
			params = []model.Parameter{}
		}
		if fields := discarded(def, input, output, params); len(fields) > 0 {
			ctxlog.FromContext(ctx).Warn("Signature metadata is incomplete, replacing the supplied fields with ones extracted from the source.",
				"function", def.Name, "discarded", strings.Join(fields, ","))
		}
		def.InputSignature, def.OutputSignature, def.Parameters = input, output, params
	}

	fn, err := evaluator.Bind(def.Source)
	if err != nil {
		return nil, fmt.Errorf("function '%s': %w", def.Name, err)
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}
	if err := checkEntryPoint(def, fn); err != nil {
		return nil, err
	}
	return &entry{def: def, fn: fn}, nil
}
