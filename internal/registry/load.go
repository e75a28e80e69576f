package registry

import (
	"context"
	"fmt"

	"github.com/vk/paramfn/internal/ctxlog"
)

// Load replaces the registry contents with the definitions in the store.
//
// The load is partial: records that fail to bind or validate, and repeated
// names, are skipped and logged. Load fails only when the store itself cannot
// be read.
func (r *Registry) Load(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Registry loading definitions from store...")

	defs, err := r.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("loading registry: %w", err)
	}

	entries := make(map[string]*entry, len(defs))
	order := make([]string, 0, len(defs))
	skipped := 0
	for i, def := range defs {
		if def == nil || def.Name == "" {
			logger.Warn("Skipping unnamed function record.", "index", i)
			skipped++
			continue
		}
		if _, dup := entries[def.Name]; dup {
			logger.Warn("Skipping duplicate function record.", "index", i, "function", def.Name)
			skipped++
			continue
		}

		e, err := prepare(ctx, def.Clone())
		if err != nil {
			logger.Warn("Skipping function that failed to load.", "index", i, "function", def.Name, "error", err)
			skipped++
			continue
		}
		entries[def.Name] = e
		order = append(order, def.Name)
	}

	r.mu.Lock()
	r.entries = entries
	r.order = order
	r.mu.Unlock()

	logger.Info("Registry loaded.", "functions", len(order), "skipped", skipped)
	return nil
}

// Names returns the registered names in insertion order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[name]
	return ok
}
