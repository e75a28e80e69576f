// Package store defines the persistence contract of the function registry.
//
// # Why a Store Exists
//
// The registry owns the in-memory map of definitions and every rule about
// them. A store only moves the whole set of definitions in and out of durable
// state, so the registry can be tested against memory and run against a file
// without changing its code.
//
// # Lifecycle
//
// A store is:
//  1. **Loaded** once when the registry starts. Records it cannot decode are
//     skipped and logged by the store, never returned as an error.
//  2. **Saved** after every mutation with the complete, ordered set of
//     definitions. There is no append log and no versioning.
//
// See internal/filestore for the JSON document implementation and
// internal/inmemorystore for the ephemeral one.
package store

import (
	"context"

	"github.com/vk/paramfn/internal/model"
)

// Store persists the complete set of definitions.
//
// Implementations must be safe for concurrent use. Load returns the records in
// their persisted order. Save replaces everything previously persisted.
type Store interface {
	// Load returns every record that could be decoded. A missing document is
	// an empty registry, not an error.
	Load(ctx context.Context) ([]*model.Definition, error)

	// Save rewrites the persisted state with defs. Failures wrap
	// model.ErrSerialization.
	Save(ctx context.Context, defs []*model.Definition) error
}
