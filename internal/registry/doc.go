// Package registry holds the named function definitions of one process and
// is the only place where they are created, changed or evaluated.
//
// The Registry keeps an insertion-ordered map from name to definition, each
// paired with its bound entry point. Every mutation rewrites the whole set
// through a store.Store; if that rewrite fails, the in-memory change is
// undone and the caller gets a model.ErrSerialization fault.
//
// Lifecycle: construct with New, Load once, operate, Flush on shutdown.
// Adapters (the CLI runner and the HTTP API) receive the instance they work
// on; there is no package-level registry.
package registry
