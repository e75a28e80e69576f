package app

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/vk/paramfn/internal/ctxlog"
	"github.com/vk/paramfn/internal/manifest"
	"github.com/vk/paramfn/internal/model"
)

// importManifests registers every function declared in the manifests named by
// cmd.Paths. Existing functions are skipped unless cmd.Replace is set, in
// which case they are replaced in place. Every declaration is attempted; the
// failures are reported together.
func (a *App) importManifests(ctx context.Context, cmd Command) error {
	logger := ctxlog.FromContext(ctx)

	defs, err := manifest.Load(ctx, cmd.Paths...)
	if err != nil {
		return err
	}

	var created, replaced, skipped int
	var errs []error
	for _, def := range defs {
		switch {
		case !a.registry.Has(def.Name):
			if _, err := a.registry.Create(ctx, def); err != nil {
				errs = append(errs, err)
				continue
			}
			created++
		case cmd.Replace:
			if _, err := a.registry.Update(ctx, def.Name, replacement(def)); err != nil {
				errs = append(errs, err)
				continue
			}
			replaced++
		default:
			logger.Warn("Function already exists, skipping.", "function", def.Name)
			skipped++
		}
	}

	fmt.Fprintf(a.outW, "Imported %d functions (%d created, %d replaced, %d skipped, %d failed)\n",
		created+replaced, created, replaced, skipped, len(errs))
	if len(errs) > 0 {
		return fmt.Errorf("import failed for %d of %d functions: %w", len(errs), len(defs), errors.Join(errs...))
	}
	return nil
}

// replacement turns a manifest declaration into a source-replacing patch.
// Signature fields the declaration leaves out are extracted again.
func replacement(def *model.Definition) model.Patch {
	patch := model.Patch{
		Source:      &def.Source,
		Description: &def.Description,
		Parameters:  def.Parameters,
	}
	if def.InputSignature.Len() > 0 {
		in := def.InputSignature
		patch.InputSignature = &in
	}
	if def.OutputSignature.Len() > 0 {
		out := def.OutputSignature
		patch.OutputSignature = &out
	}
	return patch
}

// exportManifest writes every function as a manifest, to cmd.OutPath or to
// the output writer.
func (a *App) exportManifest(ctx context.Context, cmd Command) error {
	defs := a.registry.List(ctx)

	if cmd.OutPath == "" {
		return manifest.Write(a.outW, defs)
	}

	f, err := os.Create(cmd.OutPath)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", cmd.OutPath, err)
	}
	if err := manifest.Write(f, defs); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", cmd.OutPath, err)
	}

	fmt.Fprintf(a.outW, "Exported %d functions to %s\n", len(defs), cmd.OutPath)
	return nil
}
