package manifest

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/vk/paramfn/internal/ctxlog"
	"github.com/vk/paramfn/internal/fsutil"
	"github.com/vk/paramfn/internal/model"
)

// Extension is the file extension of manifest files.
const Extension = ".hcl"

// fileRoot decodes all top-level blocks of one file.
type fileRoot struct {
	Functions []*functionBlock `hcl:"function,block"`
	Remain    hcl.Body         `hcl:",remain"`
}

type functionBlock struct {
	Name        string            `hcl:"name,label"`
	Source      string            `hcl:"source"`
	Description *string           `hcl:"description,optional"`
	Independent *string           `hcl:"independent,optional"`
	Returns     *string           `hcl:"returns,optional"`
	Parameters  []*parameterBlock `hcl:"parameter,block"`
}

type parameterBlock struct {
	Name    string   `hcl:"name,label"`
	Type    *string  `hcl:"type,optional"`
	Default *float64 `hcl:"default,optional"`
}

// Load reads every function block from the given files and directories.
// Directories are searched recursively for .hcl files. A path that does not
// exist is an error, and so is a name declared twice.
func Load(ctx context.Context, paths ...string) ([]*model.Definition, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Manifest loader started.", "path_count", len(paths))

	files, err := findManifestFiles(paths)
	if err != nil {
		return nil, err
	}
	logger.Debug("Discovered manifest files.", "count", len(files))

	parser := hclparse.NewParser()
	var defs []*model.Definition
	declared := make(map[string]string)

	for _, file := range files {
		hclFile, diags := parser.ParseHCLFile(file)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to parse HCL file %s: %w", file, diags)
		}

		var root fileRoot
		diags = gohcl.DecodeBody(hclFile.Body, nil, &root)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to decode HCL file %s: %w", file, diags)
		}

		for _, block := range root.Functions {
			if prev, dup := declared[block.Name]; dup {
				return nil, fmt.Errorf("%w: function '%s' in %s is already declared in %s",
					model.ErrInvalidDefinition, block.Name, file, prev)
			}
			declared[block.Name] = file
			defs = append(defs, translateFunction(block))
		}
	}

	logger.Debug("Manifest loading complete.", "files", len(files), "functions", len(defs))
	return defs, nil
}

func findManifestFiles(paths []string) ([]string, error) {
	var all []string
	seen := make(map[string]struct{})

	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("error accessing path %s: %w", path, err)
		}

		found := []string{path}
		if info.IsDir() {
			if found, err = fsutil.FindFilesByExtension(path, Extension); err != nil {
				return nil, err
			}
		}
		for _, f := range found {
			if _, wasSeen := seen[f]; !wasSeen {
				all = append(all, f)
				seen[f] = struct{}{}
			}
		}
	}
	return all, nil
}

// translateFunction maps one block onto a definition. The signature is only
// filled when the block describes it.
func translateFunction(block *functionBlock) *model.Definition {
	def := &model.Definition{
		Name:   block.Name,
		Source: strings.TrimRight(block.Source, "\n"),
	}
	if block.Description != nil {
		def.Description = *block.Description
	}

	if block.Independent == nil && len(block.Parameters) == 0 {
		return def
	}

	independent := "x"
	if block.Independent != nil {
		independent = *block.Independent
	}
	def.InputSignature.Set(independent, model.TypeFloat)

	def.Parameters = make([]model.Parameter, 0, len(block.Parameters))
	for _, p := range block.Parameters {
		param := model.Parameter{Name: p.Name, Type: model.TypeFloat, Default: p.Default}
		if p.Type != nil {
			param.Type = *p.Type
		}
		def.Parameters = append(def.Parameters, param)
		def.InputSignature.Set(param.Name, param.Type)
	}

	returns := model.TypeFloat
	if block.Returns != nil {
		returns = *block.Returns
	}
	def.OutputSignature.Set(model.ReturnKey, returns)
	return def
}
