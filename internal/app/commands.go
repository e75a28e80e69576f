package app

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/vk/paramfn/internal/httpapi"
	"github.com/vk/paramfn/internal/model"
)

// Command names.
const (
	CmdCreate  = "create"
	CmdGet     = "get"
	CmdUpdate  = "update"
	CmdDelete  = "delete"
	CmdList    = "list"
	CmdCompute = "compute"
	CmdServe   = "serve"
	CmdImport  = "import"
	CmdExport  = "export"
)

// Commands lists every command name in help order.
var Commands = []string{CmdCreate, CmdGet, CmdUpdate, CmdDelete, CmdList, CmdCompute, CmdServe, CmdImport, CmdExport}

// Command is one parsed invocation. Only the fields of the named command are
// set.
type Command struct {
	Name string

	// Function is the target of get, update, delete and compute.
	Function string

	// create
	Definition *model.Definition

	// update
	Patch model.Patch

	// get
	Data  bool
	Brief bool

	// compute; a nil X means DefaultX.
	X      []float64
	Params map[string]float64
	Output bool

	// import
	Paths   []string
	Replace bool

	// export; empty means the output writer.
	OutPath string
}

// DefaultX returns the inputs compute uses when none are given: 0 through 9.
func DefaultX() []float64 {
	xs := make([]float64, 10)
	for i := range xs {
		xs[i] = float64(i)
	}
	return xs
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func parametersJSON(params []model.Parameter) string {
	if params == nil {
		params = []model.Parameter{}
	}
	b, err := json.MarshalIndent(params, "", "  ")
	if err != nil {
		return fmt.Sprintf("<%v>", err)
	}
	return string(b)
}

func (a *App) printSignatures(def *model.Definition, indent string) {
	fmt.Fprintf(a.outW, "%sInput signature: %s\n", indent, def.InputSignature)
	fmt.Fprintf(a.outW, "%sOutput signature: %s\n", indent, def.OutputSignature)
	fmt.Fprintf(a.outW, "%sParameters: %s\n", indent, parametersJSON(def.Parameters))
}

func (a *App) create(ctx context.Context, cmd Command) error {
	def, err := a.registry.Create(ctx, cmd.Definition)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.outW, "Function '%s' created successfully\n", def.Name)
	fmt.Fprintln(a.outW)
	fmt.Fprintln(a.outW, "Function data:")
	a.printSignatures(def, "  ")
	return nil
}

func (a *App) get(ctx context.Context, cmd Command) error {
	if cmd.Data {
		info, err := a.registry.Inspect(ctx, cmd.Function)
		if err != nil {
			return err
		}
		b, err := json.MarshalIndent(httpapi.NewFunctionData(info), "", "  ")
		if err != nil {
			return fmt.Errorf("%w: %v", model.ErrSerialization, err)
		}
		fmt.Fprintln(a.outW, string(b))
		return nil
	}

	def, err := a.registry.Get(ctx, cmd.Function)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.outW, "Name: %s\n", def.Name)
	fmt.Fprintf(a.outW, "Description: %s\n", def.Description)
	fmt.Fprintf(a.outW, "Source:\n%s\n", def.Source)
	if !cmd.Brief {
		fmt.Fprintln(a.outW)
		a.printSignatures(def, "")
	}
	return nil
}

func (a *App) update(ctx context.Context, cmd Command) error {
	if _, err := a.registry.Update(ctx, cmd.Function, cmd.Patch); err != nil {
		return err
	}
	fmt.Fprintf(a.outW, "Function '%s' updated successfully\n", cmd.Function)
	return nil
}

func (a *App) delete(ctx context.Context, cmd Command) error {
	if err := a.registry.Delete(ctx, cmd.Function); err != nil {
		return err
	}
	fmt.Fprintf(a.outW, "Function '%s' deleted successfully\n", cmd.Function)
	return nil
}

func (a *App) list(ctx context.Context) error {
	defs := a.registry.List(ctx)
	if len(defs) == 0 {
		fmt.Fprintln(a.outW, "No functions found")
		return nil
	}

	fmt.Fprintf(a.outW, "Found %d functions:\n", len(defs))
	fmt.Fprintln(a.outW, strings.Repeat("-", 60))
	for _, def := range defs {
		fmt.Fprintf(a.outW, "• %s\n", def.Name)
		fmt.Fprintf(a.outW, "  Description: %s\n", def.Description)
		fmt.Fprintf(a.outW, "  Input: %s\n", def.InputSignature)
		fmt.Fprintf(a.outW, "  Output: %s\n", def.OutputSignature)
		fmt.Fprintf(a.outW, "  Parameters: %d\n", len(def.Parameters))
		fmt.Fprintln(a.outW)
	}
	return nil
}

// compute prints one "f(x) = y" line per input, or only the results with
// --output.
func (a *App) compute(ctx context.Context, cmd Command) error {
	xs := cmd.X
	if xs == nil {
		xs = DefaultX()
	}

	ys, err := a.registry.Compute(ctx, cmd.Function, xs, cmd.Params)
	if err != nil {
		return err
	}

	if cmd.Output {
		for _, y := range ys {
			fmt.Fprintln(a.outW, formatFloat(y))
		}
		return nil
	}

	fmt.Fprintf(a.outW, "Results for function '%s':\n", cmd.Function)
	for i, y := range ys {
		fmt.Fprintf(a.outW, "  f(%s) = %s\n", formatFloat(xs[i]), formatFloat(y))
	}
	return nil
}
