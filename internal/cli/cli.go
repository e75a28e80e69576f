package cli

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/vk/paramfn/internal/app"
	"github.com/vk/paramfn/internal/model"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

func usageError(format string, args ...any) *ExitError {
	return &ExitError{Code: 2, Message: fmt.Sprintf(format, args...)}
}

var commandHelp = map[string]string{
	app.CmdCreate:  "Create a new function",
	app.CmdGet:     "Get function details",
	app.CmdUpdate:  "Update a function",
	app.CmdDelete:  "Delete a function",
	app.CmdList:    "List all functions",
	app.CmdCompute: "Compute a function",
	app.CmdServe:   "Serve the HTTP API",
	app.CmdImport:  "Import functions from HCL manifests",
	app.CmdExport:  "Export all functions as an HCL manifest",
}

// Parse processes command-line arguments. It returns a populated Config,
// a boolean indicating if the program should exit cleanly, or an ExitError.
//
// Settings are applied in order of precedence: built-in defaults, then the
// TOML config file named by --config or PARAMFN_CONFIG, then flags given on
// the command line.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	slog.Debug("CLI parser started.")
	flagSet := flag.NewFlagSet("paramfn", flag.ContinueOnError)
	flagSet.SetOutput(output)

	flagSet.Usage = func() {
		fmt.Fprint(output, `
paramfn - A registry of named, parametric numeric functions.

Usage:
  paramfn [options] <command> [command options]

Commands:
`)
		for _, name := range app.Commands {
			fmt.Fprintf(output, "  %-9s %s\n", name, commandHelp[name])
		}
		fmt.Fprint(output, `
Run 'paramfn <command> -h' for the options of a command.

Examples:
  paramfn create --name linear --source "def f(x, a=1, b=0): return a*x + b"
  paramfn compute --name linear --x "1,2,3,4,5" --params "a=2 b=1"
  paramfn get --name linear --data
  paramfn list

Options:
`)
		flagSet.PrintDefaults()
	}

	configFlag := flagSet.String("config", "", "Path to a TOML config file. Defaults to $"+app.ConfigEnv+".")
	storageFlag := flagSet.String("storage", app.DefaultStoragePath, "Path to the JSON document holding the functions.")
	storageKindFlag := flagSet.String("storage-kind", app.DefaultStorageKind, "Storage backend. Options: 'file' or 'memory'.")
	listenFlag := flagSet.String("listen", app.DefaultListenAddr, "Address the HTTP server listens on.")
	logFormatFlag := flagSet.String("log-format", app.DefaultLogFormat, "Log output format. Options: 'text', 'json' or 'pretty'.")
	logLevelFlag := flagSet.String("log-level", app.DefaultLogLevel, "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil, true, nil
		}
		return nil, false, usageError("%s", err.Error())
	}
	slog.Debug("Arguments parsed successfully.")

	if flagSet.NArg() == 0 {
		slog.Debug("No command provided, printing usage and exiting.")
		flagSet.Usage()
		return nil, true, nil
	}

	cfg := app.DefaultConfig()

	configPath := *configFlag
	if configPath == "" {
		configPath = os.Getenv(app.ConfigEnv)
	}
	if configPath != "" {
		if err := app.ApplyFile(&cfg, configPath); err != nil {
			return nil, false, usageError("%s", err.Error())
		}
		slog.Debug("Config file applied.", "path", configPath)
	}

	flagSet.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "storage":
			cfg.StoragePath = *storageFlag
		case "storage-kind":
			cfg.StorageKind = strings.ToLower(*storageKindFlag)
		case "listen":
			cfg.ListenAddr = *listenFlag
		case "log-format":
			cfg.LogFormat = strings.ToLower(*logFormatFlag)
		case "log-level":
			cfg.LogLevel = strings.ToLower(*logLevelFlag)
		}
	})

	cmd, shouldExit, err := parseCommand(flagSet.Arg(0), flagSet.Args()[1:], output, &cfg)
	if err != nil || shouldExit {
		return nil, shouldExit, err
	}
	cfg.Command = cmd
	slog.Debug("CLI parameter validation complete.", "command", cmd.Name)

	config, err := app.NewConfig(cfg)
	if err != nil {
		return nil, false, usageError("%s", err.Error())
	}

	slog.Debug("CLI parser finished successfully.", "command", config.Command.Name)
	return config, false, nil
}

// parseCommand parses the arguments that follow the command name.
func parseCommand(name string, args []string, output io.Writer, cfg *app.Config) (app.Command, bool, error) {
	help, known := commandHelp[name]
	if !known {
		return app.Command{}, false, usageError("unknown command %q: must be one of %s", name, strings.Join(app.Commands, ", "))
	}

	flagSet := flag.NewFlagSet("paramfn "+name, flag.ContinueOnError)
	flagSet.SetOutput(output)
	positional := ""
	if name == app.CmdImport {
		positional = " <file|dir>..."
	}
	flagSet.Usage = func() {
		fmt.Fprintf(output, "\n%s.\n\nUsage:\n  paramfn %s [options]%s\n\nOptions:\n", help, name, positional)
		flagSet.PrintDefaults()
	}

	cmd := app.Command{Name: name}
	var finish func() error

	switch name {
	case app.CmdCreate:
		finish = defineCreate(flagSet, &cmd)
	case app.CmdGet:
		nameFlag := defineName(flagSet)
		flagSet.BoolVar(&cmd.Data, "data", false, "Show the function data as JSON.")
		flagSet.BoolVar(&cmd.Brief, "brief", false, "Brief output without signatures.")
		finish = func() error { return requireName(nameFlag, &cmd) }
	case app.CmdUpdate:
		finish = defineUpdate(flagSet, &cmd)
	case app.CmdDelete:
		nameFlag := defineName(flagSet)
		finish = func() error { return requireName(nameFlag, &cmd) }
	case app.CmdList:
		finish = func() error { return nil }
	case app.CmdCompute:
		finish = defineCompute(flagSet, &cmd)
	case app.CmdServe:
		flagSet.StringVar(&cfg.ListenAddr, "listen", cfg.ListenAddr, "Address the HTTP server listens on.")
		finish = func() error { return nil }
	case app.CmdImport:
		flagSet.BoolVar(&cmd.Replace, "replace", false, "Replace functions that already exist instead of skipping them.")
		finish = func() error {
			cmd.Paths = flagSet.Args()
			if len(cmd.Paths) == 0 {
				return errors.New("import needs at least one file or directory")
			}
			return nil
		}
	case app.CmdExport:
		flagSet.StringVar(&cmd.OutPath, "out", "", "Write the manifest to this file instead of standard output.")
		finish = func() error { return nil }
	}

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return app.Command{}, true, nil
		}
		return app.Command{}, false, usageError("%s", err.Error())
	}
	if name != app.CmdImport && flagSet.NArg() > 0 {
		return app.Command{}, false, usageError("unexpected argument %q for %s", flagSet.Arg(0), name)
	}
	if err := finish(); err != nil {
		return app.Command{}, false, usageError("%s: %s", name, err.Error())
	}
	return cmd, false, nil
}

func defineName(flagSet *flag.FlagSet) *string {
	return flagSet.String("name", "", "Function name.")
}

func requireName(nameFlag *string, cmd *app.Command) error {
	if *nameFlag == "" {
		return errors.New("flag --name is required")
	}
	cmd.Function = *nameFlag
	return nil
}

// definitionFlags are the flags create and update share.
type definitionFlags struct {
	source, code, description *string
	input, output, parameters *string
}

func defineDefinitionFlags(flagSet *flag.FlagSet) *definitionFlags {
	return &definitionFlags{
		source:      flagSet.String("source", "", "Function source, e.g. \"def f(x, a=1): return a*x\"."),
		code:        flagSet.String("code", "", "Alias of --source."),
		description: flagSet.String("description", "", "Function description."),
		input:       flagSet.String("input-signature", "", "Input signature as JSON, e.g. '{\"x\": \"float\", \"a\": \"float\"}'."),
		output:      flagSet.String("output-signature", "", "Output signature as JSON, e.g. '{\"return\": \"float\"}'."),
		parameters:  flagSet.String("parameters", "", "Parameters list as JSON, e.g. '[{\"name\": \"a\", \"type\": \"float\", \"default\": 1}]'."),
	}
}

// sourceText returns --source, falling back to --code.
func (d *definitionFlags) sourceText() string {
	if *d.source != "" {
		return *d.source
	}
	return *d.code
}

func decodeJSONFlag(flagName, text string, v any) error {
	if err := json.Unmarshal([]byte(text), v); err != nil {
		return fmt.Errorf("invalid %s JSON: %v", flagName, err)
	}
	return nil
}

func defineCreate(flagSet *flag.FlagSet, cmd *app.Command) func() error {
	nameFlag := defineName(flagSet)
	df := defineDefinitionFlags(flagSet)

	return func() error {
		if *nameFlag == "" {
			return errors.New("flag --name is required")
		}
		def := &model.Definition{
			Name:        *nameFlag,
			Source:      df.sourceText(),
			Description: *df.description,
		}
		if def.Source == "" {
			return errors.New("flag --source is required")
		}
		if *df.input != "" {
			if err := decodeJSONFlag("--input-signature", *df.input, &def.InputSignature); err != nil {
				return err
			}
		}
		if *df.output != "" {
			if err := decodeJSONFlag("--output-signature", *df.output, &def.OutputSignature); err != nil {
				return err
			}
		}
		if *df.parameters != "" {
			if err := decodeJSONFlag("--parameters", *df.parameters, &def.Parameters); err != nil {
				return err
			}
		}
		cmd.Function = def.Name
		cmd.Definition = def
		return nil
	}
}

// defineUpdate builds a patch holding only the flags that were given, so an
// explicit empty --description clears the description.
func defineUpdate(flagSet *flag.FlagSet, cmd *app.Command) func() error {
	nameFlag := defineName(flagSet)
	df := defineDefinitionFlags(flagSet)

	return func() error {
		if err := requireName(nameFlag, cmd); err != nil {
			return err
		}

		set := make(map[string]bool)
		flagSet.Visit(func(f *flag.Flag) { set[f.Name] = true })

		patch := &cmd.Patch
		if set["source"] || set["code"] {
			source := df.sourceText()
			patch.Source = &source
		}
		if set["description"] {
			patch.Description = df.description
		}
		if set["input-signature"] {
			patch.InputSignature = &model.Signature{}
			if err := decodeJSONFlag("--input-signature", *df.input, patch.InputSignature); err != nil {
				return err
			}
		}
		if set["output-signature"] {
			patch.OutputSignature = &model.Signature{}
			if err := decodeJSONFlag("--output-signature", *df.output, patch.OutputSignature); err != nil {
				return err
			}
		}
		if set["parameters"] {
			params := []model.Parameter{}
			if err := decodeJSONFlag("--parameters", *df.parameters, &params); err != nil {
				return err
			}
			if params == nil {
				params = []model.Parameter{}
			}
			patch.Parameters = params
		}
		return nil
	}
}

func defineCompute(flagSet *flag.FlagSet, cmd *app.Command) func() error {
	nameFlag := defineName(flagSet)
	xFlag := flagSet.String("x", "", "Comma-separated x values, e.g. '1,2,3,4,5'. Defaults to 0 through 9.")
	paramsFlag := flagSet.String("params", "", "Parameters as key=value pairs separated by spaces or commas, e.g. 'a=2 b=1'.")
	cmd.Params = make(map[string]float64)
	flagSet.Func("param", "One parameter as key=value. May be repeated.", func(s string) error {
		return parseAssignments(s, cmd.Params)
	})
	flagSet.BoolVar(&cmd.Output, "output", false, "Print only the results, one per line.")

	return func() error {
		if err := requireName(nameFlag, cmd); err != nil {
			return err
		}

		xGiven := false
		flagSet.Visit(func(f *flag.Flag) { xGiven = xGiven || f.Name == "x" })
		if xGiven {
			xs, err := parseFloats(*xFlag)
			if err != nil {
				return err
			}
			cmd.X = xs
		}

		if err := parseAssignments(*paramsFlag, cmd.Params); err != nil {
			return err
		}
		return nil
	}
}

// parseFloats parses a comma-separated list. An empty list yields an empty,
// non-nil slice.
func parseFloats(s string) ([]float64, error) {
	xs := []float64{}
	if strings.TrimSpace(s) == "" {
		return xs, nil
	}
	for _, part := range strings.Split(s, ",") {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid x value %q", strings.TrimSpace(part))
		}
		xs = append(xs, v)
	}
	return xs, nil
}

// parseAssignments adds every key=value pair in s to dst. Pairs are separated
// by whitespace or commas.
func parseAssignments(s string, dst map[string]float64) error {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n'
	})
	for _, field := range fields {
		key, value, ok := strings.Cut(field, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return fmt.Errorf("invalid parameter %q: expected key=value", field)
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return fmt.Errorf("invalid value for parameter '%s': %q", key, value)
		}
		dst[key] = v
	}
	return nil
}
