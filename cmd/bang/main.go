// Command bang is the CLI entry point for the bang toolchain.
//
// Usage:
//
//	bang [--config file] [--log-level level] <command> [args]
//
//	bang tokens <file>                  Print tokens
//	bang tokens <file> --json           Print tokens as JSON
//	bang parse  <file>                  Print AST as JSON
//	bang parse  <file> --yaml           Print AST as YAML
//	bang run    [--fail-fast] <file>... Run source files
//	bang repl                           Start interactive REPL
package main

import (
	"bang-lang/internal/ast"
	"bang-lang/internal/config"
	"bang-lang/internal/diag"
	"bang-lang/internal/lexer"
	"bang-lang/internal/parser"
	"bang-lang/internal/runtime"
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"golang.org/x/sync/errgroup"
)

// runParallelism bounds how many files `bang run` evaluates at once.
const runParallelism = 4

var errFailed = errors.New("run failed")

type app struct {
	stdout io.Writer
	stderr io.Writer
	cfg    *config.Config
	logger *slog.Logger
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run executes one CLI invocation and returns the process exit code.
func run(args []string, stdout, stderr io.Writer) int {
	global := flag.NewFlagSet("bang", flag.ContinueOnError)
	global.SetOutput(stderr)
	global.Usage = func() { usage(stderr) }
	configPath := global.String("config", "", "path to a TOML config file")
	logLevel := global.String("log-level", "", "log level (debug, info, warn, error)")
	if err := global.Parse(args); err != nil {
		return 1
	}
	if global.NArg() < 1 {
		usage(stderr)
		return 1
	}

	cfg, err := config.Resolve(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	level, err := config.ParseLevel(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}

	a := &app{
		stdout: stdout,
		stderr: stderr,
		cfg:    cfg,
		logger: slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level})),
	}
	a.logger.Debug("configuration", "path", cfg.Path, "log_level", cfg.LogLevel)

	command, rest := global.Arg(0), global.Args()[1:]
	switch command {
	case "tokens":
		return a.cmdTokens(rest)
	case "parse":
		return a.cmdParse(rest)
	case "run":
		return a.cmdRun(rest)
	case "repl":
		return a.cmdRepl()
	default:
		fmt.Fprintf(stderr, "error: unknown command '%s'\n", command)
		usage(stderr)
		return 1
	}
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  bang [--config file] [--log-level level] <command> [args]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  bang tokens <file> [--json]          Tokenize and print tokens")
	fmt.Fprintln(w, "  bang parse  <file> [--yaml]          Parse and print AST (JSON or YAML)")
	fmt.Fprintln(w, "  bang run    [--fail-fast] <file>...  Run source files")
	fmt.Fprintln(w, "  bang repl                            Start interactive REPL")
}

// parseArgs parses fs over args, allowing flags after positional arguments,
// and returns the positional arguments.
func parseArgs(fs *flag.FlagSet, args []string) ([]string, error) {
	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		if fs.NArg() == 0 {
			return positional, nil
		}
		positional = append(positional, fs.Arg(0))
		args = fs.Args()[1:]
	}
}

func (a *app) subcommand(name string) *flag.FlagSet {
	fs := flag.NewFlagSet("bang "+name, flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	return fs
}

func (a *app) readFile(filename string) (string, bool) {
	source, err := os.ReadFile(filename)
	if err != nil {
		fmt.Fprintf(a.stderr, "error: cannot read file %s: %v\n", filename, err)
		return "", false
	}
	return string(source), true
}

// parseSource runs the front end. The program is nil when lexing failed.
func parseSource(source string) (*ast.Program, []diag.Diagnostic) {
	tokens, lexDiags := lexer.New(source).Tokenize()
	if diag.HasErrors(lexDiags) {
		return nil, lexDiags
	}
	prog, parseDiags := parser.New(tokens).ParseProgram()
	return prog, append(lexDiags, parseDiags...)
}

// ---- tokens command ----

func (a *app) cmdTokens(args []string) int {
	fs := a.subcommand("tokens")
	jsonMode := fs.Bool("json", false, "print tokens as JSON")
	files, err := parseArgs(fs, args)
	if err != nil {
		return 1
	}
	if len(files) != 1 {
		fmt.Fprintln(a.stderr, "error: tokens expects exactly one file argument")
		return 1
	}
	source, ok := a.readFile(files[0])
	if !ok {
		return 1
	}

	tokens, diags := lexer.New(source).Tokenize()
	if *jsonMode {
		if err := printTokensJSON(a.stdout, tokens, diags); err != nil {
			fmt.Fprintf(a.stderr, "error: %v\n", err)
			return 1
		}
	} else {
		printTokensText(a.stdout, tokens)
		printDiagsText(a.stderr, files[0], diags)
	}

	if len(diags) > 0 {
		return 1
	}
	return 0
}

// ---- parse command ----

func (a *app) cmdParse(args []string) int {
	fs := a.subcommand("parse")
	yamlMode := fs.Bool("yaml", false, "print the AST as YAML")
	files, err := parseArgs(fs, args)
	if err != nil {
		return 1
	}
	if len(files) != 1 {
		fmt.Fprintln(a.stderr, "error: parse expects exactly one file argument")
		return 1
	}
	source, ok := a.readFile(files[0])
	if !ok {
		return 1
	}

	prog, diags := parseSource(source)
	var tree map[string]any
	if prog != nil {
		tree = ast.NodeToMap(prog)
	}
	encode := printJSON
	if *yamlMode {
		encode = printYAML
	}
	if err := encode(a.stdout, map[string]any{
		"ast":         tree,
		"diagnostics": diagsToSlice(diags),
	}); err != nil {
		fmt.Fprintf(a.stderr, "error: %v\n", err)
		return 1
	}

	if diag.HasErrors(diags) {
		return 1
	}
	return 0
}

// ---- run command ----

// fileResult holds everything one file produced, so that output from
// concurrent runs can be flushed in argument order.
type fileResult struct {
	stdout  bytes.Buffer
	stderr  bytes.Buffer
	failed  bool
	skipped bool
}

func (a *app) cmdRun(args []string) int {
	fs := a.subcommand("run")
	failFast := fs.Bool("fail-fast", a.cfg.Run.FailFast, "skip files not yet started after the first failure")
	files, err := parseArgs(fs, args)
	if err != nil {
		return 1
	}
	if len(files) == 0 {
		fmt.Fprintln(a.stderr, "error: missing file argument")
		return 1
	}

	results := make([]*fileResult, len(files))
	g, ctx := errgroup.WithContext(context.Background())
	g.SetLimit(runParallelism)
	for idx, filename := range files {
		idx, filename := idx, filename
		g.Go(func() error {
			if ctx.Err() != nil {
				results[idx] = &fileResult{skipped: true}
				return nil
			}
			res := a.runFile(filename)
			results[idx] = res
			if res.failed && *failFast {
				return errFailed
			}
			return nil
		})
	}
	_ = g.Wait()

	code := 0
	for idx, res := range results {
		if res.skipped {
			fmt.Fprintf(a.stderr, "%s: skipped\n", files[idx])
			code = 1
			continue
		}
		a.stdout.Write(res.stdout.Bytes())
		a.stderr.Write(res.stderr.Bytes())
		if res.failed {
			code = 1
		}
	}
	return code
}

// runFile lexes, parses and evaluates one file with its own interpreter.
// The rendered value of the last expression is printed unless it is unit.
func (a *app) runFile(filename string) *fileResult {
	res := &fileResult{}
	logger := a.logger.With("file", filename)

	source, err := os.ReadFile(filename)
	if err != nil {
		fmt.Fprintf(&res.stderr, "error: cannot read file %s: %v\n", filename, err)
		res.failed = true
		return res
	}

	prog, diags := parseSource(string(source))
	printDiagsText(&res.stderr, filename, diags)
	if diag.HasErrors(diags) {
		res.failed = true
		return res
	}

	interp := runtime.NewInterpreter(&res.stdout,
		runtime.WithLogger(logger),
		runtime.WithMaxDepth(a.cfg.Run.MaxDepth),
	)
	val, err := interp.Run(prog)
	if err != nil {
		fmt.Fprintf(&res.stderr, "%s: %v\n", filename, err)
		res.failed = true
		logger.Debug("run failed", "error", err)
		return res
	}
	if _, isUnit := val.(runtime.UnitVal); !isUnit {
		fmt.Fprintln(&res.stdout, runtime.Render(val))
	}
	return res
}
