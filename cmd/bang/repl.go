package main

import (
	"bang-lang/internal/diag"
	"bang-lang/internal/lexer"
	"bang-lang/internal/runtime"
	"bang-lang/internal/token"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"
)

// ---- ANSI colors ----

type palette struct {
	reset, red, green, cyan, gray, bold string
}

var ansiPalette = palette{
	reset: "\033[0m",
	red:   "\033[31m",
	green: "\033[32m",
	cyan:  "\033[36m",
	gray:  "\033[90m",
	bold:  "\033[1m",
}

// ---- repl command ----

func (a *app) cmdRepl() int {
	colors := palette{}
	if a.cfg.REPL.Color {
		colors = ansiPalette
	}
	prompt := colors.green + a.cfg.REPL.Prompt + colors.reset
	continuation := colors.gray + a.cfg.REPL.ContinuationPrompt + colors.reset

	rl, err := readline.NewEx(&readline.Config{
		Prompt:            prompt,
		HistoryFile:       a.cfg.HistoryPath(),
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,
	})
	if err != nil {
		fmt.Fprintf(a.stderr, "readline init failed: %v\n", err)
		return 1
	}
	defer rl.Close()

	fmt.Fprintf(rl.Stdout(), "%s%sbang REPL%s %s(type 'exit' or Ctrl+D to quit, ':env' to list bindings)%s\n\n",
		colors.bold, colors.cyan, colors.reset, colors.gray, colors.reset)

	session := newReplSession(rl.Stdout(), rl.Stderr(), colors,
		runtime.WithLogger(a.logger.With("source", "<repl>")),
		runtime.WithMaxDepth(a.cfg.Run.MaxDepth),
	)

	for {
		if session.pending() {
			rl.SetPrompt(continuation)
		} else {
			rl.SetPrompt(prompt)
		}

		line, err := rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) {
				if session.pending() {
					session.cancel()
					continue
				}
				fmt.Fprintf(rl.Stdout(), "\n%s(use 'exit' or Ctrl+D to quit)%s\n", colors.gray, colors.reset)
				continue
			}
			if errors.Is(err, io.EOF) {
				fmt.Fprintln(rl.Stdout())
			}
			break
		}

		if session.feed(line) {
			break
		}
	}
	return 0
}

// replSession accumulates input lines until every fun/match block is closed,
// then evaluates them on one interpreter whose bindings persist.
type replSession struct {
	interp *runtime.Interpreter
	out    io.Writer
	errOut io.Writer
	colors palette

	buf   strings.Builder
	depth int
}

func newReplSession(out, errOut io.Writer, colors palette, opts ...runtime.Option) *replSession {
	return &replSession{
		interp: runtime.NewInterpreter(out, opts...),
		out:    out,
		errOut: errOut,
		colors: colors,
	}
}

func (s *replSession) pending() bool { return s.depth > 0 }

// cancel drops a partially entered block.
func (s *replSession) cancel() {
	s.buf.Reset()
	s.depth = 0
}

// feed handles one line of input and reports whether the session should end.
func (s *replSession) feed(line string) bool {
	if !s.pending() {
		switch strings.TrimSpace(line) {
		case "exit", ":quit":
			return true
		case ":env":
			s.printEnv()
			return false
		case ":reset":
			s.interp.Reset()
			fmt.Fprintf(s.out, "%sbindings cleared%s\n", s.colors.gray, s.colors.reset)
			return false
		}
	}

	s.depth = max(s.depth+blockDelta(line), 0)
	s.buf.WriteString(line)
	s.buf.WriteString("\n")
	if s.pending() {
		return false
	}

	source := s.buf.String()
	s.buf.Reset()
	if strings.TrimSpace(source) == "" {
		return false
	}
	s.eval(source)
	return false
}

func (s *replSession) eval(source string) {
	prog, diags := parseSource(source)
	s.printDiags(diags)
	if diag.HasErrors(diags) {
		return
	}

	val, err := s.interp.Run(prog)
	if err != nil {
		fmt.Fprintf(s.errOut, "%serror: %s%s\n", s.colors.red, err, s.colors.reset)
		return
	}
	if _, isUnit := val.(runtime.UnitVal); !isUnit {
		fmt.Fprintln(s.out, runtime.Render(val))
	}
}

func (s *replSession) printEnv() {
	env := s.interp.Env()
	for _, name := range env.Names() {
		val, _ := env.Lookup(name)
		fmt.Fprintf(s.out, "%s = %s\n", name, runtime.Render(val))
	}
}

// printDiags prints diagnostics with red color for REPL display.
func (s *replSession) printDiags(diags []diag.Diagnostic) {
	for _, d := range diags {
		fmt.Fprintf(s.errOut, "%s%s%s\n", s.colors.red, d.String(), s.colors.reset)
	}
}

// blockDelta counts block openers minus "end" keywords on a line.
// Lexer errors are ignored here; they are reported once the input is evaluated.
func blockDelta(line string) int {
	tokens, _ := lexer.New(line).Tokenize()
	delta := 0
	for _, tok := range tokens {
		switch {
		case tok.Kind.OpensBlock():
			delta++
		case tok.Kind == token.KW_END:
			delta--
		}
	}
	return delta
}
