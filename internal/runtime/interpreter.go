package runtime

import (
	"bang-lang/internal/ast"
	"bang-lang/internal/span"
	"bang-lang/internal/token"
	"fmt"
	"io"
	"log/slog"
	"strconv"
)

// ============================================================
// Runtime error
// ============================================================

// RunError is the single runtime failure kind. Evaluation stops at the
// first one and it propagates unchanged to the caller of Run.
type RunError struct {
	Message string
	Span    span.Span
}

func (e *RunError) Error() string {
	if e.Span.IsZero() {
		return "runtime error: " + e.Message
	}
	return fmt.Sprintf("runtime error at %d:%d: %s", e.Span.Start.Line, e.Span.Start.Column, e.Message)
}

func runtimeErr(s span.Span, format string, args ...any) *RunError {
	return &RunError{Message: fmt.Sprintf(format, args...), Span: s}
}

// ============================================================
// Interpreter
// ============================================================

// DefaultMaxDepth bounds nested user function calls.
const DefaultMaxDepth = 10000

// Interpreter walks the AST and evaluates it against a root scope that
// persists across calls to Run.
type Interpreter struct {
	root     *Environment
	output   io.Writer
	builtins *Registry
	logger   *slog.Logger
	maxDepth int
	depth    int
}

// Option configures an Interpreter.
type Option func(*Interpreter)

// WithBuiltins replaces the builtin registry.
func WithBuiltins(r *Registry) Option {
	return func(i *Interpreter) {
		i.builtins = r
	}
}

// WithLogger sets the logger used for evaluation traces.
func WithLogger(l *slog.Logger) Option {
	return func(i *Interpreter) {
		i.logger = l
	}
}

// WithMaxDepth sets the maximum call depth; n <= 0 keeps the default.
func WithMaxDepth(n int) Option {
	return func(i *Interpreter) {
		if n > 0 {
			i.maxDepth = n
		}
	}
}

// NewInterpreter creates an interpreter that prints to output.
func NewInterpreter(output io.Writer, opts ...Option) *Interpreter {
	i := &Interpreter{
		root:     NewEnvironment(),
		output:   output,
		builtins: DefaultBuiltins(),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		maxDepth: DefaultMaxDepth,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Run evaluates every top-level expression of prog in order and returns the
// value of the last one. An empty program yields Unit.
func (i *Interpreter) Run(prog *ast.Program) (Value, error) {
	result := Unit
	for _, node := range prog.Body {
		switch n := node.(type) {
		case *ast.ExprStmt:
			val, err := i.Eval(n.Expr, i.root)
			if err != nil {
				return nil, err
			}
			result = val
		case *ast.EOI:
			continue
		default:
			return nil, runtimeErr(node.GetSpan(), "unexpected node type: %T", node)
		}
	}
	return result, nil
}

// Env returns the root scope (useful for REPL).
func (i *Interpreter) Env() *Environment {
	return i.root
}

// Reset discards every top-level binding.
func (i *Interpreter) Reset() {
	i.root = NewEnvironment()
}

// ============================================================
// Expression evaluation
// ============================================================

// Eval evaluates expr in env. Builtins use it to evaluate their arguments.
func (i *Interpreter) Eval(expr ast.Expr, env *Environment) (Value, error) {
	switch e := expr.(type) {
	case nil:
		return nil, runtimeErr(span.Span{}, "missing expression")
	case *ast.NumLiteral:
		return evalNum(e)
	case *ast.StringLiteral:
		return StringVal(e.Value), nil
	case *ast.BoolLiteral:
		return BoolVal(e.Value), nil
	case *ast.Ident:
		return evalIdent(e, env)
	case *ast.BinaryExpr:
		return i.evalBinary(e, env)
	case *ast.LetExpr:
		return i.evalLet(e, env)
	case *ast.FuncDecl:
		return i.evalFuncDecl(e, env)
	case *ast.CallExpr:
		return i.evalCall(e, env)
	case *ast.MatchExpr:
		return i.evalMatch(e, env)
	case *ast.MapLiteral:
		return i.evalMap(e, env)
	default:
		return nil, runtimeErr(expr.GetSpan(), "unhandled expression type: %T", expr)
	}
}

func evalNum(e *ast.NumLiteral) (Value, error) {
	n, err := strconv.ParseInt(e.Text, 10, 64)
	if err != nil {
		return nil, runtimeErr(e.GetSpan(), "invalid numeral %q", e.Text)
	}
	return IntVal(n), nil
}

func evalIdent(e *ast.Ident, env *Environment) (Value, error) {
	val, ok := env.Lookup(e.Name)
	if !ok {
		return nil, runtimeErr(e.GetSpan(), "identifier %s is not defined", e.Name)
	}
	return val, nil
}

func (i *Interpreter) evalBinary(e *ast.BinaryExpr, env *Environment) (Value, error) {
	left, err := i.Eval(e.Left, env.Child())
	if err != nil {
		return nil, err
	}
	right, err := i.Eval(e.Right, env.Child())
	if err != nil {
		return nil, err
	}

	l, leftOk := left.(IntVal)
	r, rightOk := right.(IntVal)
	if !leftOk || !rightOk {
		return nil, runtimeErr(e.GetSpan(), "cannot apply '%s' to '%s' and '%s'", e.Op, left.TypeName(), right.TypeName())
	}

	switch e.Op {
	case token.PLUS:
		return l + r, nil
	case token.MINUS:
		return l - r, nil
	case token.STAR:
		return l * r, nil
	case token.SLASH:
		if r == 0 {
			return nil, runtimeErr(e.GetSpan(), "division by zero")
		}
		return l / r, nil
	case token.POW:
		if r < 0 {
			return nil, runtimeErr(e.GetSpan(), "negative exponent %d", r)
		}
		return ipow(l, r), nil
	default:
		return nil, runtimeErr(e.GetSpan(), "unknown binary operator: %s", e.Op)
	}
}

// ipow computes base**exp by squaring. Overflow wraps.
func ipow(base, exp IntVal) IntVal {
	result := IntVal(1)
	for exp > 0 {
		if exp&1 == 1 {
			result *= base
		}
		base *= base
		exp >>= 1
	}
	return result
}

func (i *Interpreter) evalLet(e *ast.LetExpr, env *Environment) (Value, error) {
	val, err := i.Eval(e.Value, env.Child())
	if err != nil {
		return nil, err
	}
	env.Bind(e.Name, val)
	return val, nil
}

// evalFuncDecl binds the function in its own closure scope and in env.
// The closure is live, so a later rebinding of the name in the closure
// scope is what recursive calls see.
func (i *Interpreter) evalFuncDecl(e *ast.FuncDecl, env *Environment) (Value, error) {
	captured := env.Enclose()
	fn := newFunc(e.Name, e.Params, e.Body, captured)
	captured.Bind(e.Name, fn)
	env.Bind(e.Name, fn)
	i.logger.Debug("define function", "name", e.Name, "params", len(e.Params))
	return Unit, nil
}

func (i *Interpreter) evalCall(e *ast.CallExpr, env *Environment) (Value, error) {
	if builtin, ok := i.builtins.Lookup(e.Name); ok {
		return builtin(i, e.Args, env)
	}

	callee, ok := env.Lookup(e.Name)
	if !ok {
		return nil, runtimeErr(e.GetSpan(), "function %s is not defined", e.Name)
	}
	fn, ok := callee.(*FuncVal)
	if !ok {
		return nil, runtimeErr(e.GetSpan(), "cannot call value of type '%s'", callee.TypeName())
	}
	if len(e.Args) != len(fn.Params) {
		return nil, runtimeErr(e.GetSpan(), "%s() expects %d arguments, got %d", fn.Name, len(fn.Params), len(e.Args))
	}
	if len(fn.Body) == 0 {
		return nil, runtimeErr(e.GetSpan(), "function %s has an empty body", fn.Name)
	}

	frame := fn.Env.Enclose()
	for idx, arg := range e.Args {
		val, err := i.Eval(arg, env.Child())
		if err != nil {
			return nil, err
		}
		frame.Bind(fn.Params[idx], val)
	}
	frame.Bind(fn.Name, fn)

	if i.depth >= i.maxDepth {
		return nil, runtimeErr(e.GetSpan(), "maximum call depth %d exceeded in %s", i.maxDepth, fn.Name)
	}
	i.depth++
	defer func() { i.depth-- }()
	i.logger.Debug("call", "name", fn.Name, "depth", i.depth)

	var result Value
	for _, expr := range fn.Body {
		val, err := i.Eval(expr, frame)
		if err != nil {
			return nil, err
		}
		result = val
	}
	return result, nil
}

// evalMap evaluates entries in source order. A bare identifier key is taken
// literally as a string key; any other key expression is evaluated.
func (i *Interpreter) evalMap(e *ast.MapLiteral, env *Environment) (Value, error) {
	entries := make([]MapEntry, 0, len(e.Entries))
	for _, entry := range e.Entries {
		var key Value
		if id, ok := entry.Key.(*ast.Ident); ok {
			key = StringVal(id.Name)
		} else {
			k, err := i.Eval(entry.Key, env.Child())
			if err != nil {
				return nil, err
			}
			key = k
		}
		val, err := i.Eval(entry.Value, env.Child())
		if err != nil {
			return nil, err
		}
		entries = append(entries, MapEntry{Key: key, Value: val})
	}
	return NewMap(entries...), nil
}
