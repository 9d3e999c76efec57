package runtime

import (
	"bang-lang/internal/ast"
	"fmt"
	"maps"
	"slices"
	"sync"
)

// BuiltinFn implements a builtin. It receives its argument expressions
// unevaluated together with the caller's scope.
type BuiltinFn func(in *Interpreter, args []ast.Expr, env *Environment) (Value, error)

// Registry maps builtin names to implementations. Builtin names are
// resolved before user functions, so a user function with the same name
// can never be called.
type Registry struct {
	fns map[string]BuiltinFn
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{fns: make(map[string]BuiltinFn)}
}

// Register adds fn under name, replacing any earlier registration.
func (r *Registry) Register(name string, fn BuiltinFn) {
	r.fns[name] = fn
}

// Lookup returns the builtin registered under name.
func (r *Registry) Lookup(name string) (BuiltinFn, bool) {
	if r == nil {
		return nil, false
	}
	fn, ok := r.fns[name]
	return fn, ok
}

// Names returns the registered names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.fns))
	for name := range r.fns {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Clone returns an independent copy that can be extended.
func (r *Registry) Clone() *Registry {
	return &Registry{fns: maps.Clone(r.fns)}
}

var defaultBuiltins = sync.OnceValue(func() *Registry {
	r := NewRegistry()
	r.Register("print", builtinPrint)
	r.Register("put", builtinPrint)
	return r
})

// DefaultBuiltins returns the shared registry holding print and put.
// It must not be modified; Clone it to add builtins.
func DefaultBuiltins() *Registry {
	return defaultBuiltins()
}

// builtinPrint evaluates every argument, each in a fresh child scope, and
// only then writes one line per value. A failing argument prints nothing.
func builtinPrint(in *Interpreter, args []ast.Expr, env *Environment) (Value, error) {
	vals := make([]Value, len(args))
	for idx, arg := range args {
		val, err := in.Eval(arg, env.Child())
		if err != nil {
			return nil, err
		}
		vals[idx] = val
	}
	for _, val := range vals {
		fmt.Fprintln(in.output, val.String())
	}
	return Unit, nil
}
