package runtime

import (
	"maps"
	"slices"
)

// Environment is a scope: a table of bindings plus an enclosing scope.
//
// Scopes come in two modes. Child returns a private scope whose parent is a
// frozen snapshot of the whole chain, so bindings made later in the original
// scopes are not visible through it. Enclose returns a scope whose parent is
// the live receiver; function closures and call frames are built this way so
// that a function always sees its own binding.
//
// Snapshots do not copy bindings eagerly. Freezing marks the live table as
// shared and the next Bind on the live scope copies it first.
type Environment struct {
	vars   map[string]Value
	parent *Environment
	frozen bool // immutable snapshot; its parent is frozen too
	shared bool // vars is aliased by a snapshot and must be copied before writing
	snap   *Environment
}

// NewEnvironment creates an empty root scope.
func NewEnvironment() *Environment {
	return &Environment{vars: make(map[string]Value)}
}

// Lookup resolves name from the innermost scope outward. The first match
// hides any outer binding of the same name.
func (e *Environment) Lookup(name string) (Value, bool) {
	for env := e; env != nil; env = env.parent {
		if val, ok := env.vars[name]; ok {
			return val, true
		}
	}
	return nil, false
}

// Bind inserts or overwrites name in this scope only; parents are never touched.
func (e *Environment) Bind(name string, value Value) {
	if e.frozen {
		panic("runtime: Bind on a frozen scope")
	}
	if e.shared {
		e.vars = maps.Clone(e.vars)
		e.shared = false
		e.snap = nil
	}
	e.vars[name] = value
}

// Child returns a new empty scope over a snapshot of e and its ancestors.
func (e *Environment) Child() *Environment {
	return &Environment{
		vars:   make(map[string]Value),
		parent: e.snapshot(),
	}
}

// Enclose returns a new empty scope whose parent is e itself. Bindings made
// in e after this call are visible through the result.
func (e *Environment) Enclose() *Environment {
	return &Environment{
		vars:   make(map[string]Value),
		parent: e,
	}
}

// snapshot freezes the chain from e upward. Frozen ancestors are reused as
// is, and a live scope with no bindings since its last snapshot returns the
// same frozen copy.
func (e *Environment) snapshot() *Environment {
	if e == nil || e.frozen {
		return e
	}
	parent := e.parent.snapshot()
	if e.shared && e.snap != nil && e.snap.parent == parent {
		return e.snap
	}
	e.shared = true
	e.snap = &Environment{
		vars:   e.vars,
		parent: parent,
		frozen: true,
	}
	return e.snap
}

// Names returns every name visible from e, sorted.
func (e *Environment) Names() []string {
	seen := make(map[string]struct{})
	for env := e; env != nil; env = env.parent {
		for name := range env.vars {
			seen[name] = struct{}{}
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
