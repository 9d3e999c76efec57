// Package runtime implements the evaluator and runtime value system for bang.
package runtime

import (
	"bang-lang/internal/ast"
	"cmp"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync/atomic"
)

// Value is the interface for all runtime values. The set of implementations
// is closed; see rank for the full list.
type Value interface {
	TypeName() string
	String() string
	Inspect() string
}

// ---- Primitive values ----

// IntVal is a signed integer.
type IntVal int64

func (v IntVal) TypeName() string { return "number" }
func (v IntVal) String() string   { return strconv.FormatInt(int64(v), 10) }
func (v IntVal) Inspect() string  { return v.String() }

// StringVal is a string.
type StringVal string

func (v StringVal) TypeName() string { return "string" }
func (v StringVal) String() string   { return string(v) }
func (v StringVal) Inspect() string  { return strconv.Quote(string(v)) }

// BoolVal is true or false.
type BoolVal bool

func (v BoolVal) TypeName() string { return "bool" }
func (v BoolVal) String() string   { return strconv.FormatBool(bool(v)) }
func (v BoolVal) Inspect() string  { return v.String() }

// UnitVal is the absence of a meaningful result, e.g. of a function definition.
type UnitVal struct{}

func (v UnitVal) TypeName() string { return "unit" }
func (v UnitVal) String() string   { return "()" }
func (v UnitVal) Inspect() string  { return "()" }

// Unit is the single unit value.
var Unit Value = UnitVal{}

// ---- Callable values ----

// FuncVal is a user-defined function. Env is the captured scope shared by
// every call of the function; it already contains a binding of Name.
type FuncVal struct {
	Name   string
	Params []string
	Body   []ast.Expr
	Env    *Environment

	id uint64 // distinguishes definitions with the same signature
}

var funcIDs atomic.Uint64

// newFunc returns a function value with a fresh definition id.
func newFunc(name string, params []string, body []ast.Expr, env *Environment) *FuncVal {
	return &FuncVal{Name: name, Params: params, Body: body, Env: env, id: funcIDs.Add(1)}
}

func (v *FuncVal) TypeName() string { return "function" }
func (v *FuncVal) String() string   { return v.Inspect() }
func (v *FuncVal) Inspect() string {
	return fmt.Sprintf("<fun %s(%s)>", v.Name, strings.Join(v.Params, ", "))
}

// ---- Map value ----

// MapEntry is one key/value pair of a map.
type MapEntry struct {
	Key   Value
	Value Value
}

// MapVal is an immutable map whose entries are kept sorted by key under Compare.
type MapVal struct {
	entries []MapEntry
}

// NewMap builds a map from entries in order; a later duplicate key replaces
// the earlier value.
func NewMap(entries ...MapEntry) *MapVal {
	m := &MapVal{}
	for _, e := range entries {
		m.set(e.Key, e.Value)
	}
	return m
}

func (m *MapVal) set(key, value Value) {
	i, found := slices.BinarySearchFunc(m.entries, key, func(e MapEntry, k Value) int {
		return Compare(e.Key, k)
	})
	if found {
		m.entries[i].Value = value
		return
	}
	m.entries = slices.Insert(m.entries, i, MapEntry{Key: key, Value: value})
}

// Len returns the number of entries.
func (m *MapVal) Len() int { return len(m.entries) }

func (m *MapVal) TypeName() string { return "map" }
func (m *MapVal) String() string   { return m.Inspect() }
func (m *MapVal) Inspect() string {
	parts := make([]string, len(m.entries))
	for i, e := range m.entries {
		parts[i] = e.Key.Inspect() + ": " + e.Value.Inspect()
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// ============================================================
// Ordering
// ============================================================

// rank orders the variants relative to each other.
func rank(v Value) int {
	switch v.(type) {
	case UnitVal:
		return 0
	case BoolVal:
		return 1
	case IntVal:
		return 2
	case StringVal:
		return 3
	case *MapVal:
		return 4
	case *FuncVal:
		return 5
	default:
		panic(fmt.Sprintf("runtime: unknown value type %T", v))
	}
}

// Compare is a total order over all values: variants are ordered by kind
// (unit, bool, number, string, map, function) and structurally within a kind.
// Functions with the same name and parameters are told apart by the
// definition that created them; evaluating one declaration twice gives two
// distinct values.
func Compare(a, b Value) int {
	if c := cmp.Compare(rank(a), rank(b)); c != 0 {
		return c
	}
	switch av := a.(type) {
	case UnitVal:
		return 0
	case BoolVal:
		bv := b.(BoolVal)
		switch {
		case av == bv:
			return 0
		case !bool(av):
			return -1
		default:
			return 1
		}
	case IntVal:
		return cmp.Compare(av, b.(IntVal))
	case StringVal:
		return cmp.Compare(av, b.(StringVal))
	case *MapVal:
		bv := b.(*MapVal)
		for i := 0; i < len(av.entries) && i < len(bv.entries); i++ {
			if c := Compare(av.entries[i].Key, bv.entries[i].Key); c != 0 {
				return c
			}
			if c := Compare(av.entries[i].Value, bv.entries[i].Value); c != 0 {
				return c
			}
		}
		return cmp.Compare(len(av.entries), len(bv.entries))
	case *FuncVal:
		bv := b.(*FuncVal)
		if c := cmp.Compare(av.Name, bv.Name); c != 0 {
			return c
		}
		if c := slices.Compare(av.Params, bv.Params); c != 0 {
			return c
		}
		return cmp.Compare(av.id, bv.id)
	}
	return 0
}

// Equal reports whether a and b are structurally equal.
func Equal(a, b Value) bool {
	return Compare(a, b) == 0
}

// ============================================================
// Rendering
// ============================================================

// Render formats a program result the way the bang driver prints it: a bare
// integer for numbers and the debug form for everything else.
func Render(v Value) string {
	if n, ok := v.(IntVal); ok {
		return n.String()
	}
	return v.Inspect()
}
