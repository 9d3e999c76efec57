package ast

import (
	"bang-lang/internal/span"
)

// NodeToMap converts an AST node to a map suitable for JSON serialization.
// Every node carries a "kind" field naming its Go type.
func NodeToMap(node Node) map[string]any {
	if node == nil {
		return nil
	}

	switch n := node.(type) {
	case *Program:
		return m("Program", n.Span, "body", nodeSlice(n.Body))
	case *ExprStmt:
		return m("ExprStmt", n.Span, "expr", NodeToMap(n.Expr))
	case *EOI:
		return m("EOI", n.Span)

	case *Ident:
		return m("Ident", n.Span, "name", n.Name)
	case *NumLiteral:
		return m("NumLiteral", n.Span, "text", n.Text)
	case *StringLiteral:
		return m("StringLiteral", n.Span, "value", n.Value)
	case *BoolLiteral:
		return m("BoolLiteral", n.Span, "value", n.Value)
	case *BinaryExpr:
		return m("BinaryExpr", n.Span,
			"op", n.Op.String(),
			"left", NodeToMap(n.Left),
			"right", NodeToMap(n.Right))
	case *LetExpr:
		return m("LetExpr", n.Span, "name", n.Name, "value", NodeToMap(n.Value))
	case *FuncDecl:
		return m("FuncDecl", n.Span,
			"name", n.Name,
			"params", n.Params,
			"body", exprSlice(n.Body))
	case *CallExpr:
		return m("CallExpr", n.Span, "name", n.Name, "args", exprSlice(n.Args))
	case *MatchExpr:
		branches := make([]any, len(n.Branches))
		for i, b := range n.Branches {
			branches[i] = NodeToMap(b)
		}
		return m("MatchExpr", n.Span,
			"subject", NodeToMap(n.Subject),
			"branches", branches)
	case *Branch:
		result := m("Branch", n.Span, "body", NodeToMap(n.Body), "default", n.IsDefault())
		if n.Pattern != nil {
			result["pattern"] = NodeToMap(n.Pattern)
		}
		return result
	case *MapLiteral:
		entries := make([]any, len(n.Entries))
		for i, e := range n.Entries {
			entries[i] = map[string]any{
				"key":   NodeToMap(e.Key),
				"value": NodeToMap(e.Value),
			}
		}
		return m("MapLiteral", n.Span, "entries", entries)

	default:
		return map[string]any{"kind": "Unknown"}
	}
}

// ---- helpers ----

// m builds a map with kind, span, and extra key-value pairs.
func m(kind string, s span.Span, kvs ...any) map[string]any {
	result := map[string]any{
		"kind": kind,
		"span": spanToMap(s),
	}
	for i := 0; i+1 < len(kvs); i += 2 {
		result[kvs[i].(string)] = kvs[i+1]
	}
	return result
}

func spanToMap(s span.Span) map[string]any {
	return map[string]any{
		"start": map[string]any{
			"offset": s.Start.Offset,
			"line":   s.Start.Line,
			"column": s.Start.Column,
		},
		"end": map[string]any{
			"offset": s.End.Offset,
			"line":   s.End.Line,
			"column": s.End.Column,
		},
	}
}

func nodeSlice(nodes []Node) []any {
	result := make([]any, len(nodes))
	for i, n := range nodes {
		result[i] = NodeToMap(n)
	}
	return result
}

func exprSlice(exprs []Expr) []any {
	result := make([]any, len(exprs))
	for i, e := range exprs {
		result[i] = NodeToMap(e)
	}
	return result
}
