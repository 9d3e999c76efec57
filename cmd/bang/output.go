package main

import (
	"bang-lang/internal/diag"
	"bang-lang/internal/token"
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// ---- output helpers ----

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("JSON encoding failed: %w", err)
	}
	return nil
}

func printYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("YAML encoding failed: %w", err)
	}
	return enc.Close()
}

func printDiagsText(w io.Writer, filename string, diags []diag.Diagnostic) {
	for _, d := range diags {
		fmt.Fprintf(w, "%s: %s\n", filename, d)
	}
}

func diagsToSlice(diags []diag.Diagnostic) []map[string]any {
	result := make([]map[string]any, len(diags))
	for i, d := range diags {
		result[i] = map[string]any{
			"code":     d.Code,
			"severity": d.Severity.String(),
			"message":  d.Message,
			"line":     d.Span.Start.Line,
			"column":   d.Span.Start.Column,
			"offset":   d.Span.Start.Offset,
		}
		if d.Hint != "" {
			result[i]["hint"] = d.Hint
		}
	}
	return result
}

// ---- token output helpers ----

func printTokensText(w io.Writer, tokens []token.Token) {
	for _, tok := range tokens {
		fmt.Fprintf(w, "%-12s %-20s %d:%d\n", tok.Kind, tok.Lexeme, tok.Span.Start.Line, tok.Span.Start.Column)
	}
}

func printTokensJSON(w io.Writer, tokens []token.Token, diags []diag.Diagnostic) error {
	type tokenJSON struct {
		Kind   string `json:"kind"`
		Lexeme string `json:"lexeme"`
		Line   int    `json:"line"`
		Column int    `json:"column"`
		Offset int    `json:"offset"`
	}

	toks := make([]tokenJSON, 0, len(tokens))
	for _, tok := range tokens {
		toks = append(toks, tokenJSON{
			Kind:   tok.Kind.String(),
			Lexeme: tok.Lexeme,
			Line:   tok.Span.Start.Line,
			Column: tok.Span.Start.Column,
			Offset: tok.Span.Start.Offset,
		})
	}

	return printJSON(w, map[string]any{
		"tokens":      toks,
		"diagnostics": diagsToSlice(diags),
	})
}
