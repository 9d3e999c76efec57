package runtime

import (
	"bang-lang/internal/ast"
	"bang-lang/internal/diag"
	"bang-lang/internal/lexer"
	"bang-lang/internal/parser"
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"
)

func parseSource(source string) (*ast.Program, error) {
	tokens, lexDiags := lexer.New(source).Tokenize()
	if len(lexDiags) > 0 {
		return nil, fmt.Errorf("lex error: %s", lexDiags[0])
	}
	prog, parseDiags := parser.New(tokens).ParseProgram()
	if diag.HasErrors(parseDiags) {
		return nil, fmt.Errorf("parse error: %s", parseDiags[0])
	}
	return prog, nil
}

// runProgram parses and evaluates source, returning captured output, the
// program result and any error.
func runProgram(source string, opts ...Option) (string, Value, error) {
	prog, err := parseSource(source)
	if err != nil {
		return "", nil, err
	}
	var buf bytes.Buffer
	interp := NewInterpreter(&buf, opts...)
	result, err := interp.Run(prog)
	return buf.String(), result, err
}

// runSource parses and executes source code, returning captured stdout and any error.
func runSource(source string) (string, error) {
	out, _, err := runProgram(source)
	return out, err
}

func expectOutput(t *testing.T, source, expected string) {
	t.Helper()
	out, err := runSource(source)
	if err != nil {
		t.Fatalf("runtime error: %v", err)
	}
	if strings.TrimRight(out, "\n") != strings.TrimRight(expected, "\n") {
		t.Errorf("output mismatch:\nexpected: %q\ngot:      %q", expected, out)
	}
}

// expectResult checks the rendered value of the program's last expression.
func expectResult(t *testing.T, source, expected string) {
	t.Helper()
	_, result, err := runProgram(source)
	if err != nil {
		t.Fatalf("runtime error: %v", err)
	}
	if got := Render(result); got != expected {
		t.Errorf("result mismatch:\nexpected: %s\ngot:      %s", expected, got)
	}
}

func expectError(t *testing.T, source, contains string) {
	t.Helper()
	_, err := runSource(source)
	if err == nil {
		t.Fatalf("expected error containing %q, got nil", contains)
	}
	if !strings.Contains(err.Error(), contains) {
		t.Errorf("expected error containing %q, got: %v", contains, err)
	}
}

// lit writes n as bang source; the language has no unary minus.
func lit(n int64) string {
	if n < 0 {
		return fmt.Sprintf("(0 - %d)", -n)
	}
	return fmt.Sprint(n)
}

// ---- Tests ----

func TestPrintLiteral(t *testing.T) {
	expectOutput(t, `print(42)`, "42\n")
}

func TestPrintString(t *testing.T) {
	expectOutput(t, `print("hello")`, "hello\n")
}

func TestPrintEachArgumentOnItsOwnLine(t *testing.T) {
	expectOutput(t, `print(1, "two", true)`, "1\ntwo\ntrue\n")
}

func TestPutIsPrint(t *testing.T) {
	expectOutput(t, `put(7)`, "7\n")
}

func TestPrintReturnsUnit(t *testing.T) {
	expectResult(t, `print(1)`, "()")
}

func TestPrintFunctionAndMap(t *testing.T) {
	expectOutput(t, "fun f(a, b)\n  a\nend\nprint(f)\nprint({b: 1, a: 2})",
		"<fun f(a, b)>\n{\"a\": 2, \"b\": 1}\n")
}

func TestArithmetic(t *testing.T) {
	expectOutput(t, `print(1 + 2 * 3)`, "7\n")
	expectOutput(t, `print((1 + 2) * 3)`, "9\n")
	expectOutput(t, `print(10 / 3)`, "3\n")
	expectOutput(t, `print((0 - 7) / 2)`, "-3\n")
	expectOutput(t, `print(2 ** 10)`, "1024\n")
	expectOutput(t, `print(2 ** 3 ** 2)`, "64\n")
	expectOutput(t, `print(5 ** 0)`, "1\n")
}

func TestArithmeticMatchesNativeOps(t *testing.T) {
	operands := []int64{-9, -2, -1, 0, 1, 3, 7, 12, 1 << 40}
	for _, a := range operands {
		for _, b := range operands {
			cases := map[string]int64{
				"+": a + b,
				"-": a - b,
				"*": a * b,
			}
			if b != 0 {
				cases["/"] = a / b
			}
			if b >= 0 && b < 16 {
				want := int64(1)
				for n := int64(0); n < b; n++ {
					want *= a
				}
				cases["**"] = want
			}
			for op, want := range cases {
				source := lit(a) + " " + op + " " + lit(b)
				_, result, err := runProgram(source)
				if err != nil {
					t.Fatalf("%s: %v", source, err)
				}
				if result != IntVal(want) {
					t.Errorf("%s: want %d, got %s", source, want, result.Inspect())
				}
			}
		}
	}
}

func TestLet(t *testing.T) {
	expectResult(t, "let x = 4\nx * x", "16")
	expectResult(t, "let x = 4", "4")
}

func TestEndToEndLet(t *testing.T) {
	expectResult(t, "let a = 3\nlet b = a * 2\na + b", "9")
}

func TestEndToEndFunction(t *testing.T) {
	expectResult(t, "fun add(x, y)\n x + y\nend\nadd(2, 3)", "5")
}

func TestLetInSiblingScopeIsInvisible(t *testing.T) {
	expectError(t, "let y = let x = 5\nx", "identifier x is not defined")
	expectError(t, "(let a = 1) + a", "identifier a is not defined")
	expectError(t, "print(let z = 3)\nz", "identifier z is not defined")
}

func TestLetVisibleInNestedScope(t *testing.T) {
	expectResult(t, "let x = 2\nlet y = (x + 1) * x\ny", "6")
}

func TestShadowingInFunction(t *testing.T) {
	expectOutput(t, `
let x = 1
fun f()
  let x = 2
  x
end
print(f())
print(x)
`, "2\n1\n")
}

func TestRebindingAtTopLevel(t *testing.T) {
	expectResult(t, "let x = 1\nlet x = x + 1\nx", "2")
}

func TestFunctionDefinitionYieldsUnit(t *testing.T) {
	expectResult(t, "fun f()\n  1\nend", "()")
}

func TestEmptyProgramYieldsUnit(t *testing.T) {
	expectResult(t, "", "()")
	expectResult(t, "# nothing here\n\n", "()")
}

func TestFactorial(t *testing.T) {
	expectResult(t, `
fun fact(n)
  match n
    0 => 1
    _ => n * fact(n - 1)
  end
end
fact(5)
`, "120")
}

func TestFunctionBodyReturnsLastExpression(t *testing.T) {
	expectResult(t, `
fun f(a)
  let b = a * 2
  let c = b + 1
  c
end
f(10)
`, "21")
}

func TestClosureSeesLaterTopLevelBinding(t *testing.T) {
	expectResult(t, "fun f()\n  later\nend\nlet later = 7\nf()", "7")
}

func TestClosureIsLexical(t *testing.T) {
	expectResult(t, `
let base = 10
fun get()
  base
end
fun caller()
  let base = 99
  get()
end
caller()
`, "10")
}

func TestFunctionParamsDoNotLeak(t *testing.T) {
	expectError(t, "fun f(p)\n  p\nend\nf(1)\np", "identifier p is not defined")
}

func TestNestedFunctionDefinition(t *testing.T) {
	expectResult(t, `
fun outer(n)
  fun inner(m)
    m + n
  end
  inner(1)
end
outer(41)
`, "42")
}

func TestMatchFirstBranchWins(t *testing.T) {
	expectResult(t, `
match 2
  2 => 10
  1 + 1 => 20
  _ => 30
end
`, "10")
}

func TestMatchDefault(t *testing.T) {
	expectResult(t, "match 7\n  1 => 1\n  _ => 30\nend", "30")
}

func TestMatchPatternExpression(t *testing.T) {
	expectResult(t, "let two = 2\nmatch 4\n  two * two => 1\n  _ => 0\nend", "1")
}

func TestMatchStopsEvaluatingPatterns(t *testing.T) {
	out, result, err := runProgram("match 1\n  1 => 1\n  print(99) => 2\n  _ => 3\nend")
	if err != nil {
		t.Fatalf("runtime error: %v", err)
	}
	if out != "" {
		t.Errorf("expected no output, got %q", out)
	}
	if result != IntVal(1) {
		t.Errorf("expected 1, got %s", result.Inspect())
	}
}

func TestMatchNonNumberSubjectFallsToDefault(t *testing.T) {
	expectResult(t, "match \"a\"\n  1 => 1\n  _ => 2\nend", "2")
}

func TestMatchWithoutBranch(t *testing.T) {
	expectError(t, "match 5\n  1 => 1\nend", "no match branch for 5")
}

func TestMapLiteral(t *testing.T) {
	expectResult(t, `{a: 1, b: 2 + 2}`, `{"a": 1, "b": 4}`)
}

func TestMapKeys(t *testing.T) {
	expectResult(t, `{"x": 1, 1 + 1: "two", 10: "ten"}`, `{2: "two", 10: "ten", "x": 1}`)
	expectResult(t, `{a: 1, a: 2}`, `{"a": 2}`)
	expectResult(t, `{}`, `{}`)
}

func TestFunctionValuesAsMapKeys(t *testing.T) {
	source := `
fun first()
  fun f()
    1
  end
  f
end
fun second()
  fun f()
    2
  end
  f
end
{first(): "a", second(): "b"}`
	expectResult(t, source, `{<fun f()>: "a", <fun f()>: "b"}`)
	expectResult(t, "fun h()\n  1\nend\nfun k()\n  h\nend\n{k(): 1, k(): 2}", `{<fun h()>: 2}`)
}

func TestMapBareIdentifierKeyIsLiteral(t *testing.T) {
	expectResult(t, "let a = 5\n{a: a}", `{"a": 5}`)
}

// ---- Errors ----

func TestUndefinedIdentifier(t *testing.T) {
	out, err := runSource(`print(1, y)`)
	if err == nil || !strings.Contains(err.Error(), "identifier y is not defined") {
		t.Fatalf("expected undefined identifier error, got %v", err)
	}
	if out != "" {
		t.Errorf("expected no partial output, got %q", out)
	}
}

func TestErrorHaltsLaterStatements(t *testing.T) {
	out, err := runSource("print(1)\nprint(y)\nprint(3)")
	if err == nil {
		t.Fatal("expected an error")
	}
	if out != "1\n" {
		t.Errorf("expected output %q, got %q", "1\n", out)
	}
}

func TestRuntimeErrors(t *testing.T) {
	tests := []struct {
		name     string
		source   string
		contains string
	}{
		{"undefined function", `foo(1)`, "function foo is not defined"},
		{"call non-function", "let f = 1\nf()", "cannot call value of type 'number'"},
		{"arity", "fun f(a)\n  a\nend\nf(1, 2)", "f() expects 1 arguments, got 2"},
		{"division by zero", `1 / 0`, "division by zero"},
		{"negative exponent", `2 ** (0 - 1)`, "negative exponent"},
		{"string operand", `"a" + 1`, "cannot apply '+' to 'string' and 'number'"},
		{"bool operand", `true * 2`, "cannot apply '*' to 'bool' and 'number'"},
		{"numeral overflow", `99999999999999999999`, "invalid numeral"},
		{"pattern error", "match 1\n  nope => 1\n  _ => 2\nend", "identifier nope is not defined"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expectError(t, tt.source, tt.contains)
		})
	}
}

func TestRunErrorCarriesSpan(t *testing.T) {
	_, err := runSource("let a = 1\n  b")
	var re *RunError
	if !errors.As(err, &re) {
		t.Fatalf("expected *RunError, got %T: %v", err, err)
	}
	if re.Span.Start.Line != 2 || re.Span.Start.Column != 3 {
		t.Errorf("expected position 2:3, got %s", re.Span.Start)
	}
	if !strings.HasPrefix(err.Error(), "runtime error at 2:3: ") {
		t.Errorf("unexpected message %q", err.Error())
	}
}

func TestMaxDepth(t *testing.T) {
	_, _, err := runProgram("fun loop(n)\n  loop(n + 1)\nend\nloop(0)", WithMaxDepth(50))
	if err == nil || !strings.Contains(err.Error(), "maximum call depth 50 exceeded in loop") {
		t.Fatalf("expected depth error, got %v", err)
	}
}

// ---- Interpreter API ----

func TestRootScopePersistsAcrossRuns(t *testing.T) {
	var buf bytes.Buffer
	interp := NewInterpreter(&buf)
	run := func(source string) (Value, error) {
		prog, err := parseSource(source)
		if err != nil {
			t.Fatal(err)
		}
		return interp.Run(prog)
	}

	if _, err := run("let a = 2"); err != nil {
		t.Fatal(err)
	}
	got, err := run("a * 3")
	if err != nil {
		t.Fatal(err)
	}
	if got != IntVal(6) {
		t.Errorf("expected 6, got %s", got.Inspect())
	}

	interp.Reset()
	if _, err := run("a"); err == nil {
		t.Error("expected a to be undefined after Reset")
	}
}

func TestBuiltinsShadowUserFunctions(t *testing.T) {
	expectOutput(t, "fun print(x)\n  0\nend\nprint(5)", "5\n")
}

func TestCustomBuiltins(t *testing.T) {
	reg := DefaultBuiltins().Clone()
	reg.Register("double", func(in *Interpreter, args []ast.Expr, env *Environment) (Value, error) {
		val, err := in.Eval(args[0], env.Child())
		if err != nil {
			return nil, err
		}
		return val.(IntVal) * 2, nil
	})

	out, result, err := runProgram("print(double(4))\ndouble(5)", WithBuiltins(reg))
	if err != nil {
		t.Fatalf("runtime error: %v", err)
	}
	if out != "8\n" || result != IntVal(10) {
		t.Errorf("got output %q result %s", out, result.Inspect())
	}
	if _, ok := DefaultBuiltins().Lookup("double"); ok {
		t.Error("Clone must not modify the default registry")
	}
}

func TestDebugLogging(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	_, _, err := runProgram("fun id(x)\n  x\nend\nid(1)", WithLogger(logger))
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"msg=\"define function\" name=id", "msg=call name=id depth=1"} {
		if !strings.Contains(logs.String(), want) {
			t.Errorf("expected log to contain %q, got:\n%s", want, logs.String())
		}
	}
}
