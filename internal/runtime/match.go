package runtime

import (
	"bang-lang/internal/ast"
)

// evalMatch evaluates the subject once, then picks the first branch whose
// pattern evaluates to an equal number. A default branch matches anything
// it reaches. The chosen body runs in a fresh child scope.
func (i *Interpreter) evalMatch(e *ast.MatchExpr, env *Environment) (Value, error) {
	subject, err := i.Eval(e.Subject, env.Child())
	if err != nil {
		return nil, err
	}

	branch, err := i.selectBranch(subject, e.Branches, env)
	if err != nil {
		return nil, err
	}
	if branch == nil {
		return nil, runtimeErr(e.GetSpan(), "no match branch for %s", subject.Inspect())
	}
	return i.Eval(branch.Body, env.Child())
}

// selectBranch scans branches in source order. Patterns are evaluated
// lazily, only until a branch is chosen, and each in its own child scope.
// Only number subjects can equal a pattern.
func (i *Interpreter) selectBranch(subject Value, branches []*ast.Branch, env *Environment) (*ast.Branch, error) {
	n, isNum := subject.(IntVal)
	for idx, b := range branches {
		if b.IsDefault() {
			i.logger.Debug("match", "branch", idx, "default", true)
			return b, nil
		}
		pat, err := i.Eval(b.Pattern, env.Child())
		if err != nil {
			return nil, err
		}
		if p, ok := pat.(IntVal); ok && isNum && p == n {
			i.logger.Debug("match", "branch", idx, "value", int64(n))
			return b, nil
		}
	}
	return nil, nil
}
