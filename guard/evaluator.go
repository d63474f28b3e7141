package guard

import (
	"strings"

	"github.com/expr-lang/expr"
)

// Evaluator evaluates a key expression against the arguments of a call.
// A nil result means the expression produced no value.
type Evaluator interface {
	Evaluate(expression string, vars map[string]any) (any, error)
}

// ExprEvaluator evaluates key expressions with expr-lang. Argument
// references are written "#name" and may use the full expr-lang syntax
// around them, e.g. "#user.ID", "#ids[0]" or "#a + '-' + #b".
type ExprEvaluator struct{}

func (ExprEvaluator) Evaluate(expression string, vars map[string]any) (any, error) {
	program, err := expr.Compile(stripReferences(expression))
	if err != nil {
		return nil, err
	}
	return expr.Run(program, vars)
}

// stripReferences removes the '#' marker in front of identifiers outside
// string literals.
func stripReferences(expression string) string {
	var b strings.Builder
	b.Grow(len(expression))

	var quote rune
	escaped := false
	runes := []rune(expression)
	for i, r := range runes {
		switch {
		case quote != 0:
			switch {
			case escaped:
				escaped = false
			case r == '\\':
				escaped = true
			case r == quote:
				quote = 0
			}
		case r == '"' || r == '\'' || r == '`':
			quote = r
		case r == '#' && i+1 < len(runes) && isIdentStart(runes[i+1]):
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func isIdentStart(r rune) bool {
	return r == '_' || r == '$' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}
