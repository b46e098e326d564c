package mdtemplate

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/expr-lang/expr/ast"
	expr_parser "github.com/expr-lang/expr/parser"
)

// Expr is a compiled data-constraint expression: a single comparison, an
// existence/truthiness check, or chains of those joined by "&&"/"||".
// Anything outside this shape (arithmetic, function calls, ternaries,
// pipes) is rejected at parse time with a ConstraintError. The text is
// parsed with expr-lang's parser and the AST is walked directly rather
// than compiled, since only this narrow shape is legal.
type Expr struct {
	raw  string
	node ast.Node
	refs map[string]string // synthesized identifier -> original "@id" token
}

var atRefPattern = regexp.MustCompile(`@[A-Za-z_][A-Za-z0-9_-]*`)

// ParseConstraintExpression parses a data-constraint attribute's value.
func ParseConstraintExpression(s string) (Expr, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Expr{}, newError(ConstraintError, "parse constraint", fmt.Errorf("empty expression"))
	}

	refs := make(map[string]string)
	i := 0
	rewritten := atRefPattern.ReplaceAllStringFunc(s, func(m string) string {
		name := fmt.Sprintf("__ref%d", i)
		i++
		refs[name] = strings.TrimPrefix(m, "@")
		return name
	})

	tree, err := expr_parser.Parse(rewritten)
	if err != nil {
		return Expr{}, newError(ConstraintError, "parse constraint", fmt.Errorf("%q: %w", s, err))
	}
	if err := validateConstraintShape(tree.Node); err != nil {
		return Expr{}, newError(ConstraintError, "parse constraint", fmt.Errorf("%q: %w", s, err))
	}

	return Expr{raw: s, node: tree.Node, refs: refs}, nil
}

// RawString returns the original, unrewritten constraint text.
func (e Expr) RawString() string { return e.raw }

var comparisonOps = map[string]bool{
	"==": true, "!=": true, ">=": true, "<=": true, ">": true, "<": true,
}

var logicalOps = map[string]bool{"&&": true, "||": true}

// validateConstraintShape restricts the AST to: logical &&/|| combining
// comparisons or truthiness checks, comparisons between two operands
// (paths, refs or literals, see isOperand), and bare operands as
// truthiness checks.
func validateConstraintShape(n ast.Node) error {
	switch v := n.(type) {
	case *ast.BinaryNode:
		if logicalOps[v.Operator] {
			if err := validateConstraintShape(v.Left); err != nil {
				return err
			}
			return validateConstraintShape(v.Right)
		}
		if comparisonOps[v.Operator] {
			if !isOperand(v.Left) || !isOperand(v.Right) {
				return fmt.Errorf("unsupported operand in comparison")
			}
			return nil
		}
		return fmt.Errorf("unsupported operator %q", v.Operator)
	default:
		if isOperand(n) {
			return nil
		}
		return fmt.Errorf("unsupported expression shape %T", n)
	}
}

// isOperand reports whether n is a path (identifier/member chain), an @id
// reference, or a literal, the only shapes the comparison grammar and
// existence checks accept as operands.
func isOperand(n ast.Node) bool {
	switch n := n.(type) {
	case *ast.IdentifierNode, *ast.MemberNode:
		return true
	case *ast.StringNode, *ast.IntegerNode, *ast.FloatNode, *ast.BoolNode, *ast.NilNode:
		return true
	case *ast.UnaryNode:
		return n.Operator == "-" && isOperand(n.Node)
	default:
		return false
	}
}

// Evaluate resolves e against data (the current scope's bound value) and
// scope (for @id lookups), returning the boolean result.
func (e Expr) Evaluate(data DataValue, scope *Scope) (bool, error) {
	if e.node == nil {
		return true, nil
	}
	v, err := evalNode(e.node, data, scope, e.refs)
	if err != nil {
		return false, newError(ConstraintError, "evaluate constraint", fmt.Errorf("%q: %w", e.raw, err))
	}
	return truthy(v), nil
}

func evalNode(n ast.Node, data DataValue, scope *Scope, refs map[string]string) (any, error) {
	switch v := n.(type) {
	case *ast.StringNode:
		return v.Value, nil
	case *ast.IntegerNode:
		return v.Value, nil
	case *ast.FloatNode:
		return v.Value, nil
	case *ast.BoolNode:
		return v.Value, nil
	case *ast.NilNode:
		return nil, nil
	case *ast.UnaryNode:
		inner, err := evalNode(v.Node, data, scope, refs)
		if err != nil {
			return nil, err
		}
		f, ok := toFloat(inner)
		if !ok {
			return nil, fmt.Errorf("unary - applied to non-numeric value")
		}
		return -f, nil
	case *ast.IdentifierNode:
		if orig, ok := refs[v.Value]; ok {
			rv, ok := scope.ResolveID(orig)
			if !ok {
				return nil, nil
			}
			return dataValueToAny(rv), nil
		}
		return resolvePathValue(data, []string{v.Value}), nil
	case *ast.MemberNode:
		path, ok := memberPath(v)
		if !ok {
			return nil, fmt.Errorf("unsupported member expression")
		}
		return resolvePathValue(data, path), nil
	case *ast.BinaryNode:
		if logicalOps[v.Operator] {
			left, err := evalNode(v.Left, data, scope, refs)
			if err != nil {
				return nil, err
			}
			if v.Operator == "&&" && !truthy(left) {
				return false, nil
			}
			if v.Operator == "||" && truthy(left) {
				return true, nil
			}
			right, err := evalNode(v.Right, data, scope, refs)
			if err != nil {
				return nil, err
			}
			return truthy(right), nil
		}
		left, err := evalNode(v.Left, data, scope, refs)
		if err != nil {
			return nil, err
		}
		right, err := evalNode(v.Right, data, scope, refs)
		if err != nil {
			return nil, err
		}
		return compare(v.Operator, left, right)
	default:
		return nil, fmt.Errorf("unsupported expression node %T", n)
	}
}

// memberPath flattens a chain of MemberNode/IdentifierNode into a dotted
// path, e.g. "author.name" -> []string{"author", "name"}.
func memberPath(n ast.Node) ([]string, bool) {
	switch v := n.(type) {
	case *ast.IdentifierNode:
		return []string{v.Value}, true
	case *ast.MemberNode:
		base, ok := memberPath(v.Node)
		if !ok {
			return nil, false
		}
		prop, ok := v.Property.(*ast.StringNode)
		if !ok {
			return nil, false
		}
		return append(base, prop.Value), true
	default:
		return nil, false
	}
}

func resolvePathValue(data DataValue, names []string) any {
	if data == nil {
		return nil
	}
	path := make([]PathSegment, len(names))
	for i, n := range names {
		path[i] = PathSegment{Name: n}
	}
	v, ok := data.GetValue(path)
	if !ok {
		return nil
	}
	return dataValueToAny(v)
}

// dataValueToAny collapses a DataValue down to a comparable Go scalar (or
// leaves it as a DataValue when it's a non-scalar, for existence checks).
func dataValueToAny(v DataValue) any {
	if v == nil {
		return nil
	}
	if s, ok := v.String(); ok {
		return s
	}
	return v
}

func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return x != "" && x != "0" && x != "false"
	case DataValue:
		if arr, ok := x.AsArray(); ok {
			return len(arr) > 0
		}
		return true
	default:
		f, ok := toFloat(v)
		return !ok || f != 0
	}
}

// compare applies op to two resolved operands. Absent (nil) operands are
// never an error: absent == absent holds, absent != present holds, and
// every ordered comparison involving an absent side is false. Missing
// data prunes, it does not fail the render.
func compare(op string, left, right any) (bool, error) {
	if left == nil || right == nil {
		switch op {
		case "==":
			return left == nil && right == nil, nil
		case "!=":
			return !(left == nil && right == nil), nil
		default:
			return false, nil
		}
	}
	if lf, lok := toFloat(left); lok {
		if rf, rok := toFloat(right); rok {
			return compareFloat(op, lf, rf), nil
		}
	}
	ls, lok := toStringOperand(left)
	rs, rok := toStringOperand(right)
	if lok && rok {
		return compareString(op, ls, rs)
	}
	return false, fmt.Errorf("cannot compare operands with %q", op)
}

func compareFloat(op string, l, r float64) bool {
	switch op {
	case "==":
		return l == r
	case "!=":
		return l != r
	case ">=":
		return l >= r
	case "<=":
		return l <= r
	case ">":
		return l > r
	case "<":
		return l < r
	}
	return false
}

func compareString(op string, l, r string) (bool, error) {
	switch op {
	case "==":
		return l == r, nil
	case "!=":
		return l != r, nil
	case ">=":
		return l >= r, nil
	case "<=":
		return l <= r, nil
	case ">":
		return l > r, nil
	case "<":
		return l < r, nil
	}
	return false, fmt.Errorf("unsupported operator %q for strings", op)
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int:
		return float64(x), true
	case string:
		f, err := strconv.ParseFloat(x, 64)
		return f, err == nil
	case DataValue:
		s, ok := x.String()
		if !ok {
			return 0, false
		}
		return toFloat(s)
	default:
		return 0, false
	}
}

func toStringOperand(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		return x, true
	case bool:
		return strconv.FormatBool(x), true
	case int:
		return strconv.Itoa(x), true
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), true
	case DataValue:
		return x.String()
	default:
		return "", false
	}
}
