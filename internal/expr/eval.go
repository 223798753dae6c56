// Package expr evaluates the arithmetic expressions that configuration
// strings may use to derive values from context variables. Expressions are
// parsed with the HCL syntax and evaluated by walking the AST directly,
// which keeps the grammar sandboxed: only literals, arithmetic, comparisons,
// indexing, tuple construction and an explicit function allow-list are
// understood. Scalars broadcast elementwise against vectors and matrices.
// Evaluation is pure and grants no access to the host environment.
package expr

import (
	"math"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/phylogen/internal/config"
	"github.com/vk/phylogen/internal/value"
)

// Parse turns an expression string into an AST. subject names the config
// entry the string came from, for error messages.
func Parse(text, subject string) (hclsyntax.Expression, error) {
	e, diags := hclsyntax.ParseExpression([]byte(text), subject, hcl.InitialPos)
	if diags.HasErrors() {
		return nil, config.NewError(config.ErrUnsafeExpression, subject, "cannot parse expression %q: %s", text, diags.Error())
	}
	return e, nil
}

// Eval evaluates an expression against the given bindings. Only identifiers
// present in binds may appear free; anything outside the supported grammar
// fails with an UnsafeExpression error.
func Eval(e hclsyntax.Expression, binds value.Context) (value.Value, error) {
	ev := &evaluator{binds: binds}
	return ev.eval(e)
}

// EvalString parses and evaluates in one step.
func EvalString(text, subject string, binds value.Context) (value.Value, error) {
	e, err := Parse(text, subject)
	if err != nil {
		return value.Value{}, err
	}
	return Eval(e, binds)
}

type evaluator struct {
	binds value.Context
}

func (ev *evaluator) eval(e hclsyntax.Expression) (value.Value, error) {
	switch node := e.(type) {
	case *hclsyntax.LiteralValueExpr:
		v, err := value.FromCty(node.Val)
		if err != nil {
			return value.Value{}, config.WrapError(config.ErrUnsafeExpression, "", err)
		}
		return v, nil

	case *hclsyntax.TemplateExpr:
		// A quoted string literal inside an expression, e.g. a state name.
		if !node.IsStringLiteral() {
			return value.Value{}, config.NewError(config.ErrUnsafeExpression, "", "string templates are not allowed in expressions")
		}
		v, _ := node.Value(nil)
		return value.Label(v.AsString()), nil

	case *hclsyntax.ParenthesesExpr:
		return ev.eval(node.Expression)

	case *hclsyntax.TupleConsExpr:
		return ev.evalTuple(node)

	case *hclsyntax.ScopeTraversalExpr:
		return ev.evalTraversal(node.Traversal)

	case *hclsyntax.RelativeTraversalExpr:
		base, err := ev.eval(node.Source)
		if err != nil {
			return value.Value{}, err
		}
		return ev.applyTraversal(base, node.Traversal)

	case *hclsyntax.IndexExpr:
		return ev.evalIndex(node)

	case *hclsyntax.UnaryOpExpr:
		return ev.evalUnary(node)

	case *hclsyntax.BinaryOpExpr:
		return ev.evalBinary(node)

	case *hclsyntax.FunctionCallExpr:
		return ev.evalCall(node)
	}

	return value.Value{}, config.NewError(config.ErrUnsafeExpression, "",
		"expression construct %T is not allowed", e)
}

func (ev *evaluator) evalTuple(node *hclsyntax.TupleConsExpr) (value.Value, error) {
	elems := make([]value.Value, len(node.Exprs))
	for i, sub := range node.Exprs {
		v, err := ev.eval(sub)
		if err != nil {
			return value.Value{}, err
		}
		elems[i] = v
	}
	return assembleSequence(elems)
}

// assembleSequence builds a vector from scalar elements or a matrix from
// vector elements.
func assembleSequence(elems []value.Value) (value.Value, error) {
	if len(elems) == 0 {
		return value.Vector(nil), nil
	}
	switch elems[0].Kind() {
	case value.KindScalar:
		vec := make([]float64, len(elems))
		for i, e := range elems {
			f, err := e.AsScalar()
			if err != nil {
				return value.Value{}, config.NewError(config.ErrShapeMismatch, "", "mixed element kinds in list: %s", err)
			}
			vec[i] = f
		}
		return value.Vector(vec), nil
	case value.KindVector:
		mat := make([][]float64, len(elems))
		width := -1
		for i, e := range elems {
			row, err := e.AsVector()
			if err != nil {
				return value.Value{}, config.NewError(config.ErrShapeMismatch, "", "mixed element kinds in list: %s", err)
			}
			if width == -1 {
				width = len(row)
			} else if len(row) != width {
				return value.Value{}, config.NewError(config.ErrShapeMismatch, "", "ragged matrix rows: %d vs %d", width, len(row))
			}
			mat[i] = append([]float64(nil), row...)
		}
		return value.Matrix(mat), nil
	}
	return value.Value{}, config.NewError(config.ErrShapeMismatch, "", "lists may contain only scalars or vectors")
}

func (ev *evaluator) evalTraversal(traversal hcl.Traversal) (value.Value, error) {
	root := traversal.RootName()
	bound, ok := ev.binds[root]
	if !ok {
		return value.Value{}, config.NewError(config.ErrUnknownVariable, root, "not declared in context")
	}
	return ev.applyTraversal(bound, traversal[1:])
}

func (ev *evaluator) applyTraversal(base value.Value, rest hcl.Traversal) (value.Value, error) {
	current := base
	for _, step := range rest {
		switch s := step.(type) {
		case hcl.TraverseIndex:
			if s.Key.Type() != cty.Number {
				return value.Value{}, config.NewError(config.ErrUnsafeExpression, "", "indexes must be numbers")
			}
			idx, _ := s.Key.AsBigFloat().Int64()
			next, err := current.Index(int(idx))
			if err != nil {
				return value.Value{}, config.WrapError(config.ErrShapeMismatch, "", err)
			}
			current = next
		case hcl.TraverseAttr:
			return value.Value{}, config.NewError(config.ErrUnsafeExpression, "",
				"attribute access %q is not allowed", s.Name)
		default:
			return value.Value{}, config.NewError(config.ErrUnsafeExpression, "", "unsupported traversal step")
		}
	}
	return current, nil
}

func (ev *evaluator) evalIndex(node *hclsyntax.IndexExpr) (value.Value, error) {
	coll, err := ev.eval(node.Collection)
	if err != nil {
		return value.Value{}, err
	}
	key, err := ev.eval(node.Key)
	if err != nil {
		return value.Value{}, err
	}
	idx, err := key.AsScalar()
	if err != nil {
		return value.Value{}, config.NewError(config.ErrUnsafeExpression, "", "indexes must be numbers: %s", err)
	}
	if idx != math.Trunc(idx) {
		return value.Value{}, config.NewError(config.ErrUnsafeExpression, "", "indexes must be integers (got %v)", idx)
	}
	out, err := coll.Index(int(idx))
	if err != nil {
		return value.Value{}, config.WrapError(config.ErrShapeMismatch, "", err)
	}
	return out, nil
}

func (ev *evaluator) evalUnary(node *hclsyntax.UnaryOpExpr) (value.Value, error) {
	operand, err := ev.eval(node.Val)
	if err != nil {
		return value.Value{}, err
	}
	switch node.Op {
	case hclsyntax.OpNegate:
		out, err := value.Map(operand, func(x float64) float64 { return -x })
		if err != nil {
			return value.Value{}, config.WrapError(config.ErrShapeMismatch, "", err)
		}
		return out, nil
	case hclsyntax.OpLogicalNot:
		b, err := operand.AsBool()
		if err != nil {
			return value.Value{}, config.WrapError(config.ErrShapeMismatch, "", err)
		}
		return value.Bool(!b), nil
	}
	return value.Value{}, config.NewError(config.ErrUnsafeExpression, "", "unsupported unary operator")
}

func (ev *evaluator) evalBinary(node *hclsyntax.BinaryOpExpr) (value.Value, error) {
	lhs, err := ev.eval(node.LHS)
	if err != nil {
		return value.Value{}, err
	}
	rhs, err := ev.eval(node.RHS)
	if err != nil {
		return value.Value{}, err
	}

	switch node.Op {
	case hclsyntax.OpAdd:
		return broadcast(lhs, rhs, func(x, y float64) float64 { return x + y })
	case hclsyntax.OpSubtract:
		return broadcast(lhs, rhs, func(x, y float64) float64 { return x - y })
	case hclsyntax.OpMultiply:
		return broadcast(lhs, rhs, func(x, y float64) float64 { return x * y })
	case hclsyntax.OpDivide:
		return broadcast(lhs, rhs, func(x, y float64) float64 { return x / y })
	case hclsyntax.OpModulo:
		return broadcast(lhs, rhs, math.Mod)

	case hclsyntax.OpEqual:
		return value.Bool(lhs.Equal(rhs)), nil
	case hclsyntax.OpNotEqual:
		return value.Bool(!lhs.Equal(rhs)), nil
	case hclsyntax.OpLessThan:
		return compare(lhs, rhs, func(x, y float64) bool { return x < y })
	case hclsyntax.OpLessThanOrEqual:
		return compare(lhs, rhs, func(x, y float64) bool { return x <= y })
	case hclsyntax.OpGreaterThan:
		return compare(lhs, rhs, func(x, y float64) bool { return x > y })
	case hclsyntax.OpGreaterThanOrEqual:
		return compare(lhs, rhs, func(x, y float64) bool { return x >= y })

	case hclsyntax.OpLogicalAnd:
		return logical(lhs, rhs, func(x, y bool) bool { return x && y })
	case hclsyntax.OpLogicalOr:
		return logical(lhs, rhs, func(x, y bool) bool { return x || y })
	}

	return value.Value{}, config.NewError(config.ErrUnsafeExpression, "", "unsupported binary operator")
}

func broadcast(a, b value.Value, f func(x, y float64) float64) (value.Value, error) {
	out, err := value.Broadcast(a, b, f)
	if err != nil {
		return value.Value{}, config.WrapError(config.ErrShapeMismatch, "", err)
	}
	return out, nil
}

// compare applies an ordering comparison. Orderings are defined on scalars
// only; elementwise array comparisons would produce boolean arrays, which no
// parameter role accepts.
func compare(a, b value.Value, f func(x, y float64) bool) (value.Value, error) {
	x, err := a.AsScalar()
	if err != nil {
		return value.Value{}, config.NewError(config.ErrShapeMismatch, "", "comparisons require scalar operands: %s", err)
	}
	y, err := b.AsScalar()
	if err != nil {
		return value.Value{}, config.NewError(config.ErrShapeMismatch, "", "comparisons require scalar operands: %s", err)
	}
	return value.Bool(f(x, y)), nil
}

func logical(a, b value.Value, f func(x, y bool) bool) (value.Value, error) {
	x, err := a.AsBool()
	if err != nil {
		return value.Value{}, config.NewError(config.ErrShapeMismatch, "", "logical operators require bool operands: %s", err)
	}
	y, err := b.AsBool()
	if err != nil {
		return value.Value{}, config.NewError(config.ErrShapeMismatch, "", "logical operators require bool operands: %s", err)
	}
	return value.Bool(f(x, y)), nil
}
