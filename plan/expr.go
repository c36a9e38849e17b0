package plan

import (
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/dianpeng/dmlc/common"
	"github.com/dianpeng/dmlc/dml"
	"github.com/dianpeng/dmlc/hop"
	"golang.org/x/exp/slices"
)

var binaryOp = map[int]hop.Op{
	dml.TkAdd: hop.OpPlus,
	dml.TkSub: hop.OpMinus,
	dml.TkMul: hop.OpMult,
	dml.TkDiv: hop.OpDiv,
	dml.TkEq:  hop.OpEqual,
	dml.TkNe:  hop.OpNotEqual,
	dml.TkLt:  hop.OpLess,
	dml.TkLe:  hop.OpLessEqual,
	dml.TkGt:  hop.OpGreater,
	dml.TkGe:  hop.OpGreaterEqual,
}

func (self *Plan) planExpr(sc *scope, e dml.Expr) (hop.ID, error) {
	switch e.Type() {
	case dml.ExprConst:
		return self.Graph.NewLiteral(constLiteral(e.(*dml.Const))), nil

	case dml.ExprRef:
		return self.planRef(sc, e.(*dml.Ref))

	case dml.ExprParam:
		p := e.(*dml.Param)
		v, ok := self.Args[p.Name]
		if !ok {
			return -1, self.err(sc, p.CodeInfo, ErrMissingValue,
				"no value for command line parameter $%s", p.Name)
		}
		return self.Graph.NewLiteral(ArgLiteral(v)), nil

	case dml.ExprCall:
		return self.planCall(sc, e.(*dml.Call))

	case dml.ExprUnary:
		return self.planUnary(sc, e.(*dml.Unary))

	case dml.ExprBinary:
		b := e.(*dml.Binary)
		op, ok := binaryOp[b.Op]
		if !ok {
			return -1, errors.AssertionFailedf("unknown binary operator %s", dml.TokenName(b.Op))
		}
		lhs, err := self.planExpr(sc, b.L)
		if err != nil {
			return -1, err
		}
		rhs, err := self.planExpr(sc, b.R)
		if err != nil {
			return -1, err
		}
		return self.Graph.NewBinary(op, lhs, rhs), nil

	default:
		return -1, errors.AssertionFailedf("unknown expression type %d", e.Type())
	}
}

func constLiteral(c *dml.Const) hop.Literal {
	switch c.Ty {
	case dml.ConstBool:
		return hop.BoolLiteral(c.Bool)
	case dml.ConstInt:
		return hop.IntLiteral(c.Int)
	case dml.ConstReal:
		return hop.RealLiteral(c.Real)
	default:
		return hop.StringLiteral(c.String)
	}
}

// ArgLiteral converts a command line value into a literal. Numbers and
// booleans keep their type, quotes around strings are dropped.
func ArgLiteral(v string) hop.Literal {
	if i, err := strconv.ParseInt(v, 10, 64); err == nil {
		return hop.IntLiteral(i)
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return hop.RealLiteral(f)
	}
	switch v {
	case "TRUE", "true":
		return hop.BoolLiteral(true)
	case "FALSE", "false":
		return hop.BoolLiteral(false)
	default:
		break
	}
	if len(v) >= 2 && (v[0] == '"' || v[0] == '\'') && v[len(v)-1] == v[0] {
		v = v[1 : len(v)-1]
	}
	return hop.StringLiteral(v)
}

func (self *Plan) planRef(sc *scope, r *dml.Ref) (hop.ID, error) {
	if r.Namespace == "" {
		id, ok := sc.vars[r.Id]
		if !ok {
			return -1, self.err(sc, r.CodeInfo, ErrUndefinedVariable,
				"variable %s is not defined", r.Id)
		}
		return id, nil
	}

	ns, ok := sc.namespaces[r.Namespace]
	if !ok {
		return -1, self.err(sc, r.CodeInfo, ErrUnknownNamespace,
			"namespace %s is not sourced", r.Namespace)
	}
	id, ok := ns.vars[r.Id]
	if !ok {
		return -1, self.err(sc, r.CodeInfo, ErrUndefinedVariable,
			"variable %s is not defined", QualifiedName(r.Namespace, r.Id))
	}
	return id, nil
}

func (self *Plan) planUnary(sc *scope, u *dml.Unary) (hop.ID, error) {
	// signs in front of a numeric constant are folded
	if c, ok := u.Operand.(*dml.Const); ok && (c.Ty == dml.ConstInt || c.Ty == dml.ConstReal) {
		neg := false
		signs := true
		for _, o := range u.Op {
			switch o {
			case dml.TkSub:
				neg = !neg
				break
			case dml.TkAdd:
				break
			default:
				signs = false
				break
			}
		}
		if signs {
			l := constLiteral(c)
			if neg && c.Ty == dml.ConstInt {
				l = hop.IntLiteral(-c.Int)
			} else if neg {
				l = hop.RealLiteral(-c.Real)
			}
			return self.Graph.NewLiteral(l), nil
		}
	}

	id, err := self.planExpr(sc, u.Operand)
	if err != nil {
		return -1, err
	}

	for i := len(u.Op) - 1; i >= 0; i-- {
		switch u.Op[i] {
		case dml.TkSub:
			zero := self.Graph.NewLiteral(hop.IntLiteral(0))
			id = self.Graph.NewBinary(hop.OpMinus, zero, id)
			break
		case dml.TkNot:
			id = self.Graph.NewUnary(hop.OpNot, id)
			break
		default:
			break
		}
	}
	return id, nil
}

// ----------------------------------------------------------------------------
// Calls

func (self *Plan) planCall(sc *scope, c *dml.Call) (hop.ID, error) {
	if c.Namespace != "" {
		if _, ok := sc.namespaces[c.Namespace]; !ok {
			return -1, self.err(sc, c.CodeInfo, ErrUnknownNamespace,
				"namespace %s is not sourced", c.Namespace)
		}
		return -1, self.err(sc, c.CodeInfo, ErrUndefinedFunction,
			"function %s is not defined", QualifiedName(c.Namespace, c.Name))
	}

	b, ok := lookupBuiltin(c.Name)
	if !ok {
		return -1, self.err(sc, c.CodeInfo, ErrUndefinedFunction,
			"function %s is not defined", c.Name)
	}

	switch b.kind {
	case builtinRead:
		return self.planRead(sc, c, b)

	case builtinWrite:
		return -1, self.err(sc, c.CodeInfo, ErrInvalidStatement,
			"write does not produce a value")

	case builtinTranspose, builtinUnary, builtinAgg:
		if len(c.Args) != 1 || c.Args[0].Name != "" {
			return -1, self.err(sc, c.CodeInfo, ErrInvalidParameter,
				"%s expects exactly one positional argument", c.Name)
		}
		x, err := self.planExpr(sc, c.Args[0].Value)
		if err != nil {
			return -1, err
		}
		switch b.kind {
		case builtinTranspose:
			return self.Graph.NewTranspose(x), nil
		case builtinUnary:
			return self.Graph.NewUnary(b.op, x), nil
		default:
			return self.Graph.NewAggUnary(b.op, b.dir, x), nil
		}

	case builtinList:
		return self.planList(sc, c)

	default:
		return self.planParamBuiltin(sc, c, b)
	}
}

// bindArgs maps the arguments of c onto parameter names. Positional
// arguments take the names in positional, in order.
func (self *Plan) bindArgs(
	sc *scope,
	c *dml.Call,
	b *builtin,
	positional []string,
) (map[string]dml.Expr, error) {
	out := make(map[string]dml.Expr)

	for idx, a := range c.Args {
		name := a.Name
		if name == "" {
			if idx >= len(positional) {
				return nil, self.err(sc, c.CodeInfo, ErrInvalidParameter,
					"%s: too many positional arguments, use named arguments", c.Name)
			}
			name = positional[idx]
		} else if !slices.Contains(b.params, name) && !slices.Contains(positional, name) {
			return nil, self.err(sc, c.CodeInfo, ErrInvalidParameter,
				"%s: unknown parameter %q", c.Name, name)
		}

		if _, ok := out[name]; ok {
			return nil, self.err(sc, c.CodeInfo, ErrInvalidParameter,
				"%s: duplicate parameter %q", c.Name, name)
		}
		out[name] = a.Value
	}

	for _, r := range b.required {
		if _, ok := out[r]; !ok {
			return nil, self.err(sc, c.CodeInfo, ErrInvalidParameter,
				"%s: missing parameter %q", c.Name, r)
		}
	}
	return out, nil
}

// planParams plans the bound arguments in the parameter order of b.
func (self *Plan) planParams(
	sc *scope,
	b *builtin,
	args map[string]dml.Expr,
) ([]hop.Param, error) {
	out := []hop.Param{}
	for _, name := range b.params {
		e, ok := args[name]
		if !ok {
			continue
		}
		id, err := self.planExpr(sc, e)
		if err != nil {
			return nil, err
		}
		out = append(out, hop.Param{Name: name, Input: id})
	}
	return out, nil
}

// constString returns the compile time string value of e, ie a string
// constant or a command line parameter.
func (self *Plan) constString(e dml.Expr) (string, bool) {
	switch e.Type() {
	case dml.ExprConst:
		c := e.(*dml.Const)
		if c.Ty == dml.ConstStr {
			return c.String, true
		}
		break
	case dml.ExprParam:
		if v, ok := self.Args[e.(*dml.Param).Name]; ok {
			return ArgLiteral(v).String(), true
		}
		break
	default:
		break
	}
	return "", false
}

func (self *Plan) planRead(sc *scope, c *dml.Call, b *builtin) (hop.ID, error) {
	args, err := self.bindArgs(sc, c, b, []string{"file"})
	if err != nil {
		return -1, err
	}

	dt := common.DataMatrix
	vt := common.ValueFp64
	if e, ok := args["data_type"]; ok {
		x, ok := self.constString(e)
		if ok {
			dt, ok = common.ParseDataType(x)
		}
		if !ok || !dt.IsBlocked() {
			return -1, self.err(sc, c.CodeInfo, ErrInvalidParameter,
				"read: data_type must be a literal matrix, frame or tensor")
		}
		if dt.IsFrame() {
			vt = common.ValueString
		}
		delete(args, "data_type")
	}
	if e, ok := args["value_type"]; ok {
		x, ok := self.constString(e)
		if ok {
			vt, ok = common.ParseValueType(x)
		}
		if !ok {
			return -1, self.err(sc, c.CodeInfo, ErrInvalidParameter,
				"read: value_type must be a literal value type")
		}
		delete(args, "value_type")
	}

	params, err := self.planParams(sc, b, args)
	if err != nil {
		return -1, err
	}

	name := "read"
	if x, ok := self.constString(args["file"]); ok {
		name = x
	}
	return self.Graph.NewRead(name, dt, vt, params)
}

func (self *Plan) planWrite(sc *scope, c *dml.Call) (hop.ID, error) {
	if len(c.Args) < 2 {
		return -1, self.err(sc, c.CodeInfo, ErrInvalidParameter,
			"write expects at least 2 arguments, got %d", len(c.Args))
	}
	b, _ := lookupBuiltin("write")
	args, err := self.bindArgs(sc, c, b, []string{"target", "file"})
	if err != nil {
		return -1, err
	}
	if _, ok := args["file"]; !ok {
		return -1, self.err(sc, c.CodeInfo, ErrInvalidParameter, "write: missing parameter \"file\"")
	}
	targetExpr, ok := args["target"]
	if !ok {
		return -1, self.err(sc, c.CodeInfo, ErrInvalidParameter, "write: missing parameter \"target\"")
	}

	target, err := self.planExpr(sc, targetExpr)
	if err != nil {
		return -1, err
	}
	params, err := self.planParams(sc, b, args)
	if err != nil {
		return -1, err
	}
	return self.Graph.NewWrite(target, params)
}

func (self *Plan) planParamBuiltin(sc *scope, c *dml.Call, b *builtin) (hop.ID, error) {
	for _, a := range c.Args {
		if a.Name == "" {
			return -1, self.err(sc, c.CodeInfo, ErrInvalidParameter,
				"%s only accepts named arguments", c.Name)
		}
	}
	args, err := self.bindArgs(sc, c, b, nil)
	if err != nil {
		return -1, err
	}
	params, err := self.planParams(sc, b, args)
	if err != nil {
		return -1, err
	}

	dt, vt := b.dt, b.vt
	if dt == common.DataUnknown {
		dt = common.DataMatrix
		for _, p := range params {
			if p.Name == "target" {
				t := self.Graph.Node(p.Input)
				dt = t.DataType
				if dt.IsFrame() {
					vt = t.ValueType
				}
				break
			}
		}
	}
	return self.Graph.NewParamBuiltin(b.op, dt, vt, params)
}

// list accepts any arguments, positional ones are named by their position
func (self *Plan) planList(sc *scope, c *dml.Call) (hop.ID, error) {
	params := []hop.Param{}
	seen := make(map[string]bool)
	for idx, a := range c.Args {
		name := a.Name
		if name == "" {
			name = strconv.Itoa(idx + 1)
		}
		if seen[name] {
			return -1, self.err(sc, c.CodeInfo, ErrInvalidParameter,
				"list: duplicate parameter %q", name)
		}
		seen[name] = true

		id, err := self.planExpr(sc, a.Value)
		if err != nil {
			return -1, err
		}
		params = append(params, hop.Param{Name: name, Input: id})
	}
	return self.Graph.NewParamBuiltin(hop.OpList, common.DataList, common.ValueUnknown, params)
}

// QualifiedName renders a namespace qualified name the way scripts spell it.
func QualifiedName(ns, name string) string {
	if ns == "" {
		return name
	}
	return strings.Join([]string{ns, name}, "::")
}
