package dml

import (
	"bytes"
	"fmt"
	"strconv"
)

const (
	ConstBool = iota
	ConstStr
	ConstInt
	ConstReal
)

const (
	ExprConst = iota
	ExprRef
	ExprParam
	ExprCall
	ExprUnary
	ExprBinary
)

const (
	StmtSource = iota
	StmtAssign
	StmtExpr
)

type CodeInfo struct {
	Start   int
	End     int
	Snippet string
}

// Program is a parsed script, statements are kept in source order.
type Program struct {
	CodeInfo   CodeInfo
	Statements []Stmt
}

// Sources returns every import statement of the program.
func (self *Program) Sources() []*Source {
	out := []*Source{}
	for _, s := range self.Statements {
		if s.Type() == StmtSource {
			out = append(out, s.(*Source))
		}
	}
	return out
}

type Stmt interface {
	Type() int
	CInfo() CodeInfo
}

// source("path") as ns
type Source struct {
	CodeInfo  CodeInfo
	Path      string
	Namespace string
}

// [@hint] target = value. Target is prefixed with '$' when the left hand side
// is a command line parameter, which the semantic pass rejects.
type Assign struct {
	CodeInfo CodeInfo
	Hint     string
	Target   string
	Value    Expr
}

// expression statement, ie write(X, "x.csv")
type ExprStmt struct {
	CodeInfo CodeInfo
	Value    Expr
}

func (self *Source) Type() int         { return StmtSource }
func (self *Source) CInfo() CodeInfo   { return self.CodeInfo }
func (self *Assign) Type() int         { return StmtAssign }
func (self *Assign) CInfo() CodeInfo   { return self.CodeInfo }
func (self *ExprStmt) Type() int       { return StmtExpr }
func (self *ExprStmt) CInfo() CodeInfo { return self.CodeInfo }

// ----------------------------------------------------------------------------
// Expression

type Expr interface {
	Type() int
	CInfo() CodeInfo
}

type Const struct {
	CodeInfo CodeInfo
	Ty       int
	Bool     bool
	Int      int64
	Real     float64
	String   string
}

// Ref is a variable reference, Namespace is empty for local variables.
type Ref struct {
	CodeInfo  CodeInfo
	Namespace string
	Id        string
}

// $name
type Param struct {
	CodeInfo CodeInfo
	Name     string
}

// Arg is one call argument, Name is empty for positional arguments.
type Arg struct {
	Name  string
	Value Expr
}

type Call struct {
	CodeInfo  CodeInfo
	Namespace string
	Name      string // dotted for builtins like lower.tri
	Args      []*Arg
}

// HasNamedArgs reports whether any argument is passed by name.
func (self *Call) HasNamedArgs() bool {
	for _, a := range self.Args {
		if a.Name != "" {
			return true
		}
	}
	return false
}

type Unary struct {
	CodeInfo CodeInfo
	Op       []int
	Operand  Expr
}

type Binary struct {
	CodeInfo CodeInfo
	Op       int
	L        Expr
	R        Expr
}

func (self *Const) Type() int        { return ExprConst }
func (self *Const) CInfo() CodeInfo  { return self.CodeInfo }
func (self *Ref) Type() int          { return ExprRef }
func (self *Ref) CInfo() CodeInfo    { return self.CodeInfo }
func (self *Param) Type() int        { return ExprParam }
func (self *Param) CInfo() CodeInfo  { return self.CodeInfo }
func (self *Call) Type() int         { return ExprCall }
func (self *Call) CInfo() CodeInfo   { return self.CodeInfo }
func (self *Unary) Type() int        { return ExprUnary }
func (self *Unary) CInfo() CodeInfo  { return self.CodeInfo }
func (self *Binary) Type() int       { return ExprBinary }
func (self *Binary) CInfo() CodeInfo { return self.CodeInfo }

// ----------------------------------------------------------------------------
// Visitor

// VisitExprPostOrder calls fn on every node of expr, children first. A
// non-nil error stops the walk.
func VisitExprPostOrder(expr Expr, fn func(Expr) error) error {
	switch expr.Type() {
	case ExprCall:
		for _, a := range expr.(*Call).Args {
			if err := VisitExprPostOrder(a.Value, fn); err != nil {
				return err
			}
		}
		break

	case ExprUnary:
		if err := VisitExprPostOrder(expr.(*Unary).Operand, fn); err != nil {
			return err
		}
		break

	case ExprBinary:
		b := expr.(*Binary)
		if err := VisitExprPostOrder(b.L, fn); err != nil {
			return err
		}
		if err := VisitExprPostOrder(b.R, fn); err != nil {
			return err
		}
		break

	default:
		break
	}
	return fn(expr)
}

// ----------------------------------------------------------------------------
// Stringify the AST. We do not use method but use free function

func doPrintExprConst(c *Const, buf *bytes.Buffer) {
	switch c.Ty {
	case ConstBool:
		buf.WriteString(fmt.Sprintf("%t", c.Bool))
		break
	case ConstStr:
		buf.WriteString(fmt.Sprintf("%q", c.String))
		break
	case ConstInt:
		buf.WriteString(fmt.Sprintf("%d", c.Int))
		break
	case ConstReal:
		buf.WriteString(strconv.FormatFloat(c.Real, 'g', -1, 64))
		break
	default:
		panic("unreachable")
	}
}

func qualified(ns, id string) string {
	if ns == "" {
		return id
	}
	return ns + "::" + id
}

func doPrintExprCall(c *Call, buf *bytes.Buffer) {
	buf.WriteString(qualified(c.Namespace, c.Name))
	buf.WriteString("(")
	for idx, a := range c.Args {
		if idx > 0 {
			buf.WriteString(",")
		}
		if a.Name != "" {
			buf.WriteString(a.Name)
			buf.WriteString("=")
		}
		doPrintExpr(a.Value, buf)
	}
	buf.WriteString(")")
}

func doPrintExprUnary(u *Unary, buf *bytes.Buffer) {
	for _, o := range u.Op {
		buf.WriteString(TokenName(o))
	}
	doPrintExpr(u.Operand, buf)
}

func doPrintExprBinary(b *Binary, buf *bytes.Buffer) {
	buf.WriteString("(")
	doPrintExpr(b.L, buf)
	buf.WriteString(TokenName(b.Op))
	doPrintExpr(b.R, buf)
	buf.WriteString(")")
}

func doPrintExpr(expr Expr, buf *bytes.Buffer) {
	switch expr.Type() {
	case ExprConst:
		doPrintExprConst(expr.(*Const), buf)
		break
	case ExprRef:
		r := expr.(*Ref)
		buf.WriteString(qualified(r.Namespace, r.Id))
		break
	case ExprParam:
		buf.WriteString("$")
		buf.WriteString(expr.(*Param).Name)
		break
	case ExprCall:
		doPrintExprCall(expr.(*Call), buf)
		break
	case ExprUnary:
		doPrintExprUnary(expr.(*Unary), buf)
		break
	case ExprBinary:
		doPrintExprBinary(expr.(*Binary), buf)
		break
	default:
		panic("unreachable")
	}
}

func doPrintStmt(s Stmt, buf *bytes.Buffer) {
	switch s.Type() {
	case StmtSource:
		src := s.(*Source)
		buf.WriteString(fmt.Sprintf("source(%q) as %s", src.Path, src.Namespace))
		break
	case StmtAssign:
		a := s.(*Assign)
		if a.Hint != "" {
			buf.WriteString("@")
			buf.WriteString(a.Hint)
			buf.WriteString(" ")
		}
		buf.WriteString(a.Target)
		buf.WriteString(" = ")
		doPrintExpr(a.Value, buf)
		break
	case StmtExpr:
		doPrintExpr(s.(*ExprStmt).Value, buf)
		break
	default:
		panic("unreachable")
	}
}

func PrintExpr(expr Expr) string {
	if expr == nil {
		return ""
	}
	b := &bytes.Buffer{}
	doPrintExpr(expr, b)
	return b.String()
}

// PrintProgram prints one statement per line.
func PrintProgram(p *Program) string {
	b := &bytes.Buffer{}
	for _, s := range p.Statements {
		doPrintStmt(s, b)
		b.WriteString("\n")
	}
	return b.String()
}
