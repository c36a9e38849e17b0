package dml

import (
	"github.com/cockroachdb/errors"
)

// ErrSyntax marks every lexer and parser failure.
var ErrSyntax = errors.New("syntax error")

const (
	invalidOpPrec = -1
)

type Parser struct {
	L *Lexer
}

func newParser(xx string) *Parser {
	return &Parser{
		L: newLexer(xx),
	}
}

func NewParser(xx string) *Parser {
	return newParser(xx)
}

func (self *Parser) posStart() int {
	return self.L.TokenStart
}

func (self *Parser) posEnd() int {
	return self.L.Cursor
}

func (self *Parser) snippet(start, end int) string {
	if start >= end {
		start = end
	}
	return self.L.Source[start:end]
}

func (self *Parser) err(msg string) error {
	var err error
	if self.L.Token == TkError {
		err = errors.Newf("%s", self.L.Lexeme.Text)
	} else {
		err = errors.Newf("%s: %s", self.L.dinfo(), msg)
	}
	return errors.Mark(err, ErrSyntax)
}

func (self *Parser) expect(tk int) error {
	if self.L.Token == tk {
		self.L.Next()
		return nil
	} else {
		return self.err("unexpected token, expect " + TokenName(tk))
	}
}

func (self *Parser) currentCodeInfo(start int) CodeInfo {
	return CodeInfo{
		Start:   start,
		End:     self.posEnd(),
		Snippet: self.snippet(start, self.posEnd()),
	}
}

// peekAssign reports whether the token after the current one is '=', the
// lexer state is restored afterwards.
func (self *Parser) peekAssign() bool {
	saved := *self.L
	ok := self.L.Next() == TkAssign
	*self.L = saved
	return ok
}

// tryArgName consumes `name =` in front of a named argument, names may be
// dotted like empty.return. Nothing is consumed when there is no name.
func (self *Parser) tryArgName() (string, bool) {
	if self.L.Token != TkId {
		return "", false
	}
	saved := *self.L
	name := self.L.Lexeme.Text
	self.L.Next()
	for self.L.Token == TkDot {
		if self.L.Next() != TkId {
			break
		}
		name = name + "." + self.L.Lexeme.Text
		self.L.Next()
	}
	if self.L.Token == TkAssign {
		self.L.Next()
		return name, true
	}
	*self.L = saved
	return "", false
}

func (self *Parser) Parse() (*Program, error) {
	p := &Program{}
	start := self.posStart()

	self.L.Next()
	for {
		for self.L.Token == TkSemicolon {
			self.L.Next()
		}
		if self.L.Token == TkEof {
			break
		}
		if self.L.Token == TkError {
			return nil, self.err("")
		}

		stmt, err := self.parseStmt()
		if err != nil {
			return nil, err
		}
		p.Statements = append(p.Statements, stmt)
	}

	p.CodeInfo = self.currentCodeInfo(start)
	return p, nil
}

func (self *Parser) parseStmt() (Stmt, error) {
	switch self.L.Token {
	case TkSource:
		return self.parseSource()

	case TkHint:
		start := self.posStart()
		hint := self.L.Lexeme.Text
		if hint != "local" && hint != "dist" {
			return nil, self.err("unknown backend hint @" + hint + ", expect @local or @dist")
		}
		self.L.Next()
		if self.L.Token != TkId && self.L.Token != TkParam {
			return nil, self.err("backend hint must be followed by an assignment")
		}
		return self.parseAssign(hint, start)

	case TkId, TkParam:
		if self.peekAssign() {
			return self.parseAssign("", self.posStart())
		}
		break

	default:
		break
	}

	start := self.posStart()
	expr, err := self.parseExpr()
	if err != nil {
		return nil, err
	}
	return &ExprStmt{
		Value:    expr,
		CodeInfo: self.currentCodeInfo(start),
	}, nil
}

// source("path") as ns
func (self *Parser) parseSource() (Stmt, error) {
	start := self.posStart()
	self.L.Next()

	if err := self.expect(TkLPar); err != nil {
		return nil, err
	}
	if self.L.Token != TkStr {
		return nil, self.err("source expects a string literal path")
	}
	path := self.L.Lexeme.Text
	self.L.Next()
	if err := self.expect(TkRPar); err != nil {
		return nil, err
	}
	if err := self.expect(TkAs); err != nil {
		return nil, err
	}
	if self.L.Token != TkId {
		return nil, self.err("source expects a namespace name after as")
	}
	ns := self.L.Lexeme.Text
	self.L.Next()

	return &Source{
		Path:      path,
		Namespace: ns,
		CodeInfo:  self.currentCodeInfo(start),
	}, nil
}

func (self *Parser) parseAssign(hint string, start int) (Stmt, error) {
	target := self.L.Lexeme.Text
	if self.L.Token == TkParam {
		target = "$" + target
	}
	self.L.Next()

	if err := self.expect(TkAssign); err != nil {
		return nil, err
	}

	value, err := self.parseExpr()
	if err != nil {
		return nil, err
	}

	return &Assign{
		Hint:     hint,
		Target:   target,
		Value:    value,
		CodeInfo: self.currentCodeInfo(start),
	}, nil
}

// ----------------------------------------------------------------------------
// Expression

func (self *Parser) parseExpr() (Expr, error) {
	return self.doParseBin(0)
}

func (self *Parser) binPrec(tk int) int {
	switch tk {
	case TkEq, TkNe:
		return 0
	case TkLt, TkLe, TkGt, TkGe:
		return 1
	case TkAdd, TkSub:
		return 2
	case TkMul, TkDiv:
		return 3
	default:
		return invalidOpPrec
	}
}

func (self *Parser) doParseBin(prec int) (Expr, error) {
	start := self.posStart()
	lhs, err := self.parseUnary()
	if err != nil {
		return nil, err
	}
	return self.doParseBinRest(lhs, prec, start)
}

// precedence climbing, all binary operators are left associative
func (self *Parser) doParseBinRest(lhs Expr,
	prec int,
	start int,
) (Expr, error) {

	for {
		tk := self.L.Token
		nextPrec := self.binPrec(tk)

		if nextPrec == invalidOpPrec {
			break
		} else if nextPrec < prec {
			break
		}

		self.L.Next() // eat the operator token

		rhs, err := self.doParseBin(nextPrec + 1)
		if err != nil {
			return nil, err
		}
		lhs = &Binary{
			Op:       tk,
			L:        lhs,
			R:        rhs,
			CodeInfo: self.currentCodeInfo(start),
		}
	}

	return lhs, nil
}

func (self *Parser) parseUnary() (Expr, error) {
	opList := []int{}

	start := self.posStart()

	for {
		cur := self.L.Token
		if cur == TkAdd || cur == TkSub || cur == TkNot {
			opList = append(opList, cur)
			self.L.Next()
		} else {
			break
		}
	}

	expr, err := self.parseAtomic()
	if err != nil {
		return nil, err
	}

	if len(opList) > 0 {
		return &Unary{
			Op:       opList,
			Operand:  expr,
			CodeInfo: self.currentCodeInfo(start),
		}, nil
	} else {
		return expr, nil
	}
}

func (self *Parser) parseConstExpr() *Const {
	start := self.posStart()
	c := &Const{}

	switch self.L.Token {
	case TkTrue:
		c.Ty = ConstBool
		c.Bool = true
		break
	case TkFalse:
		c.Ty = ConstBool
		c.Bool = false
		break
	case TkInt:
		c.Ty = ConstInt
		c.Int = self.L.Lexeme.Int
		break
	case TkReal:
		c.Ty = ConstReal
		c.Real = self.L.Lexeme.Real
		break
	default:
		c.Ty = ConstStr
		c.String = self.L.Lexeme.Text
		break
	}

	self.L.Next()
	c.CodeInfo = self.currentCodeInfo(start)
	return c
}

// parseName parses identifier, ns::identifier and dotted names like
// lower.tri
func (self *Parser) parseName() (string, string, error) {
	name := self.L.Lexeme.Text
	ns := ""
	self.L.Next()

	if self.L.Token == TkDColon {
		self.L.Next()
		if self.L.Token != TkId {
			return "", "", self.err("expect identifier after namespace separator")
		}
		ns = name
		name = self.L.Lexeme.Text
		self.L.Next()
	}

	for self.L.Token == TkDot {
		self.L.Next()
		if self.L.Token != TkId {
			return "", "", self.err("expect identifier after '.'")
		}
		name = name + "." + self.L.Lexeme.Text
		self.L.Next()
	}
	return ns, name, nil
}

func (self *Parser) parseAtomic() (Expr, error) {
	start := self.posStart()

	switch self.L.Token {
	case TkTrue, TkFalse, TkInt, TkReal, TkStr:
		return self.parseConstExpr(), nil

	case TkParam:
		p := &Param{
			Name: self.L.Lexeme.Text,
		}
		self.L.Next()
		p.CodeInfo = self.currentCodeInfo(start)
		return p, nil

	case TkId:
		ns, name, err := self.parseName()
		if err != nil {
			return nil, err
		}
		if self.L.Token == TkLPar {
			return self.parseCall(ns, name, start)
		}
		return &Ref{
			Namespace: ns,
			Id:        name,
			CodeInfo:  self.currentCodeInfo(start),
		}, nil

	case TkLPar:
		self.L.Next()
		expr, err := self.parseExpr()
		if err != nil {
			return nil, err
		}
		if err := self.expect(TkRPar); err != nil {
			return nil, err
		}
		return expr, nil

	default:
		return nil, self.err("unexpected token " + TokenName(self.L.Token) + " in expression")
	}
}

func (self *Parser) parseCall(ns, name string, start int) (Expr, error) {
	call := &Call{
		Namespace: ns,
		Name:      name,
	}
	self.L.Next() // (

	if self.L.Token == TkRPar {
		self.L.Next()
		call.CodeInfo = self.currentCodeInfo(start)
		return call, nil
	}

	for {
		arg := &Arg{}
		if name, ok := self.tryArgName(); ok {
			arg.Name = name
		}

		v, err := self.parseExpr()
		if err != nil {
			return nil, err
		}
		arg.Value = v
		call.Args = append(call.Args, arg)

		if self.L.Token == TkComma {
			self.L.Next()
		} else if self.L.Token == TkRPar {
			self.L.Next()
			break
		} else {
			return nil, self.err("expect ',' or ')' in argument list")
		}
	}

	call.CodeInfo = self.currentCodeInfo(start)
	return call, nil
}
