package dml

import (
	"bytes"
	"fmt"
	"strconv"
	"unicode"
	"unicode/utf8"
)

const (
	// Literal
	TkTrue = iota
	TkFalse
	TkInt
	TkReal
	TkStr
	TkId
	TkParam // $name, a command line parameter
	TkHint  // @local, @dist

	// Keywords
	TkSource
	TkAs

	// Punctuation
	TkComma
	TkSemicolon
	TkDColon
	TkAssign
	TkDot

	TkLPar
	TkRPar

	TkAdd
	TkSub
	TkMul
	TkDiv

	TkLt
	TkLe
	TkGt
	TkGe
	TkEq
	TkNe

	TkNot

	TkError
	TkEof
)

func TokenName(tk int) string {
	switch tk {
	case TkTrue:
		return "TRUE"
	case TkFalse:
		return "FALSE"
	case TkInt:
		return "int"
	case TkReal:
		return "real"
	case TkStr:
		return "string"
	case TkId:
		return "identifier"
	case TkParam:
		return "$param"
	case TkHint:
		return "@hint"
	case TkSource:
		return "source"
	case TkAs:
		return "as"
	case TkComma:
		return ","
	case TkSemicolon:
		return ";"
	case TkDColon:
		return "::"
	case TkAssign:
		return "="
	case TkDot:
		return "."
	case TkLPar:
		return "("
	case TkRPar:
		return ")"
	case TkAdd:
		return "+"
	case TkSub:
		return "-"
	case TkMul:
		return "*"
	case TkDiv:
		return "/"
	case TkLt:
		return "<"
	case TkLe:
		return "<="
	case TkGt:
		return ">"
	case TkGe:
		return ">="
	case TkEq:
		return "=="
	case TkNe:
		return "!="
	case TkNot:
		return "!"
	case TkEof:
		return "<eof>"
	default:
		return "<error>"
	}
}

type Lexeme struct {
	Text string
	Int  int64
	Real float64
}

// Lexer is a plain value, copying it saves the scanning state which the
// parser uses for its one statement of lookahead.
type Lexer struct {
	Source     string
	Cursor     int
	TokenStart int // offset of the current token
	Token      int
	Lexeme     Lexeme
}

func (self *Lexer) nextRune() (rune, int) {
	if self.Cursor >= len(self.Source) {
		return utf8.RuneError, 0
	}
	return utf8.DecodeRuneInString(self.Source[self.Cursor:])
}

func (self *Lexer) nextRune2() rune {
	if self.Cursor+1 >= len(self.Source) {
		return utf8.RuneError
	}
	r, _ := utf8.DecodeRuneInString(self.Source[self.Cursor+1:])
	return r
}

func (self *Lexer) yield(tk int, sz int) int {
	self.Token = tk
	self.Cursor += sz
	return tk
}

func (self *Lexer) eof() int {
	self.Token = TkEof
	return TkEof
}

// Position returns the line and column of a byte offset of source, both
// starting from 1.
func Position(source string, where int) (int, int) {
	line := 1
	col := 1

	for idx, r := range source {
		if idx >= where {
			break
		}
		if r == '\n' {
			line++
			col = 1
		} else {
			col++
		}
	}
	return line, col
}

// DebugInfo formats the diagnostic position of a byte offset of source.
func DebugInfo(source string, where int) string {
	line, col := Position(source, where)
	return fmt.Sprintf("around position(%d: %d)", line, col)
}

func (self *Lexer) dinfo() string {
	return DebugInfo(self.Source, self.Cursor)
}

func (self *Lexer) err(msg string) int {
	self.Lexeme.Text = fmt.Sprintf("%s: %s", self.dinfo(), msg)
	self.Token = TkError
	return TkError
}

func (self *Lexer) errE(err error) int {
	return self.err(err.Error())
}

func (self *Lexer) errUtf8() int {
	return self.err("invalid utf8 character")
}

func (self *Lexer) lexLineComment() bool {
	for {
		r, sz := self.nextRune()
		if r == utf8.RuneError {
			if sz == 0 {
				return true // reaching end of the file
			}
			self.errUtf8()
			return false
		}
		self.Cursor += sz
		if r == '\n' {
			break
		}
	}
	return true
}

func (self *Lexer) lexBlockComment() bool {
	for {
		r, sz := self.nextRune()
		if r == utf8.RuneError {
			if sz == 0 {
				self.err("block comment is not closed properly")
			} else {
				self.errUtf8()
			}
			return false
		}
		if r == '*' && self.nextRune2() == '/' {
			self.Cursor += 2
			break
		}
		self.Cursor += sz
	}
	return true
}

// 1) exponent or dot indicates a real number
// 2) otherwise treated as 64 bits integer
func (self *Lexer) lexNum(c rune) int {
	hasDot := false
	hasE := false

	buf := &bytes.Buffer{}
	buf.WriteRune(c)
	self.Cursor++

loop:
	for {
		r, sz := self.nextRune()
		if r == utf8.RuneError {
			if sz == 0 {
				break
			}
			return self.errUtf8()
		}

		switch r {
		case '.':
			if hasDot || hasE {
				break loop
			}
			hasDot = true
			buf.WriteRune(r)
			break

		case 'e', 'E':
			if hasE {
				break loop
			}
			hasE = true
			buf.WriteRune(r)
			if n := self.nextRune2(); n == '-' || n == '+' {
				buf.WriteRune(n)
				self.Cursor++
			}
			break

		case '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
			buf.WriteRune(r)
			break

		default:
			break loop
		}
		self.Cursor += sz
	}

	if hasDot || hasE {
		f, err := strconv.ParseFloat(buf.String(), 64)
		if err != nil {
			return self.errE(err)
		}
		self.Lexeme.Real = f
		self.Token = TkReal
		return TkReal
	}

	i, err := strconv.ParseInt(buf.String(), 10, 64)
	if err != nil {
		return self.errE(err)
	}
	self.Lexeme.Int = i
	self.Token = TkInt
	return TkInt
}

func (self *Lexer) lexStr(quote rune) int {
	buf := &bytes.Buffer{}
	self.Cursor++

	for {
		c, sz := self.nextRune()
		if c == utf8.RuneError {
			if sz == 0 {
				return self.err("string literal is not closed by quote properly")
			}
			return self.errUtf8()
		}

		if c == quote {
			self.Cursor += sz
			break
		}

		if c == '\\' {
			switch self.nextRune2() {
			case 't':
				buf.WriteRune('\t')
				break
			case 'n':
				buf.WriteRune('\n')
				break
			case 'r':
				buf.WriteRune('\r')
				break
			case '\'':
				buf.WriteRune('\'')
				break
			case '"':
				buf.WriteRune('"')
				break
			case '\\':
				buf.WriteRune('\\')
				break
			default:
				return self.err("unknown escape sequences inside of string literal")
			}
			self.Cursor += 2
			continue
		}

		buf.WriteRune(c)
		self.Cursor += sz
	}

	self.Lexeme.Text = buf.String()
	self.Token = TkStr
	return TkStr
}

func (self *Lexer) isWS(r rune) bool {
	switch r {
	case ' ', '\r', '\t', '\n', '\v', '\f':
		return true
	default:
		return false
	}
}

func (self *Lexer) isIdChar(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

func (self *Lexer) isIdLeadingChar(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

// scanId reads an identifier starting at the cursor, identifiers are case
// sensitive.
func (self *Lexer) scanId() string {
	start := self.Cursor
	for {
		c, sz := self.nextRune()
		if c == utf8.RuneError || !self.isIdChar(c) {
			break
		}
		self.Cursor += sz
	}
	return self.Source[start:self.Cursor]
}

func keyword(id string) (int, bool) {
	switch id {
	case "source":
		return TkSource, true
	case "as":
		return TkAs, true
	case "TRUE", "true":
		return TkTrue, true
	case "FALSE", "false":
		return TkFalse, true
	default:
		return TkError, false
	}
}

func (self *Lexer) lexId(c rune) int {
	if !self.isIdLeadingChar(c) {
		return self.err(fmt.Sprintf("unexpected character %q", c))
	}
	id := self.scanId()
	if tk, ok := keyword(id); ok {
		self.Token = tk
		return tk
	}
	self.Lexeme.Text = id
	self.Token = TkId
	return TkId
}

// lexPrefixed lexes $name and @name
func (self *Lexer) lexPrefixed(tk int) int {
	self.Cursor++
	c, _ := self.nextRune()
	if !self.isIdLeadingChar(c) {
		return self.err("expect an identifier after prefix")
	}
	self.Lexeme.Text = self.scanId()
	self.Token = tk
	return tk
}

func (self *Lexer) Next() int {
	if self.Token == TkEof || self.Token == TkError {
		return self.Token
	}
	return self.next()
}

func (self *Lexer) next() int {
	for {
		self.TokenStart = self.Cursor
		c, sz := self.nextRune()
		if c == utf8.RuneError {
			if sz == 0 {
				return self.eof()
			}
			return self.errUtf8()
		}

		switch c {
		case ',':
			return self.yield(TkComma, 1)
		case ';':
			return self.yield(TkSemicolon, 1)
		case '.':
			return self.yield(TkDot, 1)
		case '(':
			return self.yield(TkLPar, 1)
		case ')':
			return self.yield(TkRPar, 1)
		case '+':
			return self.yield(TkAdd, 1)
		case '-':
			return self.yield(TkSub, 1)
		case '*':
			return self.yield(TkMul, 1)

		case ':':
			if self.nextRune2() == ':' {
				return self.yield(TkDColon, 2)
			}
			return self.err("are you missing ':' for namespace separator?")

		case '/':
			cc := self.nextRune2()
			if cc == '/' {
				self.Cursor += 2
				if !self.lexLineComment() {
					return self.Token
				}
				break
			} else if cc == '*' {
				self.Cursor += 2
				if !self.lexBlockComment() {
					return self.Token
				}
				break
			}
			return self.yield(TkDiv, 1)

		case '#':
			self.Cursor++
			if !self.lexLineComment() {
				return self.Token
			}
			break

		case '=':
			if self.nextRune2() == '=' {
				return self.yield(TkEq, 2)
			}
			return self.yield(TkAssign, 1)

		case '>':
			if self.nextRune2() == '=' {
				return self.yield(TkGe, 2)
			}
			return self.yield(TkGt, 1)

		case '<':
			if self.nextRune2() == '=' {
				return self.yield(TkLe, 2)
			}
			return self.yield(TkLt, 1)

		case '!':
			if self.nextRune2() == '=' {
				return self.yield(TkNe, 2)
			}
			return self.yield(TkNot, 1)

		case '$':
			return self.lexPrefixed(TkParam)

		case '@':
			return self.lexPrefixed(TkHint)

		case '\'', '"':
			return self.lexStr(c)

		case '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
			return self.lexNum(c)

		default:
			if self.isWS(c) {
				self.Cursor += sz
				break
			}
			return self.lexId(c)
		}
	}
}

func newLexer(source string) *Lexer {
	return &Lexer{
		Source: source,
		Cursor: 0,
		Token:  -1,
	}
}
