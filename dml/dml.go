package dml

// Parse parses a whole script.
func Parse(src string) (*Program, error) {
	return NewParser(src).Parse()
}

// ParseExpr parses a single expression, used for command line values.
func ParseExpr(src string) (Expr, error) {
	p := NewParser(src)
	p.L.Next()
	e, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if p.L.Token != TkEof {
		return nil, p.err("dangling code after the expression")
	}
	return e, nil
}
