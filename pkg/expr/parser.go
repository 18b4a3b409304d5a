package expr

import "fmt"

type parser struct {
	toks []token
	pos  int
}

func parse(src string) (node, error) {
	toks, err := tokenize(src)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	if p.peek().kind == tokEOF {
		return nil, &SyntaxError{Pos: 0, Msg: "empty expression"}
	}
	n, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if tok := p.peek(); tok.kind != tokEOF {
		return nil, &SyntaxError{Pos: tok.pos, Msg: fmt.Sprintf("unexpected %q", tok.text)}
	}
	return n, nil
}

func (p *parser) peek() token {
	return p.toks[p.pos]
}

func (p *parser) advance() token {
	tok := p.toks[p.pos]
	if tok.kind != tokEOF {
		p.pos++
	}
	return tok
}

// operator returns the canonical operator at the cursor, folding word forms.
func (p *parser) operator() string {
	tok := p.peek()
	switch tok.kind {
	case tokOp:
		return tok.text
	case tokKeyword:
		switch tok.text {
		case "and":
			return "&&"
		case "or":
			return "||"
		case "not":
			return "!"
		case "in":
			return "in"
		}
	}
	return ""
}

func (p *parser) punct(s string) bool {
	tok := p.peek()
	return tok.kind == tokPunct && tok.text == s
}

func (p *parser) expect(s string) error {
	if !p.punct(s) {
		tok := p.peek()
		return &SyntaxError{Pos: tok.pos, Msg: fmt.Sprintf("expected %q", s)}
	}
	p.advance()
	return nil
}

func (p *parser) parseOr() (node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.operator() == "||" {
		p.advance()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &logical{op: "||", left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (node, error) {
	left, err := p.parseComparison()
	if err != nil {
		return nil, err
	}
	for p.operator() == "&&" {
		p.advance()
		right, err := p.parseComparison()
		if err != nil {
			return nil, err
		}
		left = &logical{op: "&&", left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseComparison() (node, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	for {
		op := p.operator()
		switch op {
		case "==", "!=", "<", "<=", ">", ">=", "in":
		default:
			return left, nil
		}
		p.advance()
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		left = &binary{op: op, left: left, right: right}
	}
}

func (p *parser) parseAdditive() (node, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for op := p.operator(); op == "+" || op == "-"; op = p.operator() {
		p.advance()
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = &binary{op: op, left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseMultiplicative() (node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for op := p.operator(); op == "*" || op == "/" || op == "%"; op = p.operator() {
		p.advance()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &binary{op: op, left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseUnary() (node, error) {
	if op := p.operator(); op == "!" || op == "-" {
		p.advance()
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &unary{op: op, x: x}, nil
	}
	return p.parsePostfix()
}

func (p *parser) parsePostfix() (node, error) {
	n, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for {
		switch {
		case p.punct("."):
			p.advance()
			tok := p.advance()
			if tok.kind != tokIdent && tok.kind != tokKeyword {
				return nil, &SyntaxError{Pos: tok.pos, Msg: "expected field name after '.'"}
			}
			n = &member{object: n, name: tok.text}
		case p.punct("["):
			p.advance()
			key, err := p.parseOr()
			if err != nil {
				return nil, err
			}
			if err := p.expect("]"); err != nil {
				return nil, err
			}
			n = &index{object: n, key: key}
		default:
			return n, nil
		}
	}
}

func (p *parser) parsePrimary() (node, error) {
	tok := p.advance()
	switch tok.kind {
	case tokNumber:
		return &literal{value: tok.num}, nil
	case tokString:
		return &literal{value: tok.text}, nil
	case tokIdent:
		return &ident{name: tok.text}, nil
	case tokKeyword:
		switch tok.text {
		case "true":
			return &literal{value: true}, nil
		case "false":
			return &literal{value: false}, nil
		case "null", "nil":
			return &literal{value: nil}, nil
		}
	case tokPunct:
		switch tok.text {
		case "(":
			n, err := p.parseOr()
			if err != nil {
				return nil, err
			}
			if err := p.expect(")"); err != nil {
				return nil, err
			}
			return n, nil
		case "[":
			return p.parseList()
		}
	case tokEOF:
		return nil, &SyntaxError{Pos: tok.pos, Msg: "unexpected end of expression"}
	}
	return nil, &SyntaxError{Pos: tok.pos, Msg: fmt.Sprintf("unexpected %q", tok.text)}
}

func (p *parser) parseList() (node, error) {
	list := &listLit{}
	if p.punct("]") {
		p.advance()
		return list, nil
	}
	for {
		el, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		list.elems = append(list.elems, el)
		if p.punct(",") {
			p.advance()
			continue
		}
		if err := p.expect("]"); err != nil {
			return nil, err
		}
		return list, nil
	}
}
