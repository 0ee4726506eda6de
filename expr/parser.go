package expr

import (
	"strconv"
	"strings"

	"tanker/tankerr"
)

type parser struct {
	toks []token
	pos  int
}

// Parse parses one complete s-expression from s. Any non-EOF token left
// after the top-level node is a "Unexpected tokens after ending )" error.
func Parse(s string) (Node, error) {
	toks, err := lex(s)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}

	node, err := p.parseNode()
	if err != nil {
		return nil, err
	}
	if p.peek().kind != tokEOF {
		return nil, tankerr.NewExpressionError("Unexpected tokens after ending )", p.peek().pos)
	}
	return node, nil
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) parseNode() (Node, error) {
	t := p.next()
	switch t.kind {
	case tokEOF:
		return nil, tankerr.NewExpressionError("unexpected EOF", t.pos)
	case tokRParen:
		return nil, tankerr.NewExpressionError("unexpected )", t.pos)
	case tokLParen:
		return p.parseCall(t.pos)
	case tokString:
		return StrLit{Value: t.text}, nil
	case tokInt:
		n, err := strconv.ParseInt(t.text, 10, 64)
		if err != nil {
			return nil, tankerr.NewExpressionError("malformed integer literal "+t.text, t.pos)
		}
		return IntLit{Value: n}, nil
	case tokFloat:
		f, err := strconv.ParseFloat(t.text, 64)
		if err != nil {
			return nil, tankerr.NewExpressionError("malformed float literal "+t.text, t.pos)
		}
		return FloatLit{Value: f}, nil
	case tokParam:
		return parseParam(t.text), nil
	case tokSymbol:
		return Symbol{Name: t.text}, nil
	default:
		return nil, tankerr.NewExpressionError("unrecognized token", t.pos)
	}
}

func (p *parser) parseCall(openPos int) (Node, error) {
	if p.peek().kind == tokRParen {
		return nil, tankerr.NewExpressionError("empty call", openPos)
	}
	op := p.next()
	if op.kind == tokEOF {
		return nil, tankerr.NewExpressionError("unexpected EOF", op.pos)
	}

	call := Call{Op: op.text}
	for {
		switch p.peek().kind {
		case tokRParen:
			p.next()
			return call, nil
		case tokEOF:
			return nil, tankerr.NewExpressionError("unexpected EOF", p.peek().pos)
		default:
			arg, err := p.parseNode()
			if err != nil {
				return nil, err
			}
			call.Args = append(call.Args, arg)
		}
	}
}

// parseParam splits a "{...}" body into name/index + optional "!conv" and
// ":spec" tails, per §4.4.
func parseParam(body string) Param {
	spec := ""
	if i := strings.LastIndex(body, ":"); i >= 0 && !strings.Contains(body[i:], "}") {
		spec = body[i+1:]
		body = body[:i]
	}
	conv := ""
	if i := strings.LastIndex(body, "!"); i >= 0 {
		conv = body[i+1:]
		body = body[:i]
	}

	p := Param{Index: -1, Conv: conv, Spec: spec}
	if body == "" {
		p.Index = -1 // auto-increment positional, resolved at eval time
		return p
	}
	if n, err := strconv.Atoi(body); err == nil {
		p.Index = n
		return p
	}
	parts := strings.Split(body, ".")
	p.Name = parts[0]
	p.Path = parts[1:]
	return p
}
