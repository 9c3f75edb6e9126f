package gpacfile

import (
	"fmt"
	"strconv"

	"github.com/mvance/gpac/gpacerr"
)

// Parser implements recursive descent parsing for the .gpac grammar of
// spec §6, grounded on the teacher's classical/parser.go
// match/check/advance/peek/previous helper shape.
type Parser struct {
	tokens  []Token
	current int
}

// Parse lexes and parses src into a file: a sequence of `Circuit
// <name>: ...;` and `Circuit <name> = <expr>;` definitions.
func Parse(src string) (*file, error) {
	tokens, err := NewLexer(src).Lex()
	if err != nil {
		return nil, err
	}
	p := &Parser{tokens: tokens}
	f := &file{}
	for !p.isAtEnd() {
		if err := p.parseDefinition(f); err != nil {
			return nil, err
		}
	}
	return f, nil
}

func (p *Parser) parseDefinition(f *file) error {
	if !p.match(TokenCircuit) {
		return p.errorf("expected 'Circuit'")
	}
	if !p.check(TokenIdent) {
		return p.errorf("expected circuit name after 'Circuit'")
	}
	name := p.advance().Value

	if p.match(TokenColon) {
		gates, err := p.parseGateList()
		if err != nil {
			return err
		}
		f.gateLists = append(f.gateLists, gateListDef{name: name, gates: gates})
		f.order = append(f.order, name)
		return nil
	}
	if p.match(TokenEquals) {
		body, err := p.parseExpr()
		if err != nil {
			return err
		}
		if !p.match(TokenSemicolon) {
			return p.errorf("expected ';' after expression definition")
		}
		f.exprs = append(f.exprs, exprDef{name: name, body: body})
		f.order = append(f.order, name)
		return nil
	}
	return p.errorf("expected ':' or '=' after circuit name")
}

func (p *Parser) parseGateList() ([]gateSpec, error) {
	var gates []gateSpec
	for !p.check(TokenSemicolon) {
		if p.isAtEnd() {
			return nil, p.errorf("unterminated gate list (missing ';')")
		}
		if !p.check(TokenIdent) {
			return nil, p.errorf("expected gate name")
		}
		gateName := p.advance().Value
		if !p.match(TokenColon) {
			return nil, p.errorf("expected ':' after gate name %q", gateName)
		}
		spec, err := p.parseGateSpec()
		if err != nil {
			return nil, err
		}
		gates = append(gates, gateSpec{name: gateName, spec: spec})
	}
	p.advance() // consume ';'
	return gates, nil
}

// parseGateSpec parses one shallow gate-list right-hand side: a
// number, "<a> + <b>", "<a> * <b>", "int <a> d(<b>) | <v0>", or a bare
// identifier (copy of a previously-built circuit's output).
func (p *Parser) parseGateSpec() (*expr, error) {
	if p.match(TokenInt) {
		x, err := p.parseAtomIdentOrNumber()
		if err != nil {
			return nil, err
		}
		if !p.match(TokenD) {
			return nil, p.errorf("expected 'd' in integration spec")
		}
		if !p.match(TokenLeftParen) {
			return nil, p.errorf("expected '(' after 'd'")
		}
		y, err := p.parseAtomIdentOrNumber()
		if err != nil {
			return nil, err
		}
		if !p.match(TokenRightParen) {
			return nil, p.errorf("expected ')' closing d(...)")
		}
		if !p.match(TokenPipe) {
			return nil, p.errorf("expected '|' before initial value")
		}
		v0, err := p.parseNumber()
		if err != nil {
			return nil, err
		}
		return &expr{kind: exprIntegral, x: x, y: y, init: v0.value}, nil
	}

	first, err := p.parseAtomIdentOrNumber()
	if err != nil {
		return nil, err
	}
	if p.check(TokenPlus) || p.check(TokenStar) {
		op := byte('+')
		if p.check(TokenStar) {
			op = '*'
		}
		p.advance()
		second, err := p.parseAtomIdentOrNumber()
		if err != nil {
			return nil, err
		}
		return &expr{kind: exprBinary, op: op, x: first, y: second}, nil
	}
	return first, nil
}

func (p *Parser) parseAtomIdentOrNumber() (*expr, error) {
	if p.check(TokenNumber) || p.check(TokenMinus) {
		return p.parseNumber()
	}
	if p.check(TokenIdent) {
		return &expr{kind: exprIdent, ident: p.advance().Value}, nil
	}
	return nil, p.errorf("expected identifier or number")
}

func (p *Parser) parseNumber() (*expr, error) {
	negative := p.match(TokenMinus)
	if !p.check(TokenNumber) {
		return nil, p.errorf("expected number")
	}
	tok := p.advance()
	v, err := strconv.ParseFloat(tok.Value, 64)
	if err != nil {
		return nil, p.errorAt(tok, "invalid number %q", tok.Value)
	}
	if negative {
		v = -v
	}
	return &expr{kind: exprValue, value: v}, nil
}

// parseExpr parses the full recursive expression grammar of §6 form 2.
// Every binary operator is explicitly parenthesized in the grammar, so
// no precedence climbing is needed — a single dispatch on the leading
// token suffices.
func (p *Parser) parseExpr() (*expr, error) {
	switch {
	case p.check(TokenNumber):
		return p.parseNumber()

	case p.check(TokenIdent):
		e := &expr{kind: exprIdent, ident: p.advance().Value}
		return p.parseTrailingIterate(e)

	case p.match(TokenMax):
		if !p.match(TokenLeftParen) {
			return nil, p.errorf("expected '(' after 'max'")
		}
		a, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if !p.match(TokenComma) {
			return nil, p.errorf("expected ',' in max(...)")
		}
		b, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if !p.match(TokenRightParen) {
			return nil, p.errorf("expected ')' closing max(...)")
		}
		return &expr{kind: exprMax, args: []*expr{a, b}}, nil

	case p.match(TokenSelect):
		if !p.match(TokenLeftParen) {
			return nil, p.errorf("expected '(' after 'select'")
		}
		args := make([]*expr, 0, 4)
		for i := 0; i < 4; i++ {
			if i > 0 && !p.match(TokenComma) {
				return nil, p.errorf("expected ',' in select(...)")
			}
			a, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			args = append(args, a)
		}
		if !p.match(TokenRightParen) {
			return nil, p.errorf("expected ')' closing select(...)")
		}
		return &expr{kind: exprSelect, args: args}, nil

	case p.match(TokenLeftParen):
		if p.match(TokenInt) {
			x, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			if !p.match(TokenD) {
				return nil, p.errorf("expected 'd' in integration expression")
			}
			if !p.match(TokenLeftParen) {
				return nil, p.errorf("expected '(' after 'd'")
			}
			y, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			if !p.match(TokenRightParen) {
				return nil, p.errorf("expected ')' closing d(...)")
			}
			if !p.match(TokenPipe) {
				return nil, p.errorf("expected '|' before initial value")
			}
			v0, err := p.parseNumber()
			if err != nil {
				return nil, err
			}
			if !p.match(TokenRightParen) {
				return nil, p.errorf("expected ')' closing integration expression")
			}
			return &expr{kind: exprIntegral, x: x, y: y, init: v0.value}, nil
		}

		left, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		op, err := p.parseOp()
		if err != nil {
			return nil, err
		}
		right, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if !p.match(TokenRightParen) {
			return nil, p.errorf("expected ')' closing binary expression")
		}
		return p.parseTrailingIterate(&expr{kind: exprBinary, op: op, x: left, y: right})

	default:
		return nil, p.errorf("expected expression, found %q", p.peek().Value)
	}
}

func (p *Parser) parseOp() (byte, error) {
	switch {
	case p.match(TokenPlus):
		return '+', nil
	case p.match(TokenMinus):
		return '-', nil
	case p.match(TokenStar):
		return '*', nil
	case p.match(TokenSlash):
		return '/', nil
	case p.match(TokenAt):
		return '@', nil
	default:
		return 0, p.errorf("expected one of + - * / @")
	}
}

// parseTrailingIterate consumes an optional "[<n>]" suffix, wrapping e
// in an exprIterate node (spec §6: n-fold self-composition).
func (p *Parser) parseTrailingIterate(e *expr) (*expr, error) {
	if !p.match(TokenLeftBracket) {
		return e, nil
	}
	if !p.check(TokenNumber) {
		return nil, p.errorf("expected integer inside '[...]'")
	}
	tok := p.advance()
	n, err := strconv.Atoi(tok.Value)
	if err != nil {
		return nil, p.errorAt(tok, "expected integer iterate count, found %q", tok.Value)
	}
	if !p.match(TokenRightBracket) {
		return nil, p.errorf("expected ']' closing iterate count")
	}
	return &expr{kind: exprIterate, inner: e, n: n}, nil
}

// parser state helpers, grounded on classical/parser.go -----------------

func (p *Parser) match(types ...TokenType) bool {
	for _, t := range types {
		if p.check(t) {
			p.advance()
			return true
		}
	}
	return false
}

func (p *Parser) check(t TokenType) bool {
	if p.isAtEnd() {
		return t == TokenEOF
	}
	return p.peek().Type == t
}

func (p *Parser) advance() Token {
	tok := p.peek()
	if !p.isAtEnd() {
		p.current++
	}
	return tok
}

func (p *Parser) isAtEnd() bool {
	return p.current >= len(p.tokens) || p.tokens[p.current].Type == TokenEOF
}

func (p *Parser) peek() Token {
	if p.current >= len(p.tokens) {
		return Token{Type: TokenEOF}
	}
	return p.tokens[p.current]
}

func (p *Parser) errorf(format string, args ...any) error {
	return p.errorAt(p.peek(), format, args...)
}

func (p *Parser) errorAt(tok Token, format string, args ...any) error {
	return gpacerr.NewParseError(tok.Line, tok.Column, fmt.Sprintf(format, args...))
}
