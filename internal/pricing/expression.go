package pricing

import (
	"fmt"
	"strconv"
	"strings"
)

// The closed variable set FORMULA expressions may reference. Unknown
// identifiers are rejected when the expression is parsed at configuration
// time, never at evaluation time.
var exprVariables = map[string]bool{
	"basePrice": true,
	"fromLevel": true,
	"toLevel":   true,
	"levelDiff": true,
}

// ExprVars carries the variable values for one evaluation.
type ExprVars struct {
	BasePrice float64
	FromLevel float64
	ToLevel   float64
}

func (v ExprVars) lookup(name string) float64 {
	switch name {
	case "basePrice":
		return v.BasePrice
	case "fromLevel":
		return v.FromLevel
	case "toLevel":
		return v.ToLevel
	case "levelDiff":
		return v.ToLevel - v.FromLevel
	}
	// Unreachable: identifiers are checked at parse time.
	return 0
}

// Expr is a parsed arithmetic expression over the fixed variable set.
// Supported syntax: + - * /, unary minus, parentheses, numeric literals,
// and the min/max two-argument functions.
type Expr struct {
	root   exprNode
	source string
}

// Source returns the original expression text.
func (e *Expr) Source() string { return e.source }

// Eval evaluates the expression. Division by zero is the only possible
// evaluation-time error.
func (e *Expr) Eval(vars ExprVars) (float64, error) {
	return e.root.eval(vars)
}

// ParseExpression parses and type-checks an expression. All syntax and
// identifier errors surface here, at configuration time.
func ParseExpression(src string) (*Expr, error) {
	toks, err := tokenize(src)
	if err != nil {
		return nil, err
	}
	p := &exprParser{tokens: toks}
	root, err := p.parseSum()
	if err != nil {
		return nil, err
	}
	if !p.eof() {
		return nil, fmt.Errorf("unexpected token %q", p.peek().text)
	}
	return &Expr{root: root, source: src}, nil
}

// --- AST ---

type exprNode interface {
	eval(vars ExprVars) (float64, error)
}

type numberNode float64

func (n numberNode) eval(ExprVars) (float64, error) { return float64(n), nil }

type variableNode string

func (n variableNode) eval(vars ExprVars) (float64, error) {
	return vars.lookup(string(n)), nil
}

type binaryNode struct {
	op          byte
	left, right exprNode
}

func (n binaryNode) eval(vars ExprVars) (float64, error) {
	l, err := n.left.eval(vars)
	if err != nil {
		return 0, err
	}
	r, err := n.right.eval(vars)
	if err != nil {
		return 0, err
	}
	switch n.op {
	case '+':
		return l + r, nil
	case '-':
		return l - r, nil
	case '*':
		return l * r, nil
	case '/':
		if r == 0 {
			return 0, fmt.Errorf("division by zero")
		}
		return l / r, nil
	}
	return 0, fmt.Errorf("unknown operator %q", n.op)
}

type negateNode struct{ child exprNode }

func (n negateNode) eval(vars ExprVars) (float64, error) {
	v, err := n.child.eval(vars)
	return -v, err
}

type callNode struct {
	fn   string
	a, b exprNode
}

func (n callNode) eval(vars ExprVars) (float64, error) {
	a, err := n.a.eval(vars)
	if err != nil {
		return 0, err
	}
	b, err := n.b.eval(vars)
	if err != nil {
		return 0, err
	}
	if n.fn == "min" {
		if a < b {
			return a, nil
		}
		return b, nil
	}
	if a > b {
		return a, nil
	}
	return b, nil
}

// --- Tokenizer ---

type tokenKind int

const (
	tokNumber tokenKind = iota
	tokIdent
	tokOp
	tokLParen
	tokRParen
	tokComma
)

type token struct {
	kind tokenKind
	text string
	num  float64
}

func tokenize(src string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(src) {
		c := src[i]
		switch {
		case c == ' ' || c == '\t':
			i++
		case c == '(':
			toks = append(toks, token{kind: tokLParen, text: "("})
			i++
		case c == ')':
			toks = append(toks, token{kind: tokRParen, text: ")"})
			i++
		case c == ',':
			toks = append(toks, token{kind: tokComma, text: ","})
			i++
		case c == '+' || c == '-' || c == '*' || c == '/':
			toks = append(toks, token{kind: tokOp, text: string(c)})
			i++
		case c >= '0' && c <= '9':
			start := i
			for i < len(src) && (src[i] >= '0' && src[i] <= '9' || src[i] == '.') {
				i++
			}
			num, err := strconv.ParseFloat(src[start:i], 64)
			if err != nil {
				return nil, fmt.Errorf("invalid number %q", src[start:i])
			}
			toks = append(toks, token{kind: tokNumber, text: src[start:i], num: num})
		case isIdentStart(c):
			start := i
			for i < len(src) && isIdentPart(src[i]) {
				i++
			}
			toks = append(toks, token{kind: tokIdent, text: src[start:i]})
		default:
			return nil, fmt.Errorf("unexpected character %q", c)
		}
	}
	if len(toks) == 0 {
		return nil, fmt.Errorf("empty expression")
	}
	return toks, nil
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}

// --- Parser (recursive descent) ---

type exprParser struct {
	tokens []token
	pos    int
}

func (p *exprParser) eof() bool   { return p.pos >= len(p.tokens) }
func (p *exprParser) peek() token { return p.tokens[p.pos] }

func (p *exprParser) advance() token {
	t := p.tokens[p.pos]
	p.pos++
	return t
}

func (p *exprParser) expect(kind tokenKind, what string) error {
	if p.eof() || p.peek().kind != kind {
		return fmt.Errorf("expected %s", what)
	}
	p.advance()
	return nil
}

func (p *exprParser) parseSum() (exprNode, error) {
	left, err := p.parseProduct()
	if err != nil {
		return nil, err
	}
	for !p.eof() && p.peek().kind == tokOp && (p.peek().text == "+" || p.peek().text == "-") {
		op := p.advance().text[0]
		right, err := p.parseProduct()
		if err != nil {
			return nil, err
		}
		left = binaryNode{op: op, left: left, right: right}
	}
	return left, nil
}

func (p *exprParser) parseProduct() (exprNode, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for !p.eof() && p.peek().kind == tokOp && (p.peek().text == "*" || p.peek().text == "/") {
		op := p.advance().text[0]
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = binaryNode{op: op, left: left, right: right}
	}
	return left, nil
}

func (p *exprParser) parseUnary() (exprNode, error) {
	if !p.eof() && p.peek().kind == tokOp && p.peek().text == "-" {
		p.advance()
		child, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return negateNode{child: child}, nil
	}
	return p.parseAtom()
}

func (p *exprParser) parseAtom() (exprNode, error) {
	if p.eof() {
		return nil, fmt.Errorf("unexpected end of expression")
	}
	t := p.advance()
	switch t.kind {
	case tokNumber:
		return numberNode(t.num), nil
	case tokIdent:
		name := t.text
		if name == "min" || name == "max" {
			return p.parseCall(name)
		}
		if !exprVariables[name] {
			return nil, fmt.Errorf("unknown identifier %q (allowed: %s)", name, allowedVariables())
		}
		return variableNode(name), nil
	case tokLParen:
		inner, err := p.parseSum()
		if err != nil {
			return nil, err
		}
		if err := p.expect(tokRParen, ")"); err != nil {
			return nil, err
		}
		return inner, nil
	default:
		return nil, fmt.Errorf("unexpected token %q", t.text)
	}
}

func (p *exprParser) parseCall(fn string) (exprNode, error) {
	if err := p.expect(tokLParen, "( after "+fn); err != nil {
		return nil, err
	}
	a, err := p.parseSum()
	if err != nil {
		return nil, err
	}
	if err := p.expect(tokComma, ","); err != nil {
		return nil, err
	}
	b, err := p.parseSum()
	if err != nil {
		return nil, err
	}
	if err := p.expect(tokRParen, ")"); err != nil {
		return nil, err
	}
	return callNode{fn: fn, a: a, b: b}, nil
}

func allowedVariables() string {
	names := make([]string, 0, len(exprVariables))
	for _, n := range []string{"basePrice", "fromLevel", "toLevel", "levelDiff"} {
		names = append(names, n)
	}
	return strings.Join(names, ", ")
}
