package scenario

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// Condition is a parsed achievement condition: a boolean expression over a
// whitelisted integer variable set. There is no function call, assignment or
// any other way to reach code from a condition - unknown identifiers are an
// evaluation error, not a lookup elsewhere.
//
// Grammar:
//
//	expr    = andExpr { ("or" | "||") andExpr }
//	andExpr = notExpr { ("and" | "&&") notExpr }
//	notExpr = [ "not" | "!" ] cmp
//	cmp     = primary [ (">=" | "<=" | "==" | "!=" | ">" | "<") primary ]
//	primary = number | identifier | "(" expr ")"
type Condition struct {
	root node
	src  string
}

// ParseCondition parses the expression. Conditions come from scenario config,
// so parse errors are configuration errors.
func ParseCondition(src string) (*Condition, error) {
	tokens, err := tokenize(src)
	if err != nil {
		return nil, fmt.Errorf("condition %q: %w", src, err)
	}
	p := &parser{tokens: tokens}
	root, err := p.parseExpr()
	if err != nil {
		return nil, fmt.Errorf("condition %q: %w", src, err)
	}
	if p.pos != len(p.tokens) {
		return nil, fmt.Errorf("condition %q: unexpected token %q", src, p.tokens[p.pos])
	}
	return &Condition{root: root, src: src}, nil
}

// Eval evaluates the condition against the variable set.
func (c *Condition) Eval(vars map[string]int) (bool, error) {
	v, err := c.root.eval(vars)
	if err != nil {
		return false, fmt.Errorf("condition %q: %w", c.src, err)
	}
	return v != 0, nil
}

type node interface {
	eval(vars map[string]int) (int, error)
}

type numNode int

func (n numNode) eval(map[string]int) (int, error) { return int(n), nil }

type varNode string

func (n varNode) eval(vars map[string]int) (int, error) {
	v, ok := vars[string(n)]
	if !ok {
		return 0, fmt.Errorf("unknown variable %q", string(n))
	}
	return v, nil
}

type binNode struct {
	op          string
	left, right node
}

func (n *binNode) eval(vars map[string]int) (int, error) {
	l, err := n.left.eval(vars)
	if err != nil {
		return 0, err
	}
	// short-circuit boolean operators
	switch n.op {
	case "and":
		if l == 0 {
			return 0, nil
		}
		r, err := n.right.eval(vars)
		if err != nil {
			return 0, err
		}
		return boolToInt(r != 0), nil
	case "or":
		if l != 0 {
			return 1, nil
		}
		r, err := n.right.eval(vars)
		if err != nil {
			return 0, err
		}
		return boolToInt(r != 0), nil
	}

	r, err := n.right.eval(vars)
	if err != nil {
		return 0, err
	}
	switch n.op {
	case ">=":
		return boolToInt(l >= r), nil
	case "<=":
		return boolToInt(l <= r), nil
	case "==":
		return boolToInt(l == r), nil
	case "!=":
		return boolToInt(l != r), nil
	case ">":
		return boolToInt(l > r), nil
	case "<":
		return boolToInt(l < r), nil
	}
	return 0, fmt.Errorf("unknown operator %q", n.op)
}

type notNode struct{ inner node }

func (n *notNode) eval(vars map[string]int) (int, error) {
	v, err := n.inner.eval(vars)
	if err != nil {
		return 0, err
	}
	return boolToInt(v == 0), nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func tokenize(src string) ([]string, error) {
	var tokens []string
	i := 0
	for i < len(src) {
		ch := rune(src[i])
		switch {
		case unicode.IsSpace(ch):
			i++
		case ch == '(' || ch == ')':
			tokens = append(tokens, string(ch))
			i++
		case strings.ContainsRune("><=!&|", ch):
			j := i + 1
			for j < len(src) && strings.ContainsRune("><=!&|", rune(src[j])) {
				j++
			}
			tokens = append(tokens, src[i:j])
			i = j
		case unicode.IsDigit(ch):
			j := i + 1
			for j < len(src) && unicode.IsDigit(rune(src[j])) {
				j++
			}
			tokens = append(tokens, src[i:j])
			i = j
		case unicode.IsLetter(ch) || ch == '_':
			j := i + 1
			for j < len(src) && (unicode.IsLetter(rune(src[j])) || unicode.IsDigit(rune(src[j])) || src[j] == '_') {
				j++
			}
			tokens = append(tokens, src[i:j])
			i = j
		default:
			return nil, fmt.Errorf("unexpected character %q", ch)
		}
	}
	return tokens, nil
}

type parser struct {
	tokens []string
	pos    int
}

func (p *parser) peek() string {
	if p.pos < len(p.tokens) {
		return p.tokens[p.pos]
	}
	return ""
}

func (p *parser) next() string {
	tok := p.peek()
	p.pos++
	return tok
}

func (p *parser) parseExpr() (node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.peek() == "or" || p.peek() == "||" {
		p.next()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &binNode{op: "or", left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (node, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.peek() == "and" || p.peek() == "&&" {
		p.next()
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = &binNode{op: "and", left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseNot() (node, error) {
	if p.peek() == "not" || p.peek() == "!" {
		p.next()
		inner, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return &notNode{inner: inner}, nil
	}
	return p.parseCmp()
}

func (p *parser) parseCmp() (node, error) {
	left, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	switch op := p.peek(); op {
	case ">=", "<=", "==", "!=", ">", "<":
		p.next()
		right, err := p.parsePrimary()
		if err != nil {
			return nil, err
		}
		return &binNode{op: op, left: left, right: right}, nil
	}
	return left, nil
}

func (p *parser) parsePrimary() (node, error) {
	tok := p.next()
	switch {
	case tok == "":
		return nil, fmt.Errorf("unexpected end of expression")
	case tok == "(":
		inner, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if closing := p.next(); closing != ")" {
			return nil, fmt.Errorf("expected ), got %q", closing)
		}
		return inner, nil
	case unicode.IsDigit(rune(tok[0])):
		n, err := strconv.Atoi(tok)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q", tok)
		}
		return numNode(n), nil
	case unicode.IsLetter(rune(tok[0])) || tok[0] == '_':
		return varNode(tok), nil
	}
	return nil, fmt.Errorf("unexpected token %q", tok)
}
