// Package cond implements the boolean condition language evaluated on
// conditional and loop nodes.
//
// Grammar:
//
//	Expr    ::= Or
//	Or      ::= And ( 'or' And )*
//	And     ::= Unary ( 'and' Unary )*
//	Unary   ::= 'not' Unary | Cmp
//	Cmp     ::= Primary ( CmpOp Primary )?
//	CmpOp   ::= '==' | '!=' | '<' | '<=' | '>' | '>='
//	Primary ::= Number | String | 'true' | 'false' | Key | '(' Expr ')'
//
// Keys resolve against the run state by name. Expressions are parsed into a
// closed AST and interpreted directly; there is no path from an expression to
// host facilities, and evaluation never mutates state.
package cond

import (
	"fmt"
	"strconv"
	"strings"
)

// EvalError reports a condition that could not be parsed or evaluated:
// syntax errors, references to absent state keys, operand type mismatches,
// or a non-boolean result.
type EvalError struct {
	Expr   string
	Reason string
}

func (e *EvalError) Error() string {
	return fmt.Sprintf("condition %q: %s", e.Expr, e.Reason)
}

func evalErrf(expr, format string, args ...any) *EvalError {
	return &EvalError{Expr: expr, Reason: fmt.Sprintf(format, args...)}
}

// Evaluate parses expression and evaluates it against state. The result must
// be boolean; anything else is an error, never a truthiness coercion.
func Evaluate(expression string, state map[string]any) (bool, error) {
	node, err := Parse(expression)
	if err != nil {
		return false, err
	}
	v, err := node.eval(expression, state)
	if err != nil {
		return false, err
	}
	b, ok := v.(bool)
	if !ok {
		return false, evalErrf(expression, "result is %T, not bool", v)
	}
	return b, nil
}

// Expr is a parsed condition, reusable across evaluations.
type Expr interface {
	eval(src string, state map[string]any) (any, error)
}

// Parse parses expression into an AST without evaluating it. Validation uses
// this to reject malformed conditions at graph-creation time.
func Parse(expression string) (Expr, error) {
	trimmed := strings.TrimSpace(expression)
	if trimmed == "" {
		return nil, evalErrf(expression, "empty expression")
	}
	p := &parser{src: expression, lx: newLexer(trimmed)}
	node, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	tok, err := p.peek()
	if err != nil {
		return nil, err
	}
	if tok.typ != tokenEOF {
		return nil, evalErrf(expression, "trailing input at %d: %q", tok.pos, tok.lit)
	}
	return node, nil
}

type parser struct {
	src    string
	lx     *lexer
	peeked *token
}

func (p *parser) peek() (token, error) {
	if p.peeked == nil {
		tok, err := p.lx.next()
		if err != nil {
			return token{}, evalErrf(p.src, "%v", err)
		}
		p.peeked = &tok
	}
	return *p.peeked, nil
}

func (p *parser) next() (token, error) {
	tok, err := p.peek()
	if err != nil {
		return token{}, err
	}
	p.peeked = nil
	return tok, nil
}

func (p *parser) parseOr() (Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for {
		tok, err := p.peek()
		if err != nil {
			return nil, err
		}
		if tok.typ != tokenIdent || tok.lit != "or" {
			return left, nil
		}
		_, _ = p.next()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &boolExpr{op: "or", left: left, right: right}
	}
}

func (p *parser) parseAnd() (Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		tok, err := p.peek()
		if err != nil {
			return nil, err
		}
		if tok.typ != tokenIdent || tok.lit != "and" {
			return left, nil
		}
		_, _ = p.next()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &boolExpr{op: "and", left: left, right: right}
	}
}

func (p *parser) parseUnary() (Expr, error) {
	tok, err := p.peek()
	if err != nil {
		return nil, err
	}
	if tok.typ == tokenIdent && tok.lit == "not" {
		_, _ = p.next()
		inner, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &notExpr{inner: inner}, nil
	}
	return p.parseCmp()
}

func (p *parser) parseCmp() (Expr, error) {
	left, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	tok, err := p.peek()
	if err != nil {
		return nil, err
	}
	if tok.typ != tokenOp {
		return left, nil
	}
	_, _ = p.next()
	right, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	return &cmpExpr{op: tok.lit, left: left, right: right}, nil
}

func (p *parser) parsePrimary() (Expr, error) {
	tok, err := p.next()
	if err != nil {
		return nil, err
	}
	switch tok.typ {
	case tokenNumber:
		f, err := strconv.ParseFloat(tok.lit, 64)
		if err != nil {
			return nil, evalErrf(p.src, "bad number %q at %d", tok.lit, tok.pos)
		}
		return &literalExpr{val: f}, nil
	case tokenString:
		return &literalExpr{val: tok.lit}, nil
	case tokenIdent:
		switch tok.lit {
		case "true":
			return &literalExpr{val: true}, nil
		case "false":
			return &literalExpr{val: false}, nil
		case "and", "or", "not":
			return nil, evalErrf(p.src, "unexpected keyword %q at %d", tok.lit, tok.pos)
		}
		return &lookupExpr{key: tok.lit}, nil
	case tokenLParen:
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		closing, err := p.next()
		if err != nil {
			return nil, err
		}
		if closing.typ != tokenRParen {
			return nil, evalErrf(p.src, "expected ')' at %d, got %q", closing.pos, closing.lit)
		}
		return inner, nil
	case tokenEOF:
		return nil, evalErrf(p.src, "unexpected end of expression")
	default:
		return nil, evalErrf(p.src, "unexpected token %q at %d", tok.lit, tok.pos)
	}
}

type literalExpr struct {
	val any
}

func (e *literalExpr) eval(string, map[string]any) (any, error) {
	return e.val, nil
}

type lookupExpr struct {
	key string
}

func (e *lookupExpr) eval(src string, state map[string]any) (any, error) {
	v, ok := state[e.key]
	if !ok {
		return nil, evalErrf(src, "state key %q not found", e.key)
	}
	return v, nil
}

type notExpr struct {
	inner Expr
}

func (e *notExpr) eval(src string, state map[string]any) (any, error) {
	v, err := e.inner.eval(src, state)
	if err != nil {
		return nil, err
	}
	b, ok := v.(bool)
	if !ok {
		return nil, evalErrf(src, "operand of 'not' is %T, not bool", v)
	}
	return !b, nil
}

type boolExpr struct {
	op          string // "and" | "or"
	left, right Expr
}

func (e *boolExpr) eval(src string, state map[string]any) (any, error) {
	lv, err := e.left.eval(src, state)
	if err != nil {
		return nil, err
	}
	lb, ok := lv.(bool)
	if !ok {
		return nil, evalErrf(src, "left operand of %q is %T, not bool", e.op, lv)
	}
	// No short-circuit: the right side is always checked so type and
	// missing-key errors surface regardless of the left value.
	rv, err := e.right.eval(src, state)
	if err != nil {
		return nil, err
	}
	rb, ok := rv.(bool)
	if !ok {
		return nil, evalErrf(src, "right operand of %q is %T, not bool", e.op, rv)
	}
	if e.op == "and" {
		return lb && rb, nil
	}
	return lb || rb, nil
}

type cmpExpr struct {
	op          string
	left, right Expr
}

func (e *cmpExpr) eval(src string, state map[string]any) (any, error) {
	lv, err := e.left.eval(src, state)
	if err != nil {
		return nil, err
	}
	rv, err := e.right.eval(src, state)
	if err != nil {
		return nil, err
	}

	if lf, lok := toFloat(lv); lok {
		rf, rok := toFloat(rv)
		if !rok {
			return nil, evalErrf(src, "cannot compare number with %T", rv)
		}
		return cmpOrdered(e.op, lf, rf), nil
	}
	if ls, lok := lv.(string); lok {
		rs, rok := rv.(string)
		if !rok {
			return nil, evalErrf(src, "cannot compare string with %T", rv)
		}
		return cmpOrdered(e.op, ls, rs), nil
	}
	if lb, lok := lv.(bool); lok {
		rb, rok := rv.(bool)
		if !rok {
			return nil, evalErrf(src, "cannot compare bool with %T", rv)
		}
		switch e.op {
		case "==":
			return lb == rb, nil
		case "!=":
			return lb != rb, nil
		default:
			return nil, evalErrf(src, "operator %q not defined for bool", e.op)
		}
	}
	return nil, evalErrf(src, "operand type %T is not comparable", lv)
}

func cmpOrdered[T float64 | string](op string, a, b T) bool {
	switch op {
	case "==":
		return a == b
	case "!=":
		return a != b
	case "<":
		return a < b
	case "<=":
		return a <= b
	case ">":
		return a > b
	default: // ">=" — the lexer emits nothing else
		return a >= b
	}
}

// toFloat widens any numeric state value to float64. State maps come from
// JSON (float64), YAML (int), or Go tools (any integer width).
func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int8:
		return float64(x), true
	case int16:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case uint:
		return float64(x), true
	case uint8:
		return float64(x), true
	case uint16:
		return float64(x), true
	case uint32:
		return float64(x), true
	case uint64:
		return float64(x), true
	default:
		return 0, false
	}
}
