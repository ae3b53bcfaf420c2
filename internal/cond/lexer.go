package cond

import (
	"fmt"
	"strings"
	"unicode"
)

type tokenType int

const (
	tokenEOF tokenType = iota
	tokenIdent
	tokenNumber
	tokenString
	tokenOp
	tokenLParen
	tokenRParen
)

type token struct {
	typ tokenType
	lit string
	pos int
}

type lexer struct {
	src []rune
	pos int
}

func newLexer(src string) *lexer {
	return &lexer{src: []rune(src)}
}

func (l *lexer) next() (token, error) {
	for l.pos < len(l.src) && unicode.IsSpace(l.src[l.pos]) {
		l.pos++
	}
	if l.pos >= len(l.src) {
		return token{typ: tokenEOF, pos: l.pos}, nil
	}
	start := l.pos
	c := l.src[l.pos]

	switch {
	case c == '(':
		l.pos++
		return token{typ: tokenLParen, lit: "(", pos: start}, nil
	case c == ')':
		l.pos++
		return token{typ: tokenRParen, lit: ")", pos: start}, nil
	case c == '\'' || c == '"':
		return l.lexString(c)
	case unicode.IsDigit(c) || (c == '-' && l.pos+1 < len(l.src) && unicode.IsDigit(l.src[l.pos+1])):
		return l.lexNumber()
	case unicode.IsLetter(c) || c == '_':
		for l.pos < len(l.src) && (unicode.IsLetter(l.src[l.pos]) || unicode.IsDigit(l.src[l.pos]) || l.src[l.pos] == '_') {
			l.pos++
		}
		return token{typ: tokenIdent, lit: string(l.src[start:l.pos]), pos: start}, nil
	}

	two := ""
	if l.pos+1 < len(l.src) {
		two = string(l.src[l.pos : l.pos+2])
	}
	switch two {
	case "==", "!=", "<=", ">=":
		l.pos += 2
		return token{typ: tokenOp, lit: two, pos: start}, nil
	}
	switch c {
	case '<', '>':
		l.pos++
		return token{typ: tokenOp, lit: string(c), pos: start}, nil
	case '=':
		return token{}, fmt.Errorf("single '=' at %d (use '==')", start)
	}
	return token{}, fmt.Errorf("unexpected character %q at %d", string(c), start)
}

func (l *lexer) lexString(quote rune) (token, error) {
	start := l.pos
	l.pos++ // opening quote
	var b strings.Builder
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		if c == quote {
			l.pos++
			return token{typ: tokenString, lit: b.String(), pos: start}, nil
		}
		b.WriteRune(c)
		l.pos++
	}
	return token{}, fmt.Errorf("unterminated string at %d", start)
}

func (l *lexer) lexNumber() (token, error) {
	start := l.pos
	if l.src[l.pos] == '-' {
		l.pos++
	}
	dot := false
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		if c == '.' {
			if dot {
				return token{}, fmt.Errorf("malformed number at %d", start)
			}
			dot = true
			l.pos++
			continue
		}
		if !unicode.IsDigit(c) {
			break
		}
		l.pos++
	}
	return token{typ: tokenNumber, lit: string(l.src[start:l.pos]), pos: start}, nil
}
