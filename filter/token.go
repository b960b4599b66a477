package filter

import (
	"fmt"
	"strings"
)

// tokenKind classifies a lexical token produced by the tokenizer.
type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokString
	tokNumber
	tokOp      // comparison operator: == != < <= > >= CONTAINS PREFIX SUFFIX IN
	tokAnd
	tokOr
	tokNot
	tokLParen
	tokRParen
	tokComma
)

type token struct {
	kind tokenKind
	text string
}

// lexError is returned by the tokenizer on malformed input (§4.3: the
// parser fails with ParseError, never revealing a byte position).
type lexError struct {
	msg string
}

func (e *lexError) Error() string { return e.msg }

// tokenize splits src into tokens per the filter grammar. Whitespace
// separates tokens; quoted strings honor \" and \\ escapes (§9).
func tokenize(src string) ([]token, error) {
	var toks []token
	i := 0
	n := len(src)

	for i < n {
		c := src[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
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
		case c == '"':
			s, next, err := scanString(src, i)
			if err != nil {
				return nil, err
			}
			toks = append(toks, token{kind: tokString, text: s})
			i = next
		case c == '=':
			if i+1 < n && src[i+1] == '=' {
				toks = append(toks, token{kind: tokOp, text: "=="})
				i += 2
			} else {
				return nil, &lexError{msg: "unexpected '='"}
			}
		case c == '!':
			if i+1 < n && src[i+1] == '=' {
				toks = append(toks, token{kind: tokOp, text: "!="})
				i += 2
			} else {
				return nil, &lexError{msg: "unexpected '!'"}
			}
		case c == '<':
			if i+1 < n && src[i+1] == '=' {
				toks = append(toks, token{kind: tokOp, text: "<="})
				i += 2
			} else {
				toks = append(toks, token{kind: tokOp, text: "<"})
				i++
			}
		case c == '>':
			if i+1 < n && src[i+1] == '=' {
				toks = append(toks, token{kind: tokOp, text: ">="})
				i += 2
			} else {
				toks = append(toks, token{kind: tokOp, text: ">"})
				i++
			}
		case isDigit(c) || (c == '-' && i+1 < n && isDigit(src[i+1])) || (c == '+' && i+1 < n && isDigit(src[i+1])):
			s, next, err := scanNumber(src, i)
			if err != nil {
				return nil, err
			}
			toks = append(toks, token{kind: tokNumber, text: s})
			i = next
		case isIdentStart(c):
			s, next := scanIdent(src, i)
			i = next
			switch strings.ToUpper(s) {
			case "AND":
				toks = append(toks, token{kind: tokAnd, text: s})
			case "OR":
				toks = append(toks, token{kind: tokOr, text: s})
			case "NOT":
				toks = append(toks, token{kind: tokNot, text: s})
			case "CONTAINS", "PREFIX", "SUFFIX", "IN":
				toks = append(toks, token{kind: tokOp, text: strings.ToUpper(s)})
			default:
				toks = append(toks, token{kind: tokIdent, text: s})
			}
		default:
			return nil, &lexError{msg: fmt.Sprintf("unexpected character %q", c)}
		}
	}

	toks = append(toks, token{kind: tokEOF})
	return toks, nil
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z')
}

func isIdentCont(c byte) bool {
	return isIdentStart(c) || isDigit(c)
}

func scanIdent(src string, i int) (string, int) {
	start := i
	for i < len(src) && isIdentCont(src[i]) {
		i++
	}
	return src[start:i], i
}

func scanNumber(src string, i int) (string, int, error) {
	start := i
	if src[i] == '-' || src[i] == '+' {
		i++
	}
	for i < len(src) && isDigit(src[i]) {
		i++
	}
	if i < len(src) && src[i] == '.' {
		i++
		if i >= len(src) || !isDigit(src[i]) {
			return "", 0, &lexError{msg: "malformed number literal"}
		}
		for i < len(src) && isDigit(src[i]) {
			i++
		}
	}
	return src[start:i], i, nil
}

func scanString(src string, i int) (string, int, error) {
	// src[i] == '"'
	i++
	var b strings.Builder
	for i < len(src) {
		c := src[i]
		if c == '"' {
			return b.String(), i + 1, nil
		}
		if c == '\\' && i+1 < len(src) {
			switch src[i+1] {
			case '"':
				b.WriteByte('"')
				i += 2
				continue
			case '\\':
				b.WriteByte('\\')
				i += 2
				continue
			}
		}
		b.WriteByte(c)
		i++
	}
	return "", 0, &lexError{msg: "unterminated string literal"}
}
