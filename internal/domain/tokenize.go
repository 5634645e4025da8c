package domain

import (
	"math"
	"strconv"
)

// TokenKind classifies a token produced by Tokenize.
type TokenKind int

const (
	TokenMissing TokenKind = iota + 1 // the "MM" sentinel
	TokenCode                         // 4-6 character [A-Z0-9] code, e.g. a station id
	TokenNumber                       // signed decimal number
)

func (k TokenKind) String() string {
	switch k {
	case TokenMissing:
		return "missing"
	case TokenCode:
		return "code"
	case TokenNumber:
		return "number"
	default:
		return "unknown"
	}
}

// Token is one field recovered from a space-padded report line.
type Token struct {
	Kind  TokenKind
	Text  string
	Value float64 // set for TokenNumber
}

// Float returns the numeric value of a Number token.
func (t Token) Float() (float64, bool) {
	if t.Kind != TokenNumber {
		return 0, false
	}
	return t.Value, true
}

// Int returns the numeric value of a Number token rounded to the nearest integer.
func (t Token) Int() (int, bool) {
	v, ok := t.Float()
	if !ok {
		return 0, false
	}
	return int(math.Round(v)), true
}

// Tokenize splits a report line into tokens with a single left-to-right scan.
//
// At each offset the longest of three alternatives wins:
//
//	MM              missing-value sentinel, must start at a word boundary
//	[A-Z0-9]{4,6}   alphanumeric code
//	-?\d+(\.\d+)?   number, must end at a word boundary
//
// An all-digit run that is both a code and a number is a number. Characters that
// start no token (padding, '#', lowercase header text) are skipped.
func Tokenize(line string) []Token {
	var tokens []Token
	for i := 0; i < len(line); {
		tok, n := tokenAt(line, i)
		if n == 0 {
			i++
			continue
		}
		tokens = append(tokens, tok)
		i += n
	}
	return tokens
}

func tokenAt(s string, i int) (Token, int) {
	best, kind := 0, TokenKind(0)
	if n := missingAt(s, i); n > best {
		best, kind = n, TokenMissing
	}
	if n := numberAt(s, i); n > best {
		best, kind = n, TokenNumber
	}
	if n := codeAt(s, i); n > best {
		best, kind = n, TokenCode
	}
	if best == 0 {
		return Token{}, 0
	}

	tok := Token{Kind: kind, Text: s[i : i+best]}
	if kind == TokenNumber {
		tok.Value, _ = strconv.ParseFloat(tok.Text, 64)
	}
	return tok, best
}

func missingAt(s string, i int) int {
	if i+2 > len(s) || s[i] != 'M' || s[i+1] != 'M' {
		return 0
	}
	if i > 0 && isWordChar(s[i-1]) {
		return 0
	}
	return 2
}

func numberAt(s string, i int) int {
	j := i
	if j < len(s) && s[j] == '-' {
		j++
	}
	start := j
	for j < len(s) && isDigit(s[j]) {
		j++
	}
	if j == start {
		return 0
	}
	intEnd := j

	if j < len(s) && s[j] == '.' {
		k := j + 1
		for k < len(s) && isDigit(s[k]) {
			k++
		}
		if k > j+1 && boundaryAt(s, k) {
			return k - i
		}
	}
	if boundaryAt(s, intEnd) {
		return intEnd - i
	}
	return 0
}

func codeAt(s string, i int) int {
	n := 0
	for i+n < len(s) && n < 6 && isUpperAlnum(s[i+n]) {
		n++
	}
	if n < 4 {
		return 0
	}
	return n
}

func boundaryAt(s string, k int) bool {
	return k >= len(s) || !isWordChar(s[k])
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isUpperAlnum(c byte) bool { return isDigit(c) || (c >= 'A' && c <= 'Z') }

func isWordChar(c byte) bool {
	return isUpperAlnum(c) || (c >= 'a' && c <= 'z') || c == '_'
}
