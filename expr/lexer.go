package expr

import (
	"strings"

	"tanker/tankerr"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokLParen
	tokRParen
	tokString
	tokInt
	tokFloat
	tokParam
	tokSymbol
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

// extraWordChars are the punctuation characters the base shell-like lexer
// is extended to treat as ordinary word characters: multi-char operator
// symbols (">=", "!=", "->>", ...), braces for parameter references, and
// "." for dotted paths. "+", "*", "/" are deliberately left out so a bare
// "+"/"*"/"/" still lexes as its own one-character operator token.
const extraWordChars = ".!=<>:{}-"

func isSpace(b byte) bool { return b == ' ' || b == '\t' || b == '\n' || b == '\r' }

func isWordChar(b byte) bool {
	if b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= '0' && b <= '9' {
		return true
	}
	return strings.IndexByte(extraWordChars, b) >= 0 || b == '_'
}

// lex tokenizes s into the full token stream, ending with a tokEOF.
func lex(s string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(s) {
		c := s[i]
		switch {
		case isSpace(c):
			i++
		case c == '(':
			toks = append(toks, token{kind: tokLParen, text: "(", pos: i})
			i++
		case c == ')':
			toks = append(toks, token{kind: tokRParen, text: ")", pos: i})
			i++
		case c == '"' || c == '\'':
			str, next, err := lexQuoted(s, i)
			if err != nil {
				return nil, err
			}
			toks = append(toks, token{kind: tokString, text: str, pos: i})
			i = next
		case isWordChar(c):
			start := i
			for i < len(s) && isWordChar(s[i]) {
				i++
			}
			toks = append(toks, classifyWord(s[start:i], start))
		default:
			// A lone punctuation character not folded into words (+, *, /,
			// and anything else) stands on its own as a one-rune symbol.
			toks = append(toks, token{kind: tokSymbol, text: string(c), pos: i})
			i++
		}
	}
	toks = append(toks, token{kind: tokEOF, pos: len(s)})
	return toks, nil
}

func lexQuoted(s string, start int) (string, int, error) {
	quote := s[start]
	var b strings.Builder
	i := start + 1
	for i < len(s) {
		c := s[i]
		if c == '\\' && i+1 < len(s) {
			b.WriteByte(s[i+1])
			i += 2
			continue
		}
		if c == quote {
			return b.String(), i + 1, nil
		}
		b.WriteByte(c)
		i++
	}
	return "", 0, tankerr.NewExpressionError("unexpected EOF", i)
}

func classifyWord(word string, pos int) token {
	if strings.HasPrefix(word, "{") && strings.HasSuffix(word, "}") && len(word) >= 2 {
		return token{kind: tokParam, text: word[1 : len(word)-1], pos: pos}
	}
	if isIntLiteral(word) {
		return token{kind: tokInt, text: word, pos: pos}
	}
	if isFloatLiteral(word) {
		return token{kind: tokFloat, text: word, pos: pos}
	}
	return token{kind: tokSymbol, text: word, pos: pos}
}

func isIntLiteral(word string) bool {
	if word == "" {
		return false
	}
	start := 0
	if word[0] == '-' || word[0] == '+' {
		start = 1
	}
	if start == len(word) {
		return false
	}
	for _, c := range word[start:] {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func isFloatLiteral(word string) bool {
	if word == "" {
		return false
	}
	start := 0
	if word[0] == '-' || word[0] == '+' {
		start = 1
	}
	if start == len(word) {
		return false
	}
	seenDot := false
	seenDigit := false
	for _, c := range word[start:] {
		switch {
		case c >= '0' && c <= '9':
			seenDigit = true
		case c == '.' && !seenDot:
			seenDot = true
		default:
			return false
		}
	}
	return seenDot && seenDigit
}
