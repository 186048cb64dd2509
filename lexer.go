// lexer.go: splits one command line into a callee identifier and literals.
//
// The lexer is lazy: Next hands out one token at a time and, once it reports
// the end (or an error), keeps reporting the end. To start over, build a new
// lexer from the same text. Literal spelling follows C: 42, 0x2A, 42L, 3.14,
// 2.5f, 1e-3, "text", 'c'.
package crepl

import (
	"fmt"
	"strconv"
	"strings"
)

// TokenKind is the lexical class of a token.
type TokenKind int

const (
	Unknown TokenKind = iota
	Identifier
	IntLiteral
	LongLiteral
	FloatLiteral
	DoubleLiteral
	CharLiteral
	StringLiteral
)

var tokenKindNames = [...]string{
	Unknown:       "unknown token",
	Identifier:    "identifier",
	IntLiteral:    "int literal",
	LongLiteral:   "long literal",
	FloatLiteral:  "float literal",
	DoubleLiteral: "double literal",
	CharLiteral:   "char literal",
	StringLiteral: "string literal",
}

func (k TokenKind) String() string {
	if k >= Unknown && k <= StringLiteral {
		return tokenKindNames[k]
	}
	return fmt.Sprintf("TokenKind(%d)", int(k))
}

// Token is one lexical unit. Value holds the decoded payload: string for
// identifiers and strings, int32/int64/float32/float64 for numbers, int8 for
// chars, nil for unknown tokens.
type Token struct {
	Kind  TokenKind
	Raw   string
	Pos   int
	Value any
}

// Lexer tokenizes a single trimmed line.
type Lexer struct {
	src   string
	start int
	cur   int
	done  bool
	count int
}

// NewLexer trims surrounding whitespace from line and prepares to scan it.
func NewLexer(line string) *Lexer {
	return &Lexer{src: strings.TrimSpace(line)}
}

// Text returns the trimmed line being scanned.
func (l *Lexer) Text() string { return l.src }

// Callee reads the first token and returns it when it is an identifier.
func (l *Lexer) Callee() (string, error) {
	tok, ok, err := l.Next()
	if err != nil {
		// a malformed literal in first position is still not a name
		l.done = true
		return "", &TokenizeError{Pos: 0, Msg: "function name must be an identifier"}
	}
	if !ok || tok.Kind != Identifier {
		pos := 0
		if ok {
			pos = tok.Pos
		}
		l.done = true
		return "", &TokenizeError{Pos: pos, Msg: "function name must be an identifier"}
	}
	return tok.Value.(string), nil
}

// Next returns the next token. ok is false at the end of the line.
func (l *Lexer) Next() (tok Token, ok bool, err error) {
	if l.done {
		return Token{}, false, nil
	}
	l.skipWhitespace()
	if l.isAtEnd() {
		l.done = true
		return Token{}, false, nil
	}
	l.start = l.cur
	ch, _ := l.peek()
	switch {
	case isAlpha(ch):
		tok = l.scanIdentifier()
	case l.startsNumber():
		tok, err = l.scanNumber()
	case ch == '"':
		tok, err = l.scanString()
	case ch == '\'':
		tok, err = l.scanChar()
	default:
		tok = l.scanUnknown()
	}
	if err != nil {
		l.done = true
		return Token{}, false, err
	}
	l.count++
	return tok, true, nil
}

// All drains the lexer. It is a convenience for tests and completion.
func (l *Lexer) All() ([]Token, error) {
	var out []Token
	for {
		tok, ok, err := l.Next()
		if err != nil {
			return out, err
		}
		if !ok {
			return out, nil
		}
		out = append(out, tok)
	}
}

func (l *Lexer) isAtEnd() bool { return l.cur >= len(l.src) }

func (l *Lexer) peek() (byte, bool) {
	if l.isAtEnd() {
		return 0, false
	}
	return l.src[l.cur], true
}

func (l *Lexer) peekN(n int) (byte, bool) {
	idx := l.cur + n
	if idx >= len(l.src) {
		return 0, false
	}
	return l.src[idx], true
}

func (l *Lexer) advance() (byte, bool) {
	if l.isAtEnd() {
		return 0, false
	}
	ch := l.src[l.cur]
	l.cur++
	return ch, true
}

func (l *Lexer) skipWhitespace() {
	for !l.isAtEnd() && isSpace(l.src[l.cur]) {
		l.cur++
	}
}

func (l *Lexer) token(kind TokenKind, v any) Token {
	return Token{Kind: kind, Raw: l.src[l.start:l.cur], Pos: l.start, Value: v}
}

func (l *Lexer) errAt(pos int, format string, args ...any) error {
	return &TokenizeError{Pos: pos, Msg: fmt.Sprintf(format, args...)}
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }
func isHex(b byte) bool {
	return (b >= '0' && b <= '9') || (b >= 'a' && b <= 'f') || (b >= 'A' && b <= 'F')
}
func isAlpha(b byte) bool    { return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || b == '_' }
func isAlphaNum(b byte) bool { return isAlpha(b) || isDigit(b) }
func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r' || b == '\v' || b == '\f'
}

// startsNumber accepts a digit, ".5", or a sign directly followed by either.
func (l *Lexer) startsNumber() bool {
	i := 0
	if b, _ := l.peekN(0); b == '+' || b == '-' {
		i = 1
	}
	b, ok := l.peekN(i)
	if !ok {
		return false
	}
	if isDigit(b) {
		return true
	}
	if b == '.' {
		b2, ok := l.peekN(i + 1)
		return ok && isDigit(b2)
	}
	return false
}

func (l *Lexer) scanIdentifier() Token {
	for {
		b, ok := l.peek()
		if !ok || !isAlphaNum(b) {
			break
		}
		l.advance()
	}
	return l.token(Identifier, l.src[l.start:l.cur])
}

func (l *Lexer) scanUnknown() Token {
	for {
		b, ok := l.peek()
		if !ok || isSpace(b) {
			break
		}
		l.advance()
	}
	return l.token(Unknown, nil)
}

func (l *Lexer) skipDigits(hex bool) int {
	n := 0
	for {
		b, ok := l.peek()
		if !ok || !(isDigit(b) || (hex && isHex(b))) {
			return n
		}
		l.advance()
		n++
	}
}

// scanNumber handles ints (decimal or hex, with u/l suffixes) and floats
// (fraction and/or exponent, with an f or l suffix).
func (l *Lexer) scanNumber() (Token, error) {
	neg := false
	if b, _ := l.peek(); b == '+' || b == '-' {
		neg = b == '-'
		l.advance()
	}
	bodyStart := l.cur

	if b0, _ := l.peekN(0); b0 == '0' {
		if b1, _ := l.peekN(1); b1 == 'x' || b1 == 'X' {
			if b2, ok := l.peekN(2); ok && isHex(b2) {
				l.cur += 2
				l.skipDigits(true)
				return l.finishInt(l.src[bodyStart+2:l.cur], 16, neg)
			}
		}
	}

	l.skipDigits(false)
	isFloat := false
	if b, ok := l.peek(); ok && b == '.' {
		isFloat = true
		l.advance()
		l.skipDigits(false)
	}
	if b, ok := l.peek(); ok && (b == 'e' || b == 'E') {
		save := l.cur
		l.advance()
		if s, ok := l.peek(); ok && (s == '+' || s == '-') {
			l.advance()
		}
		if l.skipDigits(false) > 0 {
			isFloat = true
		} else {
			l.cur = save
		}
	}
	if !isFloat {
		return l.finishInt(l.src[bodyStart:l.cur], 10, neg)
	}

	body := l.src[l.start:l.cur]
	kind := DoubleLiteral
	if b, ok := l.peek(); ok {
		switch b {
		case 'f', 'F':
			kind = FloatLiteral
			l.advance()
		case 'l', 'L':
			l.advance()
		}
	}
	if err := l.checkNumberEnd(); err != nil {
		return Token{}, err
	}
	f, err := strconv.ParseFloat(body, 64)
	if err != nil && !isRangeErr(err) {
		return Token{}, l.errAt(l.start, "invalid float literal %q", l.src[l.start:l.cur])
	}
	if kind == FloatLiteral {
		return l.token(kind, float32(f)), nil
	}
	return l.token(kind, f), nil
}

func (l *Lexer) finishInt(digits string, base int, neg bool) (Token, error) {
	suffixStart := l.cur
	for n := 0; n < 3; n++ {
		b, ok := l.peek()
		if !ok || !(b == 'u' || b == 'U' || b == 'l' || b == 'L') {
			break
		}
		l.advance()
	}
	suffix := l.src[suffixStart:l.cur]
	if err := l.checkNumberEnd(); err != nil {
		return Token{}, err
	}
	u, err := strconv.ParseUint(digits, base, 64)
	if err != nil {
		return Token{}, l.errAt(l.start, "integer literal %q out of range", l.src[l.start:l.cur])
	}
	v := int64(u)
	if neg {
		v = -v
	}
	if strings.ContainsAny(suffix, "lL") {
		return l.token(LongLiteral, v), nil
	}
	return l.token(IntLiteral, int32(v)), nil
}

// checkNumberEnd rejects literals glued to anything but whitespace, like
// 12ab or 5-3.
func (l *Lexer) checkNumberEnd() error {
	b, ok := l.peek()
	if !ok || isSpace(b) {
		return nil
	}
	for !l.isAtEnd() && !isSpace(l.src[l.cur]) {
		l.cur++
	}
	return l.errAt(l.start, "malformed number literal %q", l.src[l.start:l.cur])
}

func isRangeErr(err error) bool {
	ne, ok := err.(*strconv.NumError)
	return ok && ne.Err == strconv.ErrRange
}

func (l *Lexer) scanString() (Token, error) {
	l.advance() // opening quote
	var out []byte
	for {
		ch, ok := l.advance()
		if !ok {
			return Token{}, l.errAt(l.start, "unterminated string literal")
		}
		if ch == '"' {
			return l.token(StringLiteral, string(out)), nil
		}
		if ch == '\\' {
			b, err := l.scanEscape()
			if err != nil {
				return Token{}, err
			}
			out = append(out, b)
			continue
		}
		out = append(out, ch)
	}
}

func (l *Lexer) scanChar() (Token, error) {
	l.advance() // opening quote
	var out []byte
	for {
		ch, ok := l.advance()
		if !ok {
			return Token{}, l.errAt(l.start, "unterminated char literal")
		}
		if ch == '\'' {
			break
		}
		if ch == '\\' {
			b, err := l.scanEscape()
			if err != nil {
				return Token{}, err
			}
			out = append(out, b)
			continue
		}
		out = append(out, ch)
	}
	if len(out) != 1 {
		return Token{}, l.errAt(l.start, "char literal must be single character")
	}
	return l.token(CharLiteral, int8(out[0])), nil
}

// scanEscape decodes the C escape following a backslash.
func (l *Lexer) scanEscape() (byte, error) {
	at := l.cur - 1
	esc, ok := l.advance()
	if !ok {
		return 0, l.errAt(at, "unfinished escape sequence")
	}
	switch esc {
	case 'n':
		return '\n', nil
	case 't':
		return '\t', nil
	case 'r':
		return '\r', nil
	case 'a':
		return '\a', nil
	case 'b':
		return '\b', nil
	case 'f':
		return '\f', nil
	case 'v':
		return '\v', nil
	case '\\', '\'', '"', '?':
		return esc, nil
	case 'x':
		start := l.cur
		if l.skipDigits(true) == 0 {
			return 0, l.errAt(at, "\\x used with no following hex digits")
		}
		v, err := strconv.ParseUint(l.src[start:l.cur], 16, 64)
		if err != nil || v > 0xFF {
			return 0, l.errAt(at, "hex escape sequence out of range")
		}
		return byte(v), nil
	}
	if esc >= '0' && esc <= '7' {
		v := int(esc - '0')
		for n := 0; n < 2; n++ {
			b, ok := l.peek()
			if !ok || b < '0' || b > '7' {
				break
			}
			v = v*8 + int(b-'0')
			l.advance()
		}
		if v > 0xFF {
			return 0, l.errAt(at, "octal escape sequence out of range")
		}
		return byte(v), nil
	}
	return 0, l.errAt(at, "invalid escape sequence: \\%c", esc)
}
