// lexer_test.go
package crepl

import (
	"errors"
	"reflect"
	"testing"
)

func toks(t *testing.T, src string) []Token {
	t.Helper()
	ts, err := NewLexer(src).All()
	if err != nil {
		t.Fatalf("All error: %v", err)
	}
	return ts
}

func kinds(tokens []Token) []TokenKind {
	out := make([]TokenKind, 0, len(tokens))
	for _, tk := range tokens {
		out = append(out, tk.Kind)
	}
	return out
}

func wantKinds(t *testing.T, src string, want []TokenKind) []Token {
	t.Helper()
	got := toks(t, src)
	if !reflect.DeepEqual(kinds(got), want) {
		t.Fatalf("\nsource: %s\nwant kinds: %v\ngot kinds:  %v", src, want, kinds(got))
	}
	return got
}

func wantTokenizeError(t *testing.T, src, msg string) *TokenizeError {
	t.Helper()
	_, err := NewLexer(src).All()
	var te *TokenizeError
	if !errors.As(err, &te) {
		t.Fatalf("source %q: want *TokenizeError, got %v", src, err)
	}
	wantErrContains(t, te, msg)
	return te
}

func Test_Lexer_CallLine(t *testing.T) {
	got := wantKinds(t, `add 1 2L 3.5 2.5f "hi" 'c'`, []TokenKind{
		Identifier, IntLiteral, LongLiteral, DoubleLiteral, FloatLiteral, StringLiteral, CharLiteral,
	})
	want := []any{"add", int32(1), int64(2), 3.5, float32(2.5), "hi", int8('c')}
	for i, w := range want {
		if got[i].Value != w {
			t.Errorf("token %d (%q) value = %#v, want %#v", i, got[i].Raw, got[i].Value, w)
		}
	}
}

func Test_Lexer_PositionsAndRaw(t *testing.T) {
	got := toks(t, "  greet   \"bob\"  ")
	if got[0].Pos != 0 || got[0].Raw != "greet" {
		t.Fatalf("first token = %+v", got[0])
	}
	if got[1].Pos != 8 || got[1].Raw != `"bob"` {
		t.Fatalf("second token = %+v", got[1])
	}
}

func Test_Lexer_Integers(t *testing.T) {
	cases := []struct {
		src  string
		kind TokenKind
		val  any
	}{
		{"42", IntLiteral, int32(42)},
		{"-10", IntLiteral, int32(-10)},
		{"+7", IntLiteral, int32(7)},
		{"0x2A", IntLiteral, int32(42)},
		{"0XfF", IntLiteral, int32(255)},
		{"0xFF000000", IntLiteral, int32(-16777216)},
		{"42u", IntLiteral, int32(42)},
		{"100L", LongLiteral, int64(100)},
		{"-5l", LongLiteral, int64(-5)},
		{"7UL", LongLiteral, int64(7)},
		{"9ull", LongLiteral, int64(9)},
		{"0x7fffffffffffffffL", LongLiteral, int64(9223372036854775807)},
	}
	for _, tc := range cases {
		t.Run(tc.src, func(t *testing.T) {
			got := toks(t, tc.src)
			if len(got) != 1 || got[0].Kind != tc.kind || got[0].Value != tc.val {
				t.Fatalf("got %+v, want %v %#v", got, tc.kind, tc.val)
			}
		})
	}
}

func Test_Lexer_Floats(t *testing.T) {
	cases := []struct {
		src  string
		kind TokenKind
		val  any
	}{
		{"3.14", DoubleLiteral, 3.14},
		{".5", DoubleLiteral, 0.5},
		{"1e3", DoubleLiteral, 1000.0},
		{"2.5e-1", DoubleLiteral, 0.25},
		{"-1.5", DoubleLiteral, -1.5},
		{"2.5f", FloatLiteral, float32(2.5)},
		{"1.0F", FloatLiteral, float32(1)},
		{"1.0L", DoubleLiteral, 1.0},
		{"5.", DoubleLiteral, 5.0},
	}
	for _, tc := range cases {
		t.Run(tc.src, func(t *testing.T) {
			got := toks(t, tc.src)
			if len(got) != 1 || got[0].Kind != tc.kind || got[0].Value != tc.val {
				t.Fatalf("got %+v, want %v %#v", got, tc.kind, tc.val)
			}
		})
	}
}

func Test_Lexer_Strings(t *testing.T) {
	cases := map[string]string{
		`"hello world"`: "hello world",
		`""`:            "",
		`"a\nb\tc"`:     "a\nb\tc",
		`"q\"uote"`:     `q"uote`,
		`"\x41\102"`:    "AB",
		`"back\\slash"`: `back\slash`,
	}
	for src, want := range cases {
		got := toks(t, src)
		if len(got) != 1 || got[0].Kind != StringLiteral || got[0].Value != want {
			t.Errorf("%s: got %+v, want %q", src, got, want)
		}
	}
}

func Test_Lexer_Chars(t *testing.T) {
	cases := map[string]int8{
		`'a'`:  'a',
		`'Z'`:  'Z',
		`'\n'`: '\n',
		`'\''`: '\'',
		`'\0'`: 0,
	}
	for src, want := range cases {
		got := toks(t, src)
		if len(got) != 1 || got[0].Kind != CharLiteral || got[0].Value != want {
			t.Errorf("%s: got %+v, want %d", src, got, want)
		}
	}
	wantTokenizeError(t, `'ab'`, "char literal must be single character")
	wantTokenizeError(t, `''`, "char literal must be single character")
}

func Test_Lexer_UnknownRuns(t *testing.T) {
	got := wantKinds(t, "f @@x - ptr->y", []TokenKind{Identifier, Unknown, Unknown, Identifier, Unknown})
	if got[1].Raw != "@@x" || got[2].Raw != "-" || got[4].Raw != "->y" {
		t.Fatalf("raw spans = %q %q %q", got[1].Raw, got[2].Raw, got[4].Raw)
	}
}

func Test_Lexer_Errors(t *testing.T) {
	te := wantTokenizeError(t, `greet "bob`, "unterminated string literal")
	if te.Pos != 6 {
		t.Fatalf("pos = %d, want 6", te.Pos)
	}
	wantTokenizeError(t, `f "\q"`, "invalid escape sequence")
	wantTokenizeError(t, `f "\x"`, "no following hex digits")
	wantTokenizeError(t, "f 12ab", "malformed number literal")
	wantTokenizeError(t, "f 1.2.3", "malformed number literal")
	for _, src := range []string{"f 5-3", "f 5+3", `f 1"x"`, "f 2'a'", "f 0x1f-1", "f 2.5f+1", "f 3L,4"} {
		wantTokenizeError(t, src, "malformed number literal")
	}
	wantTokenizeError(t, "f 99999999999999999999", "out of range")
	wantTokenizeError(t, "f 'x", "unterminated char literal")
}

func Test_Lexer_LazyAndSticky(t *testing.T) {
	lx := NewLexer("f 1")
	for i := 0; i < 2; i++ {
		if _, ok, err := lx.Next(); !ok || err != nil {
			t.Fatalf("token %d: ok=%v err=%v", i, ok, err)
		}
	}
	for i := 0; i < 3; i++ {
		if _, ok, err := lx.Next(); ok || err != nil {
			t.Fatalf("after end: ok=%v err=%v", ok, err)
		}
	}

	lx = NewLexer(`f "open`)
	lx.Next()
	if _, _, err := lx.Next(); err == nil {
		t.Fatal("want error")
	}
	if _, ok, err := lx.Next(); ok || err != nil {
		t.Fatalf("after error: ok=%v err=%v", ok, err)
	}
}

func Test_Lexer_Callee(t *testing.T) {
	name, err := NewLexer("   add_ret 1 2").Callee()
	if err != nil || name != "add_ret" {
		t.Fatalf("Callee = %q, %v", name, err)
	}
	for _, src := range []string{"42 add", `"add" 1`, "@x", "-1", `'ab' x`, `"abc`, "12ab foo", "5-3 f"} {
		_, err := NewLexer(src).Callee()
		var te *TokenizeError
		if !errors.As(err, &te) || te.Msg != "function name must be an identifier" {
			t.Errorf("%q: got %v", src, err)
		}
	}
}

func Test_Lexer_Text_Trims(t *testing.T) {
	if got := NewLexer("\t add 1 \r\n").Text(); got != "add 1" {
		t.Fatalf("Text = %q", got)
	}
}

func Test_TokenKind_String(t *testing.T) {
	if IntLiteral.String() != "int literal" || TokenKind(99).String() != "TokenKind(99)" {
		t.Fatalf("unexpected names: %q %q", IntLiteral.String(), TokenKind(99).String())
	}
}
