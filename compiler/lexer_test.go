package compiler

import (
	"strings"
	"testing"
)

func TestLexerKeywords(t *testing.T) {
	for _, kw := range Keywords() {
		tok := NewStringLexer(kw).NextToken()
		if tok.Type == TokenIdentifier || tok.Type.String() != kw {
			t.Errorf("Lexer(%q): type = %v, want keyword", kw, tok.Type)
		}
	}
}

func TestLexerIdentifiers(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"foo", "foo"},
		{"arr_2", "arr_2"},
		{"x1y2", "x1y2"},
		{"funcs", "funcs"},
		{"If", "If"},
	}

	for _, tc := range tests {
		tok := NewStringLexer(tc.input).NextToken()
		if tok.Type != TokenIdentifier {
			t.Errorf("Lexer(%q): type = %v, want IDENTIFIER", tc.input, tok.Type)
		}
		if tok.Literal != tc.want {
			t.Errorf("Lexer(%q): literal = %q, want %q", tc.input, tok.Literal, tc.want)
		}
	}
}

func TestLexerNumbers(t *testing.T) {
	tests := []struct {
		input string
		num   float64
		kind  NumberKind
	}{
		{"42", 42, NumberInt},
		{"0", 0, NumberInt},
		{"3.14", 3.14, NumberDouble},
		{".5", 0.5, NumberDouble},
		{"7.0", 7, NumberDouble},
		{"7.", 7, NumberInt},
		{"1.2.3", 1.2, NumberDouble},
		{"99999999999999999999", 1e20, NumberDouble},
	}

	for _, tc := range tests {
		tok := NewStringLexer(tc.input).NextToken()
		if tok.Type != TokenNumber {
			t.Errorf("Lexer(%q): type = %v, want NUMBER", tc.input, tok.Type)
			continue
		}
		if tok.Num != tc.num {
			t.Errorf("Lexer(%q): num = %v, want %v", tc.input, tok.Num, tc.num)
		}
		if tok.Kind != tc.kind {
			t.Errorf("Lexer(%q): kind = %v, want %v", tc.input, tok.Kind, tc.kind)
		}
	}
}

func TestLexerIntegerLiteralsAreExact(t *testing.T) {
	tests := []struct {
		input string
		want  int64
	}{
		{"9223372036854775807", 9223372036854775807},
		{"9007199254740993", 9007199254740993},
		{"12.", 12},
		{"0", 0},
	}
	for _, tc := range tests {
		tok := NewStringLexer(tc.input).NextToken()
		if tok.Kind != NumberInt || tok.Int != tc.want {
			t.Errorf("Lexer(%q): int = %d (%v), want %d", tc.input, tok.Int, tok.Kind, tc.want)
		}
	}
	if tok := NewStringLexer("9223372036854775808").NextToken(); tok.Kind != NumberDouble {
		t.Errorf("Lexer(2^63): kind = %v, want double", tok.Kind)
	}
}

func TestLexerPunctuation(t *testing.T) {
	input := `( ) [ ] , ; @ + <= { }`
	expected := []struct {
		typ TokenType
		ch  rune
	}{
		{TokenChar, '('},
		{TokenChar, ')'},
		{TokenChar, '['},
		{TokenChar, ']'},
		{TokenChar, ','},
		{TokenChar, ';'},
		{TokenChar, '@'},
		{TokenChar, '+'},
		{TokenChar, '<'},
		{TokenChar, '='},
		{TokenLBlock, 0},
		{TokenRBlock, 0},
		{TokenEOF, 0},
	}

	l := NewStringLexer(input)
	for i, exp := range expected {
		tok := l.NextToken()
		if tok.Type != exp.typ {
			t.Errorf("token[%d] type = %v, want %v", i, tok.Type, exp.typ)
		}
		if exp.typ == TokenChar && tok.Char != exp.ch {
			t.Errorf("token[%d] char = %q, want %q", i, tok.Char, exp.ch)
		}
	}
}

func TestLexerComments(t *testing.T) {
	tokens := Tokenize("a # comment until newline\nb # trailing")
	if len(tokens) != 3 {
		t.Fatalf("got %d tokens, want 3: %v", len(tokens), tokens)
	}
	if tokens[0].Literal != "a" || tokens[1].Literal != "b" {
		t.Errorf("tokens = %v", tokens)
	}
	if tokens[2].Type != TokenEOF {
		t.Errorf("last token = %v, want EOF", tokens[2])
	}
}

func TestLexerEOFIsSticky(t *testing.T) {
	l := NewStringLexer("x")
	l.NextToken()
	for i := 0; i < 3; i++ {
		if tok := l.NextToken(); tok.Type != TokenEOF {
			t.Fatalf("call %d: got %v, want EOF", i, tok)
		}
	}
}

func TestLexerPositions(t *testing.T) {
	tokens := Tokenize("a\n  bb\ncc")
	want := []Position{
		{Offset: 0, Line: 1, Column: 1},
		{Offset: 4, Line: 2, Column: 3},
		{Offset: 7, Line: 3, Column: 1},
	}
	for i, pos := range want {
		if tokens[i].Pos != pos {
			t.Errorf("token[%d] pos = %+v, want %+v", i, tokens[i].Pos, pos)
		}
	}
}

func TestLexerPeek(t *testing.T) {
	l := NewStringLexer("<=x")
	tok := l.NextToken()
	if !tok.Is('<') {
		t.Fatalf("first token = %v, want '<'", tok)
	}
	if l.Peek() != '=' {
		t.Errorf("Peek() = %q, want '='", l.Peek())
	}
}

func TestLexerReadLine(t *testing.T) {
	l := NewStringLexer("import   lib/math  \nx")
	if tok := l.NextToken(); tok.Type != TokenImport {
		t.Fatalf("first token = %v, want import", tok)
	}
	if got := l.ReadLine(); got != "lib/math" {
		t.Errorf("ReadLine() = %q, want %q", got, "lib/math")
	}
	if tok := l.NextToken(); tok.Literal != "x" {
		t.Errorf("after ReadLine got %v, want x", tok)
	}
}

func TestLexerReaderSource(t *testing.T) {
	l := NewLexer(NewReaderSource(strings.NewReader("func f(x) x")))
	var types []TokenType
	for {
		tok := l.NextToken()
		types = append(types, tok.Type)
		if tok.Type == TokenEOF {
			break
		}
	}
	want := []TokenType{TokenFunc, TokenIdentifier, TokenChar, TokenIdentifier, TokenChar, TokenIdentifier, TokenEOF}
	if len(types) != len(want) {
		t.Fatalf("got %v, want %v", types, want)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Errorf("token[%d] = %v, want %v", i, types[i], want[i])
		}
	}
}

func TestLexerText(t *testing.T) {
	l := NewStringLexer("func f(x) x + 1")
	for tok := l.NextToken(); tok.Type != TokenEOF; tok = l.NextToken() {
	}
	if got := l.Text(0, 4); got != "func" {
		t.Errorf("Text(0, 4) = %q, want func", got)
	}
	if got := l.Text(10, 100); got != "x + 1" {
		t.Errorf("Text(10, 100) = %q, want %q", got, "x + 1")
	}
}
