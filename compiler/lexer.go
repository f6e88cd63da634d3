package compiler

import (
	"bufio"
	"io"
	"strconv"
	"strings"
)

// ---------------------------------------------------------------------------
// Lexer: Tokenizer for SEL source
// ---------------------------------------------------------------------------

// EOF is the end-of-stream sentinel returned by a Source.
const EOF rune = -1

// Source yields the characters of a program one at a time. Once the end of
// input is reached every further call returns EOF.
type Source interface {
	ReadRune() rune
}

// stringSource indexes into a pre-loaded buffer that ends with EOF.
type stringSource struct {
	buf []rune
	idx int
}

// NewStringSource returns a batch source over s.
func NewStringSource(s string) Source {
	buf := []rune(s)
	buf = append(buf, EOF)
	return &stringSource{buf: buf}
}

func (s *stringSource) ReadRune() rune {
	ch := s.buf[s.idx]
	if ch != EOF {
		s.idx++
	}
	return ch
}

// readerSource pulls one character at a time from a reader, typically stdin.
type readerSource struct {
	r    *bufio.Reader
	done bool
}

// NewReaderSource returns an interactive source reading from r.
func NewReaderSource(r io.Reader) Source {
	br, ok := r.(*bufio.Reader)
	if !ok {
		br = bufio.NewReader(r)
	}
	return &readerSource{r: br}
}

func (s *readerSource) ReadRune() rune {
	if s.done {
		return EOF
	}
	ch, _, err := s.r.ReadRune()
	if err != nil {
		s.done = true
		return EOF
	}
	return ch
}

// Lexer tokenizes SEL source code.
type Lexer struct {
	src      Source
	last     rune // lookahead character, not yet part of any token
	line     int
	col      int
	offset   int
	consumed []rune // every character read so far
}

// NewLexer creates a new lexer reading from src.
func NewLexer(src Source) *Lexer {
	return &Lexer{
		src:    src,
		last:   ' ',
		line:   1,
		offset: -1,
	}
}

// NewStringLexer is shorthand for NewLexer(NewStringSource(input)).
func NewStringLexer(input string) *Lexer {
	return NewLexer(NewStringSource(input))
}

// advance reads the next character into the lookahead slot.
func (l *Lexer) advance() {
	if l.last == EOF {
		return
	}
	if l.last == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
	l.offset++
	l.last = l.src.ReadRune()
	if l.last != EOF {
		l.consumed = append(l.consumed, l.last)
	}
}

// position returns the position of the lookahead character.
func (l *Lexer) position() Position {
	return Position{Offset: l.offset, Line: l.line, Column: l.col}
}

// Peek returns the raw lookahead character: the first character after the
// most recently returned token.
func (l *Lexer) Peek() rune {
	return l.last
}

// Text returns the consumed source between two rune offsets.
func (l *Lexer) Text(start, end int) string {
	if start < 0 {
		start = 0
	}
	if end > len(l.consumed) {
		end = len(l.consumed)
	}
	if start >= end {
		return ""
	}
	return string(l.consumed[start:end])
}

// NextToken returns the next token.
func (l *Lexer) NextToken() Token {
	for isSpace(l.last) {
		l.advance()
	}

	pos := l.position()

	switch {
	case isLetter(l.last):
		return l.readIdentifierOrKeyword(pos)

	case isDigit(l.last) || l.last == '.':
		return l.readNumber(pos)

	case l.last == '#':
		for {
			l.advance()
			if l.last == EOF || l.last == '\n' || l.last == '\r' {
				break
			}
		}
		if l.last == EOF {
			return Token{Type: TokenEOF, Pos: l.position()}
		}
		return l.NextToken()

	case l.last == '{':
		l.advance()
		return Token{Type: TokenLBlock, Literal: "{", Pos: pos}

	case l.last == '}':
		l.advance()
		return Token{Type: TokenRBlock, Literal: "}", Pos: pos}

	case l.last == EOF:
		// Don't eat the EOF.
		return Token{Type: TokenEOF, Pos: pos}

	default:
		ch := l.last
		l.advance()
		return Token{Type: TokenChar, Literal: string(ch), Char: ch, Pos: pos}
	}
}

// readIdentifierOrKeyword reads [A-Za-z][A-Za-z0-9_]*.
func (l *Lexer) readIdentifierOrKeyword(pos Position) Token {
	var sb strings.Builder
	for isLetter(l.last) || isDigit(l.last) || l.last == '_' {
		sb.WriteRune(l.last)
		l.advance()
	}
	literal := sb.String()
	if tokType, ok := reservedWords[literal]; ok {
		return Token{Type: tokType, Literal: literal, Pos: pos}
	}
	return Token{Type: TokenIdentifier, Literal: literal, Pos: pos}
}

// readNumber reads a run of digits and dots. Only the longest numeric prefix
// of the run contributes to the value, so "1.2.3" reads as 1.2.
func (l *Lexer) readNumber(pos Position) Token {
	var sb strings.Builder
	for isDigit(l.last) || l.last == '.' {
		sb.WriteRune(l.last)
		l.advance()
	}
	literal := sb.String()
	tok := Token{Type: TokenNumber, Literal: literal, Pos: pos}
	tok.Num, tok.Int, tok.Kind = parseNumber(literal)
	return tok
}

// parseNumber converts a digit/dot run into a value and its kind. A literal
// is a double only when digits follow its decimal point. Integers are parsed
// exactly into i; f holds the same value as a double.
func parseNumber(run string) (f float64, i int64, kind NumberKind) {
	prefix := run
	if first := strings.IndexByte(run, '.'); first >= 0 {
		if second := strings.IndexByte(run[first+1:], '.'); second >= 0 {
			prefix = run[:first+1+second]
		}
	}

	intPart, fracPart, hasDot := strings.Cut(prefix, ".")
	if hasDot && fracPart != "" {
		v, err := strconv.ParseFloat(prefix, 64)
		if err != nil {
			return 0, 0, NumberDouble
		}
		return v, 0, NumberDouble
	}
	if intPart == "" {
		return 0, 0, NumberInt
	}
	if n, err := strconv.ParseInt(intPart, 10, 64); err == nil {
		return float64(n), n, NumberInt
	}
	// Too large for an int payload.
	v, _ := strconv.ParseFloat(intPart, 64)
	return v, 0, NumberDouble
}

// ReadLine returns the raw text from the lookahead character up to, but not
// including, the next newline, ';' or end of input. Leading and trailing
// blanks are trimmed.
func (l *Lexer) ReadLine() string {
	for l.last == ' ' || l.last == '\t' {
		l.advance()
	}
	var sb strings.Builder
	for l.last != '\n' && l.last != ';' && l.last != EOF {
		sb.WriteRune(l.last)
		l.advance()
	}
	return strings.TrimSpace(sb.String())
}

// Helper functions

func isSpace(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '\r', '\v', '\f':
		return true
	}
	return false
}

func isLetter(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

// Tokenize returns all tokens from the input, ending with TokenEOF.
func Tokenize(input string) []Token {
	l := NewStringLexer(input)
	var tokens []Token
	for {
		tok := l.NextToken()
		tokens = append(tokens, tok)
		if tok.Type == TokenEOF {
			break
		}
	}
	return tokens
}
