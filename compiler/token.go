package compiler

import "fmt"

// ---------------------------------------------------------------------------
// Token types for the SEL lexer
// ---------------------------------------------------------------------------

// TokenType represents the type of a token.
type TokenType int

const (
	// Special tokens
	TokenEOF TokenType = iota

	// Primary
	TokenIdentifier // foo, arr_2
	TokenNumber     // 42, 3.14, .5

	// Keywords
	TokenFunc
	TokenExtern
	TokenImport
	TokenArr
	TokenIf
	TokenThen
	TokenElse
	TokenFor
	TokenWhile
	TokenRept
	TokenLoop
	TokenBinary
	TokenUnary
	TokenBreak
	TokenReturn
	TokenVar

	// Block delimiters
	TokenLBlock // {
	TokenRBlock // }

	// TokenChar is any other single character. The character itself is
	// carried in Token.Char.
	TokenChar
)

var tokenNames = map[TokenType]string{
	TokenEOF:        "EOF",
	TokenIdentifier: "IDENTIFIER",
	TokenNumber:     "NUMBER",
	TokenFunc:       "func",
	TokenExtern:     "extern",
	TokenImport:     "import",
	TokenArr:        "arr",
	TokenIf:         "if",
	TokenThen:       "then",
	TokenElse:       "else",
	TokenFor:        "for",
	TokenWhile:      "while",
	TokenRept:       "rept",
	TokenLoop:       "loop",
	TokenBinary:     "binary",
	TokenUnary:      "unary",
	TokenBreak:      "break",
	TokenReturn:     "return",
	TokenVar:        "var",
	TokenLBlock:     "{",
	TokenRBlock:     "}",
	TokenChar:       "CHAR",
}

func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Token(%d)", t)
}

// NumberKind tells whether a numeric literal is an integer or a double.
type NumberKind int

const (
	NumberInt NumberKind = iota
	NumberDouble
)

func (k NumberKind) String() string {
	if k == NumberDouble {
		return "double"
	}
	return "int"
}

// Position represents a source location.
type Position struct {
	Offset int // rune offset
	Line   int // 1-based line number
	Column int // 1-based column number
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Token represents a lexical token.
type Token struct {
	Type    TokenType
	Literal string // the raw text
	Char    rune   // for TokenChar
	Num     float64
	Int     int64 // exact value of an integer literal
	Kind    NumberKind
	Pos     Position
}

// Is reports whether the token is the punctuation character c.
func (t Token) Is(c rune) bool {
	return t.Type == TokenChar && t.Char == c
}

func (t Token) String() string {
	switch t.Type {
	case TokenEOF:
		return "EOF"
	case TokenChar:
		return fmt.Sprintf("CHAR(%q)", t.Char)
	case TokenIdentifier, TokenNumber:
		return fmt.Sprintf("%s(%q)", t.Type, t.Literal)
	}
	return t.Type.String()
}

// Reserved words mapped to their token types.
var reservedWords = map[string]TokenType{
	"func":   TokenFunc,
	"extern": TokenExtern,
	"import": TokenImport,
	"arr":    TokenArr,
	"if":     TokenIf,
	"then":   TokenThen,
	"else":   TokenElse,
	"for":    TokenFor,
	"while":  TokenWhile,
	"rept":   TokenRept,
	"loop":   TokenLoop,
	"binary": TokenBinary,
	"unary":  TokenUnary,
	"break":  TokenBreak,
	"return": TokenReturn,
	"var":    TokenVar,
}

// Keywords returns the reserved words in declaration order.
func Keywords() []string {
	return []string{
		"func", "extern", "import", "arr", "if", "then", "else", "for",
		"while", "rept", "loop", "binary", "unary", "break", "return", "var",
	}
}

// IsOperatorChar reports whether r may appear in an operator spelling.
func IsOperatorChar(r rune) bool {
	switch r {
	case '<', '>', '+', '-', '*', '/', '%', '!', '&', '|', '=', '^', '~', '?', ':', '\\', '$':
		return true
	}
	return false
}
