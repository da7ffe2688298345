package compiler

import "fmt"

// ---------------------------------------------------------------------------
// Token types for the Grava scanner
// ---------------------------------------------------------------------------

// TokenType represents the type of a token.
type TokenType int

const (
	// Special tokens
	TokenEOF TokenType = iota
	TokenError

	// Literals
	TokenNumber     // 42, 3.14
	TokenString     // "hello"
	TokenIdentifier // foo, Bar

	// Delimiters
	TokenLParen    // (
	TokenRParen    // )
	TokenLBracket  // [
	TokenRBracket  // ]
	TokenComma     // ,
	TokenDot       // .
	TokenSemicolon // ;

	// Operators
	TokenPlus         // +
	TokenMinus        // -
	TokenStar         // *
	TokenSlash        // /
	TokenCaret        // ^
	TokenBang         // !
	TokenBangEqual    // !=
	TokenEqual        // =
	TokenEqualEqual   // ==
	TokenGreater      // >
	TokenGreaterEqual // >=
	TokenLess         // <
	TokenLessEqual    // <=

	// Reserved words
	TokenVar
	TokenPrint
	TokenNil
	TokenTrue
	TokenFalse
)

var tokenNames = map[TokenType]string{
	TokenEOF:          "EOF",
	TokenError:        "ERROR",
	TokenNumber:       "NUMBER",
	TokenString:       "STRING",
	TokenIdentifier:   "IDENTIFIER",
	TokenLParen:       "(",
	TokenRParen:       ")",
	TokenLBracket:     "[",
	TokenRBracket:     "]",
	TokenComma:        ",",
	TokenDot:          ".",
	TokenSemicolon:    ";",
	TokenPlus:         "+",
	TokenMinus:        "-",
	TokenStar:         "*",
	TokenSlash:        "/",
	TokenCaret:        "^",
	TokenBang:         "!",
	TokenBangEqual:    "!=",
	TokenEqual:        "=",
	TokenEqualEqual:   "==",
	TokenGreater:      ">",
	TokenGreaterEqual: ">=",
	TokenLess:         "<",
	TokenLessEqual:    "<=",
	TokenVar:          "var",
	TokenPrint:        "print",
	TokenNil:          "nil",
	TokenTrue:         "true",
	TokenFalse:        "false",
}

func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Token(%d)", int(t))
}

// Position is a location in the source text.
type Position struct {
	Offset int // byte offset, 0-based
	Line   int // 1-based
	Column int // 1-based
}

// Token represents a lexical token.
type Token struct {
	Type    TokenType
	Literal string   // the raw text (string tokens exclude the quotes)
	Pos     Position // start position
}

func (t Token) String() string {
	if t.Type == TokenEOF {
		return "EOF"
	}
	if t.Type == TokenError {
		return fmt.Sprintf("ERROR(%s)", t.Literal)
	}
	return fmt.Sprintf("%s(%q)", t.Type, t.Literal)
}

// Reserved words mapped to their token types.
var reservedWords = map[string]TokenType{
	"var":   TokenVar,
	"print": TokenPrint,
	"nil":   TokenNil,
	"true":  TokenTrue,
	"false": TokenFalse,
}
