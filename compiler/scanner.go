package compiler

import (
	"fmt"
	"unicode"
	"unicode/utf8"
)

// ---------------------------------------------------------------------------
// Scanner: on-demand tokenizer for Grava source
// ---------------------------------------------------------------------------

// Scanner produces tokens lazily, one NextToken call at a time. It never
// looks further ahead than one character and keeps returning EOF once
// the input is exhausted.
type Scanner struct {
	input   string
	pos     int  // current position in input
	readPos int  // reading position (after current char)
	ch      rune // current character
	line    int  // current line (1-based)
	col     int  // current column (1-based)
}

// NewScanner creates a scanner for the given source text.
func NewScanner(input string) *Scanner {
	s := &Scanner{
		input: input,
		line:  1,
	}
	s.readChar()
	return s
}

// readChar reads the next character. line/col track the character just
// read, so position() reports where the current lexeme starts.
func (s *Scanner) readChar() {
	if s.ch == '\n' {
		s.line++
		s.col = 0
	}
	if s.readPos >= len(s.input) {
		s.ch = 0 // EOF
		s.pos = s.readPos
	} else {
		r, size := utf8.DecodeRuneInString(s.input[s.readPos:])
		s.ch = r
		s.pos = s.readPos
		s.readPos += size
	}
	s.col++
}

// peekChar returns the next character without consuming it.
func (s *Scanner) peekChar() rune {
	if s.readPos >= len(s.input) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(s.input[s.readPos:])
	return r
}

// position returns the current position.
func (s *Scanner) position() Position {
	return Position{
		Offset: s.pos,
		Line:   s.line,
		Column: s.col,
	}
}

// NextToken returns the next token, skipping whitespace and comments.
func (s *Scanner) NextToken() Token {
	s.skipWhitespaceAndComments()

	pos := s.position()

	switch {
	case s.ch == 0:
		return Token{Type: TokenEOF, Literal: "", Pos: pos}

	case s.ch == '(':
		s.readChar()
		return Token{Type: TokenLParen, Literal: "(", Pos: pos}

	case s.ch == ')':
		s.readChar()
		return Token{Type: TokenRParen, Literal: ")", Pos: pos}

	case s.ch == '[':
		s.readChar()
		return Token{Type: TokenLBracket, Literal: "[", Pos: pos}

	case s.ch == ']':
		s.readChar()
		return Token{Type: TokenRBracket, Literal: "]", Pos: pos}

	case s.ch == ',':
		s.readChar()
		return Token{Type: TokenComma, Literal: ",", Pos: pos}

	case s.ch == '.':
		s.readChar()
		return Token{Type: TokenDot, Literal: ".", Pos: pos}

	case s.ch == ';':
		s.readChar()
		return Token{Type: TokenSemicolon, Literal: ";", Pos: pos}

	case s.ch == '+':
		s.readChar()
		return Token{Type: TokenPlus, Literal: "+", Pos: pos}

	case s.ch == '-':
		s.readChar()
		return Token{Type: TokenMinus, Literal: "-", Pos: pos}

	case s.ch == '*':
		s.readChar()
		return Token{Type: TokenStar, Literal: "*", Pos: pos}

	case s.ch == '/':
		s.readChar()
		return Token{Type: TokenSlash, Literal: "/", Pos: pos}

	case s.ch == '^':
		s.readChar()
		return Token{Type: TokenCaret, Literal: "^", Pos: pos}

	case s.ch == '!':
		s.readChar()
		if s.ch == '=' {
			s.readChar()
			return Token{Type: TokenBangEqual, Literal: "!=", Pos: pos}
		}
		return Token{Type: TokenBang, Literal: "!", Pos: pos}

	case s.ch == '=':
		s.readChar()
		if s.ch == '=' {
			s.readChar()
			return Token{Type: TokenEqualEqual, Literal: "==", Pos: pos}
		}
		return Token{Type: TokenEqual, Literal: "=", Pos: pos}

	case s.ch == '>':
		s.readChar()
		if s.ch == '=' {
			s.readChar()
			return Token{Type: TokenGreaterEqual, Literal: ">=", Pos: pos}
		}
		return Token{Type: TokenGreater, Literal: ">", Pos: pos}

	case s.ch == '<':
		s.readChar()
		if s.ch == '=' {
			s.readChar()
			return Token{Type: TokenLessEqual, Literal: "<=", Pos: pos}
		}
		return Token{Type: TokenLess, Literal: "<", Pos: pos}

	case s.ch == '"':
		return s.readString(pos)

	case isDigit(s.ch):
		return s.readNumber(pos)

	case isLetter(s.ch) || s.ch == '_':
		return s.readIdentifierOrKeyword(pos)

	default:
		ch := s.ch
		s.readChar()
		return Token{Type: TokenError, Literal: fmt.Sprintf("unexpected character: %c", ch), Pos: pos}
	}
}

// skipWhitespaceAndComments skips whitespace and // line comments.
func (s *Scanner) skipWhitespaceAndComments() {
	for {
		for s.ch == ' ' || s.ch == '\t' || s.ch == '\n' || s.ch == '\r' {
			s.readChar()
		}

		if s.ch == '/' && s.peekChar() == '/' {
			for s.ch != '\n' && s.ch != 0 {
				s.readChar()
			}
			continue
		}

		break
	}
}

// readString reads a double-quoted string literal. Strings may not span
// newlines; an unterminated string is a scan error.
func (s *Scanner) readString(pos Position) Token {
	s.readChar() // consume opening quote
	start := s.pos

	for s.ch != '"' {
		if s.ch == 0 || s.ch == '\n' {
			return Token{Type: TokenError, Literal: "unterminated string", Pos: pos}
		}
		s.readChar()
	}

	text := s.input[start:s.pos]
	s.readChar() // consume closing quote
	return Token{Type: TokenString, Literal: text, Pos: pos}
}

// readNumber reads a contiguous digit run with at most one decimal point.
func (s *Scanner) readNumber(pos Position) Token {
	start := s.pos

	for isDigit(s.ch) {
		s.readChar()
	}
	if s.ch == '.' && isDigit(s.peekChar()) {
		s.readChar() // consume '.'
		for isDigit(s.ch) {
			s.readChar()
		}
	}

	return Token{Type: TokenNumber, Literal: s.input[start:s.pos], Pos: pos}
}

// readIdentifierOrKeyword reads an identifier and classifies reserved
// words.
func (s *Scanner) readIdentifierOrKeyword(pos Position) Token {
	start := s.pos

	for isLetter(s.ch) || isDigit(s.ch) || s.ch == '_' {
		s.readChar()
	}

	text := s.input[start:s.pos]
	if tokType, ok := reservedWords[text]; ok {
		return Token{Type: tokType, Literal: text, Pos: pos}
	}
	return Token{Type: TokenIdentifier, Literal: text, Pos: pos}
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

func isLetter(r rune) bool {
	return unicode.IsLetter(r)
}
