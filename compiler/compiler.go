// Package compiler implements the Grava front end: a scanner feeding a
// single-pass recursive-descent compiler with Pratt operator-precedence
// parsing. Bytecode is emitted directly into a vm.Chunk; there is no
// intermediate syntax tree.
package compiler

import (
	"fmt"
	"strconv"

	"github.com/grava-lang/grava/tensor"
	"github.com/grava-lang/grava/vm"
)

// Error is a positioned compile error. Compilation fails atomically: a
// chunk is never returned alongside an error.
type Error struct {
	Pos Position
	Msg string
}

func (e *Error) Error() string {
	return fmt.Sprintf("compile error at %d:%d: %s", e.Pos.Line, e.Pos.Column, e.Msg)
}

// ---------------------------------------------------------------------------
// Precedence
// ---------------------------------------------------------------------------

// precedence levels, low to high.
type precedence int

const (
	precNone       precedence = iota
	precAssignment            // =
	precEquality              // == !=
	precComparison            // < > <= >=
	precTerm                  // + -
	precFactor                // * /
	precPower                 // ^ (right-associative)
	precUnary                 // ! -
	precCall                  // . ()
	precPrimary
)

type parseFn func(c *Compiler, canAssign bool)

// parseRule pairs the prefix and infix handlers for a token type with
// the precedence its infix form binds at.
type parseRule struct {
	prefix parseFn
	infix  parseFn
	prec   precedence
}

// ---------------------------------------------------------------------------
// Compiler
// ---------------------------------------------------------------------------

// Compiler holds the single-pass compilation state: the current and
// previous tokens, the chunk being emitted, and the shared interner.
type Compiler struct {
	scanner  *Scanner
	interner *vm.Interner
	chunk    *vm.Chunk

	current   Token
	previous  Token
	firstErr  *Error
	panicMode bool
}

// Compile scans and compiles source into a chunk, interning identifier
// and string literals via the given interner.
func Compile(source string, interner *vm.Interner) (*vm.Chunk, error) {
	c := &Compiler{
		scanner:  NewScanner(source),
		interner: interner,
		chunk:    vm.NewChunk(),
	}

	c.advance()
	for !c.match(TokenEOF) {
		c.declaration()
	}
	c.emit(vm.OpReturn)

	if c.firstErr != nil {
		return nil, c.firstErr
	}
	return c.chunk, nil
}

// ---------------------------------------------------------------------------
// Token plumbing and error recovery
// ---------------------------------------------------------------------------

func (c *Compiler) advance() {
	c.previous = c.current
	for {
		c.current = c.scanner.NextToken()
		if c.current.Type != TokenError {
			break
		}
		c.errorAtCurrent(c.current.Literal)
	}
}

func (c *Compiler) consume(t TokenType, msg string) {
	if c.current.Type == t {
		c.advance()
		return
	}
	c.errorAtCurrent(msg)
}

func (c *Compiler) check(t TokenType) bool {
	return c.current.Type == t
}

func (c *Compiler) match(t TokenType) bool {
	if !c.check(t) {
		return false
	}
	c.advance()
	return true
}

func (c *Compiler) errorAtCurrent(msg string) {
	c.errorAt(c.current, msg)
}

func (c *Compiler) errorAtPrevious(msg string) {
	c.errorAt(c.previous, msg)
}

// errorAt records the first error and enters panic mode; further errors
// are suppressed until the parser synchronizes at a statement boundary.
func (c *Compiler) errorAt(tok Token, msg string) {
	if c.panicMode {
		return
	}
	c.panicMode = true
	if c.firstErr == nil {
		if tok.Type == TokenEOF {
			msg = msg + " (at end of input)"
		}
		c.firstErr = &Error{Pos: tok.Pos, Msg: msg}
	}
}

// synchronize skips tokens until a likely statement boundary so parsing
// always terminates on malformed input.
func (c *Compiler) synchronize() {
	c.panicMode = false
	for c.current.Type != TokenEOF {
		if c.previous.Type == TokenSemicolon {
			return
		}
		switch c.current.Type {
		case TokenVar, TokenPrint:
			return
		}
		c.advance()
	}
}

// ---------------------------------------------------------------------------
// Emission
// ---------------------------------------------------------------------------

func (c *Compiler) emit(op vm.OpCode) {
	c.chunk.Write(op)
}

func (c *Compiler) emitConstant(v vm.Value) {
	c.emit(vm.OpConstant)
	c.chunk.WriteConstantRef(c.chunk.AddConstant(v))
}

// emitWithOperand emits an opcode followed by a constant reference for
// the given value.
func (c *Compiler) emitWithOperand(op vm.OpCode, v vm.Value) {
	c.emit(op)
	c.chunk.WriteConstantRef(c.chunk.AddConstant(v))
}

// identifierValue interns the identifier text of a token.
func (c *Compiler) identifierValue(tok Token) vm.Value {
	return vm.IdentifierValue(c.interner.Intern(tok.Literal))
}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

func (c *Compiler) declaration() {
	if c.match(TokenVar) {
		c.varDeclaration()
	} else {
		c.statement()
	}

	if c.panicMode {
		c.synchronize()
	}
}

// varDeclaration compiles `var name = expr;` (initializer optional,
// defaulting to nil) and binds the name with OpDefineGlobal.
func (c *Compiler) varDeclaration() {
	c.consume(TokenIdentifier, "expected variable name")
	name := c.previous

	if c.match(TokenEqual) {
		c.expression()
	} else {
		c.emit(vm.OpNil)
	}
	c.consume(TokenSemicolon, "expected ';' after variable declaration")

	c.emitWithOperand(vm.OpDefineGlobal, c.identifierValue(name))
}

func (c *Compiler) statement() {
	if c.match(TokenPrint) {
		c.printStatement()
	} else {
		c.expressionStatement()
	}
}

func (c *Compiler) printStatement() {
	c.expression()
	c.consume(TokenSemicolon, "expected ';' after value")
	c.emit(vm.OpPrint)
}

func (c *Compiler) expressionStatement() {
	c.expression()
	c.consume(TokenSemicolon, "expected ';' after expression")
	c.emit(vm.OpPop)
}

// ---------------------------------------------------------------------------
// Expressions (Pratt parser)
// ---------------------------------------------------------------------------

func (c *Compiler) expression() {
	c.parsePrecedence(precAssignment)
}

// parsePrecedence compiles the prefix form of the token just consumed,
// then folds in infix operators while their precedence is at least the
// requested one.
func (c *Compiler) parsePrecedence(prec precedence) {
	c.advance()
	rule := getRule(c.previous.Type)
	if rule.prefix == nil {
		c.errorAtPrevious("expected expression")
		return
	}

	canAssign := prec <= precAssignment
	rule.prefix(c, canAssign)

	for prec <= getRule(c.current.Type).prec {
		c.advance()
		getRule(c.previous.Type).infix(c, canAssign)
	}

	if canAssign && c.match(TokenEqual) {
		c.errorAtPrevious("invalid assignment target")
	}
}

// getRule returns the parse rule for a token type. Tokens with no entry
// have no expression role.
func getRule(t TokenType) parseRule {
	switch t {
	case TokenLParen:
		return parseRule{prefix: (*Compiler).grouping}
	case TokenLBracket:
		return parseRule{prefix: (*Compiler).tensorLiteral}
	case TokenDot:
		return parseRule{infix: (*Compiler).methodCall, prec: precCall}
	case TokenMinus:
		return parseRule{prefix: (*Compiler).unary, infix: (*Compiler).binary, prec: precTerm}
	case TokenPlus:
		return parseRule{infix: (*Compiler).binary, prec: precTerm}
	case TokenStar, TokenSlash:
		return parseRule{infix: (*Compiler).binary, prec: precFactor}
	case TokenCaret:
		return parseRule{infix: (*Compiler).binary, prec: precPower}
	case TokenBang:
		return parseRule{prefix: (*Compiler).unary}
	case TokenBangEqual, TokenEqualEqual:
		return parseRule{infix: (*Compiler).binary, prec: precEquality}
	case TokenGreater, TokenGreaterEqual, TokenLess, TokenLessEqual:
		return parseRule{infix: (*Compiler).binary, prec: precComparison}
	case TokenNumber:
		return parseRule{prefix: (*Compiler).number}
	case TokenString:
		return parseRule{prefix: (*Compiler).stringLiteral}
	case TokenIdentifier:
		return parseRule{prefix: (*Compiler).variable}
	case TokenNil, TokenTrue, TokenFalse:
		return parseRule{prefix: (*Compiler).literal}
	}
	return parseRule{}
}

func (c *Compiler) grouping(canAssign bool) {
	c.expression()
	c.consume(TokenRParen, "expected ')' after expression")
}

func (c *Compiler) number(canAssign bool) {
	value, err := strconv.ParseFloat(c.previous.Literal, 64)
	if err != nil {
		c.errorAtPrevious("invalid number literal")
		return
	}
	c.emitConstant(vm.NumberValue(value))
}

func (c *Compiler) stringLiteral(canAssign bool) {
	handle := c.interner.Intern(c.previous.Literal)
	c.emitConstant(vm.StringValue(handle))
}

func (c *Compiler) literal(canAssign bool) {
	switch c.previous.Type {
	case TokenNil:
		c.emit(vm.OpNil)
	case TokenTrue:
		c.emit(vm.OpTrue)
	case TokenFalse:
		c.emit(vm.OpFalse)
	}
}

// variable compiles an identifier reference, an assignment, or a bare
// call. A bare call pushes nil in place of a tensor receiver so the
// failure surfaces as the runtime's invalid-function error.
func (c *Compiler) variable(canAssign bool) {
	name := c.previous

	if c.check(TokenLParen) {
		c.advance()
		c.consume(TokenRParen, "expected ')' after arguments")
		c.emit(vm.OpNil)
		c.emitWithOperand(vm.OpCall, c.identifierValue(name))
		return
	}

	if canAssign && c.match(TokenEqual) {
		c.expression()
		c.emitWithOperand(vm.OpSetGlobal, c.identifierValue(name))
		return
	}

	c.emitWithOperand(vm.OpGetGlobal, c.identifierValue(name))
}

// methodCall compiles `<expr>.<name>()`. The receiver is already on the
// stack; the method name travels as an identifier constant.
func (c *Compiler) methodCall(canAssign bool) {
	c.consume(TokenIdentifier, "expected method name after '.'")
	name := c.previous
	c.consume(TokenLParen, "expected '(' after method name")
	c.consume(TokenRParen, "expected ')': methods take no arguments")

	c.emitWithOperand(vm.OpCall, c.identifierValue(name))
}

func (c *Compiler) unary(canAssign bool) {
	op := c.previous.Type
	c.parsePrecedence(precUnary)

	switch op {
	case TokenMinus:
		c.emit(vm.OpNegate)
	case TokenBang:
		c.emit(vm.OpNot)
	}
}

func (c *Compiler) binary(canAssign bool) {
	op := c.previous.Type
	rule := getRule(op)

	// Right-associative operators rebind at their own level; everything
	// else binds one level higher.
	if op == TokenCaret {
		c.parsePrecedence(rule.prec)
	} else {
		c.parsePrecedence(rule.prec + 1)
	}

	switch op {
	case TokenPlus:
		c.emit(vm.OpAdd)
	case TokenMinus:
		c.emit(vm.OpSubtract)
	case TokenStar:
		c.emit(vm.OpMultiply)
	case TokenSlash:
		c.emit(vm.OpDivide)
	case TokenCaret:
		c.emit(vm.OpPower)
	case TokenEqualEqual:
		c.emit(vm.OpEqualEqual)
	case TokenBangEqual:
		c.emit(vm.OpEqualEqual)
		c.emit(vm.OpNot)
	case TokenGreater:
		c.emit(vm.OpGreater)
	case TokenGreaterEqual:
		c.emit(vm.OpLess)
		c.emit(vm.OpNot)
	case TokenLess:
		c.emit(vm.OpLess)
	case TokenLessEqual:
		c.emit(vm.OpGreater)
		c.emit(vm.OpNot)
	}
}

// ---------------------------------------------------------------------------
// Tensor literals
// ---------------------------------------------------------------------------

// tensorLiteral compiles `[1, -2]` or nested `[[1, 2], [3, 4]]` into a
// tensor constant. Elements must be (optionally negated) number
// literals; the tensor is built at compile time and lives in the pool.
func (c *Compiler) tensorLiteral(canAssign bool) {
	data, shape := c.tensorLevel()
	if c.firstErr != nil {
		return
	}

	t := tensor.New(shape...)
	copy(t.Data, data)
	c.emitConstant(vm.TensorValue(t))
}

// tensorLevel parses one bracket level; the opening '[' has been
// consumed. Nested rows must agree in shape.
func (c *Compiler) tensorLevel() (data []float64, shape []int) {
	if c.match(TokenRBracket) {
		return nil, []int{0}
	}

	if c.check(TokenLBracket) {
		rows := 0
		var rowShape []int
		for {
			c.consume(TokenLBracket, "expected '[' to open tensor row")
			rowData, rs := c.tensorLevel()
			if c.firstErr != nil {
				return nil, nil
			}
			if rows == 0 {
				rowShape = rs
			} else if !shapeEqual(rowShape, rs) {
				c.errorAtPrevious("tensor rows must have equal shape")
				return nil, nil
			}
			data = append(data, rowData...)
			rows++
			if !c.match(TokenComma) {
				break
			}
		}
		c.consume(TokenRBracket, "expected ']' after tensor rows")
		return data, append([]int{rows}, rowShape...)
	}

	for {
		data = append(data, c.tensorElement())
		if c.firstErr != nil {
			return nil, nil
		}
		if !c.match(TokenComma) {
			break
		}
	}
	c.consume(TokenRBracket, "expected ']' after tensor elements")
	return data, []int{len(data)}
}

// tensorElement parses one scalar element: a number literal with an
// optional leading minus.
func (c *Compiler) tensorElement() float64 {
	negate := c.match(TokenMinus)
	c.consume(TokenNumber, "expected number in tensor literal")
	if c.firstErr != nil {
		return 0
	}
	value, err := strconv.ParseFloat(c.previous.Literal, 64)
	if err != nil {
		c.errorAtPrevious("invalid number literal")
		return 0
	}
	if negate {
		return -value
	}
	return value
}

func shapeEqual(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
