package vm

import "fmt"

// ---------------------------------------------------------------------------
// Opcode definitions
// ---------------------------------------------------------------------------

// OpCode represents a single bytecode instruction.
type OpCode uint8

const (
	OpReturn OpCode = iota // terminate interpretation
	OpConstant             // push constant (constant ref follows)

	// Singleton literals
	OpNil
	OpTrue
	OpFalse

	// Arithmetic
	OpAdd      // also string concatenation
	OpSubtract
	OpMultiply
	OpDivide
	OpPower
	OpNegate

	// Logic and comparison
	OpNot
	OpEqualEqual
	OpGreater
	OpLess

	// Statements
	OpPrint
	OpPop

	// Globals (identifier constant ref follows)
	OpDefineGlobal
	OpGetGlobal
	OpSetGlobal

	// Tensor method dispatch (method-name constant ref follows)
	OpCall
)

var opcodeNames = map[OpCode]string{
	OpReturn:       "OpReturn",
	OpConstant:     "OpConstant",
	OpNil:          "OpNil",
	OpTrue:         "OpTrue",
	OpFalse:        "OpFalse",
	OpAdd:          "OpAdd",
	OpSubtract:     "OpSubtract",
	OpMultiply:     "OpMultiply",
	OpDivide:       "OpDivide",
	OpPower:        "OpPower",
	OpNegate:       "OpNegate",
	OpNot:          "OpNot",
	OpEqualEqual:   "OpEqualEqual",
	OpGreater:      "OpGreater",
	OpLess:         "OpLess",
	OpPrint:        "OpPrint",
	OpPop:          "OpPop",
	OpDefineGlobal: "OpDefineGlobal",
	OpGetGlobal:    "OpGetGlobal",
	OpSetGlobal:    "OpSetGlobal",
	OpCall:         "OpCall",
}

func (op OpCode) String() string {
	if name, ok := opcodeNames[op]; ok {
		return name
	}
	return fmt.Sprintf("OpCode(%d)", uint8(op))
}

// HasOperand reports whether the opcode must be followed by a constant
// reference in the element stream.
func (op OpCode) HasOperand() bool {
	switch op {
	case OpConstant, OpDefineGlobal, OpGetGlobal, OpSetGlobal, OpCall:
		return true
	}
	return false
}
