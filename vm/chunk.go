package vm

import "fmt"

// ---------------------------------------------------------------------------
// Chunk: bytecode container
// ---------------------------------------------------------------------------

// Element is one entry in a chunk's instruction stream: either an opcode
// or a reference into the constant pool. Constant references only ever
// appear immediately after an opcode that consumes an operand; the VM
// treats a constant reference fetched as an instruction as a fault.
type Element struct {
	IsConst bool
	Op      OpCode // valid when !IsConst
	Index   int    // valid when IsConst
}

// Code wraps an opcode as an instruction element.
func Code(op OpCode) Element {
	return Element{Op: op}
}

// ConstantRef wraps a constant-pool index as an operand element.
func ConstantRef(index int) Element {
	return Element{IsConst: true, Index: index}
}

func (e Element) String() string {
	if e.IsConst {
		return fmt.Sprintf("Constant(%d)", e.Index)
	}
	return e.Op.String()
}

// Chunk is an ordered bytecode program: an element stream plus its
// constant pool. Both grow append-only; nothing is edited in place.
type Chunk struct {
	Elements  []Element
	Constants []Value
}

// NewChunk creates an empty chunk.
func NewChunk() *Chunk {
	return &Chunk{
		Elements:  make([]Element, 0, 64),
		Constants: make([]Value, 0, 16),
	}
}

// Write appends an opcode to the instruction stream.
func (c *Chunk) Write(op OpCode) {
	c.Elements = append(c.Elements, Code(op))
}

// WriteConstantRef appends a constant-pool reference to the stream.
func (c *Chunk) WriteConstantRef(index int) {
	c.Elements = append(c.Elements, ConstantRef(index))
}

// AddConstant appends a value to the constant pool and returns its index.
func (c *Chunk) AddConstant(v Value) int {
	c.Constants = append(c.Constants, v)
	return len(c.Constants) - 1
}

// Len returns the number of elements in the instruction stream.
func (c *Chunk) Len() int {
	return len(c.Elements)
}
