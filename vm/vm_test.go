package vm

import (
	"bytes"
	"strings"
	"testing"

	"github.com/grava-lang/grava/tensor"
)

// testVM returns a VM with output discarded into a buffer.
func testVM() (*VM, *bytes.Buffer) {
	v := NewVM()
	var buf bytes.Buffer
	v.SetOutput(&buf)
	return v, &buf
}

func TestRunArithmetic(t *testing.T) {
	v, buf := testVM()

	// print 2 + 3;
	c := NewChunk()
	c.Write(OpConstant)
	c.WriteConstantRef(c.AddConstant(NumberValue(2)))
	c.Write(OpConstant)
	c.WriteConstantRef(c.AddConstant(NumberValue(3)))
	c.Write(OpAdd)
	c.Write(OpPrint)
	c.Write(OpReturn)

	printed, err := v.Run(c)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(printed) != 1 || !printed[0].Equals(NumberValue(5)) {
		t.Errorf("printed = %v, want [5]", printed)
	}
	if got := strings.TrimSpace(buf.String()); got != "5" {
		t.Errorf("stdout = %q, want %q", got, "5")
	}
}

func TestRunPowerOperandOrder(t *testing.T) {
	v, _ := testVM()

	// 2 ^ 10
	c := NewChunk()
	c.Write(OpConstant)
	c.WriteConstantRef(c.AddConstant(NumberValue(2)))
	c.Write(OpConstant)
	c.WriteConstantRef(c.AddConstant(NumberValue(10)))
	c.Write(OpPower)
	c.Write(OpPrint)
	c.Write(OpReturn)

	printed, err := v.Run(c)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !printed[0].Equals(NumberValue(1024)) {
		t.Errorf("2 ^ 10 = %v, want 1024", printed[0])
	}
}

func TestRunStringConcatenation(t *testing.T) {
	v, _ := testVM()
	in := v.Interner()

	c := NewChunk()
	c.Write(OpConstant)
	c.WriteConstantRef(c.AddConstant(StringValue(in.Intern("foo"))))
	c.Write(OpConstant)
	c.WriteConstantRef(c.AddConstant(StringValue(in.Intern("bar"))))
	c.Write(OpAdd)
	c.Write(OpPrint)
	c.Write(OpReturn)

	printed, err := v.Run(c)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got := printed[0].Format(in); got != "foobar" {
		t.Errorf("concatenation = %q, want %q", got, "foobar")
	}
	// The result is a fresh interned handle distinct from both inputs.
	if printed[0].Handle == in.Intern("foo") || printed[0].Handle == in.Intern("bar") {
		t.Error("concatenation result shares a handle with an input")
	}
}

func TestConcatenateRejectsMixedOperands(t *testing.T) {
	v, _ := testVM()
	in := v.Interner()

	// 1 + "bar": top of stack is a string, second operand is not.
	c := NewChunk()
	c.Write(OpConstant)
	c.WriteConstantRef(c.AddConstant(NumberValue(1)))
	c.Write(OpConstant)
	c.WriteConstantRef(c.AddConstant(StringValue(in.Intern("bar"))))
	c.Write(OpAdd)
	c.Write(OpReturn)

	_, err := v.Run(c)
	if err == nil {
		t.Fatal("Run() error = nil, want concatenation type error")
	}
	if !strings.Contains(err.Error(), "concatenate") {
		t.Errorf("error = %v, want mention of concatenation", err)
	}
}

func TestGlobalDefineGetSet(t *testing.T) {
	v, _ := testVM()
	in := v.Interner()
	x := IdentifierValue(in.Intern("x"))

	// var x = 10; print x; x = 20; print x;
	c := NewChunk()
	c.Write(OpConstant)
	c.WriteConstantRef(c.AddConstant(NumberValue(10)))
	c.Write(OpDefineGlobal)
	c.WriteConstantRef(c.AddConstant(x))
	c.Write(OpGetGlobal)
	c.WriteConstantRef(c.AddConstant(x))
	c.Write(OpPrint)
	c.Write(OpConstant)
	c.WriteConstantRef(c.AddConstant(NumberValue(20)))
	c.Write(OpSetGlobal)
	c.WriteConstantRef(c.AddConstant(x))
	c.Write(OpPop)
	c.Write(OpGetGlobal)
	c.WriteConstantRef(c.AddConstant(x))
	c.Write(OpPrint)
	c.Write(OpReturn)

	printed, err := v.Run(c)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(printed) != 2 || !printed[0].Equals(NumberValue(10)) || !printed[1].Equals(NumberValue(20)) {
		t.Errorf("printed = %v, want [10 20]", printed)
	}
}

func TestGetUndefinedGlobal(t *testing.T) {
	v, _ := testVM()
	in := v.Interner()

	c := NewChunk()
	c.Write(OpGetGlobal)
	c.WriteConstantRef(c.AddConstant(IdentifierValue(in.Intern("y"))))
	c.Write(OpReturn)

	_, err := v.Run(c)
	if err == nil || !strings.Contains(err.Error(), "undefined global variable") {
		t.Errorf("error = %v, want undefined global variable", err)
	}
}

func TestSetUndefinedGlobal(t *testing.T) {
	v, _ := testVM()
	in := v.Interner()

	// y = 1; without a prior definition.
	c := NewChunk()
	c.Write(OpConstant)
	c.WriteConstantRef(c.AddConstant(NumberValue(1)))
	c.Write(OpSetGlobal)
	c.WriteConstantRef(c.AddConstant(IdentifierValue(in.Intern("y"))))
	c.Write(OpReturn)

	_, err := v.Run(c)
	if err == nil || !strings.Contains(err.Error(), "undefined global variable") {
		t.Errorf("error = %v, want undefined global variable", err)
	}
}

func TestGlobalsPersistAcrossRuns(t *testing.T) {
	v, _ := testVM()
	in := v.Interner()
	x := IdentifierValue(in.Intern("x"))

	def := NewChunk()
	def.Write(OpConstant)
	def.WriteConstantRef(def.AddConstant(NumberValue(42)))
	def.Write(OpDefineGlobal)
	def.WriteConstantRef(def.AddConstant(x))
	def.Write(OpReturn)
	if _, err := v.Run(def); err != nil {
		t.Fatalf("Run(define) error = %v", err)
	}

	read := NewChunk()
	read.Write(OpGetGlobal)
	read.WriteConstantRef(read.AddConstant(x))
	read.Write(OpPrint)
	read.Write(OpReturn)
	printed, err := v.Run(read)
	if err != nil {
		t.Fatalf("Run(read) error = %v", err)
	}
	if !printed[0].Equals(NumberValue(42)) {
		t.Errorf("x = %v, want 42 from earlier run", printed[0])
	}
}

func TestNotTruthiness(t *testing.T) {
	v, _ := testVM()

	// !nil
	c := NewChunk()
	c.Write(OpNil)
	c.Write(OpNot)
	c.Write(OpPrint)
	c.Write(OpConstant)
	c.WriteConstantRef(c.AddConstant(NumberValue(0)))
	c.Write(OpNot)
	c.Write(OpPrint)
	c.Write(OpReturn)

	printed, err := v.Run(c)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !printed[0].Equals(BooleanValue(true)) {
		t.Errorf("!nil = %v, want true", printed[0])
	}
	if !printed[1].Equals(BooleanValue(false)) {
		t.Errorf("!0 = %v, want false", printed[1])
	}
}

func TestStackUnderflowIsRuntimeError(t *testing.T) {
	v, _ := testVM()

	c := NewChunk()
	c.Write(OpPop)
	c.Write(OpReturn)

	_, err := v.Run(c)
	if err == nil || !strings.Contains(err.Error(), "stack underflow") {
		t.Errorf("error = %v, want stack underflow", err)
	}
}

func TestStackOverflowIsRuntimeError(t *testing.T) {
	v, _ := testVM()

	c := NewChunk()
	for i := 0; i <= StackMax; i++ {
		c.Write(OpNil)
	}
	c.Write(OpReturn)

	_, err := v.Run(c)
	if err == nil || !strings.Contains(err.Error(), "stack overflow") {
		t.Errorf("error = %v, want stack overflow", err)
	}
}

func TestStackBalancedAtReturn(t *testing.T) {
	v, _ := testVM()

	c := NewChunk()
	c.Write(OpConstant)
	c.WriteConstantRef(c.AddConstant(NumberValue(1)))
	c.Write(OpPop)
	c.Write(OpReturn)

	if _, err := v.Run(c); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if v.stackTop != 0 {
		t.Errorf("stackTop after return = %d, want 0", v.stackTop)
	}
}

func TestConstantFetchedAsInstruction(t *testing.T) {
	v, _ := testVM()

	c := NewChunk()
	c.AddConstant(NumberValue(1))
	c.WriteConstantRef(0)
	c.Write(OpReturn)

	_, err := v.Run(c)
	if err == nil || !strings.Contains(err.Error(), "constant reference") {
		t.Errorf("error = %v, want constant-as-instruction fault", err)
	}
}

func TestInvalidConstantIndex(t *testing.T) {
	v, _ := testVM()

	c := NewChunk()
	c.Write(OpConstant)
	c.WriteConstantRef(5) // pool is empty
	c.Write(OpReturn)

	_, err := v.Run(c)
	if err == nil || !strings.Contains(err.Error(), "invalid constant index") {
		t.Errorf("error = %v, want invalid constant index", err)
	}
}

func TestCallReluOnTensor(t *testing.T) {
	v, _ := testVM()
	in := v.Interner()

	c := NewChunk()
	c.Write(OpConstant)
	c.WriteConstantRef(c.AddConstant(TensorValue(tensor.FromSlice([]float64{-1, 2}))))
	c.Write(OpCall)
	c.WriteConstantRef(c.AddConstant(IdentifierValue(in.Intern("relu"))))
	c.Write(OpPrint)
	c.Write(OpReturn)

	printed, err := v.Run(c)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got := printed[0].Format(in); got != "[0, 2]" {
		t.Errorf("relu printed %q, want %q", got, "[0, 2]")
	}
}

func TestCallOnNonTensor(t *testing.T) {
	v, _ := testVM()
	in := v.Interner()

	c := NewChunk()
	c.Write(OpNil)
	c.Write(OpCall)
	c.WriteConstantRef(c.AddConstant(IdentifierValue(in.Intern("foo"))))
	c.Write(OpReturn)

	_, err := v.Run(c)
	if err == nil || !strings.Contains(err.Error(), "invalid function") {
		t.Errorf("error = %v, want invalid function", err)
	}
}

func TestCallUnknownMethod(t *testing.T) {
	v, _ := testVM()
	in := v.Interner()

	c := NewChunk()
	c.Write(OpConstant)
	c.WriteConstantRef(c.AddConstant(TensorValue(tensor.FromSlice([]float64{1}))))
	c.Write(OpCall)
	c.WriteConstantRef(c.AddConstant(IdentifierValue(in.Intern("sigmoid"))))
	c.Write(OpReturn)

	_, err := v.Run(c)
	if err == nil || !strings.Contains(err.Error(), "undefined function") {
		t.Errorf("error = %v, want undefined function", err)
	}
}

func TestPrintedOutputKeptOnRuntimeError(t *testing.T) {
	v, _ := testVM()
	in := v.Interner()

	// print 1; then an undefined global read.
	c := NewChunk()
	c.Write(OpConstant)
	c.WriteConstantRef(c.AddConstant(NumberValue(1)))
	c.Write(OpPrint)
	c.Write(OpGetGlobal)
	c.WriteConstantRef(c.AddConstant(IdentifierValue(in.Intern("missing"))))
	c.Write(OpReturn)

	printed, err := v.Run(c)
	if err == nil {
		t.Fatal("Run() error = nil, want runtime error")
	}
	if len(printed) != 1 || !printed[0].Equals(NumberValue(1)) {
		t.Errorf("printed before fault = %v, want [1]", printed)
	}
}
