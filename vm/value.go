package vm

import (
	"math"
	"strconv"

	"github.com/grava-lang/grava/tensor"
)

// ---------------------------------------------------------------------------
// Value: the runtime value model
// ---------------------------------------------------------------------------

// ValueKind tags the variant held by a Value.
type ValueKind uint8

const (
	KindNil ValueKind = iota
	KindBoolean
	KindNumber
	KindString     // interned string content
	KindIdentifier // interned identifier (global names, method names)
	KindTensor
)

var valueKindNames = map[ValueKind]string{
	KindNil:        "nil",
	KindBoolean:    "boolean",
	KindNumber:     "number",
	KindString:     "string",
	KindIdentifier: "identifier",
	KindTensor:     "tensor",
}

func (k ValueKind) String() string {
	if name, ok := valueKindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Value is a closed tagged union over the runtime value variants. String
// and Identifier payloads are interner handles, not raw text.
type Value struct {
	Kind   ValueKind
	Bool   bool
	Number float64
	Handle StringHandle
	Tensor *tensor.Tensor
}

// NilValue is the nil singleton.
var NilValue = Value{Kind: KindNil}

// BooleanValue creates a boolean value.
func BooleanValue(b bool) Value {
	return Value{Kind: KindBoolean, Bool: b}
}

// NumberValue creates a number value.
func NumberValue(n float64) Value {
	return Value{Kind: KindNumber, Number: n}
}

// StringValue creates a string value from an interner handle.
func StringValue(h StringHandle) Value {
	return Value{Kind: KindString, Handle: h}
}

// IdentifierValue creates an identifier value from an interner handle.
func IdentifierValue(h StringHandle) Value {
	return Value{Kind: KindIdentifier, Handle: h}
}

// TensorValue creates a tensor value.
func TensorValue(t *tensor.Tensor) Value {
	return Value{Kind: KindTensor, Tensor: t}
}

// Truthy maps a value to a boolean: nil and false are falsey, everything
// else (including 0 and "") is truthy.
func (v Value) Truthy() bool {
	switch v.Kind {
	case KindNil:
		return false
	case KindBoolean:
		return v.Bool
	default:
		return true
	}
}

// Equals is structural equality across the union. Different variants are
// always unequal; tensors compare by identity, not elementwise.
func (v Value) Equals(other Value) bool {
	if v.Kind != other.Kind {
		return false
	}
	switch v.Kind {
	case KindNil:
		return true
	case KindBoolean:
		return v.Bool == other.Bool
	case KindNumber:
		return v.Number == other.Number
	case KindString, KindIdentifier:
		return v.Handle == other.Handle
	case KindTensor:
		return v.Tensor == other.Tensor
	}
	return false
}

// Format renders the value for printing. Numbers use the shortest
// round-trippable decimal form.
func (v Value) Format(in *Interner) string {
	switch v.Kind {
	case KindNil:
		return "nil"
	case KindBoolean:
		return strconv.FormatBool(v.Bool)
	case KindNumber:
		return strconv.FormatFloat(v.Number, 'g', -1, 64)
	case KindString, KindIdentifier:
		return in.Lookup(v.Handle)
	case KindTensor:
		return v.Tensor.String()
	}
	return "unknown"
}

// ---------------------------------------------------------------------------
// Operators
// ---------------------------------------------------------------------------

// numericBinary applies op to two number operands. Any other pairing is a
// runtime error.
func numericBinary(name string, a, b Value, op func(x, y float64) float64) (Value, error) {
	if a.Kind != KindNumber || b.Kind != KindNumber {
		return NilValue, runtimeErrorf("operands to '%s' must be numbers, got %s and %s", name, a.Kind, b.Kind)
	}
	return NumberValue(op(a.Number, b.Number)), nil
}

func addValues(a, b Value) (Value, error) {
	return numericBinary("+", a, b, func(x, y float64) float64 { return x + y })
}

func subtractValues(a, b Value) (Value, error) {
	return numericBinary("-", a, b, func(x, y float64) float64 { return x - y })
}

func multiplyValues(a, b Value) (Value, error) {
	return numericBinary("*", a, b, func(x, y float64) float64 { return x * y })
}

func divideValues(a, b Value) (Value, error) {
	return numericBinary("/", a, b, func(x, y float64) float64 { return x / y })
}

func powerValues(a, b Value) (Value, error) {
	return numericBinary("^", a, b, math.Pow)
}

func negateValue(a Value) (Value, error) {
	if a.Kind != KindNumber {
		return NilValue, runtimeErrorf("operand to unary '-' must be a number, got %s", a.Kind)
	}
	return NumberValue(-a.Number), nil
}

// compareValues handles '>' and '<', defined for numbers only.
func compareValues(name string, a, b Value, op func(x, y float64) bool) (Value, error) {
	if a.Kind != KindNumber || b.Kind != KindNumber {
		return NilValue, runtimeErrorf("operands to '%s' must be numbers, got %s and %s", name, a.Kind, b.Kind)
	}
	return BooleanValue(op(a.Number, b.Number)), nil
}
