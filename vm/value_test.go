package vm

import (
	"testing"

	"github.com/grava-lang/grava/tensor"
)

func TestTruthiness(t *testing.T) {
	tests := []struct {
		name  string
		value Value
		want  bool
	}{
		{"nil", NilValue, false},
		{"false", BooleanValue(false), false},
		{"true", BooleanValue(true), true},
		{"zero", NumberValue(0), true},
		{"number", NumberValue(3), true},
		{"string", StringValue(0), true},
		{"tensor", TensorValue(tensor.FromSlice([]float64{1})), true},
	}
	for _, tt := range tests {
		if got := tt.value.Truthy(); got != tt.want {
			t.Errorf("%s: Truthy() = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestEqualsAcrossVariants(t *testing.T) {
	if NumberValue(1).Equals(BooleanValue(true)) {
		t.Error("number 1 should not equal boolean true")
	}
	if NilValue.Equals(BooleanValue(false)) {
		t.Error("nil should not equal false")
	}
	if !NumberValue(2.5).Equals(NumberValue(2.5)) {
		t.Error("equal numbers should be equal")
	}
	if !NilValue.Equals(NilValue) {
		t.Error("nil should equal nil")
	}
}

func TestTensorEqualityIsIdentity(t *testing.T) {
	a := tensor.FromSlice([]float64{1, 2})
	b := tensor.FromSlice([]float64{1, 2})

	if TensorValue(a).Equals(TensorValue(b)) {
		t.Error("distinct tensors with equal elements should not be equal")
	}
	if !TensorValue(a).Equals(TensorValue(a)) {
		t.Error("a tensor should equal itself")
	}
}

func TestArithmeticTypeErrors(t *testing.T) {
	if _, err := addValues(BooleanValue(true), NumberValue(1)); err == nil {
		t.Error("boolean + number should be a runtime error")
	}
	if _, err := negateValue(StringValue(0)); err == nil {
		t.Error("negating a string should be a runtime error")
	}
	if _, err := compareValues(">", NilValue, NumberValue(1), func(x, y float64) bool { return x > y }); err == nil {
		t.Error("ordering nil against a number should be a runtime error")
	}
}

func TestNumberFormatting(t *testing.T) {
	in := NewInterner()

	tests := []struct {
		value Value
		want  string
	}{
		{NumberValue(3), "3"},
		{NumberValue(2.5), "2.5"},
		{NumberValue(1024), "1024"},
		{BooleanValue(true), "true"},
		{NilValue, "nil"},
	}
	for _, tt := range tests {
		if got := tt.value.Format(in); got != tt.want {
			t.Errorf("Format(%v) = %q, want %q", tt.value, got, tt.want)
		}
	}
}
