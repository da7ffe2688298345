package vm

import (
	"bytes"
	"strings"
	"testing"

	"github.com/fxamacker/cbor/v2"

	"github.com/grava-lang/grava/tensor"
)

// defineGlobal installs a binding directly, as OpDefineGlobal would.
func defineGlobal(v *VM, name string, value Value) {
	v.globals[v.interner.Intern(name)] = value
}

func TestImageRoundTrip(t *testing.T) {
	src, _ := testVM()
	in := src.Interner()
	defineGlobal(src, "n", NumberValue(3.5))
	defineGlobal(src, "ok", BooleanValue(true))
	defineGlobal(src, "s", StringValue(in.Intern("hello")))
	defineGlobal(src, "empty", NilValue)

	ten := tensor.FromSlice([]float64{-1, 2})
	ten.Relu().Backward()
	defineGlobal(src, "t", TensorValue(ten))

	var buf bytes.Buffer
	if err := src.SaveImage(&buf); err != nil {
		t.Fatalf("SaveImage() error = %v", err)
	}

	dst, _ := testVM()
	if err := dst.LoadImage(&buf); err != nil {
		t.Fatalf("LoadImage() error = %v", err)
	}

	get := func(name string) Value {
		return dst.globals[dst.interner.Intern(name)]
	}
	if got := get("n"); !got.Equals(NumberValue(3.5)) {
		t.Errorf("n = %v, want 3.5", got)
	}
	if got := get("ok"); !got.Equals(BooleanValue(true)) {
		t.Errorf("ok = %v, want true", got)
	}
	if got := get("s"); dst.interner.Lookup(got.Handle) != "hello" {
		t.Errorf("s = %q, want %q", dst.interner.Lookup(got.Handle), "hello")
	}
	if got := get("empty"); got.Kind != KindNil {
		t.Errorf("empty kind = %v, want nil", got.Kind)
	}

	restored := get("t")
	if restored.Kind != KindTensor {
		t.Fatalf("t kind = %v, want tensor", restored.Kind)
	}
	if restored.Tensor.String() != "[-1, 2]" {
		t.Errorf("t = %s, want [-1, 2]", restored.Tensor.String())
	}
	// The accumulated gradient survives the round trip.
	if g := restored.Tensor.Gradient(); g.String() != "[0, 1]" {
		t.Errorf("t gradient = %s, want [0, 1]", g.String())
	}
}

func TestSaveImageOrdersEntriesByName(t *testing.T) {
	v, _ := testVM()
	defineGlobal(v, "charlie", NumberValue(3))
	defineGlobal(v, "alpha", NumberValue(1))
	defineGlobal(v, "bravo", NumberValue(2))

	var buf bytes.Buffer
	if err := v.SaveImage(&buf); err != nil {
		t.Fatalf("SaveImage() error = %v", err)
	}

	var img Image
	if err := cbor.Unmarshal(buf.Bytes(), &img); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	want := []string{"alpha", "bravo", "charlie"}
	if len(img.Globals) != len(want) {
		t.Fatalf("len(Globals) = %d, want %d", len(img.Globals), len(want))
	}
	for i, name := range want {
		if img.Globals[i].Name != name {
			t.Errorf("Globals[%d].Name = %q, want %q", i, img.Globals[i].Name, name)
		}
	}
}

func TestLoadImageRejectsBadMagic(t *testing.T) {
	v, _ := testVM()

	err := v.LoadImage(strings.NewReader("not an image"))
	if err == nil {
		t.Fatal("LoadImage() error = nil, want failure on bad data")
	}
}

func TestLoadImageOverwritesMatchingNames(t *testing.T) {
	src, _ := testVM()
	defineGlobal(src, "x", NumberValue(1))

	var buf bytes.Buffer
	if err := src.SaveImage(&buf); err != nil {
		t.Fatalf("SaveImage() error = %v", err)
	}

	dst, _ := testVM()
	defineGlobal(dst, "x", NumberValue(99))
	defineGlobal(dst, "keep", NumberValue(7))
	if err := dst.LoadImage(&buf); err != nil {
		t.Fatalf("LoadImage() error = %v", err)
	}

	if got := dst.globals[dst.interner.Intern("x")]; !got.Equals(NumberValue(1)) {
		t.Errorf("x = %v, want 1 (overwritten by image)", got)
	}
	if got := dst.globals[dst.interner.Intern("keep")]; !got.Equals(NumberValue(7)) {
		t.Errorf("keep = %v, want 7 (untouched by image)", got)
	}
}
