package vm

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"

	"github.com/grava-lang/grava/tensor"
)

// ---------------------------------------------------------------------------
// Session snapshots
// ---------------------------------------------------------------------------

// ImageMagic identifies a Grava image.
const ImageMagic = "GRVI"

// ImageVersion is the image format version.
// v1: globals table (values only; tensor data, shape and gradient, no
// computation graph). Bytecode is never serialized.
const ImageVersion = 1

// cborEncMode uses canonical options for deterministic encoding.
var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("vm: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// Image is the serialized form of a VM session: the globals table keyed
// by name, with interner handles resolved back to text so the image is
// portable across interners.
type Image struct {
	Magic   string       `cbor:"magic"`
	Version uint32       `cbor:"version"`
	ID      string       `cbor:"id"`
	SavedAt time.Time    `cbor:"saved_at"`
	Globals []ImageEntry `cbor:"globals"`
}

// ImageEntry is one global binding in an image.
type ImageEntry struct {
	Name  string    `cbor:"name"`
	Kind  uint8     `cbor:"kind"`
	Bool  bool      `cbor:"bool,omitempty"`
	Num   float64   `cbor:"num,omitempty"`
	Text  string    `cbor:"text,omitempty"`
	Data  []float64 `cbor:"data,omitempty"`
	Shape []int     `cbor:"shape,omitempty"`
	Grad  []float64 `cbor:"grad,omitempty"`
}

// SaveImage writes the VM's globals table as a CBOR image.
func (vm *VM) SaveImage(w io.Writer) error {
	img := Image{
		Magic:   ImageMagic,
		Version: ImageVersion,
		ID:      uuid.NewString(),
		SavedAt: time.Now().UTC(),
	}

	for handle, value := range vm.globals {
		entry := ImageEntry{
			Name: vm.interner.Lookup(handle),
			Kind: uint8(value.Kind),
		}
		switch value.Kind {
		case KindNil:
		case KindBoolean:
			entry.Bool = value.Bool
		case KindNumber:
			entry.Num = value.Number
		case KindString, KindIdentifier:
			entry.Text = vm.interner.Lookup(value.Handle)
		case KindTensor:
			entry.Data = value.Tensor.Data
			entry.Shape = value.Tensor.Shape
			entry.Grad = value.Tensor.Grad
		}
		img.Globals = append(img.Globals, entry)
	}

	// The globals table is a map; order the entries so the encoding is
	// actually deterministic.
	sort.Slice(img.Globals, func(i, j int) bool {
		return img.Globals[i].Name < img.Globals[j].Name
	})

	data, err := cborEncMode.Marshal(&img)
	if err != nil {
		return fmt.Errorf("vm: marshal image: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("vm: write image: %w", err)
	}
	return nil
}

// LoadImage restores globals from a CBOR image, re-interning names and
// string payloads into this VM's interner. Existing bindings with the
// same name are overwritten; others are kept.
func (vm *VM) LoadImage(r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("vm: read image: %w", err)
	}

	var img Image
	if err := cbor.Unmarshal(data, &img); err != nil {
		return fmt.Errorf("vm: unmarshal image: %w", err)
	}
	if img.Magic != ImageMagic {
		return fmt.Errorf("vm: not a grava image (magic %q)", img.Magic)
	}
	if img.Version > ImageVersion {
		return fmt.Errorf("vm: unsupported image version %d", img.Version)
	}

	for _, entry := range img.Globals {
		handle := vm.interner.Intern(entry.Name)
		var value Value
		switch ValueKind(entry.Kind) {
		case KindNil:
			value = NilValue
		case KindBoolean:
			value = BooleanValue(entry.Bool)
		case KindNumber:
			value = NumberValue(entry.Num)
		case KindString:
			value = StringValue(vm.interner.Intern(entry.Text))
		case KindIdentifier:
			value = IdentifierValue(vm.interner.Intern(entry.Text))
		case KindTensor:
			t := tensor.New(entry.Shape...)
			copy(t.Data, entry.Data)
			if entry.Grad != nil {
				t.Grad = append([]float64(nil), entry.Grad...)
			}
			value = TensorValue(t)
		default:
			return fmt.Errorf("vm: image entry %q has unknown kind %d", entry.Name, entry.Kind)
		}
		vm.globals[handle] = value
	}
	return nil
}
