// Package vm implements the bytecode virtual machine: the chunk
// container, the interner, the tagged value model, and the fetch/decode/
// execute dispatch loop with its global-variable table.
package vm

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("grava.vm")

// StackMax is the fixed operand stack capacity.
const StackMax = 256

// CompileFunc compiles source text into a chunk, interning literals into
// the given interner. The compiler package provides the implementation;
// it is injected so the vm package does not import its own front end.
type CompileFunc func(source string, interner *Interner) (*Chunk, error)

// VM executes chunks. Globals and the interner persist across Interpret
// calls, so one VM instance carries a whole interactive session; the
// chunk is replaced on every call.
type VM struct {
	chunk *Chunk
	ip    int

	// Fixed-size stack with explicit top index; bounds are checked on
	// every push and pop and violations surface as runtime errors.
	stack    [StackMax]Value
	stackTop int

	interner *Interner
	globals  map[StringHandle]Value

	compile CompileFunc
	out     io.Writer
	trace   bool
}

// NewVM creates a VM with an empty globals table and a fresh interner.
func NewVM() *VM {
	return &VM{
		interner: NewInterner(),
		globals:  make(map[StringHandle]Value),
		out:      os.Stdout,
	}
}

// UseCompiler injects the compile function used by Interpret.
func (vm *VM) UseCompiler(fn CompileFunc) {
	vm.compile = fn
}

// SetOutput redirects OpPrint's output channel (stdout by default).
func (vm *VM) SetOutput(w io.Writer) {
	vm.out = w
}

// SetTrace enables per-instruction debug logging.
func (vm *VM) SetTrace(on bool) {
	vm.trace = on
}

// Interner returns the VM's interner, shared with the compiler.
func (vm *VM) Interner() *Interner {
	return vm.interner
}

// Interpret compiles and runs source, returning the printed values in
// order. Compilation is atomic: on a compile error no bytecode runs.
func (vm *VM) Interpret(source string) ([]Value, error) {
	if vm.compile == nil {
		return nil, errors.New("vm: no compiler installed")
	}
	chunk, err := vm.compile(source, vm.interner)
	if err != nil {
		return nil, err
	}
	return vm.Run(chunk)
}

// Run executes a compiled chunk against the VM's persistent state.
func (vm *VM) Run(chunk *Chunk) ([]Value, error) {
	vm.chunk = chunk
	vm.ip = 0
	vm.stackTop = 0
	return vm.run()
}

func (vm *VM) run() ([]Value, error) {
	var printed []Value

	for {
		elem, err := vm.readElement()
		if err != nil {
			return printed, err
		}
		if elem.IsConst {
			// The compiler never leaves ip pointing at a bare operand.
			return printed, runtimeErrorf("constant reference fetched as instruction at offset %d", vm.ip-1)
		}
		if vm.trace {
			log.Debugf("ip=%d %s stack=%d", vm.ip-1, elem.Op, vm.stackTop)
		}

		switch elem.Op {
		case OpReturn:
			return printed, nil

		case OpConstant:
			constant, err := vm.readConstantOperand()
			if err != nil {
				return printed, err
			}
			if err := vm.push(constant); err != nil {
				return printed, err
			}

		case OpNil:
			if err := vm.push(NilValue); err != nil {
				return printed, err
			}
		case OpTrue:
			if err := vm.push(BooleanValue(true)); err != nil {
				return printed, err
			}
		case OpFalse:
			if err := vm.push(BooleanValue(false)); err != nil {
				return printed, err
			}

		case OpAdd:
			top, err := vm.peek(0)
			if err != nil {
				return printed, err
			}
			if top.Kind == KindString {
				if err := vm.concatenate(); err != nil {
					return printed, err
				}
			} else if err := vm.binary(addValues); err != nil {
				return printed, err
			}

		case OpSubtract:
			if err := vm.binary(subtractValues); err != nil {
				return printed, err
			}
		case OpMultiply:
			if err := vm.binary(multiplyValues); err != nil {
				return printed, err
			}
		case OpDivide:
			if err := vm.binary(divideValues); err != nil {
				return printed, err
			}
		case OpPower:
			if err := vm.binary(powerValues); err != nil {
				return printed, err
			}

		case OpNegate:
			a, err := vm.pop()
			if err != nil {
				return printed, err
			}
			result, err := negateValue(a)
			if err != nil {
				return printed, err
			}
			if err := vm.push(result); err != nil {
				return printed, err
			}

		case OpNot:
			a, err := vm.pop()
			if err != nil {
				return printed, err
			}
			if err := vm.push(BooleanValue(!a.Truthy())); err != nil {
				return printed, err
			}

		case OpEqualEqual:
			b, a, err := vm.popPair()
			if err != nil {
				return printed, err
			}
			if err := vm.push(BooleanValue(a.Equals(b))); err != nil {
				return printed, err
			}

		case OpGreater:
			if err := vm.binary(func(a, b Value) (Value, error) {
				return compareValues(">", a, b, func(x, y float64) bool { return x > y })
			}); err != nil {
				return printed, err
			}
		case OpLess:
			if err := vm.binary(func(a, b Value) (Value, error) {
				return compareValues("<", a, b, func(x, y float64) bool { return x < y })
			}); err != nil {
				return printed, err
			}

		case OpPrint:
			a, err := vm.pop()
			if err != nil {
				return printed, err
			}
			printed = append(printed, a)
			fmt.Fprintln(vm.out, a.Format(vm.interner))

		case OpPop:
			if _, err := vm.pop(); err != nil {
				return printed, err
			}

		case OpDefineGlobal:
			name, err := vm.readIdentifierOperand()
			if err != nil {
				return printed, err
			}
			value, err := vm.peek(0)
			if err != nil {
				return printed, err
			}
			vm.globals[name] = value
			if _, err := vm.pop(); err != nil {
				return printed, err
			}

		case OpGetGlobal:
			name, err := vm.readIdentifierOperand()
			if err != nil {
				return printed, err
			}
			value, ok := vm.globals[name]
			if !ok {
				return printed, runtimeErrorf("undefined global variable '%s'", vm.interner.Lookup(name))
			}
			if err := vm.push(value); err != nil {
				return printed, err
			}

		case OpSetGlobal:
			name, err := vm.readIdentifierOperand()
			if err != nil {
				return printed, err
			}
			if _, ok := vm.globals[name]; !ok {
				return printed, runtimeErrorf("undefined global variable '%s'", vm.interner.Lookup(name))
			}
			value, err := vm.peek(0)
			if err != nil {
				return printed, err
			}
			vm.globals[name] = value

		case OpCall:
			if err := vm.callMethod(); err != nil {
				return printed, err
			}

		default:
			return printed, runtimeErrorf("unknown opcode %s", elem.Op)
		}
	}
}

// ---------------------------------------------------------------------------
// Fetch/decode helpers
// ---------------------------------------------------------------------------

// readElement returns the element at ip and advances ip by one.
func (vm *VM) readElement() (Element, error) {
	if vm.ip >= vm.chunk.Len() {
		return Element{}, runtimeErrorf("instruction pointer out of range (%d)", vm.ip)
	}
	elem := vm.chunk.Elements[vm.ip]
	vm.ip++
	return elem, nil
}

// readConstantOperand reads the constant reference following the current
// opcode and resolves it against the pool.
func (vm *VM) readConstantOperand() (Value, error) {
	elem, err := vm.readElement()
	if err != nil {
		return NilValue, err
	}
	if !elem.IsConst {
		return NilValue, runtimeErrorf("invalid constant index: expected operand, got %s", elem.Op)
	}
	if elem.Index < 0 || elem.Index >= len(vm.chunk.Constants) {
		return NilValue, runtimeErrorf("invalid constant index %d", elem.Index)
	}
	return vm.chunk.Constants[elem.Index], nil
}

// readIdentifierOperand reads a constant operand that must be an
// identifier, returning its handle.
func (vm *VM) readIdentifierOperand() (StringHandle, error) {
	constant, err := vm.readConstantOperand()
	if err != nil {
		return 0, err
	}
	if constant.Kind != KindIdentifier {
		return 0, runtimeErrorf("invalid global variable: %s constant", constant.Kind)
	}
	return constant.Handle, nil
}

// ---------------------------------------------------------------------------
// Stack
// ---------------------------------------------------------------------------

func (vm *VM) push(v Value) error {
	if vm.stackTop >= StackMax {
		return runtimeErrorf("stack overflow")
	}
	vm.stack[vm.stackTop] = v
	vm.stackTop++
	return nil
}

func (vm *VM) pop() (Value, error) {
	if vm.stackTop == 0 {
		return NilValue, runtimeErrorf("stack underflow")
	}
	vm.stackTop--
	return vm.stack[vm.stackTop], nil
}

func (vm *VM) peek(distance int) (Value, error) {
	if distance >= vm.stackTop {
		return NilValue, runtimeErrorf("stack underflow")
	}
	return vm.stack[vm.stackTop-1-distance], nil
}

// popPair pops b then a (b was on top).
func (vm *VM) popPair() (b, a Value, err error) {
	if b, err = vm.pop(); err != nil {
		return
	}
	a, err = vm.pop()
	return
}

// binary pops two operands, applies op, and pushes the result.
func (vm *VM) binary(op func(a, b Value) (Value, error)) error {
	b, a, err := vm.popPair()
	if err != nil {
		return err
	}
	result, err := op(a, b)
	if err != nil {
		return err
	}
	return vm.push(result)
}

// ---------------------------------------------------------------------------
// String concatenation and tensor method dispatch
// ---------------------------------------------------------------------------

// concatenate pops two string values and pushes their interned
// concatenation. The operand beneath a string top must itself be a
// string; there is no coercion.
func (vm *VM) concatenate() error {
	b, a, err := vm.popPair()
	if err != nil {
		return err
	}
	if a.Kind != KindString || b.Kind != KindString {
		return runtimeErrorf("can only concatenate strings, got %s and %s", a.Kind, b.Kind)
	}
	text := vm.interner.Lookup(a.Handle) + vm.interner.Lookup(b.Handle)
	return vm.push(StringValue(vm.interner.Intern(text)))
}

// callMethod handles OpCall: the method-name constant follows the
// opcode, the receiver is on top of the stack and must be a tensor.
func (vm *VM) callMethod() error {
	name, err := vm.readIdentifierOperand()
	if err != nil {
		return err
	}
	callee, err := vm.pop()
	if err != nil {
		return err
	}
	methodName := vm.interner.Lookup(name)
	if callee.Kind != KindTensor {
		return runtimeErrorf("invalid function '%s': callee is not a tensor", methodName)
	}

	switch methodName {
	case "relu":
		return vm.push(TensorValue(callee.Tensor.Relu()))
	case "backward":
		callee.Tensor.Backward()
		// Every expression leaves one value; the statement's OpPop
		// discards this one.
		return vm.push(NilValue)
	case "grad":
		return vm.push(TensorValue(callee.Tensor.Gradient()))
	default:
		return runtimeErrorf("undefined function '%s': tensor methods are relu, backward and grad", methodName)
	}
}
