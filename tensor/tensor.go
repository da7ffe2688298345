// Package tensor implements multi-dimensional numeric buffers with
// reverse-mode automatic differentiation.
//
// Tensors produced by differentiable operations keep back-references to
// their parents, forming a directed acyclic computation graph. Backward
// walks that graph in reverse topological order, accumulating gradients
// via the chain rule.
package tensor

import (
	"fmt"
	"strconv"
	"strings"
)

// Tensor is a flat float64 buffer with a shape descriptor. Grad is
// allocated lazily on the first backward pass that reaches the tensor.
type Tensor struct {
	Data  []float64
	Shape []int
	Grad  []float64

	// Computation graph edges. parents[i] is the tensor that produced
	// this one; backprops[i] distributes this tensor's gradient to it.
	parents   []*Tensor
	backprops []backpropFn
}

// backpropFn accumulates into a parent's gradient buffer given the
// gradient that has flowed into the child.
type backpropFn func(childGrad []float64)

// New creates a zero-filled tensor with the given shape.
func New(shape ...int) *Tensor {
	size := 1
	for _, dim := range shape {
		size *= dim
	}
	return &Tensor{
		Data:  make([]float64, size),
		Shape: append([]int(nil), shape...),
	}
}

// FromSlice creates a 1-D tensor holding the given elements.
func FromSlice(data []float64) *Tensor {
	t := New(len(data))
	copy(t.Data, data)
	return t
}

// Size returns the total number of elements.
func (t *Tensor) Size() int {
	size := 1
	for _, dim := range t.Shape {
		size *= dim
	}
	return size
}

// grad returns the gradient buffer, allocating it on first use.
func (t *Tensor) grad() []float64 {
	if t.Grad == nil {
		t.Grad = make([]float64, len(t.Data))
	}
	return t.Grad
}

// Relu applies max(0, x) elementwise. The result records a graph edge
// back to t with the local derivative 1 where the input was positive.
func (t *Tensor) Relu() *Tensor {
	out := New(t.Shape...)
	for i, v := range t.Data {
		if v > 0 {
			out.Data[i] = v
		}
	}

	parent := t
	out.parents = []*Tensor{parent}
	out.backprops = []backpropFn{func(childGrad []float64) {
		g := parent.grad()
		for i, v := range parent.Data {
			if v > 0 {
				g[i] += childGrad[i]
			}
		}
	}}
	return out
}

// Backward runs a reverse-mode pass from t, seeding t's gradient with
// ones. Each node is visited exactly once even when it is reachable
// through multiple children, so shared parents are not double-counted.
func (t *Tensor) Backward() {
	seed := t.grad()
	for i := range seed {
		seed[i] = 1
	}

	visited := make(map[*Tensor]struct{})
	var order []*Tensor
	var visit func(node *Tensor)
	visit = func(node *Tensor) {
		if _, ok := visited[node]; ok {
			return
		}
		visited[node] = struct{}{}
		for _, p := range node.parents {
			visit(p)
		}
		order = append(order, node)
	}
	visit(t)

	// Children before parents: walk the topological order backwards.
	for i := len(order) - 1; i >= 0; i-- {
		node := order[i]
		if node.Grad == nil {
			continue
		}
		for _, bp := range node.backprops {
			bp(node.Grad)
		}
	}
}

// Gradient returns the accumulated gradient as a new tensor with t's
// shape. Before any backward pass it is zero-filled.
func (t *Tensor) Gradient() *Tensor {
	out := New(t.Shape...)
	if t.Grad != nil {
		copy(out.Data, t.Grad)
	}
	return out
}

// String renders the tensor as nested bracketed rows, e.g. [[1, 2], [3, 4]].
func (t *Tensor) String() string {
	if len(t.Shape) == 0 || t.Size() == 0 {
		return "[]"
	}
	var sb strings.Builder
	t.render(&sb, 0, 0, t.Size())
	return sb.String()
}

// render writes the sub-tensor at the given dimension starting at offset.
func (t *Tensor) render(sb *strings.Builder, dim, offset, span int) {
	sb.WriteByte('[')
	if dim == len(t.Shape)-1 {
		for i := 0; i < t.Shape[dim]; i++ {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(strconv.FormatFloat(t.Data[offset+i], 'g', -1, 64))
		}
	} else {
		stride := span / t.Shape[dim]
		for i := 0; i < t.Shape[dim]; i++ {
			if i > 0 {
				sb.WriteString(", ")
			}
			t.render(sb, dim+1, offset+i*stride, stride)
		}
	}
	sb.WriteByte(']')
}

// GoString is used by %#v in debug output.
func (t *Tensor) GoString() string {
	return fmt.Sprintf("tensor.Tensor{Shape: %v, Data: %v}", t.Shape, t.Data)
}
