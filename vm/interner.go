package vm

import "sync"

// ---------------------------------------------------------------------------
// Interner: deduplicated string storage
// ---------------------------------------------------------------------------

// StringHandle identifies an interned string. Two handles issued by the
// same interner are equal iff the underlying text is equal.
type StringHandle uint32

// Interner interns string content to stable handles. It is append-only:
// handles never change and are never removed. Both the compiler
// (identifiers, string literals) and the VM (global keys, concatenation)
// share one interner.
type Interner struct {
	mu       sync.RWMutex
	byText   map[string]StringHandle
	byHandle []string
}

// NewInterner creates a new empty interner.
func NewInterner() *Interner {
	return &Interner{
		byText:   make(map[string]StringHandle),
		byHandle: make([]string, 0, 64),
	}
}

// Intern returns the handle for text, allocating a new one if needed.
func (in *Interner) Intern(text string) StringHandle {
	// Fast path: read-only lookup
	in.mu.RLock()
	if h, ok := in.byText[text]; ok {
		in.mu.RUnlock()
		return h
	}
	in.mu.RUnlock()

	in.mu.Lock()
	defer in.mu.Unlock()

	// Double-check after acquiring write lock
	if h, ok := in.byText[text]; ok {
		return h
	}

	h := StringHandle(len(in.byHandle))
	in.byText[text] = h
	in.byHandle = append(in.byHandle, text)
	return h
}

// Lookup returns the text for a handle this interner issued. A foreign
// handle is a programmer error and returns "".
func (in *Interner) Lookup(h StringHandle) string {
	in.mu.RLock()
	defer in.mu.RUnlock()

	if int(h) >= len(in.byHandle) {
		return ""
	}
	return in.byHandle[h]
}

// Len returns the number of interned strings.
func (in *Interner) Len() int {
	in.mu.RLock()
	defer in.mu.RUnlock()
	return len(in.byHandle)
}
