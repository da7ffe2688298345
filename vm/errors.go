package vm

import "fmt"

// RuntimeError is raised by the dispatch loop: undefined globals, bad
// operand types, unknown tensor methods, malformed constant references,
// and stack bounds violations. It aborts the current Interpret call;
// output already printed is not retracted.
type RuntimeError struct {
	Msg string
}

func (e *RuntimeError) Error() string {
	return "runtime error: " + e.Msg
}

func runtimeErrorf(format string, args ...any) *RuntimeError {
	return &RuntimeError{Msg: fmt.Sprintf(format, args...)}
}
