package debugloop

import "fmt"

// OsCallFailed is returned when a required OS debugging primitive
// (WaitForDebugEvent, ContinueDebugEvent) fails. It is always fatal to the
// loop. A failed thread-context retrieval during minidump capture is not
// reported this way: it is logged as a DumpWriteFailed.
type OsCallFailed struct {
	Which string
	Err   error
}

func (e OsCallFailed) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Which, e.Err)
}

func (e OsCallFailed) Unwrap() error {
	return e.Err
}

// InvariantViolated is returned when a handle-table invariant is broken: a
// duplicate process or thread id on creation, a missing id on exit, or an
// exception classification the loop does not recognize. It always
// indicates a bug in the caller or the handler, and is fatal.
type InvariantViolated struct {
	Kind string
}

func (e InvariantViolated) Error() string {
	return "debug loop invariant violated: " + e.Kind
}

// HandlerRaised wraps a panic that propagated out of a Handler callback.
// The scoped release of any event-embedded handle for the event being
// dispatched still runs (via defer) before this error reaches the caller
// of Debug.
type HandlerRaised struct {
	Value interface{}
}

func (e HandlerRaised) Error() string {
	return fmt.Sprintf("handler panicked: %v", e.Value)
}

// DumpWriteFailed wraps a minidump-capture failure. It is never returned
// from Debug -- a failed dump must not abort the loop -- it exists only to
// give captureCrashDump's log line a typed, Unwrap-able error to format.
type DumpWriteFailed struct {
	Err error
}

func (e DumpWriteFailed) Error() string {
	return fmt.Sprintf("failed to write minidump: %v", e.Err)
}

func (e DumpWriteFailed) Unwrap() error {
	return e.Err
}

// ErrUnsupportedPlatform is returned by Debug on any platform other than
// windows/amd64: the debug loop is defined entirely in terms of the Win32
// debugging API and has no meaningful semantics elsewhere.
type ErrUnsupportedPlatform struct{}

func (ErrUnsupportedPlatform) Error() string {
	return "debugloop: native debugging is only supported on windows/amd64"
}
