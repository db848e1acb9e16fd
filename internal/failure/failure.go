// Package failure defines the error taxonomy shared by every stage of the
// grayscale pipeline. All kinds are terminal for the current run.
package failure

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a pipeline failure by the step that produced it.
// A Kind is itself an error so callers can write errors.Is(err, CompileFailed).
type Kind int

const (
	Unknown Kind = iota
	DecodeFailed
	NoDeviceFound
	ContextCreationFailed
	QueueCreationFailed
	CompileFailed
	KernelLookupFailed
	BufferAllocationFailed
	ArgumentBindingFailed
	EnqueueFailed
	ReadBackFailed
	EncodeFailed
)

var kindNames = map[Kind]string{
	Unknown:                "unknown failure",
	DecodeFailed:           "decode failed",
	NoDeviceFound:          "no device found",
	ContextCreationFailed:  "context creation failed",
	QueueCreationFailed:    "queue creation failed",
	CompileFailed:          "compile failed",
	KernelLookupFailed:     "kernel lookup failed",
	BufferAllocationFailed: "buffer allocation failed",
	ArgumentBindingFailed:  "argument binding failed",
	EnqueueFailed:          "enqueue failed",
	ReadBackFailed:         "read-back failed",
	EncodeFailed:           "encode failed",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("failure kind %d", int(k))
}

func (k Kind) Error() string { return k.String() }

// Error is a classified failure. Op names the step that failed and Log holds
// diagnostic text such as a compiler build log.
type Error struct {
	Kind Kind
	Op   string
	Log  string
	Err  error
}

// New returns a classified error for op wrapping err.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// WithLog attaches diagnostic text to the error.
func (e *Error) WithLog(log string) *Error {
	e.Log = strings.TrimSpace(log)
	return e
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.String())
	if e.Op != "" {
		b.WriteString(": ")
		b.WriteString(e.Op)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	if e.Log != "" {
		b.WriteString("\n")
		b.WriteString(e.Log)
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is the Kind of e.
func (e *Error) Is(target error) bool {
	k, ok := target.(Kind)
	return ok && k == e.Kind
}

// KindOf returns the Kind of the first classified error in err's chain,
// or Unknown.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	var k Kind
	if errors.As(err, &k) {
		return k
	}
	return Unknown
}
