package vm

import (
	"errors"
	"fmt"
)

// ---------------------------------------------------------------------------
// Guest error taxonomy
// ---------------------------------------------------------------------------

// ErrorKind identifies a guest-visible error class. Kinds are stable so
// calling code (including guest-level handlers) can react to them.
type ErrorKind uint8

const (
	// ErrInternal covers runtime bugs and misconfiguration.
	ErrInternal ErrorKind = iota
	// ErrIncompatibleClassChange is raised for poisoned methods
	// (multiple maximally-specific default methods).
	ErrIncompatibleClassChange
	// ErrUnsatisfiedLink is raised when every native binding strategy
	// for a native method has been exhausted.
	ErrUnsatisfiedLink
	// ErrAbstractMethod is raised when an abstract method is resolved
	// for invocation.
	ErrAbstractMethod
	// ErrExceptionInInitializer wraps a failure inside a class
	// initializer.
	ErrExceptionInInitializer
	// ErrNoClassDefFound is raised when constant-pool resolution
	// cannot find a referenced klass.
	ErrNoClassDefFound
	// ErrArithmetic is raised by the interpreter for integer division
	// by zero.
	ErrArithmetic
)

// String returns the guest-visible name of the kind.
func (k ErrorKind) String() string {
	switch k {
	case ErrIncompatibleClassChange:
		return "IncompatibleClassChangeError"
	case ErrUnsatisfiedLink:
		return "UnsatisfiedLinkError"
	case ErrAbstractMethod:
		return "AbstractMethodError"
	case ErrExceptionInInitializer:
		return "ExceptionInInitializerError"
	case ErrNoClassDefFound:
		return "NoClassDefFoundError"
	case ErrArithmetic:
		return "ArithmeticException"
	}
	return "InternalError"
}

// GuestError is an error surfaced to guest code. It carries a stable
// kind and a message; the optional cause preserves the host-side chain.
type GuestError struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *GuestError) Error() string {
	if e.Message == "" {
		return e.Kind.String()
	}
	return e.Kind.String() + ": " + e.Message
}

// Unwrap exposes the cause to errors.Is/As.
func (e *GuestError) Unwrap() error { return e.Cause }

// Throw creates a guest error of the given kind.
func Throw(kind ErrorKind, format string, args ...any) *GuestError {
	return &GuestError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// ThrowWrapped creates a guest error of the given kind wrapping a cause.
func ThrowWrapped(kind ErrorKind, cause error, format string, args ...any) *GuestError {
	return &GuestError{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// IsGuestError reports whether err is (or wraps) a guest error of the
// given kind.
func IsGuestError(err error, kind ErrorKind) bool {
	var ge *GuestError
	if !errors.As(err, &ge) {
		return false
	}
	return ge.Kind == kind
}
