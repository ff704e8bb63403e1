// Package fault defines the shared error taxonomy for the control plane.
//
// Every component returns *Fault values (usually wrapped) so callers can
// branch on Kind without parsing messages. Kinds are closed: a new failure
// mode gets an existing kind or the taxonomy grows deliberately.
package fault

import (
	"errors"
	"fmt"
)

// Kind categorizes a fault.
type Kind string

const (
	// KindInvalidInput indicates a malformed sequence, unparseable URL, or
	// bad parameter.
	KindInvalidInput Kind = "INVALID_INPUT"

	// KindNotFound indicates an unknown user, code hash, or table index.
	KindNotFound Kind = "NOT_FOUND"

	// KindAlreadyExists indicates a duplicate registration.
	KindAlreadyExists Kind = "ALREADY_EXISTS"

	// KindDenied indicates a policy refusal: hard-decline pattern, revoked
	// or expired credential, lockout, failed scope check.
	KindDenied Kind = "DENIED"

	// KindExhausted indicates a fixed-capacity table is full or an input
	// exceeds a hard allocation bound.
	KindExhausted Kind = "EXHAUSTED"

	// KindCorruptState indicates a content hash mismatch on re-read.
	KindCorruptState Kind = "CORRUPT_STATE"

	// KindIO indicates a storage or network failure.
	KindIO Kind = "IO"

	// KindRandomness indicates the cryptographic random source failed.
	// Fatal for any operation producing a salt, nonce, or mutation.
	KindRandomness Kind = "RANDOMNESS_FAILURE"
)

// Fault is a structured error with a stable short code and optional
// remediation text.
type Fault struct {
	// Kind identifies the error category.
	Kind Kind

	// Code is a stable short identifier within the kind, e.g. "user_locked".
	Code string

	// Message is a human-readable description.
	Message string

	// Remedy carries remediation text for user-visible denials
	// (alternatives to a hard decline, time until a lockout lifts).
	Remedy string

	// Details contains additional context.
	Details map[string]string

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (f *Fault) Error() string {
	if f.Code != "" {
		return fmt.Sprintf("%s/%s: %s", f.Kind, f.Code, f.Message)
	}
	return fmt.Sprintf("%s: %s", f.Kind, f.Message)
}

// Unwrap returns the underlying cause.
func (f *Fault) Unwrap() error {
	return f.Err
}

// New creates a Fault with the given kind, code and formatted message.
func New(kind Kind, code, format string, args ...any) *Fault {
	return &Fault{Kind: kind, Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates a Fault wrapping an underlying error.
func Wrap(err error, kind Kind, code, format string, args ...any) *Fault {
	return &Fault{Kind: kind, Code: code, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the kind of err if it is (or wraps) a Fault, or "" otherwise.
func KindOf(err error) Kind {
	var f *Fault
	if errors.As(err, &f) {
		return f.Kind
	}
	return ""
}

// IsInvalidInput reports whether err is an invalid-input fault.
func IsInvalidInput(err error) bool { return KindOf(err) == KindInvalidInput }

// IsNotFound reports whether err is a not-found fault.
func IsNotFound(err error) bool { return KindOf(err) == KindNotFound }

// IsAlreadyExists reports whether err is a duplicate-entity fault.
func IsAlreadyExists(err error) bool { return KindOf(err) == KindAlreadyExists }

// IsDenied reports whether err is a policy denial.
func IsDenied(err error) bool { return KindOf(err) == KindDenied }

// IsExhausted reports whether err is a capacity fault.
func IsExhausted(err error) bool { return KindOf(err) == KindExhausted }

// IsCorruptState reports whether err is an integrity fault.
func IsCorruptState(err error) bool { return KindOf(err) == KindCorruptState }

// IsIO reports whether err is a storage or network fault.
func IsIO(err error) bool { return KindOf(err) == KindIO }

// IsRandomness reports whether err is a random-source fault.
func IsRandomness(err error) bool { return KindOf(err) == KindRandomness }
