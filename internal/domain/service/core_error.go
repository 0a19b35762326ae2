package service

import (
	"errors"
	"fmt"
)

// Kind classifies a CoreError the way spec.md's failure model does, so a
// caller can branch on category (retry this circuit? requeue? give up?)
// without string-matching an error message.
type Kind int

const (
	KindConnectionFail Kind = iota
	KindHandshakeFail
	KindStreamTimeout
	KindStreamError
	KindCircuitDestroyed
	KindPolicyReject
	KindProtocolViolation
	KindInterrupted
)

func (k Kind) String() string {
	switch k {
	case KindConnectionFail:
		return "connection_fail"
	case KindHandshakeFail:
		return "handshake_fail"
	case KindStreamTimeout:
		return "stream_timeout"
	case KindStreamError:
		return "stream_error"
	case KindCircuitDestroyed:
		return "circuit_destroyed"
	case KindPolicyReject:
		return "policy_reject"
	case KindProtocolViolation:
		return "protocol_violation"
	case KindInterrupted:
		return "interrupted"
	default:
		return "unknown"
	}
}

// CoreError is the single error type carrying a Kind, an optional numeric
// code (protocol-level cells carry one; locally raised errors leave it
// zero), and a reason string. Everything else in this codebase still wraps
// with fmt.Errorf("...: %w", err) per the teacher's convention; CoreError
// exists only where a caller needs to branch on failure category rather
// than just log and propagate.
type CoreError struct {
	Kind   Kind
	Code   int
	Reason string
	Err    error
}

func NewCoreError(kind Kind, reason string) *CoreError {
	return &CoreError{Kind: kind, Reason: reason}
}

func (e *CoreError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

func (e *CoreError) Unwrap() error { return e.Err }

// WithCause attaches an underlying error, mirroring fmt.Errorf's %w without
// discarding the Kind/Reason classification.
func (e *CoreError) WithCause(err error) *CoreError {
	e.Err = err
	return e
}

// IsKind reports whether err is a *CoreError of the given kind, unwrapping
// through any wrapping layers the way the teacher's IsNotFound/IsDuplicate
// helpers do for plain sentinel errors.
func IsKind(err error, kind Kind) bool {
	var ce *CoreError
	if errors.As(err, &ce) {
		return ce.Kind == kind
	}
	return false
}
