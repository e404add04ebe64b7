package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
)

// Kind classifies an API failure so the sync layer can decide whether to
// retry, queue, or surface it.
type Kind int

const (
	// KindAuth means the session is invalid and a fresh login did not help.
	KindAuth Kind = iota
	// KindTransient covers timeouts, resets and interrupted I/O. The
	// operation is safe to retry on the next sync pass.
	KindTransient
	// KindServer covers HTTP 4xx/5xx responses and API-level error payloads.
	KindServer
	// KindMalformed means the response body could not be decoded.
	KindMalformed
)

func (k Kind) String() string {
	switch k {
	case KindAuth:
		return "auth"
	case KindTransient:
		return "transient"
	case KindServer:
		return "server"
	case KindMalformed:
		return "malformed"
	}
	return "unknown"
}

// Error is the structured failure returned by every Client method. Raw
// transport errors never escape unwrapped.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Classify returns the Kind of err, or KindServer for anything that is not
// an *Error (a non-API error at this boundary is a bug, treat it as fatal
// rather than silently retrying).
func Classify(err error) Kind {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return KindServer
}

// IsTransient reports whether err should be retried on the next sync pass.
func IsTransient(err error) bool {
	return err != nil && Classify(err) == KindTransient
}

func newError(kind Kind, op, message string, err error) *Error {
	return &Error{Kind: kind, Op: op, Message: message, Err: err}
}

// transportError wraps a net/http error, distinguishing transient network
// conditions from everything else.
func transportError(op string, err error) *Error {
	if isTransient(err) {
		return newError(KindTransient, op, "request failed", err)
	}
	return newError(KindServer, op, "request failed", err)
}

func isTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.EPIPE)
}
