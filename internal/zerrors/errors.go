// Package zerrors defines the error-kind taxonomy shared across the bus,
// session store, tool registry, provider rotation, and agent loop.
//
// Every fallible operation in the core surfaces one of a fixed set of
// Kinds rather than an ad-hoc error type, so callers can branch on
// Kind without type assertions. Classification from raw provider/tool
// errors follows the teacher's substring-matching idiom
// (internal/agent/failover.go's classifyProviderError, internal/agent/errors.go's
// NewToolError) rather than structured error codes from the backend.
package zerrors

import (
	"errors"
	"fmt"
	"strings"
)

// Kind is one of the ten error kinds named in the specification.
type Kind string

const (
	Config            Kind = "config"
	BusClosed         Kind = "bus_closed"
	NotFound          Kind = "not_found"
	Unauthorized      Kind = "unauthorized"
	SecurityViolation Kind = "security_violation"
	ProviderTransient Kind = "provider_transient"
	ProviderTerminal  Kind = "provider_terminal"
	Tool              Kind = "tool"
	Timeout           Kind = "timeout"
	Cancelled         Kind = "cancelled"
)

// Error wraps a Kind, a human-readable message, and an optional cause.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds an *Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds an *Error of the given kind around cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Is reports whether err (or something it wraps) has the given Kind.
func Is(err error, kind Kind) bool {
	var ze *Error
	if errors.As(err, &ze) {
		return ze.Kind == kind
	}
	return false
}

// KindOf extracts the Kind from err, or "" if err is not a *Error.
func KindOf(err error) Kind {
	var ze *Error
	if errors.As(err, &ze) {
		return ze.Kind
	}
	return ""
}

// ClassifyProviderError maps a raw provider error into ProviderTransient
// or ProviderTerminal by substring-matching its message, mirroring the
// teacher's classifyProviderError. Transient: timeout, rate-limit,
// 5xx/server errors. Terminal: auth, billing, model-not-found,
// malformed request. Anything unrecognized is treated as terminal —
// an unknown failure should surface to the user rather than retry
// silently forever.
func ClassifyProviderError(err error) *Error {
	if err == nil {
		return nil
	}
	s := strings.ToLower(err.Error())

	switch {
	case containsAny(s, "timeout", "deadline exceeded", "context deadline"):
		return Wrap(ProviderTransient, "provider call timed out", err)
	case containsAny(s, "rate limit", "rate_limit", "too many requests", "429"):
		return Wrap(ProviderTransient, "provider rate-limited the request", err)
	case containsAny(s, "internal server", "server error", "500", "502", "503", "504"):
		return Wrap(ProviderTransient, "provider server error", err)
	case containsAny(s, "unauthorized", "invalid api key", "authentication", "401", "403"):
		return Wrap(ProviderTerminal, "provider authentication failed", err)
	case containsAny(s, "billing", "payment", "quota", "402"):
		return Wrap(ProviderTerminal, "provider billing issue", err)
	case containsAny(s, "model not found", "does not exist", "model_unavailable", "unavailable"):
		return Wrap(ProviderTerminal, "requested model is unavailable", err)
	case containsAny(s, "invalid", "bad request", "400"):
		return Wrap(ProviderTerminal, "invalid request to provider", err)
	default:
		return Wrap(ProviderTerminal, "unclassified provider error", err)
	}
}

// ClassifyToolError maps a raw tool execution error into Tool, Timeout,
// or Cancelled.
func ClassifyToolError(err error) *Error {
	if err == nil {
		return nil
	}
	s := strings.ToLower(err.Error())
	switch {
	case containsAny(s, "context canceled", "cancelled", "canceled"):
		return Wrap(Cancelled, "tool execution cancelled", err)
	case containsAny(s, "timeout", "deadline exceeded"):
		return Wrap(Timeout, "tool execution timed out", err)
	default:
		return Wrap(Tool, "tool execution failed", err)
	}
}

func containsAny(s string, substrs ...string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
