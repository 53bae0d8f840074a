package gateway

import (
	"errors"
	"fmt"
	"time"
)

// ErrorKind classifies platform failures so callers never inspect raw
// error strings.
type ErrorKind int

const (
	KindNone ErrorKind = iota
	KindAlreadyProcessed
	KindNotFound
	KindUserUnreachable
	KindRateLimited
	KindCallbackExpired
	KindUnknown
)

func (k ErrorKind) String() string {
	switch k {
	case KindNone:
		return "ok"
	case KindAlreadyProcessed:
		return "already-processed"
	case KindNotFound:
		return "not-found"
	case KindUserUnreachable:
		return "user-unreachable"
	case KindRateLimited:
		return "rate-limited"
	case KindCallbackExpired:
		return "callback-expired"
	}
	return "unknown"
}

// Benign kinds let the calling transition proceed; the kind is recorded
// as the platform outcome.
func (k ErrorKind) Benign() bool {
	switch k {
	case KindAlreadyProcessed, KindNotFound, KindUserUnreachable, KindCallbackExpired:
		return true
	}
	return false
}

// Error is returned by Gateway implementations for every failed call.
type Error struct {
	Kind        ErrorKind
	Op          string
	Code        int
	Description string
	RetryAfter  time.Duration
	Err         error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Op, e.Kind)
	if e.Code != 0 {
		msg += fmt.Sprintf(" (%d)", e.Code)
	}
	if e.Description != "" {
		msg += ": " + e.Description
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns KindNone for nil, the classified kind for *Error and
// KindUnknown for anything else.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindNone
	}
	var gwErr *Error
	if errors.As(err, &gwErr) {
		return gwErr.Kind
	}
	return KindUnknown
}

// RetryAfterOf returns the backoff hint of a rate-limited error.
func RetryAfterOf(err error) time.Duration {
	var gwErr *Error
	if errors.As(err, &gwErr) {
		return gwErr.RetryAfter
	}
	return 0
}
