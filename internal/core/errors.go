package core

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Kind classifies a failure so callers can decide whether to retry and
// what to show the user.
type Kind string

const (
	KindUnknown         Kind = "unknown"
	KindNotFound        Kind = "not_found"
	KindInvalid         Kind = "invalid"
	KindInvalidCitation Kind = "invalid_citation"
	KindUploadRejected  Kind = "upload_rejected"
	KindTransient       Kind = "transient"
	KindJobFailed       Kind = "job_failed"
	KindTimeout         Kind = "timeout"
)

// Sentinels for errors.Is. An *Error matches the sentinel of its kind.
var (
	ErrNotFound        = &Error{Kind: KindNotFound}
	ErrInvalid         = &Error{Kind: KindInvalid}
	ErrInvalidCitation = &Error{Kind: KindInvalidCitation}
	ErrUploadRejected  = &Error{Kind: KindUploadRejected}
	ErrTransient       = &Error{Kind: KindTransient}
	ErrJobFailed       = &Error{Kind: KindJobFailed}
	ErrTimeout         = &Error{Kind: KindTimeout}
)

// Programming errors from misuse of the job poller.
var (
	ErrPollerFinished   = errors.New("job poller already reached a terminal state")
	ErrPollerNotStarted = errors.New("job poller not started")
	ErrPollerStarted    = errors.New("job poller already following a job")
	ErrStepInFlight     = errors.New("job poller step already in flight")
)

// Error is a classified failure.
type Error struct {
	Kind   Kind
	Op     string // operation, e.g. "fetch slice"
	Detail string // backend detail or user-facing message
	Status int    // HTTP status when the failure came from a response
	Err    error  // underlying cause
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches sentinels by kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Op == "" && t.Detail == "" && t.Err == nil
}

// NewError builds a classified error.
func NewError(kind Kind, op, detail string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Detail: detail, Err: cause}
}

// JobFailedError carries the job-level failure message verbatim.
func JobFailedError(jobID, message string) *Error {
	return &Error{Kind: KindJobFailed, Op: "job " + jobID, Detail: message}
}

// KindOf classifies err. Context cancellation is reported as KindUnknown so
// callers do not mistake an abandoned call for a backend failure.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var nerr net.Error
	if errors.As(err, &nerr) {
		if nerr.Timeout() {
			return KindTimeout
		}
		return KindTransient
	}
	return KindUnknown
}

// IsRetryable reports whether the failure may succeed on a later attempt.
func IsRetryable(err error) bool {
	switch KindOf(err) {
	case KindTransient, KindTimeout:
		return true
	}
	return false
}

// Detail returns the user-facing detail carried by err, or err.Error().
func Detail(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) && e.Detail != "" {
		return e.Detail
	}
	return err.Error()
}

func errorf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Detail: fmt.Sprintf(format, args...)}
}
