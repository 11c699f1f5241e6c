package domain

import (
	"errors"
	"fmt"
)

// Kind classifies an error for clients. The string value is what goes on
// the wire in error responses.
type Kind string

const (
	KindProtocol         Kind = "ProtocolError"
	KindValidation       Kind = "ValidationError"
	KindState            Kind = "StateError"
	KindIO               Kind = "IOError"
	KindProcess          Kind = "ProcessError"
	KindProbe            Kind = "ProbeError"
	KindInvalidName      Kind = "InvalidName"
	KindNotFound         Kind = "NotFound"
	KindPermissionDenied Kind = "PermissionDenied"
	KindInternal         Kind = "InternalError"
)

// Error is the error type returned by every component reachable from a
// client command. Code narrows a Kind (e.g. StateError/AlreadyRecording).
type Error struct {
	Kind Kind
	Code string
	Op   string // operation that failed, ex: "files.delete"
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches two *Error values on Kind and Code, so sentinels below work
// with errors.Is regardless of Op/Msg/Err.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Code == "" || t.Code == e.Code
}

// Sentinels for errors.Is checks.
var (
	ErrAlreadyRecording = &Error{Kind: KindState, Code: "AlreadyRecording", Msg: "a recording is already in progress"}
	ErrNotRecording     = &Error{Kind: KindState, Code: "NotRecording", Msg: "no recording in progress"}
	ErrStopInProgress   = &Error{Kind: KindState, Code: "StopInProgress", Msg: "the recording is already stopping"}
	ErrInvalidName      = &Error{Kind: KindInvalidName, Msg: "invalid file name"}
	ErrNotFound         = &Error{Kind: KindNotFound, Msg: "file not found"}
	ErrPermission       = &Error{Kind: KindPermissionDenied, Msg: "permission denied"}
)

// New builds an *Error with a formatted message.
func New(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// Wrap builds an *Error around a cause.
func Wrap(kind Kind, op string, err error, msg string) *Error {
	return &Error{Kind: kind, Op: op, Msg: msg, Err: err}
}

// WithOp copies a sentinel and tags it with the failing operation.
func WithOp(sentinel *Error, op string) *Error {
	e := *sentinel
	e.Op = op
	return &e
}

// KindOf returns the Kind of err, or KindInternal when err carries none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// CodeOf returns the Code of err ("" when absent).
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
