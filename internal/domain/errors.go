package domain

import (
	"errors"
	"fmt"
)

// Kind classifies a failure.
type Kind string

const (
	KindNotFound             Kind = "not-found"
	KindInvalidFormat        Kind = "invalid-format"
	KindManifestMissing      Kind = "manifest-missing"
	KindNotAServerPath       Kind = "not-a-server-path"
	KindServerFileNotFound   Kind = "server-file-not-found"
	KindMappingNotFound      Kind = "mapping-not-found"
	KindNoUpdateAvailable    Kind = "no-update-available"
	KindNotificationNotFound Kind = "notification-not-found"
	KindInvalidState         Kind = "invalid-state"
	KindIO                   Kind = "io"
	KindInternal             Kind = "internal"
)

// Error is the error type returned across component boundaries.
type Error struct {
	Kind Kind
	Op   string
	Path string
	Err  error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Path != "" {
		msg += " " + e.Path
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches on Kind, so errors.Is(err, ErrMappingNotFound) works for any
// Error of that kind regardless of Op or Path.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Op == "" && t.Path == "" && t.Err == nil
}

var (
	ErrNotFound             = &Error{Kind: KindNotFound}
	ErrInvalidFormat        = &Error{Kind: KindInvalidFormat}
	ErrManifestMissing      = &Error{Kind: KindManifestMissing}
	ErrNotAServerPath       = &Error{Kind: KindNotAServerPath}
	ErrServerFileNotFound   = &Error{Kind: KindServerFileNotFound}
	ErrMappingNotFound      = &Error{Kind: KindMappingNotFound}
	ErrNoUpdateAvailable    = &Error{Kind: KindNoUpdateAvailable}
	ErrNotificationNotFound = &Error{Kind: KindNotificationNotFound}
	ErrInvalidState         = &Error{Kind: KindInvalidState}
	ErrIO                   = &Error{Kind: KindIO}
	ErrInternal             = &Error{Kind: KindInternal}
)

// E builds an Error.
func E(kind Kind, op, path string, err error) *Error {
	return &Error{Kind: kind, Op: op, Path: path, Err: err}
}

// Errorf builds an Error with a formatted cause.
func Errorf(kind Kind, op, path, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Path: path, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the Kind of err, or KindInternal for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsBusiness reports whether err is a validated business-rule failure, as
// opposed to an IO or internal fault.
func IsBusiness(err error) bool {
	if err == nil {
		return false
	}
	switch KindOf(err) {
	case KindIO, KindInternal:
		return false
	}
	return true
}
