package index

import (
	"errors"
	"fmt"

	"github.com/tonimelisma/onedrive-index/internal/graph"
	"github.com/tonimelisma/onedrive-index/internal/vpath"
)

// Error kinds. Every Service error is a *DisplayError whose Kind is one of
// these or one of the protect credential errors; callers branch with
// errors.Is and decide how to present it.
var (
	ErrRemoteUnavailable = errors.New("index: remote storage unavailable")
	ErrNotFound          = errors.New("index: not found")
	ErrTypeMismatch      = errors.New("index: unexpected item type")
	ErrTooLarge          = errors.New("index: content too large to inline")
	ErrPasswordRequired  = errors.New("index: password required")
	ErrInvalidPath       = vpath.ErrInvalidPath
)

// PasswordPrompt carries what a caller needs to re-render the password
// form without losing its place.
type PasswordPrompt struct {
	Route       string `json:"route"`
	RequestPath string `json:"request_path"`
	KeyID       string `json:"key_id"`
}

// DisplayError is the error type returned by every Service operation.
type DisplayError struct {
	Op     string
	Path   string
	Kind   error
	Cause  error
	Prompt *PasswordPrompt
}

func (e *DisplayError) Error() string {
	msg := fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Kind)
	if e.Cause != nil && e.Cause != e.Kind {
		msg += ": " + e.Cause.Error()
	}

	return msg
}

// Unwrap exposes both the kind and the underlying cause to errors.Is/As.
func (e *DisplayError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Kind}
	}

	return []error{e.Kind, e.Cause}
}

func fail(op, p string, kind, cause error) *DisplayError {
	return &DisplayError{Op: op, Path: p, Kind: kind, Cause: cause}
}

// remoteKind maps a client error onto an error kind. Timeouts and every
// unrecognized failure count as the remote being unavailable.
func remoteKind(err error) error {
	switch {
	case errors.Is(err, graph.ErrNotFound), errors.Is(err, ErrNotFound):
		return ErrNotFound
	case errors.Is(err, graph.ErrNoDownloadURL):
		return ErrTypeMismatch
	case errors.Is(err, graph.ErrContentTooLarge):
		return ErrTooLarge
	case errors.Is(err, vpath.ErrInvalidPath):
		return ErrInvalidPath
	default:
		return ErrRemoteUnavailable
	}
}

// wrap turns any error into a *DisplayError, keeping one that already is.
func wrap(op, p string, err error) error {
	var de *DisplayError
	if errors.As(err, &de) {
		return de
	}

	return fail(op, p, remoteKind(err), err)
}
