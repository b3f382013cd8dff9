// Package apperr is the error vocabulary shared by the service, chat and
// HTTP layers. Stores keep returning plain wrapped errors (and the
// repository sentinels); everything above them classifies failures with
// a Kind so the API can pick a status code without string matching.
package apperr

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/lalith-99/parabrain/internal/repository"
)

type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindConflict
	KindPermissionMismatch
	KindUpstream
	KindValidation
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindPermissionMismatch:
		return "permission_mismatch"
	case KindUpstream:
		return "upstream"
	case KindValidation:
		return "validation"
	}
	return "internal"
}

// Error carries a Kind, a client-safe message and the underlying cause.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

func NotFound(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Msg: fmt.Sprintf(format, args...)}
}

func Conflict(format string, args ...any) *Error {
	return &Error{Kind: KindConflict, Msg: fmt.Sprintf(format, args...)}
}

func PermissionMismatch(format string, args ...any) *Error {
	return &Error{Kind: KindPermissionMismatch, Msg: fmt.Sprintf(format, args...)}
}

func Validation(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Msg: fmt.Sprintf(format, args...)}
}

// Upstream wraps a failure of an external collaborator (LLM, webhook).
func Upstream(msg string, err error) *Error {
	return &Error{Kind: KindUpstream, Msg: msg, Err: err}
}

// KindOf classifies err. Repository sentinels map to NotFound and
// Conflict so handlers can pass store errors straight through.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return KindNotFound
	case errors.Is(err, repository.ErrDuplicate):
		return KindConflict
	}
	return KindInternal
}

// HTTPStatus maps err to a response code.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindPermissionMismatch:
		return http.StatusForbidden
	case KindValidation:
		return http.StatusBadRequest
	case KindUpstream:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// Message returns the client-facing text for err, or "" for internal
// errors whose cause should stay in the logs.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Msg
	}
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return "not found"
	case errors.Is(err, repository.ErrDuplicate):
		return "already exists"
	}
	return ""
}
