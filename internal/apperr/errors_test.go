package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/lalith-99/parabrain/internal/repository"
	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not found", NotFound("project %s not found", "x"), http.StatusNotFound},
		{"conflict", Conflict("email already registered"), http.StatusConflict},
		{"permission", PermissionMismatch("different owners"), http.StatusForbidden},
		{"validation", Validation("bad status"), http.StatusBadRequest},
		{"upstream", Upstream("llm call failed", errors.New("timeout")), http.StatusBadGateway},
		{"repo not found", fmt.Errorf("update note: %w", repository.ErrNotFound), http.StatusNotFound},
		{"repo duplicate", fmt.Errorf("insert user: %w", repository.ErrDuplicate), http.StatusConflict},
		{"wrapped app error", fmt.Errorf("attach: %w", PermissionMismatch("nope")), http.StatusForbidden},
		{"plain", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, HTTPStatus(tc.err))
		})
	}
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := Upstream("llm call failed", cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "llm call failed: connection refused", err.Error())
	assert.Equal(t, "llm call failed", Message(err))
}

func TestMessageHidesInternalErrors(t *testing.T) {
	assert.Equal(t, "", Message(errors.New("pq: relation does not exist")))
	assert.Equal(t, "not found", Message(repository.ErrNotFound))
}
