package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHasCode(t *testing.T) {
	t.Run("matches wrapped domain error", func(t *testing.T) {
		err := fmt.Errorf("outer: %w", New(CodeConflict, "already used"))
		assert.True(t, HasCode(err, CodeConflict))
		assert.False(t, HasCode(err, CodeNotFound))
	})

	t.Run("plain errors carry no code", func(t *testing.T) {
		err := errors.New("boom")
		assert.False(t, HasCode(err, CodeInternal))
		assert.Equal(t, CodeInternal, CodeOf(err))
	})

	t.Run("wrap keeps the cause reachable", func(t *testing.T) {
		cause := errors.New("db down")
		err := Wrap(cause, CodeUpstreamUnavailable, "ledger unavailable")
		assert.ErrorIs(t, err, cause)
		assert.Equal(t, "ledger unavailable: db down", err.Error())
	})
}

func TestToHTTPStatus(t *testing.T) {
	cases := map[Code]int{
		CodeValidation:          http.StatusBadRequest,
		CodeInvalidState:        http.StatusBadRequest,
		CodeTokenExpired:        http.StatusUnauthorized,
		CodeProofRejected:       http.StatusUnauthorized,
		CodeNotFound:            http.StatusNotFound,
		CodeConflict:            http.StatusConflict,
		CodeUpstreamUnavailable: http.StatusBadGateway,
		CodeTimeout:             http.StatusBadGateway,
		CodeInternal:            http.StatusInternalServerError,
	}
	for code, want := range cases {
		assert.Equal(t, want, ToHTTPStatus(code), string(code))
	}
}
