package errors_test

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/owlhoot/owlhoot/internal/errors"
)

func TestConvert(t *testing.T) {
	tests := map[string]struct {
		err      error
		wantCode errors.Code
		wantHTTP int
	}{
		"coded error passes through": {
			err:      errors.New(errors.CodeNotFound),
			wantCode: errors.CodeNotFound,
			wantHTTP: http.StatusNotFound,
		},
		"wrapped coded error is unwrapped": {
			err:      fmt.Errorf("submit: %w", errors.New(errors.CodeFailedPrecondition)),
			wantCode: errors.CodeFailedPrecondition,
			wantHTTP: http.StatusPreconditionFailed,
		},
		"plain error becomes internal": {
			err:      assert.AnError,
			wantCode: errors.CodeInternal,
			wantHTTP: http.StatusInternalServerError,
		},
		"unavailable maps to 503": {
			err:      errors.Unavailable(assert.AnError),
			wantCode: errors.CodeUnavailable,
			wantHTTP: http.StatusServiceUnavailable,
		},
	}

	for name, tt := range tests {
		tt := tt
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			e := errors.Convert(tt.err)
			assert.Equal(t, tt.wantCode, e.Code)
			assert.Equal(t, tt.wantHTTP, e.HTTPStatusCode())
			assert.True(t, errors.Is(e, tt.wantCode))
		})
	}
}

func TestWithMessagef(t *testing.T) {
	e := errors.New(errors.CodeNotFound,
		errors.WithMessagef("player not found: id=%s", "p1"),
		errors.WithCause(assert.AnError),
	)

	assert.Equal(t, "player not found: id=p1", e.Message)
	assert.ErrorIs(t, e, assert.AnError)
}
