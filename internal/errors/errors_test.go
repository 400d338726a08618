package errors

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCode_HTTPStatus(t *testing.T) {
	tests := []struct {
		code Code
		want int
	}{
		{CodeNotFound, http.StatusNotFound},
		{CodeLookupMiss, http.StatusNotFound},
		{CodeValidation, http.StatusBadRequest},
		{CodeConflict, http.StatusConflict},
		{CodeUnparseableDate, http.StatusUnprocessableEntity},
		{CodeUpstreamUnavailable, http.StatusBadGateway},
		{CodeDataShape, http.StatusBadGateway},
		{CodeInternal, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.code.HTTPStatus())
		})
	}
}

func TestError_IsMatchesByCode(t *testing.T) {
	err := LookupMissf("no row for %q", "Têxteis")
	wrapped := fmt.Errorf("populate: %w", err)

	assert.True(t, Is(wrapped, ErrLookupMiss))
	assert.False(t, Is(wrapped, ErrNotFound))
}

func TestError_WrapKeepsCause(t *testing.T) {
	cause := fmt.Errorf("disk full")
	err := Wrap(cause, CodeInternal, "write view")

	assert.Equal(t, "write view: disk full", err.Error())
	assert.Equal(t, cause, Unwrap(err))
}

func TestError_WithDetails(t *testing.T) {
	base := Validation("bad request")
	detailed := base.WithDetails(map[string]string{"year": "required"})

	assert.Nil(t, base.Details)
	assert.NotNil(t, detailed.Details)
	assert.Equal(t, base.Code, detailed.Code)
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

var _ net.Error = timeoutErr{}

func TestIsTransient(t *testing.T) {
	assert.True(t, IsTransient(Upstream(fmt.Errorf("503"), "sidra")))
	assert.True(t, IsTransient(fmt.Errorf("get: %w", timeoutErr{})))
	assert.False(t, IsTransient(DataShapef("missing column D4N")))
	assert.False(t, IsTransient(context.Canceled))
	assert.False(t, IsTransient(nil))
}
