package coreerr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRetryable(t *testing.T) {
	assert.True(t, Conflictf("held").Retryable())
	assert.True(t, Capacityf("full").Retryable())
	assert.True(t, Unavailablef(nil, "down").Retryable())
	assert.False(t, Validationf("bad").Retryable())
	assert.False(t, Expiredf("dead").Retryable())
	assert.False(t, Invariantf(nil, "bug").Retryable())
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, Conflict, CodeOf(Conflictf("x")))
	assert.Equal(t, Invariant, CodeOf(errors.New("plain")))
}

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, 409, HTTPStatus(Conflict))
	assert.Equal(t, 429, HTTPStatus(Capacity))
	assert.Equal(t, 503, HTTPStatus(Unavailable))
	assert.Equal(t, 400, HTTPStatus(Validation))
}

func TestUnwrap(t *testing.T) {
	inner := errors.New("boom")
	err := Invariantf(inner, "wrapped")
	assert.ErrorIs(t, err, inner)
}
