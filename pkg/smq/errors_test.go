package smq

import (
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/smq-protocol/smq-go/pkg/transport"
)

func TestErrorIsMatchesReason(t *testing.T) {
	err := fmt.Errorf("send: %w", newError(ReasonPongTimeout, io.EOF))

	assert.ErrorIs(t, err, ErrPongTimeout)
	assert.ErrorIs(t, err, io.EOF)
	assert.NotErrorIs(t, err, ErrDisconnect)

	reason, ok := ReasonOf(err)
	assert.True(t, ok)
	assert.Equal(t, ReasonPongTimeout, reason)
}

func TestErrClosedIsInvalidState(t *testing.T) {
	assert.ErrorIs(t, ErrClosed, ErrInvalidState)
	assert.ErrorIs(t, ErrClosed, ErrClosed)
	assert.NotErrorIs(t, ErrInvalidState, ErrClosed)
}

func TestErrorMessage(t *testing.T) {
	assert.Equal(t, "smq: access denied", ErrAccessDenied.Error())
	assert.Equal(t, "smq: server disconnect: maintenance",
		newError(ReasonServerDisconnect, errors.New("maintenance")).Error())
	assert.Equal(t, "reason(42)", Reason(42).String())
}

func TestRetryable(t *testing.T) {
	tests := []struct {
		reason Reason
		want   bool
	}{
		{ReasonServerUnavailable, true},
		{ReasonCannotConnect, true},
		{ReasonDisconnect, true},
		{ReasonPongTimeout, true},
		{ReasonIncorrectCredentials, false},
		{ReasonAccessDenied, false},
		{ReasonServerDisconnect, false},
		{ReasonURLNotABroker, false},
		{ReasonInvalidArg, false},
	}
	for _, tt := range tests {
		t.Run(tt.reason.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, newError(tt.reason, nil).Retryable())
			assert.Equal(t, tt.want, IsRetryable(newError(tt.reason, nil)))
		})
	}

	assert.True(t, IsRetryable(io.EOF))
	assert.False(t, IsRetryable(nil))
}

func TestConnAckError(t *testing.T) {
	err := connAckError(3, "bad password")
	assert.ErrorIs(t, err, ErrIncorrectCredentials)
	assert.Contains(t, err.Error(), "bad password")

	err = connAckError(6, "")
	assert.ErrorIs(t, err, ErrAccessDenied)
	assert.Nil(t, err.Err)

	err = connAckError(77, "")
	assert.ErrorIs(t, err, ErrCannotConnect)
	assert.Contains(t, err.Error(), "77")
}

func TestUpgradeError(t *testing.T) {
	tests := []struct {
		err  error
		want *Error
	}{
		{transport.ErrNotABroker, ErrURLNotABroker},
		{fmt.Errorf("%w: 404 Not Found", transport.ErrNonOKResponse), ErrNonOKResponse},
		{transport.ErrTLSRequired, ErrSSLNotSupported},
		{transport.ErrInvalidURL, ErrInvalidArg},
		{errors.New("connection refused"), ErrCannotConnect},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			got := upgradeError(tt.err)
			assert.ErrorIs(t, got, tt.want)
			assert.ErrorIs(t, got, tt.err)
		})
	}
}
