/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package retry

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/require"
)

type netErrMock struct {
	temporary bool
}

func (e netErrMock) Error() string   { return "net error" }
func (e netErrMock) Timeout() bool   { return false }
func (e netErrMock) Temporary() bool { return e.temporary }

var _ net.Error = netErrMock{}

func TestDoWithRetry(t *testing.T) {
	policy := ExponentialBackoffPolicy{InitialInterval: time.Millisecond, MaxAttempts: 3}

	t.Run("succeeds after retries", func(t *testing.T) {
		var attempts int
		var delays []time.Duration
		notify := func(err error, delay time.Duration) { delays = append(delays, delay) }
		err := DoWithRetry(context.Background(), policy, nil, notify, func(ctx context.Context) error {
			attempts++
			if attempts < 3 {
				return errors.New("transient")
			}
			return nil
		})
		require.NoError(t, err)
		require.Equal(t, 3, attempts)
		require.Equal(t, []time.Duration{time.Millisecond, 2 * time.Millisecond}, delays)
	})

	t.Run("gives up after max attempts", func(t *testing.T) {
		var attempts int
		wantErr := errors.New("transient")
		err := DoWithRetry(context.Background(), policy, nil, nil, func(ctx context.Context) error {
			attempts++
			return wantErr
		})
		require.ErrorIs(t, err, wantErr)
		require.Equal(t, 4, attempts)
	})

	t.Run("non-retryable error", func(t *testing.T) {
		var attempts int
		err := DoWithRetry(context.Background(), policy, IsTemporaryNetError, nil, func(ctx context.Context) error {
			attempts++
			return net.ErrClosed
		})
		require.ErrorIs(t, err, net.ErrClosed)
		require.Equal(t, 1, attempts)
	})

	t.Run("temporary network error", func(t *testing.T) {
		var attempts int
		err := DoWithRetry(context.Background(), policy, IsTemporaryNetError, nil, func(ctx context.Context) error {
			attempts++
			if attempts == 1 {
				return netErrMock{temporary: true}
			}
			return nil
		})
		require.NoError(t, err)
		require.Equal(t, 2, attempts)
	})

	t.Run("canceled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := DoWithRetry(ctx, policy, nil, nil, func(ctx context.Context) error {
			return errors.New("transient")
		})
		require.Error(t, err)
	})
}

func TestIsTemporaryNetError(t *testing.T) {
	require.True(t, IsTemporaryNetError(netErrMock{temporary: true}))
	require.False(t, IsTemporaryNetError(netErrMock{temporary: false}))
	require.False(t, IsTemporaryNetError(errors.New("plain")))
}

func TestExponentialBackoffPolicy(t *testing.T) {
	bf := ExponentialBackoffPolicy{InitialInterval: 100 * time.Millisecond, MaxInterval: 300 * time.Millisecond}.NewBackOff()
	require.Equal(t, 100*time.Millisecond, bf.NextBackOff())
	require.Equal(t, 200*time.Millisecond, bf.NextBackOff())
	require.Equal(t, 300*time.Millisecond, bf.NextBackOff())
	require.Equal(t, 300*time.Millisecond, bf.NextBackOff())

	bf = NewExponentialBackoffPolicy(time.Millisecond, 1).NewBackOff()
	require.Equal(t, time.Millisecond, bf.NextBackOff())
	require.Equal(t, backoff.Stop, bf.NextBackOff())
}
