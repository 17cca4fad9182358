package circuit_breaker_test

import (
	"errors"
	"testing"
	"time"

	"github.com/Astemirdum/librakeeper/pkg/circuit_breaker"
	"github.com/stretchr/testify/require"
)

func Test_circuitBreaker_Call(t *testing.T) {
	successfulService := func() error { return nil }
	failingService := func() error { return errors.New("service error") }

	cb := circuit_breaker.New(circuit_breaker.Config{
		RecordLength:     10,
		Timeout:          50 * time.Millisecond,
		Percentile:       0.3,
		RecoveryRequests: 2,
	})

	for i := 0; i < 20; i++ {
		require.NoError(t, cb.Call(successfulService))
	}
	require.Equal(t, circuit_breaker.Closed, cb.State())

	for i := 0; i < 3; i++ {
		require.Error(t, cb.Call(failingService))
	}
	require.Equal(t, circuit_breaker.Open, cb.State())
	require.ErrorIs(t, cb.Call(successfulService), circuit_breaker.ErrOpenCB)

	time.Sleep(80 * time.Millisecond)

	// half-open: a failure trips it again
	require.Error(t, cb.Call(failingService))
	require.Equal(t, circuit_breaker.Open, cb.State())

	time.Sleep(80 * time.Millisecond)

	require.NoError(t, cb.Call(successfulService))
	require.Equal(t, circuit_breaker.HalfOpen, cb.State())
	require.NoError(t, cb.Call(successfulService))
	require.Equal(t, circuit_breaker.Closed, cb.State())
}

func Test_circuitBreaker_Reset(t *testing.T) {
	cb := circuit_breaker.New(circuit_breaker.Config{RecordLength: 2, Timeout: time.Hour, Percentile: 0.5, RecoveryRequests: 1})
	require.Error(t, cb.Call(func() error { return errors.New("boom") }))
	require.Equal(t, circuit_breaker.Open, cb.State())

	cb.Reset()
	require.Equal(t, circuit_breaker.Closed, cb.State())
	require.NoError(t, cb.Call(func() error { return nil }))
}
