package httpclient

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyRetryableCode(t *testing.T) {
	code, retryable := classify(errors.New("curl: (23) Failed reading the chunked-encoded stream."))
	assert.Equal(t, 23, code)
	assert.True(t, retryable)
}

func TestClassifyRetryableHintWithoutCode(t *testing.T) {
	_, retryable := classify(errors.New("transfer closed with outstanding read data remaining"))
	assert.True(t, retryable)
}

func TestClassifyNonRetryable(t *testing.T) {
	_, retryable := classify(errors.New("curl: (6) Could not resolve host"))
	assert.False(t, retryable)
}

func TestRetryGetRecoversOnChunkedStreamError(t *testing.T) {
	calls := 0
	resp, err := retryGet(context.Background(), time.Second, 2, func(time.Duration) (*Response, error) {
		calls++
		if calls == 1 {
			return nil, errors.New("curl: (23) Failed reading the chunked-encoded stream.")
		}
		return &Response{StatusCode: 200, Body: []byte("<html>ok</html>")}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, 200, resp.StatusCode)
}

func TestRetryGetSurfacesNonRetryableImmediately(t *testing.T) {
	calls := 0
	_, err := retryGet(context.Background(), time.Second, 2, func(time.Duration) (*Response, error) {
		calls++
		return nil, errors.New("curl: (6) Could not resolve host")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetryGetDoublesTimeoutOnRetry(t *testing.T) {
	var seen []time.Duration
	calls := 0
	_, _ = retryGet(context.Background(), 5*time.Second, 3, func(timeout time.Duration) (*Response, error) {
		seen = append(seen, timeout)
		calls++
		return nil, errors.New("curl: (28) Operation timed out")
	})
	require.Len(t, seen, 3)
	assert.Equal(t, 5*time.Second, seen[0])
	assert.Equal(t, 15*time.Second, seen[1]) // max(2x=10s, +10s=15s) = 15s
	assert.Equal(t, 30*time.Second, seen[2]) // max(2x=30s, +10s=25s) = 30s
}

func TestRetryGetContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls := 0
	_, err := retryGet(ctx, time.Second, 2, func(time.Duration) (*Response, error) {
		calls++
		return nil, errors.New("curl: (28) Operation timed out")
	})
	require.Error(t, err)
}

func TestProfileForNameDefaultsToChrome(t *testing.T) {
	p := ProfileForName("unknown-profile")
	assert.NotNil(t, p)
}

func TestClassifyTransportErrorDNSFailureIsNonRetryable(t *testing.T) {
	err := classifyTransportError(&net.DNSError{Err: "no such host", Name: "example.invalid"})
	code, retryable := classify(err)
	assert.Equal(t, 6, code)
	assert.False(t, retryable)
}

func TestClassifyTransportErrorDialRefusedIsNonRetryable(t *testing.T) {
	err := classifyTransportError(&net.OpError{Op: "dial", Err: errors.New("connection refused")})
	code, retryable := classify(err)
	assert.Equal(t, 7, code)
	assert.False(t, retryable)
}

func TestClassifyTransportErrorTimeoutIsRetryable(t *testing.T) {
	err := classifyTransportError(&net.DNSError{Err: "timeout", Name: "example.invalid", IsTimeout: true})
	code, retryable := classify(err)
	assert.Equal(t, 28, code)
	assert.True(t, retryable)
}

func TestRetryGetViaDoClassifierRaisesAfterOneCallOnDNSFailure(t *testing.T) {
	calls := 0
	_, err := retryGet(context.Background(), time.Second, 2, func(time.Duration) (*Response, error) {
		calls++
		return nil, classifyTransportError(&net.DNSError{Err: "no such host", Name: "example.invalid"})
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}
