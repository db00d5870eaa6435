package httpclient

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := New(Options{Timeout: 5 * time.Second, RetryMax: 3, Logger: zerolog.Nop()})
	resp, err := client.Get(server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 3, calls.Load())
}

func TestNew_PassesThroughFinalStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := New(Options{Timeout: 5 * time.Second, RetryMax: 0, Logger: zerolog.Nop()})
	resp, err := client.Get(server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestBreaker_OpensAfterFailures(t *testing.T) {
	b := NewBreaker("test", time.Minute, zerolog.Nop())
	boom := errors.New("boom")

	for i := 0; i < 10; i++ {
		_ = b.Do(func() error { return boom })
	}

	err := b.Do(func() error { return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, "open", b.State())
}

func TestBreaker_Nil(t *testing.T) {
	var b *Breaker
	called := false
	require.NoError(t, b.Do(func() error { called = true; return nil }))
	assert.True(t, called)
}
