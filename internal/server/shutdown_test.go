package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClosersRunInReverseOrder(t *testing.T) {
	sm := NewShutdownManager(Config{})
	var order []string
	for _, name := range []string{"store", "http", "grpc"} {
		name := name
		sm.Register(name, CloserFunc(func() error {
			order = append(order, name)
			return nil
		}))
	}

	require.NoError(t, sm.Shutdown(context.Background(), "test"))
	assert.Equal(t, []string{"grpc", "http", "store"}, order)
	assert.True(t, sm.IsShuttingDown())

	select {
	case <-sm.Done():
	default:
		t.Fatal("done channel not closed")
	}
}

func TestShutdownRunsOnce(t *testing.T) {
	sm := NewShutdownManager(Config{})
	calls := 0
	sm.Register("x", CloserFunc(func() error { calls++; return nil }))

	require.NoError(t, sm.Shutdown(context.Background(), "first"))
	require.NoError(t, sm.Shutdown(context.Background(), "second"))
	assert.Equal(t, 1, calls)
}

func TestShutdownJoinsCloseErrors(t *testing.T) {
	sm := NewShutdownManager(Config{})
	boom := errors.New("boom")
	sm.Register("a", CloserFunc(func() error { return boom }))
	sm.Register("b", CloserFunc(func() error { return nil }))

	err := sm.Shutdown(context.Background(), "test")
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "close a")
}

func TestDrainWaitsForInFlight(t *testing.T) {
	sm := NewShutdownManager(Config{DrainTimeout: time.Second})
	require.True(t, sm.TrackRequest())

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		time.Sleep(50 * time.Millisecond)
		sm.UntrackRequest()
	}()

	require.NoError(t, sm.Shutdown(context.Background(), "test"))
	wg.Wait()
	assert.Equal(t, int64(0), sm.InFlight())
}

func TestDrainTimeout(t *testing.T) {
	sm := NewShutdownManager(Config{DrainTimeout: 30 * time.Millisecond})
	require.True(t, sm.TrackRequest())

	err := sm.Shutdown(context.Background(), "test")
	assert.ErrorContains(t, err, "1 in-flight")
}

func TestMiddlewareRejectsDuringShutdown(t *testing.T) {
	sm := NewShutdownManager(Config{})
	h := Middleware(sm)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, int64(1), sm.InFlight())
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, int64(0), sm.InFlight())

	require.NoError(t, sm.Shutdown(context.Background(), "test"))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "close", rec.Header().Get("Connection"))
}

func TestWaitReturnsOnContextCancel(t *testing.T) {
	sm := NewShutdownManager(Config{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, sm.Wait(ctx))
	assert.True(t, sm.IsShuttingDown())
}
