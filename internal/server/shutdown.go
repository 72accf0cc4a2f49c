// Package server coordinates graceful shutdown of the MooseDB listeners and
// the resources behind them.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"
)

// Config holds shutdown timeouts.
type Config struct {
	// Timeout bounds the whole shutdown, draining included.
	Timeout time.Duration
	// DrainTimeout bounds the wait for in-flight requests.
	DrainTimeout time.Duration
}

// DefaultConfig returns the default shutdown timeouts.
func DefaultConfig() Config {
	return Config{
		Timeout:      30 * time.Second,
		DrainTimeout: 15 * time.Second,
	}
}

// ShutdownManager drains in-flight requests and then closes registered
// resources in reverse registration order.
type ShutdownManager struct {
	timeout      time.Duration
	drainTimeout time.Duration

	done     chan struct{}
	once     sync.Once
	inFlight atomic.Int64
	stopping atomic.Bool

	mu      sync.Mutex
	closers []namedCloser
}

type namedCloser struct {
	name   string
	closer io.Closer
}

// NewShutdownManager creates a ShutdownManager. Zero timeouts take the defaults.
func NewShutdownManager(cfg Config) *ShutdownManager {
	def := DefaultConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.DrainTimeout <= 0 {
		cfg.DrainTimeout = def.DrainTimeout
	}
	return &ShutdownManager{
		timeout:      cfg.Timeout,
		drainTimeout: cfg.DrainTimeout,
		done:         make(chan struct{}),
	}
}

// Register adds a resource to close on shutdown. The database should be
// registered before the listeners that use it so it is closed last.
func (sm *ShutdownManager) Register(name string, c io.Closer) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.closers = append(sm.closers, namedCloser{name: name, closer: c})
}

// Wait blocks until SIGINT, SIGTERM, ctx cancellation or an explicit Shutdown,
// then shuts down.
func (sm *ShutdownManager) Wait(ctx context.Context) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		return sm.Shutdown(context.Background(), fmt.Sprintf("received signal %v", sig))
	case <-ctx.Done():
		return sm.Shutdown(context.Background(), "context cancelled")
	case <-sm.done:
		return nil
	}
}

// Shutdown runs once. Later calls return nil immediately.
func (sm *ShutdownManager) Shutdown(ctx context.Context, reason string) error {
	var errs []error
	sm.once.Do(func() {
		log.Printf("server: shutting down (%s)", reason)
		sm.stopping.Store(true)
		close(sm.done)

		shutdownCtx, cancel := context.WithTimeout(ctx, sm.timeout)
		defer cancel()

		if err := sm.drain(shutdownCtx); err != nil {
			errs = append(errs, err)
		}

		sm.mu.Lock()
		closers := sm.closers
		sm.mu.Unlock()

		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i].closer.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close %s: %w", closers[i].name, err))
			}
		}
		log.Printf("server: shutdown complete")
	})
	return errors.Join(errs...)
}

func (sm *ShutdownManager) drain(ctx context.Context) error {
	drainCtx, cancel := context.WithTimeout(ctx, sm.drainTimeout)
	defer cancel()

	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()

	for {
		if sm.inFlight.Load() == 0 {
			return nil
		}
		select {
		case <-drainCtx.Done():
			if remaining := sm.inFlight.Load(); remaining > 0 {
				return fmt.Errorf("timeout waiting for %d in-flight requests", remaining)
			}
			return nil
		case <-ticker.C:
		}
	}
}

// TrackRequest counts a request as in flight. It returns false once shutdown
// has started.
func (sm *ShutdownManager) TrackRequest() bool {
	if sm.stopping.Load() {
		return false
	}
	sm.inFlight.Add(1)
	return true
}

// UntrackRequest marks a tracked request as finished.
func (sm *ShutdownManager) UntrackRequest() {
	sm.inFlight.Add(-1)
}

// IsShuttingDown reports whether shutdown has started.
func (sm *ShutdownManager) IsShuttingDown() bool {
	return sm.stopping.Load()
}

// InFlight returns the number of tracked requests.
func (sm *ShutdownManager) InFlight() int64 {
	return sm.inFlight.Load()
}

// Done is closed when shutdown begins.
func (sm *ShutdownManager) Done() <-chan struct{} {
	return sm.done
}

// Middleware tracks in-flight requests and rejects new ones during shutdown.
func Middleware(sm *ShutdownManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !sm.TrackRequest() {
				w.Header().Set("Connection", "close")
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusServiceUnavailable)
				io.WriteString(w, `{"success":false,"message":"Server is shutting down"}`+"\n")
				return
			}
			defer sm.UntrackRequest()
			next.ServeHTTP(w, r)
		})
	}
}

// HTTPCloser adapts an http.Server to io.Closer using a graceful Shutdown.
func HTTPCloser(srv *http.Server, timeout time.Duration) io.Closer {
	return CloserFunc(func() error {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return srv.Shutdown(ctx)
	})
}

// CloserFunc is an adapter to allow ordinary functions to be used as io.Closer.
type CloserFunc func() error

// Close calls f.
func (f CloserFunc) Close() error {
	return f()
}
