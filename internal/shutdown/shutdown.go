// Package shutdown provides graceful resource release for the discovery
// engine: browser, context, and storage-state teardown on every exit path
// of a crawl, in reverse registration order.
package shutdown

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Handler runs a set of named cleanup callbacks, LIFO, exactly once.
type Handler struct {
	mu sync.Mutex

	callbacks     []ShutdownCallback
	callbackNames []string

	isShuttingDown atomic.Bool
	done           chan struct{}
	timeout        time.Duration
}

// ShutdownCallback is a function called during shutdown.
type ShutdownCallback func(ctx context.Context) error

// Config holds shutdown configuration.
type Config struct {
	Timeout time.Duration
}

// DefaultConfig returns default configuration.
func DefaultConfig() Config {
	return Config{Timeout: 30 * time.Second}
}

// New creates a new shutdown handler.
func New(cfg Config) *Handler {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	return &Handler{
		callbacks:     make([]ShutdownCallback, 0),
		callbackNames: make([]string, 0),
		done:          make(chan struct{}),
		timeout:       cfg.Timeout,
	}
}

// NewDefault creates a handler with default configuration.
func NewDefault() *Handler {
	return New(DefaultConfig())
}

// Register registers a shutdown callback with a name.
func (h *Handler) Register(name string, callback ShutdownCallback) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.callbacks = append(h.callbacks, callback)
	h.callbackNames = append(h.callbackNames, name)
}

// RegisterFunc registers a simple cleanup function.
func (h *Handler) RegisterFunc(name string, fn func()) {
	h.Register(name, func(ctx context.Context) error {
		fn()
		return nil
	})
}

// Done returns a channel that is closed when shutdown completes.
func (h *Handler) Done() <-chan struct{} {
	return h.done
}

// Shutdown runs every registered callback in reverse registration order
// (LIFO, so the most recently acquired resource is released first) and
// closes Done() when finished. Safe to call more than once; only the
// first call runs the callbacks.
func (h *Handler) Shutdown() {
	if !h.isShuttingDown.CompareAndSwap(false, true) {
		return
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), h.timeout)
	defer shutdownCancel()

	h.mu.Lock()
	callbacks := make([]ShutdownCallback, len(h.callbacks))
	names := make([]string, len(h.callbackNames))
	copy(callbacks, h.callbacks)
	copy(names, h.callbackNames)
	h.mu.Unlock()

	for i := len(callbacks) - 1; i >= 0; i-- {
		_ = h.executeCallback(shutdownCtx, names[i], callbacks[i])
	}

	close(h.done)
}

// executeCallback executes a shutdown callback with timeout handling.
func (h *Handler) executeCallback(ctx context.Context, name string, callback ShutdownCallback) error {
	done := make(chan error, 1)

	go func() {
		done <- callback(ctx)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return &TimeoutError{CallbackName: name}
	}
}

// TimeoutError is returned when a callback times out.
type TimeoutError struct {
	CallbackName string
}

func (e *TimeoutError) Error() string {
	return "shutdown callback timed out: " + e.CallbackName
}
