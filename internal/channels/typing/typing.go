// Package typing implements a small keepalive controller for per-channel
// "typing..." indicators: fire once immediately, then repeat on an interval
// until stopped or a max duration safety net trips.
package typing

import (
	"log/slog"
	"sync"
	"time"
)

// Options configures one controller instance.
type Options struct {
	// StartFn sends one typing indicator to the remote API. Called once
	// immediately and again on every KeepaliveInterval tick.
	StartFn func() error
	// KeepaliveInterval is how often StartFn is re-invoked to keep the
	// indicator alive past the remote platform's own expiry.
	KeepaliveInterval time.Duration
	// MaxDuration stops the controller automatically even if Stop is never
	// called, so a forgotten controller can't spin forever.
	MaxDuration time.Duration
}

// Controller drives one channel's typing indicator for the lifetime of a
// single in-flight turn.
type Controller struct {
	opts Options

	mu      sync.Mutex
	stopped bool
	cancel  chan struct{}
}

func New(opts Options) *Controller {
	return &Controller{opts: opts}
}

// Start fires the indicator immediately and begins the keepalive loop in a
// background goroutine. Calling Start twice without an intervening Stop is a
// no-op.
func (c *Controller) Start() {
	c.mu.Lock()
	if c.cancel != nil {
		c.mu.Unlock()
		return
	}
	c.cancel = make(chan struct{})
	cancel := c.cancel
	c.mu.Unlock()

	if err := c.opts.StartFn(); err != nil {
		slog.Debug("typing: initial indicator failed", "error", err)
	}

	interval := c.opts.KeepaliveInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		var deadline <-chan time.Time
		if c.opts.MaxDuration > 0 {
			timer := time.NewTimer(c.opts.MaxDuration)
			defer timer.Stop()
			deadline = timer.C
		}

		for {
			select {
			case <-cancel:
				return
			case <-deadline:
				return
			case <-ticker.C:
				if err := c.opts.StartFn(); err != nil {
					slog.Debug("typing: keepalive indicator failed", "error", err)
				}
			}
		}
	}()
}

// Stop halts the keepalive loop. Safe to call multiple times or on a
// controller that was never started.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped || c.cancel == nil {
		c.stopped = true
		return
	}
	close(c.cancel)
	c.stopped = true
}
