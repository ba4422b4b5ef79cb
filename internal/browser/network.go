package browser

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// ErrIdleTimeout is returned when the network never reaches quiescence
// inside the caller's window. Callers treat this as soft; the postback
// synchronizer absorbs it with a settle delay.
var ErrIdleTimeout = errors.New("network idle timeout")

// networkTracker follows CDP network events and answers "has the page been
// quiet long enough". The remote site's full-page postbacks fire bursts of
// requests; idleness means zero in-flight requests for a sustained quiet
// period, not a single silent instant.
type networkTracker struct {
	mu           sync.Mutex
	inflight     map[network.RequestID]struct{}
	lastActivity time.Time
	logger       *zap.Logger
}

func newNetworkTracker(ctx context.Context, logger *zap.Logger) *networkTracker {
	t := &networkTracker{
		inflight:     make(map[network.RequestID]struct{}),
		lastActivity: time.Now(),
		logger:       logger.With(zap.String("component", "network_tracker")),
	}

	chromedp.ListenTarget(ctx, func(ev interface{}) {
		switch e := ev.(type) {
		case *network.EventRequestWillBeSent:
			t.begin(e.RequestID)
		case *network.EventLoadingFinished:
			t.end(e.RequestID)
		case *network.EventLoadingFailed:
			t.end(e.RequestID)
		}
	})

	return t
}

func (t *networkTracker) begin(id network.RequestID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.inflight[id] = struct{}{}
	t.lastActivity = time.Now()
}

func (t *networkTracker) end(id network.RequestID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.inflight, id)
	t.lastActivity = time.Now()
}

// quietSince reports the in-flight count and how long the tracker has seen
// no activity.
func (t *networkTracker) quietSince() (int, time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.inflight), time.Since(t.lastActivity)
}

// WaitIdle polls until the network has had zero in-flight requests for
// quiet, or fails with ErrIdleTimeout after timeout.
func (t *networkTracker) WaitIdle(ctx context.Context, quiet, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		pending, silence := t.quietSince()
		if pending == 0 && silence >= quiet {
			return nil
		}
		if time.Now().After(deadline) {
			t.logger.Debug("Network never went idle",
				zap.Int("pending", pending), zap.Duration("silence", silence))
			return ErrIdleTimeout
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
