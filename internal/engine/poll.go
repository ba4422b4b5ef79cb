package engine

import (
	"context"
	"errors"
	"time"
)

// ErrPollTimeout is returned by Poller.Run when the deadline elapses without
// the check reporting done.
var ErrPollTimeout = errors.New("poll deadline exceeded")

// PollVerdict is what one poll iteration reports back.
type PollVerdict int

const (
	// PollContinue: nothing changed, keep waiting.
	PollContinue PollVerdict = iota
	// PollReset: observed state changed identity; restart the deadline from
	// now. A user actively engaging with a fresh challenge must not be
	// penalized by a stale timeout.
	PollReset
	// PollDone: the awaited condition holds; stop polling.
	PollDone
)

// Poller is a cancellable, time-bounded poll primitive with
// reset-on-change semantics. It exists as a named unit so the captcha
// timeout and reset behavior is testable in isolation instead of living as
// inline control flow.
type Poller struct {
	Interval time.Duration
	Timeout  time.Duration
}

// Run invokes check every Interval until it reports PollDone, the deadline
// elapses (ErrPollTimeout), the context is cancelled, or check errors. A
// PollReset verdict restarts the deadline from the current instant, so total
// wait time may exceed the nominal timeout under active resets. The first
// check runs immediately.
func (p Poller) Run(ctx context.Context, check func(ctx context.Context) (PollVerdict, error)) error {
	deadline := time.Now().Add(p.Timeout)

	ticker := time.NewTicker(p.Interval)
	defer ticker.Stop()

	for {
		verdict, err := check(ctx)
		if err != nil {
			return err
		}
		switch verdict {
		case PollDone:
			return nil
		case PollReset:
			deadline = time.Now().Add(p.Timeout)
		}

		if time.Now().After(deadline) {
			return ErrPollTimeout
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
