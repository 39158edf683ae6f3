package cancelgate

import (
	"context"
	"errors"
	"time"
)

// ErrTimeoutCause and ErrCancelledCause are the two causes Link can attach
// to a linked context's cancellation. Callers discriminate between them
// with Cause, not with errors.Is on ctx.Err() directly — ctx.Err() is
// always one of context.Canceled/context.DeadlineExceeded regardless of
// which of the three linked inputs actually fired.
var (
	ErrTimeoutCause   = errors.New("cancelgate: timeout")
	ErrCancelledCause = errors.New("cancelgate: cancelled")
)

// Link composes a single cancellable context from three inputs: caller (the
// caller-supplied context, whose own deadline/cancellation is honored
// automatically since it becomes the linked context's parent), gate (the
// resolver-scoped Gate's context, watched explicitly since it is not an
// ancestor of caller), and timeout (skipped if <= 0).
//
// timeout is installed with context.WithTimeoutCause rather than a bare
// timer so the returned context carries a real Deadline: a blocking
// socket read only unblocks early if the code that issued it set a
// deadline from ctx.Deadline(), and a timer callback alone never produces
// one.
//
// The returned release func must be called on every exit path: it stops
// the gate watcher and timer and cancels the returned context, so it
// belongs in a defer that runs once the context is no longer needed.
func Link(caller context.Context, gate context.Context, timeout time.Duration) (context.Context, func()) {
	parent := caller
	var stopTimeout context.CancelFunc
	if timeout > 0 {
		parent, stopTimeout = context.WithTimeoutCause(caller, timeout, ErrTimeoutCause)
	}

	ctx, cancel := context.WithCancelCause(parent)

	stopGate := context.AfterFunc(gate, func() {
		cancel(ErrCancelledCause)
	})

	release := func() {
		stopGate()
		if stopTimeout != nil {
			stopTimeout()
		}
		cancel(nil)
	}
	return ctx, release
}

// Cause reports why a context returned by Link is done: ErrTimeoutCause if
// the timeout fired, ErrCancelledCause if the caller or the gate cancelled
// it, or nil if ctx is not done.
func Cause(ctx context.Context) error {
	if ctx.Err() == nil {
		return nil
	}
	cause := context.Cause(ctx)
	if errors.Is(cause, ErrTimeoutCause) {
		return ErrTimeoutCause
	}
	return ErrCancelledCause
}
