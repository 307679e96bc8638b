package context

import (
	"context"
)

// WithCancelOn returns a child of parent that is also canceled when other is
// done. The returned CancelFunc must be called to release the link.
func WithCancelOn(parent, other context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	stop := context.AfterFunc(other, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

// IsCanceled returns true if the context has been canceled
func IsCanceled(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	default:
		return false
	}
}
