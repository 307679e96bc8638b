package bucket

import (
	"context"
	"time"

	"go.uber.org/zap"

	ctxutil "github.com/vnykmshr/governor/pkg/common/context"
	"github.com/vnykmshr/governor/pkg/common/errors"
	"github.com/vnykmshr/governor/pkg/common/validation"
)

// Acquire takes up to count tokens, blocking while the bucket is empty.
func (tb *tokenBucket) Acquire(ctx context.Context, count int) (int, error) {
	tb.mu.Lock()
	if tb.closed {
		tb.mu.Unlock()
		return 0, errors.NewOperationError(module, "Acquire", errors.ErrDisposed)
	}
	tb.mu.Unlock()
	if count <= 0 {
		return 0, nil
	}

	// Check if context is already canceled
	if ctxutil.IsCanceled(ctx) {
		return 0, tb.abortErr(ctx)
	}

	parked := false
	park := func() {
		if !parked {
			parked = true
			tb.waiting++
		}
	}
	defer func() {
		if parked {
			tb.mu.Lock()
			tb.waiting--
			tb.mu.Unlock()
		}
	}()

	waitCtx, cancel := ctxutil.WithCancelOn(ctx, tb.closeCtx)
	defer cancel()

	select {
	case tb.gate <- struct{}{}:
	default:
		tb.mu.Lock()
		park()
		tb.mu.Unlock()

		select {
		case tb.gate <- struct{}{}:
		case <-waitCtx.Done():
			return 0, tb.abortErr(ctx)
		}
	}
	defer func() { <-tb.gate }()

	// The gate may have won the race against cancellation.
	if ctxutil.IsCanceled(waitCtx) {
		return 0, tb.abortErr(ctx)
	}

	tb.mu.Lock()
	for tb.current == 0 && !tb.closed {
		park()
		tb.mu.Unlock()
		// A coalesced notice may be stale; the loop re-checks the count.
		if err := tb.replenished.Wait(waitCtx); err != nil {
			return 0, tb.abortErr(ctx)
		}
		tb.mu.Lock()
	}
	if tb.closed {
		tb.mu.Unlock()
		return 0, errors.NewOperationError(module, "Acquire", errors.ErrDisposed)
	}

	// Clamp against the capacity in force now; a tick while parked may have
	// changed it.
	granted := min(tb.current, count, tb.capacity)
	tb.current -= granted
	tb.granted += granted
	tb.mu.Unlock()

	return granted, nil
}

// Return credits count unused tokens back to the bucket.
func (tb *tokenBucket) Return(count int) {
	tb.credit(count)
}

// credit adds up to count tokens under the capacity+overshoot ceiling and
// returns how many were actually added.
func (tb *tokenBucket) credit(count int) int {
	if count <= 0 {
		return 0
	}

	tb.mu.Lock()
	if tb.closed {
		tb.mu.Unlock()
		return 0
	}

	count = min(count, tb.capacity)
	ceiling := tb.capacity + tb.overshoot
	wasEmpty := tb.current == 0
	credited := 0
	if tb.current < ceiling {
		credited = min(tb.current+count, ceiling) - tb.current
		tb.current += credited
		tb.returned += credited
	}
	wake := wasEmpty && tb.current > 0
	tb.mu.Unlock()

	if wake {
		tb.replenished.Notify()
	}
	return credited
}

// SetCapacity schedules a new capacity for the next replenishment.
func (tb *tokenBucket) SetCapacity(capacity int) error {
	if err := validation.ValidatePositive(module, "capacity", capacity); err != nil {
		return err
	}

	tb.mu.Lock()
	if tb.closed {
		tb.mu.Unlock()
		return errors.NewOperationError(module, "SetCapacity", errors.ErrDisposed)
	}
	previous := tb.nextCapacity
	tb.nextCapacity = capacity
	tb.mu.Unlock()

	tb.logger.Debug("capacity change scheduled",
		zap.Int("from", previous),
		zap.Int("to", capacity))
	return nil
}

// Capacity returns the configured capacity.
func (tb *tokenBucket) Capacity() int {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	return tb.nextCapacity
}

// Available returns the number of tokens currently available.
func (tb *tokenBucket) Available() int {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	return tb.current
}

// Waiting returns the number of blocked Acquire calls.
func (tb *tokenBucket) Waiting() int {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	return tb.waiting
}

// Interval returns the replenishment period.
func (tb *tokenBucket) Interval() time.Duration {
	return tb.interval
}

// Close stops the replenishment goroutine and aborts pending Acquire calls.
func (tb *tokenBucket) Close() error {
	tb.closeOnce.Do(func() {
		tb.mu.Lock()
		tb.closed = true
		tb.mu.Unlock()

		tb.ticker.Stop()
		tb.closeFn()
		<-tb.loopDone

		tb.logger.Debug("bucket closed")
	})
	return nil
}

// run delivers ticks to replenish. Ticks arriving while a replenishment is
// still running are dropped by the ticker, so replenish never overlaps itself.
func (tb *tokenBucket) run() {
	defer close(tb.loopDone)

	for {
		select {
		case now := <-tb.ticker.C():
			tb.replenish(now)
		case <-tb.closeCtx.Done():
			return
		}
	}
}

// replenish resets the pool to capacity and wakes the parked caller, if any.
func (tb *tokenBucket) replenish(now time.Time) {
	tb.mu.Lock()
	if tb.closed {
		tb.mu.Unlock()
		return
	}

	tb.capacity = tb.nextCapacity
	tb.current = tb.capacity
	report := Report{
		Time:      now,
		Capacity:  tb.capacity,
		Available: tb.current,
		Granted:   tb.granted,
		Returned:  tb.returned,
		Waiting:   tb.waiting,
	}
	tb.granted = 0
	tb.returned = 0
	tb.mu.Unlock()

	tb.replenished.Notify()

	tb.logger.Debug("bucket replenished",
		zap.Int("capacity", report.Capacity),
		zap.Int("granted", report.Granted),
		zap.Int("returned", report.Returned),
		zap.Int("waiting", report.Waiting))

	if tb.onReplenish != nil {
		tb.onReplenish(report)
	}
}

// abortErr maps a finished wait to ErrDisposed or a cancellation error.
func (tb *tokenBucket) abortErr(ctx context.Context) error {
	if ctxutil.IsCanceled(tb.closeCtx) {
		return errors.NewOperationError(module, "Acquire", errors.ErrDisposed)
	}
	return errors.NewCanceledError(module, "Acquire", ctx.Err())
}
