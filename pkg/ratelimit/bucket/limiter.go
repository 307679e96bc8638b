package bucket

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/vnykmshr/governor/pkg/common/clock"
	"github.com/vnykmshr/governor/pkg/common/errors"
	"github.com/vnykmshr/governor/pkg/common/validation"
	"github.com/vnykmshr/governor/pkg/sync/wakesignal"
)

// MinInterval is the shortest replenishment interval a bucket accepts.
const MinInterval = time.Millisecond

const module = "bucket"

// Limiter bounds how many tokens may be taken per fixed interval. Every
// interval the pool of available tokens is reset to capacity.
type Limiter interface {
	// Acquire takes up to count tokens. Requests larger than capacity are
	// clamped to the capacity in force when the tokens are taken, so a caller
	// parked across a capacity change sees the new value. If the bucket is empty, Acquire blocks until the
	// next replenishment, ctx is done, or the bucket is closed.
	//
	// The returned count may be lower than requested but is never zero
	// unless count <= 0 or an error is returned.
	Acquire(ctx context.Context, count int) (int, error)

	// Return credits unused tokens back to the bucket. It never blocks and
	// never lowers the available count. Negative counts are ignored.
	Return(count int)

	// SetCapacity changes the capacity used from the next replenishment on.
	// Tokens currently available are not affected.
	SetCapacity(capacity int) error

	// Capacity returns the configured capacity, including a change made by
	// SetCapacity that has not been applied by a replenishment yet.
	Capacity() int

	// Available returns the number of tokens that can be acquired right now.
	Available() int

	// Waiting returns the number of Acquire calls currently blocked, either
	// queued behind another caller or parked on an empty bucket.
	Waiting() int

	// Interval returns the replenishment period.
	Interval() time.Duration

	// Close stops replenishment and fails every pending and future Acquire
	// with ErrDisposed. Close is idempotent and always returns nil.
	Close() error
}

// Report describes one replenishment. It is passed to Config.OnReplenish.
type Report struct {
	// Time is the tick time reported by the clock.
	Time time.Time

	// Capacity is the capacity in force from this tick on.
	Capacity int

	// Available is the token count right after the reset.
	Available int

	// Granted is the number of tokens handed out since the previous tick.
	Granted int

	// Returned is the number of tokens credited back since the previous tick.
	Returned int

	// Waiting is the number of Acquire calls blocked at the time of the tick.
	Waiting int
}

// Config holds configuration options for creating a new Limiter.
type Config struct {
	// Capacity is the number of tokens made available every interval.
	Capacity int

	// Interval is the replenishment period. It must be at least MinInterval.
	Interval time.Duration

	// InitialTokens is the number of tokens to start with.
	// If negative or above Capacity, starts with full capacity.
	InitialTokens int

	// Overshoot is how many tokens above capacity returned tokens may
	// accumulate to between ticks. Zero keeps the count at or below capacity.
	Overshoot int

	// Name identifies the bucket in logs.
	Name string

	// Clock drives replenishment. If nil, clock.System is used.
	Clock clock.Clock

	// Logger receives debug events. If nil, logging is disabled.
	Logger *zap.Logger

	// OnReplenish is invoked after every replenishment, from the
	// replenishment goroutine and outside of any bucket lock. It is purely
	// diagnostic. It must not call Close.
	OnReplenish func(Report)
}

// tokenBucket implements the Limiter interface with a fixed-interval reset.
type tokenBucket struct {
	// gate admits one Acquire at a time across the whole
	// check -> wait -> deduct sequence.
	gate chan struct{}

	mu           sync.Mutex
	capacity     int // in force for the current interval
	nextCapacity int // applied at the next replenishment
	current      int
	overshoot    int
	granted      int
	returned     int
	waiting      int
	closed       bool

	interval    time.Duration
	name        string
	replenished *wakesignal.Signal
	ticker      clock.Ticker
	logger      *zap.Logger
	onReplenish func(Report)

	closeCtx  context.Context
	closeFn   context.CancelFunc
	closeOnce sync.Once
	loopDone  chan struct{}
}

// NewSafe creates a bucket with the given capacity and interval that starts
// full. It returns a ValidationError for capacity < 1 or interval < MinInterval.
func NewSafe(capacity int, interval time.Duration) (Limiter, error) {
	return NewWithConfigSafe(Config{
		Capacity:      capacity,
		Interval:      interval,
		InitialTokens: -1, // Start with full capacity
	})
}

// NewWithConfigSafe creates a bucket from config and starts its
// replenishment ticker. The caller must Close the bucket to stop it.
func NewWithConfigSafe(config Config) (Limiter, error) {
	if config.Capacity <= 0 {
		return nil, errors.NewValidationError(module, "capacity", config.Capacity, "capacity must be positive").
			WithHint("capacity is the number of tokens made available every interval")
	}
	if err := validation.ValidateMinDuration(module, "interval", config.Interval, MinInterval); err != nil {
		return nil, err
	}
	if err := validation.ValidateNonNegative(module, "overshoot", config.Overshoot); err != nil {
		return nil, err
	}
	if config.Clock == nil {
		config.Clock = clock.System{}
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}

	initialTokens := config.InitialTokens
	if initialTokens < 0 || initialTokens > config.Capacity {
		initialTokens = config.Capacity
	}

	closeCtx, closeFn := context.WithCancel(context.Background())
	tb := &tokenBucket{
		gate:         make(chan struct{}, 1),
		capacity:     config.Capacity,
		nextCapacity: config.Capacity,
		current:      initialTokens,
		overshoot:    config.Overshoot,
		interval:     config.Interval,
		name:         config.Name,
		replenished:  wakesignal.New(),
		ticker:       config.Clock.NewTicker(config.Interval),
		logger:       config.Logger.With(zap.String("bucket", config.Name)),
		onReplenish:  config.OnReplenish,
		closeCtx:     closeCtx,
		closeFn:      closeFn,
		loopDone:     make(chan struct{}),
	}

	go tb.run()

	return tb, nil
}
