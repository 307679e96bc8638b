package consumer

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vnykmshr/governor/pkg/common/clock"
	"github.com/vnykmshr/governor/pkg/common/errors"
	"github.com/vnykmshr/governor/pkg/metrics"
	"github.com/vnykmshr/governor/pkg/ratelimit/bucket"
)

const module = "consumer"

// DefaultRateWindow is the period over which Stats computes observed rates.
const DefaultRateWindow = time.Second

// WorkFunc processes granted tokens worth of work.
type WorkFunc func(ctx context.Context, granted int) error

// Worker is one consumer loop sharing the pool's bucket.
type Worker struct {
	// Name identifies the worker in logs, stats and metrics.
	// Defaults to "worker-<n>".
	Name string

	// Request is the number of tokens asked for per iteration (default: 1).
	Request int

	// Local optionally caps this worker on top of the shared bucket. Tokens
	// granted by the shared bucket but refused by Local are returned.
	Local bucket.Limiter

	// Work is called with every non-zero grant. Required.
	Work WorkFunc
}

// Config holds configuration for a Pool.
type Config struct {
	// Name identifies the pool in logs and metrics.
	Name string

	// Limiter is the shared bucket. Required.
	Limiter bucket.Limiter

	// Workers run concurrently against Limiter. At least one is required.
	Workers []Worker

	// ContinueOnError keeps a worker running after Work fails. By default the
	// first failure stops the whole pool and is returned by Run.
	ContinueOnError bool

	// RateWindow is the period over which observed rates are computed.
	RateWindow time.Duration

	// Clock drives the rate window. Defaults to clock.System.
	Clock clock.Clock

	// Logger receives worker errors and per-window rates.
	Logger *zap.Logger

	// Metrics, if set, records units, errors and observed rates.
	Metrics *metrics.Registry
}

// WorkerStats is a snapshot of one worker.
type WorkerStats struct {
	Name   string
	Units  int64
	Errors int64

	// Rate is units per second over the last completed rate window.
	Rate float64
}

type workerState struct {
	Worker

	units  atomic.Int64
	errors atomic.Int64

	mu        sync.Mutex
	rate      float64
	lastUnits int64
}

// Pool runs workers that take their tokens from one shared bucket.
type Pool struct {
	name            string
	limiter         bucket.Limiter
	workers         []*workerState
	continueOnError bool
	rateWindow      time.Duration
	clock           clock.Clock
	logger          *zap.Logger
	metrics         *metrics.Registry

	running atomic.Bool
}

// New validates config and returns a pool ready to Run.
func New(config Config) (*Pool, error) {
	if config.Limiter == nil {
		return nil, errors.NewValidationError(module, "limiter", nil, "limiter is required")
	}
	if len(config.Workers) == 0 {
		return nil, errors.NewValidationError(module, "workers", 0, "at least one worker is required")
	}
	if config.RateWindow <= 0 {
		config.RateWindow = DefaultRateWindow
	}
	if config.Clock == nil {
		config.Clock = clock.System{}
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}

	p := &Pool{
		name:            config.Name,
		limiter:         config.Limiter,
		continueOnError: config.ContinueOnError,
		rateWindow:      config.RateWindow,
		clock:           config.Clock,
		logger:          config.Logger.With(zap.String("pool", config.Name)),
		metrics:         config.Metrics,
	}

	seen := make(map[string]bool)
	for i, w := range config.Workers {
		if w.Work == nil {
			return nil, errors.NewValidationError(module, "work", w.Name, "worker has no Work function")
		}
		if w.Name == "" {
			w.Name = fmt.Sprintf("worker-%d", i+1)
		}
		if seen[w.Name] {
			return nil, errors.NewValidationError(module, "name", w.Name, "duplicate worker name")
		}
		seen[w.Name] = true
		if w.Request <= 0 {
			w.Request = 1
		}
		p.workers = append(p.workers, &workerState{Worker: w})
	}

	return p, nil
}

// Run starts every worker and blocks until ctx is done, the bucket is
// closed, or a worker fails without ContinueOnError. Only that failure is
// returned; stopping because of ctx or Close returns nil.
func (p *Pool) Run(ctx context.Context) error {
	if !p.running.CompareAndSwap(false, true) {
		return errors.NewOperationError(module, "Run", stderrors.New("pool is already running"))
	}
	defer p.running.Store(false)

	g, gctx := errgroup.WithContext(ctx)

	for _, w := range p.workers {
		g.Go(func() error {
			return p.runWorker(gctx, w)
		})
	}

	// The rate loop outlives no worker.
	ratesDone := make(chan struct{})
	rateCtx, stopRates := context.WithCancel(gctx)
	defer stopRates()
	go func() {
		defer close(ratesDone)
		p.runRates(rateCtx)
	}()

	err := g.Wait()
	stopRates()
	<-ratesDone

	p.logger.Info("pool stopped", zap.Error(err))
	return err
}

func (p *Pool) runWorker(ctx context.Context, w *workerState) error {
	logger := p.logger.With(zap.String("worker", w.Name))
	logger.Debug("worker started", zap.Int("request", w.Request))

	for {
		granted, err := p.limiter.Acquire(ctx, w.Request)
		if err != nil {
			return p.stopped(logger, err)
		}
		if granted == 0 {
			continue
		}

		if w.Local != nil {
			allowed, err := w.Local.Acquire(ctx, granted)
			if err != nil {
				p.limiter.Return(granted)
				return p.stopped(logger, err)
			}
			if allowed < granted {
				p.limiter.Return(granted - allowed)
			}
			granted = allowed
		}

		if err := w.Work(ctx, granted); err != nil {
			w.errors.Add(1)
			if p.metrics != nil {
				p.metrics.ConsumerErrors.WithLabelValues(p.name, w.Name).Inc()
			}
			if !p.continueOnError {
				logger.Error("work failed, stopping pool", zap.Error(err))
				return errors.NewOperationError(module, "Work", err).WithContext(w.Name)
			}
			logger.Warn("work failed", zap.Error(err))
			continue
		}

		w.units.Add(int64(granted))
		if p.metrics != nil {
			p.metrics.ConsumerUnits.WithLabelValues(p.name, w.Name).Add(float64(granted))
		}
	}
}

// stopped maps a failed Acquire to the worker's exit value.
func (p *Pool) stopped(logger *zap.Logger, err error) error {
	if errors.IsCanceled(err) || stderrors.Is(err, errors.ErrDisposed) {
		logger.Debug("worker stopped", zap.Error(err))
		return nil
	}
	return err
}

func (p *Pool) runRates(ctx context.Context) {
	ticker := p.clock.NewTicker(p.rateWindow)
	defer ticker.Stop()

	last := p.clock.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C():
			p.observeRates(now.Sub(last))
			last = now
		}
	}
}

func (p *Pool) observeRates(elapsed time.Duration) {
	if elapsed <= 0 {
		return
	}
	for _, w := range p.workers {
		units := w.units.Load()

		w.mu.Lock()
		w.rate = float64(units-w.lastUnits) / elapsed.Seconds()
		w.lastUnits = units
		rate := w.rate
		w.mu.Unlock()

		p.logger.Info("worker rate",
			zap.String("worker", w.Name),
			zap.Float64("per_second", rate),
			zap.Int64("units", units))
		if p.metrics != nil {
			p.metrics.ConsumerRate.WithLabelValues(p.name, w.Name).Set(rate)
		}
	}
}

// Stats returns a snapshot of every worker in declaration order.
func (p *Pool) Stats() []WorkerStats {
	stats := make([]WorkerStats, len(p.workers))
	for i, w := range p.workers {
		w.mu.Lock()
		rate := w.rate
		w.mu.Unlock()

		stats[i] = WorkerStats{
			Name:   w.Name,
			Units:  w.units.Load(),
			Errors: w.errors.Load(),
			Rate:   rate,
		}
	}
	return stats
}
