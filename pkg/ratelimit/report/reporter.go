package report

import (
	"context"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/vnykmshr/governor/pkg/ratelimit/bucket"
)

// Reporter publishes replenishment reports of a named bucket.
type Reporter interface {
	Report(ctx context.Context, name string, r bucket.Report) error
}

// ReporterFunc adapts a function to the Reporter interface.
type ReporterFunc func(ctx context.Context, name string, r bucket.Report) error

// Report calls f.
func (f ReporterFunc) Report(ctx context.Context, name string, r bucket.Report) error {
	return f(ctx, name, r)
}

// LogReporter writes every report as a structured log entry.
type LogReporter struct {
	logger *zap.Logger
}

// NewLogReporter returns a reporter logging at info level. A nil logger
// discards every report.
func NewLogReporter(logger *zap.Logger) *LogReporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogReporter{logger: logger}
}

// Report logs r.
func (lr *LogReporter) Report(_ context.Context, name string, r bucket.Report) error {
	lr.logger.Info("tick",
		zap.String("bucket", name),
		zap.Time("time", r.Time),
		zap.Int("capacity", r.Capacity),
		zap.Int("granted", r.Granted),
		zap.Int("returned", r.Returned),
		zap.Int("waiting", r.Waiting))
	return nil
}

type multiReporter []Reporter

// Multi fans a report out to every reporter. All reporters run even if
// some fail; the failures are combined.
func Multi(reporters ...Reporter) Reporter {
	var m multiReporter
	for _, r := range reporters {
		if r != nil {
			m = append(m, r)
		}
	}
	return m
}

func (m multiReporter) Report(ctx context.Context, name string, r bucket.Report) error {
	var err error
	for _, reporter := range m {
		err = multierr.Append(err, reporter.Report(ctx, name, r))
	}
	return err
}

// Hook adapts reporter to bucket.Config.OnReplenish. Each report gets its
// own timeout; a failed report is logged at warn level and dropped.
//
// The hook runs on the bucket's replenishment goroutine, so a slow reporter
// delays the next tick by at most timeout.
func Hook(name string, reporter Reporter, timeout time.Duration, logger *zap.Logger) func(bucket.Report) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return func(r bucket.Report) {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		if err := reporter.Report(ctx, name, r); err != nil {
			logger.Warn("tick report failed",
				zap.String("bucket", name),
				zap.Error(err))
		}
	}
}

// DefaultTimeout bounds a single report when Hook is given no timeout.
const DefaultTimeout = 500 * time.Millisecond
