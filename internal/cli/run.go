package cli

import (
	"context"
	stderrors "errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vnykmshr/governor/pkg/metrics"
	"github.com/vnykmshr/governor/pkg/ratelimit/bucket"
	"github.com/vnykmshr/governor/pkg/ratelimit/consumer"
	"github.com/vnykmshr/governor/pkg/ratelimit/report"
	"github.com/vnykmshr/governor/pkg/scheduling/capacity"
)

const bucketName = "governor"

// Run wires a bucket, its reporters, the capacity plan and the worker pool
// from cfg and runs them until ctx is done.
func Run(ctx context.Context, cfg Config, logger *zap.Logger) error {
	changes, err := cfg.Validate()
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	registry := metrics.NewRegistry(reg)

	reporters := []report.Reporter{report.NewLogReporter(logger)}
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
		defer client.Close()

		rr, err := report.NewRedisReporter(report.RedisConfig{
			Client:  client,
			Channel: cfg.Redis.Channel,
			Key:     cfg.Redis.Key,
		})
		if err != nil {
			return err
		}
		reporters = append(reporters, rr)
		logger.Info("publishing tick reports",
			zap.String("redis", cfg.Redis.Addr),
			zap.String("channel", cfg.Redis.Channel),
			zap.String("instance", rr.Instance()))
	}

	limiter, err := bucket.NewWithConfigAndMetrics(bucket.Config{
		Capacity:      cfg.Capacity,
		Interval:      cfg.Interval,
		InitialTokens: -1,
		Logger:        logger,
		OnReplenish:   report.Hook(bucketName, report.Multi(reporters...), cfg.Interval, logger),
	}, bucketName, metrics.Config{Enabled: true, Registry: reg})
	if err != nil {
		return err
	}
	defer limiter.Close()

	if len(changes) > 0 {
		plan, err := capacity.New(capacity.Config{
			Name:    bucketName,
			Target:  limiter,
			Changes: changes,
			Logger:  logger,
			Metrics: registry,
		})
		if err != nil {
			return err
		}
		if change, at, ok := plan.Next(time.Now()); ok {
			logger.Info("next capacity change", zap.Stringer("change", change), zap.Time("at", at))
		}
		plan.Start()
		defer plan.Stop()
	}

	workers := make([]consumer.Worker, cfg.Workers)
	for i := range workers {
		name := strconv.Itoa(i + 1)
		workers[i] = consumer.Worker{
			Name:    name,
			Request: cfg.Request,
			Work: func(_ context.Context, granted int) error {
				logger.Debug("got tokens", zap.String("worker", name), zap.Int("granted", granted))
				return nil
			},
		}
	}

	pool, err := consumer.New(consumer.Config{
		Name:    bucketName,
		Limiter: limiter,
		Workers: workers,
		Logger:  logger,
		Metrics: registry,
	})
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return pool.Run(gctx)
	})
	if cfg.MetricsAddr != "" {
		g.Go(func() error {
			return serveMetrics(gctx, cfg.MetricsAddr, reg, logger)
		})
	}

	logger.Info("governor started",
		zap.Int("capacity", cfg.Capacity),
		zap.Duration("interval", cfg.Interval),
		zap.Int("workers", cfg.Workers))

	err = g.Wait()
	logger.Info("governor stopped")
	return err
}

// serveMetrics serves /metrics on addr until ctx is done.
func serveMetrics(ctx context.Context, addr string, gatherer prometheus.Gatherer, logger *zap.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("serving metrics", zap.String("addr", listener.Addr().String()))
		errCh <- srv.Serve(listener)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !stderrors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
