package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace prefixes every metric name.
const Namespace = "governor"

// Registry holds all metric instances for governor components.
type Registry struct {
	// Bucket Metrics
	BucketRequested      *prometheus.CounterVec
	BucketGranted        *prometheus.CounterVec
	BucketAborted        *prometheus.CounterVec
	BucketReturned       *prometheus.CounterVec
	BucketReplenishments *prometheus.CounterVec
	BucketWaitTime       *prometheus.HistogramVec
	BucketTokens         *prometheus.GaugeVec
	BucketCapacity       *prometheus.GaugeVec
	BucketWaiting        *prometheus.GaugeVec

	// Consumer Metrics
	ConsumerUnits  *prometheus.CounterVec
	ConsumerRate   *prometheus.GaugeVec
	ConsumerErrors *prometheus.CounterVec

	// Capacity Plan Metrics
	CapacityChanges *prometheus.CounterVec
}

// DefaultRegistry is the default metrics registry used by governor components.
var DefaultRegistry *Registry

func init() {
	DefaultRegistry = NewRegistry(prometheus.DefaultRegisterer)
}

var (
	registriesMu sync.Mutex
	registries   = make(map[prometheus.Registerer]*Registry)
)

// NewRegistry returns the metrics registry bound to reg. The collectors are
// registered on reg the first time it is seen; later calls with the same
// registerer return the same Registry, so many components can share one.
func NewRegistry(reg prometheus.Registerer) *Registry {
	registriesMu.Lock()
	defer registriesMu.Unlock()

	if r, ok := registries[reg]; ok {
		return r
	}
	r := newRegistry(reg)
	registries[reg] = r
	return r
}

func newRegistry(reg prometheus.Registerer) *Registry {
	factory := promauto.With(reg)

	return &Registry{
		BucketRequested: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "bucket",
				Name:      "requested_tokens_total",
				Help:      "Total number of tokens requested from Acquire",
			},
			[]string{"bucket_name"},
		),

		BucketGranted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "bucket",
				Name:      "granted_tokens_total",
				Help:      "Total number of tokens granted by Acquire",
			},
			[]string{"bucket_name"},
		),

		BucketAborted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "bucket",
				Name:      "aborted_acquires_total",
				Help:      "Total number of Acquire calls that ended in cancellation or disposal",
			},
			[]string{"bucket_name", "reason"},
		),

		BucketReturned: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "bucket",
				Name:      "returned_tokens_total",
				Help:      "Total number of tokens passed to Return",
			},
			[]string{"bucket_name"},
		),

		BucketReplenishments: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "bucket",
				Name:      "replenishments_total",
				Help:      "Total number of replenishment ticks",
			},
			[]string{"bucket_name"},
		),

		BucketWaitTime: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Subsystem: "bucket",
				Name:      "acquire_duration_seconds",
				Help:      "Time spent inside Acquire",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"bucket_name"},
		),

		BucketTokens: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Subsystem: "bucket",
				Name:      "tokens_available",
				Help:      "Number of tokens currently available",
			},
			[]string{"bucket_name"},
		),

		BucketCapacity: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Subsystem: "bucket",
				Name:      "capacity",
				Help:      "Configured bucket capacity",
			},
			[]string{"bucket_name"},
		),

		BucketWaiting: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Subsystem: "bucket",
				Name:      "waiting",
				Help:      "Number of Acquire calls blocked at the last tick",
			},
			[]string{"bucket_name"},
		),

		ConsumerUnits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "consumer",
				Name:      "units_total",
				Help:      "Total number of throttled work units completed",
			},
			[]string{"pool_name", "worker"},
		),

		ConsumerRate: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Subsystem: "consumer",
				Name:      "observed_rate",
				Help:      "Work units per second observed over the last rate window",
			},
			[]string{"pool_name", "worker"},
		),

		ConsumerErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "consumer",
				Name:      "errors_total",
				Help:      "Total number of work units that returned an error",
			},
			[]string{"pool_name", "worker"},
		),

		CapacityChanges: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "capacity_plan",
				Name:      "changes_total",
				Help:      "Total number of scheduled capacity changes applied",
			},
			[]string{"plan_name", "result"},
		),
	}
}
