package core

import (
	"expvar"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"reqcore/internal/pipeline"
	"reqcore/pkg/domain"
)

var expvarSeq uint64

// ExpvarObserver publishes aggregate mutation counters and timings via
// expvar, for deployments that prefer process-local metrics without an
// external scrape target.
type ExpvarObserver struct {
	name      string
	mu        sync.Mutex
	durations map[string]float64
	outcomes  map[string]map[string]int64
}

// ExpvarSnapshot is the read-only view the expvar endpoint serves.
type ExpvarSnapshot struct {
	DurationsMS map[string]float64          `json:"durations_ms_total"`
	Outcomes    map[string]map[string]int64 `json:"outcomes_total"`
	RecordedAt  time.Time                   `json:"recorded_at"`
}

// NewExpvarObserver constructs an observer and publishes it under the given
// name. An empty name gets a unique generated one.
func NewExpvarObserver(name string) *ExpvarObserver {
	if name == "" {
		name = fmt.Sprintf("reqcore_mutations_%d", atomic.AddUint64(&expvarSeq, 1))
	}
	o := &ExpvarObserver{
		name:      name,
		durations: make(map[string]float64),
		outcomes:  make(map[string]map[string]int64),
	}
	expvar.Publish(name, expvar.Func(func() any {
		return o.Snapshot()
	}))
	return o
}

// Name returns the expvar export name.
func (o *ExpvarObserver) Name() string { return o.name }

// MutationObserved implements pipeline.Observer.
func (o *ExpvarObserver) MutationObserved(kind domain.EntityType, op domain.Operation, state pipeline.State, duration time.Duration) {
	key := string(kind) + "." + string(op)
	o.mu.Lock()
	defer o.mu.Unlock()
	o.durations[key] += float64(duration) / float64(time.Millisecond)
	if _, ok := o.outcomes[key]; !ok {
		o.outcomes[key] = make(map[string]int64, 2)
	}
	o.outcomes[key][string(state)]++
}

// Snapshot copies the aggregated metrics.
func (o *ExpvarObserver) Snapshot() ExpvarSnapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	durations := make(map[string]float64, len(o.durations))
	for k, v := range o.durations {
		durations[k] = v
	}
	outcomes := make(map[string]map[string]int64, len(o.outcomes))
	for k, states := range o.outcomes {
		cpy := make(map[string]int64, len(states))
		for state, n := range states {
			cpy[state] = n
		}
		outcomes[k] = cpy
	}
	return ExpvarSnapshot{DurationsMS: durations, Outcomes: outcomes, RecordedAt: time.Now().UTC()}
}

// PrometheusObserver exports mutation latency and outcome counters to a
// Prometheus registry.
type PrometheusObserver struct {
	latency  *prometheus.HistogramVec
	outcomes *prometheus.CounterVec
}

// NewPrometheusObserver registers the mutation metrics on the given registry.
// Pass prometheus.DefaultRegisterer for the process-global registry.
func NewPrometheusObserver(reg prometheus.Registerer) *PrometheusObserver {
	factory := promauto.With(reg)
	return &PrometheusObserver{
		latency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "reqcore",
			Subsystem: "pipeline",
			Name:      "mutation_duration_seconds",
			Help:      "End-to-end mutation latency including side effects",
			Buckets:   []float64{0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"entity", "operation", "state"}),
		outcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "reqcore",
			Subsystem: "pipeline",
			Name:      "mutations_total",
			Help:      "Mutations by entity, operation, and terminal state",
		}, []string{"entity", "operation", "state"}),
	}
}

// MutationObserved implements pipeline.Observer.
func (o *PrometheusObserver) MutationObserved(kind domain.EntityType, op domain.Operation, state pipeline.State, duration time.Duration) {
	labels := prometheus.Labels{
		"entity":    string(kind),
		"operation": string(op),
		"state":     string(state),
	}
	o.latency.With(labels).Observe(duration.Seconds())
	o.outcomes.With(labels).Inc()
}
