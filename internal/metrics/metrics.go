// Package metrics exports Prometheus counters fed from the event bus.
package metrics

import (
	"context"

	eventbus "github.com/hanpama/formstate/internal/eventbus"
	events "github.com/hanpama/formstate/internal/events"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "formstate"

// Collector holds the array synchronizer metrics.
type Collector struct {
	mutations *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	relocated *prometheus.CounterVec
	destroyed *prometheus.CounterVec
	cleanups  prometheus.Counter
	batches   prometheus.Counter
	writes    prometheus.Counter
	exhausted prometheus.Counter
}

// New builds an unregistered Collector.
func New() *Collector {
	return &Collector{
		mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "array",
			Name:      "mutations_total",
			Help:      "Array mutations by operation and result",
		}, []string{"op", "result"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "array",
			Name:      "mutation_duration_seconds",
			Help:      "Time spent in an array mutation including the input sink",
			Buckets:   []float64{0.00001, 0.0001, 0.001, 0.01, 0.1, 1},
		}, []string{"op"}),
		relocated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "array",
			Name:      "relocated_nodes_total",
			Help:      "Nodes re-addressed by the synchronizer",
		}, []string{"kind"}),
		destroyed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "array",
			Name:      "destroyed_nodes_total",
			Help:      "Nodes discarded by the synchronizer",
		}, []string{"kind"}),
		cleanups: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "array",
			Name:      "cleanups_total",
			Help:      "Auto-cleanups that discarded at least one node",
		}),
		batches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reactive",
			Name:      "batches_total",
			Help:      "Committed batches with at least one write",
		}),
		writes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reactive",
			Name:      "writes_total",
			Help:      "Writes recorded across committed batches",
		}),
		exhausted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reactive",
			Name:      "reaction_limit_exhausted_total",
			Help:      "Settle loops stopped by the round limit",
		}),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	c.mutations.Describe(ch)
	c.duration.Describe(ch)
	c.relocated.Describe(ch)
	c.destroyed.Describe(ch)
	c.cleanups.Describe(ch)
	c.batches.Describe(ch)
	c.writes.Describe(ch)
	c.exhausted.Describe(ch)
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.mutations.Collect(ch)
	c.duration.Collect(ch)
	c.relocated.Collect(ch)
	c.destroyed.Collect(ch)
	c.cleanups.Collect(ch)
	c.batches.Collect(ch)
	c.writes.Collect(ch)
	c.exhausted.Collect(ch)
}

// Attach subscribes c to the global event bus.
func (c *Collector) Attach() (detach func()) {
	unsubs := []func(){
		eventbus.Subscribe(func(_ context.Context, e events.MutationFinish) {
			result := "ok"
			if e.Err != nil {
				result = "error"
			}
			c.mutations.WithLabelValues(e.Op, result).Inc()
			c.duration.WithLabelValues(e.Op).Observe(e.Duration.Seconds())
		}),
		eventbus.Subscribe(func(_ context.Context, e events.ArraySpliced) {
			c.relocated.WithLabelValues("splice").Add(float64(e.Relocated))
			c.destroyed.WithLabelValues("splice").Add(float64(e.Destroyed))
		}),
		eventbus.Subscribe(func(_ context.Context, e events.ArrayExchanged) {
			c.relocated.WithLabelValues("exchange").Add(float64(e.Relocated))
		}),
		eventbus.Subscribe(func(_ context.Context, e events.ArrayCleaned) {
			c.cleanups.Inc()
			c.destroyed.WithLabelValues("cleanup").Add(float64(e.Destroyed))
		}),
		eventbus.Subscribe(func(_ context.Context, e events.BatchCommitted) {
			c.batches.Inc()
			c.writes.Add(float64(e.Writes))
		}),
		eventbus.Subscribe(func(_ context.Context, e events.ReactionsSettled) {
			if e.Exhausted {
				c.exhausted.Inc()
			}
		}),
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}

// Register creates a Collector, registers it with reg and attaches it to the
// event bus.
func Register(reg prometheus.Registerer) (*Collector, func(), error) {
	c := New()
	if err := reg.Register(c); err != nil {
		return nil, nil, err
	}
	detach := c.Attach()
	return c, func() {
		detach()
		reg.Unregister(c)
	}, nil
}
