package observability

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// ScriptCollector exposes metrics for scripted player intents.
type ScriptCollector struct {
	gatherer prometheus.Gatherer

	IntentsQueued   prometheus.Gauge
	IntentsExecuted *prometheus.CounterVec
	IntentsFailed   *prometheus.CounterVec
}

// NewScriptCollector registers intent metrics against the provided registerer.
func NewScriptCollector(reg prometheus.Registerer) (*ScriptCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	queued, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "tileworld_intents_queued",
		Help: "Scripted intents waiting for their simulation time.",
	}), "tileworld_intents_queued")
	if err != nil {
		return nil, err
	}
	executed, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tileworld_intents_executed_total",
		Help: "Scripted intents applied to the player, labeled by action.",
	}, []string{"action"}), "tileworld_intents_executed_total")
	if err != nil {
		return nil, err
	}
	failed, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tileworld_intents_failed_total",
		Help: "Scripted intents rejected by the player, labeled by action.",
	}, []string{"action"}), "tileworld_intents_failed_total")
	if err != nil {
		return nil, err
	}

	return &ScriptCollector{
		gatherer:        gatherer,
		IntentsQueued:   queued,
		IntentsExecuted: executed,
		IntentsFailed:   failed,
	}, nil
}

// Gatherer returns the Prometheus gatherer associated with the collector.
func (c *ScriptCollector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.gatherer
}

// SetQueued updates the pending intent gauge.
func (c *ScriptCollector) SetQueued(count int) {
	if c == nil || c.IntentsQueued == nil {
		return
	}
	c.IntentsQueued.Set(float64(count))
}

// ObserveIntent counts one applied intent; a non-nil err also counts as failed.
func (c *ScriptCollector) ObserveIntent(action string, err error) {
	if c == nil {
		return
	}
	c.IntentsExecuted.WithLabelValues(action).Inc()
	if err != nil {
		c.IntentsFailed.WithLabelValues(action).Inc()
	}
}

func registerHistogram(reg prometheus.Registerer, hist prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(hist); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return hist, nil
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}
