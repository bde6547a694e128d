package observability

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/signalsfoundry/tileworld-simulator/model"
)

// SimCollector bundles Prometheus metrics for the world tick loop. It
// satisfies core.MetricsRecorder.
type SimCollector struct {
	gatherer prometheus.Gatherer

	Ticks        prometheus.Counter
	SimSeconds   prometheus.Counter
	TickDuration prometheus.Histogram
	SubSteps     *prometheus.CounterVec
	Entities     *prometheus.GaugeVec
	Deaths       *prometheus.CounterVec
	Damage       *prometheus.CounterVec
	GameOver     prometheus.Gauge
}

// NewSimCollector registers simulation metrics against the provided
// registerer, defaulting to the global Prometheus registry when nil.
func NewSimCollector(reg prometheus.Registerer) (*SimCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	ticks, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tileworld_ticks_total",
		Help: "Number of completed world ticks.",
	}), "tileworld_ticks_total")
	if err != nil {
		return nil, err
	}
	simSeconds, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tileworld_sim_seconds_total",
		Help: "Simulated seconds advanced across all ticks.",
	}), "tileworld_sim_seconds_total")
	if err != nil {
		return nil, err
	}
	duration, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "tileworld_tick_duration_seconds",
		Help:    "Wall-clock time spent advancing one world tick.",
		Buckets: []float64{0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1},
	}), "tileworld_tick_duration_seconds")
	if err != nil {
		return nil, err
	}

	subSteps, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tileworld_substeps_total",
		Help: "Integration sub-steps taken, labeled by species.",
	}, []string{"species"}), "tileworld_substeps_total")
	if err != nil {
		return nil, err
	}
	entities, err := registerGaugeVec(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "tileworld_entities",
		Help: "Live entities in the world, labeled by species.",
	}, []string{"species"}), "tileworld_entities")
	if err != nil {
		return nil, err
	}
	deaths, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tileworld_deaths_total",
		Help: "Entities removed after dying, labeled by species.",
	}, []string{"species"}), "tileworld_deaths_total")
	if err != nil {
		return nil, err
	}
	damage, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tileworld_damage_total",
		Help: "Hit points lost, labeled by species and cause.",
	}, []string{"species", "cause"}), "tileworld_damage_total")
	if err != nil {
		return nil, err
	}
	gameOver, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "tileworld_game_over",
		Help: "Game outcome: 0 running, 1 lost, 2 won.",
	}), "tileworld_game_over")
	if err != nil {
		return nil, err
	}

	return &SimCollector{
		gatherer:     gatherer,
		Ticks:        ticks,
		SimSeconds:   simSeconds,
		TickDuration: duration,
		SubSteps:     subSteps,
		Entities:     entities,
		Deaths:       deaths,
		Damage:       damage,
		GameOver:     gameOver,
	}, nil
}

// Handler exposes a ready-to-use /metrics handler.
func (c *SimCollector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// ObserveTick records one completed tick of dt simulated seconds.
func (c *SimCollector) ObserveTick(dt float64, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.Ticks.Inc()
	if dt > 0 {
		c.SimSeconds.Add(dt)
	}
	c.TickDuration.Observe(elapsed.Seconds())
}

func (c *SimCollector) AddSubSteps(species model.Species, n int) {
	if c == nil || n <= 0 {
		return
	}
	c.SubSteps.WithLabelValues(species.String()).Add(float64(n))
}

// AddDamage counts hit points lost. Heals are not tracked.
func (c *SimCollector) AddDamage(species model.Species, cause string, hp int) {
	if c == nil || hp <= 0 {
		return
	}
	c.Damage.WithLabelValues(species.String(), cause).Add(float64(hp))
}

func (c *SimCollector) IncDeaths(species model.Species) {
	if c == nil {
		return
	}
	c.Deaths.WithLabelValues(species.String()).Inc()
}

// SetEntityCounts replaces the per-species gauges. Species missing from
// counts are left untouched.
func (c *SimCollector) SetEntityCounts(counts map[model.Species]int) {
	if c == nil {
		return
	}
	for s, n := range counts {
		c.Entities.WithLabelValues(s.String()).Set(float64(n))
	}
}

func (c *SimCollector) SetOutcome(o model.Outcome) {
	if c == nil {
		return
	}
	c.GameOver.Set(float64(o))
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGaugeVec(reg prometheus.Registerer, vec *prometheus.GaugeVec, name string) (*prometheus.GaugeVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.GaugeVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}
