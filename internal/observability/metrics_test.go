package observability

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/signalsfoundry/tileworld-simulator/model"
)

func TestSimCollectorRecordsTicks(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewSimCollector(reg)
	if err != nil {
		t.Fatalf("NewSimCollector: %v", err)
	}

	collector.ObserveTick(0.1, 2*time.Millisecond)
	collector.ObserveTick(0.05, time.Millisecond)

	if got := testutil.ToFloat64(collector.Ticks); got != 2 {
		t.Fatalf("tileworld_ticks_total = %v, want 2", got)
	}
	if got := testutil.ToFloat64(collector.SimSeconds); got < 0.1499 || got > 0.1501 {
		t.Fatalf("tileworld_sim_seconds_total = %v, want 0.15", got)
	}
	if count := histogramSampleCount(t, reg, "tileworld_tick_duration_seconds", nil); count != 2 {
		t.Fatalf("tileworld_tick_duration_seconds sample_count = %d, want 2", count)
	}
}

func TestSimCollectorDamageIgnoresHeals(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewSimCollector(reg)
	if err != nil {
		t.Fatalf("NewSimCollector: %v", err)
	}

	collector.AddDamage(model.SpeciesPlayer, "magma", 50)
	collector.AddDamage(model.SpeciesPlayer, "magma", 50)
	collector.AddDamage(model.SpeciesPlayer, "plant", -50)

	if got := testutil.ToFloat64(collector.Damage.WithLabelValues("player", "magma")); got != 100 {
		t.Fatalf("tileworld_damage_total{player,magma} = %v, want 100", got)
	}
	if got := testutil.ToFloat64(collector.Damage.WithLabelValues("player", "plant")); got != 0 {
		t.Fatalf("tileworld_damage_total{player,plant} = %v, want 0", got)
	}
}

func TestSimCollectorCountsAndOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewSimCollector(reg)
	if err != nil {
		t.Fatalf("NewSimCollector: %v", err)
	}

	collector.SetEntityCounts(map[model.Species]int{
		model.SpeciesPlayer:   1,
		model.SpeciesWanderer: 4,
	})
	collector.SetEntityCounts(map[model.Species]int{model.SpeciesWanderer: 3})
	collector.IncDeaths(model.SpeciesWanderer)
	collector.AddSubSteps(model.SpeciesFlyer, 7)
	collector.SetOutcome(model.OutcomeWon)

	if got := testutil.ToFloat64(collector.Entities.WithLabelValues("wanderer")); got != 3 {
		t.Fatalf("tileworld_entities{wanderer} = %v, want 3", got)
	}
	if got := testutil.ToFloat64(collector.Entities.WithLabelValues("player")); got != 1 {
		t.Fatalf("tileworld_entities{player} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(collector.Deaths.WithLabelValues("wanderer")); got != 1 {
		t.Fatalf("tileworld_deaths_total{wanderer} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(collector.SubSteps.WithLabelValues("flyer")); got != 7 {
		t.Fatalf("tileworld_substeps_total{flyer} = %v, want 7", got)
	}
	if got := testutil.ToFloat64(collector.GameOver); got != 2 {
		t.Fatalf("tileworld_game_over = %v, want 2", got)
	}
}

func TestNewSimCollectorReusesRegistered(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewSimCollector(reg)
	if err != nil {
		t.Fatalf("NewSimCollector: %v", err)
	}
	second, err := NewSimCollector(reg)
	if err != nil {
		t.Fatalf("second NewSimCollector: %v", err)
	}

	first.Ticks.Inc()
	if got := testutil.ToFloat64(second.Ticks); got != 1 {
		t.Fatalf("shared tileworld_ticks_total = %v, want 1", got)
	}
}

func TestNilSimCollectorIsSafe(t *testing.T) {
	var c *SimCollector
	c.ObserveTick(0.1, time.Millisecond)
	c.AddSubSteps(model.SpeciesPlayer, 1)
	c.AddDamage(model.SpeciesPlayer, "gas", 4)
	c.IncDeaths(model.SpeciesPlayer)
	c.SetEntityCounts(map[model.Species]int{model.SpeciesPlayer: 1})
	c.SetOutcome(model.OutcomeLost)
}

func TestMetricsHandlerExposesSimMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewSimCollector(reg)
	if err != nil {
		t.Fatalf("NewSimCollector: %v", err)
	}
	collector.ObserveTick(0.1, time.Millisecond)
	collector.AddSubSteps(model.SpeciesPlayer, 3)
	collector.AddDamage(model.SpeciesFlyer, "dry", 6)
	collector.IncDeaths(model.SpeciesFlyer)
	collector.SetEntityCounts(map[model.Species]int{model.SpeciesPlayer: 1})
	collector.SetOutcome(model.OutcomeLost)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	collector.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("/metrics status = %d, want 200", rr.Code)
	}
	body := rr.Body.String()
	for _, metric := range []string{
		"tileworld_ticks_total",
		"tileworld_sim_seconds_total",
		"tileworld_tick_duration_seconds",
		"tileworld_substeps_total",
		"tileworld_entities",
		"tileworld_deaths_total",
		"tileworld_damage_total",
		"tileworld_game_over 1",
	} {
		if !strings.Contains(body, metric) {
			t.Fatalf("expected %q in /metrics output", metric)
		}
	}
}

func TestScriptCollectorCountsFailures(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewScriptCollector(reg)
	if err != nil {
		t.Fatalf("NewScriptCollector: %v", err)
	}
	if collector.Gatherer() != reg {
		t.Fatalf("Gatherer() did not return the registry")
	}

	collector.SetQueued(4)
	collector.ObserveIntent("start_jump", nil)
	collector.ObserveIntent("start_jump", errors.New("already jumping"))

	if got := testutil.ToFloat64(collector.IntentsQueued); got != 4 {
		t.Fatalf("tileworld_intents_queued = %v, want 4", got)
	}
	if got := testutil.ToFloat64(collector.IntentsExecuted.WithLabelValues("start_jump")); got != 2 {
		t.Fatalf("tileworld_intents_executed_total = %v, want 2", got)
	}
	if got := testutil.ToFloat64(collector.IntentsFailed.WithLabelValues("start_jump")); got != 1 {
		t.Fatalf("tileworld_intents_failed_total = %v, want 1", got)
	}
}

func histogramSampleCount(t *testing.T, gatherer prometheus.Gatherer, name string, labels map[string]string) uint64 {
	t.Helper()

	metrics, err := gatherer.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	for _, mf := range metrics {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.Metric {
			if matchLabels(m.GetLabel(), labels) && m.GetHistogram() != nil {
				return m.GetHistogram().GetSampleCount()
			}
		}
	}
	return 0
}

func matchLabels(got []*dto.LabelPair, want map[string]string) bool {
	if len(got) < len(want) {
		return false
	}
	matched := 0
	for _, lp := range got {
		if val, ok := want[lp.GetName()]; ok && val == lp.GetValue() {
			matched++
		}
	}
	return matched == len(want)
}
