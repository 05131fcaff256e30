package observability_test

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/ferry/pkg/domain"
	"github.com/aretw0/ferry/pkg/events"
	"github.com/aretw0/ferry/pkg/observability"
)

// lifecycle emits start, the given terminal events and finish for one visit.
func lifecycle(d *events.Dispatcher, id uint64, method domain.Method, took time.Duration, terminal ...*domain.Event) {
	ctx := context.Background()
	req := &domain.VisitRequest{URL: "/users", Method: method}
	start := time.Unix(1700000000, 0)
	d.Emit(ctx, &domain.Event{Type: domain.EventStart, VisitID: id, Visit: req, Timestamp: start})
	for _, e := range terminal {
		e.VisitID = id
		e.Visit = req
		d.Emit(ctx, e)
	}
	d.Emit(ctx, &domain.Event{Type: domain.EventFinish, VisitID: id, Visit: req, Timestamp: start.Add(took)})
}

func gather(t *testing.T, reg *prometheus.Registry) map[string]*dto.MetricFamily {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	out := make(map[string]*dto.MetricFamily, len(families))
	for _, f := range families {
		out[f.GetName()] = f
	}
	return out
}

func counter(f *dto.MetricFamily, label, value string) float64 {
	if f == nil {
		return 0
	}
	for _, m := range f.GetMetric() {
		for _, l := range m.GetLabel() {
			if l.GetName() == label && l.GetValue() == value {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func TestMetrics_CountsVisitOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := observability.NewMetrics(reg)
	d := events.NewDispatcher()
	m.Attach(d)

	lifecycle(d, 1, domain.MethodGet, 200*time.Millisecond, &domain.Event{Type: domain.EventSuccess})
	lifecycle(d, 2, domain.MethodPost, time.Second, &domain.Event{Type: domain.EventError})
	lifecycle(d, 3, domain.MethodGet, 0, &domain.Event{Type: domain.EventCancel, Reason: domain.CancelSuperseded})
	lifecycle(d, 4, domain.MethodGet, 0, &domain.Event{Type: domain.EventCancel, Reason: domain.CancelVersionMismatch})
	lifecycle(d, 5, domain.MethodGet, 0, &domain.Event{Type: domain.EventSuccess})

	families := gather(t, reg)
	visits := families["ferry_visits_total"]
	assert.Equal(t, 2.0, counter(visits, "outcome", observability.OutcomeSuccess))
	assert.Equal(t, 1.0, counter(visits, "outcome", observability.OutcomeError))
	assert.Equal(t, 1.0, counter(visits, "outcome", observability.OutcomeCancelled))
	assert.Equal(t, 1.0, counter(visits, "outcome", observability.OutcomeHardReload))

	reloads := families["ferry_hard_reloads_total"]
	require.NotNil(t, reloads)
	assert.Equal(t, 1.0, reloads.GetMetric()[0].GetCounter().GetValue())

	duration := families["ferry_visit_duration_seconds"]
	require.NotNil(t, duration)
	var count uint64
	var sum float64
	for _, metric := range duration.GetMetric() {
		count += metric.GetHistogram().GetSampleCount()
		sum += metric.GetHistogram().GetSampleSum()
	}
	assert.Equal(t, uint64(5), count)
	assert.InDelta(t, 1.2, sum, 1e-9)
}

func TestMetrics_CountsHistoryRestores(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := observability.NewMetrics(reg)
	d := events.NewDispatcher()
	m.Attach(d)

	ctx := context.Background()
	for _, src := range []domain.Source{domain.SourceInitial, domain.SourceVisit, domain.SourceHistory, domain.SourceHistory, domain.SourceRefetch} {
		d.Emit(ctx, &domain.Event{Type: domain.EventNavigate, Source: src})
	}

	restores := gather(t, reg)["ferry_history_restores_total"]
	assert.Equal(t, 2.0, counter(restores, "source", "history"))
	assert.Equal(t, 1.0, counter(restores, "source", "refetch"))
	assert.Equal(t, 0.0, counter(restores, "source", "visit"))
}

func TestMetrics_FinishWithoutStartIsIgnored(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := observability.NewMetrics(reg)
	d := events.NewDispatcher()
	m.Attach(d)

	d.Emit(context.Background(), &domain.Event{Type: domain.EventFinish, VisitID: 9})

	_, ok := gather(t, reg)["ferry_visits_total"]
	assert.False(t, ok, "no series is created for an unknown visit")
}

func TestMetrics_Detach(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := observability.NewMetrics(reg)
	d := events.NewDispatcher()
	remove := m.Attach(d)
	remove()

	lifecycle(d, 1, domain.MethodGet, time.Millisecond, &domain.Event{Type: domain.EventSuccess})
	_, ok := gather(t, reg)["ferry_visits_total"]
	assert.False(t, ok)
}

func TestMetrics_UnregisteredCollectors(t *testing.T) {
	m := observability.NewMetrics(nil)
	reg := prometheus.NewRegistry()
	for _, c := range m.Collectors() {
		require.NoError(t, reg.Register(c))
	}
}
