package observability

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/aretw0/ferry/pkg/domain"
)

const namespace = "ferry"

// Outcome labels of visits_total.
const (
	OutcomeSuccess    = "success"
	OutcomeError      = "error"
	OutcomeCancelled  = "cancelled"
	OutcomeHardReload = "hard_reload"
)

// Subscriber is the part of the event dispatcher Metrics needs.
type Subscriber interface {
	On(t domain.EventType, l domain.Listener) (remove func())
}

// Metrics counts visits, their duration, history restores and full reloads.
type Metrics struct {
	visits      *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	restores    *prometheus.CounterVec
	hardReloads prometheus.Counter

	mu      sync.Mutex
	pending map[uint64]pendingVisit
}

type pendingVisit struct {
	started time.Time
	method  string
	outcome string
}

// NewMetrics creates the collectors and registers them with reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		visits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "visits_total",
				Help:      "Total number of visits by outcome",
			},
			[]string{"outcome"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "visit_duration_seconds",
				Help:      "Time from visit start to finish",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method"},
		),
		restores: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "history_restores_total",
				Help:      "Back/forward navigations by how the page was obtained",
			},
			[]string{"source"},
		),
		hardReloads: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "hard_reloads_total",
				Help:      "Full document reloads caused by an asset version change",
			},
		),
		pending: make(map[uint64]pendingVisit),
	}
	if reg != nil {
		reg.MustRegister(m.visits, m.duration, m.restores, m.hardReloads)
	}
	return m
}

// Collectors returns every collector, for callers managing registration themselves.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{m.visits, m.duration, m.restores, m.hardReloads}
}

// Attach subscribes to the lifecycle events of s and returns a function
// removing the listeners.
func (m *Metrics) Attach(s Subscriber) (remove func()) {
	removers := []func(){
		s.On(domain.EventStart, m.onStart),
		s.On(domain.EventSuccess, m.outcome(OutcomeSuccess)),
		s.On(domain.EventError, m.outcome(OutcomeError)),
		s.On(domain.EventCancel, m.onCancel),
		s.On(domain.EventFinish, m.onFinish),
		s.On(domain.EventNavigate, m.onNavigate),
	}
	return func() {
		for _, r := range removers {
			r()
		}
	}
}

func (m *Metrics) onStart(_ context.Context, e *domain.Event) {
	method := ""
	if e.Visit != nil {
		method = string(e.Visit.Method)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending[e.VisitID] = pendingVisit{started: e.Timestamp, method: method}
}

func (m *Metrics) outcome(label string) domain.Listener {
	return func(_ context.Context, e *domain.Event) {
		m.setOutcome(e.VisitID, label)
	}
}

func (m *Metrics) onCancel(_ context.Context, e *domain.Event) {
	if e.Reason == domain.CancelVersionMismatch {
		m.hardReloads.Inc()
		m.setOutcome(e.VisitID, OutcomeHardReload)
		return
	}
	m.setOutcome(e.VisitID, OutcomeCancelled)
}

func (m *Metrics) setOutcome(id uint64, label string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.pending[id]; ok {
		p.outcome = label
		m.pending[id] = p
	}
}

func (m *Metrics) onFinish(_ context.Context, e *domain.Event) {
	m.mu.Lock()
	p, ok := m.pending[e.VisitID]
	delete(m.pending, e.VisitID)
	m.mu.Unlock()

	if !ok {
		return
	}
	if p.outcome == "" {
		p.outcome = OutcomeCancelled
	}
	m.visits.WithLabelValues(p.outcome).Inc()
	m.duration.WithLabelValues(p.method).Observe(e.Timestamp.Sub(p.started).Seconds())
}

func (m *Metrics) onNavigate(_ context.Context, e *domain.Event) {
	switch e.Source {
	case domain.SourceHistory, domain.SourceRefetch:
		m.restores.WithLabelValues(string(e.Source)).Inc()
	}
}
