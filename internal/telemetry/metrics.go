package telemetry

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/shaiso/Nodeflow/internal/domain"
	"github.com/shaiso/Nodeflow/internal/report"
)

// Metrics — Prometheus метрики выполнения графов.
type Metrics struct {
	RunsTotal      *prometheus.CounterVec
	NodeExecutions *prometheus.CounterVec
	NodeDuration   *prometheus.HistogramVec
	ActiveRuns     prometheus.Gauge
}

// NewMetrics регистрирует метрики в reg.
// Сервисы передают prometheus.DefaultRegisterer, тесты — prometheus.NewRegistry().
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		RunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "nodeflow_runs_total",
			Help: "Total graph runs by final status",
		}, []string{"status"}),

		NodeExecutions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "nodeflow_node_executions_total",
			Help: "Node terminal states by node type and status",
		}, []string{"type", "status"}),

		NodeDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "nodeflow_node_duration_seconds",
			Help:    "Executor duration by node type",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
		}, []string{"type"}),

		ActiveRuns: factory.NewGauge(prometheus.GaugeOpts{
			Name: "nodeflow_active_runs",
			Help: "Runs currently in progress",
		}),
	}
}

// MetricsObserver обновляет метрики по событиям движка.
type MetricsObserver struct {
	m *Metrics
}

// NewMetricsObserver создаёт observer для метрик.
func NewMetricsObserver(m *Metrics) *MetricsObserver {
	return &MetricsObserver{m: m}
}

// OnRunStarted увеличивает число активных run.
func (o *MetricsObserver) OnRunStarted(_ context.Context, _, _ string) {
	o.m.ActiveRuns.Inc()
}

// OnNodeStatusChanged учитывает только терминальные статусы.
func (o *MetricsObserver) OnNodeStatusChanged(_ context.Context, ev report.NodeEvent) {
	if !ev.Status.IsTerminal() {
		return
	}
	o.m.NodeExecutions.WithLabelValues(ev.NodeType, string(ev.Status)).Inc()

	if ev.Status == domain.NodeStatusDone || ev.Status == domain.NodeStatusFailed {
		o.m.NodeDuration.WithLabelValues(ev.NodeType).Observe(ev.Duration.Seconds())
	}
}

// OnRunFinished учитывает итог run.
func (o *MetricsObserver) OnRunFinished(_ context.Context, r *report.Report) {
	o.m.ActiveRuns.Dec()
	o.m.RunsTotal.WithLabelValues(string(r.Status)).Inc()
}
