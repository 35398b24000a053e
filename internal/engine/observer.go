package engine

import (
	"context"
	"log/slog"

	"github.com/shaiso/Nodeflow/internal/domain"
	"github.com/shaiso/Nodeflow/internal/report"
)

// Observer получает уведомления о ходе run.
//
// Методы вызываются синхронно из Step, между выполнением узлов;
// долгие операции observer должен выносить в свою горутину.
type Observer interface {
	OnRunStarted(ctx context.Context, runID, graphID string)
	OnNodeStatusChanged(ctx context.Context, ev report.NodeEvent)
	OnRunFinished(ctx context.Context, r *report.Report)
}

// Observers рассылает уведомления нескольким observer'ам.
type Observers []Observer

// OnRunStarted реализует Observer.
func (obs Observers) OnRunStarted(ctx context.Context, runID, graphID string) {
	for _, o := range obs {
		if o != nil {
			o.OnRunStarted(ctx, runID, graphID)
		}
	}
}

// OnNodeStatusChanged реализует Observer.
func (obs Observers) OnNodeStatusChanged(ctx context.Context, ev report.NodeEvent) {
	for _, o := range obs {
		if o != nil {
			o.OnNodeStatusChanged(ctx, ev)
		}
	}
}

// OnRunFinished реализует Observer.
func (obs Observers) OnRunFinished(ctx context.Context, r *report.Report) {
	for _, o := range obs {
		if o != nil {
			o.OnRunFinished(ctx, r)
		}
	}
}

// ObserverFuncs — Observer из функций; nil поля пропускаются.
type ObserverFuncs struct {
	RunStarted        func(ctx context.Context, runID, graphID string)
	NodeStatusChanged func(ctx context.Context, ev report.NodeEvent)
	RunFinished       func(ctx context.Context, r *report.Report)
}

// OnRunStarted реализует Observer.
func (f ObserverFuncs) OnRunStarted(ctx context.Context, runID, graphID string) {
	if f.RunStarted != nil {
		f.RunStarted(ctx, runID, graphID)
	}
}

// OnNodeStatusChanged реализует Observer.
func (f ObserverFuncs) OnNodeStatusChanged(ctx context.Context, ev report.NodeEvent) {
	if f.NodeStatusChanged != nil {
		f.NodeStatusChanged(ctx, ev)
	}
}

// OnRunFinished реализует Observer.
func (f ObserverFuncs) OnRunFinished(ctx context.Context, r *report.Report) {
	if f.RunFinished != nil {
		f.RunFinished(ctx, r)
	}
}

// LogObserver пишет статусы узлов в slog.
type LogObserver struct {
	Logger *slog.Logger
}

// OnRunStarted реализует Observer.
func (o LogObserver) OnRunStarted(ctx context.Context, runID, graphID string) {
	o.Logger.InfoContext(ctx, "run started", "run_id", runID, "graph_id", graphID)
}

// OnNodeStatusChanged реализует Observer.
func (o LogObserver) OnNodeStatusChanged(ctx context.Context, ev report.NodeEvent) {
	attrs := []any{
		"run_id", ev.RunID,
		"node_id", ev.NodeID,
		"node_type", ev.NodeType,
		"status", ev.Status,
	}

	switch ev.Status {
	case domain.NodeStatusFailed:
		o.Logger.WarnContext(ctx, "node failed", append(attrs, "error", ev.Error, "duration", ev.Duration)...)
	case domain.NodeStatusSkipped:
		o.Logger.DebugContext(ctx, "node skipped", append(attrs, "reason", ev.Error)...)
	case domain.NodeStatusDone:
		o.Logger.InfoContext(ctx, "node done", append(attrs, "duration", ev.Duration)...)
	default:
		o.Logger.DebugContext(ctx, "node status changed", attrs...)
	}
}

// OnRunFinished реализует Observer.
func (o LogObserver) OnRunFinished(ctx context.Context, r *report.Report) {
	s := r.Summary()
	o.Logger.InfoContext(ctx, "run finished",
		"run_id", r.RunID,
		"status", r.Status,
		"cancelled", r.Cancelled,
		"done", s.Done,
		"failed", s.Failed,
		"skipped", s.Skipped,
		"duration", r.Duration(),
	)
}
