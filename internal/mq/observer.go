package mq

import (
	"context"
	"log/slog"

	"github.com/shaiso/Nodeflow/internal/report"
)

// EventObserver публикует ход run в nodeflow.events.
//
// Реализует engine.Observer. Ошибки публикации только логируются:
// недоступный брокер не должен останавливать выполнение графа.
type EventObserver struct {
	sender Sender
	logger *slog.Logger
}

// NewEventObserver создаёт EventObserver.
func NewEventObserver(s Sender, logger *slog.Logger) *EventObserver {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventObserver{sender: s, logger: logger}
}

// OnRunStarted публикует run.started.
func (o *EventObserver) OnRunStarted(ctx context.Context, runID, graphID string) {
	o.publish(ctx, RoutingKeyRunStarted, MessageTypeRunStarted,
		RunStartedPayload{RunID: runID, GraphID: graphID})
}

// OnNodeStatusChanged публикует node.status.
func (o *EventObserver) OnNodeStatusChanged(ctx context.Context, ev report.NodeEvent) {
	o.publish(ctx, RoutingKeyNodeStatus, MessageTypeNodeStatus, NodeStatusPayload{
		RunID:      ev.RunID,
		GraphID:    ev.GraphID,
		NodeID:     ev.NodeID,
		NodeType:   ev.NodeType,
		Status:     string(ev.Status),
		Error:      ev.Error,
		DurationMs: ev.Duration.Milliseconds(),
	})
}

// OnRunFinished публикует run.finished со сводкой отчёта.
func (o *EventObserver) OnRunFinished(ctx context.Context, r *report.Report) {
	o.publish(ctx, RoutingKeyRunFinished, MessageTypeRunFinished, RunFinishedPayload{
		RunID:     r.RunID,
		GraphID:   r.GraphID,
		Status:    string(r.Status),
		Cancelled: r.Cancelled,
		Summary:   r.Summary(),
	})
}

func (o *EventObserver) publish(ctx context.Context, key RoutingKey, t MessageType, payload any) {
	msg, err := NewMessage(t, payload)
	if err == nil {
		err = o.sender.Send(ctx, ExchangeEvents, key, msg)
	}
	if err != nil {
		o.logger.Warn("failed to publish event", "type", t, "error", err)
	}
}
