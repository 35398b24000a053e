package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shaiso/Nodeflow/internal/report"
)

// MessageType — тип сообщения.
type MessageType string

const (
	MessageTypeRunRequested MessageType = "run.requested"
	MessageTypeRunStarted   MessageType = "run.started"
	MessageTypeNodeStatus   MessageType = "node.status"
	MessageTypeRunFinished  MessageType = "run.finished"
)

// Message — конверт всех сообщений Nodeflow.
type Message struct {
	ID        string          `json:"id"`
	Type      MessageType     `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewMessage упаковывает payload в конверт с новым ID.
func NewMessage(t MessageType, payload any) (*Message, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", t, err)
	}
	return &Message{
		ID:        uuid.New().String(),
		Type:      t,
		Payload:   body,
		Timestamp: time.Now().UTC(),
	}, nil
}

// ParsePayload разбирает payload сообщения.
func ParsePayload[T any](msg *Message) (T, error) {
	var v T
	if err := json.Unmarshal(msg.Payload, &v); err != nil {
		return v, fmt.Errorf("unmarshal %s payload: %w", msg.Type, err)
	}
	return v, nil
}

// RunRequestedPayload — запрос на выполнение сохранённого графа.
type RunRequestedPayload struct {
	RunID   uuid.UUID `json:"run_id"`
	GraphID uuid.UUID `json:"graph_id"`
}

// RunStartedPayload — run начал выполняться.
type RunStartedPayload struct {
	RunID   string `json:"run_id"`
	GraphID string `json:"graph_id"`
}

// NodeStatusPayload — смена статуса узла.
type NodeStatusPayload struct {
	RunID      string `json:"run_id"`
	GraphID    string `json:"graph_id"`
	NodeID     string `json:"node_id"`
	NodeType   string `json:"node_type"`
	Status     string `json:"status"`
	Error      string `json:"error,omitempty"`
	DurationMs int64  `json:"duration_ms,omitempty"`
}

// RunFinishedPayload — итог run.
type RunFinishedPayload struct {
	RunID     string         `json:"run_id"`
	GraphID   string         `json:"graph_id"`
	Status    string         `json:"status"`
	Cancelled bool           `json:"cancelled,omitempty"`
	Summary   report.Summary `json:"summary"`
}

// Sender отправляет сообщение в обменник.
type Sender interface {
	Send(ctx context.Context, exchange Exchange, key RoutingKey, msg *Message) error
}

// Publisher публикует сообщения через Connection.
type Publisher struct {
	conn   *Connection
	logger *slog.Logger
}

// NewPublisher создаёт Publisher.
func NewPublisher(conn *Connection, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{conn: conn, logger: logger}
}

// Send реализует Sender. Сообщения persistent.
func (p *Publisher) Send(ctx context.Context, exchange Exchange, key RoutingKey, msg *Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	err = p.conn.WithChannel(func(ch *amqp.Channel) error {
		return ch.PublishWithContext(ctx, string(exchange), string(key), false, false, amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    msg.ID,
			Type:         string(msg.Type),
			Timestamp:    msg.Timestamp,
			Body:         body,
		})
	})
	if err != nil {
		return fmt.Errorf("publish to %s/%s: %w", exchange, key, err)
	}

	p.logger.Debug("published message",
		"exchange", exchange,
		"routing_key", key,
		"message_id", msg.ID,
		"type", msg.Type,
	)
	return nil
}

// RequestRun ставит run в очередь runner'а.
func RequestRun(ctx context.Context, s Sender, runID, graphID uuid.UUID) error {
	msg, err := NewMessage(MessageTypeRunRequested, RunRequestedPayload{RunID: runID, GraphID: graphID})
	if err != nil {
		return err
	}
	return s.Send(ctx, ExchangeRuns, RoutingKeyRunRequested, msg)
}
