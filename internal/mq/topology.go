package mq

import (
	"fmt"
	"strings"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Exchange — имя обменника.
type Exchange string

// Queue — имя очереди.
type Queue string

// RoutingKey — ключ маршрутизации.
type RoutingKey string

const (
	// ExchangeRuns — запросы на выполнение (direct).
	ExchangeRuns Exchange = "nodeflow.runs"

	// ExchangeEvents — события выполнения (topic).
	ExchangeEvents Exchange = "nodeflow.events"

	// ExchangeDLQ — отклонённые запросы.
	ExchangeDLQ Exchange = "nodeflow.dlq"
)

const (
	QueueRunsRequested Queue = "runs.requested"
	QueueEventsStatus  Queue = "events.status"
	QueueDLQRuns       Queue = "dlq.runs"
)

const (
	RoutingKeyRunRequested RoutingKey = "run.requested"
	RoutingKeyRunStarted   RoutingKey = "run.started"
	RoutingKeyNodeStatus   RoutingKey = "node.status"
	RoutingKeyRunFinished  RoutingKey = "run.finished"
	RoutingKeyDLQRuns      RoutingKey = "runs"
)

type exchangeDecl struct {
	name Exchange
	kind string
}

type queueDecl struct {
	name Queue
	args amqp.Table
}

type bindingDecl struct {
	queue    Queue
	key      string
	exchange Exchange
}

// Topology — полный набор обменников, очередей и привязок.
type Topology struct {
	exchanges []exchangeDecl
	queues    []queueDecl
	bindings  []bindingDecl
}

// DefaultTopology — топология Nodeflow.
//
// Запросы run, которые runner не смог разобрать, уходят в dlq.runs.
// events.status получает все события run и узлов.
func DefaultTopology() Topology {
	return Topology{
		exchanges: []exchangeDecl{
			{ExchangeRuns, amqp.ExchangeDirect},
			{ExchangeEvents, amqp.ExchangeTopic},
			{ExchangeDLQ, amqp.ExchangeDirect},
		},
		queues: []queueDecl{
			{QueueRunsRequested, amqp.Table{
				"x-dead-letter-exchange":    string(ExchangeDLQ),
				"x-dead-letter-routing-key": string(RoutingKeyDLQRuns),
			}},
			{QueueEventsStatus, nil},
			{QueueDLQRuns, nil},
		},
		bindings: []bindingDecl{
			{QueueRunsRequested, string(RoutingKeyRunRequested), ExchangeRuns},
			{QueueEventsStatus, "run.*", ExchangeEvents},
			{QueueEventsStatus, "node.*", ExchangeEvents},
			{QueueDLQRuns, string(RoutingKeyDLQRuns), ExchangeDLQ},
		},
	}
}

// Declare объявляет топологию на канале. Операции идемпотентны.
func (t Topology) Declare(ch *amqp.Channel) error {
	for _, ex := range t.exchanges {
		if err := ch.ExchangeDeclare(string(ex.name), ex.kind, true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare exchange %s: %w", ex.name, err)
		}
	}
	for _, q := range t.queues {
		if _, err := ch.QueueDeclare(string(q.name), true, false, false, false, q.args); err != nil {
			return fmt.Errorf("declare queue %s: %w", q.name, err)
		}
	}
	for _, b := range t.bindings {
		if err := ch.QueueBind(string(b.queue), b.key, string(b.exchange), false, nil); err != nil {
			return fmt.Errorf("bind queue %s to %s (%s): %w", b.queue, b.exchange, b.key, err)
		}
	}
	return nil
}

// Setup объявляет топологию по умолчанию.
func Setup(conn *Connection) error {
	return conn.WithChannel(DefaultTopology().Declare)
}

// String описывает топологию для стартового лога.
func (t Topology) String() string {
	var b strings.Builder
	for _, ex := range t.exchanges {
		fmt.Fprintf(&b, "%s (%s)\n", ex.name, ex.kind)
		for _, bd := range t.bindings {
			if bd.exchange == ex.name {
				fmt.Fprintf(&b, "  %s -> %s\n", bd.key, bd.queue)
			}
		}
	}
	return b.String()
}
