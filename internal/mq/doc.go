// Package mq — RabbitMQ транспорт Nodeflow.
//
//   - connection.go — соединение с переподключением
//   - topology.go   — обменники, очереди, привязки
//   - publisher.go  — конверт Message, payload'ы, Publisher
//   - consumer.go   — Consumer с ручным ack и DLQ
//   - observer.go   — EventObserver: события run в nodeflow.events
//
// Топология:
//
//	nodeflow.runs (direct)
//	  run.requested -> runs.requested   (runner, DLQ: dlq.runs)
//	nodeflow.events (topic)
//	  run.*, node.* -> events.status    (UI и внешние подписчики)
package mq
