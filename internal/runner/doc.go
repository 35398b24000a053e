// Package runner выполняет сохранённые графы вне HTTP-запроса.
//
// Runner получает run.requested из RabbitMQ (и опрашивает PENDING runs
// на случай потерянных сообщений), загружает документ графа, выполняет
// его движком и сохраняет отчёт в runs.report. События узлов публикуются
// observer'ами движка (mq.EventObserver, telemetry.MetricsObserver).
package runner
