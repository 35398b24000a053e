// Package api содержит HTTP API для UI-редактора графов.
//
// Структура:
//   - handler.go       — Handler с зависимостями и кэш открытых графов
//   - routes.go        — регистрация маршрутов, /healthz, /metrics
//   - middleware.go    — middleware (request id, recovery, logging)
//   - response.go      — унифицированные JSON-ответы и отображение ошибок
//   - dto.go           — Data Transfer Objects (request/response)
//   - graph_handler.go — /graphs: CRUD, правка узлов и связей, validate
//   - run_handler.go   — запуск графов, /runs, /node-types
//
// Каждая правка сразу сохраняет документ графа и синхронизирует
// расписание Start-узла.
package api
