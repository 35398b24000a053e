// Package repo хранит графы, runs и расписания в PostgreSQL (pgx).
//
// Граф сохраняется документом (graph.Document в jsonb), отчёт run — JSON
// report.Report. Схема создаётся EnsureSchema.
package repo
