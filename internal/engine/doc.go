// Package engine выполняет граф workflow.
//
// Включает:
//   - plan.go      — топологический порядок (алгоритм Кана) со стабильным tie-break
//   - execution.go — пошаговое выполнение: один узел за вызов Step
//   - inputs.go    — разрешение входов: связь > свойство, приведение типов
//   - observer.go  — уведомления о статусах узлов и завершении run
//
// Ошибки узлов не прерывают run: они записываются в отчёт и передаются
// только по связям из error-порта. Run прерывают лишь фатальные ошибки
// (ErrGraphLocked, ErrInvalidGraph, ErrInvariant).
package engine
