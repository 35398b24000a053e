// Package nodes содержит встроенные типы узлов.
//
// Типы:
//   - core/Start, core/End     — вход и выход workflow
//   - core/Condition           — выбор одной ветки по выражениям
//   - core/Log, core/Format    — вывод и форматирование строк
//   - core/Delay               — пауза
//   - file/ReadFile, file/WriteFile, file/AppendFile, file/DeleteFile
//   - net/HttpRequest
//
// I/O узлы работают только через effects.Effects из Request.
package nodes
