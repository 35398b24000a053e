// Package graph содержит модель графа workflow.
//
// Граф хранит экземпляры узлов и типизированные связи между портами.
// Все правки атомарны: операция либо применяется целиком, либо
// возвращает ошибку и оставляет граф без изменений.
//
// Во время run граф заблокирован: BeginRun возвращает снимок для движка,
// любые изменения до EndRun завершаются ErrGraphLocked.
package graph
