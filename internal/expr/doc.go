// Package expr — шаблоны свойств узлов и условия Condition.
//
// Свойства и выражения записываются Go templates:
//
//	{{ .Inputs.name }}                   — входные параметры run
//	{{ .Nodes.<id>.Outputs.<port> }}     — выходы выполненных узлов
//	{{ .In.value }}                      — разрешённые входы текущего узла
//	{{ .Env.HOME }}                      — переменные окружения run
package expr
