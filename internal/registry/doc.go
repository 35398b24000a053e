// Package registry содержит реестр типов узлов графа.
//
// # Обзор
//
// NodeType описывает тип узла: типизированные входные и выходные порты,
// свойства, классификацию побочных эффектов и executor.
//
//	reg := registry.New()
//	err := reg.Register(registry.NodeType{
//	    Name:    "file/ReadFile",
//	    Class:   domain.ClassIO,
//	    Inputs:  []registry.PortSpec{{Name: "in", Type: domain.TypeControl}},
//	    Outputs: []registry.PortSpec{{Name: "next", Type: domain.TypeControl}},
//	    Executor: readFileExecutor,
//	})
//
// Реестр создаётся один раз при старте процесса, регистрация — только
// добавление (unregister нет), после старта реестр используется на чтение.
//
// # Executor
//
//	type Executor interface {
//	    Execute(ctx context.Context, req *Request) (*Result, error)
//	}
//
// Request содержит свойства узла, разрешённые значения входных портов и
// effects.Effects. Executor I/O-узла обязан работать только через Effects.
//
// Result.Outputs — значения выходных портов. Result.Branch — имя control-выхода,
// выбранного ветвящимся узлом (core/Condition); пустой Branch означает,
// что срабатывают все control-выходы.
package registry
