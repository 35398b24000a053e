package domain

// NodeStatus — состояние экземпляра узла в рамках одного run.
//
// Жизненный цикл:
//
//	PENDING → READY → RUNNING → DONE
//	                          ↘ FAILED
//	(или) PENDING → SKIPPED (узел недостижим или upstream упал без error-ветки)
type NodeStatus string

const (
	// NodeStatusPending — узел ещё не рассматривался планировщиком.
	NodeStatusPending NodeStatus = "pending"

	// NodeStatusReady — все входы узла разрешены, узел будет выполнен.
	NodeStatusReady NodeStatus = "ready"

	// NodeStatusRunning — executor узла выполняется.
	NodeStatusRunning NodeStatus = "running"

	// NodeStatusDone — узел успешно выполнен.
	NodeStatusDone NodeStatus = "done"

	// NodeStatusFailed — executor вернул ошибку.
	NodeStatusFailed NodeStatus = "failed"

	// NodeStatusSkipped — узел не выполнялся.
	NodeStatusSkipped NodeStatus = "skipped"
)

// IsTerminal возвращает true, если статус финальный.
func (s NodeStatus) IsTerminal() bool {
	switch s {
	case NodeStatusDone, NodeStatusFailed, NodeStatusSkipped:
		return true
	default:
		return false
	}
}

// CanTransition проверяет, допустим ли переход s → next.
func (s NodeStatus) CanTransition(next NodeStatus) bool {
	switch s {
	case NodeStatusPending:
		return next == NodeStatusReady || next == NodeStatusSkipped
	case NodeStatusReady:
		return next == NodeStatusRunning || next == NodeStatusSkipped
	case NodeStatusRunning:
		return next == NodeStatusDone || next == NodeStatusFailed
	default:
		return false
	}
}

// RunStatus — статус выполнения run.
//
// Жизненный цикл:
//
//	PENDING → RUNNING → SUCCEEDED
//	                  ↘ FAILED
//	          (или) → CANCELLED (из PENDING или RUNNING)
type RunStatus string

const (
	// RunStatusPending — run создан, но ещё не начал выполняться.
	RunStatusPending RunStatus = "PENDING"

	// RunStatusRunning — run в процессе выполнения.
	RunStatusRunning RunStatus = "RUNNING"

	// RunStatusSucceeded — run завершён, ни один узел не упал.
	RunStatusSucceeded RunStatus = "SUCCEEDED"

	// RunStatusFailed — run завершён с упавшими узлами или фатальной ошибкой.
	RunStatusFailed RunStatus = "FAILED"

	// RunStatusCancelled — run отменён.
	RunStatusCancelled RunStatus = "CANCELLED"
)

// IsTerminal возвращает true, если статус финальный (run завершён).
func (s RunStatus) IsTerminal() bool {
	switch s {
	case RunStatusSucceeded, RunStatusFailed, RunStatusCancelled:
		return true
	default:
		return false
	}
}

// ParseRunStatus парсит строку в RunStatus.
func ParseRunStatus(s string) RunStatus {
	switch s {
	case "RUNNING":
		return RunStatusRunning
	case "SUCCEEDED":
		return RunStatusSucceeded
	case "FAILED":
		return RunStatusFailed
	case "CANCELLED":
		return RunStatusCancelled
	default:
		return RunStatusPending
	}
}
