package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"time"

	"github.com/shaiso/Nodeflow/internal/domain"
	"github.com/shaiso/Nodeflow/internal/expr"
	"github.com/shaiso/Nodeflow/internal/graph"
	"github.com/shaiso/Nodeflow/internal/registry"
	"github.com/shaiso/Nodeflow/internal/report"
	"github.com/shaiso/Nodeflow/internal/telemetry"
)

// nodeState — состояние узла в рамках run.
type nodeState struct {
	status  domain.NodeStatus
	outputs map[string]any
	errMsg  string
}

// Execution — один run графа.
//
// Step выполняет ровно один узел (или помечает его skipped) и возвращает
// управление вызывающему. Execution не потокобезопасен: Step вызывается
// из одной горутины.
type Execution struct {
	engine   *Engine
	snap     *graph.Snapshot
	plan     *plan
	opts     RunOptions
	runID    string
	observer Observer
	logger   *slog.Logger

	next   int
	states map[string]*nodeState

	// fired — активирующие связи, по которым прошёл сигнал.
	fired map[string]bool

	scope    *expr.Context
	builder  *report.Builder
	report   *report.Report
	finished bool

	release func()
}

func newExecution(e *Engine, snap *graph.Snapshot, p *plan, opts RunOptions, obs Observer, logger *slog.Logger) *Execution {
	refs := make([]report.NodeRef, 0, len(snap.Nodes))
	states := make(map[string]*nodeState, len(snap.Nodes))
	for _, n := range snap.Nodes {
		refs = append(refs, report.NodeRef{ID: n.ID, Type: n.Type})
		states[n.ID] = &nodeState{status: domain.NodeStatusPending}
	}

	scope := expr.NewContext(maps.Clone(opts.Inputs))
	for k, v := range e.env {
		scope.SetEnv(k, v)
	}
	for k, v := range opts.Env {
		scope.SetEnv(k, v)
	}

	return &Execution{
		engine:   e,
		snap:     snap,
		plan:     p,
		opts:     opts,
		runID:    opts.RunID,
		observer: obs,
		logger:   logger,
		states:   states,
		fired:    make(map[string]bool),
		scope:    scope,
		builder:  report.NewBuilder(opts.RunID, snap.GraphID, refs),
	}
}

// RunID возвращает идентификатор run.
func (x *Execution) RunID() string {
	return x.runID
}

// Status возвращает текущий статус узла.
func (x *Execution) Status(nodeID string) domain.NodeStatus {
	if st, ok := x.states[nodeID]; ok {
		return st.status
	}
	return ""
}

// Done возвращает true после завершения run.
func (x *Execution) Done() bool {
	return x.finished
}

// Report возвращает итоговый отчёт (nil до завершения run и после фатальной ошибки).
func (x *Execution) Report() *report.Report {
	return x.report
}

// Step обрабатывает следующий узел плана.
//
// Возвращает done=true, когда run завершён: все узлы обработаны или
// ctx отменён. Ошибка означает фатальный сбой — run прерван без отчёта.
func (x *Execution) Step(ctx context.Context) (bool, error) {
	if x.finished {
		return true, nil
	}

	if err := ctx.Err(); err != nil {
		x.cancel(context.WithoutCancel(ctx), err)
		return true, nil
	}

	if x.next < len(x.plan.order) {
		node := x.plan.order[x.next]
		x.next++

		if err := x.visit(ctx, node); err != nil {
			x.abort(context.WithoutCancel(ctx), err)
			return true, err
		}
	}

	if x.next >= len(x.plan.order) {
		x.finish(ctx, false)
		return true, nil
	}
	return false, nil
}

// visit решает судьбу узла: пропустить или выполнить.
func (x *Execution) visit(ctx context.Context, node *graph.Node) error {
	if active, reason := x.activation(node); !active {
		return x.skip(ctx, node, reason)
	}

	if err := x.transition(ctx, node, domain.NodeStatusReady, "", 0); err != nil {
		return err
	}
	return x.execute(ctx, node)
}

// activation проверяет, должен ли узел выполняться.
//
// Start выполняется всегда. Остальные узлы выполняются, если сработала
// хотя бы одна активирующая связь (control или из error-порта), и все
// data-связи из обычных портов ведут от выполненных узлов.
func (x *Execution) activation(node *graph.Node) (bool, string) {
	if node == x.plan.start {
		return true, ""
	}

	activating, fired := 0, false
	for _, l := range x.snap.InLinks(node.ID) {
		if l.Activating() {
			activating++
			if x.fired[l.ID] {
				fired = true
			}
			continue
		}

		if src := x.states[l.From]; src.status != domain.NodeStatusDone {
			return false, fmt.Sprintf("input %q depends on %s node %s", l.ToPort, src.status, l.From)
		}
	}

	switch {
	case activating == 0:
		return false, "not reachable from start"
	case !fired:
		return false, "no incoming control link fired"
	}
	return true, ""
}

// execute готовит входы, вызывает executor и фиксирует результат.
func (x *Execution) execute(ctx context.Context, node *graph.Node) error {
	if err := x.transition(ctx, node, domain.NodeStatusRunning, "", 0); err != nil {
		return err
	}

	spec := node.Spec()
	logger := telemetry.WithNodeID(x.logger, node.ID, node.Type)

	req, timeout, err := x.request(node, logger)
	if err != nil {
		return x.fail(ctx, node, err, 0)
	}

	nodeCtx := telemetry.WithLogger(ctx, logger)
	if timeout > 0 {
		var cancel context.CancelFunc
		nodeCtx, cancel = context.WithTimeout(nodeCtx, timeout)
		defer cancel()
	}

	started := time.Now()
	res, err := invoke(nodeCtx, spec.Executor, req)
	elapsed := time.Since(started)

	if err != nil {
		if timeout > 0 && errors.Is(nodeCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			err = fmt.Errorf("%w after %s: %v", ErrNodeTimeout, timeout, err)
		}
		return x.fail(ctx, node, err, elapsed)
	}
	if res == nil {
		res = registry.NewResult(nil)
	}

	if err := checkBranch(node, res.Branch); err != nil {
		return err
	}

	outputs, err := collectOutputs(node, res.Outputs)
	if err != nil {
		return x.fail(ctx, node, err, elapsed)
	}

	return x.complete(ctx, node, outputs, res.Branch, elapsed)
}

// request собирает Request узла: входы по связям, отрендеренные
// свойства, fallback входов на свойства, таймаут.
func (x *Execution) request(node *graph.Node, logger *slog.Logger) (*registry.Request, time.Duration, error) {
	linked, err := x.linkedValues(node)
	if err != nil {
		return nil, 0, err
	}

	props, err := renderProperties(node, x.scope.WithIn(linked))
	if err != nil {
		return nil, 0, err
	}

	inputs, err := resolveInputs(node, linked, props)
	if err != nil {
		return nil, 0, err
	}

	timeout := x.opts.NodeTimeout
	if v, ok := props["timeout_sec"]; ok {
		if sec := expr.ToNumber(v); sec > 0 {
			timeout = time.Duration(sec * float64(time.Second))
		}
	}

	req := &registry.Request{
		NodeID:     node.ID,
		Type:       node.Type,
		Properties: props,
		Inputs:     inputs,
		RunInputs:  maps.Clone(x.opts.Inputs),
		Scope:      x.scope.WithIn(inputs),
		Effects:    x.engine.effects,
		Logger:     logger,
	}
	return req, timeout, nil
}

// invoke вызывает executor, превращая panic в ошибку узла.
func invoke(ctx context.Context, ex registry.Executor, req *registry.Request) (res *registry.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			res, err = nil, fmt.Errorf("%w: %v", ErrExecutorPanic, r)
		}
	}()
	return ex.Execute(ctx, req)
}

// checkBranch проверяет выбор ветки: branching тип обязан выбрать
// один из своих control-выходов, остальные типы ветку не выбирают.
func checkBranch(node *graph.Node, branch string) error {
	if !node.Spec().Branching {
		if branch != "" {
			return fmt.Errorf("%w: node %s (%s) is not branching but selected %q",
				ErrInvariant, node.ID, node.Type, branch)
		}
		return nil
	}

	p, ok := node.Output(branch)
	if !ok || !p.Type.IsControl() || p.Error {
		return fmt.Errorf("%w: node %s selected branch %q which is not a control output",
			ErrInvariant, node.ID, branch)
	}
	return nil
}

// complete фиксирует успешное выполнение и активирует control-выходы.
func (x *Execution) complete(ctx context.Context, node *graph.Node, outputs map[string]any, branch string, d time.Duration) error {
	st := x.states[node.ID]
	st.outputs = outputs

	// Значения Start становятся входными параметрами run
	if node == x.plan.start {
		for k, v := range outputs {
			x.scope.Inputs[k] = v
		}
	}

	for _, l := range x.snap.OutLinks(node.ID) {
		if l.Type.IsControl() && !l.FromError {
			x.fired[l.ID] = branch == "" || l.FromPort == branch
		}
	}

	x.scope.AddNodeResult(node.ID, outputs, string(domain.NodeStatusDone), "")
	x.builder.Done(node.ID, outputs, branch, d)
	return x.transition(ctx, node, domain.NodeStatusDone, "", d)
}

// fail фиксирует ошибку узла. Сообщение попадает в error-порт,
// связи из него активируются; control-выходы не срабатывают.
func (x *Execution) fail(ctx context.Context, node *graph.Node, cause error, d time.Duration) error {
	msg := cause.Error()
	st := x.states[node.ID]
	st.errMsg = msg
	st.outputs = make(map[string]any)

	if port := node.ErrorPort(); port != "" {
		st.outputs[port] = msg
	}

	for _, l := range x.snap.OutLinks(node.ID) {
		if l.FromError {
			x.fired[l.ID] = true
		}
	}

	x.scope.AddNodeResult(node.ID, st.outputs, string(domain.NodeStatusFailed), msg)
	x.builder.Fail(node.ID, msg, st.outputs, d)
	return x.transition(ctx, node, domain.NodeStatusFailed, msg, d)
}

// skip помечает узел пропущенным; его выходы не срабатывают.
func (x *Execution) skip(ctx context.Context, node *graph.Node, reason string) error {
	x.scope.AddNodeResult(node.ID, nil, string(domain.NodeStatusSkipped), "")
	x.builder.Skip(node.ID, reason)
	return x.transition(ctx, node, domain.NodeStatusSkipped, reason, 0)
}

// transition меняет статус узла и уведомляет observer.
func (x *Execution) transition(ctx context.Context, node *graph.Node, to domain.NodeStatus, msg string, d time.Duration) error {
	st := x.states[node.ID]
	if !st.status.CanTransition(to) {
		return fmt.Errorf("%w: node %s: %s -> %s", ErrInvariant, node.ID, st.status, to)
	}
	st.status = to

	if to != domain.NodeStatusDone && to != domain.NodeStatusFailed {
		x.builder.SetStatus(node.ID, to)
	}

	x.observer.OnNodeStatusChanged(ctx, report.NodeEvent{
		RunID:    x.runID,
		GraphID:  x.snap.GraphID,
		NodeID:   node.ID,
		NodeType: node.Type,
		Status:   to,
		Error:    msg,
		Duration: d,
		Time:     time.Now(),
	})
	return nil
}

// cancel пропускает все необработанные узлы и завершает run.
func (x *Execution) cancel(ctx context.Context, cause error) {
	x.logger.Info("run cancelled", "error", cause, "remaining", len(x.plan.order)-x.next)

	for ; x.next < len(x.plan.order); x.next++ {
		// skip из pending не может нарушить инвариант
		_ = x.skip(ctx, x.plan.order[x.next], "run cancelled")
	}
	x.finish(ctx, true)
}

// abort завершает run после фатальной ошибки.
func (x *Execution) abort(ctx context.Context, cause error) {
	x.logger.Error("run aborted", "error", cause)
	x.next = len(x.plan.order)
	x.finished = true
	x.unlock()

	// Observer получает частичный отчёт, вызывающий — только ошибку
	x.observer.OnRunFinished(ctx, x.builder.Build(domain.RunStatusFailed, false))
}

func (x *Execution) finish(ctx context.Context, cancelled bool) {
	status := domain.RunStatusSucceeded
	switch {
	case cancelled:
		status = domain.RunStatusCancelled
	case x.failedCount() > 0:
		status = domain.RunStatusFailed
	}

	x.report = x.builder.Build(status, cancelled)
	x.finished = true
	x.unlock()
	x.observer.OnRunFinished(ctx, x.report)
}

func (x *Execution) failedCount() int {
	n := 0
	for _, st := range x.states {
		if st.status == domain.NodeStatusFailed {
			n++
		}
	}
	return n
}

func (x *Execution) unlock() {
	if x.release != nil {
		x.release()
		x.release = nil
	}
}
