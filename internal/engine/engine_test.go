package engine

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/shaiso/Nodeflow/internal/domain"
	"github.com/shaiso/Nodeflow/internal/effects"
	"github.com/shaiso/Nodeflow/internal/graph"
	"github.com/shaiso/Nodeflow/internal/nodes"
	"github.com/shaiso/Nodeflow/internal/registry"
	"github.com/shaiso/Nodeflow/internal/report"
)

// counter считает вызовы executor'ов по ID узла.
type counter struct {
	mu    sync.Mutex
	calls map[string]int
}

func (c *counter) inc(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls[id]++
}

func (c *counter) get(id string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[id]
}

// testRegistry — встроенные типы плюс вспомогательные типы тестов.
func testRegistry(t *testing.T, c *counter) *registry.Registry {
	t.Helper()
	reg := nodes.DefaultRegistry()
	control := domain.TypeControl

	types := []registry.NodeType{
		{
			Name:    "test/Count",
			Inputs:  []registry.PortSpec{{Name: "in", Type: control}},
			Outputs: []registry.PortSpec{{Name: "next", Type: control}},
			Executor: registry.ExecutorFunc(func(ctx context.Context, req *registry.Request) (*registry.Result, error) {
				c.inc(req.NodeID)
				return registry.NewResult(nil), nil
			}),
		},
		{
			Name:    "test/Silent",
			Inputs:  []registry.PortSpec{{Name: "in", Type: control}},
			Outputs: []registry.PortSpec{{Name: "next", Type: control}, {Name: "value", Type: domain.TypeString}},
			Executor: registry.ExecutorFunc(func(ctx context.Context, req *registry.Request) (*registry.Result, error) {
				return registry.NewResult(nil), nil
			}),
		},
		{
			Name:    "test/Panic",
			Inputs:  []registry.PortSpec{{Name: "in", Type: control}},
			Outputs: []registry.PortSpec{{Name: "next", Type: control}, {Name: "error", Type: domain.TypeString, Error: true}},
			Executor: registry.ExecutorFunc(func(ctx context.Context, req *registry.Request) (*registry.Result, error) {
				panic("boom")
			}),
		},
		{
			Name:      "test/BadBranch",
			Inputs:    []registry.PortSpec{{Name: "in", Type: control}},
			Outputs:   []registry.PortSpec{{Name: "a", Type: control}},
			Branching: true,
			Executor: registry.ExecutorFunc(func(ctx context.Context, req *registry.Request) (*registry.Result, error) {
				return registry.BranchResult("missing", nil), nil
			}),
		},
	}
	for _, typ := range types {
		if err := reg.Register(typ); err != nil {
			t.Fatalf("register %s: %v", typ.Name, err)
		}
	}
	return reg
}

func newCounter() *counter {
	return &counter{calls: make(map[string]int)}
}

func add(t *testing.T, g *graph.Graph, id, typ string, props map[string]any) {
	t.Helper()
	if _, err := g.AddNodeWithID(id, typ, props); err != nil {
		t.Fatalf("add %s: %v", id, err)
	}
}

func link(t *testing.T, g *graph.Graph, src, srcPort, dst, dstPort string) {
	t.Helper()
	if _, err := g.AddLink(src, srcPort, dst, dstPort); err != nil {
		t.Fatalf("link %s.%s -> %s.%s: %v", src, srcPort, dst, dstPort, err)
	}
}

func expectStatus(t *testing.T, r *report.Report, want map[string]domain.NodeStatus) {
	t.Helper()
	for id, status := range want {
		res, ok := r.ForNode(id)
		if !ok {
			t.Errorf("node %s missing from report", id)
			continue
		}
		if res.Status != status {
			t.Errorf("node %s: expected %s, got %s (error=%q reason=%q)", id, status, res.Status, res.Error, res.Reason)
		}
	}
}

// copyGraph: Start -> ReadFile(/a.txt) -> WriteFile(/b.txt, content) -> Log(status) -> End
func copyGraph(t *testing.T, reg *registry.Registry) *graph.Graph {
	t.Helper()
	g := graph.New(reg)
	add(t, g, "start", "core/Start", nil)
	add(t, g, "read", "file/ReadFile", map[string]any{"path": "/a.txt"})
	add(t, g, "write", "file/WriteFile", map[string]any{"path": "/b.txt"})
	add(t, g, "log", "core/Log", nil)
	add(t, g, "end", "core/End", nil)

	link(t, g, "start", "next", "read", "in")
	link(t, g, "read", "next", "write", "in")
	link(t, g, "read", "content", "write", "content")
	link(t, g, "write", "next", "log", "in")
	link(t, g, "write", "status", "log", "message")
	link(t, g, "log", "next", "end", "in")
	return g
}

func TestRun_EndToEnd(t *testing.T) {
	reg := testRegistry(t, newCounter())
	g := copyGraph(t, reg)
	fs := effects.NewMemFS(map[string]string{"/a.txt": "hello"})
	eng := New(Config{Effects: &effects.Effects{FS: fs}})

	r, err := eng.Run(context.Background(), g, RunOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expectStatus(t, r, map[string]domain.NodeStatus{
		"start": domain.NodeStatusDone,
		"read":  domain.NodeStatusDone,
		"write": domain.NodeStatusDone,
		"log":   domain.NodeStatusDone,
		"end":   domain.NodeStatusDone,
	})

	read, _ := r.ForNode("read")
	if read.Outputs["content"] != "hello" {
		t.Errorf("expected content hello, got %v", read.Outputs["content"])
	}
	write, _ := r.ForNode("write")
	if write.Outputs["status"] != "ok" {
		t.Errorf("expected status ok, got %v", write.Outputs["status"])
	}
	if got, _ := fs.Get("/b.txt"); got != "hello" {
		t.Errorf("expected /b.txt=hello, got %q", got)
	}
	log, _ := r.ForNode("log")
	if log.Outputs["message"] != "ok" {
		t.Errorf("expected log message ok, got %v", log.Outputs["message"])
	}

	if r.Status != domain.RunStatusSucceeded {
		t.Errorf("expected SUCCEEDED, got %s", r.Status)
	}
	if s := r.Summary(); s != (report.Summary{TotalNodes: 5, Done: 5}) {
		t.Errorf("unexpected summary %+v", s)
	}

	expectedOrder := []string{"start", "read", "write", "log", "end"}
	if diff := cmp.Diff(expectedOrder, r.Order); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}

	if g.Running() {
		t.Error("graph must be unlocked after run")
	}
}

func TestRun_ErrorPathRouting(t *testing.T) {
	reg := testRegistry(t, newCounter())
	g := graph.New(reg)
	add(t, g, "start", "core/Start", nil)
	add(t, g, "read", "file/ReadFile", map[string]any{"path": "/missing"})
	add(t, g, "handler", "core/Log", nil)
	add(t, g, "after", "core/Log", map[string]any{"message": "read ok"})
	add(t, g, "end_err", "core/End", nil)
	add(t, g, "end_ok", "core/End", nil)

	link(t, g, "start", "next", "read", "in")
	link(t, g, "read", "error", "handler", "message")
	link(t, g, "handler", "next", "end_err", "in")
	link(t, g, "read", "next", "after", "in")
	link(t, g, "after", "next", "end_ok", "in")

	eng := New(Config{Effects: &effects.Effects{FS: effects.NewMemFS(nil)}})
	r, err := eng.Run(context.Background(), g, RunOptions{})
	if err != nil {
		t.Fatalf("failed node must not fail the run: %v", err)
	}

	expectStatus(t, r, map[string]domain.NodeStatus{
		"read":    domain.NodeStatusFailed,
		"handler": domain.NodeStatusDone,
		"end_err": domain.NodeStatusDone,
		"after":   domain.NodeStatusSkipped,
		"end_ok":  domain.NodeStatusSkipped,
	})

	read, _ := r.ForNode("read")
	if !strings.Contains(read.Error, "file not found") {
		t.Errorf("expected not found error, got %q", read.Error)
	}
	if read.Outputs["error"] != read.Error {
		t.Errorf("error output should carry the message, got %v", read.Outputs)
	}

	handler, _ := r.ForNode("handler")
	if handler.Outputs["message"] != read.Error {
		t.Errorf("handler should receive the error, got %v", handler.Outputs["message"])
	}
	if r.Status != domain.RunStatusFailed {
		t.Errorf("expected FAILED run status, got %s", r.Status)
	}
}

func TestRun_DataFromFailedNodeSkips(t *testing.T) {
	reg := testRegistry(t, newCounter())
	g := graph.New(reg)
	add(t, g, "start", "core/Start", nil)
	add(t, g, "read", "file/ReadFile", map[string]any{"path": "/missing"})
	add(t, g, "log", "core/Log", nil)
	add(t, g, "end", "core/End", nil)

	link(t, g, "start", "next", "read", "in")
	link(t, g, "start", "next", "log", "in")
	link(t, g, "read", "content", "log", "message")
	link(t, g, "log", "next", "end", "in")

	eng := New(Config{Effects: &effects.Effects{FS: effects.NewMemFS(nil)}})
	r, err := eng.Run(context.Background(), g, RunOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expectStatus(t, r, map[string]domain.NodeStatus{
		"read": domain.NodeStatusFailed,
		"log":  domain.NodeStatusSkipped,
		"end":  domain.NodeStatusSkipped,
	})
}

func conditionGraph(t *testing.T, reg *registry.Registry) *graph.Graph {
	t.Helper()
	g := graph.New(reg)
	add(t, g, "start", "core/Start", map[string]any{"inputs": map[string]any{"choice": "1"}})
	add(t, g, "cond", "core/Condition", map[string]any{
		"conditions": []any{`eq .In.value "1"`, `eq .In.value "2"`},
	})
	add(t, g, "one", "test/Count", nil)
	add(t, g, "one_end", "core/End", nil)
	add(t, g, "two", "test/Count", nil)
	add(t, g, "two_end", "core/End", nil)

	link(t, g, "start", "next", "cond", "in")
	link(t, g, "start", "choice", "cond", "value")
	link(t, g, "cond", "condition 1", "one", "in")
	link(t, g, "one", "next", "one_end", "in")
	link(t, g, "cond", "condition 2", "two", "in")
	link(t, g, "two", "next", "two_end", "in")
	return g
}

func TestRun_ConditionBranching(t *testing.T) {
	c := newCounter()
	reg := testRegistry(t, c)
	g := conditionGraph(t, reg)

	r, err := New(Config{}).Run(context.Background(), g, RunOptions{
		Inputs: map[string]any{"choice": "2"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expectStatus(t, r, map[string]domain.NodeStatus{
		"cond":    domain.NodeStatusDone,
		"one":     domain.NodeStatusSkipped,
		"one_end": domain.NodeStatusSkipped,
		"two":     domain.NodeStatusDone,
		"two_end": domain.NodeStatusDone,
	})
	if c.get("one") != 0 || c.get("two") != 1 {
		t.Errorf("unexpected executor calls: %v", c.calls)
	}

	cond, _ := r.ForNode("cond")
	if cond.Branch != "condition 2" {
		t.Errorf("expected branch condition 2, got %q", cond.Branch)
	}

	// Значение по умолчанию из Start выбирает первую ветку
	r, err = New(Config{}).Run(context.Background(), g, RunOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expectStatus(t, r, map[string]domain.NodeStatus{
		"one": domain.NodeStatusDone,
		"two": domain.NodeStatusSkipped,
	})
}

func TestRun_ConditionNoMatchRoutesError(t *testing.T) {
	reg := testRegistry(t, newCounter())
	g := conditionGraph(t, reg)
	add(t, g, "no_match", "core/Log", nil)
	add(t, g, "no_match_end", "core/End", nil)
	link(t, g, "cond", "error", "no_match", "message")
	link(t, g, "no_match", "next", "no_match_end", "in")

	r, err := New(Config{}).Run(context.Background(), g, RunOptions{
		Inputs: map[string]any{"choice": "3"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expectStatus(t, r, map[string]domain.NodeStatus{
		"cond":         domain.NodeStatusFailed,
		"one":          domain.NodeStatusSkipped,
		"two":          domain.NodeStatusSkipped,
		"no_match":     domain.NodeStatusDone,
		"no_match_end": domain.NodeStatusDone,
	})
	cond, _ := r.ForNode("cond")
	if !strings.Contains(cond.Error, "no condition matched") {
		t.Errorf("unexpected error %q", cond.Error)
	}
}

func TestRun_ReachabilityExactlyOnce(t *testing.T) {
	c := newCounter()
	reg := testRegistry(t, c)
	g := graph.New(reg)

	add(t, g, "start", "core/Start", nil)
	add(t, g, "a", "test/Count", nil)
	add(t, g, "b", "test/Count", nil)
	add(t, g, "cond", "core/Condition", map[string]any{"conditions": []any{"true", "else"}})
	add(t, g, "left", "test/Count", nil)
	add(t, g, "right", "test/Count", nil)
	add(t, g, "join", "test/Count", nil)
	add(t, g, "end", "core/End", nil)
	// Не связан со Start
	add(t, g, "island", "test/Count", nil)
	add(t, g, "island_next", "test/Count", nil)

	link(t, g, "start", "next", "a", "in")
	link(t, g, "a", "next", "b", "in")
	link(t, g, "b", "next", "cond", "in")
	link(t, g, "cond", "condition 1", "left", "in")
	link(t, g, "cond", "condition 2", "right", "in")
	link(t, g, "left", "next", "join", "in")
	link(t, g, "join", "next", "end", "in")
	link(t, g, "island", "next", "island_next", "in")

	r, err := New(Config{}).Run(context.Background(), g, RunOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, id := range []string{"a", "b", "left", "join"} {
		if c.get(id) != 1 {
			t.Errorf("node %s: expected exactly one execution, got %d", id, c.get(id))
		}
	}
	for _, id := range []string{"right", "island", "island_next"} {
		if c.get(id) != 0 {
			t.Errorf("node %s must not execute, got %d", id, c.get(id))
		}
	}
	expectStatus(t, r, map[string]domain.NodeStatus{
		"island":      domain.NodeStatusSkipped,
		"island_next": domain.NodeStatusSkipped,
		"right":       domain.NodeStatusSkipped,
		"end":         domain.NodeStatusDone,
	})
}

func TestRun_Deterministic(t *testing.T) {
	reg := testRegistry(t, newCounter())
	g := copyGraph(t, reg)
	fs := effects.NewMemFS(map[string]string{"/a.txt": "hello"})
	eng := New(Config{Effects: &effects.Effects{FS: fs}})

	run := func() *report.Report {
		r, err := eng.Run(context.Background(), g, RunOptions{RunID: "run-1"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if g.Running() {
			t.Fatal("run lock must be released after Run")
		}
		return r
	}

	first, second := run(), run()

	opts := cmp.Options{
		cmpopts.IgnoreUnexported(report.Report{}),
		cmpopts.IgnoreFields(report.Report{}, "StartedAt", "FinishedAt"),
		cmpopts.IgnoreFields(report.NodeResult{}, "Duration"),
	}
	if diff := cmp.Diff(first, second, opts); diff != "" {
		t.Errorf("reports differ (-first +second):\n%s", diff)
	}
	if first.GraphID != g.ID() {
		t.Errorf("expected graph id %s, got %s", g.ID(), first.GraphID)
	}
}

func TestRun_Templates(t *testing.T) {
	reg := testRegistry(t, newCounter())
	g := graph.New(reg)
	add(t, g, "start", "core/Start", map[string]any{"inputs": map[string]any{"dir": "/out"}})
	add(t, g, "read", "file/ReadFile", map[string]any{"path": "/a.txt"})
	add(t, g, "format", "core/Format", map[string]any{
		"template": "{{ upper .Nodes.read.Outputs.content }} {{ .In.value }}",
	})
	add(t, g, "write", "file/WriteFile", map[string]any{"path": "{{ .Inputs.dir }}/b.txt"})
	add(t, g, "end", "core/End", nil)

	link(t, g, "start", "next", "read", "in")
	link(t, g, "read", "next", "format", "in")
	link(t, g, "read", "content", "format", "value")
	link(t, g, "format", "next", "write", "in")
	link(t, g, "format", "text", "write", "content")
	link(t, g, "write", "next", "end", "in")

	fs := effects.NewMemFS(map[string]string{"/a.txt": "hello"})
	r, err := New(Config{Effects: &effects.Effects{FS: fs}}).Run(context.Background(), g, RunOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(r.Failed()) != 0 {
		t.Fatalf("unexpected failures: %v", r.Nodes)
	}
	if got, _ := fs.Get("/out/b.txt"); got != "HELLO hello" {
		t.Errorf("expected /out/b.txt='HELLO hello', got %q", got)
	}
}

func TestRun_UnresolvedInput(t *testing.T) {
	reg := testRegistry(t, newCounter())
	g := graph.New(reg)
	add(t, g, "start", "core/Start", nil)
	add(t, g, "silent", "test/Silent", nil)
	add(t, g, "log", "core/Log", nil)
	add(t, g, "end", "core/End", nil)

	link(t, g, "start", "next", "silent", "in")
	link(t, g, "silent", "next", "log", "in")
	link(t, g, "silent", "value", "log", "message")
	link(t, g, "log", "next", "end", "in")

	r, err := New(Config{}).Run(context.Background(), g, RunOptions{})
	if err != nil {
		t.Fatalf("unresolved input must be contained in the node: %v", err)
	}

	log, _ := r.ForNode("log")
	if log.Status != domain.NodeStatusFailed || !strings.Contains(log.Error, ErrUnresolvedInput.Error()) {
		t.Errorf("expected failed with unresolved input, got %+v", log)
	}
	expectStatus(t, r, map[string]domain.NodeStatus{"end": domain.NodeStatusSkipped})
}


func TestRun_PanicAndTimeout(t *testing.T) {
	reg := testRegistry(t, newCounter())
	g := graph.New(reg)
	add(t, g, "start", "core/Start", nil)
	add(t, g, "panic", "test/Panic", nil)
	add(t, g, "report_panic", "core/Log", nil)
	add(t, g, "slow", "core/Delay", map[string]any{"duration_sec": float64(5), "timeout_sec": 0.02})
	add(t, g, "end", "core/End", nil)

	link(t, g, "start", "next", "panic", "in")
	link(t, g, "panic", "error", "report_panic", "message")
	link(t, g, "report_panic", "next", "slow", "in")
	link(t, g, "slow", "next", "end", "in")

	r, err := New(Config{}).Run(context.Background(), g, RunOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expectStatus(t, r, map[string]domain.NodeStatus{
		"panic":        domain.NodeStatusFailed,
		"report_panic": domain.NodeStatusDone,
		"slow":         domain.NodeStatusFailed,
		"end":          domain.NodeStatusSkipped,
	})

	p, _ := r.ForNode("panic")
	if !strings.Contains(p.Error, ErrExecutorPanic.Error()) || !strings.Contains(p.Error, "boom") {
		t.Errorf("unexpected panic error %q", p.Error)
	}
	slow, _ := r.ForNode("slow")
	if !strings.Contains(slow.Error, ErrNodeTimeout.Error()) {
		t.Errorf("expected timeout error, got %q", slow.Error)
	}
}

func TestRun_Cancelled(t *testing.T) {
	c := newCounter()
	reg := testRegistry(t, c)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	err := reg.Register(registry.NodeType{
		Name:    "test/Cancel",
		Inputs:  []registry.PortSpec{{Name: "in", Type: domain.TypeControl}},
		Outputs: []registry.PortSpec{{Name: "next", Type: domain.TypeControl}},
		Executor: registry.ExecutorFunc(func(context.Context, *registry.Request) (*registry.Result, error) {
			cancel()
			return registry.NewResult(nil), nil
		}),
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	g := graph.New(reg)
	add(t, g, "start", "core/Start", nil)
	add(t, g, "stop", "test/Cancel", nil)
	add(t, g, "after", "test/Count", nil)
	add(t, g, "end", "core/End", nil)
	link(t, g, "start", "next", "stop", "in")
	link(t, g, "stop", "next", "after", "in")
	link(t, g, "after", "next", "end", "in")

	var finished *report.Report
	obs := ObserverFuncs{RunFinished: func(_ context.Context, r *report.Report) { finished = r }}

	r, err := New(Config{Observer: obs}).Run(ctx, g, RunOptions{})
	if err != nil {
		t.Fatalf("cancellation is not an error: %v", err)
	}

	if !r.Cancelled || r.Status != domain.RunStatusCancelled {
		t.Errorf("expected cancelled report, got cancelled=%v status=%s", r.Cancelled, r.Status)
	}
	expectStatus(t, r, map[string]domain.NodeStatus{
		"stop":  domain.NodeStatusDone,
		"after": domain.NodeStatusSkipped,
		"end":   domain.NodeStatusSkipped,
	})
	after, _ := r.ForNode("after")
	if after.Reason != "run cancelled" {
		t.Errorf("unexpected skip reason %q", after.Reason)
	}
	if c.get("after") != 0 {
		t.Error("node after cancellation must not execute")
	}
	if finished != r {
		t.Error("observer must receive the final report")
	}
	if g.Running() {
		t.Error("graph must be unlocked after cancellation")
	}
}

func TestStart_StepwiseAndLocking(t *testing.T) {
	reg := testRegistry(t, newCounter())
	g := copyGraph(t, reg)
	fs := effects.NewMemFS(map[string]string{"/a.txt": "hello"})
	eng := New(Config{Effects: &effects.Effects{FS: fs}})
	ctx := context.Background()

	x, err := eng.Start(ctx, g, RunOptions{})
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	done, err := x.Step(ctx)
	if err != nil || done {
		t.Fatalf("first step: done=%v err=%v", done, err)
	}
	if x.Status("start") != domain.NodeStatusDone {
		t.Errorf("expected start done, got %s", x.Status("start"))
	}
	if x.Status("read") != domain.NodeStatusPending {
		t.Errorf("expected read pending, got %s", x.Status("read"))
	}

	if !g.Running() {
		t.Fatal("graph must be locked while the run is in progress")
	}
	if _, err := g.AddNode("core/Log", map[string]any{"message": "x"}); !errors.Is(err, graph.ErrGraphLocked) {
		t.Errorf("expected ErrGraphLocked on edit, got %v", err)
	}
	if _, err := eng.Run(ctx, g, RunOptions{}); !errors.Is(err, ErrGraphLocked) {
		t.Errorf("expected ErrGraphLocked on second run, got %v", err)
	}
	if x.Report() != nil {
		t.Error("report must be nil before completion")
	}

	steps := 1
	for !done {
		done, err = x.Step(ctx)
		if err != nil {
			t.Fatalf("step: %v", err)
		}
		steps++
	}

	if steps != 5 {
		t.Errorf("expected one step per node, got %d", steps)
	}
	if g.Running() {
		t.Error("graph must be unlocked after completion")
	}
	if x.Report() == nil || x.Report().Status != domain.RunStatusSucceeded {
		t.Errorf("unexpected report %+v", x.Report())
	}

	// Лишние Step после завершения безопасны
	if done, err := x.Step(ctx); !done || err != nil {
		t.Errorf("step after completion: done=%v err=%v", done, err)
	}
}

func TestRun_InvalidGraph(t *testing.T) {
	reg := testRegistry(t, newCounter())
	g := graph.New(reg)
	add(t, g, "start", "core/Start", nil)
	add(t, g, "a", "test/Count", nil)
	link(t, g, "start", "next", "a", "in")

	r, err := New(Config{}).Run(context.Background(), g, RunOptions{})
	if r != nil {
		t.Error("invalid graph must not produce a report")
	}
	if !errors.Is(err, ErrInvalidGraph) {
		t.Fatalf("expected ErrInvalidGraph, got %v", err)
	}

	var ig *InvalidGraphError
	if !errors.As(err, &ig) {
		t.Fatalf("expected *InvalidGraphError, got %T", err)
	}
	if len(ig.Violations) != 1 || ig.Violations[0].Code != graph.ViolationMissingEnd {
		t.Errorf("unexpected violations %v", ig.Violations)
	}
	if g.Running() {
		t.Error("graph must stay unlocked")
	}
}

func TestRun_InvariantAborts(t *testing.T) {
	reg := testRegistry(t, newCounter())
	g := graph.New(reg)
	add(t, g, "start", "core/Start", nil)
	add(t, g, "bad", "test/BadBranch", nil)
	add(t, g, "end", "core/End", nil)
	link(t, g, "start", "next", "bad", "in")
	link(t, g, "bad", "a", "end", "in")

	var partial *report.Report
	obs := ObserverFuncs{RunFinished: func(_ context.Context, r *report.Report) { partial = r }}

	r, err := New(Config{Observer: obs}).Run(context.Background(), g, RunOptions{})
	if !errors.Is(err, ErrInvariant) {
		t.Fatalf("expected ErrInvariant, got %v", err)
	}
	if r != nil {
		t.Error("aborted run must not return a report")
	}
	if partial == nil || partial.NodeStatus("start") != domain.NodeStatusDone {
		t.Errorf("observer should receive a partial report, got %+v", partial)
	}
	if g.Running() {
		t.Error("graph must be unlocked after abort")
	}
}

func TestRun_ObserverEvents(t *testing.T) {
	reg := testRegistry(t, newCounter())
	g := graph.New(reg)
	add(t, g, "start", "core/Start", nil)
	add(t, g, "read", "file/ReadFile", map[string]any{"path": "/missing"})
	add(t, g, "end", "core/End", nil)
	add(t, g, "unused", "test/Count", nil)
	link(t, g, "start", "next", "read", "in")
	link(t, g, "read", "next", "end", "in")

	var (
		started  []string
		events   = make(map[string][]domain.NodeStatus)
		finished int
	)
	obs := ObserverFuncs{
		RunStarted: func(_ context.Context, runID, graphID string) {
			started = append(started, runID)
			if graphID != g.ID() {
				t.Errorf("unexpected graph id %s", graphID)
			}
		},
		NodeStatusChanged: func(_ context.Context, ev report.NodeEvent) {
			if ev.RunID != "run-42" {
				t.Errorf("unexpected run id %s", ev.RunID)
			}
			events[ev.NodeID] = append(events[ev.NodeID], ev.Status)
		},
		RunFinished: func(context.Context, *report.Report) { finished++ },
	}

	_, err := New(Config{Effects: &effects.Effects{FS: effects.NewMemFS(nil)}}).
		Run(context.Background(), g, RunOptions{RunID: "run-42", Observer: obs})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if diff := cmp.Diff([]string{"run-42"}, started); diff != "" {
		t.Errorf("run started mismatch:\n%s", diff)
	}
	if finished != 1 {
		t.Errorf("expected one finish notification, got %d", finished)
	}

	want := map[string][]domain.NodeStatus{
		"start":  {domain.NodeStatusReady, domain.NodeStatusRunning, domain.NodeStatusDone},
		"read":   {domain.NodeStatusReady, domain.NodeStatusRunning, domain.NodeStatusFailed},
		"end":    {domain.NodeStatusSkipped},
		"unused": {domain.NodeStatusSkipped},
	}
	if diff := cmp.Diff(want, events); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
}
