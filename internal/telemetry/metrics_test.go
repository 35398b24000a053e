package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/shaiso/Nodeflow/internal/domain"
	"github.com/shaiso/Nodeflow/internal/report"
)

func TestMetricsObserver(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	obs := NewMetricsObserver(m)
	ctx := context.Background()

	obs.OnRunStarted(ctx, "run-1", "graph-1")
	if v := testutil.ToFloat64(m.ActiveRuns); v != 1 {
		t.Errorf("expected 1 active run, got %v", v)
	}

	// Нетерминальные статусы не учитываются
	obs.OnNodeStatusChanged(ctx, report.NodeEvent{NodeType: "file/ReadFile", Status: domain.NodeStatusRunning})
	obs.OnNodeStatusChanged(ctx, report.NodeEvent{NodeType: "file/ReadFile", Status: domain.NodeStatusFailed, Duration: time.Millisecond})
	obs.OnNodeStatusChanged(ctx, report.NodeEvent{NodeType: "core/Log", Status: domain.NodeStatusDone})
	obs.OnNodeStatusChanged(ctx, report.NodeEvent{NodeType: "core/End", Status: domain.NodeStatusSkipped})

	if v := testutil.ToFloat64(m.NodeExecutions.WithLabelValues("file/ReadFile", "failed")); v != 1 {
		t.Errorf("expected 1 failed ReadFile, got %v", v)
	}
	if v := testutil.ToFloat64(m.NodeExecutions.WithLabelValues("file/ReadFile", "running")); v != 0 {
		t.Errorf("running must not be counted, got %v", v)
	}
	if n := testutil.CollectAndCount(m.NodeDuration); n != 2 {
		t.Errorf("expected 2 duration series, got %d", n)
	}

	obs.OnRunFinished(ctx, &report.Report{Status: domain.RunStatusFailed})
	if v := testutil.ToFloat64(m.ActiveRuns); v != 0 {
		t.Errorf("expected 0 active runs, got %v", v)
	}
	if v := testutil.ToFloat64(m.RunsTotal.WithLabelValues("FAILED")); v != 1 {
		t.Errorf("expected 1 failed run, got %v", v)
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]string{
		"DEBUG": "DEBUG",
		"warn":  "WARN",
		"ERROR": "ERROR",
		"":      "INFO",
		"bogus": "INFO",
	}
	for in, want := range tests {
		if got := ParseLevel(in).String(); got != want {
			t.Errorf("ParseLevel(%q) = %s, want %s", in, got, want)
		}
	}
}
