package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shaiso/Nodeflow/internal/domain"
	"github.com/shaiso/Nodeflow/internal/effects"
	"github.com/shaiso/Nodeflow/internal/graph"
	"github.com/shaiso/Nodeflow/internal/report"
)

func writeDoc(t *testing.T, doc graph.Document) string {
	t.Helper()
	data, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	path := filepath.Join(t.TempDir(), "graph.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

// copyDoc: Start -> ReadFile(/a.txt) -> WriteFile(/b.txt, content) -> End
func copyDoc() graph.Document {
	return graph.Document{
		Name: "copy",
		Nodes: []graph.NodeDoc{
			{ID: "start", Type: "core/Start"},
			{ID: "read", Type: "file/ReadFile", Properties: map[string]any{"path": "/a.txt"}},
			{ID: "write", Type: "file/WriteFile", Properties: map[string]any{"path": "/b.txt"}},
			{ID: "end", Type: "core/End"},
		},
		Links: []graph.LinkDoc{
			{From: "start", FromPort: "next", To: "read", ToPort: "in"},
			{From: "read", FromPort: "next", To: "write", ToPort: "in"},
			{From: "read", FromPort: "content", To: "write", ToPort: "content"},
			{From: "write", FromPort: "next", To: "end", ToPort: "in"},
		},
	}
}

func execute(t *testing.T, local LocalConfig, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	root := NewRootCmd("test", local)
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)
	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

func TestParseInputs(t *testing.T) {
	got, err := parseInputs([]string{"name=world", "expr=a=b"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got["name"] != "world" || got["expr"] != "a=b" {
		t.Errorf("unexpected inputs: %v", got)
	}

	for _, bad := range []string{"novalue", "=x"} {
		if _, err := parseInputs([]string{bad}); err == nil {
			t.Errorf("expected error for %q", bad)
		}
	}

	if got, err := parseInputs(nil); err != nil || got != nil {
		t.Errorf("empty inputs: got %v, %v", got, err)
	}
}

func TestLocalRun_CopiesFile(t *testing.T) {
	fs := effects.NewMemFS(map[string]string{"/a.txt": "hello"})
	path := writeDoc(t, copyDoc())

	stdout, _, err := execute(t, LocalConfig{FS: fs}, "run", path, "--json")
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	rep, err := report.Parse([]byte(stdout))
	if err != nil {
		t.Fatalf("parse report: %v\n%s", err, stdout)
	}
	if rep.Status != domain.RunStatusSucceeded {
		t.Errorf("expected SUCCEEDED, got %s", rep.Status)
	}
	if got, _ := fs.Get("/b.txt"); got != "hello" {
		t.Errorf("expected /b.txt = hello, got %q", got)
	}
}

func TestLocalRun_FailedNode(t *testing.T) {
	fs := effects.NewMemFS(nil)
	path := writeDoc(t, copyDoc())

	stdout, _, err := execute(t, LocalConfig{FS: fs}, "run", path)
	if !errors.Is(err, ErrRunFailed) {
		t.Fatalf("expected ErrRunFailed, got %v", err)
	}
	if !strings.Contains(err.Error(), "read") {
		t.Errorf("error must name the failed node: %v", err)
	}
	for _, want := range []string{"NODE", "read", "failed", "skipped"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("table output must contain %q:\n%s", want, stdout)
		}
	}
}

func TestLocalRun_InvalidGraph(t *testing.T) {
	doc := copyDoc()
	doc.Nodes = doc.Nodes[:3]
	doc.Links = doc.Links[:3]
	path := writeDoc(t, doc)

	stdout, _, err := execute(t, LocalConfig{FS: effects.NewMemFS(nil)}, "run", path)
	if !errors.Is(err, ErrInvalidGraph) {
		t.Fatalf("expected ErrInvalidGraph, got %v", err)
	}
	if !strings.Contains(stdout, graph.ViolationMissingEnd) {
		t.Errorf("violations must be printed:\n%s", stdout)
	}
}

func TestValidate(t *testing.T) {
	_, stderr, err := execute(t, LocalConfig{}, "validate", writeDoc(t, copyDoc()))
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !strings.Contains(stderr, "is valid") {
		t.Errorf("unexpected message: %q", stderr)
	}

	doc := copyDoc()
	doc.Links = doc.Links[:1]
	stdout, _, err := execute(t, LocalConfig{}, "validate", writeDoc(t, doc), "--json")
	if !errors.Is(err, ErrInvalidGraph) {
		t.Fatalf("expected ErrInvalidGraph, got %v", err)
	}
	var res struct {
		Valid      bool              `json:"valid"`
		Violations []graph.Violation `json:"violations"`
	}
	if err := json.Unmarshal([]byte(stdout), &res); err != nil {
		t.Fatalf("decode: %v\n%s", err, stdout)
	}
	if res.Valid || len(res.Violations) == 0 {
		t.Errorf("expected violations, got %+v", res)
	}

	if _, _, err := execute(t, LocalConfig{}, "validate", filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestTypes(t *testing.T) {
	stdout, _, err := execute(t, LocalConfig{}, "types")
	if err != nil {
		t.Fatalf("types: %v", err)
	}
	for _, want := range []string{"core/Start", "core/Condition", "file/WriteFile", "net/HttpRequest"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("types output must list %s", want)
		}
	}
}

func TestRemote_PushAndRunShow(t *testing.T) {
	graphID := "7b0c1d2e-0000-4000-8000-000000000001"
	runID := "7b0c1d2e-0000-4000-8000-000000000002"

	var created json.RawMessage
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/graphs", func(w http.ResponseWriter, r *http.Request) {
		var req CreateGraphRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		created = req.Document
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]any{"data": GraphResponse{ID: graphID, Name: "copy"}})
	})
	mux.HandleFunc("GET /api/v1/runs/{id}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") != runID {
			w.WriteHeader(http.StatusNotFound)
			json.NewEncoder(w).Encode(map[string]any{"error": map[string]string{"code": "NOT_FOUND", "message": "run not found"}})
			return
		}
		rep := report.Report{
			RunID:  runID,
			Status: domain.RunStatusSucceeded,
			Order:  []string{"start"},
			Nodes:  []report.NodeResult{{NodeID: "start", Type: "core/Start", Status: domain.NodeStatusDone}},
		}
		data, _ := json.Marshal(&rep)
		json.NewEncoder(w).Encode(map[string]any{"data": RunResponse{ID: runID, GraphID: graphID, Status: "SUCCEEDED", Report: data}})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	_, stderr, err := execute(t, LocalConfig{}, "--api-url", srv.URL, "graph", "push", writeDoc(t, copyDoc()))
	if err != nil {
		t.Fatalf("push: %v", err)
	}
	if !strings.Contains(stderr, "Graph created: "+graphID) {
		t.Errorf("unexpected message: %q", stderr)
	}
	doc, err := graph.ParseDocument(created)
	if err != nil || len(doc.Nodes) != 4 {
		t.Errorf("server must receive the document: %v %+v", err, doc)
	}

	stdout, _, err := execute(t, LocalConfig{}, "--api-url", srv.URL, "run-show", runID)
	if err != nil {
		t.Fatalf("run-show: %v", err)
	}
	if !strings.Contains(stdout, "SUCCEEDED") || !strings.Contains(stdout, "core/Start") {
		t.Errorf("report must be printed:\n%s", stdout)
	}

	_, _, err = execute(t, LocalConfig{}, "--api-url", srv.URL, "run-show", "7b0c1d2e-0000-4000-8000-00000000ffff")
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("expected not found error, got %v", err)
	}
}

func TestClient_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{
			"code":       "INVALID_GRAPH",
			"message":    "graph is not valid",
			"violations": []map[string]string{{"code": "missing_end", "message": "graph has no End node"}},
		}})
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).RunGraph("x", nil)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if apiErr.Status != http.StatusUnprocessableEntity || apiErr.Code != "INVALID_GRAPH" || len(apiErr.Violations) != 1 {
		t.Errorf("unexpected error: %+v", apiErr)
	}
	if !strings.Contains(err.Error(), "no End node") {
		t.Errorf("violations must be part of the message: %v", err)
	}
}
