package expr

import (
	"errors"
	"testing"
)

func TestNewContext(t *testing.T) {
	ctx := NewContext(nil)
	if ctx.Inputs == nil || ctx.Nodes == nil || ctx.Env == nil {
		t.Fatal("maps should be initialized")
	}

	ctx.AddNodeResult("read", nil, "done", "")
	if ctx.Nodes["read"].Outputs == nil {
		t.Error("Outputs should not be nil even when passed nil")
	}
}

func TestContext_WithIn(t *testing.T) {
	ctx := NewContext(map[string]any{"name": "run"})
	in := map[string]any{"value": "x"}

	local := ctx.WithIn(in)
	in["value"] = "changed"

	if local.In["value"] != "x" {
		t.Error("WithIn should copy node inputs")
	}
	if ctx.In != nil {
		t.Error("original context must stay without In")
	}

	// Результаты узлов разделяются
	ctx.AddNodeResult("n1", map[string]any{"a": 1}, "done", "")
	if local.Nodes["n1"] == nil {
		t.Error("node results should be shared")
	}
}

func TestRender(t *testing.T) {
	ctx := NewContext(map[string]any{
		"name":  "test",
		"count": 42,
		"text":  "Hello World",
		"list":  []string{"a", "b"},
	})
	ctx.AddNodeResult("read", map[string]any{"content": "hello"}, "done", "")
	ctx.AddNodeResult("write", nil, "failed", "permission denied")
	ctx.SetEnv("HOME", "/home/user")
	ctx = ctx.WithIn(map[string]any{"value": "7"})

	tests := []struct {
		name     string
		template string
		expected string
	}{
		{"plain", "Plain text", "Plain text"},
		{"input", "Hello, {{ .Inputs.name }}!", "Hello, test!"},
		{"number input", "Count: {{ .Inputs.count }}", "Count: 42"},
		{"node output", "{{ .Nodes.read.Outputs.content }}", "hello"},
		{"node status", "{{ .Nodes.write.Status }}", "failed"},
		{"node error", "{{ .Nodes.write.Error }}", "permission denied"},
		{"env", "{{ .Env.HOME }}/out.txt", "/home/user/out.txt"},
		{"local input", "v={{ .In.value }}", "v=7"},
		{"lower", "{{ lower .Inputs.text }}", "hello world"},
		{"upper", "{{ upper .Inputs.text }}", "HELLO WORLD"},
		{"default with value", `{{ default "fallback" .Inputs.text }}`, "Hello World"},
		{"default with nil", `{{ default "fallback" .Inputs.missing }}`, "fallback"},
		{"json", "{{ json .Inputs.list }}", `["a","b"]`},
		{"join", `{{ join "," .Inputs.list }}`, "a,b"},
		{"num", "{{ num .In.value }}", "7"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := Render(tt.template, ctx)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if result != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, result)
			}
		})
	}
}

func TestRender_InvalidTemplate(t *testing.T) {
	_, err := Render("{{ .Invalid syntax", NewContext(nil))
	if !errors.Is(err, ErrTemplateParse) {
		t.Errorf("expected ErrTemplateParse, got %v", err)
	}

	// Вызов несуществующего поля
	_, err = Render("{{ .Missing.Field }}", NewContext(nil))
	if !errors.Is(err, ErrTemplateRender) {
		t.Errorf("expected ErrTemplateRender, got %v", err)
	}
}

func TestRenderValue(t *testing.T) {
	ctx := NewContext(map[string]any{
		"url":   "https://example.com",
		"token": "secret",
	})

	value := map[string]any{
		"method": "POST",
		"url":    "{{ .Inputs.url }}/api",
		"headers": map[string]any{
			"Authorization": "Bearer {{ .Inputs.token }}",
		},
		"list":  []any{"{{ .Inputs.token }}", 42},
		"plain": map[string]string{"k": "{{ .Inputs.url }}"},
		"n":     float64(3),
	}

	result, err := RenderValue(value, ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m := result.(map[string]any)

	if m["url"] != "https://example.com/api" {
		t.Errorf("url: %v", m["url"])
	}
	if m["headers"].(map[string]any)["Authorization"] != "Bearer secret" {
		t.Errorf("headers: %v", m["headers"])
	}
	list := m["list"].([]any)
	if list[0] != "secret" || list[1] != 42 {
		t.Errorf("list: %v", list)
	}
	if m["plain"].(map[string]string)["k"] != "https://example.com" {
		t.Errorf("plain: %v", m["plain"])
	}
	if m["n"] != float64(3) {
		t.Errorf("n: %v", m["n"])
	}

	// Исходное значение не меняется
	if value["url"] != "{{ .Inputs.url }}/api" {
		t.Error("source value must not be modified")
	}
}

func TestRenderCondition(t *testing.T) {
	ctx := NewContext(map[string]any{
		"enabled": true,
		"count":   5,
	})
	ctx.AddNodeResult("check", map[string]any{"is_valid": true}, "done", "")
	ctx = ctx.WithIn(map[string]any{"value": "42", "name": "yes"})

	tests := []struct {
		name      string
		condition string
		expected  bool
	}{
		{"empty", "", true},
		{"bool input", ".Inputs.enabled", true},
		{"comparison true", "gt .Inputs.count 3", true},
		{"comparison false", "gt .Inputs.count 10", false},
		{"node output", ".Nodes.check.Outputs.is_valid", true},
		{"string equality", `eq .In.name "yes"`, true},
		{"numeric string", "gt (num .In.value) 10.0", true},
		{"numeric string false", "lt (num .In.value) 10.0", false},
		{"regexp", `matches "^4" .In.value`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := RenderCondition(tt.condition, ctx)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if result != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, result)
			}
		})
	}
}

func TestToNumberAndString(t *testing.T) {
	if ToNumber("3.5") != 3.5 || ToNumber(2) != 2 || ToNumber(true) != 1 || ToNumber("abc") != 0 {
		t.Error("ToNumber conversions")
	}
	if ToString(float64(10)) != "10" || ToString(nil) != "" || ToString(false) != "false" {
		t.Error("ToString conversions")
	}
}
