package expr

import "maps"

// Context — данные, доступные шаблонам во время run.
type Context struct {
	// Inputs — входные параметры run (значения Start).
	Inputs map[string]any `json:"inputs"`

	// Nodes — результаты уже завершённых узлов.
	Nodes map[string]*NodeContext `json:"nodes"`

	// Env — переменные окружения run.
	Env map[string]string `json:"env"`

	// In — входы узла, для которого рендерится шаблон.
	In map[string]any `json:"in,omitempty"`
}

// NodeContext — результат узла для шаблонов.
type NodeContext struct {
	Outputs map[string]any `json:"outputs"`

	// Status — "done", "failed" или "skipped".
	Status string `json:"status"`

	// Error — сообщение об ошибке failed узла.
	Error string `json:"error,omitempty"`
}

// NewContext создаёт контекст с входными параметрами run.
func NewContext(inputs map[string]any) *Context {
	if inputs == nil {
		inputs = make(map[string]any)
	}
	return &Context{
		Inputs: inputs,
		Nodes:  make(map[string]*NodeContext),
		Env:    make(map[string]string),
	}
}

// AddNodeResult записывает результат узла.
func (c *Context) AddNodeResult(nodeID string, outputs map[string]any, status, errMsg string) {
	if outputs == nil {
		outputs = make(map[string]any)
	}
	c.Nodes[nodeID] = &NodeContext{
		Outputs: outputs,
		Status:  status,
		Error:   errMsg,
	}
}

// SetEnv устанавливает переменную окружения.
func (c *Context) SetEnv(key, value string) {
	c.Env[key] = value
}

// WithIn возвращает копию контекста с входами текущего узла.
// Inputs, Nodes и Env разделяются с исходным контекстом.
func (c *Context) WithIn(in map[string]any) *Context {
	cp := *c
	cp.In = maps.Clone(in)
	if cp.In == nil {
		cp.In = make(map[string]any)
	}
	return &cp
}
