package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// --- Response types (дублируются из api/dto.go, CLI не импортирует internal/api) ---

// GraphResponse — граф из API.
type GraphResponse struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Document  json.RawMessage `json:"document,omitempty"`
	CreatedAt string          `json:"created_at"`
	UpdatedAt string          `json:"updated_at"`
}

// RunResponse — run из API.
type RunResponse struct {
	ID         string          `json:"id"`
	GraphID    string          `json:"graph_id"`
	Status     string          `json:"status"`
	Inputs     map[string]any  `json:"inputs,omitempty"`
	Report     json.RawMessage `json:"report,omitempty"`
	Error      string          `json:"error,omitempty"`
	StartedAt  string          `json:"started_at,omitempty"`
	FinishedAt string          `json:"finished_at,omitempty"`
	CreatedAt  string          `json:"created_at"`
}

// RunResult — итог синхронного запуска.
type RunResult struct {
	Run    RunResponse     `json:"run"`
	Report json.RawMessage `json:"report"`
}

// ViolationResponse — нарушение структуры графа.
type ViolationResponse struct {
	Code    string `json:"code"`
	NodeID  string `json:"node_id,omitempty"`
	Port    string `json:"port,omitempty"`
	Message string `json:"message"`
}

// ValidateResponse — результат проверки графа.
type ValidateResponse struct {
	Valid      bool                `json:"valid"`
	Violations []ViolationResponse `json:"violations"`
}

// --- Request types ---

// CreateGraphRequest — создание графа из документа.
type CreateGraphRequest struct {
	Name     string          `json:"name,omitempty"`
	Document json.RawMessage `json:"document,omitempty"`
}

// CreateRunRequest — запуск графа.
type CreateRunRequest struct {
	Inputs map[string]any `json:"inputs,omitempty"`
}

// ListRunsOpts — параметры фильтрации runs.
type ListRunsOpts struct {
	GraphID string
	Status  string
	Limit   int
}

// --- API response wrappers ---

type dataResponse struct {
	Data json.RawMessage `json:"data"`
}

type listResponse struct {
	Data  json.RawMessage `json:"data"`
	Total int             `json:"total"`
}

// APIError — ошибка, возвращённая API.
type APIError struct {
	Status  int
	Code    string `json:"code"`
	Message string `json:"message"`
	NodeID  string `json:"node_id,omitempty"`

	Violations []ViolationResponse `json:"violations,omitempty"`
}

// Error реализует интерфейс error.
func (e *APIError) Error() string {
	msg := e.Code + ": " + e.Message
	for _, v := range e.Violations {
		msg += "\n  - " + v.Message
	}
	return msg
}

// --- Client ---

// Client — HTTP-клиент для Nodeflow API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient создаёт клиент для API.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			// Синхронный run длится столько, сколько граф.
			Timeout: 5 * time.Minute,
		},
	}
}

// --- Graphs ---

// ListGraphs возвращает все графы.
func (c *Client) ListGraphs() ([]GraphResponse, error) {
	var graphs []GraphResponse
	err := c.list("/api/v1/graphs", nil, &graphs)
	return graphs, err
}

// CreateGraph создаёт граф из документа.
func (c *Client) CreateGraph(doc json.RawMessage) (*GraphResponse, error) {
	var g GraphResponse
	err := c.post("/api/v1/graphs", CreateGraphRequest{Document: doc}, &g)
	return &g, err
}

// ReplaceGraph заменяет документ существующего графа.
func (c *Client) ReplaceGraph(id string, doc json.RawMessage) (*GraphResponse, error) {
	var g GraphResponse
	err := c.put("/api/v1/graphs/"+id, doc, &g)
	return &g, err
}

// GetGraph возвращает граф с документом.
func (c *Client) GetGraph(id string) (*GraphResponse, error) {
	var g GraphResponse
	err := c.get("/api/v1/graphs/"+id, &g)
	return &g, err
}

// DeleteGraph удаляет граф.
func (c *Client) DeleteGraph(id string) error {
	return c.delete("/api/v1/graphs/" + id)
}

// ValidateGraph возвращает нарушения структуры графа.
func (c *Client) ValidateGraph(id string) (*ValidateResponse, error) {
	var v ValidateResponse
	err := c.get("/api/v1/graphs/"+id+"/validate", &v)
	return &v, err
}

// --- Runs ---

// RunGraph выполняет граф синхронно.
func (c *Client) RunGraph(id string, inputs map[string]any) (*RunResult, error) {
	var res RunResult
	err := c.post("/api/v1/graphs/"+id+"/runs", CreateRunRequest{Inputs: inputs}, &res)
	return &res, err
}

// EnqueueRun ставит run графа в очередь.
func (c *Client) EnqueueRun(id string, inputs map[string]any) (*RunResponse, error) {
	var run RunResponse
	err := c.post("/api/v1/graphs/"+id+"/runs/async", CreateRunRequest{Inputs: inputs}, &run)
	return &run, err
}

// GetRun возвращает run по ID.
func (c *Client) GetRun(id string) (*RunResponse, error) {
	var run RunResponse
	err := c.get("/api/v1/runs/"+id, &run)
	return &run, err
}

// ListRuns возвращает список runs с фильтрацией.
func (c *Client) ListRuns(opts ListRunsOpts) ([]RunResponse, error) {
	params := url.Values{}
	if opts.GraphID != "" {
		params.Set("graph_id", opts.GraphID)
	}
	if opts.Status != "" {
		params.Set("status", opts.Status)
	}
	if opts.Limit > 0 {
		params.Set("limit", strconv.Itoa(opts.Limit))
	}

	var runs []RunResponse
	err := c.list("/api/v1/runs", params, &runs)
	return runs, err
}

// --- HTTP helpers ---

func (c *Client) get(path string, result any) error {
	return c.doData(http.MethodGet, path, nil, result)
}

func (c *Client) post(path string, body any, result any) error {
	return c.doData(http.MethodPost, path, body, result)
}

func (c *Client) put(path string, body any, result any) error {
	return c.doData(http.MethodPut, path, body, result)
}

func (c *Client) delete(path string) error {
	resp, err := c.do(http.MethodDelete, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return c.checkError(resp)
}

func (c *Client) list(path string, params url.Values, result any) error {
	if len(params) > 0 {
		path = path + "?" + params.Encode()
	}

	resp, err := c.do(http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	var lr listResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return json.Unmarshal(lr.Data, result)
}

func (c *Client) doData(method, path string, body any, result any) error {
	resp, err := c.do(method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}
	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	var dr dataResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	if result != nil {
		return json.Unmarshal(dr.Data, result)
	}
	return nil
}

func (c *Client) do(method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.httpClient.Do(req)
}

func (c *Client) checkError(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}

	var er struct {
		Error APIError `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		return fmt.Errorf("API error: HTTP %d", resp.StatusCode)
	}
	er.Error.Status = resp.StatusCode
	return &er.Error
}
