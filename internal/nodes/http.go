package nodes

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/shaiso/Nodeflow/internal/domain"
	"github.com/shaiso/Nodeflow/internal/registry"
)

// maxResponseBody — ограничение размера ответа (10 MB).
const maxResponseBody = 10 * 1024 * 1024

// HTTPRequestType — HTTP запрос.
//
// Свойства:
//
//	{
//	    "url": "https://api.example.com/items",
//	    "method": "POST",
//	    "headers": {"Authorization": "Bearer {{ .Inputs.token }}"},
//	    "query": {"page": "1"},
//	    "username": "user", "password": "secret",
//	    "body": "{\"name\": \"{{ .In.body }}\"}"
//	}
//
// Ответ с любым кодом статуса считается успешным: код попадает в status_code.
// Ошибка транспорта активирует error-выход.
func HTTPRequestType() registry.NodeType {
	return registry.NodeType{
		Name:  "net/HttpRequest",
		Title: "HTTP Request",
		Class: domain.ClassIO,
		Inputs: []registry.PortSpec{
			inPort,
			{Name: "url", Type: domain.TypeString, Required: true},
			{Name: "body", Type: domain.TypeString},
		},
		Outputs: []registry.PortSpec{
			nextPort,
			{Name: "status_code", Type: domain.TypeNumber},
			{Name: "response", Type: domain.TypeString},
			errorPort,
		},
		Properties: []registry.PropertySpec{
			{Name: "url", Type: domain.PropString, Required: true},
			{Name: "method", Type: domain.PropString},
			{Name: "headers", Type: domain.PropMap},
			{Name: "query", Type: domain.PropMap},
			{Name: "username", Type: domain.PropString},
			{Name: "password", Type: domain.PropString},
		},
		Executor: registry.ExecutorFunc(executeHTTP),
	}
}

func executeHTTP(ctx context.Context, req *registry.Request) (*registry.Result, error) {
	client, err := req.Effects.HTTPClient()
	if err != nil {
		return nil, err
	}

	httpReq, err := buildHTTPRequest(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %v", ErrCancelled, ctx.Err())
		}
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	return registry.NewResult(map[string]any{
		"status_code": resp.StatusCode,
		"response":    string(body),
	}), nil
}

func buildHTTPRequest(ctx context.Context, req *registry.Request) (*http.Request, error) {
	method := strings.ToUpper(registry.GetString(req.Properties, "method"))
	if method == "" {
		method = http.MethodGet
	}

	u, err := url.Parse(req.String("url"))
	if err != nil {
		return nil, fmt.Errorf("%w: invalid url: %v", ErrInvalidConfig, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: url %q must be absolute", ErrInvalidConfig, u.String())
	}

	if query := registry.GetMapString(req.Properties, "query"); len(query) > 0 {
		q := u.Query()
		for k, v := range query {
			q.Set(k, v)
		}
		u.RawQuery = q.Encode()
	}

	var body io.Reader
	if req.Has("body") && method != http.MethodGet && method != http.MethodHead {
		body = strings.NewReader(req.String("body"))
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, err
	}

	for k, v := range registry.GetMapString(req.Properties, "headers") {
		httpReq.Header.Set(k, v)
	}
	if user := registry.GetString(req.Properties, "username"); user != "" {
		httpReq.SetBasicAuth(user, registry.GetString(req.Properties, "password"))
	}

	return httpReq, nil
}
