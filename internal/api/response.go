package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/shaiso/Nodeflow/internal/engine"
	"github.com/shaiso/Nodeflow/internal/graph"
	"github.com/shaiso/Nodeflow/internal/repo"
)

// ErrorCode — код ошибки API.
type ErrorCode string

const (
	ErrCodeBadRequest    ErrorCode = "BAD_REQUEST"
	ErrCodeNotFound      ErrorCode = "NOT_FOUND"
	ErrCodeConflict      ErrorCode = "CONFLICT"
	ErrCodeInternalError ErrorCode = "INTERNAL_ERROR"
	ErrCodeGraphLocked   ErrorCode = "GRAPH_LOCKED"
	ErrCodeInvalidGraph  ErrorCode = "INVALID_GRAPH"
	ErrCodeUnavailable   ErrorCode = "UNAVAILABLE"
)

// ErrorResponse — структура ответа с ошибкой.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail — детали ошибки.
type ErrorDetail struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`

	// NodeID, Port — контекст структурной ошибки правки.
	NodeID string `json:"node_id,omitempty"`
	Port   string `json:"port,omitempty"`

	// Violations — нарушения графа, из-за которых run не запущен.
	Violations []graph.Violation `json:"violations,omitempty"`
}

// DataResponse — структура успешного ответа.
type DataResponse struct {
	Data any `json:"data"`
}

// ListResponse — структура ответа со списком.
type ListResponse struct {
	Data  any `json:"data"`
	Total int `json:"total,omitempty"`
}

// JSON отправляет JSON ответ.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// Success отправляет успешный ответ с данными.
func Success(w http.ResponseWriter, data any) {
	JSON(w, http.StatusOK, DataResponse{Data: data})
}

// Created отправляет ответ о создании ресурса.
func Created(w http.ResponseWriter, data any) {
	JSON(w, http.StatusCreated, DataResponse{Data: data})
}

// NoContent отправляет ответ без тела (204).
func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// List отправляет ответ со списком.
func List(w http.ResponseWriter, data any, total int) {
	JSON(w, http.StatusOK, ListResponse{Data: data, Total: total})
}

// Error отправляет ответ с ошибкой.
func Error(w http.ResponseWriter, status int, code ErrorCode, message string) {
	JSON(w, status, ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
		},
	})
}

// BadRequest отправляет ошибку 400.
func BadRequest(w http.ResponseWriter, message string) {
	Error(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

// NotFound отправляет ошибку 404.
func NotFound(w http.ResponseWriter, message string) {
	Error(w, http.StatusNotFound, ErrCodeNotFound, message)
}

// Conflict отправляет ошибку 409.
func Conflict(w http.ResponseWriter, message string) {
	Error(w, http.StatusConflict, ErrCodeConflict, message)
}

// InternalError отправляет ошибку 500.
func InternalError(w http.ResponseWriter, logger *slog.Logger, err error) {
	logger.Error("internal error", "error", err)
	Error(w, http.StatusInternalServerError, ErrCodeInternalError, "internal server error")
}

// Unavailable отправляет ошибку 503.
func Unavailable(w http.ResponseWriter, message string) {
	Error(w, http.StatusServiceUnavailable, ErrCodeUnavailable, message)
}

// HandleRepoError преобразует ошибку репозитория в HTTP ответ.
func HandleRepoError(w http.ResponseWriter, logger *slog.Logger, err error, notFoundMsg string) bool {
	if err == nil {
		return false
	}

	switch {
	case errors.Is(err, repo.ErrNotFound):
		NotFound(w, notFoundMsg)
	case errors.Is(err, repo.ErrAlreadyExists):
		Conflict(w, err.Error())
	default:
		InternalError(w, logger, err)
	}
	return true
}

// HandleGraphError преобразует ошибку правки или запуска графа в HTTP ответ:
// нет узла или связи — 404, граф заблокирован run — 409,
// граф не проходит проверку — 422, прочие структурные ошибки — 400.
func HandleGraphError(w http.ResponseWriter, logger *slog.Logger, err error) bool {
	if err == nil {
		return false
	}

	var invalid *engine.InvalidGraphError
	if errors.As(err, &invalid) {
		JSON(w, http.StatusUnprocessableEntity, ErrorResponse{Error: ErrorDetail{
			Code:       ErrCodeInvalidGraph,
			Message:    "graph is not valid",
			Violations: invalid.Violations,
		}})
		return true
	}

	if errors.Is(err, graph.ErrGraphLocked) {
		Error(w, http.StatusConflict, ErrCodeGraphLocked, err.Error())
		return true
	}

	status, code := http.StatusBadRequest, ErrCodeBadRequest
	if errors.Is(err, graph.ErrNodeNotFound) || errors.Is(err, graph.ErrLinkNotFound) {
		status, code = http.StatusNotFound, ErrCodeNotFound
	}

	var edit *graph.EditError
	if errors.As(err, &edit) {
		JSON(w, status, ErrorResponse{Error: ErrorDetail{
			Code:    code,
			Message: err.Error(),
			NodeID:  edit.NodeID,
			Port:    edit.Port,
		}})
		return true
	}
	if isStructural(err) {
		Error(w, status, code, err.Error())
		return true
	}

	InternalError(w, logger, err)
	return true
}

func isStructural(err error) bool {
	for _, target := range []error{
		graph.ErrUnknownType,
		graph.ErrInvalidProperty,
		graph.ErrPortNotFound,
		graph.ErrPortTypeMismatch,
		graph.ErrInputAlreadyBound,
		graph.ErrCycleDetected,
		graph.ErrNodeNotFound,
		graph.ErrLinkNotFound,
		graph.ErrDuplicateNode,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
