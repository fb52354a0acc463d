// apierrors приводит ошибки сервиса к единому JSON-ответу HTTP API:
//
//	{"error":{"code":"TOKEN_REVOKED","message":"token revoked","request_id":"..."}}
//
// Бизнес-ошибки (*service.Error) отдаются со своим кодом и статусом.
// Всё остальное считается внутренней ошибкой: клиент видит только INTERNAL,
// подробности уходят в лог.
package apierrors

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/pribylovaa/hrm-auth/internal/pkg/log"
	"github.com/pribylovaa/hrm-auth/internal/service"
)

// StatusClientClosedRequest — нестандартный статус "клиент закрыл соединение".
const StatusClientClosedRequest = 499

// Коды, которые формирует сам транспорт.
const (
	CodeInternal         = "INTERNAL"
	CodeCanceled         = "CANCELED"
	CodeDeadlineExceeded = "DEADLINE_EXCEEDED"
	CodeNotFound         = "NOT_FOUND"
	CodeMethodNotAllowed = "METHOD_NOT_ALLOWED"
)

// APIError — тело ошибки.
type APIError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// ErrorResponse — корневой объект ответа с ошибкой.
type ErrorResponse struct {
	Error APIError `json:"error"`
}

// BadRequest возвращает VALIDATION_FAILED для ошибок разбора запроса.
func BadRequest(msg string) error {
	return &service.Error{Code: service.CodeValidationFailed, Status: http.StatusBadRequest, Message: msg}
}

// ToHTTP конвертирует ошибку в HTTP-статус и тело ответа.
// err == nil — ошибка вызова, отвечаем 500, чтобы не отдать 200 с телом ошибки.
func ToHTTP(err error) (int, ErrorResponse) {
	var svcErr *service.Error

	switch {
	case err == nil:
		return internal()
	case errors.As(err, &svcErr):
		return svcErr.Status, ErrorResponse{Error: APIError{Code: svcErr.Code, Message: svcErr.Message}}
	case errors.Is(err, context.Canceled):
		return StatusClientClosedRequest, ErrorResponse{Error: APIError{Code: CodeCanceled, Message: "request canceled"}}
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, ErrorResponse{Error: APIError{Code: CodeDeadlineExceeded, Message: "deadline exceeded"}}
	default:
		return internal()
	}
}

func internal() (int, ErrorResponse) {
	return http.StatusInternalServerError, ErrorResponse{Error: APIError{Code: CodeInternal, Message: "internal error"}}
}

// WriteError пишет ответ с ошибкой и добавляет request_id из X-Request-Id.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	status, resp := ToHTTP(err)

	if status >= http.StatusInternalServerError && err != nil {
		log.From(r.Context()).Error("http_internal_error",
			slog.String("path", r.URL.Path),
			slog.String("err", err.Error()),
		)
	}

	if rid := r.Header.Get("X-Request-Id"); rid != "" {
		resp.Error.RequestID = rid
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

// NotFound — обработчик неизвестных маршрутов в том же формате.
func NotFound(w http.ResponseWriter, r *http.Request) {
	WriteError(w, r, &service.Error{Code: CodeNotFound, Status: http.StatusNotFound, Message: "route not found"})
}

// MethodNotAllowed — обработчик неподдерживаемых методов.
func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	WriteError(w, r, &service.Error{Code: CodeMethodNotAllowed, Status: http.StatusMethodNotAllowed, Message: "method not allowed"})
}
