package service

import (
	"errors"
	"net/http"
)

// Error — бизнес-ошибка сервиса с машинно-читаемым кодом и HTTP-статусом.
// Транспорт достаёт её через errors.As и отдаёт клиенту Code и Message;
// ошибки хранилища сюда не попадают и наружу уходят как INTERNAL.
type Error struct {
	Code    string
	Status  int
	Message string
}

func (e *Error) Error() string {
	return e.Code + ": " + e.Message
}

// Is сравнивает ошибки по коду, поэтому errors.Is(err, ErrValidationFailed)
// срабатывает и для ошибок валидации с уточнённым сообщением.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}

	return e.Code == t.Code
}

// Коды ошибок.
const (
	CodeEmailExists        = "EMAIL_EXISTS"
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeAccountInactive    = "ACCOUNT_INACTIVE"
	CodeTokenExpired       = "TOKEN_EXPIRED"
	CodeInvalidToken       = "INVALID_TOKEN"
	CodeTokenRevoked       = "TOKEN_REVOKED"
	CodeInvalidMember      = "INVALID_MEMBER"
	CodeTokenReuseDetected = "TOKEN_REUSE_DETECTED"
	CodeValidationFailed   = "VALIDATION_FAILED"
	CodeSessionNotFound    = "SESSION_NOT_FOUND"
)

var (
	// ErrEmailExists — участник с таким email уже зарегистрирован.
	ErrEmailExists = &Error{Code: CodeEmailExists, Status: http.StatusConflict, Message: "email already registered"}

	// ErrInvalidCredentials — неверная пара email/пароль или участник не найден.
	// Оба случая неразличимы снаружи.
	ErrInvalidCredentials = &Error{Code: CodeInvalidCredentials, Status: http.StatusUnauthorized, Message: "invalid email or password"}

	// ErrAccountInactive — учётная запись заблокирована.
	ErrAccountInactive = &Error{Code: CodeAccountInactive, Status: http.StatusForbidden, Message: "account is inactive"}

	// ErrTokenExpired — срок действия refresh-токена истёк.
	ErrTokenExpired = &Error{Code: CodeTokenExpired, Status: http.StatusUnauthorized, Message: "token expired"}

	// ErrInvalidToken — токен повреждён, подделан или неизвестен.
	ErrInvalidToken = &Error{Code: CodeInvalidToken, Status: http.StatusUnauthorized, Message: "invalid token"}

	// ErrTokenRevoked — токен отозван (выход, ротация или компрометация семейства).
	ErrTokenRevoked = &Error{Code: CodeTokenRevoked, Status: http.StatusUnauthorized, Message: "token revoked"}

	// ErrInvalidMember — владелец токена удалён или заблокирован.
	ErrInvalidMember = &Error{Code: CodeInvalidMember, Status: http.StatusUnauthorized, Message: "member not found or inactive"}

	// ErrTokenReuseDetected — предъявлен уже использованный refresh-токен;
	// всё семейство отозвано, нужен повторный вход.
	ErrTokenReuseDetected = &Error{Code: CodeTokenReuseDetected, Status: http.StatusUnauthorized, Message: "refresh token reuse detected, please sign in again"}

	// ErrValidationFailed — входные данные не прошли проверку.
	ErrValidationFailed = &Error{Code: CodeValidationFailed, Status: http.StatusBadRequest, Message: "validation failed"}

	// ErrSessionNotFound — сессия не найдена среди активных сессий участника.
	ErrSessionNotFound = &Error{Code: CodeSessionNotFound, Status: http.StatusNotFound, Message: "session not found"}
)

// validationError возвращает VALIDATION_FAILED с уточнённым сообщением.
func validationError(msg string) *Error {
	return &Error{Code: CodeValidationFailed, Status: http.StatusBadRequest, Message: msg}
}

// ResultCode возвращает код ошибки для метрик и логов: "ok", код *Error или "INTERNAL".
func ResultCode(err error) string {
	if err == nil {
		return "ok"
	}

	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}

	return "INTERNAL"
}
