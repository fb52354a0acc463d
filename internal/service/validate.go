package service

import (
	"net/mail"
	"strings"
	"unicode"

	"github.com/pribylovaa/hrm-auth/internal/password"
)

// normalizeEmail обрезает пробелы и приводит email к нижнему регистру.
// Email — ключ поиска без учёта регистра.
func normalizeEmail(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// validateEmail проверяет базовый формат email и возвращает нормализованное значение.
func validateEmail(raw string) (string, error) {
	email := normalizeEmail(raw)
	if email == "" {
		return "", validationError("email is required")
	}

	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", validationError("invalid email format")
	}

	return email, nil
}

// validatePassword проверяет минимальные требования к паролю:
// длина от 8 символов и до 72 байт, хотя бы одна строчная, заглавная, цифра и спецсимвол.
func validatePassword(pw string) error {
	if pw == "" {
		return validationError("password is required")
	}

	if len([]rune(pw)) < 8 {
		return validationError("password must be at least 8 characters")
	}

	if len(pw) > password.MaxBytes {
		return validationError("password is too long")
	}

	var hasLower, hasUpper, hasDigit, hasSpecial bool
	for _, r := range pw {
		switch {
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			hasSpecial = true
		}
	}

	if !(hasLower && hasUpper && hasDigit && hasSpecial) {
		return validationError("password must contain lower and upper case letters, a digit and a special character")
	}

	return nil
}

// validateName ограничивает длину имени и фамилии.
func validateName(field, v string) error {
	if len([]rune(v)) > 100 {
		return validationError(field + " is too long")
	}

	return nil
}
