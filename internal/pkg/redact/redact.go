// redact маскирует чувствительные значения перед записью в лог.
package redact

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Email оставляет первые две руны локальной части и домен: "an***@x.com".
// Короткая локальная часть и некорректный адрес скрываются целиком.
func Email(s string) string {
	parts := strings.Split(s, "@")
	if len(parts) != 2 {
		return "***"
	}

	local, domain := []rune(parts[0]), parts[1]
	if len(local) > 2 {
		return string(local[:2]) + "***@" + domain
	}

	return "***@" + domain
}

// Token возвращает короткий отпечаток токена: по нему можно сопоставить
// записи лога, но нельзя восстановить сам токен.
func Token(raw string) string {
	if raw == "" {
		return ""
	}

	sum := sha256.Sum256([]byte(raw))
	return "tok:" + hex.EncodeToString(sum[:4])
}

// Authorization маскирует значение заголовка Authorization, сохраняя схему.
func Authorization(h string) string {
	if h == "" {
		return ""
	}

	scheme, cred, ok := strings.Cut(h, " ")
	if !ok {
		return "[REDACTED]"
	}

	return scheme + " " + Token(strings.TrimSpace(cred))
}
