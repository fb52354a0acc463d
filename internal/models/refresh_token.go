package models

import (
	"time"

	"github.com/google/uuid"
)

// RefreshToken — запись о выданном refresh-токене.
// Сырой токен не хранится: только его хэш (TokenHash).
type RefreshToken struct {
	ID          int64      `db:"id"`
	MemberID    uuid.UUID  `db:"member_id"`
	TokenHash   string     `db:"token_hash"`
	TokenFamily string     `db:"token_family"`
	UserAgent   string     `db:"user_agent"`
	IPAddress   string     `db:"ip_address"`
	IssuedAt    time.Time  `db:"issued_at"`
	ExpiresAt   time.Time  `db:"expires_at"`
	IsRevoked   bool       `db:"is_revoked"`
	RevokedAt   *time.Time `db:"revoked_at"`
}

// ActiveAt сообщает, действителен ли токен на момент now.
func (t *RefreshToken) ActiveAt(now time.Time) bool {
	return !t.IsRevoked && now.Before(t.ExpiresAt)
}
