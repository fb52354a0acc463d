package models

import (
	"time"

	"github.com/google/uuid"
)

// Member — учётная запись сотрудника HR-системы.
type Member struct {
	ID           uuid.UUID  `db:"id"`
	Email        string     `db:"email"`
	PasswordHash string     `db:"password_hash"`
	FirstName    string     `db:"first_name"`
	LastName     string     `db:"last_name"`
	Role         string     `db:"role"`
	IsActive     bool       `db:"is_active"`
	LastLoginAt  *time.Time `db:"last_login_at"`
	CreatedAt    time.Time  `db:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at"`
}

// Sanitized возвращает копию участника без хэша пароля.
// Все ответы сервиса наружу строятся только из такой копии.
func (m *Member) Sanitized() *Member {
	if m == nil {
		return nil
	}

	cp := *m
	cp.PasswordHash = ""

	return &cp
}

// RegisterInput — данные для регистрации нового участника.
type RegisterInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Role      string
}
