package models

import "time"

// Session — активная сессия (устройство) участника, построенная
// по неотозванному и непросроченному refresh-токену.
type Session struct {
	ID          int64
	UserAgent   string
	IPAddress   string
	IssuedAt    time.Time
	ExpiresAt   time.Time
	TokenFamily string
}

// SessionFromToken строит Session из записи refresh-токена.
func SessionFromToken(t RefreshToken) Session {
	return Session{
		ID:          t.ID,
		UserAgent:   t.UserAgent,
		IPAddress:   t.IPAddress,
		IssuedAt:    t.IssuedAt,
		ExpiresAt:   t.ExpiresAt,
		TokenFamily: t.TokenFamily,
	}
}
