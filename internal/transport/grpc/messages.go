package grpc

import "time"

type RegisterRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type LogoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type RevokeSessionRequest struct {
	SessionID int64 `json:"session_id"`
}

type VerifyTokenRequest struct {
	AccessToken string `json:"access_token"`
}

// Empty — запрос без полей; участник определяется по access-токену в metadata.
type Empty struct{}

type Member struct {
	ID          string     `json:"id"`
	Email       string     `json:"email"`
	FirstName   string     `json:"first_name,omitempty"`
	LastName    string     `json:"last_name,omitempty"`
	Role        string     `json:"role"`
	IsActive    bool       `json:"is_active"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

type AuthResponse struct {
	Member           Member    `json:"member"`
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	TokenFamily      string    `json:"token_family"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

type Session struct {
	ID          int64     `json:"id"`
	UserAgent   string    `json:"user_agent"`
	IPAddress   string    `json:"ip_address"`
	IssuedAt    time.Time `json:"issued_at"`
	ExpiresAt   time.Time `json:"expires_at"`
	TokenFamily string    `json:"token_family"`
}

type SessionsResponse struct {
	Sessions []Session `json:"sessions"`
}

type SuccessResponse struct {
	Success bool `json:"success"`
}

// VerifyTokenResponse: невалидный токен даёт Valid=false без RPC-ошибки.
type VerifyTokenResponse struct {
	Valid       bool      `json:"valid"`
	MemberID    string    `json:"member_id,omitempty"`
	Email       string    `json:"email,omitempty"`
	TokenFamily string    `json:"token_family,omitempty"`
	ExpiresAt   time.Time `json:"expires_at,omitempty"`
}
