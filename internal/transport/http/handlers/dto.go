package handlers

import (
	"time"

	"github.com/pribylovaa/hrm-auth/internal/models"
)

type registerRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type verifyRequest struct {
	AccessToken string `json:"access_token"`
}

type memberResponse struct {
	ID          string     `json:"id"`
	Email       string     `json:"email"`
	FirstName   string     `json:"first_name,omitempty"`
	LastName    string     `json:"last_name,omitempty"`
	Role        string     `json:"role"`
	IsActive    bool       `json:"is_active"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

type authResponse struct {
	Member           memberResponse `json:"member"`
	AccessToken      string         `json:"access_token"`
	RefreshToken     string         `json:"refresh_token"`
	TokenFamily      string         `json:"token_family"`
	AccessExpiresAt  time.Time      `json:"access_expires_at"`
	RefreshExpiresAt time.Time      `json:"refresh_expires_at"`
}

type sessionResponse struct {
	ID          int64     `json:"id"`
	UserAgent   string    `json:"user_agent"`
	IPAddress   string    `json:"ip_address"`
	IssuedAt    time.Time `json:"issued_at"`
	ExpiresAt   time.Time `json:"expires_at"`
	TokenFamily string    `json:"token_family"`
	Current     bool      `json:"current"`
}

type verifyResponse struct {
	Valid       bool      `json:"valid"`
	MemberID    string    `json:"member_id"`
	Email       string    `json:"email"`
	TokenFamily string    `json:"token_family"`
	ExpiresAt   time.Time `json:"expires_at"`
}

type successResponse struct {
	Success bool `json:"success"`
}

func memberFromModel(m *models.Member) memberResponse {
	if m == nil {
		return memberResponse{}
	}

	return memberResponse{
		ID:          m.ID.String(),
		Email:       m.Email,
		FirstName:   m.FirstName,
		LastName:    m.LastName,
		Role:        m.Role,
		IsActive:    m.IsActive,
		LastLoginAt: m.LastLoginAt,
		CreatedAt:   m.CreatedAt,
	}
}

func authFromModel(res *models.AuthResult) authResponse {
	return authResponse{
		Member:           memberFromModel(res.Member),
		AccessToken:      res.AccessToken,
		RefreshToken:     res.RefreshToken,
		TokenFamily:      res.TokenFamily,
		AccessExpiresAt:  res.AccessExpiresAt,
		RefreshExpiresAt: res.RefreshExpiresAt,
	}
}
