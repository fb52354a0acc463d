// storage описывает контракты хранилищ участников и refresh-токенов.
// Реализация на PostgreSQL находится в storage/postgres.
package storage

//go:generate mockgen -source=storage.go -destination=../../mocks/mock_storage.go -package=mocks

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/pribylovaa/hrm-auth/internal/models"
)

var (
	// ErrNotFound — запись не найдена (участник/токен).
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists — нарушение уникальности (email/хэш refresh-токена).
	ErrAlreadyExists = errors.New("already exists")
	// ErrRevoked — токен уже отозван: compare-and-set отзыва проиграл.
	ErrRevoked = errors.New("revoked")
)

// MemberStorage выполняет операции над участниками.
type MemberStorage interface {
	// SaveMember создаёт нового участника.
	SaveMember(ctx context.Context, member *models.Member) error
	// MemberByEmail находит участника по email без учёта регистра.
	MemberByEmail(ctx context.Context, email string) (*models.Member, error)
	// MemberByID находит участника по ID.
	MemberByID(ctx context.Context, id uuid.UUID) (*models.Member, error)
	// UpdateLastLogin фиксирует время последнего входа.
	UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error
	// SetMemberActive включает или блокирует учётную запись.
	SetMemberActive(ctx context.Context, id uuid.UUID, active bool) error
}

// RefreshTokenStorage выполняет операции над записями refresh-токенов.
// Отозванная запись никогда не становится снова активной.
type RefreshTokenStorage interface {
	// SaveRefreshToken сохраняет запись и возвращает присвоенный ID.
	SaveRefreshToken(ctx context.Context, token *models.RefreshToken) (int64, error)
	// RefreshTokenByMemberAndHash ищет неотозванную запись участника по хэшу.
	RefreshTokenByMemberAndHash(ctx context.Context, memberID uuid.UUID, hash string) (*models.RefreshToken, error)
	// RefreshTokenByHash ищет запись по хэшу в любом состоянии.
	RefreshTokenByHash(ctx context.Context, hash string) (*models.RefreshToken, error)
	// HasActiveFamily сообщает, есть ли в семействе неотозванная запись.
	HasActiveFamily(ctx context.Context, memberID uuid.UUID, family string) (bool, error)
	// RevokeRefreshToken отзывает запись, если она ещё активна (compare-and-set).
	RevokeRefreshToken(ctx context.Context, id int64) (bool, error)
	// RevokeRefreshTokenByHash отзывает запись по хэшу; false — отзывать было нечего.
	RevokeRefreshTokenByHash(ctx context.Context, hash string) (bool, error)
	// RevokeMemberRefreshToken отзывает запись, только если она принадлежит участнику.
	RevokeMemberRefreshToken(ctx context.Context, memberID uuid.UUID, id int64) (bool, error)
	// RevokeFamily отзывает все активные записи семейства и возвращает их число.
	RevokeFamily(ctx context.Context, memberID uuid.UUID, family string) (int64, error)
	// RevokeAllForMember отзывает все активные записи участника.
	RevokeAllForMember(ctx context.Context, memberID uuid.UUID) (int64, error)
	// ActiveRefreshTokens возвращает неотозванные и непросроченные записи, новые первыми.
	ActiveRefreshTokens(ctx context.Context, memberID uuid.UUID, now time.Time) ([]models.RefreshToken, error)
	// RotateRefreshToken в одной транзакции отзывает oldID и сохраняет next.
	// Если oldID уже отозван, возвращает ErrRevoked и ничего не меняет.
	RotateRefreshToken(ctx context.Context, oldID int64, next *models.RefreshToken) (int64, error)
	// DeleteExpiredTokens удаляет записи, истёкшие к моменту now.
	DeleteExpiredTokens(ctx context.Context, now time.Time) (int64, error)
}

// Storage задаёт контракт работы с БД.
type Storage interface {
	MemberStorage
	RefreshTokenStorage
	Ping(ctx context.Context) error
	Close()
}
