package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pribylovaa/hrm-auth/internal/models"
	"github.com/pribylovaa/hrm-auth/internal/storage"
)

const refreshColumns = `id, member_id, token_hash, token_family, user_agent, ip_address,
		issued_at, expires_at, is_revoked, revoked_at`

const insertRefresh = `
	INSERT INTO refresh_tokens(member_id, token_hash, token_family, user_agent, ip_address,
		issued_at, expires_at, is_revoked)
	VALUES ($1, $2, $3, $4, $5, $6, $7, FALSE)
	RETURNING id
`

// inserter — общий интерфейс пула и транзакции для вставки записи.
type inserter interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func insertRefreshToken(ctx context.Context, q inserter, token *models.RefreshToken) (int64, error) {
	var id int64
	err := q.QueryRow(ctx, insertRefresh,
		token.MemberID,
		token.TokenHash,
		token.TokenFamily,
		token.UserAgent,
		token.IPAddress,
		token.IssuedAt,
		token.ExpiresAt,
	).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return 0, storage.ErrAlreadyExists
		}

		return 0, err
	}

	return id, nil
}

// SaveRefreshToken сохраняет новый refresh-токен в БД.
func (s *Storage) SaveRefreshToken(ctx context.Context, token *models.RefreshToken) (int64, error) {
	const op = "storage.postgres.SaveRefreshToken"

	id, err := insertRefreshToken(ctx, s.db, token)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	token.ID = id

	return id, nil
}

// RefreshTokenByMemberAndHash находит неотозванный refresh-токен участника по хэшу.
// Срок действия не проверяется: это делает сервис.
func (s *Storage) RefreshTokenByMemberAndHash(ctx context.Context, memberID uuid.UUID, hash string) (*models.RefreshToken, error) {
	const op = "storage.postgres.RefreshTokenByMemberAndHash"

	query := `SELECT ` + refreshColumns + ` FROM refresh_tokens
		WHERE member_id = $1 AND token_hash = $2 AND is_revoked = FALSE`

	return s.getRefreshToken(ctx, op, query, memberID, hash)
}

// RefreshTokenByHash находит refresh-токен по хэшу в любом состоянии.
func (s *Storage) RefreshTokenByHash(ctx context.Context, hash string) (*models.RefreshToken, error) {
	const op = "storage.postgres.RefreshTokenByHash"

	query := `SELECT ` + refreshColumns + ` FROM refresh_tokens WHERE token_hash = $1`

	return s.getRefreshToken(ctx, op, query, hash)
}

func (s *Storage) getRefreshToken(ctx context.Context, op, query string, args ...any) (*models.RefreshToken, error) {
	var token models.RefreshToken
	if err := pgxscan.Get(ctx, s.db, &token, query, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &token, nil
}

// HasActiveFamily сообщает, осталась ли в семействе неотозванная запись.
func (s *Storage) HasActiveFamily(ctx context.Context, memberID uuid.UUID, family string) (bool, error) {
	const op = "storage.postgres.HasActiveFamily"

	query := `
		SELECT EXISTS (
			SELECT 1 FROM refresh_tokens
			WHERE member_id = $1 AND token_family = $2 AND is_revoked = FALSE
		)
	`

	var exists bool
	if err := s.db.QueryRow(ctx, query, memberID, family).Scan(&exists); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	return exists, nil
}

// RevokeRefreshToken помечает токен отозванным, если он ещё активен.
// Возвращает false, если запись уже отозвана или отсутствует.
func (s *Storage) RevokeRefreshToken(ctx context.Context, id int64) (bool, error) {
	const op = "storage.postgres.RevokeRefreshToken"

	return s.revokeOne(ctx, op, `
		UPDATE refresh_tokens
		SET is_revoked = TRUE, revoked_at = now()
		WHERE id = $1 AND is_revoked = FALSE
	`, id)
}

// RevokeRefreshTokenByHash отзывает токен по хэшу без проверки владельца.
func (s *Storage) RevokeRefreshTokenByHash(ctx context.Context, hash string) (bool, error) {
	const op = "storage.postgres.RevokeRefreshTokenByHash"

	return s.revokeOne(ctx, op, `
		UPDATE refresh_tokens
		SET is_revoked = TRUE, revoked_at = now()
		WHERE token_hash = $1 AND is_revoked = FALSE
	`, hash)
}

// RevokeMemberRefreshToken отзывает токен, только если он принадлежит участнику.
func (s *Storage) RevokeMemberRefreshToken(ctx context.Context, memberID uuid.UUID, id int64) (bool, error) {
	const op = "storage.postgres.RevokeMemberRefreshToken"

	return s.revokeOne(ctx, op, `
		UPDATE refresh_tokens
		SET is_revoked = TRUE, revoked_at = now()
		WHERE id = $1 AND member_id = $2 AND is_revoked = FALSE
	`, id, memberID)
}

func (s *Storage) revokeOne(ctx context.Context, op, query string, args ...any) (bool, error) {
	tag, err := s.db.Exec(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	return tag.RowsAffected() > 0, nil
}

// RevokeFamily отзывает все активные записи семейства.
func (s *Storage) RevokeFamily(ctx context.Context, memberID uuid.UUID, family string) (int64, error) {
	const op = "storage.postgres.RevokeFamily"

	tag, err := s.db.Exec(ctx, `
		UPDATE refresh_tokens
		SET is_revoked = TRUE, revoked_at = now()
		WHERE member_id = $1 AND token_family = $2 AND is_revoked = FALSE
	`, memberID, family)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return tag.RowsAffected(), nil
}

// RevokeAllForMember отзывает все активные записи участника во всех семействах.
func (s *Storage) RevokeAllForMember(ctx context.Context, memberID uuid.UUID) (int64, error) {
	const op = "storage.postgres.RevokeAllForMember"

	tag, err := s.db.Exec(ctx, `
		UPDATE refresh_tokens
		SET is_revoked = TRUE, revoked_at = now()
		WHERE member_id = $1 AND is_revoked = FALSE
	`, memberID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return tag.RowsAffected(), nil
}

// ActiveRefreshTokens возвращает действующие записи участника, новые первыми.
func (s *Storage) ActiveRefreshTokens(ctx context.Context, memberID uuid.UUID, now time.Time) ([]models.RefreshToken, error) {
	const op = "storage.postgres.ActiveRefreshTokens"

	query := `SELECT ` + refreshColumns + ` FROM refresh_tokens
		WHERE member_id = $1 AND is_revoked = FALSE AND expires_at > $2
		ORDER BY issued_at DESC, id DESC`

	tokens := make([]models.RefreshToken, 0)
	if err := pgxscan.Select(ctx, s.db, &tokens, query, memberID, now); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return tokens, nil
}

// RotateRefreshToken отзывает oldID и сохраняет next в одной транзакции.
// UPDATE берёт блокировку строки, поэтому из двух одновременных ротаций
// одного токена успешна только одна; вторая получает storage.ErrRevoked.
func (s *Storage) RotateRefreshToken(ctx context.Context, oldID int64, next *models.RefreshToken) (int64, error) {
	const op = "storage.postgres.RotateRefreshToken"

	var id int64
	err := pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE refresh_tokens
			SET is_revoked = TRUE, revoked_at = now()
			WHERE id = $1 AND is_revoked = FALSE
		`, oldID)
		if err != nil {
			return err
		}

		if tag.RowsAffected() == 0 {
			return storage.ErrRevoked
		}

		id, err = insertRefreshToken(ctx, tx, next)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	next.ID = id

	return id, nil
}

// DeleteExpiredTokens удаляет все просроченные токены.
func (s *Storage) DeleteExpiredTokens(ctx context.Context, now time.Time) (int64, error) {
	const op = "storage.postgres.DeleteExpiredTokens"

	query := `
        DELETE FROM refresh_tokens
        WHERE expires_at <= $1
    `

	tag, err := s.db.Exec(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return tag.RowsAffected(), nil
}
