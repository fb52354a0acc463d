package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pribylovaa/hrm-auth/internal/models"
	"github.com/pribylovaa/hrm-auth/internal/storage"
)

const memberColumns = `id, email, password_hash, first_name, last_name, role,
		is_active, last_login_at, created_at, updated_at`

// SaveMember создает нового участника в БД.
func (s *Storage) SaveMember(ctx context.Context, member *models.Member) error {
	const op = "storage.postgres.SaveMember"

	query := `
		INSERT INTO members(id, email, password_hash, first_name, last_name, role,
			is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := s.db.Exec(ctx, query,
		member.ID,
		member.Email,
		member.PasswordHash,
		member.FirstName,
		member.LastName,
		member.Role,
		member.IsActive,
		member.CreatedAt,
		member.UpdatedAt,
	)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return fmt.Errorf("%s: %w", op, storage.ErrAlreadyExists)
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// MemberByEmail находит участника по email без учёта регистра.
func (s *Storage) MemberByEmail(ctx context.Context, email string) (*models.Member, error) {
	const op = "storage.postgres.MemberByEmail"

	query := `SELECT ` + memberColumns + ` FROM members WHERE lower(email) = lower($1)`

	var member models.Member
	if err := pgxscan.Get(ctx, s.db, &member, query, email); err != nil {
		if pgxscan.NotFound(err) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &member, nil
}

// MemberByID находит участника по ID.
func (s *Storage) MemberByID(ctx context.Context, id uuid.UUID) (*models.Member, error) {
	const op = "storage.postgres.MemberByID"

	query := `SELECT ` + memberColumns + ` FROM members WHERE id = $1`

	var member models.Member
	if err := pgxscan.Get(ctx, s.db, &member, query, id); err != nil {
		if pgxscan.NotFound(err) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &member, nil
}

// UpdateLastLogin фиксирует время последнего входа.
func (s *Storage) UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	const op = "storage.postgres.UpdateLastLogin"

	tag, err := s.db.Exec(ctx, `UPDATE members SET last_login_at = $2, updated_at = $2 WHERE id = $1`, id, at)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	return nil
}

// SetMemberActive включает или блокирует учётную запись.
func (s *Storage) SetMemberActive(ctx context.Context, id uuid.UUID, active bool) error {
	const op = "storage.postgres.SetMemberActive"

	tag, err := s.db.Exec(ctx, `UPDATE members SET is_active = $2, updated_at = now() WHERE id = $1`, id, active)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	return nil
}
