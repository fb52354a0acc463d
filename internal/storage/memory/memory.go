// memory — потокобезопасная реализация storage.Storage в памяти.
// Используется в тестах сервиса, транспорта и authctl.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pribylovaa/hrm-auth/internal/models"
	"github.com/pribylovaa/hrm-auth/internal/storage"
)

// Storage хранит участников и refresh-токены в map под одним мьютексом.
// Семантика совпадает с postgres.Storage, включая compare-and-set при ротации.
type Storage struct {
	mu      sync.Mutex
	members map[uuid.UUID]models.Member
	tokens  map[int64]models.RefreshToken
	nextID  int64
	now     func() time.Time
}

// New создаёт пустое хранилище.
func New() *Storage {
	return &Storage{
		members: make(map[uuid.UUID]models.Member),
		tokens:  make(map[int64]models.RefreshToken),
		now:     time.Now,
	}
}

var _ storage.Storage = (*Storage)(nil)

// Ping проверяет только отмену контекста.
func (s *Storage) Ping(ctx context.Context) error { return ctx.Err() }

// Close ничего не делает.
func (s *Storage) Close() {}

// SaveMember добавляет участника; занятый email даёт storage.ErrAlreadyExists.
func (s *Storage) SaveMember(ctx context.Context, member *models.Member) error {
	const op = "storage.memory.SaveMember"

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.members[member.ID]; ok {
		return fmt.Errorf("%s: %w", op, storage.ErrAlreadyExists)
	}
	for _, m := range s.members {
		if strings.EqualFold(m.Email, member.Email) {
			return fmt.Errorf("%s: %w", op, storage.ErrAlreadyExists)
		}
	}

	s.members[member.ID] = *member

	return nil
}

// MemberByEmail ищет участника по нормализованному email.
func (s *Storage) MemberByEmail(ctx context.Context, email string) (*models.Member, error) {
	const op = "storage.memory.MemberByEmail"

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, m := range s.members {
		if strings.EqualFold(m.Email, email) {
			cp := m
			return &cp, nil
		}
	}

	return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
}

func (s *Storage) MemberByID(ctx context.Context, id uuid.UUID) (*models.Member, error) {
	const op = "storage.memory.MemberByID"

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.members[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	return &m, nil
}

func (s *Storage) UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	return s.updateMember(ctx, "storage.memory.UpdateLastLogin", id, func(m *models.Member) {
		m.LastLoginAt = &at
		m.UpdatedAt = at
	})
}

// SetMemberActive меняет флаг активности участника.
func (s *Storage) SetMemberActive(ctx context.Context, id uuid.UUID, active bool) error {
	return s.updateMember(ctx, "storage.memory.SetMemberActive", id, func(m *models.Member) {
		m.IsActive = active
		m.UpdatedAt = s.now().UTC()
	})
}

func (s *Storage) updateMember(ctx context.Context, op string, id uuid.UUID, fn func(*models.Member)) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.members[id]
	if !ok {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	fn(&m)
	s.members[id] = m

	return nil
}

// SaveRefreshToken сохраняет запись и возвращает её id.
func (s *Storage) SaveRefreshToken(ctx context.Context, t *models.RefreshToken) (int64, error) {
	const op = "storage.memory.SaveRefreshToken"

	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.insertLocked(t)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return id, nil
}

func (s *Storage) insertLocked(t *models.RefreshToken) (int64, error) {
	for _, existing := range s.tokens {
		if existing.TokenHash == t.TokenHash {
			return 0, storage.ErrAlreadyExists
		}
	}

	s.nextID++
	rec := *t
	rec.ID = s.nextID
	rec.IsRevoked = false
	rec.RevokedAt = nil
	s.tokens[rec.ID] = rec
	t.ID = rec.ID

	return rec.ID, nil
}

// RefreshTokenByMemberAndHash возвращает только неотозванную запись участника.
func (s *Storage) RefreshTokenByMemberAndHash(ctx context.Context, memberID uuid.UUID, hash string) (*models.RefreshToken, error) {
	return s.findToken(ctx, "storage.memory.RefreshTokenByMemberAndHash", func(t models.RefreshToken) bool {
		return t.MemberID == memberID && t.TokenHash == hash && !t.IsRevoked
	})
}

// RefreshTokenByHash возвращает запись по хэшу независимо от статуса.
func (s *Storage) RefreshTokenByHash(ctx context.Context, hash string) (*models.RefreshToken, error) {
	return s.findToken(ctx, "storage.memory.RefreshTokenByHash", func(t models.RefreshToken) bool {
		return t.TokenHash == hash
	})
}

func (s *Storage) findToken(ctx context.Context, op string, match func(models.RefreshToken) bool) (*models.RefreshToken, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range s.tokens {
		if match(t) {
			cp := t
			return &cp, nil
		}
	}

	return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
}

// HasActiveFamily сообщает, есть ли в семействе неотозванная запись.
func (s *Storage) HasActiveFamily(ctx context.Context, memberID uuid.UUID, family string) (bool, error) {
	const op = "storage.memory.HasActiveFamily"

	if err := ctx.Err(); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range s.tokens {
		if t.MemberID == memberID && t.TokenFamily == family && !t.IsRevoked {
			return true, nil
		}
	}

	return false, nil
}

func (s *Storage) RevokeRefreshToken(ctx context.Context, id int64) (bool, error) {
	n, err := s.revokeWhere(ctx, "storage.memory.RevokeRefreshToken", func(t models.RefreshToken) bool {
		return t.ID == id
	})
	return n > 0, err
}

func (s *Storage) RevokeRefreshTokenByHash(ctx context.Context, hash string) (bool, error) {
	n, err := s.revokeWhere(ctx, "storage.memory.RevokeRefreshTokenByHash", func(t models.RefreshToken) bool {
		return t.TokenHash == hash
	})
	return n > 0, err
}

// RevokeMemberRefreshToken отзывает запись, только если она принадлежит участнику.
func (s *Storage) RevokeMemberRefreshToken(ctx context.Context, memberID uuid.UUID, id int64) (bool, error) {
	n, err := s.revokeWhere(ctx, "storage.memory.RevokeMemberRefreshToken", func(t models.RefreshToken) bool {
		return t.ID == id && t.MemberID == memberID
	})
	return n > 0, err
}

// RevokeFamily отзывает все активные записи семейства и возвращает их число.
func (s *Storage) RevokeFamily(ctx context.Context, memberID uuid.UUID, family string) (int64, error) {
	return s.revokeWhere(ctx, "storage.memory.RevokeFamily", func(t models.RefreshToken) bool {
		return t.MemberID == memberID && t.TokenFamily == family
	})
}

func (s *Storage) RevokeAllForMember(ctx context.Context, memberID uuid.UUID) (int64, error) {
	return s.revokeWhere(ctx, "storage.memory.RevokeAllForMember", func(t models.RefreshToken) bool {
		return t.MemberID == memberID
	})
}

func (s *Storage) revokeWhere(ctx context.Context, op string, match func(models.RefreshToken) bool) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.revokeLocked(match), nil
}

func (s *Storage) revokeLocked(match func(models.RefreshToken) bool) int64 {
	now := s.now().UTC()

	var n int64
	for id, t := range s.tokens {
		if t.IsRevoked || !match(t) {
			continue
		}
		t.IsRevoked = true
		t.RevokedAt = &now
		s.tokens[id] = t
		n++
	}

	return n
}

// ActiveRefreshTokens — неотозванные и непросроченные записи, новые первыми.
func (s *Storage) ActiveRefreshTokens(ctx context.Context, memberID uuid.UUID, now time.Time) ([]models.RefreshToken, error) {
	const op = "storage.memory.ActiveRefreshTokens"

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.RefreshToken, 0)
	for _, t := range s.tokens {
		if t.MemberID == memberID && t.ActiveAt(now) {
			out = append(out, t)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].IssuedAt.Equal(out[j].IssuedAt) {
			return out[i].IssuedAt.After(out[j].IssuedAt)
		}
		return out[i].ID > out[j].ID
	})

	return out, nil
}

// RotateRefreshToken атомарно отзывает oldID и вставляет next.
// Уже отозванная старая запись даёт storage.ErrRevoked.
func (s *Storage) RotateRefreshToken(ctx context.Context, oldID int64, next *models.RefreshToken) (int64, error) {
	const op = "storage.memory.RotateRefreshToken"

	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok := s.tokens[oldID]
	if !ok || old.IsRevoked {
		return 0, fmt.Errorf("%s: %w", op, storage.ErrRevoked)
	}

	for _, existing := range s.tokens {
		if existing.TokenHash == next.TokenHash {
			return 0, fmt.Errorf("%s: %w", op, storage.ErrAlreadyExists)
		}
	}

	s.revokeLocked(func(t models.RefreshToken) bool { return t.ID == oldID })

	id, err := s.insertLocked(next)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return id, nil
}

// DeleteExpiredTokens удаляет просроченные записи.
func (s *Storage) DeleteExpiredTokens(ctx context.Context, now time.Time) (int64, error) {
	const op = "storage.memory.DeleteExpiredTokens"

	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for id, t := range s.tokens {
		if !t.ExpiresAt.After(now) {
			delete(s.tokens, id)
			n++
		}
	}

	return n, nil
}
