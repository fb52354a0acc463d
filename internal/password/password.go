// password хэширует и проверяет пароли участников.
//
// Поддерживаются bcrypt и argon2id; формат хэша самоописывающий, поэтому
// Verify определяет алгоритм по префиксу и проверяет хэши, выпущенные при
// любой прежней настройке. Вычисления ограничены семафором, чтобы дорогое
// хэширование не занимало все ядра под нагрузкой.
package password

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"

	"github.com/pribylovaa/hrm-auth/internal/config"
	"golang.org/x/sync/semaphore"
)

const (
	// AlgorithmBcrypt — bcrypt (по умолчанию).
	AlgorithmBcrypt = "bcrypt"
	// AlgorithmArgon2id — argon2id в формате PHC.
	AlgorithmArgon2id = "argon2id"
)

var (
	// ErrUnsupportedAlgorithm — в конфигурации указан неизвестный алгоритм.
	ErrUnsupportedAlgorithm = errors.New("unsupported password algorithm")
	// ErrTooLong — пароль длиннее, чем допускает bcrypt (72 байта).
	ErrTooLong = errors.New("password is too long")
)

// MaxBytes — предельная длина пароля в байтах, общая для всех алгоритмов.
const MaxBytes = 72

// Hasher хэширует пароли выбранным алгоритмом.
// Безопасен для конкурентного использования.
type Hasher struct {
	algorithm string
	bcrypt    bcryptHasher
	argon     argon2Hasher
	sem       *semaphore.Weighted
}

// New создаёт Hasher по конфигурации.
func New(cfg config.PasswordConfig) (*Hasher, error) {
	const op = "password.password.New"

	h := &Hasher{
		algorithm: strings.ToLower(strings.TrimSpace(cfg.Algorithm)),
		bcrypt:    bcryptHasher{cost: cfg.BcryptCost},
		argon: argon2Hasher{
			memory:      cfg.MemoryKB,
			time:        cfg.Time,
			parallelism: cfg.Parallelism,
			saltLength:  16,
			keyLength:   32,
		},
	}

	if h.algorithm == "" {
		h.algorithm = AlgorithmBcrypt
	}

	switch h.algorithm {
	case AlgorithmBcrypt:
		if err := h.bcrypt.validate(); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	case AlgorithmArgon2id:
		if err := h.argon.validate(); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	default:
		return nil, fmt.Errorf("%s: %w: %q", op, ErrUnsupportedAlgorithm, cfg.Algorithm)
	}

	limit := cfg.MaxConcurrent
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}
	h.sem = semaphore.NewWeighted(int64(limit))

	return h, nil
}

// Algorithm возвращает алгоритм, которым выпускаются новые хэши.
func (h *Hasher) Algorithm() string {
	return h.algorithm
}

// Hash возвращает самоописывающий хэш пароля.
// Ожидание свободного слота прерывается отменой ctx.
func (h *Hasher) Hash(ctx context.Context, plain string) (string, error) {
	const op = "password.password.Hash"

	if len(plain) > MaxBytes {
		return "", fmt.Errorf("%s: %w", op, ErrTooLong)
	}

	if err := h.sem.Acquire(ctx, 1); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	defer h.sem.Release(1)

	var (
		encoded string
		err     error
	)

	switch h.algorithm {
	case AlgorithmArgon2id:
		encoded, err = h.argon.hash(plain)
	default:
		encoded, err = h.bcrypt.hash(plain)
	}
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return encoded, nil
}

// Verify сравнивает пароль с хэшем за постоянное время.
// Повреждённый хэш, неизвестный формат и отмена ctx дают false.
func (h *Hasher) Verify(ctx context.Context, plain, encoded string) bool {
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return false
	}
	defer h.sem.Release(1)

	switch {
	case isBcrypt(encoded):
		return h.bcrypt.verify(plain, encoded)
	case strings.HasPrefix(encoded, "$"+AlgorithmArgon2id+"$"):
		return h.argon.verify(plain, encoded)
	default:
		return false
	}
}
