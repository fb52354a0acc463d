// service содержит бизнес-логику аутентификации участников HR-системы:
// регистрацию, вход, ротацию refresh-токенов с обнаружением повторного
// использования, выход и управление сессиями.
//
// Основные аспекты:
//   - Service не хранит состояние запроса и безопасен для конкурентного
//     использования при условии, что хранилище потокобезопасно.
//   - Одноразовость refresh-токена обеспечивает хранилище: отзыв старой
//     записи и вставка новой выполняются одной транзакцией с compare-and-set.
//   - Бизнес-ошибки имеют тип *Error; транспорт маппит их по коду.
package service

import (
	"context"
	"time"

	"github.com/pribylovaa/hrm-auth/internal/cache"
	"github.com/pribylovaa/hrm-auth/internal/events"
	"github.com/pribylovaa/hrm-auth/internal/metrics"
	"github.com/pribylovaa/hrm-auth/internal/storage"
	"github.com/pribylovaa/hrm-auth/internal/token"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const defaultStoreTimeout = 3 * time.Second

// PasswordHasher — хэширование и проверка паролей (см. пакет password).
type PasswordHasher interface {
	Hash(ctx context.Context, plain string) (string, error)
	Verify(ctx context.Context, plain, encoded string) bool
}

// Service описывает бизнес-логику auth-сервиса.
type Service struct {
	storage      storage.Storage
	hasher       PasswordHasher
	codec        *token.Codec
	families     cache.FamilyCache // может быть nil, если Redis не сконфигурирован
	events       events.Publisher
	metrics      *metrics.Auth
	storeTimeout time.Duration
	now          func() time.Time
	tracer       trace.Tracer
}

// Option настраивает необязательные зависимости Service.
type Option func(*Service)

// WithFamilyCache подключает кэш отозванных семейств.
func WithFamilyCache(c cache.FamilyCache) Option {
	return func(s *Service) { s.families = c }
}

// WithPublisher подключает публикацию событий безопасности.
func WithPublisher(p events.Publisher) Option {
	return func(s *Service) {
		if p != nil {
			s.events = p
		}
	}
}

// WithMetrics подключает счётчики Prometheus.
func WithMetrics(m *metrics.Auth) Option {
	return func(s *Service) { s.metrics = m }
}

// WithStoreTimeout задаёт таймаут операций, которые доводятся до конца
// даже после отмены запроса (ротация, отзыв семейства).
func WithStoreTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.storeTimeout = d
		}
	}
}

// WithClock подменяет источник времени (для тестов).
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// New создаёт новый экземпляр Service.
func New(st storage.Storage, hasher PasswordHasher, codec *token.Codec, opts ...Option) *Service {
	s := &Service{
		storage:      st,
		hasher:       hasher,
		codec:        codec,
		events:       events.Nop{},
		storeTimeout: defaultStoreTimeout,
		now:          time.Now,
		tracer:       otel.Tracer("github.com/pribylovaa/hrm-auth/internal/service"),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// detached возвращает контекст, не зависящий от отмены запроса,
// но ограниченный таймаутом хранилища.
func (s *Service) detached(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), s.storeTimeout)
}
