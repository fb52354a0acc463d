// events публикует события безопасности (например, обнаружение повторного
// использования refresh-токена) для внешних подписчиков: аудита, уведомлений.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

// TypeTokenReuseDetected — повторно предъявлен уже использованный refresh-токен.
const TypeTokenReuseDetected = "token_reuse_detected"

// SecurityEvent — событие безопасности в формате JSON.
type SecurityEvent struct {
	Type        string    `json:"type"`
	MemberID    string    `json:"memberId"`
	TokenFamily string    `json:"tokenFamily"`
	Revoked     int64     `json:"revoked"`
	UserAgent   string    `json:"userAgent,omitempty"`
	IPAddress   string    `json:"ipAddress,omitempty"`
	OccurredAt  time.Time `json:"occurredAt"`
}

// Publisher отправляет события безопасности.
type Publisher interface {
	Publish(ctx context.Context, ev SecurityEvent) error
}

// Nop — Publisher, который ничего не отправляет (NATS не сконфигурирован).
type Nop struct{}

func (Nop) Publish(context.Context, SecurityEvent) error { return nil }

// conn — часть *nats.Conn, нужная публикатору.
type conn interface {
	Publish(subj string, data []byte) error
}

// NATSPublisher публикует события в subject NATS.
type NATSPublisher struct {
	conn    conn
	nc      *nats.Conn
	subject string
}

// Connect подключается к NATS и возвращает публикатор.
func Connect(url, subject string, opts ...nats.Option) (*NATSPublisher, error) {
	const op = "events.Connect"

	if subject == "" {
		return nil, fmt.Errorf("%s: %w", op, errors.New("empty subject"))
	}

	opts = append([]nats.Option{nats.Name("hrm-auth")}, opts...)
	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &NATSPublisher{conn: nc, nc: nc, subject: subject}, nil
}

// Publish кодирует событие в JSON и публикует его.
func (p *NATSPublisher) Publish(ctx context.Context, ev SecurityEvent) error {
	const op = "events.NATSPublisher.Publish"

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}

	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := p.conn.Publish(p.subject, data); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// Close дожидается отправки буфера и закрывает соединение.
func (p *NATSPublisher) Close() {
	if p == nil || p.nc == nil {
		return
	}

	if err := p.nc.Drain(); err != nil {
		p.nc.Close()
	}
}
