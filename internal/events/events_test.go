package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

type captureConn struct {
	subject string
	data    []byte
	err     error
}

func (c *captureConn) Publish(subj string, data []byte) error {
	c.subject, c.data = subj, data
	return c.err
}

func TestNATSPublisher_Publish_EncodesJSON(t *testing.T) {
	t.Parallel()

	cc := &captureConn{}
	p := &NATSPublisher{conn: cc, subject: "hrm.auth.security"}

	err := p.Publish(context.Background(), SecurityEvent{
		Type:        TypeTokenReuseDetected,
		MemberID:    "m-1",
		TokenFamily: "fam-1",
		Revoked:     2,
	})
	require.NoError(t, err)
	require.Equal(t, "hrm.auth.security", cc.subject)

	var got map[string]any
	require.NoError(t, json.Unmarshal(cc.data, &got))
	require.Equal(t, "token_reuse_detected", got["type"])
	require.Equal(t, "m-1", got["memberId"])
	require.Equal(t, "fam-1", got["tokenFamily"])
	require.EqualValues(t, 2, got["revoked"])
	require.NotEmpty(t, got["occurredAt"])
	require.NotContains(t, got, "userAgent")
}

func TestNATSPublisher_Publish_Errors(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	p := &NATSPublisher{conn: &captureConn{err: boom}, subject: "s"}
	require.ErrorIs(t, p.Publish(context.Background(), SecurityEvent{}), boom)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, p.Publish(ctx, SecurityEvent{}), context.Canceled)
}

func TestNop(t *testing.T) {
	t.Parallel()
	require.NoError(t, Nop{}.Publish(context.Background(), SecurityEvent{}))
}

func TestConnect_EmptySubject(t *testing.T) {
	t.Parallel()
	_, err := Connect("nats://127.0.0.1:1", "")
	require.Error(t, err)
}

// TestIntegration_NATSPublisher — публикация в настоящий NATS (testcontainers).
func TestIntegration_NATSPublisher(t *testing.T) {
	if os.Getenv("GO_TEST_INTEGRATION") == "" {
		t.Skip("integration tests are disabled (set GO_TEST_INTEGRATION=1)")
	}

	ctx := context.Background()
	c, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: tc.ContainerRequest{
			Image:        "nats:2-alpine",
			ExposedPorts: []string{"4222/tcp"},
			WaitingFor:   wait.ForListeningPort("4222/tcp").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	defer func() { _ = c.Terminate(context.Background()) }()

	host, _ := c.Host(ctx)
	port, _ := c.MappedPort(ctx, "4222/tcp")
	url := fmt.Sprintf("nats://%s:%s", host, port.Port())

	sub, err := nats.Connect(url)
	require.NoError(t, err)
	defer sub.Close()

	msgs := make(chan *nats.Msg, 1)
	_, err = sub.ChanSubscribe("hrm.auth.security", msgs)
	require.NoError(t, err)
	require.NoError(t, sub.Flush())

	p, err := Connect(url, "hrm.auth.security")
	require.NoError(t, err)
	defer p.Close()

	require.NoError(t, p.Publish(ctx, SecurityEvent{Type: TypeTokenReuseDetected, MemberID: "m"}))

	select {
	case msg := <-msgs:
		var ev SecurityEvent
		require.NoError(t, json.Unmarshal(msg.Data, &ev))
		require.Equal(t, TypeTokenReuseDetected, ev.Type)
		require.Equal(t, "m", ev.MemberID)
	case <-time.After(5 * time.Second):
		t.Fatal("event was not delivered")
	}
}
