package smtp

import (
	"context"
	"errors"
	"io"
	"mime"
	"mime/quotedprintable"
	"net"
	"net/mail"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/AbhaySingh-33/Job-Portal/pkg/config"
	"github.com/AbhaySingh-33/Job-Portal/pkg/notification"
	"github.com/AbhaySingh-33/Job-Portal/pkg/utils"
)

func relayConfig(port int) config.SMTP {
	return config.SMTP{
		Host:          "127.0.0.1",
		Port:          port,
		User:          "mailer",
		Password:      "secret",
		From:          "HireHeaven <no-reply@hireheaven.dev>",
		Security:      "none",
		PoolSize:      1,
		DialTimeout:   time.Second,
		GreetTimeout:  time.Second,
		SocketTimeout: time.Second,
		SendTimeout:   2 * time.Second,
		VerifyTimeout: time.Second,
	}
}

func newTransport(t *testing.T, cfg config.SMTP, opts ...Option) *Transport {
	t.Helper()

	tr, err := New(cfg, zap.NewNop(), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = tr.Close() })

	return tr
}

func decodeBody(t *testing.T, data string) string {
	t.Helper()

	msg, err := mail.ReadMessage(strings.NewReader(data))
	require.NoError(t, err)

	body, err := io.ReadAll(quotedprintable.NewReader(msg.Body))
	require.NoError(t, err)

	return strings.TrimSpace(string(body))
}

func TestDeliver_RelaysExactEvent(t *testing.T) {
	relay := startRelay(t)
	tr := newTransport(t, relayConfig(relay.port()))

	receipt, err := tr.Deliver(context.Background(), notification.Event{
		To:      "a@x.com",
		Subject: "Verify",
		HTML:    "<p>link</p>",
	})
	require.NoError(t, err)

	assert.True(t, strings.HasSuffix(receipt.MessageID, "@hireheaven.dev>"))
	assert.Equal(t, "250 2.0.0 Ok: queued as ABC123", receipt.Response)

	msgs := relay.received()
	require.Len(t, msgs, 1)
	assert.Equal(t, "no-reply@hireheaven.dev", msgs[0].From)
	assert.Equal(t, []string{"a@x.com"}, msgs[0].To)

	parsed, err := mail.ReadMessage(strings.NewReader(msgs[0].Data))
	require.NoError(t, err)
	assert.Equal(t, "Verify", parsed.Header.Get("Subject"))
	assert.Equal(t, receipt.MessageID, parsed.Header.Get("Message-ID"))
	assert.Equal(t, `"HireHeaven" <no-reply@hireheaven.dev>`, parsed.Header.Get("From"))
	assert.Equal(t, "<p>link</p>", decodeBody(t, msgs[0].Data))
}

func TestDeliver_EncodesNonASCIISubject(t *testing.T) {
	relay := startRelay(t)
	tr := newTransport(t, relayConfig(relay.port()))

	_, err := tr.Deliver(context.Background(), notification.Event{
		To:      "a@x.com",
		Subject: "Статус заявки",
		HTML:    "<p>ok</p>",
	})
	require.NoError(t, err)

	parsed, err := mail.ReadMessage(strings.NewReader(relay.received()[0].Data))
	require.NoError(t, err)

	raw := parsed.Header.Get("Subject")
	assert.True(t, strings.HasPrefix(raw, "=?utf-8?q?"))

	decoded, err := new(mime.WordDecoder).DecodeHeader(raw)
	require.NoError(t, err)
	assert.Equal(t, "Статус заявки", decoded)
}

func TestDeliver_ReusesSession(t *testing.T) {
	relay := startRelay(t)
	tr := newTransport(t, relayConfig(relay.port()))

	for i := 0; i < 3; i++ {
		_, err := tr.Deliver(context.Background(), notification.Event{To: "a@x.com", Subject: "s", HTML: "<p/>"})
		require.NoError(t, err)
	}

	assert.Len(t, relay.received(), 3)
	assert.Equal(t, int32(1), relay.connections.Load())
}

func TestDeliver_RedialsAfterRelayDropsSession(t *testing.T) {
	relay := startRelay(t, func(r *fakeRelay) { r.dropAfter = 1 })
	tr := newTransport(t, relayConfig(relay.port()))

	for i := 0; i < 2; i++ {
		_, err := tr.Deliver(context.Background(), notification.Event{To: "a@x.com", Subject: "s", HTML: "<p/>"})
		require.NoError(t, err)
	}

	assert.Len(t, relay.received(), 2)
	assert.Equal(t, int32(2), relay.connections.Load())
}

func TestDeliver_RelayErrorCarriesCommandAndCode(t *testing.T) {
	relay := startRelay(t, func(r *fakeRelay) { r.rejectRcpt["gone@x.com"] = true })
	tr := newTransport(t, relayConfig(relay.port()))

	_, err := tr.Deliver(context.Background(), notification.Event{To: "gone@x.com", Subject: "s", HTML: "<p/>"})

	var relayErr *RelayError
	require.ErrorAs(t, err, &relayErr)
	assert.Equal(t, "RCPT TO", relayErr.Command)
	assert.Equal(t, 550, relayErr.Code)
	assert.Contains(t, relayErr.Message, "Recipient address rejected")
	assert.False(t, relayErr.Temporary())
	assert.False(t, errors.Is(err, ErrTimeout))

	_, err = tr.Deliver(context.Background(), notification.Event{To: "a@x.com", Subject: "s", HTML: "<p/>"})
	require.NoError(t, err)
	assert.Equal(t, int32(1), relay.connections.Load())
}

func TestDeliver_TimesOutOnSilentRelay(t *testing.T) {
	relay := startRelay(t, func(r *fakeRelay) { r.silent = true })

	cfg := relayConfig(relay.port())
	cfg.GreetTimeout = 10 * time.Second
	cfg.SendTimeout = 200 * time.Millisecond
	tr := newTransport(t, cfg)

	start := time.Now()
	_, err := tr.Deliver(context.Background(), notification.Event{To: "a@x.com", Subject: "s", HTML: "<p/>"})

	require.ErrorIs(t, err, ErrTimeout)
	assert.Less(t, time.Since(start), 2*time.Second)

	var relayErr *RelayError
	assert.False(t, errors.As(err, &relayErr))
}

func TestDeliver_BreakerFailsFast(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())

	tr := newTransport(t, relayConfig(port),
		WithBreaker(utils.NewBreaker("smtp-test", 2, time.Minute, nil)),
	)

	event := notification.Event{To: "a@x.com", Subject: "s", HTML: "<p/>"}
	for i := 0; i < 2; i++ {
		_, err := tr.Deliver(context.Background(), event)
		require.Error(t, err)
		assert.False(t, errors.Is(err, ErrRelayUnavailable))
	}

	_, err = tr.Deliver(context.Background(), event)
	assert.ErrorIs(t, err, ErrRelayUnavailable)
}

func TestVerify(t *testing.T) {
	relay := startRelay(t)
	tr := newTransport(t, relayConfig(relay.port()))

	require.NoError(t, tr.Verify(context.Background()))

	_, err := tr.Deliver(context.Background(), notification.Event{To: "a@x.com", Subject: "s", HTML: "<p/>"})
	require.NoError(t, err)
	assert.Equal(t, int32(1), relay.connections.Load())
}

func TestVerify_SilentRelay(t *testing.T) {
	relay := startRelay(t, func(r *fakeRelay) { r.silent = true })

	cfg := relayConfig(relay.port())
	cfg.VerifyTimeout = 150 * time.Millisecond
	tr := newTransport(t, cfg)

	assert.ErrorIs(t, tr.Verify(context.Background()), ErrTimeout)
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.SMTP
	}{
		{"missing host", config.SMTP{Port: 587, From: "a@x.com"}},
		{"bad port", config.SMTP{Host: "smtp.x.com", Port: 0, From: "a@x.com"}},
		{"bad from", config.SMTP{Host: "smtp.x.com", Port: 587, From: "nobody"}},
		{"bad security", config.SMTP{Host: "smtp.x.com", Port: 587, From: "a@x.com", Security: "ssl3"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.cfg, zap.NewNop())
			assert.ErrorIs(t, err, ErrConfig)
		})
	}
}

func TestNew_SecurityByPort(t *testing.T) {
	implicit, err := New(config.SMTP{Host: "smtp.x.com", Port: 465, From: "a@x.com"}, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, SecurityTLS, implicit.Security())

	submission, err := New(config.SMTP{Host: "smtp.x.com", Port: 587, From: "a@x.com"}, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, SecurityStartTLS, submission.Security())
	assert.False(t, submission.requireTLS)

	explicit, err := New(config.SMTP{Host: "smtp.x.com", Port: 2525, From: "a@x.com", Security: "starttls"}, zap.NewNop())
	require.NoError(t, err)
	assert.True(t, explicit.requireTLS)
}

func TestNew_FromFallsBackToUser(t *testing.T) {
	tr, err := New(config.SMTP{Host: "smtp.x.com", Port: 587, User: "bot@x.com"}, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, "bot@x.com", tr.from.Address)
}

func TestDeliver_RequiredSTARTTLSMissing(t *testing.T) {
	relay := startRelay(t)

	cfg := relayConfig(relay.port())
	cfg.Security = "starttls"
	tr := newTransport(t, cfg)

	_, err := tr.Deliver(context.Background(), notification.Event{To: "a@x.com", Subject: "s", HTML: "<p/>"})
	assert.ErrorIs(t, err, ErrConfig)
	assert.Empty(t, relay.received())
}
