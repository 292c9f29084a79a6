// Package smtp relays notification events through an SMTP server. It keeps a
// small pool of authenticated sessions, bounds every delivery by an overall
// timeout and never retries on its own.
package smtp

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/mail"
	netsmtp "net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/AbhaySingh-33/Job-Portal/pkg/config"
	"github.com/AbhaySingh-33/Job-Portal/pkg/mylogger"
	"github.com/AbhaySingh-33/Job-Portal/pkg/notification"
	"github.com/AbhaySingh-33/Job-Portal/pkg/utils"
)

type Security string

const (
	SecurityTLS      Security = "tls"
	SecurityStartTLS Security = "starttls"
	SecurityNone     Security = "none"
)

const (
	defaultDialTimeout   = 10 * time.Second
	defaultGreetTimeout  = 10 * time.Second
	defaultSocketTimeout = 30 * time.Second
	defaultSendTimeout   = 45 * time.Second
	defaultVerifyTimeout = 10 * time.Second

	breakerFailures = 3
	breakerCooldown = 30 * time.Second
)

// Receipt is the relay's acceptance of one message.
type Receipt struct {
	MessageID string
	Response  string
}

type Transport struct {
	host     string
	addr     string
	user     string
	password string
	heloName string
	from     *mail.Address

	security   Security
	requireTLS bool
	skipVerify bool

	dialTimeout   time.Duration
	greetTimeout  time.Duration
	socketTimeout time.Duration
	sendTimeout   time.Duration
	verifyTimeout time.Duration

	breaker *gobreaker.CircuitBreaker
	slots   chan struct{}
	idle    chan *session

	logger *zap.Logger
	tracer trace.Tracer
	now    func() time.Time
}

type Option func(*Transport)

func WithBreaker(cb *gobreaker.CircuitBreaker) Option {
	return func(t *Transport) { t.breaker = cb }
}

func WithClock(now func() time.Time) Option {
	return func(t *Transport) { t.now = now }
}

func New(cfg config.SMTP, logger *zap.Logger, opts ...Option) (*Transport, error) {
	if strings.TrimSpace(cfg.Host) == "" {
		return nil, fmt.Errorf("%w: SMTP_HOST is empty", ErrConfig)
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("%w: SMTP_PORT %d out of range", ErrConfig, cfg.Port)
	}

	fromRaw := cfg.From
	if fromRaw == "" {
		fromRaw = cfg.User
	}
	from, err := mail.ParseAddress(fromRaw)
	if err != nil {
		return nil, fmt.Errorf("%w: SMTP_FROM %q: %v", ErrConfig, fromRaw, err)
	}

	security, requireTLS, err := resolveSecurity(cfg.Security, cfg.Port)
	if err != nil {
		return nil, err
	}

	poolSize := cfg.PoolSize
	if poolSize < 1 {
		poolSize = 1
	}

	t := &Transport{
		host:          cfg.Host,
		addr:          net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		user:          cfg.User,
		password:      cfg.Password,
		heloName:      cfg.HeloName,
		from:          from,
		security:      security,
		requireTLS:    requireTLS,
		skipVerify:    cfg.SkipVerify,
		dialTimeout:   orDefault(cfg.DialTimeout, defaultDialTimeout),
		greetTimeout:  orDefault(cfg.GreetTimeout, defaultGreetTimeout),
		socketTimeout: orDefault(cfg.SocketTimeout, defaultSocketTimeout),
		sendTimeout:   orDefault(cfg.SendTimeout, defaultSendTimeout),
		verifyTimeout: orDefault(cfg.VerifyTimeout, defaultVerifyTimeout),
		slots:         make(chan struct{}, poolSize),
		idle:          make(chan *session, poolSize),
		logger:        logger,
		tracer:        otel.Tracer("mailer/infrastructure/smtp"),
		now:           time.Now,
	}

	for _, opt := range opts {
		opt(t)
	}

	if t.breaker == nil {
		t.breaker = utils.NewBreaker("smtp-"+cfg.Host, breakerFailures, breakerCooldown,
			func(name string, from, to gobreaker.State) {
				logger.Warn("smtp circuit breaker state changed",
					zap.String("breaker", name),
					zap.String("from", from.String()),
					zap.String("to", to.String()),
				)
			})
	}

	return t, nil
}

// resolveSecurity maps SMTP_SECURITY to a mode. An empty value follows the
// port convention: 465 is implicit TLS, anything else upgrades with STARTTLS
// when the relay offers it.
func resolveSecurity(raw string, port int) (Security, bool, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		if port == 465 {
			return SecurityTLS, false, nil
		}
		return SecurityStartTLS, false, nil
	case "tls", "ssl":
		return SecurityTLS, false, nil
	case "starttls":
		return SecurityStartTLS, true, nil
	case "none", "plain":
		return SecurityNone, false, nil
	default:
		return "", false, fmt.Errorf("%w: unknown SMTP_SECURITY %q", ErrConfig, raw)
	}
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}

func (t *Transport) Security() Security { return t.security }

// Verify opens and authenticates a session and keeps it for the next
// delivery.
func (t *Transport) Verify(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, t.verifyTimeout)
	defer cancel()

	s, err := t.dial(ctx)
	if err != nil {
		return t.mapCtxErr(ctx, err, t.verifyTimeout)
	}

	stop := context.AfterFunc(ctx, s.abort)
	err = s.probe(t.now().Add(t.socketTimeout))
	if !stop() {
		return t.mapCtxErr(ctx, err, t.verifyTimeout)
	}
	if err != nil {
		s.abort()
		return err
	}

	t.release(s)
	return nil
}

type result struct {
	receipt Receipt
	err     error
}

// Deliver relays event. It returns ErrTimeout once the send timeout expires
// even if the relay is still working; the late session is thrown away.
func (t *Transport) Deliver(ctx context.Context, event notification.Event) (Receipt, error) {
	ctx, span := t.tracer.Start(ctx, "smtp.Deliver",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("smtp.host", t.host),
			attribute.String("smtp.security", string(t.security)),
		),
	)
	defer span.End()

	res := t.deliverWithTimeout(ctx, event)
	if res.err != nil {
		span.RecordError(res.err)
		span.SetStatus(codes.Error, res.err.Error())
		return Receipt{}, res.err
	}

	span.SetAttributes(attribute.String("smtp.message_id", res.receipt.MessageID))
	return res.receipt, nil
}

func (t *Transport) deliverWithTimeout(ctx context.Context, event notification.Event) result {
	to, err := mail.ParseAddress(event.To)
	if err != nil {
		return result{err: fmt.Errorf("invalid recipient %q: %w", event.To, err)}
	}

	ctx, cancel := context.WithTimeout(ctx, t.sendTimeout)
	defer cancel()

	select {
	case t.slots <- struct{}{}:
	case <-ctx.Done():
		return result{err: t.mapCtxErr(ctx, ctx.Err(), t.sendTimeout)}
	}

	done := make(chan result, 1)
	go func() {
		defer func() { <-t.slots }()
		r, err := t.deliver(ctx, to, event)
		done <- result{receipt: r, err: err}
	}()

	select {
	case res := <-done:
		return res
	case <-ctx.Done():
		select {
		case res := <-done:
			return res
		default:
		}
		return result{err: t.mapCtxErr(ctx, ctx.Err(), t.sendTimeout)}
	}
}

func (t *Transport) deliver(ctx context.Context, to *mail.Address, event notification.Event) (Receipt, error) {
	s, err := t.session(ctx)
	if err != nil {
		return Receipt{}, err
	}

	stop := context.AfterFunc(ctx, s.abort)
	receipt, err := t.send(s, to, event)
	if !stop() {
		return Receipt{}, t.mapCtxErr(ctx, err, t.sendTimeout)
	}

	if err != nil {
		if !isRelayReply(err) || s.reset(t.now().Add(t.socketTimeout)) != nil {
			s.abort()
			return Receipt{}, err
		}
		t.release(s)
		return Receipt{}, err
	}

	t.release(s)
	mylogger.Debug(ctx, t.logger, "smtp relay accepted message",
		zap.String("message_id", receipt.MessageID),
		zap.String("response", receipt.Response),
	)

	return receipt, nil
}

func (t *Transport) send(s *session, to *mail.Address, event notification.Event) (Receipt, error) {
	msg := message{
		From:      t.from,
		To:        to,
		Subject:   event.Subject,
		HTML:      event.HTML,
		MessageID: newMessageID(t.from),
		Date:      t.now(),
	}

	data, err := msg.Bytes()
	if err != nil {
		return Receipt{}, err
	}

	_ = s.conn.SetDeadline(t.now().Add(t.socketTimeout))

	if err := s.client.Mail(t.from.Address); err != nil {
		return Receipt{}, commandError("MAIL FROM", err)
	}
	if err := s.client.Rcpt(to.Address); err != nil {
		return Receipt{}, commandError("RCPT TO", err)
	}

	response, err := s.data(data)
	if err != nil {
		return Receipt{}, err
	}

	return Receipt{MessageID: msg.MessageID, Response: response}, nil
}

// session hands out an idle session that still answers NOOP, or dials a
// new one.
func (t *Transport) session(ctx context.Context) (*session, error) {
	for {
		select {
		case s := <-t.idle:
			if err := s.probe(t.now().Add(t.socketTimeout)); err != nil {
				mylogger.Debug(ctx, t.logger, "discarding stale smtp session", zap.Error(err))
				s.abort()
				continue
			}
			return s, nil
		default:
			return t.dial(ctx)
		}
	}
}

func (t *Transport) release(s *session) {
	_ = s.conn.SetDeadline(time.Time{})

	select {
	case t.idle <- s:
	default:
		s.quit(t.now().Add(time.Second))
	}
}

// dial connects and authenticates behind the circuit breaker.
func (t *Transport) dial(ctx context.Context) (*session, error) {
	s, err := utils.ExecuteWithBreaker(t.breaker, func() (*session, error) {
		return t.open(ctx)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %v", ErrRelayUnavailable, err)
	}
	return s, err
}

func (t *Transport) open(ctx context.Context) (*session, error) {
	dialer := &net.Dialer{Timeout: t.dialTimeout}

	var (
		conn net.Conn
		err  error
	)
	if t.security == SecurityTLS {
		conn, err = (&tls.Dialer{NetDialer: dialer, Config: t.tlsConfig()}).DialContext(ctx, "tcp", t.addr)
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", t.addr)
	}
	if err != nil {
		return nil, fmt.Errorf("smtp dial %s: %w", t.addr, err)
	}

	s := &session{conn: conn}
	stop := context.AfterFunc(ctx, s.abort)
	defer stop()

	_ = conn.SetDeadline(t.now().Add(t.greetTimeout))
	client, err := netsmtp.NewClient(conn, t.host)
	if err != nil {
		_ = conn.Close()
		return nil, commandError("greeting", err)
	}
	s.client = client

	_ = conn.SetDeadline(t.now().Add(t.socketTimeout))

	if t.heloName != "" {
		if err := client.Hello(t.heloName); err != nil {
			s.abort()
			return nil, commandError("EHLO", err)
		}
	}

	if t.security == SecurityStartTLS {
		ok, _ := client.Extension("STARTTLS")
		switch {
		case ok:
			if err := client.StartTLS(t.tlsConfig()); err != nil {
				s.abort()
				return nil, commandError("STARTTLS", err)
			}
		case t.requireTLS:
			s.abort()
			return nil, fmt.Errorf("%w: relay %s does not offer STARTTLS", ErrConfig, t.addr)
		}
	}

	if t.user != "" {
		if ok, _ := client.Extension("AUTH"); ok {
			if err := client.Auth(netsmtp.PlainAuth("", t.user, t.password, t.host)); err != nil {
				s.abort()
				return nil, commandError("AUTH", err)
			}
		} else {
			t.logger.Warn("smtp relay does not advertise AUTH, sending unauthenticated", zap.String("addr", t.addr))
		}
	}

	_ = conn.SetDeadline(time.Time{})
	return s, nil
}

func (t *Transport) tlsConfig() *tls.Config {
	return &tls.Config{
		ServerName:         t.host,
		InsecureSkipVerify: t.skipVerify, //nolint:gosec // explicit SMTP_SKIP_VERIFY
		MinVersion:         tls.VersionTLS12,
	}
}

func (t *Transport) mapCtxErr(ctx context.Context, err error, bound time.Duration) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w after %s", ErrTimeout, bound)
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return err
}

// Close sends QUIT on every idle session.
func (t *Transport) Close() error {
	for {
		select {
		case s := <-t.idle:
			s.quit(t.now().Add(time.Second))
		default:
			return nil
		}
	}
}
