package smtp

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"mime"
	"net"
	gosmtp "net/smtp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/lostmatch/internal/domain"
	domnotif "github.com/kailas-cloud/lostmatch/internal/domain/notification"
)

const (
	defaultTimeout  = 30 * time.Second
	implicitTLSPort = 465
)

// ErrDisabled is returned when the mailer has no credentials configured.
var ErrDisabled = errors.New("email transport disabled")

// Config holds SMTP connection settings.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	Timeout  time.Duration
	Logger   *zap.Logger
}

// Mailer delivers messages over SMTP. It is disabled when credentials are missing.
type Mailer struct {
	addr     string
	host     string
	port     int
	username string
	password string
	from     string
	timeout  time.Duration
	logger   *zap.Logger
}

// New creates a mailer.
func New(cfg *Config) *Mailer {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Mailer{
		addr:     net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		host:     cfg.Host,
		port:     cfg.Port,
		username: cfg.Username,
		password: cfg.Password,
		from:     cfg.From,
		timeout:  timeout,
		logger:   logger,
	}
}

// Enabled reports whether credentials and a server are configured.
func (m *Mailer) Enabled() bool {
	return m.host != "" && m.username != "" && m.password != ""
}

// Send delivers msg. Failures wrap domain.ErrNotificationChannelFailure.
func (m *Mailer) Send(ctx context.Context, msg domnotif.Email) error {
	if !m.Enabled() {
		return ErrDisabled
	}
	if msg.To == "" {
		return fmt.Errorf("empty recipient: %w", domain.ErrNotificationChannelFailure)
	}

	c, err := m.dial(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	if err := c.Mail(m.from); err != nil {
		return m.fail("mail from", err)
	}
	if err := c.Rcpt(msg.To); err != nil {
		return m.fail("rcpt to", err)
	}
	w, err := c.Data()
	if err != nil {
		return m.fail("data", err)
	}
	if _, err := w.Write(m.compose(msg)); err != nil {
		_ = w.Close()
		return m.fail("write body", err)
	}
	if err := w.Close(); err != nil {
		return m.fail("end data", err)
	}
	if err := c.Quit(); err != nil {
		m.logger.Debug("smtp quit failed", zap.Error(err))
	}

	m.logger.Debug("email sent", zap.String("to", msg.To), zap.String("subject", msg.Subject))
	return nil
}

// HealthCheck connects, authenticates and disconnects.
func (m *Mailer) HealthCheck(ctx context.Context) error {
	if !m.Enabled() {
		return ErrDisabled
	}
	c, err := m.dial(ctx)
	if err != nil {
		return err
	}
	defer c.Close()
	if err := c.Noop(); err != nil {
		return m.fail("noop", err)
	}
	return c.Quit()
}

// dial opens an authenticated session, upgrading with STARTTLS when offered.
func (m *Mailer) dial(ctx context.Context) (*gosmtp.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	d := &net.Dialer{}
	var conn net.Conn
	var err error
	if m.port == implicitTLSPort {
		td := &tls.Dialer{NetDialer: d, Config: &tls.Config{ServerName: m.host, MinVersion: tls.VersionTLS12}}
		conn, err = td.DialContext(ctx, "tcp", m.addr)
	} else {
		conn, err = d.DialContext(ctx, "tcp", m.addr)
	}
	if err != nil {
		return nil, m.fail("dial", err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	c, err := gosmtp.NewClient(conn, m.host)
	if err != nil {
		_ = conn.Close()
		return nil, m.fail("handshake", err)
	}
	if ok, _ := c.Extension("STARTTLS"); ok && m.port != implicitTLSPort {
		if err := c.StartTLS(&tls.Config{ServerName: m.host, MinVersion: tls.VersionTLS12}); err != nil {
			_ = c.Close()
			return nil, m.fail("starttls", err)
		}
	}
	if ok, _ := c.Extension("AUTH"); ok {
		if err := c.Auth(gosmtp.PlainAuth("", m.username, m.password, m.host)); err != nil {
			_ = c.Close()
			return nil, m.fail("auth", err)
		}
	}
	return c, nil
}

func (m *Mailer) compose(msg domnotif.Email) []byte {
	var b strings.Builder
	b.WriteString("From: " + m.from + "\r\n")
	b.WriteString("To: " + msg.To + "\r\n")
	b.WriteString("Subject: " + mime.QEncoding.Encode("utf-8", msg.Subject) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"utf-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(msg.HTML)
	return []byte(b.String())
}

func (m *Mailer) fail(op string, err error) error {
	return fmt.Errorf("smtp %s: %w: %w", op, domain.ErrNotificationChannelFailure, err)
}
