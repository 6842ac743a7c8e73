package notify

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/smtp"
	"strconv"
	"time"

	"github.com/tm65023/Story/internal/otp/domain"
)

// SMTPConfig is the relay configuration.
type SMTPConfig struct {
	Host     string
	Port     int
	User     string
	Pass     string
	FromName string
}

// implicitTLSPort is the SMTPS port; every other port upgrades with STARTTLS when offered.
const implicitTLSPort = 465

const sendTimeout = 30 * time.Second

// sendFunc delivers a fully rendered message.
type sendFunc func(ctx context.Context, cfg SMTPConfig, from string, to []string, msg []byte) error

// SMTPNotifier sends codes through an authenticated SMTP relay.
type SMTPNotifier struct {
	cfg    SMTPConfig
	logger *slog.Logger
	send   sendFunc
	now    func() time.Time
}

// NewSMTPNotifier returns a notifier for cfg. The envelope sender is cfg.User.
func NewSMTPNotifier(cfg SMTPConfig, logger *slog.Logger) (*SMTPNotifier, error) {
	if cfg.Host == "" || cfg.Port <= 0 || cfg.User == "" || cfg.Pass == "" {
		return nil, errors.New("smtp not configured")
	}
	if cfg.FromName == "" {
		cfg.FromName = "Story"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SMTPNotifier{cfg: cfg, logger: logger, send: sendSMTP, now: time.Now}, nil
}

// SendCode renders and sends the code email. The call is bounded by ctx and an internal timeout.
func (n *SMTPNotifier) SendCode(ctx context.Context, to, code string, purpose domain.Purpose, ttl time.Duration) error {
	if !ValidRecipient(to) {
		return ErrInvalidRecipient
	}
	msg, err := BuildCodeMessage(code, purpose, ttl)
	if err != nil {
		return fmt.Errorf("render email: %w", err)
	}
	fromHeader := fmt.Sprintf("%q <%s>", n.cfg.FromName, n.cfg.User)
	raw, err := encodeMIME(fromHeader, to, msg, n.now())
	if err != nil {
		return fmt.Errorf("encode email: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()
	if err := n.send(ctx, n.cfg, n.cfg.User, []string{to}, raw); err != nil {
		n.logger.Warn("email delivery failed", "purpose", string(purpose), "error", err)
		return fmt.Errorf("smtp send: %w", err)
	}
	n.logger.Info("email sent", "purpose", string(purpose))
	return nil
}

func sendSMTP(ctx context.Context, cfg SMTPConfig, from string, to []string, msg []byte) error {
	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	tlsConfig := &tls.Config{ServerName: cfg.Host, MinVersion: tls.VersionTLS12}

	var d net.Dialer
	var conn net.Conn
	var err error
	if cfg.Port == implicitTLSPort {
		conn, err = (&tls.Dialer{NetDialer: &d, Config: tlsConfig}).DialContext(ctx, "tcp", addr)
	} else {
		conn, err = d.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return err
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	c, err := smtp.NewClient(conn, cfg.Host)
	if err != nil {
		conn.Close()
		return err
	}
	defer c.Close()

	if cfg.Port != implicitTLSPort {
		if ok, _ := c.Extension("STARTTLS"); ok {
			if err := c.StartTLS(tlsConfig); err != nil {
				return err
			}
		}
	}
	if err := c.Auth(smtp.PlainAuth("", cfg.User, cfg.Pass, cfg.Host)); err != nil {
		return err
	}
	if err := c.Mail(from); err != nil {
		return err
	}
	for _, rcpt := range to {
		if err := c.Rcpt(rcpt); err != nil {
			return err
		}
	}
	wc, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := wc.Write(msg); err != nil {
		return err
	}
	if err := wc.Close(); err != nil {
		return err
	}
	return c.Quit()
}
