package notifier

import (
	"context"
	"crypto/tls"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	config "github.com/NordCoder/Farewatch/internal/config/farewatch"
	"github.com/NordCoder/Farewatch/internal/domain/notification"
)

var _ notification.EmailSender = (*Mailer)(nil)

type Mailer struct {
	addr    string
	host    string
	auth    smtp.Auth
	useTLS  bool
	timeout time.Duration
	from    string

	log *zap.Logger
}

func NewMailer(cfg config.Email, log *zap.Logger) *Mailer {
	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	var auth smtp.Auth
	if cfg.Username != "" || cfg.Password != "" {
		auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Mailer{
		addr:    addr,
		host:    cfg.Host,
		auth:    auth,
		useTLS:  cfg.UseTLS,
		timeout: 10 * time.Second,
		from:    cfg.From,
		log:     log.With(zap.String("component", "notifier.mailer")),
	}
}

func (m *Mailer) Send(ctx context.Context, to, subject, body string) error {
	msg := []byte(
		"From: " + m.from + "\r\n" +
			"To: " + to + "\r\n" +
			"Subject: " + strings.TrimSpace(subject) + "\r\n" +
			"Content-Type: text/plain; charset=utf-8\r\n" +
			"\r\n" + body + "\r\n")

	start := time.Now()
	log := m.log.With(zap.String("smtp_addr", m.addr), zap.Bool("tls", m.useTLS), zap.String("to", to))

	if !m.useTLS {
		if err := smtp.SendMail(m.addr, m.auth, m.from, []string{to}, msg); err != nil {
			log.Error("sendmail failed", zap.Error(err))
			return err
		}
		log.Info("email sent", zap.Duration("elapsed", time.Since(start)))
		return nil
	}

	dialer := tls.Dialer{NetDialer: &net.Dialer{Timeout: m.timeout}, Config: &tls.Config{ServerName: m.host}}
	conn, err := dialer.DialContext(ctx, "tcp", m.addr)
	if err != nil {
		log.Error("tls dial failed", zap.Error(err))
		return err
	}
	c, err := smtp.NewClient(conn, m.host)
	if err != nil {
		_ = conn.Close()
		return err
	}
	defer func() { _ = c.Close() }()

	if m.auth != nil {
		if ok, _ := c.Extension("AUTH"); ok {
			if err := c.Auth(m.auth); err != nil {
				log.Error("smtp auth failed", zap.Error(err))
				return err
			}
		}
	}
	if err := c.Mail(m.from); err != nil {
		return err
	}
	if err := c.Rcpt(to); err != nil {
		return err
	}
	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	log.Info("email sent", zap.Duration("elapsed", time.Since(start)))
	return c.Quit()
}
