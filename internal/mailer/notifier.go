// Package mailer はユーザーへのメール通知を提供する。
package mailer

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
	"strconv"

	"github.com/jordan-wright/email"

	"github.com/hitoshi/inkpost/internal/model"
)

// Notifier はユーザーにメッセージを送信する。
type Notifier interface {
	Send(ctx context.Context, user *model.User, subject, body string) error
}

// SMTPConfig はSMTP接続設定。
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPNotifier はSMTPでHTMLメールを送信するNotifier。
type SMTPNotifier struct {
	cfg  SMTPConfig
	send func(addr string, auth smtp.Auth, e *email.Email) error
}

// NewSMTPNotifier はSMTPNotifierを生成する。
func NewSMTPNotifier(cfg SMTPConfig) *SMTPNotifier {
	return &SMTPNotifier{
		cfg: cfg,
		send: func(addr string, auth smtp.Auth, e *email.Email) error {
			return e.Send(addr, auth)
		},
	}
}

// Send はuserのメールアドレス宛にHTMLメールを送信する。
// SMTPUsernameが空の場合は認証なしで送信する。
func (n *SMTPNotifier) Send(ctx context.Context, user *model.User, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	e := email.NewEmail()
	e.From = n.cfg.From
	e.To = []string{user.Email}
	e.Subject = subject
	e.HTML = []byte(body)

	var auth smtp.Auth
	if n.cfg.Username != "" {
		auth = smtp.PlainAuth("", n.cfg.Username, n.cfg.Password, n.cfg.Host)
	}

	addr := n.cfg.Host + ":" + strconv.Itoa(n.cfg.Port)
	if err := n.send(addr, auth, e); err != nil {
		return fmt.Errorf("failed to send mail to %s: %w", user.Email, err)
	}
	return nil
}

// LogNotifier はメールを送信せず、ログに記録するだけのNotifier。
// SMTPが未設定の開発環境で使用する。
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier はLogNotifierを生成する。
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

// Send は宛先と件名を記録する。本文はdebugレベルでのみ出力する。
func (n *LogNotifier) Send(_ context.Context, user *model.User, subject, body string) error {
	n.logger.Info("mail not sent: SMTP is not configured",
		slog.String("user_id", user.ID),
		slog.String("to", user.Email),
		slog.String("subject", subject),
	)
	n.logger.Debug("mail body", slog.String("body", body))
	return nil
}

// compile-time interface check
var (
	_ Notifier = (*SMTPNotifier)(nil)
	_ Notifier = (*LogNotifier)(nil)
)
