// Package email sends account lifecycle mails over SMTP. When no SMTP
// host is configured the mailer logs instead of sending, so development
// setups work without a relay.
package email

import (
	"context"
	"fmt"

	"github.com/wneessen/go-mail"
	"go.uber.org/zap"

	"github.com/advrag/ragd/internal/config"
)

// Mailer sends transactional emails.
type Mailer struct {
	cfg         config.SMTPConfig
	frontendURL string
	logger      *zap.Logger
}

// NewMailer creates a Mailer. frontendURL is the base for setup and reset
// links.
func NewMailer(cfg config.SMTPConfig, frontendURL string, logger *zap.Logger) *Mailer {
	return &Mailer{cfg: cfg, frontendURL: frontendURL, logger: logger}
}

// SendAccountSetup mails a password setup link valid for 24 hours.
func (m *Mailer) SendAccountSetup(ctx context.Context, to, token string) error {
	link := fmt.Sprintf("%s/?view=set_password&token=%s", m.frontendURL, token)
	body := fmt.Sprintf(
		"<p>Welcome!</p>"+
			"<p>An account has been created for you. Please click the link below to set your password. This link is valid for 24 hours.</p>"+
			"<p><a href=%q>%s</a></p>"+
			"<p>If you did not request this, please ignore this email.</p>",
		link, link)
	return m.send(ctx, to, "Set Up Your Account", body)
}

// SendPasswordReset mails a password reset link valid for 15 minutes.
func (m *Mailer) SendPasswordReset(ctx context.Context, to, token string) error {
	link := fmt.Sprintf("%s/?view=reset_password&token=%s", m.frontendURL, token)
	body := fmt.Sprintf(
		"<p>You requested a password reset for your account.</p>"+
			"<p>Please click the link below to set a new password. This link is valid for 15 minutes.</p>"+
			"<p><a href=%q>%s</a></p>"+
			"<p>If you did not request this, please ignore this email.</p>",
		link, link)
	return m.send(ctx, to, "Password Reset Request", body)
}

// SendTemporaryPassword mails a generated temporary password for accounts
// created without the setup link flow.
func (m *Mailer) SendTemporaryPassword(ctx context.Context, to, password string) error {
	body := fmt.Sprintf(
		"<p>Welcome!</p>"+
			"<p>An account has been created for you. Please log in using the following temporary password and change it immediately.</p>"+
			"<p><b>Temporary Password:</b> %s</p>",
		password)
	return m.send(ctx, to, "Your New Account", body)
}

func (m *Mailer) send(ctx context.Context, to, subject, htmlBody string) error {
	if !m.cfg.Enabled() {
		m.logger.Info("smtp disabled, skipping email",
			zap.String("to", to),
			zap.String("subject", subject))
		return nil
	}

	msg := mail.NewMsg()
	if err := msg.FromFormat(m.cfg.FromName, m.cfg.FromEmail); err != nil {
		return fmt.Errorf("set from address: %w", err)
	}
	if err := msg.To(to); err != nil {
		return fmt.Errorf("set recipient: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextHTML, htmlBody)

	opts := []mail.Option{
		mail.WithPort(m.cfg.Port),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}
	if m.cfg.User != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(m.cfg.User),
			mail.WithPassword(m.cfg.Password.Value()),
		)
	}

	client, err := mail.NewClient(m.cfg.Host, opts...)
	if err != nil {
		return fmt.Errorf("create smtp client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("send email to %s: %w", to, err)
	}
	m.logger.Info("email sent", zap.String("to", to), zap.String("subject", subject))
	return nil
}
