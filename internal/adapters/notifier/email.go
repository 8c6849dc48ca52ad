package notifier

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/taskhive/core/internal/infrastructure/config"
	"github.com/taskhive/core/internal/infrastructure/logger"
	"github.com/taskhive/core/internal/ports"
)

// New selects a notifier based on configuration: SMTP when a host is
// configured, otherwise a log-only notifier for development.
func New(cfg config.SMTPConfig, baseURL string, appLogger *logger.Logger) ports.Notifier {
	if cfg.Host == "" {
		return &LogNotifier{logger: appLogger}
	}
	return &SMTPNotifier{cfg: cfg, baseURL: baseURL, logger: appLogger}
}

// SMTPNotifier delivers invitation emails over SMTP
type SMTPNotifier struct {
	cfg     config.SMTPConfig
	baseURL string
	logger  *logger.Logger
}

func (n *SMTPNotifier) SendInvitation(ctx context.Context, email string, msg ports.InvitationMessage) error {
	acceptURL := fmt.Sprintf("%s/api/v1/invitations/accept?token=%s", n.baseURL, msg.Token)

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s <%s>\r\n", n.cfg.FromName, n.cfg.From)
	fmt.Fprintf(&b, "To: %s\r\n", email)
	fmt.Fprintf(&b, "Subject: You've been invited to collaborate on a task\r\n")
	fmt.Fprintf(&b, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&b, "Content-Type: text/plain; charset=UTF-8\r\n")
	fmt.Fprintf(&b, "\r\n")
	fmt.Fprintf(&b, "Hello,\r\n\r\n")
	fmt.Fprintf(&b, "%s has invited you to collaborate on the task: %s\r\n", msg.InviterName, msg.TaskTitle)
	fmt.Fprintf(&b, "You have been assigned the role of: %s\r\n\r\n", msg.Role)
	fmt.Fprintf(&b, "To accept this invitation, open the link below:\r\n")
	fmt.Fprintf(&b, "%s\r\n\r\n", acceptURL)
	fmt.Fprintf(&b, "Thank you,\r\nThe %s Team\r\n", n.cfg.FromName)

	var auth smtp.Auth
	if n.cfg.Username != "" {
		auth = smtp.PlainAuth("", n.cfg.Username, n.cfg.Password, n.cfg.Host)
	}

	if err := smtp.SendMail(n.cfg.Addr(), auth, n.cfg.From, []string{email}, []byte(b.String())); err != nil {
		return fmt.Errorf("send invitation email: %w", err)
	}

	n.logger.Infow("Invitation email sent", "email", email, "task_title", msg.TaskTitle)
	return nil
}

// LogNotifier records invitations instead of delivering them. Used in
// development and tests.
type LogNotifier struct {
	logger *logger.Logger
}

func (n *LogNotifier) SendInvitation(ctx context.Context, email string, msg ports.InvitationMessage) error {
	n.logger.Infow("Invitation notification (not delivered: SMTP disabled)",
		"email", email,
		"task_title", msg.TaskTitle,
		"inviter", msg.InviterName,
		"role", msg.Role,
	)
	return nil
}
