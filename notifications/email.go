package notifications

import (
	// Go Internal Packages
	"context"
	"fmt"
	"time"

	// Local Packages
	config "wallet-ledger/config"
	helpers "wallet-ledger/helpers"
	models "wallet-ledger/models"

	// External Packages
	"github.com/wneessen/go-mail"
	"go.uber.org/zap"
)

// EmailNotifier delivers messages over SMTP.
type EmailNotifier struct {
	conf   config.SMTP
	opts   []mail.Option
	logger *zap.Logger
}

func NewEmailNotifier(conf config.SMTP, timeout time.Duration, logger *zap.Logger) *EmailNotifier {
	opts := []mail.Option{
		mail.WithPort(conf.Port),
		mail.WithTimeout(timeout),
	}
	if conf.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(conf.Username),
			mail.WithPassword(conf.Password),
		)
	}
	return &EmailNotifier{conf: conf, opts: opts, logger: logger}
}

func (n *EmailNotifier) Notify(ctx context.Context, msg models.Message) error {
	m := mail.NewMsg()
	if err := m.From(n.conf.From); err != nil {
		return fmt.Errorf("invalid sender address: %w", err)
	}
	if err := m.To(msg.To); err != nil {
		return fmt.Errorf("invalid recipient address: %w", err)
	}
	m.Subject(msg.Subject)
	m.SetBodyString(mail.TypeTextPlain, msg.Body)

	client, err := mail.NewClient(n.conf.Host, n.opts...)
	if err != nil {
		return fmt.Errorf("cannot create smtp client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("cannot send email: %w", err)
	}

	n.logger.Debug("email sent", zap.String("to", helpers.MaskEmail(msg.To)), zap.String("subject", msg.Subject))
	return nil
}
