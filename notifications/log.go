package notifications

import (
	// Go Internal Packages
	"context"

	// Local Packages
	errors "wallet-ledger/errors"
	helpers "wallet-ledger/helpers"
	models "wallet-ledger/models"

	// External Packages
	"go.uber.org/zap"
)

// LogNotifier stands in for email when it is disabled. It records that a message
// was due and reports ErrNotificationsDisabled so callers fall back.
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(_ context.Context, msg models.Message) error {
	n.logger.Info("email notifications disabled, message not sent",
		zap.String("to", helpers.MaskEmail(msg.To)),
		zap.String("subject", msg.Subject),
	)
	return errors.ErrNotificationsDisabled
}
