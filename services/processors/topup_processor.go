package processors

import (
	// Go Internal Packages
	"context"
	"encoding/json"
	"fmt"
	"time"

	// Local Packages
	errors "wallet-ledger/errors"
	metrics "wallet-ledger/metrics"
	models "wallet-ledger/models"
	wallet "wallet-ledger/services/wallet"

	// External Packages
	"go.uber.org/zap"
)

type Recharger interface {
	Recharge(ctx context.Context, req wallet.RechargeRequest) (*wallet.RechargeResult, error)
}

type DeadLetterQueue interface {
	Send(ctx context.Context, letters []models.DeadLetter) error
}

// TopupProcessor applies top-up records from the stream as recharges. Each
// record carries an upstream reference, so a redelivered record is skipped
// instead of being credited twice.
type TopupProcessor struct {
	Logger  *zap.Logger
	Wallet  Recharger
	DLQ     DeadLetterQueue
	Metrics *metrics.Metrics
	Clock   func() time.Time
}

func NewTopupProcessor(logger *zap.Logger, recharger Recharger, dlq DeadLetterQueue, m *metrics.Metrics) *TopupProcessor {
	return &TopupProcessor{
		Logger:  logger,
		Wallet:  recharger,
		DLQ:     dlq,
		Metrics: m,
		Clock:   func() time.Time { return time.Now().UTC() },
	}
}

// ProcessRecords applies a batch. Records that can never succeed are dead
// lettered; any other failure aborts the batch so the caller can retry it.
func (p *TopupProcessor) ProcessRecords(ctx context.Context, records []models.Record) error {
	if len(records) == 0 {
		return nil
	}

	var letters []models.DeadLetter
	for _, record := range records {
		reason, err := p.ProcessRecord(ctx, record)
		if err != nil {
			return fmt.Errorf("failed to apply top-up %s: %w", record.Key, err)
		}
		if reason != "" {
			letters = append(letters, models.DeadLetter{
				Record:   record,
				Reason:   reason,
				FailedAt: p.Clock().Format(time.RFC3339),
			})
		}
	}

	if err := p.DLQ.Send(ctx, letters); err != nil {
		return fmt.Errorf("failed to dead letter %d top-ups: %w", len(letters), err)
	}
	return nil
}

// ProcessRecord applies one record. A non-empty reason means the record was
// rejected and belongs in the dead letter queue.
func (p *TopupProcessor) ProcessRecord(ctx context.Context, record models.Record) (string, error) {
	var topup models.TopupRecord
	if err := json.Unmarshal(record.Value, &topup); err != nil {
		p.Logger.Error("failed to unmarshal top-up", zap.ByteString("key", record.Key), zap.Error(err))
		p.Metrics.TopupRecord("malformed")
		return "malformed record: " + err.Error(), nil
	}
	if topup.Reference == "" {
		p.Metrics.TopupRecord("rejected")
		return "missing reference", nil
	}

	_, err := p.Wallet.Recharge(ctx, wallet.RechargeRequest{
		Document:  topup.Document,
		Phone:     topup.Phone,
		Amount:    topup.Amount.String(),
		Reference: topup.Reference,
		Source:    models.SourceStream,
	})
	switch {
	case err == nil:
		p.Metrics.TopupRecord("applied")
		return "", nil
	case errors.Is(err, errors.ErrDuplicateKey):
		p.Logger.Info("top-up already applied", zap.String("reference", topup.Reference))
		p.Metrics.TopupRecord("duplicate")
		return "", nil
	case errors.KindOf(err) == errors.Invalid || errors.KindOf(err) == errors.NotFound:
		p.Logger.Warn("top-up rejected", zap.String("reference", topup.Reference), zap.Error(err))
		p.Metrics.TopupRecord("rejected")
		return err.Error(), nil
	default:
		p.Metrics.TopupRecord("error")
		return "", err
	}
}
