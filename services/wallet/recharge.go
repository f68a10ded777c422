package wallet

import (
	// Go Internal Packages
	"context"
	"strings"
	"time"

	// Local Packages
	errors "wallet-ledger/errors"
	models "wallet-ledger/models"

	// External Packages
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type RechargeRequest struct {
	Document string
	Phone    string
	Amount   string
	// Reference is the upstream identifier of a streamed top-up. Two recharges
	// with the same non-empty reference are never both applied.
	Reference string
	Source    string
}

type RechargeResult struct {
	Transaction *models.Transaction
	Client      *models.Client
}

// Recharge credits a client's balance and records a COMPLETED recharge in the
// same unit of work.
func (s *Service) Recharge(ctx context.Context, req RechargeRequest) (res *RechargeResult, err error) {
	started := time.Now()
	defer func() { s.observe("recharge", started, err) }()

	if missing := missingFields(map[string]string{
		"document": req.Document,
		"phone":    req.Phone,
		"amount":   req.Amount,
	}); len(missing) > 0 {
		return nil, errors.MissingFieldsErr(missing...)
	}
	amount, err := models.ParseAmount(req.Amount)
	if err != nil {
		return nil, err
	}

	source := req.Source
	if source == "" {
		source = models.SourceAPI
	}
	txID := uuid.NewString()

	err = s.Store.RunInTx(ctx, func(ctx context.Context) error {
		client, err := s.findClient(ctx, strings.TrimSpace(req.Document), strings.TrimSpace(req.Phone))
		if err != nil {
			return err
		}

		now := s.now()
		record := &models.Transaction{
			ID:          txID,
			ClientID:    client.ID,
			Type:        models.TypeRecharge,
			Amount:      amount,
			Status:      models.StatusCompleted,
			Source:      source,
			Reference:   req.Reference,
			CreatedAt:   now,
			CompletedAt: now,
		}
		if err := s.Store.CreateTransaction(ctx, record); err != nil {
			return err
		}
		client, err = s.Store.AdjustBalance(ctx, client.ID, amount)
		if err != nil {
			return err
		}
		res = &RechargeResult{Transaction: record, Client: client}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Logger.Info("recharge completed",
		zap.String("client_id", res.Client.ID),
		zap.String("transaction_id", res.Transaction.ID),
		zap.String("amount", money(amount)),
		zap.String("source", source),
	)
	s.publish(ctx, models.LedgerEvent{
		ID:            uuid.NewString(),
		Type:          models.EventRechargeCompleted,
		ClientID:      res.Client.ID,
		TransactionID: res.Transaction.ID,
		Amount:        money(amount),
		Balance:       money(res.Client.Balance),
	})
	return res, nil
}
