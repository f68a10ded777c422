package wallet

import (
	// Go Internal Packages
	"context"
	"fmt"
	"strings"
	"time"

	// Local Packages
	errors "wallet-ledger/errors"
	helpers "wallet-ledger/helpers"
	models "wallet-ledger/models"

	// External Packages
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type PaymentRequest struct {
	Document string
	Phone    string
	Amount   string
}

// PaymentSession is returned by InitiatePayment. Token is empty when it was
// delivered out of band.
type PaymentSession struct {
	SessionID        string
	Token            string
	Notified         bool
	TransactionID    string
	Amount           decimal.Decimal
	ExpiresAt        time.Time
	Balance          decimal.Decimal
	AvailableBalance decimal.Decimal
}

type ConfirmRequest struct {
	SessionID string
	Token     string
}

type Confirmation struct {
	Transaction *models.Transaction
	Client      *models.Client
}

// InitiatePayment reserves the amount against the client's available funds and
// opens a payment session. The balance itself only moves on confirmation. The
// client is resolved before the amount is validated.
func (s *Service) InitiatePayment(ctx context.Context, req PaymentRequest) (ps *PaymentSession, err error) {
	started := time.Now()
	defer func() { s.observe("initiate_payment", started, err) }()

	if missing := missingFields(map[string]string{
		"document": req.Document,
		"phone":    req.Phone,
		"amount":   req.Amount,
	}); len(missing) > 0 {
		return nil, errors.MissingFieldsErr(missing...)
	}

	token, err := s.Tokens()
	if err != nil {
		return nil, errors.E(errors.Internal, "generate token", err)
	}
	sessionID := uuid.NewString()
	txID := uuid.NewString()

	var (
		client  *models.Client
		payment *models.Transaction
		amount  decimal.Decimal
	)
	err = s.Store.RunInTx(ctx, func(ctx context.Context) error {
		c, err := s.findClient(ctx, strings.TrimSpace(req.Document), strings.TrimSpace(req.Phone))
		if err != nil {
			return err
		}
		if amount, err = models.ParseAmount(req.Amount); err != nil {
			return err
		}
		c, err = s.Store.HoldFunds(ctx, c.ID, amount)
		if err != nil {
			return err
		}

		now := s.now()
		t := &models.Transaction{
			ID:        txID,
			ClientID:  c.ID,
			Type:      models.TypePayment,
			Amount:    amount,
			Status:    models.StatusPending,
			SessionID: sessionID,
			Token:     token,
			Source:    models.SourceAPI,
			CreatedAt: now,
			ExpiresAt: now.Add(s.Config.SessionTTL),
		}
		if err := s.Store.CreateTransaction(ctx, t); err != nil {
			return err
		}
		client, payment = c, t
		return nil
	})
	if err != nil {
		return nil, err
	}

	notified := s.deliverToken(ctx, client, payment)

	s.Logger.Info("payment initiated",
		zap.String("client_id", client.ID),
		zap.String("transaction_id", payment.ID),
		zap.String("session_id", sessionID),
		zap.String("amount", money(amount)),
		zap.Bool("notified", notified),
	)
	s.publish(ctx, models.LedgerEvent{
		ID:            uuid.NewString(),
		Type:          models.EventPaymentInitiated,
		ClientID:      client.ID,
		TransactionID: payment.ID,
		SessionID:     sessionID,
		Amount:        money(amount),
		Balance:       money(client.Balance),
	})

	ps = &PaymentSession{
		SessionID:        sessionID,
		Notified:         notified,
		TransactionID:    payment.ID,
		Amount:           amount,
		ExpiresAt:        payment.ExpiresAt,
		Balance:          client.Balance,
		AvailableBalance: client.Available(),
	}
	if !notified {
		ps.Token = token
	}
	return ps, nil
}

// deliverToken sends the token by email when the client opted in. It runs after
// the unit of work has committed and reports whether delivery succeeded.
func (s *Service) deliverToken(ctx context.Context, c *models.Client, t *models.Transaction) bool {
	if !c.EmailVerification {
		s.Metrics.Notification("skipped")
		return false
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.Config.NotifyTimeout)
	defer cancel()

	err := s.Notifier.Notify(ctx, models.Message{
		To:      c.Email,
		Subject: "Payment Confirmation Token",
		Body: fmt.Sprintf(
			"Your payment confirmation token is: %s\nSession ID: %s\nAmount: %s\nThe token expires at %s.",
			t.Token, t.SessionID, money(t.Amount), t.ExpiresAt.Format(time.RFC1123),
		),
	})
	switch {
	case err == nil:
		s.Metrics.Notification("sent")
		return true
	case errors.Is(err, errors.ErrNotificationsDisabled):
		s.Metrics.Notification("disabled")
	default:
		s.Metrics.Notification("failed")
		s.Logger.Warn("token delivery failed, returning token in-band",
			zap.String("session_id", t.SessionID),
			zap.String("email", helpers.MaskEmail(c.Email)),
			zap.Error(err),
		)
	}
	return false
}

// ConfirmPayment settles a pending payment. The status flip and the debit commit
// together; a session that is unknown, already settled, expired or locked out
// yields ErrInvalidSessionOrToken.
func (s *Service) ConfirmPayment(ctx context.Context, req ConfirmRequest) (conf *Confirmation, err error) {
	started := time.Now()
	defer func() { s.observe("confirm_payment", started, err) }()

	req.SessionID = strings.TrimSpace(req.SessionID)
	req.Token = strings.TrimSpace(req.Token)
	if missing := missingFields(map[string]string{
		"sessionId": req.SessionID,
		"token":     req.Token,
	}); len(missing) > 0 {
		return nil, errors.MissingFieldsErr(missing...)
	}

	attempt, admitted, err := s.admitAttempt(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}
	if !admitted {
		return nil, errors.ErrInvalidSessionOrToken
	}

	var expired *models.Transaction
	err = s.Store.RunInTx(ctx, func(ctx context.Context) error {
		expired, conf = nil, nil

		t, err := s.lookupSession(ctx, req.SessionID, req.Token)
		if err != nil {
			return err
		}

		now := s.now()
		if t.Expired(now) {
			failed, err := s.failPayment(ctx, t, models.ReasonExpired, now)
			if errors.Is(err, errors.ErrNotFound) {
				return errors.ErrInvalidSessionOrToken
			}
			if err != nil {
				return err
			}
			expired = failed
			return nil
		}

		client, err := s.Store.FindClientByID(ctx, t.ClientID)
		if errors.Is(err, errors.ErrNotFound) {
			return errors.ErrClientNotFound
		}
		if err != nil {
			return err
		}

		done, err := s.Store.TransitionTransaction(ctx, t.ID, models.StatusPending, models.StatusCompleted, "", now)
		if errors.Is(err, errors.ErrNotFound) {
			return errors.ErrInvalidSessionOrToken
		}
		if err != nil {
			return err
		}
		client, err = s.Store.SettleHold(ctx, client.ID, t.Amount)
		if err != nil {
			return err
		}
		conf = &Confirmation{Transaction: done, Client: client}
		return nil
	})

	if err == nil && expired != nil {
		s.paymentFailed(ctx, expired)
		return nil, errors.ErrInvalidSessionOrToken
	}
	if errors.Is(err, errors.ErrInvalidSessionOrToken) {
		if attempt > 0 && attempt >= s.Config.MaxConfirmAttempts {
			s.lockOut(ctx, req.SessionID)
		}
		return nil, err
	}
	if err != nil {
		return nil, err
	}

	s.resetAttempts(ctx, req.SessionID)
	s.Logger.Info("payment confirmed",
		zap.String("client_id", conf.Client.ID),
		zap.String("transaction_id", conf.Transaction.ID),
		zap.String("session_id", req.SessionID),
		zap.String("amount", money(conf.Transaction.Amount)),
	)
	s.publish(ctx, models.LedgerEvent{
		ID:            uuid.NewString(),
		Type:          models.EventPaymentConfirmed,
		ClientID:      conf.Client.ID,
		TransactionID: conf.Transaction.ID,
		SessionID:     req.SessionID,
		Amount:        money(conf.Transaction.Amount),
		Balance:       money(conf.Client.Balance),
	})
	return conf, nil
}

// ExpirePayment fails a pending payment and releases its reservation. It reports
// false when the payment had already left PENDING.
func (s *Service) ExpirePayment(ctx context.Context, t *models.Transaction, reason string) (bool, error) {
	var failed *models.Transaction
	err := s.Store.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		failed, err = s.failPayment(ctx, t, reason, s.now())
		return err
	})
	if errors.Is(err, errors.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	s.paymentFailed(ctx, failed)
	return true, nil
}

// failPayment must run inside a unit of work.
func (s *Service) failPayment(ctx context.Context, t *models.Transaction, reason string, now time.Time) (*models.Transaction, error) {
	failed, err := s.Store.TransitionTransaction(ctx, t.ID, models.StatusPending, models.StatusFailed, reason, now)
	if err != nil {
		return nil, err
	}
	if _, err := s.Store.ReleaseHold(ctx, failed.ClientID, failed.Amount); err != nil {
		return nil, err
	}
	return failed, nil
}

func (s *Service) paymentFailed(ctx context.Context, t *models.Transaction) {
	s.Metrics.SessionFailed(t.FailureReason)
	s.Logger.Info("payment failed",
		zap.String("client_id", t.ClientID),
		zap.String("transaction_id", t.ID),
		zap.String("session_id", t.SessionID),
		zap.String("reason", t.FailureReason),
	)
	s.publish(ctx, models.LedgerEvent{
		ID:            uuid.NewString(),
		Type:          models.EventPaymentFailed,
		ClientID:      t.ClientID,
		TransactionID: t.ID,
		SessionID:     t.SessionID,
		Amount:        money(t.Amount),
		Reason:        t.FailureReason,
	})
}

// admitAttempt counts a confirmation attempt against a pending session before
// the token is checked, so parallel guesses cannot exceed the limit. Sessions
// that are not pending are refused without being counted. The returned attempt
// number is zero when nothing was counted; a limiter error fails open.
func (s *Service) admitAttempt(ctx context.Context, sessionID string) (int64, bool, error) {
	_, err := s.Store.FindTransactionBySession(ctx, sessionID, models.StatusPending)
	if errors.Is(err, errors.ErrNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	if s.Limiter == nil {
		return 0, true, nil
	}
	n, err := s.Limiter.Record(ctx, sessionID)
	if err != nil {
		s.Logger.Warn("attempt limiter unavailable", zap.String("session_id", sessionID), zap.Error(err))
		return 0, true, nil
	}
	return n, n <= s.Config.MaxConfirmAttempts, nil
}

// lockOut fails a session whose attempts are spent, releasing its reservation.
func (s *Service) lockOut(ctx context.Context, sessionID string) {
	var failed *models.Transaction
	err := s.Store.RunInTx(ctx, func(ctx context.Context) error {
		failed = nil
		t, err := s.Store.FindTransactionBySession(ctx, sessionID, models.StatusPending)
		if errors.Is(err, errors.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		failed, err = s.failPayment(ctx, t, models.ReasonTooManyAttempts, s.now())
		if errors.Is(err, errors.ErrNotFound) {
			failed = nil
			return nil
		}
		return err
	})
	if err != nil {
		s.Logger.Error("cannot lock out payment session", zap.String("session_id", sessionID), zap.Error(err))
		return
	}
	if failed != nil {
		s.paymentFailed(ctx, failed)
	}
}

func (s *Service) resetAttempts(ctx context.Context, sessionID string) {
	if s.Limiter == nil {
		return
	}
	if err := s.Limiter.Reset(ctx, sessionID); err != nil {
		s.Logger.Warn("cannot reset confirmation attempts", zap.String("session_id", sessionID), zap.Error(err))
	}
}
