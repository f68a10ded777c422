package wallet

import (
	// Go Internal Packages
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	// Local Packages
	errors "wallet-ledger/errors"
	models "wallet-ledger/models"

	// External Packages
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaymentInitiateAndConfirm(t *testing.T) {
	h := newHarness(t, DefaultConfig)
	c := h.client(t, "1", "100.00")
	ctx := context.Background()

	ps := h.pay(t, c, "30.00")
	assert.NotEmpty(t, ps.SessionID)
	assert.Len(t, ps.Token, 6)
	assert.False(t, ps.Notified)
	assert.Equal(t, "100.00", ps.Balance.StringFixed(2))
	assert.Equal(t, "70.00", ps.AvailableBalance.StringFixed(2))

	before := h.reload(t, c)
	assert.Equal(t, "100.00", before.Balance.StringFixed(2), "initiation does not move the balance")
	assert.Equal(t, "30.00", before.Held.StringFixed(2))

	conf, err := h.svc.ConfirmPayment(ctx, ConfirmRequest{SessionID: ps.SessionID, Token: ps.Token})
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, conf.Transaction.Status)
	assert.Equal(t, "70.00", conf.Client.Balance.StringFixed(2))
	assert.True(t, conf.Client.Held.IsZero())

	_, err = h.svc.ConfirmPayment(ctx, ConfirmRequest{SessionID: ps.SessionID, Token: ps.Token})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidSessionOrToken))
	assert.Equal(t, "70.00", h.reload(t, c).Balance.StringFixed(2), "replay must not debit twice")

	assert.Equal(t, []models.EventType{
		models.EventClientRegistered,
		models.EventRechargeCompleted,
		models.EventPaymentInitiated,
		models.EventPaymentConfirmed,
	}, h.publisher.types())
}

func TestPaymentInsufficientFunds(t *testing.T) {
	h := newHarness(t, DefaultConfig)
	c := h.client(t, "1", "10.00")

	_, err := h.svc.InitiatePayment(context.Background(), PaymentRequest{
		Document: c.Document, Phone: c.Phone, Amount: "20.00",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInsufficientFunds))
	assert.Equal(t, errors.InsufficientFunds, errors.KindOf(err))

	n, err := h.store.CountTransactions(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n, "a rejected payment leaves no record")
	assert.True(t, h.reload(t, c).Held.IsZero())
}

func TestPaymentReservationsPreventOvercommit(t *testing.T) {
	h := newHarness(t, DefaultConfig)
	c := h.client(t, "1", "100.00")

	h.pay(t, c, "60.00")
	_, err := h.svc.InitiatePayment(context.Background(), PaymentRequest{
		Document: c.Document, Phone: c.Phone, Amount: "60.00",
	})
	assert.True(t, errors.Is(err, errors.ErrInsufficientFunds))

	h.pay(t, c, "40.00")
	assert.True(t, h.reload(t, c).Available().IsZero())
}

func TestPaymentValidation(t *testing.T) {
	h := newHarness(t, DefaultConfig)
	c := h.client(t, "1", "100.00")
	ctx := context.Background()

	_, err := h.svc.InitiatePayment(ctx, PaymentRequest{Document: c.Document, Phone: c.Phone})
	assert.True(t, errors.Is(err, errors.ErrMissingFields))

	_, err = h.svc.InitiatePayment(ctx, PaymentRequest{Document: c.Document, Phone: c.Phone, Amount: "1.234"})
	assert.True(t, errors.Is(err, errors.ErrInvalidAmount))

	_, err = h.svc.InitiatePayment(ctx, PaymentRequest{Document: "nobody", Phone: c.Phone, Amount: "1"})
	assert.True(t, errors.Is(err, errors.ErrClientNotFound))

	_, err = h.svc.InitiatePayment(ctx, PaymentRequest{Document: "nobody", Phone: c.Phone, Amount: "1.234"})
	assert.True(t, errors.Is(err, errors.ErrClientNotFound), "the client is resolved before the amount is checked")

	_, err = h.svc.ConfirmPayment(ctx, ConfirmRequest{SessionID: "abc"})
	assert.True(t, errors.Is(err, errors.ErrMissingFields))
}

func TestConfirmRequiresExactTokenMatch(t *testing.T) {
	h := newHarness(t, Config{MaxConfirmAttempts: 5})
	c := h.client(t, "1", "100.00")
	other := h.client(t, "2", "100.00")
	ctx := context.Background()

	ps := h.pay(t, c, "30.00")
	otherPs := h.pay(t, other, "10.00")

	wrong := "000000"
	if ps.Token == wrong {
		wrong = "111111"
	}
	attempts := []ConfirmRequest{
		{SessionID: ps.SessionID, Token: wrong},
		{SessionID: ps.SessionID, Token: otherPs.Token + "0"},
		{SessionID: "unknown-session", Token: ps.Token},
		{SessionID: otherPs.SessionID, Token: ps.Token + "9"},
	}
	for _, req := range attempts {
		_, err := h.svc.ConfirmPayment(ctx, req)
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrInvalidSessionOrToken))
		assert.Equal(t, errors.ErrInvalidSessionOrToken.Error(), err.Error(), "misses are indistinguishable")
	}

	assert.Equal(t, "100.00", h.reload(t, c).Balance.StringFixed(2))

	conf, err := h.svc.ConfirmPayment(ctx, ConfirmRequest{SessionID: ps.SessionID, Token: ps.Token})
	require.NoError(t, err)
	assert.Equal(t, "70.00", conf.Client.Balance.StringFixed(2))
}

func TestConfirmLocksOutAfterTooManyAttempts(t *testing.T) {
	h := newHarness(t, Config{MaxConfirmAttempts: 3})
	c := h.client(t, "1", "100.00")
	ctx := context.Background()

	ps := h.pay(t, c, "30.00")
	wrong := "000000"
	if ps.Token == wrong {
		wrong = "111111"
	}
	for i := 0; i < 3; i++ {
		_, err := h.svc.ConfirmPayment(ctx, ConfirmRequest{SessionID: ps.SessionID, Token: wrong})
		require.True(t, errors.Is(err, errors.ErrInvalidSessionOrToken))
	}

	_, err := h.svc.ConfirmPayment(ctx, ConfirmRequest{SessionID: ps.SessionID, Token: ps.Token})
	require.True(t, errors.Is(err, errors.ErrInvalidSessionOrToken))

	fresh := h.reload(t, c)
	assert.Equal(t, "100.00", fresh.Balance.StringFixed(2))
	assert.True(t, fresh.Held.IsZero(), "locked out session releases its reservation")

	_, err = h.store.FindTransactionBySession(ctx, ps.SessionID, models.StatusPending)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
	failed, err := h.store.FindTransactionBySession(ctx, ps.SessionID, models.StatusFailed)
	require.NoError(t, err)
	assert.Equal(t, models.ReasonTooManyAttempts, failed.FailureReason)
}

func TestConfirmExpiredSession(t *testing.T) {
	h := newHarness(t, Config{SessionTTL: time.Minute})
	c := h.client(t, "1", "100.00")
	ctx := context.Background()

	ps := h.pay(t, c, "30.00")
	h.clock.Advance(2 * time.Minute)

	_, err := h.svc.ConfirmPayment(ctx, ConfirmRequest{SessionID: ps.SessionID, Token: ps.Token})
	require.True(t, errors.Is(err, errors.ErrInvalidSessionOrToken))

	fresh := h.reload(t, c)
	assert.Equal(t, "100.00", fresh.Balance.StringFixed(2))
	assert.True(t, fresh.Held.IsZero())

	failed, err := h.store.FindTransactionBySession(ctx, ps.SessionID, models.StatusFailed)
	require.NoError(t, err)
	assert.Equal(t, models.ReasonExpired, failed.FailureReason)
	assert.Contains(t, h.publisher.types(), models.EventPaymentFailed)
}

func TestTokenDelivery(t *testing.T) {
	ctx := context.Background()

	register := func(t *testing.T, h *harness, verify bool) *models.Client {
		c, err := h.svc.RegisterClient(ctx, RegisterRequest{
			Document: "1", Name: "Ada", Email: "ada@example.com", Phone: "100",
			EmailVerification: boolPtr(verify),
		})
		require.NoError(t, err)
		_, err = h.svc.Recharge(ctx, RechargeRequest{Document: "1", Phone: "100", Amount: "50"})
		require.NoError(t, err)
		return c
	}

	t.Run("delivered out of band", func(t *testing.T) {
		h := newHarness(t, DefaultConfig)
		tokens := []string{}
		h.svc.Tokens = func() (string, error) {
			tokens = append(tokens, "424242")
			return "424242", nil
		}
		c := register(t, h, true)

		ps := h.pay(t, c, "10")
		assert.True(t, ps.Notified)
		assert.Empty(t, ps.Token, "token is withheld once delivered")

		sent := h.notifier.sent()
		require.Len(t, sent, 1)
		assert.Equal(t, "ada@example.com", sent[0].To)
		assert.Contains(t, sent[0].Body, "424242")
		assert.Contains(t, sent[0].Body, ps.SessionID)

		_, err := h.svc.ConfirmPayment(ctx, ConfirmRequest{SessionID: ps.SessionID, Token: tokens[0]})
		require.NoError(t, err)
	})

	t.Run("notifier failure falls back to in-band", func(t *testing.T) {
		h := newHarness(t, DefaultConfig)
		h.notifier.err = stderrors.New("smtp: connection refused")
		c := register(t, h, true)

		ps := h.pay(t, c, "10")
		assert.False(t, ps.Notified)
		assert.Len(t, ps.Token, 6)

		_, err := h.svc.ConfirmPayment(ctx, ConfirmRequest{SessionID: ps.SessionID, Token: ps.Token})
		require.NoError(t, err)
	})

	t.Run("verification disabled", func(t *testing.T) {
		h := newHarness(t, DefaultConfig)
		c := register(t, h, false)

		ps := h.pay(t, c, "10")
		assert.False(t, ps.Notified)
		assert.Len(t, ps.Token, 6)
		assert.Empty(t, h.notifier.sent())
	})

	t.Run("notifications disabled", func(t *testing.T) {
		h := newHarness(t, DefaultConfig)
		h.svc.Notifier = disabledNotifier{}
		c := register(t, h, true)

		ps := h.pay(t, c, "10")
		assert.False(t, ps.Notified)
		assert.Len(t, ps.Token, 6)
	})
}

func TestEventsNeverCarryTokens(t *testing.T) {
	h := newHarness(t, DefaultConfig)
	c := h.client(t, "1", "100.00")

	ps := h.pay(t, c, "30.00")
	_, err := h.svc.ConfirmPayment(context.Background(), ConfirmRequest{SessionID: ps.SessionID, Token: ps.Token})
	require.NoError(t, err)

	h.publisher.mu.Lock()
	defer h.publisher.mu.Unlock()
	for _, e := range h.publisher.events {
		raw, err := json.Marshal(e)
		require.NoError(t, err)
		assert.NotContains(t, string(raw), ps.Token)
	}
}

func TestConcurrentConfirmSettlesOnce(t *testing.T) {
	h := newHarness(t, Config{MaxConfirmAttempts: 100})
	c := h.client(t, "1", "100.00")
	ps := h.pay(t, c, "30.00")

	var (
		wg      sync.WaitGroup
		success int32
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.svc.ConfirmPayment(context.Background(), ConfirmRequest{SessionID: ps.SessionID, Token: ps.Token})
			if err == nil {
				atomic.AddInt32(&success, 1)
				return
			}
			assert.True(t, errors.Is(err, errors.ErrInvalidSessionOrToken))
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), success)
	assert.Equal(t, "70.00", h.reload(t, c).Balance.StringFixed(2))
}

func TestConcurrentInitiateNeverOvercommits(t *testing.T) {
	h := newHarness(t, DefaultConfig)
	c := h.client(t, "1", "100.00")

	var (
		wg      sync.WaitGroup
		success int32
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.svc.InitiatePayment(context.Background(), PaymentRequest{
				Document: c.Document, Phone: c.Phone, Amount: "10.00",
			})
			if err == nil {
				atomic.AddInt32(&success, 1)
				return
			}
			assert.True(t, errors.Is(err, errors.ErrInsufficientFunds))
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(10), success)
	fresh := h.reload(t, c)
	assert.Equal(t, "100.00", fresh.Held.StringFixed(2))
	assert.True(t, fresh.Available().IsZero())
}

// TestBalanceConservation replays a random mix of operations and checks that the
// balance always equals recharges minus confirmed payments, and that the held
// amount equals the pending payments.
func TestBalanceConservation(t *testing.T) {
	h := newHarness(t, Config{MaxConfirmAttempts: 1000})
	c := h.client(t, "1", "")
	ctx := context.Background()
	rng := rand.New(rand.NewSource(42))

	var (
		recharged = decimal.Zero
		paid      = decimal.Zero
		pending   = map[string]*PaymentSession{}
	)
	for i := 0; i < 300; i++ {
		amount := decimal.New(int64(rng.Intn(5000)+1), -2)
		switch rng.Intn(4) {
		case 0:
			_, err := h.svc.Recharge(ctx, RechargeRequest{Document: c.Document, Phone: c.Phone, Amount: amount.String()})
			require.NoError(t, err)
			recharged = recharged.Add(amount)
		case 1, 2:
			ps, err := h.svc.InitiatePayment(ctx, PaymentRequest{Document: c.Document, Phone: c.Phone, Amount: amount.String()})
			if err != nil {
				require.True(t, errors.Is(err, errors.ErrInsufficientFunds))
				continue
			}
			pending[ps.SessionID] = ps
		case 3:
			for id, ps := range pending {
				conf, err := h.svc.ConfirmPayment(ctx, ConfirmRequest{SessionID: id, Token: ps.Token})
				require.NoError(t, err)
				paid = paid.Add(conf.Transaction.Amount)
				delete(pending, id)
				break
			}
		}

		held := decimal.Zero
		for _, ps := range pending {
			held = held.Add(ps.Amount)
		}
		fresh := h.reload(t, c)
		require.True(t, fresh.Balance.Equal(recharged.Sub(paid)), "step %d: balance %s", i, fresh.Balance)
		require.True(t, fresh.Held.Equal(held), "step %d: held %s", i, fresh.Held)
		require.False(t, fresh.Available().IsNegative())
	}
}

// recordingLimiter wraps a limiter and remembers which sessions were counted.
type recordingLimiter struct {
	AttemptLimiter
	mu       sync.Mutex
	sessions []string
}

func (l *recordingLimiter) Record(ctx context.Context, sessionID string) (int64, error) {
	l.mu.Lock()
	l.sessions = append(l.sessions, sessionID)
	l.mu.Unlock()
	return l.AttemptLimiter.Record(ctx, sessionID)
}

func TestUnknownSessionsAreNotCounted(t *testing.T) {
	h := newHarness(t, DefaultConfig)
	limiter := &recordingLimiter{AttemptLimiter: h.svc.Limiter}
	h.svc.Limiter = limiter
	c := h.client(t, "1", "100.00")
	ctx := context.Background()

	for i := 0; i < 50; i++ {
		_, err := h.svc.ConfirmPayment(ctx, ConfirmRequest{SessionID: fmt.Sprintf("made-up-%d", i), Token: "123456"})
		require.True(t, errors.Is(err, errors.ErrInvalidSessionOrToken))
	}
	assert.Empty(t, limiter.sessions)

	ps := h.pay(t, c, "10.00")
	conf, err := h.svc.ConfirmPayment(ctx, ConfirmRequest{SessionID: ps.SessionID, Token: ps.Token})
	require.NoError(t, err)

	_, err = h.svc.ConfirmPayment(ctx, ConfirmRequest{SessionID: ps.SessionID, Token: ps.Token})
	require.True(t, errors.Is(err, errors.ErrInvalidSessionOrToken))
	assert.Equal(t, []string{ps.SessionID}, limiter.sessions, "settled sessions are not counted either")
	assert.Equal(t, "90.00", conf.Client.Balance.StringFixed(2))
}

func TestSpentAttemptsRefuseTheRightToken(t *testing.T) {
	h := newHarness(t, Config{MaxConfirmAttempts: 3})
	c := h.client(t, "1", "100.00")
	ctx := context.Background()

	ps := h.pay(t, c, "30.00")
	for i := 0; i < 3; i++ {
		_, err := h.svc.Limiter.Record(ctx, ps.SessionID)
		require.NoError(t, err)
	}

	_, err := h.svc.ConfirmPayment(ctx, ConfirmRequest{SessionID: ps.SessionID, Token: ps.Token})
	require.True(t, errors.Is(err, errors.ErrInvalidSessionOrToken))

	fresh := h.reload(t, c)
	assert.Equal(t, "100.00", fresh.Balance.StringFixed(2))
	assert.Equal(t, "30.00", fresh.Held.StringFixed(2))
}

// tokenCheckCounter counts how many confirmations reached the token comparison.
type tokenCheckCounter struct {
	Store
	checks int32
}

func (s *tokenCheckCounter) FindTransactionBySessionAndToken(ctx context.Context, sessionID, token string, status models.TransactionStatus) (*models.Transaction, error) {
	atomic.AddInt32(&s.checks, 1)
	return s.Store.FindTransactionBySessionAndToken(ctx, sessionID, token, status)
}

func TestParallelGuessesRespectTheLimit(t *testing.T) {
	h := newHarness(t, Config{MaxConfirmAttempts: 3})
	c := h.client(t, "1", "100.00")
	ps := h.pay(t, c, "30.00")

	store := &tokenCheckCounter{Store: h.store}
	h.svc.Store = store

	wrong := "000000"
	if ps.Token == wrong {
		wrong = "111111"
	}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.svc.ConfirmPayment(context.Background(), ConfirmRequest{SessionID: ps.SessionID, Token: wrong})
			assert.True(t, errors.Is(err, errors.ErrInvalidSessionOrToken))
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, atomic.LoadInt32(&store.checks), int32(3))
	failed, err := h.store.FindTransactionBySession(context.Background(), ps.SessionID, models.StatusFailed)
	require.NoError(t, err)
	assert.Equal(t, models.ReasonTooManyAttempts, failed.FailureReason)
	assert.True(t, h.reload(t, c).Held.IsZero())
}
