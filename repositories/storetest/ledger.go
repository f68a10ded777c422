// Package storetest holds the behaviour every ledger store must share. Each
// backend runs it from its own tests.
package storetest

import (
	// Go Internal Packages
	"context"
	stderrors "errors"
	"testing"
	"time"

	// Local Packages
	errors "wallet-ledger/errors"
	models "wallet-ledger/models"
	wallet "wallet-ledger/services/wallet"

	// External Packages
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Run exercises store. Records use fresh identifiers so a shared database can
// be reused between runs.
func Run(t *testing.T, store wallet.Store) {
	t.Run("unique client fields", func(t *testing.T) { uniqueClientFields(t, store) })
	t.Run("balance guards", func(t *testing.T) { balanceGuards(t, store) })
	t.Run("unit of work rolls back", func(t *testing.T) { rollback(t, store) })
	t.Run("conditional transition", func(t *testing.T) { conditionalTransition(t, store) })
	t.Run("unique reference", func(t *testing.T) { uniqueReference(t, store) })
	t.Run("history order", func(t *testing.T) { historyOrder(t, store) })
	t.Run("expired payments", func(t *testing.T) { expiredPayments(t, store) })
}

func amount(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// now is truncated to what every backend can store.
func now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

func newClient(t *testing.T, store wallet.Store, balance string) *models.Client {
	t.Helper()
	id := uuid.NewString()
	c := &models.Client{
		ID:        id,
		Document:  "doc-" + id,
		Name:      "Client " + id,
		Email:     id + "@example.com",
		Phone:     "phone-" + id,
		Balance:   decimal.Zero,
		Held:      decimal.Zero,
		CreatedAt: now(),
		UpdatedAt: now(),
	}
	ctx := context.Background()
	require.NoError(t, store.CreateClient(ctx, c))
	if balance != "" {
		var err error
		c, err = store.AdjustBalance(ctx, c.ID, amount(balance))
		require.NoError(t, err)
	}
	return c
}

func payment(clientID, value string, created, expires time.Time) *models.Transaction {
	return &models.Transaction{
		ID:        uuid.NewString(),
		ClientID:  clientID,
		Type:      models.TypePayment,
		Amount:    amount(value),
		Status:    models.StatusPending,
		SessionID: uuid.NewString(),
		Token:     "123456",
		Source:    models.SourceAPI,
		CreatedAt: created,
		ExpiresAt: expires,
	}
}

func uniqueClientFields(t *testing.T, store wallet.Store) {
	ctx := context.Background()
	c := newClient(t, store, "")

	sameEmail := *c
	sameEmail.ID, sameEmail.Document, sameEmail.Phone = uuid.NewString(), "doc-"+uuid.NewString(), "phone-"+uuid.NewString()
	assert.True(t, errors.Is(store.CreateClient(ctx, &sameEmail), errors.ErrDuplicateKey))

	samePhone := *c
	samePhone.ID, samePhone.Document, samePhone.Email = uuid.NewString(), "doc-"+uuid.NewString(), uuid.NewString()+"@example.com"
	assert.True(t, errors.Is(store.CreateClient(ctx, &samePhone), errors.ErrDuplicateKey))

	found, err := store.FindClientByDocumentAndPhone(ctx, c.Document, c.Phone)
	require.NoError(t, err)
	assert.Equal(t, c.ID, found.ID)

	_, err = store.FindClientByDocumentAndPhone(ctx, c.Document, "other")
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func balanceGuards(t *testing.T, store wallet.Store) {
	ctx := context.Background()
	c := newClient(t, store, "100.00")

	held, err := store.HoldFunds(ctx, c.ID, amount("60.00"))
	require.NoError(t, err)
	assert.Equal(t, "60.00", held.Held.StringFixed(2))

	_, err = store.HoldFunds(ctx, c.ID, amount("40.01"))
	assert.True(t, errors.Is(err, errors.ErrInsufficientFunds))

	_, err = store.AdjustBalance(ctx, c.ID, amount("-40.01"))
	assert.True(t, errors.Is(err, errors.ErrInsufficientFunds), "balance may not drop below held funds")

	_, err = store.HoldFunds(ctx, uuid.NewString(), amount("1"))
	assert.True(t, errors.Is(err, errors.ErrNotFound))

	settled, err := store.SettleHold(ctx, c.ID, amount("60.00"))
	require.NoError(t, err)
	assert.Equal(t, "40.00", settled.Balance.StringFixed(2))
	assert.True(t, settled.Held.IsZero())

	_, err = store.ReleaseHold(ctx, c.ID, amount("0.01"))
	assert.Error(t, err)
}

func rollback(t *testing.T, store wallet.Store) {
	ctx := context.Background()
	c := newClient(t, store, "10.00")

	boom := stderrors.New("boom")
	err := store.RunInTx(ctx, func(ctx context.Context) error {
		if _, err := store.AdjustBalance(ctx, c.ID, amount("5.00")); err != nil {
			return err
		}
		if err := store.CreateTransaction(ctx, payment(c.ID, "1.00", now(), now().Add(time.Minute))); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	fresh, err := store.FindClientByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "10.00", fresh.Balance.StringFixed(2))
	n, err := store.CountTransactions(ctx, c.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func conditionalTransition(t *testing.T, store wallet.Store) {
	ctx := context.Background()
	c := newClient(t, store, "")
	p := payment(c.ID, "5.00", now(), now().Add(time.Minute))
	require.NoError(t, store.CreateTransaction(ctx, p))

	_, err := store.FindTransactionBySessionAndToken(ctx, p.SessionID, "654321", models.StatusPending)
	assert.True(t, errors.Is(err, errors.ErrNotFound))

	found, err := store.FindTransactionBySessionAndToken(ctx, p.SessionID, p.Token, models.StatusPending)
	require.NoError(t, err)
	assert.True(t, found.Amount.Equal(p.Amount))

	done, err := store.TransitionTransaction(ctx, p.ID, models.StatusPending, models.StatusCompleted, "", now())
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, done.Status)
	assert.False(t, done.CompletedAt.IsZero())

	_, err = store.TransitionTransaction(ctx, p.ID, models.StatusPending, models.StatusFailed, models.ReasonExpired, now())
	assert.True(t, errors.Is(err, errors.ErrNotFound), "a settled payment cannot move again")

	_, err = store.FindTransactionBySession(ctx, p.SessionID, models.StatusPending)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func uniqueReference(t *testing.T, store wallet.Store) {
	ctx := context.Background()
	c := newClient(t, store, "")
	ref := "ref-" + uuid.NewString()

	recharge := func() *models.Transaction {
		return &models.Transaction{
			ID:          uuid.NewString(),
			ClientID:    c.ID,
			Type:        models.TypeRecharge,
			Amount:      amount("1.00"),
			Status:      models.StatusCompleted,
			Source:      models.SourceStream,
			Reference:   ref,
			CreatedAt:   now(),
			CompletedAt: now(),
		}
	}
	require.NoError(t, store.CreateTransaction(ctx, recharge()))
	assert.True(t, errors.Is(store.CreateTransaction(ctx, recharge()), errors.ErrDuplicateKey))
}

func historyOrder(t *testing.T, store wallet.Store) {
	ctx := context.Background()
	c := newClient(t, store, "")
	base := now()

	var ids []string
	for i := 0; i < 3; i++ {
		p := payment(c.ID, "1.00", base.Add(time.Duration(i)*time.Second), base.Add(time.Hour))
		require.NoError(t, store.CreateTransaction(ctx, p))
		ids = append(ids, p.ID)
	}

	err := store.RunInSnapshot(ctx, func(ctx context.Context) error {
		n, err := store.CountTransactions(ctx, c.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(3), n)

		page, err := store.ListTransactions(ctx, c.ID, 1, 2)
		require.NoError(t, err)
		require.Len(t, page, 2)
		assert.Equal(t, ids[1], page[0].ID)
		assert.Equal(t, ids[0], page[1].ID)
		return nil
	})
	require.NoError(t, err)
}

func expiredPayments(t *testing.T, store wallet.Store) {
	ctx := context.Background()
	c := newClient(t, store, "")
	at := now()

	stale := payment(c.ID, "1.00", at.Add(-2*time.Hour), at.Add(-time.Hour))
	live := payment(c.ID, "1.00", at, at.Add(time.Hour))
	require.NoError(t, store.CreateTransaction(ctx, stale))
	require.NoError(t, store.CreateTransaction(ctx, live))

	expired, err := store.ListExpiredPayments(ctx, at, 1000)
	require.NoError(t, err)
	var seen []string
	for _, p := range expired {
		seen = append(seen, p.ID)
	}
	assert.Contains(t, seen, stale.ID)
	assert.NotContains(t, seen, live.ID)
}
