package wallet

import (
	// Go Internal Packages
	"context"
	"testing"

	// Local Packages
	errors "wallet-ledger/errors"
	models "wallet-ledger/models"

	// External Packages
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecharge(t *testing.T) {
	h := newHarness(t, DefaultConfig)
	c := h.client(t, "1", "")

	res, err := h.svc.Recharge(context.Background(), RechargeRequest{
		Document: c.Document,
		Phone:    c.Phone,
		Amount:   "50",
	})
	require.NoError(t, err)
	assert.Equal(t, "50.00", res.Client.Balance.StringFixed(2))
	assert.Equal(t, models.TypeRecharge, res.Transaction.Type)
	assert.Equal(t, models.StatusCompleted, res.Transaction.Status)
	assert.Equal(t, models.SourceAPI, res.Transaction.Source)
	assert.True(t, res.Transaction.Amount.Equal(decimal.NewFromInt(50)))

	res, err = h.svc.Recharge(context.Background(), RechargeRequest{
		Document: c.Document,
		Phone:    c.Phone,
		Amount:   "0.10",
	})
	require.NoError(t, err)
	assert.Equal(t, "50.10", res.Client.Balance.StringFixed(2))
}

func TestRechargeRejectsInvalidAmounts(t *testing.T) {
	h := newHarness(t, DefaultConfig)
	c := h.client(t, "1", "")

	for _, amount := range []string{"0", "-5", "abc", "1.001", "100000000"} {
		t.Run(amount, func(t *testing.T) {
			_, err := h.svc.Recharge(context.Background(), RechargeRequest{
				Document: c.Document,
				Phone:    c.Phone,
				Amount:   amount,
			})
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.ErrInvalidAmount))
		})
	}

	assert.True(t, h.reload(t, c).Balance.IsZero())
}

func TestRechargeValidatesBeforeLookup(t *testing.T) {
	h := newHarness(t, DefaultConfig)

	_, err := h.svc.Recharge(context.Background(), RechargeRequest{Document: "x", Phone: "y", Amount: "-1"})
	assert.True(t, errors.Is(err, errors.ErrInvalidAmount))

	_, err = h.svc.Recharge(context.Background(), RechargeRequest{Document: "x", Phone: "y", Amount: "1"})
	assert.True(t, errors.Is(err, errors.ErrClientNotFound))

	_, err = h.svc.Recharge(context.Background(), RechargeRequest{Document: "x"})
	assert.True(t, errors.Is(err, errors.ErrMissingFields))
}

func TestRechargeReferenceIsAppliedOnce(t *testing.T) {
	h := newHarness(t, DefaultConfig)
	c := h.client(t, "1", "")

	req := RechargeRequest{
		Document:  c.Document,
		Phone:     c.Phone,
		Amount:    "25.00",
		Reference: "gw-1",
		Source:    models.SourceStream,
	}
	_, err := h.svc.Recharge(context.Background(), req)
	require.NoError(t, err)

	_, err = h.svc.Recharge(context.Background(), req)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrDuplicateKey))

	assert.Equal(t, "25.00", h.reload(t, c).Balance.StringFixed(2))
	n, err := h.store.CountTransactions(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
