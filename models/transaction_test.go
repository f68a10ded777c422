package models

import (
	// Go Internal Packages
	"testing"
	"time"

	// Local Packages
	errors "wallet-ledger/errors"

	// External Packages
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		raw  string
		want string
		err  error
	}{
		{raw: "30", want: "30.00"},
		{raw: " 30.5 ", want: "30.50"},
		{raw: "0.01", want: "0.01"},
		{raw: "99999999.99", want: "99999999.99"},
		{raw: "", err: errors.ErrMissingFields},
		{raw: "0", err: errors.ErrInvalidAmount},
		{raw: "-1", err: errors.ErrInvalidAmount},
		{raw: "1.001", err: errors.ErrInvalidAmount},
		{raw: "NaN", err: errors.ErrInvalidAmount},
		{raw: "1e3x", err: errors.ErrInvalidAmount},
		{raw: "100000000", err: errors.ErrInvalidAmount},
		{raw: "1e-200000000", err: errors.ErrInvalidAmount},
		{raw: "1e200000000", err: errors.ErrInvalidAmount},
		{raw: "1E2", err: errors.ErrInvalidAmount},
		{raw: "+5", err: errors.ErrInvalidAmount},
		{raw: "5.", err: errors.ErrInvalidAmount},
		{raw: ".5", err: errors.ErrInvalidAmount},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseAmount(tt.raw)
			if tt.err != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.StringFixed(2))
		})
	}
}

func TestParseAmountRejectsExponentsQuickly(t *testing.T) {
	done := make(chan error, 1)
	go func() {
		_, err := ParseAmount("1e-200000000")
		done <- err
	}()
	select {
	case err := <-done:
		assert.True(t, errors.Is(err, errors.ErrInvalidAmount))
	case <-time.After(time.Second):
		t.Fatal("ParseAmount did not return within a second")
	}
}

func TestTransactionExpired(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	recharge := &Transaction{Type: TypeRecharge}
	assert.False(t, recharge.Expired(now), "records without a deadline never expire")

	payment := &Transaction{Type: TypePayment, ExpiresAt: now}
	assert.True(t, payment.Expired(now))
	assert.False(t, payment.Expired(now.Add(-time.Second)))
}

func TestClientAvailable(t *testing.T) {
	c := &Client{Balance: decimal.RequireFromString("100"), Held: decimal.RequireFromString("30.25")}
	assert.Equal(t, "69.75", c.Available().StringFixed(2))
}

func TestMongoTransactionKeepsExactAmounts(t *testing.T) {
	tx := &Transaction{
		ID:        "t1",
		Type:      TypePayment,
		Amount:    decimal.RequireFromString("0.10"),
		Status:    StatusPending,
		SessionID: "s1",
		CreatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	doc := tx.Transform()
	assert.Nil(t, doc.CompletedAt)

	back := doc.Model()
	assert.True(t, back.Amount.Equal(tx.Amount))
	assert.True(t, back.CompletedAt.IsZero())
}
