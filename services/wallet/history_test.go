package wallet

import (
	// Go Internal Packages
	"context"
	"testing"

	// Local Packages
	errors "wallet-ledger/errors"

	// External Packages
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBalancePagination(t *testing.T) {
	h := newHarness(t, DefaultConfig)
	c := h.client(t, "1", "")
	ctx := context.Background()

	var ids []string
	for i := 1; i <= 25; i++ {
		res, err := h.svc.Recharge(ctx, RechargeRequest{Document: c.Document, Phone: c.Phone, Amount: "1"})
		require.NoError(t, err)
		ids = append(ids, res.Transaction.ID)
	}

	st, err := h.svc.Balance(ctx, BalanceQuery{Document: c.Document, Phone: c.Phone})
	require.NoError(t, err)
	assert.Equal(t, "25.00", st.Client.Balance.StringFixed(2))
	assert.Equal(t, 1, st.Pagination.CurrentPage)
	assert.Equal(t, int64(3), st.Pagination.TotalPages)
	assert.Equal(t, int64(25), st.Pagination.TotalItems)
	assert.Equal(t, DefaultPageLimit, st.Pagination.ItemsPerPage)
	require.Len(t, st.Transactions, 10)
	assert.Equal(t, ids[24], st.Transactions[0].ID, "newest first")
	assert.Equal(t, ids[15], st.Transactions[9].ID)

	st, err = h.svc.Balance(ctx, BalanceQuery{Document: c.Document, Phone: c.Phone, Page: 3, Limit: 10})
	require.NoError(t, err)
	require.Len(t, st.Transactions, 5)
	assert.Equal(t, ids[0], st.Transactions[4].ID)

	st, err = h.svc.Balance(ctx, BalanceQuery{Document: c.Document, Phone: c.Phone, Page: 9, Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, st.Transactions)
	assert.NotNil(t, st.Transactions)
	assert.Equal(t, 9, st.Pagination.CurrentPage)
	assert.Equal(t, int64(3), st.Pagination.TotalPages)
	assert.Equal(t, int64(25), st.Pagination.TotalItems)
}

func TestBalanceReportsHeldFunds(t *testing.T) {
	h := newHarness(t, DefaultConfig)
	c := h.client(t, "1", "100.00")

	ps := h.pay(t, c, "30.00")

	st, err := h.svc.Balance(context.Background(), BalanceQuery{Document: c.Document, Phone: c.Phone})
	require.NoError(t, err)
	assert.Equal(t, "100.00", st.Client.Balance.StringFixed(2))
	assert.Equal(t, "30.00", st.Client.Held.StringFixed(2))
	assert.Equal(t, "70.00", st.Client.Available().StringFixed(2))
	require.Len(t, st.Transactions, 2)
	assert.Equal(t, ps.TransactionID, st.Transactions[0].ID)
}

func TestBalanceEmptyHistory(t *testing.T) {
	h := newHarness(t, DefaultConfig)
	c := h.client(t, "1", "")

	st, err := h.svc.Balance(context.Background(), BalanceQuery{Document: c.Document, Phone: c.Phone})
	require.NoError(t, err)
	assert.Empty(t, st.Transactions)
	assert.Equal(t, int64(0), st.Pagination.TotalPages)
	assert.Equal(t, int64(0), st.Pagination.TotalItems)
}

func TestBalanceRejectsBadInput(t *testing.T) {
	h := newHarness(t, DefaultConfig)
	c := h.client(t, "1", "")
	ctx := context.Background()

	tests := []struct {
		name   string
		query  BalanceQuery
		target error
	}{
		{"missing phone", BalanceQuery{Document: c.Document}, errors.ErrMissingFields},
		{"negative page", BalanceQuery{Document: c.Document, Phone: c.Phone, Page: -1}, errors.ErrInvalidPagination},
		{"negative limit", BalanceQuery{Document: c.Document, Phone: c.Phone, Limit: -5}, errors.ErrInvalidPagination},
		{"limit too large", BalanceQuery{Document: c.Document, Phone: c.Phone, Limit: MaxPageLimit + 1}, errors.ErrInvalidPagination},
		{"unknown client", BalanceQuery{Document: "nobody", Phone: c.Phone}, errors.ErrClientNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.svc.Balance(ctx, tt.query)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.target))
		})
	}
}
