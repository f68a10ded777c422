package wallet

import (
	// Go Internal Packages
	"context"
	"strings"
	"time"

	// Local Packages
	errors "wallet-ledger/errors"
	models "wallet-ledger/models"
	utils "wallet-ledger/utils"
)

const (
	DefaultPageLimit = 10
	MaxPageLimit     = 100
)

type BalanceQuery struct {
	Document string
	Phone    string
	Page     int
	Limit    int
}

// Statement is a client's balance together with one page of its history, most
// recent first.
type Statement struct {
	Client       *models.Client
	Transactions []*models.Transaction
	Pagination   models.Pagination
}

// Balance reads the client, the transaction count and the requested page from
// one snapshot so the balance always reflects the listed history.
func (s *Service) Balance(ctx context.Context, q BalanceQuery) (st *Statement, err error) {
	started := time.Now()
	defer func() { s.observe("balance", started, err) }()

	q.Document = strings.TrimSpace(q.Document)
	q.Phone = strings.TrimSpace(q.Phone)
	if missing := missingFields(map[string]string{
		"document": q.Document,
		"phone":    q.Phone,
	}); len(missing) > 0 {
		return nil, errors.MissingFieldsErr(missing...)
	}
	if q.Page == 0 {
		q.Page = 1
	}
	if q.Limit == 0 {
		q.Limit = DefaultPageLimit
	}
	if q.Page < 0 || q.Limit < 0 || q.Limit > MaxPageLimit {
		return nil, errors.ErrInvalidPagination
	}

	err = s.Store.RunInSnapshot(ctx, func(ctx context.Context) error {
		client, err := s.findClient(ctx, q.Document, q.Phone)
		if err != nil {
			return err
		}
		total, err := s.Store.CountTransactions(ctx, client.ID)
		if err != nil {
			return err
		}

		txs := []*models.Transaction{}
		if offset := utils.Offset(q.Page, q.Limit); offset < total {
			txs, err = s.Store.ListTransactions(ctx, client.ID, offset, int64(q.Limit))
			if err != nil {
				return err
			}
		}

		st = &Statement{
			Client:       client,
			Transactions: txs,
			Pagination: models.Pagination{
				CurrentPage:  q.Page,
				TotalPages:   utils.TotalPages(total, q.Limit),
				TotalItems:   total,
				ItemsPerPage: q.Limit,
			},
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return st, nil
}
