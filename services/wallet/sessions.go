package wallet

import (
	// Go Internal Packages
	"context"

	// Local Packages
	errors "wallet-ledger/errors"
	models "wallet-ledger/models"
)

// lookupSession resolves a pending payment by the exact (sessionID, token) pair.
// Every miss, whatever field was wrong, is reported as ErrInvalidSessionOrToken.
func (s *Service) lookupSession(ctx context.Context, sessionID, token string) (*models.Transaction, error) {
	t, err := s.Store.FindTransactionBySessionAndToken(ctx, sessionID, token, models.StatusPending)
	if errors.Is(err, errors.ErrNotFound) {
		return nil, errors.ErrInvalidSessionOrToken
	}
	if err != nil {
		return nil, err
	}
	if t.Type != models.TypePayment {
		return nil, errors.ErrInvalidSessionOrToken
	}
	return t, nil
}
