package wallet

import (
	// Go Internal Packages
	"context"
	"net/mail"
	"strings"
	"time"

	// Local Packages
	errors "wallet-ledger/errors"
	models "wallet-ledger/models"

	// External Packages
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type RegisterRequest struct {
	Document string
	Name     string
	Email    string
	Phone    string
	// EmailVerification defaults to true when nil.
	EmailVerification *bool
}

// RegisterClient creates a client with a zero balance.
func (s *Service) RegisterClient(ctx context.Context, req RegisterRequest) (client *models.Client, err error) {
	started := time.Now()
	defer func() { s.observe("register", started, err) }()

	req.Document = strings.TrimSpace(req.Document)
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	req.Phone = strings.TrimSpace(req.Phone)

	if missing := missingFields(map[string]string{
		"document": req.Document,
		"name":     req.Name,
		"email":    req.Email,
		"phone":    req.Phone,
	}); len(missing) > 0 {
		return nil, errors.MissingFieldsErr(missing...)
	}
	if addr, perr := mail.ParseAddress(req.Email); perr != nil || addr.Address != req.Email {
		ve := errors.ValidationErrs()
		ve.Add("email", "must be a valid address")
		return nil, errors.ValidationFailedErr(ve.Err())
	}

	verify := true
	if req.EmailVerification != nil {
		verify = *req.EmailVerification
	}

	now := s.now()
	client = &models.Client{
		ID:                uuid.NewString(),
		Document:          req.Document,
		Name:              req.Name,
		Email:             req.Email,
		Phone:             req.Phone,
		Balance:           decimal.Zero,
		Held:              decimal.Zero,
		EmailVerification: verify,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err = s.Store.CreateClient(ctx, client); err != nil {
		return nil, err
	}

	s.Logger.Info("client registered", zap.String("client_id", client.ID))
	s.publish(ctx, models.LedgerEvent{
		ID:       uuid.NewString(),
		Type:     models.EventClientRegistered,
		ClientID: client.ID,
		Balance:  money(client.Balance),
	})
	return client, nil
}

// missingFields returns the names of empty values in a stable order.
func missingFields(fields map[string]string) []string {
	order := []string{"document", "name", "email", "phone", "amount", "sessionId", "token"}
	var missing []string
	for _, name := range order {
		if v, ok := fields[name]; ok && strings.TrimSpace(v) == "" {
			missing = append(missing, name)
		}
	}
	return missing
}
