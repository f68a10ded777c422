package models

import (
	// Go Internal Packages
	"regexp"
	"strings"
	"time"

	// Local Packages
	errors "wallet-ledger/errors"

	// External Packages
	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	TypeRecharge TransactionType = "RECHARGE"
	TypePayment  TransactionType = "PAYMENT"
)

type TransactionStatus string

const (
	StatusPending   TransactionStatus = "PENDING"
	StatusCompleted TransactionStatus = "COMPLETED"
	StatusFailed    TransactionStatus = "FAILED"
)

const (
	ReasonExpired         = "expired"
	ReasonTooManyAttempts = "too_many_attempts"
)

const (
	SourceAPI    = "api"
	SourceStream = "stream"
)

// MaxAmount is the largest amount a single transaction may carry.
var MaxAmount = decimal.RequireFromString("99999999.99")

// amountPattern admits plain decimals only. Exponent forms such as 1e-200000000
// never reach the decimal parser.
var amountPattern = regexp.MustCompile(`^\d{1,8}(\.\d{1,2})?$`)

// Transaction is an immutable record of an attempted balance change. Only PAYMENT
// records carry a session, and only they start out PENDING.
type Transaction struct {
	ID            string
	ClientID      string
	Type          TransactionType
	Amount        decimal.Decimal
	Status        TransactionStatus
	SessionID     string
	Token         string
	FailureReason string
	Source        string
	Reference     string
	CreatedAt     time.Time
	ExpiresAt     time.Time
	CompletedAt   time.Time
}

// Expired reports whether a session-bearing transaction is past its deadline.
func (t *Transaction) Expired(now time.Time) bool {
	return !t.ExpiresAt.IsZero() && !now.Before(t.ExpiresAt)
}

// ParseAmount parses a client supplied amount. Zero, negative, non-numeric,
// over-precise and oversized values are rejected.
func ParseAmount(raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, errors.MissingFieldsErr("amount")
	}
	if !amountPattern.MatchString(raw) {
		return decimal.Zero, errors.ErrInvalidAmount
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, errors.Wrap(errors.ErrInvalidAmount, err)
	}
	if d.Sign() <= 0 || !d.Equal(d.Round(2)) || d.GreaterThan(MaxAmount) {
		return decimal.Zero, errors.ErrInvalidAmount
	}
	return d.Round(2), nil
}
