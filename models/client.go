package models

import (
	// Go Internal Packages
	"time"

	// External Packages
	"github.com/shopspring/decimal"
)

// Client is a registered wallet holder. Held is the sum of the amounts reserved by
// pending payments and is always between zero and Balance.
type Client struct {
	ID                string
	Document          string
	Name              string
	Email             string
	Phone             string
	Balance           decimal.Decimal
	Held              decimal.Decimal
	EmailVerification bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Available returns the funds that a new payment may still reserve.
func (c *Client) Available() decimal.Decimal {
	return c.Balance.Sub(c.Held)
}
