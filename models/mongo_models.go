package models

import (
	// Go Internal Packages
	"time"

	// External Packages
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type MongoClient struct {
	ID                string               `bson:"_id"`
	Document          string               `bson:"document"`
	Name              string               `bson:"name"`
	Email             string               `bson:"email"`
	Phone             string               `bson:"phone"`
	Balance           primitive.Decimal128 `bson:"balance"`
	Held              primitive.Decimal128 `bson:"held"`
	EmailVerification bool                 `bson:"email_verification"`
	CreatedAt         time.Time            `bson:"created_at"`
	UpdatedAt         time.Time            `bson:"updated_at"`
}

type MongoTransaction struct {
	ID            string               `bson:"_id"`
	ClientID      string               `bson:"client_id"`
	Type          string               `bson:"type"`
	Amount        primitive.Decimal128 `bson:"amount"`
	Status        string               `bson:"status"`
	SessionID     string               `bson:"session_id,omitempty"`
	Token         string               `bson:"token,omitempty"`
	FailureReason string               `bson:"failure_reason,omitempty"`
	Source        string               `bson:"source,omitempty"`
	Reference     string               `bson:"reference,omitempty"`
	CreatedAt     time.Time            `bson:"created_at"`
	ExpiresAt     *time.Time           `bson:"expires_at,omitempty"`
	CompletedAt   *time.Time           `bson:"completed_at,omitempty"`
}

// ToDecimal128 converts an amount to its BSON form. Amounts are always finite
// two-digit decimals so the conversion cannot fail.
func ToDecimal128(d decimal.Decimal) primitive.Decimal128 {
	v, _ := primitive.ParseDecimal128(d.String())
	return v
}

func FromDecimal128(v primitive.Decimal128) decimal.Decimal {
	d, err := decimal.NewFromString(v.String())
	if err != nil {
		return decimal.Zero
	}
	return d
}

func optionalTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	t = t.UTC()
	return &t
}

func (c *Client) Transform() MongoClient {
	return MongoClient{
		ID:                c.ID,
		Document:          c.Document,
		Name:              c.Name,
		Email:             c.Email,
		Phone:             c.Phone,
		Balance:           ToDecimal128(c.Balance),
		Held:              ToDecimal128(c.Held),
		EmailVerification: c.EmailVerification,
		CreatedAt:         c.CreatedAt.UTC(),
		UpdatedAt:         c.UpdatedAt.UTC(),
	}
}

func (m *MongoClient) Model() *Client {
	return &Client{
		ID:                m.ID,
		Document:          m.Document,
		Name:              m.Name,
		Email:             m.Email,
		Phone:             m.Phone,
		Balance:           FromDecimal128(m.Balance),
		Held:              FromDecimal128(m.Held),
		EmailVerification: m.EmailVerification,
		CreatedAt:         m.CreatedAt.UTC(),
		UpdatedAt:         m.UpdatedAt.UTC(),
	}
}

func (t *Transaction) Transform() MongoTransaction {
	return MongoTransaction{
		ID:            t.ID,
		ClientID:      t.ClientID,
		Type:          string(t.Type),
		Amount:        ToDecimal128(t.Amount),
		Status:        string(t.Status),
		SessionID:     t.SessionID,
		Token:         t.Token,
		FailureReason: t.FailureReason,
		Source:        t.Source,
		Reference:     t.Reference,
		CreatedAt:     t.CreatedAt.UTC(),
		ExpiresAt:     optionalTime(t.ExpiresAt),
		CompletedAt:   optionalTime(t.CompletedAt),
	}
}

func (m *MongoTransaction) Model() *Transaction {
	t := &Transaction{
		ID:            m.ID,
		ClientID:      m.ClientID,
		Type:          TransactionType(m.Type),
		Amount:        FromDecimal128(m.Amount),
		Status:        TransactionStatus(m.Status),
		SessionID:     m.SessionID,
		Token:         m.Token,
		FailureReason: m.FailureReason,
		Source:        m.Source,
		Reference:     m.Reference,
		CreatedAt:     m.CreatedAt.UTC(),
	}
	if m.ExpiresAt != nil {
		t.ExpiresAt = m.ExpiresAt.UTC()
	}
	if m.CompletedAt != nil {
		t.CompletedAt = m.CompletedAt.UTC()
	}
	return t
}
