package models

import (
	// Go Internal Packages
	"time"
)

type EventType string

const (
	EventClientRegistered  EventType = "client.registered"
	EventRechargeCompleted EventType = "recharge.completed"
	EventPaymentInitiated  EventType = "payment.initiated"
	EventPaymentConfirmed  EventType = "payment.confirmed"
	EventPaymentFailed     EventType = "payment.failed"
)

// LedgerEvent describes a committed state change. It never carries a token.
type LedgerEvent struct {
	ID            string    `json:"id"`
	Type          EventType `json:"type"`
	ClientID      string    `json:"client_id"`
	TransactionID string    `json:"transaction_id,omitempty"`
	SessionID     string    `json:"session_id,omitempty"`
	Amount        string    `json:"amount,omitempty"`
	Balance       string    `json:"balance,omitempty"`
	Reason        string    `json:"reason,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}
