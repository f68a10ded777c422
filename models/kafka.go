package models

import (
	// Go Internal Packages
	"encoding/json"
)

type Record struct {
	Key   []byte
	Value []byte
	Topic string
}

// TopupRecord is the payload of a record on the top-up topic, published by the
// upstream payment gateway once it has collected the funds.
type TopupRecord struct {
	Reference string      `json:"reference"`
	Document  string      `json:"document"`
	Phone     string      `json:"phone"`
	Amount    json.Number `json:"amount"`
}
