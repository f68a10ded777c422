package models

// Message is an out-of-band notification addressed to a single recipient.
type Message struct {
	To      string
	Subject string
	Body    string
}

// DeadLetter is a stream record that could not be applied.
type DeadLetter struct {
	Record   Record `json:"record"`
	Reason   string `json:"reason"`
	FailedAt string `json:"failed_at"`
}
