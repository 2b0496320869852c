package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"conti/internal/core"
)

// RateWarmupMessage asks the rates worker to make sure the snapshot for Date
// is cached. Currency is the code that triggered the request.
type RateWarmupMessage struct {
	Date      string    `json:"date"`
	Currency  string    `json:"currency"`
	Timestamp time.Time `json:"timestamp"`
}

// NewRateWarmupMessage creates a warmup request for date and currency
func NewRateWarmupMessage(date core.Date, currency string) *RateWarmupMessage {
	return &RateWarmupMessage{
		Date:      date.String(),
		Currency:  core.NormalizeCurrency(currency),
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *RateWarmupMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// SnapshotDate parses the requested date.
func (m *RateWarmupMessage) SnapshotDate() (core.Date, error) {
	return core.ParseDate(m.Date)
}

// RateWarmupMessageFromJSON decodes and checks a message.
func RateWarmupMessageFromJSON(data []byte) (*RateWarmupMessage, error) {
	var msg RateWarmupMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if _, err := msg.SnapshotDate(); err != nil {
		return nil, fmt.Errorf("invalid date %q: %w", msg.Date, err)
	}
	if err := core.ValidateCurrency(msg.Currency); err != nil {
		return nil, err
	}
	return &msg, nil
}
