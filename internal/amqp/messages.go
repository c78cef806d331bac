package amqp

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventExpenseCreated EventType = "expense.created"
	EventExpenseDeleted EventType = "expense.deleted"
)

// ExpenseEvent announces a change to the expense store. It carries the whole
// record since the store has no ids a consumer could look up.
type ExpenseEvent struct {
	ID          string    `json:"id"`
	Type        EventType `json:"type"`
	Ref         string    `json:"ref,omitempty"`
	Category    string    `json:"category"`
	Description string    `json:"description"`
	AmountCents int64     `json:"amount_cents"`
	RecordedAt  time.Time `json:"recorded_at"`
	Timestamp   time.Time `json:"timestamp"`
}

// NewExpenseEvent creates an event with a fresh message id.
func NewExpenseEvent(typ EventType, ref, category, description string, amountCents int64, recordedAt time.Time) *ExpenseEvent {
	return &ExpenseEvent{
		ID:          uuid.NewString(),
		Type:        typ,
		Ref:         ref,
		Category:    category,
		Description: description,
		AmountCents: amountCents,
		RecordedAt:  recordedAt,
		Timestamp:   time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *ExpenseEvent) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ExpenseEventFromJSON creates a message from JSON bytes
func ExpenseEventFromJSON(data []byte) (*ExpenseEvent, error) {
	var msg ExpenseEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
