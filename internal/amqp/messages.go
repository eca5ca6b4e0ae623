package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"expensetracker/internal/core"
)

// ExpenseRecordedMessage is published after an expense is committed.
// Amount is a decimal string to keep it exact.
type ExpenseRecordedMessage struct {
	ID               int64     `json:"id"`
	Date             string    `json:"date"`
	MonthKey         string    `json:"month_key"`
	MonthLabel       string    `json:"month_label"`
	Category         string    `json:"category"`
	Amount           string    `json:"amount"`
	ReceiptReference string    `json:"receipt_reference,omitempty"`
	Timestamp        time.Time `json:"timestamp"`
}

func NewExpenseRecordedMessage(e core.ExpenseDetail) *ExpenseRecordedMessage {
	month := core.MonthOf(e.Date)
	return &ExpenseRecordedMessage{
		ID:               e.ID,
		Date:             e.Date.ISO(),
		MonthKey:         month.String(),
		MonthLabel:       month.Label(),
		Category:         e.Category,
		Amount:           e.Amount.String(),
		ReceiptReference: e.ReceiptRef,
		Timestamp:        time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *ExpenseRecordedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ExpenseRecordedMessageFromJSON decodes a message and rejects ones
// without an id or a valid date.
func ExpenseRecordedMessageFromJSON(data []byte) (*ExpenseRecordedMessage, error) {
	var msg ExpenseRecordedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.ID == 0 {
		return nil, fmt.Errorf("message without expense id")
	}
	if _, err := core.ParseDate(msg.Date); err != nil {
		return nil, err
	}
	return &msg, nil
}
