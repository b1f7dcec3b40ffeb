package amqp

import (
	"encoding/json"
	"time"

	"gastos/internal/core"
)

// BudgetAlertMessage is the wire form of a core.BudgetAlert.
type BudgetAlertMessage struct {
	UserID       int64     `json:"user_id"`
	CategoryID   int64     `json:"category_id"`
	CategoryName string    `json:"category_name"`
	Budget       float64   `json:"budget"`
	Spent        float64   `json:"spent"`
	Timestamp    time.Time `json:"timestamp"`
}

// NewBudgetAlertMessage stamps the alert with the current time when it has none.
func NewBudgetAlertMessage(a core.BudgetAlert) *BudgetAlertMessage {
	ts := a.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	return &BudgetAlertMessage{
		UserID:       a.UserID,
		CategoryID:   a.CategoryID,
		CategoryName: a.CategoryName,
		Budget:       a.Budget,
		Spent:        a.Spent,
		Timestamp:    ts,
	}
}

// Overspend is how far spending went past the budget.
func (m *BudgetAlertMessage) Overspend() float64 {
	return m.Spent - m.Budget
}

func (m *BudgetAlertMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func BudgetAlertMessageFromJSON(data []byte) (*BudgetAlertMessage, error) {
	var msg BudgetAlertMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
