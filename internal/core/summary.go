package core

import (
	"math"
	"time"
)

const (
	LevelOK       = "ok"
	LevelWarning  = "warning"
	LevelExceeded = "exceeded"

	warningThreshold = 80
)

// Totals aggregates one ledger for a user.
type Totals struct {
	Total float64
	Count int64
}

// Summary is the combined view shown on the dashboard cards.
type Summary struct {
	ExpenseTotal   float64 `json:"expense_total"`
	ExpenseCount   int64   `json:"expense_count"`
	ExpenseAverage float64 `json:"expense_average"`
	IncomeTotal    float64 `json:"income_total"`
	IncomeCount    int64   `json:"income_count"`
	Balance        float64 `json:"balance"`
}

func NewSummary(expenses, income Totals) Summary {
	s := Summary{
		ExpenseTotal: expenses.Total,
		ExpenseCount: expenses.Count,
		IncomeTotal:  income.Total,
		IncomeCount:  income.Count,
		Balance:      income.Total - expenses.Total,
	}
	if expenses.Count > 0 {
		s.ExpenseAverage = expenses.Total / float64(expenses.Count)
	}
	return s
}

// BudgetStatus is a budget with the spending measured against it.
type BudgetStatus struct {
	Budget
	Spent    float64 `json:"spent"`
	Percent  float64 `json:"percent"`
	Progress float64 `json:"progress"`
	Exceeded bool    `json:"exceeded"`
	Level    string  `json:"level"`
}

// NewBudgetStatus computes progress-bar values for a budget.
// Percent is rounded to a whole number; Progress is Percent capped at 100.
func NewBudgetStatus(b Budget, spent float64) BudgetStatus {
	st := BudgetStatus{Budget: b, Spent: spent}
	switch {
	case b.Amount > 0:
		st.Percent = math.Round(spent / b.Amount * 100)
	case spent > 0:
		st.Percent = 100
	}
	st.Progress = math.Min(st.Percent, 100)
	st.Exceeded = spent > b.Amount

	switch {
	case st.Exceeded:
		st.Level = LevelExceeded
	case st.Progress > warningThreshold:
		st.Level = LevelWarning
	default:
		st.Level = LevelOK
	}
	return st
}

// BudgetAlert is emitted when spending in a category passes its budget.
type BudgetAlert struct {
	UserID       int64     `json:"user_id"`
	CategoryID   int64     `json:"category_id"`
	CategoryName string    `json:"category_name"`
	Budget       float64   `json:"budget"`
	Spent        float64   `json:"spent"`
	Timestamp    time.Time `json:"timestamp"`
}
