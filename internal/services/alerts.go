package services

import (
	"context"
	"log/slog"

	"gastos/internal/core"
)

// AlertPublisher delivers overspend alerts. *amqp.Client implements it.
type AlertPublisher interface {
	PublishBudgetAlert(ctx context.Context, alert core.BudgetAlert) error
}

// NoopPublisher drops alerts; it is used when no broker is configured.
type NoopPublisher struct{}

func (NoopPublisher) PublishBudgetAlert(ctx context.Context, alert core.BudgetAlert) error {
	slog.DebugContext(ctx, "Alert publishing disabled, dropping budget alert",
		"user_id", alert.UserID,
		"category_id", alert.CategoryID)
	return nil
}

// checkBudget publishes an alert when the caller's spending in categoryID
// is over its budget. Failures are logged and never returned.
func (s *LedgerService) checkBudget(ctx context.Context, userID, categoryID int64) {
	budget, err := s.store.GetBudget(ctx, userID, categoryID)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to load budget for alert check",
			"user_id", userID, "category_id", categoryID, "error", err)
		return
	}
	if budget == nil {
		return
	}

	spent, err := s.store.SpentInCategory(ctx, userID, categoryID)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to sum spending for alert check",
			"user_id", userID, "category_id", categoryID, "error", err)
		return
	}

	status := core.NewBudgetStatus(*budget, spent)
	if !status.Exceeded {
		return
	}

	alert := core.BudgetAlert{
		UserID:       userID,
		CategoryID:   categoryID,
		CategoryName: budget.CategoryName,
		Budget:       budget.Amount,
		Spent:        spent,
		Timestamp:    s.now().UTC(),
	}
	if err := s.alerts.PublishBudgetAlert(ctx, alert); err != nil {
		slog.WarnContext(ctx, "Failed to publish budget alert",
			"user_id", userID, "category_id", categoryID, "error", err)
	}
}
