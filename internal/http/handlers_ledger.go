package http

import (
	"context"
	"net/http"

	"gastos/internal/core"
)

// LedgerAPI is the per-user ledger surface the handlers depend on.
type LedgerAPI interface {
	ListCategories(ctx context.Context, userID int64, rawType string) ([]core.Category, error)
	CreateCategory(ctx context.Context, userID int64, in core.CategoryInput) (core.Category, error)

	ListEntries(ctx context.Context, kind core.EntryKind, userID int64) ([]core.Entry, error)
	CreateEntry(ctx context.Context, kind core.EntryKind, userID int64, in core.EntryInput) (*core.Entry, error)
	UpdateExpense(ctx context.Context, userID, id int64, in core.EntryInput) (*core.Entry, error)
	DeleteEntry(ctx context.Context, kind core.EntryKind, userID, id int64) error

	ListBudgets(ctx context.Context, userID int64) ([]core.Budget, error)
	SetBudget(ctx context.Context, userID int64, in core.BudgetInput) (*core.Budget, error)
	BudgetStatuses(ctx context.Context, userID int64) ([]core.BudgetStatus, error)
	Summary(ctx context.Context, userID int64) (core.Summary, error)
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	categories, err := s.ledger.ListCategories(r.Context(), uid, r.URL.Query().Get("type"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, categories)
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var in core.CategoryInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}

	category, err := s.ledger.CreateCategory(r.Context(), uid, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, category)
}

// The entry handlers serve both ledgers; kind picks the table.

func (s *Server) handleListEntries(kind core.EntryKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, err := userID(r)
		if err != nil {
			writeError(w, r, err)
			return
		}

		entries, err := s.ledger.ListEntries(r.Context(), kind, uid)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, entries)
	}
}

func (s *Server) handleCreateEntry(kind core.EntryKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, err := userID(r)
		if err != nil {
			writeError(w, r, err)
			return
		}

		var in core.EntryInput
		if err := decodeJSON(w, r, &in); err != nil {
			writeError(w, r, err)
			return
		}

		entry, err := s.ledger.CreateEntry(r.Context(), kind, uid, in)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if entry != nil {
			s.events.LogEntryCreated(r.Context(), uid, string(kind), entry.ID, entry.CategoryID, entry.Amount)
		}
		writeJSON(w, http.StatusOK, entry)
	}
}

func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	var in core.EntryInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}

	entry, err := s.ledger.UpdateExpense(r.Context(), uid, id, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (s *Server) handleDeleteEntry(kind core.EntryKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, err := userID(r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		id, err := pathID(r, "id")
		if err != nil {
			writeError(w, r, err)
			return
		}

		if err := s.ledger.DeleteEntry(r.Context(), kind, uid, id); err != nil {
			writeError(w, r, err)
			return
		}
		writeSuccess(w)
	}
}

func (s *Server) handleListBudgets(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	budgets, err := s.ledger.ListBudgets(r.Context(), uid)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, budgets)
}

// handleSetBudget upserts by category. The body is null when the budget row
// belongs to another user.
func (s *Server) handleSetBudget(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var in core.BudgetInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}

	budget, err := s.ledger.SetBudget(r.Context(), uid, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, budget)
}

func (s *Server) handleBudgetStatus(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	statuses, err := s.ledger.BudgetStatuses(r.Context(), uid)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, statuses)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	summary, err := s.ledger.Summary(r.Context(), uid)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
