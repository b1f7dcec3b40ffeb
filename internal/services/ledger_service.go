package services

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"gastos/internal/cache"
	"gastos/internal/core"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

const summaryCacheSize = 1000

var tracer = otel.Tracer("gastos/internal/services")

type LedgerStore interface {
	ListCategories(ctx context.Context, userID int64, typ core.CategoryType) ([]core.Category, error)
	CreateCategory(ctx context.Context, userID int64, name string, typ core.CategoryType) (core.Category, error)

	ListEntries(ctx context.Context, kind core.EntryKind, userID int64) ([]core.Entry, error)
	CreateEntry(ctx context.Context, kind core.EntryKind, userID int64, p core.EntryParams) (*core.Entry, error)
	UpdateExpense(ctx context.Context, userID, id int64, p core.EntryParams) (*core.Entry, int64, error)
	DeleteEntry(ctx context.Context, kind core.EntryKind, userID, id int64) (int64, error)

	EntryTotals(ctx context.Context, kind core.EntryKind, userID int64) (core.Totals, error)
	SpentInCategory(ctx context.Context, userID, categoryID int64) (float64, error)
	SpentByCategory(ctx context.Context, userID int64) (map[int64]float64, error)

	SetBudget(ctx context.Context, userID, categoryID int64, amount float64) (*core.Budget, error)
	GetBudget(ctx context.Context, userID, categoryID int64) (*core.Budget, error)
	ListBudgets(ctx context.Context, userID int64) ([]core.Budget, error)
}

// LedgerService owns categories, entries and budgets for authenticated users.
type LedgerService struct {
	store    LedgerStore
	alerts   AlertPublisher
	summary  *cache.LRUCache[core.Summary]
	statuses *cache.LRUCache[[]core.BudgetStatus]
	now      func() time.Time

	// genMu orders cache fills against invalidation. A fill only lands when
	// the generation it read before querying is still current.
	genMu     sync.Mutex
	globalGen uint64
	userGens  map[int64]uint64
}

type cacheGen struct {
	global, user uint64
}

// NewLedgerService wires the service. A nil publisher disables alerts. The
// caches are registered with manager when it is non-nil.
func NewLedgerService(store LedgerStore, alerts AlertPublisher, cacheTTL time.Duration, manager *cache.Manager) *LedgerService {
	if alerts == nil {
		alerts = NoopPublisher{}
	}
	s := &LedgerService{
		store:    store,
		alerts:   alerts,
		summary:  cache.NewLRUCache[core.Summary](summaryCacheSize, cacheTTL),
		statuses: cache.NewLRUCache[[]core.BudgetStatus](summaryCacheSize, cacheTTL),
		now:      time.Now,
		userGens: make(map[int64]uint64),
	}
	if manager != nil {
		manager.Register("summary", s.summary)
		manager.Register("budget_status", s.statuses)
	}
	return s
}

func userKey(userID int64) string {
	return strconv.FormatInt(userID, 10)
}

// invalidate drops every cached view derived from the user's rows.
func (s *LedgerService) invalidate(userID int64) {
	key := userKey(userID)
	s.genMu.Lock()
	defer s.genMu.Unlock()
	s.userGens[userID]++
	s.summary.Delete(key)
	s.statuses.Delete(key)
}

// invalidateAllStatuses drops every user's cached budget statuses.
func (s *LedgerService) invalidateAllStatuses() {
	s.genMu.Lock()
	defer s.genMu.Unlock()
	s.globalGen++
	s.statuses.Purge()
}

func (s *LedgerService) generation(userID int64) cacheGen {
	s.genMu.Lock()
	defer s.genMu.Unlock()
	return cacheGen{global: s.globalGen, user: s.userGens[userID]}
}

// fillIfCurrent runs set when no write for userID happened since gen was read.
func (s *LedgerService) fillIfCurrent(userID int64, gen cacheGen, set func()) {
	s.genMu.Lock()
	defer s.genMu.Unlock()
	if gen == (cacheGen{global: s.globalGen, user: s.userGens[userID]}) {
		set()
	}
}

// Categories

func (s *LedgerService) ListCategories(ctx context.Context, userID int64, rawType string) ([]core.Category, error) {
	typ, err := core.ParseCategoryType(rawType)
	if err != nil {
		return nil, err
	}
	return s.store.ListCategories(ctx, userID, typ)
}

func (s *LedgerService) CreateCategory(ctx context.Context, userID int64, in core.CategoryInput) (core.Category, error) {
	name, typ, err := in.Normalize()
	if err != nil {
		return core.Category{}, err
	}
	return s.store.CreateCategory(ctx, userID, name, typ)
}

// Entries

func (s *LedgerService) ListEntries(ctx context.Context, kind core.EntryKind, userID int64) ([]core.Entry, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("unknown entry kind %q", kind)
	}
	return s.store.ListEntries(ctx, kind, userID)
}

// CreateEntry stores a new income or expense row. The projection can be
// nil when the joined re-read finds no row.
func (s *LedgerService) CreateEntry(ctx context.Context, kind core.EntryKind, userID int64, in core.EntryInput) (*core.Entry, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("unknown entry kind %q", kind)
	}
	p, err := in.Params()
	if err != nil {
		return nil, err
	}

	entry, err := s.store.CreateEntry(ctx, kind, userID, p)
	if err != nil {
		return nil, err
	}
	s.invalidate(userID)

	if kind == core.KindExpense {
		s.checkBudget(ctx, userID, p.CategoryID)
	}
	return entry, nil
}

// UpdateExpense rewrites the caller's expense. When id belongs to someone
// else nothing changes and the stored row is returned as is.
func (s *LedgerService) UpdateExpense(ctx context.Context, userID, id int64, in core.EntryInput) (*core.Entry, error) {
	p, err := in.Params()
	if err != nil {
		return nil, err
	}

	entry, n, err := s.store.UpdateExpense(ctx, userID, id, p)
	if err != nil {
		return nil, err
	}
	if n > 0 {
		s.invalidate(userID)
		s.checkBudget(ctx, userID, p.CategoryID)
	}
	return entry, nil
}

// DeleteEntry removes the caller's row; deleting someone else's id or a
// missing id succeeds without effect.
func (s *LedgerService) DeleteEntry(ctx context.Context, kind core.EntryKind, userID, id int64) error {
	if !kind.Valid() {
		return fmt.Errorf("unknown entry kind %q", kind)
	}
	n, err := s.store.DeleteEntry(ctx, kind, userID, id)
	if err != nil {
		return err
	}
	if n > 0 {
		s.invalidate(userID)
	}
	return nil
}

// Budgets

func (s *LedgerService) ListBudgets(ctx context.Context, userID int64) ([]core.Budget, error) {
	return s.store.ListBudgets(ctx, userID)
}

// SetBudget upserts the budget for a category. The result is nil when the
// category's budget row is owned by another user.
func (s *LedgerService) SetBudget(ctx context.Context, userID int64, in core.BudgetInput) (*core.Budget, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	budget, err := s.store.SetBudget(ctx, userID, *in.CategoryID, *in.Amount)
	if err != nil {
		return nil, err
	}
	s.invalidate(userID)
	if budget == nil {
		// The upsert changed a row owned by someone else.
		s.invalidateAllStatuses()
	}

	if budget != nil {
		s.checkBudget(ctx, userID, budget.CategoryID)
	}
	return budget, nil
}

// BudgetStatuses measures each of the caller's budgets against spending.
func (s *LedgerService) BudgetStatuses(ctx context.Context, userID int64) ([]core.BudgetStatus, error) {
	ctx, span := tracer.Start(ctx, "LedgerService.BudgetStatuses", trace.WithAttributes(attribute.Int64("user.id", userID)))
	defer span.End()

	key := userKey(userID)
	if cached, ok := s.statuses.Get(key); ok {
		span.SetAttributes(attribute.Bool("cache.hit", true))
		return cached, nil
	}
	gen := s.generation(userID)

	var (
		budgets []core.Budget
		spent   map[int64]float64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		budgets, err = s.store.ListBudgets(gctx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		spent, err = s.store.SpentByCategory(gctx, userID)
		return err
	})
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		return nil, err
	}

	out := make([]core.BudgetStatus, 0, len(budgets))
	for _, b := range budgets {
		out = append(out, core.NewBudgetStatus(b, spent[b.CategoryID]))
	}
	s.fillIfCurrent(userID, gen, func() { s.statuses.Set(key, out) })
	return out, nil
}

// Summary aggregates both ledgers for the dashboard cards.
func (s *LedgerService) Summary(ctx context.Context, userID int64) (core.Summary, error) {
	ctx, span := tracer.Start(ctx, "LedgerService.Summary", trace.WithAttributes(attribute.Int64("user.id", userID)))
	defer span.End()

	key := userKey(userID)
	if cached, ok := s.summary.Get(key); ok {
		span.SetAttributes(attribute.Bool("cache.hit", true))
		return cached, nil
	}
	gen := s.generation(userID)

	var expenses, income core.Totals
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		expenses, err = s.store.EntryTotals(gctx, core.KindExpense, userID)
		return err
	})
	g.Go(func() error {
		var err error
		income, err = s.store.EntryTotals(gctx, core.KindIncome, userID)
		return err
	})
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		return core.Summary{}, err
	}

	summary := core.NewSummary(expenses, income)
	s.fillIfCurrent(userID, gen, func() { s.summary.Set(key, summary) })
	return summary, nil
}
