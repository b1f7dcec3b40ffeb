package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"gastos/internal/core"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Transactions begin IMMEDIATE so that a read-then-write transaction takes
// the write lock up front and waits on busy_timeout instead of failing with
// SQLITE_BUSY when it upgrades.
const dsnPragmas = "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_txlock=immediate"

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
}

// NewSQLiteRepository opens the database at dbPath, reconciles legacy
// schemas and applies pending migrations.
func NewSQLiteRepository(ctx context.Context, dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	dsn := dbPath + "?" + dsnPragmas
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := reconcileLegacySchema(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("reconcile legacy schema: %w", err)
	}

	if err := RunMigrations(dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	slog.InfoContext(ctx, "SQLite storage ready", "path", dbPath)

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	return errors.As(err, &se) && se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
}

// inTx runs fn inside a transaction, rolling back on error.
func (r *SQLiteRepository) inTx(ctx context.Context, fn func(q *Queries) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(r.queries.WithTx(tx)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// CreateUser stores a new account and seeds its default categories in the
// same transaction. A taken email yields core.ErrDuplicateEmail.
func (r *SQLiteRepository) CreateUser(ctx context.Context, email, passwordHash string) (core.User, error) {
	var id int64
	err := r.inTx(ctx, func(q *Queries) error {
		var err error
		id, err = q.CreateUser(ctx, email, passwordHash)
		if err != nil {
			if isUniqueViolation(err) {
				return core.ErrDuplicateEmail
			}
			return fmt.Errorf("create user: %w", err)
		}
		_, err = seedDefaults(ctx, q, id)
		return err
	})
	if err != nil {
		return core.User{}, err
	}

	slog.InfoContext(ctx, "User registered", "user_id", id)
	return core.User{ID: id, Email: email, PasswordHash: passwordHash}, nil
}

func (r *SQLiteRepository) GetUserByEmail(ctx context.Context, email string) (core.User, error) {
	u, err := r.queries.GetUserByEmail(ctx, email)
	if errors.Is(err, sql.ErrNoRows) {
		return core.User{}, core.ErrNotFound
	}
	if err != nil {
		return core.User{}, fmt.Errorf("get user by email: %w", err)
	}
	return u, nil
}

func (r *SQLiteRepository) GetUserByID(ctx context.Context, id int64) (core.User, error) {
	u, err := r.queries.GetUserByID(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return core.User{}, core.ErrNotFound
	}
	if err != nil {
		return core.User{}, fmt.Errorf("get user by id: %w", err)
	}
	return u, nil
}

// EnsureDefaultCategories seeds each category type the user has no rows for
// and returns how many categories were inserted.
func (r *SQLiteRepository) EnsureDefaultCategories(ctx context.Context, userID int64) (int, error) {
	var created int
	err := r.inTx(ctx, func(q *Queries) error {
		var err error
		created, err = seedDefaults(ctx, q, userID)
		return err
	})
	if err != nil {
		return 0, err
	}
	if created > 0 {
		slog.InfoContext(ctx, "Seeded default categories", "user_id", userID, "count", created)
	}
	return created, nil
}

func seedDefaults(ctx context.Context, q *Queries, userID int64) (int, error) {
	created := 0
	for _, typ := range core.CategoryTypes() {
		n, err := q.CountCategories(ctx, userID, typ)
		if err != nil {
			return 0, fmt.Errorf("count %s categories: %w", typ, err)
		}
		if n > 0 {
			continue
		}
		for _, name := range core.DefaultCategoryNames(typ) {
			if _, err := q.CreateCategory(ctx, name, typ, userID); err != nil {
				return 0, fmt.Errorf("seed category %q: %w", name, err)
			}
			created++
		}
	}
	return created, nil
}

func (r *SQLiteRepository) ListCategories(ctx context.Context, userID int64, typ core.CategoryType) ([]core.Category, error) {
	items, err := r.queries.ListCategories(ctx, userID, typ)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return items, nil
}

func (r *SQLiteRepository) CreateCategory(ctx context.Context, userID int64, name string, typ core.CategoryType) (core.Category, error) {
	c, err := r.queries.CreateCategory(ctx, name, typ, userID)
	if err != nil {
		return core.Category{}, fmt.Errorf("create category: %w", err)
	}
	return c, nil
}

func (r *SQLiteRepository) ListEntries(ctx context.Context, kind core.EntryKind, userID int64) ([]core.Entry, error) {
	items, err := r.queries.ListEntries(ctx, kind, userID)
	if err != nil {
		return nil, fmt.Errorf("list %s entries: %w", kind, err)
	}
	return items, nil
}

// CreateEntry inserts a row and returns it joined with its category name.
// The result is nil when the joined re-read finds nothing.
func (r *SQLiteRepository) CreateEntry(ctx context.Context, kind core.EntryKind, userID int64, p core.EntryParams) (*core.Entry, error) {
	id, err := r.queries.InsertEntry(ctx, kind, userID, p)
	if err != nil {
		return nil, fmt.Errorf("create %s entry: %w", kind, err)
	}
	return r.entryByID(ctx, kind, id)
}

// UpdateExpense rewrites an expense owned by userID and re-reads it by id.
// The re-read is not scoped to the user, so a non-owner receives the
// unchanged row.
func (r *SQLiteRepository) UpdateExpense(ctx context.Context, userID, id int64, p core.EntryParams) (*core.Entry, int64, error) {
	n, err := r.queries.UpdateExpense(ctx, id, userID, p)
	if err != nil {
		return nil, 0, fmt.Errorf("update expense: %w", err)
	}
	e, err := r.entryByID(ctx, core.KindExpense, id)
	return e, n, err
}

func (r *SQLiteRepository) entryByID(ctx context.Context, kind core.EntryKind, id int64) (*core.Entry, error) {
	e, err := r.queries.GetEntry(ctx, kind, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get %s entry: %w", kind, err)
	}
	return &e, nil
}

// DeleteEntry removes a row owned by userID and reports how many rows went.
func (r *SQLiteRepository) DeleteEntry(ctx context.Context, kind core.EntryKind, userID, id int64) (int64, error) {
	n, err := r.queries.DeleteEntry(ctx, kind, id, userID)
	if err != nil {
		return 0, fmt.Errorf("delete %s entry: %w", kind, err)
	}
	return n, nil
}

func (r *SQLiteRepository) EntryTotals(ctx context.Context, kind core.EntryKind, userID int64) (core.Totals, error) {
	t, err := r.queries.EntryTotals(ctx, kind, userID)
	if err != nil {
		return core.Totals{}, fmt.Errorf("%s totals: %w", kind, err)
	}
	return t, nil
}

func (r *SQLiteRepository) SpentInCategory(ctx context.Context, userID, categoryID int64) (float64, error) {
	spent, err := r.queries.SpentInCategory(ctx, userID, categoryID)
	if err != nil {
		return 0, fmt.Errorf("spent in category: %w", err)
	}
	return spent, nil
}

func (r *SQLiteRepository) SpentByCategory(ctx context.Context, userID int64) (map[int64]float64, error) {
	spent, err := r.queries.SpentByCategory(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("spent by category: %w", err)
	}
	return spent, nil
}

// SetBudget upserts the budget keyed by category and returns the caller's
// row for that category. The result is nil when the category's budget
// belongs to another user.
func (r *SQLiteRepository) SetBudget(ctx context.Context, userID, categoryID int64, amount float64) (*core.Budget, error) {
	if err := r.queries.UpsertBudget(ctx, categoryID, amount, userID); err != nil {
		return nil, fmt.Errorf("upsert budget: %w", err)
	}
	return r.GetBudget(ctx, userID, categoryID)
}

func (r *SQLiteRepository) GetBudget(ctx context.Context, userID, categoryID int64) (*core.Budget, error) {
	b, err := r.queries.GetBudget(ctx, categoryID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get budget: %w", err)
	}
	return &b, nil
}

func (r *SQLiteRepository) ListBudgets(ctx context.Context, userID int64) ([]core.Budget, error) {
	items, err := r.queries.ListBudgets(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	return items, nil
}
