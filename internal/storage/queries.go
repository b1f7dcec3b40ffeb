package storage

import (
	"context"
	"database/sql"
	"fmt"

	"gastos/internal/core"
)

type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	PrepareContext(context.Context, string) (*sql.Stmt, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

// Users

const createUser = `INSERT INTO users (email, password) VALUES (?, ?) RETURNING id`

func (q *Queries) CreateUser(ctx context.Context, email, passwordHash string) (int64, error) {
	var id int64
	err := q.db.QueryRowContext(ctx, createUser, email, passwordHash).Scan(&id)
	return id, err
}

const getUserByEmail = `SELECT id, email, password FROM users WHERE email = ?`

func (q *Queries) GetUserByEmail(ctx context.Context, email string) (core.User, error) {
	var u core.User
	err := q.db.QueryRowContext(ctx, getUserByEmail, email).Scan(&u.ID, &u.Email, &u.PasswordHash)
	return u, err
}

const getUserByID = `SELECT id, email, password FROM users WHERE id = ?`

func (q *Queries) GetUserByID(ctx context.Context, id int64) (core.User, error) {
	var u core.User
	err := q.db.QueryRowContext(ctx, getUserByID, id).Scan(&u.ID, &u.Email, &u.PasswordHash)
	return u, err
}

// Categories

const countCategories = `SELECT COUNT(*) FROM categories WHERE user_id = ? AND type = ?`

func (q *Queries) CountCategories(ctx context.Context, userID int64, typ core.CategoryType) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, countCategories, userID, string(typ)).Scan(&n)
	return n, err
}

const createCategory = `INSERT INTO categories (name, type, user_id) VALUES (?, ?, ?)
RETURNING id, name, type, user_id`

func (q *Queries) CreateCategory(ctx context.Context, name string, typ core.CategoryType, userID int64) (core.Category, error) {
	var c core.Category
	var t string
	err := q.db.QueryRowContext(ctx, createCategory, name, string(typ), userID).Scan(&c.ID, &c.Name, &t, &c.UserID)
	c.Type = core.CategoryType(t)
	return c, err
}

const listCategories = `SELECT id, name, type, user_id FROM categories
WHERE user_id = ? AND type = ?
ORDER BY id`

func (q *Queries) ListCategories(ctx context.Context, userID int64, typ core.CategoryType) ([]core.Category, error) {
	rows, err := q.db.QueryContext(ctx, listCategories, userID, string(typ))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []core.Category{}
	for rows.Next() {
		var c core.Category
		var t string
		if err := rows.Scan(&c.ID, &c.Name, &t, &c.UserID); err != nil {
			return nil, err
		}
		c.Type = core.CategoryType(t)
		items = append(items, c)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// Entries. Expenses and income share a row shape; only the table differs.

type entryQueries struct {
	insert, get, list, remove, totals string
}

var entrySQL = map[core.EntryKind]entryQueries{
	core.KindExpense: buildEntryQueries("expenses"),
	core.KindIncome:  buildEntryQueries("income"),
}

func buildEntryQueries(table string) entryQueries {
	return entryQueries{
		insert: fmt.Sprintf(`INSERT INTO %s (amount, description, category_id, user_id) VALUES (?, ?, ?, ?) RETURNING id`, table),
		get: fmt.Sprintf(`SELECT e.id, e.amount, e.description, e.category_id, e.user_id, e.date, c.name
FROM %s e JOIN categories c ON e.category_id = c.id
WHERE e.id = ?`, table),
		list: fmt.Sprintf(`SELECT e.id, e.amount, e.description, e.category_id, e.user_id, e.date, c.name
FROM %s e JOIN categories c ON e.category_id = c.id
WHERE e.user_id = ?
ORDER BY e.date DESC, e.id DESC`, table),
		remove: fmt.Sprintf(`DELETE FROM %s WHERE id = ? AND user_id = ?`, table),
		totals: fmt.Sprintf(`SELECT COALESCE(SUM(amount), 0), COUNT(*) FROM %s WHERE user_id = ?`, table),
	}
}

func entryQueriesFor(kind core.EntryKind) (entryQueries, error) {
	eq, ok := entrySQL[kind]
	if !ok {
		return entryQueries{}, fmt.Errorf("unknown entry kind %q", kind)
	}
	return eq, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(s rowScanner) (core.Entry, error) {
	var e core.Entry
	var date sql.NullString
	err := s.Scan(&e.ID, &e.Amount, &e.Description, &e.CategoryID, &e.UserID, &date, &e.CategoryName)
	e.Date = date.String
	return e, err
}

func (q *Queries) InsertEntry(ctx context.Context, kind core.EntryKind, userID int64, p core.EntryParams) (int64, error) {
	eq, err := entryQueriesFor(kind)
	if err != nil {
		return 0, err
	}
	var id int64
	err = q.db.QueryRowContext(ctx, eq.insert, p.Amount, p.Description, p.CategoryID, userID).Scan(&id)
	return id, err
}

func (q *Queries) GetEntry(ctx context.Context, kind core.EntryKind, id int64) (core.Entry, error) {
	eq, err := entryQueriesFor(kind)
	if err != nil {
		return core.Entry{}, err
	}
	return scanEntry(q.db.QueryRowContext(ctx, eq.get, id))
}

func (q *Queries) ListEntries(ctx context.Context, kind core.EntryKind, userID int64) ([]core.Entry, error) {
	eq, err := entryQueriesFor(kind)
	if err != nil {
		return nil, err
	}
	rows, err := q.db.QueryContext(ctx, eq.list, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []core.Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, e)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func (q *Queries) DeleteEntry(ctx context.Context, kind core.EntryKind, id, userID int64) (int64, error) {
	eq, err := entryQueriesFor(kind)
	if err != nil {
		return 0, err
	}
	res, err := q.db.ExecContext(ctx, eq.remove, id, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (q *Queries) EntryTotals(ctx context.Context, kind core.EntryKind, userID int64) (core.Totals, error) {
	eq, err := entryQueriesFor(kind)
	if err != nil {
		return core.Totals{}, err
	}
	var t core.Totals
	err = q.db.QueryRowContext(ctx, eq.totals, userID).Scan(&t.Total, &t.Count)
	return t, err
}

const updateExpense = `UPDATE expenses SET amount = ?, description = ?, category_id = ?
WHERE id = ? AND user_id = ?`

func (q *Queries) UpdateExpense(ctx context.Context, id, userID int64, p core.EntryParams) (int64, error) {
	res, err := q.db.ExecContext(ctx, updateExpense, p.Amount, p.Description, p.CategoryID, id, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const spentInCategory = `SELECT COALESCE(SUM(amount), 0) FROM expenses WHERE user_id = ? AND category_id = ?`

func (q *Queries) SpentInCategory(ctx context.Context, userID, categoryID int64) (float64, error) {
	var spent float64
	err := q.db.QueryRowContext(ctx, spentInCategory, userID, categoryID).Scan(&spent)
	return spent, err
}

const spentByCategory = `SELECT category_id, COALESCE(SUM(amount), 0) FROM expenses
WHERE user_id = ?
GROUP BY category_id`

func (q *Queries) SpentByCategory(ctx context.Context, userID int64) (map[int64]float64, error) {
	rows, err := q.db.QueryContext(ctx, spentByCategory, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	spent := make(map[int64]float64)
	for rows.Next() {
		var id int64
		var sum float64
		if err := rows.Scan(&id, &sum); err != nil {
			return nil, err
		}
		spent[id] = sum
	}
	return spent, rows.Err()
}

// Budgets

const upsertBudget = `INSERT INTO budgets (category_id, amount, user_id) VALUES (?, ?, ?)
ON CONFLICT(category_id) DO UPDATE SET amount = excluded.amount`

func (q *Queries) UpsertBudget(ctx context.Context, categoryID int64, amount float64, userID int64) error {
	_, err := q.db.ExecContext(ctx, upsertBudget, categoryID, amount, userID)
	return err
}

const getBudget = `SELECT b.id, b.category_id, b.amount, b.user_id, c.name
FROM budgets b JOIN categories c ON b.category_id = c.id
WHERE b.category_id = ? AND b.user_id = ?`

func (q *Queries) GetBudget(ctx context.Context, categoryID, userID int64) (core.Budget, error) {
	var b core.Budget
	err := q.db.QueryRowContext(ctx, getBudget, categoryID, userID).
		Scan(&b.ID, &b.CategoryID, &b.Amount, &b.UserID, &b.CategoryName)
	return b, err
}

const listBudgets = `SELECT b.id, b.category_id, b.amount, b.user_id, c.name
FROM budgets b JOIN categories c ON b.category_id = c.id
WHERE b.user_id = ?
ORDER BY b.id`

func (q *Queries) ListBudgets(ctx context.Context, userID int64) ([]core.Budget, error) {
	rows, err := q.db.QueryContext(ctx, listBudgets, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []core.Budget{}
	for rows.Next() {
		var b core.Budget
		if err := rows.Scan(&b.ID, &b.CategoryID, &b.Amount, &b.UserID, &b.CategoryName); err != nil {
			return nil, err
		}
		items = append(items, b)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
