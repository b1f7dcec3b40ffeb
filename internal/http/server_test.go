package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"gastos/internal/auth"
	"gastos/internal/cache"
	"gastos/internal/core"
	"gastos/internal/log"
	"gastos/internal/services"
	"gastos/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type testServer struct {
	srv     *Server
	handler http.Handler
}

type serverOption func(*Dependencies)

func withStaticDir(dir string) serverOption {
	return func(d *Dependencies) { d.StaticDir = dir }
}

func withAuthRateLimit(n int) serverOption {
	return func(d *Dependencies) { d.AuthRateLimit = n }
}

func newTestServer(t *testing.T, opts ...serverOption) *testServer {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(context.Background(), filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	creds, err := auth.NewCredentials("api-test-secret-0123456789", time.Hour, bcrypt.MinCost)
	require.NoError(t, err)

	caches := cache.NewManager()
	deps := Dependencies{
		Auth:   services.NewAuthService(repo, creds),
		Ledger: services.NewLedgerService(repo, nil, time.Minute, caches),
		Tokens: creds,
		DB:     repo,
		Caches: caches,
		Logger: log.New(log.Config{Level: log.ParseLevel("error"), Component: log.ComponentApp, Output: io.Discard}),
	}
	for _, opt := range opts {
		opt(&deps)
	}

	srv := NewServer(":0", deps)
	t.Cleanup(func() { srv.limiter.Stop() })
	return &testServer{srv: srv, handler: srv.Handler}
}

func (ts *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.RemoteAddr = "203.0.113.10:4321"
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

func (ts *testServer) register(t *testing.T, email string) core.Session {
	t.Helper()
	rr := ts.do(t, http.MethodPost, "/api/register", "", map[string]string{"email": email, "password": "pw1"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	return decode[core.Session](t, rr)
}

func (ts *testServer) categories(t *testing.T, token, typ string) []core.Category {
	t.Helper()
	rr := ts.do(t, http.MethodGet, "/api/categories?type="+typ, token, nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	return decode[[]core.Category](t, rr)
}

func errorMessage(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	return decode[errorBody](t, rr).Error
}

func TestScenarioExpenseAndBudget(t *testing.T) {
	ts := newTestServer(t)

	session := ts.register(t, "user-a@test.com")
	require.NotEmpty(t, session.Token)
	assert.Equal(t, "user-a@test.com", session.Email)

	expenseCats := ts.categories(t, session.Token, "expense")
	incomeCats := ts.categories(t, session.Token, "income")
	require.Len(t, expenseCats, 6)
	require.Len(t, incomeCats, 5)
	assert.Equal(t, core.DefaultCategoryNames(core.CategoryExpense), names(expenseCats))

	catID := expenseCats[0].ID
	rr := ts.do(t, http.MethodPost, "/api/expenses", session.Token, map[string]any{
		"amount": 10, "description": "Bus", "category_id": catID,
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = ts.do(t, http.MethodPost, "/api/expenses", session.Token, map[string]any{
		"amount": 42.50, "description": "Groceries", "category_id": catID,
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	created := decode[core.Entry](t, rr)
	assert.Equal(t, 42.50, created.Amount)
	assert.Equal(t, expenseCats[0].Name, created.CategoryName)

	rr = ts.do(t, http.MethodGet, "/api/expenses", session.Token, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	expenses := decode[[]core.Entry](t, rr)
	require.Len(t, expenses, 2)
	assert.Equal(t, "Groceries", expenses[0].Description)
	assert.Equal(t, expenseCats[0].Name, expenses[0].CategoryName)

	for _, amount := range []float64{100, 30} {
		rr = ts.do(t, http.MethodPost, "/api/budgets", session.Token, map[string]any{"category_id": catID, "amount": amount})
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		b := decode[core.Budget](t, rr)
		assert.Equal(t, amount, b.Amount)

		rr = ts.do(t, http.MethodGet, "/api/budgets", session.Token, nil)
		budgets := decode[[]core.Budget](t, rr)
		require.Len(t, budgets, 1)
		assert.Equal(t, amount, budgets[0].Amount)
	}

	rr = ts.do(t, http.MethodGet, "/api/budgets/status", session.Token, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	statuses := decode[[]core.BudgetStatus](t, rr)
	require.Len(t, statuses, 1)
	assert.Equal(t, 52.50, statuses[0].Spent)
	assert.True(t, statuses[0].Exceeded)
	assert.Equal(t, core.LevelExceeded, statuses[0].Level)

	rr = ts.do(t, http.MethodGet, "/api/summary", session.Token, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	summary := decode[core.Summary](t, rr)
	assert.Equal(t, int64(2), summary.ExpenseCount)
	assert.Equal(t, 52.50, summary.ExpenseTotal)
	assert.Equal(t, -52.50, summary.Balance)
}

func names(cats []core.Category) []string {
	out := make([]string, len(cats))
	for i, c := range cats {
		out[i] = c.Name
	}
	return out
}

func TestRegisterAndLogin(t *testing.T) {
	ts := newTestServer(t)
	session := ts.register(t, "user-b@test.com")

	rr := ts.do(t, http.MethodPost, "/api/register", "", map[string]string{"email": "user-b@test.com", "password": "x"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, msgDuplicateEmail, errorMessage(t, rr))

	rr = ts.do(t, http.MethodPost, "/api/login", "", map[string]string{"email": "user-b@test.com", "password": "pw1"})
	require.Equal(t, http.StatusOK, rr.Code)
	login := decode[core.Session](t, rr)
	assert.Equal(t, session.ID, login.ID)

	rr = ts.do(t, http.MethodGet, "/api/me", login.Token, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	me := decode[core.Profile](t, rr)
	assert.Equal(t, core.Profile{ID: session.ID, Email: "user-b@test.com"}, me)

	for _, body := range []map[string]string{
		{"email": "user-b@test.com", "password": "wrong"},
		{"email": "nobody@test.com", "password": "pw1"},
	} {
		rr = ts.do(t, http.MethodPost, "/api/login", "", body)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.Equal(t, msgInvalidCredentials, errorMessage(t, rr))
	}

	rr = ts.do(t, http.MethodPost, "/api/logout", login.Token, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, decode[successBody](t, rr).Success)
}

func TestUnauthorized(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"wrong scheme", "Basic abc"},
		{"empty token", "Bearer "},
		{"garbage token", "Bearer not-a-jwt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/expenses", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			ts.handler.ServeHTTP(rr, req)
			assert.Equal(t, http.StatusUnauthorized, rr.Code)
			assert.Equal(t, msgUnauthorized, errorMessage(t, rr))
		})
	}
}

func TestValidationErrors(t *testing.T) {
	ts := newTestServer(t)
	token := ts.register(t, "user-c@test.com").Token

	tests := []struct {
		name   string
		method string
		path   string
		body   any
	}{
		{"register bad email", http.MethodPost, "/api/register", map[string]string{"email": "nope", "password": "pw"}},
		{"malformed json", http.MethodPost, "/api/expenses", `{"amount":`},
		{"wrong type", http.MethodPost, "/api/expenses", `{"amount":"ten","description":"x","category_id":1}`},
		{"missing fields", http.MethodPost, "/api/expenses", map[string]any{}},
		{"negative amount", http.MethodPost, "/api/income", map[string]any{"amount": -5, "description": "x", "category_id": 1}},
		{"bad category type", http.MethodGet, "/api/categories?type=savings", nil},
		{"empty category name", http.MethodPost, "/api/categories", map[string]string{"name": "  "}},
		{"bad path id", http.MethodDelete, "/api/expenses/abc", nil},
		{"zero path id", http.MethodPut, "/api/expenses/0", map[string]any{"amount": 1, "description": "x", "category_id": 1}},
		{"budget without amount", http.MethodPost, "/api/budgets", map[string]any{"category_id": 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := ts.do(t, tt.method, tt.path, token, tt.body)
			assert.Equal(t, http.StatusBadRequest, rr.Code, rr.Body.String())
			assert.NotEmpty(t, errorMessage(t, rr))
		})
	}
}

func TestEntriesAreScopedToOwner(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.register(t, "alice@test.com").Token
	bob := ts.register(t, "bob@test.com").Token

	cat := ts.categories(t, alice, "expense")[0]
	rr := ts.do(t, http.MethodPost, "/api/expenses", alice, map[string]any{"amount": 20, "description": "Lunch", "category_id": cat.ID})
	require.Equal(t, http.StatusOK, rr.Code)
	expense := decode[core.Entry](t, rr)

	rr = ts.do(t, http.MethodGet, "/api/expenses", bob, nil)
	assert.Empty(t, decode[[]core.Entry](t, rr))

	// Another user's update and delete leave the row untouched.
	rr = ts.do(t, http.MethodPut, "/api/expenses/"+itoa(expense.ID), bob, map[string]any{"amount": 999, "description": "Hacked", "category_id": cat.ID})
	require.Equal(t, http.StatusOK, rr.Code)
	stale := decode[core.Entry](t, rr)
	assert.Equal(t, 20.0, stale.Amount)
	assert.Equal(t, "Lunch", stale.Description)

	rr = ts.do(t, http.MethodDelete, "/api/expenses/"+itoa(expense.ID), bob, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, decode[successBody](t, rr).Success)

	rr = ts.do(t, http.MethodGet, "/api/expenses", alice, nil)
	require.Len(t, decode[[]core.Entry](t, rr), 1)

	rr = ts.do(t, http.MethodPut, "/api/expenses/"+itoa(expense.ID), alice, map[string]any{"amount": 25, "description": "Dinner", "category_id": cat.ID})
	require.Equal(t, http.StatusOK, rr.Code)
	updated := decode[core.Entry](t, rr)
	assert.Equal(t, 25.0, updated.Amount)
	assert.Equal(t, "Dinner", updated.Description)

	rr = ts.do(t, http.MethodDelete, "/api/expenses/"+itoa(expense.ID), alice, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	rr = ts.do(t, http.MethodGet, "/api/expenses", alice, nil)
	assert.Empty(t, decode[[]core.Entry](t, rr))
}

func TestIncomeLifecycle(t *testing.T) {
	ts := newTestServer(t)
	token := ts.register(t, "earner@test.com").Token
	cat := ts.categories(t, token, "income")[0]

	rr := ts.do(t, http.MethodPost, "/api/income", token, map[string]any{"amount": 1500, "description": "Payroll", "category_id": cat.ID})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	income := decode[core.Entry](t, rr)
	assert.Equal(t, cat.Name, income.CategoryName)

	rr = ts.do(t, http.MethodGet, "/api/income", token, nil)
	require.Len(t, decode[[]core.Entry](t, rr), 1)

	rr = ts.do(t, http.MethodDelete, "/api/income/"+itoa(income.ID), token, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	rr = ts.do(t, http.MethodGet, "/api/income", token, nil)
	assert.Empty(t, decode[[]core.Entry](t, rr))
}

func TestCreateCategory(t *testing.T) {
	ts := newTestServer(t)
	token := ts.register(t, "cats@test.com").Token

	rr := ts.do(t, http.MethodPost, "/api/categories", token, map[string]string{"name": "Mascotas"})
	require.Equal(t, http.StatusOK, rr.Code)
	c := decode[core.Category](t, rr)
	assert.Equal(t, "Mascotas", c.Name)
	assert.Equal(t, core.CategoryExpense, c.Type)

	rr = ts.do(t, http.MethodPost, "/api/categories", token, map[string]string{"name": "Freelance", "type": "income"})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, core.CategoryIncome, decode[core.Category](t, rr).Type)

	assert.Len(t, ts.categories(t, token, "expense"), 7)
	assert.Len(t, ts.categories(t, token, "income"), 6)
}

func TestBudgetOnForeignCategoryReturnsNull(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.register(t, "owner@test.com").Token
	bob := ts.register(t, "other@test.com").Token

	cat := ts.categories(t, alice, "expense")[0]
	rr := ts.do(t, http.MethodPost, "/api/budgets", alice, map[string]any{"category_id": cat.ID, "amount": 100})
	require.Equal(t, http.StatusOK, rr.Code)

	rr = ts.do(t, http.MethodPost, "/api/budgets", bob, map[string]any{"category_id": cat.ID, "amount": 5})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "null", strings.TrimSpace(rr.Body.String()))
}

func TestUnknownAPIRoute(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.do(t, http.MethodGet, "/api/nothing-here", "", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, msgNotFound, errorMessage(t, rr))
}

func TestHealthReadyAndMetrics(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.do(t, http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ok", decode[statusBody](t, rr).Status)

	rr = ts.do(t, http.MethodGet, "/readyz", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ready", decode[statusBody](t, rr).Status)

	rr = ts.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, "gastos_http_requests_total 2")
	assert.Contains(t, body, `gastos_cache_hits_total{cache="summary"}`)
	assert.Contains(t, body, "gastos_ratelimit_rejected_total 0")
}

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return context.DeadlineExceeded }

func TestReadyReportsStoreFailure(t *testing.T) {
	ts := newTestServer(t, func(d *Dependencies) { d.DB = failingPinger{} })

	rr := ts.do(t, http.MethodGet, "/readyz", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestAuthRateLimit(t *testing.T) {
	ts := newTestServer(t, withAuthRateLimit(2))
	body := map[string]string{"email": "limited@test.com", "password": "pw1"}

	for i := 0; i < 2; i++ {
		rr := ts.do(t, http.MethodPost, "/api/login", "", body)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	}

	rr := ts.do(t, http.MethodPost, "/api/login", "", body)
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, "60", rr.Header().Get("Retry-After"))
	assert.Equal(t, msgRateLimited, errorMessage(t, rr))
}

func TestSecurityAndTraceHeaders(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
	assert.True(t, strings.HasPrefix(rr.Header().Get("X-Request-ID"), "req_"))

	rr = ts.do(t, http.MethodGet, "/api/me", "", nil)
	assert.Equal(t, "no-store", rr.Header().Get("Cache-Control"))
}

func TestStaticFallback(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<html>app</html>"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "assets"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "assets", "app.js"), []byte("console.log(1)"), 0o644))

	ts := newTestServer(t, withStaticDir(dir))

	rr := ts.do(t, http.MethodGet, "/assets/app.js", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "console.log")
	assert.Contains(t, rr.Header().Get("Cache-Control"), "immutable")

	for _, path := range []string{"/", "/budgets", "/assets"} {
		rr = ts.do(t, http.MethodGet, path, "", nil)
		require.Equal(t, http.StatusOK, rr.Code, path)
		assert.Contains(t, rr.Body.String(), "app</html>", path)
	}

	rr = ts.do(t, http.MethodGet, "/api/unknown", "", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestShutdownIsIdempotent(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()

	require.NoError(t, ts.srv.Shutdown(ctx))
	require.NoError(t, ts.srv.Shutdown(ctx))
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}

func TestCreateEntryUnknownCategoryIsServerError(t *testing.T) {
	ts := newTestServer(t)
	token := ts.register(t, "fk@test.com").Token

	rr := ts.do(t, http.MethodPost, "/api/expenses", token, map[string]any{"amount": 5, "description": "Ghost", "category_id": 99999})
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, msgServerError, errorMessage(t, rr))
}
