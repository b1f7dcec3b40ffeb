package http

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"gastos/internal/auth"
	"gastos/internal/cache"
	"gastos/internal/core"
	"gastos/internal/log"
	"gastos/internal/middleware/ratelimit"
	"gastos/internal/middleware/security"
	"gastos/internal/middleware/trace"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Dependencies collects what the server needs to serve the API.
type Dependencies struct {
	Auth   AuthAPI
	Ledger LedgerAPI
	Tokens auth.TokenVerifier

	// DB backs /readyz. Nil reports ready unconditionally.
	DB Pinger
	// Caches feeds the cache counters on /metrics. Optional.
	Caches *cache.Manager

	Logger *log.Logger

	// StaticDir holds the client build. Empty disables static serving.
	StaticDir string
	// AuthRateLimit is requests per minute per client on register and login.
	AuthRateLimit int
}

// Server wraps http.Server with the API routes and middleware.
type Server struct {
	*http.Server

	auth   AuthAPI
	ledger LedgerAPI
	tokens auth.TokenVerifier
	db     Pinger
	caches *cache.Manager
	logger *log.Logger
	events *log.StructuredLogger

	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware

	shutdownOnce sync.Once
}

// NewServer builds the server listening on addr.
func NewServer(addr string, deps Dependencies) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	httpLogger := logger.WithComponent(log.ComponentHTTP)

	limiterCfg := ratelimit.DefaultConfig()
	if deps.AuthRateLimit > 0 {
		limiterCfg.RequestsPerMinute = deps.AuthRateLimit
	}

	detector := security.NewDetector()

	s := &Server{
		auth:     deps.Auth,
		ledger:   deps.Ledger,
		tokens:   deps.Tokens,
		db:       deps.DB,
		caches:   deps.Caches,
		logger:   httpLogger,
		events:   log.NewStructuredLogger(logger.WithComponent(log.ComponentLedger)),
		limiter:  ratelimit.NewLimiter(limiterCfg),
		detector: detector,
		tracer:   trace.NewMiddleware(logger, detector.ExtractClientIP),
	}

	mux := http.NewServeMux()
	s.routes(mux, deps.StaticDir)

	var handler http.Handler = mux
	handler = detector.Middleware(handler)
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)
	handler = log.RequestIDMiddleware(trace.RequestID)(handler)
	handler = s.tracer.Middleware(handler)
	handler = log.Middleware(httpLogger)(handler)
	handler = otelhttp.NewHandler(handler, "gastos-api",
		otelhttp.WithFilter(func(r *http.Request) bool {
			return strings.HasPrefix(r.URL.Path, "/api/")
		}),
	)

	s.Server = &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

func (s *Server) routes(mux *http.ServeMux, staticDir string) {
	limited := s.limiter.Middleware(s.detector.ExtractClientIP, writeRateLimited)
	mux.Handle("POST /api/register", limited(http.HandlerFunc(s.handleRegister)))
	mux.Handle("POST /api/login", limited(http.HandlerFunc(s.handleLogin)))

	authed := auth.Middleware(s.tokens, writeError)
	handle := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, authed(h))
	}

	handle("POST /api/logout", s.handleLogout)
	handle("GET /api/me", s.handleMe)

	handle("GET /api/categories", s.handleListCategories)
	handle("POST /api/categories", s.handleCreateCategory)

	handle("GET /api/income", s.handleListEntries(core.KindIncome))
	handle("POST /api/income", s.handleCreateEntry(core.KindIncome))
	handle("DELETE /api/income/{id}", s.handleDeleteEntry(core.KindIncome))

	handle("GET /api/expenses", s.handleListEntries(core.KindExpense))
	handle("POST /api/expenses", s.handleCreateEntry(core.KindExpense))
	handle("PUT /api/expenses/{id}", s.handleUpdateExpense)
	handle("DELETE /api/expenses/{id}", s.handleDeleteEntry(core.KindExpense))

	handle("GET /api/budgets", s.handleListBudgets)
	handle("POST /api/budgets", s.handleSetBudget)
	handle("GET /api/budgets/status", s.handleBudgetStatus)

	handle("GET /api/summary", s.handleSummary)

	mux.HandleFunc("/api/", writeNotFound)

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	if staticDir != "" {
		mux.Handle("/", spaHandler(staticDir))
	} else {
		mux.HandleFunc("/", writeNotFound)
	}
}

// Shutdown stops the rate limiter and gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		s.logger.InfoContext(ctx, "Shutting down HTTP server", log.FieldOperation, log.OpShutdown)
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}
