package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"expensetracker/internal/core"
	applog "expensetracker/internal/log"
	"expensetracker/internal/services"
)

// CategoryStore is the category registry as seen by the handlers.
type CategoryStore interface {
	AddCategory(ctx context.Context, name string) services.AddCategoryResult
	ListCategories(ctx context.Context) ([]string, error)
}

// LedgerReader is the read side of the expense ledger.
type LedgerReader interface {
	MonthlyTotals(ctx context.Context) ([]core.MonthAggregate, error)
	ExpensesInMonth(ctx context.Context, label string) ([]core.ExpenseDetail, error)
	ExpensesForMonth(ctx context.Context, k core.MonthKey) ([]core.ExpenseDetail, error)
}

// ExpenseRecorder stores a new expense with its optional receipt.
type ExpenseRecorder interface {
	RecordExpense(ctx context.Context, req services.RecordExpenseRequest) (services.RecordExpenseResult, error)
}

// HealthChecker reports whether the backing store is reachable.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// Dependencies are the collaborators of the server. Health may be nil.
type Dependencies struct {
	Categories CategoryStore
	Ledger     LedgerReader
	Expenses   ExpenseRecorder
	Health     HealthChecker
	Logger     *applog.Logger

	MaxReceiptBytes int64
	PostsPerMinute  int
}

type Server struct {
	http.Server
	categories CategoryStore
	ledger     LedgerReader
	expenses   ExpenseRecorder
	health     HealthChecker

	logger          *applog.Logger
	structured      *applog.StructuredLogger
	maxReceiptBytes int64
	rateLimiter     *rateLimiter
	metrics         *securityMetrics

	shutdownOnce sync.Once
}

// NewServer configures routes, returning a ready-to-run http.Server.
func NewServer(addr string, deps Dependencies) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	maxBytes := deps.MaxReceiptBytes
	if maxBytes <= 0 {
		maxBytes = 10 << 20
	}

	s := &Server{
		categories:      deps.Categories,
		ledger:          deps.Ledger,
		expenses:        deps.Expenses,
		health:          deps.Health,
		logger:          logger.WithComponent(applog.ComponentHTTP),
		structured:      applog.NewStructuredLogger(logger),
		maxReceiptBytes: maxBytes,
		rateLimiter:     newRateLimiter(deps.PostsPerMinute),
		metrics:         &securityMetrics{},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	api := func(h http.HandlerFunc) http.Handler {
		return applog.ComponentMiddleware(applog.ComponentAPI)(h)
	}
	mux.Handle("GET /api/categories", api(s.handleListCategories))
	mux.Handle("POST /api/categories", api(s.handleAddCategory))
	mux.Handle("GET /api/months", api(s.handleMonthlyTotals))
	mux.Handle("GET /api/months/{label}/expenses", api(s.handleMonthExpenses))
	mux.Handle("GET /api/months/{label}/export", api(s.handleMonthExport))
	mux.Handle("GET /api/view", api(s.handleView))
	mux.Handle("POST /api/expenses", api(s.handleCreateExpense))

	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.middleware(mux),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// middleware wraps h with the request logger, request id, security
// headers, POST rate limiting and completion logging.
func (s *Server) middleware(h http.Handler) http.Handler {
	inner := s.withSecurityHeaders(h)
	inner = applog.RequestIDMiddleware(requestID)(inner)
	inner = applog.Middleware(s.logger)(inner)
	return withRequestID(inner)
}

// withRequestID keeps a well-formed incoming X-Request-ID or assigns one.
func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if !isValidRequestID(id) {
			id = generateRequestID()
			r.Header.Set(requestIDHeader, id)
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) withSecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx := r.Context()
		clientIP := extractClientIP(r)
		logger := applog.FromContext(ctx)

		if detectSuspiciousRequest(r, s.metrics) {
			logger.WarnContext(ctx, "Suspicious request",
				applog.FieldClientIP, clientIP,
				applog.FieldMethod, r.Method,
				applog.FieldPath, r.URL.Path)
		}

		setSecurityHeaders(w.Header())

		if r.Method == http.MethodPost && !s.rateLimiter.allow(clientIP, s.metrics) {
			logger.WarnContext(ctx, "Rate limit exceeded",
				applog.FieldClientIP, clientIP,
				applog.FieldPath, r.URL.Path)
			ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded, try again later").
				Header("Retry-After", "60").
				Write(w)
			return
		}

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		s.structured.LogHTTPEnd(ctx, r, rw.statusCode, time.Since(start).Milliseconds(), clientIP)
	})
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Shutdown gracefully shuts down the server and the rate limiter.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()
		if err := s.health.Ping(ctx); err != nil {
			applog.FromContext(r.Context()).WarnContext(r.Context(), "Readiness check failed", applog.FieldError, err)
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("not ready"))
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
