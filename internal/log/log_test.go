package log

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"expensetracker/internal/core"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newJSONLogger(buf *bytes.Buffer) *Logger {
	return New(Config{Level: slog.LevelDebug, JSON: true, Output: buf})
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	dec := json.NewDecoder(buf)
	for dec.More() {
		var m map[string]any
		require.NoError(t, dec.Decode(&m))
		out = append(out, m)
	}
	return out
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
		"":        slog.LevelInfo,
		"chatty":  slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), "input %q", in)
	}
}

func TestLogger_Component(t *testing.T) {
	var buf bytes.Buffer
	logger := newJSONLogger(&buf)
	assert.Equal(t, ComponentApp, logger.Component())

	storage := logger.WithComponent(ComponentStorage)
	assert.Equal(t, ComponentStorage, storage.Component())
	storage.Info("schema ready")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, ComponentStorage, lines[0][FieldComponent])
}

func TestFromContext(t *testing.T) {
	fallback := FromContext(context.Background())
	assert.Equal(t, "unknown", fallback.Component())

	logger := Discard()
	assert.Same(t, logger, FromContext(WithLogger(context.Background(), logger)))
}

func TestMiddlewareChain_AddsRequestID(t *testing.T) {
	var buf bytes.Buffer
	logger := newJSONLogger(&buf)

	final := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		FromContext(r.Context()).InfoContext(r.Context(), "inside")
	})
	h := Middleware(logger)(
		RequestIDMiddleware(func(*http.Request) string { return "req-42" })(
			ComponentMiddleware(ComponentAPI)(final)))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/months", nil))

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "req-42", lines[0][FieldRequestID])
	assert.Equal(t, ComponentAPI, lines[0][FieldComponent])
}

func TestStructuredLogger_LogHTTPEndLevels(t *testing.T) {
	tests := []struct {
		status int
		level  string
	}{
		{http.StatusOK, "INFO"},
		{http.StatusUnprocessableEntity, "WARN"},
		{http.StatusInternalServerError, "ERROR"},
	}
	for _, tt := range tests {
		var buf bytes.Buffer
		logger := newJSONLogger(&buf)
		sl := NewStructuredLogger(logger)
		r := httptest.NewRequest(http.MethodPost, "/api/expenses", nil)

		sl.LogHTTPEnd(WithLogger(context.Background(), logger), r, tt.status, 12, "10.0.0.1")

		lines := decodeLines(t, &buf)
		require.Len(t, lines, 1)
		assert.Equal(t, tt.level, lines[0]["level"])
		assert.Equal(t, float64(tt.status), lines[0][FieldStatusCode])
		assert.Equal(t, "10.0.0.1", lines[0][FieldClientIP])
	}
}

func TestStructuredLogger_LogExpenseRecorded(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(newJSONLogger(&buf))

	sl.LogExpenseRecorded(context.Background(), core.ExpenseDetail{
		ID:       7,
		Date:     core.NewDate(2024, 3, 2),
		Category: "FOOD",
		Amount:   decimal.RequireFromString("12.5"),
	})

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	l := lines[0]
	assert.Equal(t, ComponentExpense, l[FieldComponent])
	assert.Equal(t, "Mar-24", l[FieldMonth])
	assert.Equal(t, "12.50", l[FieldAmount])
	assert.Equal(t, "2024-03-02", l[FieldDate])
	assert.NotContains(t, l, FieldReceiptRef)
}

func TestStructuredLogger_LogError(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(newJSONLogger(&buf))

	sl.LogError(context.Background(), "upload failed", errors.New("boom"), ComponentReceipts, OpUpload, nil)

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "boom", lines[0][FieldError])
	assert.Equal(t, OpUpload, lines[0][FieldOperation])
	assert.Equal(t, ComponentReceipts, lines[0][FieldComponent])
}
