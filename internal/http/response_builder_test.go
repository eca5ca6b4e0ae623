package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"expensetracker/internal/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONResponseBuilder_Write(t *testing.T) {
	rr := httptest.NewRecorder()
	NewJSONResponse().
		Status(http.StatusCreated).
		Header("X-Custom", "v").
		Body(map[string]string{"name": "FOOD"}).
		Write(rr)

	assert.Equal(t, http.StatusCreated, rr.Code)
	assert.Equal(t, "v", rr.Header().Get("X-Custom"))
	assert.Equal(t, "application/json; charset=utf-8", rr.Header().Get("Content-Type"))

	var got map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.Equal(t, "FOOD", got["name"])
}

func TestJSONResponseBuilder_NoBody(t *testing.T) {
	rr := httptest.NewRecorder()
	NewJSONResponse().Status(http.StatusNoContent).Write(rr)
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Empty(t, rr.Body.String())
	assert.Empty(t, rr.Header().Get("Content-Type"))
}

func TestStatusForError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantMsg    string
	}{
		{"invalid amount", fmt.Errorf("%w: abc", core.ErrInvalidAmount), http.StatusUnprocessableEntity, "invalid amount: abc"},
		{"empty category", core.ErrEmptyCategory, http.StatusUnprocessableEntity, "empty category name"},
		{"unknown category", fmt.Errorf("resolve category: %w: FUN", core.ErrCategoryNotFound), http.StatusUnprocessableEntity, "resolve category: category does not exist: FUN"},
		{"malformed", &badRequest{err: errors.New("unexpected EOF")}, http.StatusBadRequest, "malformed request: unexpected EOF"},
		{"bad label", fmt.Errorf("%w: 2024-13", core.ErrInvalidMonthFormat), http.StatusBadRequest, "invalid month label: 2024-13"},
		{"too large", errRequestTooLarge, http.StatusRequestEntityTooLarge, "request body too large"},
		{"storage fault", errors.New("disk I/O error"), http.StatusInternalServerError, "internal error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, msg := statusForError(tt.err)
			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.wantMsg, msg)
		})
	}
}
