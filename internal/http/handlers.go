package http

import (
	"net/http"
	"strings"

	"expensetracker/internal/core"
	applog "expensetracker/internal/log"
	"expensetracker/internal/services"
)

type monthTile struct {
	MonthKey string `json:"month_key"`
	Label    string `json:"label"`
	Total    string `json:"total"`
}

type expenseRow struct {
	ID               int64  `json:"id"`
	Date             string `json:"date"`
	Category         string `json:"category"`
	Amount           string `json:"amount"`
	ReceiptReference string `json:"receipt_reference,omitempty"`
}

type monthDetail struct {
	Month    string       `json:"month"`
	Expenses []expenseRow `json:"expenses"`
	Total    string       `json:"total"`
}

// viewState is the dashboard state. The selected month travels with each
// request and response; the server keeps no selection of its own.
type viewState struct {
	Months        []monthTile  `json:"months"`
	SelectedMonth string       `json:"selected_month"`
	Expenses      []expenseRow `json:"expenses"`
	Total         string       `json:"total"`
	Categories    []string     `json:"categories"`
}

type categoryResponse struct {
	Name    string `json:"name"`
	Outcome string `json:"outcome"`
	Warning string `json:"warning,omitempty"`
}

func toTiles(aggs []core.MonthAggregate) []monthTile {
	tiles := make([]monthTile, 0, len(aggs))
	for _, a := range aggs {
		tiles = append(tiles, monthTile{
			MonthKey: a.Key.String(),
			Label:    a.Label(),
			Total:    core.FormatAmount(a.Total),
		})
	}
	return tiles
}

func toRows(details []core.ExpenseDetail) []expenseRow {
	rows := make([]expenseRow, 0, len(details))
	for _, d := range details {
		rows = append(rows, expenseRow{
			ID:               d.ID,
			Date:             d.Date.ISO(),
			Category:         d.Category,
			Amount:           core.FormatAmount(d.Amount),
			ReceiptReference: d.ReceiptRef,
		})
	}
	return rows
}

// selectMonth returns the canonical label of requested when it parses,
// else the latest month with data, else the current month.
func selectMonth(requested string, aggs []core.MonthAggregate) string {
	if k, err := core.ParseMonthLabel(requested); err == nil {
		return k.Label()
	}
	if len(aggs) > 0 {
		return aggs[len(aggs)-1].Label()
	}
	return core.CurrentMonth().Label()
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	names, err := s.categories.ListCategories(r.Context())
	if err != nil {
		s.fail(w, r, "List categories failed", err, applog.ComponentCategory, applog.OpList)
		return
	}
	NewJSONResponse().Body(map[string][]string{"categories": names}).Write(w)
}

func (s *Server) handleAddCategory(w http.ResponseWriter, r *http.Request) {
	name, err := ParseCategoryName(w, r)
	if err != nil {
		s.fail(w, r, "Parse category failed", err, applog.ComponentCategory, applog.OpParse)
		return
	}

	res := s.categories.AddCategory(r.Context(), name)
	switch res.Outcome {
	case services.CategoryAdded:
		NewJSONResponse().
			Status(http.StatusCreated).
			Body(categoryResponse{Name: res.Name, Outcome: res.Outcome.String()}).
			Write(w)
	case services.CategoryDuplicate:
		NewJSONResponse().
			Body(categoryResponse{Name: res.Name, Outcome: res.Outcome.String(), Warning: "category already exists"}).
			Write(w)
	default:
		s.fail(w, r, "Add category failed", res.Err, applog.ComponentCategory, applog.OpCreate)
	}
}

func (s *Server) handleMonthlyTotals(w http.ResponseWriter, r *http.Request) {
	aggs, err := s.ledger.MonthlyTotals(r.Context())
	if err != nil {
		s.fail(w, r, "Monthly totals failed", err, applog.ComponentExpense, applog.OpList)
		return
	}
	NewJSONResponse().Body(map[string][]monthTile{"months": toTiles(aggs)}).Write(w)
}

func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requested := strings.TrimSpace(r.URL.Query().Get("month"))

	aggs, err := s.ledger.MonthlyTotals(ctx)
	if err != nil {
		s.fail(w, r, "Monthly totals failed", err, applog.ComponentExpense, applog.OpList)
		return
	}
	selected := selectMonth(requested, aggs)
	if requested != "" && requested != selected {
		applog.FromContext(ctx).DebugContext(ctx, "Month selection normalized",
			"requested", requested, applog.FieldMonth, selected)
	}

	details, err := s.ledger.ExpensesInMonth(ctx, selected)
	if err != nil {
		s.fail(w, r, "Month expenses failed", err, applog.ComponentExpense, applog.OpList)
		return
	}
	names, err := s.categories.ListCategories(ctx)
	if err != nil {
		s.fail(w, r, "List categories failed", err, applog.ComponentCategory, applog.OpList)
		return
	}

	NewJSONResponse().Body(viewState{
		Months:        toTiles(aggs),
		SelectedMonth: selected,
		Expenses:      toRows(details),
		Total:         core.FormatAmount(core.SumAmounts(details)),
		Categories:    names,
	}).Write(w)
}

// fail logs err and writes the mapped error response. Client errors are
// logged at warn, internal ones through the structured error logger.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, msg string, err error, component, op string) {
	ctx := r.Context()
	status, _ := statusForError(err)
	if status >= http.StatusInternalServerError {
		applog.NewStructuredLogger(applog.FromContext(ctx)).LogError(ctx, msg, err, component, op, nil)
	} else {
		applog.FromContext(ctx).WarnContext(ctx, msg, applog.FieldError, err, applog.FieldOperation, op)
	}
	ErrorFromErr(err).Write(w)
}
