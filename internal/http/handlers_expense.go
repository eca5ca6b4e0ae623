package http

import (
	"bytes"
	"net/http"
	"strconv"

	"expensetracker/internal/core"
	"expensetracker/internal/export"
	applog "expensetracker/internal/log"
)

type createExpenseResponse struct {
	ID               int64    `json:"id"`
	Month            string   `json:"month"`
	ReceiptReference string   `json:"receipt_reference,omitempty"`
	Warnings         []string `json:"warnings,omitempty"`
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, err := ParseExpenseRequest(w, r, s.maxReceiptBytes)
	if err != nil {
		s.fail(w, r, "Parse expense failed", err, applog.ComponentExpense, applog.OpParse)
		return
	}

	res, err := s.expenses.RecordExpense(ctx, req)
	if err != nil {
		s.fail(w, r, "Record expense failed", err, applog.ComponentExpense, applog.OpCreate)
		return
	}

	NewJSONResponse().
		Status(http.StatusCreated).
		Body(createExpenseResponse{
			ID:               res.ID,
			Month:            core.MonthOf(req.Date).Label(),
			ReceiptReference: res.ReceiptRef,
			Warnings:         res.Warnings,
		}).
		Write(w)
}

func (s *Server) handleMonthExpenses(w http.ResponseWriter, r *http.Request) {
	label := r.PathValue("label")
	if k, err := core.ParseMonthLabel(label); err == nil {
		label = k.Label()
	}
	details, err := s.ledger.ExpensesInMonth(r.Context(), label)
	if err != nil {
		s.fail(w, r, "Month expenses failed", err, applog.ComponentExpense, applog.OpList)
		return
	}
	NewJSONResponse().Body(monthDetail{
		Month:    label,
		Expenses: toRows(details),
		Total:    core.FormatAmount(core.SumAmounts(details)),
	}).Write(w)
}

func (s *Server) handleMonthExport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	k, err := core.ParseMonthLabel(r.PathValue("label"))
	if err != nil {
		s.fail(w, r, "Export month failed", err, applog.ComponentExpense, applog.OpExport)
		return
	}
	details, err := s.ledger.ExpensesForMonth(ctx, k)
	if err != nil {
		s.fail(w, r, "Export month failed", err, applog.ComponentExpense, applog.OpExport)
		return
	}

	var buf bytes.Buffer
	if err := export.WriteMonthWorkbook(&buf, k.Label(), details); err != nil {
		s.fail(w, r, "Export month failed", err, applog.ComponentExpense, applog.OpExport)
		return
	}

	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.Filename(k.Label())+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}
