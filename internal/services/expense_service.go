package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"expensetracker/internal/core"
	applog "expensetracker/internal/log"
	"expensetracker/internal/receipts"

	"github.com/shopspring/decimal"
)

// EventPublisher announces recorded expenses to other systems.
type EventPublisher interface {
	PublishExpenseRecorded(ctx context.Context, e core.ExpenseDetail) error
}

// RecordExpenseRequest is the validated-at-the-edge input of the add
// expense interaction.
type RecordExpenseRequest struct {
	Amount   decimal.Decimal
	Category string
	Date     core.Date
	Receipt  *receipts.File
}

// RecordExpenseResult reports the stored expense and any non-fatal warnings.
type RecordExpenseResult struct {
	ID         int64
	ReceiptRef string
	Warnings   []string
}

// ExpenseService orchestrates an expense recording across the receipt
// store, the ledger and the optional event publisher.
type ExpenseService struct {
	categories *CategoryRegistry
	ledger     *ExpenseLedger
	uploader   receipts.Uploader
	events     EventPublisher
}

func NewExpenseService(categories *CategoryRegistry, ledger *ExpenseLedger, uploader receipts.Uploader, events EventPublisher) *ExpenseService {
	if uploader == nil {
		uploader = receipts.Disabled{}
	}
	return &ExpenseService{
		categories: categories,
		ledger:     ledger,
		uploader:   uploader,
		events:     events,
	}
}

// RecordExpense validates the input, uploads the receipt (if any), then
// writes the expense. A failed upload is reported as a warning and the
// expense is stored without a receipt reference.
func (s *ExpenseService) RecordExpense(ctx context.Context, req RecordExpenseRequest) (RecordExpenseResult, error) {
	var result RecordExpenseResult

	e := core.NewExpense{
		Amount:   req.Amount,
		Category: req.Category,
		Date:     req.Date,
	}
	if err := e.Validate(); err != nil {
		return result, err
	}

	// Unknown categories fail before anything is uploaded.
	if _, err := s.categories.Resolve(ctx, e.Category); err != nil {
		return result, err
	}

	if req.Receipt != nil && len(req.Receipt.Data) > 0 {
		ref, err := s.uploadReceipt(ctx, *req.Receipt, e.Date)
		if err != nil {
			slog.WarnContext(ctx, "Receipt upload failed, saving expense without receipt",
				"file", req.Receipt.Name,
				"error", err)
			result.Warnings = append(result.Warnings, err.Error())
		} else {
			e.ReceiptRef = ref
		}
	}

	id, err := s.ledger.AddExpense(ctx, e)
	if err != nil {
		return result, fmt.Errorf("save expense: %w", err)
	}
	result.ID = id
	result.ReceiptRef = e.ReceiptRef

	detail := core.ExpenseDetail{
		ID:         id,
		Date:       e.Date,
		Category:   core.NormalizeCategoryName(e.Category),
		Amount:     e.Amount,
		ReceiptRef: e.ReceiptRef,
	}
	applog.NewStructuredLogger(applog.FromContext(ctx)).LogExpenseRecorded(ctx, detail)

	if err := s.publish(ctx, detail); err != nil {
		slog.ErrorContext(ctx, "Failed to publish expense event", "id", id, "error", err)
		// Don't fail the request - expense is saved
	}

	return result, nil
}

func (s *ExpenseService) uploadReceipt(ctx context.Context, f receipts.File, day core.Date) (string, error) {
	f.Name = receipts.ObjectName(f, day)
	ref, err := s.uploader.Upload(ctx, f)
	if err != nil {
		if !errors.Is(err, core.ErrUploadFailure) {
			err = fmt.Errorf("%w: %v", core.ErrUploadFailure, err)
		}
		return "", err
	}
	slog.InfoContext(ctx, "Receipt uploaded", "file", f.Name, "receipt_reference", ref)
	return ref, nil
}

func (s *ExpenseService) publish(ctx context.Context, e core.ExpenseDetail) error {
	if s.events == nil {
		return nil
	}
	return s.events.PublishExpenseRecorded(ctx, e)
}
