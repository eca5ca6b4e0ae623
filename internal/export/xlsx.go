// Package export renders a month of expenses as an xlsx workbook.
package export

import (
	"fmt"
	"io"

	"expensetracker/internal/core"

	"github.com/xuri/excelize/v2"
)

// ContentType is the MIME type of the workbook.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var headers = []string{"Date", "Category", "Amount", "Receipt"}

// Filename returns the download name for a month label.
func Filename(label string) string {
	return fmt.Sprintf("expenses-%s.xlsx", label)
}

// WriteMonthWorkbook writes one sheet named after label with a row per
// expense and a closing TOTAL row.
func WriteMonthWorkbook(w io.Writer, label string, rows []core.ExpenseDetail) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := label
	if sheet == "" {
		sheet = "Expenses"
	}
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return fmt.Errorf("name sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"4F81BD"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}
	amountStyle, err := f.NewStyle(&excelize.Style{NumFmt: 2})
	if err != nil {
		return fmt.Errorf("create amount style: %w", err)
	}
	totalStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}, NumFmt: 2})
	if err != nil {
		return fmt.Errorf("create total style: %w", err)
	}

	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
	}
	if err := f.SetCellStyle(sheet, "A1", "D1", headerStyle); err != nil {
		return fmt.Errorf("style header: %w", err)
	}

	row := 2
	for _, e := range rows {
		values := []any{e.Date.ISO(), e.Category, e.Amount.InexactFloat64(), e.ReceiptRef}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return fmt.Errorf("write row %d: %w", row, err)
			}
		}
		amount := fmt.Sprintf("C%d", row)
		if err := f.SetCellStyle(sheet, amount, amount, amountStyle); err != nil {
			return fmt.Errorf("style row %d: %w", row, err)
		}
		row++
	}

	if err := f.SetCellValue(sheet, fmt.Sprintf("A%d", row), "TOTAL"); err != nil {
		return fmt.Errorf("write total: %w", err)
	}
	if err := f.SetCellValue(sheet, fmt.Sprintf("C%d", row), core.SumAmounts(rows).InexactFloat64()); err != nil {
		return fmt.Errorf("write total: %w", err)
	}
	if err := f.SetCellStyle(sheet, fmt.Sprintf("A%d", row), fmt.Sprintf("D%d", row), totalStyle); err != nil {
		return fmt.Errorf("style total: %w", err)
	}

	_ = f.SetColWidth(sheet, "A", "A", 12)
	_ = f.SetColWidth(sheet, "B", "B", 20)
	_ = f.SetColWidth(sheet, "D", "D", 48)

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
