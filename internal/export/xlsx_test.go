package export

import (
	"bytes"
	"testing"

	"expensetracker/internal/core"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestWriteMonthWorkbook(t *testing.T) {
	rows := []core.ExpenseDetail{
		{ID: 1, Date: core.NewDate(2024, 3, 2), Category: "FOOD", Amount: decimal.RequireFromString("12.5")},
		{ID: 2, Date: core.NewDate(2024, 3, 9), Category: "RENT", Amount: decimal.RequireFromString("2.8"), ReceiptRef: "https://drive.example/r"},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteMonthWorkbook(&buf, "Mar-24", rows))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Mar-24"}, f.GetSheetList())

	got, err := f.GetRows("Mar-24", excelize.Options{RawCellValue: true})
	require.NoError(t, err)
	require.Len(t, got, 4)
	assert.Equal(t, headers, got[0])
	assert.Equal(t, []string{"2024-03-02", "FOOD", "12.5"}, got[1])
	assert.Equal(t, []string{"2024-03-09", "RENT", "2.8", "https://drive.example/r"}, got[2])
	assert.Equal(t, "TOTAL", got[3][0])
	assert.Equal(t, "15.3", got[3][2])
}

func TestWriteMonthWorkbook_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteMonthWorkbook(&buf, "Jan-25", nil))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	got, err := f.GetRows("Jan-25", excelize.Options{RawCellValue: true})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, []string{"TOTAL", "", "0"}, got[1])
}

func TestFilename(t *testing.T) {
	assert.Equal(t, "expenses-Mar-24.xlsx", Filename("Mar-24"))
}
