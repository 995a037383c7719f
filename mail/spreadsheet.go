package mail

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"
)

// SpreadsheetGenerator renders RFQ line items into an XLSX workbook
// under dir. An empty dir falls back to the system temp directory.
type SpreadsheetGenerator struct {
	dir string
}

// NewSpreadsheetGenerator creates a spreadsheet generator writing into
// dir.
func NewSpreadsheetGenerator(dir string) *SpreadsheetGenerator {
	return &SpreadsheetGenerator{dir: dir}
}

var _ FileGenerator = (*SpreadsheetGenerator)(nil)

// Generate writes "<rfqNo>.xlsx" and returns its path.
func (g *SpreadsheetGenerator) Generate(_ context.Context, items []Item, rfqNo string) (string, error) {
	dir := g.dir
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("mail: create spreadsheet dir: %w", err)
	}
	path := filepath.Join(dir, rfqNo+".xlsx")

	f := excelize.NewFile()
	defer f.Close()

	const sheet = "RFQ Items"
	f.SetSheetName("Sheet1", sheet)

	if err := f.SetCellValue(sheet, "A1", fmt.Sprintf("RFQ No: %s", rfqNo)); err != nil {
		return "", fmt.Errorf("mail: write spreadsheet header: %w", err)
	}

	headers := []string{"Item Title", "Item Code", "Manufacturer", "Qty", "Unit", "Price", "Specifications", "Status"}
	for i, hdr := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 3)
		if err := f.SetCellValue(sheet, cell, hdr); err != nil {
			return "", fmt.Errorf("mail: write spreadsheet header row: %w", err)
		}
	}

	for r, item := range items {
		values := []any{item.Title, item.Code, item.Manufacturer, item.Quantity, item.Unit, item.Price, item.Specifications, item.Status}
		for c, v := range values {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+4)
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return "", fmt.Errorf("mail: write spreadsheet row %d: %w", r+1, err)
			}
		}
	}

	widths := []float64{30, 18, 22, 10, 10, 14, 35, 14}
	for i, w := range widths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		if err := f.SetColWidth(sheet, col, col, w); err != nil {
			return "", fmt.Errorf("mail: set spreadsheet widths: %w", err)
		}
	}

	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("mail: write spreadsheet %s: %w", path, err)
	}
	return path, nil
}
