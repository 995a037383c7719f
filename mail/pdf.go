package mail

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-pdf/fpdf"
)

// PDFGenerator renders RFQ line items into a PDF document under dir.
// An empty dir falls back to the system temp directory.
type PDFGenerator struct {
	dir string
}

// NewPDFGenerator creates a PDF generator writing into dir.
func NewPDFGenerator(dir string) *PDFGenerator {
	return &PDFGenerator{dir: dir}
}

var _ FileGenerator = (*PDFGenerator)(nil)

// Generate writes "<rfqNo>.pdf" and returns its path.
func (g *PDFGenerator) Generate(_ context.Context, items []Item, rfqNo string) (string, error) {
	dir := g.dir
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("mail: create pdf dir: %w", err)
	}
	path := filepath.Join(dir, rfqNo+".pdf")

	doc := fpdf.New("P", "mm", "A4", "")
	doc.AddPage()
	doc.SetFont("Helvetica", "B", 18)
	doc.CellFormat(0, 12, fmt.Sprintf("RFQ Items - %s", rfqNo), "", 1, "C", false, 0, "")
	doc.Ln(4)

	doc.SetFont("Helvetica", "", 11)
	for i, item := range items {
		doc.MultiCell(0, 6, fmt.Sprintf(
			"%d. %s\nCode: %s\nManufacturer: %s\nQuantity: %d %s\nUnit Price: %.2f\nSpecifications: %s\nStatus: %s",
			i+1, item.Title, item.Code, item.Manufacturer,
			item.Quantity, item.Unit, item.Price, item.Specifications, item.Status,
		), "", "L", false)
		doc.Ln(3)
	}

	if err := doc.OutputFileAndClose(path); err != nil {
		return "", fmt.Errorf("mail: write pdf %s: %w", path, err)
	}
	return path, nil
}
