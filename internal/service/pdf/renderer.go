// Package pdf renders the local, non-fiscal invoice summary.
//
// The layout is fixed: a centered banner, folio and date on the right, a
// customer block, and a four-column product table closed by a bold total.
// Everything fits on one Letter page; rows past the bottom margin are clipped.
package pdf

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/jung-kurt/gofpdf"
	"github.com/shopspring/decimal"

	"github.com/iliamunaev/invoice-emission/internal/model"
)

// Table geometry, in points.
const (
	colDescription = 50.0
	colPrice       = 300.0
	colQty         = 380.0
	colSubtotal    = 450.0
	tableRight     = 520.0
	rowStep        = 20.0
	lineHeight     = 16.0
)

// Document is the data printed on the summary.
type Document struct {
	Folio    string
	IssuedAt time.Time
	Customer model.CustomerSummary
	Items    []model.ServiceLineItem
	Total    decimal.Decimal
}

// Renderer writes summaries into a directory.
type Renderer struct {
	dir    string
	now    func() time.Time
	suffix func() string
}

// New returns a Renderer writing into dir.
func New(dir string) *Renderer {
	return &Renderer{dir: dir, now: time.Now, suffix: shortID}
}

func shortID() string { return uuid.NewString()[:8] }

// Dir returns the output directory.
func (r *Renderer) Dir() string { return r.dir }

// Path ensures the output directory exists and returns a fresh file path
// named after the current time in milliseconds plus a random suffix, so
// concurrent emissions never share a file.
func (r *Renderer) Path() (string, error) {
	//nolint:gosec // G301: the temp dir is shared with the mailer
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return "", fmt.Errorf("create temp dir: %w", err)
	}
	return filepath.Join(r.dir, fmt.Sprintf("invoice_%d_%s.pdf", r.now().UnixMilli(), r.suffix())), nil
}

// Render lays out doc and writes it to path. It returns once the file has
// been synced and closed.
func (r *Renderer) Render(path string, doc Document) error {
	pdf := layout(doc, true)
	if err := pdf.Error(); err != nil {
		return fmt.Errorf("layout: %w", err)
	}

	f, err := os.Create(path) //nolint:gosec // path is built by Path
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := pdf.Output(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return fmt.Errorf("sync %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	return nil
}

func layout(doc Document, compress bool) *gofpdf.Fpdf {
	pdf := gofpdf.New("P", "pt", "Letter", "")
	pdf.SetCompression(compress)
	pdf.SetMargins(colDescription, 50, 612-tableRight)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	line := func(text, align string) {
		pdf.CellFormat(0, lineHeight, tr(text), "", 1, align, false, 0, "")
	}

	pdf.SetFont("Helvetica", "B", 20)
	pdf.CellFormat(0, 28, "FISCAL INVOICE", "", 1, "C", false, 0, "")
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 12)
	line("Folio: "+doc.Folio, "R")
	line("Date: "+doc.IssuedAt.Format("02/01/2006"), "R")
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "U", 12)
	line("CUSTOMER:", "L")
	pdf.SetFont("Helvetica", "", 12)
	line("Legal name: "+doc.Customer.Name, "L")
	line("Tax ID: "+doc.Customer.TaxID, "L")
	line("Email: "+doc.Customer.Email, "L")
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "U", 12)
	line("PRODUCTS/SERVICES:", "L")
	pdf.SetFont("Helvetica", "", 12)
	pdf.Ln(8)

	cell := func(x, y, w float64, text, align string) {
		pdf.SetXY(x, y)
		pdf.CellFormat(w, lineHeight, tr(text), "", 0, align, false, 0, "")
	}

	y := pdf.GetY()
	cell(colDescription, y, colPrice-colDescription, "Description", "L")
	cell(colPrice, y, colQty-colPrice, "Price", "L")
	cell(colQty, y, colSubtotal-colQty, "Qty", "L")
	cell(colSubtotal, y, tableRight-colSubtotal, "Subtotal", "L")
	y += rowStep
	pdf.Line(colDescription, y, tableRight, y)
	y += 10

	for _, it := range doc.Items {
		cell(colDescription, y, colPrice-colDescription, it.Description, "L")
		cell(colPrice, y, colQty-colPrice, model.Money(it.UnitPrice), "L")
		cell(colQty, y, colSubtotal-colQty, fmt.Sprintf("%d", it.Quantity), "L")
		cell(colSubtotal, y, tableRight-colSubtotal, model.Money(it.Subtotal()), "L")
		y += rowStep
	}

	pdf.Line(colDescription, y, tableRight, y)
	y += rowStep

	pdf.SetFont("Helvetica", "B", 14)
	pdf.SetXY(colDescription, y)
	pdf.CellFormat(tableRight-colDescription, 18, "TOTAL: "+model.Money(doc.Total), "", 0, "R", false, 0, "")

	return pdf
}
