// Package pdf renders invoices to files on local storage.
package pdf

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/go-pdf/fpdf"

	"invoice-messaging-backend/internal/models"
	"invoice-messaging-backend/internal/services/money"
)

const (
	margin    = 50.0
	rightEdge = 545.0
	rowHeight = 25.0
	fontSize  = 12.0

	colDescription = 50.0
	colQuantity    = 300.0
	colPrice       = 350.0
	colTotal       = 450.0
)

// Renderer writes one PDF per invoice number under Dir.
type Renderer struct {
	Dir string
}

// NewRenderer resolves dir to an absolute path so stored paths survive a
// change of working directory.
func NewRenderer(dir string) (*Renderer, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve pdf dir: %w", err)
	}
	return &Renderer{Dir: abs}, nil
}

// PathFor is the deterministic output location for an invoice number.
func (r *Renderer) PathFor(invoiceNumber string) string {
	return filepath.Join(r.Dir, filepath.Base(invoiceNumber)+".pdf")
}

// Render lays out the invoice and returns the written path. The invoice must
// have its Customer and Items loaded. The file is only in place once it has
// been fully written and closed.
func (r *Renderer) Render(invoice *models.Invoice) (string, error) {
	if invoice == nil || invoice.Customer == nil {
		return "", errors.New("pdf: invoice with customer required")
	}
	if invoice.InvoiceNumber == "" {
		return "", errors.New("pdf: invoice number required")
	}

	if err := os.MkdirAll(r.Dir, 0o755); err != nil {
		return "", fmt.Errorf("pdf: create dir: %w", err)
	}

	doc := layout(invoice)
	if err := doc.Error(); err != nil {
		return "", fmt.Errorf("pdf: layout: %w", err)
	}

	target := r.PathFor(invoice.InvoiceNumber)
	if err := writeAtomic(doc, target); err != nil {
		return "", err
	}
	return target, nil
}

func writeAtomic(doc *fpdf.Fpdf, target string) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(target), filepath.Base(target)+".*.tmp")
	if err != nil {
		return fmt.Errorf("pdf: create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if err = doc.Output(tmp); err != nil {
		return fmt.Errorf("pdf: write: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("pdf: flush: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("pdf: close: %w", err)
	}
	if err = os.Rename(tmp.Name(), target); err != nil {
		return fmt.Errorf("pdf: move into place: %w", err)
	}
	return nil
}

func layout(invoice *models.Invoice) *fpdf.Fpdf {
	doc := fpdf.New("P", "pt", "A4", "")
	doc.SetMargins(margin, margin, margin)
	doc.SetAutoPageBreak(false, margin)
	doc.SetTitle("Invoice "+invoice.InvoiceNumber, true)
	doc.SetCreator("invoice-messaging-backend", true)
	doc.SetCreationDate(invoice.CreatedAt)
	tr := doc.UnicodeTranslatorFromDescriptor("")

	_, pageHeight := doc.GetPageSize()
	bottom := pageHeight - margin

	doc.AddPage()

	doc.SetFont("Helvetica", "B", 20)
	doc.CellFormat(0, 30, "INVOICE", "", 1, "C", false, 0, "")
	doc.Ln(fontSize)

	doc.SetFont("Helvetica", "", fontSize)
	line(doc, tr("Invoice Number: "+invoice.InvoiceNumber))
	line(doc, "Date: "+invoice.CreatedAt.Format("02 Jan 2006"))
	doc.Ln(fontSize)

	doc.SetFont("Helvetica", "U", fontSize)
	line(doc, "Bill To:")
	doc.SetFont("Helvetica", "", fontSize)
	customer := invoice.Customer
	line(doc, tr("Name: "+customer.Name))
	if customer.Email != nil && *customer.Email != "" {
		line(doc, tr("Email: "+*customer.Email))
	}
	if customer.Phone != nil && *customer.Phone != "" {
		line(doc, tr("Phone: "+*customer.Phone))
	}
	doc.Ln(fontSize)

	doc.SetFont("Helvetica", "U", fontSize)
	line(doc, "Items:")
	doc.SetFont("Helvetica", "", fontSize)
	doc.Ln(fontSize / 2)

	y := tableHeader(doc, doc.GetY())
	for _, item := range invoice.Items {
		if y+rowHeight > bottom {
			doc.AddPage()
			y = tableHeader(doc, margin)
		}
		cell(doc, colDescription, y, colQuantity-colDescription-10, fit(doc, tr(item.Description), colQuantity-colDescription-10), "L")
		cell(doc, colQuantity, y, colPrice-colQuantity, strconv.Itoa(item.Quantity), "L")
		cell(doc, colPrice, y, colTotal-colPrice, money.Format(money.PDFSymbol, item.Price), "L")
		cell(doc, colTotal, y, rightEdge-colTotal, money.Format(money.PDFSymbol, item.LineTotal()), "L")
		y += rowHeight
	}

	// ruled line, gap and footer need roughly 60pt
	if y+60 > bottom {
		doc.AddPage()
		y = margin
	}
	y += 10
	doc.Line(colDescription, y, rightEdge, y)
	y += 20

	doc.SetFont("Helvetica", "B", 14)
	cell(doc, colPrice, y, rightEdge-colPrice, "Total Amount: "+money.Format(money.PDFSymbol, invoice.TotalAmount), "R")

	return doc
}

func tableHeader(doc *fpdf.Fpdf, y float64) float64 {
	doc.SetFont("Helvetica", "B", fontSize)
	cell(doc, colDescription, y, colQuantity-colDescription, "Description", "L")
	cell(doc, colQuantity, y, colPrice-colQuantity, "Qty", "L")
	cell(doc, colPrice, y, colTotal-colPrice, "Price", "L")
	cell(doc, colTotal, y, rightEdge-colTotal, "Total", "L")
	doc.SetFont("Helvetica", "", fontSize)

	y += 20
	doc.Line(colDescription, y, rightEdge, y)
	return y + 10
}

func line(doc *fpdf.Fpdf, text string) {
	doc.CellFormat(0, fontSize+4, text, "", 1, "L", false, 0, "")
}

func cell(doc *fpdf.Fpdf, x, y, w float64, text, align string) {
	doc.SetXY(x, y)
	doc.CellFormat(w, fontSize+4, text, "", 0, align, false, 0, "")
}

// fit shortens text with an ellipsis so it stays inside its column. text is
// already in the single-byte font encoding, so trimming bytes is safe.
func fit(doc *fpdf.Fpdf, text string, width float64) string {
	if doc.GetStringWidth(text) <= width {
		return text
	}
	for len(text) > 0 && doc.GetStringWidth(text+"...") > width {
		text = text[:len(text)-1]
	}
	return text + "..."
}
