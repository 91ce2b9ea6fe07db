// Package invoice orchestrates invoice emission: validation, fiscal invoice
// creation, the local PDF summary, the AI purchase summary and customer
// notifications.
package invoice

import (
	"context"
	"errors"
	"log/slog"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/trace"

	"github.com/iliamunaev/invoice-emission/internal/apperr"
	"github.com/iliamunaev/invoice-emission/internal/model"
	"github.com/iliamunaev/invoice-emission/internal/pipeline"
	"github.com/iliamunaev/invoice-emission/internal/service/email"
	"github.com/iliamunaev/invoice-emission/internal/service/pdf"
	"github.com/iliamunaev/invoice-emission/internal/store"
)

// Provider creates fiscal invoices.
type Provider interface {
	CreateInvoice(ctx context.Context, customer model.Customer, items []model.ServiceLineItem) (model.IssuedInvoice, error)
}

// Renderer writes the local PDF summary.
type Renderer interface {
	Path() (string, error)
	Render(path string, doc pdf.Document) error
}

// Summarizer writes the natural-language purchase summary.
type Summarizer interface {
	Summarize(ctx context.Context, customerName string, items []model.LineItem, total decimal.Decimal) (string, error)
}

// Mailer emails the invoice.
type Mailer interface {
	Send(ctx context.Context, msg email.Message) error
}

// Messenger sends a text message to a phone number.
type Messenger interface {
	Send(ctx context.Context, to, body string) error
}

// Archiver copies the rendered PDF to long-term storage.
type Archiver interface {
	Archive(ctx context.Context, invoiceID, path string) (string, error)
}

// Deps are the collaborators of a Service. Provider, Store and Renderer are
// required. A nil Summarizer, Mailer or Messenger makes its step degrade;
// a nil Archiver drops the archive step.
type Deps struct {
	Provider   Provider
	Store      store.Store
	Renderer   Renderer
	Summarizer Summarizer
	Mailer     Mailer
	WhatsApp   Messenger
	SMS        Messenger
	Archiver   Archiver

	Logger  *slog.Logger
	Tracer  trace.Tracer
	Tracker *pipeline.Tracker
}

// Service issues invoices.
type Service struct {
	deps   Deps
	logger *slog.Logger
	runner *pipeline.Runner[*emission]
}

// New creates a Service. It panics if a required collaborator is nil.
func New(d Deps) *Service {
	if d.Provider == nil || d.Store == nil || d.Renderer == nil {
		panic("invoice.New: nil provider, store or renderer")
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	logger := d.Logger.With("component", "invoice")
	return &Service{
		deps:   d,
		logger: logger,
		runner: pipeline.NewRunner[*emission](logger, d.Tracer, d.Tracker),
	}
}

// emission is the state threaded through the steps of one request.
type emission struct {
	req      model.InvoiceRequest
	customer model.Customer
	items    []model.ServiceLineItem

	invoice model.IssuedInvoice
	pdfPath string
	summary string
}

// Issue validates req and runs the emission steps. Only validation, invoice
// creation and render failures are returned; every other failure is logged
// and reflected in the result's step list.
func (s *Service) Issue(ctx context.Context, req model.InvoiceRequest) (model.InvoiceResult, error) {
	if err := Validate(req); err != nil {
		s.logger.WarnContext(ctx, "invoice request rejected", "err", err)
		return model.InvoiceResult{}, err
	}

	e := &emission{
		req:      req,
		customer: buildCustomer(req),
		items:    serviceItems(req.LineItems),
	}

	steps, err := s.runner.Run(ctx, e, s.steps())
	if err != nil {
		s.logger.ErrorContext(ctx, "invoice emission failed",
			"kind", apperr.Kind(err),
			"tax_id", req.TaxID,
			"err", err,
		)
		return model.InvoiceResult{}, err
	}

	res := buildResult(e.invoice, e.customer, req.LineItems)
	res.Summary = e.summary
	res.Steps = steps

	s.logger.InfoContext(ctx, "invoice issued",
		"id", res.ID,
		"folio", res.Folio,
		"total", res.Total.StringFixed(2),
	)
	return res, nil
}

// Lookup returns a previously issued invoice by its document id.
// The stored document has no summary, so Summary is the fallback text.
func (s *Service) Lookup(ctx context.Context, id string) (model.InvoiceResult, error) {
	rec, err := s.deps.Store.Get(ctx, id)
	if err != nil {
		return model.InvoiceResult{}, err
	}
	res := buildResult(rec.Invoice, rec.Customer, rec.LineItems)
	res.Summary = FallbackSummary(rec.Customer.LegalName, rec.Invoice.Total)
	return res, nil
}

// IsNotFound reports whether err means no invoice matched a Lookup.
func IsNotFound(err error) bool {
	return errors.Is(err, store.ErrNotFound)
}

func buildCustomer(req model.InvoiceRequest) model.Customer {
	return model.Customer{
		LegalName: req.LegalName,
		TaxID:     req.TaxID,
		Email:     req.Email,
		Address:   model.PlaceholderAddress(),
	}
}

func serviceItems(items []model.LineItem) []model.ServiceLineItem {
	out := make([]model.ServiceLineItem, 0, len(items))
	for _, it := range items {
		out = append(out, model.ServiceLineItem{
			Description: it.Name,
			UnitPrice:   it.UnitPrice,
			Quantity:    it.Quantity,
			ProductKey:  model.ProductKey,
		})
	}
	return out
}

// buildResult computes subtotals from the request items, independently of
// what the provider computed.
func buildResult(inv model.IssuedInvoice, c model.Customer, items []model.LineItem) model.InvoiceResult {
	lines := make([]model.ResultLineItem, 0, len(items))
	for _, it := range items {
		lines = append(lines, model.ResultLineItem{
			Name:      it.Name,
			UnitPrice: it.UnitPrice,
			Quantity:  it.Quantity,
			Subtotal:  it.Subtotal(),
		})
	}
	return model.InvoiceResult{
		ID:        inv.ID,
		Customer:  model.CustomerSummary{Name: c.LegalName, TaxID: c.TaxID, Email: c.Email},
		LineItems: lines,
		Total:     inv.Total,
		PDFURL:    inv.PDFURL,
		XMLURL:    inv.XMLURL,
		Folio:     inv.Folio,
	}
}
