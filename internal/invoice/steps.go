package invoice

import (
	"context"
	"errors"
	"fmt"

	"github.com/iliamunaev/invoice-emission/internal/apperr"
	"github.com/iliamunaev/invoice-emission/internal/model"
	"github.com/iliamunaev/invoice-emission/internal/pipeline"
	"github.com/iliamunaev/invoice-emission/internal/service/email"
	"github.com/iliamunaev/invoice-emission/internal/service/pdf"
	"github.com/iliamunaev/invoice-emission/internal/store"
)

// Step names, in execution order.
const (
	StepCreateInvoice = "create_invoice"
	StepRenderPDF     = "render_pdf"
	StepSummary       = "summary"
	StepEmail         = "email"
	StepWhatsApp      = "whatsapp"
	StepSMS           = "sms"
	StepArchivePDF    = "archive_pdf"
)

var errNotConfigured = errors.New("not configured")

// steps returns the emission flow. The order is fixed: the PDF needs the
// issued invoice, and the email needs the PDF.
func (s *Service) steps() []pipeline.Step[*emission] {
	steps := []pipeline.Step[*emission]{
		{Name: StepCreateInvoice, Policy: pipeline.Fatal, Run: s.createInvoice},
		{Name: StepRenderPDF, Policy: pipeline.Fatal, Run: s.renderPDF},
		{Name: StepSummary, Policy: pipeline.BestEffort, Run: s.summarize},
		{Name: StepEmail, Policy: pipeline.BestEffort, Run: s.sendEmail},
		{Name: StepWhatsApp, Policy: pipeline.BestEffort, Run: func(ctx context.Context, e *emission) error {
			return s.sendText(ctx, s.deps.WhatsApp, e.req.PhoneNumber,
				WhatsAppMessage(e.req.LegalName, e.req.LineItems, e.invoice.Total))
		}},
		{Name: StepSMS, Policy: pipeline.BestEffort, Run: func(ctx context.Context, e *emission) error {
			return s.sendText(ctx, s.deps.SMS, e.req.PhoneNumber,
				SMSMessage(e.req.LegalName, e.req.LineItems, e.invoice.Total))
		}},
	}
	if s.deps.Archiver != nil {
		steps = append(steps, pipeline.Step[*emission]{Name: StepArchivePDF, Policy: pipeline.BestEffort, Run: s.archivePDF})
	}
	return steps
}

func (s *Service) createInvoice(ctx context.Context, e *emission) error {
	inv, err := s.deps.Provider.CreateInvoice(ctx, e.customer, e.items)
	if err != nil {
		return apperr.Wrap(apperr.ErrInvoiceCreation, err)
	}

	id, err := s.deps.Store.Save(ctx, store.Record{
		Invoice:   inv,
		Customer:  e.customer,
		LineItems: e.req.LineItems,
	})
	if err != nil {
		// The provider already issued the invoice; keep its id for reconciliation.
		s.logger.ErrorContext(ctx, "issued invoice not stored",
			"provider_id", inv.ProviderID,
			"folio", inv.Folio,
			"err", err,
		)
		return apperr.Wrap(apperr.ErrInvoiceCreation, fmt.Errorf("store: %w", err))
	}

	inv.ID = id
	e.invoice = inv
	return nil
}

func (s *Service) renderPDF(_ context.Context, e *emission) error {
	path, err := s.deps.Renderer.Path()
	if err != nil {
		return apperr.Wrap(apperr.ErrRender, err)
	}
	doc := pdf.Document{
		Folio:    e.invoice.Folio,
		IssuedAt: e.invoice.IssuedAt,
		Customer: model.CustomerSummary{Name: e.customer.LegalName, TaxID: e.customer.TaxID, Email: e.customer.Email},
		Items:    e.items,
		Total:    e.invoice.Total,
	}
	if err := s.deps.Renderer.Render(path, doc); err != nil {
		return apperr.Wrap(apperr.ErrRender, err)
	}
	e.pdfPath = path
	return nil
}

// summarize always leaves a summary on e, falling back on any failure.
func (s *Service) summarize(ctx context.Context, e *emission) error {
	e.summary = FallbackSummary(e.req.LegalName, e.invoice.Total)
	if s.deps.Summarizer == nil {
		return apperr.Wrap(apperr.ErrSummaryUnavailable, errNotConfigured)
	}
	text, err := s.deps.Summarizer.Summarize(ctx, e.req.LegalName, e.req.LineItems, e.invoice.Total)
	if err != nil {
		return apperr.Wrap(apperr.ErrSummaryUnavailable, err)
	}
	e.summary = text
	return nil
}

func (s *Service) sendEmail(ctx context.Context, e *emission) error {
	if s.deps.Mailer == nil {
		return apperr.Wrap(apperr.ErrNotificationDelivery, errNotConfigured)
	}
	err := s.deps.Mailer.Send(ctx, email.Message{
		To:             e.req.Email,
		Subject:        emailSubject(e.invoice.Folio, e.req.LegalName),
		Body:           emailBody(e.req.LegalName),
		AttachmentPath: e.pdfPath,
		PDFURL:         e.invoice.PDFURL,
		XMLURL:         e.invoice.XMLURL,
	})
	return apperr.Wrap(apperr.ErrNotificationDelivery, err)
}

func (s *Service) sendText(ctx context.Context, m Messenger, to, body string) error {
	if m == nil {
		return apperr.Wrap(apperr.ErrNotificationDelivery, errNotConfigured)
	}
	return apperr.Wrap(apperr.ErrNotificationDelivery, m.Send(ctx, to, body))
}

func (s *Service) archivePDF(ctx context.Context, e *emission) error {
	key, err := s.deps.Archiver.Archive(ctx, e.invoice.ID, e.pdfPath)
	if err != nil {
		return apperr.Wrap(apperr.ErrNotificationDelivery, err)
	}
	s.logger.DebugContext(ctx, "pdf archived", "id", e.invoice.ID, "key", key)
	return nil
}
