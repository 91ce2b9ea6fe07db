package invoice

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliamunaev/invoice-emission/internal/apperr"
	"github.com/iliamunaev/invoice-emission/internal/model"
	"github.com/iliamunaev/invoice-emission/internal/service/email"
	"github.com/iliamunaev/invoice-emission/internal/service/pdf"
	"github.com/iliamunaev/invoice-emission/internal/store"
)

// --- fakes ---

type fakeProvider struct {
	mu    sync.Mutex
	calls int
	got   []model.ServiceLineItem
	cust  model.Customer
	inv   model.IssuedInvoice
	err   error
}

func (f *fakeProvider) CreateInvoice(_ context.Context, c model.Customer, items []model.ServiceLineItem) (model.IssuedInvoice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.cust = c
	f.got = items
	return f.inv, f.err
}

type fakeRenderer struct {
	calls int
	doc   pdf.Document
	err   error
}

func (f *fakeRenderer) Path() (string, error) { return "/tmp/invoice_1.pdf", nil }

func (f *fakeRenderer) Render(_ string, doc pdf.Document) error {
	f.calls++
	f.doc = doc
	return f.err
}

type fakeSummarizer struct {
	calls int
	text  string
	err   error
}

func (f *fakeSummarizer) Summarize(context.Context, string, []model.LineItem, decimal.Decimal) (string, error) {
	f.calls++
	return f.text, f.err
}

type fakeMailer struct {
	calls int
	msg   email.Message
	err   error
}

func (f *fakeMailer) Send(_ context.Context, msg email.Message) error {
	f.calls++
	f.msg = msg
	return f.err
}

type fakeMessenger struct {
	calls int
	to    string
	body  string
	err   error
}

func (f *fakeMessenger) Send(_ context.Context, to, body string) error {
	f.calls++
	f.to, f.body = to, body
	return f.err
}

type fakeArchiver struct {
	calls int
	err   error
}

func (f *fakeArchiver) Archive(_ context.Context, id, _ string) (string, error) {
	f.calls++
	return "invoices/" + id + ".pdf", f.err
}

type failingStore struct{ store.Store }

func (failingStore) Save(context.Context, store.Record) (string, error) {
	return "", errors.New("db down")
}

type fixture struct {
	provider   *fakeProvider
	renderer   *fakeRenderer
	summarizer *fakeSummarizer
	mailer     *fakeMailer
	whatsapp   *fakeMessenger
	sms        *fakeMessenger
	store      *store.MemoryStore
	logs       *bytes.Buffer
}

func newFixture() *fixture {
	return &fixture{
		provider: &fakeProvider{inv: model.IssuedInvoice{
			ProviderID: "1",
			Folio:      "F-1",
			IssuedAt:   time.Date(2026, 3, 9, 12, 0, 0, 0, time.UTC),
			Total:      decimal.RequireFromString("200.00"),
			PDFURL:     "http://x/pdf",
			XMLURL:     "http://x/xml",
		}},
		renderer:   &fakeRenderer{},
		summarizer: &fakeSummarizer{text: "Acme SA bought two widgets."},
		mailer:     &fakeMailer{},
		whatsapp:   &fakeMessenger{},
		sms:        &fakeMessenger{},
		store:      store.NewMemoryStore(),
		logs:       &bytes.Buffer{},
	}
}

func (f *fixture) deps() Deps {
	return Deps{
		Provider:   f.provider,
		Store:      f.store,
		Renderer:   f.renderer,
		Summarizer: f.summarizer,
		Mailer:     f.mailer,
		WhatsApp:   f.whatsapp,
		SMS:        f.sms,
		Logger:     slog.New(slog.NewTextHandler(f.logs, &slog.HandlerOptions{Level: slog.LevelDebug})),
	}
}

func (f *fixture) service() *Service { return New(f.deps()) }

func (f *fixture) outboundCalls() int {
	return f.provider.calls + f.renderer.calls + f.summarizer.calls + f.mailer.calls + f.whatsapp.calls + f.sms.calls
}

func acmeRequest() model.InvoiceRequest {
	return model.InvoiceRequest{
		LegalName:   "Acme SA",
		TaxID:       "ACM010101XXX",
		Email:       "a@acme.mx",
		PhoneNumber: "+5215512345678",
		LineItems:   []model.LineItem{{Name: "Widget", UnitPrice: decimal.RequireFromString("100.00"), Quantity: 2}},
	}
}

func statuses(steps []model.StepResult) map[string]string {
	out := make(map[string]string, len(steps))
	for _, s := range steps {
		out[s.Name] = s.Status
	}
	return out
}

// --- tests ---

func TestIssue_EndToEnd(t *testing.T) {
	t.Parallel()

	f := newFixture()
	res, err := f.service().Issue(context.Background(), acmeRequest())
	require.NoError(t, err)

	assert.Equal(t, "200.00", res.Total.StringFixed(2))
	assert.Equal(t, "F-1", res.Folio)
	require.Len(t, res.LineItems, 1)
	assert.Equal(t, "200.00", res.LineItems[0].Subtotal.StringFixed(2))
	assert.Equal(t, "http://x/pdf", res.PDFURL)
	assert.Equal(t, "http://x/xml", res.XMLURL)
	assert.Equal(t, model.CustomerSummary{Name: "Acme SA", TaxID: "ACM010101XXX", Email: "a@acme.mx"}, res.Customer)
	assert.Equal(t, "Acme SA bought two widgets.", res.Summary)
	assert.NotEmpty(t, res.ID)

	assert.Equal(t, map[string]string{
		StepCreateInvoice: model.StepOK,
		StepRenderPDF:     model.StepOK,
		StepSummary:       model.StepOK,
		StepEmail:         model.StepOK,
		StepWhatsApp:      model.StepOK,
		StepSMS:           model.StepOK,
	}, statuses(res.Steps))

	stored, err := f.store.Get(context.Background(), res.ID)
	require.NoError(t, err)
	assert.Equal(t, "F-1", stored.Invoice.Folio)
}

func TestIssue_CollaboratorInputs(t *testing.T) {
	t.Parallel()

	f := newFixture()
	req := acmeRequest()
	req.LineItems = append(req.LineItems, model.LineItem{Name: "Bolt", UnitPrice: decimal.RequireFromString("0.1"), Quantity: 3})

	_, err := f.service().Issue(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, model.PlaceholderAddress(), f.provider.cust.Address)
	require.Len(t, f.provider.got, 2)
	for _, it := range f.provider.got {
		assert.Equal(t, model.ProductKey, it.ProductKey)
		assert.Empty(t, it.UniqueKey)
	}
	assert.Equal(t, "Widget", f.provider.got[0].Description)

	assert.Equal(t, "F-1", f.renderer.doc.Folio)
	assert.Len(t, f.renderer.doc.Items, 2)

	assert.Equal(t, "a@acme.mx", f.mailer.msg.To)
	assert.Equal(t, "Invoice F-1 - Acme SA", f.mailer.msg.Subject)
	assert.Equal(t, "/tmp/invoice_1.pdf", f.mailer.msg.AttachmentPath)
	assert.Equal(t, "http://x/pdf", f.mailer.msg.PDFURL)
	assert.Equal(t, "http://x/xml", f.mailer.msg.XMLURL)

	items := "2 x Widget ($100.00), 3 x Bolt ($0.10)"
	assert.Equal(t, "+5215512345678", f.whatsapp.to)
	assert.Equal(t, "Hello Acme SA! We generated your invoice for: "+items+". Total: $200.00 MXN. Thank you for your purchase!", f.whatsapp.body)
	assert.Equal(t, "+5215512345678", f.sms.to)
	assert.Equal(t, "Acme SA, you purchased: "+items+". Total: $200.00.", f.sms.body)
}

func TestIssue_ValidationMakesNoCalls(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*model.InvoiceRequest)
		message string
	}{
		{"missing legal name", func(r *model.InvoiceRequest) { r.LegalName = "" }, "missing required fields"},
		{"missing tax id", func(r *model.InvoiceRequest) { r.TaxID = "" }, "missing required fields"},
		{"missing email", func(r *model.InvoiceRequest) { r.Email = "  " }, "missing required fields"},
		{"missing phone", func(r *model.InvoiceRequest) { r.PhoneNumber = "" }, "missing required fields"},
		{"no line items", func(r *model.InvoiceRequest) { r.LineItems = nil }, "at least one product required"},
		{"second item without name", func(r *model.InvoiceRequest) {
			r.LineItems = append(r.LineItems, model.LineItem{UnitPrice: decimal.NewFromInt(1), Quantity: 1})
		}, "incomplete product at position 2"},
		{"third item with zero price", func(r *model.InvoiceRequest) {
			r.LineItems = append(r.LineItems,
				model.LineItem{Name: "Nut", UnitPrice: decimal.NewFromInt(2), Quantity: 3},
				model.LineItem{Name: "Bolt", UnitPrice: decimal.Zero, Quantity: 1},
			)
		}, "incomplete product at position 3"},
		{"third item with zero quantity", func(r *model.InvoiceRequest) {
			r.LineItems = append(r.LineItems,
				model.LineItem{Name: "Nut", UnitPrice: decimal.NewFromInt(2), Quantity: 3},
				model.LineItem{Name: "Bolt", UnitPrice: decimal.NewFromInt(5), Quantity: 0},
			)
		}, "incomplete product at position 3"},
		{"third item with negative price", func(r *model.InvoiceRequest) {
			r.LineItems = append(r.LineItems,
				model.LineItem{Name: "Nut", UnitPrice: decimal.NewFromInt(2), Quantity: 3},
				model.LineItem{Name: "Bolt", UnitPrice: decimal.NewFromInt(-1), Quantity: 1},
			)
		}, "incomplete product at position 3"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newFixture()
			req := acmeRequest()
			tt.mutate(&req)

			_, err := f.service().Issue(context.Background(), req)
			require.Error(t, err)
			assert.Equal(t, apperr.KindValidation, apperr.Kind(err))
			assert.Equal(t, tt.message, apperr.Message(err))
			assert.Zero(t, f.outboundCalls())
			assert.NotContains(t, f.logs.String(), "level=ERROR")
		})
	}
}

func TestIssue_ProviderFailureAborts(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.provider.err = errors.New("provider 500")

	_, err := f.service().Issue(context.Background(), acmeRequest())
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrInvoiceCreation)
	assert.Contains(t, err.Error(), "provider 500")

	assert.Equal(t, 1, f.provider.calls)
	assert.Zero(t, f.renderer.calls)
	assert.Zero(t, f.summarizer.calls)
	assert.Zero(t, f.mailer.calls)
	assert.Zero(t, f.whatsapp.calls)
	assert.Zero(t, f.sms.calls)
	assert.Contains(t, f.logs.String(), "invoice emission failed")
	assert.Equal(t, 1, strings.Count(f.logs.String(), "level=ERROR"))
}

func TestIssue_StoreFailureAborts(t *testing.T) {
	t.Parallel()

	f := newFixture()
	d := f.deps()
	d.Store = failingStore{}

	_, err := New(d).Issue(context.Background(), acmeRequest())
	require.ErrorIs(t, err, apperr.ErrInvoiceCreation)
	assert.Zero(t, f.renderer.calls)
	assert.Zero(t, f.mailer.calls)
	assert.Contains(t, f.logs.String(), "provider_id=1")
}

func TestIssue_RenderFailureIsFatal(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.renderer.err = errors.New("disk full")

	_, err := f.service().Issue(context.Background(), acmeRequest())
	require.ErrorIs(t, err, apperr.ErrRender)
	assert.Equal(t, 1, f.provider.calls)
	assert.Zero(t, f.summarizer.calls)
	assert.Zero(t, f.mailer.calls)
	assert.Zero(t, f.sms.calls)
}

func TestIssue_SummaryFallback(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.summarizer.err = errors.New("timeout")

	res, err := f.service().Issue(context.Background(), acmeRequest())
	require.NoError(t, err)
	assert.Equal(t, "Invoice generated for Acme SA. Total: $200.00 MXN", res.Summary)
	assert.Equal(t, model.StepDegraded, statuses(res.Steps)[StepSummary])
}

func TestIssue_NoSummarizerUsesFallback(t *testing.T) {
	t.Parallel()

	f := newFixture()
	d := f.deps()
	d.Summarizer = nil

	res, err := New(d).Issue(context.Background(), acmeRequest())
	require.NoError(t, err)
	assert.Equal(t, FallbackSummary("Acme SA", decimal.NewFromInt(200)), res.Summary)
}

func TestIssue_NotificationFailuresAreBestEffort(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.mailer.err = errors.New("smtp refused")
	f.whatsapp.err = errors.New("twilio 400")
	f.sms.err = errors.New("twilio 400")

	res, err := f.service().Issue(context.Background(), acmeRequest())
	require.NoError(t, err)
	assert.Equal(t, "F-1", res.Folio)

	st := statuses(res.Steps)
	assert.Equal(t, model.StepDegraded, st[StepEmail])
	assert.Equal(t, model.StepDegraded, st[StepWhatsApp])
	assert.Equal(t, model.StepDegraded, st[StepSMS])

	// SMS is attempted even though WhatsApp failed.
	assert.Equal(t, 1, f.sms.calls)
	assert.Contains(t, f.logs.String(), "best-effort step failed")
}

func TestIssue_ArchiveStep(t *testing.T) {
	t.Parallel()

	f := newFixture()
	arch := &fakeArchiver{err: errors.New("bucket missing")}
	d := f.deps()
	d.Archiver = arch

	res, err := New(d).Issue(context.Background(), acmeRequest())
	require.NoError(t, err)
	assert.Equal(t, 1, arch.calls)
	require.Len(t, res.Steps, 7)
	assert.Equal(t, StepArchivePDF, res.Steps[6].Name)
	assert.Equal(t, model.StepDegraded, res.Steps[6].Status)
}

func TestIssue_WithRealRenderer(t *testing.T) {
	t.Parallel()

	f := newFixture()
	d := f.deps()
	d.Renderer = pdf.New(t.TempDir())

	_, err := New(d).Issue(context.Background(), acmeRequest())
	require.NoError(t, err)

	info, err := os.Stat(f.mailer.msg.AttachmentPath)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}

func TestLookup(t *testing.T) {
	t.Parallel()

	f := newFixture()
	svc := f.service()
	ctx := context.Background()

	issued, err := svc.Issue(ctx, acmeRequest())
	require.NoError(t, err)

	got, err := svc.Lookup(ctx, issued.ID)
	require.NoError(t, err)
	assert.Equal(t, issued.ID, got.ID)
	assert.Equal(t, "F-1", got.Folio)
	assert.Equal(t, "200.00", got.LineItems[0].Subtotal.StringFixed(2))
	assert.Nil(t, got.Steps)

	_, err = svc.Lookup(ctx, "nope")
	assert.True(t, IsNotFound(err))
}

func TestNew_PanicsWithoutRequiredDeps(t *testing.T) {
	t.Parallel()

	assert.Panics(t, func() { New(Deps{}) })
}
