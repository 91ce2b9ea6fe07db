package gqltransport

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/graphql-go/graphql"
	"github.com/shopspring/decimal"

	"github.com/iliamunaev/invoice-emission/internal/apperr"
	"github.com/iliamunaev/invoice-emission/internal/model"
)

// issuePrefix starts every issueInvoice error message.
const issuePrefix = "Could not issue invoice: "

type invoiceIssuer interface {
	Issue(ctx context.Context, req model.InvoiceRequest) (model.InvoiceResult, error)
	Lookup(ctx context.Context, id string) (model.InvoiceResult, error)
}

type admitter interface {
	Acquire(ctx context.Context) (release func(), err error)
}

// Resolver holds the field resolvers.
type Resolver struct {
	issuer         invoiceIssuer
	slots          admitter
	requestTimeout time.Duration
	isNotFound     func(error) bool
	logger         *slog.Logger
}

// Options configures a Resolver. Slots and IsNotFound are optional.
type Options struct {
	Slots          admitter
	RequestTimeout time.Duration
	IsNotFound     func(error) bool
	Logger         *slog.Logger
}

// NewResolver returns a Resolver over issuer.
//
// It panics if issuer is nil. If RequestTimeout is non-positive,
// a default timeout is applied.
func NewResolver(issuer invoiceIssuer, opts Options) *Resolver {
	if issuer == nil {
		panic("gqltransport.NewResolver: nil issuer")
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 60 * time.Second
	}
	if opts.IsNotFound == nil {
		opts.IsNotFound = func(error) bool { return false }
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Resolver{
		issuer:         issuer,
		slots:          opts.Slots,
		requestTimeout: opts.RequestTimeout,
		isNotFound:     opts.IsNotFound,
		logger:         opts.Logger.With("component", "graphql"),
	}
}

func (r *Resolver) health(graphql.ResolveParams) (any, error) {
	return "ok", nil
}

func (r *Resolver) issueInvoice(p graphql.ResolveParams) (any, error) {
	ctx, cancel := context.WithTimeout(p.Context, r.requestTimeout)
	defer cancel()

	if r.slots != nil {
		release, err := r.slots.Acquire(ctx)
		if err != nil {
			r.logger.WarnContext(ctx, "issueInvoice not admitted", "kind", apperr.Kind(err), "err", err)
			return nil, issueError(err)
		}
		defer release()
	}

	input, _ := p.Args["input"].(map[string]any)
	res, err := r.issuer.Issue(ctx, requestFromInput(input))
	if err != nil {
		// already logged by the issuer
		return nil, issueError(err)
	}
	return invoiceOutput(res), nil
}

func issueError(err error) error {
	return errors.New(issuePrefix + apperr.Message(err))
}

func (r *Resolver) invoice(p graphql.ResolveParams) (any, error) {
	id, _ := p.Args["id"].(string)
	res, err := r.issuer.Lookup(p.Context, id)
	if err != nil {
		if r.isNotFound(err) {
			return nil, nil
		}
		r.logger.ErrorContext(p.Context, "invoice lookup failed", "id", id, "err", err)
		return nil, errors.New("Could not load invoice: " + apperr.Message(err))
	}
	return invoiceOutput(res), nil
}

// requestFromInput maps the GraphQL input object. Absent fields stay at
// their zero values and are rejected by request validation.
func requestFromInput(in map[string]any) model.InvoiceRequest {
	req := model.InvoiceRequest{
		LegalName:   stringArg(in, "legalName"),
		TaxID:       stringArg(in, "taxId"),
		Email:       stringArg(in, "email"),
		PhoneNumber: stringArg(in, "phoneNumber"),
	}
	raw, _ := in["lineItems"].([]any)
	for _, v := range raw {
		item, _ := v.(map[string]any)
		li := model.LineItem{Name: stringArg(item, "name")}
		if f, ok := item["unitPrice"].(float64); ok {
			li.UnitPrice = decimal.NewFromFloat(f)
		}
		if n, ok := item["quantity"].(int); ok {
			li.Quantity = n
		}
		req.LineItems = append(req.LineItems, li)
	}
	return req
}

func stringArg(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

func invoiceOutput(res model.InvoiceResult) map[string]any {
	items := make([]map[string]any, 0, len(res.LineItems))
	for _, it := range res.LineItems {
		items = append(items, map[string]any{
			"name":      it.Name,
			"unitPrice": money(it.UnitPrice),
			"quantity":  it.Quantity,
			"subtotal":  money(it.Subtotal),
		})
	}

	steps := make([]map[string]any, 0, len(res.Steps))
	for _, s := range res.Steps {
		steps = append(steps, map[string]any{
			"name":       s.Name,
			"status":     s.Status,
			"durationMs": s.DurationMS,
			"detail":     s.Detail,
		})
	}

	return map[string]any{
		"id": res.ID,
		"customer": map[string]any{
			"name":  res.Customer.Name,
			"taxId": res.Customer.TaxID,
			"email": res.Customer.Email,
		},
		"lineItems": items,
		"total":     money(res.Total),
		"pdfUrl":    res.PDFURL,
		"xmlUrl":    res.XMLURL,
		"folio":     res.Folio,
		"summary":   res.Summary,
		"steps":     steps,
	}
}

// money rounds to cents before converting to the GraphQL Float.
func money(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}
