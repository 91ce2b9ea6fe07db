// Package facturapi is a client for a Facturapi-compatible fiscal invoicing API.
//
// Only invoice creation is implemented. The provider computes taxes and
// totals and keeps the fiscal PDF and XML, which are exposed as download URLs.
package facturapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliamunaev/invoice-emission/internal/model"
)

const (
	// DefaultBaseURL is the production API root.
	DefaultBaseURL = "https://www.facturapi.io/v2"

	defaultTimeout = 30 * time.Second

	paymentForm = "03"  // electronic transfer
	cfdiUse     = "G03" // general expenses
	taxSystem   = "601"
)

// Client creates invoices through the provider API.
type Client struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// New returns a Client. An empty baseURL selects DefaultBaseURL; a
// non-positive timeout selects 30s.
func New(apiKey, baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

type customerPayload struct {
	LegalName string        `json:"legal_name"`
	TaxID     string        `json:"tax_id"`
	TaxSystem string        `json:"tax_system"`
	Email     string        `json:"email"`
	Address   model.Address `json:"address"`
}

type productPayload struct {
	Description string  `json:"description"`
	ProductKey  string  `json:"product_key"`
	Price       float64 `json:"price"`
	SKU         string  `json:"sku,omitempty"`
}

type itemPayload struct {
	Quantity int            `json:"quantity"`
	Product  productPayload `json:"product"`
}

type createRequest struct {
	Customer    customerPayload `json:"customer"`
	Items       []itemPayload   `json:"items"`
	PaymentForm string          `json:"payment_form"`
	Use         string          `json:"use"`
}

type createResponse struct {
	ID          string          `json:"id"`
	Series      string          `json:"series"`
	FolioNumber int64           `json:"folio_number"`
	Date        time.Time       `json:"date"`
	Total       decimal.Decimal `json:"total"`
}

type apiError struct {
	Message string `json:"message"`
}

// CreateInvoice issues an invoice for customer with items. The returned
// invoice has ProviderID set and ID empty.
func (c *Client) CreateInvoice(ctx context.Context, customer model.Customer, items []model.ServiceLineItem) (model.IssuedInvoice, error) {
	if c.apiKey == "" {
		return model.IssuedInvoice{}, fmt.Errorf("facturapi: api key not set")
	}

	body := createRequest{
		Customer: customerPayload{
			LegalName: customer.LegalName,
			TaxID:     customer.TaxID,
			TaxSystem: taxSystem,
			Email:     customer.Email,
			Address:   customer.Address,
		},
		Items:       make([]itemPayload, 0, len(items)),
		PaymentForm: paymentForm,
		Use:         cfdiUse,
	}
	for _, it := range items {
		body.Items = append(body.Items, itemPayload{
			Quantity: it.Quantity,
			Product: productPayload{
				Description: it.Description,
				ProductKey:  it.ProductKey,
				Price:       it.UnitPrice.InexactFloat64(),
				SKU:         it.UniqueKey,
			},
		})
	}

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return model.IssuedInvoice{}, fmt.Errorf("facturapi: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/invoices", bytes.NewReader(jsonBody))
	if err != nil {
		return model.IssuedInvoice{}, fmt.Errorf("facturapi: create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return model.IssuedInvoice{}, fmt.Errorf("facturapi: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return model.IssuedInvoice{}, decodeError(resp)
	}

	var out createResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return model.IssuedInvoice{}, fmt.Errorf("facturapi: decode response: %w", err)
	}
	if out.ID == "" {
		return model.IssuedInvoice{}, fmt.Errorf("facturapi: response without invoice id")
	}

	return model.IssuedInvoice{
		ProviderID: out.ID,
		Folio:      folio(out.Series, out.FolioNumber),
		IssuedAt:   out.Date,
		Total:      out.Total,
		PDFURL:     c.baseURL + "/invoices/" + out.ID + "/pdf",
		XMLURL:     c.baseURL + "/invoices/" + out.ID + "/xml",
	}, nil
}

func folio(series string, number int64) string {
	n := strconv.FormatInt(number, 10)
	if series == "" {
		return n
	}
	return series + "-" + n
}

func decodeError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var e apiError
	if json.Unmarshal(data, &e) == nil && e.Message != "" {
		return fmt.Errorf("facturapi: status %d: %s", resp.StatusCode, e.Message)
	}
	return fmt.Errorf("facturapi: status %d", resp.StatusCode)
}
