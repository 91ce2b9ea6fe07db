// Package model defines the request, domain and response payloads used by
// the invoice emission flow. It keeps transport-level types in one place for reuse.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ProductKey is the fiscal product classification sent for every line item.
const ProductKey = "01010101"

// InvoiceRequest is the input payload for issuing an invoice.
type InvoiceRequest struct {
	LegalName   string     `json:"legal_name"`
	TaxID       string     `json:"tax_id"`
	Email       string     `json:"email"`
	PhoneNumber string     `json:"phone_number"`
	LineItems   []LineItem `json:"line_items"`
}

// LineItem is a product entry as submitted by the caller.
// A zero value in any field means the field is missing.
type LineItem struct {
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
}

// Subtotal returns UnitPrice × Quantity.
func (li LineItem) Subtotal() decimal.Decimal {
	return li.UnitPrice.Mul(decimal.NewFromInt(int64(li.Quantity)))
}

// Address is the postal address the invoicing provider requires.
type Address struct {
	Zip          string `json:"zip"`
	Street       string `json:"street"`
	Exterior     string `json:"exterior"`
	Interior     string `json:"interior"`
	Neighborhood string `json:"neighborhood"`
	City         string `json:"city"`
	Municipality string `json:"municipality"`
	State        string `json:"state"`
	Country      string `json:"country"`
}

// PlaceholderAddress is used for every customer; real address data is not collected.
func PlaceholderAddress() Address {
	return Address{
		Zip:          "00000",
		Street:       "Calle Principal",
		Exterior:     "123",
		Neighborhood: "Centro",
		City:         "Ciudad",
		Municipality: "Municipio",
		State:        "Estado",
		Country:      "MEX",
	}
}

// Customer is the receiver of the invoice as sent to the provider.
type Customer struct {
	LegalName string  `json:"legal_name"`
	TaxID     string  `json:"tax_id"`
	Email     string  `json:"email"`
	Address   Address `json:"address"`
}

// ServiceLineItem is the line item shape expected by the invoicing provider.
type ServiceLineItem struct {
	Description string          `json:"description"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Quantity    int             `json:"quantity"`
	ProductKey  string          `json:"product_key"`
	UniqueKey   string          `json:"unique_key"`
}

// Subtotal returns UnitPrice × Quantity.
func (si ServiceLineItem) Subtotal() decimal.Decimal {
	return si.UnitPrice.Mul(decimal.NewFromInt(int64(si.Quantity)))
}

// IssuedInvoice is the provider's invoice after it has been stored.
// ID is the stored document id, ProviderID the provider's own id.
type IssuedInvoice struct {
	ID         string          `json:"id"`
	ProviderID string          `json:"provider_id"`
	Folio      string          `json:"folio"`
	IssuedAt   time.Time       `json:"issued_at"`
	Total      decimal.Decimal `json:"total"`
	PDFURL     string          `json:"pdf_url"`
	XMLURL     string          `json:"xml_url"`
}

// CustomerSummary is the customer block returned to the caller.
type CustomerSummary struct {
	Name  string `json:"name"`
	TaxID string `json:"tax_id"`
	Email string `json:"email"`
}

// ResultLineItem is a line item with its computed subtotal.
type ResultLineItem struct {
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

// InvoiceResult is the output payload of a successful emission.
type InvoiceResult struct {
	ID        string           `json:"id"`
	Customer  CustomerSummary  `json:"customer"`
	LineItems []ResultLineItem `json:"line_items"`
	Total     decimal.Decimal  `json:"total"`
	PDFURL    string           `json:"pdf_url"`
	XMLURL    string           `json:"xml_url"`
	Folio     string           `json:"folio"`
	Summary   string           `json:"summary"`
	Steps     []StepResult     `json:"steps,omitempty"`
}

// Money formats d for display as "$0.00".
func Money(d decimal.Decimal) string {
	return "$" + d.StringFixed(2)
}
