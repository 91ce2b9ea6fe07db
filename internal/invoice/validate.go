package invoice

import (
	"fmt"
	"strings"

	"github.com/iliamunaev/invoice-emission/internal/apperr"
	"github.com/iliamunaev/invoice-emission/internal/model"
)

// Validate checks req before any external call is made.
// Blank strings, zero or negative prices and quantities count as missing.
func Validate(req model.InvoiceRequest) error {
	if blank(req.LegalName) || blank(req.TaxID) || blank(req.Email) || blank(req.PhoneNumber) {
		return apperr.Validation("missing required fields")
	}
	if len(req.LineItems) == 0 {
		return apperr.Validation("at least one product required")
	}
	for i, li := range req.LineItems {
		if blank(li.Name) || !li.UnitPrice.IsPositive() || li.Quantity <= 0 {
			return apperr.Validation(fmt.Sprintf("incomplete product at position %d", i+1))
		}
	}
	return nil
}

func blank(s string) bool { return strings.TrimSpace(s) == "" }
