package invoice

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/iliamunaev/invoice-emission/internal/model"
)

// FallbackSummary is used whenever the AI summary is unavailable.
func FallbackSummary(legalName string, total decimal.Decimal) string {
	return fmt.Sprintf("Invoice generated for %s. Total: %s MXN", legalName, model.Money(total))
}

// ItemsLine renders "2 x Widget ($100.00), 1 x Bolt ($0.10)".
func ItemsLine(items []model.LineItem) string {
	parts := make([]string, 0, len(items))
	for _, it := range items {
		parts = append(parts, fmt.Sprintf("%d x %s (%s)", it.Quantity, it.Name, model.Money(it.UnitPrice)))
	}
	return strings.Join(parts, ", ")
}

// WhatsAppMessage is the WhatsApp notification text.
func WhatsAppMessage(legalName string, items []model.LineItem, total decimal.Decimal) string {
	return fmt.Sprintf("Hello %s! We generated your invoice for: %s. Total: %s MXN. Thank you for your purchase!",
		legalName, ItemsLine(items), model.Money(total))
}

// SMSMessage is the SMS notification text.
func SMSMessage(legalName string, items []model.LineItem, total decimal.Decimal) string {
	return fmt.Sprintf("%s, you purchased: %s. Total: %s.", legalName, ItemsLine(items), model.Money(total))
}

func emailSubject(folio, legalName string) string {
	return fmt.Sprintf("Invoice %s - %s", folio, legalName)
}

func emailBody(legalName string) string {
	return fmt.Sprintf("Dear %s, please find your fiscal invoice attached.", legalName)
}
