// Package store persists issued invoices as single documents.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/iliamunaev/invoice-emission/internal/model"
)

// ErrNotFound is returned when no invoice has the requested id.
var ErrNotFound = errors.New("invoice not found")

// Record is one stored invoice document.
type Record struct {
	Invoice   model.IssuedInvoice
	Customer  model.Customer
	LineItems []model.LineItem
	CreatedAt time.Time
}

// Store defines the contract for persisting and retrieving invoice documents.
type Store interface {
	// Save writes rec and returns its new document id.
	Save(ctx context.Context, rec Record) (string, error)
	// Get returns the document with the given id, or ErrNotFound.
	Get(ctx context.Context, id string) (Record, error)
}
