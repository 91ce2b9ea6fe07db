// Package apperr classifies the errors produced while issuing an invoice.
//
// Every domain error carries a Kind. Only validation, invoice creation and
// render failures are surfaced to callers; the remaining kinds are recovered
// by the step that produced them.
package apperr

import (
	"context"
	"errors"
)

// Error kinds.
const (
	KindValidation           = "validation"
	KindInvoiceCreation      = "invoice_creation"
	KindRender               = "render"
	KindSummaryUnavailable   = "summary_unavailable"
	KindNotificationDelivery = "notification_delivery"
	KindTimeout              = "timeout"
	KindCanceled             = "canceled"
	KindInternal             = "internal"
)

// kinder is satisfied by domain errors that carry a classification kind.
type kinder interface {
	Kind() string
}

// ValidationError reports malformed input. Its message is shown to the caller as is.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }
func (e *ValidationError) Kind() string  { return KindValidation }

// Validation returns a ValidationError with the given message.
func Validation(msg string) error {
	return &ValidationError{Message: msg}
}

type kindError struct {
	kind string
	msg  string
}

func (e kindError) Error() string { return e.msg }
func (e kindError) Kind() string  { return e.kind }

var (
	// ErrInvoiceCreation is wrapped by failures of the invoicing provider or the invoice store.
	ErrInvoiceCreation = kindError{kind: KindInvoiceCreation, msg: "invoice creation failed"}
	// ErrRender is wrapped by failures to lay out or write the local PDF.
	ErrRender = kindError{kind: KindRender, msg: "pdf render failed"}
	// ErrSummaryUnavailable is wrapped when the AI summary could not be produced.
	ErrSummaryUnavailable = kindError{kind: KindSummaryUnavailable, msg: "summary unavailable"}
	// ErrNotificationDelivery is wrapped by email, SMS, WhatsApp and archive failures.
	ErrNotificationDelivery = kindError{kind: KindNotificationDelivery, msg: "notification delivery failed"}
)

// Wrap annotates cause with a kind sentinel so that errors.Is(err, kind)
// holds and the cause stays reachable through errors.Unwrap.
func Wrap(kind error, cause error) error {
	if cause == nil {
		return nil
	}
	return &wrapped{kind: kind, cause: cause}
}

type wrapped struct {
	kind  error
	cause error
}

func (w *wrapped) Error() string   { return w.kind.Error() + ": " + w.cause.Error() }
func (w *wrapped) Unwrap() []error { return []error{w.kind, w.cause} }

// Kind returns the classification of err.
func Kind(err error) string {
	if err == nil {
		return ""
	}
	var k kinder
	if errors.As(err, &k) {
		return k.Kind()
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, context.Canceled):
		return KindCanceled
	default:
		return KindInternal
	}
}

// Message returns the caller-facing message for err. Validation errors keep
// their own text; every other kind maps to a fixed message so that causes
// such as driver or provider errors stay in the logs.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Message
	}
	switch Kind(err) {
	case KindInvoiceCreation:
		return "the invoice could not be issued"
	case KindRender:
		return "the invoice PDF could not be generated"
	case KindTimeout:
		return "the request timed out"
	case KindCanceled:
		return "the request was canceled"
	default:
		return "internal error"
	}
}
