package application

import (
	"context"
	"errors"

	"github.com/uniquemotors/payments-service/internal/payments/domain"
)

// ErrNotFound is returned by PaymentRepository when no payment exists for
// the given PayPal order id.
var ErrNotFound = errors.New("payment not found")

// PaymentRepository persists payment records keyed by PayPal order id.
// Every mutating call commits an outbox row in the same transaction when
// eventType is non-empty, and serializes concurrent writers on the row.
type PaymentRepository interface {
	CreateWithOutbox(ctx context.Context, p domain.Payment, eventType string, payload []byte, traceparent string) error
	Get(ctx context.Context, orderID string) (domain.Payment, error)
	// ApplyCaptureWithOutbox sets status COMPLETED, payer fields and the raw
	// capture payload. A missing record is created with zero amount and the
	// default currency rather than failing the capture.
	ApplyCaptureWithOutbox(ctx context.Context, orderID string, payer domain.Payer, raw []byte, eventType string, payload []byte, traceparent string) (domain.Payment, error)
	// ApplyWebhookWithOutbox overwrites the raw payload and, when hasStatus
	// is true, the status. Returns ErrNotFound for unknown payments.
	ApplyWebhookWithOutbox(ctx context.Context, orderID string, status domain.Status, hasStatus bool, raw []byte, eventType string, payload []byte, traceparent string) (domain.Payment, error)
	MarkNotification(ctx context.Context, orderID string, sent bool, errMsg string) error
}

// Gateway wraps the external payment processor's order-create and
// order-capture calls.
type Gateway interface {
	CreateOrder(ctx context.Context, amountCents int64, currency, description, customID string) (domain.OrderRef, error)
	CaptureOrder(ctx context.Context, orderID string) (domain.Capture, error)
}

// Notifier dispatches the post-capture confirmation messages. A disabled
// sink returns nil so the recorded outcome matches a successful send.
type Notifier interface {
	PaymentReceived(ctx context.Context, p domain.Payment) error
}
