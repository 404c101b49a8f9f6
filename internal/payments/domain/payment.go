package domain

import "time"

type Status string

const (
	StatusCreated   Status = "CREATED"
	StatusApproved  Status = "APPROVED"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
	StatusRefunded  Status = "REFUNDED"
)

type PaymentContext string

const (
	ContextGuarantee    PaymentContext = "guarantee"
	ContextAdjudication PaymentContext = "adjudicacion"
)

const DefaultCurrency = "MXN"

// Payer identity as reported by PayPal on capture.
type Payer struct {
	Email string
	Name  string
	ID    string
}

// Payment is the single persisted entity, keyed by PayPalOrderID.
// RawPayload holds the last gateway response or webhook body verbatim;
// it is overwritten on every gateway-originated update.
type Payment struct {
	ID                 int64
	PayPalOrderID      string
	Status             Status
	AmountCents        int64
	Currency           string
	Context            PaymentContext
	RelatedEntityID    string
	RelatedEntityLabel string
	Payer              Payer
	RawPayload         []byte
	NotificationSent   bool
	NotificationError  string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// OrderRef is the gateway's answer to a create call.
type OrderRef struct {
	OrderID string
	Raw     []byte
}

// Capture is the gateway's answer to a capture call.
type Capture struct {
	OrderID string
	Status  string
	Payer   Payer
	Raw     []byte
}

const brandName = "UniqueMotors"

// Description builds the purchase description shown to the payer. An
// adjudication payment tied to a tower gets a specific description and
// custom id; everything else is a guarantee deposit with no custom id.
func (p Payment) Description() (description, customID string) {
	if p.Context == ContextAdjudication && p.RelatedEntityID != "" {
		label := p.RelatedEntityLabel
		if label == "" {
			label = brandName
		}
		return "Pago Adjudicación Torre " + p.RelatedEntityID + " - " + label,
			"ADJ-" + p.RelatedEntityID
	}
	return "Depósito de garantía - " + brandName, ""
}
