package domain

// Outbox event payloads published to the payment event stream.

type PaymentCreated struct {
	OrderID     string
	AmountCents int64
	Currency    string
	Context     PaymentContext
}

type PaymentCaptured struct {
	OrderID    string
	PayerEmail string
}

type PaymentStatusChanged struct {
	OrderID string
	Status  Status
	Trigger string
}
