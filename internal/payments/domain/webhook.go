package domain

import (
	"encoding/json"
	"strings"
)

// EventType is the closed set of PayPal webhook event types the engine
// reacts to. Anything else parses as EventUnknown: the payload is still
// stored but the status is left alone.
type EventType int

const (
	EventUnknown EventType = iota
	EventCaptureCompleted
	EventCaptureDenied
	EventCaptureRefunded
	EventOrderApproved
	EventOrderCompleted
)

func ParseEventType(s string) EventType {
	switch s {
	case "PAYMENT.CAPTURE.COMPLETED":
		return EventCaptureCompleted
	case "PAYMENT.CAPTURE.DENIED":
		return EventCaptureDenied
	case "PAYMENT.CAPTURE.REFUNDED":
		return EventCaptureRefunded
	case "CHECKOUT.ORDER.APPROVED":
		return EventOrderApproved
	case "CHECKOUT.ORDER.COMPLETED":
		return EventOrderCompleted
	default:
		return EventUnknown
	}
}

func (t EventType) String() string {
	switch t {
	case EventCaptureCompleted:
		return "PAYMENT.CAPTURE.COMPLETED"
	case EventCaptureDenied:
		return "PAYMENT.CAPTURE.DENIED"
	case EventCaptureRefunded:
		return "PAYMENT.CAPTURE.REFUNDED"
	case EventOrderApproved:
		return "CHECKOUT.ORDER.APPROVED"
	case EventOrderCompleted:
		return "CHECKOUT.ORDER.COMPLETED"
	default:
		return "UNKNOWN"
	}
}

// NextStatus returns the status a recognized event drives the payment to.
// The transition table does not depend on the current status.
func (t EventType) NextStatus() (Status, bool) {
	switch t {
	case EventCaptureCompleted, EventOrderCompleted:
		return StatusCompleted, true
	case EventCaptureDenied:
		return StatusFailed, true
	case EventCaptureRefunded:
		return StatusRefunded, true
	case EventOrderApproved:
		return StatusApproved, true
	case EventUnknown:
		return "", false
	default:
		return "", false
	}
}

// WebhookEvent is the inbound PayPal event envelope. Raw keeps the full
// body for audit storage.
type WebhookEvent struct {
	ID        string `json:"id"`
	EventType string `json:"event_type"`
	Resource  struct {
		ID                string `json:"id"`
		SupplementaryData struct {
			RelatedIDs struct {
				OrderID string `json:"order_id"`
			} `json:"related_ids"`
		} `json:"supplementary_data"`
	} `json:"resource"`
	Raw []byte `json:"-"`
}

func ParseWebhookEvent(body []byte) (WebhookEvent, error) {
	var ev WebhookEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return WebhookEvent{}, err
	}
	ev.Raw = body
	return ev, nil
}

// OrderID derives the reconciliation key. Capture events reference the
// order through supplementary data; checkout events carry it as the
// resource id. Empty means the event cannot be tied to a payment.
func (e WebhookEvent) OrderID() string {
	if e.Resource.ID == "" {
		return ""
	}
	switch {
	case strings.Contains(e.EventType, "CAPTURE"):
		return e.Resource.SupplementaryData.RelatedIDs.OrderID
	case strings.Contains(e.EventType, "ORDER"):
		return e.Resource.ID
	default:
		return ""
	}
}
