package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/uniquemotors/payments-service/internal/payments/domain"
)

var ErrInvalidAmount = errors.New("invalid amount")

// Service is the reconciliation engine. It owns the payment lifecycle:
// order creation, capture with the webhook convergence wait, and webhook
// application. The store is the only shared state; the waiter is an
// in-process shortcut, not a correctness requirement.
type Service struct {
	log      *slog.Logger
	repo     PaymentRepository
	gateway  Gateway
	notifier Notifier
	waiter   *Waiter

	// WaitBudget bounds the post-capture wait for the webhook;
	// WaitThreshold is how much later than the capture write an update
	// must be to count as the webhook having landed.
	WaitBudget    time.Duration
	WaitThreshold time.Duration
}

func NewService(log *slog.Logger, repo PaymentRepository, gateway Gateway, notifier Notifier, waiter *Waiter) *Service {
	return &Service{
		log:           log,
		repo:          repo,
		gateway:       gateway,
		notifier:      notifier,
		waiter:        waiter,
		WaitBudget:    30 * time.Second,
		WaitThreshold: time.Second,
	}
}

type CreateOrderInput struct {
	AmountCents        int64
	Currency           string
	Context            domain.PaymentContext
	RelatedEntityID    string
	RelatedEntityLabel string
}

// CreateOrder validates the amount, creates the order at the gateway and
// records it with status CREATED. A failed insert is logged, not
// surfaced: the checkout must not break over an audit write.
func (s *Service) CreateOrder(ctx context.Context, in CreateOrderInput, traceparent string) (string, error) {
	if in.AmountCents <= 0 {
		return "", ErrInvalidAmount
	}
	if in.Currency == "" {
		in.Currency = domain.DefaultCurrency
	}
	if in.Context == "" {
		in.Context = domain.ContextGuarantee
	}

	now := time.Now().UTC()
	p := domain.Payment{
		Status:             domain.StatusCreated,
		AmountCents:        in.AmountCents,
		Currency:           in.Currency,
		Context:            in.Context,
		RelatedEntityID:    in.RelatedEntityID,
		RelatedEntityLabel: in.RelatedEntityLabel,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	description, customID := p.Description()

	ref, err := s.gateway.CreateOrder(ctx, in.AmountCents, in.Currency, description, customID)
	if err != nil {
		return "", fmt.Errorf("create order: %w", err)
	}
	p.PayPalOrderID = ref.OrderID
	p.RawPayload = ref.Raw

	payload, _ := json.Marshal(domain.PaymentCreated{
		OrderID:     ref.OrderID,
		AmountCents: in.AmountCents,
		Currency:    in.Currency,
		Context:     in.Context,
	})
	if err := s.repo.CreateWithOutbox(ctx, p, "payment.created", payload, traceparent); err != nil {
		s.log.Error("payment insert failed after gateway create", "order_id", ref.OrderID, "err", err)
	} else {
		s.log.Info("payment created", "order_id", ref.OrderID, "amount_cents", in.AmountCents, "currency", in.Currency)
	}
	return ref.OrderID, nil
}

type CaptureResult struct {
	Order           json.RawMessage
	Record          domain.Payment
	EmailSent       bool
	WebhookReceived bool
	WaitTime        time.Duration
}

// CaptureOrder captures the order at the gateway, writes the COMPLETED
// transition, waits (bounded) for the matching webhook, attempts the
// notification and returns the freshest record it can read.
func (s *Service) CaptureOrder(ctx context.Context, orderID, traceparent string) (CaptureResult, error) {
	notify, release := s.waiter.Register(orderID)
	defer release()

	cap, err := s.gateway.CaptureOrder(ctx, orderID)
	if err != nil {
		return CaptureResult{}, fmt.Errorf("capture order %s: %w", orderID, err)
	}

	payload, _ := json.Marshal(domain.PaymentCaptured{OrderID: orderID, PayerEmail: cap.Payer.Email})
	rec, err := s.repo.ApplyCaptureWithOutbox(ctx, orderID, cap.Payer, cap.Raw, "payment.completed", payload, traceparent)
	if err != nil {
		s.log.Error("capture persist failed", "order_id", orderID, "err", err)
		now := time.Now().UTC()
		rec = domain.Payment{
			PayPalOrderID: orderID,
			Status:        domain.StatusCompleted,
			Currency:      domain.DefaultCurrency,
			Payer:         cap.Payer,
			RawPayload:    cap.Raw,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
	}
	baseline := rec.UpdatedAt

	received := false
	start := time.Now()
	select {
	case <-notify:
		received = true
	case <-time.After(s.WaitBudget):
	case <-ctx.Done():
	}
	waited := time.Since(start)

	final, err := s.repo.Get(ctx, orderID)
	if err != nil {
		final = rec
	}
	// Covers a webhook that committed before the wait started observing.
	if !received && final.UpdatedAt.Sub(baseline) > s.WaitThreshold {
		received = true
	}
	if received {
		s.log.Info("webhook converged after capture", "order_id", orderID, "status", final.Status, "wait", waited)
	} else {
		s.log.Warn("webhook not received within wait budget", "order_id", orderID, "wait", waited)
	}

	emailSent := s.sendNotification(ctx, orderID, final)

	return CaptureResult{
		Order:           cap.Raw,
		Record:          final,
		EmailSent:       emailSent,
		WebhookReceived: received,
		WaitTime:        waited.Round(time.Second),
	}, nil
}

func (s *Service) sendNotification(ctx context.Context, orderID string, p domain.Payment) bool {
	if err := s.notifier.PaymentReceived(ctx, p); err != nil {
		s.log.Error("payment notification failed", "order_id", orderID, "err", err)
		if mErr := s.repo.MarkNotification(ctx, orderID, false, err.Error()); mErr != nil {
			s.log.Error("notification flag update failed", "order_id", orderID, "err", mErr)
		}
		return false
	}
	if err := s.repo.MarkNotification(ctx, orderID, true, ""); err != nil {
		s.log.Error("notification flag update failed", "order_id", orderID, "err", err)
	}
	return true
}

// ApplyWebhookEvent reconciles one inbound gateway event. It never fails
// upward: webhook deliveries are always acknowledged, so every problem
// ends here as a log line.
func (s *Service) ApplyWebhookEvent(ctx context.Context, body []byte, traceparent string) {
	ev, err := domain.ParseWebhookEvent(body)
	if err != nil {
		s.log.Error("webhook parse failed", "err", err)
		return
	}

	orderID := ev.OrderID()
	if orderID == "" {
		s.log.Warn("webhook without derivable order id", "event_type", ev.EventType)
		return
	}

	et := domain.ParseEventType(ev.EventType)
	status, changed := et.NextStatus()
	if et == domain.EventUnknown {
		s.log.Info("unrecognized webhook event, storing payload only", "event_type", ev.EventType, "order_id", orderID)
	}

	var eventType string
	var payload []byte
	if changed {
		eventType = "payment." + strings.ToLower(string(status))
		payload, _ = json.Marshal(domain.PaymentStatusChanged{OrderID: orderID, Status: status, Trigger: ev.EventType})
	}

	if _, err := s.repo.ApplyWebhookWithOutbox(ctx, orderID, status, changed, ev.Raw, eventType, payload, traceparent); err != nil {
		if errors.Is(err, ErrNotFound) {
			s.log.Warn("webhook for unknown payment", "order_id", orderID, "event_type", ev.EventType)
		} else {
			s.log.Error("webhook persist failed", "order_id", orderID, "event_type", ev.EventType, "err", err)
		}
		return
	}

	s.log.Info("webhook applied", "order_id", orderID, "event_type", ev.EventType, "status_changed", changed)
	s.waiter.Notify(orderID)
}
