package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/uniquemotors/payments-service/internal/payments/application"
	"github.com/uniquemotors/payments-service/internal/payments/domain"
	"github.com/uniquemotors/payments-service/pkg/tracing"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// Deduper is the webhook delivery dedup contract; nil disables dedup.
type Deduper interface {
	Key(eventID string) string
	Seen(ctx context.Context, key string) (bool, error)
}

type Handler struct {
	log     *slog.Logger
	service *application.Service
	dedup   Deduper
	tracer  trace.Tracer
}

func NewHandler(log *slog.Logger, service *application.Service, dedup Deduper) *Handler {
	return &Handler{
		log:     log,
		service: service,
		dedup:   dedup,
		tracer:  otel.Tracer("payments-http"),
	}
}

func (h *Handler) Routes(allowedOrigins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
	}))

	r.Get("/", h.info)
	r.Post("/api/orders", h.createOrder)
	r.Post("/api/orders/{orderID:[A-Z0-9]+}/capture", h.captureOrder)
	r.Post("/api/webhook", h.webhook)

	return r
}

type createOrderReq struct {
	Amount             float64 `json:"amount"`
	Currency           string  `json:"currency"`
	PaymentContext     string  `json:"paymentContext"`
	RelatedEntityID    string  `json:"relatedEntityId"`
	RelatedEntityLabel string  `json:"relatedEntityLabel"`
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "CreateOrder")
	defer span.End()

	var req createOrderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid body"))
		return
	}

	in := application.CreateOrderInput{
		AmountCents:        toCents(req.Amount),
		Currency:           req.Currency,
		Context:            domain.PaymentContext(req.PaymentContext),
		RelatedEntityID:    req.RelatedEntityID,
		RelatedEntityLabel: req.RelatedEntityLabel,
	}

	orderID, err := h.service.CreateOrder(ctx, in, h.traceparent(ctx, r))
	if errors.Is(err, application.ErrInvalidAmount) {
		writeJSON(w, http.StatusBadRequest, errorBody("Monto inválido"))
		return
	}
	if err != nil {
		h.log.Error("create order failed", "err", err)
		writeJSON(w, http.StatusInternalServerError, errorBody(err.Error()))
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"id": orderID})
}

type captureResponse struct {
	Success         bool            `json:"success"`
	Order           json.RawMessage `json:"order"`
	PaymentRecord   paymentJSON     `json:"paymentRecord"`
	EmailSent       bool            `json:"emailSent"`
	WebhookReceived bool            `json:"webhookReceived"`
	WaitTime        string          `json:"waitTime"`
}

func (h *Handler) captureOrder(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "CaptureOrder")
	defer span.End()

	orderID := chi.URLParam(r, "orderID")

	res, err := h.service.CaptureOrder(ctx, orderID, h.traceparent(ctx, r))
	if err != nil {
		h.log.Error("capture failed", "order_id", orderID, "err", err)
		writeJSON(w, http.StatusInternalServerError, errorBody(err.Error()))
		return
	}

	writeJSON(w, http.StatusOK, captureResponse{
		Success:         true,
		Order:           res.Order,
		PaymentRecord:   toPaymentJSON(res.Record),
		EmailSent:       res.EmailSent,
		WebhookReceived: res.WebhookReceived,
		WaitTime:        fmt.Sprintf("%d segundos", int(res.WaitTime/time.Second)),
	})
}

// webhook always acknowledges with 200 so PayPal's retry policy is not
// triggered by reconciliation problems on our side.
func (h *Handler) webhook(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "ApplyWebhookEvent")
	defer span.End()

	defer w.WriteHeader(http.StatusOK)

	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.log.Error("webhook body read failed", "err", err)
		return
	}

	if h.dedup != nil {
		var envelope struct {
			ID string `json:"id"`
		}
		if json.Unmarshal(body, &envelope) == nil && envelope.ID != "" {
			seen, err := h.dedup.Seen(ctx, h.dedup.Key(envelope.ID))
			if err != nil {
				h.log.Error("webhook dedup check failed", "err", err)
			} else if seen {
				h.log.Info("duplicate webhook delivery skipped", "event_id", envelope.ID)
				return
			}
		}
	}

	h.service.ApplyWebhookEvent(ctx, body, h.traceparent(ctx, r))
}

func (h *Handler) info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "payments-service",
		"endpoints": map[string]string{
			"createOrder":  "POST /api/orders",
			"captureOrder": "POST /api/orders/{orderID}/capture",
			"webhook":      "POST /api/webhook",
		},
	})
}

func (h *Handler) traceparent(ctx context.Context, r *http.Request) string {
	if tp := r.Header.Get(tracing.TraceparentHeader); tp != "" {
		return tp
	}
	return tracing.Traceparent(ctx)
}

type paymentJSON struct {
	ID                 int64     `json:"id"`
	PayPalOrderID      string    `json:"paypalOrderId"`
	Status             string    `json:"status"`
	Amount             float64   `json:"amount"`
	Currency           string    `json:"currency"`
	PaymentContext     string    `json:"paymentContext"`
	RelatedEntityID    string    `json:"relatedEntityId,omitempty"`
	RelatedEntityLabel string    `json:"relatedEntityLabel,omitempty"`
	PayerEmail         string    `json:"payerEmail,omitempty"`
	PayerName          string    `json:"payerName,omitempty"`
	PayerID            string    `json:"payerId,omitempty"`
	NotificationSent   bool      `json:"notificationSent"`
	NotificationError  string    `json:"notificationError,omitempty"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

func toPaymentJSON(p domain.Payment) paymentJSON {
	return paymentJSON{
		ID:                 p.ID,
		PayPalOrderID:      p.PayPalOrderID,
		Status:             string(p.Status),
		Amount:             float64(p.AmountCents) / 100,
		Currency:           p.Currency,
		PaymentContext:     string(p.Context),
		RelatedEntityID:    p.RelatedEntityID,
		RelatedEntityLabel: p.RelatedEntityLabel,
		PayerEmail:         p.Payer.Email,
		PayerName:          p.Payer.Name,
		PayerID:            p.Payer.ID,
		NotificationSent:   p.NotificationSent,
		NotificationError:  p.NotificationError,
		CreatedAt:          p.CreatedAt,
		UpdatedAt:          p.UpdatedAt,
	}
}

func toCents(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

func errorBody(msg string) map[string]string {
	return map[string]string{"error": msg}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
