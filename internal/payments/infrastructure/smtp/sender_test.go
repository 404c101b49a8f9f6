package smtp

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uniquemotors/payments-service/internal/payments/domain"
)

func TestDisabledSenderReportsSuccess(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := NewSender(log, Config{Enabled: false})

	err := s.PaymentReceived(context.Background(), domain.Payment{PayPalOrderID: "ORDER1"})
	require.NoError(t, err)
}

func TestBuildBodyGuarantee(t *testing.T) {
	body := buildBody(domain.Payment{
		PayPalOrderID: "ORDER1",
		AmountCents:   10050,
		Currency:      "MXN",
		Context:       domain.ContextGuarantee,
		Payer:         domain.Payer{Name: "Ana Pérez", Email: "a@b.com"},
	})

	assert.Contains(t, body, "Depósito de Garantía")
	assert.Contains(t, body, "$100.50 MXN")
	assert.Contains(t, body, "ORDER1")
	assert.Contains(t, body, "Ana Pérez")
	assert.NotContains(t, body, "Torre:")
}

func TestBuildBodyAdjudicationWithTower(t *testing.T) {
	body := buildBody(domain.Payment{
		PayPalOrderID:      "ORDER1",
		AmountCents:        250000,
		Currency:           "MXN",
		Context:            domain.ContextAdjudication,
		RelatedEntityID:    "12",
		RelatedEntityLabel: "Camioneta",
	})

	assert.Contains(t, body, "Adjudicación")
	assert.Contains(t, body, "<strong>Torre:</strong> 12")
	assert.Contains(t, body, "<strong>Artículo:</strong> Camioneta")
	assert.Contains(t, body, "N/A")
}
