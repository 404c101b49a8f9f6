package smtp

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"

	"github.com/uniquemotors/payments-service/internal/payments/domain"
)

type Config struct {
	Host      string
	Port      string
	Username  string
	Password  string
	AdminAddr string
	Enabled   bool
}

// Sender emails a payment confirmation to the payer and an alert to the
// operator address. When disabled it reports success so the recorded
// notification flags match a deployment where mail delivery works.
type Sender struct {
	log *slog.Logger
	cfg Config
}

func NewSender(log *slog.Logger, cfg Config) *Sender {
	return &Sender{log: log, cfg: cfg}
}

func (s *Sender) PaymentReceived(ctx context.Context, p domain.Payment) error {
	if !s.cfg.Enabled {
		s.log.Info("email disabled, skipping notification", "order_id", p.PayPalOrderID)
		return nil
	}

	body := buildBody(p)
	amount := fmt.Sprintf("$%.2f %s", float64(p.AmountCents)/100, p.Currency)

	if p.Payer.Email != "" {
		if err := s.send(p.Payer.Email, "Confirmación de Pago - UniqueMotors", body); err != nil {
			return fmt.Errorf("payer email: %w", err)
		}
	}
	if s.cfg.AdminAddr != "" {
		if err := s.send(s.cfg.AdminAddr, "Nuevo Pago Recibido - "+amount, body); err != nil {
			return fmt.Errorf("admin email: %w", err)
		}
	}
	return nil
}

func (s *Sender) send(to, subject, body string) error {
	addr := s.cfg.Host + ":" + s.cfg.Port
	auth := smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)

	msg := []byte(
		"From: UniqueMotors <" + s.cfg.Username + ">\r\n" +
			"To: " + to + "\r\n" +
			"Subject: " + subject + "\r\n" +
			"MIME-Version: 1.0\r\n" +
			"Content-Type: text/html; charset=UTF-8\r\n" +
			"\r\n" +
			body,
	)
	if err := smtp.SendMail(addr, auth, s.cfg.Username, []string{to}, msg); err != nil {
		return fmt.Errorf("smtp send failed: %w", err)
	}
	return nil
}

func buildBody(p domain.Payment) string {
	context := "Depósito de Garantía"
	if p.Context == domain.ContextAdjudication {
		context = "Adjudicación"
	}

	var b strings.Builder
	b.WriteString("<html><body>")
	b.WriteString("<h1>Pago Recibido - UniqueMotors</h1>")
	b.WriteString("<h2>Detalles del Pago</h2>")
	fmt.Fprintf(&b, "<p><strong>Order ID:</strong> %s</p>", p.PayPalOrderID)
	fmt.Fprintf(&b, "<p><strong>Monto:</strong> $%.2f %s</p>", float64(p.AmountCents)/100, p.Currency)
	fmt.Fprintf(&b, "<p><strong>Contexto:</strong> %s</p>", context)
	if p.RelatedEntityID != "" {
		fmt.Fprintf(&b, "<p><strong>Torre:</strong> %s</p>", p.RelatedEntityID)
	}
	if p.RelatedEntityLabel != "" {
		fmt.Fprintf(&b, "<p><strong>Artículo:</strong> %s</p>", p.RelatedEntityLabel)
	}
	fmt.Fprintf(&b, "<p><strong>Pagador:</strong> %s</p>", orNA(p.Payer.Name))
	fmt.Fprintf(&b, "<p><strong>Email:</strong> %s</p>", orNA(p.Payer.Email))
	b.WriteString("<p>Este es un mensaje automático de UniqueMotors. No responder a este correo.</p>")
	b.WriteString("</body></html>")
	return b.String()
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
