package paypal

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/plutov/paypal/v4"
	"github.com/uniquemotors/payments-service/internal/payments/domain"
)

const (
	brandName = "UniqueMotors"
	locale    = "es-MX"
)

// Gateway adapts the PayPal Orders v2 API to the engine's gateway port.
type Gateway struct {
	log    *slog.Logger
	client *paypal.Client
}

// New authenticates against the sandbox unless env is "live".
func New(ctx context.Context, log *slog.Logger, clientID, secret, env string) (*Gateway, error) {
	base := paypal.APIBaseSandBox
	if env == "live" {
		base = paypal.APIBaseLive
	}

	client, err := paypal.NewClient(clientID, secret, base)
	if err != nil {
		return nil, err
	}
	if _, err := client.GetAccessToken(ctx); err != nil {
		return nil, fmt.Errorf("paypal access token: %w", err)
	}

	log.Info("paypal client initialized", "env", env)
	return &Gateway{log: log, client: client}, nil
}

func (g *Gateway) CreateOrder(ctx context.Context, amountCents int64, currency, description, customID string) (domain.OrderRef, error) {
	unit := paypal.PurchaseUnitRequest{
		Amount: &paypal.PurchaseUnitAmount{
			Currency: strings.ToUpper(currency),
			Value:    centsValue(amountCents),
		},
		Description: description,
	}
	if customID != "" {
		unit.CustomID = customID
	}

	appContext := &paypal.ApplicationContext{
		BrandName:  brandName,
		Locale:     locale,
		UserAction: paypal.UserActionPayNow,
	}

	order, err := g.client.CreateOrder(ctx, "CAPTURE", []paypal.PurchaseUnitRequest{unit}, nil, appContext)
	if err != nil {
		return domain.OrderRef{}, fmt.Errorf("paypal create order: %w", err)
	}

	raw, err := json.Marshal(order)
	if err != nil {
		return domain.OrderRef{}, err
	}
	return domain.OrderRef{OrderID: order.ID, Raw: raw}, nil
}

func (g *Gateway) CaptureOrder(ctx context.Context, orderID string) (domain.Capture, error) {
	res, err := g.client.CaptureOrder(ctx, orderID, paypal.CaptureOrderRequest{})
	if err != nil {
		return domain.Capture{}, fmt.Errorf("paypal capture order: %w", err)
	}

	var payer domain.Payer
	if res.Payer != nil {
		payer.Email = res.Payer.EmailAddress
		payer.ID = res.Payer.PayerID
		if res.Payer.Name != nil {
			payer.Name = strings.TrimSpace(res.Payer.Name.GivenName + " " + res.Payer.Name.Surname)
		}
	}

	raw, err := json.Marshal(res)
	if err != nil {
		return domain.Capture{}, err
	}
	return domain.Capture{
		OrderID: res.ID,
		Status:  string(res.Status),
		Payer:   payer,
		Raw:     raw,
	}, nil
}

func centsValue(cents int64) string {
	return fmt.Sprintf("%.2f", float64(cents)/100)
}
