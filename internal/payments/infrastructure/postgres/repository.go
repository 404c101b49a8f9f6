package postgres

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/uniquemotors/payments-service/internal/payments/application"
	"github.com/uniquemotors/payments-service/internal/payments/domain"
)

type Repository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool) *Repository {
	return &Repository{log: log, pool: pool}
}

const paymentColumns = `id, paypal_order_id, status, amount_cents, currency, payment_context,
	COALESCE(related_entity_id,''), COALESCE(related_entity_label,''),
	COALESCE(payer_email,''), COALESCE(payer_name,''), COALESCE(payer_id,''),
	COALESCE(raw_payload,'{}'), notification_sent, COALESCE(notification_error,''),
	created_at, updated_at`

func scanPayment(row pgx.Row) (domain.Payment, error) {
	var p domain.Payment
	err := row.Scan(
		&p.ID, &p.PayPalOrderID, &p.Status, &p.AmountCents, &p.Currency, &p.Context,
		&p.RelatedEntityID, &p.RelatedEntityLabel,
		&p.Payer.Email, &p.Payer.Name, &p.Payer.ID,
		&p.RawPayload, &p.NotificationSent, &p.NotificationError,
		&p.CreatedAt, &p.UpdatedAt,
	)
	return p, err
}

func (r *Repository) CreateWithOutbox(ctx context.Context, p domain.Payment, eventType string, payload []byte, traceparent string) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	_, err = tx.Exec(ctx, `INSERT INTO payments
		(paypal_order_id, status, amount_cents, currency, payment_context,
		 related_entity_id, related_entity_label, raw_payload, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,NULLIF($6,''),NULLIF($7,''),$8,$9,$10)`,
		p.PayPalOrderID, p.Status, p.AmountCents, p.Currency, p.Context,
		p.RelatedEntityID, p.RelatedEntityLabel, p.RawPayload, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return err
	}

	if eventType != "" {
		if err := insertOutbox(ctx, tx, p.PayPalOrderID, eventType, payload, traceparent); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (r *Repository) Get(ctx context.Context, orderID string) (domain.Payment, error) {
	p, err := scanPayment(r.pool.QueryRow(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE paypal_order_id=$1`, orderID))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Payment{}, application.ErrNotFound
	}
	if err != nil {
		return domain.Payment{}, err
	}
	return p, nil
}

// ApplyCaptureWithOutbox row-locks the payment, forces status COMPLETED and
// sets the payer fields. A capture for an order whose create insert never
// landed gets a fresh row with zero amount and the default currency.
func (r *Repository) ApplyCaptureWithOutbox(ctx context.Context, orderID string, payer domain.Payer, raw []byte, eventType string, payload []byte, traceparent string) (domain.Payment, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return domain.Payment{}, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	_, err = scanPayment(tx.QueryRow(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE paypal_order_id=$1 FOR UPDATE`, orderID))

	var row pgx.Row
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		now := time.Now().UTC()
		row = tx.QueryRow(ctx, `INSERT INTO payments
			(paypal_order_id, status, amount_cents, currency, payment_context,
			 payer_email, payer_name, payer_id, raw_payload, created_at, updated_at)
			VALUES ($1,$2,0,$3,$4,NULLIF($5,''),NULLIF($6,''),NULLIF($7,''),$8,$9,$9)
			RETURNING `+paymentColumns,
			orderID, domain.StatusCompleted, domain.DefaultCurrency, domain.ContextGuarantee,
			payer.Email, payer.Name, payer.ID, raw, now)
	case err != nil:
		return domain.Payment{}, err
	default:
		row = tx.QueryRow(ctx, `UPDATE payments
			SET status=$2, payer_email=NULLIF($3,''), payer_name=NULLIF($4,''), payer_id=NULLIF($5,''),
			    raw_payload=$6, updated_at=now()
			WHERE paypal_order_id=$1
			RETURNING `+paymentColumns,
			orderID, domain.StatusCompleted, payer.Email, payer.Name, payer.ID, raw)
	}

	p, err := scanPayment(row)
	if err != nil {
		return domain.Payment{}, err
	}

	if eventType != "" {
		if err := insertOutbox(ctx, tx, orderID, eventType, payload, traceparent); err != nil {
			return domain.Payment{}, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return domain.Payment{}, err
	}
	return p, nil
}

// ApplyWebhookWithOutbox row-locks the payment and overwrites the raw
// payload, plus the status when the event maps to one.
func (r *Repository) ApplyWebhookWithOutbox(ctx context.Context, orderID string, status domain.Status, hasStatus bool, raw []byte, eventType string, payload []byte, traceparent string) (domain.Payment, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return domain.Payment{}, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	_, err = scanPayment(tx.QueryRow(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE paypal_order_id=$1 FOR UPDATE`, orderID))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Payment{}, application.ErrNotFound
	}
	if err != nil {
		return domain.Payment{}, err
	}

	var row pgx.Row
	if hasStatus {
		row = tx.QueryRow(ctx, `UPDATE payments SET status=$2, raw_payload=$3, updated_at=now()
			WHERE paypal_order_id=$1 RETURNING `+paymentColumns, orderID, status, raw)
	} else {
		row = tx.QueryRow(ctx, `UPDATE payments SET raw_payload=$2, updated_at=now()
			WHERE paypal_order_id=$1 RETURNING `+paymentColumns, orderID, raw)
	}
	p, err := scanPayment(row)
	if err != nil {
		return domain.Payment{}, err
	}

	if eventType != "" {
		if err := insertOutbox(ctx, tx, orderID, eventType, payload, traceparent); err != nil {
			return domain.Payment{}, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return domain.Payment{}, err
	}
	return p, nil
}

func (r *Repository) MarkNotification(ctx context.Context, orderID string, sent bool, errMsg string) error {
	ct, err := r.pool.Exec(ctx, `UPDATE payments
		SET notification_sent=$2, notification_error=NULLIF($3,'')
		WHERE paypal_order_id=$1`, orderID, sent, errMsg)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return application.ErrNotFound
	}
	return nil
}

func insertOutbox(ctx context.Context, tx pgx.Tx, orderID, eventType string, payload []byte, traceparent string) error {
	_, err := tx.Exec(ctx, `INSERT INTO outbox (aggregate_type, aggregate_id, type, payload, traceparent, status)
		VALUES ('payment',$1,$2,$3,$4,'pending')`, orderID, eventType, payload, traceparent)
	return err
}
