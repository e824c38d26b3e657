package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/nexustechhub/mdts/internal/domain"
	"github.com/nexustechhub/mdts/internal/tax"
)

const uniqueViolation = "23505"

// DBTX is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// ReceiptRepository stores issued VAT receipts. Amounts are kept in NUMERIC
// columns for reporting; the full receipt is kept as JSONB.
type ReceiptRepository struct {
	db DBTX
}

func NewReceiptRepository(db DBTX) *ReceiptRepository {
	return &ReceiptRepository{db: db}
}

// Save inserts a receipt. A duplicate receipt ID is a conflict.
func (r *ReceiptRepository) Save(ctx context.Context, receipt tax.Receipt) error {
	payload, err := json.Marshal(receipt)
	if err != nil {
		return domain.Internal(err, "receipt.save", "failed to encode receipt")
	}

	t := receipt.TransactionDetails
	_, err = r.db.Exec(ctx, `
		INSERT INTO vat_receipts (
			receipt_id, customer_email, subtotal, shipping_cost, vat_rate,
			vat_amount, total, currency, vat_number, issued_at, payload
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		receipt.ReceiptID,
		receipt.CustomerDetails.Email,
		t.Subtotal,
		t.ShippingCost,
		rateFromPercent(t.VATRate),
		t.VATAmount,
		t.Total,
		t.Currency,
		receipt.Compliance.VATNumber,
		t.Date,
		payload,
	)
	if err != nil {
		return mapError(err, "receipt.save", receipt.ReceiptID)
	}
	return nil
}

// Get loads a receipt by ID.
func (r *ReceiptRepository) Get(ctx context.Context, receiptID string) (*tax.Receipt, error) {
	var payload []byte
	err := r.db.QueryRow(ctx,
		`SELECT payload FROM vat_receipts WHERE receipt_id = $1`, receiptID,
	).Scan(&payload)
	if err != nil {
		return nil, mapError(err, "receipt.get", receiptID)
	}

	var receipt tax.Receipt
	if err := json.Unmarshal(payload, &receipt); err != nil {
		return nil, domain.Internal(err, "receipt.get", "failed to decode receipt")
	}
	return &receipt, nil
}

// VATSummary aggregates receipts issued in a period, for VAT return filing.
type VATSummary struct {
	From      time.Time       `json:"from"`
	To        time.Time       `json:"to"`
	Count     int64           `json:"count"`
	Subtotal  decimal.Decimal `json:"subtotal"`
	Shipping  decimal.Decimal `json:"shipping"`
	VATAmount decimal.Decimal `json:"vat_amount"`
	Total     decimal.Decimal `json:"total"`
}

// Summarize totals receipts issued in [from, to).
func (r *ReceiptRepository) Summarize(ctx context.Context, from, to time.Time) (*VATSummary, error) {
	s := VATSummary{From: from, To: to}
	err := r.db.QueryRow(ctx, `
		SELECT count(*),
		       COALESCE(sum(subtotal), 0),
		       COALESCE(sum(shipping_cost), 0),
		       COALESCE(sum(vat_amount), 0),
		       COALESCE(sum(total), 0)
		FROM vat_receipts
		WHERE issued_at >= $1 AND issued_at < $2`, from, to,
	).Scan(&s.Count, &s.Subtotal, &s.Shipping, &s.VATAmount, &s.Total)
	if err != nil {
		return nil, mapError(err, "receipt.summarize", "")
	}
	return &s, nil
}

// rateFromPercent turns "5%" back into 0.05 for the NUMERIC column.
func rateFromPercent(p string) decimal.Decimal {
	if len(p) > 0 && p[len(p)-1] == '%' {
		p = p[:len(p)-1]
	}
	d, err := decimal.NewFromString(p)
	if err != nil {
		return decimal.Zero
	}
	return d.Shift(-2)
}

func mapError(err error, op, receiptID string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.NotFound(op, "receipt", receiptID)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return domain.Conflict(op, "receipt already exists: "+receiptID)
	}

	return domain.Internal(err, op, "database error")
}
