package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const paymentColumns = `id, table_id, method, amount, amount_received, change_amount, processed_by, processed_at`

func scanPayment(row pgx.Row) (Payment, error) {
	var i Payment
	err := row.Scan(
		&i.ID,
		&i.TableID,
		&i.Method,
		&i.Amount,
		&i.AmountReceived,
		&i.ChangeAmount,
		&i.ProcessedBy,
		&i.ProcessedAt,
	)
	return i, err
}

const createPayment = `INSERT INTO payments (table_id, method, amount, amount_received, change_amount, processed_by)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING ` + paymentColumns

type CreatePaymentParams struct {
	TableID        uuid.UUID      `json:"table_id"`
	Method         string         `json:"method"`
	Amount         pgtype.Numeric `json:"amount"`
	AmountReceived pgtype.Numeric `json:"amount_received"`
	ChangeAmount   pgtype.Numeric `json:"change_amount"`
	ProcessedBy    uuid.UUID      `json:"processed_by"`
}

func (q *Queries) CreatePayment(ctx context.Context, arg CreatePaymentParams) (Payment, error) {
	return scanPayment(q.db.QueryRow(ctx, createPayment,
		arg.TableID,
		arg.Method,
		arg.Amount,
		arg.AmountReceived,
		arg.ChangeAmount,
		arg.ProcessedBy,
	))
}

const createPaymentOrder = `INSERT INTO payment_orders (payment_id, order_id) VALUES ($1, $2)`

type CreatePaymentOrderParams struct {
	PaymentID uuid.UUID `json:"payment_id"`
	OrderID   uuid.UUID `json:"order_id"`
}

func (q *Queries) CreatePaymentOrder(ctx context.Context, arg CreatePaymentOrderParams) error {
	_, err := q.db.Exec(ctx, createPaymentOrder, arg.PaymentID, arg.OrderID)
	return err
}

const getPayment = `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1`

func (q *Queries) GetPayment(ctx context.Context, id uuid.UUID) (Payment, error) {
	return scanPayment(q.db.QueryRow(ctx, getPayment, id))
}

const listPayments = `SELECT ` + paymentColumns + ` FROM payments
WHERE ($1::uuid IS NULL OR table_id = $1)
  AND ($2::timestamptz IS NULL OR processed_at >= $2)
  AND ($3::timestamptz IS NULL OR processed_at < $3)
ORDER BY processed_at DESC
LIMIT $4 OFFSET $5`

type ListPaymentsParams struct {
	TableID   pgtype.UUID        `json:"table_id"`
	StartDate pgtype.Timestamptz `json:"start_date"`
	EndDate   pgtype.Timestamptz `json:"end_date"`
	Limit     int32              `json:"limit"`
	Offset    int32              `json:"offset"`
}

func (q *Queries) ListPayments(ctx context.Context, arg ListPaymentsParams) ([]Payment, error) {
	rows, err := q.db.Query(ctx, listPayments, arg.TableID, arg.StartDate, arg.EndDate, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Payment{}
	for rows.Next() {
		i, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const listPaymentOrderIDs = `SELECT order_id FROM payment_orders WHERE payment_id = $1`

func (q *Queries) ListPaymentOrderIDs(ctx context.Context, paymentID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := q.db.Query(ctx, listPaymentOrderIDs, paymentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []uuid.UUID{}
	for rows.Next() {
		var orderID uuid.UUID
		if err := rows.Scan(&orderID); err != nil {
			return nil, err
		}
		items = append(items, orderID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
