package database

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const listReportOrders = `SELECT o.id, o.table_id, t.number, o.status, o.total, o.created_at
FROM orders o
JOIN tables t ON t.id = o.table_id
WHERE o.status = ANY($1::text[])
  AND o.created_at >= $2
  AND o.created_at < $3
ORDER BY o.created_at DESC`

type ListReportOrdersParams struct {
	Statuses  []string  `json:"statuses"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
}

type ListReportOrdersRow struct {
	ID          uuid.UUID      `json:"id"`
	TableID     uuid.UUID      `json:"table_id"`
	TableNumber int32          `json:"table_number"`
	Status      string         `json:"status"`
	Total       pgtype.Numeric `json:"total"`
	CreatedAt   time.Time      `json:"created_at"`
}

func (q *Queries) ListReportOrders(ctx context.Context, arg ListReportOrdersParams) ([]ListReportOrdersRow, error) {
	rows, err := q.db.Query(ctx, listReportOrders, arg.Statuses, arg.StartDate, arg.EndDate)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []ListReportOrdersRow{}
	for rows.Next() {
		var i ListReportOrdersRow
		if err := rows.Scan(
			&i.ID,
			&i.TableID,
			&i.TableNumber,
			&i.Status,
			&i.Total,
			&i.CreatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// ListReportLines joins each order line with the current catalog price,
// used when a line carries no price snapshot.
const listReportLines = `SELECT oi.id, oi.order_id, oi.menu_item_id, oi.menu_item_name, oi.quantity,
       oi.unit_price, m.price
FROM order_items oi
LEFT JOIN menu_items m ON m.id = oi.menu_item_id
WHERE oi.order_id = ANY($1::uuid[])
ORDER BY oi.created_at, oi.id`

type ListReportLinesRow struct {
	ID           uuid.UUID      `json:"id"`
	OrderID      uuid.UUID      `json:"order_id"`
	MenuItemID   pgtype.UUID    `json:"menu_item_id"`
	MenuItemName string         `json:"menu_item_name"`
	Quantity     int32          `json:"quantity"`
	UnitPrice    pgtype.Numeric `json:"unit_price"`
	CatalogPrice pgtype.Numeric `json:"catalog_price"`
}

func (q *Queries) ListReportLines(ctx context.Context, orderIDs []uuid.UUID) ([]ListReportLinesRow, error) {
	rows, err := q.db.Query(ctx, listReportLines, orderIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []ListReportLinesRow{}
	for rows.Next() {
		var i ListReportLinesRow
		if err := rows.Scan(
			&i.ID,
			&i.OrderID,
			&i.MenuItemID,
			&i.MenuItemName,
			&i.Quantity,
			&i.UnitPrice,
			&i.CatalogPrice,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
