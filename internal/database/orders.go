package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const orderColumns = `id, table_id, status, total, created_at, updated_at, completed_at`

func scanOrder(row pgx.Row) (Order, error) {
	var i Order
	err := row.Scan(
		&i.ID,
		&i.TableID,
		&i.Status,
		&i.Total,
		&i.CreatedAt,
		&i.UpdatedAt,
		&i.CompletedAt,
	)
	return i, err
}

func collectOrders(rows pgx.Rows, err error) ([]Order, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Order{}
	for rows.Next() {
		i, err := scanOrder(rows)
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

const createOrder = `INSERT INTO orders (table_id, status, total) VALUES ($1, 'pending', $2) RETURNING ` + orderColumns

type CreateOrderParams struct {
	TableID uuid.UUID      `json:"table_id"`
	Total   pgtype.Numeric `json:"total"`
}

func (q *Queries) CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, createOrder, arg.TableID, arg.Total))
}

const getOrder = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

func (q *Queries) GetOrder(ctx context.Context, id uuid.UUID) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, getOrder, id))
}

const listOrders = `SELECT ` + orderColumns + ` FROM orders
WHERE ($1::text IS NULL OR status = $1)
  AND ($2::uuid IS NULL OR table_id = $2)
  AND ($3::timestamptz IS NULL OR created_at >= $3)
  AND ($4::timestamptz IS NULL OR created_at < $4)
ORDER BY created_at DESC
LIMIT $5 OFFSET $6`

type ListOrdersParams struct {
	Status    pgtype.Text        `json:"status"`
	TableID   pgtype.UUID        `json:"table_id"`
	StartDate pgtype.Timestamptz `json:"start_date"`
	EndDate   pgtype.Timestamptz `json:"end_date"`
	Limit     int32              `json:"limit"`
	Offset    int32              `json:"offset"`
}

func (q *Queries) ListOrders(ctx context.Context, arg ListOrdersParams) ([]Order, error) {
	return collectOrders(q.db.Query(ctx, listOrders,
		arg.Status,
		arg.TableID,
		arg.StartDate,
		arg.EndDate,
		arg.Limit,
		arg.Offset,
	))
}

const listOrdersByStatuses = `SELECT ` + orderColumns + ` FROM orders
WHERE status = ANY($1::text[])
ORDER BY created_at ASC`

func (q *Queries) ListOrdersByStatuses(ctx context.Context, statuses []string) ([]Order, error) {
	return collectOrders(q.db.Query(ctx, listOrdersByStatuses, statuses))
}

const listActiveOrdersByTable = `SELECT ` + orderColumns + ` FROM orders
WHERE table_id = $1 AND status <> 'completed'
ORDER BY created_at ASC
FOR UPDATE`

// ListActiveOrdersByTable locks and returns the table's non-completed orders.
func (q *Queries) ListActiveOrdersByTable(ctx context.Context, tableID uuid.UUID) ([]Order, error) {
	return collectOrders(q.db.Query(ctx, listActiveOrdersByTable, tableID))
}

const listOpenOrdersByTable = `SELECT ` + orderColumns + ` FROM orders
WHERE table_id = $1 AND status <> 'completed'
ORDER BY created_at ASC`

func (q *Queries) ListOpenOrdersByTable(ctx context.Context, tableID uuid.UUID) ([]Order, error) {
	return collectOrders(q.db.Query(ctx, listOpenOrdersByTable, tableID))
}

// UpdateOrderStatus only applies when the stored status still equals
// CurrentStatus. Returns pgx.ErrNoRows when a concurrent update won.
const updateOrderStatus = `UPDATE orders SET status = $2, updated_at = now()
WHERE id = $1 AND status = $3
RETURNING ` + orderColumns

type UpdateOrderStatusParams struct {
	ID            uuid.UUID `json:"id"`
	Status        string    `json:"status"`
	CurrentStatus string    `json:"current_status"`
}

func (q *Queries) UpdateOrderStatus(ctx context.Context, arg UpdateOrderStatusParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, updateOrderStatus, arg.ID, arg.Status, arg.CurrentStatus))
}

const completeOrders = `UPDATE orders SET status = 'completed', completed_at = now(), updated_at = now()
WHERE id = ANY($1::uuid[]) AND status <> 'completed'
RETURNING ` + orderColumns

func (q *Queries) CompleteOrders(ctx context.Context, ids []uuid.UUID) ([]Order, error) {
	return collectOrders(q.db.Query(ctx, completeOrders, ids))
}

const orderItemColumns = `id, order_id, menu_item_id, menu_item_name, size_variant_id, size_name, unit_price, quantity, notes, created_at`

func scanOrderItem(row pgx.Row) (OrderItem, error) {
	var i OrderItem
	err := row.Scan(
		&i.ID,
		&i.OrderID,
		&i.MenuItemID,
		&i.MenuItemName,
		&i.SizeVariantID,
		&i.SizeName,
		&i.UnitPrice,
		&i.Quantity,
		&i.Notes,
		&i.CreatedAt,
	)
	return i, err
}

const createOrderItem = `INSERT INTO order_items (order_id, menu_item_id, menu_item_name, size_variant_id, size_name, unit_price, quantity, notes)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING ` + orderItemColumns

type CreateOrderItemParams struct {
	OrderID       uuid.UUID      `json:"order_id"`
	MenuItemID    pgtype.UUID    `json:"menu_item_id"`
	MenuItemName  string         `json:"menu_item_name"`
	SizeVariantID pgtype.UUID    `json:"size_variant_id"`
	SizeName      pgtype.Text    `json:"size_name"`
	UnitPrice     pgtype.Numeric `json:"unit_price"`
	Quantity      int32          `json:"quantity"`
	Notes         pgtype.Text    `json:"notes"`
}

func (q *Queries) CreateOrderItem(ctx context.Context, arg CreateOrderItemParams) (OrderItem, error) {
	return scanOrderItem(q.db.QueryRow(ctx, createOrderItem,
		arg.OrderID,
		arg.MenuItemID,
		arg.MenuItemName,
		arg.SizeVariantID,
		arg.SizeName,
		arg.UnitPrice,
		arg.Quantity,
		arg.Notes,
	))
}

const listOrderItemsByOrders = `SELECT ` + orderItemColumns + ` FROM order_items
WHERE order_id = ANY($1::uuid[])
ORDER BY created_at, id`

func (q *Queries) ListOrderItemsByOrders(ctx context.Context, orderIDs []uuid.UUID) ([]OrderItem, error) {
	rows, err := q.db.Query(ctx, listOrderItemsByOrders, orderIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []OrderItem{}
	for rows.Next() {
		i, err := scanOrderItem(rows)
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

const orderItemAddonColumns = `id, order_item_id, addon_id, addon_name, addon_price, created_at`

func scanOrderItemAddon(row pgx.Row) (OrderItemAddon, error) {
	var i OrderItemAddon
	err := row.Scan(
		&i.ID,
		&i.OrderItemID,
		&i.AddonID,
		&i.AddonName,
		&i.AddonPrice,
		&i.CreatedAt,
	)
	return i, err
}

const createOrderItemAddon = `INSERT INTO order_item_addons (order_item_id, addon_id, addon_name, addon_price)
VALUES ($1, $2, $3, $4)
RETURNING ` + orderItemAddonColumns

type CreateOrderItemAddonParams struct {
	OrderItemID uuid.UUID      `json:"order_item_id"`
	AddonID     pgtype.UUID    `json:"addon_id"`
	AddonName   string         `json:"addon_name"`
	AddonPrice  pgtype.Numeric `json:"addon_price"`
}

func (q *Queries) CreateOrderItemAddon(ctx context.Context, arg CreateOrderItemAddonParams) (OrderItemAddon, error) {
	return scanOrderItemAddon(q.db.QueryRow(ctx, createOrderItemAddon,
		arg.OrderItemID,
		arg.AddonID,
		arg.AddonName,
		arg.AddonPrice,
	))
}

const listOrderItemAddonsByItems = `SELECT ` + orderItemAddonColumns + ` FROM order_item_addons
WHERE order_item_id = ANY($1::uuid[])
ORDER BY created_at, id`

func (q *Queries) ListOrderItemAddonsByItems(ctx context.Context, itemIDs []uuid.UUID) ([]OrderItemAddon, error) {
	rows, err := q.db.Query(ctx, listOrderItemAddonsByItems, itemIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []OrderItemAddon{}
	for rows.Next() {
		i, err := scanOrderItemAddon(rows)
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
