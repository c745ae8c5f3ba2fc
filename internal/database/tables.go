package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const tableColumns = `id, number, status, created_at, updated_at`

func scanTable(row pgx.Row) (Table, error) {
	var i Table
	err := row.Scan(
		&i.ID,
		&i.Number,
		&i.Status,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const listTables = `SELECT ` + tableColumns + ` FROM tables ORDER BY number`

func (q *Queries) ListTables(ctx context.Context) ([]Table, error) {
	rows, err := q.db.Query(ctx, listTables)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Table{}
	for rows.Next() {
		i, err := scanTable(rows)
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

const getTable = `SELECT ` + tableColumns + ` FROM tables WHERE id = $1`

func (q *Queries) GetTable(ctx context.Context, id uuid.UUID) (Table, error) {
	return scanTable(q.db.QueryRow(ctx, getTable, id))
}

const getTableForUpdate = `SELECT ` + tableColumns + ` FROM tables WHERE id = $1 FOR UPDATE`

// GetTableForUpdate locks the table row until the surrounding transaction ends.
func (q *Queries) GetTableForUpdate(ctx context.Context, id uuid.UUID) (Table, error) {
	return scanTable(q.db.QueryRow(ctx, getTableForUpdate, id))
}

const getTableByNumber = `SELECT ` + tableColumns + ` FROM tables WHERE number = $1`

func (q *Queries) GetTableByNumber(ctx context.Context, number int32) (Table, error) {
	return scanTable(q.db.QueryRow(ctx, getTableByNumber, number))
}

const getTableByNumberForUpdate = `SELECT ` + tableColumns + ` FROM tables WHERE number = $1 FOR UPDATE`

func (q *Queries) GetTableByNumberForUpdate(ctx context.Context, number int32) (Table, error) {
	return scanTable(q.db.QueryRow(ctx, getTableByNumberForUpdate, number))
}

const createTable = `INSERT INTO tables (number, status) VALUES ($1, 'available') RETURNING ` + tableColumns

func (q *Queries) CreateTable(ctx context.Context, number int32) (Table, error) {
	return scanTable(q.db.QueryRow(ctx, createTable, number))
}

const deleteTable = `DELETE FROM tables WHERE id = $1 RETURNING id`

func (q *Queries) DeleteTable(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	row := q.db.QueryRow(ctx, deleteTable, id)
	var i uuid.UUID
	err := row.Scan(&i)
	return i, err
}

const updateTableStatus = `UPDATE tables SET status = $2, updated_at = now()
WHERE id = $1
RETURNING ` + tableColumns

type UpdateTableStatusParams struct {
	ID     uuid.UUID `json:"id"`
	Status string    `json:"status"`
}

func (q *Queries) UpdateTableStatus(ctx context.Context, arg UpdateTableStatusParams) (Table, error) {
	return scanTable(q.db.QueryRow(ctx, updateTableStatus, arg.ID, arg.Status))
}

const occupyTable = `UPDATE tables SET status = 'occupied', updated_at = now()
WHERE id = $1
RETURNING ` + tableColumns

func (q *Queries) OccupyTable(ctx context.Context, id uuid.UUID) (Table, error) {
	return scanTable(q.db.QueryRow(ctx, occupyTable, id))
}

// ReleaseTableIfIdle sets the table available only when it has no
// non-completed orders. Returns pgx.ErrNoRows when orders are still open.
const releaseTableIfIdle = `UPDATE tables SET status = 'available', updated_at = now()
WHERE id = $1
  AND NOT EXISTS (SELECT 1 FROM orders o WHERE o.table_id = $1 AND o.status <> 'completed')
RETURNING ` + tableColumns

func (q *Queries) ReleaseTableIfIdle(ctx context.Context, id uuid.UUID) (Table, error) {
	return scanTable(q.db.QueryRow(ctx, releaseTableIfIdle, id))
}

const countActiveOrdersByTable = `SELECT count(*) FROM orders WHERE table_id = $1 AND status <> 'completed'`

func (q *Queries) CountActiveOrdersByTable(ctx context.Context, tableID uuid.UUID) (int64, error) {
	row := q.db.QueryRow(ctx, countActiveOrdersByTable, tableID)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const countOrdersByTable = `SELECT count(*) FROM orders WHERE table_id = $1`

func (q *Queries) CountOrdersByTable(ctx context.Context, tableID uuid.UUID) (int64, error) {
	row := q.db.QueryRow(ctx, countOrdersByTable, tableID)
	var count int64
	err := row.Scan(&count)
	return count, err
}
