package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const categoryColumns = `id, name, description, display_order, is_active, created_at`

func scanCategory(row pgx.Row) (Category, error) {
	var i Category
	err := row.Scan(
		&i.ID,
		&i.Name,
		&i.Description,
		&i.DisplayOrder,
		&i.IsActive,
		&i.CreatedAt,
	)
	return i, err
}

func collectCategories(rows pgx.Rows, err error) ([]Category, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Category{}
	for rows.Next() {
		i, err := scanCategory(rows)
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

const listCategories = `SELECT ` + categoryColumns + ` FROM categories ORDER BY display_order, name`

func (q *Queries) ListCategories(ctx context.Context) ([]Category, error) {
	return collectCategories(q.db.Query(ctx, listCategories))
}

const listActiveCategories = `SELECT ` + categoryColumns + ` FROM categories WHERE is_active = true ORDER BY display_order, name`

func (q *Queries) ListActiveCategories(ctx context.Context) ([]Category, error) {
	return collectCategories(q.db.Query(ctx, listActiveCategories))
}

const createCategory = `INSERT INTO categories (name, description, display_order, is_active)
VALUES ($1, $2, $3, $4)
RETURNING ` + categoryColumns

type CreateCategoryParams struct {
	Name         string      `json:"name"`
	Description  pgtype.Text `json:"description"`
	DisplayOrder int32       `json:"display_order"`
	IsActive     bool        `json:"is_active"`
}

func (q *Queries) CreateCategory(ctx context.Context, arg CreateCategoryParams) (Category, error) {
	return scanCategory(q.db.QueryRow(ctx, createCategory,
		arg.Name,
		arg.Description,
		arg.DisplayOrder,
		arg.IsActive,
	))
}

const updateCategory = `UPDATE categories SET name = $2, description = $3, display_order = $4, is_active = $5
WHERE id = $1
RETURNING ` + categoryColumns

type UpdateCategoryParams struct {
	ID           uuid.UUID   `json:"id"`
	Name         string      `json:"name"`
	Description  pgtype.Text `json:"description"`
	DisplayOrder int32       `json:"display_order"`
	IsActive     bool        `json:"is_active"`
}

func (q *Queries) UpdateCategory(ctx context.Context, arg UpdateCategoryParams) (Category, error) {
	return scanCategory(q.db.QueryRow(ctx, updateCategory,
		arg.ID,
		arg.Name,
		arg.Description,
		arg.DisplayOrder,
		arg.IsActive,
	))
}

const deleteCategory = `DELETE FROM categories WHERE id = $1 RETURNING id`

func (q *Queries) DeleteCategory(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	row := q.db.QueryRow(ctx, deleteCategory, id)
	var i uuid.UUID
	err := row.Scan(&i)
	return i, err
}
