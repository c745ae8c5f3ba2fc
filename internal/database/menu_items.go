package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const menuItemColumns = `id, category_id, name, description, price, image_url, show_addons, show_size_variants, is_available, created_at, updated_at`

func scanMenuItem(row pgx.Row) (MenuItem, error) {
	var i MenuItem
	err := row.Scan(
		&i.ID,
		&i.CategoryID,
		&i.Name,
		&i.Description,
		&i.Price,
		&i.ImageUrl,
		&i.ShowAddons,
		&i.ShowSizeVariants,
		&i.IsAvailable,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

func collectMenuItems(rows pgx.Rows, err error) ([]MenuItem, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []MenuItem{}
	for rows.Next() {
		i, err := scanMenuItem(rows)
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

const listMenuItems = `SELECT ` + menuItemColumns + ` FROM menu_items
WHERE ($1::uuid IS NULL OR category_id = $1)
ORDER BY name`

func (q *Queries) ListMenuItems(ctx context.Context, categoryID pgtype.UUID) ([]MenuItem, error) {
	return collectMenuItems(q.db.Query(ctx, listMenuItems, categoryID))
}

// ListAvailableMenuItems returns items that are available and either
// uncategorized or in an active category.
const listAvailableMenuItems = `SELECT m.id, m.category_id, m.name, m.description, m.price, m.image_url,
       m.show_addons, m.show_size_variants, m.is_available, m.created_at, m.updated_at
FROM menu_items m
LEFT JOIN categories c ON c.id = m.category_id
WHERE m.is_available = true AND (m.category_id IS NULL OR c.is_active = true)
ORDER BY c.display_order NULLS LAST, m.name`

func (q *Queries) ListAvailableMenuItems(ctx context.Context) ([]MenuItem, error) {
	return collectMenuItems(q.db.Query(ctx, listAvailableMenuItems))
}

const getMenuItem = `SELECT ` + menuItemColumns + ` FROM menu_items WHERE id = $1`

func (q *Queries) GetMenuItem(ctx context.Context, id uuid.UUID) (MenuItem, error) {
	return scanMenuItem(q.db.QueryRow(ctx, getMenuItem, id))
}

const createMenuItem = `INSERT INTO menu_items (category_id, name, description, price, show_addons, show_size_variants, is_available)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING ` + menuItemColumns

type CreateMenuItemParams struct {
	CategoryID       pgtype.UUID    `json:"category_id"`
	Name             string         `json:"name"`
	Description      pgtype.Text    `json:"description"`
	Price            pgtype.Numeric `json:"price"`
	ShowAddons       bool           `json:"show_addons"`
	ShowSizeVariants bool           `json:"show_size_variants"`
	IsAvailable      bool           `json:"is_available"`
}

func (q *Queries) CreateMenuItem(ctx context.Context, arg CreateMenuItemParams) (MenuItem, error) {
	return scanMenuItem(q.db.QueryRow(ctx, createMenuItem,
		arg.CategoryID,
		arg.Name,
		arg.Description,
		arg.Price,
		arg.ShowAddons,
		arg.ShowSizeVariants,
		arg.IsAvailable,
	))
}

const updateMenuItem = `UPDATE menu_items SET category_id = $2, name = $3, description = $4, price = $5,
    show_addons = $6, show_size_variants = $7, is_available = $8, updated_at = now()
WHERE id = $1
RETURNING ` + menuItemColumns

type UpdateMenuItemParams struct {
	ID               uuid.UUID      `json:"id"`
	CategoryID       pgtype.UUID    `json:"category_id"`
	Name             string         `json:"name"`
	Description      pgtype.Text    `json:"description"`
	Price            pgtype.Numeric `json:"price"`
	ShowAddons       bool           `json:"show_addons"`
	ShowSizeVariants bool           `json:"show_size_variants"`
	IsAvailable      bool           `json:"is_available"`
}

func (q *Queries) UpdateMenuItem(ctx context.Context, arg UpdateMenuItemParams) (MenuItem, error) {
	return scanMenuItem(q.db.QueryRow(ctx, updateMenuItem,
		arg.ID,
		arg.CategoryID,
		arg.Name,
		arg.Description,
		arg.Price,
		arg.ShowAddons,
		arg.ShowSizeVariants,
		arg.IsAvailable,
	))
}

const updateMenuItemImage = `UPDATE menu_items SET image_url = $2, updated_at = now()
WHERE id = $1
RETURNING ` + menuItemColumns

type UpdateMenuItemImageParams struct {
	ID       uuid.UUID   `json:"id"`
	ImageUrl pgtype.Text `json:"image_url"`
}

func (q *Queries) UpdateMenuItemImage(ctx context.Context, arg UpdateMenuItemImageParams) (MenuItem, error) {
	return scanMenuItem(q.db.QueryRow(ctx, updateMenuItemImage, arg.ID, arg.ImageUrl))
}

const deleteMenuItem = `DELETE FROM menu_items WHERE id = $1 RETURNING ` + menuItemColumns

// DeleteMenuItem removes the item and returns the deleted row so the caller
// can clean up its stored image.
func (q *Queries) DeleteMenuItem(ctx context.Context, id uuid.UUID) (MenuItem, error) {
	return scanMenuItem(q.db.QueryRow(ctx, deleteMenuItem, id))
}
