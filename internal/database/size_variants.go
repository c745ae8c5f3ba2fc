package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const sizeVariantColumns = `id, menu_item_id, size_name, price_modifier, is_default, is_active, created_at`

func scanSizeVariant(row pgx.Row) (SizeVariant, error) {
	var i SizeVariant
	err := row.Scan(
		&i.ID,
		&i.MenuItemID,
		&i.SizeName,
		&i.PriceModifier,
		&i.IsDefault,
		&i.IsActive,
		&i.CreatedAt,
	)
	return i, err
}

func collectSizeVariants(rows pgx.Rows, err error) ([]SizeVariant, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []SizeVariant{}
	for rows.Next() {
		i, err := scanSizeVariant(rows)
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

const listSizeVariantsByMenuItem = `SELECT ` + sizeVariantColumns + ` FROM size_variants
WHERE menu_item_id = $1
ORDER BY is_default DESC, price_modifier, size_name`

func (q *Queries) ListSizeVariantsByMenuItem(ctx context.Context, menuItemID uuid.UUID) ([]SizeVariant, error) {
	return collectSizeVariants(q.db.Query(ctx, listSizeVariantsByMenuItem, menuItemID))
}

const listActiveSizeVariants = `SELECT ` + sizeVariantColumns + ` FROM size_variants
WHERE is_active = true
ORDER BY menu_item_id, is_default DESC, price_modifier, size_name`

func (q *Queries) ListActiveSizeVariants(ctx context.Context) ([]SizeVariant, error) {
	return collectSizeVariants(q.db.Query(ctx, listActiveSizeVariants))
}

const getSizeVariant = `SELECT ` + sizeVariantColumns + ` FROM size_variants WHERE id = $1`

func (q *Queries) GetSizeVariant(ctx context.Context, id uuid.UUID) (SizeVariant, error) {
	return scanSizeVariant(q.db.QueryRow(ctx, getSizeVariant, id))
}

const createSizeVariant = `INSERT INTO size_variants (menu_item_id, size_name, price_modifier, is_default, is_active)
VALUES ($1, $2, $3, $4, $5)
RETURNING ` + sizeVariantColumns

type CreateSizeVariantParams struct {
	MenuItemID    uuid.UUID      `json:"menu_item_id"`
	SizeName      string         `json:"size_name"`
	PriceModifier pgtype.Numeric `json:"price_modifier"`
	IsDefault     bool           `json:"is_default"`
	IsActive      bool           `json:"is_active"`
}

func (q *Queries) CreateSizeVariant(ctx context.Context, arg CreateSizeVariantParams) (SizeVariant, error) {
	return scanSizeVariant(q.db.QueryRow(ctx, createSizeVariant,
		arg.MenuItemID,
		arg.SizeName,
		arg.PriceModifier,
		arg.IsDefault,
		arg.IsActive,
	))
}

const updateSizeVariant = `UPDATE size_variants SET size_name = $3, price_modifier = $4, is_default = $5, is_active = $6
WHERE id = $1 AND menu_item_id = $2
RETURNING ` + sizeVariantColumns

type UpdateSizeVariantParams struct {
	ID            uuid.UUID      `json:"id"`
	MenuItemID    uuid.UUID      `json:"menu_item_id"`
	SizeName      string         `json:"size_name"`
	PriceModifier pgtype.Numeric `json:"price_modifier"`
	IsDefault     bool           `json:"is_default"`
	IsActive      bool           `json:"is_active"`
}

func (q *Queries) UpdateSizeVariant(ctx context.Context, arg UpdateSizeVariantParams) (SizeVariant, error) {
	return scanSizeVariant(q.db.QueryRow(ctx, updateSizeVariant,
		arg.ID,
		arg.MenuItemID,
		arg.SizeName,
		arg.PriceModifier,
		arg.IsDefault,
		arg.IsActive,
	))
}

const clearDefaultSizeVariant = `UPDATE size_variants SET is_default = false
WHERE menu_item_id = $1 AND is_default = true`

func (q *Queries) ClearDefaultSizeVariant(ctx context.Context, menuItemID uuid.UUID) error {
	_, err := q.db.Exec(ctx, clearDefaultSizeVariant, menuItemID)
	return err
}

const deleteSizeVariant = `DELETE FROM size_variants WHERE id = $1 AND menu_item_id = $2 RETURNING id`

type DeleteSizeVariantParams struct {
	ID         uuid.UUID `json:"id"`
	MenuItemID uuid.UUID `json:"menu_item_id"`
}

func (q *Queries) DeleteSizeVariant(ctx context.Context, arg DeleteSizeVariantParams) (uuid.UUID, error) {
	row := q.db.QueryRow(ctx, deleteSizeVariant, arg.ID, arg.MenuItemID)
	var i uuid.UUID
	err := row.Scan(&i)
	return i, err
}

const deleteSizeVariantsByMenuItem = `DELETE FROM size_variants WHERE menu_item_id = $1`

func (q *Queries) DeleteSizeVariantsByMenuItem(ctx context.Context, menuItemID uuid.UUID) error {
	_, err := q.db.Exec(ctx, deleteSizeVariantsByMenuItem, menuItemID)
	return err
}
