package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const addonColumns = `id, name, description, price, is_active, created_at`

func scanAddon(row pgx.Row) (Addon, error) {
	var i Addon
	err := row.Scan(
		&i.ID,
		&i.Name,
		&i.Description,
		&i.Price,
		&i.IsActive,
		&i.CreatedAt,
	)
	return i, err
}

func collectAddons(rows pgx.Rows, err error) ([]Addon, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Addon{}
	for rows.Next() {
		i, err := scanAddon(rows)
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

const listAddons = `SELECT ` + addonColumns + ` FROM addons ORDER BY name`

func (q *Queries) ListAddons(ctx context.Context) ([]Addon, error) {
	return collectAddons(q.db.Query(ctx, listAddons))
}

const listActiveAddons = `SELECT ` + addonColumns + ` FROM addons WHERE is_active = true ORDER BY name`

func (q *Queries) ListActiveAddons(ctx context.Context) ([]Addon, error) {
	return collectAddons(q.db.Query(ctx, listActiveAddons))
}

const getAddon = `SELECT ` + addonColumns + ` FROM addons WHERE id = $1`

func (q *Queries) GetAddon(ctx context.Context, id uuid.UUID) (Addon, error) {
	return scanAddon(q.db.QueryRow(ctx, getAddon, id))
}

const createAddon = `INSERT INTO addons (name, description, price, is_active)
VALUES ($1, $2, $3, $4)
RETURNING ` + addonColumns

type CreateAddonParams struct {
	Name        string         `json:"name"`
	Description pgtype.Text    `json:"description"`
	Price       pgtype.Numeric `json:"price"`
	IsActive    bool           `json:"is_active"`
}

func (q *Queries) CreateAddon(ctx context.Context, arg CreateAddonParams) (Addon, error) {
	return scanAddon(q.db.QueryRow(ctx, createAddon,
		arg.Name,
		arg.Description,
		arg.Price,
		arg.IsActive,
	))
}

const updateAddon = `UPDATE addons SET name = $2, description = $3, price = $4, is_active = $5
WHERE id = $1
RETURNING ` + addonColumns

type UpdateAddonParams struct {
	ID          uuid.UUID      `json:"id"`
	Name        string         `json:"name"`
	Description pgtype.Text    `json:"description"`
	Price       pgtype.Numeric `json:"price"`
	IsActive    bool           `json:"is_active"`
}

func (q *Queries) UpdateAddon(ctx context.Context, arg UpdateAddonParams) (Addon, error) {
	return scanAddon(q.db.QueryRow(ctx, updateAddon,
		arg.ID,
		arg.Name,
		arg.Description,
		arg.Price,
		arg.IsActive,
	))
}

const deleteAddon = `DELETE FROM addons WHERE id = $1 RETURNING id`

func (q *Queries) DeleteAddon(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	row := q.db.QueryRow(ctx, deleteAddon, id)
	var i uuid.UUID
	err := row.Scan(&i)
	return i, err
}

const listMenuItemAddonIDs = `SELECT addon_id FROM menu_item_addons WHERE menu_item_id = $1`

func (q *Queries) ListMenuItemAddonIDs(ctx context.Context, menuItemID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := q.db.Query(ctx, listMenuItemAddonIDs, menuItemID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []uuid.UUID{}
	for rows.Next() {
		var addonID uuid.UUID
		if err := rows.Scan(&addonID); err != nil {
			return nil, err
		}
		items = append(items, addonID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const listMenuItemAddons = `SELECT menu_item_id, addon_id FROM menu_item_addons`

func (q *Queries) ListMenuItemAddons(ctx context.Context) ([]MenuItemAddon, error) {
	rows, err := q.db.Query(ctx, listMenuItemAddons)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []MenuItemAddon{}
	for rows.Next() {
		var i MenuItemAddon
		if err := rows.Scan(&i.MenuItemID, &i.AddonID); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const deleteMenuItemAddons = `DELETE FROM menu_item_addons WHERE menu_item_id = $1`

func (q *Queries) DeleteMenuItemAddons(ctx context.Context, menuItemID uuid.UUID) error {
	_, err := q.db.Exec(ctx, deleteMenuItemAddons, menuItemID)
	return err
}

const createMenuItemAddon = `INSERT INTO menu_item_addons (menu_item_id, addon_id) VALUES ($1, $2)
ON CONFLICT DO NOTHING`

type CreateMenuItemAddonParams struct {
	MenuItemID uuid.UUID `json:"menu_item_id"`
	AddonID    uuid.UUID `json:"addon_id"`
}

func (q *Queries) CreateMenuItemAddon(ctx context.Context, arg CreateMenuItemAddonParams) error {
	_, err := q.db.Exec(ctx, createMenuItemAddon, arg.MenuItemID, arg.AddonID)
	return err
}
