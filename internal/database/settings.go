package database

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const settingsColumns = `id, name, address, cnpj, phone, email, logo_url, primary_color, secondary_color,
    currency, timezone, service_charge_percentage, accepts_cash, accepts_pix, accepts_card,
    delivery_available, takeaway_available, opening_hours, updated_at`

const getSettings = `SELECT ` + settingsColumns + ` FROM restaurant_settings WHERE id = 1`

func (q *Queries) GetSettings(ctx context.Context) (RestaurantSetting, error) {
	row := q.db.QueryRow(ctx, getSettings)
	var i RestaurantSetting
	err := row.Scan(
		&i.ID,
		&i.Name,
		&i.Address,
		&i.Cnpj,
		&i.Phone,
		&i.Email,
		&i.LogoUrl,
		&i.PrimaryColor,
		&i.SecondaryColor,
		&i.Currency,
		&i.Timezone,
		&i.ServiceChargePercentage,
		&i.AcceptsCash,
		&i.AcceptsPix,
		&i.AcceptsCard,
		&i.DeliveryAvailable,
		&i.TakeawayAvailable,
		&i.OpeningHours,
		&i.UpdatedAt,
	)
	return i, err
}

const upsertSettings = `INSERT INTO restaurant_settings (id, name, address, cnpj, phone, email, logo_url,
    primary_color, secondary_color, currency, timezone, service_charge_percentage,
    accepts_cash, accepts_pix, accepts_card, delivery_available, takeaway_available, opening_hours)
VALUES (1, $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
ON CONFLICT (id) DO UPDATE SET
    name = EXCLUDED.name,
    address = EXCLUDED.address,
    cnpj = EXCLUDED.cnpj,
    phone = EXCLUDED.phone,
    email = EXCLUDED.email,
    logo_url = EXCLUDED.logo_url,
    primary_color = EXCLUDED.primary_color,
    secondary_color = EXCLUDED.secondary_color,
    currency = EXCLUDED.currency,
    timezone = EXCLUDED.timezone,
    service_charge_percentage = EXCLUDED.service_charge_percentage,
    accepts_cash = EXCLUDED.accepts_cash,
    accepts_pix = EXCLUDED.accepts_pix,
    accepts_card = EXCLUDED.accepts_card,
    delivery_available = EXCLUDED.delivery_available,
    takeaway_available = EXCLUDED.takeaway_available,
    opening_hours = EXCLUDED.opening_hours,
    updated_at = now()
RETURNING ` + settingsColumns

type UpsertSettingsParams struct {
	Name                    string         `json:"name"`
	Address                 pgtype.Text    `json:"address"`
	Cnpj                    pgtype.Text    `json:"cnpj"`
	Phone                   pgtype.Text    `json:"phone"`
	Email                   pgtype.Text    `json:"email"`
	LogoUrl                 pgtype.Text    `json:"logo_url"`
	PrimaryColor            string         `json:"primary_color"`
	SecondaryColor          string         `json:"secondary_color"`
	Currency                string         `json:"currency"`
	Timezone                string         `json:"timezone"`
	ServiceChargePercentage pgtype.Numeric `json:"service_charge_percentage"`
	AcceptsCash             bool           `json:"accepts_cash"`
	AcceptsPix              bool           `json:"accepts_pix"`
	AcceptsCard             bool           `json:"accepts_card"`
	DeliveryAvailable       bool           `json:"delivery_available"`
	TakeawayAvailable       bool           `json:"takeaway_available"`
	OpeningHours            []byte         `json:"opening_hours"`
}

func (q *Queries) UpsertSettings(ctx context.Context, arg UpsertSettingsParams) (RestaurantSetting, error) {
	row := q.db.QueryRow(ctx, upsertSettings,
		arg.Name,
		arg.Address,
		arg.Cnpj,
		arg.Phone,
		arg.Email,
		arg.LogoUrl,
		arg.PrimaryColor,
		arg.SecondaryColor,
		arg.Currency,
		arg.Timezone,
		arg.ServiceChargePercentage,
		arg.AcceptsCash,
		arg.AcceptsPix,
		arg.AcceptsCard,
		arg.DeliveryAvailable,
		arg.TakeawayAvailable,
		arg.OpeningHours,
	)
	var i RestaurantSetting
	err := row.Scan(
		&i.ID,
		&i.Name,
		&i.Address,
		&i.Cnpj,
		&i.Phone,
		&i.Email,
		&i.LogoUrl,
		&i.PrimaryColor,
		&i.SecondaryColor,
		&i.Currency,
		&i.Timezone,
		&i.ServiceChargePercentage,
		&i.AcceptsCash,
		&i.AcceptsPix,
		&i.AcceptsCard,
		&i.DeliveryAvailable,
		&i.TakeawayAvailable,
		&i.OpeningHours,
		&i.UpdatedAt,
	)
	return i, err
}
