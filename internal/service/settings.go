package service

import (
	"github.com/mesa-digital/api/internal/database"
	"github.com/mesa-digital/api/internal/enum"
	"github.com/shopspring/decimal"
)

// DefaultSettings is used until an admin saves the restaurant settings.
func DefaultSettings() database.RestaurantSetting {
	return database.RestaurantSetting{
		ID:                      1,
		Name:                    "Restaurante",
		PrimaryColor:            "#1f2937",
		SecondaryColor:          "#f59e0b",
		Currency:                "BRL",
		Timezone:                "America/Sao_Paulo",
		ServiceChargePercentage: database.DecimalToNumeric(decimal.Zero),
		AcceptsCash:             true,
		AcceptsPix:              true,
		AcceptsCard:             true,
		OpeningHours:            []byte("{}"),
	}
}

// MethodEnabled reports whether the restaurant accepts a payment method.
func MethodEnabled(s database.RestaurantSetting, method string) bool {
	switch method {
	case enum.PaymentMethodCash:
		return s.AcceptsCash
	case enum.PaymentMethodPix:
		return s.AcceptsPix
	case enum.PaymentMethodCard:
		return s.AcceptsCard
	}
	return false
}
