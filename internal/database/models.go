package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

type Addon struct {
	ID          uuid.UUID      `json:"id"`
	Name        string         `json:"name"`
	Description pgtype.Text    `json:"description"`
	Price       pgtype.Numeric `json:"price"`
	IsActive    bool           `json:"is_active"`
	CreatedAt   time.Time      `json:"created_at"`
}

type Category struct {
	ID           uuid.UUID   `json:"id"`
	Name         string      `json:"name"`
	Description  pgtype.Text `json:"description"`
	DisplayOrder int32       `json:"display_order"`
	IsActive     bool        `json:"is_active"`
	CreatedAt    time.Time   `json:"created_at"`
}

type MenuItem struct {
	ID               uuid.UUID      `json:"id"`
	CategoryID       pgtype.UUID    `json:"category_id"`
	Name             string         `json:"name"`
	Description      pgtype.Text    `json:"description"`
	Price            pgtype.Numeric `json:"price"`
	ImageUrl         pgtype.Text    `json:"image_url"`
	ShowAddons       bool           `json:"show_addons"`
	ShowSizeVariants bool           `json:"show_size_variants"`
	IsAvailable      bool           `json:"is_available"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

type MenuItemAddon struct {
	MenuItemID uuid.UUID `json:"menu_item_id"`
	AddonID    uuid.UUID `json:"addon_id"`
}

type SizeVariant struct {
	ID            uuid.UUID      `json:"id"`
	MenuItemID    uuid.UUID      `json:"menu_item_id"`
	SizeName      string         `json:"size_name"`
	PriceModifier pgtype.Numeric `json:"price_modifier"`
	IsDefault     bool           `json:"is_default"`
	IsActive      bool           `json:"is_active"`
	CreatedAt     time.Time      `json:"created_at"`
}

type Table struct {
	ID        uuid.UUID `json:"id"`
	Number    int32     `json:"number"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Order struct {
	ID          uuid.UUID          `json:"id"`
	TableID     uuid.UUID          `json:"table_id"`
	Status      string             `json:"status"`
	Total       pgtype.Numeric     `json:"total"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
	CompletedAt pgtype.Timestamptz `json:"completed_at"`
}

type OrderItem struct {
	ID            uuid.UUID      `json:"id"`
	OrderID       uuid.UUID      `json:"order_id"`
	MenuItemID    pgtype.UUID    `json:"menu_item_id"`
	MenuItemName  string         `json:"menu_item_name"`
	SizeVariantID pgtype.UUID    `json:"size_variant_id"`
	SizeName      pgtype.Text    `json:"size_name"`
	UnitPrice     pgtype.Numeric `json:"unit_price"`
	Quantity      int32          `json:"quantity"`
	Notes         pgtype.Text    `json:"notes"`
	CreatedAt     time.Time      `json:"created_at"`
}

type OrderItemAddon struct {
	ID          uuid.UUID      `json:"id"`
	OrderItemID uuid.UUID      `json:"order_item_id"`
	AddonID     pgtype.UUID    `json:"addon_id"`
	AddonName   string         `json:"addon_name"`
	AddonPrice  pgtype.Numeric `json:"addon_price"`
	CreatedAt   time.Time      `json:"created_at"`
}

type Payment struct {
	ID             uuid.UUID      `json:"id"`
	TableID        uuid.UUID      `json:"table_id"`
	Method         string         `json:"method"`
	Amount         pgtype.Numeric `json:"amount"`
	AmountReceived pgtype.Numeric `json:"amount_received"`
	ChangeAmount   pgtype.Numeric `json:"change_amount"`
	ProcessedBy    uuid.UUID      `json:"processed_by"`
	ProcessedAt    time.Time      `json:"processed_at"`
}

type PrintJob struct {
	ID        uuid.UUID          `json:"id"`
	PaymentID pgtype.UUID        `json:"payment_id"`
	Kind      string             `json:"kind"`
	Payload   []byte             `json:"payload"`
	Status    string             `json:"status"`
	Attempts  int32              `json:"attempts"`
	LastError pgtype.Text        `json:"last_error"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
	SentAt    pgtype.Timestamptz `json:"sent_at"`
}

type RestaurantSetting struct {
	ID                      int32          `json:"id"`
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
	UpdatedAt               time.Time      `json:"updated_at"`
}

type User struct {
	ID             uuid.UUID `json:"id"`
	Email          string    `json:"email"`
	HashedPassword string    `json:"hashed_password"`
	FullName       string    `json:"full_name"`
	Role           string    `json:"role"`
	IsActive       bool      `json:"is_active"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
