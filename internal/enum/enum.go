package enum

// ── Group A: State machines (CHECK constrained in DB) ──

const (
	OrderStatusPending   = "pending"
	OrderStatusPreparing = "preparing"
	OrderStatusReady     = "ready"
	OrderStatusCompleted = "completed"
)

const (
	TableStatusAvailable = "available"
	TableStatusOccupied  = "occupied"
	TableStatusReserved  = "reserved"
)

const (
	PrintJobStatusPending = "pending"
	PrintJobStatusSent    = "sent"
	PrintJobStatusFailed  = "failed"
)

// ── Group C: Borderline (CHECK constrained in DB) ──

const (
	UserRoleAdmin   = "ADMIN"
	UserRoleKitchen = "KITCHEN"
)

const (
	PaymentMethodCash = "cash"
	PaymentMethodPix  = "pix"
	PaymentMethodCard = "card"
)

// ── Group B: Configurable labels (no DB constraint) ──

const (
	PrintJobKindReceipt = "receipt"
)

const (
	ChangeInsert = "INSERT"
	ChangeUpdate = "UPDATE"
	ChangeDelete = "DELETE"
)

const (
	TopicOrders     = "orders"
	TopicOrderItems = "order_items"
	TopicTables     = "tables"
	TopicMenuItems  = "menu_items"
	TopicPayments   = "payments"
)
