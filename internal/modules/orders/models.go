package orders

import "time"

const (
	StatusPending    = "pending"
	StatusPendingPix = "pending_pix"
	StatusPaid       = "paid"
	StatusProcessing = "processing"
	StatusShipped    = "shipped"
	StatusDelivered  = "delivered"
	StatusCancelled  = "cancelled"
)

const (
	MethodPix    = "pix"
	MethodBoleto = "boleto"
	MethodCard   = "card"
)

// AwaitingPayment lists the statuses from which an order may become paid.
var AwaitingPayment = []string{StatusPending, StatusPendingPix}

type Order struct {
	ID     string `gorm:"type:char(36);primaryKey"`
	NSU    string `gorm:"column:order_nsu;type:varchar(32);not null;uniqueIndex:ux_orders_nsu"`
	Status string `gorm:"type:varchar(32);not null;index:ix_orders_status_created,priority:1"`

	SubtotalCents int64   `gorm:"not null"`
	DiscountCents int64   `gorm:"not null;default:0"`
	TotalCents    int64   `gorm:"not null"`
	PaidCents     int64   `gorm:"not null;default:0"`
	CouponCode    *string `gorm:"type:varchar(64)"`

	CustomerName  string  `gorm:"type:varchar(255);not null"`
	CustomerEmail string  `gorm:"type:varchar(255);not null"`
	CustomerPhone *string `gorm:"type:varchar(32)"`
	CustomerTaxID *string `gorm:"type:varchar(14)"`

	PaymentMethod   string  `gorm:"type:varchar(16);not null"`
	Installments    int     `gorm:"not null;default:1"`
	PixTxID         *string `gorm:"type:varchar(35)"`
	PaymentProvider *string `gorm:"type:varchar(32)"`
	ProviderRef     *string `gorm:"type:varchar(128)"`
	InvoiceRef      *string `gorm:"type:varchar(64)"`

	PaidAt    *time.Time `gorm:"precision:3"`
	CreatedAt time.Time  `gorm:"precision:3;not null;index:ix_orders_status_created,priority:2"`
	UpdatedAt time.Time  `gorm:"precision:3;not null"`
}

func (Order) TableName() string { return "orders" }

// IsAwaitingPayment reports whether a paid signal still changes the order.
func (o Order) IsAwaitingPayment() bool {
	return o.Status == StatusPending || o.Status == StatusPendingPix
}

type OrderItem struct {
	ID             string    `gorm:"type:char(36);primaryKey"`
	OrderID        string    `gorm:"type:char(36);not null;index:ix_order_items_order_id"`
	Name           string    `gorm:"type:varchar(255);not null"`
	PriceCents     int64     `gorm:"not null"`
	Quantity       int       `gorm:"not null"`
	LineTotalCents int64     `gorm:"not null"`
	CreatedAt      time.Time `gorm:"precision:3;not null"`
}

func (OrderItem) TableName() string { return "order_items" }

type OrderEvent struct {
	ID         string    `gorm:"type:char(36);primaryKey"`
	OrderID    string    `gorm:"type:char(36);not null;index:ix_order_events_order_id"`
	Actor      string    `gorm:"type:varchar(64);not null"`
	Action     string    `gorm:"type:varchar(32);not null"`
	FromStatus string    `gorm:"type:varchar(32);not null"`
	ToStatus   string    `gorm:"type:varchar(32);not null"`
	Note       *string   `gorm:"type:varchar(255)"`
	CreatedAt  time.Time `gorm:"precision:3;not null"`
}

func (OrderEvent) TableName() string { return "order_events" }

// FinancialEntry is the order ledger. (ref_type, ref_id, event) is unique.
type FinancialEntry struct {
	ID          string    `gorm:"type:char(36);primaryKey"`
	OrderID     string    `gorm:"type:char(36);not null;index:ix_order_fin_entries_order_id"`
	Event       string    `gorm:"type:varchar(32);not null;uniqueIndex:ux_order_fin_entries_ref,priority:3"`
	AmountCents int64     `gorm:"not null"`
	Source      string    `gorm:"type:varchar(32);not null"`
	RefType     string    `gorm:"type:varchar(16);not null;uniqueIndex:ux_order_fin_entries_ref,priority:1"`
	RefID       string    `gorm:"type:varchar(64);not null;uniqueIndex:ux_order_fin_entries_ref,priority:2"`
	CreatedAt   time.Time `gorm:"precision:3;not null"`
}

func (FinancialEntry) TableName() string { return "order_financial_entries" }

// Sequence is the per-day counter behind order NSUs.
type Sequence struct {
	Day       string `gorm:"type:char(8);primaryKey"`
	LastValue int    `gorm:"not null"`
}

func (Sequence) TableName() string { return "order_sequences" }

// Models lists the tables owned by this package, in migration order.
func Models() []any {
	return []any{&Order{}, &OrderItem{}, &OrderEvent{}, &FinancialEntry{}, &Sequence{}}
}
