package payments

import (
	"time"

	"gorm.io/datatypes"
)

const (
	TitleIssued   = "issued"
	TitlePending  = "pending"
	TitlePaid     = "paid"
	TitleCanceled = "canceled"
	TitleExpired  = "expired"
)

const (
	ProviderManual      = "manual"
	ProviderAsaas       = "asaas"
	ProviderMercadoPago = "mercadopago"
	ProviderPagSeguro   = "pagseguro"
)

// PaymentTitle is a boleto or bank-transfer title linked to one order.
type PaymentTitle struct {
	ID              string     `gorm:"type:char(36);primaryKey"`
	OrderID         string     `gorm:"type:char(36);not null;index:ix_payment_titles_order_id"`
	Provider        string     `gorm:"type:varchar(32);not null"`
	ProviderTitleID *string    `gorm:"type:varchar(128);uniqueIndex:ux_payment_titles_provider_title"`
	Status          string     `gorm:"type:varchar(16);not null"`
	AmountCents     int64      `gorm:"not null"`
	DueDate         string     `gorm:"type:char(10);not null"`
	BankSlipURL     *string    `gorm:"type:varchar(512)"`
	DigitableLine   *string    `gorm:"type:varchar(128)"`
	PaidAt          *time.Time `gorm:"precision:3"`
	CreatedAt       time.Time  `gorm:"precision:3;not null"`
	UpdatedAt       time.Time  `gorm:"precision:3;not null"`
}

func (PaymentTitle) TableName() string { return "payment_titles" }

// ProviderEvent is the webhook delivery log, unique per (provider, event_id).
type ProviderEvent struct {
	ID          string         `gorm:"type:char(36);primaryKey"`
	Provider    string         `gorm:"type:varchar(64);not null;uniqueIndex:ux_provider_events_provider_event,priority:1"`
	EventID     string         `gorm:"type:varchar(128);not null;uniqueIndex:ux_provider_events_provider_event,priority:2"`
	EventType   string         `gorm:"type:varchar(64);not null"`
	PayloadJSON datatypes.JSON `gorm:"type:json;not null"`

	ReceivedAt   time.Time  `gorm:"precision:3;not null"`
	ProcessedAt  *time.Time `gorm:"precision:3"`
	ProcessError *string    `gorm:"type:varchar(255)"`
}

func (ProviderEvent) TableName() string { return "provider_events" }

func Models() []any { return []any{&PaymentTitle{}, &ProviderEvent{}} }
