package notify

import "time"

const (
	KindCustomerEmail = "customer_email"
	KindAdminEmail    = "admin_email"
	KindWhatsApp      = "whatsapp_admin"
)

// Log claims one notification per order and kind.
type Log struct {
	ID        string    `gorm:"type:char(36);primaryKey"`
	OrderID   string    `gorm:"type:char(36);not null;uniqueIndex:ux_notification_logs_order_kind,priority:1"`
	Kind      string    `gorm:"type:varchar(32);not null;uniqueIndex:ux_notification_logs_order_kind,priority:2"`
	Recipient string    `gorm:"type:varchar(255);not null"`
	CreatedAt time.Time `gorm:"precision:3;not null"`
}

func (Log) TableName() string { return "notification_logs" }

func Models() []any { return []any{&Log{}} }
