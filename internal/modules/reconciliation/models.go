package reconciliation

import (
	"time"

	"gorm.io/datatypes"
)

// Run records one reconciliation invocation and its outcome.
type Run struct {
	ID                    string         `gorm:"type:char(36);primaryKey"`
	BankID                string         `gorm:"type:varchar(64);not null;default:''"`
	FileKey               *string        `gorm:"type:varchar(255)"`
	Actor                 string         `gorm:"type:varchar(64);not null"`
	AutoConfirm           bool           `gorm:"not null"`
	TransactionsProcessed int            `gorm:"not null"`
	TransactionsSkipped   int            `gorm:"not null"`
	OrdersChecked         int            `gorm:"not null"`
	Matched               int            `gorm:"not null"`
	Confirmed             int            `gorm:"not null"`
	Summary               datatypes.JSON `gorm:"type:json"`
	CreatedAt             time.Time      `gorm:"precision:3;not null;index:ix_reconciliation_runs_created"`
}

func (Run) TableName() string { return "reconciliation_runs" }

// ReconciledTransaction marks a statement line as spent; a line confirms at most one order.
type ReconciledTransaction struct {
	Fingerprint string    `gorm:"type:char(64);primaryKey"`
	OrderID     string    `gorm:"type:char(36);not null;index:ix_reconciled_tx_order_id"`
	RunID       string    `gorm:"type:char(36);not null"`
	TxDate      string    `gorm:"type:char(10);not null"`
	AmountCents int64     `gorm:"not null"`
	CreatedAt   time.Time `gorm:"precision:3;not null"`
}

func (ReconciledTransaction) TableName() string { return "reconciled_transactions" }

func Models() []any { return []any{&Run{}, &ReconciledTransaction{}} }
