package settings

import (
	"time"

	"gorm.io/datatypes"
)

// Record is a schemaless JSON value stored under a string key.
type Record struct {
	Key       string         `gorm:"type:varchar(96);primaryKey"`
	Value     datatypes.JSON `gorm:"type:json;not null"`
	UpdatedAt time.Time      `gorm:"precision:3;not null"`
}

func (Record) TableName() string { return "settings" }

const (
	KeyBankConnections  = "bank_connections"
	KeyPix              = "pix_settings"
	KeyPixOverride      = "pix_settings_override"
	KeyBoleto           = "boleto_settings"
	KeyBoletoRegistered = "boleto_registered_settings"
	KeyNotification     = "notification_settings"
	gatewayKeySuffix    = "_settings"
)

// GatewayKey returns the settings key of a card gateway, e.g. "mercadopago_settings".
func GatewayKey(gateway string) string { return gateway + gatewayKeySuffix }

// PixSettings configures the static BR Code emitted at checkout.
type PixSettings struct {
	Enabled      bool   `json:"enabled"`
	PixKey       string `json:"pix_key"`
	KeyType      string `json:"key_type"`
	MerchantName string `json:"merchant_name"`
	MerchantCity string `json:"merchant_city"`
	Description  string `json:"description,omitempty"`
}

func (p PixSettings) Complete() bool {
	return p.PixKey != "" && p.MerchantName != "" && p.MerchantCity != ""
}

// BoletoSettings holds the manual bank-transfer instructions.
type BoletoSettings struct {
	Enabled       bool   `json:"enabled"`
	BankName      string `json:"bank_name"`
	BankCode      string `json:"bank_code"`
	Agency        string `json:"agency"`
	Account       string `json:"account"`
	Beneficiary   string `json:"beneficiary"`
	BeneficiaryID string `json:"beneficiary_document,omitempty"`
	DueDays       int    `json:"due_days"`
	Instructions  string `json:"instructions,omitempty"`
	WebhookSecret string `json:"webhook_secret,omitempty"`
}

// BoletoRegisteredSettings configures the registered boleto issuer (Asaas).
type BoletoRegisteredSettings struct {
	Enabled       bool   `json:"enabled"`
	Provider      string `json:"provider"`
	APIKey        string `json:"api_key"`
	Sandbox       bool   `json:"sandbox"`
	DueDays       int    `json:"due_days"`
	WebhookSecret string `json:"webhook_secret,omitempty"`
}

// GatewaySettings is the per card gateway record. Which fields are set decides the gateway variant.
type GatewaySettings struct {
	Enabled         bool   `json:"enabled"`
	WhatsAppNumber  string `json:"whatsapp_number,omitempty"`
	PaymentLink     string `json:"payment_link,omitempty"`
	Instructions    string `json:"instructions,omitempty"`
	CheckoutMode    string `json:"checkout_mode,omitempty"`
	AccessToken     string `json:"access_token,omitempty"`
	PublicKey       string `json:"public_key,omitempty"`
	MaxInstallments int    `json:"max_installments,omitempty"`
}

type NotificationSettings struct {
	AdminEmail     string `json:"admin_email,omitempty"`
	WhatsAppNumber string `json:"whatsapp_number,omitempty"`
	SendCustomer   bool   `json:"send_customer_email"`
	SendWhatsApp   bool   `json:"send_whatsapp"`
}
