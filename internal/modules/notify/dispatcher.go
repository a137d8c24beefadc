// Package notify sends the payment confirmation e-mail and the store's WhatsApp alert.
package notify

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/specieecommerce-del/spice-shelf-harmony-sub000/internal/mailer"
	"github.com/specieecommerce-del/spice-shelf-harmony-sub000/internal/modules/orders"
	"github.com/specieecommerce-del/spice-shelf-harmony-sub000/internal/modules/settings"
)

const (
	OutcomeSent      = "sent"
	OutcomeDuplicate = "duplicate"
	OutcomeSkipped   = "skipped"
	OutcomeFailed    = "failed"
)

type Config struct {
	From       string
	FromName   string
	AdminEmail string
	AdminPhone string
	Timeout    time.Duration
}

type SettingsReader interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
}

// Report is the per-channel outcome of one delivery attempt.
type Report struct {
	CustomerEmail string `json:"customer_email"`
	AdminEmail    string `json:"admin_email"`
	WhatsApp      string `json:"whatsapp"`
}

type Dispatcher struct {
	db       *gorm.DB
	orders   *orders.Repo
	mail     mailer.Service
	wa       Messenger
	settings SettingsReader
	cfg      Config
	logger   *slog.Logger
	wg       sync.WaitGroup
}

func NewDispatcher(db *gorm.DB, mail mailer.Service, wa Messenger, st SettingsReader, cfg Config, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Dispatcher{
		db:       db,
		orders:   orders.NewRepo(db),
		mail:     mail,
		wa:       wa,
		settings: st,
		cfg:      cfg,
		logger:   logger,
	}
}

// OrderPaid delivers in the background. It never blocks the caller and never fails it.
func (d *Dispatcher) OrderPaid(ctx context.Context, o orders.Order) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.cfg.Timeout)
		defer cancel()
		d.Deliver(ctx, o)
	}()
}

// Wait blocks until background deliveries finish.
func (d *Dispatcher) Wait() { d.wg.Wait() }

// Deliver sends every notification of a paid order that was not sent before.
func (d *Dispatcher) Deliver(ctx context.Context, o orders.Order) Report {
	prefs := d.preferences(ctx)

	items, err := d.orders.Items(ctx, o.ID)
	if err != nil {
		d.logger.WarnContext(ctx, "notify: load items failed", "order_nsu", o.NSU, "err", err)
	}
	sum := Summary(o, items)

	rep := Report{CustomerEmail: OutcomeSkipped, AdminEmail: OutcomeSkipped, WhatsApp: OutcomeSkipped}

	if prefs.SendCustomer && o.CustomerEmail != "" {
		rep.CustomerEmail = d.once(ctx, o, KindCustomerEmail, o.CustomerEmail, func() error {
			return d.mail.Send(ctx, mailer.Email{
				From:     d.cfg.From,
				FromName: d.cfg.FromName,
				To:       []string{o.CustomerEmail},
				Subject:  "Pagamento confirmado - pedido " + o.NSU,
				TextBody: render(customerText, sum),
				HTMLBody: render(customerHTML, sum),
			})
		})
	}

	if prefs.AdminEmail != "" {
		rep.AdminEmail = d.once(ctx, o, KindAdminEmail, prefs.AdminEmail, func() error {
			return d.mail.Send(ctx, mailer.Email{
				From:     d.cfg.From,
				FromName: d.cfg.FromName,
				To:       []string{prefs.AdminEmail},
				ReplyTo:  o.CustomerEmail,
				Subject:  "Novo pedido pago " + o.NSU,
				TextBody: render(adminText, sum),
			})
		})
	}

	if prefs.SendWhatsApp && prefs.WhatsAppNumber != "" && d.wa != nil {
		rep.WhatsApp = d.once(ctx, o, KindWhatsApp, prefs.WhatsAppNumber, func() error {
			return d.wa.SendText(ctx, prefs.WhatsAppNumber, render(adminText, sum))
		})
	}
	return rep
}

// once claims (order, kind) and runs send. A failed send releases the claim so a later
// trigger can retry.
func (d *Dispatcher) once(ctx context.Context, o orders.Order, kind, recipient string, send func() error) string {
	claim := Log{
		ID:        uuid.NewString(),
		OrderID:   o.ID,
		Kind:      kind,
		Recipient: recipient,
		CreatedAt: time.Now(),
	}
	res := d.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&claim)
	if res.Error != nil {
		d.logger.ErrorContext(ctx, "notify: claim failed", "order_nsu", o.NSU, "kind", kind, "err", res.Error)
		return OutcomeFailed
	}
	if res.RowsAffected == 0 {
		return OutcomeDuplicate
	}

	if err := send(); err != nil {
		d.logger.WarnContext(ctx, "notification failed", "order_nsu", o.NSU, "kind", kind, "err", err)
		if derr := d.db.WithContext(ctx).Delete(&Log{}, "id = ?", claim.ID).Error; derr != nil {
			d.logger.ErrorContext(ctx, "notify: release claim failed", "order_nsu", o.NSU, "kind", kind, "err", derr)
		}
		return OutcomeFailed
	}
	d.logger.InfoContext(ctx, "notification sent", "order_nsu", o.NSU, "kind", kind)
	return OutcomeSent
}

// preferences merges the stored notification settings over the env defaults.
func (d *Dispatcher) preferences(ctx context.Context) settings.NotificationSettings {
	prefs := settings.NotificationSettings{
		AdminEmail:     d.cfg.AdminEmail,
		WhatsAppNumber: d.cfg.AdminPhone,
		SendCustomer:   true,
		SendWhatsApp:   true,
	}
	if d.settings == nil {
		return prefs
	}
	var stored settings.NotificationSettings
	ok, err := d.settings.Get(ctx, settings.KeyNotification, &stored)
	if err != nil {
		d.logger.WarnContext(ctx, "notify: settings unavailable", "err", err)
		return prefs
	}
	if !ok {
		return prefs
	}
	prefs.SendCustomer = stored.SendCustomer
	prefs.SendWhatsApp = stored.SendWhatsApp
	if v := strings.TrimSpace(stored.AdminEmail); v != "" {
		prefs.AdminEmail = v
	}
	if v := strings.TrimSpace(stored.WhatsAppNumber); v != "" {
		prefs.WhatsAppNumber = v
	}
	return prefs
}
