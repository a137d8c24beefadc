// Package app wires configuration, storage, services and HTTP handlers together.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/specieecommerce-del/spice-shelf-harmony-sub000/internal/config"
	"github.com/specieecommerce-del/spice-shelf-harmony-sub000/internal/database"
	"github.com/specieecommerce-del/spice-shelf-harmony-sub000/internal/http/handlers"
	"github.com/specieecommerce-del/spice-shelf-harmony-sub000/internal/http/handlers/admin"
	"github.com/specieecommerce-del/spice-shelf-harmony-sub000/internal/http/middleware"
	"github.com/specieecommerce-del/spice-shelf-harmony-sub000/internal/http/server"
	"github.com/specieecommerce-del/spice-shelf-harmony-sub000/internal/mailer"
	"github.com/specieecommerce-del/spice-shelf-harmony-sub000/internal/modules/banking"
	"github.com/specieecommerce-del/spice-shelf-harmony-sub000/internal/modules/cardgateway"
	"github.com/specieecommerce-del/spice-shelf-harmony-sub000/internal/modules/checkout"
	"github.com/specieecommerce-del/spice-shelf-harmony-sub000/internal/modules/coupons"
	"github.com/specieecommerce-del/spice-shelf-harmony-sub000/internal/modules/notify"
	"github.com/specieecommerce-del/spice-shelf-harmony-sub000/internal/modules/orders"
	"github.com/specieecommerce-del/spice-shelf-harmony-sub000/internal/modules/payments"
	"github.com/specieecommerce-del/spice-shelf-harmony-sub000/internal/modules/pix"
	"github.com/specieecommerce-del/spice-shelf-harmony-sub000/internal/modules/reconciliation"
	"github.com/specieecommerce-del/spice-shelf-harmony-sub000/internal/modules/settings"
	"github.com/specieecommerce-del/spice-shelf-harmony-sub000/internal/storage"
)

// Models lists every table in migration order.
func Models() []any {
	out := []any{&settings.Record{}, &coupons.Coupon{}}
	out = append(out, orders.Models()...)
	out = append(out, payments.Models()...)
	out = append(out, reconciliation.Models()...)
	out = append(out, notify.Models()...)
	return out
}

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(Models()...)
}

// App holds the long-lived services of one process.
type App struct {
	Config  config.Config
	Logger  *slog.Logger
	DB      *gorm.DB
	Archive storage.Archive

	Settings *settings.Store
	Coupons  *coupons.Service
	Banks    *banking.Service
	Notify   *notify.Dispatcher
	Pix      *checkout.PixService
	Boleto   *checkout.BoletoService
	Card     *checkout.CardService
	Status   *checkout.StatusService
	Webhooks *payments.WebhookService
	Recon    *reconciliation.Service
	Gateways *cardgateway.Resolver
}

// New opens the database and builds every service. The statement archive is optional.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	db, err := database.Open(cfg.DB, logger)
	if err != nil {
		return nil, err
	}
	return Build(ctx, cfg, logger, db)
}

// Build wires the services on an already opened database.
func Build(ctx context.Context, cfg config.Config, logger *slog.Logger, db *gorm.DB) (*App, error) {
	mail, err := mailer.New(cfg, logger)
	if err != nil {
		return nil, err
	}
	txids, err := pix.NewTxIDGenerator(cfg.Pix.SnowflakeNode)
	if err != nil {
		return nil, fmt.Errorf("pix txid generator: %w", err)
	}

	hc := &http.Client{Timeout: cfg.Payments.ProviderTimeout}
	st := settings.NewStore(db)
	cps := coupons.NewService(db)
	banks := banking.NewService(db)
	registry := payments.NewRegistry(st, cfg.Payments, hc)

	var wa notify.Messenger
	if cfg.WhatsApp.APIURL != "" {
		wa = notify.NewWhatsAppClient(cfg.WhatsApp.APIURL, cfg.WhatsApp.Token, nil)
	}
	dispatcher := notify.NewDispatcher(db, mail, wa, st, notify.Config{
		From:       cfg.Mail.From,
		FromName:   cfg.Mail.FromName,
		AdminEmail: cfg.Mail.AdminAddress,
		AdminPhone: cfg.WhatsApp.AdminPhone,
	}, logger)

	a := &App{
		Config:   cfg,
		Logger:   logger,
		DB:       db,
		Settings: st,
		Coupons:  cps,
		Banks:    banks,
		Notify:   dispatcher,
		Pix:      checkout.NewPixService(db, st, cps, txids, logger),
		Boleto:   checkout.NewBoletoService(db, st, cps, registry, logger),
		Card:     checkout.NewCardService(db, cps, registry, cfg.PublicBaseURL, logger),
		Status:   checkout.NewStatusService(db, dispatcher, logger),
		Webhooks: payments.NewWebhookService(db, st, dispatcher, logger),
		Recon:    reconciliation.NewService(db, reconciliation.NewMatcher(reconciliation.DefaultPolicy()), dispatcher, banks, logger),
		Gateways: cardgateway.NewResolver(st),
	}

	arch, err := storage.FromEnv(ctx)
	if err != nil {
		logger.Warn("statement archive disabled", "err", err)
	} else {
		a.Archive = arch.Archive
		logger.Info("statement archive ready", "driver", arch.Driver)
	}
	return a, nil
}

// Router builds the HTTP handler tree.
func (a *App) Router() *gin.Engine {
	return server.NewRouter(a.Logger, server.RouterDependencies{
		Health: dbProbe{db: a.DB},
		Functions: &handlers.FunctionsHandler{
			Logger:   a.Logger,
			Pix:      a.Pix,
			Boleto:   a.Boleto,
			Status:   a.Status,
			Coupons:  a.Coupons,
			Gateways: a.Gateways,
			Cards:    cardgateway.NewDispatcher(a.Card),
			Orders:   orders.NewRepo(a.DB),
			Notify:   a.Notify,
		},
		Webhooks:       handlers.NewWebhookHandler(a.Logger, a.Webhooks),
		Orders:         admin.NewOrdersHandler(a.DB),
		Settings:       admin.NewSettingsHandler(a.Settings),
		Banking:        admin.NewBankingHandler(a.Banks),
		Statements:     admin.NewStatementsHandler(a.Logger, a.Recon, a.Archive),
		AllowedOrigins: a.Config.HTTP.AllowedOrigins(),
		AdminSecret:    a.Config.Auth.JWTSecret,
		WebhookLimiter: middleware.NewIPRateLimiter(a.Config.Webhook.RatePerSecond, a.Config.Webhook.Burst),
	})
}

// Close waits for pending notifications and releases the database.
func (a *App) Close() error {
	a.Notify.Wait()
	sqlDB, err := a.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

type dbProbe struct{ db *gorm.DB }

func (p dbProbe) Probe(ctx context.Context) error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
