package payments

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/specieecommerce-del/spice-shelf-harmony-sub000/internal/modules/orders"
)

const webhookProvider = "boleto-webhook"

// PaidNotifier is told about orders that became paid; it must not block.
type PaidNotifier interface {
	OrderPaid(ctx context.Context, o orders.Order)
}

// SecretSource yields the shared webhook secret, "" when none is configured.
type SecretSource interface {
	WebhookSecret(ctx context.Context) (string, error)
}

type WebhookResult struct {
	Updated    bool    `json:"updated"`
	TitleError *string `json:"title_error"`
	Duplicate  bool    `json:"-"`
}

type WebhookService struct {
	db       *gorm.DB
	secrets  SecretSource
	notifier PaidNotifier
	logger   *slog.Logger
	now      func() time.Time
}

func NewWebhookService(db *gorm.DB, secrets SecretSource, notifier PaidNotifier, logger *slog.Logger) *WebhookService {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebhookService{db: db, secrets: secrets, notifier: notifier, logger: logger, now: time.Now}
}

// Authorize checks the presented secret against the stored one.
func (s *WebhookService) Authorize(ctx context.Context, presented string) error {
	secret, err := s.secrets.WebhookSecret(ctx)
	if err != nil {
		return err
	}
	if secret == "" || presented == "" {
		return ErrUnauthorized
	}
	if subtle.ConstantTimeCompare([]byte(secret), []byte(presented)) != 1 {
		return ErrUnauthorized
	}
	return nil
}

// webhookPayload accepts the generic shape and the Asaas notification shape.
type webhookPayload struct {
	ProviderTitleID string `json:"provider_title_id"`
	OrderNSU        string `json:"order_nsu"`
	Status          string `json:"status"`

	Event   string `json:"event"`
	Payment *struct {
		ID                string `json:"id"`
		Status            string `json:"status"`
		ExternalReference string `json:"externalReference"`
	} `json:"payment"`
}

type titleUpdate struct {
	titleID  string
	orderNSU string
	status   string
	raw      string
	event    string
}

func parseWebhook(raw []byte) (titleUpdate, error) {
	var p webhookPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return titleUpdate{}, ErrInvalidPayload
	}
	u := titleUpdate{
		titleID:  strings.TrimSpace(p.ProviderTitleID),
		orderNSU: strings.TrimSpace(p.OrderNSU),
		raw:      strings.TrimSpace(p.Status),
		event:    "status_update",
	}
	if p.Payment != nil {
		u.event = p.Event
		if u.titleID == "" {
			u.titleID = strings.TrimSpace(p.Payment.ID)
		}
		if u.orderNSU == "" {
			u.orderNSU = strings.TrimSpace(p.Payment.ExternalReference)
		}
		if u.raw == "" {
			u.raw = p.Payment.Status
		}
		if u.raw == "" {
			u.raw = strings.TrimPrefix(p.Event, "PAYMENT_")
		}
	}
	if u.event == "" {
		u.event = "status_update"
	}
	u.status = NormalizeStatus(u.raw)
	return u, nil
}

// NormalizeStatus maps provider status names onto title statuses; "" when unknown.
func NormalizeStatus(s string) string {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "RECEIVED", "CONFIRMED", "RECEIVED_IN_CASH", "PAID":
		return TitlePaid
	case "OVERDUE", "EXPIRED":
		return TitleExpired
	case "DELETED", "REFUNDED", "CANCELED", "CANCELLED":
		return TitleCanceled
	case "PENDING", "AWAITING_RISK_ANALYSIS":
		return TitlePending
	case "ISSUED":
		return TitleIssued
	default:
		return ""
	}
}

// Handle applies one webhook delivery. A body already processed is a no-op.
func (s *WebhookService) Handle(ctx context.Context, raw []byte) (WebhookResult, error) {
	u, err := parseWebhook(raw)
	if err != nil {
		return WebhookResult{}, err
	}

	sum := sha256.Sum256(raw)
	eventID := hex.EncodeToString(sum[:])

	var (
		res  WebhookResult
		paid []orders.Order
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := s.now()

		pe := ProviderEvent{
			ID:          uuid.NewString(),
			Provider:    webhookProvider,
			EventID:     eventID,
			EventType:   truncate(u.event, 64),
			PayloadJSON: datatypes.JSON(raw),
			ReceivedAt:  now,
		}
		ins := tx.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&pe)
		if ins.Error != nil {
			return ins.Error
		}
		if ins.RowsAffected == 0 {
			var prev ProviderEvent
			if err := tx.WithContext(ctx).
				Where("provider = ? AND event_id = ?", webhookProvider, eventID).
				First(&prev).Error; err != nil {
				return err
			}
			if prev.ProcessedAt != nil {
				res.Duplicate = true
				return nil
			}
			pe = prev
		}

		var applyErr error
		paid, applyErr = s.apply(ctx, tx, u, eventID, now, &res)
		if applyErr != nil {
			return applyErr
		}

		processed := now
		return tx.WithContext(ctx).Model(&ProviderEvent{}).
			Where("id = ?", pe.ID).
			Updates(map[string]any{"processed_at": &processed, "process_error": nil}).Error
	})
	if err != nil {
		s.recordFailure(ctx, eventID, u.event, raw, err)
		s.logger.ErrorContext(ctx, "webhook apply failed", "provider", webhookProvider, "event_id", eventID, "err", err)
		return WebhookResult{}, err
	}

	if res.Duplicate {
		s.logger.InfoContext(ctx, "webhook event deduplicated", "provider", webhookProvider, "event_id", eventID)
		return res, nil
	}

	s.logger.InfoContext(ctx, "webhook event processed",
		"provider", webhookProvider,
		"event_id", eventID,
		"provider_title_id", u.titleID,
		"order_nsu", u.orderNSU,
		"status", u.status,
		"updated", res.Updated,
	)
	if s.notifier != nil {
		for _, o := range paid {
			s.notifier.OrderPaid(ctx, o)
		}
	}
	return res, nil
}

func (s *WebhookService) apply(ctx context.Context, tx *gorm.DB, u titleUpdate, eventID string, now time.Time, res *WebhookResult) ([]orders.Order, error) {
	if u.status == "" {
		return nil, nil
	}

	var orderIDs []string
	if u.titleID != "" {
		var t PaymentTitle
		err := tx.WithContext(ctx).
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("provider_title_id = ?", u.titleID).
			First(&t).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			msg := "título não encontrado: " + u.titleID
			res.TitleError = &msg
		case err != nil:
			return nil, err
		default:
			changed, err := applyTitleStatus(ctx, tx, t, u.status, now)
			if err != nil {
				return nil, err
			}
			res.Updated = res.Updated || changed
			if u.status == TitlePaid {
				orderIDs = append(orderIDs, t.OrderID)
			}
		}
	}

	if u.orderNSU != "" && u.status == TitlePaid {
		var o orders.Order
		err := tx.WithContext(ctx).Where("order_nsu = ?", u.orderNSU).First(&o).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			s.logger.WarnContext(ctx, "webhook order not found", "order_nsu", u.orderNSU)
		case err != nil:
			return nil, err
		default:
			orderIDs = append(orderIDs, o.ID)
		}
	}

	var paid []orders.Order
	seen := map[string]bool{}
	for _, id := range orderIDs {
		if seen[id] {
			continue
		}
		seen[id] = true

		o, changed, err := orders.MarkPaid(ctx, tx, orders.PaymentSignal{
			OrderID: id,
			Actor:   "webhook",
			Source:  "title",
			RefID:   eventID,
		})
		if err != nil {
			return nil, err
		}
		n, err := SettleOrderTitles(ctx, tx, id, now)
		if err != nil {
			return nil, err
		}
		if changed {
			paid = append(paid, o)
		}
		res.Updated = res.Updated || changed || n > 0
	}
	return paid, nil
}

// recordFailure keeps the failed delivery visible; the transaction that held it rolled back.
func (s *WebhookService) recordFailure(ctx context.Context, eventID, eventType string, raw []byte, cause error) {
	if !json.Valid(raw) {
		return
	}
	msg := truncate(cause.Error(), 250)
	pe := ProviderEvent{
		ID:           uuid.NewString(),
		Provider:     webhookProvider,
		EventID:      eventID,
		EventType:    truncate(eventType, 64),
		PayloadJSON:  datatypes.JSON(raw),
		ReceivedAt:   s.now(),
		ProcessError: &msg,
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "provider"}, {Name: "event_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"process_error"}),
	}).Create(&pe).Error
	if err != nil {
		s.logger.WarnContext(ctx, "failed to persist provider event error", "event_id", eventID, "err", err)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
