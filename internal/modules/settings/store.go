package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Store struct{ db *gorm.DB }

func NewStore(db *gorm.DB) *Store { return &Store{db: db} }

// Get decodes the value stored under key into dst. It reports false when the key is absent.
func (s *Store) Get(ctx context.Context, key string, dst any) (bool, error) {
	return GetTx(ctx, s.db, key, dst)
}

// GetTx is Get bound to an open transaction.
func GetTx(ctx context.Context, tx *gorm.DB, key string, dst any) (bool, error) {
	var rec Record
	err := tx.WithContext(ctx).Where(&Record{Key: key}).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if len(rec.Value) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(rec.Value, dst); err != nil {
		return false, fmt.Errorf("settings %s: %w", key, err)
	}
	return true, nil
}

func (s *Store) Put(ctx context.Context, key string, v any) error {
	return PutTx(ctx, s.db, key, v)
}

func PutTx(ctx context.Context, tx *gorm.DB, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("settings %s: %w", key, err)
	}
	rec := Record{Key: key, Value: datatypes.JSON(raw), UpdatedAt: time.Now()}
	return tx.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&rec).Error
}

// Raw returns the stored JSON document, used by the admin settings endpoint.
func (s *Store) Raw(ctx context.Context, key string) (json.RawMessage, bool, error) {
	var rec Record
	err := s.db.WithContext(ctx).Where(&Record{Key: key}).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return json.RawMessage(rec.Value), true, nil
}

// Pix returns the effective PIX configuration: an enabled and complete override wins.
func (s *Store) Pix(ctx context.Context) (PixSettings, bool, error) {
	var override PixSettings
	ok, err := s.Get(ctx, KeyPixOverride, &override)
	if err != nil {
		return PixSettings{}, false, err
	}
	if ok && override.Enabled && override.Complete() {
		return override, true, nil
	}
	var base PixSettings
	ok, err = s.Get(ctx, KeyPix, &base)
	if err != nil {
		return PixSettings{}, false, err
	}
	if !ok || !base.Complete() {
		return PixSettings{}, false, nil
	}
	return base, true, nil
}

// WebhookSecret looks up the boleto webhook secret, registered settings first.
func (s *Store) WebhookSecret(ctx context.Context) (string, error) {
	var reg BoletoRegisteredSettings
	if ok, err := s.Get(ctx, KeyBoletoRegistered, &reg); err != nil {
		return "", err
	} else if ok && reg.WebhookSecret != "" {
		return reg.WebhookSecret, nil
	}
	var manual BoletoSettings
	if ok, err := s.Get(ctx, KeyBoleto, &manual); err != nil {
		return "", err
	} else if ok && manual.WebhookSecret != "" {
		return manual.WebhookSecret, nil
	}
	return "", nil
}
