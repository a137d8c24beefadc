// Package banking keeps the bank connection records used for statement imports.
package banking

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/specieecommerce-del/spice-shelf-harmony-sub000/internal/modules/settings"
)

const (
	StatusConnected    = "connected"
	StatusDisconnected = "disconnected"
	StatusPending      = "pending"
	StatusError        = "error"
)

var (
	ErrUnknownBank   = errors.New("bank connection not found")
	ErrInvalidStatus = errors.New("invalid bank connection status")
)

type Connection struct {
	BankID     string     `json:"bank_id"`
	Enabled    bool       `json:"enabled"`
	Status     string     `json:"status"`
	PixKey     string     `json:"pix_key,omitempty"`
	LastSyncAt *time.Time `json:"last_sync_at,omitempty"`
}

type UpsertInput struct {
	BankID  string
	Enabled bool
	Status  string
	PixKey  string
}

// Service stores all connections in the bank_connections settings record, keyed by bank id.
type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service { return &Service{db: db} }

func (s *Service) List(ctx context.Context) ([]Connection, error) {
	all, err := load(ctx, s.db)
	if err != nil {
		return nil, err
	}
	out := make([]Connection, 0, len(all))
	for _, c := range all {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BankID < out[j].BankID })
	return out, nil
}

// Upsert saves a connection. Connecting a bank disconnects whichever bank was connected before.
func (s *Service) Upsert(ctx context.Context, in UpsertInput) (Connection, error) {
	id := strings.ToLower(strings.TrimSpace(in.BankID))
	if id == "" {
		return Connection{}, ErrUnknownBank
	}
	status := in.Status
	if status == "" {
		status = StatusPending
	}
	switch status {
	case StatusConnected, StatusDisconnected, StatusPending, StatusError:
	default:
		return Connection{}, ErrInvalidStatus
	}

	var saved Connection
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		all, err := load(ctx, tx)
		if err != nil {
			return err
		}
		c := all[id]
		c.BankID = id
		c.Enabled = in.Enabled
		c.Status = status
		c.PixKey = strings.TrimSpace(in.PixKey)

		if c.Status == StatusConnected {
			for other, oc := range all {
				if other != id && oc.Status == StatusConnected {
					oc.Status = StatusDisconnected
					all[other] = oc
				}
			}
		}
		all[id] = c
		saved = c
		return settings.PutTx(ctx, tx, settings.KeyBankConnections, all)
	})
	return saved, err
}

// Connected returns the bank currently connected, if any.
func (s *Service) Connected(ctx context.Context) (Connection, bool, error) {
	all, err := load(ctx, s.db)
	if err != nil {
		return Connection{}, false, err
	}
	for _, c := range all {
		if c.Status == StatusConnected {
			return c, true, nil
		}
	}
	return Connection{}, false, nil
}

func (s *Service) MarkSynced(ctx context.Context, bankID string, at time.Time) error {
	id := strings.ToLower(strings.TrimSpace(bankID))
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		all, err := load(ctx, tx)
		if err != nil {
			return err
		}
		c, ok := all[id]
		if !ok {
			return ErrUnknownBank
		}
		c.LastSyncAt = &at
		all[id] = c
		return settings.PutTx(ctx, tx, settings.KeyBankConnections, all)
	})
}

func load(ctx context.Context, db *gorm.DB) (map[string]Connection, error) {
	all := map[string]Connection{}
	if _, err := settings.GetTx(ctx, db, settings.KeyBankConnections, &all); err != nil {
		return nil, err
	}
	if all == nil {
		all = map[string]Connection{}
	}
	return all, nil
}
