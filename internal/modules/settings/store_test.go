package settings

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specieecommerce-del/spice-shelf-harmony-sub000/internal/database/dbtest"
)

func TestStore_GetPut(t *testing.T) {
	s := NewStore(dbtest.Open(t, &Record{}))
	ctx := context.Background()

	var gw GatewaySettings
	ok, err := s.Get(ctx, GatewayKey("stone"), &gw)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Put(ctx, GatewayKey("stone"), GatewaySettings{Enabled: true, PaymentLink: "https://pay.example/1"}))
	require.NoError(t, s.Put(ctx, GatewayKey("stone"), GatewaySettings{Enabled: true, PaymentLink: "https://pay.example/2"}))

	ok, err = s.Get(ctx, "stone_settings", &gw)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "https://pay.example/2", gw.PaymentLink)

	raw, ok, err := s.Raw(ctx, "stone_settings")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Contains(t, string(raw), "payment_link")
}

func TestStore_PixOverrideWins(t *testing.T) {
	s := NewStore(dbtest.Open(t, &Record{}))
	ctx := context.Background()

	_, ok, err := s.Pix(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	base := PixSettings{Enabled: true, PixKey: "11222333000181", KeyType: "cnpj", MerchantName: "Loja", MerchantCity: "Recife"}
	require.NoError(t, s.Put(ctx, KeyPix, base))
	require.NoError(t, s.Put(ctx, KeyPixOverride, PixSettings{Enabled: false, PixKey: "x@y.com", KeyType: "email", MerchantName: "Outra", MerchantCity: "Natal"}))

	got, ok, err := s.Pix(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "11222333000181", got.PixKey)

	require.NoError(t, s.Put(ctx, KeyPixOverride, PixSettings{Enabled: true, PixKey: "x@y.com", KeyType: "email", MerchantName: "Outra", MerchantCity: "Natal"}))
	got, ok, err = s.Pix(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "x@y.com", got.PixKey)
}

func TestStore_WebhookSecretPrefersRegisteredSettings(t *testing.T) {
	s := NewStore(dbtest.Open(t, &Record{}))
	ctx := context.Background()

	secret, err := s.WebhookSecret(ctx)
	require.NoError(t, err)
	assert.Empty(t, secret)

	require.NoError(t, s.Put(ctx, KeyBoleto, BoletoSettings{WebhookSecret: "manual-secret"}))
	secret, err = s.WebhookSecret(ctx)
	require.NoError(t, err)
	assert.Equal(t, "manual-secret", secret)

	require.NoError(t, s.Put(ctx, KeyBoletoRegistered, BoletoRegisteredSettings{WebhookSecret: "asaas-secret"}))
	secret, err = s.WebhookSecret(ctx)
	require.NoError(t, err)
	assert.Equal(t, "asaas-secret", secret)
}
