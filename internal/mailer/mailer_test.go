package mailer

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specieecommerce-del/spice-shelf-harmony-sub000/internal/config"
	"github.com/specieecommerce-del/spice-shelf-harmony-sub000/internal/logging"
)

func TestBuildMIMEMessage(t *testing.T) {
	raw, err := buildMIMEMessage(Email{
		FromName: "Temperos Naturais",
		From:     "pedidos@example.com",
		To:       []string{"maria@example.com"},
		ReplyTo:  "contato@example.com",
		Subject:  "Seu pedido está pago",
		TextBody: "Olá",
		HTMLBody: "<p>Olá</p>",
	}, "example.com")
	require.NoError(t, err)
	assert.Contains(t, raw, "To: maria@example.com\r\n")
	assert.Contains(t, raw, "Reply-To: contato@example.com\r\n")
	assert.Contains(t, raw, "multipart/alternative")
	assert.Contains(t, raw, "=?utf-8?q?")

	assert.Contains(t, raw, "Content-Transfer-Encoding: quoted-printable")
	assert.Contains(t, raw, "Ol=C3=A1")

	_, err = buildMIMEMessage(Email{From: "a@b", Subject: "x", TextBody: "y"}, "b")
	assert.ErrorIs(t, err, ErrInvalidEmail)
}

func TestBuildMIMEMessage_StripsHeaderBreaks(t *testing.T) {
	raw, err := buildMIMEMessage(Email{
		From:     "pedidos@example.com",
		To:       []string{"loja@example.com"},
		ReplyTo:  "maria@example.com\r\nBcc: intruso@example.com",
		Subject:  "Novo pedido pago TN2026101500001",
		TextBody: "ok",
	}, "example.com")
	require.NoError(t, err)
	assert.NotContains(t, raw, "\r\nBcc:")
	assert.Contains(t, raw, "Content-Type: text/plain; charset=UTF-8\r\n")
}

func TestMailtrapMailer_Send(t *testing.T) {
	var got mailtrapPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	m := NewMailtrapMailer(srv.URL, "tok", srv.Client())
	err := m.Send(context.Background(), Email{
		From:     "pedidos@example.com",
		To:       []string{"maria@example.com"},
		Subject:  "Pedido TN2026101500001",
		TextBody: "ok",
	})
	require.NoError(t, err)
	require.Len(t, got.To, 1)
	assert.Equal(t, "maria@example.com", got.To[0].Email)
	assert.Equal(t, "Pedido TN2026101500001", got.Subject)
}

func TestMailtrapMailer_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"errors":["Unauthorized"]}`))
	}))
	defer srv.Close()

	err := NewMailtrapMailer(srv.URL, "bad", srv.Client()).Send(context.Background(), Email{From: "a@b.c", To: []string{"d@e.f"}, Subject: "s"})
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "http 401"))
}

func TestNew_SelectsDriver(t *testing.T) {
	cfg := config.Config{}
	cfg.Mail.Driver = "log"
	m, err := New(cfg, logging.Discard())
	require.NoError(t, err)
	assert.IsType(t, &LogMailer{}, m)

	cfg.Mail.Driver = "smtp"
	m, err = New(cfg, nil)
	require.NoError(t, err)
	assert.IsType(t, &SMTPMailer{}, m)

	cfg.Mail.Driver = "pigeon"
	_, err = New(cfg, nil)
	assert.Error(t, err)
}

func TestMock_RecordsAndFails(t *testing.T) {
	m := &Mock{}
	ctx := context.Background()
	ok := Email{From: "pedidos@example.com", To: []string{"maria@example.com"}, Subject: "Pedido pago", TextBody: "ok"}

	require.NoError(t, m.Send(ctx, ok))
	assert.ErrorIs(t, m.Send(ctx, Email{From: "pedidos@example.com", Subject: "sem destino", TextBody: "x"}), ErrInvalidEmail)

	down := errors.New("caixa cheia")
	m.FailFor("joao@example.com", down)
	assert.ErrorIs(t, m.Send(ctx, Email{From: "pedidos@example.com", To: []string{"joao@example.com"}, Subject: "Pedido pago", TextBody: "ok"}), down)

	require.Len(t, m.Sent(), 1)
	assert.Len(t, m.SentTo("maria@example.com"), 1)
	assert.Empty(t, m.SentTo("joao@example.com"))
}
