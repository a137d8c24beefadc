package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config aggregates application configuration values.
type Config struct {
	HTTP          HTTPConfig
	DB            DBConfig
	Logging       LoggingConfig
	SMTP          SMTPConfig
	Mail          MailConfig
	WhatsApp      WhatsAppConfig
	Auth          AuthConfig
	Pix           PixConfig
	Payments      PaymentsConfig
	Webhook       WebhookConfig
	PublicBaseURL string
}

// HTTPConfig governs HTTP server behaviour.
type HTTPConfig struct {
	Host              string
	Port              int
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	ShutdownTimeout   time.Duration
	AllowedOriginsCSV string
}

// DBConfig selects the gorm dialector. Driver is mysql (production) or sqlite (local runs).
type DBConfig struct {
	Driver string
	DSN    string
}

// LoggingConfig controls structured logging settings.
type LoggingConfig struct {
	Level         string
	Format        string // text|json
	IncludeCaller bool
}

type SMTPConfig struct {
	Host          string
	Port          string
	User          string
	Pass          string
	TLSMode       string // none|tls|starttls
	SkipVerifyTLS bool
}

// MailConfig picks the outgoing mail transport.
type MailConfig struct {
	Driver       string // smtp|mailtrap|log
	From         string
	FromName     string
	MailtrapURL  string
	MailtrapKey  string
	AdminAddress string
}

type WhatsAppConfig struct {
	APIURL     string
	Token      string
	AdminPhone string
}

type AuthConfig struct {
	JWTSecret string
}

// PixConfig holds client-side polling knobs and the txid generator node.
type PixConfig struct {
	PollInterval    time.Duration
	MaxPollDuration time.Duration
	SnowflakeNode   int64
}

type PaymentsConfig struct {
	AsaasBaseURL       string
	MercadoPagoBaseURL string
	PagSeguroBaseURL   string
	ProviderTimeout    time.Duration
}

type WebhookConfig struct {
	RatePerSecond float64
	Burst         int
}

const (
	defaultHost            = "0.0.0.0"
	defaultPort            = 8080
	defaultReadTimeout     = 10 * time.Second
	defaultWriteTimeout    = 30 * time.Second
	defaultIdleTimeout     = 60 * time.Second
	defaultShutdownTimeout = 10 * time.Second
	defaultPollInterval    = 5 * time.Second
	defaultMaxPoll         = 30 * time.Minute
	defaultProviderTimeout = 20 * time.Second
)

// Load reads configuration from environment variables, applying defaults.
func Load() (Config, error) {
	cfg := Config{
		HTTP: HTTPConfig{
			Host:              valueOrDefault("SERVER_HOST", defaultHost),
			AllowedOriginsCSV: valueOrDefault("SERVER_ALLOWED_ORIGINS", "*"),
		},
		DB: DBConfig{
			Driver: strings.ToLower(valueOrDefault("DB_DRIVER", "mysql")),
			DSN:    os.Getenv("DB_DSN"),
		},
		Logging: LoggingConfig{
			Level:         valueOrDefault("LOG_LEVEL", "info"),
			Format:        valueOrDefault("LOG_FORMAT", "json"),
			IncludeCaller: parseBoolWithDefault("LOG_INCLUDE_CALLER", false),
		},
		SMTP: SMTPConfig{
			Host:          valueOrDefault("SMTP_HOST", "localhost"),
			Port:          valueOrDefault("SMTP_PORT", "1025"),
			User:          os.Getenv("SMTP_USER"),
			Pass:          os.Getenv("SMTP_PASS"),
			TLSMode:       valueOrDefault("SMTP_TLS_MODE", "none"),
			SkipVerifyTLS: parseBoolWithDefault("SMTP_SKIP_VERIFY", false),
		},
		Mail: MailConfig{
			Driver:       strings.ToLower(valueOrDefault("MAIL_DRIVER", "log")),
			From:         valueOrDefault("EMAIL_FROM", "pedidos@temperosnaturais.com.br"),
			FromName:     valueOrDefault("EMAIL_FROM_NAME", "Temperos Naturais"),
			MailtrapURL:  os.Getenv("MAILTRAP_API_URL"),
			MailtrapKey:  os.Getenv("MAILTRAP_API_TOKEN"),
			AdminAddress: os.Getenv("ADMIN_EMAIL"),
		},
		WhatsApp: WhatsAppConfig{
			APIURL:     os.Getenv("WHATSAPP_API_URL"),
			Token:      os.Getenv("WHATSAPP_API_TOKEN"),
			AdminPhone: os.Getenv("WHATSAPP_ADMIN_PHONE"),
		},
		Auth: AuthConfig{
			JWTSecret: os.Getenv("AUTH_JWT_SECRET"),
		},
		Pix: PixConfig{
			SnowflakeNode: int64(parseIntWithDefault("PIX_SNOWFLAKE_NODE", 1)),
		},
		Payments: PaymentsConfig{
			AsaasBaseURL:       valueOrDefault("ASAAS_BASE_URL", "https://api.asaas.com/v3"),
			MercadoPagoBaseURL: valueOrDefault("MERCADOPAGO_BASE_URL", "https://api.mercadopago.com"),
			PagSeguroBaseURL:   valueOrDefault("PAGSEGURO_BASE_URL", "https://api.pagseguro.com"),
		},
		Webhook: WebhookConfig{
			RatePerSecond: parseFloatWithDefault("WEBHOOK_RATE_RPS", 5),
			Burst:         parseIntWithDefault("WEBHOOK_RATE_BURST", 20),
		},
		PublicBaseURL: strings.TrimRight(valueOrDefault("PUBLIC_BASE_URL", "http://localhost:8080"), "/"),
	}

	port, err := parsePort("SERVER_PORT", defaultPort)
	if err != nil {
		return Config{}, err
	}
	cfg.HTTP.Port = port

	durations := []struct {
		key      string
		fallback time.Duration
		dst      *time.Duration
	}{
		{"SERVER_READ_TIMEOUT", defaultReadTimeout, &cfg.HTTP.ReadTimeout},
		{"SERVER_WRITE_TIMEOUT", defaultWriteTimeout, &cfg.HTTP.WriteTimeout},
		{"SERVER_IDLE_TIMEOUT", defaultIdleTimeout, &cfg.HTTP.IdleTimeout},
		{"SERVER_SHUTDOWN_TIMEOUT", defaultShutdownTimeout, &cfg.HTTP.ShutdownTimeout},
		{"PIX_POLL_INTERVAL", defaultPollInterval, &cfg.Pix.PollInterval},
		{"PIX_MAX_POLL_DURATION", defaultMaxPoll, &cfg.Pix.MaxPollDuration},
		{"PAYMENT_PROVIDER_TIMEOUT", defaultProviderTimeout, &cfg.Payments.ProviderTimeout},
	}
	for _, d := range durations {
		v, err := parseDurationWithDefault(d.key, d.fallback)
		if err != nil {
			return Config{}, err
		}
		*d.dst = v
	}

	if cfg.DB.Driver != "mysql" && cfg.DB.Driver != "sqlite" {
		return Config{}, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DB.Driver)
	}
	if cfg.DB.DSN == "" {
		if cfg.DB.Driver == "sqlite" {
			cfg.DB.DSN = "file:temperos.db?_pragma=busy_timeout(5000)"
		} else {
			return Config{}, fmt.Errorf("DB_DSN environment variable is required")
		}
	}

	return cfg, nil
}

// AllowedOrigins splits the CSV origin list.
func (c HTTPConfig) AllowedOrigins() []string {
	var out []string
	for _, o := range strings.Split(c.AllowedOriginsCSV, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

func valueOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseBoolWithDefault(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		val, err := strconv.ParseBool(v)
		if err != nil {
			return fallback
		}
		return val
	}
	return fallback
}

func parseIntWithDefault(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if val, err := strconv.Atoi(v); err == nil {
			return val
		}
	}
	return fallback
}

func parseFloatWithDefault(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if val, err := strconv.ParseFloat(v, 64); err == nil {
			return val
		}
	}
	return fallback
}

func parseDurationWithDefault(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func parsePort(key string, fallback int) (int, error) {
	if v := os.Getenv(key); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s value %q: %w", key, v, err)
		}
		if port <= 0 || port > 65535 {
			return 0, fmt.Errorf("port %d is out of range", port)
		}
		return port, nil
	}
	return fallback, nil
}
