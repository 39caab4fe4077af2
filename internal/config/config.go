package config

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

type Config struct {
	Port        string `env:"PORT" env-default:"8585"`
	MetricsAddr string `env:"METRICS_ADDR" env-default:":9090"`
	LogFormat   string `env:"LOG_FORMAT" env-default:"text"`
	LogLevel    string `env:"LOG_LEVEL" env-default:"info"`

	API    API
	Ledger Ledger

	PaymentMode     string        `env:"PAYMENT_MODE" env-default:"simulated"`
	PaymentSimDelay time.Duration `env:"PAYMENT_SIM_DELAY" env-default:"2s"`

	MembershipPricing string  `env:"MEMBERSHIP_PRICING" env-default:"replace"`
	PassPrice         float64 `env:"PASS_PRICE" env-default:"1200"`
	MonthlyPrice      float64 `env:"MONTHLY_PRICE" env-default:"49.99"`

	SubmitGuard bool `env:"SUBMIT_GUARD" env-default:"true"`

	Kafka Kafka
	Mail  Mail

	SupportEmail string `env:"SUPPORT_EMAIL" env-default:"support@detailacademy.local"`

	CookieDomain string `env:"COOKIE_DOMAIN"`
	CookieSecure bool   `env:"COOKIE_SECURE" env-default:"false"`
	CSRFKey      []byte
	SessionKey   []byte
}

type API struct {
	BaseURL string        `env:"API_BASE_URL" env-default:"http://localhost:4000/api"`
	Timeout time.Duration `env:"API_TIMEOUT" env-default:"5m"`
	Token   string        `env:"API_TOKEN"`

	RetryAttempts uint          `env:"API_RETRY_ATTEMPTS" env-default:"3"`
	RetryDelay    time.Duration `env:"API_RETRY_DELAY" env-default:"250ms"`
	RetryMaxDelay time.Duration `env:"API_RETRY_MAX_DELAY" env-default:"2s"`
}

type Ledger struct {
	Path       string        `env:"LEDGER_PATH" env-default:"./checkout.db"`
	StaleAfter time.Duration `env:"LEDGER_STALE_AFTER" env-default:"2m"`
	Retention  time.Duration `env:"LEDGER_RETENTION" env-default:"720h"`
	// PruneSchedule is a cron expression.
	PruneSchedule string `env:"LEDGER_PRUNE_SCHEDULE" env-default:"@hourly"`
}

type Kafka struct {
	Brokers []string `env:"KAFKA_BROKERS" env-separator:","`
	Topic   string   `env:"KAFKA_TOPIC" env-default:"guest-checkouts"`
	Version string   `env:"KAFKA_VERSION"`
}

type Mail struct {
	SendGridKey string `env:"SENDGRID_API_KEY"`
	FromName    string `env:"MAIL_FROM_NAME" env-default:"Detail Academy"`
	From        string `env:"MAIL_FROM" env-default:"no-reply@detailacademy.local"`
}

// LoadConfig reads an optional .env file and then the environment.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("Could not read .env file", "error", err)
	}

	cfg := &Config{}
	if err := cfg.ReadEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ReadEnv fills cfg from the process environment only.
func (cfg *Config) ReadEnv() error {
	if err := cleanenv.ReadEnv(cfg); err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	cfg.CSRFKey = loadKey("CSRF_KEY")
	cfg.SessionKey = loadKey("SESSION_KEY")

	// Make sure port is valid
	if _, err := strconv.Atoi(cfg.Port); err != nil {
		slog.Error("Invalid PORT environment variable. Falling back to default.", "PORT", cfg.Port)
		cfg.Port = "8585"
	}
	switch cfg.PaymentMode {
	case "simulated", "remote":
	default:
		slog.Warn("Unknown PAYMENT_MODE, using simulated payments", "PAYMENT_MODE", cfg.PaymentMode)
		cfg.PaymentMode = "simulated"
	}
	switch cfg.MembershipPricing {
	case "replace", "addon":
	default:
		slog.Warn("Unknown MEMBERSHIP_PRICING, using replace", "MEMBERSHIP_PRICING", cfg.MembershipPricing)
		cfg.MembershipPricing = "replace"
	}
	return nil
}

// Usage describes every variable LoadConfig understands.
func Usage() string {
	desc, err := cleanenv.GetDescription(&Config{}, nil)
	if err != nil {
		return err.Error()
	}
	return desc
}

func loadKey(name string) []byte {
	raw := os.Getenv(name)
	if raw == "" {
		slog.Warn(name + " environment variable not set. Generating a random key for development. This key will change on each restart. PLEASE SET " + name + " IN PRODUCTION!")
		return generateRandomBytes(32)
	}
	decoded, err := base64.StdEncoding.DecodeString(raw)
	if err != nil || len(decoded) < 32 {
		slog.Warn(name + " is invalid or too short (min 32 bytes recommended). Generating a random key for development. PLEASE SET A SECURE " + name + " IN PRODUCTION!")
		return generateRandomBytes(32)
	}
	return decoded
}

// generateRandomBytes generates a random byte slice of specified length
// Uses crypto/rand for secure random numbers.
func generateRandomBytes(n int) []byte {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		slog.Error("Failed to read random bytes", "error", err)
		fallbackKey := "fallback-insecure-key-" + strconv.FormatInt(time.Now().UnixNano(), 10)
		if len(fallbackKey) < n {
			paddedKey := make([]byte, n)
			copy(paddedKey, fallbackKey)
			return paddedKey
		}
		return []byte(fallbackKey)[:n]
	}
	return b
}
