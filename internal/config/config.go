package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	DBDriverPostgres = "postgres"
	DBDriverMemory   = "memory"
)

// Configはアプリ全体の設定
type Config struct {
	Port        string // サーバーポート（8080）
	GoEnv       string // dev/prod
	ServiceName string // ログ・トレースに付けるサービス名
	LogFile     string // 空ならstdoutのみ

	DBDriver    string // postgres / memory
	DatabaseURL string // 指定があればPOSTGRES_*より優先

	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresHost     string
	PostgresPort     int
	PostgresSSLMode  string

	JWTSecret string // JWT署名シークレット

	StripeSecretKey     string
	StripeWebhookSecret string
	PaymentCurrency     string        // 小数なし通貨（jpy）
	PaymentTimeout      time.Duration // PaymentIntent作成のタイムアウト

	RedisAddr    string   // 空ならwebhookの重複チェックはDBだけ
	KafkaBrokers []string // 空ならイベント送信しない
	KafkaTopic   string
}

// Loadは環境変数
func Load() (Config, error) {
	pgPort, err := atoiOr("POSTGRES_PORT", 5432)
	if err != nil {
		return Config{}, err
	}
	timeout, err := durationOr("PAYMENT_TIMEOUT", 10*time.Second)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Port:        getOr("PORT", "8080"),
		GoEnv:       getOr("GO_ENV", "dev"),
		ServiceName: getOr("SERVICE_NAME", "ec-checkout"),
		LogFile:     os.Getenv("LOG_FILE"),

		DBDriver:    getOr("DB_DRIVER", DBDriverPostgres),
		DatabaseURL: os.Getenv("DATABASE_URL"),

		PostgresUser:     os.Getenv("POSTGRES_USER"),
		PostgresPassword: os.Getenv("POSTGRES_PASSWORD"),
		PostgresDB:       os.Getenv("POSTGRES_DB"),
		PostgresHost:     os.Getenv("POSTGRES_HOST"),
		PostgresPort:     pgPort,
		PostgresSSLMode:  getOr("POSTGRES_SSLMODE", "disable"),

		JWTSecret: os.Getenv("JWT_SECRET"),

		StripeSecretKey:     os.Getenv("STRIPE_SECRET_KEY"),
		StripeWebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),
		PaymentCurrency:     strings.ToLower(getOr("PAYMENT_CURRENCY", "jpy")),
		PaymentTimeout:      timeout,

		RedisAddr:    os.Getenv("REDIS_ADDR"),
		KafkaBrokers: splitList(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:   getOr("KAFKA_TOPIC", "order-events"),
	}

	//必須チェック
	switch cfg.DBDriver {
	case DBDriverMemory:
	case DBDriverPostgres:
		if cfg.DatabaseURL == "" {
			if cfg.PostgresUser == "" {
				return Config{}, fmt.Errorf("POSTGRES_USER is required")
			}
			if cfg.PostgresPassword == "" {
				return Config{}, fmt.Errorf("POSTGRES_PASSWORD is required")
			}
			if cfg.PostgresDB == "" {
				return Config{}, fmt.Errorf("POSTGRES_DB is required")
			}
			if cfg.PostgresHost == "" {
				return Config{}, fmt.Errorf("POSTGRES_HOST is required")
			}
		}
	default:
		return Config{}, fmt.Errorf("DB_DRIVER must be %q or %q", DBDriverPostgres, DBDriverMemory)
	}
	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.StripeSecretKey == "" {
		return Config{}, fmt.Errorf("STRIPE_SECRET_KEY is required")
	}
	if cfg.StripeWebhookSecret == "" {
		return Config{}, fmt.Errorf("STRIPE_WEBHOOK_SECRET is required")
	}

	//金額は最小単位の整数でそのまま渡すので小数なし通貨だけ
	if _, ok := zeroDecimalCurrencies[cfg.PaymentCurrency]; !ok {
		return Config{}, fmt.Errorf("PAYMENT_CURRENCY must be a zero-decimal currency: %q", cfg.PaymentCurrency)
	}

	return cfg, nil
}

// Stripeの小数なし通貨
var zeroDecimalCurrencies = map[string]struct{}{
	"bif": {}, "clp": {}, "djf": {}, "gnf": {}, "jpy": {}, "kmf": {}, "krw": {}, "mga": {},
	"pyg": {}, "rwf": {}, "ugx": {}, "vnd": {}, "vuv": {}, "xaf": {}, "xof": {}, "xpf": {},
}

// DSN はgorm postgres用の接続文字列。
func (c Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%d sslmode=%s TimeZone=UTC",
		c.PostgresHost, c.PostgresUser, c.PostgresPassword, c.PostgresDB, c.PostgresPort, c.PostgresSSLMode,
	)
}

func (c Config) IsProd() bool {
	return c.GoEnv == "prod"
}

func getOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func atoiOr(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be number: %w", key, err)
	}
	return i, nil
}

func durationOr(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be duration: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive", key)
	}
	return d, nil
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
