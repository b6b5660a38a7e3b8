package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	PhonePeEnvSandbox    = "sandbox"
	PhonePeEnvProduction = "production"
)

// PhonePe Standard Checkout v2 の接続設定
type PhonePeConfig struct {
	Env           string
	ClientID      string
	ClientSecret  string
	ClientVersion string
	AuthURL       string // OAuthトークン発行のベースURL
	BaseURL       string // 決済APIのベースURL

	// Webhookの認証（SHA256(username:password)）
	WebhookUsername string
	WebhookPassword string

	// 決済後にブラウザを戻す先（フロントの画面）
	RedirectURL string
	Timeout     time.Duration
}

// Configはアプリ全体の設定
type Config struct {
	Port string

	DatabaseURL      string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresHost     string
	PostgresPort     int
	PostgresSSLMode  string
	DBMaxOpenConns   int

	JWTSecret string // 管理画面のJWT検証用

	GoEnv string // dev/prod
	FEURL string // フロントURL（CORS）

	PhonePe PhonePeConfig

	RedisAddr        string // 空ならプロセス内ロック
	RabbitMQURL      string // 空ならイベントはログのみ
	RabbitMQExchange string
	LockTTL          time.Duration
}

func (c Config) IsProd() bool { return c.GoEnv == "prod" }

// DATABASE_URL があれば最優先で使う
func (c Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.PostgresHost, c.PostgresPort, c.PostgresUser, c.PostgresPassword, c.PostgresDB, c.PostgresSSLMode,
	)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", "8080")
	v.SetDefault("POSTGRES_HOST", "localhost")
	v.SetDefault("POSTGRES_PORT", 5432)
	v.SetDefault("POSTGRES_USER", "postgres")
	v.SetDefault("POSTGRES_PASSWORD", "postgres")
	v.SetDefault("POSTGRES_DB", "thekua")
	v.SetDefault("POSTGRES_SSLMODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 20)
	v.SetDefault("GO_ENV", "dev")
	v.SetDefault("FE_URL", "http://localhost:5173")
	v.SetDefault("PHONEPE_ENV", PhonePeEnvSandbox)
	v.SetDefault("PHONEPE_CLIENT_VERSION", "1")
	v.SetDefault("PHONEPE_TIMEOUT", "15s")
	v.SetDefault("RABBITMQ_EXCHANGE", "thekua.orders")
	v.SetDefault("LOCK_TTL", "30s")
}

// Loadは .env（あれば）と環境変数から読む
func Load(envFiles ...string) (Config, error) {
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	cfg := Config{
		Port: strings.TrimPrefix(v.GetString("PORT"), ":"),

		DatabaseURL:      v.GetString("DATABASE_URL"),
		PostgresUser:     v.GetString("POSTGRES_USER"),
		PostgresPassword: v.GetString("POSTGRES_PASSWORD"),
		PostgresDB:       v.GetString("POSTGRES_DB"),
		PostgresHost:     v.GetString("POSTGRES_HOST"),
		PostgresPort:     v.GetInt("POSTGRES_PORT"),
		PostgresSSLMode:  v.GetString("POSTGRES_SSLMODE"),
		DBMaxOpenConns:   v.GetInt("DB_MAX_OPEN_CONNS"),

		JWTSecret: v.GetString("JWT_SECRET"),

		GoEnv: v.GetString("GO_ENV"),
		FEURL: v.GetString("FE_URL"),

		PhonePe: PhonePeConfig{
			Env:             v.GetString("PHONEPE_ENV"),
			ClientID:        v.GetString("PHONEPE_CLIENT_ID"),
			ClientSecret:    v.GetString("PHONEPE_CLIENT_SECRET"),
			ClientVersion:   v.GetString("PHONEPE_CLIENT_VERSION"),
			AuthURL:         v.GetString("PHONEPE_AUTH_URL"),
			BaseURL:         v.GetString("PHONEPE_BASE_URL"),
			WebhookUsername: v.GetString("PHONEPE_WEBHOOK_USERNAME"),
			WebhookPassword: v.GetString("PHONEPE_WEBHOOK_PASSWORD"),
			RedirectURL:     v.GetString("PHONEPE_REDIRECT_URL"),
			Timeout:         v.GetDuration("PHONEPE_TIMEOUT"),
		},

		RedisAddr:        v.GetString("REDIS_ADDR"),
		RabbitMQURL:      v.GetString("RABBITMQ_URL"),
		RabbitMQExchange: v.GetString("RABBITMQ_EXCHANGE"),
		LockTTL:          v.GetDuration("LOCK_TTL"),
	}

	//必須チェック
	if cfg.Port == "" {
		return Config{}, fmt.Errorf("PORT is required")
	}
	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.GoEnv != "dev" && cfg.GoEnv != "prod" {
		return Config{}, fmt.Errorf("GO_ENV must be dev or prod")
	}
	if cfg.PhonePe.ClientID == "" {
		return Config{}, fmt.Errorf("PHONEPE_CLIENT_ID is required")
	}
	if cfg.PhonePe.ClientSecret == "" {
		return Config{}, fmt.Errorf("PHONEPE_CLIENT_SECRET is required")
	}
	if cfg.PhonePe.RedirectURL == "" {
		return Config{}, fmt.Errorf("PHONEPE_REDIRECT_URL is required")
	}
	if cfg.PhonePe.WebhookUsername == "" || cfg.PhonePe.WebhookPassword == "" {
		return Config{}, fmt.Errorf("PHONEPE_WEBHOOK_USERNAME and PHONEPE_WEBHOOK_PASSWORD are required")
	}
	if cfg.PhonePe.Timeout <= 0 {
		return Config{}, fmt.Errorf("PHONEPE_TIMEOUT must be positive")
	}
	if cfg.LockTTL <= 0 {
		return Config{}, fmt.Errorf("LOCK_TTL must be positive")
	}
	if cfg.DBMaxOpenConns <= 0 {
		return Config{}, fmt.Errorf("DB_MAX_OPEN_CONNS must be positive")
	}

	//環境ごとのURL（明示指定があればそちら）
	switch cfg.PhonePe.Env {
	case PhonePeEnvSandbox:
		if cfg.PhonePe.AuthURL == "" {
			cfg.PhonePe.AuthURL = "https://api-preprod.phonepe.com/apis/pg-sandbox"
		}
		if cfg.PhonePe.BaseURL == "" {
			cfg.PhonePe.BaseURL = "https://api-preprod.phonepe.com/apis/pg-sandbox"
		}
	case PhonePeEnvProduction:
		if cfg.PhonePe.AuthURL == "" {
			cfg.PhonePe.AuthURL = "https://api.phonepe.com/apis/identity-manager"
		}
		if cfg.PhonePe.BaseURL == "" {
			cfg.PhonePe.BaseURL = "https://api.phonepe.com/apis/pg"
		}
	default:
		return Config{}, fmt.Errorf("PHONEPE_ENV must be sandbox or production")
	}

	return cfg, nil
}
