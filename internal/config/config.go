package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Auth     AuthConfig
	Storage  StorageConfig
	Match    MatchConfig
	Review   ReviewConfig
	OCR      OCRConfig
	Notify   NotifyConfig
}

type ServerConfig struct {
	Host string
	Port int
}

type DatabaseConfig struct {
	URL            string
	MaxConns       int
	MinConns       int
	MigrationsPath string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type AuthConfig struct {
	JWTSecret string
}

type StorageConfig struct {
	SupabaseURL    string
	SupabaseKey    string
	Bucket         string
	PreviewTTLSecs int
}

// MatchConfig carries the identity-matching policy. AutoAcceptThreshold is
// the confidence at which an OCR match skips review entirely; ReviewFloor
// is the minimum confidence at which a candidate is even surfaced to the
// reviewer.
type MatchConfig struct {
	AutoAcceptThreshold float64
	ReviewFloor         float64
}

type ReviewConfig struct {
	PageSize int
}

type OCRConfig struct {
	SplitterURL string
	CallbackURL string
}

type NotifyConfig struct {
	WebhookURL    string
	WebhookSecret string
}

func Load() (*Config, error) {
	port, err := getEnvInt("SERVER_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_PORT: %w", err)
	}

	maxConns, err := getEnvInt("DB_MAX_CONNS", 20)
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MAX_CONNS: %w", err)
	}

	minConns, err := getEnvInt("DB_MIN_CONNS", 5)
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MIN_CONNS: %w", err)
	}

	redisDB, err := getEnvInt("REDIS_DB", 0)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	previewTTL, err := getEnvInt("STORAGE_PREVIEW_TTL_SECS", 300)
	if err != nil {
		return nil, fmt.Errorf("invalid STORAGE_PREVIEW_TTL_SECS: %w", err)
	}

	pageSize, err := getEnvInt("REVIEW_PAGE_SIZE", 25)
	if err != nil {
		return nil, fmt.Errorf("invalid REVIEW_PAGE_SIZE: %w", err)
	}

	autoAccept, err := getEnvFloat("MATCH_AUTO_ACCEPT_THRESHOLD", 0.85)
	if err != nil {
		return nil, fmt.Errorf("invalid MATCH_AUTO_ACCEPT_THRESHOLD: %w", err)
	}

	reviewFloor, err := getEnvFloat("MATCH_REVIEW_FLOOR", 0.5)
	if err != nil {
		return nil, fmt.Errorf("invalid MATCH_REVIEW_FLOOR: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
			Port: port,
		},
		Database: DatabaseConfig{
			URL:            getEnv("DATABASE_URL", ""),
			MaxConns:       maxConns,
			MinConns:       minConns,
			MigrationsPath: getEnv("MIGRATIONS_PATH", "migrations"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
		},
		Storage: StorageConfig{
			SupabaseURL:    getEnv("SUPABASE_URL", ""),
			SupabaseKey:    getEnv("SUPABASE_SERVICE_KEY", ""),
			Bucket:         getEnv("STORAGE_BUCKET", "payslips"),
			PreviewTTLSecs: previewTTL,
		},
		Match: MatchConfig{
			AutoAcceptThreshold: autoAccept,
			ReviewFloor:         reviewFloor,
		},
		Review: ReviewConfig{
			PageSize: pageSize,
		},
		OCR: OCRConfig{
			SplitterURL: getEnv("OCR_SPLITTER_URL", ""),
			CallbackURL: getEnv("OCR_CALLBACK_URL", ""),
		},
		Notify: NotifyConfig{
			WebhookURL:    getEnv("NOTIFY_WEBHOOK_URL", ""),
			WebhookSecret: getEnv("NOTIFY_WEBHOOK_SECRET", ""),
		},
	}

	if cfg.Match.ReviewFloor > cfg.Match.AutoAcceptThreshold {
		return nil, fmt.Errorf("MATCH_REVIEW_FLOOR %v exceeds MATCH_AUTO_ACCEPT_THRESHOLD %v",
			cfg.Match.ReviewFloor, cfg.Match.AutoAcceptThreshold)
	}

	return cfg, nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func (c *Config) Validate() error {
	var missing []string
	if c.Database.URL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if c.Auth.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required env vars: %s", strings.Join(missing, ", "))
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.Atoi(v)
}

func getEnvFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.ParseFloat(v, 64)
}
