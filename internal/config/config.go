package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// バックエンドの永続化方式。
const (
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
	BackendMemory   = "memory"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Storage
	Backend     string
	DatabaseURL string
	SQLitePath  string

	// Identity
	TokenSecret string
	TokenTTL    time.Duration

	// Client
	BackendURL                string
	RemoteTimeout             time.Duration
	FavoriteLookupConcurrency int

	// Rate Limit
	RateLimitGeneral int
	RateLimitAuth    int

	// Session cleanup
	SessionCleanupInterval time.Duration

	// Logging
	LogLevel string

	// Server
	ServerPort string

	// CORS（カンマ区切りで複数指定可）
	CORSAllowedOrigin string
}

// Load はサーバー・マイグレーション用のConfigを環境変数から読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	return load(true)
}

// LoadClient はHTTPクライアントとしてのみ動くコマンド用のConfigを読み込む。
// トークン署名鍵とデータベースURLは要求しない。
func LoadClient() (*Config, error) {
	return load(false)
}

func load(server bool) (*Config, error) {
	cfg := &Config{}

	cfg.Backend = strings.ToLower(getEnvString("BACKEND", BackendPostgres))
	switch cfg.Backend {
	case BackendPostgres, BackendSQLite, BackendMemory:
	default:
		return nil, fmt.Errorf("unsupported BACKEND %q (want postgres, sqlite or memory)", cfg.Backend)
	}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if server && cfg.DatabaseURL == "" && cfg.Backend == BackendPostgres {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.TokenSecret = os.Getenv("TOKEN_SECRET")
	if server && cfg.TokenSecret == "" {
		missing = append(missing, "TOKEN_SECRET")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.SQLitePath = getEnvString("SQLITE_PATH", "eventorg.db")
	cfg.TokenTTL = getEnvDuration("TOKEN_TTL", time.Hour)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.BackendURL = getEnvString("BACKEND_URL", "http://localhost:"+cfg.ServerPort)
	cfg.RemoteTimeout = getEnvDuration("REMOTE_TIMEOUT", 10*time.Second)
	cfg.FavoriteLookupConcurrency = getEnvInt("FAVORITE_LOOKUP_CONCURRENCY", 8)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitAuth = getEnvInt("RATE_LIMIT_AUTH", 10)
	cfg.SessionCleanupInterval = getEnvDuration("SESSION_CLEANUP_INTERVAL", time.Hour)
	if cfg.SessionCleanupInterval <= 0 {
		cfg.SessionCleanupInterval = time.Hour
	}
	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
