// Package config は環境変数からアプリケーション設定を読み込む。
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// defaultEnvFile はENV_FILE未指定時に読み込む.envファイルのパス。
const defaultEnvFile = ".env"

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Debug
	DebugMode string `env:"DEBUG_MODE"`
	Debug     string `env:"DEBUG"`

	// Database
	DatabaseURL    string        `env:"DATABASE_URL"`
	DBMaxOpenConns int           `env:"DB_MAX_OPEN_CONNS" envDefault:"10"`
	DBMaxIdleConns int           `env:"DB_MAX_IDLE_CONNS" envDefault:"1"`
	DBRetryMax     int           `env:"DB_RETRY_MAX" envDefault:"3"`
	DBRetryDelay   time.Duration `env:"DB_RETRY_DELAY" envDefault:"500ms"`

	// Auth
	JWTSecret   string `env:"SUPABASE_JWT_SECRET"`
	JWTAudience string `env:"JWT_AUDIENCE" envDefault:"authenticated"`

	// Server
	ServerPort        string `env:"SERVER_PORT" envDefault:"8000"`
	CORSAllowedOrigin string `env:"CORS_ALLOWED_ORIGIN" envDefault:"http://localhost:5173"`
	RateLimitGeneral  int    `env:"RATE_LIMIT_GENERAL" envDefault:"120"`

	// Dev proxy
	ProxyPort     string `env:"PROXY_PORT" envDefault:"5173"`
	ProxyTarget   string `env:"PROXY_TARGET" envDefault:"http://127.0.0.1:8000"`
	ProxyBasePath string `env:"PROXY_BASE_PATH" envDefault:"/productivityGo/"`
	StaticDir     string `env:"STATIC_DIR" envDefault:"dist"`

	// Timezone sync client
	APIBaseURL       string        `env:"API_BASE_URL" envDefault:"http://127.0.0.1:5173/api"`
	AccessToken      string        `env:"ACCESS_TOKEN"`
	SessionTokenFile string        `env:"SESSION_TOKEN_FILE"`
	SyncTimeout      time.Duration `env:"SYNC_TIMEOUT" envDefault:"10s"`
	SyncNotify       string        `env:"SYNC_NOTIFY" envDefault:"terminal"`
	SyncMetricsPort  string        `env:"SYNC_METRICS_PORT"`
}

// Load は.envファイルと環境変数からConfigを読み込む。
// .envファイルが存在しない場合は無視する。既存の環境変数は上書きしない。
// 必須項目の検証はサブコマンドごとにValidateServer/ValidateSyncで行う。
func Load() (*Config, error) {
	if err := loadEnvFile(); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	cfg.ProxyBasePath = normalizeBasePath(cfg.ProxyBasePath)
	return cfg, nil
}

// IsDebug はデバッグモードが有効かを返す。
// DEBUG_MODE=true（大文字小文字を区別しない）または後方互換のDEBUG=1のいずれかで有効になる。
// それ以外の値はすべて無効として扱う。
func (c *Config) IsDebug() bool {
	return strings.EqualFold(c.DebugMode, "true") || c.Debug == "1"
}

// ValidateServer はAPIサーバーとマイグレーションに必要な設定を検証する。
func (c *Config) ValidateServer() error {
	var missing []string
	if c.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if c.JWTSecret == "" {
		missing = append(missing, "SUPABASE_JWT_SECRET")
	}
	if len(missing) > 0 {
		return fmt.Errorf("required environment variables are not set: %v", missing)
	}
	return nil
}

// ValidateMigrate はマイグレーションに必要な設定を検証する。
func (c *Config) ValidateMigrate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("required environment variables are not set: %v", []string{"DATABASE_URL"})
	}
	return nil
}

// ValidateSync はタイムゾーン同期クライアントに必要な設定を検証する。
// ACCESS_TOKENかSESSION_TOKEN_FILEのいずれかが必要。
func (c *Config) ValidateSync() error {
	if c.AccessToken == "" && c.SessionTokenFile == "" {
		return fmt.Errorf("required environment variables are not set: one of %v", []string{"ACCESS_TOKEN", "SESSION_TOKEN_FILE"})
	}
	if c.APIBaseURL == "" {
		return fmt.Errorf("required environment variables are not set: %v", []string{"API_BASE_URL"})
	}
	if c.SyncNotify != "terminal" && c.SyncNotify != "log" {
		return fmt.Errorf("SYNC_NOTIFY must be \"terminal\" or \"log\": %q", c.SyncNotify)
	}
	return nil
}

// loadEnvFile はENV_FILE（未指定時は.env）を読み込む。
func loadEnvFile() error {
	path := os.Getenv("ENV_FILE")
	explicit := path != ""
	if !explicit {
		path = defaultEnvFile
	}

	err := godotenv.Load(path)
	if err == nil {
		return nil
	}
	// 暗黙の.envが無いのは通常運用
	if !explicit && errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("load env file %s: %w", path, err)
}

// normalizeBasePath はベースパスを "/" で始まり "/" で終わる形に揃える。
func normalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" || p == "/" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if !strings.HasSuffix(p, "/") {
		p += "/"
	}
	return p
}
