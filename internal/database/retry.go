package database

import (
	"context"
	"database/sql/driver"
	"errors"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryConfig は接続エラー時のリトライ設定。
type RetryConfig struct {
	MaxAttempts  int           // 初回を含む最大試行回数
	InitialDelay time.Duration // 初回リトライまでの待機時間（以降2倍ずつ増加）
}

// DefaultRetryConfig は3回試行・初回0.5秒のリトライ設定を返す。
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  3,
		InitialDelay: 500 * time.Millisecond,
	}
}

// connectionErrorKeywords は接続系エラーと判定するメッセージのキーワード。
var connectionErrorKeywords = []string{"disconnect", "connection", "timeout", "network"}

// IsConnectionError はerrがリトライ対象の接続系エラーかを判定する。
func IsConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, kw := range connectionErrorKeywords {
		if strings.Contains(msg, kw) {
			return true
		}
	}
	return false
}

// WithRetry はopを実行し、接続系エラーの場合のみ指数バックオフでリトライする。
// 接続系以外のエラーは即座に返す。
func WithRetry(ctx context.Context, cfg RetryConfig, op func(ctx context.Context) error) error {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = cfg.InitialDelay
	eb.Multiplier = 2
	eb.RandomizationFactor = 0
	eb.MaxElapsedTime = 0

	b := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(cfg.MaxAttempts-1)), ctx)

	attempt := 0
	return backoff.RetryNotify(func() error {
		attempt++
		err := op(ctx)
		if err == nil {
			return nil
		}
		if !IsConnectionError(err) {
			return backoff.Permanent(err)
		}
		return err
	}, b, func(err error, wait time.Duration) {
		slog.Warn("database connection error, retrying",
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", cfg.MaxAttempts),
			slog.Duration("wait", wait),
			slog.String("error", err.Error()),
		)
	})
}
