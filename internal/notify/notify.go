// Package notify はユーザー向けの非ブロッキング通知（トースト相当）を提供する。
package notify

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"
)

// Notifier は成功通知を表示する。表示はブロックせず、失敗しても呼び出し元に影響しない。
type Notifier interface {
	Success(ctx context.Context, message string)
}

// WriterNotifier は通知を1行ずつwriterに書き出す（端末表示用）。
type WriterNotifier struct {
	mu  sync.Mutex
	w   io.Writer
	now func() time.Time
}

var _ Notifier = (*WriterNotifier)(nil)

// NewWriterNotifier はWriterNotifierを生成する。
func NewWriterNotifier(w io.Writer) *WriterNotifier {
	return &WriterNotifier{w: w, now: time.Now}
}

// Success は "[HH:MM:SS] ✓ message" の形式で書き出す。
func (n *WriterNotifier) Success(_ context.Context, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	fmt.Fprintf(n.w, "[%s] ✓ %s\n", n.now().Format(time.TimeOnly), message)
}

// LogNotifier は通知を構造化ログとして出力する（ヘッドレス実行用）。
type LogNotifier struct {
	logger *slog.Logger
}

var _ Notifier = (*LogNotifier)(nil)

// NewLogNotifier はLogNotifierを生成する。
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

// Success は通知メッセージをInfoレベルで記録する。
func (n *LogNotifier) Success(ctx context.Context, message string) {
	n.logger.InfoContext(ctx, "notification",
		slog.String("kind", "success"),
		slog.String("message", message),
	)
}
