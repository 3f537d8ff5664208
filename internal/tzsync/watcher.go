package tzsync

import (
	"context"
	"log/slog"

	"github.com/hitoshi/productivitygo/internal/session"
)

// Subscriber はセッション変更を購読できるセッション提供元。*session.Storeが満たす。
type Subscriber interface {
	Subscribe(ctx context.Context) <-chan *session.Session
}

// Watcher はセッションの切り替わりごとにPolicy.Syncを1回呼び出す。
// 同期は受信順に逐次実行する。
type Watcher struct {
	sessions Subscriber
	policy   *Policy
	logger   *slog.Logger
}

// NewWatcher はWatcherを生成する。
func NewWatcher(sessions Subscriber, policy *Policy, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{sessions: sessions, policy: policy, logger: logger}
}

// Run はctxが終了するまでセッション変更を待ち受ける。
func (w *Watcher) Run(ctx context.Context) error {
	for sess := range w.sessions.Subscribe(ctx) {
		if sess == nil {
			w.logger.Debug("session cleared")
			continue
		}
		outcome := w.policy.Sync(ctx, sess)
		w.logger.Debug("timezone sync finished", slog.String("outcome", string(outcome)))
	}
	return nil
}
