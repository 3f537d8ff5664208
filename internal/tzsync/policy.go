// Package tzsync はログイン時にサーバー側プロフィールのタイムゾーンを
// ローカル環境のタイムゾーンへ一方向で同期する。
//
// 同期はプロフィールがデフォルト値（"UTC"）のままの場合にのみ行い、
// ユーザーが明示的に設定したタイムゾーンは上書きしない。
package tzsync

import (
	"context"
	"log/slog"
	"time"

	"github.com/hitoshi/productivitygo/internal/model"
	"github.com/hitoshi/productivitygo/internal/notify"
	"github.com/hitoshi/productivitygo/internal/profileclient"
	"github.com/hitoshi/productivitygo/internal/session"
)

// Outcome は1回の同期の結果。ログとメトリクスのためだけに使う。
type Outcome string

const (
	OutcomeSkippedNoSession Outcome = "skipped_no_session"
	OutcomeUnchanged        Outcome = "unchanged"
	OutcomeUpdated          Outcome = "updated"
	OutcomeFailed           Outcome = "failed"
)

// ProfileAPI は同期に必要なプロフィールAPIの操作。
type ProfileAPI interface {
	GetProfile(ctx context.Context, accessToken string) (*profileclient.Profile, error)
	UpdateTimezone(ctx context.Context, accessToken, timezone string) (*profileclient.Profile, error)
}

// Metrics は同期結果のメトリクス記録インターフェース。
type Metrics interface {
	RecordSyncOutcome(outcome string)
	RecordSyncLatency(duration time.Duration)
}

// Policy はタイムゾーン同期ポリシー。
type Policy struct {
	api      ProfileAPI
	detect   func() string
	notifier notify.Notifier
	logger   *slog.Logger
	metrics  Metrics
}

// NewPolicy はPolicyを生成する。detectはローカルのIANAタイムゾーン名を返す関数。
// loggerとmetricsはnilでもよい。
func NewPolicy(api ProfileAPI, detect func() string, notifier notify.Notifier, logger *slog.Logger, metrics Metrics) *Policy {
	if logger == nil {
		logger = slog.Default()
	}
	return &Policy{
		api:      api,
		detect:   detect,
		notifier: notifier,
		logger:   logger,
		metrics:  metrics,
	}
}

// SyncFrom はproviderの現在のセッションで同期する。
func (p *Policy) SyncFrom(ctx context.Context, provider session.Provider) Outcome {
	return p.Sync(ctx, provider.Current())
}

// Sync はセッションのユーザーについて同期を1回実行する。
//
// セッションがない場合は通信しない。サーバー側が "UTC" かつローカルが "UTC" 以外の場合だけ
// 1回更新し、成功時に1回通知する。取得・更新の失敗はログに記録して握りつぶし、再試行しない。
func (p *Policy) Sync(ctx context.Context, sess *session.Session) Outcome {
	if sess == nil || sess.AccessToken == "" {
		return p.finish(OutcomeSkippedNoSession, time.Time{})
	}

	start := time.Now()

	profile, err := p.api.GetProfile(ctx, sess.AccessToken)
	if err != nil {
		p.logFailure("get profile", err)
		return p.finish(OutcomeFailed, start)
	}

	serverTz := profile.Timezone
	if serverTz == "" {
		serverTz = model.DefaultTimezone
	}
	localTz := p.detect()

	if serverTz != model.DefaultTimezone || localTz == model.DefaultTimezone {
		p.logger.Debug("timezone sync not needed",
			slog.String("server_timezone", serverTz),
			slog.String("local_timezone", localTz),
		)
		return p.finish(OutcomeUnchanged, start)
	}

	if _, err := p.api.UpdateTimezone(ctx, sess.AccessToken, localTz); err != nil {
		p.logFailure("update timezone", err)
		return p.finish(OutcomeFailed, start)
	}

	p.logger.Info("timezone synced", slog.String("timezone", localTz))
	p.notifier.Success(ctx, "Timezone set to "+localTz)
	return p.finish(OutcomeUpdated, start)
}

func (p *Policy) logFailure(step string, err error) {
	p.logger.Warn("timezone sync failed",
		slog.String("step", step),
		slog.String("kind", string(profileclient.KindOf(err))),
		slog.String("error", err.Error()),
	)
}

func (p *Policy) finish(outcome Outcome, start time.Time) Outcome {
	if p.metrics != nil {
		p.metrics.RecordSyncOutcome(string(outcome))
		if !start.IsZero() {
			p.metrics.RecordSyncLatency(time.Since(start))
		}
	}
	return outcome
}
