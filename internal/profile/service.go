// Package profile はユーザープロフィール管理のドメインロジックを提供する。
package profile

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hitoshi/productivitygo/internal/model"
	"github.com/hitoshi/productivitygo/internal/repository"
	"github.com/hitoshi/productivitygo/internal/timezone"
)

// Recorder はプロフィール操作のメトリクス記録インターフェース。
type Recorder interface {
	RecordProfileRead()
	RecordTimezoneUpdate()
}

// Service はプロフィール管理のサービス層。
type Service struct {
	repo     repository.ProfileRepository
	recorder Recorder
}

// NewService はServiceの新しいインスタンスを生成する。
// recorderはnilでもよい。
func NewService(repo repository.ProfileRepository, recorder Recorder) *Service {
	return &Service{
		repo:     repo,
		recorder: recorder,
	}
}

// GetProfile はユーザーのプロフィールを返す。
// 未保存のユーザーにはタイムゾーンが "UTC" のデフォルトプロフィールを返す。
func (s *Service) GetProfile(ctx context.Context, userID string) (*model.UserProfile, error) {
	p, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("プロフィールの取得に失敗しました: %w", err)
	}
	if s.recorder != nil {
		s.recorder.RecordProfileRead()
	}
	if p == nil {
		return model.NewDefaultProfile(userID), nil
	}
	if p.Timezone == "" {
		p.Timezone = model.DefaultTimezone
	}
	return p, nil
}

// UpdateProfile はプロフィールを部分更新する。
// タイムゾーンはロード可能なIANA名でなければならない。
func (s *Service) UpdateProfile(ctx context.Context, userID string, update model.ProfileUpdate) (*model.UserProfile, error) {
	if update.Timezone == nil {
		return s.GetProfile(ctx, userID)
	}

	tz := *update.Timezone
	if err := timezone.Validate(tz); err != nil {
		return nil, model.NewInvalidTimezoneError(tz)
	}

	p, err := s.repo.UpsertTimezone(ctx, userID, tz)
	if err != nil {
		return nil, fmt.Errorf("タイムゾーンの更新に失敗しました: %w", err)
	}
	if s.recorder != nil {
		s.recorder.RecordTimezoneUpdate()
	}

	slog.Info("プロフィールのタイムゾーンを更新しました",
		slog.String("user_id", userID),
		slog.String("timezone", tz),
	)

	return p, nil
}
