// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/hitoshi/productivitygo/internal/model"
)

// ProfileRepository はユーザープロフィールの永続化インターフェース。
type ProfileRepository interface {
	// FindByUserID は指定ユーザーのプロフィールを取得する。見つからない場合はnilを返す。
	FindByUserID(ctx context.Context, userID string) (*model.UserProfile, error)

	// UpsertTimezone はプロフィールのタイムゾーンを作成または更新し、保存後の値を返す。
	UpsertTimezone(ctx context.Context, userID, timezone string) (*model.UserProfile, error)
}
