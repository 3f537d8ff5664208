// Package model はドメインモデルを定義する。
package model

import "time"

// DefaultTimezone はプロフィールのタイムゾーンが未設定の場合に使うセンチネル値。
const DefaultTimezone = "UTC"

// UserProfile はユーザーごとのプロフィール設定を表す。
// ユーザー自体は外部の認証基盤が管理し、ここではuser_idで紐付けるのみ。
type UserProfile struct {
	UserID    string
	Timezone  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewDefaultProfile は未保存ユーザー向けのデフォルトプロフィールを返す。
func NewDefaultProfile(userID string) *UserProfile {
	return &UserProfile{
		UserID:   userID,
		Timezone: DefaultTimezone,
	}
}

// EffectiveTimezone は空の場合にDefaultTimezoneへフォールバックしたタイムゾーンを返す。
func (p *UserProfile) EffectiveTimezone() string {
	if p == nil || p.Timezone == "" {
		return DefaultTimezone
	}
	return p.Timezone
}

// ProfileUpdate はプロフィールの部分更新内容を表す。
// nilフィールドは変更しない。
type ProfileUpdate struct {
	Timezone *string
}
