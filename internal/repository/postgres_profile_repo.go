package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hitoshi/productivitygo/internal/database"
	"github.com/hitoshi/productivitygo/internal/model"
)

// PostgresProfileRepo はPostgreSQLを使用したプロフィールリポジトリ。
// 各操作は接続系エラーの場合のみリトライする。
type PostgresProfileRepo struct {
	db    *sql.DB
	retry database.RetryConfig
}

// NewPostgresProfileRepo はPostgresProfileRepoを生成する。
func NewPostgresProfileRepo(db *sql.DB, retry database.RetryConfig) *PostgresProfileRepo {
	return &PostgresProfileRepo{db: db, retry: retry}
}

// FindByUserID は指定ユーザーのプロフィールを取得する。見つからない場合はnilを返す。
func (r *PostgresProfileRepo) FindByUserID(ctx context.Context, userID string) (*model.UserProfile, error) {
	var profile *model.UserProfile

	err := database.WithRetry(ctx, r.retry, func(ctx context.Context) error {
		p := &model.UserProfile{}
		err := r.db.QueryRowContext(ctx,
			`SELECT user_id, timezone, created_at, updated_at FROM user_profiles WHERE user_id = $1`,
			userID,
		).Scan(&p.UserID, &p.Timezone, &p.CreatedAt, &p.UpdatedAt)
		if errors.Is(err, sql.ErrNoRows) {
			profile = nil
			return nil
		}
		if err != nil {
			return err
		}
		profile = p
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to find profile by user ID: %w", err)
	}

	return profile, nil
}

// UpsertTimezone はプロフィールのタイムゾーンを作成または更新し、保存後の値を返す。
func (r *PostgresProfileRepo) UpsertTimezone(ctx context.Context, userID, timezone string) (*model.UserProfile, error) {
	p := &model.UserProfile{}

	err := database.WithRetry(ctx, r.retry, func(ctx context.Context) error {
		return r.db.QueryRowContext(ctx,
			`INSERT INTO user_profiles (user_id, timezone, created_at, updated_at)
			 VALUES ($1, $2, now(), now())
			 ON CONFLICT (user_id) DO UPDATE
			 SET timezone = EXCLUDED.timezone, updated_at = now()
			 RETURNING user_id, timezone, created_at, updated_at`,
			userID, timezone,
		).Scan(&p.UserID, &p.Timezone, &p.CreatedAt, &p.UpdatedAt)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upsert profile timezone: %w", err)
	}

	return p, nil
}

// compile-time interface check
var _ ProfileRepository = (*PostgresProfileRepo)(nil)
