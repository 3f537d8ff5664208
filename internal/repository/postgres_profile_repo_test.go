package repository

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/productivitygo/internal/database"
)

// PostgresProfileRepoはProfileRepositoryインターフェースを満たすことを検証
func TestPostgresProfileRepo_ImplementsInterface(t *testing.T) {
	var _ ProfileRepository = (*PostgresProfileRepo)(nil)
}

// NewPostgresProfileRepoが正しく初期化されることを検証
func TestNewPostgresProfileRepo_Initializes(t *testing.T) {
	repo := NewPostgresProfileRepo(nil, database.DefaultRetryConfig())
	if repo == nil {
		t.Fatal("expected non-nil repo")
	}
}

// setupProfileDB はマイグレーション済みのテスト用DBを返す。接続できない場合はスキップする。
func setupProfileDB(t *testing.T) *sql.DB {
	t.Helper()

	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL が未設定のためスキップ")
	}

	db, err := database.Open(dbURL, database.DefaultPoolConfig())
	if err != nil {
		t.Fatalf("データベースのオープンに失敗: %v", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		t.Skipf("テスト用データベースに接続できません（スキップ）: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if _, err := database.RunMigrations(dbURL); err != nil {
		t.Fatalf("マイグレーション実行に失敗: %v", err)
	}
	return db
}

func TestPostgresProfileRepo_FindByUserID_NotFoundReturnsNil(t *testing.T) {
	db := setupProfileDB(t)
	repo := NewPostgresProfileRepo(db, database.DefaultRetryConfig())

	profile, err := repo.FindByUserID(context.Background(), uuid.NewString())
	if err != nil {
		t.Fatalf("FindByUserID returned error: %v", err)
	}
	if profile != nil {
		t.Errorf("profile = %+v, want nil", profile)
	}
}

func TestPostgresProfileRepo_UpsertTimezone_CreatesThenUpdates(t *testing.T) {
	db := setupProfileDB(t)
	repo := NewPostgresProfileRepo(db, database.DefaultRetryConfig())
	ctx := context.Background()
	userID := uuid.NewString()
	t.Cleanup(func() {
		db.Exec(`DELETE FROM user_profiles WHERE user_id = $1`, userID)
	})

	created, err := repo.UpsertTimezone(ctx, userID, "America/New_York")
	if err != nil {
		t.Fatalf("UpsertTimezone (create) returned error: %v", err)
	}
	if created.Timezone != "America/New_York" {
		t.Errorf("Timezone = %q, want %q", created.Timezone, "America/New_York")
	}

	time.Sleep(10 * time.Millisecond)

	updated, err := repo.UpsertTimezone(ctx, userID, "Europe/Paris")
	if err != nil {
		t.Fatalf("UpsertTimezone (update) returned error: %v", err)
	}
	if updated.Timezone != "Europe/Paris" {
		t.Errorf("Timezone = %q, want %q", updated.Timezone, "Europe/Paris")
	}
	if !updated.CreatedAt.Equal(created.CreatedAt) {
		t.Errorf("CreatedAt changed on update: %v -> %v", created.CreatedAt, updated.CreatedAt)
	}

	found, err := repo.FindByUserID(ctx, userID)
	if err != nil {
		t.Fatalf("FindByUserID returned error: %v", err)
	}
	if found == nil || found.Timezone != "Europe/Paris" {
		t.Errorf("found = %+v, want timezone Europe/Paris", found)
	}
}
