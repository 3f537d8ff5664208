// Package profileclient はプロフィールAPIのHTTPクライアントを提供する。
// タイムゾーン自動同期が現在のプロフィール取得とタイムゾーン更新に使用する。
package profileclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
)

const (
	// profilePath はベースURLからのプロフィールエンドポイントの相対パス。
	profilePath = "/users/profile"
	// maxResponseBytes はレスポンスボディの読み取り上限。
	maxResponseBytes = 1 << 20
	userAgent        = "productivitygo-timezone-sync/1.0"
)

// ErrorKind はプロフィールAPI呼び出し失敗の分類。
type ErrorKind string

const (
	// KindNetwork はサーバーに到達できない場合（接続拒否・タイムアウト等）。
	KindNetwork ErrorKind = "network"
	// KindAuth はトークンが拒否された場合（401/403）。
	KindAuth ErrorKind = "auth"
	// KindServer はその他の非2xxレスポンスや不正なレスポンスボディ。
	KindServer ErrorKind = "server"
)

// Error はプロフィールAPI呼び出しのエラー。
type Error struct {
	Kind       ErrorKind
	StatusCode int // HTTPレスポンスを受け取った場合のみ設定される
	Err        error
}

// Error はerrorインターフェースを実装する。
func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("profile api %s error (status %d): %v", e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("profile api %s error: %v", e.Kind, e.Err)
}

// Unwrap は元のエラーを返す。
func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf はerrからErrorKindを取り出す。*Errorでない場合は空文字を返す。
func KindOf(err error) ErrorKind {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return ""
}

// Profile はプロフィールAPIのレスポンス。
// timezoneは省略されうるため、未設定と空文字を区別しない。
type Profile struct {
	UserID   string `json:"user_id,omitempty"`
	Timezone string `json:"timezone,omitempty"`
}

type updateRequest struct {
	Timezone string `json:"timezone"`
}

// Client はプロフィールAPIのクライアント。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	baseURL    string
}

// NewClient はClientの新しいインスタンスを生成する。
// baseURLはAPIのルート（開発プロキシ経由なら "http://127.0.0.1:5173/api"）。
// タイムアウトはhttpClient.Timeoutで制御する。
func NewClient(httpClient *http.Client, logger *slog.Logger, baseURL string) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

// GetProfile はアクセストークンの持ち主のプロフィールを取得する。
func (c *Client) GetProfile(ctx context.Context, accessToken string) (*Profile, error) {
	var p Profile
	if err := c.do(ctx, http.MethodGet, accessToken, nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// UpdateTimezone はプロフィールのタイムゾーンを更新し、更新後のプロフィールを返す。
func (c *Client) UpdateTimezone(ctx context.Context, accessToken, timezone string) (*Profile, error) {
	body, err := json.Marshal(updateRequest{Timezone: timezone})
	if err != nil {
		return nil, fmt.Errorf("リクエストボディの生成に失敗しました: %w", err)
	}

	var p Profile
	if err := c.do(ctx, http.MethodPut, accessToken, body, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) do(ctx context.Context, method, accessToken string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+profilePath, reader)
	if err != nil {
		return fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("プロフィールAPIに到達できませんでした",
			slog.String("method", method),
			slog.String("error", err.Error()),
		)
		return &Error{Kind: KindNetwork, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return &Error{Kind: KindNetwork, StatusCode: resp.StatusCode, Err: fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)}
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return &Error{Kind: KindAuth, StatusCode: resp.StatusCode, Err: errors.New(http.StatusText(resp.StatusCode))}
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return &Error{Kind: KindServer, StatusCode: resp.StatusCode, Err: fmt.Errorf("unexpected status: %s", summarize(data))}
	}

	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &Error{Kind: KindServer, StatusCode: resp.StatusCode, Err: fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err)}
	}
	return nil
}

// summarize はエラーメッセージ用にレスポンスボディを短縮する。
func summarize(data []byte) string {
	const limit = 200
	s := strings.TrimSpace(string(data))
	if len(s) > limit {
		return s[:limit] + "..."
	}
	return s
}
