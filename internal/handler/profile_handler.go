package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/hitoshi/productivitygo/internal/middleware"
	"github.com/hitoshi/productivitygo/internal/model"
)

// maxProfileBodyBytes はプロフィール更新リクエストボディの上限サイズ。
const maxProfileBodyBytes = 4 << 10

// ProfileServiceInterface はプロフィールハンドラーが必要とするサービスインターフェース。
type ProfileServiceInterface interface {
	// GetProfile はユーザーのプロフィールを返す。未保存の場合はデフォルトプロフィールを返す。
	GetProfile(ctx context.Context, userID string) (*model.UserProfile, error)
	// UpdateProfile はプロフィールを部分更新する。
	UpdateProfile(ctx context.Context, userID string, update model.ProfileUpdate) (*model.UserProfile, error)
}

// ProfileHandler はユーザープロフィールのHTTPハンドラー。
type ProfileHandler struct {
	service ProfileServiceInterface
}

// NewProfileHandler はProfileHandlerを生成する。
func NewProfileHandler(service ProfileServiceInterface) *ProfileHandler {
	return &ProfileHandler{service: service}
}

// updateProfileRequest はプロフィール更新リクエストのボディ。
type updateProfileRequest struct {
	Timezone *string `json:"timezone"`
}

// profileResponse はプロフィールのAPIレスポンス。
type profileResponse struct {
	UserID    string     `json:"user_id"`
	Timezone  string     `json:"timezone"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

// GetProfile は認証済みユーザーのプロフィールを返す。
// GET /users/profile
func (h *ProfileHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	p, err := h.service.GetProfile(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toProfileResponse(p))
}

// ReplaceProfile はプロフィールを置き換える。timezoneは必須。
// PUT /users/profile
func (h *ProfileHandler) ReplaceProfile(w http.ResponseWriter, r *http.Request) {
	h.update(w, r, true)
}

// PatchProfile はプロフィールを部分更新する。省略されたフィールドは変更しない。
// PATCH /users/profile
func (h *ProfileHandler) PatchProfile(w http.ResponseWriter, r *http.Request) {
	h.update(w, r, false)
}

func (h *ProfileHandler) update(w http.ResponseWriter, r *http.Request, requireTimezone bool) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	var req updateProfileRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxProfileBodyBytes)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidBodyError())
		return
	}

	if requireTimezone && req.Timezone == nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidTimezoneError(""))
		return
	}

	p, err := h.service.UpdateProfile(r.Context(), userID, model.ProfileUpdate{Timezone: req.Timezone})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toProfileResponse(p))
}

// toProfileResponse はmodel.UserProfileからAPIレスポンスに変換する。
// 未保存のデフォルトプロフィールでは日時を省略する。
func toProfileResponse(p *model.UserProfile) profileResponse {
	resp := profileResponse{
		UserID:   p.UserID,
		Timezone: p.EffectiveTimezone(),
	}
	if !p.CreatedAt.IsZero() {
		createdAt := p.CreatedAt
		resp.CreatedAt = &createdAt
	}
	if !p.UpdatedAt.IsZero() {
		updatedAt := p.UpdatedAt
		resp.UpdatedAt = &updatedAt
	}
	return resp
}
