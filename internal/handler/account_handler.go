package handler

import (
	"net/http"

	"github.com/hitoshi/eventorg/internal/identity"
	"github.com/hitoshi/eventorg/internal/middleware"
	"github.com/hitoshi/eventorg/internal/model"
)

// AccountHandler はアカウント・セッション関連のHTTPハンドラー。
type AccountHandler struct {
	service identity.Authenticator
}

// NewAccountHandler はAccountHandlerを生成する。
func NewAccountHandler(service identity.Authenticator) *AccountHandler {
	return &AccountHandler{service: service}
}

// credentialsRequest は登録・サインインリクエストのボディ。
type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// profileRequest はプロフィール更新リクエストのボディ。
type profileRequest struct {
	DisplayName string `json:"displayName"`
}

// Register はアカウントを作成し、IDトークンを発行する。
// POST /v1/accounts
func (h *AccountHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	cred, err := h.service.Register(r.Context(), req.Email, req.Password)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, cred)
}

// SignIn はメールアドレスとパスワードでIDトークンを発行する。
// POST /v1/sessions
func (h *AccountHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	cred, err := h.service.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cred)
}

// SignOut は現在のIDトークンのセッションを破棄する。
// トークンがない・無効な場合も204を返す。
// DELETE /v1/sessions/current
func (h *AccountHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	if token := middleware.BearerToken(r); token != "" {
		if err := h.service.SignOut(r.Context(), token); err != nil {
			handleServiceError(w, err)
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

// Me は認証済みユーザーの情報を返す。
// GET /v1/accounts/me
func (h *AccountHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.Lookup(r.Context(), middleware.TokenFromContext(r.Context()))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// UpdateMe は認証済みユーザーの表示名を更新する。
// PATCH /v1/accounts/me
func (h *AccountHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.DisplayName == "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("displayName is required"))
		return
	}

	user, err := h.service.UpdateProfile(r.Context(), middleware.TokenFromContext(r.Context()), req.DisplayName)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}
