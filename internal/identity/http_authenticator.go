package identity

import (
	"context"
	"net/http"

	"github.com/hitoshi/eventorg/internal/apiclient"
	"github.com/hitoshi/eventorg/internal/model"
)

// HTTPAuthenticator はバックエンドHTTP APIのアカウント・セッションエンドポイントを呼び出す。
type HTTPAuthenticator struct {
	client *apiclient.Client
}

// NewHTTPAuthenticator はHTTPAuthenticatorを生成する。
func NewHTTPAuthenticator(client *apiclient.Client) *HTTPAuthenticator {
	return &HTTPAuthenticator{client: client}
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type profileRequest struct {
	DisplayName string `json:"displayName"`
}

// Register はアカウントを作成する。
// POST /v1/accounts
func (a *HTTPAuthenticator) Register(ctx context.Context, email, password string) (*Credential, error) {
	var cred Credential
	if _, err := a.client.Do(ctx, http.MethodPost, "/v1/accounts", credentialsRequest{Email: email, Password: password}, &cred); err != nil {
		return nil, err
	}
	return &cred, nil
}

// SignIn はセッションを発行する。
// POST /v1/sessions
func (a *HTTPAuthenticator) SignIn(ctx context.Context, email, password string) (*Credential, error) {
	var cred Credential
	if _, err := a.client.Do(ctx, http.MethodPost, "/v1/sessions", credentialsRequest{Email: email, Password: password}, &cred); err != nil {
		return nil, err
	}
	return &cred, nil
}

// UpdateProfile は表示名を更新する。
// PATCH /v1/accounts/me
func (a *HTTPAuthenticator) UpdateProfile(ctx context.Context, token, displayName string) (*model.User, error) {
	var user model.User
	if _, err := a.withToken(token).Do(ctx, http.MethodPatch, "/v1/accounts/me", profileRequest{DisplayName: displayName}, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// SignOut はセッションを破棄する。
// DELETE /v1/sessions/current
func (a *HTTPAuthenticator) SignOut(ctx context.Context, token string) error {
	_, err := a.withToken(token).Do(ctx, http.MethodDelete, "/v1/sessions/current", nil, nil)
	return err
}

// Lookup はトークンの持ち主を返す。
// GET /v1/accounts/me
func (a *HTTPAuthenticator) Lookup(ctx context.Context, token string) (*model.User, error) {
	var user model.User
	if _, err := a.withToken(token).Do(ctx, http.MethodGet, "/v1/accounts/me", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (a *HTTPAuthenticator) withToken(token string) *apiclient.Client {
	return a.client.WithToken(func() string { return token })
}

// compile-time interface check
var _ Authenticator = (*HTTPAuthenticator)(nil)
