// Package identity はIDサービス機能（アカウント作成・サインイン・サインアウト・
// 表示名設定・現在のID取得・ID変更通知）をクライアントコアに提供する。
package identity

import (
	"context"
	"errors"

	"github.com/hitoshi/eventorg/internal/model"
)

// ErrNoIdentity はサインインしていない状態でID必須の操作を呼んだことを示す。
var ErrNoIdentity = errors.New("no signed-in user")

// Listener はID変更の通知先。サインアウト時はnilが渡される。
type Listener func(user *model.User)

// Service はIDサービス機能のインターフェース。
type Service interface {
	// CreateAccount はアカウントを作成し、そのままサインイン状態にする。
	CreateAccount(ctx context.Context, email, password string) (*model.User, error)

	// SetDisplayName はサインイン中のユーザーの表示名を設定する。
	SetDisplayName(ctx context.Context, user *model.User, name string) (*model.User, error)

	// SignIn はメールアドレスとパスワードでサインインする。
	SignIn(ctx context.Context, email, password string) (*model.User, error)

	// SignOut はサインアウトする。
	SignOut(ctx context.Context) error

	// CurrentIdentity は現在のIDを同期的に返す。未サインインの場合はnil。
	CurrentIdentity() *model.User

	// OnIdentityChanged はID変更の通知を登録し、解除関数を返す。
	// 登録時点のIDが即座に一度通知される。
	OnIdentityChanged(fn Listener) (unsubscribe func())
}

// Credential は認証成功時にバックエンドが返すユーザーとIDトークン。
type Credential struct {
	User  model.User `json:"user"`
	Token string     `json:"token"`
}

// Authenticator はIDサービスのバックエンド（インプロセスまたはHTTP）。
type Authenticator interface {
	// Register はアカウントを作成しセッションを発行する。
	Register(ctx context.Context, email, password string) (*Credential, error)
	// SignIn はセッションを発行する。
	SignIn(ctx context.Context, email, password string) (*Credential, error)
	// UpdateProfile はトークンの持ち主の表示名を更新する。
	UpdateProfile(ctx context.Context, token, displayName string) (*model.User, error)
	// SignOut はトークンのセッションを破棄する。
	SignOut(ctx context.Context, token string) error
	// Lookup はトークンの持ち主を返す。
	Lookup(ctx context.Context, token string) (*model.User, error)
}
