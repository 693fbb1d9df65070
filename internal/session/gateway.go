// Package session はIDサービスを包むセッションゲートウェイを提供する。
// ユーザー情報は{id, email, displayName}に正規化して返す。
package session

import (
	"context"
	"log/slog"
	"sync"

	"github.com/hitoshi/eventorg/internal/identity"
	"github.com/hitoshi/eventorg/internal/model"
	"github.com/hitoshi/eventorg/internal/state"
)

// 操作名。OpError.Opに設定される。
const (
	OpRegister = "session.register"
	OpLogin    = "session.login"
	OpLogout   = "session.logout"
)

// Dispatcher はID変更を反映する状態コンテナ。*state.Storeが満たす。
type Dispatcher interface {
	Dispatch(a state.Action)
}

// Gateway はIDサービスに対する登録・ログイン・ログアウト・現在ユーザー取得を提供する。
type Gateway struct {
	identity identity.Service
}

// NewGateway はGatewayを生成する。
func NewGateway(svc identity.Service) *Gateway {
	return &Gateway{identity: svc}
}

// Register はアカウントを作成し、表示名を設定したユーザーを返す。
func (g *Gateway) Register(ctx context.Context, email, password, displayName string) (user *model.User, err error) {
	defer model.RecoverAsRemote(OpRegister, &err)

	created, err := g.identity.CreateAccount(ctx, email, password)
	if err != nil {
		return nil, model.NewRemoteError(OpRegister, err)
	}

	user, err = g.identity.SetDisplayName(ctx, created, displayName)
	if err != nil {
		slog.Warn("表示名の設定に失敗",
			slog.String("user_id", created.ID),
			slog.String("error", err.Error()),
		)
		return nil, model.NewRemoteError(OpRegister, err)
	}
	return user, nil
}

// Login はサインインしたユーザーを返す。
func (g *Gateway) Login(ctx context.Context, email, password string) (user *model.User, err error) {
	defer model.RecoverAsRemote(OpLogin, &err)

	user, err = g.identity.SignIn(ctx, email, password)
	if err != nil {
		return nil, model.NewRemoteError(OpLogin, err)
	}
	return user, nil
}

// Logout はリモートのセッションを破棄する。
func (g *Gateway) Logout(ctx context.Context) (err error) {
	defer model.RecoverAsRemote(OpLogout, &err)

	if err := g.identity.SignOut(ctx); err != nil {
		return model.NewRemoteError(OpLogout, err)
	}
	return nil
}

// CurrentUser はIDサービスが現在保持しているユーザーを同期的に返す。未サインインの場合はnil。
func (g *Gateway) CurrentUser() *model.User {
	return g.identity.CurrentIdentity()
}

// Watch はID変更をLoginSuccess / LogoutSuccessとしてdへ反映する購読を開始する。
// 登録時点の状態も一度反映される。呼び出し側は終了時にCloseすること。
func (g *Gateway) Watch(d Dispatcher) *Subscription {
	cancel := g.identity.OnIdentityChanged(func(user *model.User) {
		if user == nil {
			d.Dispatch(state.LogoutSuccess{})
			return
		}
		d.Dispatch(state.LoginSuccess{User: *user})
	})
	return &Subscription{cancel: cancel}
}

// Subscription はID変更購読のハンドル。
type Subscription struct {
	once   sync.Once
	cancel func()
}

// Close は購読を解除する。複数回呼び出しても安全。
func (s *Subscription) Close() {
	s.once.Do(func() {
		if s.cancel != nil {
			s.cancel()
		}
	})
}
