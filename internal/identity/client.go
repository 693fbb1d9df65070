package identity

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/hitoshi/eventorg/internal/model"
)

// Client はAuthenticatorの上にService機能を実装する。
// 現在のIDとトークンを保持し、変更をリスナーへ配信する。
// IDトークンのexpクレームに合わせてタイマーを張り、期限切れでローカルにサインアウトする。
type Client struct {
	auth Authenticator

	mu        sync.Mutex
	current   *model.User
	token     string
	expiry    *time.Timer
	gen       uint64
	listeners map[uint64]Listener
	nextID    uint64

	// 状態変更と配信をこの順で直列化する
	notifyMu sync.Mutex
}

// NewClient はClientを生成する。
func NewClient(auth Authenticator) *Client {
	return &Client{
		auth:      auth,
		listeners: make(map[uint64]Listener),
	}
}

// CreateAccount はアカウントを作成しサインイン状態にする。
func (c *Client) CreateAccount(ctx context.Context, email, password string) (*model.User, error) {
	cred, err := c.auth.Register(ctx, email, password)
	if err != nil {
		return nil, err
	}
	return c.establish(cred), nil
}

// SignIn はサインインする。
func (c *Client) SignIn(ctx context.Context, email, password string) (*model.User, error) {
	cred, err := c.auth.SignIn(ctx, email, password)
	if err != nil {
		return nil, err
	}
	return c.establish(cred), nil
}

// Restore は保存済みのIDトークンでセッションを復元する。
func (c *Client) Restore(ctx context.Context, token string) (*model.User, error) {
	user, err := c.auth.Lookup(ctx, token)
	if err != nil {
		return nil, err
	}
	return c.establish(&Credential{User: *user, Token: token}), nil
}

// SetDisplayName は表示名を設定する。変更後のIDをリスナーへ通知する。
func (c *Client) SetDisplayName(ctx context.Context, user *model.User, name string) (*model.User, error) {
	c.mu.Lock()
	token, current := c.token, c.current
	c.mu.Unlock()

	if current == nil || token == "" {
		return nil, ErrNoIdentity
	}
	if user != nil && user.ID != current.ID {
		return nil, fmt.Errorf("identity %s is not the signed-in user", user.ID)
	}

	updated, err := c.auth.UpdateProfile(ctx, token, name)
	if err != nil {
		return nil, err
	}

	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()

	c.mu.Lock()
	if c.token != token {
		// 更新中にサインアウト・再サインインされた
		c.mu.Unlock()
		return cloneUser(updated), nil
	}
	c.current = cloneUser(updated)
	c.mu.Unlock()

	c.deliver(updated)
	return cloneUser(updated), nil
}

// SignOut はサインアウトする。バックエンドの失敗時もローカルのIDは破棄し、エラーのみ返す。
func (c *Client) SignOut(ctx context.Context) error {
	c.mu.Lock()
	token := c.token
	c.mu.Unlock()

	var err error
	if token != "" {
		err = c.auth.SignOut(ctx, token)
	}
	c.clear(token)
	return err
}

// CurrentIdentity は現在のIDのコピーを返す。
func (c *Client) CurrentIdentity() *model.User {
	c.mu.Lock()
	defer c.mu.Unlock()
	return cloneUser(c.current)
}

// Token は現在のIDトークンを返す。未サインインの場合は空文字。
// apiclient.TokenSourceとして使用する。
func (c *Client) Token() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

// OnIdentityChanged はリスナーを登録し、現在のIDを即座に一度通知する。
// リスナー内からサインイン・サインアウトを同期的に呼び出してはならない。
func (c *Client) OnIdentityChanged(fn Listener) func() {
	c.notifyMu.Lock()
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	current := cloneUser(c.current)
	c.mu.Unlock()
	fn(current)
	c.notifyMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.listeners, id)
			c.mu.Unlock()
		})
	}
}

// establish は認証結果を現在のIDとして保持し、期限タイマーを張り直して通知する。
func (c *Client) establish(cred *Credential) *model.User {
	user := cloneUser(&cred.User)

	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()

	c.mu.Lock()
	c.stopExpiryLocked()
	c.current = user
	c.token = cred.Token
	c.gen++
	if exp, ok := tokenExpiry(cred.Token); ok {
		gen := c.gen
		c.expiry = time.AfterFunc(time.Until(exp), func() { c.expire(gen) })
	}
	c.mu.Unlock()

	c.deliver(user)
	return cloneUser(user)
}

// expire はトークンの期限切れでローカルにサインアウトする。
func (c *Client) expire(gen uint64) {
	c.mu.Lock()
	if c.gen != gen || c.current == nil {
		c.mu.Unlock()
		return
	}
	userID := c.current.ID
	c.mu.Unlock()

	slog.Info("identity token expired",
		slog.String("user_id", userID),
	)
	c.clearGen(gen)
}

// clear は指定トークンのセッションが現在のものであれば破棄する。
func (c *Client) clear(token string) {
	c.mu.Lock()
	if c.token != token {
		c.mu.Unlock()
		return
	}
	gen := c.gen
	c.mu.Unlock()
	c.clearGen(gen)
}

func (c *Client) clearGen(gen uint64) {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()

	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		return
	}
	c.stopExpiryLocked()
	wasSignedIn := c.current != nil
	c.current = nil
	c.token = ""
	c.gen++
	c.mu.Unlock()

	if wasSignedIn {
		c.deliver(nil)
	}
}

func (c *Client) stopExpiryLocked() {
	if c.expiry != nil {
		c.expiry.Stop()
		c.expiry = nil
	}
}

// deliver はIDを全リスナーに配信する。呼び出し側はnotifyMuを保持すること。
func (c *Client) deliver(user *model.User) {
	c.mu.Lock()
	fns := make([]Listener, 0, len(c.listeners))
	for _, fn := range c.listeners {
		fns = append(fns, fn)
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn(cloneUser(user))
	}
}

// tokenExpiry はIDトークンのexpクレームを署名検証なしで読み取る。
// 署名の検証はバックエンドが行う。
func tokenExpiry(token string) (time.Time, bool) {
	if token == "" {
		return time.Time{}, false
	}
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		slog.Warn("failed to parse identity token",
			slog.String("error", err.Error()),
		)
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

func cloneUser(u *model.User) *model.User {
	if u == nil {
		return nil
	}
	cp := *u
	return &cp
}

// compile-time interface check
var _ Service = (*Client)(nil)
