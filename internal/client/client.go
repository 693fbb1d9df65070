// Package client はクライアントコアの構成ルート。
// 状態コンテナ・セッションゲートウェイ・データアクセス層を組み立て、
// 各画面のワークフロー（検証→リモート呼び出し→状態反映）を提供する。
package client

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/eventorg/internal/docstore"
	"github.com/hitoshi/eventorg/internal/event"
	"github.com/hitoshi/eventorg/internal/favorite"
	"github.com/hitoshi/eventorg/internal/identity"
	"github.com/hitoshi/eventorg/internal/model"
	"github.com/hitoshi/eventorg/internal/session"
	"github.com/hitoshi/eventorg/internal/state"
	"github.com/hitoshi/eventorg/internal/validation"
)

// 取得失敗時にエラーメッセージがない場合の表示文言。
const (
	MessageLoadEventsFailed    = "Failed to load events"
	MessageLoadFavoritesFailed = "Failed to load favorites"
)

// オーナー以外が編集・削除しようとした場合のメッセージ。
const (
	MessageEditForbidden   = "You can only edit your own events"
	MessageDeleteForbidden = "You can only delete your own events"
)

// Config はクライアントの設定。
type Config struct {
	RemoteTimeout             time.Duration // リモート呼び出し1回あたりのタイムアウト。0以下で無制限
	FavoriteLookupConcurrency int           // お気に入り一覧のイベント並列取得数
}

// Client はクライアントコア全体を保持する。
type Client struct {
	config    Config
	store     *state.Store
	sessions  *session.Gateway
	events    *event.Service
	favorites *favorite.Service

	mu  sync.Mutex
	sub *session.Subscription
}

// New はClientを生成する。Startを呼ぶまでID変更は状態に反映されない。
func New(config Config, docs docstore.Store, ids identity.Service) *Client {
	return &Client{
		config:    config,
		store:     state.New(),
		sessions:  session.NewGateway(ids),
		events:    event.NewService(docs),
		favorites: favorite.NewService(docs, config.FavoriteLookupConcurrency),
	}
}

// Store は状態コンテナを返す。
func (c *Client) Store() *state.Store {
	return c.store
}

// Start はID変更の購読を開始する。既に開始している場合は何もしない。
func (c *Client) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sub != nil {
		return
	}
	c.sub = c.sessions.Watch(c.store)
}

// Close はID変更の購読を解除する。
func (c *Client) Close() {
	c.mu.Lock()
	sub := c.sub
	c.sub = nil
	c.mu.Unlock()
	if sub != nil {
		sub.Close()
	}
}

// withTimeout はリモート呼び出し用のコンテキストを返す。
func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.config.RemoteTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.config.RemoteTimeout)
}

// currentUserID は状態上のサインイン中ユーザーIDを返す。
func (c *Client) currentUserID(op string) (string, error) {
	st := c.store.Snapshot()
	if st.Auth.User != nil {
		return st.Auth.User.ID, nil
	}
	if u := c.sessions.CurrentUser(); u != nil {
		return u.ID, nil
	}
	return "", model.NewUnauthenticatedError(op)
}

// SignUp は入力を検証してアカウントを作成し、サインイン状態にする。
func (c *Client) SignUp(ctx context.Context, email, password, confirm, displayName string) (*model.User, error) {
	if err := validation.SignUp(email, password, confirm, displayName).Err(); err != nil {
		return nil, err
	}

	rctx, cancel := c.withTimeout(ctx)
	defer cancel()
	user, err := c.sessions.Register(rctx, email, password, displayName)
	if err != nil {
		return nil, err
	}
	c.store.Dispatch(state.LoginSuccess{User: *user})
	return user, nil
}

// SignIn は入力を検証してサインインする。
func (c *Client) SignIn(ctx context.Context, email, password string) (*model.User, error) {
	if err := validation.SignIn(email, password).Err(); err != nil {
		return nil, err
	}

	rctx, cancel := c.withTimeout(ctx)
	defer cancel()
	user, err := c.sessions.Login(rctx, email, password)
	if err != nil {
		return nil, err
	}
	c.store.Dispatch(state.LoginSuccess{User: *user})
	return user, nil
}

// SignOut はサインアウトする。リモートの失敗時もローカルの状態はサインアウト済みにし、エラーを返す。
func (c *Client) SignOut(ctx context.Context) error {
	rctx, cancel := c.withTimeout(ctx)
	defer cancel()
	err := c.sessions.Logout(rctx)
	if err != nil {
		slog.Warn("リモートのログアウトに失敗",
			slog.String("error", err.Error()),
		)
	}
	c.store.Dispatch(state.LogoutSuccess{})
	return err
}

// LoadEvents はサインイン中ユーザーのイベント一覧を取得し、状態に反映する。
func (c *Client) LoadEvents(ctx context.Context) error {
	uid, err := c.currentUserID(event.OpList)
	if err != nil {
		return err
	}

	seq := c.store.BeginEventsFetch()
	rctx, cancel := c.withTimeout(ctx)
	defer cancel()

	events, err := c.events.ListForUser(rctx, uid)
	if err != nil {
		c.store.Dispatch(state.FetchEventsFailure{Error: failureMessage(err, MessageLoadEventsFailed), Seq: seq})
		return err
	}
	c.store.Dispatch(state.FetchEventsSuccess{Events: events, Seq: seq})
	return nil
}

// OpenEvent はイベントを取得して詳細表示中のイベントに設定し、お気に入り状態と合わせて返す。
// お気に入り状態の取得に失敗した場合は未登録として扱う。
func (c *Client) OpenEvent(ctx context.Context, id string) (*model.Event, favorite.Status, error) {
	uid, err := c.currentUserID(event.OpGet)
	if err != nil {
		return nil, favorite.Status{}, err
	}

	rctx, cancel := c.withTimeout(ctx)
	defer cancel()

	ev, err := c.events.Get(rctx, id)
	if err != nil {
		return nil, favorite.Status{}, err
	}
	c.store.Dispatch(state.SetCurrentEvent{Event: *ev})

	status, err := c.favorites.IsFavorite(rctx, uid, id)
	if err != nil {
		slog.Warn("お気に入り状態の取得に失敗",
			slog.String("event_id", id),
			slog.String("error", err.Error()),
		)
		return ev, favorite.Status{}, nil
	}
	return ev, status, nil
}

// CreateEvent は入力を検証してイベントを作成し、一覧に追加する。
func (c *Client) CreateEvent(ctx context.Context, in model.EventInput) (*model.Event, error) {
	uid, err := c.currentUserID(event.OpCreate)
	if err != nil {
		return nil, err
	}
	if err := validation.EventInput(in).Err(); err != nil {
		return nil, err
	}

	rctx, cancel := c.withTimeout(ctx)
	defer cancel()

	id, err := c.events.Create(rctx, in, uid)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	ev := in.Apply(model.Event{ID: id, UserID: uid, CreatedAt: now, UpdatedAt: now})
	c.store.Dispatch(state.AddEventSuccess{Event: ev})
	return &ev, nil
}

// UpdateEvent は入力を検証し、オーナーであることを確認してイベントを更新する。
func (c *Client) UpdateEvent(ctx context.Context, id string, in model.EventInput) (*model.Event, error) {
	uid, err := c.currentUserID(event.OpUpdate)
	if err != nil {
		return nil, err
	}
	if err := validation.EventInput(in).Err(); err != nil {
		return nil, err
	}

	rctx, cancel := c.withTimeout(ctx)
	defer cancel()

	existing, err := c.events.Get(rctx, id)
	if err != nil {
		return nil, err
	}
	if !existing.OwnedBy(uid) {
		return nil, model.NewForbiddenError(event.OpUpdate, MessageEditForbidden)
	}

	if err := c.events.Update(rctx, id, in); err != nil {
		return nil, err
	}

	updated := in.Apply(*existing)
	updated.UpdatedAt = time.Now().UTC()
	c.store.Dispatch(state.UpdateEventSuccess{Event: updated})
	if cur := c.store.Snapshot().Events.CurrentEvent; cur != nil && cur.ID == id {
		c.store.Dispatch(state.SetCurrentEvent{Event: updated})
	}
	return &updated, nil
}

// DeleteEvent はオーナーであることを確認してイベントを削除し、一覧から除く。
func (c *Client) DeleteEvent(ctx context.Context, id string) error {
	uid, err := c.currentUserID(event.OpDelete)
	if err != nil {
		return err
	}

	rctx, cancel := c.withTimeout(ctx)
	defer cancel()

	existing, err := c.events.Get(rctx, id)
	switch {
	case model.IsNotFound(err):
		// 既に削除済み
	case err != nil:
		return err
	case !existing.OwnedBy(uid):
		return model.NewForbiddenError(event.OpDelete, MessageDeleteForbidden)
	}

	if err := c.events.Delete(rctx, id); err != nil {
		return err
	}
	c.store.Dispatch(state.DeleteEventSuccess{ID: id})
	if cur := c.store.Snapshot().Events.CurrentEvent; cur != nil && cur.ID == id {
		c.store.Dispatch(state.ClearCurrentEvent{})
	}
	return nil
}

// ToggleFavorite はイベントのお気に入り登録を切り替え、切り替え後の状態を返す。
func (c *Client) ToggleFavorite(ctx context.Context, eventID string) (favorite.Status, error) {
	uid, err := c.currentUserID(favorite.OpAdd)
	if err != nil {
		return favorite.Status{}, err
	}

	rctx, cancel := c.withTimeout(ctx)
	defer cancel()

	status, err := c.favorites.IsFavorite(rctx, uid, eventID)
	if err != nil {
		return favorite.Status{}, err
	}

	if status.IsFavorite {
		if err := c.favorites.Remove(rctx, status.FavoriteID); err != nil {
			return status, err
		}
		c.store.Dispatch(state.RemoveFavoriteSuccess{ID: status.FavoriteID})
		return favorite.Status{}, nil
	}

	ev, err := c.lookupEvent(rctx, eventID)
	if err != nil {
		return status, err
	}
	id, err := c.favorites.Add(rctx, uid, eventID)
	if err != nil {
		return status, err
	}
	c.store.Dispatch(state.AddFavoriteSuccess{Favorite: model.FavoriteEntry{ID: id, EventID: eventID, Event: *ev}})
	return favorite.Status{IsFavorite: true, FavoriteID: id}, nil
}

// lookupEvent は詳細表示中のイベントを優先し、なければリモートから取得する。
func (c *Client) lookupEvent(ctx context.Context, id string) (*model.Event, error) {
	if cur := c.store.Snapshot().Events.CurrentEvent; cur != nil && cur.ID == id {
		return cur, nil
	}
	return c.events.Get(ctx, id)
}

// LoadFavorites はサインイン中ユーザーのお気に入り一覧を取得し、状態に反映する。
func (c *Client) LoadFavorites(ctx context.Context) error {
	uid, err := c.currentUserID(favorite.OpList)
	if err != nil {
		return err
	}

	seq := c.store.BeginFavoritesFetch()
	rctx, cancel := c.withTimeout(ctx)
	defer cancel()

	favorites, err := c.favorites.ListForUser(rctx, uid)
	if err != nil {
		c.store.Dispatch(state.FetchFavoritesFailure{Error: failureMessage(err, MessageLoadFavoritesFailed), Seq: seq})
		return err
	}
	c.store.Dispatch(state.FetchFavoritesSuccess{Favorites: favorites, Seq: seq})
	return nil
}

// RemoveFavorite はお気に入りを削除し、一覧から除く。
func (c *Client) RemoveFavorite(ctx context.Context, favoriteID string) error {
	if _, err := c.currentUserID(favorite.OpRemove); err != nil {
		return err
	}

	rctx, cancel := c.withTimeout(ctx)
	defer cancel()

	if err := c.favorites.Remove(rctx, favoriteID); err != nil {
		return err
	}
	c.store.Dispatch(state.RemoveFavoriteSuccess{ID: favoriteID})
	return nil
}

// failureMessage は状態に設定するエラーメッセージを返す。
func failureMessage(err error, fallback string) string {
	if msg := model.ErrorMessage(err); msg != "" {
		return msg
	}
	return fallback
}
