package state

import "github.com/hitoshi/eventorg/internal/model"

// Action はStoreにDispatchするアクション。
type Action interface {
	actionName() string
}

// LoginSuccess はサインイン状態への遷移。
type LoginSuccess struct{ User model.User }

// LogoutSuccess はサインアウト状態への遷移。全スライスを初期化する。
type LogoutSuccess struct{}

// FetchEventsStart はイベント一覧の取得開始。
type FetchEventsStart struct{ Seq uint64 }

// FetchEventsSuccess はイベント一覧の取得成功。
// Seqが0でない場合、最後に開始した取得より古い結果は無視される。
type FetchEventsSuccess struct {
	Events []model.Event
	Seq    uint64
}

// FetchEventsFailure はイベント一覧の取得失敗。
type FetchEventsFailure struct {
	Error string
	Seq   uint64
}

// SetCurrentEvent は詳細表示中のイベントを設定する。
type SetCurrentEvent struct{ Event model.Event }

// ClearCurrentEvent は詳細表示中のイベントを解除する。
type ClearCurrentEvent struct{}

// AddEventSuccess は作成済みイベントを一覧に追加する。
type AddEventSuccess struct{ Event model.Event }

// UpdateEventSuccess は一覧内の同じIDのイベントを置き換える。該当がなければ何もしない。
type UpdateEventSuccess struct{ Event model.Event }

// DeleteEventSuccess は一覧からイベントを除く。
type DeleteEventSuccess struct{ ID string }

// ClearEventsError はイベントスライスのエラーを消去する。
type ClearEventsError struct{}

// FetchFavoritesStart はお気に入り一覧の取得開始。
type FetchFavoritesStart struct{ Seq uint64 }

// FetchFavoritesSuccess はお気に入り一覧の取得成功。
type FetchFavoritesSuccess struct {
	Favorites []model.FavoriteEntry
	Seq       uint64
}

// FetchFavoritesFailure はお気に入り一覧の取得失敗。
type FetchFavoritesFailure struct {
	Error string
	Seq   uint64
}

// AddFavoriteSuccess はお気に入りを一覧に追加する。
type AddFavoriteSuccess struct{ Favorite model.FavoriteEntry }

// RemoveFavoriteSuccess はお気に入りを一覧から除く。
type RemoveFavoriteSuccess struct{ ID string }

// ClearFavoritesError はお気に入りスライスのエラーを消去する。
type ClearFavoritesError struct{}

func (LoginSuccess) actionName() string          { return "auth/loginSuccess" }
func (LogoutSuccess) actionName() string         { return "auth/logoutSuccess" }
func (FetchEventsStart) actionName() string      { return "events/fetchEventsStart" }
func (FetchEventsSuccess) actionName() string    { return "events/fetchEventsSuccess" }
func (FetchEventsFailure) actionName() string    { return "events/fetchEventsFailure" }
func (SetCurrentEvent) actionName() string       { return "events/setCurrentEvent" }
func (ClearCurrentEvent) actionName() string     { return "events/clearCurrentEvent" }
func (AddEventSuccess) actionName() string       { return "events/addEventSuccess" }
func (UpdateEventSuccess) actionName() string    { return "events/updateEventSuccess" }
func (DeleteEventSuccess) actionName() string    { return "events/deleteEventSuccess" }
func (ClearEventsError) actionName() string      { return "events/clearError" }
func (FetchFavoritesStart) actionName() string   { return "favorites/fetchFavoritesStart" }
func (FetchFavoritesSuccess) actionName() string { return "favorites/fetchFavoritesSuccess" }
func (FetchFavoritesFailure) actionName() string { return "favorites/fetchFavoritesFailure" }
func (AddFavoriteSuccess) actionName() string    { return "favorites/addFavoriteSuccess" }
func (RemoveFavoriteSuccess) actionName() string { return "favorites/removeFavoriteSuccess" }
func (ClearFavoritesError) actionName() string   { return "favorites/clearError" }

// Name はログ出力用のアクション名を返す。
func Name(a Action) string {
	return a.actionName()
}
