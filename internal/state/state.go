// Package state はアプリケーション全体の状態コンテナを提供する。
// 状態の変更は名前付きアクションのDispatchを通してのみ行い、各スライスは純粋なreducerで更新する。
package state

import (
	"github.com/hitoshi/eventorg/internal/model"
)

// AuthState は認証スライス。
type AuthState struct {
	IsAuthenticated bool
	User            *model.User
}

// EventsState はイベントスライス。
type EventsState struct {
	Events       []model.Event
	CurrentEvent *model.Event
	Loading      bool
	Error        string

	// seq は最後に開始した取得の順序番号
	seq uint64
}

// FavoritesState はお気に入りスライス。
type FavoritesState struct {
	Favorites []model.FavoriteEntry
	Loading   bool
	Error     string

	seq uint64
}

// State は3つのスライスをまとめた状態全体。
type State struct {
	Auth      AuthState
	Events    EventsState
	Favorites FavoritesState
}

// clone はスライスとポインタを複製した深いコピーを返す。
func (s State) clone() State {
	out := s
	if s.Auth.User != nil {
		u := *s.Auth.User
		out.Auth.User = &u
	}
	if s.Events.Events != nil {
		out.Events.Events = make([]model.Event, len(s.Events.Events))
		for i, e := range s.Events.Events {
			out.Events.Events[i] = cloneEvent(e)
		}
	}
	if s.Events.CurrentEvent != nil {
		e := cloneEvent(*s.Events.CurrentEvent)
		out.Events.CurrentEvent = &e
	}
	if s.Favorites.Favorites != nil {
		out.Favorites.Favorites = make([]model.FavoriteEntry, len(s.Favorites.Favorites))
		for i, f := range s.Favorites.Favorites {
			f.Event = cloneEvent(f.Event)
			out.Favorites.Favorites[i] = f
		}
	}
	return out
}

func cloneEvent(e model.Event) model.Event {
	if e.Date != nil {
		d := *e.Date
		e.Date = &d
	}
	if e.ImageURL != nil {
		u := *e.ImageURL
		e.ImageURL = &u
	}
	return e
}
