package state

import (
	"slices"

	"github.com/hitoshi/eventorg/internal/model"
)

// reduce は全スライスにアクションを適用した新しい状態を返す。
func reduce(s State, a Action) State {
	return State{
		Auth:      reduceAuth(s.Auth, a),
		Events:    reduceEvents(s.Events, a),
		Favorites: reduceFavorites(s.Favorites, a),
	}
}

func reduceAuth(st AuthState, a Action) AuthState {
	switch a := a.(type) {
	case LoginSuccess:
		u := a.User
		return AuthState{IsAuthenticated: true, User: &u}
	case LogoutSuccess:
		return AuthState{}
	}
	return st
}

// stale はSeq付きの結果が最後に開始した取得のものでないかを返す。
// Seqが0の結果は常に適用する。
func stale(resultSeq, latestSeq uint64) bool {
	return resultSeq != 0 && resultSeq != latestSeq
}

func reduceEvents(st EventsState, a Action) EventsState {
	switch a := a.(type) {
	case LogoutSuccess:
		// 進行中の取得結果も破棄する
		return EventsState{Events: []model.Event{}}
	case FetchEventsStart:
		st.Loading = true
		st.Error = ""
		if a.Seq != 0 {
			st.seq = a.Seq
		}
	case FetchEventsSuccess:
		if stale(a.Seq, st.seq) {
			return st
		}
		st.Loading = false
		st.Events = slices.Clone(a.Events)
		st.Error = ""
	case FetchEventsFailure:
		if stale(a.Seq, st.seq) {
			return st
		}
		st.Loading = false
		st.Error = a.Error
	case SetCurrentEvent:
		e := a.Event
		st.CurrentEvent = &e
	case ClearCurrentEvent:
		st.CurrentEvent = nil
	case AddEventSuccess:
		st.Events = append(slices.Clone(st.Events), a.Event)
	case UpdateEventSuccess:
		i := slices.IndexFunc(st.Events, func(e model.Event) bool { return e.ID == a.Event.ID })
		if i < 0 {
			return st
		}
		events := slices.Clone(st.Events)
		events[i] = a.Event
		st.Events = events
	case DeleteEventSuccess:
		st.Events = slices.DeleteFunc(slices.Clone(st.Events), func(e model.Event) bool { return e.ID == a.ID })
	case ClearEventsError:
		st.Error = ""
	}
	return st
}

func reduceFavorites(st FavoritesState, a Action) FavoritesState {
	switch a := a.(type) {
	case LogoutSuccess:
		return FavoritesState{Favorites: []model.FavoriteEntry{}}
	case FetchFavoritesStart:
		st.Loading = true
		st.Error = ""
		if a.Seq != 0 {
			st.seq = a.Seq
		}
	case FetchFavoritesSuccess:
		if stale(a.Seq, st.seq) {
			return st
		}
		st.Loading = false
		st.Favorites = slices.Clone(a.Favorites)
		st.Error = ""
	case FetchFavoritesFailure:
		if stale(a.Seq, st.seq) {
			return st
		}
		st.Loading = false
		st.Error = a.Error
	case AddFavoriteSuccess:
		st.Favorites = append(slices.Clone(st.Favorites), a.Favorite)
	case RemoveFavoriteSuccess:
		st.Favorites = slices.DeleteFunc(slices.Clone(st.Favorites), func(f model.FavoriteEntry) bool { return f.ID == a.ID })
	case ClearFavoritesError:
		st.Error = ""
	}
	return st
}
