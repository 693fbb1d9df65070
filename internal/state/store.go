package state

import (
	"log/slog"
	"sync"

	"github.com/hitoshi/eventorg/internal/model"
)

// Store はアプリケーション状態のコンテナ。
// Dispatchは排他制御され、購読者への通知はロック解放後に行う。
type Store struct {
	mu      sync.Mutex
	state   State
	counter uint64
	subs    map[uint64]func(State)
	nextSub uint64
}

// New は初期状態のStoreを生成する。
func New() *Store {
	return &Store{
		state: State{
			Events:    EventsState{Events: []model.Event{}},
			Favorites: FavoritesState{Favorites: []model.FavoriteEntry{}},
		},
		subs: make(map[uint64]func(State)),
	}
}

// Dispatch はアクションを適用し、購読者に新しい状態を通知する。
func (s *Store) Dispatch(a Action) {
	s.mu.Lock()
	snapshot, subs := s.applyLocked(a)
	s.mu.Unlock()

	slog.Debug("state action dispatched",
		slog.String("action", Name(a)),
	)
	for _, fn := range subs {
		fn(snapshot)
	}
}

// BeginEventsFetch はイベント一覧の取得開始をDispatchし、結果アクションに設定する順序番号を返す。
func (s *Store) BeginEventsFetch() uint64 {
	return s.begin(func(seq uint64) Action { return FetchEventsStart{Seq: seq} })
}

// BeginFavoritesFetch はお気に入り一覧の取得開始をDispatchし、順序番号を返す。
func (s *Store) BeginFavoritesFetch() uint64 {
	return s.begin(func(seq uint64) Action { return FetchFavoritesStart{Seq: seq} })
}

func (s *Store) begin(start func(seq uint64) Action) uint64 {
	s.mu.Lock()
	s.counter++
	seq := s.counter
	a := start(seq)
	snapshot, subs := s.applyLocked(a)
	s.mu.Unlock()

	slog.Debug("state action dispatched",
		slog.String("action", Name(a)),
		slog.Uint64("seq", seq),
	)
	for _, fn := range subs {
		fn(snapshot)
	}
	return seq
}

func (s *Store) applyLocked(a Action) (State, []func(State)) {
	s.state = reduce(s.state, a)
	subs := make([]func(State), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	if len(subs) == 0 {
		return State{}, nil
	}
	return s.state.clone(), subs
}

// Snapshot は現在の状態の深いコピーを返す。
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

// Subscribe は状態変更の通知先を登録し、解除関数を返す。
func (s *Store) Subscribe(fn func(State)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		})
	}
}
