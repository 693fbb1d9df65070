package model

import "time"

// Favorite はユーザーとイベントのお気に入り関係を表す。
// (UserID, EventID) の組につき最大1件。
type Favorite struct {
	ID        string
	UserID    string
	EventID   string
	CreatedAt time.Time
}

// FavoriteEntry はお気に入り一覧の1行。参照先イベントを結合済み。
type FavoriteEntry struct {
	ID      string `json:"id"`
	EventID string `json:"eventId"`
	Event   Event  `json:"event"`
}
