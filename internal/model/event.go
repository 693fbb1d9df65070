package model

import "time"

// Event はイベント主催者が作成するイベントを表す。
// IDはドキュメントストアが採番し、UserID（オーナー）は作成後に変更されない。
type Event struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Date        *string   `json:"date"` // ISO 8601。未設定はnil
	Location    string    `json:"location"`
	ImageURL    *string   `json:"imageUrl"`
	UserID      string    `json:"userId"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// OwnedBy は指定ユーザーがイベントのオーナーかどうかを返す。
// 編集・削除の可否判定は呼び出し側の責務。
func (e *Event) OwnedBy(userID string) bool {
	return e != nil && userID != "" && e.UserID == userID
}

// EventInput はイベントの可変フィールド一式。
// 更新は部分マージではなく、この全フィールドの置き換えとして扱う。
type EventInput struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Date        *string `json:"date"`
	Location    string  `json:"location"`
	ImageURL    *string `json:"imageUrl"`
}

// Apply は入力値でイベントの可変フィールドを置き換えたコピーを返す。
func (in EventInput) Apply(e Event) Event {
	e.Title = in.Title
	e.Description = in.Description
	e.Date = in.Date
	e.Location = in.Location
	e.ImageURL = in.ImageURL
	return e
}
