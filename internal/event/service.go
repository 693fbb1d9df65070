// Package event はeventsコレクションに対するデータアクセス操作を提供する。
package event

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/hitoshi/eventorg/internal/docstore"
	"github.com/hitoshi/eventorg/internal/model"
)

// イベントドキュメントのフィールド名。
const (
	FieldTitle       = "title"
	FieldDescription = "description"
	FieldDate        = "date"
	FieldLocation    = "location"
	FieldImageURL    = "imageUrl"
	FieldUserID      = docstore.FieldOwner
	FieldCreatedAt   = "createdAt"
	FieldUpdatedAt   = "updatedAt"
)

// 操作名。OpError.Opに設定される。
const (
	OpCreate = "event.create"
	OpUpdate = "event.update"
	OpDelete = "event.delete"
	OpList   = "event.list"
	OpGet    = "event.get"
)

// MessageNotFound はID指定の取得でイベントが存在しない場合のメッセージ。
const MessageNotFound = "Event not found"

// Service はイベントのデータアクセスを提供する。
type Service struct {
	store docstore.Store
}

// NewService はServiceを生成する。
func NewService(store docstore.Store) *Service {
	return &Service{store: store}
}

// Create はイベントを作成し、ストアが採番したIDを返す。
// 入力フィールドにオーナーIDと作成・更新時刻（サーバー時刻）を付与する。
func (s *Service) Create(ctx context.Context, in model.EventInput, ownerID string) (id string, err error) {
	defer model.RecoverAsRemote(OpCreate, &err)

	fields := inputFields(in)
	fields[FieldUserID] = ownerID
	fields[FieldCreatedAt] = s.store.ServerTimestamp()
	fields[FieldUpdatedAt] = s.store.ServerTimestamp()

	id, err = s.store.Insert(ctx, docstore.CollectionEvents, fields)
	if err != nil {
		slog.Warn("イベント作成に失敗",
			slog.String("user_id", ownerID),
			slog.String("error", err.Error()),
		)
		return "", model.NewRemoteError(OpCreate, err)
	}
	return id, nil
}

// Update はイベントの可変フィールドを全て置き換え、更新時刻を更新する。
// 存在しないIDの場合はストアのエラーメッセージをそのまま持つリモートエラーを返す。
func (s *Service) Update(ctx context.Context, id string, in model.EventInput) (err error) {
	defer model.RecoverAsRemote(OpUpdate, &err)

	fields := inputFields(in)
	fields[FieldUpdatedAt] = s.store.ServerTimestamp()

	if err := s.store.Replace(ctx, docstore.CollectionEvents, id, fields); err != nil {
		slog.Warn("イベント更新に失敗",
			slog.String("event_id", id),
			slog.String("error", err.Error()),
		)
		return model.NewRemoteError(OpUpdate, err)
	}
	return nil
}

// Delete はイベントを削除する。存在しないIDの扱いはストアに従う。
func (s *Service) Delete(ctx context.Context, id string) (err error) {
	defer model.RecoverAsRemote(OpDelete, &err)

	if err := s.store.Delete(ctx, docstore.CollectionEvents, id); err != nil {
		return model.NewRemoteError(OpDelete, err)
	}
	return nil
}

// ListForUser は指定ユーザーがオーナーのイベントを返す。
// 日付の昇順に並べ、日付未設定のイベントは末尾に置く。同日時は作成時刻、IDの順。
func (s *Service) ListForUser(ctx context.Context, userID string) (events []model.Event, err error) {
	defer model.RecoverAsRemote(OpList, &err)

	docs, err := s.store.Query(ctx, docstore.CollectionEvents, docstore.Where(FieldUserID, userID))
	if err != nil {
		return nil, model.NewRemoteError(OpList, err)
	}

	events = make([]model.Event, 0, len(docs))
	for _, doc := range docs {
		events = append(events, FromDocument(doc))
	}
	Sort(events)
	return events, nil
}

// Get は指定IDのイベントを返す。存在しない場合はKindNotFoundのエラーを返す。
func (s *Service) Get(ctx context.Context, id string) (ev *model.Event, err error) {
	defer model.RecoverAsRemote(OpGet, &err)

	doc, err := s.store.Get(ctx, docstore.CollectionEvents, id)
	if err != nil {
		return nil, model.NewRemoteError(OpGet, err)
	}
	if doc == nil {
		return nil, model.NewNotFoundError(OpGet, MessageNotFound)
	}
	e := FromDocument(*doc)
	return &e, nil
}

// FromDocument はドキュメントをイベントに変換する。
func FromDocument(doc docstore.Document) model.Event {
	return model.Event{
		ID:          doc.ID,
		Title:       doc.String(FieldTitle),
		Description: doc.String(FieldDescription),
		Date:        doc.StringPtr(FieldDate),
		Location:    doc.String(FieldLocation),
		ImageURL:    doc.StringPtr(FieldImageURL),
		UserID:      doc.String(FieldUserID),
		CreatedAt:   doc.Time(FieldCreatedAt),
		UpdatedAt:   doc.Time(FieldUpdatedAt),
	}
}

// inputFields は可変フィールド一式をドキュメントのフィールドに変換する。
// 未設定の日付・画像URLはnullとして保存する。
func inputFields(in model.EventInput) docstore.Fields {
	return docstore.Fields{
		FieldTitle:       in.Title,
		FieldDescription: in.Description,
		FieldDate:        optional(in.Date),
		FieldLocation:    in.Location,
		FieldImageURL:    optional(in.ImageURL),
	}
}

func optional(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

// Sort はイベントを一覧表示の順序に並べ替える。
func Sort(events []model.Event) {
	sort.SliceStable(events, func(i, j int) bool {
		return less(events[i], events[j])
	})
}

func less(a, b model.Event) bool {
	switch {
	case a.Date == nil && b.Date != nil:
		return false
	case a.Date != nil && b.Date == nil:
		return true
	case a.Date != nil && b.Date != nil && *a.Date != *b.Date:
		return dateBefore(*a.Date, *b.Date)
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}

// dateLayouts はイベント日付として受け付ける表現。
var dateLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"}

// dateBefore は日付文字列を時刻として比較する。解釈できない場合は文字列で比較する。
func dateBefore(a, b string) bool {
	ta, okA := parseDate(a)
	tb, okB := parseDate(b)
	if okA && okB && !ta.Equal(tb) {
		return ta.Before(tb)
	}
	return a < b
}

func parseDate(s string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
