// Package favorite はfavoritesコレクションに対するデータアクセス操作を提供する。
package favorite

import (
	"context"
	"errors"
	"log/slog"

	"github.com/hitoshi/eventorg/internal/docstore"
	"github.com/hitoshi/eventorg/internal/event"
	"github.com/hitoshi/eventorg/internal/model"
	"golang.org/x/sync/errgroup"
)

// お気に入りドキュメントのフィールド名。
const (
	FieldUserID    = "userId"
	FieldEventID   = "eventId"
	FieldCreatedAt = "createdAt"
)

// 操作名。OpError.Opに設定される。
const (
	OpAdd        = "favorite.add"
	OpRemove     = "favorite.remove"
	OpList       = "favorite.list"
	OpIsFavorite = "favorite.is_favorite"
)

// DefaultLookupConcurrency は一覧取得時のイベント並列取得数の既定値。
const DefaultLookupConcurrency = 8

// Status はイベントがお気に入り登録済みかどうかと、登録済みの場合のお気に入りID。
type Status struct {
	IsFavorite bool
	FavoriteID string
}

// Service はお気に入りのデータアクセスを提供する。
type Service struct {
	store       docstore.Store
	concurrency int
}

// NewService はServiceを生成する。concurrencyが0以下の場合は既定値を使用する。
func NewService(store docstore.Store, concurrency int) *Service {
	if concurrency <= 0 {
		concurrency = DefaultLookupConcurrency
	}
	return &Service{store: store, concurrency: concurrency}
}

// Add はイベントをお気に入りに登録し、お気に入りIDを返す。
// 同じ(ユーザー, イベント)の登録が既にあればそのIDを返し、重複して作成しない。
func (s *Service) Add(ctx context.Context, userID, eventID string) (id string, err error) {
	defer model.RecoverAsRemote(OpAdd, &err)

	existing, err := s.find(ctx, userID, eventID)
	if err != nil {
		return "", model.NewRemoteError(OpAdd, err)
	}
	if existing != "" {
		return existing, nil
	}

	id, err = s.store.Insert(ctx, docstore.CollectionFavorites, docstore.Fields{
		FieldUserID:    userID,
		FieldEventID:   eventID,
		FieldCreatedAt: s.store.ServerTimestamp(),
	})
	if docstore.IsConflict(err) {
		// 確認から挿入までの間に他の書き込みが先行した
		existing, findErr := s.find(ctx, userID, eventID)
		if findErr == nil && existing != "" {
			return existing, nil
		}
	}
	if err != nil {
		return "", model.NewRemoteError(OpAdd, err)
	}
	return id, nil
}

// Remove はお気に入りを削除する。
func (s *Service) Remove(ctx context.Context, favoriteID string) (err error) {
	defer model.RecoverAsRemote(OpRemove, &err)

	if err := s.store.Delete(ctx, docstore.CollectionFavorites, favoriteID); err != nil {
		return model.NewRemoteError(OpRemove, err)
	}
	return nil
}

// ListForUser はユーザーのお気に入りを、参照先イベントと合わせて返す。
// 順序はお気に入りの格納順。参照先イベントが削除済みの行は結果から除く。
// イベントの取得自体が失敗した場合は全体を失敗とする。
func (s *Service) ListForUser(ctx context.Context, userID string) (entries []model.FavoriteEntry, err error) {
	defer model.RecoverAsRemote(OpList, &err)

	docs, err := s.store.Query(ctx, docstore.CollectionFavorites, docstore.Where(FieldUserID, userID))
	if err != nil {
		return nil, model.NewRemoteError(OpList, err)
	}

	events := make([]*model.Event, len(docs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, doc := range docs {
		eventID := doc.String(FieldEventID)
		g.Go(func() (err error) {
			defer model.RecoverAsRemote(OpList, &err)

			evDoc, err := s.store.Get(gctx, docstore.CollectionEvents, eventID)
			if err != nil {
				return err
			}
			if evDoc != nil {
				ev := event.FromDocument(*evDoc)
				events[i] = &ev
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		var opErr *model.OpError
		if errors.As(err, &opErr) {
			return nil, opErr
		}
		return nil, model.NewRemoteError(OpList, err)
	}

	entries = make([]model.FavoriteEntry, 0, len(docs))
	for i, doc := range docs {
		if events[i] == nil {
			slog.Debug("参照先イベントが存在しないお気に入りを除外",
				slog.String("favorite_id", doc.ID),
				slog.String("event_id", doc.String(FieldEventID)),
			)
			continue
		}
		entries = append(entries, model.FavoriteEntry{
			ID:      doc.ID,
			EventID: doc.String(FieldEventID),
			Event:   *events[i],
		})
	}
	return entries, nil
}

// IsFavorite はイベントがお気に入り登録済みかを返す。
// 複数の行がある場合は格納順で最初の行のIDを返す。
func (s *Service) IsFavorite(ctx context.Context, userID, eventID string) (status Status, err error) {
	defer model.RecoverAsRemote(OpIsFavorite, &err)

	id, err := s.find(ctx, userID, eventID)
	if err != nil {
		return Status{}, model.NewRemoteError(OpIsFavorite, err)
	}
	if id == "" {
		return Status{}, nil
	}
	return Status{IsFavorite: true, FavoriteID: id}, nil
}

// find は(ユーザー, イベント)に一致する最初のお気に入りIDを返す。なければ空文字。
func (s *Service) find(ctx context.Context, userID, eventID string) (string, error) {
	docs, err := s.store.Query(ctx, docstore.CollectionFavorites,
		docstore.Where(FieldUserID, userID),
		docstore.Where(FieldEventID, eventID),
	)
	if err != nil {
		return "", err
	}
	if len(docs) == 0 {
		return "", nil
	}
	return docs[0].ID, nil
}
