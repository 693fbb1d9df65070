// Package backend はクライアントコアが利用するマネージドバックエンド
// （ドキュメントストアとIDサービス）をリポジトリ上に実装する。
package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/eventorg/internal/docstore"
	"github.com/hitoshi/eventorg/internal/metrics"
	"github.com/hitoshi/eventorg/internal/model"
	"github.com/hitoshi/eventorg/internal/repository"
)

// Documents はDocumentRepository上にdocstore.Storeを実装する。
// IDの採番とサーバー時刻センチネルの解決を行う。
type Documents struct {
	repo    repository.DocumentRepository
	metrics metrics.MetricsCollector
	now     func() time.Time
}

// NewDocuments はDocumentsを生成する。mcがnilの場合はメトリクスを記録しない。
func NewDocuments(repo repository.DocumentRepository, mc metrics.MetricsCollector) *Documents {
	return &Documents{
		repo:    repo,
		metrics: mc,
		now:     time.Now,
	}
}

// Insert はドキュメントを追加し、採番したIDを返す。
func (d *Documents) Insert(ctx context.Context, collection string, fields docstore.Fields) (id string, err error) {
	defer func() { d.record(collection, "insert", err) }()

	if !docstore.ValidCollection(collection) {
		return "", model.NewInvalidCollectionError(collection)
	}

	id = uuid.NewString()
	resolved := docstore.ResolveServerTimestamps(fields, d.now())
	if err := d.repo.Insert(ctx, collection, id, resolved, d.now()); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return "", model.NewDocumentConflictError(collection)
		}
		return "", fmt.Errorf("failed to insert %s document: %w", collection, err)
	}

	slog.Debug("document inserted",
		slog.String("collection", collection),
		slog.String("id", id),
	)
	return id, nil
}

// Replace は指定フィールドを上書きする。存在しない場合はDOCUMENT_NOT_FOUNDを返す。
func (d *Documents) Replace(ctx context.Context, collection, id string, fields docstore.Fields) (err error) {
	defer func() { d.record(collection, "replace", err) }()

	if !docstore.ValidCollection(collection) {
		return model.NewInvalidCollectionError(collection)
	}

	resolved := docstore.ResolveServerTimestamps(fields, d.now())
	if err := d.repo.Update(ctx, collection, id, resolved, d.now()); err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return model.NewDocumentNotFoundError(collection, id)
		case errors.Is(err, repository.ErrDuplicate):
			return model.NewDocumentConflictError(collection)
		}
		return fmt.Errorf("failed to update %s document %s: %w", collection, id, err)
	}
	return nil
}

// Delete はドキュメントを削除する。存在しないIDでも成功とする。
func (d *Documents) Delete(ctx context.Context, collection, id string) (err error) {
	defer func() { d.record(collection, "delete", err) }()

	if !docstore.ValidCollection(collection) {
		return model.NewInvalidCollectionError(collection)
	}
	if err := d.repo.Delete(ctx, collection, id); err != nil {
		return fmt.Errorf("failed to delete %s document %s: %w", collection, id, err)
	}
	return nil
}

// Query は等値条件に一致するドキュメントを格納順で返す。
func (d *Documents) Query(ctx context.Context, collection string, filters ...docstore.Filter) (docs []docstore.Document, err error) {
	defer func() { d.record(collection, "query", err) }()

	if !docstore.ValidCollection(collection) {
		return nil, model.NewInvalidCollectionError(collection)
	}
	docs, err = d.repo.Find(ctx, collection, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", collection, err)
	}
	return docs, nil
}

// Get は指定IDのドキュメントを返す。見つからない場合はnilを返す。
func (d *Documents) Get(ctx context.Context, collection, id string) (doc *docstore.Document, err error) {
	defer func() { d.record(collection, "get", err) }()

	if !docstore.ValidCollection(collection) {
		return nil, model.NewInvalidCollectionError(collection)
	}
	doc, err = d.repo.FindByID(ctx, collection, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get %s document %s: %w", collection, id, err)
	}
	return doc, nil
}

// ServerTimestamp はサーバー時刻センチネルを返す。
func (d *Documents) ServerTimestamp() any {
	return docstore.ServerTimestamp()
}

func (d *Documents) record(collection, op string, err error) {
	if d.metrics == nil {
		return
	}
	d.metrics.RecordDocumentOp(collection, op, metrics.Result(err))
}

// compile-time interface check
var _ docstore.Store = (*Documents)(nil)
