package docstore

import (
	"context"
	"net/http"
	"net/url"

	"github.com/hitoshi/eventorg/internal/apiclient"
	"github.com/hitoshi/eventorg/internal/model"
)

// HTTPStore はバックエンドHTTP API経由でドキュメントストアを操作するStore実装。
type HTTPStore struct {
	client *apiclient.Client
}

// NewHTTPStore はHTTPStoreを生成する。
func NewHTTPStore(client *apiclient.Client) *HTTPStore {
	return &HTTPStore{client: client}
}

// documentRequest はドキュメント書き込みリクエストのボディ。
type documentRequest struct {
	Fields Fields `json:"fields"`
}

// insertResponse はドキュメント追加レスポンスのボディ。
type insertResponse struct {
	ID string `json:"id"`
}

// queryResponse はドキュメント検索レスポンスのボディ。
type queryResponse struct {
	Documents []Document `json:"documents"`
}

// Insert はドキュメントを追加する。
// POST /v1/collections/{collection}/documents
func (s *HTTPStore) Insert(ctx context.Context, collection string, fields Fields) (string, error) {
	var resp insertResponse
	if _, err := s.client.Do(ctx, http.MethodPost, collectionPath(collection), documentRequest{Fields: fields}, &resp); err != nil {
		return "", err
	}
	return resp.ID, nil
}

// Replace は指定フィールドを上書きする。
// PATCH /v1/collections/{collection}/documents/{id}
func (s *HTTPStore) Replace(ctx context.Context, collection, id string, fields Fields) error {
	if id == "" {
		return model.NewDocumentNotFoundError(collection, id)
	}
	_, err := s.client.Do(ctx, http.MethodPatch, documentPath(collection, id), documentRequest{Fields: fields}, nil)
	return err
}

// Delete はドキュメントを削除する。
// DELETE /v1/collections/{collection}/documents/{id}
func (s *HTTPStore) Delete(ctx context.Context, collection, id string) error {
	if id == "" {
		return nil
	}
	_, err := s.client.Do(ctx, http.MethodDelete, documentPath(collection, id), nil, nil)
	return err
}

// Query は等値条件でドキュメントを検索する。
// GET /v1/collections/{collection}/documents?where=field:value
func (s *HTTPStore) Query(ctx context.Context, collection string, filters ...Filter) ([]Document, error) {
	q := url.Values{}
	for _, f := range filters {
		q.Add("where", f.Field+":"+f.Value)
	}
	path := collectionPath(collection)
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var resp queryResponse
	if _, err := s.client.Do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Documents, nil
}

// Get は指定IDのドキュメントを取得する。404の場合と空IDの場合はnilを返す。
// 空IDのままパスを組み立てると一覧のルートに到達するため、リクエストは送らない。
// GET /v1/collections/{collection}/documents/{id}
func (s *HTTPStore) Get(ctx context.Context, collection, id string) (*Document, error) {
	if id == "" {
		return nil, nil
	}
	var doc Document
	status, err := s.client.Do(ctx, http.MethodGet, documentPath(collection, id), nil, &doc)
	if status == http.StatusNotFound && IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// ServerTimestamp はサーバー時刻センチネルを返す。
func (s *HTTPStore) ServerTimestamp() any {
	return ServerTimestamp()
}

func collectionPath(collection string) string {
	return "/v1/collections/" + url.PathEscape(collection) + "/documents"
}

func documentPath(collection, id string) string {
	return collectionPath(collection) + "/" + url.PathEscape(id)
}

// compile-time interface check
var _ Store = (*HTTPStore)(nil)
