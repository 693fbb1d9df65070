// Package docstore はリモートのドキュメントストア機能（コレクション単位のCRUDと等値検索）を
// クライアントコアに提供するためのインターフェースと型を定義する。
package docstore

import (
	"context"
	"errors"
	"time"

	"github.com/hitoshi/eventorg/internal/model"
)

// 使用するコレクション名。
const (
	CollectionEvents    = "events"
	CollectionFavorites = "favorites"
)

// FieldOwner は作成者のユーザーIDを保持するフィールド名。作成後は変更できない。
const FieldOwner = "userId"

// Collections はバックエンドが受け付けるコレクション名の一覧。
var Collections = []string{CollectionEvents, CollectionFavorites}

// ValidCollection はコレクション名が既知のものかを返す。
func ValidCollection(name string) bool {
	for _, c := range Collections {
		if c == name {
			return true
		}
	}
	return false
}

// Fields はドキュメントのフィールド集合。値はJSONで表現可能な型に限る。
type Fields map[string]any

// Document はストアから取得したドキュメント。
type Document struct {
	ID     string `json:"id"`
	Fields Fields `json:"fields"`
}

// Filter はフィールドの等値条件。
type Filter struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

// Where は等値条件を生成する。
func Where(field, value string) Filter {
	return Filter{Field: field, Value: value}
}

// Match はフィールド集合が全ての条件を満たすかを返す。
func Match(fields Fields, filters []Filter) bool {
	for _, f := range filters {
		v, ok := fields[f.Field].(string)
		if !ok || v != f.Value {
			return false
		}
	}
	return true
}

// Store はドキュメントストア機能のインターフェース。
// 実装はインプロセスのバックエンド（backend.Documents）とHTTPクライアント（HTTPStore）。
type Store interface {
	// Insert はドキュメントを追加し、ストアが採番したIDを返す。
	Insert(ctx context.Context, collection string, fields Fields) (string, error)

	// Replace は指定フィールドを上書きする。存在しないIDの場合はエラーを返す。
	Replace(ctx context.Context, collection, id string, fields Fields) error

	// Delete は指定IDのドキュメントを削除する。存在しないIDでもエラーにならない。
	Delete(ctx context.Context, collection, id string) error

	// Query は全ての等値条件を満たすドキュメントをストアの格納順で返す。
	Query(ctx context.Context, collection string, filters ...Filter) ([]Document, error)

	// Get は指定IDのドキュメントを取得する。見つからない場合はnilを返す。
	Get(ctx context.Context, collection, id string) (*Document, error)

	// ServerTimestamp は書き込み時にサーバー時刻へ置き換えられる値を返す。
	ServerTimestamp() any
}

// serverTimestampKey はサーバー時刻センチネルのマーカーキー。
// JSONを経由しても判別できるようにmapで表現する。
const serverTimestampKey = "$serverTimestamp"

// ServerTimestamp はサーバー時刻センチネルを返す。
func ServerTimestamp() any {
	return map[string]any{serverTimestampKey: true}
}

// IsServerTimestamp は値がサーバー時刻センチネルかどうかを返す。
func IsServerTimestamp(v any) bool {
	m, ok := v.(map[string]any)
	if !ok || len(m) != 1 {
		return false
	}
	b, ok := m[serverTimestampKey].(bool)
	return ok && b
}

// ResolveServerTimestamps はセンチネルをnowのRFC 3339表現に置き換えたコピーを返す。
func ResolveServerTimestamps(fields Fields, now time.Time) Fields {
	out := make(Fields, len(fields))
	stamp := FormatTime(now)
	for k, v := range fields {
		if IsServerTimestamp(v) {
			out[k] = stamp
			continue
		}
		out[k] = v
	}
	return out
}

// FormatTime はドキュメントに格納する時刻表現を返す。
func FormatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// IsNotFound は更新対象のドキュメントが存在しなかったエラーかどうかを返す。
func IsNotFound(err error) bool {
	return hasCode(err, model.ErrCodeDocumentNotFound)
}

// IsConflict は一意制約違反のエラーかどうかを返す。
func IsConflict(err error) bool {
	return hasCode(err, model.ErrCodeDocumentConflict)
}

func hasCode(err error, code string) bool {
	var apiErr *model.APIError
	return errors.As(err, &apiErr) && apiErr.Code == code
}
