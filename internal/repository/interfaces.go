// Package repository はデータ永続化のインターフェースと実装を定義する。
// 実装はPostgreSQL（本番）、SQLite（ローカル単一端末）、インメモリ（テスト）の3種類。
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/hitoshi/eventorg/internal/docstore"
	"github.com/hitoshi/eventorg/internal/model"
)

var (
	// ErrNotFound は更新対象のレコードが存在しないことを示す。
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate は一意制約違反を示す。
	ErrDuplicate = errors.New("duplicate record")
)

// DocumentRepository はコレクション単位のドキュメントの永続化インターフェース。
type DocumentRepository interface {
	// Insert はドキュメントを作成する。一意制約に違反した場合はErrDuplicateを返す。
	Insert(ctx context.Context, collection, id string, fields docstore.Fields, now time.Time) error

	// Update は指定フィールドを既存ドキュメントにマージする。
	// 存在しない場合はErrNotFoundを返す。
	Update(ctx context.Context, collection, id string, fields docstore.Fields, now time.Time) error

	// Delete は指定IDのドキュメントを削除する。存在しない場合もエラーにしない。
	Delete(ctx context.Context, collection, id string) error

	// Find は全ての等値条件を満たすドキュメントを作成順で返す。
	Find(ctx context.Context, collection string, filters []docstore.Filter) ([]docstore.Document, error)

	// FindByID は指定IDのドキュメントを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, collection, id string) (*docstore.Document, error)
}

// AccountRepository はアカウントの永続化インターフェース。
type AccountRepository interface {
	// Create はアカウントを作成する。メールアドレスが重複する場合はErrDuplicateを返す。
	Create(ctx context.Context, account *model.Account) error

	// FindByID は指定IDのアカウントを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Account, error)

	// FindByEmail はメールアドレス（大文字小文字を区別しない）でアカウントを検索する。
	// 見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.Account, error)

	// UpdateDisplayName は表示名を更新する。存在しない場合はErrNotFoundを返す。
	UpdateDisplayName(ctx context.Context, id, displayName string, now time.Time) error
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteByUserID は指定ユーザーの全セッションを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
	// DeleteExpired はnow時点で期限切れのセッションを削除し、削除件数を返す。
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
