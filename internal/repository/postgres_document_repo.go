package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/hitoshi/eventorg/internal/docstore"
)

// PostgresDocumentRepo はPostgreSQLのJSONB列にドキュメントを格納するリポジトリ。
// 作成順はBIGSERIALのseq列で保持する。
type PostgresDocumentRepo struct {
	db *sql.DB
}

// NewPostgresDocumentRepo はPostgresDocumentRepoを生成する。
func NewPostgresDocumentRepo(db *sql.DB) *PostgresDocumentRepo {
	return &PostgresDocumentRepo{db: db}
}

// Insert はドキュメントを作成する。
func (r *PostgresDocumentRepo) Insert(ctx context.Context, collection, id string, fields docstore.Fields, now time.Time) error {
	data, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("failed to encode document: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO documents (collection, id, data, created_at, updated_at)
		 VALUES ($1, $2, $3::jsonb, $4, $4)`,
		collection, id, string(data), now,
	)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("failed to insert document: %w", err)
	}
	return nil
}

// Update は指定フィールドを既存ドキュメントにマージする（JSONBの || 演算子）。
func (r *PostgresDocumentRepo) Update(ctx context.Context, collection, id string, fields docstore.Fields, now time.Time) error {
	data, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("failed to encode document: %w", err)
	}

	result, err := r.db.ExecContext(ctx,
		`UPDATE documents SET data = data || $3::jsonb, updated_at = $4
		 WHERE collection = $1 AND id = $2`,
		collection, id, string(data), now,
	)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("failed to update document: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete は指定IDのドキュメントを削除する。
func (r *PostgresDocumentRepo) Delete(ctx context.Context, collection, id string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM documents WHERE collection = $1 AND id = $2`,
		collection, id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	return nil
}

// Find は等値条件を満たすドキュメントを作成順で返す。
// 各条件は data @> {"field": "value"} としてGINインデックスで評価する。
func (r *PostgresDocumentRepo) Find(ctx context.Context, collection string, filters []docstore.Filter) ([]docstore.Document, error) {
	var sb strings.Builder
	sb.WriteString(`SELECT id, data FROM documents WHERE collection = $1`)
	args := []any{collection}

	for _, f := range filters {
		cond, err := json.Marshal(map[string]string{f.Field: f.Value})
		if err != nil {
			return nil, fmt.Errorf("failed to encode filter: %w", err)
		}
		args = append(args, string(cond))
		fmt.Fprintf(&sb, ` AND data @> $%d::jsonb`, len(args))
	}
	sb.WriteString(` ORDER BY seq`)

	rows, err := r.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer rows.Close()

	docs := []docstore.Document{}
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate documents: %w", err)
	}
	return docs, nil
}

// FindByID は指定IDのドキュメントを取得する。見つからない場合はnilを返す。
func (r *PostgresDocumentRepo) FindByID(ctx context.Context, collection, id string) (*docstore.Document, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, data FROM documents WHERE collection = $1 AND id = $2`,
		collection, id,
	)
	doc, err := scanDocument(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// rowScanner は*sql.Rowと*sql.Rowsの共通インターフェース。
type rowScanner interface {
	Scan(dest ...any) error
}

// scanDocument はid, data列をDocumentに変換する。sql.ErrNoRowsはそのまま返す。
func scanDocument(row rowScanner) (*docstore.Document, error) {
	var id string
	var data []byte
	if err := row.Scan(&id, &data); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan document: %w", err)
	}

	fields := docstore.Fields{}
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("failed to decode document %s: %w", id, err)
	}
	return &docstore.Document{ID: id, Fields: fields}, nil
}

// compile-time interface check
var _ DocumentRepository = (*PostgresDocumentRepo)(nil)
