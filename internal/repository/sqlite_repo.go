package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hitoshi/eventorg/internal/docstore"
	"github.com/hitoshi/eventorg/internal/model"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// SQLiteでは時刻をRFC 3339文字列で保存する。
const sqliteTimeLayout = time.RFC3339Nano

func formatSQLiteTime(t time.Time) string {
	return t.UTC().Format(sqliteTimeLayout)
}

func parseSQLiteTime(s string) (time.Time, error) {
	t, err := time.Parse(sqliteTimeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid stored time %q: %w", s, err)
	}
	return t, nil
}

// isSQLiteUniqueViolation はSQLiteの一意制約違反かどうかを返す。
func isSQLiteUniqueViolation(err error) bool {
	var sErr *sqlite.Error
	if !errors.As(err, &sErr) {
		return false
	}
	code := sErr.Code()
	return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
}

// SQLiteDocumentRepo はSQLiteにJSON文字列としてドキュメントを格納するリポジトリ。
type SQLiteDocumentRepo struct {
	db *sql.DB
}

// NewSQLiteDocumentRepo はSQLiteDocumentRepoを生成する。
func NewSQLiteDocumentRepo(db *sql.DB) *SQLiteDocumentRepo {
	return &SQLiteDocumentRepo{db: db}
}

// Insert はドキュメントを作成する。
func (r *SQLiteDocumentRepo) Insert(ctx context.Context, collection, id string, fields docstore.Fields, now time.Time) error {
	data, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("failed to encode document: %w", err)
	}
	stamp := formatSQLiteTime(now)
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO documents (collection, id, data, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		collection, id, string(data), stamp, stamp,
	)
	if isSQLiteUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("failed to insert document: %w", err)
	}
	return nil
}

// Update は指定フィールドを既存ドキュメントにマージする。
// json_patchはnullをキー削除として扱うため、トランザクション内でGo側でマージする。
func (r *SQLiteDocumentRepo) Update(ctx context.Context, collection, id string, fields docstore.Fields, now time.Time) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var raw string
	err = tx.QueryRowContext(ctx,
		`SELECT data FROM documents WHERE collection = ? AND id = ?`, collection, id,
	).Scan(&raw)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to load document: %w", err)
	}

	merged := docstore.Fields{}
	if err := json.Unmarshal([]byte(raw), &merged); err != nil {
		return fmt.Errorf("failed to decode document %s: %w", id, err)
	}
	for k, v := range fields {
		merged[k] = v
	}
	data, err := json.Marshal(merged)
	if err != nil {
		return fmt.Errorf("failed to encode document: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE documents SET data = ?, updated_at = ? WHERE collection = ? AND id = ?`,
		string(data), formatSQLiteTime(now), collection, id,
	)
	if isSQLiteUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("failed to update document: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Delete は指定IDのドキュメントを削除する。
func (r *SQLiteDocumentRepo) Delete(ctx context.Context, collection, id string) error {
	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM documents WHERE collection = ? AND id = ?`, collection, id,
	); err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	return nil
}

// Find は等値条件を満たすドキュメントを作成順で返す。
func (r *SQLiteDocumentRepo) Find(ctx context.Context, collection string, filters []docstore.Filter) ([]docstore.Document, error) {
	var sb strings.Builder
	sb.WriteString(`SELECT id, data FROM documents WHERE collection = ?`)
	args := []any{collection}
	for _, f := range filters {
		sb.WriteString(` AND json_extract(data, ?) = ?`)
		args = append(args, jsonPath(f.Field), f.Value)
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
		// json_extractは数値の"1"と文字列"1"を区別しないため、型も含めて再確認する
		if !docstore.Match(doc.Fields, filters) {
			continue
		}
		docs = append(docs, *doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate documents: %w", err)
	}
	return docs, nil
}

// FindByID は指定IDのドキュメントを取得する。見つからない場合はnilを返す。
func (r *SQLiteDocumentRepo) FindByID(ctx context.Context, collection, id string) (*docstore.Document, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, data FROM documents WHERE collection = ? AND id = ?`, collection, id,
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

// jsonPath はフィールド名をjson_extract用のパスに変換する。
func jsonPath(field string) string {
	return `$."` + strings.ReplaceAll(field, `"`, `\"`) + `"`
}

// SQLiteAccountRepo はSQLiteを使用したアカウントリポジトリ。
type SQLiteAccountRepo struct {
	db *sql.DB
}

// NewSQLiteAccountRepo はSQLiteAccountRepoを生成する。
func NewSQLiteAccountRepo(db *sql.DB) *SQLiteAccountRepo {
	return &SQLiteAccountRepo{db: db}
}

// Create はアカウントを作成する。
func (r *SQLiteAccountRepo) Create(ctx context.Context, account *model.Account) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO accounts (id, email, display_name, password_hash, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		account.ID, account.Email, account.DisplayName, account.PasswordHash,
		formatSQLiteTime(account.CreatedAt), formatSQLiteTime(account.UpdatedAt),
	)
	if isSQLiteUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("failed to insert account: %w", err)
	}
	return nil
}

// FindByID は指定IDのアカウントを取得する。
func (r *SQLiteAccountRepo) FindByID(ctx context.Context, id string) (*model.Account, error) {
	return r.findOne(ctx,
		`SELECT id, email, display_name, password_hash, created_at, updated_at
		 FROM accounts WHERE id = ?`, id)
}

// FindByEmail はメールアドレスでアカウントを検索する。
func (r *SQLiteAccountRepo) FindByEmail(ctx context.Context, email string) (*model.Account, error) {
	return r.findOne(ctx,
		`SELECT id, email, display_name, password_hash, created_at, updated_at
		 FROM accounts WHERE lower(email) = lower(?)`, email)
}

func (r *SQLiteAccountRepo) findOne(ctx context.Context, query, arg string) (*model.Account, error) {
	a := &model.Account{}
	var createdAt, updatedAt string
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&a.ID, &a.Email, &a.DisplayName, &a.PasswordHash, &createdAt, &updatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find account: %w", err)
	}
	if a.CreatedAt, err = parseSQLiteTime(createdAt); err != nil {
		return nil, err
	}
	if a.UpdatedAt, err = parseSQLiteTime(updatedAt); err != nil {
		return nil, err
	}
	return a, nil
}

// UpdateDisplayName は表示名を更新する。
func (r *SQLiteAccountRepo) UpdateDisplayName(ctx context.Context, id, displayName string, now time.Time) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE accounts SET display_name = ?, updated_at = ? WHERE id = ?`,
		displayName, formatSQLiteTime(now), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update display name: %w", err)
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

// SQLiteSessionRepo はSQLiteを使用したセッションリポジトリ。
type SQLiteSessionRepo struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteSessionRepo はSQLiteSessionRepoを生成する。
func NewSQLiteSessionRepo(db *sql.DB) *SQLiteSessionRepo {
	return &SQLiteSessionRepo{db: db, now: time.Now}
}

// Create はセッションを作成する。
func (r *SQLiteSessionRepo) Create(ctx context.Context, session *model.Session) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sessions (id, user_id, expires_at, created_at) VALUES (?, ?, ?, ?)`,
		session.ID, session.UserID,
		formatSQLiteTime(session.ExpiresAt), formatSQLiteTime(session.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
// RFC3339Nanoは末尾のゼロを省略し文字列順が時刻順と一致しないため、期限はGo側で判定する。
func (r *SQLiteSessionRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	s := &model.Session{}
	var expiresAt, createdAt string
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, expires_at, created_at FROM sessions WHERE id = ?`, id,
	).Scan(&s.ID, &s.UserID, &expiresAt, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	if s.ExpiresAt, err = parseSQLiteTime(expiresAt); err != nil {
		return nil, err
	}
	if s.CreatedAt, err = parseSQLiteTime(createdAt); err != nil {
		return nil, err
	}
	if !s.ExpiresAt.After(r.now()) {
		return nil, nil
	}
	return s, nil
}

// DeleteByID は指定IDのセッションを削除する。
func (r *SQLiteSessionRepo) DeleteByID(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// DeleteByUserID は指定ユーザーの全セッションを削除する。
func (r *SQLiteSessionRepo) DeleteByUserID(ctx context.Context, userID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("failed to delete user sessions: %w", err)
	}
	return nil
}

// DeleteExpired は期限切れセッションを削除する。
func (r *SQLiteSessionRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, expires_at FROM sessions`)
	if err != nil {
		return 0, fmt.Errorf("failed to list sessions: %w", err)
	}
	var expired []string
	for rows.Next() {
		var id, expiresAt string
		if err := rows.Scan(&id, &expiresAt); err != nil {
			rows.Close()
			return 0, fmt.Errorf("failed to scan session: %w", err)
		}
		t, err := parseSQLiteTime(expiresAt)
		if err != nil || !t.After(now) {
			expired = append(expired, id)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("failed to iterate sessions: %w", err)
	}

	for _, id := range expired {
		if err := r.DeleteByID(ctx, id); err != nil {
			return 0, err
		}
	}
	return int64(len(expired)), nil
}

// compile-time interface check
var (
	_ DocumentRepository = (*SQLiteDocumentRepo)(nil)
	_ AccountRepository  = (*SQLiteAccountRepo)(nil)
	_ SessionRepository  = (*SQLiteSessionRepo)(nil)
)
