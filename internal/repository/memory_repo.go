package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/hitoshi/eventorg/internal/docstore"
	"github.com/hitoshi/eventorg/internal/model"
)

// MemoryDocumentRepo はプロセス内メモリにドキュメントを保持するリポジトリ。
// テストと永続化不要なローカル実行で使用する。
type MemoryDocumentRepo struct {
	mu   sync.RWMutex
	seq  int64
	docs map[string]map[string]*memoryDocument
}

type memoryDocument struct {
	seq    int64
	fields docstore.Fields
}

// NewMemoryDocumentRepo はMemoryDocumentRepoを生成する。
func NewMemoryDocumentRepo() *MemoryDocumentRepo {
	return &MemoryDocumentRepo{docs: make(map[string]map[string]*memoryDocument)}
}

// Insert はドキュメントを作成する。
func (r *MemoryDocumentRepo) Insert(_ context.Context, collection, id string, fields docstore.Fields, _ time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	coll := r.docs[collection]
	if coll == nil {
		coll = make(map[string]*memoryDocument)
		r.docs[collection] = coll
	}
	if _, exists := coll[id]; exists {
		return ErrDuplicate
	}
	if r.violatesFavoriteUnique(collection, id, fields) {
		return ErrDuplicate
	}

	r.seq++
	coll[id] = &memoryDocument{seq: r.seq, fields: copyFields(fields)}
	return nil
}

// Update は指定フィールドを既存ドキュメントにマージする。
func (r *MemoryDocumentRepo) Update(_ context.Context, collection, id string, fields docstore.Fields, _ time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, ok := r.docs[collection][id]
	if !ok {
		return ErrNotFound
	}
	merged := copyFields(doc.fields)
	for k, v := range fields {
		merged[k] = v
	}
	if r.violatesFavoriteUnique(collection, id, merged) {
		return ErrDuplicate
	}
	doc.fields = merged
	return nil
}

// violatesFavoriteUnique はfavoritesの(userId, eventId)一意インデックスを再現する。
func (r *MemoryDocumentRepo) violatesFavoriteUnique(collection, id string, fields docstore.Fields) bool {
	if collection != docstore.CollectionFavorites {
		return false
	}
	userID, ok1 := fields["userId"].(string)
	eventID, ok2 := fields["eventId"].(string)
	if !ok1 || !ok2 {
		return false
	}
	for otherID, other := range r.docs[collection] {
		if otherID == id {
			continue
		}
		if other.fields["userId"] == userID && other.fields["eventId"] == eventID {
			return true
		}
	}
	return false
}

// Delete は指定IDのドキュメントを削除する。
func (r *MemoryDocumentRepo) Delete(_ context.Context, collection, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.docs[collection], id)
	return nil
}

// Find は等値条件を満たすドキュメントを作成順で返す。
func (r *MemoryDocumentRepo) Find(_ context.Context, collection string, filters []docstore.Filter) ([]docstore.Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	type entry struct {
		seq int64
		doc docstore.Document
	}
	var matched []entry
	for id, d := range r.docs[collection] {
		if !docstore.Match(d.fields, filters) {
			continue
		}
		matched = append(matched, entry{seq: d.seq, doc: docstore.Document{ID: id, Fields: copyFields(d.fields)}})
	}
	// 挿入順（seq昇順）に並べる
	sort.Slice(matched, func(i, j int) bool { return matched[i].seq < matched[j].seq })

	docs := make([]docstore.Document, 0, len(matched))
	for _, m := range matched {
		docs = append(docs, m.doc)
	}
	return docs, nil
}

// FindByID は指定IDのドキュメントを取得する。見つからない場合はnilを返す。
func (r *MemoryDocumentRepo) FindByID(_ context.Context, collection, id string) (*docstore.Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.docs[collection][id]
	if !ok {
		return nil, nil
	}
	return &docstore.Document{ID: id, Fields: copyFields(d.fields)}, nil
}

func copyFields(fields docstore.Fields) docstore.Fields {
	out := make(docstore.Fields, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	return out
}

// MemoryAccountRepo はプロセス内メモリにアカウントを保持するリポジトリ。
type MemoryAccountRepo struct {
	mu       sync.RWMutex
	accounts map[string]model.Account
}

// NewMemoryAccountRepo はMemoryAccountRepoを生成する。
func NewMemoryAccountRepo() *MemoryAccountRepo {
	return &MemoryAccountRepo{accounts: make(map[string]model.Account)}
}

// Create はアカウントを作成する。
func (r *MemoryAccountRepo) Create(_ context.Context, account *model.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.accounts[account.ID]; exists {
		return ErrDuplicate
	}
	for _, a := range r.accounts {
		if strings.EqualFold(a.Email, account.Email) {
			return ErrDuplicate
		}
	}
	r.accounts[account.ID] = *account
	return nil
}

// FindByID は指定IDのアカウントを取得する。
func (r *MemoryAccountRepo) FindByID(_ context.Context, id string) (*model.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.accounts[id]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

// FindByEmail はメールアドレスでアカウントを検索する。
func (r *MemoryAccountRepo) FindByEmail(_ context.Context, email string) (*model.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, a := range r.accounts {
		if strings.EqualFold(a.Email, email) {
			return &a, nil
		}
	}
	return nil, nil
}

// UpdateDisplayName は表示名を更新する。
func (r *MemoryAccountRepo) UpdateDisplayName(_ context.Context, id, displayName string, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.accounts[id]
	if !ok {
		return ErrNotFound
	}
	a.DisplayName = displayName
	a.UpdatedAt = now
	r.accounts[id] = a
	return nil
}

// MemorySessionRepo はプロセス内メモリにセッションを保持するリポジトリ。
type MemorySessionRepo struct {
	mu       sync.RWMutex
	sessions map[string]model.Session
	now      func() time.Time
}

// NewMemorySessionRepo はMemorySessionRepoを生成する。
func NewMemorySessionRepo() *MemorySessionRepo {
	return &MemorySessionRepo{sessions: make(map[string]model.Session), now: time.Now}
}

// Create はセッションを作成する。
func (r *MemorySessionRepo) Create(_ context.Context, session *model.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[session.ID] = *session
	return nil
}

// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
func (r *MemorySessionRepo) FindByID(_ context.Context, id string) (*model.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[id]
	if !ok || !s.ExpiresAt.After(r.now()) {
		return nil, nil
	}
	return &s, nil
}

// DeleteByID は指定IDのセッションを削除する。
func (r *MemorySessionRepo) DeleteByID(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
	return nil
}

// DeleteByUserID は指定ユーザーの全セッションを削除する。
func (r *MemorySessionRepo) DeleteByUserID(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, s := range r.sessions {
		if s.UserID == userID {
			delete(r.sessions, id)
		}
	}
	return nil
}

// DeleteExpired は期限切れセッションを削除する。
func (r *MemorySessionRepo) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for id, s := range r.sessions {
		if !s.ExpiresAt.After(now) {
			delete(r.sessions, id)
			n++
		}
	}
	return n, nil
}

// compile-time interface check
var (
	_ DocumentRepository = (*MemoryDocumentRepo)(nil)
	_ AccountRepository  = (*MemoryAccountRepo)(nil)
	_ SessionRepository  = (*MemorySessionRepo)(nil)
)
