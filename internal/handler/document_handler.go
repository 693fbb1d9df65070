package handler

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/eventorg/internal/docstore"
	"github.com/hitoshi/eventorg/internal/middleware"
	"github.com/hitoshi/eventorg/internal/model"
)

// DocumentHandler はドキュメントストアのHTTPハンドラー。
type DocumentHandler struct {
	store docstore.Store
}

// NewDocumentHandler はDocumentHandlerを生成する。
func NewDocumentHandler(store docstore.Store) *DocumentHandler {
	return &DocumentHandler{store: store}
}

// documentRequest はドキュメント書き込みリクエストのボディ。
type documentRequest struct {
	Fields docstore.Fields `json:"fields"`
}

// insertResponse はドキュメント追加レスポンスのボディ。
type insertResponse struct {
	ID string `json:"id"`
}

// queryResponse はドキュメント検索レスポンスのボディ。
type queryResponse struct {
	Documents []docstore.Document `json:"documents"`
}

// Insert はドキュメントを追加する。
// POST /v1/collections/{collection}/documents
func (h *DocumentHandler) Insert(w http.ResponseWriter, r *http.Request) {
	var req documentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Fields == nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("fields is required"))
		return
	}

	id, err := h.store.Insert(r.Context(), chi.URLParam(r, "collection"), req.Fields)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, insertResponse{ID: id})
}

// Query は等値条件でドキュメントを検索する。条件は?where=field:valueで複数指定できる。
// GET /v1/collections/{collection}/documents
func (h *DocumentHandler) Query(w http.ResponseWriter, r *http.Request) {
	filters, err := parseWhere(r.URL.Query()["where"])
	if err != nil {
		handleServiceError(w, err)
		return
	}

	docs, err := h.store.Query(r.Context(), chi.URLParam(r, "collection"), filters...)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if docs == nil {
		docs = []docstore.Document{}
	}
	writeJSON(w, http.StatusOK, queryResponse{Documents: docs})
}

// Get は指定IDのドキュメントを返す。
// GET /v1/collections/{collection}/documents/{id}
func (h *DocumentHandler) Get(w http.ResponseWriter, r *http.Request) {
	collection := chi.URLParam(r, "collection")
	id := chi.URLParam(r, "id")

	doc, err := h.store.Get(r.Context(), collection, id)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if doc == nil {
		handleServiceError(w, model.NewDocumentMissingError(collection, id))
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// Replace は指定フィールドを上書きする。イベントの所有者フィールドは書き換えられない。
// PATCH /v1/collections/{collection}/documents/{id}
func (h *DocumentHandler) Replace(w http.ResponseWriter, r *http.Request) {
	var req documentRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	collection := chi.URLParam(r, "collection")
	if _, ok := req.Fields[docstore.FieldOwner]; ok && collection == docstore.CollectionEvents {
		middleware.WriteErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidRequestError(docstore.FieldOwner+" cannot be changed"))
		return
	}

	if err := h.store.Replace(r.Context(), collection, chi.URLParam(r, "id"), req.Fields); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Delete はドキュメントを削除する。存在しないIDでも204を返す。
// DELETE /v1/collections/{collection}/documents/{id}
func (h *DocumentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Delete(r.Context(), chi.URLParam(r, "collection"), chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// parseWhere は"field:value"形式の検索条件を解析する。値には":"を含んでもよい。
func parseWhere(values []string) ([]docstore.Filter, error) {
	filters := make([]docstore.Filter, 0, len(values))
	for _, v := range values {
		field, value, ok := strings.Cut(v, ":")
		if !ok || field == "" {
			return nil, model.NewInvalidRequestError("where must be field:value")
		}
		filters = append(filters, docstore.Where(field, value))
	}
	return filters, nil
}
