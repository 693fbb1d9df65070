package model

import (
	"errors"
	"fmt"
	"log/slog"
)

// APIError はバックエンドHTTP APIの統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, document, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeEmailInUse         = "EMAIL_IN_USE"
	ErrCodeInvalidCredentials = "INVALID_CREDENTIALS"
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodeInvalidRequest     = "INVALID_REQUEST"
	ErrCodeInvalidCollection  = "INVALID_COLLECTION"
	ErrCodeDocumentNotFound   = "DOCUMENT_NOT_FOUND"
	ErrCodeDocumentConflict   = "DOCUMENT_CONFLICT"
	ErrCodeAccountNotFound    = "ACCOUNT_NOT_FOUND"
	ErrCodeRateLimited        = "RATE_LIMIT_EXCEEDED"
	ErrCodeInternal           = "INTERNAL_ERROR"
)

// NewEmailInUseError はメールアドレス重複エラーを生成する。
func NewEmailInUseError() *APIError {
	return &APIError{
		Code:     ErrCodeEmailInUse,
		Message:  "The email address is already in use by another account.",
		Category: "auth",
		Action:   "別のメールアドレスで登録するか、ログインしてください。",
	}
}

// NewInvalidCredentialsError は認証失敗エラーを生成する。
// メールアドレスの存在有無を区別しないメッセージを返す。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "Invalid email or password.",
		Category: "auth",
		Action:   "メールアドレスとパスワードを確認してください。",
	}
}

// NewUnauthorizedError は未認証エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "Authentication required.",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}

// NewInvalidRequestError はリクエスト不正エラーを生成する。
func NewInvalidRequestError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  fmt.Sprintf("Invalid request: %s", reason),
		Category: "validation",
		Action:   "リクエスト内容を確認してください。",
	}
}

// NewInvalidCollectionError は未知のコレクション指定エラーを生成する。
func NewInvalidCollectionError(collection string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCollection,
		Message:  fmt.Sprintf("Unknown collection: %s", collection),
		Category: "validation",
		Action:   "コレクション名を確認してください。",
	}
}

// NewDocumentNotFoundError は更新対象のドキュメントが存在しないエラーを生成する。
func NewDocumentNotFoundError(collection, id string) *APIError {
	return &APIError{
		Code:     ErrCodeDocumentNotFound,
		Message:  fmt.Sprintf("No document to update: %s/%s", collection, id),
		Category: "document",
		Action:   "ドキュメントIDを確認してください。",
	}
}

// NewDocumentMissingError は取得対象のドキュメントが存在しないエラーを生成する。
// コードは更新時と同じDOCUMENT_NOT_FOUNDで、メッセージのみ読み取り用になる。
func NewDocumentMissingError(collection, id string) *APIError {
	return &APIError{
		Code:     ErrCodeDocumentNotFound,
		Message:  fmt.Sprintf("Document not found: %s/%s", collection, id),
		Category: "document",
		Action:   "ドキュメントIDを確認してください。",
	}
}

// NewDocumentConflictError は一意制約違反エラーを生成する。
func NewDocumentConflictError(collection string) *APIError {
	return &APIError{
		Code:     ErrCodeDocumentConflict,
		Message:  fmt.Sprintf("Document already exists in %s.", collection),
		Category: "document",
		Action:   "既存のドキュメントを確認してください。",
	}
}

// NewAccountNotFoundError はアカウント未検出エラーを生成する。
func NewAccountNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeAccountNotFound,
		Message:  "Account not found.",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// NewRateLimitedError はレート制限超過エラーを生成する。
func NewRateLimitedError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimited,
		Message:  "Too many requests. Please try again later.",
		Category: "system",
		Action:   "Retry-Afterの秒数だけ待ってから再度お試しください。",
	}
}

// NewInternalError は内部エラーを生成する。原因の詳細はメッセージに含めない。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "Internal server error.",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// ErrorKind はクライアントコアが返すエラーの原因種別。
type ErrorKind string

const (
	// KindValidation は入力検証エラー。リモート呼び出しは行われていない。
	KindValidation ErrorKind = "validation"
	// KindRemote はドキュメントストア・IDサービス由来のエラー。
	KindRemote ErrorKind = "remote"
	// KindNotFound はID指定の取得でドキュメントが存在しなかったことを示す。
	KindNotFound ErrorKind = "not_found"
	// KindForbidden はオーナー以外による変更操作を示す。
	KindForbidden ErrorKind = "forbidden"
	// KindUnauthenticated はサインインが必要な操作を未サインインで呼び出したことを示す。
	KindUnauthenticated ErrorKind = "unauthenticated"
)

// OpError はデータアクセス層・セッションゲートウェイの操作結果エラー。
// Messageは表示用の文字列で、リモートエラーの場合は元のメッセージをそのまま保持する。
type OpError struct {
	Op      string
	Kind    ErrorKind
	Message string
	Err     error
}

// Error はerrorインターフェースを実装する。
func (e *OpError) Error() string {
	return e.Message
}

// Unwrap は元のエラーを返す。
func (e *OpError) Unwrap() error {
	return e.Err
}

// NewRemoteError はリモート呼び出しの失敗をOpErrorに変換する。
func NewRemoteError(op string, err error) *OpError {
	return &OpError{Op: op, Kind: KindRemote, Message: remoteMessage(err), Err: err}
}

// NewNotFoundError はドメインレベルの未検出エラーを生成する。
func NewNotFoundError(op, message string) *OpError {
	return &OpError{Op: op, Kind: KindNotFound, Message: message}
}

// NewForbiddenError はオーナー不一致エラーを生成する。
func NewForbiddenError(op, message string) *OpError {
	return &OpError{Op: op, Kind: KindForbidden, Message: message}
}

// RecoverAsRemote はストア実装で発生したpanicをリモートエラーとしてerrpに設定する。
// 操作の境界でdeferとして直接呼び出すこと。
func RecoverAsRemote(op string, errp *error) {
	r := recover()
	if r == nil {
		return
	}
	slog.Error("ストア呼び出しでpanicが発生",
		slog.String("op", op),
		slog.Any("panic", r),
	)
	err := fmt.Errorf("panic: %v", r)
	*errp = &OpError{Op: op, Kind: KindRemote, Message: fmt.Sprint(r), Err: err}
}

// NewUnauthenticatedError は未サインインエラーを生成する。
func NewUnauthenticatedError(op string) *OpError {
	return &OpError{Op: op, Kind: KindUnauthenticated, Message: "You must be signed in"}
}

// remoteMessage はAPIErrorの場合はMessageのみを取り出す。
func remoteMessage(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return err.Error()
}

// KindOf はエラーの種別を返す。OpError以外はKindRemoteとして扱う。
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var opErr *OpError
	if errors.As(err, &opErr) {
		return opErr.Kind
	}
	var vErr *ValidationError
	if errors.As(err, &vErr) {
		return KindValidation
	}
	return KindRemote
}

// IsNotFound はエラーがドメインレベルの未検出かどうかを返す。
func IsNotFound(err error) bool {
	return KindOf(err) == KindNotFound
}

// ErrorMessage は状態ストアに渡す表示用メッセージを返す。
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	var opErr *OpError
	if errors.As(err, &opErr) {
		return opErr.Message
	}
	return err.Error()
}

// ValidationError は入力値の検証エラー。Errorはユーザー向けメッセージをそのまま返す。
type ValidationError struct {
	Field   string
	Message string
}

// Error はerrorインターフェースを実装する。
func (e *ValidationError) Error() string {
	return e.Message
}
