// Package model はドメインモデルを定義する。
package model

import "time"

// User はクライアントが扱う正規化済みのユーザー情報。
// ログイン中は不変として扱い、ログアウトで状態から破棄される。
type User struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
}

// Account はバックエンドが保持するアカウント情報。
type Account struct {
	ID           string
	Email        string
	DisplayName  string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// User はアカウントからクライアント向けのユーザー情報を生成する。
func (a *Account) User() User {
	return User{ID: a.ID, Email: a.Email, DisplayName: a.DisplayName}
}

// Session はアカウントのログインセッションを表す。
// IDトークンのsidクレームとして埋め込まれる。
type Session struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}
