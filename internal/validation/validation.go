// Package validation は入力フォームの必須項目・形式チェックを提供する。
// すべて副作用のない純粋関数で、値の正規化（trim等）は行わない。
package validation

import (
	"regexp"
	"strings"
	"unicode/utf16"

	"github.com/hitoshi/eventorg/internal/model"
)

// フィールド名。FieldErrorsのキーとして使用する。
const (
	FieldEmail           = "email"
	FieldPassword        = "password"
	FieldConfirmPassword = "confirmPassword"
	FieldName            = "name"
	FieldTitle           = "title"
	FieldDescription     = "description"
	FieldDate            = "date"
	FieldLocation        = "location"
)

// minPasswordLength はパスワードの最小文字数。
const minPasswordLength = 6

var emailPattern = regexp.MustCompile(`\S+@\S+\.\S+`)

// Email はメールアドレスを検証する。
func Email(email string) error {
	if strings.TrimSpace(email) == "" {
		return invalid(FieldEmail, "Email is required")
	}
	if !emailPattern.MatchString(email) {
		return invalid(FieldEmail, "Please enter a valid email address")
	}
	return nil
}

// Password はパスワードを検証する。
// 長さはUTF-16のコード単位数で数える。サロゲートペアの絵文字は2と数える。
func Password(password string) error {
	if password == "" {
		return invalid(FieldPassword, "Password is required")
	}
	if utf16Length(password) < minPasswordLength {
		return invalid(FieldPassword, "Password must be at least 6 characters")
	}
	return nil
}

func utf16Length(s string) int {
	return len(utf16.Encode([]rune(s)))
}

// ConfirmPassword は確認用パスワードが入力済みかつ一致しているかを検証する。
func ConfirmPassword(password, confirm string) error {
	if confirm == "" {
		return invalid(FieldConfirmPassword, "Please confirm your password")
	}
	if password != confirm {
		return invalid(FieldConfirmPassword, "Passwords do not match")
	}
	return nil
}

// Name は表示名を検証する。
func Name(name string) error {
	return required(FieldName, "Name", name)
}

// Title はイベントタイトルを検証する。
func Title(title string) error {
	return required(FieldTitle, "Title", title)
}

// Description はイベント説明を検証する。
func Description(description string) error {
	return required(FieldDescription, "Description", description)
}

// Location はイベント開催場所を検証する。
func Location(location string) error {
	return required(FieldLocation, "Location", location)
}

// Date はイベント日時が設定されているかを検証する。
// 空白のみの文字列は設定済みとみなす。
func Date(date *string) error {
	if date == nil || *date == "" {
		return invalid(FieldDate, "Date is required")
	}
	return nil
}

func required(field, label, value string) error {
	if strings.TrimSpace(value) == "" {
		return invalid(field, label+" is required")
	}
	return nil
}

func invalid(field, message string) error {
	return &model.ValidationError{Field: field, Message: message}
}
