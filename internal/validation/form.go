package validation

import (
	"github.com/hitoshi/eventorg/internal/model"
)

// FieldErrors はフィールド名ごとの検証エラーメッセージ。
// フォームの各入力欄の横に表示するために使用する。
type FieldErrors map[string]string

// fieldOrder はErrが最初のエラーを決めるための表示順。
var fieldOrder = []string{
	FieldName, FieldEmail, FieldPassword, FieldConfirmPassword,
	FieldTitle, FieldDescription, FieldDate, FieldLocation,
}

// Err はフォーム表示順で最初のエラーをValidationErrorとして返す。
// エラーがなければnilを返す。
func (fe FieldErrors) Err() error {
	for _, field := range fieldOrder {
		if msg, ok := fe[field]; ok {
			return &model.ValidationError{Field: field, Message: msg}
		}
	}
	return nil
}

func (fe FieldErrors) add(err error) {
	if err == nil {
		return
	}
	if vErr, ok := err.(*model.ValidationError); ok {
		fe[vErr.Field] = vErr.Message
	}
}

// EventInput はイベント作成・編集フォームの全項目を検証する。
func EventInput(in model.EventInput) FieldErrors {
	fe := FieldErrors{}
	fe.add(Title(in.Title))
	fe.add(Description(in.Description))
	fe.add(Date(in.Date))
	fe.add(Location(in.Location))
	return fe
}

// SignUp は新規登録フォームの全項目を検証する。
func SignUp(email, password, confirm, name string) FieldErrors {
	fe := FieldErrors{}
	fe.add(Name(name))
	fe.add(Email(email))
	fe.add(Password(password))
	fe.add(ConfirmPassword(password, confirm))
	return fe
}

// SignIn はログインフォームの全項目を検証する。
func SignIn(email, password string) FieldErrors {
	fe := FieldErrors{}
	fe.add(Email(email))
	fe.add(Password(password))
	return fe
}
