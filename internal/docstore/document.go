package docstore

import (
	"time"
)

// String は文字列フィールドを返す。未設定や型不一致の場合は空文字を返す。
func (d Document) String(key string) string {
	s, _ := d.Fields[key].(string)
	return s
}

// StringPtr はnull許容の文字列フィールドを返す。
func (d Document) StringPtr(key string) *string {
	s, ok := d.Fields[key].(string)
	if !ok {
		return nil
	}
	return &s
}

// Time は時刻フィールドを返す。解析できない場合はゼロ値を返す。
func (d Document) Time(key string) time.Time {
	switch v := d.Fields[key].(type) {
	case string:
		t, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return time.Time{}
		}
		return t
	case time.Time:
		return v
	default:
		return time.Time{}
	}
}

// Clone はフィールドを浅くコピーしたドキュメントを返す。
func (d Document) Clone() Document {
	fields := make(Fields, len(d.Fields))
	for k, v := range d.Fields {
		fields[k] = v
	}
	return Document{ID: d.ID, Fields: fields}
}
