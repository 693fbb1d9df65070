package docstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/hitoshi/eventorg/internal/model"
)

func TestServerTimestamp_SurvivesJSONRoundTrip(t *testing.T) {
	fields := Fields{"title": "x", "createdAt": ServerTimestamp()}

	raw, err := json.Marshal(fields)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded Fields
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if !IsServerTimestamp(decoded["createdAt"]) {
		t.Error("sentinel should be recognised after JSON round trip")
	}
	if IsServerTimestamp(decoded["title"]) {
		t.Error("plain string must not be treated as sentinel")
	}
}

func TestResolveServerTimestamps(t *testing.T) {
	now := time.Date(2026, 10, 18, 9, 30, 0, 0, time.FixedZone("JST", 9*3600))
	in := Fields{"a": ServerTimestamp(), "b": "keep", "c": nil}

	out := ResolveServerTimestamps(in, now)

	if out["a"] != "2026-10-18T00:30:00Z" {
		t.Errorf("a = %v, want UTC RFC 3339", out["a"])
	}
	if out["b"] != "keep" {
		t.Errorf("b = %v, want keep", out["b"])
	}
	if v, ok := out["c"]; !ok || v != nil {
		t.Errorf("c = %v, want explicit nil", v)
	}
	if !IsServerTimestamp(in["a"]) {
		t.Error("input must not be modified")
	}
}

func TestMatch(t *testing.T) {
	fields := Fields{"userId": "u1", "eventId": "e1", "count": 3.0}

	if !Match(fields, nil) {
		t.Error("no filters should match")
	}
	if !Match(fields, []Filter{Where("userId", "u1"), Where("eventId", "e1")}) {
		t.Error("both filters should match")
	}
	if Match(fields, []Filter{Where("userId", "u2")}) {
		t.Error("different value should not match")
	}
	if Match(fields, []Filter{Where("missing", "")}) {
		t.Error("missing field should not match empty string")
	}
	if Match(fields, []Filter{Where("count", "3")}) {
		t.Error("non-string field should not match")
	}
}

func TestDocumentAccessors(t *testing.T) {
	doc := Document{ID: "d1", Fields: Fields{
		"title":     "Meetup",
		"date":      nil,
		"createdAt": "2026-10-18T00:00:00Z",
		"broken":    "not a time",
	}}

	if doc.String("title") != "Meetup" {
		t.Errorf("String(title) = %q", doc.String("title"))
	}
	if doc.String("missing") != "" {
		t.Error("missing string should be empty")
	}
	if doc.StringPtr("date") != nil {
		t.Error("null field should give nil pointer")
	}
	if p := doc.StringPtr("title"); p == nil || *p != "Meetup" {
		t.Error("StringPtr(title) mismatch")
	}
	if got := doc.Time("createdAt"); !got.Equal(time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("Time(createdAt) = %v", got)
	}
	if !doc.Time("broken").IsZero() {
		t.Error("unparseable time should be zero")
	}
}

func TestIsNotFoundAndConflict(t *testing.T) {
	nf := fmt.Errorf("wrapped: %w", model.NewDocumentNotFoundError("events", "x"))
	if !IsNotFound(nf) {
		t.Error("IsNotFound should see through wrapping")
	}
	if IsConflict(nf) {
		t.Error("not-found is not a conflict")
	}
	if !IsConflict(model.NewDocumentConflictError("favorites")) {
		t.Error("IsConflict should match conflict code")
	}
	if IsNotFound(errors.New("plain")) {
		t.Error("plain error is not not-found")
	}
}

func TestValidCollection(t *testing.T) {
	if !ValidCollection(CollectionEvents) || !ValidCollection(CollectionFavorites) {
		t.Error("known collections should be valid")
	}
	if ValidCollection("users") {
		t.Error("unknown collection should be invalid")
	}
}
