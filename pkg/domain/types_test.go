package domain

import (
	"encoding/json"
	"testing"
)

func TestIDAcceptsNumbersAndStrings(t *testing.T) {
	var post struct {
		A ID `json:"a"`
		B ID `json:"b"`
		C ID `json:"c"`
	}
	if err := json.Unmarshal([]byte(`{"a":42,"b":"abc","c":null}`), &post); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if post.A != "42" || post.B != "abc" || post.C != "" {
		t.Fatalf("unexpected ids: %+v", post)
	}
}

func TestIDRejectsObjects(t *testing.T) {
	var id ID
	if err := json.Unmarshal([]byte(`{"x":1}`), &id); err == nil {
		t.Fatalf("expected error for object id")
	}
}

func TestParseCategory(t *testing.T) {
	if c, ok := ParseCategory("Teknologi"); !ok || c != "Teknologi" {
		t.Fatalf("expected Teknologi, got %q ok=%v", c, ok)
	}
	if _, ok := ParseCategory(""); !ok {
		t.Fatalf("empty category should be accepted")
	}
	if _, ok := ParseCategory("teknologi"); ok {
		t.Fatalf("category match must be exact")
	}
}

func TestRecordID(t *testing.T) {
	tests := []struct {
		name string
		rec  Record
		want string
	}{
		{name: "string id", rec: Record{"id": "p-1"}, want: "p-1"},
		{name: "numeric id", rec: Record{"id": float64(7)}, want: "7"},
		{name: "mongo id", rec: Record{"_id": "65f0"}, want: "65f0"},
		{name: "missing", rec: Record{"name": "x"}, want: ""},
	}
	for _, tc := range tests {
		if got := tc.rec.RecordID(); got != tc.want {
			t.Fatalf("%s: RecordID() = %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestAuthorDisplayName(t *testing.T) {
	var anon *Author
	if anon.DisplayName() != "Anonim" {
		t.Fatalf("nil author should be anonymous")
	}
	if (&Author{Name: "Rina"}).DisplayName() != "Rina" {
		t.Fatalf("expected author name")
	}
}
