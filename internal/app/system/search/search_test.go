package search

import (
	"testing"

	"go.mongodb.org/mongo-driver/bson"
)

func TestRegex(t *testing.T) {
	tests := []struct {
		in      string
		pattern string
		ok      bool
	}{
		{"", "", false},
		{"   ", "", false},
		{"hands", "hands", true},
		{"  a.b ", `a\.b`, true},
		{"(x)*", `\(x\)\*`, true},
	}
	for _, tt := range tests {
		re, ok := Regex(tt.in)
		if ok != tt.ok || re.Pattern != tt.pattern {
			t.Errorf("Regex(%q) = %q, %v; want %q, %v", tt.in, re.Pattern, ok, tt.pattern, tt.ok)
		}
		if ok && re.Options != "i" {
			t.Errorf("Regex(%q) options = %q, want i", tt.in, re.Options)
		}
	}
}

func TestAnyField(t *testing.T) {
	if AnyField("", "name") != nil {
		t.Error("blank query should produce no filter")
	}
	f := AnyField("help", "name", "description")
	or, ok := f["$or"].(bson.A)
	if !ok || len(or) != 2 {
		t.Fatalf("filter = %v", f)
	}
}
