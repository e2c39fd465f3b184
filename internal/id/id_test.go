package id

import (
	"testing"

	"github.com/google/uuid"
)

func TestIsUUID(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"550e8400-e29b-41d4-a716-446655440000", true},
		{"  550e8400-e29b-41d4-a716-446655440000  ", true},
		{"550E8400-E29B-41D4-A716-446655440000", true},
		{"not-a-uuid", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := IsUUID(tt.input); got != tt.want {
			t.Errorf("IsUUID(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestParse(t *testing.T) {
	want := uuid.MustParse("550e8400-e29b-41d4-a716-446655440000")
	got, err := Parse(" 550e8400-e29b-41d4-a716-446655440000 ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != want {
		t.Errorf("Parse = %s, want %s", got, want)
	}

	if _, err := Parse("bogus"); err == nil {
		t.Error("expected error for invalid UUID")
	}
}

func TestShort(t *testing.T) {
	id := uuid.MustParse("550e8400-e29b-41d4-a716-446655440000")
	if got := Short(id); got != "550e8400" {
		t.Errorf("Short = %q, want %q", got, "550e8400")
	}
}
