package service

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestStringPreview(t *testing.T) {
	tests := []struct {
		name string
		body string
		max  int
		want string
	}{
		{"short", "  fits  ", 10, "fits"},
		{"ascii", strings.Repeat("a", 20), 10, "aaaaaaa..."},
		{"two byte runes", strings.Repeat("é", 100), 120, strings.Repeat("é", 58) + "..."},
		{"cut inside three byte rune", "日本語のテキスト", 10, "日本..."},
		{"tiny limit", "ééé", 3, "é"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := stringPreview(tt.body, tt.max)
			if got != tt.want {
				t.Fatalf("stringPreview() = %q, want %q", got, tt.want)
			}
			if !utf8.ValidString(got) || len(got) > tt.max {
				t.Fatalf("stringPreview() = %q: valid=%v len=%d", got, utf8.ValidString(got), len(got))
			}
		})
	}
}
