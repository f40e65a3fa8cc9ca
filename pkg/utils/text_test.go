package utils

import (
	"testing"
)

func TestTruncate(t *testing.T) {
	tests := []struct {
		name   string
		s      string
		maxLen int
		want   string
	}{
		{"short", "hello", 10, "hello"},
		{"cut", "hello world", 5, "hello..."},
		{"zero", "x", 0, "x"},
		{"multibyte within limit", "Amélie", 6, "Amélie"},
		{"multibyte cut on rune", "千と千尋の神隠し", 4, "千と千尋..."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Truncate(tt.s, tt.maxLen); got != tt.want {
				t.Errorf("Truncate(%q, %d) = %q, want %q", tt.s, tt.maxLen, got, tt.want)
			}
		})
	}
}
