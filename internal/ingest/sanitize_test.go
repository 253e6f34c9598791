package ingest

import "testing"

func TestSanitizeUTF8(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"clean text passes through", "hello world", "hello world"},
		{"nul bytes dropped", "a\x00b", "ab"},
		{"control chars dropped", "a\x01\x02\x1fb", "ab"},
		{"whitespace controls kept", "a\tb\nc\rd", "a\tb\nc\rd"},
		{"delete char dropped", "a\x7fb", "ab"},
		{"invalid utf8 replaced", "a\xffb", "a�b"},
		{"cyrillic preserved", "привет мир", "привет мир"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeUTF8(tt.in); got != tt.want {
				t.Errorf("SanitizeUTF8(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
