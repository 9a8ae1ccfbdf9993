package export

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		name   string
		in     string
		maxLen int
		want   string
	}{
		{"plain", "clip-trimmed.mp4", 0, "clip-trimmed.mp4"},
		{"allowed punctuation", "Az09 -_.,()", 100, "Az09 -_.,()"},
		{"control chars dropped", " A\nB\rC\tD\x00 ", 100, "ABCD"},
		{"unsafe replaced", `bad<>|"name/..\x`, 100, "bad____name_.._x"},
		{"accents folded", "Été à Paris-trimmed.mp4", 100, "Ete a Paris-trimmed.mp4"},
		{"tilde and umlaut", "Ñandú Überfahrt.mkv", 100, "Nandu Uberfahrt.mkv"},
		{"truncated by runes", "abcdefghijklmnopqrstuvwxyz", 10, "abcdefghij"},
		{"only spaces", "   ", 10, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeName(tt.in, tt.maxLen); got != tt.want {
				t.Errorf("SanitizeName(%q, %d) = %q, want %q", tt.in, tt.maxLen, got, tt.want)
			}
		})
	}
}

func TestValidateOutputDir(t *testing.T) {
	base := t.TempDir()
	file := filepath.Join(base, "clip.mp4")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		dir     string
		wantErr bool
	}{
		{"existing dir", base, false},
		{"empty", "  ", true},
		{"missing", filepath.Join(base, "missing"), true},
		{"traversal", "/tmp/../etc", true},
		{"unclean", base + "/./", true},
		{"file", file, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateOutputDir(tt.dir)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateOutputDir(%q) error = %v, wantErr %v", tt.dir, err, tt.wantErr)
			}
		})
	}
}
