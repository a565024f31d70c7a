package dav

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestBuildPreview(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "plain text keeps first two lines",
			in:   "first\n\nsecond\nthird",
			want: "first\nsecond",
		},
		{
			name: "html flattened",
			in:   "<p>Hello <b>team</b></p><br/>status below",
			want: "Hello  team\nstatus below",
		},
		{
			name: "urls and cid stripped",
			in:   "see https://example.com/x and [cid:image001.png@01D9]\nnext",
			want: "see   and\nnext",
		},
		{
			name: "noise lines skipped",
			in:   "[cid:logo]\nimage: header.png\nreal content",
			want: "real content",
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := buildPreview(tt.in); got != tt.want {
				t.Fatalf("buildPreview(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestBuildPreviewBoundsLength(t *testing.T) {
	t.Parallel()
	long := strings.Repeat("a", 500)
	got := buildPreview(long)
	if len(got) > previewMaxChars {
		t.Fatalf("preview length %d exceeds %d", len(got), previewMaxChars)
	}
}

func TestBuildPreviewTruncatesOnRuneBoundary(t *testing.T) {
	t.Parallel()
	// Cyrillic body: every rune is two bytes, so a byte-indexed cut would
	// split a rune at the cap.
	long := "x" + strings.Repeat("ж", 500)
	got := buildPreview(long)
	if !utf8.ValidString(got) {
		t.Fatalf("preview contains invalid UTF-8 after truncation: %q", got[len(got)-6:])
	}
	if n := utf8.RuneCountInString(got); n > previewMaxChars {
		t.Fatalf("preview is %d characters, cap is %d", n, previewMaxChars)
	}
}

func TestExtractURL(t *testing.T) {
	t.Parallel()
	if got := extractURL("Room 5; https://meet.example.com/j/123 (dial-in below)"); got != "https://meet.example.com/j/123" {
		t.Fatalf("extractURL = %q", got)
	}
	if got := extractURL("Room 5"); got != "" {
		t.Fatalf("extractURL = %q, want empty", got)
	}
}
