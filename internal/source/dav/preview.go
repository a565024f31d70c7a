package dav

import (
	"html"
	"regexp"
	"strings"
)

const (
	previewMaxChars = 200
	previewMaxLines = 2
)

var (
	urlRe           = regexp.MustCompile(`(?i)https?://\S+`)
	textURLRe       = regexp.MustCompile(`(?i)\[https?://[^\]]+\]|https?://\S+`)
	htmlLinebreakRe = regexp.MustCompile(`(?is)<br\s*/?>|</p\s*>`)
	htmlTagRe       = regexp.MustCompile(`(?is)<[^>]+>`)
	cidRe           = regexp.MustCompile(`(?i)\[cid:[^\]]+\]|cid:[\w.@-]+`)
	noiseLineRe     = regexp.MustCompile(`(?i)^\[?(cid|image|img):`)
)

// extractURL returns the first http(s) URL in text, or "".
func extractURL(text string) string {
	return urlRe.FindString(text)
}

// cleanMailText flattens HTML-ish bodies to plain text and strips inline
// URLs and cid attachment references.
func cleanMailText(text string) string {
	cleaned := strings.ReplaceAll(text, "\u00a0", " ")
	if strings.Contains(cleaned, "<") && strings.Contains(cleaned, ">") {
		cleaned = htmlLinebreakRe.ReplaceAllString(cleaned, "\n")
		cleaned = htmlTagRe.ReplaceAllString(cleaned, " ")
		cleaned = html.UnescapeString(cleaned)
	}
	cleaned = textURLRe.ReplaceAllString(cleaned, " ")
	cleaned = cidRe.ReplaceAllString(cleaned, " ")
	return cleaned
}

// buildPreview produces the bounded plain-text preview stored on a
// MailItem: first non-noise lines, capped in count and length.
func buildPreview(text string) string {
	cleaned := cleanMailText(text)

	var lines []string
	for _, line := range strings.Split(cleaned, "\n") {
		stripped := strings.TrimSpace(line)
		if stripped == "" {
			continue
		}
		if noiseLineRe.MatchString(stripped) {
			continue
		}
		lines = append(lines, stripped)
		if len(lines) >= previewMaxLines {
			break
		}
	}

	preview := strings.Join(lines, "\n")
	// The cap counts characters, not bytes: cutting mid-rune would leave
	// invalid UTF-8 in the stored preview.
	if runes := []rune(preview); len(runes) > previewMaxChars {
		preview = strings.TrimRight(string(runes[:previewMaxChars]), " \t\n")
	}
	return preview
}
