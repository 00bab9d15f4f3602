package template

import (
	"html"
	"strings"

	"golang.org/x/text/unicode/norm"
)

const dataURIPrefix = "data:"

// SanitizeImageURL discards inline data URIs, which most mail clients
// refuse inside background images. Anything else is returned trimmed.
func SanitizeImageURL(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= len(dataURIPrefix) && strings.EqualFold(s[:len(dataURIPrefix)], dataURIPrefix) {
		return ""
	}
	return s
}

// styleValue returns v when it is a plain CSS value, fallback otherwise.
// A value must not be able to close the declaration or pull in resources.
func styleValue(v, fallback string) string {
	v = strings.TrimSpace(v)
	if v == "" || !isPlainCSSValue(v) {
		return fallback
	}
	return v
}

func isPlainCSSValue(v string) bool {
	if strings.ContainsAny(v, ";{}<>\"\\") {
		return false
	}
	lower := strings.ToLower(v)
	return !strings.Contains(lower, "expression(") && !strings.Contains(lower, "url(")
}

// text returns v, or fallback when v is blank
func text(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}

// normalize converts text to NFC and unifies line endings
func normalize(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	return norm.NFC.String(s)
}

// multiline escapes s and turns newlines into <br>. This is the only place
// markup is introduced into caller text.
func multiline(s string) string {
	return strings.ReplaceAll(html.EscapeString(normalize(s)), "\n", "<br>")
}

// singleLine flattens s for places where a line break has no meaning
func singleLine(s string) string {
	return strings.Join(strings.Fields(normalize(s)), " ")
}
