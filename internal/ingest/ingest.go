// Package ingest normalizes inbound email so that re-delivery of the same
// message maps to one stored row, and so prompts see bounded, tidy text.
package ingest

import (
	"crypto/sha256"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// MaxStoredBodyBytes caps what is persisted for one email body.
const MaxStoredBodyBytes = 64 * 1024

var (
	reReplyPrefix = regexp.MustCompile(`(?i)^\s*((re|fw|fwd|aw|sv)\s*(\[\d+\])?\s*:\s*)+`)
	reAngleAddr   = regexp.MustCompile(`<([^<>@\s]+@[^<>@\s]+)>`)
	reWhitespace  = regexp.MustCompile(`\s+`)
	reBlankLines  = regexp.MustCompile(`\n{3,}`)
)

// Fingerprint computes a stable SHA-256 fingerprint for an email.
func Fingerprint(sender, subject, body string) string {
	normalized := NormalizeSender(sender) + "\x00" + NormalizeSubject(subject) + "\x00" + normalizeBody(body)
	hash := sha256.Sum256([]byte(normalized))
	return fmt.Sprintf("%x", hash)
}

// NormalizeSender reduces `"Name" <addr@host>` to a lowercase address.
func NormalizeSender(sender string) string {
	if m := reAngleAddr.FindStringSubmatch(sender); m != nil {
		sender = m[1]
	}
	return strings.ToLower(strings.TrimSpace(sender))
}

// NormalizeSubject strips reply/forward prefixes, collapses whitespace and lowercases.
func NormalizeSubject(subject string) string {
	subject = reReplyPrefix.ReplaceAllString(subject, "")
	subject = reWhitespace.ReplaceAllString(subject, " ")
	return strings.ToLower(strings.TrimSpace(subject))
}

func normalizeBody(body string) string {
	body = reWhitespace.ReplaceAllString(body, " ")
	body = strings.ToLower(strings.TrimSpace(body))
	return TruncateUTF8(body, 2000)
}

// CleanBody normalizes line endings and squeezes runs of blank lines, keeping
// the text readable for both storage and prompts.
func CleanBody(body string) string {
	body = strings.ReplaceAll(body, "\r\n", "\n")
	body = strings.ReplaceAll(body, "\r", "\n")
	body = reBlankLines.ReplaceAllString(body, "\n\n")
	return strings.TrimSpace(body)
}

// TruncateUTF8 truncates s to maxBytes without splitting UTF-8 runes.
func TruncateUTF8(s string, maxBytes int) string {
	if len(s) <= maxBytes {
		return s
	}
	for maxBytes > 0 && !utf8.RuneStart(s[maxBytes]) {
		maxBytes--
	}
	return s[:maxBytes]
}
