package ticket

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode"
)

// Fingerprint computes the stable dedup hash for (site, issue type,
// target). Semantically identical recurring issues must collapse to the
// same fingerprint across runs, so the inputs are normalized first.
func Fingerprint(siteID, issueType, target string) string {
	h := sha256.New()
	h.Write([]byte(strings.ToLower(strings.TrimSpace(siteID))))
	h.Write([]byte{0})
	h.Write([]byte(normalize(issueType)))
	h.Write([]byte{0})
	h.Write([]byte(normalize(target)))
	return hex.EncodeToString(h.Sum(nil))[:16]
}

// normalize lower-cases, strips digit runs (counts, dates, percentages
// vary run to run), and collapses whitespace.
func normalize(s string) string {
	s = strings.ToLower(s)

	var b strings.Builder
	b.Grow(len(s))
	lastSpace := false
	for _, r := range s {
		if unicode.IsDigit(r) {
			continue
		}
		if unicode.IsSpace(r) {
			if !lastSpace && b.Len() > 0 {
				b.WriteByte(' ')
			}
			lastSpace = true
			continue
		}
		lastSpace = false
		b.WriteRune(r)
	}
	return strings.TrimSpace(b.String())
}
