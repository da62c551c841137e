package logging

import (
	"fmt"
	"net/url"
	"unicode/utf8"
)

// Truncate shortens s to at most maxLen bytes for log previews, appending
// "..." when something was cut. The cut backs off to a rune boundary so the
// preview stays valid UTF-8.
func Truncate(s string, maxLen int) string {
	if maxLen < 0 {
		maxLen = 0
	}
	if len(s) <= maxLen {
		return s
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

// HexDump renders up to maxLen bytes as space-separated lowercase hex.
// Control frames are logged this way so raw bytes such as ETX stay visible.
func HexDump(data []byte, maxLen int) string {
	if maxLen < 0 {
		maxLen = 0
	}
	if len(data) > maxLen {
		data = data[:maxLen]
	}
	return fmt.Sprintf("% x", data)
}

// RedactURL drops userinfo and query parameters, which is where endpoint
// credentials usually live, so the URL can be logged.
func RedactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "[unparseable url]"
	}
	if u.User != nil {
		u.User = url.User("REDACTED")
	}
	if u.RawQuery != "" {
		u.RawQuery = "REDACTED"
	}
	u.Fragment = ""
	return u.String()
}
