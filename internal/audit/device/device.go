// Package device derives a human-readable device summary from a raw
// User-Agent string at ingestion time, so the audit log is searchable
// without re-parsing user agents.
package device

import (
	"strings"

	"github.com/mssola/useragent"
)

// Summarize extracts a display name in the form "Browser on OS", e.g.
// "Chrome on Linux". Bots are labeled as such; an empty or unparseable
// user agent yields "Unknown Device".
func Summarize(userAgentString string) string {
	if userAgentString == "" {
		return "Unknown Device"
	}

	ua := useragent.New(userAgentString)

	if ua.Bot() {
		return "Bot"
	}

	browser, _ := ua.Browser()
	browser = strings.TrimSpace(browser)
	if browser == "" {
		browser = "Unknown Browser"
	}

	os := strings.TrimSpace(ua.OS())
	if os == "" {
		return browser
	}

	return browser + " on " + os
}
