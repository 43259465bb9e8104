// Package scriptable decides whether content scripts can run on a URL at all.
// The check is static: it never looks at granted permissions.
package scriptable

import (
	"regexp"
	"strings"
)

// Blocked lists host and path prefixes where browsers refuse content scripts
// whatever permissions the extension holds.
var Blocked = []string{
	"chrome.google.com/webstore",
	"chromewebstore.google.com",
	"accounts-static.cdn.mozilla.net",
	"accounts.firefox.com",
	"addons.cdn.mozilla.net",
	"addons.mozilla.org",
	"api.accounts.firefox.com",
	"content.cdn.mozilla.net",
	"discovery.addons.mozilla.org",
	"input.mozilla.org",
	"install.mozilla.org",
	"oauth.accounts.firefox.com",
	"profile.accounts.firefox.com",
	"support.mozilla.org",
	"sync.services.mozilla.com",
	"testpilot.firefox.com",
}

var httpScheme = regexp.MustCompile(`^https?://`)

// IsScriptableURL reports whether content scripts may be injected into url.
// Anything that is not an http(s) URL is not scriptable.
func IsScriptableURL(url string) bool {
	return Default.IsScriptable(url)
}

// Default is the checker backing IsScriptableURL.
var Default = NewChecker()

// Checker is a scriptability predicate with a configurable deny list.
type Checker struct {
	blocked []string
}

// NewChecker returns a checker denying Blocked plus any extra prefixes.
func NewChecker(extra ...string) *Checker {
	blocked := make([]string, 0, len(Blocked)+len(extra))
	blocked = append(blocked, Blocked...)
	for _, prefix := range extra {
		prefix = httpScheme.ReplaceAllString(strings.TrimSpace(prefix), "")
		if prefix != "" {
			blocked = append(blocked, prefix)
		}
	}
	return &Checker{blocked: blocked}
}

// IsScriptable reports whether content scripts may be injected into url.
func (c *Checker) IsScriptable(url string) bool {
	if !strings.HasPrefix(url, "http") {
		return false
	}
	rest := httpScheme.ReplaceAllString(url, "")
	for _, prefix := range c.blocked {
		if strings.HasPrefix(rest, prefix) {
			return false
		}
	}
	return true
}
