// Package matchpattern compiles browser extension match patterns such as
// "*://*.example.com/*" and matches URLs against them.
package matchpattern

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/gobwas/glob"
)

// ErrInvalidPattern is returned for strings that are not match patterns.
var ErrInvalidPattern = errors.New("invalid match pattern")

// AllURLs is the pattern matching every URL with a supported scheme.
const AllURLs = "<all_urls>"

var schemes = map[string]bool{
	"http":  true,
	"https": true,
	"ws":    true,
	"wss":   true,
	"ftp":   true,
	"file":  true,
}

// Pattern is one compiled match pattern.
type Pattern struct {
	raw    string
	all    bool
	scheme glob.Glob
	host   glob.Glob // nil for file patterns without a host
	path   glob.Glob
}

// Parse compiles a single match pattern.
func Parse(pattern string) (*Pattern, error) {
	p := &Pattern{raw: pattern}
	if pattern == AllURLs {
		p.all = true
		return p, nil
	}

	scheme, rest, ok := strings.Cut(pattern, "://")
	if !ok {
		return nil, fmt.Errorf("%w %q: missing scheme separator", ErrInvalidPattern, pattern)
	}
	host, path, ok := strings.Cut(rest, "/")
	if !ok {
		return nil, fmt.Errorf("%w %q: missing path", ErrInvalidPattern, pattern)
	}
	path = "/" + path

	var err error
	if p.scheme, err = compileScheme(scheme); err != nil {
		return nil, fmt.Errorf("%w %q: %v", ErrInvalidPattern, pattern, err)
	}
	if p.host, err = compileHost(scheme, host); err != nil {
		return nil, fmt.Errorf("%w %q: %v", ErrInvalidPattern, pattern, err)
	}
	if p.path, err = glob.Compile(quoteExceptStar(path)); err != nil {
		return nil, fmt.Errorf("%w %q: %v", ErrInvalidPattern, pattern, err)
	}
	return p, nil
}

// MustParse is like Parse but panics on error.
func MustParse(pattern string) *Pattern {
	p, err := Parse(pattern)
	if err != nil {
		panic(err)
	}
	return p
}

func compileScheme(scheme string) (glob.Glob, error) {
	if scheme == "*" {
		return glob.Compile("{http,https}")
	}
	scheme = strings.ToLower(scheme)
	if !schemes[scheme] {
		return nil, fmt.Errorf("unsupported scheme %q", scheme)
	}
	return glob.Compile(glob.QuoteMeta(scheme))
}

func compileHost(scheme, host string) (glob.Glob, error) {
	host = strings.ToLower(host)
	switch {
	case host == "" && scheme == "file":
		return nil, nil
	case host == "":
		return nil, errors.New("missing host")
	case host == "*":
		return glob.Compile("*")
	case strings.HasPrefix(host, "*."):
		base := host[2:]
		if base == "" || strings.Contains(base, "*") {
			return nil, fmt.Errorf("bad wildcard host %q", host)
		}
		q := glob.QuoteMeta(base)
		return glob.Compile("{" + q + ",*." + q + "}")
	case strings.Contains(host, "*"):
		return nil, fmt.Errorf("wildcard must lead the host, got %q", host)
	default:
		return glob.Compile(glob.QuoteMeta(host))
	}
}

func quoteExceptStar(s string) string {
	parts := strings.Split(s, "*")
	for i, part := range parts {
		parts[i] = glob.QuoteMeta(part)
	}
	return strings.Join(parts, "*")
}

// Match reports whether rawURL matches the pattern. Unparsable URLs never match.
func (p *Pattern) Match(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" {
		return false
	}
	scheme := strings.ToLower(u.Scheme)
	if p.all {
		return schemes[scheme]
	}
	if !p.scheme.Match(scheme) {
		return false
	}
	hostname := strings.ToLower(u.Hostname())
	if p.host == nil {
		if hostname != "" {
			return false
		}
	} else if !p.host.Match(hostname) {
		return false
	}
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}
	return p.path.Match(path)
}

func (p *Pattern) String() string {
	return p.raw
}

// Set is a combined matcher over several patterns. The zero value and an empty
// set match nothing.
type Set struct {
	patterns []*Pattern
}

// Compile parses every pattern into one Set.
func Compile(patterns ...string) (*Set, error) {
	s := &Set{patterns: make([]*Pattern, 0, len(patterns))}
	for _, raw := range patterns {
		p, err := Parse(raw)
		if err != nil {
			return nil, err
		}
		s.patterns = append(s.patterns, p)
	}
	return s, nil
}

// Match reports whether rawURL matches any pattern of the set.
func (s *Set) Match(rawURL string) bool {
	if s == nil {
		return false
	}
	for _, p := range s.patterns {
		if p.Match(rawURL) {
			return true
		}
	}
	return false
}

// Len returns the number of patterns in the set.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.patterns)
}
