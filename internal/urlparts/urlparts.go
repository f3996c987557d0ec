// Package urlparts splits and joins URLs using the generic URI grammar of
// RFC 2396 Appendix B, keeping absent components distinct from empty ones so
// that Join(Split(u)) == u for every input.
package urlparts

import (
	"regexp"
	"strings"
)

// splitPattern is the RFC 2396 Appendix B grammar. It matches every string;
// the s flag lets a fragment contain newlines.
var splitPattern = regexp.MustCompile(`(?s)^(([^:/?#]+):)?(//([^/?#]*))?([^?#]*)(\?([^#]*))?(#(.*))?`)

// Submatch group numbers within splitPattern.
const (
	groupScheme    = 2
	groupAuthority = 4
	groupPath      = 5
	groupQuery     = 7
	groupFragment  = 9
)

// Parts holds the five components of a URL. Path is always present; each of
// the others is only meaningful when its Has flag is set.
type Parts struct {
	Scheme    string
	Authority string
	Path      string
	Query     string
	Fragment  string

	HasScheme    bool
	HasAuthority bool
	HasQuery     bool
	HasFragment  bool
}

// Split parses url into its components.
func Split(url string) Parts {
	var p Parts
	idx := splitPattern.FindStringSubmatchIndex(url)
	if idx == nil {
		p.Path = url
		return p
	}

	group := func(n int) (string, bool) {
		start, end := idx[2*n], idx[2*n+1]
		if start < 0 {
			return "", false
		}
		return url[start:end], true
	}

	p.Scheme, p.HasScheme = group(groupScheme)
	p.Authority, p.HasAuthority = group(groupAuthority)
	p.Path, _ = group(groupPath)
	p.Query, p.HasQuery = group(groupQuery)
	p.Fragment, p.HasFragment = group(groupFragment)
	return p
}

// Join concatenates the present components of p in URL order.
func Join(p Parts) string {
	var b strings.Builder
	if p.HasScheme {
		b.WriteString(p.Scheme)
		b.WriteByte(':')
	}
	if p.HasAuthority {
		b.WriteString("//")
		b.WriteString(p.Authority)
	}
	b.WriteString(p.Path)
	if p.HasQuery {
		b.WriteByte('?')
		b.WriteString(p.Query)
	}
	if p.HasFragment {
		b.WriteByte('#')
		b.WriteString(p.Fragment)
	}
	return b.String()
}

// String returns Join(p).
func (p Parts) String() string {
	return Join(p)
}

// Fix replaces every '%' that does not start a two-hex-digit escape with
// "%25". Valid escapes are left untouched, so Fix is idempotent.
func Fix(url string) string {
	if !strings.Contains(url, "%") {
		return url
	}

	var b strings.Builder
	b.Grow(len(url) + 8)
	for i := 0; i < len(url); i++ {
		c := url[i]
		if c == '%' && !(i+2 < len(url) && isHex(url[i+1]) && isHex(url[i+2])) {
			b.WriteString("%25")
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

func isHex(c byte) bool {
	switch {
	case '0' <= c && c <= '9':
		return true
	case 'a' <= c && c <= 'f':
		return true
	case 'A' <= c && c <= 'F':
		return true
	}
	return false
}

// RelativePath returns the remainder of url after the literal prefix base.
// When url does not start with base it returns "" and false.
func RelativePath(base, url string) (string, bool) {
	if rest, ok := strings.CutPrefix(url, base); ok {
		return rest, true
	}
	return "", false
}
