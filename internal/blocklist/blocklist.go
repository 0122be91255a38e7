// Package blocklist decides whether a destination host may be shortened.
package blocklist

import (
	"fmt"
	"strings"

	"github.com/gobwas/glob"
)

// Defaults are hosts refused out of the box: known phishing and malware
// domains, disposable mail services, and other shorteners (to prevent
// redirect chains).
var Defaults = []string{
	// phishing
	"evil.com",
	"malware.com",
	"phishing.com",
	"scam.com",
	"login-verify.com",
	"secure-update.com",
	"account-verify.com",
	"signin-alert.com",
	"update-info.com",

	// malware distribution
	"malwaredomainlist.com",

	// shorteners
	"bit.ly",
	"tinyurl.com",
	"goo.gl",
	"t.co",
	"is.gd",
	"v.gd",
	"ow.ly",
	"buff.ly",
	"adf.ly",
	"shorte.st",
	"bc.vc",

	// spam
	"spam4.me",
	"guerrillamail.com",
	"sharklasers.com",
	"grr.la",
	"guerrillamailblock.com",
}

// List matches hostnames against exact entries and glob patterns such as
// "*.example.com".
type List struct {
	exact    map[string]struct{}
	patterns []glob.Glob
}

// New compiles entries. Entries containing glob metacharacters become
// patterns matched with '.' as the separator, so "*.evil.com" matches
// "a.evil.com" but not "a.b.evil.com"; use "**.evil.com" for any depth.
func New(entries ...string) (*List, error) {
	l := &List{exact: make(map[string]struct{}, len(entries))}

	for _, entry := range entries {
		entry = normalize(entry)
		if entry == "" {
			continue
		}
		if !strings.ContainsAny(entry, "*?[{") {
			l.exact[entry] = struct{}{}
			continue
		}

		g, err := glob.Compile(entry, '.')
		if err != nil {
			return nil, fmt.Errorf("invalid blocklist pattern %q: %w", entry, err)
		}
		l.patterns = append(l.patterns, g)
	}

	return l, nil
}

// Default returns the built-in list plus extra entries.
func Default(extra ...string) (*List, error) {
	return New(append(append([]string{}, Defaults...), extra...)...)
}

// Blocked reports whether host is on the list.
func (l *List) Blocked(host string) bool {
	host = normalize(host)
	if l == nil || host == "" {
		return false
	}
	if _, ok := l.exact[host]; ok {
		return true
	}
	for _, g := range l.patterns {
		if g.Match(host) {
			return true
		}
	}
	return false
}

// Len returns the number of entries.
func (l *List) Len() int {
	if l == nil {
		return 0
	}
	return len(l.exact) + len(l.patterns)
}

func normalize(host string) string {
	return strings.TrimSuffix(strings.ToLower(strings.TrimSpace(host)), ".")
}
