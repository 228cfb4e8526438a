// Package policy decides whether a URL may be recorded in history.
package policy

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/roach88/histcore/internal/config"
)

// Policy is consulted before any visit is stored. A false answer means the
// URL is silently skipped.
type Policy interface {
	CanAddURL(u *url.URL) bool
}

// Func adapts a function to Policy.
type Func func(u *url.URL) bool

func (f Func) CanAddURL(u *url.URL) bool { return f(u) }

// Rules is the default policy: a scheme allowlist plus a domain and regex
// denylist matched against the host.
type Rules struct {
	schemes map[string]struct{}
	domains []string
	regexes []*regexp.Regexp
}

// NewRules builds Rules from capture configuration. Invalid regexes are
// skipped; config.Validate rejects them earlier.
func NewRules(cfg config.CaptureConfig) *Rules {
	r := &Rules{schemes: make(map[string]struct{}, len(cfg.AllowedSchemes))}
	for _, s := range cfg.AllowedSchemes {
		r.schemes[strings.ToLower(s)] = struct{}{}
	}
	for _, d := range cfg.DenylistDomains {
		r.domains = append(r.domains, strings.ToLower(strings.TrimPrefix(d, ".")))
	}
	for _, expr := range cfg.DenylistRegex {
		re, err := regexp.Compile(expr)
		if err != nil {
			continue
		}
		r.regexes = append(r.regexes, re)
	}
	return r
}

// CanAddURL implements Policy.
func (r *Rules) CanAddURL(u *url.URL) bool {
	if u == nil || u.Scheme == "" {
		return false
	}
	if _, ok := r.schemes[strings.ToLower(u.Scheme)]; !ok {
		return false
	}
	host := strings.ToLower(u.Hostname())
	if host == "" && u.Scheme != "file" {
		return false
	}
	return !r.isExcluded(host)
}

// isExcluded checks the host and its parent domains against the denylist.
func (r *Rules) isExcluded(host string) bool {
	for _, d := range r.domains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	for _, re := range r.regexes {
		if re.MatchString(host) {
			return true
		}
	}
	return false
}

// AllowAll accepts every absolute URL.
var AllowAll Policy = Func(func(u *url.URL) bool { return u != nil && u.Scheme != "" })
