// Package urlutil holds the URL helpers used when recording visits:
// canonicalization, redirect comparison, intranet host detection and
// keyword term normalization.
package urlutil

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// ErrNotAbsolute is returned for URLs without a scheme.
var ErrNotAbsolute = errors.New("url is not absolute")

// Canonicalize parses raw, drops user info, lower-cases scheme and host and
// returns the parsed URL and its string form.
func Canonicalize(raw string) (*url.URL, string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, "", fmt.Errorf("parse url: %w", err)
	}
	if u.Scheme == "" {
		return nil, "", ErrNotAbsolute
	}
	u.User = nil
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	if u.Host != "" && u.Path == "" && u.Opaque == "" {
		u.Path = "/"
	}
	return u, u.String(), nil
}

// MustCanonical returns the canonical string of raw, or raw unchanged when it
// cannot be parsed.
func MustCanonical(raw string) string {
	_, s, err := Canonicalize(raw)
	if err != nil {
		return raw
	}
	return s
}

// Host returns the lower-cased host name of raw without port.
func Host(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

// Scheme returns the lower-cased scheme of raw.
func Scheme(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Scheme)
}

// redirectComparisonKey drops scheme, port, user info and a single leading
// "www." label.
func redirectComparisonKey(u *url.URL) string {
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	key := host + path
	if u.RawQuery != "" {
		key += "?" + u.RawQuery
	}
	if u.Fragment != "" {
		key += "#" + u.Fragment
	}
	return key
}

// EqualForRedirectComparison reports whether a and b name the same page once
// scheme, port and a leading "www." are ignored.
func EqualForRedirectComparison(a, b string) bool {
	ua, err := url.Parse(a)
	if err != nil {
		return false
	}
	ub, err := url.Parse(b)
	if err != nil {
		return false
	}
	return redirectComparisonKey(ua) == redirectComparisonKey(ub)
}

// IsSchemeUpgrade reports whether to is the https version of the http URL from.
func IsSchemeUpgrade(from, to string) bool {
	return Scheme(from) == "http" && Scheme(to) == "https" && EqualForRedirectComparison(from, to)
}

// IsStandardWebScheme reports whether scheme is one intranet promotion and
// typed host checks consider.
func IsStandardWebScheme(scheme string) bool {
	switch scheme {
	case "http", "https", "ftp":
		return true
	}
	return false
}

// HasKnownRegistry reports whether host ends in a public registry such as
// "com" or "co.uk". Single-label hosts, unknown suffixes and IP literals do
// not.
func HasKnownRegistry(host string) bool {
	host = strings.TrimSuffix(strings.ToLower(host), ".")
	if host == "" || net.ParseIP(strings.Trim(host, "[]")) != nil {
		return false
	}
	suffix, icann := publicsuffix.PublicSuffix(host)
	if suffix == host {
		return false
	}
	return icann || strings.Contains(suffix, ".")
}

// IsIntranetCandidate reports whether raw is a web URL on a host without a
// known registry.
func IsIntranetCandidate(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	if !IsStandardWebScheme(strings.ToLower(u.Scheme)) {
		return false
	}
	return !HasKnownRegistry(u.Hostname())
}

// NormalizeTerm returns term in NFC, case folded, with runs of whitespace
// collapsed to a single space.
func NormalizeTerm(term string) string {
	term = norm.NFC.String(term)
	term = cases.Fold().String(term)
	return strings.Join(strings.Fields(term), " ")
}

// Terms splits text into normalized search terms.
func Terms(text string) []string {
	n := NormalizeTerm(text)
	if n == "" {
		return nil
	}
	return strings.Fields(n)
}
