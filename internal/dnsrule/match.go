// Package dnsrule implements the DNS rule set (C5): an ordered,
// index-keyed collection of resolution rules with match and upstream
// lookup logic.
package dnsrule

import (
	"regexp"
	"strings"

	"github.com/veylan/routerd/internal/utils"
)

// MatchKind discriminates the match-spec tagged union.
type MatchKind int

const (
	MatchPlain MatchKind = iota
	MatchSuffix
	MatchRegex
	MatchGeoSite
)

// GeoSiteMembership is consulted by MatchGeoSite rules. The geosite cache
// (C9) implements this interface; dnsrule only depends on the interface to
// avoid a package cycle.
type GeoSiteMembership interface {
	Contains(source, key, domain string) bool
}

// MatchSpec is a compiled match-spec: plain exact match, dot-boundary
// suffix match, a pre-compiled regex, or GeoSite-source membership.
type MatchSpec struct {
	Kind MatchKind

	// Plain/Suffix
	Domain string

	// Regex
	pattern *regexp.Regexp

	// GeoSite
	Source string
	GeoKey string
}

// NewPlainMatch builds an exact-domain match-spec.
func NewPlainMatch(domain string) MatchSpec {
	return MatchSpec{Kind: MatchPlain, Domain: normalize(domain)}
}

// NewSuffixMatch builds a dot-boundary suffix match-spec.
func NewSuffixMatch(domain string) MatchSpec {
	return MatchSpec{Kind: MatchSuffix, Domain: normalize(domain)}
}

// NewRegexMatch compiles pattern once, at rule-build time.
func NewRegexMatch(pattern string) (MatchSpec, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return MatchSpec{}, err
	}
	return MatchSpec{Kind: MatchRegex, pattern: re}, nil
}

// NewGeoSiteMatch builds a match-spec testing membership of (source, key).
func NewGeoSiteMatch(source, key string) MatchSpec {
	return MatchSpec{Kind: MatchGeoSite, Source: source, GeoKey: key}
}

// IsMatch reports whether domain satisfies this match-spec. geo may be nil
// if no rule in the set uses MatchGeoSite.
func (m MatchSpec) IsMatch(domain string, geo GeoSiteMembership) bool {
	domain = normalize(domain)
	switch m.Kind {
	case MatchPlain:
		return domain == m.Domain
	case MatchSuffix:
		matches, _ := utils.MatchDomain(domain, m.Domain)
		return matches
	case MatchRegex:
		return m.pattern != nil && m.pattern.MatchString(domain)
	case MatchGeoSite:
		return geo != nil && geo.Contains(m.Source, m.GeoKey, domain)
	default:
		return false
	}
}

func normalize(domain string) string {
	return strings.ToLower(strings.TrimSuffix(domain, "."))
}
