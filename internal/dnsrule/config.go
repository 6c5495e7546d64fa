package dnsrule

import (
	"github.com/google/uuid"
	"github.com/miekg/dns"

	apperrors "github.com/veylan/routerd/internal/errors"
	"github.com/veylan/routerd/internal/flowmark"
)

// Config is the persisted, storage-agnostic form of a Rule (§3): plain
// data with string-tagged discriminators instead of compiled regexes or
// clients, suitable for TOML persistence and the admin HTTP surface.
// Compile turns it into a Rule the query path can use.
type Config struct {
	Index  uint32 `toml:"index" json:"index" validate:"required"`
	ID     string `toml:"id" json:"id" validate:"required,uuid"`
	Name   string `toml:"name" json:"name" validate:"required"`
	Enable bool   `toml:"enable" json:"enable"`

	MatchKind     string `toml:"match_kind" json:"match_kind" validate:"required,oneof=plain suffix regex geosite"`
	MatchDomain   string `toml:"match_domain,omitempty" json:"match_domain,omitempty"`
	MatchPattern  string `toml:"match_pattern,omitempty" json:"match_pattern,omitempty"`
	GeoSiteSource string `toml:"geosite_source,omitempty" json:"geosite_source,omitempty"`
	GeoSiteKey    string `toml:"geosite_key,omitempty" json:"geosite_key,omitempty"`

	Filter string `toml:"filter" json:"filter" validate:"oneof=unfilter only_ipv4 only_ipv6"`
	Mark   uint32 `toml:"mark" json:"mark"`
	FlowID uint32 `toml:"flow_id" json:"flow_id"`

	UpstreamKind     string   `toml:"upstream_kind" json:"upstream_kind" validate:"required,oneof=system explicit fixed reject"`
	UpstreamAddress  string   `toml:"upstream_address,omitempty" json:"upstream_address,omitempty"`
	UpstreamProtocol string   `toml:"upstream_protocol,omitempty" json:"upstream_protocol,omitempty"`
	FixedRecords     []string `toml:"fixed_records,omitempty" json:"fixed_records,omitempty"`
	RejectRcode      int      `toml:"reject_rcode,omitempty" json:"reject_rcode,omitempty"`
}

// Key identifies this config for the generic config-store contract (C4):
// a rule's store key is its UUID, independent of its ordering Index.
func (c Config) Key() string { return c.ID }

// Compile builds a query-path Rule from its persisted form.
func (c Config) Compile() (*Rule, error) {
	match, err := c.compileMatch()
	if err != nil {
		return nil, err
	}

	filter := Unfilter
	switch c.Filter {
	case "only_ipv4":
		filter = OnlyIPv4
	case "only_ipv6":
		filter = OnlyIPv6
	}

	upstream, err := c.compileUpstream()
	if err != nil {
		return nil, err
	}

	id, err := uuid.Parse(c.ID)
	if err != nil {
		return nil, apperrors.NewValidationError("rule id is not a valid uuid: "+c.ID, err)
	}

	return &Rule{
		Index:    c.Index,
		ID:       id,
		Name:     c.Name,
		Enable:   c.Enable,
		Match:    match,
		Filter:   filter,
		Mark:     flowmark.Mark(c.Mark),
		FlowID:   c.FlowID,
		Upstream: upstream,
	}, nil
}

func (c Config) compileMatch() (MatchSpec, error) {
	switch c.MatchKind {
	case "plain":
		return NewPlainMatch(c.MatchDomain), nil
	case "suffix":
		return NewSuffixMatch(c.MatchDomain), nil
	case "regex":
		m, err := NewRegexMatch(c.MatchPattern)
		if err != nil {
			return MatchSpec{}, apperrors.NewValidationError("invalid match_pattern for rule "+c.Name, err)
		}
		return m, nil
	case "geosite":
		return NewGeoSiteMatch(c.GeoSiteSource, c.GeoSiteKey), nil
	default:
		return MatchSpec{}, apperrors.NewValidationError("unknown match_kind "+c.MatchKind+" for rule "+c.Name, nil)
	}
}

func (c Config) compileUpstream() (UpstreamSpec, error) {
	switch c.UpstreamKind {
	case "system":
		return NewSystemUpstream(c.UpstreamAddress), nil
	case "explicit":
		return NewExplicitUpstream(c.UpstreamAddress, Protocol(c.UpstreamProtocol)), nil
	case "fixed":
		records, err := parseFixedRecords(c.FixedRecords)
		if err != nil {
			return UpstreamSpec{}, apperrors.NewValidationError("invalid fixed_records for rule "+c.Name, err)
		}
		return NewFixedAnswerUpstream(records), nil
	case "reject":
		return NewRejectUpstream(c.RejectRcode), nil
	default:
		return UpstreamSpec{}, apperrors.NewValidationError("unknown upstream_kind "+c.UpstreamKind+" for rule "+c.Name, nil)
	}
}

func parseFixedRecords(lines []string) ([]dns.RR, error) {
	out := make([]dns.RR, 0, len(lines))
	for _, line := range lines {
		rr, err := dns.NewRR(line)
		if err != nil {
			return nil, err
		}
		out = append(out, rr)
	}
	return out, nil
}

// FromRule converts a compiled Rule back to its persisted form, for the
// admin HTTP surface's read path.
func FromRule(r *Rule) Config {
	c := Config{
		Index:  r.Index,
		ID:     r.ID.String(),
		Name:   r.Name,
		Enable: r.Enable,
		Mark:   uint32(r.Mark),
		FlowID: r.FlowID,
	}

	switch r.Filter {
	case OnlyIPv4:
		c.Filter = "only_ipv4"
	case OnlyIPv6:
		c.Filter = "only_ipv6"
	default:
		c.Filter = "unfilter"
	}

	switch r.Match.Kind {
	case MatchPlain:
		c.MatchKind, c.MatchDomain = "plain", r.Match.Domain
	case MatchSuffix:
		c.MatchKind, c.MatchDomain = "suffix", r.Match.Domain
	case MatchRegex:
		c.MatchKind = "regex"
	case MatchGeoSite:
		c.MatchKind, c.GeoSiteSource, c.GeoSiteKey = "geosite", r.Match.Source, r.Match.GeoKey
	}

	switch r.Upstream.Kind {
	case UpstreamSystem:
		c.UpstreamKind, c.UpstreamAddress = "system", r.Upstream.Address
	case UpstreamExplicit:
		c.UpstreamKind, c.UpstreamAddress, c.UpstreamProtocol = "explicit", r.Upstream.Address, string(r.Upstream.Protocol)
	case UpstreamFixedAnswer:
		c.UpstreamKind = "fixed"
	case UpstreamReject:
		c.UpstreamKind, c.RejectRcode = "reject", r.Upstream.Rcode
	}

	return c
}
