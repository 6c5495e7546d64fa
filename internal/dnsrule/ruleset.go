package dnsrule

import "sort"

// RuleSet is an ordered map from index to compiled rule (C5). Match
// iterates in ascending index order and returns the first hit.
type RuleSet struct {
	byIndex map[uint32]*Rule
	sorted  []*Rule // kept sorted by ascending Index
	geo     GeoSiteMembership
}

// NewRuleSet builds an immutable rule set from rules. Rule indices must be
// unique; duplicates overwrite (last one wins), matching a map-based
// config load.
func NewRuleSet(rules []*Rule, geo GeoSiteMembership) *RuleSet {
	byIndex := make(map[uint32]*Rule, len(rules))
	for _, r := range rules {
		byIndex[r.Index] = r
	}

	sorted := make([]*Rule, 0, len(byIndex))
	for _, r := range byIndex {
		sorted = append(sorted, r)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Index < sorted[j].Index })

	return &RuleSet{byIndex: byIndex, sorted: sorted, geo: geo}
}

// Match returns the first rule (ascending index) whose match-spec matches
// domain, halting iteration on first hit (P4).
func (rs *RuleSet) Match(domain string) (*Rule, bool) {
	if rs == nil {
		return nil, false
	}
	for _, r := range rs.sorted {
		if r.IsMatch(domain, rs.geo) {
			return r, true
		}
	}
	return nil, false
}

// Rules returns the rule set's members in ascending index order.
func (rs *RuleSet) Rules() []*Rule {
	if rs == nil {
		return nil
	}
	out := make([]*Rule, len(rs.sorted))
	copy(out, rs.sorted)
	return out
}
