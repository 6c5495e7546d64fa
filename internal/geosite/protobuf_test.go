package geosite

import (
	"testing"

	"google.golang.org/protobuf/encoding/protowire"
)

// encodeDomain and encodeGeoSite/encodeGeoSiteList below build the same
// wire shape decodeGeoSiteList consumes, so the test doesn't depend on a
// generated-struct encoder either.

func encodeDomain(d DomainEntry) []byte {
	var b []byte
	b = protowire.AppendTag(b, 1, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(d.MatchKind))
	b = protowire.AppendTag(b, 2, protowire.BytesType)
	b = protowire.AppendString(b, d.Domain)
	for _, attr := range d.Attributes {
		var ab []byte
		ab = protowire.AppendTag(ab, 1, protowire.BytesType)
		ab = protowire.AppendString(ab, attr)
		b = protowire.AppendTag(b, 3, protowire.BytesType)
		b = protowire.AppendBytes(b, ab)
	}
	return b
}

func encodeGeoSite(code string, domains []DomainEntry) []byte {
	var b []byte
	b = protowire.AppendTag(b, 1, protowire.BytesType)
	b = protowire.AppendString(b, code)
	for _, d := range domains {
		b = protowire.AppendTag(b, 2, protowire.BytesType)
		b = protowire.AppendBytes(b, encodeDomain(d))
	}
	return b
}

func encodeGeoSiteList(entries map[string][]DomainEntry) []byte {
	var b []byte
	for code, domains := range entries {
		b = protowire.AppendTag(b, 1, protowire.BytesType)
		b = protowire.AppendBytes(b, encodeGeoSite(code, domains))
	}
	return b
}

func TestDecodeGeoSiteList(t *testing.T) {
	input := map[string][]DomainEntry{
		"CATEGORY-ADS": {
			{Domain: "example.com", MatchKind: MatchDomain},
			{Domain: "ad.tracker.net", MatchKind: MatchFull, Attributes: []string{"cursed"}},
		},
	}

	got, err := decodeGeoSiteList(encodeGeoSiteList(input))
	if err != nil {
		t.Fatalf("decodeGeoSiteList() error = %v", err)
	}

	entries, ok := got["CATEGORY-ADS"]
	if !ok {
		t.Fatalf("missing key CATEGORY-ADS in %v", got)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}

	byDomain := make(map[string]DomainEntry, len(entries))
	for _, e := range entries {
		byDomain[e.Domain] = e
	}

	if e := byDomain["example.com"]; e.MatchKind != MatchDomain {
		t.Errorf("example.com match kind = %v, want MatchDomain", e.MatchKind)
	}
	if e := byDomain["ad.tracker.net"]; e.MatchKind != MatchFull || len(e.Attributes) != 1 || e.Attributes[0] != "cursed" {
		t.Errorf("ad.tracker.net = %+v, want MatchFull with attribute 'cursed'", e)
	}
}

func TestDecodeGeoSiteList_Empty(t *testing.T) {
	got, err := decodeGeoSiteList(nil)
	if err != nil {
		t.Fatalf("decodeGeoSiteList(nil) error = %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("got %d keys, want 0", len(got))
	}
}
