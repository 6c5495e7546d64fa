package geosite

import (
	"fmt"
	"strings"

	"google.golang.org/protobuf/encoding/protowire"
)

// decodeGeoSiteList parses the V2Ray geosite protobuf wire format directly
// off the wire using a low-level field reader, without generating or
// depending on message-specific generated Go structs (§4.10). The wire
// shape (as produced by v2fly/domain-list-community) is:
//
//	GeoSiteList { repeated GeoSite entry = 1 }
//	GeoSite     { string country_code = 1; repeated Domain domain = 2 }
//	Domain      { Type type = 1 (varint); string value = 2; repeated Attribute attribute = 3 }
//	Attribute   { string key = 1 }
//
// The returned map is keyed by upper-cased country_code, matching how
// GeoSite rules reference a source's categories.
func decodeGeoSiteList(data []byte) (map[string][]DomainEntry, error) {
	out := make(map[string][]DomainEntry)

	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, fmt.Errorf("geosite: bad top-level tag: %w", protowire.ParseError(n))
		}
		data = data[n:]

		if num != 1 || typ != protowire.BytesType {
			m := protowire.ConsumeFieldValue(num, typ, data)
			if m < 0 {
				return nil, fmt.Errorf("geosite: bad top-level field: %w", protowire.ParseError(m))
			}
			data = data[m:]
			continue
		}

		entry, n := protowire.ConsumeBytes(data)
		if n < 0 {
			return nil, fmt.Errorf("geosite: bad entry bytes: %w", protowire.ParseError(n))
		}
		data = data[n:]

		code, domains, err := decodeGeoSite(entry)
		if err != nil {
			return nil, err
		}
		if code == "" {
			continue
		}
		out[strings.ToUpper(code)] = domains
	}
	return out, nil
}

func decodeGeoSite(data []byte) (string, []DomainEntry, error) {
	var code string
	var domains []DomainEntry

	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return "", nil, fmt.Errorf("geosite: bad GeoSite tag: %w", protowire.ParseError(n))
		}
		data = data[n:]

		switch {
		case num == 1 && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return "", nil, fmt.Errorf("geosite: bad country_code: %w", protowire.ParseError(n))
			}
			code = string(v)
			data = data[n:]
		case num == 2 && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return "", nil, fmt.Errorf("geosite: bad domain entry: %w", protowire.ParseError(n))
			}
			d, err := decodeDomain(v)
			if err != nil {
				return "", nil, err
			}
			domains = append(domains, d)
			data = data[n:]
		default:
			m := protowire.ConsumeFieldValue(num, typ, data)
			if m < 0 {
				return "", nil, fmt.Errorf("geosite: bad GeoSite field: %w", protowire.ParseError(m))
			}
			data = data[m:]
		}
	}
	return code, domains, nil
}

func decodeDomain(data []byte) (DomainEntry, error) {
	var d DomainEntry

	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return d, fmt.Errorf("geosite: bad Domain tag: %w", protowire.ParseError(n))
		}
		data = data[n:]

		switch {
		case num == 1 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return d, fmt.Errorf("geosite: bad domain type: %w", protowire.ParseError(n))
			}
			d.MatchKind = MatchKind(v)
			data = data[n:]
		case num == 2 && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return d, fmt.Errorf("geosite: bad domain value: %w", protowire.ParseError(n))
			}
			d.Domain = string(v)
			data = data[n:]
		case num == 3 && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return d, fmt.Errorf("geosite: bad attribute: %w", protowire.ParseError(n))
			}
			if key, err := decodeAttributeKey(v); err == nil && key != "" {
				d.Attributes = append(d.Attributes, key)
			}
			data = data[n:]
		default:
			m := protowire.ConsumeFieldValue(num, typ, data)
			if m < 0 {
				return d, fmt.Errorf("geosite: bad Domain field: %w", protowire.ParseError(m))
			}
			data = data[m:]
		}
	}
	return d, nil
}

func decodeAttributeKey(data []byte) (string, error) {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return "", fmt.Errorf("geosite: bad Attribute tag: %w", protowire.ParseError(n))
		}
		data = data[n:]

		if num == 1 && typ == protowire.BytesType {
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return "", fmt.Errorf("geosite: bad attribute key: %w", protowire.ParseError(n))
			}
			return string(v), nil
		}
		m := protowire.ConsumeFieldValue(num, typ, data)
		if m < 0 {
			return "", fmt.Errorf("geosite: bad Attribute field: %w", protowire.ParseError(m))
		}
		data = data[m:]
	}
	return "", nil
}
