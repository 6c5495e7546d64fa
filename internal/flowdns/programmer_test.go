package flowdns

import (
	"net"
	"sort"
	"testing"
)

func snapshotStrings(t *testing.T, p Programmer, flowID uint32) []string {
	t.Helper()
	entries := p.Snapshot(flowID)
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.IP.String()
	}
	sort.Strings(out)
	return out
}

func TestMemoryProgrammer_UpsertIdempotent(t *testing.T) {
	p := NewMemoryProgrammer()
	entries := []Entry{{IP: net.ParseIP("10.0.0.1"), Mark: 1}}

	if err := p.Upsert(7, entries); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	first := snapshotStrings(t, p, 7)

	if err := p.Upsert(7, entries); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	second := snapshotStrings(t, p, 7)

	if len(first) != 1 || len(second) != 1 || first[0] != second[0] {
		t.Fatalf("P8 violated: %v != %v", first, second)
	}
}

func TestMemoryProgrammer_ReplaceDropsStale(t *testing.T) {
	p := NewMemoryProgrammer()
	if err := p.Replace(1, []Entry{{IP: net.ParseIP("10.0.0.1"), Mark: 1}}); err != nil {
		t.Fatal(err)
	}
	if err := p.Replace(1, []Entry{{IP: net.ParseIP("10.0.0.2"), Mark: 2}}); err != nil {
		t.Fatal(err)
	}

	got := snapshotStrings(t, p, 1)
	if len(got) != 1 || got[0] != "10.0.0.2" {
		t.Fatalf("Replace() snapshot = %v, want only 10.0.0.2", got)
	}
}
