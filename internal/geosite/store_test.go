package geosite

import (
	"path/filepath"
	"testing"
)

func TestStore_UpsertAndContains(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "geosite")
	s, err := NewStore(dir)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}

	err = s.Upsert("geosite-cn", "category-ads", []DomainEntry{
		{Domain: "ads.example.com", MatchKind: MatchDomain},
	})
	if err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	if !s.Contains("geosite-cn", "category-ads", "sub.ads.example.com") {
		t.Error("expected suffix match for sub.ads.example.com")
	}
	if s.Contains("geosite-cn", "category-ads", "other.com") {
		t.Error("expected no match for other.com")
	}

	// Reload from disk to prove persistence.
	s2, err := NewStore(dir)
	if err != nil {
		t.Fatalf("NewStore() reload error = %v", err)
	}
	if !s2.Contains("geosite-cn", "category-ads", "ads.example.com") {
		t.Error("expected reloaded store to contain persisted entry")
	}
}

func TestStore_DeleteKeyAndPurgeSource(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "geosite")
	s, err := NewStore(dir)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}

	_ = s.Upsert("src-a", "k1", []DomainEntry{{Domain: "a.com", MatchKind: MatchFull}})
	_ = s.Upsert("src-a", "k2", []DomainEntry{{Domain: "b.com", MatchKind: MatchFull}})

	if err := s.DeleteKey("src-a", "k1"); err != nil {
		t.Fatalf("DeleteKey() error = %v", err)
	}
	keys := s.Keys("src-a")
	if len(keys) != 1 || keys[0] != "k2" {
		t.Fatalf("Keys() = %v, want [k2]", keys)
	}

	if err := s.PurgeSource("src-a"); err != nil {
		t.Fatalf("PurgeSource() error = %v", err)
	}
	if len(s.Keys("src-a")) != 0 {
		t.Error("expected no keys after purge")
	}
}
