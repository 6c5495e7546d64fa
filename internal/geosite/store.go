package geosite

import (
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	apperrors "github.com/veylan/routerd/internal/errors"
)

// Store is the filesystem-backed GeoSite cache (C9 data model): a
// (source_name, key) -> []DomainEntry map, mirrored to one JSON file per
// key under dir/<source>/<key>.json so a restart doesn't lose bundles
// already fetched.
type Store struct {
	dir string

	mu   sync.RWMutex
	data map[string]map[string][]DomainEntry
}

// NewStore loads dir (if present) into memory. A missing directory is an
// empty store, not an error; any other stat failure is fatal per §7
// (corrupt on-disk cache directory aborts initialization).
func NewStore(dir string) (*Store, error) {
	s := &Store{dir: dir, data: make(map[string]map[string][]DomainEntry)}

	sourceDirs, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, apperrors.NewGeoSiteError("failed to read geosite cache directory "+dir, err)
	}

	for _, sourceDir := range sourceDirs {
		if !sourceDir.IsDir() {
			continue
		}
		source := sourceDir.Name()
		keyFiles, err := os.ReadDir(filepath.Join(dir, source))
		if err != nil {
			return nil, apperrors.NewGeoSiteError("failed to read geosite source directory "+source, err)
		}

		keys := make(map[string][]DomainEntry, len(keyFiles))
		for _, kf := range keyFiles {
			if kf.IsDir() || !strings.HasSuffix(kf.Name(), ".json") {
				continue
			}
			raw, err := os.ReadFile(filepath.Join(dir, source, kf.Name()))
			if err != nil {
				return nil, apperrors.NewGeoSiteError("failed to read geosite cache file "+kf.Name(), err)
			}
			var entries []DomainEntry
			if err := json.Unmarshal(raw, &entries); err != nil {
				return nil, apperrors.NewGeoSiteError("failed to parse geosite cache file "+kf.Name(), err)
			}
			keys[strings.TrimSuffix(kf.Name(), ".json")] = entries
		}
		s.data[source] = keys
	}
	return s, nil
}

// Upsert replaces the cached entries for (source, key) in memory and on
// disk.
func (s *Store) Upsert(source, key string, entries []DomainEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.data[source] == nil {
		s.data[source] = make(map[string][]DomainEntry)
	}
	s.data[source][key] = entries
	return s.writeKeyLocked(source, key, entries)
}

// DeleteKey drops (source, key) from memory and disk. Used when a refresh
// finds the key no longer present in the fetched bundle.
func (s *Store) DeleteKey(source, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.data[source], key)
	path := filepath.Join(s.dir, source, key+".json")
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return apperrors.NewGeoSiteError("failed to delete geosite cache entry "+path, err)
	}
	return nil
}

// PurgeSource removes every key cached for source, in memory and on disk.
// Used by force-refresh to drop sources that are no longer configured.
func (s *Store) PurgeSource(source string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.data, source)
	if err := os.RemoveAll(filepath.Join(s.dir, source)); err != nil {
		return apperrors.NewGeoSiteError("failed to purge geosite source "+source, err)
	}
	return nil
}

// Keys returns the cached keys for source.
func (s *Store) Keys(source string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.data[source]))
	for k := range s.data[source] {
		out = append(out, k)
	}
	return out
}

// Sources returns every source name currently cached.
func (s *Store) Sources() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.data))
	for k := range s.data {
		out = append(out, k)
	}
	return out
}

// Contains implements dnsrule.GeoSiteMembership: it reports whether domain
// is covered by any entry cached under (source, key).
func (s *Store) Contains(source, key, domain string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	domain = strings.ToLower(strings.TrimSuffix(domain, "."))
	for _, e := range s.data[source][key] {
		if entryMatches(e, domain) {
			return true
		}
	}
	return false
}

func entryMatches(e DomainEntry, domain string) bool {
	val := strings.ToLower(e.Domain)
	switch e.MatchKind {
	case MatchFull:
		return domain == val
	case MatchPlain:
		return strings.Contains(domain, val)
	case MatchDomain:
		return domain == val || strings.HasSuffix(domain, "."+val)
	case MatchRegex:
		re, err := regexp.Compile(val)
		return err == nil && re.MatchString(domain)
	default:
		return false
	}
}

func (s *Store) writeKeyLocked(source, key string, entries []DomainEntry) error {
	dir := filepath.Join(s.dir, source)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return apperrors.NewGeoSiteError("failed to create geosite source directory "+dir, err)
	}

	raw, err := json.Marshal(entries)
	if err != nil {
		return apperrors.NewGeoSiteError("failed to encode geosite cache entry", err)
	}

	path := filepath.Join(dir, key+".json")
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0644); err != nil {
		return apperrors.NewGeoSiteError("failed to write geosite cache entry "+path, err)
	}
	return os.Rename(tmp, path)
}
