// Package geosite implements the GeoSite service (C9): periodic fetch,
// decode, and publish of domain-list bundles, backed by a filesystem cache
// scoped per source.
package geosite

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/sync/singleflight"

	apperrors "github.com/veylan/routerd/internal/errors"
	"github.com/veylan/routerd/internal/log"
	"github.com/veylan/routerd/internal/utils"
)

// RefreshInterval is the periodic loop's tick (§4.10).
const RefreshInterval = 24 * time.Hour

// Repository is the persistence contract source configs are read from and
// have their next_update_at written back to.
type Repository interface {
	ListAll() ([]SourceConfig, error)
	Upsert(cfg SourceConfig) error
}

// Fetcher retrieves a GeoSite bundle's raw bytes for a source URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

type httpFetcher struct {
	client *http.Client
}

// NewHTTPFetcher returns a Fetcher backed by net/http.
func NewHTTPFetcher() Fetcher {
	return httpFetcher{client: &http.Client{Timeout: 30 * time.Second}}
}

func (f httpFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer utils.CloseOrWarn(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}
	return io.ReadAll(resp.Body)
}

// Event is emitted whenever a source's cached bundle changes, so the rule
// reload coordinator (C10) can recompute rules against it.
type Event struct {
	Source string
}

// Service implements C9. It owns no rule-set or resolver state; it only
// fetches, decodes, and caches bundles, then notifies subscribers.
type Service struct {
	store   *Store
	repo    Repository
	fetcher Fetcher
	events  chan Event
	group   singleflight.Group
	now     func() time.Time
}

// NewService builds a GeoSite service over store and repo, fetching with
// fetcher (pass NewHTTPFetcher() in production).
func NewService(store *Store, repo Repository, fetcher Fetcher) *Service {
	return &Service{
		store:   store,
		repo:    repo,
		fetcher: fetcher,
		events:  make(chan Event, 8),
		now:     time.Now,
	}
}

// Events returns the channel GeositeUpdated events are published on. It is
// a single bounded broadcast-style channel; the reload coordinator is
// expected to be its only subscriber (§9).
func (s *Service) Events() <-chan Event {
	return s.events
}

// Run implements the periodic loop: refresh due sources on every tick,
// starting with one pass at startup. It returns when ctx is cancelled.
func (s *Service) Run(ctx context.Context) error {
	s.refresh(ctx, false)

	ticker := time.NewTicker(RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.refresh(ctx, false)
		}
	}
}

// ForceRefresh refreshes every configured source immediately, regardless
// of next_update_at, and purges cache entries whose source is no longer
// configured (§4.10).
func (s *Service) ForceRefresh(ctx context.Context) {
	s.refresh(ctx, true)
	s.purgeUnconfigured()
}

func (s *Service) refresh(ctx context.Context, force bool) {
	sources, err := s.repo.ListAll()
	if err != nil {
		log.Errorf("geosite: failed to list sources: %v", err)
		return
	}

	now := s.now()
	for _, src := range sources {
		if !force && now.Before(src.NextUpdateAt) {
			continue
		}
		if err := s.refreshSource(ctx, src); err != nil {
			log.Errorf("geosite: refresh of %q failed: %v", src.Name, err)
		}
	}
}

// refreshSource deduplicates concurrent refresh requests for the same
// source via singleflight, so only one fetch is ever in flight per name.
func (s *Service) refreshSource(ctx context.Context, src SourceConfig) error {
	_, err, _ := s.group.Do(src.Name, func() (interface{}, error) {
		return nil, s.doRefresh(ctx, src)
	})
	return err
}

func (s *Service) doRefresh(ctx context.Context, src SourceConfig) error {
	body, err := s.fetcher.Fetch(ctx, src.URL)
	if err != nil {
		return apperrors.NewGeoSiteError("fetch failed for source "+src.Name, err)
	}

	bundle, err := decodeGeoSiteList(body)
	if err != nil {
		return apperrors.NewGeoSiteError("decode failed for source "+src.Name, err)
	}

	existing := s.store.Keys(src.Name)
	seen := make(map[string]bool, len(bundle))
	for key, entries := range bundle {
		seen[key] = true
		if err := s.store.Upsert(src.Name, key, entries); err != nil {
			log.Errorf("geosite: failed to cache %s/%s: %v", src.Name, key, err)
		}
	}
	for _, key := range existing {
		if seen[key] {
			continue
		}
		if err := s.store.DeleteKey(src.Name, key); err != nil {
			log.Errorf("geosite: failed to drop stale %s/%s: %v", src.Name, key, err)
		}
	}

	src.NextUpdateAt = s.now().Add(RefreshInterval)
	if err := s.repo.Upsert(src); err != nil {
		log.Errorf("geosite: failed to persist next_update_at for %s: %v", src.Name, err)
	}

	select {
	case s.events <- Event{Source: src.Name}:
	default:
		log.Warnf("geosite: event channel full, dropping GeositeUpdated for %s", src.Name)
	}
	return nil
}

func (s *Service) purgeUnconfigured() {
	sources, err := s.repo.ListAll()
	if err != nil {
		log.Errorf("geosite: failed to list sources for purge: %v", err)
		return
	}

	configured := make(map[string]bool, len(sources))
	for _, src := range sources {
		configured[src.Name] = true
	}
	for _, name := range s.store.Sources() {
		if configured[name] {
			continue
		}
		if err := s.store.PurgeSource(name); err != nil {
			log.Errorf("geosite: failed to purge unconfigured source %s: %v", name, err)
		}
	}
}
