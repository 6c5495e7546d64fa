// Package dnscache implements the DNS cache (C6): a bounded LRU of
// (domain, qtype) -> records, each item carrying the mark and filter the
// matching DNS rule produced it with.
package dnscache

import (
	"container/list"
	"sync"
	"time"

	"github.com/miekg/dns"

	"github.com/veylan/routerd/internal/dnsrule"
	"github.com/veylan/routerd/internal/flowmark"
)

// DefaultCapacity is the default LRU bound (§3).
const DefaultCapacity = 2048

// Key identifies a cache item.
type Key struct {
	Domain string
	Qtype  uint16
}

// Item is one cache item: a non-empty list of resolved records plus the
// rule metadata that produced them.
type Item struct {
	Records    []dns.RR
	InsertedAt time.Time
	Mark       flowmark.Mark
	Filter     dnsrule.Filter
}

// minTTL returns the minimum TTL across Records, in seconds.
func (it Item) minTTL() uint32 {
	min := uint32(0)
	for i, rr := range it.Records {
		ttl := rr.Header().Ttl
		if i == 0 || ttl < min {
			min = ttl
		}
	}
	return min
}

// fresh reports whether it is still valid at now, per §3:
// now - inserted_at <= min(record.ttl).
func (it Item) fresh(now time.Time) bool {
	if len(it.Records) == 0 {
		return false
	}
	return now.Sub(it.InsertedAt) <= time.Duration(it.minTTL())*time.Second
}

// Cache is a bounded LRU keyed by (domain, qtype). It is safe for
// concurrent use; the lock is held only across a single get-or-insert and
// never across upstream I/O, per the concurrency model.
type Cache struct {
	mu       sync.Mutex
	capacity int
	items    map[Key]Item
	lruList  *list.List
	lruIndex map[Key]*list.Element
}

// New creates a cache bounded to capacity entries.
func New(capacity int) *Cache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Cache{
		capacity: capacity,
		items:    make(map[Key]Item),
		lruList:  list.New(),
		lruIndex: make(map[Key]*list.Element),
	}
}

// Get returns the cached item for key if present and fresh; a stale or
// absent item is a miss and does not touch LRU order.
func (c *Cache) Get(key Key, now time.Time) (Item, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	item, ok := c.items[key]
	if !ok || !item.fresh(now) {
		return Item{}, false
	}

	if elem, exists := c.lruIndex[key]; exists {
		c.lruList.MoveToBack(elem)
	}
	return item, true
}

// Put replaces any prior value for key and enforces the LRU capacity.
func (c *Cache) Put(key Key, item Item) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.putLocked(key, item)
}

func (c *Cache) putLocked(key Key, item Item) {
	if elem, exists := c.lruIndex[key]; exists {
		c.lruList.MoveToBack(elem)
	} else {
		elem := c.lruList.PushBack(key)
		c.lruIndex[key] = elem
	}
	c.items[key] = item

	for c.lruList.Len() > c.capacity {
		oldest := c.lruList.Front()
		if oldest == nil {
			break
		}
		oldKey := oldest.Value.(Key)
		c.lruList.Remove(oldest)
		delete(c.lruIndex, oldKey)
		delete(c.items, oldKey)
	}
}

// Len returns the number of items currently cached.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Snapshot returns a copy of every (key, item) pair currently in the cache,
// as an unordered map. Used by the reload coordinator (C10) to migrate
// entries into a new rule generation.
func (c *Cache) Snapshot() map[Key]Item {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make(map[Key]Item, len(c.items))
	for k, v := range c.items {
		out[k] = v
	}
	return out
}
