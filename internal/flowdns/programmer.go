// Package flowdns implements the flow-DNS map programmer (C8): the
// write-through sink that publishes resolved IP->mark mappings into a
// kernel map keyed by flow-id. The kernel ABI never leaks past this
// package.
package flowdns

import (
	"net"
	"sync"

	"github.com/veylan/routerd/internal/errors"
	"github.com/veylan/routerd/internal/flowmark"
	"github.com/veylan/routerd/internal/log"
)

// Entry is one (ip, mark) tuple published under a flow-id.
type Entry struct {
	IP   net.IP
	Mark flowmark.Mark
}

func keyOf(ip net.IP) [16]byte {
	var k [16]byte
	if v4 := ip.To4(); v4 != nil {
		copy(k[:], v4.To16())
	} else if v6 := ip.To16(); v6 != nil {
		copy(k[:], v6)
	}
	return k
}

// Programmer is the contract the resolver and reload coordinator use to
// publish into the kernel. Both operations are idempotent (P8).
type Programmer interface {
	// Replace whole-map-recreates flow_id's entry set. Used during reload;
	// implementations must make this atomic w.r.t. data-plane readers.
	Replace(flowID uint32, entries []Entry) error
	// Upsert incrementally adds/updates entries for flow_id. Used per DNS
	// answer.
	Upsert(flowID uint32, entries []Entry) error
	// Snapshot returns the current entry set for flow_id, for tests and
	// parity checks (P7).
	Snapshot(flowID uint32) []Entry
}

// memoryProgrammer is an in-memory mirror of the kernel map contract. It is
// used whenever no eBPF object is loaded (non-Linux dev, or unprivileged
// tests), keeping C7/C10 fully exercisable without root/CAP_BPF.
type memoryProgrammer struct {
	mu    sync.Mutex
	flows map[uint32]map[[16]byte]flowmark.Mark
}

// NewMemoryProgrammer returns a Programmer backed by plain Go maps.
func NewMemoryProgrammer() Programmer {
	return &memoryProgrammer{flows: make(map[uint32]map[[16]byte]flowmark.Mark)}
}

func (p *memoryProgrammer) Replace(flowID uint32, entries []Entry) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	next := make(map[[16]byte]flowmark.Mark, len(entries))
	for _, e := range entries {
		next[keyOf(e.IP)] = e.Mark
	}
	p.flows[flowID] = next
	return nil
}

func (p *memoryProgrammer) Upsert(flowID uint32, entries []Entry) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	m, ok := p.flows[flowID]
	if !ok {
		m = make(map[[16]byte]flowmark.Mark)
		p.flows[flowID] = m
	}
	for _, e := range entries {
		m[keyOf(e.IP)] = e.Mark
	}
	return nil
}

func (p *memoryProgrammer) Snapshot(flowID uint32) []Entry {
	p.mu.Lock()
	defer p.mu.Unlock()

	m := p.flows[flowID]
	out := make([]Entry, 0, len(m))
	for k, mark := range m {
		ip := net.IP(append([]byte(nil), k[:]...))
		out = append(out, Entry{IP: ip, Mark: mark})
	}
	return out
}

// loggingProgrammer wraps a Programmer so kernel errors are logged and treated as
// non-fatal per the Transient category in the error taxonomy.
type loggingProgrammer struct {
	inner Programmer
}

// WithErrorLogging wraps inner so every failed Replace/Upsert is logged
// through the shared logger instead of silently propagating; callers on
// the query/reload path treat kernel failures as transient (§7) and must
// not crash on them.
func WithErrorLogging(inner Programmer) Programmer {
	return &loggingProgrammer{inner: inner}
}

func (p *loggingProgrammer) Replace(flowID uint32, entries []Entry) error {
	if err := p.inner.Replace(flowID, entries); err != nil {
		log.Errorf("flowdns: replace flow_id=%d failed: %v", flowID, errors.NewKernelError("replace failed", err))
		return err
	}
	return nil
}

func (p *loggingProgrammer) Upsert(flowID uint32, entries []Entry) error {
	if err := p.inner.Upsert(flowID, entries); err != nil {
		log.Errorf("flowdns: upsert flow_id=%d failed: %v", flowID, errors.NewKernelError("upsert failed", err))
		return err
	}
	return nil
}

func (p *loggingProgrammer) Snapshot(flowID uint32) []Entry {
	return p.inner.Snapshot(flowID)
}
