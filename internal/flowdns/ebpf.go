package flowdns

import (
	"sync"

	"github.com/cilium/ebpf"

	"github.com/veylan/routerd/internal/flowmark"
)

func flowmarkFromUint32(v uint32) flowmark.Mark { return flowmark.Mark(v) }

// mapKey mirrors the kernel side's struct flow_dns_key{flow_id, addr[16]}.
type mapKey struct {
	FlowID uint32
	Addr   [16]byte
}

// EBPFProgrammer programs a pinned eBPF hash map keyed by (flow_id, ip)
// with a uint32 mark value. It expects the map to already be loaded and
// attached by the data-plane loader (out of scope here, per §1); this
// package only knows the map-update contract.
type EBPFProgrammer struct {
	mu  sync.Mutex
	m   *ebpf.Map
	// mirror tracks locally what was last written per flow, so Replace can
	// compute and delete the stale keys the kernel map doesn't let us list
	// atomically without a second full map iteration.
	mirror map[uint32]map[[16]byte]struct{}
}

// NewEBPFProgrammer wraps an already-loaded map (e.g. obtained from
// ebpf.LoadPinnedMap or a CollectionSpec's Maps["flow_dns"]).
func NewEBPFProgrammer(m *ebpf.Map) *EBPFProgrammer {
	return &EBPFProgrammer{m: m, mirror: make(map[uint32]map[[16]byte]struct{})}
}

func (p *EBPFProgrammer) Replace(flowID uint32, entries []Entry) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	next := make(map[[16]byte]struct{}, len(entries))
	for _, e := range entries {
		k := mapKey{FlowID: flowID, Addr: keyOf(e.IP)}
		if err := p.m.Update(&k, uint32(e.Mark), ebpf.UpdateAny); err != nil {
			return err
		}
		next[k.Addr] = struct{}{}
	}

	for addr := range p.mirror[flowID] {
		if _, keep := next[addr]; keep {
			continue
		}
		k := mapKey{FlowID: flowID, Addr: addr}
		_ = p.m.Delete(&k)
	}
	p.mirror[flowID] = next
	return nil
}

func (p *EBPFProgrammer) Upsert(flowID uint32, entries []Entry) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	known := p.mirror[flowID]
	if known == nil {
		known = make(map[[16]byte]struct{})
		p.mirror[flowID] = known
	}
	for _, e := range entries {
		k := mapKey{FlowID: flowID, Addr: keyOf(e.IP)}
		if err := p.m.Update(&k, uint32(e.Mark), ebpf.UpdateAny); err != nil {
			return err
		}
		known[k.Addr] = struct{}{}
	}
	return nil
}

func (p *EBPFProgrammer) Snapshot(flowID uint32) []Entry {
	p.mu.Lock()
	defer p.mu.Unlock()

	known := p.mirror[flowID]
	out := make([]Entry, 0, len(known))
	for addr := range known {
		var mark uint32
		k := mapKey{FlowID: flowID, Addr: addr}
		if err := p.m.Lookup(&k, &mark); err != nil {
			continue
		}
		ip := append([]byte(nil), addr[:]...)
		out = append(out, Entry{IP: ip, Mark: flowmarkFromUint32(mark)})
	}
	return out
}
