// Package dnsresolver implements the DNS resolver front-end (C7): an
// RFC-1035 request handler composing the rule set (C5) and cache (C6) and
// driving upstream resolution and kernel publication (C8).
package dnsresolver

import (
	"context"
	"encoding/binary"
	"net"
	"sync/atomic"
	"time"

	"github.com/miekg/dns"

	"github.com/veylan/routerd/internal/dnscache"
	"github.com/veylan/routerd/internal/dnsrule"
	"github.com/veylan/routerd/internal/flowdns"
	"github.com/veylan/routerd/internal/flowmark"
	"github.com/veylan/routerd/internal/log"
)

const (
	upstreamQueryTimeout = 5 * time.Second
	udpReadTimeout       = 1 * time.Second
	tcpConnectionTimeout = 5 * time.Second

	networkUDP = "udp"
	networkTCP = "tcp"
)

// snapshot is the rule-set+cache pair the query path observes. It is
// replaced wholesale by the reload coordinator (C10) via a single atomic
// pointer swap, so a query during reload sees either the old or the new
// pair, never a torn state (§4.11).
type snapshot struct {
	rules *dnsrule.RuleSet
	cache *dnscache.Cache
}

// Resolver is the DNS resolver front-end.
type Resolver struct {
	listenAddr string
	programmer flowdns.Programmer

	resolvConfPath   string
	resolvConfBackup string

	current atomic.Pointer[snapshot]

	udpConn *net.UDPConn
	tcpLn   net.Listener
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
}

// New builds a resolver bound to listenAddr (e.g. "127.0.0.1:53"), seeded
// with an initial rule set and a fresh cache.
func New(listenAddr string, rules *dnsrule.RuleSet, cacheCapacity int, programmer flowdns.Programmer) *Resolver {
	ctx, cancel := context.WithCancel(context.Background())
	r := &Resolver{
		listenAddr:       listenAddr,
		programmer:       programmer,
		resolvConfPath:   resolvConfPath,
		resolvConfBackup: resolvConfBackup,
		ctx:              ctx,
		cancel:           cancel,
		done:             make(chan struct{}),
	}
	r.current.Store(&snapshot{rules: rules, cache: dnscache.New(cacheCapacity)})
	return r
}

// Swap atomically publishes a new (rules, cache) pair, per C10 step 7.
func (r *Resolver) Swap(rules *dnsrule.RuleSet, cache *dnscache.Cache) {
	r.current.Store(&snapshot{rules: rules, cache: cache})
}

// Snapshot returns the currently published rule set and cache, for the
// reload coordinator to read during migration.
func (r *Resolver) Snapshot() (*dnsrule.RuleSet, *dnscache.Cache) {
	s := r.current.Load()
	return s.rules, s.cache
}

// TakeoverResolvConf performs the §6 resolv.conf takeover on its own, so
// callers outside this package (the reload coordinator, C10) can repeat it
// on every rule reload without re-binding the listeners.
func (r *Resolver) TakeoverResolvConf() error {
	return takeoverResolvConfAt(r.resolvConfPath, r.resolvConfBackup)
}

// SetResolvConfPaths overrides the target path and backup suffix the
// takeover writes to. Defaults to /etc/resolv.conf; tests use this to point
// at a scratch directory instead.
func (r *Resolver) SetResolvConfPaths(path, backup string) {
	r.resolvConfPath = path
	r.resolvConfBackup = backup
}

// Start performs the resolv.conf takeover and binds the UDP/TCP listeners.
func (r *Resolver) Start() error {
	if err := r.TakeoverResolvConf(); err != nil {
		return err
	}

	udpAddr, err := net.ResolveUDPAddr("udp", r.listenAddr)
	if err != nil {
		return err
	}
	r.udpConn, err = net.ListenUDP("udp", udpAddr)
	if err != nil {
		return err
	}
	r.tcpLn, err = net.Listen("tcp", r.listenAddr)
	if err != nil {
		r.udpConn.Close()
		return err
	}

	log.Infof("DNS resolver listening on %s (UDP/TCP)", r.listenAddr)

	go r.serveUDP()
	go r.serveTCP()
	return nil
}

// Stop cancels the serve loops and closes the listeners. It does not wait
// for in-flight requests to finish.
func (r *Resolver) Stop() {
	r.cancel()
	if r.udpConn != nil {
		r.udpConn.Close()
	}
	if r.tcpLn != nil {
		r.tcpLn.Close()
	}
}

func (r *Resolver) serveUDP() {
	buf := make([]byte, dns.MaxMsgSize)
	for {
		select {
		case <-r.ctx.Done():
			return
		default:
		}

		r.udpConn.SetReadDeadline(time.Now().Add(udpReadTimeout))
		n, addr, err := r.udpConn.ReadFromUDP(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			if r.ctx.Err() != nil {
				return
			}
			continue
		}

		req := make([]byte, n)
		copy(req, buf[:n])
		go func(addr *net.UDPAddr, req []byte) {
			resp := r.handleRaw(req)
			if resp != nil {
				r.udpConn.WriteToUDP(resp, addr)
			}
		}(addr, req)
	}
}

func (r *Resolver) serveTCP() {
	for {
		select {
		case <-r.ctx.Done():
			return
		default:
		}

		conn, err := r.tcpLn.Accept()
		if err != nil {
			if r.ctx.Err() != nil {
				return
			}
			continue
		}
		go r.handleTCP(conn)
	}
}

func (r *Resolver) handleTCP(conn net.Conn) {
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(tcpConnectionTimeout))

	var length uint16
	if err := binary.Read(conn, binary.BigEndian, &length); err != nil {
		return
	}
	req := make([]byte, length)
	if _, err := conn.Read(req); err != nil {
		return
	}

	resp := r.handleRaw(req)
	if resp == nil {
		return
	}
	if err := binary.Write(conn, binary.BigEndian, uint16(len(resp))); err != nil {
		return
	}
	conn.Write(resp)
}

func (r *Resolver) handleRaw(reqBytes []byte) []byte {
	var req dns.Msg
	if err := req.Unpack(reqBytes); err != nil {
		return nil
	}
	resp := r.HandleRequest(r.ctx, &req)
	out, err := resp.Pack()
	if err != nil {
		return nil
	}
	return out
}

// HandleRequest implements §4.7's algorithm. It never fails: any
// unrecoverable condition results in a ServFail response.
func (r *Resolver) HandleRequest(ctx context.Context, req *dns.Msg) *dns.Msg {
	resp := new(dns.Msg)
	resp.SetReply(req)
	resp.RecursionAvailable = true
	resp.Authoritative = true

	if len(req.Question) == 0 {
		resp.Rcode = dns.RcodeFormatError
		return resp
	}

	// Only the first question is answered; the rest are discarded with
	// NoError per §4.7.
	q := req.Question[0]
	resp.Question = []dns.Question{q}
	domain := q.Name
	now := time.Now()

	snap := r.current.Load()

	if item, ok := snap.cache.Get(dnscache.Key{Domain: domain, Qtype: q.Qtype}, now); ok {
		resp.Rcode = dns.RcodeSuccess
		resp.Answer = dnsrule.FilterRecords(item.Records, item.Filter)
		return resp
	}

	rule, ok := snap.rules.Match(domain)
	if !ok {
		resp.Rcode = dns.RcodeSuccess
		return resp
	}

	lookupCtx, cancel := context.WithTimeout(ctx, upstreamQueryTimeout)
	defer cancel()

	records, rcode, err := rule.Lookup(lookupCtx, domain, q.Qtype)
	if lookupCtx.Err() == context.DeadlineExceeded {
		resp.Rcode = dns.RcodeServerFailure
		return resp
	}
	if err != nil {
		log.Debugf("dnsresolver: upstream lookup for %s failed: %v", domain, err)
		resp.Rcode = dns.RcodeServerFailure
		return resp
	}
	if rcode != dns.RcodeSuccess {
		resp.Rcode = rcode
		return resp
	}
	if len(records) == 0 {
		resp.Rcode = dns.RcodeSuccess
		return resp
	}

	snap.cache.Put(dnscache.Key{Domain: domain, Qtype: q.Qtype}, dnscache.Item{
		Records:    records,
		InsertedAt: now,
		Mark:       rule.Mark,
		Filter:     rule.Filter,
	})

	if rule.Mark.NeedsKernelPublish() && r.programmer != nil {
		entries := entriesFromRecords(records, rule.Mark)
		if len(entries) > 0 {
			if err := r.programmer.Upsert(rule.FlowID, entries); err != nil {
				log.Errorf("dnsresolver: kernel upsert for flow_id=%d failed: %v", rule.FlowID, err)
			}
		}
	}

	resp.Rcode = dns.RcodeSuccess
	resp.Answer = dnsrule.FilterRecords(records, rule.Filter)
	return resp
}

func entriesFromRecords(records []dns.RR, mark flowmark.Mark) []flowdns.Entry {
	var out []flowdns.Entry
	for _, rr := range records {
		switch v := rr.(type) {
		case *dns.A:
			out = append(out, flowdns.Entry{IP: v.A, Mark: mark})
		case *dns.AAAA:
			out = append(out, flowdns.Entry{IP: v.AAAA, Mark: mark})
		}
	}
	return out
}
