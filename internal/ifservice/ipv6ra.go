package ifservice

import (
	"context"
	"encoding/binary"
	"net"
	"time"

	"github.com/insomniacslk/dhcp/dhcpv6"
	"github.com/insomniacslk/dhcp/dhcpv6/nclient6"
	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv6"

	"github.com/veylan/routerd/internal/config"
	apperrors "github.com/veylan/routerd/internal/errors"
	"github.com/veylan/routerd/internal/log"
	"github.com/veylan/routerd/internal/watch"
)

const (
	icmpv6TypeRouterAdvert = 134

	icmpv6OptPrefixInfo = 3
	icmpv6OptMTU        = 5
)

var allRoutersLinkLocal = net.ParseIP("ff02::2")

// IPv6RAStarter listens for Router Advertisements on an interface and, when
// requested, negotiates a delegated prefix via DHCPv6-PD. It hand-parses the
// ICMPv6 option stream the same way the GeoSite service hand-parses the
// V2Ray protobuf wire format: RA parsing has no corpus library, so it's done
// directly over a raw ICMPv6 socket (golang.org/x/net/icmp, /ipv6).
type IPv6RAStarter struct{}

func NewIPv6RAStarter() *IPv6RAStarter { return &IPv6RAStarter{} }

func (s *IPv6RAStarter) Start(ctx context.Context, cfg *config.IPv6RAConfig) (watch.Handle[Status], error) {
	h := watch.New[Status]()

	conn, err := icmp.ListenPacket("ip6:ipv6-icmp", "::")
	if err != nil {
		h.SetStateAndStatus(watch.Stopped, Status{LastError: err, ChangedAt: timeNow()})
		return h, apperrors.NewNetworkError("ipv6_ra: listen failed", err)
	}

	var pc *ipv6.PacketConn = conn.IPv6PacketConn()
	iface, err := net.InterfaceByName(cfg.IfaceName)
	if err != nil {
		conn.Close()
		h.SetStateAndStatus(watch.Stopped, Status{LastError: err, ChangedAt: timeNow()})
		return h, apperrors.NewNetworkError("ipv6_ra: interface not found", err)
	}
	if err := pc.JoinGroup(iface, &net.UDPAddr{IP: allRoutersLinkLocal}); err != nil {
		conn.Close()
		h.SetStateAndStatus(watch.Stopped, Status{LastError: err, ChangedAt: timeNow()})
		return h, apperrors.NewNetworkError("ipv6_ra: join multicast group failed", err)
	}
	_ = pc.SetHopLimit(255)
	_ = pc.SetChecksum(true, 2)

	h.SetStateAndStatus(watch.Running, Status{ChangedAt: timeNow()})

	pdCtx, cancelPD := context.WithCancel(ctx)

	go func() {
		<-h.StopRequested()
		cancelPD()
		conn.Close()
	}()

	if cfg.RequestPD {
		go s.runPD(pdCtx, cfg, h)
	}

	go func() {
		s.listen(conn, cfg, h)
		h.SetState(watch.Stopped)
	}()

	return h, nil
}

// runPD requests a delegated prefix over DHCPv6-PD and renews it at the
// midpoint of its lifetime, the same cadence DHCPClientStarter uses for
// DHCPv4 leases.
func (s *IPv6RAStarter) runPD(ctx context.Context, cfg *config.IPv6RAConfig, h watch.Handle[Status]) {
	for {
		if ctx.Err() != nil {
			return
		}

		client, err := nclient6.New(cfg.IfaceName)
		if err != nil {
			log.Warnf("ipv6_ra %s: dhcpv6 client init failed: %v", cfg.IfaceName, err)
			if !sleepOrDone(ctx, 10*time.Second) {
				return
			}
			continue
		}

		reply, err := client.Solicit(ctx, dhcpv6.WithIAPD([4]byte{}))
		client.Close()
		if err != nil {
			log.Warnf("ipv6_ra %s: DHCPv6-PD solicit failed: %v", cfg.IfaceName, err)
			if !sleepOrDone(ctx, 10*time.Second) {
				return
			}
			continue
		}

		iapd := reply.Options.OneIAPD()
		if iapd == nil || len(iapd.Options.Prefixes()) == 0 {
			log.Warnf("ipv6_ra %s: DHCPv6-PD reply carried no prefix", cfg.IfaceName)
			if !sleepOrDone(ctx, 10*time.Second) {
				return
			}
			continue
		}

		prefix := iapd.Options.Prefixes()[0]
		_, prev := h.Snapshot()
		prev.Gateway = prefix.Prefix.String()
		prev.ExpiresAt = time.Now().Add(prefix.ValidLifetime)
		prev.ChangedAt = timeNow()
		h.SetStatus(prev)
		log.Infof("ipv6_ra %s: delegated prefix %s, valid %s", cfg.IfaceName, prefix.Prefix, prefix.ValidLifetime)

		renewIn := prefix.ValidLifetime / 2
		if renewIn <= 0 {
			renewIn = 10 * time.Second
		}
		if !sleepOrDone(ctx, renewIn) {
			return
		}
	}
}

func (s *IPv6RAStarter) listen(conn *icmp.PacketConn, cfg *config.IPv6RAConfig, h watch.Handle[Status]) {
	buf := make([]byte, 1500)
	for {
		n, _, err := conn.ReadFrom(buf)
		if err != nil {
			return // closed by the Start goroutine on StopRequested
		}
		if n < 1 || buf[0] != icmpv6TypeRouterAdvert {
			continue
		}

		ra, err := parseRouterAdvertisement(buf[:n])
		if err != nil {
			log.Warnf("ipv6_ra %s: malformed RA: %v", cfg.IfaceName, err)
			continue
		}

		log.Debugf("ipv6_ra %s: RA from prefix=%s/%d mtu=%d", cfg.IfaceName, ra.prefix, ra.prefixLen, ra.mtu)
		h.SetStatus(Status{
			Up:        true,
			Address:   ra.prefix.String(),
			ExpiresAt: time.Now().Add(time.Duration(ra.validLifetime) * time.Second),
			ChangedAt: timeNow(),
		})
	}
}

type routerAdvertisement struct {
	prefix        net.IP
	prefixLen     uint8
	validLifetime uint32
	mtu           uint32
}

// parseRouterAdvertisement walks the ICMPv6 RA's fixed 16-byte header
// (type, code, checksum, hop limit, flags, router lifetime, reachable
// time, retrans timer) followed by a TLV option stream, extracting the
// first Prefix Information and MTU options it finds.
func parseRouterAdvertisement(data []byte) (*routerAdvertisement, error) {
	const fixedHeaderLen = 16
	if len(data) < fixedHeaderLen {
		return nil, apperrors.NewNetworkError("ipv6_ra: short RA header", nil)
	}

	ra := &routerAdvertisement{}
	opts := data[fixedHeaderLen:]
	for len(opts) >= 8 {
		optType := opts[0]
		optLen := int(opts[1]) * 8 // option length is in units of 8 octets, including the type/length bytes
		if optLen == 0 || optLen > len(opts) {
			break
		}

		switch optType {
		case icmpv6OptPrefixInfo:
			if optLen < 32 {
				break
			}
			ra.prefixLen = opts[2]
			ra.validLifetime = binary.BigEndian.Uint32(opts[4:8])
			ra.prefix = net.IP(append([]byte(nil), opts[16:32]...))
		case icmpv6OptMTU:
			if optLen < 8 {
				break
			}
			ra.mtu = binary.BigEndian.Uint32(opts[4:8])
		}

		opts = opts[optLen:]
	}

	if ra.prefix == nil {
		return nil, apperrors.NewNetworkError("ipv6_ra: no prefix information option", nil)
	}
	return ra, nil
}
