package ifservice

import (
	"context"
	"net"
	"time"

	"github.com/insomniacslk/dhcp/dhcpv4"
	"github.com/insomniacslk/dhcp/dhcpv4/client4"
	"github.com/vishvananda/netlink"

	"github.com/veylan/routerd/internal/config"
	apperrors "github.com/veylan/routerd/internal/errors"
	"github.com/veylan/routerd/internal/log"
	"github.com/veylan/routerd/internal/networking"
	"github.com/veylan/routerd/internal/watch"
)

// DHCPClientStarter runs a DHCPv4 client against one interface, renewing the
// lease at its midpoint and retrying from DISCOVER on failure.
type DHCPClientStarter struct{}

func NewDHCPClientStarter() *DHCPClientStarter { return &DHCPClientStarter{} }

func (s *DHCPClientStarter) Start(ctx context.Context, cfg *config.DHCPClientConfig) (watch.Handle[Status], error) {
	h := watch.New[Status]()

	runCtx, cancel := context.WithCancel(ctx)

	h.SetStateAndStatus(watch.Running, Status{ChangedAt: timeNow()})

	go func() {
		defer cancel()
		s.run(runCtx, cfg, h)
		h.SetState(watch.Stopped)
	}()

	go func() {
		select {
		case <-h.StopRequested():
			cancel()
		case <-runCtx.Done():
		}
	}()

	return h, nil
}

func (s *DHCPClientStarter) run(ctx context.Context, cfg *config.DHCPClientConfig, h watch.Handle[Status]) {
	retry := time.Duration(cfg.RetryIntervalSeconds) * time.Second
	if retry <= 0 {
		retry = 10 * time.Second
	}

	var modifiers []dhcpv4.Modifier
	if cfg.Hostname != "" {
		modifiers = append(modifiers, dhcpv4.WithOption(dhcpv4.OptHostName(cfg.Hostname)))
	}

	var lease *dhcpLease
	for {
		var err error
		lease, err = s.acquire(ctx, cfg.IfaceName, modifiers)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Warnf("dhcp_client %s: lease attempt failed: %v", cfg.IfaceName, err)
			h.SetStatus(Status{Up: false, LastError: apperrors.NewNetworkError("dhcp lease failed", err), ChangedAt: timeNow()})
			if !sleepOrDone(ctx, retry) {
				return
			}
			continue
		}

		h.SetStatus(Status{
			Up:        true,
			Address:   lease.address,
			Gateway:   lease.gateway,
			ExpiresAt: lease.expiresAt,
			ChangedAt: timeNow(),
		})
		log.Infof("dhcp_client %s: bound %s via %s, lease expires %s", cfg.IfaceName, lease.address, lease.gateway, lease.expiresAt)

		renewIn := time.Until(lease.expiresAt) / 2
		if renewIn <= 0 {
			renewIn = retry
		}
		if !sleepOrDone(ctx, renewIn) {
			s.release(cfg.IfaceName, lease)
			return
		}
	}
}

type dhcpLease struct {
	addr      *netlink.Addr
	address   string
	gateway   string
	expiresAt time.Time
}

func (s *DHCPClientStarter) acquire(ctx context.Context, iface string, modifiers []dhcpv4.Modifier) (*dhcpLease, error) {
	link, err := networking.GetInterface(iface)
	if err != nil {
		return nil, err
	}

	c := client4.NewClient()
	conv, err := c.Exchange(iface, modifiers...)
	if err != nil {
		return nil, err
	}

	var ack *dhcpv4.DHCPv4
	for _, m := range conv {
		if m.MessageType() == dhcpv4.MessageTypeAck {
			ack = m
		}
	}
	if ack == nil {
		return nil, apperrors.NewNetworkError("dhcp: no ACK in exchange", nil)
	}

	mask := ack.SubnetMask()
	if mask == nil {
		mask = ack.YourIPAddr.DefaultMask()
	}
	addr := &netlink.Addr{IPNet: &net.IPNet{IP: ack.YourIPAddr, Mask: mask}}
	if err := netlink.AddrReplace(link.Link, addr); err != nil {
		return nil, apperrors.NewNetworkError("dhcp: program address failed", err)
	}

	leaseTime := ack.IPAddressLeaseTime(1 * time.Hour)
	return &dhcpLease{
		addr:      addr,
		address:   ack.YourIPAddr.String(),
		gateway:   firstIP(ack.Router()),
		expiresAt: time.Now().Add(leaseTime),
	}, nil
}

func (s *DHCPClientStarter) release(iface string, lease *dhcpLease) {
	link, err := networking.GetInterface(iface)
	if err != nil {
		log.Warnf("dhcp_client %s: interface gone at release: %v", iface, err)
		return
	}
	if err := netlink.AddrDel(link.Link, lease.addr); err != nil {
		log.Warnf("dhcp_client %s: remove address %s: %v", iface, lease.address, err)
	}
}

func firstIP(ips []net.IP) string {
	if len(ips) == 0 {
		return ""
	}
	return ips[0].String()
}

func sleepOrDone(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
