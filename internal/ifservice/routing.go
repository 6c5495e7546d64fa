package ifservice

import (
	"context"
	"fmt"
	"time"

	"github.com/coreos/go-iptables/iptables"

	"github.com/veylan/routerd/internal/config"
	apperrors "github.com/veylan/routerd/internal/errors"
	"github.com/veylan/routerd/internal/log"
	"github.com/veylan/routerd/internal/networking"
	"github.com/veylan/routerd/internal/watch"
)

const masqueradeComment = "routerd: fwmark routing"

// RoutingStarter programs the policy-routing side of C8's flow-mark data
// plane: a blackhole + default route in a dedicated table, an ip rule that
// steers fwmark-tagged packets into that table, and, optionally, a
// MASQUERADE rule so return traffic survives NAT.
type RoutingStarter struct{}

func NewRoutingStarter() *RoutingStarter { return &RoutingStarter{} }

func (s *RoutingStarter) Start(ctx context.Context, cfg *config.RoutingConfig) (watch.Handle[Status], error) {
	h := watch.New[Status]()

	iface, err := networking.GetInterface(cfg.IfaceName)
	if err != nil {
		h.SetStateAndStatus(watch.Stopped, Status{LastError: err, ChangedAt: timeNow()})
		return h, apperrors.NewNetworkError(fmt.Sprintf("routing: interface %s not found", cfg.IfaceName), err)
	}

	rule := networking.BuildRule(cfg.IPVersion, cfg.FwMark, cfg.IPRouteTable, cfg.IPRulePriority)
	def := networking.BuildDefaultRoute(cfg.IPVersion, *iface, cfg.IPRouteTable)
	blackhole := networking.BuildBlackholeRoute(cfg.IPVersion, cfg.IPRouteTable)

	var ipt *iptables.IPTables
	var masqRule []string
	if cfg.Masquerade {
		protocol := iptables.ProtocolIPv4
		if cfg.IPVersion == config.Ipv6 {
			protocol = iptables.ProtocolIPv6
		}
		ipt, err = iptables.NewWithProtocol(protocol)
		if err != nil {
			h.SetStateAndStatus(watch.Stopped, Status{LastError: err, ChangedAt: timeNow()})
			return h, apperrors.NewNetworkError("routing: iptables init failed", err)
		}
		masqRule = []string{"-o", cfg.IfaceName, "-m", "comment", "--comment", masqueradeComment, "-j", "MASQUERADE"}
	}

	if _, err := blackhole.AddIfNotExists(); err != nil {
		h.SetStateAndStatus(watch.Stopped, Status{LastError: err, ChangedAt: timeNow()})
		return h, apperrors.NewNetworkError("routing: add blackhole route failed", err)
	}
	if _, err := def.AddIfNotExists(); err != nil {
		h.SetStateAndStatus(watch.Stopped, Status{LastError: err, ChangedAt: timeNow()})
		return h, apperrors.NewNetworkError("routing: add default route failed", err)
	}
	if _, err := rule.AddIfNotExists(); err != nil {
		h.SetStateAndStatus(watch.Stopped, Status{LastError: err, ChangedAt: timeNow()})
		return h, apperrors.NewNetworkError("routing: add ip rule failed", err)
	}
	if ipt != nil {
		if err := ipt.AppendUnique("nat", "POSTROUTING", masqRule...); err != nil {
			h.SetStateAndStatus(watch.Stopped, Status{LastError: err, ChangedAt: timeNow()})
			return h, apperrors.NewNetworkError("routing: masquerade rule failed", err)
		}
	}

	h.SetStateAndStatus(watch.Running, Status{Up: true, ChangedAt: timeNow()})

	go func() {
		select {
		case <-h.StopRequested():
		case <-ctx.Done():
		}

		if ipt != nil {
			if err := ipt.DeleteIfExists("nat", "POSTROUTING", masqRule...); err != nil {
				log.Warnf("routing %s: remove masquerade rule: %v", cfg.IfaceName, err)
			}
		}
		if _, err := rule.DelIfExists(); err != nil {
			log.Warnf("routing %s: remove ip rule: %v", cfg.IfaceName, err)
		}
		if _, err := def.DelIfExists(); err != nil {
			log.Warnf("routing %s: remove default route: %v", cfg.IfaceName, err)
		}
		if _, err := blackhole.DelIfExists(); err != nil {
			log.Warnf("routing %s: remove blackhole route: %v", cfg.IfaceName, err)
		}

		h.SetState(watch.Stopped)
	}()

	return h, nil
}

func timeNow() time.Time { return time.Now() }
