package ifservice

import (
	"context"

	"github.com/coreos/go-iptables/iptables"
	"github.com/valyala/fasttemplate"

	"github.com/veylan/routerd/internal/config"
	apperrors "github.com/veylan/routerd/internal/errors"
	"github.com/veylan/routerd/internal/log"
	"github.com/veylan/routerd/internal/watch"
)

// FirewallStarter applies a declarative set of iptables rules scoped to one
// interface, substituting {{iface}} in each rule's argument list.
type FirewallStarter struct{}

func NewFirewallStarter() *FirewallStarter { return &FirewallStarter{} }

func (s *FirewallStarter) Start(ctx context.Context, cfg *config.FirewallConfig) (watch.Handle[Status], error) {
	h := watch.New[Status]()

	ipt, err := iptables.New()
	if err != nil {
		h.SetStateAndStatus(watch.Stopped, Status{LastError: err, ChangedAt: timeNow()})
		return h, apperrors.NewNetworkError("firewall: iptables init failed", err)
	}

	applied := make([]*config.IPTablesRule, 0, len(cfg.Rules))
	for _, r := range cfg.Rules {
		args := substituteIface(r.Rule, cfg.IfaceName)
		if err := ipt.AppendUnique(r.Table, r.Chain, args...); err != nil {
			for _, a := range applied {
				_ = ipt.DeleteIfExists(a.Table, a.Chain, substituteIface(a.Rule, cfg.IfaceName)...)
			}
			h.SetStateAndStatus(watch.Stopped, Status{LastError: err, ChangedAt: timeNow()})
			return h, apperrors.NewNetworkError("firewall: append rule failed", err)
		}
		applied = append(applied, r)
	}

	h.SetStateAndStatus(watch.Running, Status{Up: true, ChangedAt: timeNow()})

	go func() {
		select {
		case <-h.StopRequested():
		case <-ctx.Done():
		}

		for i := len(applied) - 1; i >= 0; i-- {
			r := applied[i]
			if err := ipt.DeleteIfExists(r.Table, r.Chain, substituteIface(r.Rule, cfg.IfaceName)...); err != nil {
				log.Warnf("firewall %s: remove rule %v: %v", cfg.IfaceName, r.Rule, err)
			}
		}

		h.SetState(watch.Stopped)
	}()

	return h, nil
}

func substituteIface(rule []string, iface string) []string {
	out := make([]string, len(rule))
	for i, a := range rule {
		out[i] = fasttemplate.ExecuteString(a, "{{", "}}", map[string]interface{}{"iface": iface})
	}
	return out
}
