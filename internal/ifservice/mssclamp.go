package ifservice

import (
	"context"
	"fmt"

	"github.com/coreos/go-iptables/iptables"

	"github.com/veylan/routerd/internal/config"
	apperrors "github.com/veylan/routerd/internal/errors"
	"github.com/veylan/routerd/internal/log"
	"github.com/veylan/routerd/internal/watch"
)

const mssClampComment = "routerd: mss clamp"

// MSSClampStarter installs a TCPMSS clamp on an interface's forwarded
// traffic, correcting for PPPoE/tunnel overhead the peer's MSS negotiation
// doesn't account for.
type MSSClampStarter struct{}

func NewMSSClampStarter() *MSSClampStarter { return &MSSClampStarter{} }

func (s *MSSClampStarter) Start(ctx context.Context, cfg *config.MSSClampConfig) (watch.Handle[Status], error) {
	h := watch.New[Status]()

	ipt, err := iptables.New()
	if err != nil {
		h.SetStateAndStatus(watch.Stopped, Status{LastError: err, ChangedAt: timeNow()})
		return h, apperrors.NewNetworkError("mss_clamp: iptables init failed", err)
	}

	rule := []string{
		"-o", cfg.IfaceName,
		"-p", "tcp", "--tcp-flags", "SYN,RST", "SYN",
		"-m", "comment", "--comment", mssClampComment,
		"-j", "TCPMSS", "--set-mss", fmt.Sprintf("%d", cfg.ClampSize),
	}

	if err := ipt.AppendUnique("mangle", "FORWARD", rule...); err != nil {
		h.SetStateAndStatus(watch.Stopped, Status{LastError: err, ChangedAt: timeNow()})
		return h, apperrors.NewNetworkError("mss_clamp: append rule failed", err)
	}

	h.SetStateAndStatus(watch.Running, Status{Up: true, ChangedAt: timeNow()})

	go func() {
		select {
		case <-h.StopRequested():
		case <-ctx.Done():
		}

		if err := ipt.DeleteIfExists("mangle", "FORWARD", rule...); err != nil {
			log.Warnf("mss_clamp %s: remove rule: %v", cfg.IfaceName, err)
		}

		h.SetState(watch.Stopped)
	}()

	return h, nil
}
