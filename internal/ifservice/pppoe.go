package ifservice

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"time"

	"github.com/veylan/routerd/internal/config"
	apperrors "github.com/veylan/routerd/internal/errors"
	"github.com/veylan/routerd/internal/log"
	"github.com/veylan/routerd/internal/watch"
)

const pppdCommand = "pppd"

// PPPoEStarter brings up a PPPoE session over an interface by invoking pppd:
// no library in the corpus wraps the PPPoE/LCP handshake, so pppd (with the
// kernel plugin rp-pppoe.so) does the protocol work and this starter
// supervises it.
type PPPoEStarter struct{}

func NewPPPoEStarter() *PPPoEStarter { return &PPPoEStarter{} }

func (s *PPPoEStarter) Start(ctx context.Context, cfg *config.PPPoEConfig) (watch.Handle[Status], error) {
	h := watch.New[Status]()

	if _, err := exec.LookPath(pppdCommand); err != nil {
		h.SetStateAndStatus(watch.Stopped, Status{LastError: err, ChangedAt: timeNow()})
		return h, apperrors.NewNetworkError("pppoe: pppd not found", err)
	}

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

func (s *PPPoEStarter) run(ctx context.Context, cfg *config.PPPoEConfig, h watch.Handle[Status]) {
	for {
		if ctx.Err() != nil {
			return
		}

		args := s.buildArgs(cfg)
		cmd := exec.CommandContext(ctx, pppdCommand, args...)
		stdout, err := cmd.StdoutPipe()
		if err != nil {
			h.SetStatus(Status{LastError: apperrors.NewNetworkError("pppoe: stdout pipe failed", err), ChangedAt: timeNow()})
			return
		}

		if err := cmd.Start(); err != nil {
			log.Warnf("pppoe %s: pppd start failed: %v", cfg.IfaceName, err)
			h.SetStatus(Status{Up: false, LastError: apperrors.NewNetworkError("pppoe: pppd start failed", err), ChangedAt: timeNow()})
			if !sleepOrDone(ctx, 10*time.Second) {
				return
			}
			continue
		}

		go s.watchOutput(cfg.IfaceName, stdout, h)

		log.Infof("pppoe %s: pppd session starting", cfg.IfaceName)
		waitErr := cmd.Wait()
		if ctx.Err() != nil {
			return
		}

		log.Warnf("pppoe %s: pppd exited: %v", cfg.IfaceName, waitErr)
		h.SetStatus(Status{Up: false, LastError: apperrors.NewNetworkError("pppoe: session dropped", waitErr), ChangedAt: timeNow()})
		if !sleepOrDone(ctx, 10*time.Second) {
			return
		}
	}
}

func (s *PPPoEStarter) buildArgs(cfg *config.PPPoEConfig) []string {
	mtu := cfg.MTU
	if mtu <= 0 {
		mtu = 1492
	}
	args := []string{
		"plugin", "rp-pppoe.so",
		cfg.IfaceName,
		"user", cfg.Username,
		"password", cfg.Password,
		"noipdefault",
		"defaultroute",
		"hide-password",
		"noauth",
		"persist",
		"maxfail", "0",
		"mtu", fmt.Sprintf("%d", mtu),
		"mru", fmt.Sprintf("%d", mtu),
		"ipparam", cfg.IfaceName,
		"nodetach",
	}
	if cfg.ServiceName != "" {
		args = append(args, "rp_pppoe_service", cfg.ServiceName)
	}
	return args
}

// watchOutput scrapes pppd's stdout for the "local IP address ... remote IP
// address" line it prints once LCP/IPCP negotiation completes.
func (s *PPPoEStarter) watchOutput(iface string, r io.Reader, h watch.Handle[Status]) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		log.Debugf("pppoe %s: %s", iface, line)

		if strings.Contains(line, "local  IP address") {
			addr := strings.TrimSpace(strings.TrimPrefix(line, "local  IP address"))
			h.SetStatus(Status{Up: true, Address: addr, ChangedAt: timeNow()})
		}
		if strings.Contains(line, "remote IP address") {
			addr := strings.TrimSpace(strings.TrimPrefix(line, "remote IP address"))
			_, prev := h.Snapshot()
			prev.Gateway = addr
			prev.ChangedAt = timeNow()
			h.SetStatus(prev)
		}
	}
}
