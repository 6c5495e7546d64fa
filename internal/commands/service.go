package commands

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/veylan/routerd/internal/api"
	"github.com/veylan/routerd/internal/config"
	"github.com/veylan/routerd/internal/daemon"
	"github.com/veylan/routerd/internal/log"
)

const (
	shutdownTimeout   = 15 * time.Second
	geoRefreshTimeout = 60 * time.Second
)

func CreateServiceCommand() *ServiceCommand {
	return &ServiceCommand{fs: flag.NewFlagSet("service", flag.ExitOnError)}
}

// ServiceCommand is the long-running daemon: it builds the full Daemon
// (C1-C11 engines plus DNS front-end and GeoSite pipeline), runs the admin
// HTTP surface (C13), and reacts to signals until told to stop.
type ServiceCommand struct {
	fs  *flag.FlagSet
	ctx *AppContext
	cfg *config.Config

	d          *daemon.Daemon
	hasher     *config.ConfigHasher
	geoRunner  *RestartableRunner
	reloadRunr *RestartableRunner
	apiSrv     *api.Server
	apiRunner  *RestartableRunner
}

func (s *ServiceCommand) Name() string { return s.fs.Name() }

func (s *ServiceCommand) Init(args []string, ctx *AppContext) error {
	s.ctx = ctx
	if err := s.fs.Parse(args); err != nil {
		return err
	}
	cfg, err := loadAndValidateConfigOrFail(ctx.ConfigPath)
	if err != nil {
		return err
	}
	s.cfg = cfg

	s.hasher = config.NewConfigHasher(ctx.ConfigPath)
	if hash, err := s.hasher.UpdateCurrentConfigHash(); err != nil {
		log.Warnf("service: initial config hash failed: %v", err)
	} else {
		s.hasher.SetActiveConfigHash(hash)
	}
	return nil
}

func (s *ServiceCommand) Run() error {
	log.Infof("starting routerd service...")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	d, err := daemon.Build(ctx, s.cfg)
	if err != nil {
		return fmt.Errorf("failed to build daemon: %w", err)
	}
	s.d = d

	if s.cfg.DNS.Enable {
		if err := d.Resolver.Start(); err != nil {
			return fmt.Errorf("failed to start DNS resolver: %w", err)
		}
		defer d.Resolver.Stop()
	}

	s.geoRunner = NewRestartableRunner(RunnerConfig{Name: "geosite"}, d.GeoSite.Run)
	if err := s.geoRunner.Start(ctx); err != nil {
		return fmt.Errorf("failed to start geosite service: %w", err)
	}
	defer s.geoRunner.Stop()

	s.reloadRunr = NewRestartableRunner(RunnerConfig{Name: "dns-reload"}, func(ctx context.Context) error {
		d.Reload.Run(ctx, d.GeoSite.Events())
		return nil
	})
	if err := s.reloadRunr.Start(ctx); err != nil {
		return fmt.Errorf("failed to start reload coordinator: %w", err)
	}
	defer s.reloadRunr.Stop()

	if s.cfg.General.EnableAdminAPI {
		s.apiSrv = api.NewServer(d, s.cfg.General.AdminBindAddr)
		s.apiRunner = NewRestartableRunner(RunnerConfig{Name: "admin-api"}, func(ctx context.Context) error {
			errCh := make(chan error, 1)
			go func() { errCh <- s.apiSrv.Start() }()
			select {
			case <-ctx.Done():
				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer shutdownCancel()
				return s.apiSrv.Stop(shutdownCtx)
			case err := <-errCh:
				return err
			}
		})
		if err := s.apiRunner.Start(ctx); err != nil {
			return fmt.Errorf("failed to start admin API: %w", err)
		}
		defer s.apiRunner.Stop()
		log.Infof("admin API listening on %s (private subnets only)", s.cfg.General.AdminBindAddr)
	} else {
		log.Infof("admin API disabled")
	}

	log.Infof("service started; send SIGHUP to reload DNS rules, SIGUSR1 to force a GeoSite refresh")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP, syscall.SIGUSR1)

	for sig := range sigCh {
		switch sig {
		case syscall.SIGHUP:
			hash, err := s.hasher.UpdateCurrentConfigHash()
			if err != nil {
				log.Errorf("received SIGHUP, failed to hash config: %v", err)
				continue
			}
			if hash == s.hasher.GetActiveConfigHash() {
				log.Infof("received SIGHUP, config unchanged, skipping reload")
				continue
			}
			log.Infof("received SIGHUP, reloading DNS rules and re-applying interface configs")
			if err := d.Reload.Reload(); err != nil {
				log.Errorf("reload failed: %v", err)
				continue
			}
			d.ReapplyConfigs()
			s.hasher.SetActiveConfigHash(hash)
		case syscall.SIGUSR1:
			log.Infof("received SIGUSR1, forcing GeoSite refresh")
			refreshCtx, refreshCancel := context.WithTimeout(ctx, geoRefreshTimeout)
			d.GeoSite.ForceRefresh(refreshCtx)
			refreshCancel()
		case syscall.SIGINT, syscall.SIGTERM:
			log.Infof("received %v, shutting down", sig)
			return nil
		}
	}
	return nil
}
