package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/veylan/routerd/internal/config"
	"github.com/veylan/routerd/internal/daemon"
	"github.com/veylan/routerd/internal/log"
)

// Server is the admin HTTP surface (C13): the generic C4 CRUD routes for
// every C11 kind plus the DNS rule/geosite and health endpoints, all reading
// and writing through one Daemon.
type Server struct {
	router     *chi.Mux
	httpServer *http.Server
	daemon     *daemon.Daemon
}

// NewServer builds the router against d and binds it to bindAddr.
func NewServer(d *daemon.Daemon, bindAddr string) *Server {
	s := &Server{
		daemon: d,
		router: chi.NewRouter(),
	}

	s.router.Use(Recovery)
	s.router.Use(Logger)
	s.router.Use(PrivateSubnetOnly)
	s.router.Use(CORS)
	s.router.Use(JSONContentType)

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         bindAddr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

func (s *Server) setupRoutes() {
	s.router.Route("/api/v1", func(r chi.Router) {
		RegisterConfigRoutes(r, "/dhcp_client", s.daemon.DHCPClients, func() *config.DHCPClientConfig { return &config.DHCPClientConfig{} })
		RegisterConfigRoutes(r, "/pppoe", s.daemon.PPPoEs, func() *config.PPPoEConfig { return &config.PPPoEConfig{} })
		RegisterConfigRoutes(r, "/ipv6_ra", s.daemon.IPv6RAs, func() *config.IPv6RAConfig { return &config.IPv6RAConfig{} })
		RegisterConfigRoutes(r, "/firewall", s.daemon.Firewalls, func() *config.FirewallConfig { return &config.FirewallConfig{} })
		RegisterConfigRoutes(r, "/mss_clamp", s.daemon.MSSClamps, func() *config.MSSClampConfig { return &config.MSSClampConfig{} })
		RegisterConfigRoutes(r, "/routing", s.daemon.Routing, func() *config.RoutingConfig { return &config.RoutingConfig{} })

		RegisterDNSRoutes(r, s.daemon.Rules, s.daemon.Reload, s.daemon.GeoSites, s.daemon.GeoSite)
		RegisterHealthRoute(r, s.daemon)
	})

	s.router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
}

// Start runs the HTTP server until it is shut down, returning nil on a clean
// Stop.
func (s *Server) Start() error {
	log.Infof("[API] starting admin server on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("api server error: %w", err)
	}
	return nil
}

// Stop gracefully shuts the HTTP server down.
func (s *Server) Stop(ctx context.Context) error {
	log.Infof("[API] shutting down admin server")
	return s.httpServer.Shutdown(ctx)
}
