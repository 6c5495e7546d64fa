package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/veylan/routerd/internal/daemon"
	"github.com/veylan/routerd/internal/ifservice"
	"github.com/veylan/routerd/internal/watch"
)

// HealthResponse reports whether every configured C11 starter is up, keyed
// by kind/iface_name.
type HealthResponse struct {
	Healthy bool                     `json:"healthy"`
	Checks  map[string]CheckedStatus `json:"checks"`
}

// CheckedStatus is one starter's reported watch.State plus its Status.
type CheckedStatus struct {
	State  string           `json:"state"`
	Status ifservice.Status `json:"status"`
}

// RegisterHealthRoute mounts GET /api/v1/health, aggregating AllStatus
// across every C11 kind's Manager.
func RegisterHealthRoute(r chi.Router, d *daemon.Daemon) {
	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		checks := make(map[string]CheckedStatus)
		healthy := true

		collect := func(kind string, statuses map[string]watch.Handle[ifservice.Status]) {
			for key, h := range statuses {
				state, status := h.Snapshot()
				if state != watch.Running {
					healthy = false
				}
				checks[kind+"/"+key] = CheckedStatus{State: state.String(), Status: status}
			}
		}

		collect("dhcp_client", d.DHCPClients.GetAllStatus())
		collect("pppoe", d.PPPoEs.GetAllStatus())
		collect("ipv6_ra", d.IPv6RAs.GetAllStatus())
		collect("firewall", d.Firewalls.GetAllStatus())
		collect("mss_clamp", d.MSSClamps.GetAllStatus())
		collect("routing", d.Routing.GetAllStatus())

		status := http.StatusOK
		if !healthy {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, HealthResponse{Healthy: healthy, Checks: checks})
	})
}
