package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/veylan/routerd/internal/configctl"
	"github.com/veylan/routerd/internal/dnsreload"
	"github.com/veylan/routerd/internal/dnsrule"
	"github.com/veylan/routerd/internal/geosite"
)

const refreshTimeout = 60 * time.Second

// RegisterDNSRoutes mounts /dns/rules (ordered rule set, reconciled through
// the reload coordinator on every write) and /dns/geosite (source list plus
// a forced-refresh trigger), per §4.14.
func RegisterDNSRoutes(r chi.Router, rules *configctl.FileRepository[dnsrule.Config], reload *dnsreload.Coordinator, sources *configctl.FileRepository[geosite.SourceConfig], geo *geosite.Service) {
	r.Route("/dns/rules", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, req *http.Request) {
			all, err := rules.ListAll()
			if err != nil {
				WriteServiceError(w, err.Error())
				return
			}
			writeJSON(w, http.StatusOK, ListResponse{Items: all})
		})

		r.Put("/", func(w http.ResponseWriter, req *http.Request) {
			var cfg dnsrule.Config
			if err := json.NewDecoder(req.Body).Decode(&cfg); err != nil {
				WriteInvalidRequest(w, "invalid request body: "+err.Error())
				return
			}
			if _, err := cfg.Compile(); err != nil {
				WriteValidationError(w, err)
				return
			}
			if err := rules.Upsert(cfg); err != nil {
				WriteServiceError(w, err.Error())
				return
			}
			if err := reload.Reload(); err != nil {
				WriteServiceError(w, "rule stored but reload failed: "+err.Error())
				return
			}
			writeJSON(w, http.StatusOK, DataResponse{Data: cfg})
		})

		r.Delete("/{id}", func(w http.ResponseWriter, req *http.Request) {
			if err := rules.Delete(chi.URLParam(req, "id")); err != nil {
				WriteServiceError(w, err.Error())
				return
			}
			if err := reload.Reload(); err != nil {
				WriteServiceError(w, "rule removed but reload failed: "+err.Error())
				return
			}
			w.WriteHeader(http.StatusNoContent)
		})
	})

	r.Route("/dns/geosite", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, req *http.Request) {
			all, err := sources.ListAll()
			if err != nil {
				WriteServiceError(w, err.Error())
				return
			}
			writeJSON(w, http.StatusOK, ListResponse{Items: all})
		})

		r.Put("/{name}", func(w http.ResponseWriter, req *http.Request) {
			var cfg geosite.SourceConfig
			if err := json.NewDecoder(req.Body).Decode(&cfg); err != nil {
				WriteInvalidRequest(w, "invalid request body: "+err.Error())
				return
			}
			if cfg.Key() != chi.URLParam(req, "name") {
				WriteInvalidRequest(w, "body name does not match URL name")
				return
			}
			if err := sources.Upsert(cfg); err != nil {
				WriteServiceError(w, err.Error())
				return
			}
			writeJSON(w, http.StatusOK, DataResponse{Data: cfg})
		})

		r.Post("/refresh", func(w http.ResponseWriter, req *http.Request) {
			ctx, cancel := context.WithTimeout(req.Context(), refreshTimeout)
			defer cancel()
			geo.ForceRefresh(ctx)
			w.WriteHeader(http.StatusAccepted)
		})
	})
}
