package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/veylan/routerd/internal/configctl"
	apperrors "github.com/veylan/routerd/internal/errors"
	"github.com/veylan/routerd/internal/supervisor"
)

// RegisterConfigRoutes mounts the generic C4 CRUD surface under base
// ("/dhcp_client", "/pppoe", ...): GET lists every config, GET/{key} reads
// one, PUT/{key} creates-or-updates via the controller (persist-then-
// supervise), DELETE/{key} stops and removes it. One registration serves
// every C11 kind, since configctl.Controller is generic over the config
// type.
func RegisterConfigRoutes[C supervisor.Keyed, S any](r chi.Router, base string, controller *configctl.Controller[C, S], newConfig func() C) {
	r.Route(base, func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, req *http.Request) {
			configs, err := controller.ListConfigs()
			if err != nil {
				WriteServiceError(w, err.Error())
				return
			}
			writeJSON(w, http.StatusOK, ListResponse{Items: configs})
		})

		r.Put("/{key}", func(w http.ResponseWriter, req *http.Request) {
			cfg := newConfig()
			if err := json.NewDecoder(req.Body).Decode(&cfg); err != nil {
				WriteInvalidRequest(w, "invalid request body: "+err.Error())
				return
			}
			if cfg.Key() != chi.URLParam(req, "key") {
				WriteInvalidRequest(w, "body key does not match URL key")
				return
			}
			if err := controller.HandleServiceConfig(cfg); err != nil {
				if err == apperrors.ErrBusy {
					WriteConflict(w, err.Error())
					return
				}
				WriteServiceError(w, err.Error())
				return
			}
			writeJSON(w, http.StatusOK, DataResponse{Data: cfg})
		})

		r.Get("/{key}", func(w http.ResponseWriter, req *http.Request) {
			cfg, ok, err := controller.GetConfigByName(chi.URLParam(req, "key"))
			if err != nil {
				WriteServiceError(w, err.Error())
				return
			}
			if !ok {
				WriteNotFound(w, base+"/"+chi.URLParam(req, "key"))
				return
			}
			writeJSON(w, http.StatusOK, DataResponse{Data: cfg})
		})

		r.Delete("/{key}", func(w http.ResponseWriter, req *http.Request) {
			key := chi.URLParam(req, "key")
			_, ok, err := controller.DeleteAndStop(key)
			if err != nil {
				WriteServiceError(w, err.Error())
				return
			}
			if !ok {
				WriteNotFound(w, base+"/"+key)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		})
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
