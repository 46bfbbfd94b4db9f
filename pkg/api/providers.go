package api

import (
	"encoding/json"
	"net/http"

	"github.com/cuemby/pixelforge/pkg/apierr"
	"github.com/cuemby/pixelforge/pkg/types"
)

// providerDescriptor is the shape /providers lists: one entry per
// stored config, flagged with whether its adapter is currently live.
type providerDescriptor struct {
	types.ProviderConfig
	Live bool `json:"live"`
}

func (s *Server) handleListProviders(w http.ResponseWriter, r *http.Request) {
	configs, err := s.mgr.ListProviderConfigs()
	if err != nil {
		writeErr(w, err)
		return
	}
	live := make(map[string]bool)
	for _, name := range s.mgr.ProviderNames() {
		live[name] = true
	}

	out := make([]providerDescriptor, 0, len(configs))
	for _, cfg := range configs {
		cfg.APIKey = "" // never echo secrets back over the wire
		out = append(out, providerDescriptor{ProviderConfig: *cfg, Live: live[cfg.Name]})
	}
	writeData(w, http.StatusOK, out)
}

func (s *Server) handleGetProviderConfig(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		writeErr(w, apierr.New(apierr.KindInvalidParams, "missing name query parameter"))
		return
	}
	cfg, err := s.mgr.GetProviderConfig(name)
	if err != nil {
		writeErr(w, err)
		return
	}
	cfg.APIKey = ""
	writeData(w, http.StatusOK, cfg)
}

func (s *Server) handlePostProviderConfig(w http.ResponseWriter, r *http.Request) {
	var cfg types.ProviderConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		writeErr(w, apierr.Wrap(apierr.KindInvalidParams, "invalid provider config body", err))
		return
	}
	if cfg.Name == "" {
		writeErr(w, apierr.New(apierr.KindInvalidParams, "provider config requires a name"))
		return
	}
	if err := s.mgr.UpsertProviderConfig(&cfg); err != nil {
		writeErr(w, err)
		return
	}
	cfg.APIKey = ""
	writeData(w, http.StatusOK, cfg)
}
