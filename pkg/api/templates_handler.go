package api

import (
	"net/http"

	"github.com/cuemby/pixelforge/pkg/log"
	"github.com/cuemby/pixelforge/pkg/templates"
)

// handleListTemplates serves GET /templates: { meta, items }. A
// refresh=true query parameter re-reads the catalog's override file
// before listing, for operators editing it without a restart.
func (s *Server) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("refresh") == "true" {
		if err := s.catalog.Refresh(); err != nil {
			log.WithComponent("api").Warn().Err(err).Msg("template catalog refresh failed")
		}
	}

	filter := templates.Filter{
		Category: r.URL.Query().Get("category"),
		Keyword:  r.URL.Query().Get("keyword"),
	}
	meta, items := s.catalog.List(filter)
	writeData(w, http.StatusOK, map[string]any{"meta": meta, "items": items})
}
