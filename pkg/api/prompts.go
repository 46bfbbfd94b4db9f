package api

import (
	"encoding/json"
	"net/http"

	"github.com/cuemby/pixelforge/pkg/apierr"
	"github.com/cuemby/pixelforge/pkg/provider"
)

type optimizeRequest struct {
	Provider       string `json:"provider"`
	Model          string `json:"model"`
	Prompt         string `json:"prompt"`
	ResponseFormat string `json:"response_format,omitempty"`
}

type optimizeResponse struct {
	Prompt string `json:"prompt"`
}

// handleOptimizePrompt serves POST /prompts/optimize. Providers that
// don't implement provider.Optimizer surface invalid-params rather
// than silently echoing the prompt back unchanged.
func (s *Server) handleOptimizePrompt(w http.ResponseWriter, r *http.Request) {
	var req optimizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, apierr.Wrap(apierr.KindInvalidParams, "invalid optimize request body", err))
		return
	}
	if req.Prompt == "" {
		writeErr(w, apierr.New(apierr.KindInvalidParams, "prompt is required"))
		return
	}

	adapter, err := s.mgr.ResolveAdapter(req.Provider)
	if err != nil {
		writeErr(w, err)
		return
	}
	optimizer, ok := adapter.(provider.Optimizer)
	if !ok {
		writeErr(w, apierr.New(apierr.KindInvalidParams, "provider does not support prompt optimization"))
		return
	}

	optimized, err := optimizer.OptimizePrompt(r.Context(), req.Model, req.Prompt)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeData(w, http.StatusOK, optimizeResponse{Prompt: optimized})
}
