package api

import (
	"encoding/json"
	"net/http"

	"github.com/cuemby/pixelforge/pkg/apierr"
)

// envelope is the uniform shape every JSON response (outside binary
// downloads and the ZIP export) is wrapped in, per the external
// interface contract: code == 0 means success, non-zero surfaces an
// error kind for UI branching.
type envelope struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeEnvelope(w, status, envelope{Code: 0, Data: data})
}

func writeErr(w http.ResponseWriter, err error) {
	kind := apierr.KindOf(err)
	status := statusForKind(kind)
	writeEnvelope(w, status, envelope{Code: status, Message: err.Error()})
}

func writeEnvelope(w http.ResponseWriter, status int, env envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(env)
}

// statusForKind maps a stable apierr.Kind to the HTTP status a client
// should see at the transport boundary.
func statusForKind(kind apierr.Kind) int {
	switch kind {
	case apierr.KindInvalidParams:
		return http.StatusBadRequest
	case apierr.KindQueueFull:
		return http.StatusServiceUnavailable
	case apierr.KindUpstreamRefused:
		return http.StatusBadGateway
	case apierr.KindUpstreamTransient:
		return http.StatusGatewayTimeout
	case apierr.KindCanceled:
		return http.StatusRequestTimeout
	case apierr.KindIOError, apierr.KindRestart, apierr.KindUnknown:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
