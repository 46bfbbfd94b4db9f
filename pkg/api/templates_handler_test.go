package api

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/cuemby/pixelforge/pkg/templates"
	"github.com/cuemby/pixelforge/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleListTemplatesReturnsBuiltins(t *testing.T) {
	srv, _ := newTestServer(t, stubFactory([]byte("x")))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/templates", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var data struct {
		Meta  templates.Meta    `json:"meta"`
		Items []types.Template `json:"items"`
	}
	decodeEnvelope(t, rec, &data)
	assert.NotEmpty(t, data.Items)
	assert.Equal(t, len(data.Items), data.Meta.Count)
}

func TestHandleListTemplatesFiltersByKeyword(t *testing.T) {
	srv, _ := newTestServer(t, stubFactory([]byte("x")))

	allReq := httptest.NewRequest(http.MethodGet, "/api/v1/templates", nil)
	allRec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(allRec, allReq)
	var all struct {
		Items []types.Template `json:"items"`
	}
	decodeEnvelope(t, allRec, &all)
	require.NotEmpty(t, all.Items)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/templates?keyword="+url.QueryEscape(all.Items[0].Name), nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var filtered struct {
		Items []types.Template `json:"items"`
	}
	decodeEnvelope(t, rec, &filtered)
	assert.NotEmpty(t, filtered.Items)
	for _, item := range filtered.Items {
		assert.Contains(t, item.Name, all.Items[0].Name)
	}
}
