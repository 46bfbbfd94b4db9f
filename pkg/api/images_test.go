package api

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cuemby/pixelforge/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestTask(t *testing.T, srv *Server, st interface {
	GetTask(string) (*types.Task, error)
}, count int) *types.Task {
	t.Helper()
	body, err := json.Marshal(generateRequest{
		Provider: "stub",
		ModelID:  "stub-model",
		Params: generateParamsInput{
			Prompt:      "a robot painting",
			AspectRatio: types.AspectRatio1x1,
			ImageSize:   types.Resolution1K,
			Count:       count,
		},
	})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/tasks/generate", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	var task types.Task
	decodeEnvelope(t, rec, &task)
	return &task
}

func TestHandleListImagesAndDownload(t *testing.T) {
	srv, st := newTestServer(t, stubFactory([]byte("download-me")))
	created := createTestTask(t, srv, st, 1)
	waitForTerminal(t, st, created.ID)

	listReq := httptest.NewRequest(http.MethodGet, "/api/v1/images", nil)
	listRec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(listRec, listReq)
	require.Equal(t, http.StatusOK, listRec.Code)

	var listData struct {
		Tasks []*types.Task `json:"tasks"`
		Total int           `json:"total"`
	}
	decodeEnvelope(t, listRec, &listData)
	require.GreaterOrEqual(t, listData.Total, 1)
	require.NotEmpty(t, listData.Tasks)
	require.NotEmpty(t, listData.Tasks[0].Images)

	imageID := listData.Tasks[0].Images[0].ID
	downloadReq := httptest.NewRequest(http.MethodGet, "/api/v1/images/"+imageID+"/download", nil)
	downloadRec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(downloadRec, downloadReq)

	require.Equal(t, http.StatusOK, downloadRec.Code)
	assert.Equal(t, "download-me", downloadRec.Body.String())
}

func TestHandleDeleteImageCascadesEmptyTask(t *testing.T) {
	srv, st := newTestServer(t, stubFactory([]byte("x")))
	created := createTestTask(t, srv, st, 1)
	waitForTerminal(t, st, created.ID)

	getReq := httptest.NewRequest(http.MethodGet, "/api/v1/tasks/"+created.ID, nil)
	getRec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(getRec, getReq)
	var task types.Task
	decodeEnvelope(t, getRec, &task)
	require.Len(t, task.Images, 1)

	delReq := httptest.NewRequest(http.MethodDelete, "/api/v1/images/"+task.Images[0].ID, nil)
	delRec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(delRec, delReq)
	assert.Equal(t, http.StatusOK, delRec.Code)

	taskGoneReq := httptest.NewRequest(http.MethodGet, "/api/v1/tasks/"+created.ID, nil)
	taskGoneRec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(taskGoneRec, taskGoneReq)
	assert.NotEqual(t, http.StatusOK, taskGoneRec.Code)
}

func TestHandleExportImagesStreamsZip(t *testing.T) {
	srv, st := newTestServer(t, stubFactory([]byte("zip-me")))
	created := createTestTask(t, srv, st, 2)
	waitForTerminal(t, st, created.ID)

	getReq := httptest.NewRequest(http.MethodGet, "/api/v1/tasks/"+created.ID, nil)
	getRec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(getRec, getReq)
	var task types.Task
	decodeEnvelope(t, getRec, &task)
	require.Len(t, task.Images, 2)

	reqBody, err := json.Marshal(exportRequest{ImageIDs: []string{task.Images[0].ID, task.Images[1].ID, "missing-id"}})
	require.NoError(t, err)
	exportReq := httptest.NewRequest(http.MethodPost, "/api/v1/images/export", bytes.NewReader(reqBody))
	exportRec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(exportRec, exportReq)

	require.Equal(t, http.StatusOK, exportRec.Code)
	assert.Equal(t, "true", exportRec.Header().Get("X-Export-Partial"))

	zr, err := zip.NewReader(bytes.NewReader(exportRec.Body.Bytes()), int64(exportRec.Body.Len()))
	require.NoError(t, err)
	assert.Len(t, zr.File, 2)

	f, err := zr.File[0].Open()
	require.NoError(t, err)
	defer f.Close()
	data, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, "zip-me", string(data))
}

func TestHandleExportImagesRejectsEmptyList(t *testing.T) {
	srv, _ := newTestServer(t, stubFactory([]byte("x")))

	body, err := json.Marshal(exportRequest{})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/images/export", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
