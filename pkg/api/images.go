package api

import (
	"archive/zip"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/cuemby/pixelforge/pkg/apierr"
	"github.com/cuemby/pixelforge/pkg/storage"
	"github.com/cuemby/pixelforge/pkg/types"
)

// handleListImages serves GET /images: a paginated list of Tasks, each
// with its Images attached, optionally narrowed by a prompt keyword.
func (s *Server) handleListImages(w http.ResponseWriter, r *http.Request) {
	page := storage.Page{Number: 1, Size: 20}
	if v := r.URL.Query().Get("page"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			page.Number = n
		}
	}
	if v := r.URL.Query().Get("pageSize"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			page.Size = n
		}
	}
	filter := storage.TaskFilter{Keyword: r.URL.Query().Get("keyword")}

	tasks, total, err := s.mgr.List(filter, page)
	if err != nil {
		writeErr(w, err)
		return
	}
	for _, task := range tasks {
		images, err := s.mgr.Images(task.ID)
		if err != nil {
			writeErr(w, err)
			return
		}
		task.Images = images
	}

	writeData(w, http.StatusOK, map[string]any{
		"tasks":    tasks,
		"total":    total,
		"page":     page.Number,
		"pageSize": page.Size,
	})
}

func (s *Server) handleDeleteImage(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.mgr.DeleteImage(id); err != nil {
		writeErr(w, err)
		return
	}
	writeData(w, http.StatusOK, map[string]string{"id": id})
}

func (s *Server) handleDownloadImage(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	img, err := s.mgr.FindImage(id)
	if err != nil {
		writeErr(w, err)
		return
	}
	if img.Path == "" {
		writeErr(w, apierr.New(apierr.KindInvalidParams, "image has no stored bytes"))
		return
	}

	f, err := s.blobs.Open(img.Path)
	if err != nil {
		writeErr(w, apierr.Wrap(apierr.KindIOError, "failed to open image bytes", err))
		return
	}
	defer f.Close()

	if img.MIME != "" {
		w.Header().Set("Content-Type", img.MIME)
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filepath.Base(img.Path)))
	_, _ = io.Copy(w, f)
}

type exportRequest struct {
	ImageIDs []string `json:"imageIds"`
}

// handleExportImages serves POST /images/export: streams a ZIP archive
// of every requested image's bytes. Entries whose bytes can't be found
// are skipped rather than failing the whole export; X-Export-Partial
// signals that to the caller.
func (s *Server) handleExportImages(w http.ResponseWriter, r *http.Request) {
	var req exportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, apierr.Wrap(apierr.KindInvalidParams, "invalid export request body", err))
		return
	}
	if len(req.ImageIDs) == 0 {
		writeErr(w, apierr.New(apierr.KindInvalidParams, "imageIds must be non-empty"))
		return
	}

	var entries []*types.Image
	partial := false
	for _, id := range req.ImageIDs {
		img, err := s.mgr.FindImage(id)
		if err != nil || img.Path == "" {
			partial = true
			continue
		}
		entries = append(entries, img)
	}
	if len(entries) == 0 {
		writeErr(w, apierr.New(apierr.KindInvalidParams, "no requested images have stored bytes"))
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", "attachment; filename=\"images.zip\"")
	if partial {
		w.Header().Set("X-Export-Partial", "true")
	}
	w.WriteHeader(http.StatusOK)

	zw := zip.NewWriter(w)
	defer zw.Close()

	for _, img := range entries {
		f, err := s.blobs.Open(img.Path)
		if err != nil {
			continue
		}
		entry, err := zw.Create(filepath.Base(img.Path))
		if err == nil {
			_, _ = io.Copy(entry, f)
		}
		f.Close()
	}
}
