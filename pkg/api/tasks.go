package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/cuemby/pixelforge/pkg/apierr"
	"github.com/cuemby/pixelforge/pkg/types"
)

// generateRequest is the JSON body of POST /tasks/generate.
type generateRequest struct {
	Provider string              `json:"provider"`
	ModelID  string              `json:"model_id"`
	Params   generateParamsInput `json:"params"`
}

// generateParamsInput carries the fields a caller supplies per-task;
// ModelID is accepted here too for callers that nest it, but the
// top-level model_id wins when both are set.
type generateParamsInput struct {
	Prompt      string              `json:"prompt"`
	ModelID     string              `json:"modelId"`
	AspectRatio types.AspectRatio   `json:"aspectRatio"`
	ImageSize   types.ResolutionClass `json:"imageSize"`
	Count       int                 `json:"count"`
	RefImages   []types.RefImage    `json:"refImages,omitempty"`
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, apierr.Wrap(apierr.KindInvalidParams, "invalid request body", err))
		return
	}

	modelID := req.ModelID
	if modelID == "" {
		modelID = req.Params.ModelID
	}
	params := types.GenerateParams{
		Prompt:      req.Params.Prompt,
		ModelID:     modelID,
		AspectRatio: req.Params.AspectRatio,
		ImageSize:   req.Params.ImageSize,
		Count:       req.Params.Count,
		RefImages:   req.Params.RefImages,
	}

	task, err := s.mgr.Create(r.Context(), req.Provider, params)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeData(w, http.StatusCreated, task)
}

func (s *Server) handleGenerateWithImages(w http.ResponseWriter, r *http.Request) {
	// 32MB in-memory threshold; larger parts spill to temp files under
	// the OS default, same as the standard library's own default.
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeErr(w, apierr.Wrap(apierr.KindInvalidParams, "invalid multipart form", err))
		return
	}

	count, _ := strconv.Atoi(r.FormValue("count"))
	params := types.GenerateParams{
		Prompt:      r.FormValue("prompt"),
		ModelID:     r.FormValue("model_id"),
		AspectRatio: types.AspectRatio(r.FormValue("aspectRatio")),
		ImageSize:   types.ResolutionClass(r.FormValue("imageSize")),
		Count:       count,
	}
	provider := r.FormValue("provider")

	refs, err := s.collectRefImages(r)
	if err != nil {
		writeErr(w, err)
		return
	}
	params.RefImages = refs

	task, err := s.mgr.Create(r.Context(), provider, params)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeData(w, http.StatusCreated, task)
}

// collectRefImages reads every uploaded refImages[] file part as an
// inline reference, and every refPaths[] value as a local path
// resolved against the configured allowed roots, read into the same
// inline shape so adapters never need to distinguish the two.
func (s *Server) collectRefImages(r *http.Request) ([]types.RefImage, error) {
	var refs []types.RefImage

	if r.MultipartForm != nil {
		for _, header := range r.MultipartForm.File["refImages"] {
			f, err := header.Open()
			if err != nil {
				return nil, apierr.Wrap(apierr.KindInvalidParams, "failed to open uploaded reference image", err)
			}
			data, err := io.ReadAll(f)
			f.Close()
			if err != nil {
				return nil, apierr.Wrap(apierr.KindInvalidParams, "failed to read uploaded reference image", err)
			}
			mime := header.Header.Get("Content-Type")
			if mime == "" {
				mime = http.DetectContentType(data)
			}
			refs = append(refs, types.RefImage{Kind: types.RefImageInline, Bytes: data, MIME: mime})
		}
	}

	for _, path := range r.Form["refPaths"] {
		abs, err := s.resolveRefPath(path)
		if err != nil {
			return nil, err
		}
		data, err := os.ReadFile(abs)
		if err != nil {
			return nil, apierr.Wrap(apierr.KindInvalidParams, fmt.Sprintf("failed to read reference path %s", path), err)
		}
		refs = append(refs, types.RefImage{Kind: types.RefImagePath, Path: abs, Bytes: data, MIME: http.DetectContentType(data)})
	}

	return refs, nil
}

// resolveRefPath resolves a caller-supplied path reference against the
// configured allowed roots, rejecting anything that escapes them.
func (s *Server) resolveRefPath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", apierr.Wrap(apierr.KindInvalidParams, "invalid reference path", err)
	}
	for _, root := range s.allowedRefRoots {
		rootAbs, err := filepath.Abs(root)
		if err != nil {
			continue
		}
		if abs == rootAbs || strings.HasPrefix(abs, rootAbs+string(filepath.Separator)) {
			return abs, nil
		}
	}
	return "", apierr.New(apierr.KindInvalidParams, "reference path is outside allowed directories")
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	task, err := s.mgr.Get(id)
	if err != nil {
		writeErr(w, err)
		return
	}
	images, err := s.mgr.Images(id)
	if err != nil {
		writeErr(w, err)
		return
	}
	task.Images = images
	writeData(w, http.StatusOK, task)
}

// handleDeleteTask deletes a terminal Task outright, or cooperatively
// cancels a non-terminal one — the Task then finalizes as
// failed("canceled") with whatever images had already landed
// preserved. Idempotent: deleting an unknown or already-canceled Task
// succeeds without error.
func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.mgr.Delete(r.Context(), id); err != nil {
		writeErr(w, err)
		return
	}
	writeData(w, http.StatusOK, map[string]string{"id": id})
}
