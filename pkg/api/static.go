package api

import "net/http"

// staticHandler serves persisted image bytes directly from the blob
// store's root, under /storage/..., for UIs that want to hot-link
// full-size or thumbnail images instead of going through /download.
// http.FileServer already rejects path traversal (".." is cleaned
// against the root before the OS ever sees it), so no extra
// containment check is needed here beyond what blob paths already are.
func (s *Server) staticHandler() http.Handler {
	return http.FileServer(http.Dir(s.blobs.Root()))
}
