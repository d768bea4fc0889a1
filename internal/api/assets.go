package api

import (
	"net/http"
)

// handleUploadLogo handles POST /api/v1/assets/logo. The image is read
// from the multipart "file" field.
func (s *Server) handleUploadLogo(w http.ResponseWriter, r *http.Request) {
	if s.deps.Assets == nil {
		sendError(w, http.StatusNotFound, "Asset storage is not configured")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxImportSize)
	file, _, err := r.FormFile("file")
	if err != nil {
		sendError(w, http.StatusBadRequest, "Missing file field")
		return
	}
	defer file.Close()

	a, err := s.deps.Assets.Put(r.Context(), file)
	if err != nil {
		s.sendDomainError(w, err, "store logo")
		return
	}

	s.logger.Info("logo uploaded", "key", a.Key, "size", a.Size, "content_type", a.ContentType)
	sendJSON(w, http.StatusCreated, a)
}
