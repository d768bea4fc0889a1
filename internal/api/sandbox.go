package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/foxzi/postcard/internal/gateway"
)

// SandboxListResponse is the response for GET /sandbox
type SandboxListResponse struct {
	Messages []*gateway.Captured `json:"messages"`
	Total    int                 `json:"total"`
}

func (s *Server) sandboxEnabled(w http.ResponseWriter) bool {
	if s.deps.Sandbox == nil {
		sendError(w, http.StatusNotFound, "Sandbox gateway is not active")
		return false
	}
	return true
}

// handleListSandbox handles GET /api/v1/sandbox
func (s *Server) handleListSandbox(w http.ResponseWriter, r *http.Request) {
	if !s.sandboxEnabled(w) {
		return
	}

	list, err := s.deps.Sandbox.List(r.Context(), queryInt(r, "limit"))
	if err != nil {
		s.sendDomainError(w, err, "list sandbox messages")
		return
	}
	if list == nil {
		list = []*gateway.Captured{}
	}
	sendJSON(w, http.StatusOK, SandboxListResponse{Messages: list, Total: len(list)})
}

// handleGetSandbox handles GET /api/v1/sandbox/{id}
func (s *Server) handleGetSandbox(w http.ResponseWriter, r *http.Request) {
	if !s.sandboxEnabled(w) {
		return
	}

	msg, err := s.deps.Sandbox.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.sendDomainError(w, err, "get sandbox message")
		return
	}
	if msg == nil {
		sendError(w, http.StatusNotFound, "Message not found")
		return
	}
	sendJSON(w, http.StatusOK, msg)
}

// handleClearSandbox handles DELETE /api/v1/sandbox
func (s *Server) handleClearSandbox(w http.ResponseWriter, r *http.Request) {
	if !s.sandboxEnabled(w) {
		return
	}

	n, err := s.deps.Sandbox.Clear(r.Context())
	if err != nil {
		s.sendDomainError(w, err, "clear sandbox")
		return
	}
	sendJSON(w, http.StatusOK, map[string]int{"deleted": n})
}
