package api

import (
	"errors"
	"net/http"

	"github.com/foxzi/postcard/internal/dnscheck"
)

// handleDomainCheck handles GET /api/v1/domain/check
func (s *Server) handleDomainCheck(w http.ResponseWriter, r *http.Request) {
	if s.deps.DomainCheck == nil {
		sendError(w, http.StatusNotFound, "Domain check is not available")
		return
	}

	domain := r.URL.Query().Get("domain")
	if domain == "" {
		domain = s.deps.SenderDomain
	}
	selector := r.URL.Query().Get("selector")
	if selector == "" {
		selector = s.deps.DKIMSelector
	}

	report, err := s.deps.DomainCheck.Check(r.Context(), domain, selector)
	if err != nil {
		if errors.Is(err, dnscheck.ErrInvalidDomain) || errors.Is(err, dnscheck.ErrInvalidSelector) {
			sendError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.sendDomainError(w, err, "check domain")
		return
	}
	sendJSON(w, http.StatusOK, report)
}
