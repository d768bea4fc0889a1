package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/foxzi/postcard/internal/asset"
	"github.com/foxzi/postcard/internal/campaign"
	"github.com/foxzi/postcard/internal/credits"
	"github.com/foxzi/postcard/internal/email"
	"github.com/foxzi/postcard/internal/rule"
	"github.com/foxzi/postcard/internal/subscriber"
	"github.com/foxzi/postcard/internal/template"
)

// maxBodySize bounds JSON request bodies
const maxBodySize = 1 << 20

// ErrorResponse is the error response
type ErrorResponse struct {
	Error string `json:"error"`
}

func sendJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func sendError(w http.ResponseWriter, status int, message string) {
	sendJSON(w, status, ErrorResponse{Error: message})
}

// decodeJSON reads a JSON body into v, rejecting unknown fields
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodySize))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		sendError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

// sendDomainError maps a sentinel error to its status. Unknown errors are
// logged and answered with 500.
func (s *Server) sendDomainError(w http.ResponseWriter, err error, action string) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, template.ErrNotFound),
		errors.Is(err, rule.ErrNotFound),
		errors.Is(err, subscriber.ErrNotFound),
		errors.Is(err, campaign.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, template.ErrNameTaken),
		errors.Is(err, subscriber.ErrExists),
		errors.Is(err, campaign.ErrStatusChanged):
		status = http.StatusConflict
	case errors.Is(err, credits.ErrInsufficient):
		status = http.StatusPaymentRequired
	case errors.Is(err, asset.ErrTooLarge):
		status = http.StatusRequestEntityTooLarge
	case errors.Is(err, asset.ErrUnsupportedType):
		status = http.StatusUnsupportedMediaType
	case errors.Is(err, template.ErrNameRequired),
		errors.Is(err, rule.ErrInvalidKind),
		errors.Is(err, email.ErrInvalidAddress),
		errors.Is(err, campaign.ErrEmptySubject),
		errors.Is(err, campaign.ErrNoRecipients),
		errors.Is(err, campaign.ErrNoScheduleDate),
		errors.Is(err, campaign.ErrScheduleInPast),
		errors.Is(err, credits.ErrInvalidAmount),
		errors.Is(err, credits.ErrUnknownTier),
		errors.Is(err, asset.ErrEmpty):
		status = http.StatusBadRequest
	}

	if status == http.StatusInternalServerError {
		s.logger.Error("failed to "+action, "error", err)
		sendError(w, status, "Failed to "+action)
		return
	}
	sendError(w, status, err.Error())
}

func queryInt(r *http.Request, name string) int {
	if v := r.URL.Query().Get(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return 0
}
