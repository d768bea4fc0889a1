package api

import (
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/foxzi/postcard/internal/subscriber"
)

// maxImportSize bounds CSV imports
const maxImportSize = 10 << 20

// SubscriberRequest is the request body for POST /subscribers
type SubscriberRequest struct {
	Email  string `json:"email"`
	Name   string `json:"name,omitempty"`
	Status string `json:"status,omitempty"`
}

// StatusRequest is the request body for PUT /subscribers/{id}/status
type StatusRequest struct {
	Status string `json:"status"`
}

// SubscriberListResponse is the response for GET /subscribers
type SubscriberListResponse struct {
	Subscribers []*subscriber.Subscriber  `json:"subscribers"`
	Counts      map[subscriber.Status]int `json:"counts"`
}

// handleListSubscribers handles GET /api/v1/subscribers
func (s *Server) handleListSubscribers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := subscriber.ListFilter{
		Search: q.Get("search"),
		Limit:  queryInt(r, "limit"),
		Offset: queryInt(r, "offset"),
	}
	if status := q.Get("status"); status != "" {
		filter.Status = subscriber.ParseStatus(status)
	}

	list, err := s.deps.Subscribers.List(r.Context(), filter)
	if err != nil {
		s.sendDomainError(w, err, "list subscribers")
		return
	}
	counts, err := s.deps.Subscribers.Count(r.Context())
	if err != nil {
		s.sendDomainError(w, err, "count subscribers")
		return
	}
	if list == nil {
		list = []*subscriber.Subscriber{}
	}
	sendJSON(w, http.StatusOK, SubscriberListResponse{Subscribers: list, Counts: counts})
}

// handleAddSubscriber handles POST /api/v1/subscribers
func (s *Server) handleAddSubscriber(w http.ResponseWriter, r *http.Request) {
	var req SubscriberRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	sub := &subscriber.Subscriber{
		Email:  req.Email,
		Name:   strings.TrimSpace(req.Name),
		Status: subscriber.ParseStatus(req.Status),
	}
	if err := s.deps.Subscribers.Add(r.Context(), sub); err != nil {
		s.sendDomainError(w, err, "add subscriber")
		return
	}

	s.logger.Info("subscriber added", "id", sub.ID)
	sendJSON(w, http.StatusCreated, sub)
}

// handleImportSubscribers handles POST /api/v1/subscribers/import. The CSV
// is read from the multipart "file" field, or from the raw body otherwise.
func (s *Server) handleImportSubscribers(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxImportSize)

	var src io.Reader = r.Body
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		file, _, err := r.FormFile("file")
		if err != nil {
			sendError(w, http.StatusBadRequest, "Missing file field")
			return
		}
		defer file.Close()
		src = file
	}

	result, err := s.deps.Subscribers.ImportCSV(r.Context(), src)
	if err != nil {
		sendError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.logger.Info("subscribers imported",
		"total", result.Total,
		"imported", result.Imported,
		"skipped", result.Skipped,
	)
	sendJSON(w, http.StatusOK, result)
}

// handleDeleteSubscriber handles DELETE /api/v1/subscribers/{id}
func (s *Server) handleDeleteSubscriber(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.deps.Subscribers.Delete(r.Context(), id); err != nil {
		s.sendDomainError(w, err, "delete subscriber")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleSetSubscriberStatus handles PUT /api/v1/subscribers/{id}/status
func (s *Server) handleSetSubscriberStatus(w http.ResponseWriter, r *http.Request) {
	var req StatusRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Status != string(subscriber.StatusActive) && req.Status != string(subscriber.StatusInactive) {
		sendError(w, http.StatusBadRequest, "status must be active or inactive")
		return
	}

	sub, err := s.deps.Subscribers.SetStatus(r.Context(), chi.URLParam(r, "id"), subscriber.Status(req.Status))
	if err != nil {
		s.sendDomainError(w, err, "update subscriber")
		return
	}
	sendJSON(w, http.StatusOK, sub)
}
