package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/foxzi/postcard/internal/template"
)

// TemplateRequest is the request body for creating or updating a template
type TemplateRequest struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Kind        string         `json:"kind,omitempty"`
	Variant     string         `json:"variant"`
	Input       template.Input `json:"input"`
}

// TemplateListResponse is the response for GET /templates
type TemplateListResponse struct {
	Templates []*template.Template `json:"templates"`
	Total     int                  `json:"total"`
}

// handleListTemplates handles GET /api/v1/templates
func (s *Server) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	filter := template.ListFilter{
		Search: r.URL.Query().Get("search"),
		Kind:   r.URL.Query().Get("kind"),
		Limit:  queryInt(r, "limit"),
		Offset: queryInt(r, "offset"),
	}

	list, err := s.deps.Templates.List(r.Context(), filter)
	if err != nil {
		s.sendDomainError(w, err, "list templates")
		return
	}
	if list == nil {
		list = []*template.Template{}
	}
	sendJSON(w, http.StatusOK, TemplateListResponse{Templates: list, Total: len(list)})
}

// handleCreateTemplate handles POST /api/v1/templates
func (s *Server) handleCreateTemplate(w http.ResponseWriter, r *http.Request) {
	var req TemplateRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	tmpl := &template.Template{
		Name:        req.Name,
		Description: req.Description,
		Kind:        req.Kind,
		Variant:     template.Variant(req.Variant),
		Input:       req.Input,
	}
	if err := s.deps.Templates.Create(r.Context(), tmpl); err != nil {
		s.sendDomainError(w, err, "create template")
		return
	}

	s.logger.Info("template created", "id", tmpl.ID, "name", tmpl.Name)
	sendJSON(w, http.StatusCreated, tmpl)
}

func (s *Server) loadTemplate(w http.ResponseWriter, r *http.Request) *template.Template {
	tmpl, err := s.deps.Templates.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.sendDomainError(w, err, "get template")
		return nil
	}
	if tmpl == nil {
		sendError(w, http.StatusNotFound, "Template not found")
		return nil
	}
	return tmpl
}

// handleGetTemplate handles GET /api/v1/templates/{id}
func (s *Server) handleGetTemplate(w http.ResponseWriter, r *http.Request) {
	if tmpl := s.loadTemplate(w, r); tmpl != nil {
		sendJSON(w, http.StatusOK, tmpl)
	}
}

// handleUpdateTemplate handles PUT /api/v1/templates/{id}
func (s *Server) handleUpdateTemplate(w http.ResponseWriter, r *http.Request) {
	tmpl := s.loadTemplate(w, r)
	if tmpl == nil {
		return
	}

	var req TemplateRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if req.Name != "" {
		tmpl.Name = req.Name
	}
	if req.Description != "" {
		tmpl.Description = req.Description
	}
	if req.Kind != "" {
		tmpl.Kind = req.Kind
	}
	if req.Variant != "" {
		tmpl.Variant = template.Variant(req.Variant)
	}
	if req.Input != (template.Input{}) {
		tmpl.Input = req.Input
	}

	if err := s.deps.Templates.Update(r.Context(), tmpl); err != nil {
		s.sendDomainError(w, err, "update template")
		return
	}

	s.logger.Info("template updated", "id", tmpl.ID, "version", tmpl.Version)
	sendJSON(w, http.StatusOK, tmpl)
}

// handleDeleteTemplate handles DELETE /api/v1/templates/{id}
func (s *Server) handleDeleteTemplate(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Templates.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.sendDomainError(w, err, "delete template")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handlePreviewTemplate handles POST /api/v1/templates/{id}/preview.
// The variant query parameter overrides the stored one.
func (s *Server) handlePreviewTemplate(w http.ResponseWriter, r *http.Request) {
	tmpl := s.loadTemplate(w, r)
	if tmpl == nil {
		return
	}

	variant := tmpl.Variant
	if v := r.URL.Query().Get("variant"); v != "" {
		variant = template.ParseVariant(v)
	}
	sendJSON(w, http.StatusOK, s.preview(tmpl.Input, variant))
}
