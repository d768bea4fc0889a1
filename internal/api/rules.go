package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/foxzi/postcard/internal/rule"
	"github.com/foxzi/postcard/internal/template"
)

// RuleRequest is the request body for creating or updating a rule
type RuleRequest struct {
	Kind    rule.Kind      `json:"kind"`
	Name    string         `json:"name"`
	Variant string         `json:"variant"`
	Input   template.Input `json:"input"`
	Active  *bool          `json:"active,omitempty"`
}

// RuleDefaultsResponse is the response for GET /rules/defaults/{kind}
type RuleDefaultsResponse struct {
	Kind  rule.Kind      `json:"kind"`
	Title string         `json:"title"`
	Input template.Input `json:"input"`
}

// handleListRules handles GET /api/v1/rules
func (s *Server) handleListRules(w http.ResponseWriter, r *http.Request) {
	filter := rule.ListFilter{
		Kind:       rule.Kind(r.URL.Query().Get("kind")),
		ActiveOnly: r.URL.Query().Get("active") == "true",
	}

	list, err := s.deps.Rules.List(r.Context(), filter)
	if err != nil {
		s.sendDomainError(w, err, "list rules")
		return
	}
	if list == nil {
		list = []*rule.Rule{}
	}
	sendJSON(w, http.StatusOK, list)
}

// handleCreateRule handles POST /api/v1/rules
func (s *Server) handleCreateRule(w http.ResponseWriter, r *http.Request) {
	var req RuleRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	rl := &rule.Rule{
		Kind:    req.Kind,
		Name:    req.Name,
		Variant: template.Variant(req.Variant),
		Input:   req.Input,
		Active:  req.Active == nil || *req.Active,
	}
	if err := s.deps.Rules.Create(r.Context(), rl); err != nil {
		s.sendDomainError(w, err, "create rule")
		return
	}

	s.logger.Info("rule created", "id", rl.ID, "kind", rl.Kind)
	sendJSON(w, http.StatusCreated, rl)
}

func (s *Server) loadRule(w http.ResponseWriter, r *http.Request) *rule.Rule {
	rl, err := s.deps.Rules.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.sendDomainError(w, err, "get rule")
		return nil
	}
	if rl == nil {
		sendError(w, http.StatusNotFound, "Rule not found")
		return nil
	}
	return rl
}

// handleGetRule handles GET /api/v1/rules/{id}
func (s *Server) handleGetRule(w http.ResponseWriter, r *http.Request) {
	if rl := s.loadRule(w, r); rl != nil {
		sendJSON(w, http.StatusOK, rl)
	}
}

// handleUpdateRule handles PUT /api/v1/rules/{id}. The kind is fixed.
func (s *Server) handleUpdateRule(w http.ResponseWriter, r *http.Request) {
	rl := s.loadRule(w, r)
	if rl == nil {
		return
	}

	var req RuleRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if req.Name != "" {
		rl.Name = req.Name
	}
	if req.Variant != "" {
		rl.Variant = template.Variant(req.Variant)
	}
	if req.Input != (template.Input{}) {
		rl.Input = req.Input
	}
	if req.Active != nil {
		rl.Active = *req.Active
	}

	if err := s.deps.Rules.Update(r.Context(), rl); err != nil {
		s.sendDomainError(w, err, "update rule")
		return
	}
	sendJSON(w, http.StatusOK, rl)
}

// handleDeleteRule handles DELETE /api/v1/rules/{id}
func (s *Server) handleDeleteRule(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Rules.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.sendDomainError(w, err, "delete rule")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleToggleRule handles POST /api/v1/rules/{id}/toggle
func (s *Server) handleToggleRule(w http.ResponseWriter, r *http.Request) {
	rl, err := s.deps.Rules.Toggle(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.sendDomainError(w, err, "toggle rule")
		return
	}

	s.logger.Info("rule toggled", "id", rl.ID, "active", rl.Active)
	sendJSON(w, http.StatusOK, rl)
}

// handleRuleDefaults handles GET /api/v1/rules/defaults/{kind}
func (s *Server) handleRuleDefaults(w http.ResponseWriter, r *http.Request) {
	kind := rule.Kind(chi.URLParam(r, "kind"))
	if !kind.Valid() {
		sendError(w, http.StatusNotFound, "Unknown rule kind")
		return
	}
	sendJSON(w, http.StatusOK, RuleDefaultsResponse{
		Kind:  kind,
		Title: rule.Title(kind),
		Input: rule.Defaults(kind),
	})
}
