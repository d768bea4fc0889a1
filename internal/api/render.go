package api

import (
	"net/http"
	"time"

	"github.com/foxzi/postcard/internal/metrics"
	"github.com/foxzi/postcard/internal/template"
)

// PreviewRequest is the request body for POST /preview
type PreviewRequest struct {
	Input   template.Input `json:"input"`
	Variant string         `json:"variant"`
}

// PreviewResponse carries rendered HTML and its text alternative
type PreviewResponse struct {
	Subject string `json:"subject"`
	HTML    string `json:"html"`
	Text    string `json:"text"`
}

// PlaceholderInfo describes a placeholder token
type PlaceholderInfo struct {
	Token       string `json:"token"`
	Description string `json:"description"`
	Example     string `json:"example"`
}

// HealthResponse is the response for GET /health
type HealthResponse struct {
	Status string `json:"status"`
	Uptime string `json:"uptime"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	sendJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
		Uptime: time.Since(s.startTime).Round(time.Second).String(),
	})
}

// preview renders input with sample personalization
func (s *Server) preview(input template.Input, variant template.Variant) PreviewResponse {
	rc := template.PreviewContext(s.now())
	metrics.IncRenders(string(variant))
	return PreviewResponse{
		Subject: template.SubstitutePlaceholders(input.Subject),
		HTML:    template.RenderWith(input, variant, rc),
		Text:    template.RenderText(input, rc),
	}
}

// handlePreview handles POST /api/v1/preview
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	var req PreviewRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	sendJSON(w, http.StatusOK, s.preview(req.Input, template.ParseVariant(req.Variant)))
}

// handleVariants handles GET /api/v1/variants
func (s *Server) handleVariants(w http.ResponseWriter, r *http.Request) {
	sendJSON(w, http.StatusOK, map[string]any{
		"variants": template.Variants(),
		"default":  template.DefaultVariant,
	})
}

// handlePlaceholders handles GET /api/v1/placeholders
func (s *Server) handlePlaceholders(w http.ResponseWriter, r *http.Request) {
	tokens := template.Tokens()
	previews := template.PreviewValues()
	list := make([]PlaceholderInfo, len(tokens))
	for i, tok := range tokens {
		list[i] = PlaceholderInfo{
			Token:       string(tok),
			Description: template.TokenDescriptions[tok],
			Example:     previews[tok],
		}
	}
	sendJSON(w, http.StatusOK, list)
}
