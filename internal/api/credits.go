package api

import (
	"net/http"

	"github.com/foxzi/postcard/internal/credits"
)

// CreditsResponse is the response for the credits endpoints
type CreditsResponse struct {
	Total       int64          `json:"total"`
	Used        int64          `json:"used"`
	Remaining   int64          `json:"remaining"`
	PercentUsed float64        `json:"percent_used"`
	Tiers       []credits.Tier `json:"tiers"`
}

// GrantRequest is the request body for POST /credits/grant. Either an
// amount or a tier ID is given.
type GrantRequest struct {
	Amount int64  `json:"amount,omitempty"`
	Tier   string `json:"tier,omitempty"`
}

func creditsResponse(b credits.Balance) CreditsResponse {
	return CreditsResponse{
		Total:       b.Total,
		Used:        b.Used,
		Remaining:   b.Remaining(),
		PercentUsed: b.PercentUsed(),
		Tiers:       credits.Tiers(),
	}
}

// handleCredits handles GET /api/v1/credits
func (s *Server) handleCredits(w http.ResponseWriter, r *http.Request) {
	b, err := s.deps.Credits.Balance(r.Context())
	if err != nil {
		s.sendDomainError(w, err, "get credits")
		return
	}
	sendJSON(w, http.StatusOK, creditsResponse(b))
}

// handleGrantCredits handles POST /api/v1/credits/grant
func (s *Server) handleGrantCredits(w http.ResponseWriter, r *http.Request) {
	var req GrantRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	var (
		b   credits.Balance
		err error
	)
	if req.Tier != "" {
		b, err = s.deps.Credits.GrantTier(r.Context(), req.Tier)
	} else {
		b, err = s.deps.Credits.Grant(r.Context(), req.Amount)
	}
	if err != nil {
		s.sendDomainError(w, err, "grant credits")
		return
	}

	s.logger.Info("credits granted", "amount", req.Amount, "tier", req.Tier, "remaining", b.Remaining())
	sendJSON(w, http.StatusOK, creditsResponse(b))
}
