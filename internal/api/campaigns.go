package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/foxzi/postcard/internal/campaign"
)

// ScheduleRequest is the request body for POST /campaigns/schedule
type ScheduleRequest struct {
	campaign.Draft
	ScheduledAt time.Time `json:"scheduled_at"`
}

// CampaignListResponse is the response for GET /campaigns
type CampaignListResponse struct {
	Campaigns []*campaign.Campaign `json:"campaigns"`
	Total     int                  `json:"total"`
}

// CampaignPreviewResponse is the response for POST /campaigns/preview
type CampaignPreviewResponse struct {
	HTML string `json:"html"`
}

// handleListCampaigns handles GET /api/v1/campaigns
func (s *Server) handleListCampaigns(w http.ResponseWriter, r *http.Request) {
	filter := campaign.ListFilter{
		Status: campaign.Status(r.URL.Query().Get("status")),
		Limit:  queryInt(r, "limit"),
	}

	list, err := s.deps.Campaigns.List(r.Context(), filter)
	if err != nil {
		s.sendDomainError(w, err, "list campaigns")
		return
	}
	if list == nil {
		list = []*campaign.Campaign{}
	}
	sendJSON(w, http.StatusOK, CampaignListResponse{Campaigns: list, Total: len(list)})
}

// handlePreviewCampaign handles POST /api/v1/campaigns/preview
func (s *Server) handlePreviewCampaign(w http.ResponseWriter, r *http.Request) {
	var d campaign.Draft
	if !decodeJSON(w, r, &d) {
		return
	}
	sendJSON(w, http.StatusOK, CampaignPreviewResponse{HTML: s.deps.Composer.Preview(d, s.now())})
}

// handleSendCampaign handles POST /api/v1/campaigns/send
func (s *Server) handleSendCampaign(w http.ResponseWriter, r *http.Request) {
	var d campaign.Draft
	if !decodeJSON(w, r, &d) {
		return
	}

	camp, err := s.deps.Composer.SendNow(r.Context(), d)
	if err != nil {
		if camp != nil {
			s.logger.Error("campaign sent but not saved", "campaign_id", camp.ID, "error", err)
		}
		s.sendDomainError(w, err, "send campaign")
		return
	}
	sendJSON(w, http.StatusCreated, camp)
}

// handleScheduleCampaign handles POST /api/v1/campaigns/schedule
func (s *Server) handleScheduleCampaign(w http.ResponseWriter, r *http.Request) {
	var req ScheduleRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	camp, err := s.deps.Composer.Schedule(r.Context(), req.Draft, req.ScheduledAt)
	if err != nil {
		s.sendDomainError(w, err, "schedule campaign")
		return
	}
	sendJSON(w, http.StatusCreated, camp)
}

// handleGetCampaign handles GET /api/v1/campaigns/{id}
func (s *Server) handleGetCampaign(w http.ResponseWriter, r *http.Request) {
	camp, err := s.deps.Campaigns.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.sendDomainError(w, err, "get campaign")
		return
	}
	if camp == nil {
		sendError(w, http.StatusNotFound, "Campaign not found")
		return
	}
	sendJSON(w, http.StatusOK, camp)
}

// handleCancelCampaign handles POST /api/v1/campaigns/{id}/cancel
func (s *Server) handleCancelCampaign(w http.ResponseWriter, r *http.Request) {
	camp, err := s.deps.Composer.Cancel(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.sendDomainError(w, err, "cancel campaign")
		return
	}

	s.logger.Info("campaign cancelled", "campaign_id", camp.ID)
	sendJSON(w, http.StatusOK, camp)
}
