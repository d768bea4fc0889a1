package api

import (
	"io"
	"net/http"

	"github.com/foxzi/postcard/internal/stripe"
)

// maxWebhookSize bounds Stripe event payloads
const maxWebhookSize = 64 << 10

// handleStripeWebhook handles POST /webhooks/stripe
func (s *Server) handleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	if s.deps.Webhooks == nil || s.deps.Verifier == nil {
		sendError(w, http.StatusNotFound, "Stripe webhooks are not enabled")
		return
	}

	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookSize))
	if err != nil {
		sendError(w, http.StatusRequestEntityTooLarge, "Payload too large")
		return
	}

	if err := s.deps.Verifier.Verify(payload, r.Header.Get(stripe.SignatureHeader)); err != nil {
		s.logger.Warn("stripe signature rejected", "error", err)
		sendError(w, http.StatusBadRequest, "Invalid signature")
		return
	}

	ev, err := stripe.ParseEvent(payload)
	if err != nil {
		sendError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := s.deps.Webhooks.Handle(r.Context(), ev)
	if err != nil {
		s.logger.Error("failed to handle stripe event", "event_id", ev.ID, "type", ev.Type, "error", err)
		sendError(w, http.StatusInternalServerError, "Failed to handle event")
		return
	}
	sendJSON(w, http.StatusOK, result)
}
