package api

import (
	"encoding/json"
	"net/http"

	"venue-vote/internal/domain/recipient"
	"venue-vote/internal/notify"
	"venue-vote/internal/platform/apperr"
)

type subscribeRequest struct {
	Endpoint string `json:"endpoint"`
	Keys     struct {
		P256dh string `json:"p256dh"`
		Auth   string `json:"auth"`
	} `json:"keys"`
}

type broadcastRequest struct {
	Kind notify.Kind `json:"kind"`
	Text string      `json:"text"`
}

type broadcastResponse struct {
	Sent   int `json:"sent"`
	Failed int `json:"failed"`
	Total  int `json:"total"`
}

// @Summary     Register a web push subscription
// @Tags        notifications
// @Accept      json
// @Produce     json
// @Param       request  body      subscribeRequest  true  "Browser PushSubscription"
// @Success     201      {object}  map[string]bool
// @Success     200      {object}  map[string]bool   "already subscribed"
// @Failure     400      {object}  map[string]string  "invalid subscription"
// @Router      /api/v1/notifications/subscribe [post]
func (h *Handler) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	var req subscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorResponse(w, apperr.BadRequest("invalid_input", "invalid body", err))
		return
	}

	created, err := h.recipients.Subscribe(r.Context(), recipient.PushSubscription{
		Endpoint: req.Endpoint,
		Keys:     recipient.PushKeys{P256dh: req.Keys.P256dh, Auth: req.Keys.Auth},
	})
	if err != nil {
		errorResponse(w, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, map[string]bool{"success": true, "created": created})
}

// @Summary     VAPID public key for browser subscriptions
// @Tags        notifications
// @Produce     json
// @Success     200  {object}  map[string]string
// @Failure     503  {object}  map[string]string  "push not configured"
// @Router      /api/v1/notifications/vapid-key [get]
func (h *Handler) handleVAPIDKey(w http.ResponseWriter, r *http.Request) {
	if h.vapidKey == "" {
		errorResponse(w, apperr.Unavailable("push_disabled", "web push is not configured", nil))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"publicKey": h.vapidKey})
}

// @Summary     Broadcast a test or custom message to every channel
// @Tags        notifications
// @Security    BearerAuth
// @Accept      json
// @Produce     json
// @Param       request  body      broadcastRequest  true  "Message"
// @Success     200      {object}  broadcastResponse
// @Failure     400      {object}  map[string]string  "invalid message"
// @Failure     401      {object}  map[string]string  "unauthorized"
// @Failure     404      {object}  map[string]string  "no recipients"
// @Failure     503      {object}  map[string]string  "no channel configured"
// @Router      /api/v1/notifications/broadcast [post]
func (h *Handler) handleBroadcast(w http.ResponseWriter, r *http.Request) {
	var req broadcastRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorResponse(w, apperr.BadRequest("invalid_input", "invalid body", err))
		return
	}

	var msg notify.Message
	switch req.Kind {
	case notify.KindTest, "":
		msg = h.catalog.Test()
	case notify.KindCustom:
		msg = h.catalog.Custom(req.Text)
	default:
		errorResponse(w, apperr.BadRequest("invalid_message", "kind must be test or custom", nil))
		return
	}
	if err := msg.Validate(); err != nil {
		errorResponse(w, err)
		return
	}

	if !h.dispatcher.Configured() {
		errorResponse(w, apperr.Unavailable("no_channels", "no notification channel configured", nil))
		return
	}

	recips, err := h.recipients.ActiveRecipients(r.Context())
	if err != nil {
		errorResponse(w, err)
		return
	}

	res, err := h.dispatcher.Dispatch(r.Context(), recips, msg)
	if err != nil {
		errorResponse(w, err)
		return
	}

	slogLogger.Info("broadcast sent",
		"kind", msg.Kind,
		"sent", res.Sent,
		"failed", res.Failed,
		"operator", operatorFromCtx(r),
	)
	writeJSON(w, http.StatusOK, broadcastResponse{Sent: res.Sent, Failed: res.Failed, Total: res.Total()})
}
