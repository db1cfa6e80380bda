package api

import (
	"encoding/json"
	"net/http"
	"time"

	"golang.org/x/crypto/bcrypt"

	"venue-vote/internal/platform/apperr"
	jwtpkg "venue-vote/internal/platform/jwt"
)

const operatorTokenTTL = 12 * time.Hour

type tokenRequest struct {
	Password string `json:"password"`
}

type tokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// @Summary     Operator login
// @Tags        auth
// @Accept      json
// @Produce     json
// @Param       request  body      tokenRequest  true  "Operator password"
// @Success     200      {object}  tokenResponse
// @Failure     401      {object}  map[string]string  "invalid credentials"
// @Router      /api/v1/auth/token [post]
func (h *Handler) handleToken(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorResponse(w, apperr.BadRequest("invalid_input", "invalid body", err))
		return
	}

	if len(h.operatorHash) == 0 {
		errorResponse(w, apperr.Unauthorized("operator_disabled", "operator login is not configured", nil))
		return
	}
	if err := bcrypt.CompareHashAndPassword(h.operatorHash, []byte(req.Password)); err != nil {
		errorResponse(w, apperr.Unauthorized("invalid_credentials", "invalid credentials", err))
		return
	}

	token, err := h.jwtMgr.Generate("operator", jwtpkg.RoleOperator, operatorTokenTTL)
	if err != nil {
		errorResponse(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{Token: token, ExpiresAt: h.now().Add(operatorTokenTTL).UTC()})
}

// @Summary     Run one scheduler sweep
// @Description Checks every active session for due reminders and winners. Safe to call from an external cron.
// @Tags        scheduler
// @Security    BearerAuth
// @Produce     json
// @Success     200  {object}  worker.Report
// @Failure     401  {object}  map[string]string  "unauthorized"
// @Failure     503  {object}  worker.Report      "sweep aborted"
// @Router      /api/v1/scheduler/sweep [post]
func (h *Handler) handleSweep(w http.ResponseWriter, r *http.Request) {
	report := h.scheduler.Sweep(r.Context())
	status := http.StatusOK
	if report.Aborted {
		status = http.StatusServiceUnavailable
	}
	slogLogger.Info("sweep triggered",
		"operator", operatorFromCtx(r),
		"checked", report.Checked,
		"events", len(report.Entries),
		"skipped", report.Skipped,
	)
	writeJSON(w, status, report)
}
