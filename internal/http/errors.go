package api

import (
	"errors"
	"net/http"

	"venue-vote/internal/domain/recipient"
	"venue-vote/internal/domain/session"
	"venue-vote/internal/notify"
	"venue-vote/internal/platform/apperr"
)

func errorResponse(w http.ResponseWriter, err error) {
	appErr := mapError(err)
	if appErr.StatusCode() >= http.StatusInternalServerError {
		slogLogger.Error("request failed", "code", appErr.Code, "error", err)
	}
	writeJSON(w, appErr.StatusCode(), appErr.Body())
}

func mapError(err error) *apperr.AppError {
	if err == nil {
		return apperr.Internal("internal_error", "internal server error", nil)
	}

	var appErr *apperr.AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	switch {
	case errors.Is(err, session.ErrInvalidInput):
		return apperr.BadRequest("invalid_input", err.Error(), err)
	case errors.Is(err, session.ErrNotFound):
		return apperr.NotFound("session_not_found", "session not found", err)
	case errors.Is(err, session.ErrInvalidCandidate):
		return apperr.BadRequest("invalid_candidate", "candidate does not belong to session", err)
	case errors.Is(err, session.ErrSessionNotVotable):
		return apperr.Conflict("session_not_votable", "session is not active", err)
	case errors.Is(err, recipient.ErrInvalidSubscription):
		return apperr.BadRequest("invalid_subscription", "subscription needs an https endpoint and p256dh/auth keys", err)
	case errors.Is(err, recipient.ErrInvalidChat):
		return apperr.BadRequest("invalid_input", "invalid chat id", err)
	case errors.Is(err, notify.ErrInvalidMessage):
		return apperr.BadRequest("invalid_message", err.Error(), err)
	case errors.Is(err, notify.ErrNoRecipients):
		return apperr.NotFound("no_recipients", "no active recipients", err)
	default:
		return apperr.Internal("internal_error", http.StatusText(http.StatusInternalServerError), err)
	}
}
