package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"

	"venue-vote/internal/domain/session"
	"venue-vote/internal/platform/apperr"
	"venue-vote/internal/platform/events"
	"venue-vote/internal/worker"
)

type createSessionRequest struct {
	Candidates []session.Candidate `json:"candidates"`
	Location   string              `json:"location"`
	GroupName  string              `json:"groupName"`
	CreatedBy  string              `json:"createdBy"`
	Deadline   *time.Time          `json:"deadline,omitempty"`
}

type createSessionResponse struct {
	SessionID string `json:"sessionId"`
	VoteURL   string `json:"voteUrl"`
}

type tallyResponse struct {
	VoteCounts  map[int]int `json:"voteCounts"`
	TotalVoters int         `json:"totalVoters"`
}

type sessionResponse struct {
	*session.Session
	VoteCounts  map[int]int `json:"voteCounts"`
	TotalVoters int         `json:"totalVoters"`
	VoteURL     string      `json:"voteUrl"`
}

type voteRequest struct {
	VoterID     string `json:"voterId"`
	DisplayName string `json:"displayName"`
	CandidateID int    `json:"candidateId"`
}

func (h *Handler) toSessionResponse(v session.View) sessionResponse {
	return sessionResponse{
		Session:     v.Session,
		VoteCounts:  v.VoteCounts,
		TotalVoters: v.TotalVoters,
		VoteURL:     h.catalog.VoteURL(v.Session.ID),
	}
}

// @Summary     Create a voting session
// @Tags        sessions
// @Accept      json
// @Produce     json
// @Param       request  body      createSessionRequest  true  "Session payload"
// @Success     201      {object}  createSessionResponse
// @Failure     400      {object}  map[string]string  "invalid input"
// @Failure     500      {object}  map[string]string  "server error"
// @Router      /api/v1/sessions [post]
func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorResponse(w, apperr.BadRequest("invalid_input", "invalid body", err))
		return
	}

	s, err := h.sessions.Create(r.Context(), session.CreateInput{
		Candidates: req.Candidates,
		Location:   req.Location,
		GroupName:  req.GroupName,
		CreatedBy:  req.CreatedBy,
		Deadline:   req.Deadline,
	})
	if err != nil {
		errorResponse(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, createSessionResponse{
		SessionID: s.ID,
		VoteURL:   h.catalog.VoteURL(s.ID),
	})
}

// @Summary     Get a session with its tally
// @Tags        sessions
// @Produce     json
// @Param       id   path      string  true  "Session ID"
// @Success     200  {object}  sessionResponse
// @Failure     404  {object}  map[string]string  "not found"
// @Router      /api/v1/sessions/{id} [get]
func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	v, err := h.sessions.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		errorResponse(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.toSessionResponse(v))
}

// @Summary     Cast or change a vote
// @Tags        votes
// @Accept      json
// @Produce     json
// @Param       id       path      string       true  "Session ID"
// @Param       request  body      voteRequest  true  "Vote payload"
// @Success     200      {object}  tallyResponse
// @Failure     400      {object}  map[string]string  "invalid input or candidate"
// @Failure     404      {object}  map[string]string  "not found"
// @Failure     409      {object}  map[string]string  "session not active"
// @Failure     429      {object}  map[string]string  "rate limited"
// @Router      /api/v1/sessions/{id}/votes [post]
func (h *Handler) handleVote(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req voteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorResponse(w, apperr.BadRequest("invalid_input", "invalid body", err))
		return
	}

	voterID := strings.TrimSpace(req.VoterID)
	annotate(r, "voter_id", voterID, "candidate_id", req.CandidateID)

	v, err := h.sessions.CastVote(r.Context(), id, voterID, strings.TrimSpace(req.DisplayName), req.CandidateID)
	if err != nil {
		errorResponse(w, err)
		return
	}

	tally := tallyResponse{VoteCounts: v.VoteCounts, TotalVoters: v.TotalVoters}
	if h.hub != nil {
		h.hub.Publish(id, tally)
	}
	worker.Emit(h.eventCh, events.Event{
		Type:        events.VoteCast,
		SessionID:   id,
		OccurredAt:  h.now().UTC(),
		VoterID:     voterID,
		CandidateID: req.CandidateID,
		TotalVoters: v.TotalVoters,
	})

	writeJSON(w, http.StatusOK, tally)
}

// @Summary     Stream tally updates
// @Description Websocket; each accepted vote pushes {voteCounts, totalVoters}.
// @Tags        votes
// @Param       id   path  string  true  "Session ID"
// @Success     101
// @Failure     404  {object}  map[string]string  "not found"
// @Router      /api/v1/sessions/{id}/live [get]
func (h *Handler) handleLive(w http.ResponseWriter, r *http.Request) {
	if h.hub == nil {
		errorResponse(w, apperr.Unavailable("live_unavailable", "live updates are disabled", nil))
		return
	}
	id := chi.URLParam(r, "id")
	v, err := h.sessions.Get(r.Context(), id)
	if err != nil {
		errorResponse(w, err)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: []string{"*"}})
	if err != nil {
		return
	}
	h.hub.Serve(r.Context(), conn, id, tallyResponse{VoteCounts: v.VoteCounts, TotalVoters: v.TotalVoters})
}

// @Summary     Close a session without announcing a winner
// @Tags        sessions
// @Security    BearerAuth
// @Produce     json
// @Param       id   path      string  true  "Session ID"
// @Success     200  {object}  sessionResponse
// @Failure     401  {object}  map[string]string  "unauthorized"
// @Failure     404  {object}  map[string]string  "not found"
// @Failure     409  {object}  map[string]string  "session not active"
// @Router      /api/v1/sessions/{id}/close [post]
func (h *Handler) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	s, err := h.sessions.Close(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		errorResponse(w, err)
		return
	}
	slogLogger.Info("session closed", "session_id", s.ID, "operator", operatorFromCtx(r))
	writeJSON(w, http.StatusOK, h.toSessionResponse(session.NewView(s)))
}
