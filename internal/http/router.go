package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"

	"venue-vote/internal/domain/recipient"
	"venue-vote/internal/domain/session"
	"venue-vote/internal/live"
	"venue-vote/internal/notify"
	"venue-vote/internal/platform/events"
	jwtpkg "venue-vote/internal/platform/jwt"
	"venue-vote/internal/worker"
)

type Sweeper interface {
	Sweep(ctx context.Context) worker.Report
}

type Broadcaster interface {
	Dispatch(ctx context.Context, recipients []recipient.Recipient, msg notify.Message) (notify.Result, error)
	Configured() bool
}

// TelegramReplier answers bot commands in the chat they came from.
type TelegramReplier interface {
	SendText(ctx context.Context, chatID int64, text string) error
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type Deps struct {
	Sessions   *session.Service
	Recipients *recipient.Service
	Scheduler  Sweeper
	Dispatcher Broadcaster
	Catalog    *notify.Catalog
	Telegram   TelegramReplier
	JWT        *jwtpkg.Manager
	Hub        *live.Hub
	Events     chan<- events.Event
	Store      Pinger

	OperatorPasswordHash  string
	TelegramWebhookSecret string
	VAPIDPublicKey        string
	VoteRatePerMinute     int
	VoteRateBurst         int
}

type Handler struct {
	sessions      *session.Service
	recipients    *recipient.Service
	scheduler     Sweeper
	dispatcher    Broadcaster
	catalog       *notify.Catalog
	telegram      TelegramReplier
	jwtMgr        *jwtpkg.Manager
	hub           *live.Hub
	eventCh       chan<- events.Event
	store         Pinger
	operatorHash  []byte
	webhookSecret string
	vapidKey      string
	now           func() time.Time
}

func NewRouter(d Deps) http.Handler {
	h := &Handler{
		sessions:      d.Sessions,
		recipients:    d.Recipients,
		scheduler:     d.Scheduler,
		dispatcher:    d.Dispatcher,
		catalog:       d.Catalog,
		telegram:      d.Telegram,
		jwtMgr:        d.JWT,
		hub:           d.Hub,
		eventCh:       d.Events,
		store:         d.Store,
		operatorHash:  []byte(d.OperatorPasswordHash),
		webhookSecret: d.TelegramWebhookSecret,
		vapidKey:      d.VAPIDPublicKey,
		now:           time.Now,
	}

	perMinute, burst := d.VoteRatePerMinute, d.VoteRateBurst
	if perMinute <= 0 {
		perMinute = 10
	}
	if burst <= 0 {
		burst = 3
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(RequestLogger)
	r.Use(CORSMiddleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/ready", h.handleReady)
	r.Get("/swagger/*", httpSwagger.WrapHandler)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	r.Route("/api/v1", func(r chi.Router) {
		// long lived, outside the request timeout
		r.Get("/sessions/{id}/live", h.handleLive)

		r.Group(func(r chi.Router) {
			r.Use(chimw.Timeout(60 * time.Second))

			r.Post("/auth/token", h.handleToken)

			r.Post("/sessions", h.handleCreateSession)
			r.Get("/sessions/{id}", h.handleGetSession)
			r.With(VoteRateLimit(rate.Every(time.Minute/time.Duration(perMinute)), burst)).
				Post("/sessions/{id}/votes", h.handleVote)

			r.Post("/notifications/subscribe", h.handleSubscribe)
			r.Get("/notifications/vapid-key", h.handleVAPIDKey)
			r.Post("/telegram/webhook", h.handleTelegramWebhook)

			r.Group(func(r chi.Router) {
				r.Use(OperatorOnly(h.jwtMgr))

				r.Get("/scheduler/sweep", h.handleSweep)
				r.Post("/scheduler/sweep", h.handleSweep)
				r.Post("/notifications/broadcast", h.handleBroadcast)
				r.Post("/sessions/{id}/close", h.handleCloseSession)
			})
		})
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (h *Handler) handleReady(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error":   "store_unavailable",
			"message": "store not configured",
		})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error":   "store_unavailable",
			"message": "store not ready",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
