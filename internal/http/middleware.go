package api

import (
	"context"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"

	"venue-vote/internal/metrics"
	"venue-vote/internal/platform/apperr"
	jwtpkg "venue-vote/internal/platform/jwt"
)

type ctxKey string

const (
	ctxKeyOperator ctxKey = "operator"
	ctxKeyLogAttrs ctxKey = "log_attrs"
)

var slogLogger = slog.Default()

func SetLogger(l *slog.Logger) {
	if l != nil {
		slogLogger = l
	}
}

// logAttrs collects domain fields a handler learns while serving a request,
// such as the voter id from the body, for the request log line.
type logAttrs struct {
	mu    sync.Mutex
	attrs []any
}

func annotate(r *http.Request, kv ...any) {
	la, ok := r.Context().Value(ctxKeyLogAttrs).(*logAttrs)
	if !ok {
		return
	}
	la.mu.Lock()
	la.attrs = append(la.attrs, kv...)
	la.mu.Unlock()
}

// OperatorOnly admits requests carrying a valid operator bearer token.
// A missing or bad token is 401, a token for another role is 403.
func OperatorOnly(jm *jwtpkg.Manager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			scheme, token, found := strings.Cut(r.Header.Get("Authorization"), " ")
			if !found || !strings.EqualFold(scheme, "bearer") || token == "" {
				errorResponse(w, apperr.Unauthorized("missing_token", "operator token required", nil))
				return
			}

			claims, err := jm.Parse(token)
			if err != nil {
				errorResponse(w, apperr.Unauthorized("invalid_token", "invalid token", err))
				return
			}
			if claims.Role != jwtpkg.RoleOperator {
				errorResponse(w, apperr.Forbidden("forbidden", "operator role required", nil))
				return
			}

			annotate(r, "operator", claims.Subject)
			ctx := context.WithValue(r.Context(), ctxKeyOperator, claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func operatorFromCtx(r *http.Request) string {
	if v, ok := r.Context().Value(ctxKeyOperator).(string); ok {
		return v
	}
	return ""
}

// CORSMiddleware opens the API to the voting pages and the Telegram webhook.
func CORSMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type, "+telegramSecretHeader)
		h.Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		h.Set("Access-Control-Max-Age", "600")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// VoteRateLimit throttles vote casts per client address. Rejections carry
// Retry-After so voting pages can back off.
func VoteRateLimit(limit rate.Limit, burst int) func(http.Handler) http.Handler {
	limiter := newVoteLimiter(limit, burst, 10*time.Minute)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ok, wait := limiter.allow(clientIP(r), time.Now())
			if !ok {
				annotate(r, "rate_limited", true)
				w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
				errorResponse(w, apperr.TooManyRequests("rate_limited", "too many votes, slow down", nil))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequestLogger writes one line per request with the route pattern, the
// session id from the path and whatever the handler annotated.
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		la := &logAttrs{}
		r = r.WithContext(context.WithValue(r.Context(), ctxKeyLogAttrs, la))
		rw := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(rw, r)

		status := rw.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := r.URL.Path
		var sessionID string
		if rc := chi.RouteContext(r.Context()); rc != nil {
			if p := rc.RoutePattern(); p != "" {
				route = p
			}
			sessionID = rc.URLParam("id")
		}

		metrics.IncRequest(r.Method, route, status)

		attrs := []any{
			"method", r.Method,
			"path", route,
			"status", status,
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", chimw.GetReqID(r.Context()),
		}
		if sessionID != "" {
			attrs = append(attrs, "session_id", sessionID)
		}
		la.mu.Lock()
		attrs = append(attrs, la.attrs...)
		la.mu.Unlock()

		level := slog.LevelInfo
		if status >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		slogLogger.Log(r.Context(), level, "request", attrs...)
	})
}

type voteLimiter struct {
	mu        sync.Mutex
	clients   map[string]*clientLimit
	limit     rate.Limit
	burst     int
	idleTTL   time.Duration
	lastPrune time.Time
}

type clientLimit struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newVoteLimiter(limit rate.Limit, burst int, idleTTL time.Duration) *voteLimiter {
	return &voteLimiter{
		clients: make(map[string]*clientLimit),
		limit:   limit,
		burst:   burst,
		idleTTL: idleTTL,
	}
}

// allow reports whether key may vote at now and, if not, how long to wait.
func (l *voteLimiter) allow(key string, now time.Time) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastPrune) > l.idleTTL {
		for k, c := range l.clients {
			if now.Sub(c.lastSeen) > l.idleTTL {
				delete(l.clients, k)
			}
		}
		l.lastPrune = now
	}

	c, ok := l.clients[key]
	if !ok {
		c = &clientLimit{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.clients[key] = c
	}
	c.lastSeen = now

	res := c.limiter.ReserveN(now, 1)
	if !res.OK() {
		return false, l.idleTTL
	}
	if wait := res.DelayFrom(now); wait > 0 {
		res.CancelAt(now)
		return false, wait
	}
	return true, 0
}

func clientIP(r *http.Request) string {
	if xfwd := r.Header.Get("X-Forwarded-For"); xfwd != "" {
		first, _, _ := strings.Cut(xfwd, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
