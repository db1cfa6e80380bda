package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"venue-vote/internal/domain/recipient"
	"venue-vote/internal/domain/session"
	"venue-vote/internal/notify"
	"venue-vote/internal/platform/events"
	jwtpkg "venue-vote/internal/platform/jwt"
	"venue-vote/internal/repository/memory"
	"venue-vote/internal/worker"
)

const operatorPassword = "pass123"

type stubSweeper struct {
	mu     sync.Mutex
	calls  int
	report worker.Report
}

func (s *stubSweeper) Sweep(ctx context.Context) worker.Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.report
}

func (s *stubSweeper) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type recordingSender struct {
	mu   sync.Mutex
	to   []string
	msgs []notify.Message
}

func (s *recordingSender) Send(ctx context.Context, to recipient.Recipient, msg notify.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.to = append(s.to, to.Address)
	s.msgs = append(s.msgs, msg)
	return nil
}

func (s *recordingSender) sent() ([]string, []notify.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.to...), append([]notify.Message(nil), s.msgs...)
}

type recordingReplier struct {
	mu      sync.Mutex
	replies map[int64][]string
}

func (r *recordingReplier) SendText(ctx context.Context, chatID int64, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.replies == nil {
		r.replies = make(map[int64][]string)
	}
	r.replies[chatID] = append(r.replies[chatID], text)
	return nil
}

func (r *recordingReplier) last(chatID int64) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	rs := r.replies[chatID]
	if len(rs) == 0 {
		return ""
	}
	return rs[len(rs)-1]
}

type testEnv struct {
	handler    http.Handler
	server     *httptest.Server
	sessions   *memory.SessionRepo
	recipients *memory.RecipientRepo
	sweeper    *stubSweeper
	sender     *recordingSender
	replier    *recordingReplier
	events     chan events.Event
}

func setupServer(t *testing.T, mutate func(*Deps)) *testEnv {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(operatorPassword), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}

	env := &testEnv{
		sessions:   memory.NewSessionRepo(),
		recipients: memory.NewRecipientRepo(),
		sweeper:    &stubSweeper{report: worker.Report{Checked: 2}},
		sender:     &recordingSender{},
		replier:    &recordingReplier{},
		events:     make(chan events.Event, 100),
	}

	dispatcher := notify.NewDispatcher(0, 0)
	dispatcher.Register(recipient.ChannelTelegram, env.sender)

	deps := Deps{
		Sessions:              session.NewService(env.sessions),
		Recipients:            recipient.NewService(env.recipients),
		Scheduler:             env.sweeper,
		Dispatcher:            dispatcher,
		Catalog:               notify.NewCatalog("https://vote.test"),
		Telegram:              env.replier,
		JWT:                   jwtpkg.NewManager("secret", "test-issuer"),
		Events:                env.events,
		Store:                 env.sessions,
		OperatorPasswordHash:  string(hash),
		TelegramWebhookSecret: "hook-secret",
		VAPIDPublicKey:        "BPublicKey",
		VoteRatePerMinute:     10,
		VoteRateBurst:         3,
	}
	if mutate != nil {
		mutate(&deps)
	}

	env.handler = NewRouter(deps)
	env.server = httptest.NewServer(env.handler)
	t.Cleanup(env.server.Close)
	return env
}

func doJSON(t *testing.T, method, url, token string, body any, headers map[string]string) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeInto(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func decodeError(t *testing.T, resp *http.Response) map[string]string {
	t.Helper()
	var payload map[string]string
	decodeInto(t, resp, &payload)
	return payload
}

func expectStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	if resp.StatusCode != want {
		t.Fatalf("%s %s: expected %d, got %d", resp.Request.Method, resp.Request.URL.Path, want, resp.StatusCode)
	}
}

func createSession(t *testing.T, env *testEnv) string {
	t.Helper()
	resp := doJSON(t, http.MethodPost, env.server.URL+"/api/v1/sessions", "", createSessionRequest{
		Candidates: []session.Candidate{
			{ID: 1, Name: "Fish House", Category: session.CategoryFish},
			{ID: 2, Name: "Pizza Place", Category: session.CategoryPizza},
		},
		GroupName: "Friday crew",
	}, nil)
	expectStatus(t, resp, http.StatusCreated)

	var created createSessionResponse
	decodeInto(t, resp, &created)
	if created.SessionID == "" {
		t.Fatalf("session id missing")
	}
	if created.VoteURL != "https://vote.test/vote/"+created.SessionID {
		t.Fatalf("unexpected vote url %q", created.VoteURL)
	}
	return created.SessionID
}

func vote(t *testing.T, env *testEnv, sessionID, voterID string, candidateID int) *http.Response {
	t.Helper()
	return doJSON(t, http.MethodPost, env.server.URL+"/api/v1/sessions/"+sessionID+"/votes", "",
		voteRequest{VoterID: voterID, DisplayName: strings.ToUpper(voterID), CandidateID: candidateID},
		map[string]string{"X-Forwarded-For": "client-" + voterID},
	)
}

func operatorToken(t *testing.T, env *testEnv) string {
	t.Helper()
	resp := doJSON(t, http.MethodPost, env.server.URL+"/api/v1/auth/token", "", tokenRequest{Password: operatorPassword}, nil)
	expectStatus(t, resp, http.StatusOK)
	var payload tokenResponse
	decodeInto(t, resp, &payload)
	if payload.Token == "" {
		t.Fatalf("token missing")
	}
	return payload.Token
}

func telegramCommand(chatID int64, firstName, text string) map[string]any {
	return map[string]any{
		"update_id": 1,
		"message": map[string]any{
			"message_id": 1,
			"date":       0,
			"text":       text,
			"chat":       map[string]any{"id": chatID, "type": "private"},
			"from":       map[string]any{"id": chatID, "is_bot": false, "first_name": firstName},
			"entities": []map[string]any{
				{"type": "bot_command", "offset": 0, "length": len(strings.Fields(text)[0])},
			},
		},
	}
}

func TestSessionVotingFlow(t *testing.T) {
	env := setupServer(t, nil)
	id := createSession(t, env)

	expectStatus(t, vote(t, env, id, "v1", 1), http.StatusOK)
	expectStatus(t, vote(t, env, id, "v2", 2), http.StatusOK)

	// changing a vote replaces it
	resp := vote(t, env, id, "v1", 2)
	expectStatus(t, resp, http.StatusOK)
	var tally tallyResponse
	decodeInto(t, resp, &tally)
	if tally.TotalVoters != 2 || tally.VoteCounts[2] != 2 || tally.VoteCounts[1] != 0 {
		t.Fatalf("unexpected tally %+v", tally)
	}

	resp = doJSON(t, http.MethodGet, env.server.URL+"/api/v1/sessions/"+id, "", nil, nil)
	expectStatus(t, resp, http.StatusOK)
	var got map[string]any
	decodeInto(t, resp, &got)
	if got["status"] != string(session.StatusActive) || got["totalVoters"] != float64(2) {
		t.Fatalf("unexpected session payload %v", got)
	}
	if got["groupName"] != "Friday crew" || got["location"] != "Not specified" {
		t.Fatalf("defaults not applied: %v", got)
	}

	select {
	case ev := <-env.events:
		if ev.Type != events.VoteCast || ev.SessionID != id {
			t.Fatalf("unexpected event %+v", ev)
		}
	default:
		t.Fatalf("expected a vote event")
	}
}

func TestVoteErrors(t *testing.T) {
	env := setupServer(t, nil)
	id := createSession(t, env)

	resp := vote(t, env, id, "v1", 99)
	expectStatus(t, resp, http.StatusBadRequest)
	if e := decodeError(t, resp); e["error"] != "invalid_candidate" {
		t.Fatalf("unexpected error %v", e)
	}

	resp = vote(t, env, "missing", "v2", 1)
	expectStatus(t, resp, http.StatusNotFound)
	if e := decodeError(t, resp); e["error"] != "session_not_found" {
		t.Fatalf("unexpected error %v", e)
	}

	resp = vote(t, env, id, "", 1)
	expectStatus(t, resp, http.StatusBadRequest)

	resp = doJSON(t, http.MethodPost, env.server.URL+"/api/v1/sessions", "", createSessionRequest{}, nil)
	expectStatus(t, resp, http.StatusBadRequest)
	if e := decodeError(t, resp); e["error"] != "invalid_input" {
		t.Fatalf("unexpected error %v", e)
	}

	resp = doJSON(t, http.MethodGet, env.server.URL+"/api/v1/sessions/missing", "", nil, nil)
	expectStatus(t, resp, http.StatusNotFound)
}

func TestVoteRateLimit(t *testing.T) {
	env := setupServer(t, nil)
	id := createSession(t, env)

	for i := 0; i < 3; i++ {
		expectStatus(t, vote(t, env, id, "v1", 1), http.StatusOK)
	}
	resp := vote(t, env, id, "v1", 2)
	expectStatus(t, resp, http.StatusTooManyRequests)
	if e := decodeError(t, resp); e["error"] != "rate_limited" {
		t.Fatalf("unexpected error %v", e)
	}

	// other clients keep their own budget
	expectStatus(t, vote(t, env, id, "v2", 2), http.StatusOK)
}

func TestOperatorRoutes(t *testing.T) {
	env := setupServer(t, nil)
	id := createSession(t, env)

	resp := doJSON(t, http.MethodPost, env.server.URL+"/api/v1/scheduler/sweep", "", nil, nil)
	expectStatus(t, resp, http.StatusUnauthorized)

	resp = doJSON(t, http.MethodPost, env.server.URL+"/api/v1/auth/token", "", tokenRequest{Password: "wrong"}, nil)
	expectStatus(t, resp, http.StatusUnauthorized)

	resp = doJSON(t, http.MethodPost, env.server.URL+"/api/v1/scheduler/sweep", "not-a-token", nil, nil)
	expectStatus(t, resp, http.StatusUnauthorized)

	viewer, err := jwtpkg.NewManager("secret", "test-issuer").Generate("someone", "viewer", time.Hour)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	resp = doJSON(t, http.MethodPost, env.server.URL+"/api/v1/scheduler/sweep", viewer, nil, nil)
	expectStatus(t, resp, http.StatusForbidden)

	token := operatorToken(t, env)

	resp = doJSON(t, http.MethodGet, env.server.URL+"/api/v1/scheduler/sweep", token, nil, nil)
	expectStatus(t, resp, http.StatusOK)
	var report worker.Report
	decodeInto(t, resp, &report)
	if report.Checked != 2 || env.sweeper.count() != 1 {
		t.Fatalf("unexpected sweep report %+v (calls %d)", report, env.sweeper.count())
	}

	resp = doJSON(t, http.MethodPost, env.server.URL+"/api/v1/sessions/"+id+"/close", token, nil, nil)
	expectStatus(t, resp, http.StatusOK)
	var closed map[string]any
	decodeInto(t, resp, &closed)
	if closed["status"] != string(session.StatusClosed) {
		t.Fatalf("expected closed session, got %v", closed["status"])
	}

	resp = vote(t, env, id, "v1", 1)
	expectStatus(t, resp, http.StatusConflict)
	if e := decodeError(t, resp); e["error"] != "session_not_votable" {
		t.Fatalf("unexpected error %v", e)
	}

	resp = doJSON(t, http.MethodPost, env.server.URL+"/api/v1/sessions/"+id+"/close", token, nil, nil)
	expectStatus(t, resp, http.StatusConflict)
}

func TestOperatorLoginDisabled(t *testing.T) {
	env := setupServer(t, func(d *Deps) { d.OperatorPasswordHash = "" })

	resp := doJSON(t, http.MethodPost, env.server.URL+"/api/v1/auth/token", "", tokenRequest{Password: operatorPassword}, nil)
	expectStatus(t, resp, http.StatusUnauthorized)
	if e := decodeError(t, resp); e["error"] != "operator_disabled" {
		t.Fatalf("unexpected error %v", e)
	}
}

func TestSweepAborted(t *testing.T) {
	env := setupServer(t, nil)
	env.sweeper.report = worker.Report{Aborted: true, Error: "no notification channel configured"}
	token := operatorToken(t, env)

	resp := doJSON(t, http.MethodPost, env.server.URL+"/api/v1/scheduler/sweep", token, nil, nil)
	expectStatus(t, resp, http.StatusServiceUnavailable)
	var report worker.Report
	decodeInto(t, resp, &report)
	if !report.Aborted || report.Error == "" {
		t.Fatalf("unexpected report %+v", report)
	}
}

func TestTelegramWebhook(t *testing.T) {
	env := setupServer(t, nil)
	url := env.server.URL + "/api/v1/telegram/webhook"
	secret := map[string]string{telegramSecretHeader: "hook-secret"}

	resp := doJSON(t, http.MethodPost, url, "", telegramCommand(42, "Ann", "/start"), nil)
	expectStatus(t, resp, http.StatusUnauthorized)

	resp = doJSON(t, http.MethodPost, url, "", telegramCommand(42, "Ann", "/start"), secret)
	expectStatus(t, resp, http.StatusOK)
	users, _ := env.recipients.ListTelegramUsers(context.Background(), true)
	if len(users) != 1 || users[0].ChatID != 42 || users[0].FirstName != "Ann" {
		t.Fatalf("unexpected users %+v", users)
	}
	if !strings.HasPrefix(env.replier.last(42), "Welcome Ann!") {
		t.Fatalf("unexpected welcome %q", env.replier.last(42))
	}

	resp = doJSON(t, http.MethodPost, url, "", telegramCommand(42, "Ann", "/help"), secret)
	expectStatus(t, resp, http.StatusOK)
	if env.replier.last(42) != telegramHelpText {
		t.Fatalf("expected help text, got %q", env.replier.last(42))
	}

	resp = doJSON(t, http.MethodPost, url, "", telegramCommand(42, "Ann", "/stop"), secret)
	expectStatus(t, resp, http.StatusOK)
	users, _ = env.recipients.ListTelegramUsers(context.Background(), true)
	if len(users) != 0 {
		t.Fatalf("expected no active users, got %+v", users)
	}

	// plain chatter is acknowledged without side effects
	plain := telegramCommand(7, "Bo", "/start")
	delete(plain["message"].(map[string]any), "entities")
	resp = doJSON(t, http.MethodPost, url, "", plain, secret)
	expectStatus(t, resp, http.StatusOK)
	all, _ := env.recipients.ListTelegramUsers(context.Background(), false)
	if len(all) != 1 {
		t.Fatalf("expected only chat 42 to be known, got %+v", all)
	}
}

func TestBroadcast(t *testing.T) {
	env := setupServer(t, nil)
	token := operatorToken(t, env)
	url := env.server.URL + "/api/v1/notifications/broadcast"

	resp := doJSON(t, http.MethodPost, url, "", broadcastRequest{Kind: notify.KindTest}, nil)
	expectStatus(t, resp, http.StatusUnauthorized)

	resp = doJSON(t, http.MethodPost, url, token, broadcastRequest{Kind: notify.KindTest}, nil)
	expectStatus(t, resp, http.StatusNotFound)
	if e := decodeError(t, resp); e["error"] != "no_recipients" {
		t.Fatalf("unexpected error %v", e)
	}

	if _, err := recipient.NewService(env.recipients).RegisterTelegram(context.Background(), 42, "Ann", ""); err != nil {
		t.Fatalf("register: %v", err)
	}

	resp = doJSON(t, http.MethodPost, url, token, broadcastRequest{Kind: notify.KindCustom, Text: "  "}, nil)
	expectStatus(t, resp, http.StatusBadRequest)

	resp = doJSON(t, http.MethodPost, url, token, broadcastRequest{Kind: "winner"}, nil)
	expectStatus(t, resp, http.StatusBadRequest)

	resp = doJSON(t, http.MethodPost, url, token, broadcastRequest{Kind: notify.KindCustom, Text: "Dinner moved to 8pm"}, nil)
	expectStatus(t, resp, http.StatusOK)
	var res broadcastResponse
	decodeInto(t, resp, &res)
	if res != (broadcastResponse{Sent: 1, Failed: 0, Total: 1}) {
		t.Fatalf("unexpected result %+v", res)
	}
	to, msgs := env.sender.sent()
	if len(msgs) != 1 || to[0] != "42" || msgs[0].Body != "Dinner moved to 8pm" {
		t.Fatalf("unexpected sends %+v to %v", msgs, to)
	}
}

func TestBroadcastWithoutChannels(t *testing.T) {
	env := setupServer(t, func(d *Deps) { d.Dispatcher = notify.NewDispatcher(0, 0) })
	token := operatorToken(t, env)

	resp := doJSON(t, http.MethodPost, env.server.URL+"/api/v1/notifications/broadcast", token, broadcastRequest{Kind: notify.KindTest}, nil)
	expectStatus(t, resp, http.StatusServiceUnavailable)
}

func TestPushSubscription(t *testing.T) {
	env := setupServer(t, nil)
	url := env.server.URL + "/api/v1/notifications/subscribe"

	sub := map[string]any{
		"endpoint": "https://push.example.com/send/abc",
		"keys":     map[string]string{"p256dh": "key", "auth": "secret"},
	}
	resp := doJSON(t, http.MethodPost, url, "", sub, nil)
	expectStatus(t, resp, http.StatusCreated)

	resp = doJSON(t, http.MethodPost, url, "", sub, nil)
	expectStatus(t, resp, http.StatusOK)

	resp = doJSON(t, http.MethodPost, url, "", map[string]any{"endpoint": "http://insecure.example.com"}, nil)
	expectStatus(t, resp, http.StatusBadRequest)
	if e := decodeError(t, resp); e["error"] != "invalid_subscription" {
		t.Fatalf("unexpected error %v", e)
	}

	subs, _ := env.recipients.ListPushSubscriptions(context.Background(), true)
	if len(subs) != 1 {
		t.Fatalf("expected one subscription, got %d", len(subs))
	}

	resp = doJSON(t, http.MethodGet, env.server.URL+"/api/v1/notifications/vapid-key", "", nil, nil)
	expectStatus(t, resp, http.StatusOK)
	var key map[string]string
	decodeInto(t, resp, &key)
	if key["publicKey"] != "BPublicKey" {
		t.Fatalf("unexpected key %v", key)
	}
}

func TestVAPIDKeyUnconfigured(t *testing.T) {
	env := setupServer(t, func(d *Deps) { d.VAPIDPublicKey = "" })
	resp := doJSON(t, http.MethodGet, env.server.URL+"/api/v1/notifications/vapid-key", "", nil, nil)
	expectStatus(t, resp, http.StatusServiceUnavailable)
}

func TestHealthAndReady(t *testing.T) {
	env := setupServer(t, nil)

	expectStatus(t, doJSON(t, http.MethodGet, env.server.URL+"/health", "", nil, nil), http.StatusOK)
	expectStatus(t, doJSON(t, http.MethodGet, env.server.URL+"/ready", "", nil, nil), http.StatusOK)

	noStore := setupServer(t, func(d *Deps) { d.Store = nil })
	expectStatus(t, doJSON(t, http.MethodGet, noStore.server.URL+"/ready", "", nil, nil), http.StatusServiceUnavailable)
}

func TestTelegramWelcomeEscapesName(t *testing.T) {
	env := setupServer(t, nil)
	secret := map[string]string{telegramSecretHeader: "hook-secret"}

	resp := doJSON(t, http.MethodPost, env.server.URL+"/api/v1/telegram/webhook", "", telegramCommand(9, "<Bo & Co>", "/start"), secret)
	expectStatus(t, resp, http.StatusOK)
	if got := env.replier.last(9); !strings.HasPrefix(got, "Welcome &lt;Bo &amp; Co&gt;!") {
		t.Fatalf("name not escaped in welcome: %q", got)
	}
}
