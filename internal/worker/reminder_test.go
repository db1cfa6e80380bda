package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"venue-vote/internal/domain/recipient"
	"venue-vote/internal/domain/session"
	"venue-vote/internal/notify"
	"venue-vote/internal/platform/events"
	"venue-vote/internal/platform/lock"
	"venue-vote/internal/repository/memory"
)

type staticRecipients struct {
	list []recipient.Recipient
	err  error
}

func (s staticRecipients) ActiveRecipients(context.Context) ([]recipient.Recipient, error) {
	return s.list, s.err
}

type recordingNotifier struct {
	mu         sync.Mutex
	configured bool
	failFor    map[string]bool
	messages   []notify.Message
}

func (n *recordingNotifier) Configured() bool { return n.configured }

func (n *recordingNotifier) Dispatch(_ context.Context, rs []recipient.Recipient, msg notify.Message) (notify.Result, error) {
	if err := msg.Validate(); err != nil {
		return notify.Result{}, err
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, msg)
	var res notify.Result
	for _, r := range rs {
		if n.failFor[r.Address] {
			res.Failed++
		} else {
			res.Sent++
		}
	}
	return res, nil
}

func (n *recordingNotifier) count(kind notify.Kind) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, m := range n.messages {
		if m.Kind == kind {
			c++
		}
	}
	return c
}

var twoRecipients = []recipient.Recipient{
	{Channel: recipient.ChannelTelegram, Address: "1"},
	{Channel: recipient.ChannelTelegram, Address: "2"},
}

type fixture struct {
	repo     *memory.SessionRepo
	notifier *recordingNotifier
	sched    *Scheduler
	events   chan events.Event
	now      time.Time
}

func newFixture(t *testing.T, recips []recipient.Recipient) *fixture {
	t.Helper()
	f := &fixture{
		repo:     memory.NewSessionRepo(),
		notifier: &recordingNotifier{configured: true},
		events:   make(chan events.Event, 16),
		now:      time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC),
	}
	f.sched = f.newScheduler(recips, lock.NewMemory())
	return f
}

func (f *fixture) newScheduler(recips []recipient.Recipient, l lock.Locker) *Scheduler {
	s := NewScheduler(f.repo, staticRecipients{list: recips}, f.notifier, notify.NewCatalog("https://app.example.com"), l, f.events, SchedulerConfig{Timeout: 5 * time.Second, Concurrency: 2})
	s.now = func() time.Time { return f.now }
	return s
}

func (f *fixture) addSession(t *testing.T, id string, untilDeadline time.Duration, votes map[string]int) {
	t.Helper()
	deadline := f.now.Add(untilDeadline)
	s := &session.Session{
		ID:         id,
		Candidates: []session.Candidate{{ID: 1, Name: "Da Mario", Rating: 4.5, Price: "€€"}, {ID: 2, Name: "Sole", Rating: 4.0, Price: "€"}},
		Location:   "Milano",
		CreatedAt:  f.now.Add(-time.Hour),
		UpdatedAt:  f.now.Add(-time.Hour),
		Deadline:   &deadline,
		Status:     session.StatusActive,
		Votes:      map[string]int{},
		VoterNames: map[string]string{},
	}
	for voter, c := range votes {
		s.Votes[voter] = c
		s.VoterNames[voter] = voter
	}
	if _, err := f.repo.Create(context.Background(), s); err != nil {
		t.Fatalf("create %s: %v", id, err)
	}
}

func (f *fixture) get(t *testing.T, id string) *session.Session {
	t.Helper()
	s, err := f.repo.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("get %s: %v", id, err)
	}
	return s
}

func TestSweepVotingOpenFiresOnce(t *testing.T) {
	f := newFixture(t, twoRecipients)
	ctx := context.Background()
	f.addSession(t, "s1", 47*time.Hour, nil)

	r := f.sched.Sweep(ctx)
	if len(r.Entries) != 1 {
		t.Fatalf("expected one event, got %+v", r.Entries)
	}
	e := r.Entries[0]
	if e.SessionID != "s1" || e.Event != EventVotingOpen || e.Sent != 2 || e.Failed != 0 || e.Error != "" {
		t.Fatalf("unexpected entry %+v", e)
	}
	if !f.get(t, "s1").FiredReminders.Has(session.Reminder48h) {
		t.Fatalf("48h reminder not recorded")
	}

	// same instant again: already claimed
	if r := f.sched.Sweep(ctx); len(r.Entries) != 0 {
		t.Fatalf("reminder repeated: %+v", r.Entries)
	}

	// 45.9h left: outside both windows
	f.now = f.now.Add(66 * time.Minute)
	if r := f.sched.Sweep(ctx); len(r.Entries) != 0 {
		t.Fatalf("unexpected events at 45.9h: %+v", r.Entries)
	}
	if got := f.notifier.count(notify.KindVotingOpen); got != 1 {
		t.Fatalf("voting-open sent %d times", got)
	}

	ev := <-f.events
	if ev.Type != events.ReminderSent || ev.Reminder != "48h" || ev.SessionID != "s1" {
		t.Fatalf("unexpected event %+v", ev)
	}
}

func TestSweepLastCallCarriesVoterCount(t *testing.T) {
	f := newFixture(t, twoRecipients)
	f.addSession(t, "s1", 23*time.Hour, map[string]int{"v1": 1, "v2": 2, "v3": 2})

	r := f.sched.Sweep(context.Background())
	if len(r.Entries) != 1 || r.Entries[0].Event != EventLastCall {
		t.Fatalf("expected last call, got %+v", r.Entries)
	}
	if len(f.notifier.messages) != 1 {
		t.Fatalf("expected one message")
	}
	msg := f.notifier.messages[0]
	if msg.Kind != notify.KindLastCall || msg.URL != "https://app.example.com/vote/s1" {
		t.Fatalf("unexpected message %+v", msg)
	}
	s := f.get(t, "s1")
	if !s.FiredReminders.Has(session.Reminder24h) || s.FiredReminders.Has(session.Reminder48h) {
		t.Fatalf("unexpected reminders %v", s.FiredReminders.Sorted())
	}
}

func TestSweepAnnouncesWinnerAndCompletes(t *testing.T) {
	f := newFixture(t, twoRecipients)
	f.notifier.failFor = map[string]bool{"2": true}
	f.addSession(t, "s1", -time.Minute, map[string]int{"v1": 1, "v2": 2, "v3": 1})

	r := f.sched.Sweep(context.Background())
	if len(r.Entries) != 1 {
		t.Fatalf("expected winner event, got %+v", r.Entries)
	}
	e := r.Entries[0]
	if e.Event != EventWinner || e.Sent != 1 || e.Failed != 1 {
		t.Fatalf("unexpected entry %+v", e)
	}

	s := f.get(t, "s1")
	if s.Status != session.StatusCompleted {
		t.Fatalf("expected completed, got %s", s.Status)
	}
	tally := session.Tally(s)
	if tally[1] != 2 || tally[2] != 1 {
		t.Fatalf("unexpected tally %v", tally)
	}
	msg := f.notifier.messages[0]
	if msg.Kind != notify.KindWinner {
		t.Fatalf("unexpected kind %s", msg.Kind)
	}

	ev := <-f.events
	if ev.Type != events.WinnerAnnounced || ev.CandidateID != 1 || ev.TotalVoters != 3 {
		t.Fatalf("unexpected event %+v", ev)
	}

	// completed sessions are no longer swept
	if r := f.sched.Sweep(context.Background()); r.Checked != 0 || len(r.Entries) != 0 {
		t.Fatalf("completed session swept again: %+v", r)
	}
}

func TestSweepExpiredWithoutVotesStaysActive(t *testing.T) {
	f := newFixture(t, twoRecipients)
	f.addSession(t, "s1", -2*time.Hour, nil)
	before := f.get(t, "s1")

	r := f.sched.Sweep(context.Background())
	if len(r.Entries) != 0 || r.Checked != 1 {
		t.Fatalf("expected nothing due, got %+v", r)
	}
	s := f.get(t, "s1")
	if s.Status != session.StatusActive || !s.UpdatedAt.Equal(before.UpdatedAt) {
		t.Fatalf("session should be untouched, got %+v", s)
	}
	if len(f.notifier.messages) != 0 {
		t.Fatalf("nothing should be sent")
	}
}

func TestSweepWithoutRecipientsClaimsNothing(t *testing.T) {
	f := newFixture(t, nil)
	f.addSession(t, "s1", 48*time.Hour, nil)
	f.addSession(t, "s2", -time.Hour, map[string]int{"v1": 1})

	r := f.sched.Sweep(context.Background())
	if len(r.Entries) != 0 || r.Checked != 2 || r.Recipients != 0 || r.Error != "" {
		t.Fatalf("expected an empty report, got %+v", r)
	}
	if len(f.notifier.messages) != 0 {
		t.Fatalf("dispatcher must not be called without recipients")
	}
	if f.get(t, "s1").FiredReminders.Has(session.Reminder48h) {
		t.Fatalf("reminder claimed with nobody to notify")
	}
	if got := f.get(t, "s2").Status; got != session.StatusActive {
		t.Fatalf("expired session completed with nobody to notify, status %s", got)
	}

	// once a recipient exists the same events fire
	f.sched = f.newScheduler(twoRecipients, lock.NewMemory())
	r = f.sched.Sweep(context.Background())
	if len(r.Entries) != 2 || r.TotalSent() != 4 {
		t.Fatalf("expected both events on the next sweep, got %+v", r)
	}
	if f.get(t, "s2").Status != session.StatusCompleted {
		t.Fatalf("winner not announced after recipients appeared")
	}
}

func TestSweepAbortsWithoutChannels(t *testing.T) {
	f := newFixture(t, twoRecipients)
	f.notifier.configured = false
	f.addSession(t, "s1", 47*time.Hour, nil)

	r := f.sched.Sweep(context.Background())
	if !r.Aborted || r.Error == "" || len(r.Entries) != 0 {
		t.Fatalf("expected aborted report, got %+v", r)
	}
	if f.get(t, "s1").FiredReminders.Has(session.Reminder48h) {
		t.Fatalf("aborted sweep touched a session")
	}
}

func TestSweepSkipsWhenLocked(t *testing.T) {
	f := newFixture(t, twoRecipients)
	l := lock.NewMemory()
	f.sched = f.newScheduler(twoRecipients, l)
	f.addSession(t, "s1", 47*time.Hour, nil)

	release, ok, _ := l.TryLock(context.Background(), sweepLockKey, time.Minute)
	if !ok {
		t.Fatalf("could not take lock")
	}
	r := f.sched.Sweep(context.Background())
	if !r.Skipped || len(r.Entries) != 0 {
		t.Fatalf("expected skipped report, got %+v", r)
	}
	_ = release(context.Background())

	if r := f.sched.Sweep(context.Background()); len(r.Entries) != 1 {
		t.Fatalf("expected sweep after release, got %+v", r)
	}
}

func TestOverlappingSweepsSendAtMostOnce(t *testing.T) {
	f := newFixture(t, twoRecipients)
	for _, id := range []string{"a", "b", "c", "d"} {
		f.addSession(t, id, 47*time.Hour, nil)
	}

	// separate lockers: only the store claim protects against duplicates
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		s := f.newScheduler(twoRecipients, lock.NewMemory())
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Sweep(context.Background())
		}()
	}
	wg.Wait()

	if got := f.notifier.count(notify.KindVotingOpen); got != 4 {
		t.Fatalf("expected one reminder per session, got %d", got)
	}
}

type failingUpdateRepo struct {
	*memory.SessionRepo
}

func (failingUpdateRepo) Update(context.Context, string, func(*session.Session) error) (*session.Session, error) {
	return nil, session.ErrPersistence
}

func TestSweepClaimFailureDoesNotSend(t *testing.T) {
	f := newFixture(t, twoRecipients)
	f.addSession(t, "s1", 47*time.Hour, nil)
	f.addSession(t, "s2", 23*time.Hour, nil)

	s := NewScheduler(failingUpdateRepo{f.repo}, staticRecipients{list: twoRecipients}, f.notifier, notify.NewCatalog(""), nil, nil, SchedulerConfig{})
	s.now = func() time.Time { return f.now }

	r := s.Sweep(context.Background())
	if len(r.Entries) != 2 {
		t.Fatalf("expected an entry per due session, got %+v", r.Entries)
	}
	for _, e := range r.Entries {
		if e.Error == "" || e.Sent != 0 {
			t.Fatalf("claim failure should be reported without sends: %+v", e)
		}
	}
	if r.Entries[0].Event != EventVotingOpen || r.Entries[1].Event != EventLastCall {
		t.Fatalf("unexpected events %+v", r.Entries)
	}
	if len(f.notifier.messages) != 0 {
		t.Fatalf("nothing may be sent for a failed claim")
	}
}

func TestSweepRecipientLoadFailure(t *testing.T) {
	f := newFixture(t, nil)
	f.addSession(t, "s1", 47*time.Hour, nil)
	s := NewScheduler(f.repo, staticRecipients{err: errors.New("db down")}, f.notifier, notify.NewCatalog(""), nil, nil, SchedulerConfig{})
	s.now = func() time.Time { return f.now }

	r := s.Sweep(context.Background())
	if r.Error == "" || len(r.Entries) != 0 {
		t.Fatalf("expected error report, got %+v", r)
	}
	if f.get(t, "s1").FiredReminders.Has(session.Reminder48h) {
		t.Fatalf("no claim without recipients loaded")
	}
}

func TestEvaluateWindows(t *testing.T) {
	now := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	cases := []struct {
		hours float64
		fired []session.ReminderTag
		votes map[string]int
		want  EventType
	}{
		{hours: 50, want: EventVotingOpen},
		{hours: 50.01},
		{hours: 46.01, want: EventVotingOpen},
		{hours: 46},
		{hours: 47, fired: []session.ReminderTag{session.Reminder48h}},
		{hours: 26, want: EventLastCall},
		{hours: 22},
		{hours: 24, fired: []session.ReminderTag{session.Reminder24h}},
		{hours: 0, votes: map[string]int{"v": 2}, want: EventWinner},
		{hours: -5},
	}
	for _, tc := range cases {
		d := now.Add(time.Duration(tc.hours * float64(time.Hour)))
		s := &session.Session{
			Status:     session.StatusActive,
			Deadline:   &d,
			Candidates: []session.Candidate{{ID: 1, Name: "A"}, {ID: 2, Name: "B"}},
			Votes:      tc.votes,
		}
		for _, tag := range tc.fired {
			s.MarkReminder(tag)
		}
		got, ok := evaluate(s, now)
		if tc.want == "" {
			if ok {
				t.Fatalf("%.2fh: expected nothing due, got %s", tc.hours, got.event)
			}
			continue
		}
		if !ok || got.event != tc.want {
			t.Fatalf("%.2fh: expected %s, got %v %s", tc.hours, tc.want, ok, got.event)
		}
	}

	noDeadline := &session.Session{Status: session.StatusActive}
	if _, ok := evaluate(noDeadline, now); ok {
		t.Fatalf("session without deadline must be skipped")
	}
}
