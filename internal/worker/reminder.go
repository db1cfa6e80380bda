package worker

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"venue-vote/internal/domain/recipient"
	"venue-vote/internal/domain/session"
	"venue-vote/internal/metrics"
	"venue-vote/internal/notify"
	"venue-vote/internal/platform/events"
	"venue-vote/internal/platform/lock"
)

// Reminder windows, in hours before the deadline. A window matches when
// lower < hoursRemaining <= upper.
const (
	VotingOpenLower = 46.0
	VotingOpenUpper = 50.0
	LastCallLower   = 22.0
	LastCallUpper   = 26.0
)

type EventType string

const (
	EventVotingOpen EventType = "48h-reminder"
	EventLastCall   EventType = "24h-reminder"
	EventWinner     EventType = "winner-announcement"
)

var ErrNoChannels = errors.New("no notification channel configured")

// errNothingDue aborts a claim without writing when a fresh read shows the
// event is no longer due.
var errNothingDue = errors.New("nothing due")

type reminderRule struct {
	tag    session.ReminderTag
	event  EventType
	lower  float64
	upper  float64
	render func(c *notify.Catalog, s *session.Session) notify.Message
}

var reminderRules = []reminderRule{
	{session.Reminder48h, EventVotingOpen, VotingOpenLower, VotingOpenUpper, (*notify.Catalog).VotingOpen},
	{session.Reminder24h, EventLastCall, LastCallLower, LastCallUpper, (*notify.Catalog).LastCall},
}

type dueEvent struct {
	event       EventType
	rule        *reminderRule
	winner      session.Candidate
	winnerVotes int
}

// evaluate returns the first event due for s at now, if any.
func evaluate(s *session.Session, now time.Time) (dueEvent, bool) {
	if s.Status != session.StatusActive {
		return dueEvent{}, false
	}
	h, ok := s.HoursRemaining(now)
	if !ok {
		return dueEvent{}, false
	}
	for i := range reminderRules {
		r := &reminderRules[i]
		if h > r.lower && h <= r.upper && !s.FiredReminders.Has(r.tag) {
			return dueEvent{event: r.event, rule: r}, true
		}
	}
	if h <= 0 {
		w, votes, ok := session.Winner(s)
		if !ok {
			return dueEvent{}, false
		}
		return dueEvent{event: EventWinner, winner: w, winnerVotes: votes}, true
	}
	return dueEvent{}, false
}

func (d dueEvent) apply(s *session.Session) error {
	if d.rule != nil {
		s.MarkReminder(d.rule.tag)
		return nil
	}
	return s.Transition(session.StatusCompleted)
}

type ReportEntry struct {
	SessionID string    `json:"sessionId"`
	Event     EventType `json:"event"`
	Sent      int       `json:"recipientsSent"`
	Failed    int       `json:"recipientsFailed"`
	Error     string    `json:"error,omitempty"`
}

type Report struct {
	StartedAt  time.Time     `json:"startedAt"`
	Checked    int           `json:"checked"`
	Recipients int           `json:"recipients"`
	Entries    []ReportEntry `json:"notifications"`
	Skipped    bool          `json:"skipped,omitempty"`
	Aborted    bool          `json:"aborted,omitempty"`
	Error      string        `json:"error,omitempty"`
}

func (r Report) TotalSent() int {
	n := 0
	for _, e := range r.Entries {
		n += e.Sent
	}
	return n
}

type RecipientSource interface {
	ActiveRecipients(ctx context.Context) ([]recipient.Recipient, error)
}

type Notifier interface {
	Dispatch(ctx context.Context, recipients []recipient.Recipient, msg notify.Message) (notify.Result, error)
	Configured() bool
}

type SchedulerConfig struct {
	Timeout     time.Duration
	Concurrency int
}

type Scheduler struct {
	repo       session.Repository
	recipients RecipientSource
	notifier   Notifier
	catalog    *notify.Catalog
	locker     lock.Locker
	eventCh    chan<- events.Event
	cfg        SchedulerConfig
	now        func() time.Time
}

const sweepLockKey = "scheduler-sweep"

func NewScheduler(
	repo session.Repository,
	recipients RecipientSource,
	notifier Notifier,
	catalog *notify.Catalog,
	locker lock.Locker,
	eventCh chan<- events.Event,
	cfg SchedulerConfig,
) *Scheduler {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if locker == nil {
		locker = lock.NewMemory()
	}
	return &Scheduler{
		repo:       repo,
		recipients: recipients,
		notifier:   notifier,
		catalog:    catalog,
		locker:     locker,
		eventCh:    eventCh,
		cfg:        cfg,
		now:        time.Now,
	}
}

// Sweep checks every active session once and fires the events that are due.
// Each event is claimed in the store before its notification is sent, so
// overlapping sweeps never send the same reminder twice.
func (s *Scheduler) Sweep(ctx context.Context) Report {
	start := s.now()
	report := Report{StartedAt: start.UTC(), Entries: []ReportEntry{}}
	defer func() { metrics.ObserveSweep(time.Since(start)) }()

	if !s.notifier.Configured() {
		report.Aborted = true
		report.Error = ErrNoChannels.Error()
		slog.Error("sweep aborted", "error", ErrNoChannels)
		return report
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	release, ok, err := s.locker.TryLock(ctx, sweepLockKey, s.cfg.Timeout+30*time.Second)
	if err != nil {
		report.Error = err.Error()
		slog.Error("sweep lock failed", "error", err)
		return report
	}
	if !ok {
		report.Skipped = true
		slog.Info("sweep skipped, another sweep is running")
		return report
	}
	defer func() {
		if err := release(context.Background()); err != nil {
			slog.Warn("sweep lock release failed", "error", err)
		}
	}()

	sessions, err := s.repo.ListActive(ctx)
	if err != nil {
		report.Error = err.Error()
		slog.Error("sweep list sessions failed", "error", err)
		return report
	}
	report.Checked = len(sessions)

	recips, err := s.recipients.ActiveRecipients(ctx)
	if err != nil {
		report.Error = err.Error()
		slog.Error("sweep load recipients failed", "error", err)
		return report
	}
	report.Recipients = len(recips)
	if len(recips) == 0 {
		// nothing is claimed, so the events fire once someone subscribes
		slog.Info("sweep found no active recipients", "checked", report.Checked)
		return report
	}

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(s.cfg.Concurrency)
	for i := range sessions {
		snap := &sessions[i]
		expected, due := evaluate(snap, start)
		if !due {
			continue
		}
		g.Go(func() error {
			entry, fired := s.fire(ctx, snap.ID, expected.event, start, recips)
			if fired {
				mu.Lock()
				report.Entries = append(report.Entries, entry)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(report.Entries, func(i, j int) bool {
		return report.Entries[i].SessionID < report.Entries[j].SessionID
	})
	return report
}

// fire claims the due event of one session and then notifies. fired is
// false when a fresh read shows nothing is due anymore.
func (s *Scheduler) fire(ctx context.Context, id string, expected EventType, now time.Time, recips []recipient.Recipient) (ReportEntry, bool) {
	var due dueEvent
	claimed, err := s.repo.Update(ctx, id, func(cur *session.Session) error {
		d, ok := evaluate(cur, now)
		if !ok {
			return errNothingDue
		}
		if err := d.apply(cur); err != nil {
			return err
		}
		cur.UpdatedAt = now.UTC()
		due = d
		return nil
	})
	if errors.Is(err, errNothingDue) {
		return ReportEntry{}, false
	}

	entry := ReportEntry{SessionID: id, Event: due.event}
	if err != nil {
		entry.Event = expected
		entry.Error = err.Error()
		metrics.IncSweepEvent(string(expected), "claim_failed")
		slog.Error("sweep claim failed", "session_id", id, "error", err)
		return entry, true
	}

	msg := s.render(claimed, due)
	outcome := "no_recipients"
	if len(recips) > 0 {
		res, err := s.notifier.Dispatch(ctx, recips, msg)
		entry.Sent, entry.Failed = res.Sent, res.Failed
		outcome = "sent"
		if err != nil {
			entry.Error = err.Error()
			outcome = "dispatch_failed"
		}
	}
	metrics.IncSweepEvent(string(due.event), outcome)
	slog.Info("sweep event",
		"session_id", id,
		"event", due.event,
		"sent", entry.Sent,
		"failed", entry.Failed,
	)

	s.emit(claimed, due, entry, now)
	return entry, true
}

func (s *Scheduler) render(sess *session.Session, d dueEvent) notify.Message {
	if d.rule != nil {
		return d.rule.render(s.catalog, sess)
	}
	return s.catalog.Winner(sess, d.winner, d.winnerVotes)
}

func (s *Scheduler) emit(sess *session.Session, d dueEvent, entry ReportEntry, now time.Time) {
	ev := events.Event{
		Type:        events.WinnerAnnounced,
		SessionID:   sess.ID,
		OccurredAt:  now.UTC(),
		Sent:        entry.Sent,
		Failed:      entry.Failed,
		TotalVoters: session.TotalVoters(sess),
	}
	if d.rule != nil {
		ev.Type = events.ReminderSent
		ev.Reminder = string(d.rule.tag)
	} else {
		ev.CandidateID = d.winner.ID
	}
	Emit(s.eventCh, ev)
}

// Run sweeps on every tick until ctx is done.
func (s *Scheduler) Run(ctx context.Context, interval time.Duration) {
	slog.Info("reminder scheduler started", "interval", interval.String())
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			slog.Info("reminder scheduler stopped")
			return
		case <-ticker.C:
			r := s.Sweep(ctx)
			slog.Info("sweep finished",
				"checked", r.Checked,
				"events", len(r.Entries),
				"sent", r.TotalSent(),
				"skipped", r.Skipped,
				"aborted", r.Aborted,
			)
		}
	}
}
