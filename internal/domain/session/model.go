package session

import (
	"context"
	"encoding/json"
	"sort"
	"time"
)

type Status string

const (
	StatusActive    Status = "active"
	StatusClosed    Status = "closed"
	StatusCompleted Status = "completed"
)

func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusClosed, StatusCompleted:
		return true
	}
	return false
}

// Terminal reports whether no transition may leave s.
func (s Status) Terminal() bool {
	return s == StatusClosed || s == StatusCompleted
}

type Category string

const (
	CategoryFish  Category = "fish"
	CategoryPizza Category = "pizza"
	CategoryMeat  Category = "meat"
	CategoryPasta Category = "pasta"
	CategoryOther Category = "other"
)

func NormalizeCategory(c Category) Category {
	switch c {
	case CategoryFish, CategoryPizza, CategoryMeat, CategoryPasta:
		return c
	}
	return CategoryOther
}

type Candidate struct {
	ID       int      `json:"id"`
	Name     string   `json:"name"`
	Rating   float64  `json:"rating"`
	Price    string   `json:"price"`
	Address  string   `json:"address"`
	MapURL   string   `json:"externalMapUrl"`
	Category Category `json:"category"`
}

type ReminderTag string

const (
	Reminder48h ReminderTag = "48h"
	Reminder24h ReminderTag = "24h"
)

// Reminders is the set of reminder tags already fired for a session.
// It is encoded as a sorted JSON array.
type Reminders map[ReminderTag]struct{}

func (r Reminders) Has(tag ReminderTag) bool {
	_, ok := r[tag]
	return ok
}

func (r Reminders) Sorted() []ReminderTag {
	tags := make([]ReminderTag, 0, len(r))
	for t := range r {
		tags = append(tags, t)
	}
	sort.Slice(tags, func(i, j int) bool { return tags[i] < tags[j] })
	return tags
}

func (r Reminders) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Sorted())
}

func (r *Reminders) UnmarshalJSON(data []byte) error {
	var tags []ReminderTag
	if err := json.Unmarshal(data, &tags); err != nil {
		return err
	}
	set := make(Reminders, len(tags))
	for _, t := range tags {
		set[t] = struct{}{}
	}
	*r = set
	return nil
}

type Session struct {
	ID             string            `json:"id"`
	Candidates     []Candidate       `json:"candidates"`
	Location       string            `json:"location"`
	GroupName      string            `json:"groupName"`
	CreatedBy      string            `json:"createdBy"`
	CreatedAt      time.Time         `json:"createdAt"`
	UpdatedAt      time.Time         `json:"updatedAt"`
	Deadline       *time.Time        `json:"deadline,omitempty"`
	Status         Status            `json:"status"`
	Votes          map[string]int    `json:"votes"`
	VoterNames     map[string]string `json:"voterDisplayNames"`
	FiredReminders Reminders         `json:"firedReminders"`
}

func (s *Session) Candidate(id int) (Candidate, bool) {
	for _, c := range s.Candidates {
		if c.ID == id {
			return c, true
		}
	}
	return Candidate{}, false
}

// Transition moves the session to a new status. Only active sessions move.
func (s *Session) Transition(to Status) error {
	if !to.Valid() || s.Status.Terminal() || to == StatusActive {
		return ErrInvalidTransition
	}
	s.Status = to
	return nil
}

// MarkReminder records tag and reports whether it was newly added.
func (s *Session) MarkReminder(tag ReminderTag) bool {
	if s.FiredReminders == nil {
		s.FiredReminders = make(Reminders)
	}
	if s.FiredReminders.Has(tag) {
		return false
	}
	s.FiredReminders[tag] = struct{}{}
	return true
}

// HoursRemaining is the fractional number of hours until the deadline.
// ok is false when the session has no deadline.
func (s *Session) HoursRemaining(now time.Time) (hours float64, ok bool) {
	if s.Deadline == nil {
		return 0, false
	}
	return s.Deadline.Sub(now).Hours(), true
}

// Clone returns a deep copy.
func (s *Session) Clone() *Session {
	c := *s
	c.Candidates = append([]Candidate(nil), s.Candidates...)
	if s.Deadline != nil {
		d := *s.Deadline
		c.Deadline = &d
	}
	c.Votes = make(map[string]int, len(s.Votes))
	for k, v := range s.Votes {
		c.Votes[k] = v
	}
	c.VoterNames = make(map[string]string, len(s.VoterNames))
	for k, v := range s.VoterNames {
		c.VoterNames[k] = v
	}
	c.FiredReminders = make(Reminders, len(s.FiredReminders))
	for k := range s.FiredReminders {
		c.FiredReminders[k] = struct{}{}
	}
	return &c
}

type Repository interface {
	Create(ctx context.Context, s *Session) (string, error)
	Get(ctx context.Context, id string) (*Session, error)
	Put(ctx context.Context, s *Session) error
	ListActive(ctx context.Context) ([]Session, error)
	// Update runs fn on a freshly read session while holding the
	// session's write lock and persists the result. Nothing is written
	// when fn returns an error.
	Update(ctx context.Context, id string, fn func(*Session) error) (*Session, error)
}
