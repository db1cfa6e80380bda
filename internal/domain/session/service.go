package session

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	defaultLocation  = "Not specified"
	defaultGroupName = "Weekend group"
	defaultCreatedBy = "Admin"
)

type CreateInput struct {
	Candidates []Candidate
	Location   string
	GroupName  string
	CreatedBy  string
	Deadline   *time.Time
}

// View is a session together with its derived counts.
type View struct {
	Session     *Session
	VoteCounts  map[int]int
	TotalVoters int
}

func NewView(s *Session) View {
	return View{Session: s, VoteCounts: Tally(s), TotalVoters: TotalVoters(s)}
}

type Service struct {
	repo  Repository
	now   func() time.Time
	newID func() string
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now, newID: uuid.NewString}
}

func (s *Service) Create(ctx context.Context, in CreateInput) (*Session, error) {
	candidates, err := normalizeCandidates(in.Candidates)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	var deadline *time.Time
	if in.Deadline != nil {
		d := in.Deadline.UTC()
		deadline = &d
	}

	sess := &Session{
		ID:             s.newID(),
		Candidates:     candidates,
		Location:       orDefault(in.Location, defaultLocation),
		GroupName:      orDefault(in.GroupName, defaultGroupName),
		CreatedBy:      orDefault(in.CreatedBy, defaultCreatedBy),
		CreatedAt:      now,
		UpdatedAt:      now,
		Deadline:       deadline,
		Status:         StatusActive,
		Votes:          map[string]int{},
		VoterNames:     map[string]string{},
		FiredReminders: Reminders{},
	}
	if _, err := s.repo.Create(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

func (s *Service) Get(ctx context.Context, id string) (View, error) {
	sess, err := s.repo.Get(ctx, id)
	if err != nil {
		return View{}, err
	}
	return NewView(sess), nil
}

func (s *Service) CastVote(ctx context.Context, id, voterID, displayName string, candidateID int) (View, error) {
	sess, err := s.repo.Update(ctx, id, func(sess *Session) error {
		if err := Cast(sess, voterID, displayName, candidateID); err != nil {
			return err
		}
		sess.UpdatedAt = s.now().UTC()
		return nil
	})
	if err != nil {
		return View{}, err
	}
	return NewView(sess), nil
}

// Close ends voting without announcing a winner.
func (s *Service) Close(ctx context.Context, id string) (*Session, error) {
	return s.repo.Update(ctx, id, func(sess *Session) error {
		if err := sess.Transition(StatusClosed); err != nil {
			return ErrSessionNotVotable
		}
		sess.UpdatedAt = s.now().UTC()
		return nil
	})
}

func normalizeCandidates(in []Candidate) ([]Candidate, error) {
	if len(in) == 0 {
		return nil, fmt.Errorf("%w: at least one candidate is required", ErrInvalidInput)
	}
	// missing ids are numbered after the highest explicit one
	next := 0
	for _, c := range in {
		if c.ID > next {
			next = c.ID
		}
	}

	out := make([]Candidate, len(in))
	seen := make(map[int]struct{}, len(in))
	for i, c := range in {
		c.Name = strings.TrimSpace(c.Name)
		if c.Name == "" {
			return nil, fmt.Errorf("%w: candidate %d has no name", ErrInvalidInput, i+1)
		}
		if c.ID == 0 {
			next++
			c.ID = next
		}
		if _, dup := seen[c.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate candidate id %d", ErrInvalidInput, c.ID)
		}
		seen[c.ID] = struct{}{}
		c.Category = NormalizeCategory(c.Category)
		out[i] = c
	}
	return out, nil
}

func orDefault(v, def string) string {
	if v = strings.TrimSpace(v); v != "" {
		return v
	}
	return def
}
