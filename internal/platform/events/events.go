package events

import (
	"context"
	"time"
)

type Type string

const (
	VoteCast        Type = "vote_cast"
	ReminderSent    Type = "reminder_sent"
	WinnerAnnounced Type = "winner_announced"
)

// Event is a session lifecycle fact published for downstream consumers.
type Event struct {
	Type        Type      `json:"type"`
	SessionID   string    `json:"sessionId"`
	OccurredAt  time.Time `json:"occurredAt"`
	VoterID     string    `json:"voterId,omitempty"`
	CandidateID int       `json:"candidateId,omitempty"`
	Reminder    string    `json:"reminder,omitempty"`
	Sent        int       `json:"sent,omitempty"`
	Failed      int       `json:"failed,omitempty"`
	TotalVoters int       `json:"totalVoters,omitempty"`
}

type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close() error                         { return nil }
