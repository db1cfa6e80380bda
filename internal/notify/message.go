package notify

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"venue-vote/internal/domain/session"
)

type Kind string

const (
	KindVotingOpen Kind = "voting-open"
	KindLastCall   Kind = "last-call"
	KindWinner     Kind = "winner"
	KindCustom     Kind = "custom"
	KindTest       Kind = "test"
)

func (k Kind) Valid() bool {
	switch k {
	case KindVotingOpen, KindLastCall, KindWinner, KindCustom, KindTest:
		return true
	}
	return false
}

var ErrInvalidMessage = errors.New("invalid notification message")

// Message is a channel independent notification. Channels render it.
type Message struct {
	Kind  Kind   `json:"kind"`
	Title string `json:"title"`
	Body  string `json:"body"`
	URL   string `json:"url,omitempty"`
}

func (m Message) Validate() error {
	if !m.Kind.Valid() {
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidMessage, m.Kind)
	}
	if strings.TrimSpace(m.Title) == "" && strings.TrimSpace(m.Body) == "" {
		return fmt.Errorf("%w: empty content", ErrInvalidMessage)
	}
	if m.Kind == KindCustom && strings.TrimSpace(m.Body) == "" {
		return fmt.Errorf("%w: custom message without text", ErrInvalidMessage)
	}
	return nil
}

// Catalog renders the fixed message set. BaseURL is used for vote links.
type Catalog struct {
	BaseURL string
	Now     func() time.Time
}

func NewCatalog(baseURL string) *Catalog {
	return &Catalog{BaseURL: strings.TrimRight(baseURL, "/"), Now: time.Now}
}

func (c *Catalog) VoteURL(sessionID string) string {
	return c.BaseURL + "/vote/" + sessionID
}

func (c *Catalog) deadlineText(s *session.Session) string {
	if s.Deadline == nil {
		return "no deadline"
	}
	return fmt.Sprintf("%s (%s)", s.Deadline.UTC().Format("Mon 2 Jan 15:04 MST"), humanize.RelTime(*s.Deadline, c.Now(), "ago", "from now"))
}

func (c *Catalog) VotingOpen(s *session.Session) Message {
	return Message{
		Kind:  KindVotingOpen,
		Title: "Voting is open!",
		Body: fmt.Sprintf("There is an active vote for %s.\nDeadline: %s",
			s.Location, c.deadlineText(s)),
		URL: c.VoteURL(s.ID),
	}
}

func (c *Catalog) LastCall(s *session.Session) Message {
	return Message{
		Kind:  KindLastCall,
		Title: "Last call!",
		Body: fmt.Sprintf("Voting for %s closes %s.\nVoters so far: %s\nDon't miss your chance to have a say.",
			s.Location, c.deadlineText(s), humanize.Comma(int64(session.TotalVoters(s)))),
		URL: c.VoteURL(s.ID),
	}
}

func (c *Catalog) Winner(s *session.Session, w session.Candidate, votes int) Message {
	var b strings.Builder
	fmt.Fprintf(&b, "Voting for %s is over!\n\n", s.Location)
	fmt.Fprintf(&b, "%s\n", w.Name)
	fmt.Fprintf(&b, "Rating %s • %s\n", humanize.FtoaWithDigits(w.Rating, 1), w.Price)
	if w.Address != "" {
		fmt.Fprintf(&b, "%s\n", w.Address)
	}
	fmt.Fprintf(&b, "\nVotes: %d of %d voters\n", votes, session.TotalVoters(s))
	b.WriteString("Remember to book a table!")
	return Message{
		Kind:  KindWinner,
		Title: "We have a winner!",
		Body:  b.String(),
		URL:   w.MapURL,
	}
}

func (c *Catalog) Custom(text string) Message {
	return Message{Kind: KindCustom, Title: "Weekend App", Body: strings.TrimSpace(text), URL: c.BaseURL + "/"}
}

func (c *Catalog) Test() Message {
	return Message{
		Kind:  KindTest,
		Title: "Weekend App",
		Body:  "Test notification. The system is working.",
		URL:   c.BaseURL + "/",
	}
}
