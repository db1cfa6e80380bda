package session

import (
	"fmt"
	"strings"
)

const anonymousVoter = "Anonymous"

// Cast records voterID's choice, replacing any earlier one. Callers must
// hold the session's write lock (see Repository.Update).
func Cast(s *Session, voterID, displayName string, candidateID int) error {
	voterID = strings.TrimSpace(voterID)
	if voterID == "" {
		return fmt.Errorf("%w: voter id is required", ErrInvalidInput)
	}
	if s.Status != StatusActive {
		return ErrSessionNotVotable
	}
	if _, ok := s.Candidate(candidateID); !ok {
		return ErrInvalidCandidate
	}

	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		displayName = anonymousVoter
	}

	if s.Votes == nil {
		s.Votes = make(map[string]int)
	}
	if s.VoterNames == nil {
		s.VoterNames = make(map[string]string)
	}
	s.Votes[voterID] = candidateID
	s.VoterNames[voterID] = displayName
	return nil
}
