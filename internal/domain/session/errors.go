package session

import "errors"

var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrNotFound          = errors.New("session not found")
	ErrInvalidCandidate  = errors.New("candidate does not belong to session")
	ErrSessionNotVotable = errors.New("session is not active")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrPersistence       = errors.New("session store failure")
)
