package core

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ID represents a domain identifier
type ID string

// NewID creates a new unique identifier using UUID v7 for time-ordered generation
func NewID() ID {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return ID(id.String())
}

// String returns the string representation
func (id ID) String() string {
	return string(id)
}

// IsEmpty checks if the ID is empty
func (id ID) IsEmpty() bool {
	return id == ""
}

// Domain-specific ID types
type (
	SessionID ID
	FitRunID  ID
)

func (id SessionID) String() string { return ID(id).String() }
func (id FitRunID) String() string  { return ID(id).String() }

// NewSessionID creates a time-ordered session identifier
func NewSessionID() SessionID { return SessionID(NewID()) }

// NewFitRunID creates a time-ordered fit run identifier
func NewFitRunID() FitRunID { return FitRunID(NewID()) }

// ParseSessionID validates a session identifier supplied by a caller.
// Malformed identifiers can never name a session and wrap ErrSessionNotFound.
func ParseSessionID(s string) (SessionID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("%w: empty session ID", ErrSessionNotFound)
	}
	if _, err := uuid.Parse(s); err != nil {
		return "", fmt.Errorf("%w: invalid session ID %q: %v", ErrSessionNotFound, s, err)
	}
	return SessionID(s), nil
}
