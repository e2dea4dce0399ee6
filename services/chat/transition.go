package chat

import (
	"errors"
	"fmt"
	"time"

	"github.com/dredbirozsolt/koncert24-hu-sub002/models"
)

// Event is a session lifecycle event.
type Event string

const (
	// EventEscalate hands an AI-served session to a human agent.
	EventEscalate Event = "escalate"
	// EventResolve marks the conversation answered.
	EventResolve Event = "resolve"
	// EventClose is the terminal transition.
	EventClose Event = "close"
)

// ErrIllegalTransition is returned for transitions the state machine does
// not permit.
var ErrIllegalTransition = errors.New("illegal session transition")

// Transition applies ev to the session in place and stamps the matching
// timestamp. After creation this is the only writer of Status; everything
// else treats the field as read-only.
func Transition(s *models.ChatSession, ev Event, now time.Time) error {
	switch ev {
	case EventEscalate:
		if s.Status != models.SessionStatusActive {
			return fmt.Errorf("%w: %s -> escalated", ErrIllegalTransition, s.Status)
		}
		s.Status = models.SessionStatusEscalated
		s.EscalatedAt = &now
		return nil

	case EventResolve:
		if s.Status != models.SessionStatusActive && s.Status != models.SessionStatusEscalated {
			return fmt.Errorf("%w: %s -> resolved", ErrIllegalTransition, s.Status)
		}
		s.Status = models.SessionStatusResolved
		s.ResolvedAt = &now
		return nil

	case EventClose:
		if s.Status == models.SessionStatusClosed {
			return fmt.Errorf("%w: already closed", ErrIllegalTransition)
		}
		s.Status = models.SessionStatusClosed
		s.ClosedAt = &now
		return nil
	}
	return fmt.Errorf("%w: unknown event %q", ErrIllegalTransition, ev)
}
