// Package messages holds the mailbox protocol of the session actors.
package messages

import "Chronicle/internal/game/entity"

type SessionMessage interface {
	SessionID() string
}

type SessionBaseMessage struct {
	Session string
}

func (m SessionBaseMessage) SessionID() string {
	return m.Session
}

// Snapshot asks for a deep copy of the current bundle.
type Snapshot struct {
	SessionBaseMessage
}

// Commit runs Fn against a working copy of the bundle. The copy replaces
// the bundle only when Fn returns nil and Claim, if set, returns true.
type Commit struct {
	SessionBaseMessage
	Fn func(b *entity.Bundle) error
	// Claim reports whether the caller still waits for the result. It is
	// called once, after Fn succeeds.
	Claim func() bool
}

// Replace swaps the bundle wholesale.
type Replace struct {
	SessionBaseMessage
	Bundle *entity.Bundle
}

// Flush writes the bundle to the repository before replying.
type Flush struct {
	SessionBaseMessage
}

// Reply answers every session message. Bundle is set for Snapshot and
// Commit; it is always a copy the caller owns.
type Reply struct {
	Bundle *entity.Bundle
	Err    error
}
