package turn

type Phase int32

const (
	Idle Phase = iota
	Requesting
	Applying
	Propagating
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Requesting:
		return "requesting"
	case Applying:
		return "applying"
	case Propagating:
		return "propagating"
	}
	return "unknown"
}

type Role string

const (
	RoleSolo Role = "solo"
	RoleHost Role = "host"
	RolePeer Role = "peer"
)

// Status tells how a turn ended without error.
type Status string

const (
	// Committed: applied to canonical state and the turn counter advanced.
	Committed Status = "committed"
	// Submitted: applied optimistically and sent to the host.
	Submitted Status = "submitted"
	// Aborted: cancelled while waiting for the generator; nothing changed.
	Aborted Status = "aborted"
)
