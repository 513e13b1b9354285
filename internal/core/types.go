package core

import "context"

// Position is a cell on a space's integer grid.
type Position struct {
	X int
	Y int
}

// Bounds is the size of a space's grid.
type Bounds struct {
	Width  int
	Height int
}

// Valid reports whether the grid has at least one cell.
func (b Bounds) Valid() bool {
	return b.Width > 0 && b.Height > 0
}

// Contains reports whether p lies in [0,Width) x [0,Height).
func (b Bounds) Contains(p Position) bool {
	return p.X >= 0 && p.Y >= 0 && p.X < b.Width && p.Y < b.Height
}

// Space is what the space lookup knows about a room.
type Space struct {
	ID     string
	Name   string
	Bounds Bounds
}

// SpaceLookup resolves a space id at join time. Implementations return
// ErrSpaceNotFound (possibly wrapped) for unknown ids.
type SpaceLookup interface {
	LookupSpace(ctx context.Context, id string) (Space, error)
}

// Identity is who is behind a connection, as vouched for by a token or made up
// for guests.
type Identity struct {
	UserID string
	Name   string
	Guest  bool
}

// CloseReason tells the transport why the core wants a connection closed.
type CloseReason int

const (
	CloseNormal CloseReason = iota
	CloseSpaceNotFound
	CloseIdle
)

func (r CloseReason) String() string {
	switch r {
	case CloseSpaceNotFound:
		return "space not found"
	case CloseIdle:
		return "idle timeout"
	default:
		return "closing"
	}
}

// Conn is the outbound side of one client connection. Send must not block;
// it fails with ErrConnClosed or ErrBackpressure instead.
type Conn interface {
	Send(ev *Event) error
	Close(reason CloseReason)
	Open() bool
}

// Member is anything the registry can fan events out to.
type Member interface {
	ID() string
	Send(ev *Event) error
}

// MemberState is a point-in-time view of one room member.
type MemberState struct {
	ID       string
	Name     string
	Position Position
}
