package core

import "encoding/json"

// EventKind is a notification the core emits to clients.
type EventKind int

const (
	// EventSpaceJoined acknowledges a join with a snapshot of the other members.
	EventSpaceJoined EventKind = iota
	// EventUserJoined notifies members about a newcomer.
	EventUserJoined
	// EventMovement notifies members about an accepted move.
	EventMovement
	// EventMovementRejected tells the mover its authoritative position.
	EventMovementRejected
	// EventUserLeft notifies members about a departure.
	EventUserLeft
	// EventIdleKick precedes an idle eviction.
	EventIdleKick
	// EventError notifies a client about a protocol error.
	EventError
	// EventSignal carries a relayed negotiation frame untouched.
	EventSignal
)

func (k EventKind) String() string {
	switch k {
	case EventSpaceJoined:
		return "space_joined"
	case EventUserJoined:
		return "user_joined"
	case EventMovement:
		return "movement"
	case EventMovementRejected:
		return "movement_rejected"
	case EventUserLeft:
		return "user_left"
	case EventIdleKick:
		return "idle_kick"
	case EventError:
		return "error"
	case EventSignal:
		return "signal"
	default:
		return "unknown"
	}
}

// Event is sent to clients to describe what happened in the system.
type Event struct {
	Kind     EventKind
	Space    string
	User     string
	Name     string
	Position Position
	Members  []MemberState // For EventSpaceJoined
	Reason   string
	Error    *CoreError
	Raw      json.RawMessage // For EventSignal
}

func spaceJoinedEvent(self MemberState, space string, others []MemberState) *Event {
	return &Event{Kind: EventSpaceJoined, Space: space, User: self.ID, Name: self.Name, Position: self.Position, Members: others}
}

func userJoinedEvent(m MemberState, space string) *Event {
	return &Event{Kind: EventUserJoined, Space: space, User: m.ID, Name: m.Name, Position: m.Position}
}

func movementEvent(id, space string, pos Position) *Event {
	return &Event{Kind: EventMovement, Space: space, User: id, Position: pos}
}

func movementRejectedEvent(pos Position, reason string) *Event {
	return &Event{Kind: EventMovementRejected, Position: pos, Reason: reason}
}

func userLeftEvent(id, space string) *Event {
	return &Event{Kind: EventUserLeft, Space: space, User: id}
}

func idleKickEvent(reason string) *Event {
	return &Event{Kind: EventIdleKick, Reason: reason}
}

func errorEvent(err *CoreError) *Event {
	return &Event{Kind: EventError, Error: err}
}

// ErrorEvent builds an error notification for callers outside the core.
func ErrorEvent(code, msg string) *Event {
	return errorEvent(coreError(code, msg))
}

func signalEvent(raw json.RawMessage) *Event {
	return &Event{Kind: EventSignal, Raw: raw}
}
