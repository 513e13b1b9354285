package proto

import "encoding/json"

// Inbound is the envelope for frames coming from the client.
type Inbound struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Outbound is the envelope for frames sent to the client.
type Outbound struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

const (
	InboundTypeJoin         = "join"
	InboundTypeMove         = "move"
	InboundTypeOffer        = "offer"
	InboundTypeAnswer       = "answer"
	InboundTypeICECandidate = "ice-candidate"

	OutboundTypeSpaceJoined      = "space-joined"
	OutboundTypeUserJoined       = "user-joined"
	OutboundTypeMovement         = "movement"
	OutboundTypeMovementRejected = "movement-rejected"
	OutboundTypeUserLeft         = "user-left"
	OutboundTypeIdleKick         = "idle-kick"
	OutboundTypeError            = "error"
)

// JoinData requests admission into a space.
type JoinData struct {
	SpaceID string `json:"spaceId"`
}

// Point is a grid coordinate.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// UserState describes one member inside a space.
type UserState struct {
	UserID string `json:"userId"`
	X      int    `json:"x"`
	Y      int    `json:"y"`
	Name   string `json:"name,omitempty"`
}

// SpaceJoinedData acknowledges a join to the joining client.
type SpaceJoinedData struct {
	Spawn  Point       `json:"spawn"`
	UserID string      `json:"userId"`
	Users  []UserState `json:"users"`
}

// MovementData announces an accepted move.
type MovementData struct {
	UserID string `json:"userId"`
	X      int    `json:"x"`
	Y      int    `json:"y"`
}

// MovementRejectedData carries the authoritative position after a refused move.
type MovementRejectedData struct {
	X      int    `json:"x"`
	Y      int    `json:"y"`
	Reason string `json:"reason"`
}

// UserLeftData announces a departure.
type UserLeftData struct {
	UserID string `json:"userId"`
}

// IdleKickData precedes a forced disconnect.
type IdleKickData struct {
	Reason string `json:"reason"`
}

// ErrorData describes a protocol-level error.
type ErrorData struct {
	Message string `json:"message"`
}

// Route holds the routing fields of a signaling payload.
type Route struct {
	From    string `json:"from"`
	To      string `json:"to"`
	SpaceID string `json:"spaceId"`
}

// SpaceJoined builds the join acknowledgment.
func SpaceJoined(userID string, spawn Point, users []UserState) Outbound {
	if users == nil {
		users = []UserState{}
	}
	return Outbound{Type: OutboundTypeSpaceJoined, Payload: SpaceJoinedData{Spawn: spawn, UserID: userID, Users: users}}
}

// UserJoined builds the notification sent to existing members.
func UserJoined(u UserState) Outbound {
	return Outbound{Type: OutboundTypeUserJoined, Payload: u}
}

// Movement builds an accepted-move notification.
func Movement(userID string, p Point) Outbound {
	return Outbound{Type: OutboundTypeMovement, Payload: MovementData{UserID: userID, X: p.X, Y: p.Y}}
}

// MovementRejected builds the correction sent back to the mover.
func MovementRejected(p Point, reason string) Outbound {
	return Outbound{Type: OutboundTypeMovementRejected, Payload: MovementRejectedData{X: p.X, Y: p.Y, Reason: reason}}
}

// UserLeft builds a departure notification.
func UserLeft(userID string) Outbound {
	return Outbound{Type: OutboundTypeUserLeft, Payload: UserLeftData{UserID: userID}}
}

// IdleKick builds the eviction notice.
func IdleKick(reason string) Outbound {
	return Outbound{Type: OutboundTypeIdleKick, Payload: IdleKickData{Reason: reason}}
}

// Error builds a generic error frame.
func Error(msg string) Outbound {
	return Outbound{Type: OutboundTypeError, Payload: ErrorData{Message: msg}}
}
