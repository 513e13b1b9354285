package proto

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
)

// ErrMalformed is returned for frames that are not a JSON object with a string
// type and an object payload.
var ErrMalformed = errors.New("malformed frame")

// UnknownTypeError is returned for well-formed frames with an unrecognized type.
type UnknownTypeError struct {
	Type string
}

func (e *UnknownTypeError) Error() string {
	return "unknown message type: " + e.Type
}

// Message is one parsed inbound frame.
type Message interface {
	Kind() string
}

// JoinMessage asks to enter a space.
type JoinMessage struct {
	SpaceID string
}

// MoveMessage asks to move to a grid cell. Coordinates that were missing or
// not numbers are NaN; out-of-range numbers are infinite.
type MoveMessage struct {
	X float64
	Y float64
}

// SignalMessage is a negotiation frame routed peer to peer. Raw holds the
// original frame so it can be forwarded untouched.
type SignalMessage struct {
	Type  string
	Route Route
	Raw   json.RawMessage
}

func (JoinMessage) Kind() string     { return InboundTypeJoin }
func (MoveMessage) Kind() string     { return InboundTypeMove }
func (m SignalMessage) Kind() string { return m.Type }

// IsSignal reports whether typ is relayed rather than handled by the server.
func IsSignal(typ string) bool {
	switch typ {
	case InboundTypeOffer, InboundTypeAnswer, InboundTypeICECandidate:
		return true
	}
	return false
}

// Parse decodes one inbound frame.
func Parse(data []byte) (Message, error) {
	var env struct {
		Type    *string         `json:"type"`
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if env.Type == nil || *env.Type == "" {
		return nil, fmt.Errorf("%w: missing type", ErrMalformed)
	}
	payload := bytes.TrimSpace(env.Payload)
	if len(payload) == 0 || payload[0] != '{' {
		return nil, fmt.Errorf("%w: payload must be an object", ErrMalformed)
	}

	switch typ := *env.Type; {
	case typ == InboundTypeJoin:
		var join JoinData
		if err := json.Unmarshal(payload, &join); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		return JoinMessage{SpaceID: join.SpaceID}, nil
	case typ == InboundTypeMove:
		var coords struct {
			X json.RawMessage `json:"x"`
			Y json.RawMessage `json:"y"`
		}
		if err := json.Unmarshal(payload, &coords); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		return MoveMessage{X: coordinate(coords.X), Y: coordinate(coords.Y)}, nil
	case IsSignal(typ):
		var route Route
		if err := json.Unmarshal(payload, &route); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		raw := make(json.RawMessage, len(data))
		copy(raw, data)
		return SignalMessage{Type: typ, Route: route, Raw: raw}, nil
	default:
		return nil, &UnknownTypeError{Type: typ}
	}
}

func coordinate(raw json.RawMessage) float64 {
	if len(raw) == 0 {
		return math.NaN()
	}
	f, err := strconv.ParseFloat(string(raw), 64)
	if err != nil {
		var numErr *strconv.NumError
		if errors.As(err, &numErr) && errors.Is(numErr.Err, strconv.ErrRange) && math.IsInf(f, 0) {
			return f
		}
		return math.NaN()
	}
	return f
}
