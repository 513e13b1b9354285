package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirespace-server/internal/proto"
)

// SessionState is where a session is in its lifecycle.
type SessionState int

const (
	StateUnjoined SessionState = iota
	StateJoined
	StateDestroyed
)

func (s SessionState) String() string {
	switch s {
	case StateUnjoined:
		return "unjoined"
	case StateJoined:
		return "joined"
	case StateDestroyed:
		return "destroyed"
	default:
		return "unknown"
	}
}

// Session is one connected participant.
//
// HandleFrame must be called from a single goroutine in receipt order. The idle
// check and Destroy may run concurrently with it; mu guards the mutable state.
// Lock order is session mu, then the registry, then the connection.
type Session struct {
	id       string
	identity Identity
	conn     Conn
	hub      *Hub
	log      *zerolog.Logger

	mu         sync.Mutex
	state      SessionState
	spaceID    string
	bounds     Bounds
	pos        Position
	lastActive time.Time
	stopIdle   context.CancelFunc

	destroyOnce sync.Once
}

// ID returns the session id.
func (s *Session) ID() string {
	return s.id
}

// Identity returns who the session belongs to.
func (s *Session) Identity() Identity {
	return s.identity
}

// Send queues ev on the session's connection.
func (s *Session) Send(ev *Event) error {
	return s.conn.Send(ev)
}

// State returns the current lifecycle state.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Position returns the authoritative position and the space id ("" before join).
func (s *Session) Position() (Position, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pos, s.spaceID
}

// HandleFrame processes one raw inbound frame.
func (s *Session) HandleFrame(ctx context.Context, data []byte) {
	msg, err := proto.Parse(data)
	if err != nil {
		var unknown *proto.UnknownTypeError
		if errors.As(err, &unknown) {
			s.log.Debug().Str("type", unknown.Type).Msg("unknown frame type")
			s.reply(errorEvent(coreError(ErrCodeUnknownType, unknown.Error())))
			return
		}
		s.log.Debug().Err(err).Msg("malformed frame")
		s.reply(errorEvent(coreError(ErrCodeMalformed, "malformed frame")))
		return
	}

	switch m := msg.(type) {
	case proto.JoinMessage:
		s.join(ctx, m.SpaceID)
	case proto.MoveMessage:
		s.move(m.X, m.Y)
	case proto.SignalMessage:
		s.signal(m)
	}
}

// signal forwards a signaling frame for a joined session that names itself as
// the sender. Dropped frames are logged, never reported to the client.
func (s *Session) signal(m proto.SignalMessage) {
	s.mu.Lock()
	state := s.state
	s.mu.Unlock()

	switch {
	case state != StateJoined:
		s.log.Debug().Str("type", m.Type).Stringer("state", state).Msg("signal dropped: session not joined")
		return
	case m.Route.From != s.id:
		s.log.Warn().Str("type", m.Type).Str("from", m.Route.From).Msg("signal dropped: sender mismatch")
		return
	}
	_ = s.hub.relay.Forward(m)
}

// Reject sends a protocol error to the client without touching any state.
func (s *Session) Reject(code, msg string) {
	s.reply(errorEvent(coreError(code, msg)))
}

func (s *Session) join(ctx context.Context, spaceID string) {
	switch s.State() {
	case StateDestroyed:
		return
	case StateJoined:
		s.reply(errorEvent(coreError(ErrCodeAlreadyJoined, "already joined")))
		return
	}
	if spaceID == "" {
		s.reply(errorEvent(coreError(ErrCodeBadRequest, "spaceId is required")))
		return
	}

	lookupCtx, cancel := context.WithTimeout(ctx, s.hub.opts.JoinTimeout)
	space, err := s.lookup(lookupCtx, spaceID)
	cancel()

	logger := s.log.With().Str("space_id", spaceID).Logger()
	switch {
	case errors.Is(err, ErrSpaceNotFound):
		logger.Info().Msg("join to unknown space, closing")
		s.conn.Close(CloseSpaceNotFound)
		return
	case err != nil:
		logger.Warn().Err(err).Msg("space lookup failed")
		s.reply(errorEvent(coreError(ErrCodeJoinFailed, "join failed")))
		return
	case !space.Bounds.Valid():
		logger.Warn().Int("width", space.Bounds.Width).Int("height", space.Bounds.Height).Msg("space has unusable bounds")
		s.reply(errorEvent(coreError(ErrCodeInvalidBounds, "invalid space bounds")))
		return
	}

	spawn := s.hub.opts.Spawn(space.Bounds)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateUnjoined {
		// Destroyed while the lookup was in flight.
		return
	}
	s.state = StateJoined
	s.spaceID = spaceID
	s.bounds = space.Bounds
	s.pos = spawn
	s.lastActive = s.hub.opts.Now()

	others := s.hub.rooms.Join(spaceID, s, MemberState{ID: s.id, Name: s.identity.Name, Position: spawn})
	s.hub.relay.Register(s.id, s.conn, spaceID)

	logger.Info().Int("x", spawn.X).Int("y", spawn.Y).Int("others", len(others)).Msg("joined space")
}

// lookup calls the space collaborator, turning a panic into an error.
func (s *Session) lookup(ctx context.Context, spaceID string) (space Space, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("space lookup panicked: %v", rec)
		}
	}()
	return s.hub.spaces.LookupSpace(ctx, spaceID)
}

func (s *Session) move(x, y float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateDestroyed:
		return
	case StateUnjoined:
		s.reply(errorEvent(coreError(ErrCodeNotInSpace, "not in a space")))
		return
	}

	target, reason := validateMove(s.pos, x, y, s.bounds)
	if reason != "" {
		s.reply(movementRejectedEvent(s.pos, reason))
		return
	}

	s.pos = target
	s.lastActive = s.hub.opts.Now()
	if !s.hub.rooms.Move(s.spaceID, s.id, target) {
		s.log.Warn().Str("space_id", s.spaceID).Msg("moved member missing from registry")
	}
}

// Destroy tears the session down: stops the idle check, leaves the room with a
// departure broadcast, drops the relay endpoint and closes the connection.
// Safe to call any number of times from any goroutine; only the first call
// does anything, and it never panics.
func (s *Session) Destroy() {
	s.destroyOnce.Do(func() {
		s.mu.Lock()
		wasJoined := s.state == StateJoined
		spaceID := s.spaceID
		s.state = StateDestroyed
		stop := s.stopIdle
		s.mu.Unlock()

		if stop != nil {
			stop()
		}
		if wasJoined {
			s.safely("leave room", func() { s.hub.rooms.Leave(spaceID, s.id) })
		}
		s.safely("remove relay endpoint", func() { s.hub.relay.Remove(s.id) })
		s.safely("close connection", func() { s.conn.Close(CloseNormal) })

		s.log.Info().Str("space_id", spaceID).Msg("session destroyed")
	})
}

func (s *Session) safely(step string, fn func()) {
	defer func() {
		if rec := recover(); rec != nil {
			s.log.Error().Interface("panic", rec).Str("step", step).Msg("teardown step failed")
		}
	}()
	fn()
}

func (s *Session) reply(ev *Event) {
	if err := s.conn.Send(ev); err != nil {
		s.log.Debug().Err(err).Stringer("event", ev.Kind).Msg("reply not delivered")
	}
}
