package core

import (
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirespace-server/internal/proto"
)

type endpoint struct {
	conn   Conn
	roomID string
}

// Relay forwards negotiation frames between two sessions of the same space.
// It only checks routing fields; payloads pass through unread.
type Relay struct {
	mu        sync.RWMutex
	endpoints map[string]*endpoint
	log       *zerolog.Logger
}

// NewRelay creates an empty relay.
func NewRelay(logger *zerolog.Logger) *Relay {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Relay{
		endpoints: make(map[string]*endpoint),
		log:       logger,
	}
}

// Register makes sessionID reachable through conn while it is in roomID.
// Registering an id again replaces the previous entry.
func (r *Relay) Register(sessionID string, conn Conn, roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.endpoints[sessionID] = &endpoint{conn: conn, roomID: roomID}
	r.log.Debug().Str("session_id", sessionID).Str("space_id", roomID).Msg("endpoint registered")
}

// Remove forgets sessionID. Returns false if it was not registered.
func (r *Relay) Remove(sessionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.endpoints[sessionID]; !ok {
		r.log.Debug().Str("session_id", sessionID).Msg("remove of unknown endpoint")
		return false
	}
	delete(r.endpoints, sessionID)
	return true
}

// Len returns the number of registered endpoints.
func (r *Relay) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.endpoints)
}

// Forward routes msg to its recipient. Every failure is logged and returned;
// the message is dropped in that case.
func (r *Relay) Forward(msg proto.SignalMessage) error {
	route := msg.Route
	logger := r.log.With().
		Str("signal", msg.Type).
		Str("from", route.From).
		Str("to", route.To).
		Str("space_id", route.SpaceID).
		Logger()

	if route.From == "" || route.To == "" || route.SpaceID == "" {
		logger.Warn().Msg("dropping signal without routing fields")
		return ErrIncompleteRoute
	}

	r.mu.RLock()
	ep, ok := r.endpoints[route.To]
	r.mu.RUnlock()

	switch {
	case !ok:
		logger.Debug().Msg("dropping signal for unknown recipient")
		return ErrUnknownRecipient
	case !ep.conn.Open():
		r.purge(route.To, ep)
		logger.Debug().Msg("dropping signal for closed recipient")
		return ErrStaleEndpoint
	case ep.roomID != route.SpaceID:
		logger.Debug().Str("recipient_space", ep.roomID).Msg("dropping cross-space signal")
		return ErrRoomMismatch
	}

	if err := ep.conn.Send(signalEvent(msg.Raw)); err != nil {
		if errors.Is(err, ErrConnClosed) {
			r.purge(route.To, ep)
			logger.Debug().Msg("recipient closed during forward")
			return ErrStaleEndpoint
		}
		logger.Warn().Err(err).Msg("signal forward failed")
		return err
	}
	return nil
}

// purge removes id only if it still maps to ep, so a fresh registration made
// in the meantime survives.
func (r *Relay) purge(id string, ep *endpoint) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.endpoints[id]; ok && cur == ep {
		delete(r.endpoints, id)
	}
}
