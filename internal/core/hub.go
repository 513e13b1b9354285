package core

import (
	"math/rand/v2"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirespace-server/internal/utils"
)

// Options tunes session behavior. Zero values fall back to DefaultOptions.
type Options struct {
	IdleCheckInterval time.Duration
	IdleTimeout       time.Duration
	JoinTimeout       time.Duration

	// Now and Spawn are replaceable for tests.
	Now   func() time.Time
	Spawn func(Bounds) Position
	NewID func() string
}

// DefaultOptions returns the production timings.
func DefaultOptions() Options {
	return Options{
		IdleCheckInterval: time.Minute,
		IdleTimeout:       5 * time.Minute,
		JoinTimeout:       5 * time.Second,
		Now:               time.Now,
		Spawn:             RandomSpawn,
		NewID:             utils.NewID,
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.IdleCheckInterval <= 0 {
		o.IdleCheckInterval = def.IdleCheckInterval
	}
	if o.IdleTimeout <= 0 {
		o.IdleTimeout = def.IdleTimeout
	}
	if o.JoinTimeout <= 0 {
		o.JoinTimeout = def.JoinTimeout
	}
	if o.Now == nil {
		o.Now = def.Now
	}
	if o.Spawn == nil {
		o.Spawn = def.Spawn
	}
	if o.NewID == nil {
		o.NewID = def.NewID
	}
	return o
}

// RandomSpawn picks a uniformly random cell inside b. b must be valid.
func RandomSpawn(b Bounds) Position {
	return Position{X: rand.IntN(b.Width), Y: rand.IntN(b.Height)}
}

// Hub owns the room registry and the signaling relay and creates sessions
// bound to them. One Hub serves the whole process.
type Hub struct {
	rooms  *Registry
	relay  *Relay
	spaces SpaceLookup
	opts   Options
	log    *zerolog.Logger
}

// NewHub creates a hub resolving spaces through spaces.
func NewHub(spaces SpaceLookup, opts Options, logger *zerolog.Logger) *Hub {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Hub{
		rooms:  NewRegistry(logger),
		relay:  NewRelay(logger),
		spaces: spaces,
		opts:   opts.withDefaults(),
		log:    logger,
	}
}

// Rooms returns the room registry.
func (h *Hub) Rooms() *Registry {
	return h.rooms
}

// Relay returns the signaling relay.
func (h *Hub) Relay() *Relay {
	return h.relay
}

// NewSession builds an unjoined session for conn. The caller starts its idle
// check with Start and must call Destroy when the connection ends.
func (h *Hub) NewSession(conn Conn, identity Identity) *Session {
	id := h.opts.NewID()
	if identity.UserID == "" {
		identity.UserID = id
		identity.Guest = true
	}
	if identity.Name == "" {
		identity.Name = utils.GuestName(id)
	}

	logger := h.log.With().Str("session_id", id).Str("user_id", identity.UserID).Logger()
	return &Session{
		id:         id,
		identity:   identity,
		conn:       conn,
		hub:        h,
		log:        &logger,
		state:      StateUnjoined,
		lastActive: h.opts.Now(),
	}
}
