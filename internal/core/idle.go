package core

import (
	"context"
	"time"
)

// IdleKickReason is sent in the idle-kick frame.
const IdleKickReason = "inactive while alone in the space"

// Start launches the periodic idle check. It stops when ctx is done or the
// session is destroyed.
func (s *Session) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)

	s.mu.Lock()
	if s.state == StateDestroyed {
		s.mu.Unlock()
		cancel()
		return
	}
	s.stopIdle = cancel
	s.mu.Unlock()

	go s.idleLoop(ctx)
}

func (s *Session) idleLoop(ctx context.Context) {
	ticker := time.NewTicker(s.hub.opts.IdleCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.CheckIdle() {
				return
			}
		}
	}
}

// CheckIdle evicts the session if it has been inactive for at least the idle
// timeout while no one else is in its space. An unjoined session counts as
// alone. Returns true once the session is gone.
func (s *Session) CheckIdle() bool {
	s.mu.Lock()
	if s.state == StateDestroyed {
		s.mu.Unlock()
		return true
	}

	idle := s.hub.opts.Now().Sub(s.lastActive)
	members := 0
	if s.state == StateJoined {
		members = s.hub.rooms.Count(s.spaceID)
	}
	if idle < s.hub.opts.IdleTimeout || members > 1 {
		s.mu.Unlock()
		return false
	}

	s.log.Info().Dur("idle", idle).Int("members", members).Msg("evicting idle session")
	s.reply(idleKickEvent(IdleKickReason))
	s.mu.Unlock()

	s.conn.Close(CloseIdle)
	s.Destroy()
	return true
}
