package core

import (
	"sort"
	"sync"

	"github.com/rs/zerolog"
)

// RoomInfo summarizes a live room for occupancy listings.
type RoomInfo struct {
	ID          string
	MemberCount int
}

// Registry owns room membership for the whole process.
//
// The map of rooms is guarded by mu; each room's members and fan-out are
// guarded by that room's own mutex. Operations that create or prune rooms take
// mu exclusively, everything else takes it shared, so a broadcast in one room
// never waits on another room. Within a room every add, remove, move and
// broadcast is serialized, which makes a fan-out atomic with respect to
// membership changes in the same room.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*Room
	log   *zerolog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *zerolog.Logger) *Registry {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Registry{
		rooms: make(map[string]*Room),
		log:   logger,
	}
}

// EnsureRoom creates an empty room for id if none exists.
func (r *Registry) EnsureRoom(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ensureLocked(id)
}

func (r *Registry) ensureLocked(id string) *Room {
	room, ok := r.rooms[id]
	if !ok {
		room = NewRoom(id)
		r.rooms[id] = room
		r.log.Debug().Str("space_id", id).Msg("room created")
	}
	return room
}

// AddMember inserts m into the room, creating the room if needed. Adding an
// id that is already present replaces the previous entry.
func (r *Registry) AddMember(roomID string, m Member, state MemberState) {
	r.mu.Lock()
	defer r.mu.Unlock()

	room := r.ensureLocked(roomID)
	room.mu.Lock()
	defer room.mu.Unlock()
	state.ID = m.ID()
	room.add(m, state)
}

// RemoveMember deletes memberID from roomID. A missing room is logged and
// otherwise ignored.
func (r *Registry) RemoveMember(roomID, memberID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[roomID]
	if !ok {
		r.log.Warn().Str("space_id", roomID).Str("member_id", memberID).Msg("remove from unknown room")
		return false
	}
	room.mu.Lock()
	defer room.mu.Unlock()
	removed := room.remove(memberID)
	r.pruneLocked(room)
	return removed
}

// Broadcast delivers ev to every member of roomID except excludeID and
// returns the number of successful deliveries.
func (r *Registry) Broadcast(roomID string, ev *Event, excludeID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	room, ok := r.rooms[roomID]
	if !ok {
		return 0
	}
	room.mu.Lock()
	defer room.mu.Unlock()
	return room.broadcast(ev, excludeID, r.log)
}

// Snapshot returns the current members of roomID.
func (r *Registry) Snapshot(roomID string) []MemberState {
	r.mu.RLock()
	defer r.mu.RUnlock()

	room, ok := r.rooms[roomID]
	if !ok {
		return []MemberState{}
	}
	room.mu.Lock()
	defer room.mu.Unlock()
	return room.snapshot("")
}

// Count returns the number of members in roomID.
func (r *Registry) Count(roomID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	room, ok := r.rooms[roomID]
	if !ok {
		return 0
	}
	room.mu.Lock()
	defer room.mu.Unlock()
	return len(room.members)
}

// Rooms lists every room with its member count, ordered by id.
func (r *Registry) Rooms() []RoomInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]RoomInfo, 0, len(r.rooms))
	for id, room := range r.rooms {
		room.mu.Lock()
		out = append(out, RoomInfo{ID: id, MemberCount: len(room.members)})
		room.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Join admits m into roomID in one turn: it snapshots the other members,
// inserts m, sends m the join acknowledgment and notifies everyone else. No
// other member can join or leave between the snapshot and the notification,
// so the joiner and the existing members agree on who is present.
//
// Only the room's own lock is held for the fan-out. mu is held shared so the
// room cannot be pruned underneath the join; creating a missing room takes mu
// exclusively for the insert alone.
func (r *Registry) Join(roomID string, m Member, state MemberState) []MemberState {
	for {
		r.mu.RLock()
		room, ok := r.rooms[roomID]
		if !ok {
			r.mu.RUnlock()
			r.EnsureRoom(roomID)
			// A concurrent Leave may prune the new room before we get back
			// in; look it up again.
			continue
		}
		others := r.joinRoom(room, m, state)
		r.mu.RUnlock()
		return others
	}
}

func (r *Registry) joinRoom(room *Room, m Member, state MemberState) []MemberState {
	room.mu.Lock()
	defer room.mu.Unlock()

	state.ID = m.ID()
	others := room.snapshot(state.ID)
	room.add(m, state)

	if err := deliver(m, spaceJoinedEvent(state, room.ID, others)); err != nil {
		r.log.Warn().Err(err).Str("space_id", room.ID).Str("member_id", state.ID).Msg("join ack delivery failed")
	}
	room.broadcast(userJoinedEvent(state, room.ID), state.ID, r.log)
	return others
}

// Move records memberID's new position and announces it to the rest of the
// room. Returns false if the member is not in the room.
func (r *Registry) Move(roomID, memberID string, pos Position) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	room, ok := r.rooms[roomID]
	if !ok {
		return false
	}
	room.mu.Lock()
	defer room.mu.Unlock()
	if !room.move(memberID, pos) {
		return false
	}
	room.broadcast(movementEvent(memberID, roomID, pos), memberID, r.log)
	return true
}

// Leave removes memberID and announces the departure to the remaining
// members in one turn. Empty rooms are dropped.
func (r *Registry) Leave(roomID, memberID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[roomID]
	if !ok {
		r.log.Warn().Str("space_id", roomID).Str("member_id", memberID).Msg("leave from unknown room")
		return false
	}
	room.mu.Lock()
	defer room.mu.Unlock()
	if !room.remove(memberID) {
		return false
	}
	room.broadcast(userLeftEvent(memberID, roomID), "", r.log)
	r.pruneLocked(room)
	return true
}

// pruneLocked drops an empty room. Callers hold mu exclusively and room.mu.
func (r *Registry) pruneLocked(room *Room) {
	if room.Empty() {
		delete(r.rooms, room.ID)
		r.log.Debug().Str("space_id", room.ID).Msg("room pruned")
	}
}
