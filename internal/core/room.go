package core

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

type roomMember struct {
	member Member
	state  MemberState
}

// Room groups the members of one space. The unexported methods expect the
// caller to hold mu.
type Room struct {
	ID      string
	mu      sync.Mutex
	members map[string]*roomMember
}

// NewRoom constructs a room with no members.
func NewRoom(id string) *Room {
	return &Room{
		ID:      id,
		members: make(map[string]*roomMember),
	}
}

// add inserts or replaces a member. Returns true if newly added.
func (r *Room) add(m Member, state MemberState) bool {
	_, exists := r.members[m.ID()]
	r.members[m.ID()] = &roomMember{member: m, state: state}
	return !exists
}

// remove deletes a member. Returns true if removed.
func (r *Room) remove(id string) bool {
	if _, exists := r.members[id]; !exists {
		return false
	}
	delete(r.members, id)
	return true
}

func (r *Room) move(id string, pos Position) bool {
	rm, ok := r.members[id]
	if !ok {
		return false
	}
	rm.state.Position = pos
	return true
}

// broadcast sends an event to every member except exclude. A failing
// recipient is logged and skipped. Returns the number of deliveries.
func (r *Room) broadcast(ev *Event, exclude string, log *zerolog.Logger) int {
	delivered := 0
	for id, rm := range r.members {
		if id == exclude {
			continue
		}
		if err := deliver(rm.member, ev); err != nil {
			log.Warn().Err(err).
				Str("space_id", r.ID).
				Str("recipient", id).
				Stringer("event", ev.Kind).
				Msg("broadcast delivery failed")
			continue
		}
		delivered++
	}
	return delivered
}

func (r *Room) snapshot(exclude string) []MemberState {
	out := make([]MemberState, 0, len(r.members))
	for id, rm := range r.members {
		if id == exclude {
			continue
		}
		out = append(out, rm.state)
	}
	return out
}

// Empty returns true if no members are in the room.
func (r *Room) Empty() bool {
	return len(r.members) == 0
}

func deliver(m Member, ev *Event) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("send panicked: %v", rec)
		}
	}()
	return m.Send(ev)
}
