package http

import (
	"github.com/vovakirdan/wirespace-server/internal/core"
	"github.com/vovakirdan/wirespace-server/internal/proto"
)

// outboundFromEvent maps a core event to its wire frame. Signal events are
// written raw and never go through here.
func outboundFromEvent(event *core.Event) proto.Outbound {
	switch event.Kind {
	case core.EventSpaceJoined:
		users := make([]proto.UserState, 0, len(event.Members))
		for _, m := range event.Members {
			users = append(users, userState(m.ID, m.Name, m.Position))
		}
		return proto.SpaceJoined(event.User, point(event.Position), users)
	case core.EventUserJoined:
		return proto.UserJoined(userState(event.User, event.Name, event.Position))
	case core.EventMovement:
		return proto.Movement(event.User, point(event.Position))
	case core.EventMovementRejected:
		return proto.MovementRejected(point(event.Position), event.Reason)
	case core.EventUserLeft:
		return proto.UserLeft(event.User)
	case core.EventIdleKick:
		return proto.IdleKick(event.Reason)
	case core.EventError:
		if event.Error == nil {
			return proto.Error("unknown error")
		}
		return proto.Error(event.Error.Message)
	default:
		return proto.Error("unsupported event")
	}
}

func point(p core.Position) proto.Point {
	return proto.Point{X: p.X, Y: p.Y}
}

func userState(id, name string, p core.Position) proto.UserState {
	return proto.UserState{UserID: id, X: p.X, Y: p.Y, Name: name}
}
