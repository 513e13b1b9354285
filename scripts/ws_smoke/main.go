package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/vovakirdan/wirespace-server/internal/proto"
)

func main() {
	if err := run(); err != nil {
		log.Printf("ws_smoke: %v", err)
		os.Exit(1)
	}
}

func run() error {
	addr := flag.String("addr", "ws://localhost:8080/ws", "WebSocket address")
	token := flag.String("token", "", "optional token")
	space := flag.String("space", "lobby", "space to join")
	timeout := flag.Duration("timeout", 5*time.Second, "total timeout for the run")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	target := *addr
	if *token != "" {
		target += "?token=" + url.QueryEscape(*token)
	}
	conn, _, err := websocket.Dial(ctx, target, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	send := func(typ string, v any) error {
		payload, err := json.Marshal(v)
		if err != nil {
			return err
		}
		return wsjson.Write(ctx, conn, proto.Inbound{Type: typ, Payload: payload})
	}

	if err := send(proto.InboundTypeJoin, proto.JoinData{SpaceID: *space}); err != nil {
		return fmt.Errorf("send join: %w", err)
	}

	var ack struct {
		Type    string                `json:"type"`
		Payload proto.SpaceJoinedData `json:"payload"`
	}
	if err := wsjson.Read(ctx, conn, &ack); err != nil {
		return fmt.Errorf("read ack: %w", err)
	}
	if ack.Type != proto.OutboundTypeSpaceJoined {
		return fmt.Errorf("expected %s, got %s", proto.OutboundTypeSpaceJoined, ack.Type)
	}
	fmt.Printf("joined %s as %s at (%d,%d) with %d others\n",
		*space, ack.Payload.UserID, ack.Payload.Spawn.X, ack.Payload.Spawn.Y, len(ack.Payload.Users))

	// Step toward the origin so the move stays on the grid.
	next := proto.Point{X: ack.Payload.Spawn.X + 1, Y: ack.Payload.Spawn.Y}
	if ack.Payload.Spawn.X > 0 {
		next.X = ack.Payload.Spawn.X - 1
	}
	if err := send(proto.InboundTypeMove, next); err != nil {
		return fmt.Errorf("send move: %w", err)
	}

	// Accepted moves are silent for the mover.
	readCtx, readCancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer readCancel()
	var reply struct {
		Type    string          `json:"type"`
		Payload json.RawMessage `json:"payload"`
	}
	if err := wsjson.Read(readCtx, conn, &reply); err == nil {
		fmt.Printf("received %s: %s\n", reply.Type, reply.Payload)
		return nil
	}
	fmt.Printf("moved to (%d,%d)\n", next.X, next.Y)
	return nil
}
